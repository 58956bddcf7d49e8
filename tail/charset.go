package tail

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

type byteOrder int

const (
	narrow byteOrder = iota
	littleEndian
	bigEndian
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Charset describes how the bytes of a log file are turned into text.
type Charset struct {
	name  string
	sniff bool
	enc   encoding.Encoding
	order byteOrder
}

var (
	// Auto sniffs a byte order mark at the start of the file and falls back to UTF-8.
	Auto    = Charset{name: "auto", sniff: true, enc: unicode.UTF8}
	UTF8    = Charset{name: "utf-8", enc: unicode.UTF8}
	UTF16LE = Charset{name: "utf-16le", enc: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), order: littleEndian}
	UTF16BE = Charset{name: "utf-16be", enc: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), order: bigEndian}
)

// LookupCharset resolves a config encoding name. Besides auto, utf-8 and the
// utf-16 variants any WHATWG label (windows-1252, iso-8859-1, gbk, ...) is accepted.
func LookupCharset(name string) (Charset, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return Auto, nil
	case "utf-8", "utf8":
		return UTF8, nil
	case "utf-16le", "utf-16":
		return UTF16LE, nil
	case "utf-16be":
		return UTF16BE, nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return Charset{}, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = strings.ToLower(name)
	}
	if strings.HasPrefix(canonical, "utf-16") {
		return Charset{}, fmt.Errorf("encoding %q: use utf-16le or utf-16be", name)
	}
	return Charset{name: canonical, enc: enc}, nil
}

func (c Charset) String() string {
	return c.name
}

// resolve picks the effective charset for a file starting with head and
// returns the length of the byte order mark to skip at offset 0.
func (c Charset) resolve(head []byte) (Charset, int) {
	switch {
	case bytes.HasPrefix(head, bomUTF8) && (c.sniff || c.name == UTF8.name):
		return UTF8, len(bomUTF8)
	case bytes.HasPrefix(head, bomUTF16LE) && (c.sniff || c.order == littleEndian):
		return UTF16LE, len(bomUTF16LE)
	case bytes.HasPrefix(head, bomUTF16BE) && (c.sniff || c.order == bigEndian):
		return UTF16BE, len(bomUTF16BE)
	}
	if c.sniff {
		return UTF8, 0
	}
	return c, 0
}
