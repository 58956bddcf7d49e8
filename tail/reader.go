package tail

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
)

const readBufferSize = 64 * 1024

// Reader yields the complete lines of a file starting at a byte offset.
// A trailing line without its terminator is never returned and not counted in
// Consumed, so the next poll picks it up once it has been finished.
type Reader struct {
	path    string
	file    *os.File
	br      *bufio.Reader
	charset Charset
	dec     *encoding.Decoder

	consumed uint64
	pending  []byte
	raw      []byte
	text     string
	done     bool
	err      error
}

// Open opens path and positions it at offset. A byte order mark at the start of
// the file is skipped and included in Consumed.
func Open(path string, offset uint64, cs Charset) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &UnavailableError{Op: "open", Path: path, Err: err}
	}

	head := make([]byte, 3)
	n, err := f.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, &UnavailableError{Op: "read", Path: path, Err: err}
	}
	resolved, bom := cs.resolve(head[:n])

	start := offset
	if start < uint64(bom) {
		start = uint64(bom)
	}
	if _, err := f.Seek(int64(start), io.SeekStart); err != nil {
		f.Close()
		return nil, &UnavailableError{Op: "seek", Path: path, Err: err}
	}

	return &Reader{
		path:     path,
		file:     f,
		br:       bufio.NewReaderSize(f, readBufferSize),
		charset:  resolved,
		dec:      resolved.enc.NewDecoder(),
		consumed: start - offset,
	}, nil
}

// Scan advances to the next complete line.
func (r *Reader) Scan() bool {
	if r.done {
		return false
	}

	raw, err := r.readLine()
	if err != nil {
		if err != io.EOF {
			r.err = &UnavailableError{Op: "read", Path: r.path, Err: err}
		}
		r.done = true
		r.raw, r.text = nil, ""
		return false
	}

	r.consumed += uint64(len(raw))
	r.raw = raw
	r.text = r.decode(raw)
	return true
}

// Text returns the decoded line without its terminator.
func (r *Reader) Text() string {
	return r.text
}

// Bytes returns the raw bytes of the current line including its terminator.
// The slice is only valid until the next call to Scan.
func (r *Reader) Bytes() []byte {
	return r.raw
}

// Consumed is the number of bytes after the starting offset covered by the
// lines returned so far.
func (r *Reader) Consumed() uint64 {
	return r.consumed
}

// Charset returns the charset in effect after byte order mark detection.
func (r *Reader) Charset() Charset {
	return r.charset
}

// Err returns the first read error other than io.EOF.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) Close() error {
	return r.file.Close()
}

func (r *Reader) readLine() ([]byte, error) {
	r.pending = r.pending[:0]
	for {
		chunk, err := r.br.ReadSlice('\n')
		r.pending = append(r.pending, chunk...)
		switch err {
		case nil:
			complete, err := r.terminated()
			if err != nil {
				return nil, err
			}
			if complete {
				return r.pending, nil
			}
		case bufio.ErrBufferFull:
		default:
			return nil, err
		}
	}
}

// terminated reports whether the '\n' byte ending r.pending is a real line
// terminator in the file's charset.
func (r *Reader) terminated() (bool, error) {
	n := len(r.pending)
	switch r.charset.order {
	case littleEndian:
		// 0x0A must be the low byte of a code unit followed by 0x00.
		if n%2 == 0 {
			return false, nil
		}
		next, err := r.br.Peek(1)
		if err != nil {
			return false, err
		}
		if next[0] != 0 {
			return false, nil
		}
		b, _ := r.br.ReadByte()
		r.pending = append(r.pending, b)
		return true, nil
	case bigEndian:
		return n%2 == 0 && r.pending[n-2] == 0, nil
	}
	return true, nil
}

func (r *Reader) decode(raw []byte) string {
	out, err := r.dec.Bytes(raw)
	var s string
	if err != nil {
		s = strings.ToValidUTF8(string(raw), "�")
	} else {
		s = string(bytes.ToValidUTF8(out, []byte("�")))
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
