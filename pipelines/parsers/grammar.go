package parsers

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"logcount/types"
)

// GrammarKind selects the shape of a structured line and the captures it must provide.
type GrammarKind int

const (
	// Bracketed lines look like `TIMESTAMP [SEVERITY] MESSAGE`.
	Bracketed GrammarKind = iota + 1
	// Delimited lines are install-log banners `=== MESSAGE TIMESTAMP  ... ===`.
	// They carry no severity; every match counts as info.
	Delimited
)

const (
	BracketedPattern    = `(?P<time>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3} [+-]\d{2}:\d{2}) \[(?P<severity>\w+)\] (?P<message>.*)`
	BracketedTimeLayout = "2006-01-02 15:04:05.000 -07:00"

	DelimitedPattern    = `=== (?P<message>.*) (?P<time>\d{2}-\d{2}-\d{4}  \d{2}:\d{2}:\d{2})  .*===`
	DelimitedTimeLayout = "02-01-2006  15:04:05"
)

// ParseKind maps a config value onto a GrammarKind.
func ParseKind(s string) (GrammarKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bracketed":
		return Bracketed, nil
	case "delimited":
		return Delimited, nil
	}
	return 0, fmt.Errorf("unknown grammar %q: must be bracketed or delimited", s)
}

func (k GrammarKind) String() string {
	switch k {
	case Bracketed:
		return "bracketed"
	case Delimited:
		return "delimited"
	}
	return fmt.Sprintf("GrammarKind(%d)", int(k))
}

// DefaultPattern returns the built-in pattern for the kind.
func (k GrammarKind) DefaultPattern() string {
	if k == Delimited {
		return DelimitedPattern
	}
	return BracketedPattern
}

// DefaultTimeLayout returns the built-in time layout for the kind.
func (k GrammarKind) DefaultTimeLayout() string {
	if k == Delimited {
		return DelimitedTimeLayout
	}
	return BracketedTimeLayout
}

func (k GrammarKind) requiredCaptures() []string {
	if k == Bracketed {
		return []string{"time", "severity"}
	}
	return []string{"time"}
}

// Match holds the captures of a structured line whose timestamp parsed.
type Match struct {
	Time     time.Time
	Severity string
	Message  string
}

// TimestampError reports a line that matched a grammar but carried an
// unparseable time capture.
type TimestampError struct {
	Value  string
	Layout string
	Err    error
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("invalid timestamp %q for layout %q: %v", e.Value, e.Layout, e.Err)
}

func (e *TimestampError) Unwrap() error { return e.Err }

// Grammar is a compiled line pattern for one source.
type Grammar struct {
	Kind       GrammarKind
	TimeLayout string

	re          *regexp.Regexp
	timeIdx     int
	severityIdx int
	messageIdx  int
}

// NewGrammar compiles pattern (or the kind's default when empty) and checks that
// it exposes the named captures the kind requires.
func NewGrammar(kind GrammarKind, pattern, layout string) (*Grammar, error) {
	if kind != Bracketed && kind != Delimited {
		return nil, fmt.Errorf("unsupported grammar kind %v", kind)
	}
	if pattern == "" {
		pattern = kind.DefaultPattern()
	}
	if layout == "" {
		layout = kind.DefaultTimeLayout()
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile %s pattern: %w", kind, err)
	}

	g := &Grammar{
		Kind:        kind,
		TimeLayout:  layout,
		re:          re,
		timeIdx:     re.SubexpIndex("time"),
		severityIdx: re.SubexpIndex("severity"),
		messageIdx:  re.SubexpIndex("message"),
	}
	for _, name := range kind.requiredCaptures() {
		if re.SubexpIndex(name) < 0 {
			return nil, fmt.Errorf("%s pattern %q has no (?P<%s>...) capture", kind, pattern, name)
		}
	}
	return g, nil
}

// MustGrammar is like NewGrammar but panics on error. Used for built-in grammars.
func MustGrammar(kind GrammarKind, pattern, layout string) *Grammar {
	g, err := NewGrammar(kind, pattern, layout)
	if err != nil {
		panic(err)
	}
	return g
}

// Pattern returns the source text of the compiled pattern.
func (g *Grammar) Pattern() string {
	return g.re.String()
}

// Parse applies the grammar to line. ok reports whether the pattern matched;
// a match whose time capture does not parse returns ok with a *TimestampError.
func (g *Grammar) Parse(line string) (m Match, ok bool, err error) {
	parts := g.re.FindStringSubmatch(line)
	if parts == nil {
		return Match{}, false, nil
	}

	raw := parts[g.timeIdx]
	ts, perr := time.Parse(g.TimeLayout, raw)
	if perr != nil {
		return Match{}, true, &TimestampError{Value: raw, Layout: g.TimeLayout, Err: perr}
	}

	m.Time = ts
	if g.messageIdx >= 0 {
		m.Message = parts[g.messageIdx]
	}
	if g.Kind == Bracketed && g.severityIdx >= 0 && parts[g.severityIdx] != "" {
		m.Severity = parts[g.severityIdx]
	} else {
		m.Severity = types.SeverityInfo
	}
	return m, true, nil
}
