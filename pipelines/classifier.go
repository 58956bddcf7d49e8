package pipelines

import (
	"strings"

	"logcount/pipelines/parsers"
	"logcount/types"
)

// Outcome describes what the classifier did with one line.
type Outcome int

const (
	// Event: a structured line was counted under its severity.
	Event Outcome = iota
	// ContinuationStart: first line of a stack trace block, counted under the
	// severity of the preceding structured line.
	ContinuationStart
	// Coalesced: a further line of the current continuation block, not counted.
	Coalesced
	// Unknown: unrecognised non-blank line, counted as UNKNOWN.
	Unknown
	// InvalidTimestamp: the grammar matched but the time did not parse. Not counted.
	InvalidTimestamp
	// Blank lines are ignored.
	Blank
)

func (o Outcome) String() string {
	switch o {
	case Event:
		return "event"
	case ContinuationStart:
		return "continuation"
	case Coalesced:
		return "coalesced"
	case Unknown:
		return "unknown"
	case InvalidTimestamp:
		return "invalid_timestamp"
	case Blank:
		return "blank"
	}
	return "outcome"
}

// Counted reports whether the outcome produced an increment.
func (o Outcome) Counted() bool {
	return o == Event || o == ContinuationStart || o == Unknown
}

// State is the per-file classification state. It is carried across polls so a
// stack trace split by a poll boundary still coalesces.
type State struct {
	InContinuation bool
	Severity       string
}

// Classifier applies a source grammar to lines and reports events to a Sink.
type Classifier struct {
	source  string
	grammar *parsers.Grammar
	sink    Sink
}

func NewClassifier(source string, grammar *parsers.Grammar, sink Sink) *Classifier {
	return &Classifier{source: source, grammar: grammar, sink: sink}
}

// Classify folds line into st. The returned error is a *parsers.TimestampError
// when the line matched the grammar with an unparseable timestamp.
func (c *Classifier) Classify(st *State, line string) (Outcome, error) {
	m, ok, err := c.grammar.Parse(line)
	if ok {
		if err != nil {
			return InvalidTimestamp, err
		}
		c.sink.Increment(c.source, m.Severity)
		st.InContinuation = false
		st.Severity = m.Severity
		return Event, nil
	}

	if strings.TrimSpace(line) == "" {
		return Blank, nil
	}

	if parsers.IsContinuation(line) {
		if st.InContinuation {
			return Coalesced, nil
		}
		severity := st.Severity
		if severity == "" {
			severity = types.SeverityUnknown
		}
		c.sink.Increment(c.source, severity)
		st.InContinuation = true
		return ContinuationStart, nil
	}

	c.sink.Increment(c.source, types.SeverityUnknown)
	st.InContinuation = false
	st.Severity = ""
	return Unknown, nil
}
