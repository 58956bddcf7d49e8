package pipelines

import (
	"sort"
	"sync"
)

// Sink receives one increment per logical log event. Implementations must be
// safe for concurrent use.
type Sink interface {
	Increment(source, severity string)
}

// Count is one (source, severity) counter value.
type Count struct {
	Source   string
	Severity string
	Value    uint64
}

type countKey struct {
	source, severity string
}

// Tally is an in-memory Sink.
type Tally struct {
	mu     sync.Mutex
	counts map[countKey]uint64
}

func NewTally() *Tally {
	return &Tally{counts: make(map[countKey]uint64)}
}

func (t *Tally) Increment(source, severity string) {
	t.mu.Lock()
	t.counts[countKey{source, severity}]++
	t.mu.Unlock()
}

// Get returns the counter for (source, severity).
func (t *Tally) Get(source, severity string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[countKey{source, severity}]
}

// Total returns the sum of all counters of source.
func (t *Tally) Total(source string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var n uint64
	for k, v := range t.counts {
		if k.source == source {
			n += v
		}
	}
	return n
}

// Counts returns every counter sorted by source then severity.
func (t *Tally) Counts() []Count {
	t.mu.Lock()
	out := make([]Count, 0, len(t.counts))
	for k, v := range t.counts {
		out = append(out, Count{Source: k.source, Severity: k.severity, Value: v})
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Severity < out[j].Severity
	})
	return out
}
