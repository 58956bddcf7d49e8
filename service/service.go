package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	lf "github.com/sirupsen/logrus"

	"logcount/offsets"
	"logcount/pipelines"
	"logcount/pipelines/parsers"
	"logcount/registry"
	"logcount/tail"
)

// Diagnostic kinds reported to the Observer.
const (
	KindExpand    = "pattern_expansion"
	KindOpen      = "source_unavailable"
	KindTimestamp = "timestamp"
	KindOffset    = "offset"
)

// Observer receives poll diagnostics. All methods must be safe for concurrent use.
type Observer interface {
	SourceError(source, kind string)
	BytesConsumed(source string, n uint64)
	CycleDone(d time.Duration, trackedFiles int)
}

type nopObserver struct{}

func (nopObserver) SourceError(string, string)   {}
func (nopObserver) BytesConsumed(string, uint64) {}
func (nopObserver) CycleDone(time.Duration, int) {}

// ExpandError reports a source whose path pattern could not be expanded.
type ExpandError struct {
	Source  string
	Pattern string
	Err     error
}

func (e *ExpandError) Error() string {
	return fmt.Sprintf("source %s: expand %q: %v", e.Source, e.Pattern, e.Err)
}

func (e *ExpandError) Unwrap() error { return e.Err }

// Report summarises one cycle.
type Report struct {
	Sources   int
	Files     int
	Lines     int
	Counted   int
	Unknown   int
	BadTimes  int
	Errors    int
	BytesRead uint64
	Truncated int
	Replaced  int
	Renamed   int
	Forgotten int
}

func (r *Report) add(o Report) {
	r.Sources += o.Sources
	r.Files += o.Files
	r.Lines += o.Lines
	r.Counted += o.Counted
	r.Unknown += o.Unknown
	r.BadTimes += o.BadTimes
	r.Errors += o.Errors
	r.BytesRead += o.BytesRead
	r.Truncated += o.Truncated
	r.Replaced += o.Replaced
	r.Renamed += o.Renamed
	r.Forgotten += o.Forgotten
}

// Options tune a Driver. The zero value polls sources one at a time.
type Options struct {
	Workers  int
	Observer Observer
}

type source struct {
	registry.Source
	absGlob    string
	classifier *pipelines.Classifier
}

// Driver runs poll cycles over a fixed set of sources.
type Driver struct {
	sources  []source
	store    *offsets.Store
	workers  int
	observer Observer
	log      *lf.Entry
}

func New(sources []registry.Source, store *offsets.Store, sink pipelines.Sink, opts Options) *Driver {
	d := &Driver{
		store:    store,
		workers:  opts.Workers,
		observer: opts.Observer,
		log:      lf.WithField("component", "poller"),
	}
	if d.workers < 1 {
		d.workers = 1
	}
	if d.observer == nil {
		d.observer = nopObserver{}
	}
	for _, s := range sources {
		abs, err := filepath.Abs(s.PathGlob)
		if err != nil {
			abs = s.PathGlob
		}
		d.sources = append(d.sources, source{
			Source:     s,
			absGlob:    abs,
			classifier: pipelines.NewClassifier(s.Name, s.Grammar, sink),
		})
	}
	return d
}

// Expand resolves glob to absolute paths in lexicographic order.
func Expand(name, glob string) ([]string, error) {
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil, &ExpandError{Source: name, Pattern: glob, Err: err}
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		abs, err := filepath.Abs(m)
		if err != nil {
			return nil, &ExpandError{Source: name, Pattern: glob, Err: err}
		}
		out = append(out, abs)
	}
	sort.Strings(out)
	return out, nil
}

// Cycle polls every source once. Failures are logged and counted per source or
// file and never stop the cycle.
func (d *Driver) Cycle(ctx context.Context) Report {
	start := time.Now()
	var (
		mu    sync.Mutex
		total Report
		wg    sync.WaitGroup
		sem   = make(chan struct{}, d.workers)
	)

	for i := range d.sources {
		if ctx.Err() != nil {
			break
		}
		src := &d.sources[i]
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			rep := d.pollSource(src)
			mu.Lock()
			total.add(rep)
			mu.Unlock()
		}()
	}
	wg.Wait()

	d.observer.CycleDone(time.Since(start), d.store.Len())
	return total
}

func (d *Driver) pollSource(src *source) Report {
	rep := Report{Sources: 1}
	log := d.log.WithField("source", src.Name)

	paths, err := Expand(src.Name, src.PathGlob)
	if err != nil {
		log.WithError(err).Error("Cannot expand path pattern")
		d.observer.SourceError(src.Name, KindExpand)
		rep.Errors++
		return rep
	}

	rep.Renamed = d.followRenames(paths, log)
	rep.Forgotten = d.forgetMissing(src, paths, log)

	for _, path := range paths {
		frep, err := d.pollFile(src, path, log.WithField("file", path))
		rep.add(frep)
		if err != nil {
			rep.Errors++
			var unavailable *tail.UnavailableError
			if errors.As(err, &unavailable) {
				log.WithField("file", path).Warn(err)
				d.observer.SourceError(src.Name, KindOpen)
			} else {
				log.WithField("file", path).Error(err)
				d.observer.SourceError(src.Name, KindOffset)
			}
		}
	}
	return rep
}

// followRenames carries stored progress over to unseen paths that are a
// tracked file rotated to a new name, e.g. IvsAgent.log moved to
// IvsAgent.1.log and recreated.
// It runs before any path of the source is polled, so the entry under the old
// name still holds the old identity.
func (d *Driver) followRenames(paths []string, log *lf.Entry) int {
	n := 0
	for _, path := range paths {
		if _, seen := d.store.Get(path); seen {
			continue
		}
		fi, err := os.Stat(path)
		if err != nil || fi.IsDir() {
			continue
		}
		id := tail.FileID(path, fi)
		prev, entry, ok := d.store.FindByFileID(id, path)
		if !ok {
			continue
		}
		// The old name must now hold a different file. A vanished old name is
		// not trusted: the identity may be a reused inode of a deleted log.
		pfi, err := os.Stat(prev)
		if err != nil || tail.FileID(prev, pfi) == id {
			continue
		}

		unlock := d.store.Lock(path)
		err = d.store.Set(path, entry)
		unlock()
		if err != nil {
			continue
		}
		log.WithFields(lf.Fields{"file": path, "from": prev, "offset": entry.Offset}).Info("File renamed, continuing from stored offset")
		n++
	}
	return n
}

// forgetMissing drops tracked paths that match the source pattern but no
// longer exist.
func (d *Driver) forgetMissing(src *source, live []string, log *lf.Entry) int {
	keep := make(map[string]bool, len(live))
	for _, p := range live {
		keep[p] = true
	}
	n := 0
	for _, path := range d.store.Paths() {
		if keep[path] {
			continue
		}
		if ok, _ := filepath.Match(src.absGlob, path); !ok {
			continue
		}
		d.store.Forget(path)
		log.WithField("file", path).Debug("File gone, offset dropped")
		n++
	}
	return n
}

// ForgetUnmatched drops tracked paths no source pattern matches, such as
// entries restored from a checkpoint written under an older configuration.
func (d *Driver) ForgetUnmatched() int {
	n := 0
	for _, path := range d.store.Paths() {
		matched := false
		for i := range d.sources {
			if ok, _ := filepath.Match(d.sources[i].absGlob, path); ok {
				matched = true
				break
			}
		}
		if !matched {
			d.store.Forget(path)
			n++
		}
	}
	if n > 0 {
		d.log.WithField("files", n).Info("Dropped offsets of unmonitored files")
	}
	return n
}

func (d *Driver) pollFile(src *source, path string, log *lf.Entry) (Report, error) {
	var rep Report

	fi, err := os.Stat(path)
	if err != nil {
		return rep, &tail.UnavailableError{Op: "stat", Path: path, Err: err}
	}
	if fi.IsDir() {
		return rep, nil
	}
	rep.Files = 1
	size := uint64(fi.Size())
	id := tail.FileID(path, fi)

	unlock := d.store.Lock(path)
	defer unlock()

	entry, seen := d.store.Get(path)
	switch {
	case seen && entry.FileID != 0 && id != 0 && entry.FileID != id:
		log.WithField("offset", entry.Offset).Info("File replaced, rereading from start")
		d.store.Reset(path, id)
		entry = offsets.Entry{FileID: id}
		rep.Replaced++
	case size < entry.Offset:
		log.WithFields(lf.Fields{"offset": entry.Offset, "size": size}).Info("File truncated, rereading from start")
		d.store.Reset(path, id)
		entry = offsets.Entry{FileID: id}
		rep.Truncated++
	case seen && size == entry.Offset:
		return rep, nil
	}

	r, err := tail.Open(path, entry.Offset, src.Charset)
	if err != nil {
		return rep, err
	}
	defer r.Close()

	st := pipelines.State{InContinuation: entry.InContinuation, Severity: entry.Severity}
	for r.Scan() {
		if rep.Lines == 0 && log.Logger.IsLevelEnabled(lf.TraceLevel) {
			log.WithFields(lf.Fields{"charset": r.Charset(), "offset": entry.Offset}).Tracef("first raw line % x", r.Bytes())
		}
		rep.Lines++

		outcome, err := src.classifier.Classify(&st, r.Text())
		switch outcome {
		case pipelines.InvalidTimestamp:
			rep.BadTimes++
			d.observer.SourceError(src.Name, KindTimestamp)
			var tsErr *parsers.TimestampError
			if errors.As(err, &tsErr) {
				log.WithField("value", tsErr.Value).Warn("Failed to parse time")
			}
		case pipelines.Unknown:
			rep.Unknown++
			log.WithField("line", r.Text()).Debug("Line matched no grammar")
		}
		if outcome.Counted() {
			rep.Counted++
		}
	}

	// Lines read before a read error were counted; keep their progress.
	consumed := r.Consumed()
	rep.BytesRead = consumed
	d.observer.BytesConsumed(src.Name, consumed)

	next := offsets.Entry{
		Offset:         entry.Offset + consumed,
		FileID:         id,
		InContinuation: st.InContinuation,
		Severity:       st.Severity,
	}
	if err := d.store.Set(path, next); err != nil {
		return rep, err
	}
	return rep, r.Err()
}

// Run polls every interval until ctx is cancelled. A value on wake, or a
// scrape request on scrapes, triggers an immediate cycle; scrape channels are
// closed once that cycle completes. Either channel may be nil.
func (d *Driver) Run(ctx context.Context, interval time.Duration, scrapes <-chan chan struct{}, wake <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.ForgetUnmatched()
	d.log.WithFields(lf.Fields{"sources": len(d.sources), "interval": interval}).Info("Poll loop started")
	d.Cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			d.log.Info("Poll loop stopped")
			return
		case <-ticker.C:
			d.Cycle(ctx)
		case <-wake:
			d.Cycle(ctx)
		case done := <-scrapes:
			d.Cycle(ctx)
			close(done)
		}
	}
}
