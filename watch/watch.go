// Package watch wakes the poll loop early when a monitored directory changes.
// Polling stays authoritative; a missed event only delays counts until the next tick.
package watch

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Notifier watches the directories holding the source globs.
type Notifier struct {
	watcher *fsnotify.Watcher
	dirs    []string
	wake    chan struct{}
	log     *log.Entry
}

// New watches the parent directory of every glob. Directories that do not
// exist yet are skipped with a warning.
func New(globs []string) (*Notifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	n := &Notifier{
		watcher: w,
		wake:    make(chan struct{}, 1),
		log:     log.WithField("component", "watch"),
	}

	for _, dir := range watchDirs(globs) {
		if err := w.Add(dir); err != nil {
			n.log.WithError(err).WithField("dir", dir).Warn("Cannot watch directory")
			continue
		}
		n.dirs = append(n.dirs, dir)
	}
	return n, nil
}

// watchDirs returns the distinct directories to watch, expanding glob
// characters in directory components.
func watchDirs(globs []string) []string {
	set := make(map[string]bool)
	for _, g := range globs {
		dir := filepath.Dir(g)
		if strings.ContainsAny(dir, `*?[`) {
			matches, err := filepath.Glob(dir)
			if err != nil {
				continue
			}
			for _, m := range matches {
				set[m] = true
			}
			continue
		}
		set[dir] = true
	}

	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Dirs returns the directories being watched.
func (n *Notifier) Dirs() []string {
	return n.dirs
}

// Wake receives a value after one or more relevant file system events.
// Bursts are coalesced into a single pending signal.
func (n *Notifier) Wake() <-chan struct{} {
	return n.wake
}

// Run forwards events until ctx is cancelled, then closes the watcher.
func (n *Notifier) Run(ctx context.Context) {
	defer n.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			n.log.WithField("file", ev.Name).Trace(ev.Op.String())
			select {
			case n.wake <- struct{}{}:
			default:
			}
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.log.WithError(err).Warn("Watcher error")
		}
	}
}
