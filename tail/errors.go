package tail

import "fmt"

// UnavailableError reports a file that could not be opened, positioned or read.
// It is scoped to a single file; the caller retries on its next poll.
type UnavailableError struct {
	Op   string
	Path string
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("source unavailable: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
