package parsers

import "regexp"

var (
	// "   at Foo.Bar()" frames of .NET / Java stack traces.
	stackFrame = regexp.MustCompile(`^\s+at\s`)
	// "System.IO.IOException: ..." headers.
	exceptionHeader = regexp.MustCompile(`^\s*(?:[A-Z][A-Za-z0-9_]*\.)*[A-Z][A-Za-z0-9_]*Exception:`)
)

// IsContinuation reports whether line extends the previous structured event
// rather than starting a new one.
func IsContinuation(line string) bool {
	return stackFrame.MatchString(line) || exceptionHeader.MatchString(line)
}
