// Package logger configures the logrus standard logger used across logcount.
package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config selects level (trace, debug, info, warn, error), format (text, json)
// and output (stdout, stderr, file).
type Config struct {
	Level  string
	Format string
	Output string
	File   string
}

var (
	mu      sync.Mutex
	current io.Closer
)

// Initialize applies cfg to the standard logger. It may be called again; a
// previously opened log file is flushed and closed.
func Initialize(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var formatter logrus.Formatter
	switch cfg.Format {
	case "", "text":
		formatter = &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		}
	case "json":
		formatter = &logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		}
	default:
		return fmt.Errorf("invalid log format %q: must be json or text", cfg.Format)
	}

	var writer io.Writer
	var closer io.Closer
	switch cfg.Output {
	case "", "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	case "file":
		if cfg.File == "" {
			return fmt.Errorf("log.file must be set when log.output is file")
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", cfg.File, err)
		}
		bw := &bufferedFile{Writer: bufio.NewWriterSize(f, 64*1024), file: f}
		writer, closer = bw, bw
	default:
		return fmt.Errorf("invalid log output %q: must be stdout, stderr, or file", cfg.Output)
	}

	if current != nil {
		if err := current.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close previous log file: %v\n", err)
		}
	}
	current = closer

	logrus.SetLevel(lvl)
	logrus.SetFormatter(formatter)
	logrus.SetOutput(writer)
	return nil
}

// bufferedFile flushes its buffer before closing the file.
type bufferedFile struct {
	*bufio.Writer
	mu   sync.Mutex
	file *os.File
}

func (b *bufferedFile) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Writer.Write(p)
}

func (b *bufferedFile) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.Flush(); err != nil {
		b.file.Close()
		return fmt.Errorf("failed to flush log buffer: %w", err)
	}
	return b.file.Close()
}

// Close flushes and closes the log file, if any, and points logrus back at stderr.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return nil
	}
	logrus.SetOutput(os.Stderr)
	err := current.Close()
	current = nil
	return err
}
