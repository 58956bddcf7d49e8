// Package registry turns configured sources into compiled, immutable Sources.
package registry

import (
	"fmt"
	"path/filepath"
	"runtime"

	"logcount/pipelines/parsers"
	"logcount/tail"
	"logcount/types"
)

// Source is a monitored log stream ready for polling.
type Source struct {
	Name     string
	PathGlob string
	Grammar  *parsers.Grammar
	Charset  tail.Charset
}

// DefaultLogDir is where the agent writes its logs on this platform.
func DefaultLogDir() string {
	if runtime.GOOS == "windows" {
		return `C:\ProgramData\Infopercept\logs`
	}
	return "/var/log/infopercept"
}

// Defaults returns the built-in source list. Paths are relative to the log dir.
func Defaults() []types.Source {
	bracketed := func(name string) types.Source {
		return types.Source{Name: name, Path: name + "*.log", Grammar: parsers.Bracketed.String()}
	}
	delimited := func(name string) types.Source {
		return types.Source{Name: name, Path: name + ".log", Grammar: parsers.Delimited.String()}
	}

	return []types.Source{
		bracketed("ArStatusUpdate"),
		bracketed("IvsAgent"),
		bracketed("IvsSync"),
		bracketed("IvsTray"),
		delimited("osquery-install"),
		delimited("wazuh-install"),
	}
}

// Load compiles cfg in order. Any invalid entry fails the whole load.
func Load(cfg []types.Source, logDir string) ([]Source, error) {
	if len(cfg) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}

	seen := make(map[string]bool, len(cfg))
	out := make([]Source, 0, len(cfg))
	for i, c := range cfg {
		if c.Name == "" {
			return nil, fmt.Errorf("source #%d: name is required", i+1)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("source %q: duplicate name", c.Name)
		}
		seen[c.Name] = true

		src, err := compile(c, logDir)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", c.Name, err)
		}
		out = append(out, src)
	}
	return out, nil
}

func compile(c types.Source, logDir string) (Source, error) {
	if c.Path == "" {
		return Source{}, fmt.Errorf("path is required")
	}
	glob := c.Path
	if !filepath.IsAbs(glob) && logDir != "" {
		glob = filepath.Join(logDir, glob)
	}
	if _, err := filepath.Match(filepath.Base(glob), ""); err != nil {
		return Source{}, fmt.Errorf("path %q: %w", c.Path, err)
	}

	grammar := c.Grammar
	if grammar == "" {
		grammar = parsers.Bracketed.String()
	}
	kind, err := parsers.ParseKind(grammar)
	if err != nil {
		return Source{}, err
	}
	g, err := parsers.NewGrammar(kind, c.Pattern, c.TimeFormat)
	if err != nil {
		return Source{}, err
	}

	cs, err := tail.LookupCharset(c.Encoding)
	if err != nil {
		return Source{}, err
	}

	return Source{Name: c.Name, PathGlob: glob, Grammar: g, Charset: cs}, nil
}

// Describe converts loaded sources back to their effective config form.
func Describe(sources []Source) []types.Source {
	out := make([]types.Source, 0, len(sources))
	for _, s := range sources {
		out = append(out, types.Source{
			Name:       s.Name,
			Path:       s.PathGlob,
			Grammar:    s.Grammar.Kind.String(),
			Pattern:    s.Grammar.Pattern(),
			TimeFormat: s.Grammar.TimeLayout,
			Encoding:   s.Charset.String(),
		})
	}
	return out
}
