package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mgutz/ansi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"logcount/offsets"
	"logcount/pipelines"
	"logcount/registry"
	"logcount/service"
)

var (
	scanSources []string
	scanNoColor bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Count every source once from the start of its files and print a report",
	Args:  cobra.NoArgs,
	RunE:  RunScan,
}

func init() {
	scanCmd.Flags().StringSliceVar(&scanSources, "source", nil, "only scan the named source (repeatable)")
	scanCmd.Flags().BoolVar(&scanNoColor, "no-color", false, "disable coloured output")
}

func RunScan(cmd *cobra.Command, args []string) error {
	sources, err := loadSources()
	if err != nil {
		return err
	}
	sources, err = filterSources(sources, scanSources)
	if err != nil {
		return err
	}

	tally := pipelines.NewTally()
	driver := service.New(sources, offsets.NewStore(), tally, service.Options{Workers: viper.GetInt("workers")})
	rep := driver.Cycle(context.Background())

	ansi.DisableColors(scanNoColor)
	printTally(cmd.OutOrStdout(), tally.Counts(), rep)
	return nil
}

func filterSources(sources []registry.Source, names []string) ([]registry.Source, error) {
	if len(names) == 0 {
		return sources, nil
	}
	byName := make(map[string]registry.Source, len(sources))
	for _, s := range sources {
		byName[s.Name] = s
	}
	out := make([]registry.Source, 0, len(names))
	for _, n := range names {
		s, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", n)
		}
		out = append(out, s)
	}
	return out, nil
}

func severityColor(severity string) string {
	switch strings.ToUpper(severity) {
	case "ERROR", "FATAL", "CRITICAL":
		return "red+b"
	case "WARN", "WARNING":
		return "yellow"
	case "DEBUG", "TRACE", "VERBOSE":
		return "cyan"
	case "UNKNOWN":
		return "magenta"
	default:
		return "green"
	}
}

func printTally(w io.Writer, counts []pipelines.Count, rep service.Report) {
	width := len("SOURCE")
	for _, c := range counts {
		if len(c.Source) > width {
			width = len(c.Source)
		}
	}

	fmt.Fprintf(w, "%-*s  %-10s  %s\n", width, "SOURCE", "SEVERITY", "COUNT")
	for _, c := range counts {
		sev := ansi.Color(fmt.Sprintf("%-10s", c.Severity), severityColor(c.Severity))
		fmt.Fprintf(w, "%-*s  %s  %d\n", width, c.Source, sev, c.Value)
	}
	fmt.Fprintf(w, "\n%d files, %d lines, %d counted, %d unknown, %d bad timestamps, %d errors\n",
		rep.Files, rep.Lines, rep.Counted, rep.Unknown, rep.BadTimes, rep.Errors)
}
