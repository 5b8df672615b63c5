// Package graphcheck validates comic graph documents from the command line.
package graphcheck

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
)

// ErrInvalidGraph is returned when at least one graph has hard errors.
var ErrInvalidGraph = errors.New("graph has validation errors")

// Config holds configuration for a graph check run.
type Config struct {
	Paths []string
	Print bool
}

// ParseConfig parses flags into a Config. Remaining arguments are graph files.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.BoolVar(&cfg.Print, "print", false, "print the normalized graph as canonical JSON")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Paths = fs.Args()
	if len(cfg.Paths) == 0 {
		return Config{}, errors.New("at least one graph file is required")
	}
	return cfg, nil
}

// Run checks every file and writes its report to out. Files that fail to load
// stop the run; files with validation errors are all reported before
// ErrInvalidGraph is returned.
func Run(cfg Config, out io.Writer) error {
	if out == nil {
		return errors.New("output is required")
	}
	invalid := 0
	for _, path := range cfg.Paths {
		g, err := graph.ReadFile(path)
		if err != nil {
			return err
		}
		report := graph.Validate(g)
		if cfg.Print {
			if err := printCanonical(out, g); err != nil {
				return fmt.Errorf("print %s: %w", path, err)
			}
		}
		if err := writeReport(out, path, report); err != nil {
			return err
		}
		if !report.Valid() {
			invalid++
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d files", ErrInvalidGraph, invalid, len(cfg.Paths))
	}
	return nil
}

func printCanonical(out io.Writer, g graph.Graph) error {
	data, err := graph.MarshalCanonical(g)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err = out.Write(buf.Bytes())
	return err
}

func writeReport(out io.Writer, path string, report graph.Report) error {
	state := "ok"
	if !report.Valid() {
		state = "invalid"
	}
	if _, err := fmt.Fprintf(out, "%s: %s (%d errors, %d warnings)\n", path, state, len(report.Errors), len(report.Warnings)); err != nil {
		return err
	}
	for _, issue := range report.Errors {
		if err := writeIssue(out, "error", issue); err != nil {
			return err
		}
	}
	for _, issue := range report.Warnings {
		if err := writeIssue(out, "warning", issue); err != nil {
			return err
		}
	}
	return nil
}

func writeIssue(out io.Writer, level string, issue graph.Issue) error {
	location := issue.NodeID
	if issue.ChoiceID != "" {
		location += "/" + issue.ChoiceID
	}
	_, err := fmt.Fprintf(out, "  %s %s [%s] %s\n", level, issue.Code, location, issue.Message)
	return err
}
