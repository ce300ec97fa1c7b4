package domain

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrInterpreterNotFound is returned when an auxiliary interpreter path
// does not name a regular file
var ErrInterpreterNotFound = errors.New("interpreter not found")

// DefaultTimeout is the regression timeout in minutes
const DefaultTimeout = 720

// Request is one regression request, built once from the command line
type Request struct {
	Project     string
	Kind        Kind
	Timeout     int
	NamePattern string
	SkipBuild   bool
	AndTags     []string
	OrTags      []string
	NotTags     []string
	Seed        int64
	PublishDir  string
	SyndromeDir string
	WebDir      string
	LSFCommand  string
	// PlotlyPython runs the metrics tool when set
	PlotlyPython string
	// LevenshteinPython runs the diagnose tool when set
	LevenshteinPython string
	DryRun            bool
}

// Validate checks the kind and the auxiliary interpreter paths. The project
// is checked by the orchestrator so it can report its own status token.
func (r Request) Validate() error {
	if _, ok := r.Kind.Policy(); !ok {
		return fmt.Errorf("invalid kind %q", r.Kind)
	}
	for _, p := range []string{r.PlotlyPython, r.LevenshteinPython} {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			return fmt.Errorf("%w: %s", ErrInterpreterNotFound, p)
		}
	}
	return nil
}

// SelectionArgs returns the user selection flags forwarded to the plan tool
func (r Request) SelectionArgs() []string {
	var args []string
	if r.Timeout != 0 {
		args = append(args, "-timeout", strconv.Itoa(r.Timeout))
	}
	if r.NamePattern != "" {
		args = append(args, "-name", r.NamePattern)
	}
	args = appendTagFlag(args, "-atag", r.AndTags)
	args = appendTagFlag(args, "-otag", r.OrTags)
	args = appendTagFlag(args, "-ntag", r.NotTags)
	return append(args, "-seed", strconv.FormatInt(r.Seed, 10))
}

// MetricsName is the regression name handed to the metrics tool
func (r Request) MetricsName() string {
	return r.Project + "_" + string(r.Kind)
}

func appendTagFlag(args []string, flag string, tags []string) []string {
	if len(tags) == 0 {
		return args
	}
	args = append(args, flag)
	return append(args, tags...)
}
