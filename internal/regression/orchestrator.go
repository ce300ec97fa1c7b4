// Package regression drives one hardware regression through the external
// build, plan, report, diagnose and metrics tools.
package regression

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/hochfrequenz/regression-orchestrator/internal/config"
	"github.com/hochfrequenz/regression-orchestrator/internal/domain"
	"github.com/hochfrequenz/regression-orchestrator/internal/notify"
	"github.com/hochfrequenz/regression-orchestrator/internal/runner"
	"go.uber.org/zap"
)

// History persists finished runs
type History interface {
	SaveRun(run *domain.Run) error
}

// Options configures an Orchestrator
type Options struct {
	// Root is the tree root. When empty, FindRoot is called on first use.
	Root     string
	FindRoot func() (string, error)

	Tree     config.TreeConfig
	Tools    config.ToolsConfig
	Projects []string

	Runner   runner.Runner
	Stdout   io.Writer
	Logger   *zap.Logger
	History  History
	Notifier notify.Notifier
	Now      func() time.Time
}

// Orchestrator runs regressions. Runs are sequential; Run must not be
// called concurrently on the same Orchestrator.
type Orchestrator struct {
	opts   Options
	out    io.Writer
	logger *zap.Logger
	now    func() time.Time

	rootOnce sync.Once
	root     string
	rootErr  error
}

// New creates an Orchestrator
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		opts:   opts,
		out:    opts.Stdout,
		logger: opts.Logger,
		now:    opts.Now,
	}
	if o.out == nil {
		o.out = io.Discard
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.opts.Notifier == nil {
		o.opts.Notifier = notify.NoopNotifier{}
	}
	return o
}

// SupportsProject reports whether project may be regressed
func (o *Orchestrator) SupportsProject(project string) bool {
	return slices.Contains(o.opts.Projects, project)
}

// Root returns the tree root, locating it once
func (o *Orchestrator) Root() (string, error) {
	o.rootOnce.Do(func() {
		switch {
		case o.opts.Root != "":
			o.root = o.opts.Root
		case o.opts.FindRoot != nil:
			o.root, o.rootErr = o.opts.FindRoot()
		default:
			o.rootErr = fmt.Errorf("no tree root configured")
		}
	})
	return o.root, o.rootErr
}

func (o *Orchestrator) toolPath(rel string) (string, error) {
	root, err := o.Root()
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(rel) {
		return rel, nil
	}
	return filepath.Join(root, rel), nil
}

// invoke echoes cmd under label and runs it unless dryRun
func (o *Orchestrator) invoke(ctx context.Context, label string, cmd runner.Command, dryRun bool) (int, error) {
	fmt.Fprintf(o.out, "%s:%s\n", label, cmd.String())
	if dryRun {
		o.logger.Debug("dry run, command skipped", zap.String("cmd", cmd.Name))
		return 0, nil
	}
	return o.opts.Runner.Run(ctx, cmd)
}

func (o *Orchestrator) status(s domain.Status) {
	fmt.Fprintln(o.out, s)
}
