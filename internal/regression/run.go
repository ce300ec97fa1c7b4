package regression

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/hochfrequenz/regression-orchestrator/internal/domain"
	"github.com/hochfrequenz/regression-orchestrator/internal/notify"
	"go.uber.org/zap"
)

// Run executes one regression: build, plan, report, diagnose, metrics.
// Plan and report failures are recorded and the run continues so that
// diagnosis and the dashboard still happen; build, diagnose and metrics
// failures end the run. The returned record is always non-nil. A failed
// run also returns an *ExitError.
func (o *Orchestrator) Run(ctx context.Context, req domain.Request) (*domain.Run, error) {
	run := &domain.Run{
		ID:        uuid.NewString(),
		Project:   req.Project,
		Kind:      req.Kind,
		Seed:      req.Seed,
		DryRun:    req.DryRun,
		StartedAt: o.now(),
	}
	logger := o.logger.With(
		zap.String("run_id", run.ID),
		zap.String("project", req.Project),
		zap.String("kind", string(req.Kind)))

	err := o.run(ctx, logger, req, run)
	o.finish(logger, run, err)
	return run, err
}

func (o *Orchestrator) run(ctx context.Context, logger *zap.Logger, req domain.Request, run *domain.Run) error {
	if !o.SupportsProject(req.Project) {
		return o.fail(domain.StatusUnknownProject, 1, fmt.Errorf("%w: %q", ErrUnknownProject, req.Project))
	}
	// Kind and interpreter paths are checked before anything is dispatched.
	if err := req.Validate(); err != nil {
		return o.fail(domain.StatusUnknownReason, 2, err)
	}
	policy, _ := req.Kind.Policy()

	if !req.SkipBuild {
		logger.Info("building tree")
		code, err := o.step(run, domain.StepBuild, func() (int, error) {
			return o.BuildTree(ctx, req.Project, req.DryRun)
		})
		if err != nil {
			return o.fail(domain.StatusUnknownReason, 1, fmt.Errorf("build: %w", err))
		}
		if code != 0 {
			return o.fail(domain.StatusTreeBuildFail, code, &stepError{step: domain.StepBuild, code: code})
		}
	}

	run.RunDir = domain.RunDirName(req.Project, o.now())
	logger = logger.With(zap.String("run_dir", run.RunDir))

	planArgs := policy.PlanArgs()
	planArgs = append(planArgs, req.SelectionArgs()...)
	planArgs = append(planArgs, "-run_dir", run.RunDir)

	logger.Info("running plan")
	planCode, err := o.step(run, domain.StepPlan, func() (int, error) {
		return o.RunPlan(ctx, req.Project, req.Project, planArgs, req.LSFCommand, req.DryRun)
	})
	if err != nil {
		return o.fail(domain.StatusUnknownReason, 1, fmt.Errorf("plan: %w", err))
	}

	reportArgs := []string{"-monitor_timeout", strconv.Itoa(req.Timeout)}
	logger.Info("monitoring results")
	reportCode, err := o.step(run, domain.StepReport, func() (int, error) {
		return o.RunReport(ctx, run.RunDir, req.PublishDir, reportArgs, policy.SubMetrics, req.DryRun)
	})
	if err != nil {
		return o.fail(domain.StatusUnknownReason, 1, fmt.Errorf("report: %w", err))
	}

	run.Verdict = domain.StatusPass
	if planCode != 0 || reportCode != 0 {
		run.Verdict = domain.StatusFail
		logger.Warn("regression failed", zap.Int("plan_exit", planCode), zap.Int("report_exit", reportCode))
	}
	o.status(run.Verdict)

	logger.Info("diagnosing failures")
	code, err := o.step(run, domain.StepDiagnose, func() (int, error) {
		return o.RunDiagnose(ctx, run.RunDir, req.SyndromeDir, req.PublishDir, req.LevenshteinPython, req.DryRun)
	})
	if err != nil {
		return o.fail(domain.StatusCannotRunDiagnose, 1, fmt.Errorf("diagnose: %w", err))
	}
	if code != 0 {
		return o.fail(domain.StatusCannotRunDiagnose, code, &stepError{step: domain.StepDiagnose, code: code})
	}

	logger.Info("generating metrics")
	code, err = o.step(run, domain.StepMetrics, func() (int, error) {
		return o.RunMetrics(ctx, req.PublishDir, req.WebDir, req.MetricsName(), req.PlotlyPython, req.DryRun)
	})
	if err != nil {
		return o.fail(domain.StatusCannotGenerateMetric, 1, fmt.Errorf("metrics: %w", err))
	}
	if code != 0 {
		return o.fail(domain.StatusCannotGenerateMetric, code, &stepError{step: domain.StepMetrics, code: code})
	}

	o.status(domain.StatusComplete)
	return nil
}

// step times fn and appends its outcome to run
func (o *Orchestrator) step(run *domain.Run, step domain.Step, fn func() (int, error)) (int, error) {
	start := o.now()
	code, err := fn()
	result := domain.StepResult{
		Step:      step,
		ExitCode:  code,
		StartedAt: start,
		Duration:  o.now().Sub(start),
	}
	if err != nil {
		result.Error = err.Error()
	}
	run.Steps = append(run.Steps, result)
	return code, err
}

// fail prints the status token and wraps cause
func (o *Orchestrator) fail(status domain.Status, code int, cause error) error {
	o.status(status)
	return &ExitError{Status: status, Code: code, Err: cause}
}

// finish stamps the run, then records and announces it. History and
// notification errors are logged only.
func (o *Orchestrator) finish(logger *zap.Logger, run *domain.Run, err error) {
	finished := o.now()
	run.FinishedAt = &finished
	run.Status = domain.StatusComplete
	run.ExitCode = ExitCode(err)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		run.Status = exitErr.Status
	}
	if err != nil {
		run.Error = err.Error()
		logger.Error("regression ended", zap.String("status", string(run.Status)), zap.Error(err))
	} else {
		logger.Info("regression complete", zap.String("verdict", string(run.Verdict)))
	}

	if o.opts.History != nil {
		if herr := o.opts.History.SaveRun(run); herr != nil {
			logger.Warn("saving run history failed", zap.Error(herr))
		}
	}
	if run.DryRun {
		return
	}
	if nerr := o.opts.Notifier.Send(notificationFor(run)); nerr != nil {
		logger.Warn("sending notification failed", zap.Error(nerr))
	}
}

func notificationFor(run *domain.Run) notify.Notification {
	n := notify.Notification{
		Title:  fmt.Sprintf("%s %s regression: %s", run.Project, run.Kind, run.Status),
		RunDir: run.RunDir,
		Type:   notify.NotifySuccess,
	}
	switch {
	case run.Status.Failed():
		n.Type = notify.NotifyError
		n.Message = run.Error
	case run.Verdict == domain.StatusFail:
		n.Type = notify.NotifyWarning
		n.Message = "Tests failed; diagnosis and metrics were published."
	default:
		n.Message = "All selected tests passed."
	}
	return n
}
