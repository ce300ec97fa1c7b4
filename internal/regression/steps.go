package regression

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hochfrequenz/regression-orchestrator/internal/runner"
	"go.uber.org/zap"
)

// BuildTree removes stale build artifacts, configures the tree and builds
// project. It returns the first non-zero tool exit code.
func (o *Orchestrator) BuildTree(ctx context.Context, project string, dryRun bool) (int, error) {
	root, err := o.Root()
	if err != nil {
		return -1, err
	}
	tree := o.opts.Tree

	setup := runner.Command{Dir: root}
	if len(tree.SetupCommand) > 0 {
		setup.Name, setup.Args = tree.SetupCommand[0], tree.SetupCommand[1:]
	}
	buildArgv := tree.BuildArgv(project)
	if len(buildArgv) == 0 {
		return -1, fmt.Errorf("no build command configured")
	}
	build := runner.Command{Name: buildArgv[0], Args: buildArgv[1:], Dir: root}

	if dryRun {
		if setup.Name != "" {
			fmt.Fprintf(o.out, "Tree setup command:%s\n", setup.String())
		}
		fmt.Fprintf(o.out, "Build command:%s\n", build.String())
		return 0, nil
	}

	if err := o.cleanTree(root); err != nil {
		return -1, err
	}

	if setup.Name != "" {
		code, err := o.invoke(ctx, "Tree setup command", setup, false)
		if err != nil {
			return -1, err
		}
		if code != 0 {
			o.logger.Warn("tree setup failed", zap.Int("exit_code", code))
			return code, nil
		}
	}

	return o.invoke(ctx, "Build command", build, false)
}

// cleanTree removes stale build descriptors and output directories,
// ignoring ones that do not exist
func (o *Orchestrator) cleanTree(root string) error {
	for _, name := range o.opts.Tree.StaleFiles {
		path := filepath.Join(root, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	for _, name := range o.opts.Tree.StaleDirs {
		path := filepath.Join(root, name)
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}

// RunPlan starts the test-plan runner. args carries the selection flags
// including the run directory.
func (o *Orchestrator) RunPlan(ctx context.Context, project, planName string, args []string, lsfCmd string, dryRun bool) (int, error) {
	root, err := o.Root()
	if err != nil {
		return -1, err
	}
	script, err := o.toolPath(o.opts.Tools.Plan)
	if err != nil {
		return -1, err
	}

	cmdArgs := []string{script, "-P", project, "--test_plan", planName}
	cmdArgs = append(cmdArgs, args...)
	if lsfCmd != "" {
		cmdArgs = append(cmdArgs, "-lsf_cmd", lsfCmd)
	}

	cmd := runner.Command{Name: o.opts.Tools.Python, Args: cmdArgs, Dir: root}
	return o.invoke(ctx, "Run command", cmd, dryRun)
}

// RunReport publishes and monitors the results of runDir
func (o *Orchestrator) RunReport(ctx context.Context, runDir, publishDir string, extraArgs, subMetrics []string, dryRun bool) (int, error) {
	root, err := o.Root()
	if err != nil {
		return -1, err
	}
	script, err := o.toolPath(o.opts.Tools.Report)
	if err != nil {
		return -1, err
	}

	cmdArgs := []string{script, "-run_dir", runDir}
	cmdArgs = appendPublish(cmdArgs, publishDir)
	cmdArgs = append(cmdArgs, extraArgs...)
	cmdArgs = append(cmdArgs, "-monitor")
	if len(subMetrics) > 0 {
		cmdArgs = append(cmdArgs, "-sub_metrics")
		cmdArgs = append(cmdArgs, subMetrics...)
	}

	cmd := runner.Command{Name: o.opts.Tools.Python, Args: cmdArgs, Dir: root}
	return o.invoke(ctx, "Status monitor command", cmd, dryRun)
}

// RunDiagnose clusters the failures of regrDir against the syndrome
// database. interpreter runs the tool when set; otherwise the tool is
// executed directly.
func (o *Orchestrator) RunDiagnose(ctx context.Context, regrDir, syndDir, publishDir, interpreter string, dryRun bool) (int, error) {
	root, err := o.Root()
	if err != nil {
		return -1, err
	}
	script, err := o.toolPath(o.opts.Tools.Diagnose)
	if err != nil {
		return -1, err
	}

	args := []string{"-regr_dir", regrDir}
	if syndDir != "" {
		args = append(args, "-synd_dir", syndDir)
	}
	args = appendPublish(args, publishDir)
	args = append(args, "-a", "diagnose")

	cmd := interpreted(interpreter, script, args)
	cmd.Dir = root
	return o.invoke(ctx, "Test diagnose command", cmd, dryRun)
}

// RunMetrics renders the dashboard for the regression name from dbDir into webDir
func (o *Orchestrator) RunMetrics(ctx context.Context, dbDir, webDir, name, interpreter string, dryRun bool) (int, error) {
	root, err := o.Root()
	if err != nil {
		return -1, err
	}
	script, err := o.toolPath(o.opts.Tools.Metrics)
	if err != nil {
		return -1, err
	}

	var args []string
	if dbDir != "" {
		args = append(args, "-db_dir", dbDir)
	}
	if webDir != "" {
		args = append(args, "-web_dir", webDir)
	}
	args = append(args, "-regression_name", name)
	cmd := interpreted(interpreter, script, args)
	cmd.Dir = root
	return o.invoke(ctx, "Metrics generation command", cmd, dryRun)
}

// KillRunningTests runs the kill script the plan runner generated in runDir
func (o *Orchestrator) KillRunningTests(ctx context.Context, runDir string, dryRun bool) (int, error) {
	root, err := o.Root()
	if err != nil {
		return -1, err
	}
	dir := runDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, runDir)
	}
	cmd := runner.Command{Name: filepath.Join(dir, o.opts.Tools.KillScript), Dir: dir}
	return o.invoke(ctx, "Kill still running tests", cmd, dryRun)
}

func appendPublish(args []string, publishDir string) []string {
	if publishDir == "" {
		return args
	}
	return append(args, "-publish_dir", publishDir, "-publish")
}

func interpreted(interpreter, script string, args []string) runner.Command {
	if interpreter == "" {
		return runner.Command{Name: script, Args: args}
	}
	return runner.Command{Name: interpreter, Args: append([]string{script}, args...)}
}
