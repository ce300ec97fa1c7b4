package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/hochfrequenz/regression-orchestrator/internal/batch"
	"github.com/hochfrequenz/regression-orchestrator/internal/config"
	"github.com/hochfrequenz/regression-orchestrator/internal/domain"
	"github.com/hochfrequenz/regression-orchestrator/internal/notify"
	"github.com/hochfrequenz/regression-orchestrator/internal/regression"
	"github.com/hochfrequenz/regression-orchestrator/internal/runner"
	"github.com/hochfrequenz/regression-orchestrator/internal/runstore"
	"github.com/hochfrequenz/regression-orchestrator/internal/workspace"
	"github.com/hochfrequenz/regression-orchestrator/tui"
	"github.com/hochfrequenz/regression-orchestrator/web/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	req          domain.Request
	kind         string
	killDryRun   bool
	listProject  string
	listStatus   string
	listLimit    int
	scheduleFile string
	servePort    int
)

func init() {
	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)

	flags := rootCmd.Flags()
	flags.StringVarP(&req.Project, "project", "P", "", "project to regress")
	flags.StringVar(&kind, "kind", "", "regression kind (protection|sanity|random|all)")
	flags.IntVar(&req.Timeout, "timeout", domain.DefaultTimeout, "report monitor timeout in minutes")
	flags.StringVar(&req.NamePattern, "name", "", "test name pattern")
	flags.BoolVar(&req.SkipBuild, "skip_build", false, "skip the tree build")
	flags.StringArrayVar(&req.AndTags, "and_tag", nil, "tags every selected test must carry (-atag)")
	flags.StringArrayVar(&req.OrTags, "or_tag", nil, "tags of which a selected test carries one (-otag)")
	flags.StringArrayVar(&req.NotTags, "not_tag", nil, "tags that exclude a test (-ntag)")
	flags.Int64Var(&req.Seed, "seed", 0, "random seed (default current time)")
	flags.StringVar(&req.PublishDir, "publish_dir", "", "directory the report is published to")
	flags.StringVar(&req.SyndromeDir, "syndrome_dir", "", "syndrome directory for diagnosis")
	flags.StringVar(&req.WebDir, "web_dir", "", "metrics web directory")
	flags.StringVar(&req.LSFCommand, "lsf_command", "", "remote execution command (-lsf_cmd)")
	flags.StringVar(&req.PlotlyPython, "plotly_py_path", "", "interpreter for the metrics tool (-ppp)")
	flags.StringVar(&req.LevenshteinPython, "levenshtein_py_path", "", "interpreter for the diagnose tool (-lpp)")
	flags.BoolVar(&req.DryRun, "dry_run", false, "echo commands without running them")
	rootCmd.MarkFlagRequired("project")
	rootCmd.MarkFlagRequired("kind")

	// kill command
	killCmd := &cobra.Command{
		Use:   "kill RUN_DIR",
		Short: "Kill the still running tests of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  runKill,
	}
	killCmd.Flags().BoolVar(&killDryRun, "dry_run", false, "echo the kill command without running it")
	rootCmd.AddCommand(killCmd)

	// history commands
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded regression runs",
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistoryList,
	}
	listCmd.Flags().StringVar(&listProject, "project", "", "filter by project")
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status token")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum number of runs (0 for all)")
	showCmd := &cobra.Command{
		Use:   "show RUN_DIR",
		Short: "Show one run with its steps",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}
	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Browse the run history in a terminal dashboard",
		Args:  cobra.NoArgs,
		RunE:  runHistoryTUI,
	}
	tuiCmd.Flags().StringVar(&listProject, "project", "", "filter by project")
	historyCmd.AddCommand(listCmd, showCmd, tuiCmd)
	rootCmd.AddCommand(historyCmd)

	// schedule command
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run regressions on their cron schedule",
		Args:  cobra.NoArgs,
		RunE:  runSchedule,
	}
	scheduleCmd.Flags().StringVar(&scheduleFile, "file", "", "schedule file (default from config)")
	rootCmd.AddCommand(scheduleCmd)

	// serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run history API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() (*config.Config, error) {
	return config.LoadWithLocalFallback(configPath)
}

// buildRequest completes the flag-bound request
func buildRequest(cmd *cobra.Command) (domain.Request, error) {
	r := req
	k, err := domain.ParseKind(kind)
	if err != nil {
		return r, err
	}
	r.Kind = k
	if !cmd.Flags().Changed("seed") {
		r.Seed = time.Now().Unix()
	}
	if err := r.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

// openStore opens the run history. A missing database path disables it.
func openStore(cfg *config.Config) (*runstore.Store, error) {
	if cfg.General.DatabasePath == "" {
		return nil, nil
	}
	return runstore.New(cfg.General.DatabasePath)
}

// newOrchestrator wires the orchestrator from cfg. History problems are
// logged and the orchestrator runs without it.
func newOrchestrator(cfg *config.Config) (*regression.Orchestrator, func()) {
	opts := regression.Options{
		Root: cfg.Tree.Root,
		FindRoot: func() (string, error) {
			return workspace.Resolve(cfg.Tree.Root, cfg.Tree.Marker, cfg.Tree.MaxDepth)
		},
		Tree:     cfg.Tree,
		Tools:    cfg.Tools,
		Projects: cfg.General.Projects,
		Runner: runner.NewExec(runner.ExecConfig{
			Stdout: os.Stdout,
			Stderr: os.Stderr,
			Logger: logger,
		}),
		Stdout:   os.Stdout,
		Logger:   logger,
		Notifier: notify.New(cfg.Notifications),
	}

	closeFn := func() {}
	store, err := openStore(cfg)
	switch {
	case err != nil:
		logger.Warn("run history disabled", zap.Error(err))
	case store != nil:
		opts.History = store
		closeFn = func() { store.Close() }
	}
	return regression.New(opts), closeFn
}

func runRegression(cmd *cobra.Command, args []string) error {
	r, err := buildRequest(cmd)
	if err != nil {
		return &regression.ExitError{Code: 2, Err: err}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	orch, closeFn := newOrchestrator(cfg)
	defer closeFn()

	_, err = orch.Run(cmd.Context(), r)
	return err
}

func runKill(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	orch, closeFn := newOrchestrator(cfg)
	defer closeFn()

	code, err := orch.KillRunningTests(cmd.Context(), args[0], killDryRun)
	if err != nil {
		return err
	}
	if code != 0 {
		return &regression.ExitError{Code: code}
	}
	return nil
}

func requireStore(cfg *config.Config) (*runstore.Store, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("database_path not configured")
	}
	return store, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := requireStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(runstore.ListOptions{
		Project: listProject,
		Status:  domain.Status(listStatus),
		Limit:   listLimit,
	})
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}
	return writeRunTable(os.Stdout, runs)
}

func writeRunTable(out io.Writer, runs []*domain.Run) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN DIR\tKIND\tSTATUS\tEXIT\tSTARTED\tDURATION")
	for _, r := range runs {
		runDir := r.RunDir
		if runDir == "" {
			runDir = "-"
		}
		if r.DryRun {
			runDir += " (dry run)"
		}
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.Duration().Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			runDir, r.Kind, r.Status, r.ExitCode, humanize.Time(r.StartedAt), duration)
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := requireStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.GetRun(args[0])
	if err != nil {
		return err
	}
	return writeRunYAML(os.Stdout, run)
}

type runView struct {
	ID         string     `yaml:"id"`
	RunDir     string     `yaml:"run_dir,omitempty"`
	Project    string     `yaml:"project"`
	Kind       string     `yaml:"kind"`
	Seed       int64      `yaml:"seed"`
	DryRun     bool       `yaml:"dry_run"`
	Verdict    string     `yaml:"verdict,omitempty"`
	Status     string     `yaml:"status"`
	ExitCode   int        `yaml:"exit_code"`
	Error      string     `yaml:"error,omitempty"`
	StartedAt  time.Time  `yaml:"started_at"`
	FinishedAt *time.Time `yaml:"finished_at,omitempty"`
	Steps      []stepView `yaml:"steps,omitempty"`
}

type stepView struct {
	Step     string `yaml:"step"`
	ExitCode int    `yaml:"exit_code"`
	Error    string `yaml:"error,omitempty"`
	Duration string `yaml:"duration"`
}

func writeRunYAML(out io.Writer, r *domain.Run) error {
	view := runView{
		ID:         r.ID,
		RunDir:     r.RunDir,
		Project:    r.Project,
		Kind:       string(r.Kind),
		Seed:       r.Seed,
		DryRun:     r.DryRun,
		Verdict:    string(r.Verdict),
		Status:     string(r.Status),
		ExitCode:   r.ExitCode,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	for _, s := range r.Steps {
		view.Steps = append(view.Steps, stepView{
			Step:     string(s.Step),
			ExitCode: s.ExitCode,
			Error:    s.Error,
			Duration: s.Duration.Round(time.Millisecond).String(),
		})
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return err
	}
	return enc.Close()
}

func runHistoryTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := requireStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	model := tui.NewModel(tui.ModelConfig{
		Load: func() ([]*domain.Run, error) {
			return store.ListRuns(runstore.ListOptions{Project: listProject, Limit: 500})
		},
	})

	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := scheduleFile
	if path == "" {
		path = cfg.General.SchedulePath
	}
	path = config.ExpandPath(path)

	sc, err := batch.LoadScheduleConfig(path)
	if err != nil {
		return err
	}
	sched, err := batch.NewScheduler(sc.Entries, logger)
	if err != nil {
		return err
	}

	orch, closeFn := newOrchestrator(cfg)
	defer closeFn()

	watcher, err := batch.NewFileWatcher(path, func(p string) {
		next, err := batch.LoadScheduleConfig(p)
		if err == nil {
			err = sched.Reload(next.Entries)
		}
		if err != nil {
			logger.Warn("schedule reload failed, keeping previous schedule", zap.Error(err))
			return
		}
		logger.Info("schedule reloaded", zap.Int("entries", len(next.Entries)))
	}, logger)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	watcher.Start(ctx)
	defer watcher.Stop()

	for _, name := range sched.ListEntries() {
		logger.Info("regression scheduled",
			zap.String("name", name),
			zap.Time("next", sched.NextRun(name)))
	}

	sched.Start(ctx, func(ctx context.Context, e batch.Entry) error {
		_, err := orch.Run(ctx, e.Request(time.Now().Unix()))
		return err
	})
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := requireStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	port := servePort
	if port == 0 {
		port = cfg.Web.Port
	}

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, port)
	server := api.NewServer(store, addr)

	logger.Info("serving run history", zap.String("url", "http://"+addr+"/api/runs"))
	return server.Start(cmd.Context())
}
