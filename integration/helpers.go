//go:build integration

package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// binaryPath builds the CLI once per test binary run
func binaryPath(t *testing.T) string {
	t.Helper()
	if p := os.Getenv("RUN_REGRESSION_BIN"); p != "" {
		abs, _ := filepath.Abs(p)
		return abs
	}

	out := filepath.Join(os.TempDir(), "run-regression-integration")
	cmd := exec.Command("go", "build", "-o", out, "../cmd/run-regression")
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, b)
	}
	return out
}

// fakeTree is a tree root whose tools are shell scripts that log their
// arguments to calls.log
type fakeTree struct {
	Root string
	DB   string
}

const toolScript = `#!/bin/sh
echo "$(basename "$0") $*" >> "$TREE_ROOT/calls.log"
exit ${%s:-0}
`

// newFakeTree lays out a tree with a LICENSE marker and one script per tool
func newFakeTree(t *testing.T) *fakeTree {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"LICENSE":                     "fake\n",
		"tree.make":                   "stale\n",
		"outdir/old.log":              "stale\n",
		"tools/bin/tmake":             script("FAKE_BUILD_EXIT"),
		"verif/tools/run_plan.py":     script("FAKE_PLAN_EXIT"),
		"verif/tools/run_report.py":   script("FAKE_REPORT_EXIT"),
		"verif/tools/run_diagnose.py": script("FAKE_DIAGNOSE_EXIT"),
		"verif/tools/run_metrics.py":  script("FAKE_METRICS_EXIT"),
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0755); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	return &fakeTree{Root: root, DB: filepath.Join(t.TempDir(), "runs.db")}
}

func script(exitVar string) string {
	return strings.Replace(toolScript, "%s", exitVar, 1)
}

// writeConfig writes a config that runs the plan and report scripts with sh
func (f *fakeTree) writeConfig(t *testing.T, explicitRoot bool) string {
	t.Helper()
	root := ""
	if explicitRoot {
		root = f.Root
	}

	config := `[general]
projects = ["nv_small", "nv_small_256"]
database_path = "` + f.DB + `"

[tree]
root = "` + root + `"
setup_command = ["true"]
build_command = ["./tools/bin/tmake", "-build", "ready_for_test", "-project", "{project}"]

[tools]
python = "sh"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(config), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

// calls returns the logged tool invocations
func (f *fakeTree) calls(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.Root, "calls.log"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("Failed to read calls.log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// result is one CLI invocation
type result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// run executes the binary in dir with extra environment
func run(t *testing.T, dir string, env []string, args ...string) result {
	t.Helper()
	cmd := exec.Command(binaryPath(t), args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		t.Fatalf("Failed to run binary: %v", err)
	}
	return result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: code}
}
