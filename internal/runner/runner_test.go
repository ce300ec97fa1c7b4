package runner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func TestExec_Run_SimpleCommand(t *testing.T) {
	skipWithoutShell(t)
	var out bytes.Buffer
	r := NewExec(ExecConfig{Stdout: &out})

	code, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo hello"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if code != 0 {
		t.Errorf("got exit code %d, want 0", code)
	}
	if out.String() != "hello\n" {
		t.Errorf("got output %q, want %q", out.String(), "hello\n")
	}
}

func TestExec_Run_NonZeroExitCode(t *testing.T) {
	skipWithoutShell(t)
	r := NewExec(ExecConfig{})

	code, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "exit 42"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if code != 42 {
		t.Errorf("got exit code %d, want 42", code)
	}
}

func TestExec_Run_WorkingDirectory(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	var out bytes.Buffer
	r := NewExec(ExecConfig{Stdout: &out})

	before, _ := os.Getwd()
	if _, err := r.Run(context.Background(), Command{Name: "pwd", Dir: dir}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	after, _ := os.Getwd()

	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(out.String()))
	if got != want {
		t.Errorf("child ran in %q, want %q", got, want)
	}
	if before != after {
		t.Errorf("process working directory changed from %q to %q", before, after)
	}
}

func TestExec_Run_Stderr(t *testing.T) {
	skipWithoutShell(t)
	var stdout, stderr bytes.Buffer
	r := NewExec(ExecConfig{Stdout: &stdout, Stderr: &stderr})

	if _, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo oops >&2"}}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
	if stderr.String() != "oops\n" {
		t.Errorf("stderr = %q, want %q", stderr.String(), "oops\n")
	}
}

func TestExec_Run_MissingBinary(t *testing.T) {
	r := NewExec(ExecConfig{})

	if _, err := r.Run(context.Background(), Command{Name: "/nonexistent/run_plan.py"}); err == nil {
		t.Error("Run should fail for a missing binary")
	}
}

func TestExec_Run_Cancelled(t *testing.T) {
	skipWithoutShell(t)
	r := NewExec(ExecConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Run(ctx, Command{Name: "sh", Args: []string{"-c", "sleep 30"}})
	if err == nil {
		t.Fatal("Run should fail when the context is cancelled")
	}
	if time.Since(start) > 10*time.Second {
		t.Errorf("cancellation took %v", time.Since(start))
	}
}

func TestCommand_String(t *testing.T) {
	cmd := Command{
		Name: "python3",
		Args: []string{"verif/tools/run_plan.py", "-P", "nv_small", "-lsf_cmd", "bsub -q normal", "-name", ""},
	}

	want := `python3 verif/tools/run_plan.py -P nv_small -lsf_cmd 'bsub -q normal' -name ''`
	if got := cmd.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{Result: func(cmd Command) (int, error) {
		if cmd.Name == "fail" {
			return 3, nil
		}
		return 0, nil
	}}

	code, _ := rec.Run(context.Background(), Command{Name: "ok"})
	if code != 0 {
		t.Errorf("ok exit = %d, want 0", code)
	}
	code, _ = rec.Run(context.Background(), Command{Name: "fail"})
	if code != 3 {
		t.Errorf("fail exit = %d, want 3", code)
	}
	if len(rec.Commands()) != 2 {
		t.Errorf("recorded %d commands, want 2", len(rec.Commands()))
	}
}
