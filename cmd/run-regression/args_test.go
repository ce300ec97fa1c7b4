package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hochfrequenz/regression-orchestrator/internal/regression"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "single dash long flags",
			args: []string{"-P", "nv_small", "-kind", "sanity", "-timeout", "30", "-dry_run"},
			want: []string{"-P", "nv_small", "--kind", "sanity", "--timeout", "30", "--dry_run"},
		},
		{
			name: "list flags expand",
			args: []string{"--and_tag", "a", "--and_tag", "b", "c", "-kind", "all"},
			want: []string{"--and_tag=a", "--and_tag=b", "--and_tag=c", "--kind", "all"},
		},
		{
			name: "short aliases",
			args: []string{"-atag", "x", "-otag", "L0", "-ntag", "slow", "-ppp", "/opt/py", "-lpp", "/opt/lv"},
			want: []string{"--and_tag=x", "--or_tag=L0", "--not_tag=slow", "--plotly_py_path", "/opt/py", "--levenshtein_py_path", "/opt/lv"},
		},
		{
			name: "lsf command keeps its value intact",
			args: []string{"-lsf_cmd", "bsub -q normal"},
			want: []string{"--lsf_command", "bsub -q normal"},
		},
		{
			name: "inline values",
			args: []string{"-kind=random", "-atag=a", "b"},
			want: []string{"--kind=random", "--and_tag=a", "b"},
		},
		{
			name: "negative seed passes through",
			args: []string{"-seed", "-5"},
			want: []string{"--seed", "-5"},
		},
		{
			name: "subcommand flags",
			args: []string{"kill", "-dry_run", "nv_small_2024-03-09_07-05-01"},
			want: []string{"kill", "--dry_run", "nv_small_2024-03-09_07-05-01"},
		},
		{
			name: "nested subcommand flags",
			args: []string{"history", "list", "-limit", "5"},
			want: []string{"history", "list", "--limit", "5"},
		},
		{
			name: "unknown flags untouched",
			args: []string{"-bogus", "x", "-v"},
			want: []string{"-bogus", "x", "-v"},
		},
		{
			name: "terminator stops rewriting",
			args: []string{"-kind", "all", "--", "-atag"},
			want: []string{"--kind", "all", "--", "-atag"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeLegacyArgs(rootCmd, tt.args)
			if err != nil {
				t.Fatalf("normalizeLegacyArgs() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("normalizeLegacyArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeLegacyArgs_EmptyList(t *testing.T) {
	for _, args := range [][]string{
		{"-atag"},
		{"-otag", "-kind", "all"},
	} {
		_, err := normalizeLegacyArgs(rootCmd, args)
		if err == nil {
			t.Errorf("normalizeLegacyArgs(%q) expected error", args)
			continue
		}
		if code := regression.ExitCode(err); code != 2 {
			t.Errorf("ExitCode = %d, want 2", code)
		}
	}
}

func TestRepeatedTagsFlatten(t *testing.T) {
	args, err := normalizeLegacyArgs(rootCmd, []string{"--and_tag", "a", "--and_tag", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if err := rootCmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, req.AndTags); diff != "" {
		t.Errorf("AndTags mismatch (-want +got):\n%s", diff)
	}
}
