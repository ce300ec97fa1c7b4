package domain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRequest_SelectionArgs(t *testing.T) {
	req := Request{
		Timeout:     30,
		NamePattern: "conv_*",
		AndTags:     []string{"a", "b", "c"},
		NotTags:     []string{"slow"},
		Seed:        42,
	}

	want := []string{"-timeout", "30", "-name", "conv_*", "-atag", "a", "b", "c", "-ntag", "slow", "-seed", "42"}
	if diff := cmp.Diff(want, req.SelectionArgs()); diff != "" {
		t.Errorf("SelectionArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestRequest_SelectionArgs_Minimal(t *testing.T) {
	req := Request{Seed: 7}

	want := []string{"-seed", "7"}
	if diff := cmp.Diff(want, req.SelectionArgs()); diff != "" {
		t.Errorf("SelectionArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestRequest_Validate(t *testing.T) {
	dir := t.TempDir()
	python := filepath.Join(dir, "python3")
	if err := os.WriteFile(python, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	ok := Request{Project: "nv_small", Kind: KindSanity, PlotlyPython: python}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}

	missing := Request{Project: "nv_small", Kind: KindSanity, LevenshteinPython: filepath.Join(dir, "nope")}
	if err := missing.Validate(); !errors.Is(err, ErrInterpreterNotFound) {
		t.Errorf("Validate() = %v, want ErrInterpreterNotFound", err)
	}

	isDir := Request{Project: "nv_small", Kind: KindSanity, PlotlyPython: dir}
	if err := isDir.Validate(); !errors.Is(err, ErrInterpreterNotFound) {
		t.Errorf("Validate() = %v, want ErrInterpreterNotFound for a directory", err)
	}

	badKind := Request{Project: "nv_small", Kind: "nightly"}
	if err := badKind.Validate(); err == nil {
		t.Error("Validate() should reject unknown kind")
	}
}

func TestRunDirName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
	if got := RunDirName("nv_small_256", ts); got != "nv_small_256_2024-03-09_07-05-01" {
		t.Errorf("RunDirName = %q", got)
	}
}

func TestRequest_MetricsName(t *testing.T) {
	req := Request{Project: "nv_small", Kind: KindRandom}
	if got := req.MetricsName(); got != "nv_small_random" {
		t.Errorf("MetricsName = %q, want nv_small_random", got)
	}
}
