//go:build windows

package runner

import "os/exec"

func configureProcess(cmd *exec.Cmd) {}
