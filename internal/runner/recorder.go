package runner

import (
	"context"
	"sync"
)

// Recorder is a Runner that records commands instead of executing them.
// Tests use it to assert the exact argv handed to each tool.
type Recorder struct {
	// Result decides the outcome of a command; nil means exit 0
	Result func(cmd Command) (int, error)

	mu       sync.Mutex
	commands []Command
}

// Run records cmd and returns the configured result
func (r *Recorder) Run(ctx context.Context, cmd Command) (int, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return -1, err
	}
	if r.Result == nil {
		return 0, nil
	}
	return r.Result(cmd)
}

// Commands returns the recorded commands in call order
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}
