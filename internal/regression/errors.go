package regression

import (
	"errors"
	"fmt"

	"github.com/hochfrequenz/regression-orchestrator/internal/domain"
)

// ErrUnknownProject is returned for projects outside the configured set
var ErrUnknownProject = errors.New("unknown project")

// ExitError ends an orchestration. It carries the status token printed for
// the failure, the process exit code and the error that caused it.
type ExitError struct {
	Status domain.Status
	Code   int
	Err    error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return string(e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Status, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the process exit code for err: 0 for nil, the carried
// code for an ExitError and 1 otherwise
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Code == 0 {
			return 1
		}
		return exitErr.Code
	}
	return 1
}

// stepError reports a non-zero tool exit
type stepError struct {
	step domain.Step
	code int
}

func (e *stepError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.step, e.code)
}
