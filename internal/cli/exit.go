package cli

import (
	"errors"
	"fmt"

	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
)

// Exit codes of the deltaloader command.
const (
	ExitSuccess       = 0
	ExitFailure       = 1 // anything not classified below
	ExitConfiguration = 2
	ExitStoreAccess   = 3
	ExitListing       = 4
	ExitWrite         = 5
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps err with an exit code derived from its error kind.
func WrapExitError(message string, err error) *ExitError {
	return &ExitError{Code: codeForKind(exception.KindOf(err)), Message: message, Err: err}
}

func codeForKind(kind exception.Kind) int {
	switch kind {
	case exception.KindConfiguration:
		return ExitConfiguration
	case exception.KindStoreAccess:
		return ExitStoreAccess
	case exception.KindListing:
		return ExitListing
	case exception.KindWrite:
		return ExitWrite
	default:
		return ExitFailure
	}
}

// GetExitCode extracts the exit code from an error returned by a command.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return codeForKind(exception.KindOf(err))
}
