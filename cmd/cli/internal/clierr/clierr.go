// Package clierr categorizes CLI-facing errors and maps them onto process
// exit codes: 0 ok, 2 task failed, 3 poll timeout, 4 network/contract
// error, 5 bad arguments.
package clierr

import (
	"errors"
	"fmt"
	"strings"
)

// ExitCode is one of the five process exit codes the CLI can end with.
type ExitCode int

const (
	ExitOK          ExitCode = 0
	ExitTaskFailed  ExitCode = 2
	ExitPollTimeout ExitCode = 3
	ExitNetwork     ExitCode = 4
	ExitBadArgs     ExitCode = 5
)

// CLIError pairs a user-facing message with the exit code the process
// should terminate with.
type CLIError struct {
	Code    ExitCode
	Message string
	Cause   error
}

func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Cause
}

// New builds a CLIError with the given exit code.
func New(code ExitCode, message string, cause error) *CLIError {
	return &CLIError{Code: code, Message: message, Cause: cause}
}

// BadArgs builds an ExitBadArgs error for malformed CLI input.
func BadArgs(message string) *CLIError {
	return New(ExitBadArgs, message, nil)
}

// Network builds an ExitNetwork error for transport or contract failures —
// connection refused, timeouts, unexpected status codes, malformed JSON.
func Network(message string, cause error) *CLIError {
	return New(ExitNetwork, message, cause)
}

// TaskFailed builds an ExitTaskFailed error for a job that reached
// status=failed before the CLI finished polling it.
func TaskFailed(message string) *CLIError {
	return New(ExitTaskFailed, message, nil)
}

// PollTimeout builds an ExitPollTimeout error for a job still not finalized
// when the CLI's poll deadline elapsed.
func PollTimeout(message string) *CLIError {
	return New(ExitPollTimeout, message, nil)
}

// Categorize converts an arbitrary error into a CLIError, defaulting to
// ExitNetwork for anything that isn't already categorized — an
// uncategorized failure reaching the HTTP layer is, by construction, either
// a transport problem or an API contract violation.
func Categorize(err error) *CLIError {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return Network("could not connect to server", err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "context deadline exceeded"):
		return Network("request timed out", err)
	default:
		return Network("request failed", err)
	}
}

// ExitCodeFor returns the process exit code for err, 0 for a nil error.
func ExitCodeFor(err error) int {
	if err == nil {
		return int(ExitOK)
	}
	return int(Categorize(err).Code)
}
