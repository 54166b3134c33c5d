// Package cli holds the shared command-line plumbing: error presentation,
// styled help, and terminal output helpers.
package cli

import (
	"fmt"
	"os"

	"github.com/partools/par/errors"
)

// ErrorHandler turns structured errors into single-line user-facing
// messages. Fatal failures never print a stack trace; verbose mode appends
// the structured details instead.
type ErrorHandler struct {
	Verbose bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
	}
}

// Handle prints a user-friendly message for the error and returns it so the
// caller can exit non-zero.
func (h *ErrorHandler) Handle(err error) error {
	switch errors.GetCode(err) {
	case errors.ErrCodeValidation:
		fmt.Fprintf(os.Stderr, "❌ %s\n", message(err))

	case errors.ErrCodeDuplicateLabel:
		fmt.Fprintf(os.Stderr, "❌ %s\n", message(err))
		fmt.Fprintf(os.Stderr, "Run 'par ls --all' to see every tracked session.\n")

	case errors.ErrCodeConflict:
		fmt.Fprintf(os.Stderr, "❌ %s\n", message(err))

	case errors.ErrCodeNotFound:
		fmt.Fprintf(os.Stderr, "❌ %s\n", message(err))
		fmt.Fprintf(os.Stderr, "Run 'par ls' to see tracked sessions in this repository.\n")

	case errors.ErrCodeToolMissing:
		fmt.Fprintf(os.Stderr, "❌ %s\n", message(err))
		fmt.Fprintf(os.Stderr, "Make sure git and tmux are installed and on PATH.\n")

	case errors.ErrCodeExternalTool:
		fmt.Fprintf(os.Stderr, "❌ %s\n", message(err))
		if parErr, ok := err.(*errors.ParError); ok {
			if output, ok := parErr.Details["output"].(string); ok && output != "" {
				fmt.Fprintf(os.Stderr, "%s\n", output)
			}
		}

	case errors.ErrCodeStateWrite:
		fmt.Fprintf(os.Stderr, "❌ %s\n", message(err))
		fmt.Fprintf(os.Stderr, "Check permissions and free space on the data directory.\n")

	default:
		fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)
	}

	if h.Verbose {
		if parErr, ok := err.(*errors.ParError); ok {
			fmt.Fprintf(os.Stderr, "\nError details:\n%s\n", parErr.ToJSON())
		}
	}
	return err
}

// message strips the code prefix and cause chain so the user sees one line.
func message(err error) string {
	if parErr, ok := err.(*errors.ParError); ok {
		return parErr.Message
	}
	return err.Error()
}
