package errors

import (
	"fmt"
	"os/exec"
)

// Validation creates an input validation error
func Validation(reason string) *ParError {
	return New(ErrCodeValidation, fmt.Sprintf("invalid input: %s", reason))
}

// DuplicateLabel creates a label uniqueness violation error
func DuplicateLabel(label string) *ParError {
	return New(ErrCodeDuplicateLabel, fmt.Sprintf("label '%s' is already in use", label)).
		WithDetail("label", label)
}

// WorktreeConflict creates an error for an already-occupied worktree path
func WorktreeConflict(path string) *ParError {
	return New(ErrCodeConflict, fmt.Sprintf("worktree path '%s' already exists", path)).
		WithDetail("path", path)
}

// SessionConflict creates an error for an already-live multiplexer session
func SessionConflict(name string) *ParError {
	return New(ErrCodeConflict, fmt.Sprintf("tmux session '%s' already exists", name)).
		WithDetail("session", name)
}

// NotFound creates an unknown-label error
func NotFound(label string) *ParError {
	return New(ErrCodeNotFound, fmt.Sprintf("no session or workspace labeled '%s'", label)).
		WithDetail("label", label)
}

// ExternalTool creates a fatal external tool failure error
func ExternalTool(tool, action string, err error) *ParError {
	parErr := Wrap(err, ErrCodeExternalTool, fmt.Sprintf("%s %s failed", tool, action)).
		WithDetail("tool", tool).
		WithDetail("action", action)

	if exitErr, ok := err.(*exec.ExitError); ok {
		parErr = parErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return parErr
}

// AlreadyGone creates a recoverable "resource no longer exists" error
func AlreadyGone(tool, resource string) *ParError {
	return New(ErrCodeAlreadyGone, fmt.Sprintf("%s: '%s' is already gone", tool, resource)).
		WithDetail("tool", tool).
		WithDetail("resource", resource)
}

// ToolMissing creates an error for an unreachable external tool
func ToolMissing(tool string) *ParError {
	return New(ErrCodeToolMissing, fmt.Sprintf("'%s' is not available", tool)).
		WithDetail("tool", tool)
}

// StateCorruption creates a recoverable store corruption error
func StateCorruption(path string, err error) *ParError {
	return Wrap(err, ErrCodeStateCorruption, fmt.Sprintf("state file '%s' is corrupted", path)).
		WithDetail("path", path)
}

// StateWrite creates a fatal store write error
func StateWrite(path string, err error) *ParError {
	return Wrap(err, ErrCodeStateWrite, fmt.Sprintf("failed to write state file '%s'", path)).
		WithDetail("path", path)
}
