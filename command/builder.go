package command

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default command execution timeout
	DefaultTimeout = 2 * time.Minute

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = 10 * time.Minute

	// MaxLabelLength bounds user-chosen labels
	MaxLabelLength = 64

	// MaxBranchLength matches git's own ref-name limit
	MaxBranchLength = 255

	// MaxCommandLength bounds text sent into a multiplexer pane
	MaxCommandLength = 1000
)

// SafeBuilder provides secure command execution with validation
type SafeBuilder struct {
	defaultTimeout time.Duration
	validators     map[string]func(string) error
	executor       Executor
}

// NewSafeBuilder creates a new SafeBuilder instance with a RealExecutor
func NewSafeBuilder() *SafeBuilder {
	return NewSafeBuilderWithExecutor(&RealExecutor{})
}

// NewSafeBuilderWithExecutor creates a new SafeBuilder with a custom Executor
func NewSafeBuilderWithExecutor(exec Executor) *SafeBuilder {
	return &SafeBuilder{
		defaultTimeout: DefaultTimeout,
		validators:     makeDefaultValidators(),
		executor:       exec,
	}
}

// makeDefaultValidators returns the default set of validators
func makeDefaultValidators() map[string]func(string) error {
	return map[string]func(string) error{
		"label":       ValidateLabel,
		"gitRef":      ValidateGitRef,
		"sessionName": ValidateSessionName,
		"commandText": ValidateCommandText,
	}
}

var (
	validLabelRegex   = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	validRefRegex     = regexp.MustCompile(`^[a-zA-Z0-9/_.%-]+$`)
	validSessionRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// forbiddenRefPatterns are sequences git rejects in ref names
var forbiddenRefPatterns = []string{"..", "//", "\\"}

// ValidateLabel ensures a user-chosen label is safe for branch names,
// directory names, and multiplexer session names alike.
func ValidateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("label cannot be empty")
	}

	if len(label) > MaxLabelLength {
		return fmt.Errorf("label too long: %s (max %d characters)", label, MaxLabelLength)
	}

	if !validLabelRegex.MatchString(label) {
		return fmt.Errorf("invalid label: %s (must contain only letters, digits, hyphens, underscores, and dots)", label)
	}

	if strings.Contains(label, "..") {
		return fmt.Errorf("label cannot contain '..'")
	}

	return nil
}

// ValidateGitRef ensures git references are safe
func ValidateGitRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("git ref cannot be empty")
	}

	if len(ref) > MaxBranchLength {
		return fmt.Errorf("git ref too long: %s (max %d characters)", ref, MaxBranchLength)
	}

	if !validRefRegex.MatchString(ref) {
		return fmt.Errorf("invalid git ref: %s", ref)
	}

	for _, pattern := range forbiddenRefPatterns {
		if strings.Contains(ref, pattern) {
			return fmt.Errorf("invalid git ref: %s (cannot contain '%s')", ref, pattern)
		}
	}

	return nil
}

// ValidateSessionName ensures multiplexer session names are safe
func ValidateSessionName(name string) error {
	if name == "" {
		return fmt.Errorf("session name cannot be empty")
	}

	if len(name) > MaxLabelLength {
		return fmt.Errorf("session name too long: %s (max %d characters)", name, MaxLabelLength)
	}

	if !validSessionRegex.MatchString(name) {
		return fmt.Errorf("invalid session name: %s", name)
	}

	return nil
}

// ValidateCommandText ensures text sent to a pane contains no control characters
func ValidateCommandText(text string) error {
	if text == "" {
		return fmt.Errorf("command cannot be empty")
	}

	if len(text) > MaxCommandLength {
		return fmt.Errorf("command too long (max %d characters)", MaxCommandLength)
	}

	if strings.ContainsAny(text, "\x00\x1b") {
		return fmt.Errorf("command contains control characters")
	}

	return nil
}

// Command represents a safe command configuration
type Command struct {
	ctx      context.Context
	name     string
	args     []string
	timeout  time.Duration
	executor Executor
}

// Build creates a new command with validation
func (sb *SafeBuilder) Build(ctx context.Context, name string, args ...string) (*Command, error) {
	if name == "" {
		return nil, fmt.Errorf("command name cannot be empty")
	}

	// Apply timeout to context
	timeoutCtx, cancel := context.WithTimeout(ctx, sb.defaultTimeout)

	// Important: We don't call cancel here as the caller needs to execute the command
	// The cancel will be handled by the command execution
	_ = cancel

	return &Command{
		ctx:      timeoutCtx,
		name:     name,
		args:     args,
		timeout:  sb.defaultTimeout,
		executor: sb.executor,
	}, nil
}

// WithTimeout sets a custom timeout for the command
func (c *Command) WithTimeout(timeout time.Duration) *Command {
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	_ = cancel // Will be handled during execution

	c.ctx = ctx
	c.timeout = timeout
	return c
}

// Validate validates specific arguments
func (sb *SafeBuilder) Validate(argType string, value string) error {
	validator, exists := sb.validators[argType]
	if !exists {
		return fmt.Errorf("no validator for argument type: %s", argType)
	}

	return validator(value)
}

// Exec creates and returns an exec.Cmd
func (c *Command) Exec() *exec.Cmd {
	return c.executor.CommandContext(c.ctx, c.name, c.args...) //nolint:gosec // SafeBuilder provides validation
}
