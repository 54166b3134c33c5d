package tmux

import "context"

// Window holds information about a tmux window.
type Window struct {
	// ID is the stable tmux window id (e.g. "@3"); it survives renumbering
	// and is the only safe handle for targeted removal.
	ID       string `json:"id"`
	Index    int    `json:"index"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// NewWindowOptions provides options for creating a new window.
type NewWindowOptions struct {
	// Target is the session the window is created in.
	Target     string
	WindowName string
	WorkingDir string
	Command    string
}

// Multiplexer defines the terminal-multiplexer operations the session
// lifecycle and the control-center reconciler depend on. Tests substitute
// fakes; the Client in this package drives the real tmux binary.
type Multiplexer interface {
	ServerRunning(ctx context.Context) bool
	InsideTmux() bool
	CurrentSession(ctx context.Context) (string, error)

	SessionExists(ctx context.Context, name string) (bool, error)
	NewSession(ctx context.Context, name, workingDir string) error
	KillSession(ctx context.Context, name string) error
	AttachOrSwitch(ctx context.Context, name string) error
	SendKeys(ctx context.Context, target, text string) error

	ListWindows(ctx context.Context, session string) ([]Window, error)
	NewWindow(ctx context.Context, opts NewWindowOptions) error
	KillWindow(ctx context.Context, target string) error
	SelectWindow(ctx context.Context, target string) error
	RenameWindow(ctx context.Context, target, name string) error
}
