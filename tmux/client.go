// Package tmux drives the tmux binary for session and window management.
package tmux

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/partools/par/command"
	"github.com/partools/par/errors"
)

// Client executes tmux commands through validated command construction.
type Client struct {
	builder *command.SafeBuilder
	socket  string // Socket name for a dedicated tmux server (uses -L flag)
}

// Ensure it implements the interface
var _ Multiplexer = (*Client)(nil)

// NewClient creates a tmux client. Tests set PAR_TMUX_SOCKET so spawned
// sessions land on an isolated server instead of the user's.
func NewClient() (*Client, error) {
	if _, err := exec.LookPath("tmux"); err != nil {
		return nil, errors.ToolMissing("tmux")
	}

	return &Client{
		builder: command.NewSafeBuilder(),
		socket:  os.Getenv("PAR_TMUX_SOCKET"),
	}, nil
}

// NewClientWithSocket creates a tmux client bound to a dedicated server socket.
func NewClientWithSocket(socket string) (*Client, error) {
	if _, err := exec.LookPath("tmux"); err != nil {
		return nil, errors.ToolMissing("tmux")
	}

	return &Client{
		builder: command.NewSafeBuilder(),
		socket:  socket,
	}, nil
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	if c.socket != "" {
		args = append([]string{"-L", c.socket}, args...)
	}

	cmd, err := c.builder.Build(ctx, "tmux", args...)
	if err != nil {
		return "", errors.ExternalTool("tmux", args[0], err)
	}

	output, err := cmd.Exec().CombinedOutput()
	if err != nil {
		return string(output), errors.ExternalTool("tmux", strings.Join(args, " "), err).
			WithDetail("output", strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// ServerRunning reports whether a tmux server with at least one session is
// reachable. tmux exits non-zero both when no server exists and when the
// last session just died, which is the same thing for our purposes.
func (c *Client) ServerRunning(ctx context.Context) bool {
	_, err := c.run(ctx, "list-sessions", "-F", "#{session_name}")
	return err == nil
}

// InsideTmux reports whether this process runs inside a tmux client.
func (c *Client) InsideTmux() bool {
	return os.Getenv("TMUX") != ""
}

// CurrentSession returns the session the invoking client is attached to.
func (c *Client) CurrentSession(ctx context.Context) (string, error) {
	output, err := c.run(ctx, "display-message", "-p", "#{session_name}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// SessionExists checks for a session by exact name. The "=" prefix disables
// tmux's prefix matching, so "par-app-1" never matches "par-app-10".
func (c *Client) SessionExists(ctx context.Context, name string) (bool, error) {
	output, err := c.run(ctx, "has-session", "-t", "="+name)
	if err == nil {
		return true, nil
	}

	if isExitStatusOne(err) || isNoServerOutput(output) {
		return false, nil
	}
	return false, err
}

// NewSession creates a detached session rooted at workingDir.
func (c *Client) NewSession(ctx context.Context, name, workingDir string) error {
	if err := c.builder.Validate("sessionName", name); err != nil {
		return errors.Validation(err.Error())
	}

	args := []string{"new-session", "-d", "-s", name}
	if workingDir != "" {
		args = append(args, "-c", workingDir)
	}

	output, err := c.run(ctx, args...)
	if err != nil {
		if strings.Contains(output, "duplicate session") {
			return errors.SessionConflict(name)
		}
		return err
	}
	return nil
}

// KillSession kills a session. A session that is already gone (or a server
// that is not running at all) surfaces as AlreadyGone so teardown can treat
// it as success.
func (c *Client) KillSession(ctx context.Context, name string) error {
	output, err := c.run(ctx, "kill-session", "-t", "="+name)
	if err != nil {
		if strings.Contains(output, "can't find session") || isNoServerOutput(output) || isExitStatusOne(err) {
			return errors.AlreadyGone("tmux", "session "+name)
		}
		return err
	}
	return nil
}

// AttachOrSwitch brings the given session to the user's terminal: inside
// tmux it switches the current client, outside it attaches.
func (c *Client) AttachOrSwitch(ctx context.Context, name string) error {
	if c.InsideTmux() {
		_, err := c.run(ctx, "switch-client", "-t", "="+name)
		return err
	}

	// Attaching needs the caller's terminal, so this bypasses CombinedOutput
	// and wires up the process's own stdio.
	args := []string{"attach-session", "-t", "=" + name}
	if c.socket != "" {
		args = append([]string{"-L", c.socket}, args...)
	}

	cmd, err := c.builder.Build(ctx, "tmux", args...)
	if err != nil {
		return errors.ExternalTool("tmux", "attach-session", err)
	}

	execCmd := cmd.Exec()
	execCmd.Stdin = os.Stdin
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	if err := execCmd.Run(); err != nil {
		return errors.ExternalTool("tmux", "attach-session", err)
	}
	return nil
}

// SendKeys types text into the target pane and presses Enter.
func (c *Client) SendKeys(ctx context.Context, target, text string) error {
	if err := c.builder.Validate("commandText", text); err != nil {
		return errors.Validation(err.Error())
	}

	_, err := c.run(ctx, "send-keys", "-t", target, text, "Enter")
	return err
}

// ListWindows returns the windows of a session with their stable IDs.
func (c *Client) ListWindows(ctx context.Context, session string) ([]Window, error) {
	format := "#{window_id}:#{window_index}:#{?window_active,1,0}:#{window_name}"
	output, err := c.run(ctx, "list-windows", "-t", "="+session, "-F", format)
	if err != nil {
		return nil, err
	}
	return parseWindowList(output), nil
}

// NewWindow creates a new window in the target session.
func (c *Client) NewWindow(ctx context.Context, opts NewWindowOptions) error {
	args := []string{"new-window", "-t", "=" + opts.Target, "-n", opts.WindowName}
	if opts.WorkingDir != "" {
		args = append(args, "-c", opts.WorkingDir)
	}
	if opts.Command != "" {
		args = append(args, opts.Command)
	}
	_, err := c.run(ctx, args...)
	return err
}

// KillWindow removes a window by target (session:@id or session:index).
func (c *Client) KillWindow(ctx context.Context, target string) error {
	output, err := c.run(ctx, "kill-window", "-t", target)
	if err != nil {
		if strings.Contains(output, "can't find window") {
			return errors.AlreadyGone("tmux", "window "+target)
		}
		return err
	}
	return nil
}

// SelectWindow makes the target window the session's active window.
func (c *Client) SelectWindow(ctx context.Context, target string) error {
	_, err := c.run(ctx, "select-window", "-t", target)
	return err
}

// RenameWindow renames a window.
func (c *Client) RenameWindow(ctx context.Context, target, name string) error {
	_, err := c.run(ctx, "rename-window", "-t", target, name)
	return err
}

// parseWindowList parses "id:index:active:name" lines. The name field is
// last and split with a bounded SplitN so names containing colons survive.
func parseWindowList(output string) []Window {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	windows := make([]Window, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 4)
		if len(parts) < 4 {
			continue
		}

		index, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}

		windows = append(windows, Window{
			ID:       parts[0],
			Index:    index,
			IsActive: parts[2] == "1",
			Name:     parts[3],
		})
	}
	return windows
}

func isExitStatusOne(err error) bool {
	return err != nil && strings.Contains(err.Error(), "exit status 1")
}

func isNoServerOutput(output string) bool {
	return strings.Contains(output, "no server running") ||
		strings.Contains(output, "error connecting to")
}
