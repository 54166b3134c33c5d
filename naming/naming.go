// Package naming derives filesystem-safe, collision-resistant identifiers
// for repositories, workspaces, worktrees, and multiplexer sessions.
//
// All derivations are deterministic: the same resolved path and label always
// produce the same identifier.
package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/partools/par/paths"
)

const (
	// SessionPrefix prefixes every single-repo multiplexer session name
	SessionPrefix = "par"

	// WorkspacePrefix prefixes every workspace multiplexer session name
	WorkspacePrefix = "par-ws"

	// repoIDLength is the hex length of a full repository identifier
	repoIDLength = 12

	// shortHashLength is the hex length of the hash embedded in session names
	shortHashLength = 4

	// namePartMax caps the repo/workspace name segment of a session name,
	// keeping full names within tmux's practical limits
	namePartMax = 15
)

var (
	// namePartReplacer normalizes separators before truncation
	namePartReplacer = strings.NewReplacer(
		" ", "-",
		".", "-",
	)

	// invalidNameChars matches anything not allowed in a session name segment
	invalidNameChars = regexp.MustCompile(`[^a-z0-9_-]+`)

	// multiDashRegex matches runs of consecutive hyphens
	multiDashRegex = regexp.MustCompile(`-+`)
)

// hashPath returns the hex sha256 of the resolved absolute path.
func hashPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])
}

// RepoID returns the unique, filesystem-friendly identifier for a repository.
func RepoID(repoRoot string) string {
	return hashPath(repoRoot)[:repoIDLength]
}

// WorkspaceID returns the unique identifier for a workspace root.
func WorkspaceID(workspaceRoot string) string {
	return hashPath(workspaceRoot)[:repoIDLength]
}

// ForNamePart sanitizes a repository or workspace name for embedding in a
// multiplexer session name: lowercased, separators collapsed to hyphens,
// truncated.
func ForNamePart(s string) string {
	s = strings.ToLower(s)
	s = namePartReplacer.Replace(s)
	s = invalidNameChars.ReplaceAllString(s, "-")
	s = multiDashRegex.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > namePartMax {
		s = s[:namePartMax]
	}
	return s
}

// SessionName derives the multiplexer session name for a single-repo session:
// par-{name}-{hash}-{label}.
func SessionName(repoRoot, label string) string {
	name := ForNamePart(filepath.Base(repoRoot))
	short := hashPath(repoRoot)[:shortHashLength]
	return SessionPrefix + "-" + name + "-" + short + "-" + label
}

// WorkspaceSessionName derives the multiplexer session name for a workspace:
// par-ws-{name}-{hash}-{label}.
func WorkspaceSessionName(workspaceRoot, label string) string {
	name := ForNamePart(filepath.Base(workspaceRoot))
	short := hashPath(workspaceRoot)[:shortHashLength]
	return WorkspacePrefix + "-" + name + "-" + short + "-" + label
}

// WorktreePath returns the canonical worktree location for a single-repo
// session: {data}/worktrees/{repoID}/{label}. The leaf is not created here;
// the lifecycle manager checks it does not pre-exist.
func WorktreePath(repoRoot, label string) string {
	return filepath.Join(paths.WorktreesDir(), RepoID(repoRoot), label)
}

// WorkspaceLabelRoot returns the directory all of one workspace label's
// worktrees share: {data}/workspaces/{workspaceID}/{label}. The multiplexer
// session for the workspace is rooted here.
func WorkspaceLabelRoot(workspaceRoot, label string) string {
	return filepath.Join(paths.WorkspacesDir(), WorkspaceID(workspaceRoot), label)
}

// WorkspaceWorktreePath returns one member repository's worktree location:
// {data}/workspaces/{workspaceID}/{label}/{repoName}.
func WorkspaceWorktreePath(workspaceRoot, label, repoName string) string {
	return filepath.Join(WorkspaceLabelRoot(workspaceRoot, label), repoName)
}
