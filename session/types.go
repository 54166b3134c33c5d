// Package session implements the lifecycle rules for tracked sessions and
// workspaces: global label uniqueness, creation ordering (validate, then
// side effects, then persist), best-effort teardown, and stale-resource
// recovery.
package session

import (
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/partools/par/errors"
)

// Kind classifies a record by how its worktree came to be.
type Kind string

const (
	// KindSession is a single-repo session on a branch par created.
	KindSession Kind = "session"

	// KindCheckout is a single-repo session attached to a pre-existing ref;
	// its branch is never deleted on teardown.
	KindCheckout Kind = "checkout"

	// KindWorkspace is a federation of worktrees across several repositories
	// sharing one branch name and one multiplexer session.
	KindWorkspace Kind = "workspace"
)

// Status is a record's position in the creation lifecycle.
type Status string

const (
	StatusCreating     Status = "creating"
	StatusInitializing Status = "initializing"
	StatusReady        Status = "ready"
	StatusError        Status = "error"
)

// RepoEntry is one member repository of a workspace record.
type RepoEntry struct {
	RepoName     string `json:"repo_name"`
	RepoPath     string `json:"repo_path"`
	WorktreePath string `json:"worktree_path"`
	BranchName   string `json:"branch_name"`
}

// Record is the unit of tracked state. For workspaces, RepositoryPath holds
// the workspace root, WorktreePath the shared label directory, and Repos the
// per-member details.
type Record struct {
	Label          string      `json:"label"`
	Kind           Kind        `json:"kind"`
	RepositoryPath string      `json:"repository_path"`
	RepositoryName string      `json:"repository_name"`
	WorktreePath   string      `json:"worktree_path"`
	SessionName    string      `json:"multiplexer_session_name"`
	BranchName     string      `json:"branch_name"`
	CheckoutTarget string      `json:"checkout_target,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	Status         Status      `json:"status"`
	Repos          []RepoEntry `json:"repositories,omitempty"`
}

// OwnsBranch reports whether teardown may delete the record's branch.
// Checkout branches pre-existed the record, so they are left alone.
func (r *Record) OwnsBranch() bool {
	return r.Kind != KindCheckout
}

// decodeRecord converts a raw store value into a typed Record. Values read
// back from disk arrive as generic maps; values still in the store cache may
// already be typed.
func decodeRecord(raw any) (*Record, error) {
	switch v := raw.(type) {
	case *Record:
		return v, nil
	case Record:
		return &v, nil
	}

	var rec Record
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339),
		Result:     &rec,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "build record decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStateCorruption, "record has unexpected shape")
	}
	return &rec, nil
}

// ListedRecord is a Record annotated with a read-time liveness probe of its
// multiplexer session. Liveness is never stored because it can change
// outside this process.
type ListedRecord struct {
	Record
	Alive bool
}
