// Package checkout turns a user-supplied checkout target into a concrete
// plan for materializing a worktree. Resolution is pure parsing: no network,
// no filesystem, no guessing a fallback meaning for malformed input.
package checkout

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/partools/par/command"
	"github.com/partools/par/errors"
)

// DefaultRemote is the remote PR refs are fetched from.
const DefaultRemote = "origin"

// Strategy describes how a worktree should be attached to an existing ref.
type Strategy struct {
	// Ref is the git ref the worktree is built from.
	Ref string

	// Remote names the remote to fetch from when IsPR or FetchRemote is set.
	Remote string

	// IsPR marks pull-request targets; Ref is then a pull/<n>/head refspec.
	IsPR bool

	// PRNumber is the pull request number when IsPR is set.
	PRNumber int

	// FetchRemote requests a fetch of Remote before attaching the worktree.
	FetchRemote bool
}

var (
	prShorthandRegex = regexp.MustCompile(`^pr/(\d+)$`)
	prURLRegex       = regexp.MustCompile(`^https?://[^\s]+/pull/(\d+)(?:/[^\s]*)?$`)
)

// Resolve parses a checkout target into the branch name the session will
// track and the strategy for materializing it.
//
// Recognized grammars, in priority order:
//  1. "pr/<number>" or a pull-request URL → PR strategy on the default remote
//  2. "<user>:<branch>" → remote-branch strategy with a fetch of <user>
//  3. anything else → plain local branch
func Resolve(target string) (string, Strategy, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", Strategy{}, errors.Validation("checkout target cannot be empty")
	}

	if m := prShorthandRegex.FindStringSubmatch(target); m != nil {
		return resolvePR(m[1])
	}
	if m := prURLRegex.FindStringSubmatch(target); m != nil {
		return resolvePR(m[1])
	}

	if user, branch, ok := strings.Cut(target, ":"); ok {
		if user == "" || branch == "" {
			return "", Strategy{}, errors.Validation(
				fmt.Sprintf("remote branch target '%s' must be of the form <user>:<branch>", target))
		}
		if err := command.ValidateGitRef(branch); err != nil {
			return "", Strategy{}, errors.Validation(err.Error())
		}
		if err := command.ValidateGitRef(user); err != nil {
			return "", Strategy{}, errors.Validation(err.Error())
		}
		return branch, Strategy{
			Ref:         user + "/" + branch,
			Remote:      user,
			FetchRemote: true,
		}, nil
	}

	if err := command.ValidateGitRef(target); err != nil {
		return "", Strategy{}, errors.Validation(err.Error())
	}

	return target, Strategy{Ref: target}, nil
}

func resolvePR(number string) (string, Strategy, error) {
	n, err := strconv.Atoi(number)
	if err != nil || n <= 0 {
		return "", Strategy{}, errors.Validation(fmt.Sprintf("invalid pull request number '%s'", number))
	}

	return fmt.Sprintf("pr-%d", n), Strategy{
		Ref:      fmt.Sprintf("pull/%d/head", n),
		Remote:   DefaultRemote,
		IsPR:     true,
		PRNumber: n,
	}, nil
}

// DeriveLabel converts a branch name into a label, flattening hierarchy
// separators so the label stays valid as a directory and session name part.
func DeriveLabel(branch string) string {
	return strings.ReplaceAll(branch, "/", "-")
}
