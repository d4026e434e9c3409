package resolve

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"time"

	git "github.com/go-git/go-git/v5"

	lberrors "github.com/licensebundle/licensebundle/pkg/errors"
	"github.com/licensebundle/licensebundle/pkg/license"
)

// VCS resolves licenses by cloning the package repository at depth one
// into a temporary directory and scanning it with the same file-name
// heuristic as the local-disk source. It is the last and most expensive
// step of the chain, reached only when the checkout and the forge API
// both came up empty.
type VCS struct {
	pattern *regexp.Regexp
	timeout time.Duration

	// clone is swappable for tests.
	clone func(ctx context.Context, url, dir string) error
}

// NewVCS creates a version-control source. An empty pattern falls back
// to [DefaultFilePattern]; a zero timeout means no per-clone limit
// beyond the caller's context.
func NewVCS(pattern string, timeout time.Duration) (*VCS, error) {
	if pattern == "" {
		pattern = DefaultFilePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, lberrors.Wrap(lberrors.ErrCodeInvalidInput, err, "invalid license file pattern %q", pattern)
	}
	return &VCS{pattern: re, timeout: timeout, clone: shallowClone}, nil
}

func (v *VCS) Name() string { return license.ProvenanceVersionControl.String() }

// Attempt clones the repository and scans it. The clone directory is
// always removed, whatever the outcome. Requests without a repository
// URL yield (nil, nil).
func (v *VCS) Attempt(ctx context.Context, req Request) (*Resolution, error) {
	if req.Repository == "" {
		return nil, nil
	}

	dir, err := os.MkdirTemp("", "licensebundle-clone-*")
	if err != nil {
		return nil, lberrors.Wrap(lberrors.ErrCodeInternal, err, "create clone directory")
	}
	defer os.RemoveAll(dir)

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	if err := v.clone(ctx, req.Repository, dir); err != nil {
		return nil, lberrors.Wrap(lberrors.ErrCodeSourceFailed, err, "clone %s", req.Repository)
	}

	root := dir
	if req.Subdir != "" {
		root = filepath.Join(dir, filepath.FromSlash(req.Subdir))
	}
	text, err := scanTree(root, v.pattern)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return &Resolution{Provenance: license.ProvenanceVersionControl, Text: text}, nil
}

func shallowClone(ctx context.Context, url, dir string) error {
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	})
	return err
}
