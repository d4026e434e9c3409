package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	lberrors "github.com/licensebundle/licensebundle/pkg/errors"
	"github.com/licensebundle/licensebundle/pkg/observability"
)

// FileCache stores entries as JSON files under a directory, one file per
// identity. The file name is derived from a SHA-256 hash of the identity,
// split into a two-character subdirectory to avoid huge flat directories.
type FileCache struct {
	dir string
	mu  sync.RWMutex
}

// NewFileCache creates a file-backed cache rooted at dir.
// The directory is created if it doesn't exist.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, lberrors.Wrap(lberrors.ErrCodeCacheUnusable, err, "create cache dir %s", dir)
	}
	return &FileCache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// Get retrieves the entry for identity. A missing file, an entry that
// doesn't unmarshal, or a resolver-version mismatch is a miss; a corrupt
// entry is removed so it isn't re-read every run.
func (c *FileCache) Get(ctx context.Context, identity string, resolverVersion int) (*Entry, bool, error) {
	c.mu.RLock()
	data, err := os.ReadFile(c.path(identity))
	c.mu.RUnlock()

	if os.IsNotExist(err) {
		observability.Cache().OnCacheMiss(ctx, identity)
		return nil, false, nil
	}
	if err != nil {
		observability.Cache().OnCacheMiss(ctx, identity)
		return nil, false, err
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.mu.Lock()
		_ = os.Remove(c.path(identity))
		c.mu.Unlock()
		observability.Cache().OnCacheMiss(ctx, identity)
		return nil, false, nil
	}

	if e.Identity != identity || e.ResolverVersion != resolverVersion {
		observability.Cache().OnCacheMiss(ctx, identity)
		return nil, false, nil
	}

	observability.Cache().OnCacheHit(ctx, identity)
	return &e, true, nil
}

// Put stores an entry, replacing any previous one for its identity.
func (c *FileCache) Put(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	path := c.path(e.Identity)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	observability.Cache().OnCachePut(ctx, e.Identity, len(data))
	return nil
}

// Close does nothing for the file cache; entries are written eagerly.
func (c *FileCache) Close() error { return nil }

func (c *FileCache) path(identity string) string {
	h := Hash([]byte(identity))
	return filepath.Join(c.dir, h[:2], h[2:]+".json")
}

var _ Cache = (*FileCache)(nil)
