// Package cache persists license-resolution outcomes across pipeline runs.
//
// A cache entry is keyed by the package identity and is only valid while
// its resolver version matches the running pipeline's logic version, so
// bumping the resolver version invalidates every stale entry at once.
// Explicit not-found outcomes are cached too: a resolution is attempted at
// most once per identity per cache lifetime.
//
// Correctness never depends on the cache. An unreadable or corrupt backing
// store degrades to a miss (or to [NullCache] at open time), never to a
// pipeline failure.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/licensebundle/licensebundle/pkg/license"
)

// Entry is one persisted resolution outcome.
type Entry struct {
	Identity        string             `json:"identity"`
	ResolverVersion int                `json:"resolver_version"`
	Found           bool               `json:"found"`
	Provenance      license.Provenance `json:"provenance"`
	LicenseID       string             `json:"license_id,omitempty"`
	LicenseText     string             `json:"license_text,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// Cache stores resolution outcomes keyed by identity and resolver version.
// Implementations must tolerate concurrent readers; writers are naturally
// partitioned one-per-identity by the pipeline.
type Cache interface {
	// Get returns the entry for identity if present and recorded by the
	// given resolver version. A version mismatch is a miss.
	Get(ctx context.Context, identity string, resolverVersion int) (*Entry, bool, error)

	// Put stores an entry, replacing any previous one for its identity.
	Put(ctx context.Context, e Entry) error

	// Close flushes and releases the backing store.
	Close() error
}

// Hash computes the SHA-256 hex digest of the input, used to derive safe
// file names from arbitrary identity strings.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
