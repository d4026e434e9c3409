// Package resolve produces a license resolution for one package identity
// via an ordered, short-circuiting source chain: local disk, then a
// hosted-forge API, then a shallow version-control fetch.
//
// Each source implements [Source] and is independently testable. A source
// that has nothing for a request returns (nil, nil) and the chain moves
// on; a source that fails returns an error, which is recoverable — the
// failing source is superseded by the next one, never retried. Only when
// every source comes up empty is the outcome an explicit not-found, which
// is an error only under strict mode.
//
// Resolutions for distinct identities are independent; the only shared
// state is the [cache.Cache], consulted before any source is attempted so
// each identity is resolved at most once per cache lifetime.
package resolve

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/licensebundle/licensebundle/pkg/cache"
	lberrors "github.com/licensebundle/licensebundle/pkg/errors"
	"github.com/licensebundle/licensebundle/pkg/license"
	"github.com/licensebundle/licensebundle/pkg/observability"
)

// Version is the resolver logic version. Bump it whenever resolution
// behavior changes in a way that should invalidate cached outcomes.
const Version = 1

// Request carries everything the chain needs to resolve one identity.
type Request struct {
	Name       string
	Version    string
	Origin     string // source origin, part of the identity
	Dir        string // local checkout directory, if any
	Repository string // repository URL, if known
	Subdir     string // subdirectory within the repository (monorepos)
}

// Identity returns the stable identity key for the request.
func (r Request) Identity() string {
	p := license.Package{Name: r.Name, Version: r.Version, Origin: r.Origin}
	return p.Identity()
}

// Resolution is the outcome of one source attempt.
type Resolution struct {
	Provenance license.Provenance
	LicenseID  string // SPDX identifier, when the source knows it
	Text       string
}

// Source is one step of the fallback chain.
type Source interface {
	// Name returns the provenance tag of the source.
	Name() string

	// Attempt tries to resolve a license for the request.
	// (nil, nil) means the source has nothing for this request; an error
	// means the source failed and the chain should fall through.
	Attempt(ctx context.Context, req Request) (*Resolution, error)
}

// StrictPolicy decides whether an unresolved license is fatal for a
// given package.
type StrictPolicy func(req Request) bool

// LenientAll never treats unresolved licenses as fatal.
func LenientAll(Request) bool { return false }

// StrictAll treats every unresolved license as fatal.
func StrictAll(Request) bool { return true }

// StrictExcept treats unresolved licenses as fatal except for the named
// packages.
func StrictExcept(names ...string) StrictPolicy {
	exempt := make(map[string]bool, len(names))
	for _, n := range names {
		exempt[n] = true
	}
	return func(req Request) bool { return !exempt[req.Name] }
}

// Resolver runs the source chain with caching.
type Resolver struct {
	sources []Source
	cache   cache.Cache
	strict  StrictPolicy
	logger  *log.Logger
}

// New creates a resolver over the given chain, consulted in order.
// A nil cache disables caching; a nil policy is lenient.
func New(c cache.Cache, strict StrictPolicy, logger *log.Logger, sources ...Source) *Resolver {
	if c == nil {
		c = cache.NewNullCache()
	}
	if strict == nil {
		strict = LenientAll
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Resolver{sources: sources, cache: c, strict: strict, logger: logger}
}

// Resolve produces the resolution for one identity. The cache is checked
// first; on a miss the chain runs and the outcome — found or not — is
// written back so the next run skips the attempt entirely.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	id := req.Identity()
	start := time.Now()
	observability.Resolver().OnResolveStart(ctx, id)

	if e, hit, err := r.cache.Get(ctx, id, Version); err != nil {
		r.logger.Warn("cache read failed", "identity", id, "err", err)
	} else if hit {
		res := &Resolution{Provenance: e.Provenance, LicenseID: e.LicenseID, Text: e.LicenseText}
		if !e.Found {
			return r.notFound(ctx, req, id, start, false)
		}
		observability.Resolver().OnResolveComplete(ctx, id, res.Provenance.String(), time.Since(start), nil)
		return res, nil
	}

	for _, src := range r.sources {
		res, err := src.Attempt(ctx, req)
		observability.Resolver().OnSourceAttempt(ctx, id, src.Name(), err)
		if err != nil {
			// A failed source is superseded, not retried.
			r.logger.Debug("license source failed", "identity", id, "source", src.Name(), "err", err)
			continue
		}
		if res == nil {
			continue
		}

		r.put(ctx, id, cache.Entry{
			Identity:        id,
			ResolverVersion: Version,
			Found:           true,
			Provenance:      res.Provenance,
			LicenseID:       res.LicenseID,
			LicenseText:     res.Text,
			CreatedAt:       time.Now().UTC(),
		})
		observability.Resolver().OnResolveComplete(ctx, id, res.Provenance.String(), time.Since(start), nil)
		return res, nil
	}

	return r.notFound(ctx, req, id, start, true)
}

func (r *Resolver) notFound(ctx context.Context, req Request, id string, start time.Time, record bool) (*Resolution, error) {
	if record {
		r.put(ctx, id, cache.Entry{
			Identity:        id,
			ResolverVersion: Version,
			Found:           false,
			Provenance:      license.ProvenanceNone,
			CreatedAt:       time.Now().UTC(),
		})
	}

	if r.strict(req) {
		err := lberrors.New(lberrors.ErrCodeSourceFailed, "no license found for %s (strict mode)", id)
		observability.Resolver().OnResolveComplete(ctx, id, license.ProvenanceNone.String(), time.Since(start), err)
		return nil, err
	}

	r.logger.Warn("no license found", "identity", id)
	observability.Resolver().OnResolveComplete(ctx, id, license.ProvenanceNone.String(), time.Since(start), nil)
	return &Resolution{Provenance: license.ProvenanceNone}, nil
}

func (r *Resolver) put(ctx context.Context, id string, e cache.Entry) {
	if err := r.cache.Put(ctx, e); err != nil {
		r.logger.Warn("cache write failed", "identity", id, "err", err)
	}
}
