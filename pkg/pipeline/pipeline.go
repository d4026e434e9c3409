// Package pipeline runs the complete license-harvesting pipeline:
// collect the two dependency-graph views, reconcile them into the
// compiled module set, resolve a license per module through the source
// chain, and encode the result into the embeddable artifact.
//
// The same Runner backs the CLI and any programmatic embedding (a
// go:generate directive, a release script), so behavior stays identical
// across entry points.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{Root: "."})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("licenses.bin", result.Artifact, 0o644)
package pipeline

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/licensebundle/licensebundle/pkg/config"
	lberrors "github.com/licensebundle/licensebundle/pkg/errors"
	"github.com/licensebundle/licensebundle/pkg/license"
)

const (
	// DefaultConcurrency bounds parallel license resolutions. Most time
	// is spent waiting on the network or disk, so this can comfortably
	// exceed GOMAXPROCS.
	DefaultConcurrency = 8

	// DefaultTimeout bounds each network operation (one API call, one
	// shallow clone).
	DefaultTimeout = 30 * time.Second
)

// Options configures one pipeline run.
type Options struct {
	// Root is the project directory containing go.mod.
	Root string

	// Frozen forbids changes to go.mod/go.sum and disables the module
	// proxy while the graphs are produced.
	Frozen bool

	// Strict makes an unresolved license fatal.
	Strict bool

	// StrictExempt lists package names tolerated without a license even
	// under strict mode.
	StrictExempt []string

	// Concurrency bounds parallel resolutions; 0 means DefaultConcurrency.
	Concurrency int

	// Timeout bounds each network operation; 0 means DefaultTimeout.
	Timeout time.Duration

	// Pattern overrides the license file-name regular expression.
	Pattern string

	// GitHubToken authenticates forge API calls, raising the rate limit.
	GitHubToken string

	// Extra packages appended to the bundle verbatim, for dependencies
	// the build graph cannot see.
	Extra []license.Package

	// Logger for progress output; nil discards.
	Logger *log.Logger

	validated bool
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// Idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Root == "" {
		return lberrors.New(lberrors.ErrCodeInvalidInput, "project root is required")
	}
	if o.Concurrency < 0 {
		return lberrors.New(lberrors.ErrCodeInvalidInput, "concurrency must not be negative")
	}
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	o.validated = true
	return nil
}

// OptionsFromConfig maps a loaded project config onto pipeline options.
func OptionsFromConfig(cfg *config.Config, root string) Options {
	extra := make([]license.Package, 0, len(cfg.Extra))
	for _, e := range cfg.Extra {
		extra = append(extra, license.Package{
			Name:        e.Name,
			Version:     e.Version,
			Authors:     e.Authors,
			Description: e.Description,
			Homepage:    e.Homepage,
			Repository:  e.Repository,
			LicenseID:   e.LicenseID,
			LicenseText: e.LicenseText,
			Provenance:  license.ProvenanceLocalDisk,
		})
	}
	return Options{
		Root:         root,
		Frozen:       cfg.Frozen,
		Strict:       cfg.Strict,
		StrictExempt: cfg.StrictExempt,
		Concurrency:  cfg.Concurrency,
		Timeout:      time.Duration(cfg.Timeout),
		Pattern:      cfg.Pattern,
		Extra:        extra,
	}
}

// Result contains the outputs of one pipeline run.
type Result struct {
	// Packages is the assembled bundle, sorted.
	Packages *license.PackageList

	// Artifact is the encoded, compressed bundle ready to write out.
	Artifact []byte

	// Stats contains timing and count information.
	Stats Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	ModuleCount   int // modules reported by the rich provider
	CompiledCount int // modules surviving reconciliation
	ResolvedCount int // modules with a license text
	MissingCount  int // modules without one
	GraphTime     time.Duration
	ResolveTime   time.Duration
	EncodeTime    time.Duration
}
