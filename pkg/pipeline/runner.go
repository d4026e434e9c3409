package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/licensebundle/licensebundle/pkg/cache"
	"github.com/licensebundle/licensebundle/pkg/codec"
	"github.com/licensebundle/licensebundle/pkg/graph"
	"github.com/licensebundle/licensebundle/pkg/httputil"
	"github.com/licensebundle/licensebundle/pkg/license"
	"github.com/licensebundle/licensebundle/pkg/resolve"
)

// Runner executes the pipeline. It is stateless except for the cache and
// logger; multiple goroutines can share one Runner with different
// options.
type Runner struct {
	Cache  cache.Cache
	Logger *log.Logger

	// newSource is swappable for tests.
	newSource func(root string, frozen bool, logger *log.Logger) GraphSource
}

// GraphSource produces the raw provider output for a project root.
type GraphSource interface {
	Load(ctx context.Context) (*graph.Graphs, error)
}

// NewRunner creates a runner. A nil cache disables caching; a nil logger
// discards progress output.
func NewRunner(c cache.Cache, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{
		Cache:  c,
		Logger: logger,
		newSource: func(root string, frozen bool, logger *log.Logger) GraphSource {
			return graph.NewSource(root, frozen, logger)
		},
	}
}

// Execute runs the collect, reconcile, resolve and encode stages.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = r.Logger
	}

	// Stage 1: Collect both graph views and reconcile them.
	graphStart := time.Now()
	graphs, err := r.newSource(opts.Root, opts.Frozen, logger).Load(ctx)
	if err != nil {
		return nil, err
	}
	nodes, err := graph.Reconcile(graphs)
	if err != nil {
		return nil, err
	}
	result := &Result{}
	result.Stats.ModuleCount = len(graphs.Rich)
	result.Stats.CompiledCount = len(nodes)
	result.Stats.GraphTime = time.Since(graphStart)

	logger.Info("reconciled dependency graphs",
		"modules", len(graphs.Rich),
		"compiled", len(nodes),
		"duration", result.Stats.GraphTime)

	// Stage 2: Resolve a license per compiled module.
	resolveStart := time.Now()
	resolver, err := r.buildResolver(opts, logger)
	if err != nil {
		return nil, err
	}

	packages := make([]license.Package, len(nodes))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Concurrency)
	for i, node := range nodes {
		eg.Go(func() error {
			res, err := resolver.Resolve(egctx, resolve.Request{
				Name:       node.Name,
				Version:    node.Version,
				Origin:     node.Origin,
				Dir:        node.Dir,
				Repository: node.Origin,
				Subdir:     node.Subdir,
			})
			if err != nil {
				return err
			}
			packages[i] = license.Package{
				Name:        node.Name,
				Version:     node.Version,
				Origin:      node.Origin,
				Repository:  node.Origin,
				LicenseID:   res.LicenseID,
				LicenseText: res.Text,
				Provenance:  res.Provenance,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	list := license.NewPackageList(packages...)
	for _, e := range opts.Extra {
		list.Append(e)
	}
	result.Packages = list
	for _, p := range list.Packages() {
		if p.HasLicense() {
			result.Stats.ResolvedCount++
		} else {
			result.Stats.MissingCount++
		}
	}
	result.Stats.ResolveTime = time.Since(resolveStart)

	logger.Info("resolved licenses",
		"resolved", result.Stats.ResolvedCount,
		"missing", result.Stats.MissingCount,
		"duration", result.Stats.ResolveTime)

	// Stage 3: Encode the artifact.
	encodeStart := time.Now()
	artifact, err := codec.Encode(list)
	if err != nil {
		return nil, err
	}
	result.Artifact = artifact
	result.Stats.EncodeTime = time.Since(encodeStart)

	logger.Info("encoded artifact",
		"packages", list.Len(),
		"bytes", len(artifact),
		"duration", result.Stats.EncodeTime)
	return result, nil
}

func (r *Runner) buildResolver(opts Options, logger *log.Logger) (*resolve.Resolver, error) {
	local, err := resolve.NewLocalDisk(opts.Pattern)
	if err != nil {
		return nil, err
	}
	vcs, err := resolve.NewVCS(opts.Pattern, opts.Timeout)
	if err != nil {
		return nil, err
	}
	forgeOpts := []resolve.GitHubOption{
		resolve.WithHTTPClient(httputil.NewClient(opts.Timeout)),
	}
	if opts.GitHubToken != "" {
		forgeOpts = append(forgeOpts, resolve.WithToken(opts.GitHubToken))
	}
	forge := resolve.NewGitHub(forgeOpts...)

	policy := resolve.LenientAll
	if opts.Strict {
		policy = resolve.StrictExcept(opts.StrictExempt...)
	}
	return resolve.New(r.Cache, policy, logger, local, forge, vcs), nil
}
