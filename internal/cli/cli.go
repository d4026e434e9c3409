// Package cli implements the licensebundle command-line interface.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/licensebundle/licensebundle/pkg/buildinfo"
	"github.com/licensebundle/licensebundle/pkg/cache"
	"github.com/licensebundle/licensebundle/pkg/pipeline"
)

// appName is the application name used for directories and display.
const appName = "licensebundle"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "licensebundle collects dependency licenses into an embeddable artifact",
		Long:          `licensebundle walks the build's dependency graph, fetches the license text of every package compiled into the binary, and packs the result into a compact artifact the binary can embed and print at runtime.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.bundleCommand())
	root.AddCommand(c.printCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newRunner creates a pipeline runner for CLI use. The returned cache
// must be closed after the run.
func (c *CLI) newRunner(noCache bool, cacheOverride string) (*pipeline.Runner, cache.Cache) {
	store := c.newCache(noCache, cacheOverride)
	return pipeline.NewRunner(store, c.Logger), store
}

// newCache opens the file cache, degrading to the null cache when the
// backing directory is unusable. Caching never fails a run.
func (c *CLI) newCache(noCache bool, override string) cache.Cache {
	if noCache || override == "off" {
		return cache.NewNullCache()
	}
	dir := override
	if dir == "" {
		var err error
		dir, err = cacheDir()
		if err != nil {
			return cache.NewNullCache()
		}
	}
	store, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warn("cache unavailable, continuing without", "dir", dir, "err", err)
		return cache.NewNullCache()
	}
	return store
}

// cacheDir returns the cache directory using XDG standard (~/.cache/licensebundle/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
