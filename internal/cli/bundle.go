package cli

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/licensebundle/licensebundle/pkg/config"
	"github.com/licensebundle/licensebundle/pkg/pipeline"
)

// bundleCommand creates the "bundle" command, the main entry point: it
// runs the full pipeline and writes the artifact.
func (c *CLI) bundleCommand() *cobra.Command {
	var (
		root        string
		configPath  string
		output      string
		frozen      bool
		strict      bool
		noCache     bool
		concurrency int
		timeout     time.Duration
		pattern     string
		token       string
	)

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Collect dependency licenses and write the artifact",
		Long: `Bundle runs the full pipeline: it asks the build toolchain for both
views of the dependency graph, narrows them down to the modules actually
compiled into the binary, resolves a license text for each one, and
writes the compressed artifact.

Settings come from licensebundle.toml in the project root when present;
flags override the file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root, configPath)
			if err != nil {
				return err
			}

			// Flags that were set explicitly win over the config file.
			flags := cmd.Flags()
			if flags.Changed("output") {
				cfg.Output = output
			}
			if flags.Changed("frozen") {
				cfg.Frozen = frozen
			}
			if flags.Changed("strict") {
				cfg.Strict = strict
			}
			if flags.Changed("concurrency") {
				cfg.Concurrency = concurrency
			}
			if flags.Changed("timeout") {
				cfg.Timeout = config.Duration(timeout)
			}
			if flags.Changed("pattern") {
				cfg.Pattern = pattern
			}

			opts := pipeline.OptionsFromConfig(cfg, root)
			opts.GitHubToken = token
			if opts.GitHubToken == "" {
				opts.GitHubToken = os.Getenv("GITHUB_TOKEN")
			}
			opts.Logger = c.Logger

			cacheOverride := cfg.CacheDir
			if cacheOverride != "" && cacheOverride != "off" && !filepath.IsAbs(cacheOverride) {
				cacheOverride = filepath.Join(root, cacheOverride)
			}
			runner, store := c.newRunner(noCache, cacheOverride)
			defer store.Close()

			result, err := runner.Execute(cmd.Context(), opts)
			if err != nil {
				return err
			}

			outPath := cfg.Output
			if !filepath.IsAbs(outPath) {
				outPath = filepath.Join(root, outPath)
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(outPath, result.Artifact, 0o644); err != nil {
				return err
			}

			printSuccess("Bundled %d packages (%d with license, %d without)",
				result.Packages.Len(), result.Stats.ResolvedCount, result.Stats.MissingCount)
			printFile(outPath)
			printDetail("%d bytes compressed", len(result.Artifact))
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "project root containing the module definition")
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default: licensebundle.toml under the root)")
	cmd.Flags().StringVarP(&output, "output", "o", "licenses.bin", "artifact output path")
	cmd.Flags().BoolVar(&frozen, "frozen", false, "fail instead of updating dependency resolution state")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when a license cannot be found")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the resolution cache")
	cmd.Flags().IntVar(&concurrency, "concurrency", pipeline.DefaultConcurrency, "parallel license resolutions")
	cmd.Flags().DurationVar(&timeout, "timeout", pipeline.DefaultTimeout, "per-operation network timeout")
	cmd.Flags().StringVar(&pattern, "pattern", "", "license file-name regular expression override")
	cmd.Flags().StringVar(&token, "github-token", "", "GitHub API token (default: $GITHUB_TOKEN)")

	return cmd
}
