package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/licensebundle/licensebundle/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	var (
		root       string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the license resolution cache",
	}

	cmd.PersistentFlags().StringVar(&root, "root", ".", "project root containing the module definition")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: licensebundle.toml under the root)")

	cmd.AddCommand(c.cacheClearCommand(&root, &configPath))
	cmd.AddCommand(c.cachePathCommand(&root, &configPath))

	return cmd
}

// resolveCacheDir determines the cache directory the way bundle does: a
// cache-dir setting in the project's config file wins over the XDG
// default. The second return is false when caching is disabled.
func resolveCacheDir(root, configPath string) (string, bool, error) {
	cfg, err := config.Load(root, configPath)
	if err != nil {
		return "", false, err
	}
	switch cfg.CacheDir {
	case "off":
		return "", false, nil
	case "":
		dir, err := cacheDir()
		if err != nil {
			return "", false, fmt.Errorf("get cache dir: %w", err)
		}
		return dir, true, nil
	}
	dir := cfg.CacheDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return dir, true, nil
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand(root, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all cached resolution outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, enabled, err := resolveCacheDir(*root, *configPath)
			if err != nil {
				return err
			}
			if !enabled {
				printInfo("Caching is disabled")
				return nil
			}

			if _, err := os.Stat(dir); os.IsNotExist(err) {
				printInfo("Cache is empty")
				return nil
			}

			count := 0
			err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return nil // Skip errors, continue walking
				}
				if path == dir {
					return nil
				}
				if !info.IsDir() {
					if err := os.Remove(path); err == nil {
						count++
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			// Clean up empty subdirectories
			_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
				if err != nil || path == dir {
					return nil
				}
				if info.IsDir() {
					os.Remove(path)
				}
				return nil
			})

			printSuccess("Cleared %d cached entries", count)
			printDetail("Directory: %s", dir)
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand(root, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, enabled, err := resolveCacheDir(*root, *configPath)
			if err != nil {
				return err
			}
			if !enabled {
				printInfo("Caching is disabled")
				return nil
			}
			fmt.Println(dir)
			return nil
		},
	}
}
