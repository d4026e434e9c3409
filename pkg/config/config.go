// Package config loads the optional licensebundle.toml project file.
// Every field has a sensible default; the file only needs to exist when
// a project wants to override one, add vendored package entries, or pin
// the policy for CI.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"

	lberrors "github.com/licensebundle/licensebundle/pkg/errors"
)

// DefaultFileName is looked up in the project root when no explicit
// config path is given.
const DefaultFileName = "licensebundle.toml"

// Duration wraps time.Duration so TOML files can say "45s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// ExtraPackage is a package declared by hand, for dependencies the
// build graph cannot see (system libraries, vendored C code).
type ExtraPackage struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Authors     []string `toml:"authors"`
	Description string   `toml:"description"`
	Homepage    string   `toml:"homepage"`
	Repository  string   `toml:"repository"`
	LicenseID   string   `toml:"license-id"`
	LicenseText string   `toml:"license-text"`
	// LicenseFile is read at load time, relative to the config file.
	LicenseFile string `toml:"license-file"`
}

// Config is the project-level configuration.
type Config struct {
	// Output is the artifact path, relative to the project root.
	Output string `toml:"output"`

	// Frozen forbids any change to dependency resolution state while
	// the graphs are produced.
	Frozen bool `toml:"frozen"`

	// Strict makes an unresolved license fatal.
	Strict bool `toml:"strict"`

	// StrictExempt lists packages tolerated without a license even
	// under strict mode.
	StrictExempt []string `toml:"strict-exempt"`

	// Concurrency bounds parallel license resolutions.
	Concurrency int `toml:"concurrency"`

	// Timeout bounds each network operation.
	Timeout Duration `toml:"timeout"`

	// Pattern overrides the license file-name regular expression.
	Pattern string `toml:"pattern"`

	// CacheDir overrides the resolution cache location. "off" disables
	// caching entirely.
	CacheDir string `toml:"cache-dir"`

	Extra []ExtraPackage `toml:"extra"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Output:      "licenses.bin",
		Strict:      false,
		Concurrency: 8,
		Timeout:     Duration(30 * time.Second),
	}
}

// Load reads the config file at path, or the default file under root
// when path is empty. A missing default file yields [Default]; a missing
// explicit path is an error.
func Load(root, path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, DefaultFileName)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, lberrors.Wrap(lberrors.ErrCodeInvalidInput, err, "load config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, lberrors.New(lberrors.ErrCodeInvalidInput, "unknown config key %q in %s", undecoded[0].String(), path)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := cfg.loadLicenseFiles(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Concurrency < 1 {
		return lberrors.New(lberrors.ErrCodeInvalidInput, "concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Timeout < 0 {
		return lberrors.New(lberrors.ErrCodeInvalidInput, "timeout must not be negative")
	}
	if c.Pattern != "" {
		if _, err := regexp.Compile(c.Pattern); err != nil {
			return lberrors.Wrap(lberrors.ErrCodeInvalidInput, err, "invalid pattern")
		}
	}
	for i, e := range c.Extra {
		if e.Name == "" {
			return lberrors.New(lberrors.ErrCodeInvalidInput, "extra package #%d has no name", i+1)
		}
		if e.LicenseText != "" && e.LicenseFile != "" {
			return lberrors.New(lberrors.ErrCodeInvalidInput, "extra package %q sets both license-text and license-file", e.Name)
		}
	}
	return nil
}

// loadLicenseFiles inlines license-file contents so downstream code only
// ever sees LicenseText.
func (c *Config) loadLicenseFiles(dir string) error {
	for i := range c.Extra {
		e := &c.Extra[i]
		if e.LicenseFile == "" {
			continue
		}
		p := e.LicenseFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return lberrors.Wrap(lberrors.ErrCodeInvalidInput, err, "read license file for extra package %q", e.Name)
		}
		e.LicenseText = string(data)
		e.LicenseFile = ""
	}
	return nil
}
