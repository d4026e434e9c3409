package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/mod/module"
	"golang.org/x/sync/errgroup"

	lberrors "github.com/licensebundle/licensebundle/pkg/errors"
)

// Provider origin tags recorded on nodes and used in error context.
const (
	providerModules  = "go-list-modules"
	providerCompiled = "go-list-deps"
)

// runner abstracts external process invocation so tests can substitute
// canned provider output.
type runner interface {
	run(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, lberrors.Wrap(lberrors.ErrCodeProviderFailed, err, "%s %s: %s", name, strings.Join(args, " "), msg)
	}
	return stdout.Bytes(), nil
}

// Source invokes the two graph-metadata providers against a project root.
type Source struct {
	Root     string // project root containing go.mod
	GoBin    string // go executable; default "go"
	Frozen   bool   // fail on stale go.mod/go.sum instead of updating
	Modcache string // module cache root override; default queried from the toolchain
	Logger   *log.Logger

	run         runner
	modcacheOne sync.Once
}

// NewSource creates a graph source for the project at root.
func NewSource(root string, frozen bool, logger *log.Logger) *Source {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Source{
		Root:   root,
		GoBin:  "go",
		Frozen: frozen,
		Logger: logger,
		run:    execRunner{},
	}
}

// Load runs both providers and parses their output. The two invocations
// are independent and run concurrently; both must succeed. Any process
// failure or unparsable output is fatal.
func (s *Source) Load(ctx context.Context) (*Graphs, error) {
	g := &Graphs{}

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		nodes, err := s.loadRich(egctx)
		if err != nil {
			return err
		}
		g.Rich = nodes
		return nil
	})
	eg.Go(func() error {
		pkgs, err := s.loadLean(egctx)
		if err != nil {
			return err
		}
		g.Lean = pkgs
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	s.Logger.Debug("loaded dependency graphs",
		"modules", len(g.Rich),
		"packages", len(g.Lean))
	return g, nil
}

func (s *Source) loadRich(ctx context.Context) ([]Node, error) {
	out, err := s.run.run(ctx, s.Root, s.env(), s.goBin(),
		s.withModFlag("list", "-m", "-json", "all")...)
	if err != nil {
		return nil, err
	}
	nodes, err := ParseModules(out)
	if err != nil {
		return nil, lberrors.Wrap(lberrors.ErrCodeProviderFailed, err, "parse %s output", providerModules)
	}
	for i := range nodes {
		if nodes[i].Dir != "" || nodes[i].Main {
			continue
		}
		// The checkout lives under the replacement's path for replaced
		// modules, the declared path otherwise.
		path, version := nodes[i].Name, nodes[i].Version
		if nodes[i].replacePath != "" {
			path, version = nodes[i].replacePath, nodes[i].replaceVersion
		}
		nodes[i].Dir = s.modcacheDir(s.modcacheRoot(ctx), path, version)
	}
	return nodes, nil
}

func (s *Source) loadLean(ctx context.Context) ([]LeanPackage, error) {
	out, err := s.run.run(ctx, s.Root, s.env(), s.goBin(),
		s.withModFlag("list", "-deps", "-json=ImportPath,Standard,Module,Imports", "./...")...)
	if err != nil {
		return nil, err
	}
	pkgs, err := ParsePackages(out)
	if err != nil {
		return nil, lberrors.Wrap(lberrors.ErrCodeProviderFailed, err, "parse %s output", providerCompiled)
	}
	return pkgs, nil
}

func (s *Source) goBin() string {
	if s.GoBin == "" {
		return "go"
	}
	return s.GoBin
}

// withModFlag inserts the module-mode flag right after the subcommand.
// Frozen mode locks go.mod/go.sum: a lockfile that would need updating
// fails the run instead of being rewritten.
func (s *Source) withModFlag(sub string, rest ...string) []string {
	mode := "-mod=mod"
	if s.Frozen {
		mode = "-mod=readonly"
	}
	return append([]string{sub, mode}, rest...)
}

func (s *Source) env() []string {
	if s.Frozen {
		return []string{"GOPROXY=off", "GOFLAGS=-mod=readonly"}
	}
	return nil
}

// modcacheRoot returns the module cache location. GOMODCACHE is a
// `go env` setting that is rarely exported into the environment, so when
// neither the override nor the variable is set the toolchain is asked.
func (s *Source) modcacheRoot(ctx context.Context) string {
	s.modcacheOne.Do(func() {
		if s.Modcache != "" {
			return
		}
		if v := os.Getenv("GOMODCACHE"); v != "" {
			s.Modcache = v
			return
		}
		out, err := s.run.run(ctx, s.Root, nil, s.goBin(), "env", "GOMODCACHE")
		if err != nil {
			s.Logger.Debug("module cache location unavailable", "err", err)
			return
		}
		s.Modcache = strings.TrimSpace(string(out))
	})
	return s.Modcache
}

// modcacheDir derives the module-cache checkout path for a module that the
// provider reported without a Dir. Module paths are case-escaped on disk
// (uppercase letters become !-prefixed lowercase).
func (s *Source) modcacheDir(root, path, version string) string {
	if root == "" || version == "" {
		return ""
	}
	esc, err := module.EscapePath(path)
	if err != nil {
		return ""
	}
	escv, err := module.EscapeVersion(version)
	if err != nil {
		return ""
	}
	return filepath.Join(root, esc+"@"+escv)
}

// modListEntry mirrors the JSON objects emitted by `go list -m -json`.
type modListEntry struct {
	Path       string `json:"Path"`
	Version    string `json:"Version"`
	Main       bool   `json:"Main"`
	Dir        string `json:"Dir"`
	Deprecated string `json:"Deprecated"`
	Origin     *struct {
		VCS    string `json:"VCS"`
		URL    string `json:"URL"`
		Subdir string `json:"Subdir"`
	} `json:"Origin"`
	Replace *modListEntry `json:"Replace"`
}

// ParseModules decodes the concatenated JSON stream of the rich provider.
func ParseModules(data []byte) ([]Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var nodes []Node
	for {
		var m modListEntry
		if err := dec.Decode(&m); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		// A replace directive substitutes another checkout for the
		// declared module. Both providers keep reporting the declared
		// path and version at top level, so those stay the identity;
		// the replacement only supplies the checkout location and origin.
		n := Node{
			Name:       m.Path,
			Version:    m.Version,
			Dir:        m.Dir,
			Main:       m.Main,
			Deprecated: m.Deprecated,
			Provider:   providerModules,
		}
		eff := &m
		if m.Replace != nil {
			eff = m.Replace
			if eff.Dir != "" {
				n.Dir = eff.Dir
			}
			n.replacePath = eff.Path
			n.replaceVersion = eff.Version
		}
		if eff.Origin != nil {
			n.Origin = eff.Origin.URL
			n.Subdir = eff.Origin.Subdir
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 0 {
		return nil, errors.New("provider reported no modules")
	}
	return nodes, nil
}

// ParsePackages decodes the concatenated JSON stream of the lean provider.
func ParsePackages(data []byte) ([]LeanPackage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var pkgs []LeanPackage
	for {
		var p LeanPackage
		if err := dec.Decode(&p); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, p)
	}
	if len(pkgs) == 0 {
		return nil, errors.New("provider reported no packages")
	}
	return pkgs, nil
}
