package graph

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	lberrors "github.com/licensebundle/licensebundle/pkg/errors"
)

const modulesJSON = `
{
	"Path": "example.com/app",
	"Main": true,
	"Dir": "/home/user/app"
}
{
	"Path": "github.com/foo/bar",
	"Version": "v1.2.3",
	"Dir": "/go/pkg/mod/github.com/foo/bar@v1.2.3",
	"Origin": {
		"VCS": "git",
		"URL": "https://github.com/foo/bar"
	}
}
{
	"Path": "github.com/mono/repo/sub",
	"Version": "v0.5.0",
	"Origin": {
		"VCS": "git",
		"URL": "https://github.com/mono/repo",
		"Subdir": "sub"
	}
}
{
	"Path": "github.com/old/name",
	"Version": "v1.0.0",
	"Replace": {
		"Path": "github.com/new/name",
		"Version": "v1.1.0",
		"Dir": "/go/pkg/mod/github.com/new/name@v1.1.0"
	}
}
`

const packagesJSON = `
{
	"ImportPath": "fmt",
	"Standard": true
}
{
	"ImportPath": "example.com/app",
	"Module": {"Path": "example.com/app", "Main": true},
	"Imports": ["fmt", "github.com/foo/bar"]
}
{
	"ImportPath": "github.com/foo/bar",
	"Module": {"Path": "github.com/foo/bar", "Version": "v1.2.3"},
	"Imports": ["fmt"]
}
`

func TestParseModules(t *testing.T) {
	nodes, err := ParseModules([]byte(modulesJSON))
	if err != nil {
		t.Fatalf("ParseModules: %v", err)
	}
	if len(nodes) != 4 {
		t.Fatalf("len = %d, want 4", len(nodes))
	}

	root := nodes[0]
	if !root.Main || root.Identity() != "example.com/app" {
		t.Errorf("root node = %+v", root)
	}

	bar := nodes[1]
	if bar.Identity() != "github.com/foo/bar@v1.2.3" {
		t.Errorf("Identity = %q", bar.Identity())
	}
	if bar.Origin != "https://github.com/foo/bar" {
		t.Errorf("Origin = %q", bar.Origin)
	}

	mono := nodes[2]
	if mono.Subdir != "sub" {
		t.Errorf("Subdir = %q, want sub", mono.Subdir)
	}
}

func TestParseModulesReplace(t *testing.T) {
	nodes, err := ParseModules([]byte(modulesJSON))
	if err != nil {
		t.Fatalf("ParseModules: %v", err)
	}

	// The declared path and version stay the identity (both providers
	// report them at top level); the replacement provides the checkout.
	repl := nodes[3]
	if repl.Identity() != "github.com/old/name@v1.0.0" {
		t.Errorf("Identity = %q, want declared path and version", repl.Identity())
	}
	if repl.Dir != "/go/pkg/mod/github.com/new/name@v1.1.0" {
		t.Errorf("Dir = %q, want replacement dir", repl.Dir)
	}
	if repl.replacePath != "github.com/new/name" || repl.replaceVersion != "v1.1.0" {
		t.Errorf("replacement target = %q@%q", repl.replacePath, repl.replaceVersion)
	}
}

func TestParseModulesGarbage(t *testing.T) {
	if _, err := ParseModules([]byte("not json at all")); err == nil {
		t.Error("expected error for unparsable output")
	}
	if _, err := ParseModules(nil); err == nil {
		t.Error("expected error for empty output")
	}
}

func TestParsePackages(t *testing.T) {
	pkgs, err := ParsePackages([]byte(packagesJSON))
	if err != nil {
		t.Fatalf("ParsePackages: %v", err)
	}
	if len(pkgs) != 3 {
		t.Fatalf("len = %d, want 3", len(pkgs))
	}
	if !pkgs[0].Standard {
		t.Error("fmt should be standard")
	}
	if pkgs[2].Module == nil || pkgs[2].Module.Identity() != "github.com/foo/bar@v1.2.3" {
		t.Errorf("module ref = %+v", pkgs[2].Module)
	}
}

type fakeRunner struct {
	byArg map[string][]byte // keyed by a distinguishing argument
	err   error
	calls [][]string
}

func (f *fakeRunner) run(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, args)
	if f.err != nil {
		return nil, f.err
	}
	joined := strings.Join(args, " ")
	for key, out := range f.byArg {
		if strings.Contains(joined, key) {
			return out, nil
		}
	}
	return nil, lberrors.New(lberrors.ErrCodeInternal, "no fixture for %v", args)
}

// listCalls counts provider invocations, ignoring `go env` lookups.
func (f *fakeRunner) listCalls() int {
	n := 0
	for _, args := range f.calls {
		if len(args) > 0 && args[0] == "list" {
			n++
		}
	}
	return n
}

func TestSourceLoad(t *testing.T) {
	t.Setenv("GOMODCACHE", "")
	fr := &fakeRunner{byArg: map[string][]byte{
		"-m -json": []byte(modulesJSON),
		"-deps":    []byte(packagesJSON),
	}}
	s := NewSource("/project", false, nil)
	s.run = fr

	g, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(g.Rich) != 4 || len(g.Lean) != 3 {
		t.Errorf("rich=%d lean=%d, want 4/3", len(g.Rich), len(g.Lean))
	}
	if got := fr.listCalls(); got != 2 {
		t.Errorf("list calls = %d, want 2 providers", got)
	}
}

func TestSourceLoadQueriesModcache(t *testing.T) {
	t.Setenv("GOMODCACHE", "")
	modules := `
{"Path": "example.com/app", "Main": true, "Dir": "/home/user/app"}
{"Path": "github.com/plain/dep", "Version": "v0.5.0"}
{"Path": "github.com/old/name", "Version": "v1.0.0",
 "Replace": {"Path": "github.com/new/name", "Version": "v1.1.0"}}
`
	fr := &fakeRunner{byArg: map[string][]byte{
		"-m -json":       []byte(modules),
		"-deps":          []byte(packagesJSON),
		"env GOMODCACHE": []byte("/fake/mod\n"),
	}}
	s := NewSource("/project", false, nil)
	s.run = fr

	g, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	plain := g.Rich[1]
	if want := filepath.Join("/fake/mod", "github.com/plain/dep@v0.5.0"); plain.Dir != want {
		t.Errorf("Dir = %q, want %q", plain.Dir, want)
	}

	// A replaced module without a reported checkout lives under the
	// replacement's path in the cache.
	repl := g.Rich[2]
	if want := filepath.Join("/fake/mod", "github.com/new/name@v1.1.0"); repl.Dir != want {
		t.Errorf("replaced Dir = %q, want %q", repl.Dir, want)
	}
}

func TestSourceLoadProviderFailureIsFatal(t *testing.T) {
	fr := &fakeRunner{err: lberrors.New(lberrors.ErrCodeProviderFailed, "go: command not found")}
	s := NewSource("/project", false, nil)
	s.run = fr

	_, err := s.Load(context.Background())
	if !lberrors.Is(err, lberrors.ErrCodeProviderFailed) {
		t.Errorf("err = %v, want PROVIDER_FAILED", err)
	}
}

func TestFrozenModeFlags(t *testing.T) {
	s := NewSource("/project", true, nil)
	args := s.withModFlag("list", "-m", "-json", "all")
	if args[1] != "-mod=readonly" {
		t.Errorf("frozen args = %v, want -mod=readonly second", args)
	}

	env := s.env()
	joined := strings.Join(env, " ")
	if !strings.Contains(joined, "GOPROXY=off") {
		t.Errorf("frozen env = %v, want GOPROXY=off", env)
	}

	s.Frozen = false
	if args := s.withModFlag("list"); args[1] != "-mod=mod" {
		t.Errorf("non-frozen args = %v, want -mod=mod", args)
	}
	if env := s.env(); env != nil {
		t.Errorf("non-frozen env = %v, want nil", env)
	}
}

func TestModcacheDir(t *testing.T) {
	s := NewSource("/project", false, nil)

	got := s.modcacheDir("/go/pkg/mod", "github.com/BurntSushi/toml", "v1.5.0")
	want := filepath.Join("/go/pkg/mod", "github.com/!burnt!sushi/toml@v1.5.0")
	if got != want {
		t.Errorf("modcacheDir = %q, want %q", got, want)
	}

	if s.modcacheDir("/go/pkg/mod", "github.com/foo/bar", "") != "" {
		t.Error("no version should yield no dir")
	}

	if s.modcacheDir("", "github.com/foo/bar", "v1.0.0") != "" {
		t.Error("no modcache root should yield no dir")
	}
}
