package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/licensebundle/licensebundle/pkg/cache"
	lberrors "github.com/licensebundle/licensebundle/pkg/errors"
	"github.com/licensebundle/licensebundle/pkg/license"
)

// fakeSource scripts one step of the chain and counts its invocations.
type fakeSource struct {
	name  string
	res   *Resolution
	err   error
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Attempt(ctx context.Context, req Request) (*Resolution, error) {
	f.calls++
	return f.res, f.err
}

func TestResolveFirstSourceWins(t *testing.T) {
	first := &fakeSource{name: "a", res: &Resolution{Provenance: license.ProvenanceLocalDisk, Text: "MIT text"}}
	second := &fakeSource{name: "b", res: &Resolution{Provenance: license.ProvenanceRemoteAPI, Text: "other"}}
	r := New(cache.NewMemoryCache(), nil, nil, first, second)

	res, err := r.Resolve(context.Background(), Request{Name: "foo", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Text != "MIT text" || res.Provenance != license.ProvenanceLocalDisk {
		t.Errorf("Resolve() = %+v, want first source's resolution", res)
	}
	if second.calls != 0 {
		t.Errorf("second source called %d times, want 0", second.calls)
	}
}

func TestResolveFallsThroughOnError(t *testing.T) {
	failing := &fakeSource{name: "a", err: errors.New("boom")}
	backup := &fakeSource{name: "b", res: &Resolution{Provenance: license.ProvenanceVersionControl, Text: "Apache text"}}
	r := New(nil, nil, nil, failing, backup)

	res, err := r.Resolve(context.Background(), Request{Name: "foo", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Provenance != license.ProvenanceVersionControl {
		t.Errorf("provenance = %v, want version-control", res.Provenance)
	}
	if failing.calls != 1 {
		t.Errorf("failing source called %d times, want exactly 1", failing.calls)
	}
}

func TestResolveNotFoundLenient(t *testing.T) {
	empty := &fakeSource{name: "a"}
	r := New(nil, LenientAll, nil, empty)

	res, err := r.Resolve(context.Background(), Request{Name: "foo", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Provenance != license.ProvenanceNone || res.Text != "" {
		t.Errorf("Resolve() = %+v, want empty not-found resolution", res)
	}
}

func TestResolveNotFoundStrict(t *testing.T) {
	r := New(nil, StrictAll, nil, &fakeSource{name: "a"})

	_, err := r.Resolve(context.Background(), Request{Name: "foo", Version: "1.0.0"})
	if err == nil {
		t.Fatal("Resolve() error = nil, want strict-mode failure")
	}
	if !lberrors.Is(err, lberrors.ErrCodeSourceFailed) {
		t.Errorf("error code = %v, want LICENSE_SOURCE_FAILED", lberrors.GetCode(err))
	}
}

func TestStrictExcept(t *testing.T) {
	policy := StrictExcept("tolerated")
	if policy(Request{Name: "tolerated"}) {
		t.Error("exempt package treated as strict")
	}
	if !policy(Request{Name: "other"}) {
		t.Error("non-exempt package not treated as strict")
	}
}

func TestResolveCacheHitSkipsSources(t *testing.T) {
	src := &fakeSource{name: "a", res: &Resolution{Provenance: license.ProvenanceLocalDisk, LicenseID: "MIT", Text: "MIT text"}}
	c := cache.NewMemoryCache()
	r := New(c, nil, nil, src)
	req := Request{Name: "foo", Version: "1.0.0"}

	if _, err := r.Resolve(context.Background(), req); err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	res, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if src.calls != 1 {
		t.Errorf("source called %d times, want 1", src.calls)
	}
	if res.LicenseID != "MIT" || res.Text != "MIT text" {
		t.Errorf("cached resolution = %+v", res)
	}
}

func TestResolveCachesNotFound(t *testing.T) {
	empty := &fakeSource{name: "a"}
	r := New(cache.NewMemoryCache(), nil, nil, empty)
	req := Request{Name: "foo", Version: "1.0.0"}

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), req); err != nil {
			t.Fatalf("Resolve() #%d error = %v", i, err)
		}
	}
	if empty.calls != 1 {
		t.Errorf("source called %d times, want 1 (not-found should be cached)", empty.calls)
	}
}

func TestResolveStaleResolverVersionIgnored(t *testing.T) {
	c := cache.NewMemoryCache()
	err := c.Put(context.Background(), cache.Entry{
		Identity:        "foo@1.0.0",
		ResolverVersion: Version - 1,
		Found:           true,
		Provenance:      license.ProvenanceLocalDisk,
		LicenseText:     "stale",
	})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	src := &fakeSource{name: "a", res: &Resolution{Provenance: license.ProvenanceRemoteAPI, Text: "fresh"}}
	r := New(c, nil, nil, src)
	res, err := r.Resolve(context.Background(), Request{Name: "foo", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Text != "fresh" {
		t.Errorf("text = %q, want fresh resolution over stale cache entry", res.Text)
	}
	if src.calls != 1 {
		t.Errorf("source called %d times, want 1", src.calls)
	}
}

func TestRequestIdentity(t *testing.T) {
	plain := Request{Name: "foo", Version: "1.0.0"}
	if got := plain.Identity(); got != "foo@1.0.0" {
		t.Errorf("Identity() = %q", got)
	}
	withOrigin := Request{Name: "foo", Version: "1.0.0", Origin: "https://example.com/foo"}
	if got := withOrigin.Identity(); got == plain.Identity() {
		t.Error("identity ignores origin")
	}
}
