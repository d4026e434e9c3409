package license

import (
	"strings"
	"testing"
)

func TestSortOrder(t *testing.T) {
	l := NewPackageList(
		Package{Name: "zlib", Version: "1.3.0"},
		Package{Name: "acme", Version: "0.10.0"},
		Package{Name: "acme", Version: "0.9.0"},
	)

	got := make([]string, 0, l.Len())
	for i := range l.Len() {
		got = append(got, l.At(i).Identity())
	}

	want := []string{"acme@0.9.0", "acme@0.10.0", "zlib@1.3.0"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSortIsSemverAware(t *testing.T) {
	// A plain string sort would put 0.10.0 before 0.9.0.
	l := NewPackageList(
		Package{Name: "a", Version: "0.10.0"},
		Package{Name: "a", Version: "0.9.0"},
	)
	if l.At(0).Version != "0.9.0" {
		t.Errorf("first version = %s, want 0.9.0", l.At(0).Version)
	}
}

func TestSortDeterminism(t *testing.T) {
	pkgs := []Package{
		{Name: "b", Version: "2.0.0"},
		{Name: "a", Version: "1.0.0", Origin: "https://proxy.golang.org"},
		{Name: "a", Version: "1.0.0"},
	}
	l1 := NewPackageList(pkgs...)
	l2 := NewPackageList(pkgs[2], pkgs[0], pkgs[1])

	for i := range l1.Len() {
		if l1.At(i).Identity() != l2.At(i).Identity() {
			t.Fatalf("insertion order changed result: %q vs %q", l1.At(i).Identity(), l2.At(i).Identity())
		}
	}
}

func TestAppendKeepsOrder(t *testing.T) {
	l := NewPackageList(
		Package{Name: "m", Version: "1.0.0"},
		Package{Name: "z", Version: "1.0.0"},
	)
	l.Append(Package{Name: "a", Version: "1.0.0", LicenseText: "vendored license"})

	if l.Len() != 3 {
		t.Fatalf("Len = %d, want 3", l.Len())
	}
	if l.At(0).Name != "a" {
		t.Errorf("appended package not re-sorted into place, first = %s", l.At(0).Name)
	}
}

func TestIdentity(t *testing.T) {
	p := Package{Name: "acme", Version: "1.2.3"}
	if p.Identity() != "acme@1.2.3" {
		t.Errorf("Identity = %q", p.Identity())
	}
	p.Origin = "https://github.com/acme/acme"
	if p.Identity() != "acme@1.2.3 (https://github.com/acme/acme)" {
		t.Errorf("Identity with origin = %q", p.Identity())
	}
}

func TestStringRendering(t *testing.T) {
	l := NewPackageList(Package{
		Name:        "acme",
		Version:     "1.0.0",
		Authors:     []string{"Jane Doe", "John Roe"},
		Description: "An example package",
		Homepage:    "https://acme.example",
		Repository:  "https://github.com/acme/acme",
		LicenseID:   "MIT",
		LicenseText: "Permission is hereby granted...",
		Provenance:  ProvenanceLocalDisk,
	})

	out := l.String()
	for _, want := range []string{
		"Package:     acme 1.0.0",
		"Description: An example package",
		"Authors:     - Jane Doe",
		"             - John Roe",
		"Homepage:    https://acme.example",
		"Repository:  https://github.com/acme/acme",
		"SPDX Ident:  MIT",
		"Permission is hereby granted...",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q", want)
		}
	}
}

func TestSummary(t *testing.T) {
	l := NewPackageList(
		Package{Name: "a", Version: "1.0.0", LicenseText: "MIT text", Provenance: ProvenanceLocalDisk},
		Package{Name: "b", Version: "2.0.0"},
	)
	out := l.Summary()
	if !strings.Contains(out, "local-disk") {
		t.Errorf("Summary missing provenance: %q", out)
	}
	if !strings.Contains(out, "no license") {
		t.Errorf("Summary missing availability marker: %q", out)
	}
}

func TestProvenanceString(t *testing.T) {
	cases := map[Provenance]string{
		ProvenanceNone:           "none",
		ProvenanceLocalDisk:      "local-disk",
		ProvenanceRemoteAPI:      "remote-api",
		ProvenanceVersionControl: "version-control",
	}
	for p, want := range cases {
		if p.String() != want {
			t.Errorf("%d.String() = %q, want %q", p, p.String(), want)
		}
		if !p.Valid() {
			t.Errorf("%q should be valid", want)
		}
	}
	if Provenance(42).Valid() {
		t.Error("undefined provenance should be invalid")
	}
}
