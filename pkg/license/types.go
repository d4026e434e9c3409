// Package license defines the public data model of licensebundle: the
// per-dependency [Package] record and the ordered [PackageList] aggregate
// that gets serialized into the embedded artifact.
package license

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// Provenance identifies which source produced a license resolution.
type Provenance uint8

const (
	// ProvenanceNone means no source produced a license text.
	ProvenanceNone Provenance = iota
	// ProvenanceLocalDisk means the text was read from the local checkout.
	ProvenanceLocalDisk
	// ProvenanceRemoteAPI means the text came from a hosted-forge API.
	ProvenanceRemoteAPI
	// ProvenanceVersionControl means the text came from a shallow VCS fetch.
	ProvenanceVersionControl
)

var provenanceNames = map[Provenance]string{
	ProvenanceNone:           "none",
	ProvenanceLocalDisk:      "local-disk",
	ProvenanceRemoteAPI:      "remote-api",
	ProvenanceVersionControl: "version-control",
}

// String returns the canonical name of the provenance.
func (p Provenance) String() string {
	if s, ok := provenanceNames[p]; ok {
		return s
	}
	return fmt.Sprintf("provenance(%d)", uint8(p))
}

// Valid reports whether p is one of the defined provenance values.
func (p Provenance) Valid() bool {
	_, ok := provenanceNames[p]
	return ok
}

// Package is the public record for one dependency: identity plus declared
// metadata merged with the outcome of license resolution. All fields except
// Name and Version may be empty.
type Package struct {
	Name        string
	Version     string
	Origin      string // source origin (module proxy or VCS URL), part of the identity
	Authors     []string
	Description string
	Homepage    string
	Repository  string
	LicenseID   string // declared SPDX identifier, if any
	LicenseText string
	Provenance  Provenance
}

// Identity returns the stable (name, version, origin) key for the package.
func (p Package) Identity() string {
	if p.Origin == "" {
		return p.Name + "@" + p.Version
	}
	return p.Name + "@" + p.Version + " (" + p.Origin + ")"
}

// HasLicense reports whether a license text was resolved.
func (p Package) HasLicense() bool {
	return p.LicenseText != ""
}

// PackageList owns the ordered package sequence. The order is deterministic
// (name, then version, then origin) so that encoding the same set of
// packages always yields identical bytes.
type PackageList struct {
	pkgs []Package
}

// NewPackageList builds a sorted list from the given packages.
func NewPackageList(pkgs ...Package) *PackageList {
	l := &PackageList{pkgs: append([]Package(nil), pkgs...)}
	l.sort()
	return l
}

// Append adds a caller-supplied package, keeping the list sorted.
// Use this for dependencies outside the package manager's purview
// before handing the list to the codec.
func (l *PackageList) Append(p Package) {
	l.pkgs = append(l.pkgs, p)
	l.sort()
}

// Len returns the number of packages.
func (l *PackageList) Len() int { return len(l.pkgs) }

// At returns the package at index i.
func (l *PackageList) At(i int) Package { return l.pkgs[i] }

// Packages returns the underlying ordered slice. Callers must treat the
// returned slice as read-only.
func (l *PackageList) Packages() []Package { return l.pkgs }

func (l *PackageList) sort() {
	sort.SliceStable(l.pkgs, func(i, j int) bool {
		a, b := l.pkgs[i], l.pkgs[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if c := compareVersions(a.Version, b.Version); c != 0 {
			return c < 0
		}
		return a.Origin < b.Origin
	})
}

// compareVersions orders semver versions semantically and falls back to a
// plain string comparison for anything semver cannot parse.
func compareVersions(a, b string) int {
	va, vb := a, b
	if !strings.HasPrefix(va, "v") {
		va = "v" + va
	}
	if !strings.HasPrefix(vb, "v") {
		vb = "v" + vb
	}
	if semver.IsValid(va) && semver.IsValid(vb) {
		if c := semver.Compare(va, vb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	}
	return strings.Compare(a, b)
}

const separatorWidth = 80

// String renders the full list with every license text, suitable for a
// "third party licenses" page or pager output.
func (l *PackageList) String() string {
	sep := strings.Repeat("=", separatorWidth)
	sepLight := strings.Repeat("-", separatorWidth)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", sep)

	for _, p := range l.pkgs {
		fmt.Fprintf(&b, "Package:     %s %s\n", p.Name, p.Version)
		if p.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", p.Description)
		}
		if len(p.Authors) > 0 {
			fmt.Fprintf(&b, "Authors:     - %s\n", p.Authors[0])
			for _, a := range p.Authors[1:] {
				fmt.Fprintf(&b, "             - %s\n", a)
			}
		}
		if p.Homepage != "" {
			fmt.Fprintf(&b, "Homepage:    %s\n", p.Homepage)
		}
		if p.Repository != "" {
			fmt.Fprintf(&b, "Repository:  %s\n", p.Repository)
		}
		if p.LicenseID != "" {
			fmt.Fprintf(&b, "SPDX Ident:  %s\n", p.LicenseID)
		}
		if p.LicenseText != "" {
			fmt.Fprintf(&b, "\n%s\n%s\n", sepLight, p.LicenseText)
		}
		fmt.Fprintf(&b, "\n%s\n\n", sep)
	}

	return b.String()
}

// Summary renders one line per package (name, version, license availability)
// for diagnostics.
func (l *PackageList) Summary() string {
	var b strings.Builder
	for _, p := range l.pkgs {
		avail := "no license"
		if p.HasLicense() {
			avail = p.Provenance.String()
		}
		fmt.Fprintf(&b, "%-40s %-16s %s\n", p.Name, p.Version, avail)
	}
	return b.String()
}
