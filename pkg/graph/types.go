// Package graph obtains and reconciles the two views of a project's
// dependency graph reported by the Go toolchain.
//
// The rich view (`go list -m -json all`) carries per-module metadata and
// local checkout locations but over-reports: the module graph includes
// modules never needed for the active build. The lean view
// (`go list -deps -json ./...`) enumerates exactly the packages compiled
// into the target but carries no rich metadata. Reconciliation intersects
// lean membership with rich metadata into the authoritative compiled
// module set.
package graph

// Node is one module as reported by the rich provider, merged with
// membership information during reconciliation. It exists only within a
// single pipeline run.
type Node struct {
	Name       string   // module path
	Version    string   // exact version; empty for the main module
	Origin     string   // VCS origin URL reported by the toolchain, if known
	Subdir     string   // module subdirectory within the origin repository (monorepos)
	Dir        string   // local checkout in the module cache, if downloaded
	Main       bool     // the project's own root module
	Deprecated string   // deprecation notice from go.mod, if any
	Deps       []string // direct dependency identities, filled in by Reconcile
	Provider   string   // which provider reported this node

	// Replacement target, when the module is satisfied via a replace
	// directive. Used to locate the checkout; never part of the identity.
	replacePath    string
	replaceVersion string
}

// Identity returns the stable name@version key for the node.
// The main module has no version; its identity is the bare module path.
func (n Node) Identity() string {
	if n.Version == "" {
		return n.Name
	}
	return n.Name + "@" + n.Version
}

// ModuleRef identifies the module containing a compiled package.
type ModuleRef struct {
	Path    string `json:"Path"`
	Version string `json:"Version"`
	Main    bool   `json:"Main"`
}

// Identity returns the name@version key for the referenced module.
func (m ModuleRef) Identity() string {
	if m.Version == "" {
		return m.Path
	}
	return m.Path + "@" + m.Version
}

// LeanPackage is one compiled package as reported by the lean provider.
type LeanPackage struct {
	ImportPath string     `json:"ImportPath"`
	Standard   bool       `json:"Standard"`
	Module     *ModuleRef `json:"Module"`
	Imports    []string   `json:"Imports"`
}

// Graphs holds the raw output of both providers for one pipeline run.
type Graphs struct {
	Rich []Node
	Lean []LeanPackage
}
