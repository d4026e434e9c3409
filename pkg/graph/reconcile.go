package graph

import (
	"sort"

	lberrors "github.com/licensebundle/licensebundle/pkg/errors"
)

// Reconcile intersects the lean view's authoritative membership with the
// rich view's metadata and returns one merged node per compiled module,
// sorted by identity.
//
// Invariants enforced here:
//   - the result is a subset of the rich graph: a compiled module the rich
//     provider never reported is a fatal inconsistency;
//   - the project's own root module must be present (its absence means a
//     provider emitted malformed output);
//   - duplicate rich entries for one identity: first seen wins.
func Reconcile(g *Graphs) ([]Node, error) {
	richByID := make(map[string]Node, len(g.Rich))
	for _, n := range g.Rich {
		if _, ok := richByID[n.Identity()]; ok {
			continue
		}
		richByID[n.Identity()] = n
	}

	// Authoritative membership: the modules owning compiled packages.
	compiled := make(map[string]bool)
	pkgModule := make(map[string]string, len(g.Lean)) // import path -> module identity
	var order []string
	for _, p := range g.Lean {
		if p.Standard || p.Module == nil {
			continue
		}
		id := p.Module.Identity()
		pkgModule[p.ImportPath] = id
		if !compiled[id] {
			compiled[id] = true
			order = append(order, id)
		}
	}

	if len(order) == 0 {
		return nil, lberrors.New(lberrors.ErrCodeReconcile, "compiled package set is empty")
	}

	// Module-level direct dependencies, derived from package imports.
	deps := make(map[string]map[string]bool)
	for _, p := range g.Lean {
		id, ok := pkgModule[p.ImportPath]
		if !ok {
			continue
		}
		for _, imp := range p.Imports {
			depID, ok := pkgModule[imp]
			if !ok || depID == id {
				continue
			}
			if deps[id] == nil {
				deps[id] = make(map[string]bool)
			}
			deps[id][depID] = true
		}
	}

	rootSeen := false
	merged := make([]Node, 0, len(order))
	for _, id := range order {
		n, ok := richByID[id]
		if !ok {
			return nil, lberrors.New(lberrors.ErrCodeReconcile,
				"compiled module %s missing from module graph", id)
		}
		if n.Main {
			rootSeen = true
		}
		for depID := range deps[id] {
			n.Deps = append(n.Deps, depID)
		}
		sort.Strings(n.Deps)
		merged = append(merged, n)
	}

	if !rootSeen {
		return nil, lberrors.New(lberrors.ErrCodeReconcile, "root module missing from compiled set")
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Identity() < merged[j].Identity()
	})
	return merged, nil
}
