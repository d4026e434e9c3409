// Package pkg provides the core libraries for licensebundle.
//
// # Overview
//
// licensebundle collects the licenses of everything compiled into a Go
// binary and packs them into a compact artifact the binary can embed and
// print at runtime. The pkg directory is organized along the pipeline:
//
//  1. [graph] - obtain and reconcile the toolchain's two dependency views
//  2. [resolve] - per-module license resolution (disk, forge API, VCS)
//  3. [cache] - persisted resolution outcomes across runs
//  4. [codec] - the versioned, compressed artifact format
//  5. [license] - the package list model and its renderings
//  6. [pipeline] - orchestration of all of the above
//
// # Architecture
//
// The typical data flow:
//
//	go list -m -json all        go list -deps -json ./...
//	         ↓                             ↓
//	        [graph] package (reconcile into the compiled module set)
//	         ↓
//	        [resolve] package (license per module, cached)
//	         ↓
//	        [license] package (sorted PackageList)
//	         ↓
//	        [codec] package (magic + version + zstd payload)
//	         ↓
//	        licenses.bin
//
// # Quick Start
//
//	runner := pipeline.NewRunner(cache, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{Root: "."})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("licenses.bin", result.Artifact, 0o644)
//
// Supporting packages: [errors] for coded errors, [httputil] for retrying
// HTTP, [observability] for hook-based instrumentation, [config] for the
// optional licensebundle.toml, [buildinfo] for ldflags version data.
package pkg
