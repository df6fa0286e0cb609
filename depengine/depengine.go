// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// Package depengine resolves third-party imports found in a session's
// JavaScript files against the remote bundler service, pins resolved
// versions as trailing comments, and injects missing peer-dependency
// imports. It orchestrates jsimport (scan/pin/insert) and bundler
// (fetch/CDN fallback) into the multi-step reconciliation the session
// façade triggers on SDK-version changes and code pushes.
package depengine

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/starryskadi/snack-sdk/bundler"
	"github.com/starryskadi/snack-sdk/jsimport"
)

// DefaultPin is recorded as a dependency's version when the bundler
// fetch failed but the CDN mirror confirmed the module is available
// and no version was requested.
const DefaultPin = "latest"

// ErrorPin is recorded as a dependency's version when both the
// bundler fetch and the CDN fallback probe failed. A module pinned to
// ErrorPin is still present in session.dependencies so failures are
// visible rather than silently dropped.
const ErrorPin = "error"

// reserved names are never treated as third-party dependencies,
// regardless of whether user code imports them.
var reserved = map[string]bool{
	"react":        true,
	"react-native": true,
	"expo":         true,
}

func isReserved(name string) bool {
	return reserved[name]
}

// Config configures an Engine.
type Config struct {
	// Bundler resolves (name, version) pairs against the remote
	// bundler service and its CDN mirror. Required.
	Bundler *bundler.Client

	// Logger receives resolution diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// CacheDir overrides the on-disk promise-cache directory. Empty
	// means use the OS user cache directory
	// (respects $XDG_CACHE_HOME on Linux) under "snack-sdk". A missing
	// directory is created on save. Load/save failures, such as an
	// unwritable directory, are logged and ignored, never fatal.
	CacheDir string

	// OnLoadingMessage is invoked with "Installing dependencies" when
	// a resolution pass begins fetching. May be nil.
	OnLoadingMessage func(message string)

	// OnDependencyError is invoked for each module that fails both the
	// bundler fetch and the CDN fallback probe. May be nil.
	OnDependencyError func(name, version, errMsg string)
}

// Engine runs dependency resolution for one session. At most one
// resolution pass executes at a time; a Resolve call made while
// another is in flight is a no-op.
type Engine struct {
	bundlerClient *bundler.Client
	logger        *slog.Logger

	mu        sync.Mutex
	resolving bool

	cache *promiseCache

	diskCachePath string

	onLoadingMessage  func(string)
	onDependencyError func(name, version, errMsg string)
}

// NewEngine creates a dependency engine backed by the given bundler
// client. The on-disk promise cache is loaded eagerly; a missing or
// corrupt cache file is logged and treated as empty.
func NewEngine(config Config) *Engine {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		bundlerClient:     config.Bundler,
		logger:            logger,
		cache:             newPromiseCache(),
		onLoadingMessage:  config.OnLoadingMessage,
		onDependencyError: config.OnDependencyError,
	}

	path, err := cacheFilePath(config.CacheDir)
	if err != nil {
		logger.Debug("depengine: disk cache unavailable", "error", err)
		return e
	}
	e.diskCachePath = path
	if err := e.cache.loadFrom(path); err != nil {
		logger.Debug("depengine: failed to load on-disk promise cache", "path", path, "error", err)
	}
	return e
}

// IsResolving reports whether a resolution pass is currently in flight.
func (e *Engine) IsResolving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolving
}

func (e *Engine) tryAcquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resolving {
		return false
	}
	e.resolving = true
	return true
}

func (e *Engine) release() {
	e.mu.Lock()
	e.resolving = false
	e.mu.Unlock()
}

// Result is the outcome of a Resolve pass.
type Result struct {
	// Files holds the rewritten contents of every .js file that was
	// scanned, keyed the same as the input map. Files whose content
	// did not need a rewrite are present unchanged.
	Files map[string]string

	// Dependencies is dependencies merged with every pin produced by
	// this pass (direct and peer). Existing entries absent from this
	// pass's modules are preserved; nothing is ever deleted.
	Dependencies map[string]string

	// Changed reports whether anything was actually resolved. False
	// means Files and Dependencies are identical to the inputs.
	Changed bool
}

// Resolve scans every ".js"-suffixed key in files for static imports,
// reconciles them against dependencies, fetches unresolved or
// out-of-date modules through the bundler (with CDN fallback),
// expands one level of peer dependencies, rewrites pins and missing
// peer imports into the affected files, and returns the merged
// result.
//
// Resolve is a no-op (Changed is false, Files/Dependencies are
// returned unmodified) if another Resolve call is already in flight
// on this Engine, or if nothing in files differs from dependencies.
//
// Callers are responsible for the race guard the dependency engine
// requires around each file: snapshot file contents before calling
// Resolve, and discard the rewritten result if the live contents
// changed while Resolve was running.
func (e *Engine) Resolve(ctx context.Context, files map[string]string, dependencies map[string]string) (Result, error) {
	if !e.tryAcquire() {
		return Result{Files: files, Dependencies: dependencies}, nil
	}
	defer e.release()
	defer e.persistCache()

	scanned := make(map[string]map[string]*string, len(files))
	modules := make(map[string]*string)

	for key, contents := range files {
		if !strings.HasSuffix(key, ".js") {
			continue
		}
		specs, err := jsimport.Scan(contents)
		if err != nil {
			e.logger.Warn("depengine: skipping file with a syntax error", "file", key, "error", err)
			continue
		}
		scanned[key] = specs
		for name, version := range specs {
			if isReserved(name) {
				continue
			}
			if existing, ok := modules[name]; !ok || (existing == nil && version != nil) {
				modules[name] = version
			}
		}
	}

	if len(modules) == 0 {
		return Result{Files: files, Dependencies: dependencies, Changed: false}, nil
	}

	changed := false
	for name, version := range modules {
		want := versionOrEmpty(version)
		have, ok := dependencies[name]
		if !ok || have != want {
			changed = true
			break
		}
	}
	if !changed {
		return Result{Files: files, Dependencies: dependencies, Changed: false}, nil
	}

	if e.onLoadingMessage != nil {
		e.onLoadingMessage("Installing dependencies")
	}

	direct := make(map[string]bundler.Package, len(modules))
	for name, version := range modules {
		direct[name] = e.resolveOne(ctx, name, versionOrEmpty(version))
	}

	directPeers := make(map[string][]string, len(direct))
	peers := make(map[string]bundler.Package)
	for directName, pkg := range direct {
		peerNames := make([]string, 0, len(pkg.Dependencies))
		for peerName, peerVersion := range pkg.Dependencies {
			if isReserved(peerName) {
				continue
			}
			peerNames = append(peerNames, peerName)
			if _, isDirect := direct[peerName]; isDirect {
				continue
			}
			if _, already := peers[peerName]; already {
				continue
			}
			peers[peerName] = e.resolveOne(ctx, peerName, peerVersion)
		}
		sort.Strings(peerNames)
		directPeers[directName] = peerNames
	}

	pins := make(map[string]string, len(peers)+len(direct))
	for name, pkg := range peers {
		pins[name] = pkg.Version
	}
	for name, pkg := range direct {
		pins[name] = pkg.Version
	}

	rewritten := make(map[string]string, len(files))
	for key, contents := range files {
		specs, ok := scanned[key]
		if !ok {
			rewritten[key] = contents
			continue
		}

		updated := contents
		required := requiredPeers(specs, directPeers)
		for _, peerName := range required {
			if _, imported := specs[peerName]; imported {
				continue
			}
			next, err := jsimport.InsertImport(updated, peerName)
			if err != nil {
				e.logger.Warn("depengine: could not insert peer import", "file", key, "module", peerName, "error", err)
				continue
			}
			updated = next
		}

		next, err := jsimport.Pin(updated, pins)
		if err != nil {
			e.logger.Warn("depengine: could not pin versions", "file", key, "error", err)
			next = updated
		}
		rewritten[key] = next
	}

	merged := make(map[string]string, len(dependencies)+len(pins))
	for name, version := range dependencies {
		merged[name] = version
	}
	for name, version := range pins {
		merged[name] = version
	}

	return Result{Files: rewritten, Dependencies: merged, Changed: true}, nil
}

// resolveOne fetches name@version through the memoized bundler
// client, falling back to the CDN availability probe on failure.
func (e *Engine) resolveOne(ctx context.Context, name, version string) bundler.Package {
	key := bundler.CacheKey(name, version)
	pkg, err := e.cache.fetch(ctx, key, func(ctx context.Context) (bundler.Package, error) {
		return e.bundlerClient.Fetch(ctx, name, version)
	})
	if err == nil {
		return pkg
	}
	return e.fallback(ctx, name, version, err)
}

// fallback probes the CDN mirror after a bundler fetch failure. A
// confirmed-available module is pinned to its requested version (or
// DefaultPin, if none was requested) with a soft error recorded;
// otherwise it is pinned to ErrorPin and the dependency-error listener
// fires.
func (e *Engine) fallback(ctx context.Context, name, version string, fetchErr error) bundler.Package {
	if e.bundlerClient.ProbeCDN(ctx, name, version) {
		resolved := version
		if resolved == "" {
			resolved = DefaultPin
		}
		return bundler.Package{Name: name, Version: resolved, Error: fetchErr.Error()}
	}
	if e.onDependencyError != nil {
		e.onDependencyError(name, version, fetchErr.Error())
	}
	return bundler.Package{Name: name, Version: ErrorPin, Error: fetchErr.Error()}
}

func (e *Engine) persistCache() {
	if e.diskCachePath == "" {
		return
	}
	if err := e.cache.saveTo(e.diskCachePath); err != nil {
		e.logger.Debug("depengine: failed to persist promise cache", "path", e.diskCachePath, "error", err)
	}
}

func versionOrEmpty(version *string) string {
	if version == nil {
		return ""
	}
	return *version
}

// requiredPeers returns, sorted for deterministic insertion order,
// the peer module names a file needs given which direct modules it
// imports.
func requiredPeers(specs map[string]*string, directPeers map[string][]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for name := range specs {
		for _, peer := range directPeers[name] {
			if _, ok := seen[peer]; ok {
				continue
			}
			seen[peer] = struct{}{}
			out = append(out, peer)
		}
	}
	sort.Strings(out)
	return out
}
