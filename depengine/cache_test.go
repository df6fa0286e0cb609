// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package depengine

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/starryskadi/snack-sdk/bundler"
)

var errFetchFailed = errors.New("fetch failed")

func TestPromiseCacheMemoizesConcurrentFetches(t *testing.T) {
	cache := newPromiseCache()
	var calls atomic.Int32

	results := make(chan bundler.Package, 2)
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			pkg, err := cache.fetch(context.Background(), "lodash-latest", func(context.Context) (bundler.Package, error) {
				calls.Add(1)
				return bundler.Package{Name: "lodash", Version: "4.17.21"}, nil
			})
			if err != nil {
				t.Errorf("fetch: %v", err)
			}
			results <- pkg
		}()
	}
	close(start)

	first := <-results
	second := <-results
	if first.Version != "4.17.21" || second.Version != "4.17.21" {
		t.Errorf("unexpected results: %+v, %+v", first, second)
	}
	if calls.Load() != 1 {
		t.Errorf("do was called %d times, want 1", calls.Load())
	}
}

func TestPromiseCacheSaveAndLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundler-cache.cbor")

	cache := newPromiseCache()
	_, err := cache.fetch(context.Background(), "react-redux-8.0.0", func(context.Context) (bundler.Package, error) {
		return bundler.Package{Name: "react-redux", Version: "8.0.0", Dependencies: map[string]string{"redux": "4.2.0"}}, nil
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if err := cache.saveTo(path); err != nil {
		t.Fatalf("saveTo: %v", err)
	}

	reloaded := newPromiseCache()
	if err := reloaded.loadFrom(path); err != nil {
		t.Fatalf("loadFrom: %v", err)
	}

	var calls atomic.Int32
	pkg, err := reloaded.fetch(context.Background(), "react-redux-8.0.0", func(context.Context) (bundler.Package, error) {
		calls.Add(1)
		return bundler.Package{}, nil
	})
	if err != nil {
		t.Fatalf("fetch after reload: %v", err)
	}
	if calls.Load() != 0 {
		t.Error("fetch after reload invoked do, want the seeded entry to be used instead")
	}
	if pkg.Version != "8.0.0" || pkg.Dependencies["redux"] != "4.2.0" {
		t.Errorf("reloaded pkg = %+v, unexpected", pkg)
	}
}

func TestPromiseCacheLoadFromMissingFileIsNotAnError(t *testing.T) {
	cache := newPromiseCache()
	if err := cache.loadFrom(filepath.Join(t.TempDir(), "does-not-exist.cbor")); err != nil {
		t.Errorf("loadFrom missing file: %v", err)
	}
}

func TestPromiseCacheFailedFetchIsNotPersisted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundler-cache.cbor")

	cache := newPromiseCache()
	_, err := cache.fetch(context.Background(), "broken-latest", func(context.Context) (bundler.Package, error) {
		return bundler.Package{}, errFetchFailed
	})
	if err == nil {
		t.Fatal("expected fetch to fail")
	}

	if err := cache.saveTo(path); err != nil {
		t.Fatalf("saveTo: %v", err)
	}

	reloaded := newPromiseCache()
	if err := reloaded.loadFrom(path); err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if len(reloaded.resolvedEntries()) != 0 {
		t.Error("a failed fetch was persisted to disk")
	}
}
