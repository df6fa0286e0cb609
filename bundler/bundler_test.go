// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package bundler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starryskadi/snack-sdk/lib/clock"
)

func TestFetchTerminalImmediately(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pollResponse{Name: "lodash", Version: "4.17.21"})
	}))
	defer server.Close()

	client := NewClient(Config{BundlerURL: server.URL, HTTPClient: server.Client(), Clock: clock.Fake(time.Unix(0, 0))})
	pkg, err := client.Fetch(context.Background(), "lodash", "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if pkg.Name != "lodash" || pkg.Version != "4.17.21" {
		t.Errorf("Fetch = %+v, unexpected", pkg)
	}
}

func TestFetchPollsUntilTerminal(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n < 3 {
			json.NewEncoder(w).Encode(pollResponse{Pending: true})
			return
		}
		json.NewEncoder(w).Encode(pollResponse{Name: "react-redux", Version: "8.0.0"})
	}))
	defer server.Close()

	fake := clock.Fake(time.Unix(0, 0))
	client := NewClient(Config{BundlerURL: server.URL, HTTPClient: server.Client(), Clock: fake})

	done := make(chan struct{})
	var fetchErr error
	var pkg Package
	go func() {
		pkg, fetchErr = client.Fetch(context.Background(), "react-redux", "")
		close(done)
	}()

	fake.WaitForTimers(1)
	fake.Advance(pollInterval)
	fake.WaitForTimers(1)
	fake.Advance(pollInterval)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not complete after advancing through pending polls")
	}
	if fetchErr != nil {
		t.Fatalf("Fetch: %v", fetchErr)
	}
	if pkg.Name != "react-redux" || int(attempts.Load()) != 3 {
		t.Errorf("pkg = %+v, attempts = %d", pkg, attempts.Load())
	}
}

func TestFetchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{BundlerURL: server.URL, HTTPClient: server.Client()})
	_, err := client.Fetch(context.Background(), "nonexistent-pkg", "")
	if err == nil {
		t.Fatal("Fetch did not return an error on a 404 response")
	}
}

func TestProbeCDNAllPlatformsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(Config{CDNURL: server.URL, HTTPClient: server.Client()})
	if !client.ProbeCDN(context.Background(), "lodash", "4.17.21") {
		t.Error("ProbeCDN returned false when every platform responded 200")
	}
}

func TestProbeCDNOnePlatformMissing(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{CDNURL: server.URL, HTTPClient: server.Client()})
	if client.ProbeCDN(context.Background(), "lodash", "4.17.21") {
		t.Error("ProbeCDN returned true when a platform responded 404")
	}
}

func TestBundlePathEncodesPlatforms(t *testing.T) {
	path := bundlePath("lodash", "4.17.21")
	want := "/bundle/lodash@4.17.21?platforms=ios%2Candroid"
	if path != want {
		t.Errorf("bundlePath = %q, want %q", path, want)
	}
}

func TestCDNSlugRewritesSlash(t *testing.T) {
	slug := cdnSlug("@scope/pkg", "1.0.0")
	if slug != "@scope~pkg@1.0.0" {
		t.Errorf("cdnSlug = %q, unexpected", slug)
	}
}

func TestCacheKeyRoundtrip(t *testing.T) {
	key := CacheKey("lodash", "4.17.21")
	if key != "lodash-4.17.21" {
		t.Errorf("CacheKey = %q, unexpected", key)
	}
	name, version, ok := ParseCacheKey(key)
	if !ok || name != "lodash" || version != "4.17.21" {
		t.Errorf("ParseCacheKey(%q) = (%q, %q, %v), unexpected", key, name, version, ok)
	}
}

func TestCacheKeyDefaultsToLatest(t *testing.T) {
	key := CacheKey("react", "")
	if key != "react-latest" {
		t.Errorf("CacheKey with empty version = %q, want react-latest", key)
	}
}
