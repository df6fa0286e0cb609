// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRequiresAPathOrEnvVar(t *testing.T) {
	orig := os.Getenv(EnvVar)
	defer os.Setenv(EnvVar, orig)
	os.Unsetenv(EnvVar)

	if _, err := Load(""); err == nil {
		t.Fatal("expected an error with no path and no SNACK_SDK_CONFIG set")
	}
}

func TestLoadFromExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snack.yaml")
	contents := `
sdk_version: "50.0.0"
session_id: "my-demo-session"
host: "https://snack.expo.dev"
dependencies:
  lodash: "4.17.21"
transport:
  websocket_url: "wss://broadcast.expo.dev"
bundler_url: "https://bundler.expo.dev"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	options, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if options.SDKVersion != "50.0.0" {
		t.Errorf("SDKVersion = %q, want 50.0.0", options.SDKVersion)
	}
	if options.SessionID != "my-demo-session" {
		t.Errorf("SessionID = %q, want my-demo-session", options.SessionID)
	}
	if options.Dependencies["lodash"] != "4.17.21" {
		t.Errorf("dependencies[lodash] = %q, want 4.17.21", options.Dependencies["lodash"])
	}
	if options.Transport.WebSocketURL != "wss://broadcast.expo.dev" {
		t.Errorf("Transport.WebSocketURL = %q, unexpected", options.Transport.WebSocketURL)
	}
}

func TestLoadFallsBackToEnvVar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snack.yaml")
	if err := os.WriteFile(path, []byte(`host: "https://snack.expo.dev"`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	orig := os.Getenv(EnvVar)
	defer os.Setenv(EnvVar, orig)
	os.Setenv(EnvVar, path)

	options, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if options.Host != "https://snack.expo.dev" {
		t.Errorf("Host = %q, unexpected", options.Host)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
