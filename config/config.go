// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the YAML file cmd/snack-host reads its session
// options and collaborator endpoints from. It is the only way to load
// configuration without an explicit path: there are no fallbacks or
// automatic discovery, matching the teacher's config package's
// deterministic, auditable loading model.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EnvVar is the environment variable Load consults when no explicit
// path is given.
const EnvVar = "SNACK_SDK_CONFIG"

// SessionOptions mirrors the session construction parameters a host
// process needs, plus the collaborator endpoints session.Config wires
// up. Fields are a superset of session.Options: everything here that
// isn't a session option configures cmd/snack-host's own
// collaborators (transport, object store, bundler, save API).
type SessionOptions struct {
	// SDKVersion is the Expo SDK version this session targets.
	SDKVersion string `yaml:"sdk_version"`

	// Verbose enables log-listener-visible diagnostics.
	Verbose bool `yaml:"verbose"`

	// SessionID is the channel identifier. Empty means generate one.
	SessionID string `yaml:"session_id"`

	// Host is the editor host used to build share URLs.
	Host string `yaml:"host"`

	// SnackID identifies a previously saved snack to resume.
	SnackID string `yaml:"snack_id"`

	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Dependencies map[string]string `yaml:"dependencies"`

	// AuthorizationTokenFile, if set, is read instead of requiring
	// AuthorizationToken inline in the file. A token read from it is
	// not cached in the credential store.
	AuthorizationToken     string `yaml:"authorization_token"`
	AuthorizationTokenFile string `yaml:"authorization_token_file"`

	// CredentialStorePath, if set, caches the authorization token,
	// age-encrypted, so the host is not asked to supply it on every run. See
	// the credstore package.
	CredentialStorePath string `yaml:"credential_store_path"`

	// Transport configures how the host reaches the pub/sub broker.
	Transport TransportOptions `yaml:"transport"`

	// BundlerURL is the dependency-resolution bundler service's base
	// URL. Empty disables dependency resolution.
	BundlerURL string `yaml:"bundler_url"`

	// ObjectStoreURL is the asset/spill upload endpoint's base URL.
	ObjectStoreURL string `yaml:"object_store_url"`

	// SaveAPIURL is the save/download endpoint's base URL.
	SaveAPIURL string `yaml:"save_api_url"`

	// CacheDir overrides the dependency engine's on-disk promise-cache
	// directory.
	CacheDir string `yaml:"cache_dir"`
}

// TransportOptions configures the pub/sub transport a host process
// connects with.
type TransportOptions struct {
	// WebSocketURL is the broadcast server's websocket endpoint.
	// Empty means use the in-memory transport (demo/test mode).
	WebSocketURL string `yaml:"websocket_url"`
}

// Load reads the session options file at path. If path is empty, the
// SNACK_SDK_CONFIG environment variable is consulted; if that is also
// unset, Load fails rather than silently falling back to defaults.
func Load(path string) (*SessionOptions, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config path given and %s is not set", EnvVar)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var options SessionOptions
	if err := yaml.Unmarshal(data, &options); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &options, nil
}
