// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// Package bundler polls the remote package-bundler service for a
// resolved module, with a CDN-mirror fallback probe when the bundler
// itself fails to produce a terminal result.
package bundler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starryskadi/snack-sdk/lib/clock"
	"github.com/starryskadi/snack-sdk/lib/netutil"
)

// maxPollAttempts bounds bundler polling per (name, version); exceeding
// it raises ErrTimeout.
const maxPollAttempts = 30

// pollInterval is the delay between successive poll attempts while the
// bundler reports {pending: true}.
const pollInterval = 5 * time.Second

var platforms = []string{"ios", "android"}

// Config configures a Client.
type Config struct {
	// BundlerURL is the base URL of the package-bundler service, e.g.
	// "https://snackager.expo.io".
	BundlerURL string

	// CDNURL is the base URL of the CDN mirror probed as a fallback
	// when the bundler fails, e.g. "https://d1wp6m56sqw74a.cloudfront.net".
	CDNURL string

	// HTTPClient is used for all requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Clock provides polling-delay timing. Defaults to clock.Real().
	// Tests inject clock.Fake() to avoid real sleeps across 30 polls.
	Clock clock.Clock

	// Logger receives poll/fallback diagnostics. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Client polls the bundler service for resolved module packages.
type Client struct {
	bundlerURL string
	cdnURL     string
	httpClient *http.Client
	clock      clock.Clock
	logger     *slog.Logger
}

// NewClient creates a bundler polling client.
func NewClient(config Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		bundlerURL: strings.TrimRight(config.BundlerURL, "/"),
		cdnURL:     strings.TrimRight(config.CDNURL, "/"),
		httpClient: httpClient,
		clock:      clk,
		logger:     logger,
	}
}

// Package is a terminal bundler resolution for one module.
type Package struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies,omitempty"`

	// Error, when non-empty, records a soft failure: the bundler could
	// not resolve the module directly, but the CDN mirror confirmed
	// availability, so resolution proceeded with the requested version
	// (depengine.DefaultPin when none was requested) instead of a hard
	// failure.
	Error string `json:"-"`
}

// ErrTimeout is returned when polling exceeds maxPollAttempts without
// a terminal response.
var ErrTimeout = fmt.Errorf("bundler: polling timed out after %d attempts", maxPollAttempts)

// pollResponse is the bundler's JSON response shape: either
// {"pending": true} or a terminal package body.
type pollResponse struct {
	Pending      bool              `json:"pending"`
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Fetch polls the bundler for name at version (version may be empty,
// meaning "latest") until a terminal result, a non-2xx error, or the
// poll cap is reached.
func (c *Client) Fetch(ctx context.Context, name, version string) (Package, error) {
	requestPath := bundlePath(name, version)

	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		response, err := c.poll(ctx, requestPath)
		if err != nil {
			return Package{}, err
		}
		if !response.Pending {
			return Package{
				Name:         response.Name,
				Version:      response.Version,
				Dependencies: response.Dependencies,
			}, nil
		}

		c.logger.Debug("bundler: pending, will re-poll", "name", name, "version", version, "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return Package{}, ctx.Err()
		case <-c.clock.After(pollInterval):
		}
	}
	return Package{}, ErrTimeout
}

func (c *Client) poll(ctx context.Context, requestPath string) (pollResponse, error) {
	requestURL := c.bundlerURL + requestPath
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return pollResponse{}, fmt.Errorf("bundler: building request: %w", err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return pollResponse{}, fmt.Errorf("bundler: request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return pollResponse{}, fmt.Errorf("bundler: status %d from %s: %s", response.StatusCode, requestPath, netutil.ErrorBody(response.Body))
	}

	var decoded pollResponse
	if err := netutil.DecodeResponse(response.Body, &decoded); err != nil {
		return pollResponse{}, fmt.Errorf("bundler: decoding response: %w", err)
	}
	return decoded, nil
}

// ProbeCDN checks whether the CDN mirror has a completed build for
// name@version on every target platform. It returns true only if all
// platforms respond with a status below 400.
func (c *Client) ProbeCDN(ctx context.Context, name, version string) bool {
	for _, platform := range platforms {
		available, err := c.probeOnePlatform(ctx, name, version, platform)
		if err != nil || !available {
			return false
		}
	}
	return true
}

func (c *Client) probeOnePlatform(ctx context.Context, name, version, platform string) (bool, error) {
	slug := cdnSlug(name, version)
	probeURL := fmt.Sprintf("%s/%s-%s/.done", c.cdnURL, slug, platform)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return false, fmt.Errorf("bundler: building CDN probe request: %w", err)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return false, fmt.Errorf("bundler: CDN probe failed: %w", err)
	}
	defer response.Body.Close()
	return response.StatusCode < 400, nil
}

// bundlePath builds the bundler GET path for name[@version], with the
// ios/android platform query parameters the bundler requires.
func bundlePath(name, version string) string {
	ref := name
	if version != "" {
		ref = name + "@" + version
	}
	query := url.Values{"platforms": {strings.Join(platforms, ",")}}
	return "/bundle/" + ref + "?" + query.Encode()
}

// cdnSlug renders name@version as the CDN's encoded-hash path
// component: '/' in the module name is rewritten to '~' before URL
// encoding so scoped packages ("@scope/pkg") don't introduce an extra
// path segment.
func cdnSlug(name, version string) string {
	ref := name
	if version != "" {
		ref = name + "@" + version
	}
	ref = strings.ReplaceAll(ref, "/", "~")
	return url.PathEscape(ref)
}

// CacheKey is the memoization key the dependency engine's promise
// cache and on-disk cache use for a (name, version) pair: "<name>" at
// the unspecified version maps to "<name>-latest".
func CacheKey(name, version string) string {
	if version == "" {
		version = "latest"
	}
	return name + "-" + version
}

// ParseCacheKey splits key at its last "-" into name and version. It
// reverses CacheKey only for versions without a "-", and a key built
// from an empty version yields "latest".
func ParseCacheKey(key string) (name, version string, ok bool) {
	idx := strings.LastIndex(key, "-")
	if idx < 0 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}
