// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// Package objectstore uploads oversize file contents to the remote
// object store the publication pipeline spills to when a snapshot
// would exceed the transport's payload bound. Uploads are
// content-addressed client-side (via lib/content) purely so a client
// can recognize it already uploaded identical bytes earlier in the
// same session and skip a redundant POST; the remote store still
// mints its own URL.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starryskadi/snack-sdk/lib/clock"
	"github.com/starryskadi/snack-sdk/lib/compress"
	"github.com/starryskadi/snack-sdk/lib/content"
	"github.com/starryskadi/snack-sdk/lib/netutil"
)

// compressThreshold is the content size above which upload bodies are
// zstd-compressed before sending, when the remote store advertises
// support.
const compressThreshold = 4096

// Config configures a Client.
type Config struct {
	// BaseURL is the root of the Expo API the object store endpoint
	// hangs off of, e.g. "https://exp.host".
	BaseURL string

	// HTTPClient is used for all requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Clock provides time operations for tests. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives upload diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// AcceptsZstd reports whether the remote store advertised
	// zstd-compressed uploads. When unset, uploads are never
	// compressed.
	AcceptsZstd bool
}

// Client uploads content to the remote object store.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	clock       clock.Clock
	logger      *slog.Logger
	acceptsZstd bool

	// uploaded deduplicates uploads within a session: a hash already
	// present here was uploaded and its URL is cached, so a second
	// Upload for byte-identical content skips the network round trip.
	uploaded map[content.Hash]string
}

// NewClient creates an object-store upload client.
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
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		httpClient:  httpClient,
		clock:       clk,
		logger:      logger,
		acceptsZstd: config.AcceptsZstd,
		uploaded:    make(map[content.Hash]string),
	}
}

// uploadResponse is the JSON body returned by the snack asset-upload
// endpoint.
type uploadResponse struct {
	URL string `json:"url"`
}

// Upload sends data to the object store and returns the URL it was
// assigned. Uploading byte-identical content a second time within the
// same Client's lifetime returns the cached URL without a network
// call.
func (c *Client) Upload(ctx context.Context, contentType string, data []byte) (string, error) {
	hash := content.HashBytes(data)
	if url, ok := c.uploaded[hash]; ok {
		c.logger.Debug("objectstore: skipping upload of already-uploaded content", "hash", content.FormatHash(hash))
		return url, nil
	}

	body := data
	encoding := ""
	if c.acceptsZstd && len(data) > compressThreshold {
		compressed, err := compress.Zstd(data)
		if err == nil {
			body = compressed
			encoding = "zstd"
		}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/--/api/v2/snack/uploadAsset", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("objectstore: building upload request: %w", err)
	}
	request.Header.Set("Content-Type", contentType)
	if encoding != "" {
		request.Header.Set("Content-Encoding", encoding)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("objectstore: upload request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", fmt.Errorf("objectstore: upload failed with status %d: %s", response.StatusCode, netutil.ErrorBody(response.Body))
	}

	var decoded uploadResponse
	if err := netutil.DecodeResponse(response.Body, &decoded); err != nil {
		return "", fmt.Errorf("objectstore: decoding upload response: %w", err)
	}

	c.uploaded[hash] = decoded.URL
	return decoded.URL, nil
}

// canonicalURLPrefix is the prefix recognized by IsObjectStoreURL: a
// file whose contents already carry this prefix is treated as
// already uploaded rather than as raw text to diff.
const canonicalURLPrefix = "https://s3.amazonaws.com/snack-code-uploads/"

// IsObjectStoreURL reports whether contents is already a URL minted
// by this object store, as opposed to raw file contents.
func IsObjectStoreURL(contents string) bool {
	return strings.HasPrefix(contents, canonicalURLPrefix)
}
