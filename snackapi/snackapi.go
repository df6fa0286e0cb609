// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// Package snackapi is a thin REST client for the save/download glue
// endpoints a session's host process calls on the user's behalf. It
// is not part of the session/publication core — the session façade
// treats saveAsync/downloadAsync/getUrlAsync as routine glue and
// delegates to this package unchanged.
package snackapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/starryskadi/snack-sdk/lib/netutil"
	"github.com/starryskadi/snack-sdk/lib/secret"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the root of the Expo API, e.g. "https://exp.host".
	BaseURL string

	// HTTPClient is used for all requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client talks to the save/download endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client.
func NewClient(config Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(config.BaseURL, "/"), httpClient: httpClient}
}

// Manifest is the save request's metadata block.
type Manifest struct {
	SDKVersion   string            `json:"sdkVersion"`
	Name         string            `json:"name,omitempty"`
	Description  string            `json:"description,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// SaveRequest is the body of a save call: the manifest plus every
// file's current text contents, keyed the same as session.files.
type SaveRequest struct {
	Manifest Manifest          `json:"manifest"`
	Code     map[string]string `json:"code"`
}

// SaveResponse is the save endpoint's response.
type SaveResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// apiError is the error body shape the save endpoint returns.
type apiError struct {
	Message string `json:"message"`
}

// Save uploads the manifest and code to the save endpoint, returning
// the identifier and URL the editor host can use to reopen it. token
// may be nil for an anonymous save.
func (c *Client) Save(ctx context.Context, req SaveRequest, token *secret.Buffer) (SaveResponse, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/--/api/v2/snack/save", token, req)
	if err != nil {
		return SaveResponse{}, err
	}
	var response SaveResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return SaveResponse{}, fmt.Errorf("snackapi: parsing save response: %w", err)
	}
	return response, nil
}

// Download fetches a previously saved snack's code and manifest by
// its snack identifier.
func (c *Client) Download(ctx context.Context, snackID string) (SaveRequest, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/--/api/v2/snack/"+snackID, nil, nil)
	if err != nil {
		return SaveRequest{}, err
	}
	var download SaveRequest
	if err := json.Unmarshal(body, &download); err != nil {
		return SaveRequest{}, fmt.Errorf("snackapi: parsing download response: %w", err)
	}
	return download, nil
}

// URL constructs the editor URL a saved snack is reachable at, given
// the session's configured host and the identifier Save returned.
func URL(host, snackID string) string {
	return strings.TrimRight(host, "/") + "/" + snackID
}

func (c *Client) doRequest(ctx context.Context, method, path string, token *secret.Buffer, requestBody any) ([]byte, error) {
	var bodyReader *bytes.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("snackapi: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("snackapi: creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != nil {
		request.Header.Set("Authorization", "Bearer "+token.String())
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("snackapi: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("snackapi: reading response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	var apiErr apiError
	if jsonErr := json.Unmarshal(responseBody, &apiErr); jsonErr != nil || apiErr.Message == "" {
		return nil, fmt.Errorf("snackapi: unexpected %d response from %s %s: %s", response.StatusCode, method, path, string(responseBody))
	}
	return nil, fmt.Errorf("snackapi: %s %s failed: %s", method, path, apiErr.Message)
}
