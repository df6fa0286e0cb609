// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package snackapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starryskadi/snack-sdk/lib/secret"
)

func TestSaveSendsBearerTokenAndManifest(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody SaveRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(SaveResponse{ID: "abc123", URL: "https://exp.host/@snack/abc123"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, HTTPClient: server.Client()})
	token, err := secret.NewFromBytes([]byte("tok_live_xyz"))
	if err != nil {
		t.Fatalf("secret.NewFromBytes: %v", err)
	}
	defer token.Close()

	resp, err := client.Save(context.Background(), SaveRequest{
		Manifest: Manifest{SDKVersion: "45.0.0", Name: "demo"},
		Code:     map[string]string{"app.js": "console.log(1)"},
	}, token)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if resp.ID != "abc123" || resp.URL != "https://exp.host/@snack/abc123" {
		t.Errorf("Save response = %+v, unexpected", resp)
	}
	if gotPath != "/--/api/v2/snack/save" {
		t.Errorf("path = %q, unexpected", gotPath)
	}
	if gotAuth != "Bearer tok_live_xyz" {
		t.Errorf("Authorization header = %q, want bearer token", gotAuth)
	}
	if gotBody.Manifest.SDKVersion != "45.0.0" || gotBody.Code["app.js"] == "" {
		t.Errorf("request body = %+v, unexpected", gotBody)
	}
}

func TestSaveSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(apiError{Message: "sdkVersion is required"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, HTTPClient: server.Client()})
	_, err := client.Save(context.Background(), SaveRequest{}, nil)
	if err == nil {
		t.Fatal("expected an error from a 400 response")
	}
}

func TestDownloadRoundtrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SaveRequest{
			Manifest: Manifest{SDKVersion: "45.0.0"},
			Code:     map[string]string{"app.js": "1"},
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, HTTPClient: server.Client()})
	download, err := client.Download(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if download.Code["app.js"] != "1" {
		t.Errorf("download = %+v, unexpected", download)
	}
}

func TestURLJoinsHostAndSnackID(t *testing.T) {
	if got := URL("https://snack.expo.dev/", "abc123"); got != "https://snack.expo.dev/abc123" {
		t.Errorf("URL = %q, unexpected", got)
	}
}
