// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, server *httptest.Server, acceptsZstd bool) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:     server.URL,
		HTTPClient:  server.Client(),
		AcceptsZstd: acceptsZstd,
	})
}

func TestUploadReturnsURL(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(uploadResponse{URL: "https://s3.amazonaws.com/snack-code-uploads/abc123.png"})
	}))
	defer server.Close()

	client := newTestClient(t, server, false)
	url, err := client.Upload(context.Background(), "image/png", []byte("fake png bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://s3.amazonaws.com/snack-code-uploads/abc123.png" {
		t.Errorf("Upload URL = %q, unexpected", url)
	}
	if string(gotBody) != "fake png bytes" {
		t.Errorf("server received %q, want original uncompressed bytes", gotBody)
	}
}

func TestUploadDeduplicatesIdenticalContent(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(uploadResponse{URL: "https://s3.amazonaws.com/snack-code-uploads/same.png"})
	}))
	defer server.Close()

	client := newTestClient(t, server, false)
	ctx := context.Background()
	data := []byte("identical content")

	first, err := client.Upload(ctx, "image/png", data)
	if err != nil {
		t.Fatalf("first Upload: %v", err)
	}
	second, err := client.Upload(ctx, "image/png", data)
	if err != nil {
		t.Fatalf("second Upload: %v", err)
	}
	if first != second {
		t.Errorf("URLs differ across identical uploads: %q vs %q", first, second)
	}
	if requests != 1 {
		t.Errorf("server received %d requests, want 1 (second upload should be deduplicated)", requests)
	}
}

func TestUploadErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upload failed"))
	}))
	defer server.Close()

	client := newTestClient(t, server, false)
	_, err := client.Upload(context.Background(), "image/png", []byte("data"))
	if err == nil {
		t.Fatal("Upload did not return an error on a 500 response")
	}
}

func TestIsObjectStoreURL(t *testing.T) {
	tests := []struct {
		contents string
		want     bool
	}{
		{"https://s3.amazonaws.com/snack-code-uploads/x.png", true},
		{"console.log('hi')", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsObjectStoreURL(tt.contents); got != tt.want {
			t.Errorf("IsObjectStoreURL(%q) = %v, want %v", tt.contents, got, tt.want)
		}
	}
}
