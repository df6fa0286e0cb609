// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/starryskadi/snack-sdk/objectstore"
	"github.com/starryskadi/snack-sdk/transport"
)

func newObjectStoreStub(t *testing.T) *objectstore.Client {
	t.Helper()
	var counter int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter++
		json.NewEncoder(w).Encode(struct {
			URL string `json:"url"`
		}{URL: "https://s3.amazonaws.com/snack-code-uploads/asset-" + strconv.Itoa(counter) + ".bin"})
	}))
	t.Cleanup(server.Close)
	return objectstore.NewClient(objectstore.Config{BaseURL: server.URL, HTTPClient: server.Client()})
}

func runSession(t *testing.T, s *Session) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func newTestSession(t *testing.T, host *transport.Memory, opts Options) *Session {
	t.Helper()
	s, err := New(Config{Transport: host, Store: newObjectStoreStub(t)}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	runSession(t, s)
	return s
}

func TestNewRejectsShortChannel(t *testing.T) {
	hub := transport.NewMemoryHub()
	host := transport.NewMemory(hub)
	_, err := New(Config{Transport: host}, Options{SessionID: "abc"})
	if err == nil {
		t.Fatal("expected an error for a channel shorter than 6 characters")
	}
}

func TestNewDefaultsSessionIDToAUUID(t *testing.T) {
	hub := transport.NewMemoryHub()
	host := transport.NewMemory(hub)
	s, err := New(Config{Transport: host}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(s.channel) < 6 {
		t.Errorf("default channel %q shorter than 6 characters", s.channel)
	}
}

func TestIsSavedTrueAtConstructionAndFalseAfterEdit(t *testing.T) {
	hub := transport.NewMemoryHub()
	host := transport.NewMemory(hub)
	s := newTestSession(t, host, Options{
		SessionID: "session-under-test",
		Files:     map[string]File{"App.js": {Kind: CodeFile, Text: "1"}},
	})

	if !s.GetState().IsSaved {
		t.Fatal("isSaved should be true immediately after construction")
	}

	s.SetName("renamed")

	if s.GetState().IsSaved {
		t.Fatal("isSaved should be false after a mutation")
	}
}

func TestSendCodeAsyncReplacesFileSetKeyForKey(t *testing.T) {
	hub := transport.NewMemoryHub()
	host := transport.NewMemory(hub)
	s := newTestSession(t, host, Options{
		SessionID: "session-under-test",
		Files: map[string]File{
			"App.js":  {Kind: CodeFile, Text: "old"},
			"Kept.js": {Kind: CodeFile, Text: "kept"},
		},
	})

	if err := s.SendCodeAsync(context.Background(), map[string]File{
		"App.js":  {Kind: CodeFile, Text: "new"},
		"Added.js": {Kind: CodeFile, Text: "added"},
	}); err != nil {
		t.Fatalf("SendCodeAsync: %v", err)
	}

	state := s.GetState()
	if len(state.Files) != 2 {
		t.Fatalf("files = %v, want exactly the two keys just sent", state.Files)
	}
	if state.Files["App.js"].Text != "new" {
		t.Errorf("App.js = %q, want %q", state.Files["App.js"].Text, "new")
	}
	if _, ok := state.Files["Kept.js"]; ok {
		t.Error("Kept.js should have been deleted, it was absent from the new file set")
	}
}

func TestSendCodeAsyncUploadsAssetBlobInline(t *testing.T) {
	hub := transport.NewMemoryHub()
	host := transport.NewMemory(hub)
	s := newTestSession(t, host, Options{
		SessionID: "session-under-test",
		Files:     map[string]File{"App.js": {Kind: CodeFile, Text: "1"}},
	})

	if err := s.SendCodeAsync(context.Background(), map[string]File{
		"App.js":     {Kind: CodeFile, Text: "1"},
		"icon.png":   {Kind: AssetFile, Blob: []byte{0x89, 0x50, 0x4e, 0x47}},
	}); err != nil {
		t.Fatalf("SendCodeAsync: %v", err)
	}

	state := s.GetState()
	asset := state.Files["icon.png"]
	if asset.URL == "" {
		t.Fatal("asset file was not uploaded, URL is empty")
	}
	if len(asset.Blob) != 0 {
		t.Error("uploaded asset file still carries its blob")
	}
}

func TestStartAsyncIsIdempotent(t *testing.T) {
	hub := transport.NewMemoryHub()
	host := transport.NewMemory(hub)
	s := newTestSession(t, host, Options{SessionID: "session-under-test"})

	if err := s.StartAsync(context.Background()); err != nil {
		t.Fatalf("StartAsync: %v", err)
	}
	if err := s.StartAsync(context.Background()); err != nil {
		t.Fatalf("second StartAsync: %v", err)
	}
	if s.GetState().State != StateStarted {
		t.Fatalf("state = %v, want STARTED", s.GetState().State)
	}
}

func TestResendCodeTriggersImmediatePublish(t *testing.T) {
	hub := transport.NewMemoryHub()
	host := transport.NewMemory(hub)
	device := transport.NewMemory(hub)

	s := newTestSession(t, host, Options{
		SessionID: "session-under-test",
		SDKVersion: "45.0.0",
		Files:     map[string]File{"App.js": {Kind: CodeFile, Text: "console.log(1)"}},
	})
	if err := s.StartAsync(context.Background()); err != nil {
		t.Fatalf("StartAsync: %v", err)
	}
	device.Subscribe(context.Background(), s.channel, false)

	received := make(chan transport.CodeMessageMultiFile, 1)
	device.OnMessage(func(channel string, raw json.RawMessage) {
		var envelope transport.Envelope
		json.Unmarshal(raw, &envelope)
		if envelope.Type == transport.TypeCode {
			var msg transport.CodeMessageMultiFile
			json.Unmarshal(raw, &msg)
			received <- msg
		}
	})

	resend, _ := json.Marshal(transport.Envelope{Type: transport.TypeResendCode})
	host.SimulateDeviceMessage(s.channel, resend)

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("resend request did not trigger an immediate publish")
	}
}

func TestDeviceJoinTriggersImmediatePublish(t *testing.T) {
	hub := transport.NewMemoryHub()
	host := transport.NewMemory(hub)
	device := transport.NewMemory(hub)

	s := newTestSession(t, host, Options{
		SessionID:  "session-under-test",
		SDKVersion: "45.0.0",
		Files:      map[string]File{"App.js": {Kind: CodeFile, Text: "console.log(1)"}},
	})
	if err := s.StartAsync(context.Background()); err != nil {
		t.Fatalf("StartAsync: %v", err)
	}
	device.Subscribe(context.Background(), s.channel, false)

	received := make(chan transport.CodeMessageMultiFile, 1)
	device.OnMessage(func(channel string, raw json.RawMessage) {
		var envelope transport.Envelope
		json.Unmarshal(raw, &envelope)
		if envelope.Type == transport.TypeCode {
			var msg transport.CodeMessageMultiFile
			json.Unmarshal(raw, &msg)
			received <- msg
		}
	})

	deviceDescriptor, _ := json.Marshal(transport.Device{ID: "device-1", Platform: "ios"})
	host.SimulatePresence(s.channel, transport.PresenceEvent{Kind: transport.PresenceJoin, Identifier: string(deviceDescriptor)})

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("device join did not trigger an immediate publish")
	}
}

func TestPresenceListenerIgnoresNonDeviceIdentifiers(t *testing.T) {
	hub := transport.NewMemoryHub()
	host := transport.NewMemory(hub)
	s := newTestSession(t, host, Options{SessionID: "session-under-test"})

	var calls int
	s.AddPresenceListener(func(PresenceEvent) { calls++ })

	host.SimulatePresence(s.channel, transport.PresenceEvent{Kind: transport.PresenceJoin, Identifier: "0xc0001234"})

	// Give the event loop a moment to drain; the listener must not have fired.
	time.Sleep(50 * time.Millisecond)
	if calls != 0 {
		t.Errorf("presence listener fired %d times for a non-decodable identifier", calls)
	}
}

func TestStateListenerRemovalDuringDispatchDoesNotSkipLaterListeners(t *testing.T) {
	hub := transport.NewMemoryHub()
	host := transport.NewMemory(hub)
	s := newTestSession(t, host, Options{SessionID: "session-under-test"})

	var order []int
	var sub1 Subscription
	sub1 = s.AddStateListener(func(StateEvent) {
		order = append(order, 1)
		sub1.Remove()
	})
	s.AddStateListener(func(StateEvent) { order = append(order, 2) })
	s.AddStateListener(func(StateEvent) { order = append(order, 3) })

	s.SetName("first edit")
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("dispatch order = %v, want [1 2 3] with all three firing on the tick sub1 removed itself", order)
	}

	order = nil
	s.SetName("second edit")
	if len(order) != 2 || order[0] != 2 || order[1] != 3 {
		t.Fatalf("dispatch order after removal = %v, want [2 3]", order)
	}
}

func TestGetURLAsyncFailsBeforeFirstSave(t *testing.T) {
	hub := transport.NewMemoryHub()
	host := transport.NewMemory(hub)
	s := newTestSession(t, host, Options{SessionID: "session-under-test"})

	if _, err := s.GetURLAsync(); err == nil {
		t.Fatal("expected an error before the session has ever been saved")
	}
}
