// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"log/slog"

	"github.com/starryskadi/snack-sdk/transport"
)

// Kind discriminates a File's storage model.
type Kind int

const (
	// CodeFile holds source text.
	CodeFile Kind = iota
	// AssetFile holds either an unuploaded binary blob or, once
	// uploaded, the object-store URL it was replaced by in place.
	AssetFile
)

// File is one entry of a session's bundle.
type File struct {
	Kind Kind

	// Text holds a CodeFile's source. Unused for AssetFile.
	Text string

	// Blob holds an AssetFile's raw bytes before it has been uploaded.
	// Empty once URL is set.
	Blob []byte

	// URL holds an AssetFile's object-store location once uploaded,
	// replacing Blob in place.
	URL string
}

// uploaded reports whether an AssetFile has already been replaced by
// its object-store URL.
func (f File) uploaded() bool {
	return f.Kind == AssetFile && f.URL != ""
}

// State enumerates the session lifecycle.
type State string

const (
	StateCreated State = "CREATED"
	StateStarted State = "STARTED"
	StateStopped State = "STOPPED"
)

// ErrorEvent is delivered to error listeners. It currently only
// carries dependency-resolution failures; transport and publish
// failures degrade to log events instead, per the module's rule that
// I/O errors never escape to a caller-visible failure.
type ErrorEvent struct {
	Name    string
	Version string
	Message string
}

// LogEvent is delivered to log listeners for conditions the module
// never raises to a caller but that a verbose host wants visibility
// into: parse-skips, publish failures, bundler soft-failures.
type LogEvent struct {
	Level   slog.Level
	Message string
}

// PresenceEvent is delivered to presence listeners for a decoded
// device join/leave/timeout. Non-device subscribers are filtered out
// before a listener ever sees them.
type PresenceEvent struct {
	Kind   transport.PresenceKind
	Device transport.Device
}

// StateEvent is delivered to state listeners after every mutation:
// sendCodeAsync, setSdkVersion/setName/setDescription, and dependency
// resolution commits.
type StateEvent struct {
	Files        map[string]File
	Dependencies map[string]string
	SDKVersion   string
	Name         string
	Description  string
	State        State
	IsSaved      bool
	IsResolving  bool
}
