// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "encoding/json"

// Message type discriminants for the envelopes exchanged on a
// session's channel.
const (
	TypeCode           = "CODE"
	TypeLoadingMessage = "LOADING_MESSAGE"
	TypeConsole        = "CONSOLE"
	TypeError          = "ERROR"
	TypeResendCode     = "RESEND_CODE"
)

// Envelope is the common shape of every message on a session's
// channel: a type discriminant plus a type-specific payload. Incoming
// messages are decoded in two steps — first the Type field alone, then
// the concrete payload type it selects.
type Envelope struct {
	Type string `json:"type"`
}

// CodeMessageMultiFile is the host-to-device payload when
// MULTIPLE_FILES is supported: a diff per file plus the object-store
// URL for any file spilled to object storage.
type CodeMessageMultiFile struct {
	Type     string            `json:"type"`
	Diff     map[string]string `json:"diff"`
	S3URL    map[string]string `json:"s3url"`
	Metadata Metadata          `json:"metadata"`
}

// CodeMessageLegacy is the host-to-device payload when MULTIPLE_FILES
// is not supported: a single file's full contents under the legacy
// "app.js"-only model.
type CodeMessageLegacy struct {
	Type     string   `json:"type"`
	Code     string   `json:"code"`
	Metadata Metadata `json:"metadata"`
}

// LoadingMessage is published in place of code while a state that
// would make the bundle misleading (e.g. dependency resolution) is in
// progress.
type LoadingMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Metadata is the analytics record attached to every CODE publish.
// Every field beyond SDKVersion is a best-effort host-environment
// probe; its absence is silent and never blocks publication.
type Metadata struct {
	SDKVersion string `json:"expoSdkVersion"`
	Host       string `json:"host,omitempty"`
	OSFamily   string `json:"osFamily,omitempty"`
	OSVersion  string `json:"osVersion,omitempty"`
	OSArch     string `json:"osArch,omitempty"`
	Browser    string `json:"browser,omitempty"`
	Engine     string `json:"engine,omitempty"`
}

// ConsoleMessage is a device-to-host console capture.
type ConsoleMessage struct {
	Device  string            `json:"device"`
	Method  string            `json:"method"`
	Payload []json.RawMessage `json:"payload"`
}

// ErrorMessage is a device-to-host error report. Error carries the
// device's own JSON-encoded error descriptor, decoded separately by
// DecodeDeviceError.
type ErrorMessage struct {
	Error  string `json:"error"`
	Device string `json:"device,omitempty"`
}

// DeviceError is the decoded form of ErrorMessage.Error.
type DeviceError struct {
	Message string     `json:"message"`
	Stack   string     `json:"stack,omitempty"`
	Line    *int       `json:"line,omitempty"`
	Column  *int       `json:"column,omitempty"`
	Loc     *DeviceLoc `json:"loc,omitempty"`
}

// DeviceLoc is a source location accompanying a DeviceError.
type DeviceLoc struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// DecodeDeviceError parses an ErrorMessage's Error field into a
// DeviceError. A malformed payload returns an error; the caller
// (session) is expected to log and drop it rather than propagate it
// to listeners, matching the module's rule that transport-originated
// malformed input never escalates to a caller-visible failure.
func DecodeDeviceError(raw string) (DeviceError, error) {
	var decoded DeviceError
	err := json.Unmarshal([]byte(raw), &decoded)
	return decoded, err
}
