// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// Package session is the public façade: it owns a live coding
// session's state (files, dependencies, metadata), drives the
// CREATED -> STARTED -> STOPPED lifecycle, and wires the transport,
// publication pipeline, and dependency engine together. Listener
// registration and dispatch live in listener.go; wire event payloads
// live in events.go.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/starryskadi/snack-sdk/bundler"
	"github.com/starryskadi/snack-sdk/depengine"
	"github.com/starryskadi/snack-sdk/featureflag"
	"github.com/starryskadi/snack-sdk/lib/clock"
	"github.com/starryskadi/snack-sdk/lib/secret"
	"github.com/starryskadi/snack-sdk/objectstore"
	"github.com/starryskadi/snack-sdk/publish"
	"github.com/starryskadi/snack-sdk/snackapi"
	"github.com/starryskadi/snack-sdk/transport"
)

// DefaultSDKVersion is used when Options.SDKVersion is empty.
const DefaultSDKVersion = "50.0.0"

// DefaultHost is used when Options.Host is empty.
const DefaultHost = "https://snack.expo.dev"

// Config wires a Session to its collaborators. Transport is required;
// Store, Bundler, and API may be nil to disable the features that
// need them (asset/spill upload, dependency resolution, save/download
// respectively) rather than failing construction.
type Config struct {
	Transport transport.PubSub
	Store     *objectstore.Client
	Bundler   *bundler.Client
	API       *snackapi.Client
	Clock     clock.Clock
	Logger    *slog.Logger

	// CacheDir overrides the dependency engine's on-disk promise-cache
	// directory. See depengine.Config.CacheDir.
	CacheDir string
}

// Options are the session construction parameters from spec §6's
// configuration table.
type Options struct {
	Files               map[string]File
	SDKVersion          string
	Verbose             bool
	SessionID           string
	Host                string
	SnackID             string
	Name                string
	Description         string
	Dependencies        map[string]string
	AuthorizationToken  string
}

// baseline is the deep snapshot of save-relevant state captured at
// construction and after every successful SaveAsync, compared against
// live state to answer GetState's isSaved.
type baseline struct {
	files        map[string]File
	dependencies map[string]string
	sdkVersion   string
	name         string
	description  string
}

// Session owns one live coding session's state and lifecycle.
//
// Every mutator is documented as callable from whichever goroutine the
// host designates as the session's owning goroutine — matching this
// module's cooperative single-writer discipline — but mu still guards
// the fields the publication pipeline and dependency engine read from
// their own background goroutines (the debounce timer, the async
// dependency-resolution pass), since Go's concurrency model makes
// those reads genuinely concurrent even though the façade's external
// contract is still "one logical writer at a time."
type Session struct {
	logger          *slog.Logger
	clock           clock.Clock
	transportClient transport.PubSub
	store           *objectstore.Client
	api             *snackapi.Client
	pipeline        *publish.Pipeline
	engine          *depengine.Engine

	host      string
	authToken *secret.Buffer

	mu           sync.Mutex
	channel      string
	snackID      string
	state        State
	files        map[string]File
	dependencies map[string]string
	sdkVersion   string
	name         string
	description  string
	initialState baseline

	// events is the single channel transport-originated callbacks and
	// dependency-resolution completions are funneled through; Run
	// drains it on the owning goroutine, preserving the ordering
	// guarantee that state events are emitted in the order their
	// triggering mutations occurred.
	events chan func()

	errorListeners    listenerRegistry[ErrorEvent]
	logListeners      listenerRegistry[LogEvent]
	presenceListeners listenerRegistry[PresenceEvent]
	stateListeners    listenerRegistry[StateEvent]
}

// New constructs a session. Validates the channel length, snapshots
// initial state for the isSaved predicate, wires transport callbacks,
// and — if the resolved SDK version supports ARBITRARY_IMPORTS — kicks
// an initial dependency resolution pass without awaiting it.
func New(config Config, options Options) (*Session, error) {
	channel := options.SessionID
	if channel == "" {
		channel = uuid.NewString()
	}
	if len(channel) < 6 {
		return nil, fmt.Errorf("session: channel %q is shorter than the minimum of 6 characters", channel)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	sdkVersion := options.SDKVersion
	if sdkVersion == "" {
		sdkVersion = DefaultSDKVersion
	}
	host := options.Host
	if host == "" {
		host = DefaultHost
	}

	files := make(map[string]File, len(options.Files))
	for key, file := range options.Files {
		files[key] = file
	}
	dependencies := make(map[string]string, len(options.Dependencies))
	for key, version := range options.Dependencies {
		dependencies[key] = version
	}

	var authToken *secret.Buffer
	if options.AuthorizationToken != "" {
		buffer, err := secret.NewFromBytes([]byte(options.AuthorizationToken))
		if err != nil {
			return nil, fmt.Errorf("session: protecting authorization token: %w", err)
		}
		authToken = buffer
	}

	s := &Session{
		logger:          logger,
		clock:           clk,
		transportClient: config.Transport,
		store:           config.Store,
		api:             config.API,
		host:            host,
		authToken:       authToken,
		channel:         channel,
		snackID:         options.SnackID,
		state:           StateCreated,
		files:           files,
		dependencies:    dependencies,
		sdkVersion:      sdkVersion,
		name:            options.Name,
		description:     options.Description,
		events:          make(chan func(), 256),
	}

	if config.Bundler != nil {
		s.engine = depengine.NewEngine(depengine.Config{
			Bundler:  config.Bundler,
			Logger:   logger,
			CacheDir: config.CacheDir,
			OnLoadingMessage: func(message string) {
				s.pipeline.SetLoadingMessage(context.Background(), message)
			},
			OnDependencyError: func(name, version, errMsg string) {
				s.emitError(ErrorEvent{Name: name, Version: version, Message: errMsg})
			},
		})
	}

	s.pipeline = publish.NewPipeline(publish.Config{
		Channel:  config.Transport,
		Store:    config.Store,
		Clock:    clk,
		Logger:   logger,
		Snapshot: s.buildSnapshot,
		IsResolving: func() bool {
			return s.engine != nil && s.engine.IsResolving()
		},
	})

	s.mu.Lock()
	s.initialState = s.captureBaselineLocked()
	s.mu.Unlock()

	s.wireTransport()
	s.triggerResolve(context.Background())

	return s, nil
}

// Run drains transport-originated callbacks and dependency-resolution
// completions on the calling goroutine until ctx is cancelled. The
// host is expected to run this continuously (typically in its own
// goroutine) for the lifetime of the session.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-s.events:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) enqueue(fn func()) {
	s.events <- fn
}

// StartAsync subscribes to the session's channel. Idempotent after
// the first successful call.
func (s *Session) StartAsync(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateStarted {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStarted
	channel := s.channel
	s.mu.Unlock()

	if err := s.transportClient.Subscribe(ctx, channel, true); err != nil {
		return fmt.Errorf("session: subscribing to %q: %w", channel, err)
	}
	s.emitState()
	return nil
}

// StopAsync unsubscribes and clears the publication ledger's s3url
// records, forcing a full re-spill on a future start.
func (s *Session) StopAsync(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStarted {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopped
	channel := s.channel
	s.mu.Unlock()

	s.pipeline.ResetLedger()
	if err := s.transportClient.Unsubscribe(channel); err != nil {
		return fmt.Errorf("session: unsubscribing from %q: %w", channel, err)
	}
	s.emitState()
	return nil
}

// SendCodeAsync reconciles the session's file bundle with files:
// keys absent from files are deleted, keys present are overwritten.
// Asset files carrying an unuploaded blob are uploaded inline before
// the reconciliation is applied, so the debounced publish this
// schedules always observes fully-resolved URLs.
func (s *Session) SendCodeAsync(ctx context.Context, files map[string]File) error {
	resolved := make(map[string]File, len(files))
	for key, file := range files {
		if file.Kind == AssetFile && !file.uploaded() {
			if s.store == nil {
				return fmt.Errorf("session: sendCodeAsync: asset file %q has no object store client to upload to", key)
			}
			url, err := s.store.Upload(ctx, "application/octet-stream", file.Blob)
			if err != nil {
				return fmt.Errorf("session: sendCodeAsync: uploading asset %q: %w", key, err)
			}
			file = File{Kind: AssetFile, URL: url}
		}
		resolved[key] = file
	}

	s.mu.Lock()
	s.files = resolved
	s.mu.Unlock()

	s.pipeline.SchedulePublish(ctx)
	s.emitState()
	return nil
}

// SetSDKVersion mutates the session's SDK version and re-triggers
// dependency resolution (a no-op if the new version does not support
// ARBITRARY_IMPORTS).
func (s *Session) SetSDKVersion(ctx context.Context, version string) {
	s.mu.Lock()
	s.sdkVersion = version
	s.mu.Unlock()
	s.emitState()
	s.triggerResolve(ctx)
}

// SetName mutates the session's display name.
func (s *Session) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
	s.emitState()
}

// SetDescription mutates the session's description.
func (s *Session) SetDescription(description string) {
	s.mu.Lock()
	s.description = description
	s.mu.Unlock()
	s.emitState()
}

// GetState returns the session's current metadata, isSaved, and
// isResolving.
func (s *Session) GetState() StateEvent {
	return s.snapshotState()
}

// Channel returns the session's channel identifier, fixed for the
// life of the session.
func (s *Session) Channel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// GetURLAsync returns the editor URL for a previously saved session.
// Returns an error if the session has never been saved (no snackID).
func (s *Session) GetURLAsync() (string, error) {
	s.mu.Lock()
	snackID := s.snackID
	s.mu.Unlock()
	if snackID == "" {
		return "", fmt.Errorf("session: getUrlAsync: session has not been saved yet")
	}
	return snackapi.URL(s.host, snackID), nil
}

// DownloadAsync fetches a previously saved session's code and
// manifest by its snack identifier.
func (s *Session) DownloadAsync(ctx context.Context, snackID string) (snackapi.SaveRequest, error) {
	if s.api == nil {
		return snackapi.SaveRequest{}, fmt.Errorf("session: downloadAsync: no save/download API client configured")
	}
	download, err := s.api.Download(ctx, snackID)
	if err != nil {
		return snackapi.SaveRequest{}, fmt.Errorf("session: downloadAsync: %w", err)
	}
	return download, nil
}

// SaveAsync persists the current bundle to the save endpoint,
// recording the returned identifier and re-capturing the isSaved
// baseline on success.
func (s *Session) SaveAsync(ctx context.Context) (snackapi.SaveResponse, error) {
	if s.api == nil {
		return snackapi.SaveResponse{}, fmt.Errorf("session: saveAsync: no save/download API client configured")
	}

	s.mu.Lock()
	code := make(map[string]string, len(s.files))
	for key, file := range s.files {
		switch file.Kind {
		case AssetFile:
			code[key] = file.URL
		default:
			code[key] = file.Text
		}
	}
	manifest := snackapi.Manifest{
		SDKVersion:   s.sdkVersion,
		Name:         s.name,
		Description:  s.description,
		Dependencies: cloneStrings(s.dependencies),
	}
	s.mu.Unlock()

	response, err := s.api.Save(ctx, snackapi.SaveRequest{Manifest: manifest, Code: code}, s.authToken)
	if err != nil {
		return snackapi.SaveResponse{}, fmt.Errorf("session: saveAsync: %w", err)
	}

	s.mu.Lock()
	s.snackID = response.ID
	s.initialState = s.captureBaselineLocked()
	s.mu.Unlock()
	s.emitState()

	return response, nil
}

// UploadAssetAsync uploads an asset blob directly, independent of
// SendCodeAsync, and records the returned URL under key.
func (s *Session) UploadAssetAsync(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if s.store == nil {
		return "", fmt.Errorf("session: uploadAssetAsync: no object store client configured")
	}
	url, err := s.store.Upload(ctx, contentType, data)
	if err != nil {
		return "", fmt.Errorf("session: uploadAssetAsync: %w", err)
	}

	s.mu.Lock()
	s.files[key] = File{Kind: AssetFile, URL: url}
	s.mu.Unlock()
	s.emitState()

	return url, nil
}

// AddErrorListener registers fn for dependency-resolution failures.
func (s *Session) AddErrorListener(fn func(ErrorEvent)) Subscription {
	return s.errorListeners.add(fn)
}

// AddLogListener registers fn for verbose-mode diagnostics.
func (s *Session) AddLogListener(fn func(LogEvent)) Subscription {
	return s.logListeners.add(fn)
}

// AddPresenceListener registers fn for decoded device join/leave/timeout events.
func (s *Session) AddPresenceListener(fn func(PresenceEvent)) Subscription {
	return s.presenceListeners.add(fn)
}

// AddStateListener registers fn, invoked after every state mutation.
func (s *Session) AddStateListener(fn func(StateEvent)) Subscription {
	return s.stateListeners.add(fn)
}

func (s *Session) wireTransport() {
	s.transportClient.OnMessage(func(channel string, raw json.RawMessage) {
		s.enqueue(func() { s.handleMessage(channel, raw) })
	})
	s.transportClient.OnPresence(func(channel string, event transport.PresenceEvent) {
		s.enqueue(func() { s.handlePresence(channel, event) })
	})
	s.transportClient.OnStatus(func(event transport.StatusEvent) {
		s.enqueue(func() { s.handleStatus(event) })
	})
}

func (s *Session) handleMessage(channel string, raw json.RawMessage) {
	if s.currentState() != StateStarted {
		return
	}

	var envelope transport.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		s.logEvent(slog.LevelDebug, fmt.Sprintf("session: dropping malformed message on %s: %v", channel, err))
		return
	}

	switch envelope.Type {
	case transport.TypeConsole:
		var msg transport.ConsoleMessage
		if err := json.Unmarshal(raw, &msg); err == nil {
			s.logEvent(slog.LevelInfo, fmt.Sprintf("session: device %s console.%s", msg.Device, msg.Method))
		}

	case transport.TypeError:
		var msg transport.ErrorMessage
		if err := json.Unmarshal(raw, &msg); err == nil {
			if decoded, err := transport.DecodeDeviceError(msg.Error); err == nil {
				s.logEvent(slog.LevelWarn, fmt.Sprintf("session: device %s reported: %s", msg.Device, decoded.Message))
			} else {
				s.logEvent(slog.LevelDebug, fmt.Sprintf("session: device %s sent an undecodable error report", msg.Device))
			}
		}

	case transport.TypeResendCode:
		if err := s.pipeline.PublishNow(context.Background()); err != nil {
			s.logEvent(slog.LevelWarn, fmt.Sprintf("session: publish on resend request failed: %v", err))
		}
	}
}

func (s *Session) handlePresence(channel string, event transport.PresenceEvent) {
	device, ok := transport.DecodeDevice(event.Identifier)
	if !ok {
		return
	}
	s.presenceListeners.dispatch(PresenceEvent{Kind: event.Kind, Device: device})

	if s.currentState() == StateStarted && event.Kind == transport.PresenceJoin {
		if err := s.pipeline.PublishNow(context.Background()); err != nil {
			s.logEvent(slog.LevelWarn, fmt.Sprintf("session: publish on device join failed: %v", err))
		}
	}
}

func (s *Session) handleStatus(event transport.StatusEvent) {
	s.logEvent(slog.LevelDebug, fmt.Sprintf("session: transport status %s", event.Kind))
	if event.Kind != transport.StatusUp {
		return
	}
	s.mu.Lock()
	started := s.state == StateStarted
	channel := s.channel
	s.mu.Unlock()
	if !started {
		return
	}
	if err := s.transportClient.Subscribe(context.Background(), channel, true); err != nil {
		s.logEvent(slog.LevelWarn, fmt.Sprintf("session: re-subscribe after reconnect failed: %v", err))
	}
}

// triggerResolve runs dependency resolution in a background goroutine
// and feeds the result back through the owning goroutine's event
// queue, never blocking the caller.
func (s *Session) triggerResolve(ctx context.Context) {
	if s.engine == nil {
		return
	}
	sdkVersion := s.currentSDKVersion()
	if !featureflag.Supports(sdkVersion, featureflag.ArbitraryImports) {
		return
	}

	filesSnapshot, dependenciesSnapshot := s.codeSnapshot()
	if len(filesSnapshot) == 0 {
		return
	}

	go func() {
		result, err := s.engine.Resolve(ctx, filesSnapshot, dependenciesSnapshot)
		s.enqueue(func() { s.applyResolveResult(filesSnapshot, result, err) })
	}()
}

func (s *Session) applyResolveResult(captured map[string]string, result depengine.Result, err error) {
	if err != nil {
		s.logEvent(slog.LevelWarn, fmt.Sprintf("session: dependency resolution failed: %v", err))
		return
	}
	if !result.Changed {
		return
	}

	s.mu.Lock()
	for key, rewritten := range result.Files {
		current, ok := s.files[key]
		if !ok || current.Kind != CodeFile {
			continue
		}
		if current.Text != captured[key] {
			continue // race guard: the file changed underneath this resolution pass.
		}
		current.Text = rewritten
		s.files[key] = current
	}
	s.dependencies = result.Dependencies
	s.mu.Unlock()

	s.emitState()
}

func (s *Session) buildSnapshot() publish.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := make(map[string]publish.File, len(s.files))
	for key, file := range s.files {
		if file.Kind == AssetFile {
			if file.uploaded() {
				files[key] = publish.File{Contents: []byte(file.URL)}
			} else {
				files[key] = publish.File{Contents: file.Blob, Binary: true}
			}
			continue
		}
		files[key] = publish.File{Contents: []byte(file.Text)}
	}

	return publish.Snapshot{
		Channel:    s.channel,
		Files:      files,
		SDKVersion: s.sdkVersion,
		Metadata:   transport.Metadata{SDKVersion: s.sdkVersion},
	}
}

func (s *Session) snapshotState() StateEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := make(map[string]File, len(s.files))
	for key, file := range s.files {
		files[key] = file
	}
	dependencies := cloneStrings(s.dependencies)

	isResolving := s.engine != nil && s.engine.IsResolving()

	return StateEvent{
		Files:        files,
		Dependencies: dependencies,
		SDKVersion:   s.sdkVersion,
		Name:         s.name,
		Description:  s.description,
		State:        s.state,
		IsSaved:      s.isSavedLocked(),
		IsResolving:  isResolving,
	}
}

func (s *Session) isSavedLocked() bool {
	base := s.initialState
	if s.sdkVersion != base.sdkVersion || s.name != base.name || s.description != base.description {
		return false
	}
	if len(s.files) != len(base.files) || len(s.dependencies) != len(base.dependencies) {
		return false
	}
	for key, file := range s.files {
		baseFile, ok := base.files[key]
		if !ok || file.Kind != baseFile.Kind || file.Text != baseFile.Text || file.URL != baseFile.URL || !bytes.Equal(file.Blob, baseFile.Blob) {
			return false
		}
	}
	for key, version := range s.dependencies {
		if base.dependencies[key] != version {
			return false
		}
	}
	return true
}

func (s *Session) captureBaselineLocked() baseline {
	files := make(map[string]File, len(s.files))
	for key, file := range s.files {
		files[key] = file
	}
	return baseline{
		files:        files,
		dependencies: cloneStrings(s.dependencies),
		sdkVersion:   s.sdkVersion,
		name:         s.name,
		description:  s.description,
	}
}

func (s *Session) currentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) currentSDKVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sdkVersion
}

func (s *Session) codeSnapshot() (map[string]string, map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := make(map[string]string, len(s.files))
	for key, file := range s.files {
		if file.Kind == CodeFile {
			files[key] = file.Text
		}
	}
	return files, cloneStrings(s.dependencies)
}

func (s *Session) emitError(event ErrorEvent) {
	s.errorListeners.dispatch(event)
}

func (s *Session) emitState() {
	s.stateListeners.dispatch(s.snapshotState())
}

func (s *Session) logEvent(level slog.Level, message string) {
	s.logger.Log(context.Background(), level, message)
	s.logListeners.dispatch(LogEvent{Level: level, Message: message})
}

func cloneStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for key, value := range m {
		out[key] = value
	}
	return out
}
