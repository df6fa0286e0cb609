// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// Package publish builds, debounces, spills, and transmits the code
// message a session sends to its connected devices. It owns the
// publication ledger (the prior diff base and object-store URL for
// each file) and the trailing debounce timer; it never owns the
// file bundle itself, which stays with the session façade.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/starryskadi/snack-sdk/diffutil"
	"github.com/starryskadi/snack-sdk/featureflag"
	"github.com/starryskadi/snack-sdk/lib/clock"
	"github.com/starryskadi/snack-sdk/objectstore"
	"github.com/starryskadi/snack-sdk/transport"
)

// DebounceInterval is the trailing interval the pipeline waits after
// the last SchedulePublish call before actually publishing, so rapid
// successive edits coalesce into one publish.
const DebounceInterval = 500 * time.Millisecond

// MaxPayloadBytes is the largest payload the transport accepts for
// one publish. Snapshots exceeding this bound spill files to the
// object store until they fit.
const MaxPayloadBytes = 31500

// legacyFileKey is the bundle key published verbatim when the
// session's SDK version predates MULTIPLE_FILES support.
const legacyFileKey = "app.js"

// File is one entry of the bundle the pipeline snapshots when it
// publishes.
type File struct {
	// Contents is either source text (Binary false) or an asset blob
	// (Binary true). A non-Binary file whose Contents is already
	// recognized as an object-store URL (objectstore.IsObjectStoreURL)
	// is treated as already resolved and passed through untouched; a
	// Binary file is always uploaded.
	Contents []byte

	// Binary marks an asset file that must be uploaded rather than
	// diffed as text.
	Binary bool
}

// Snapshot is the data the pipeline needs at the moment it publishes,
// supplied fresh by the caller on every call so the pipeline never
// reads stale session state.
type Snapshot struct {
	Channel    string
	Files      map[string]File
	SDKVersion string
	Metadata   transport.Metadata
}

// SnapshotFunc returns the session's current publishable state.
type SnapshotFunc func() Snapshot

// Config configures a Pipeline.
type Config struct {
	// Channel is the transport the pipeline publishes to.
	Channel transport.PubSub

	// Store uploads spilled and asset-blob file contents. Required if
	// any snapshot ever contains a binary file or exceeds
	// MaxPayloadBytes.
	Store *objectstore.Client

	// Clock drives the debounce timer. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives publish diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Snapshot supplies the current bundle/metadata at publish time.
	// Required.
	Snapshot SnapshotFunc

	// IsResolving, when non-nil, is consulted before every immediate
	// publish: a publish attempted while it returns true is a no-op,
	// matching the dependency engine's re-entrance guard.
	IsResolving func() bool
}

// Pipeline builds and transmits code messages for one session.
type Pipeline struct {
	channel transport.PubSub
	store   *objectstore.Client
	clock   clock.Clock
	logger  *slog.Logger

	snapshot    SnapshotFunc
	isResolving func() bool

	// publishMu serializes every call into publishNow, whether it was
	// triggered by the debounce timer or by an immediate caller, so a
	// debounced publish and a resend never interleave a half-built
	// snapshot — the later one always observes the finished ledger.
	publishMu sync.Mutex

	// ledgerMu guards the ledger, the loading message and the debounce
	// timer bookkeeping. It is separate from publishMu, but a
	// multi-file publish holds it from building the payload through
	// the send, so SchedulePublish waits while such a publish is in
	// flight.
	ledgerMu sync.Mutex
	ledger   map[string]ledgerEntry

	debounceTimer      *clock.Timer
	debounceGeneration uint64

	loadingMessage string
}

type ledgerEntry struct {
	s3Code []byte
	s3URL  string
}

// NewPipeline creates a publication pipeline.
func NewPipeline(config Config) *Pipeline {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		channel:     config.Channel,
		store:       config.Store,
		clock:       clk,
		logger:      logger,
		snapshot:    config.Snapshot,
		isResolving: config.IsResolving,
		ledger:      make(map[string]ledgerEntry),
	}
}

// SetLoadingMessage records a loading notification that suppresses
// code publication until cleared, and immediately triggers an
// undebounced publish to deliver the notification.
func (p *Pipeline) SetLoadingMessage(ctx context.Context, message string) error {
	p.ledgerMu.Lock()
	p.loadingMessage = message
	p.ledgerMu.Unlock()
	return p.PublishNow(ctx)
}

// ClearLoadingMessage resumes ordinary code publication.
func (p *Pipeline) ClearLoadingMessage() {
	p.ledgerMu.Lock()
	p.loadingMessage = ""
	p.ledgerMu.Unlock()
}

// ResetLedger drops every spill record, forcing a full re-spill and
// fresh diff-from-empty on the next publish. Called when a session
// stops.
func (p *Pipeline) ResetLedger() {
	p.ledgerMu.Lock()
	p.ledger = make(map[string]ledgerEntry)
	p.ledgerMu.Unlock()
}

// SchedulePublish (re)starts the trailing debounce timer. Repeated
// calls before the interval elapses coalesce into a single publish.
func (p *Pipeline) SchedulePublish(ctx context.Context) {
	p.ledgerMu.Lock()
	p.debounceGeneration++
	generation := p.debounceGeneration
	if p.debounceTimer != nil {
		p.debounceTimer.Stop()
	}
	p.debounceTimer = p.clock.AfterFunc(DebounceInterval, func() {
		p.ledgerMu.Lock()
		stale := generation != p.debounceGeneration
		p.ledgerMu.Unlock()
		if stale {
			return
		}
		if err := p.PublishNow(ctx); err != nil {
			p.logger.Warn("publish: debounced publish failed", "error", err)
		}
	})
	p.ledgerMu.Unlock()
}

// PublishNow publishes immediately, bypassing the debounce timer.
// Used for device join/resend events and loading notifications. It
// is a no-op, returning nil, while IsResolving reports true.
func (p *Pipeline) PublishNow(ctx context.Context) error {
	if p.isResolving != nil && p.isResolving() {
		return nil
	}

	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	p.ledgerMu.Lock()
	loadingMessage := p.loadingMessage
	p.ledgerMu.Unlock()

	snap := p.snapshot()

	if loadingMessage != "" {
		return p.channel.Publish(ctx, snap.Channel, transport.LoadingMessage{
			Type:    transport.TypeLoadingMessage,
			Message: loadingMessage,
		})
	}

	if featureflag.Supports(snap.SDKVersion, featureflag.MultipleFiles) {
		return p.publishMultiFile(ctx, snap)
	}
	return p.publishLegacy(ctx, snap)
}

func (p *Pipeline) publishLegacy(ctx context.Context, snap Snapshot) error {
	file := snap.Files[legacyFileKey]
	return p.channel.Publish(ctx, snap.Channel, transport.CodeMessageLegacy{
		Type:     transport.TypeCode,
		Code:     string(file.Contents),
		Metadata: snap.Metadata,
	})
}

func (p *Pipeline) publishMultiFile(ctx context.Context, snap Snapshot) error {
	p.ledgerMu.Lock()
	defer p.ledgerMu.Unlock()

	for key := range p.ledger {
		if _, present := snap.Files[key]; !present {
			delete(p.ledger, key)
		}
	}

	diffs := make(map[string]string, len(snap.Files))
	s3urls := make(map[string]string)
	spillCandidates := make(map[string][]byte)

	for key, file := range snap.Files {
		entry := p.ledger[key]

		switch {
		case file.Binary:
			url, err := p.store.Upload(ctx, "application/octet-stream", file.Contents)
			if err != nil {
				return fmt.Errorf("publish: uploading asset %q: %w", key, err)
			}
			p.ledger[key] = ledgerEntry{s3Code: file.Contents, s3URL: url}
			diffs[key] = ""
			s3urls[key] = url

		case objectstore.IsObjectStoreURL(string(file.Contents)):
			p.ledger[key] = ledgerEntry{s3Code: file.Contents, s3URL: string(file.Contents)}
			diffs[key] = ""
			s3urls[key] = string(file.Contents)

		case entry.s3URL != "":
			diffs[key] = diffutil.Diff(string(entry.s3Code), string(file.Contents))
			s3urls[key] = entry.s3URL
			spillCandidates[key] = file.Contents

		default:
			diffs[key] = diffutil.Diff("", string(file.Contents))
			spillCandidates[key] = file.Contents
		}
	}

	payload := transport.CodeMessageMultiFile{
		Type:     transport.TypeCode,
		Diff:     diffs,
		S3URL:    s3urls,
		Metadata: snap.Metadata,
	}

	for diffutil.Size(snap.Channel, payload) > MaxPayloadBytes && len(spillCandidates) > 0 {
		key := largestSpillCandidate(spillCandidates)
		contents := spillCandidates[key]
		delete(spillCandidates, key)

		url, err := p.store.Upload(ctx, "text/plain", contents)
		if err != nil {
			return fmt.Errorf("publish: spilling %q to object store: %w", key, err)
		}
		p.ledger[key] = ledgerEntry{s3Code: contents, s3URL: url}
		diffs[key] = ""
		s3urls[key] = url
		payload.Diff = diffs
		payload.S3URL = s3urls
	}

	return p.channel.Publish(ctx, snap.Channel, payload)
}

// largestSpillCandidate picks the spill candidate with the greatest
// byte length, breaking ties by ascending key name so repeated runs
// over the same input always spill in the same order.
func largestSpillCandidate(candidates map[string][]byte) string {
	keys := make([]string, 0, len(candidates))
	for key := range candidates {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	best := keys[0]
	for _, key := range keys[1:] {
		if len(candidates[key]) > len(candidates[best]) {
			best = key
		}
	}
	return best
}
