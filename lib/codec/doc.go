// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the module's standard CBOR encoding
// configuration.
//
// This module uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: the pub/sub wire protocol between
//     host and devices and the save/asset HTTP APIs.
//   - CBOR for internal, on-disk state: the dependency engine's
//     resolved-version cache persisted between host process restarts.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every package in this module encodes identically without
// duplicating configuration. The encoder uses Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical data always
// produces identical bytes.
//
// The cache file is small and read or written whole on every Engine
// start and save, never streamed, so the package exposes only the
// buffer-oriented pair:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// # Struct Tag Rules
//
// The struct tag on a type documents its serialization format:
//
//   - `cbor` tag: this type is ONLY ever serialized as CBOR. It will
//     never be marshaled to JSON or interact with CLI tooling.
//     Example: the dependency engine's on-disk resolution cache.
//   - `json` tag: this type may be serialized as BOTH JSON and CBOR.
//     fxamacker/cbor v2 reads `json` tags as fallback when `cbor`
//     tags are absent, so a single `json` tag controls field naming
//     and omitempty for both formats. Example: bundler.Package, decoded
//     from the bundler's JSON responses and persisted in the
//     dependency engine's CBOR cache.
//
// Never use both `cbor` and `json` tags on the same field. The tag
// choice documents the contract — doubling up is noise that obscures
// whether a type participates in JSON serialization.
package codec
