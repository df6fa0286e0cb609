// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// Package content provides content-addressed hashing for asset
// uploads. A file is considered already present in the remote
// object store when its hash matches a previously uploaded asset,
// letting the session skip re-uploading unchanged binary files.
//
// Hashing happens client-side only, to decide whether an upload is
// needed. The remote store mints its own URL for the blob; the hash
// computed here is never used as the wire key.
package content

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest of an asset's contents.
type Hash [32]byte

// assetDomainKey scopes every hash computed by this package to the
// asset-upload use case, so the same bytes hashed for some other
// purpose elsewhere never collide with an asset hash. This module has
// a single content class (binary file uploads), so one domain key is
// enough — contrast with artifact stores that hash chunks,
// containers, and files under distinct keys.
var assetDomainKey = [32]byte{
	's', 'n', 'a', 'c', 'k', '.', 'a', 's', 's', 'e', 't', 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// HashBytes computes the asset-domain BLAKE3 keyed hash of data. Used
// before an upload to check the local cache of previously uploaded
// hashes and skip redundant network transfers.
func HashBytes(data []byte) Hash {
	hasher, err := blake3.NewKeyed(assetDomainKey[:])
	if err != nil {
		panic("content: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// FormatHash returns the hex-encoded string representation of a hash,
// the canonical form used in the upload cache and log output.
func FormatHash(hash Hash) string {
	return hex.EncodeToString(hash[:])
}

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("parsing content hash: %w", err)
	}
	if len(decoded) != 32 {
		return hash, fmt.Errorf("content hash is %d bytes, want 32", len(decoded))
	}
	copy(hash[:], decoded)
	return hash, nil
}
