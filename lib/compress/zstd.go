// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress provides zstd compression for publication payloads
// spilled to the object store. Session payloads are source text
// (JavaScript, JSON manifests, markdown), which zstd handles well —
// there is no binary tensor or already-compressed media content in
// this domain, so unlike a general-purpose artifact store, only one
// compression tier is needed.
package compress

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdEncoder and zstdDecoder are reused across calls to avoid
// repeated initialization overhead. zstd.Encoder and zstd.Decoder are
// safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

// errIncompressible is returned when the compressed output is not
// smaller than the input. The caller should send the payload
// uncompressed.
var errIncompressible = fmt.Errorf("data is incompressible")

// IsIncompressible reports whether err indicates the data could not
// be made smaller by compression.
func IsIncompressible(err error) bool {
	return err == errIncompressible
}

// Zstd compresses data at the default zstd level. Returns
// errIncompressible (check with [IsIncompressible]) if the result
// would not be smaller than the input.
func Zstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

// DecompressZstd reverses [Zstd]. uncompressedSize must match the
// original data length exactly.
func DecompressZstd(compressed []byte, uncompressedSize int) ([]byte, error) {
	destination := make([]byte, 0, uncompressedSize)
	result, err := zstdDecoder.DecodeAll(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != uncompressedSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
	}
	return result, nil
}
