// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// Package credstore encrypts the CLI's bearer token at rest between
// invocations of snack-host, so a developer does not have to
// re-authenticate on every run. It wraps filippo.io/age for the
// single operation this module needs: encrypt a token to a
// locally-generated identity, decrypt it back on the next run.
//
// Unlike a multi-recipient credential-escrow system, there is exactly
// one recipient here (the local machine identity), so the API trims
// down to Save/Load rather than a general Encrypt/Decrypt over a
// recipient list.
//
// The decrypted token is returned as a *secret.Buffer (mmap-backed,
// locked against swap, zeroed on Close) — it is never held as a plain
// Go string longer than the age API boundary requires.
package credstore

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"github.com/starryskadi/snack-sdk/lib/secret"
)

// Identity is the local machine's age x25519 keypair, used to encrypt
// and decrypt the cached token. The private key lives in mmap-backed
// memory for the lifetime of the process.
type Identity struct {
	privateKey *secret.Buffer
	publicKey  string
}

// Close releases the private key memory. Idempotent.
func (id *Identity) Close() error {
	if id.privateKey != nil {
		return id.privateKey.Close()
	}
	return nil
}

// LoadOrCreateIdentity reads the identity file at path, or generates a
// new age keypair and writes it there (mode 0600) if the file does
// not exist yet. The identity file holds the private key in
// AGE-SECRET-KEY-1... text form.
func LoadOrCreateIdentity(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		privateKey, err := secret.NewFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("credstore: protecting identity from %s: %w", path, err)
		}
		identity, err := age.ParseX25519Identity(privateKey.String())
		if err != nil {
			privateKey.Close()
			return nil, fmt.Errorf("credstore: parsing identity from %s: %w", path, err)
		}
		return &Identity{privateKey: privateKey, publicKey: identity.Recipient().String()}, nil

	case os.IsNotExist(err):
		return generateAndSaveIdentity(path)

	default:
		return nil, fmt.Errorf("credstore: reading identity from %s: %w", path, err)
	}
}

func generateAndSaveIdentity(path string) (*Identity, error) {
	generated, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("credstore: generating identity: %w", err)
	}

	privateKeyString := generated.String()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("credstore: creating identity directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(privateKeyString), 0600); err != nil {
		return nil, fmt.Errorf("credstore: writing identity to %s: %w", path, err)
	}

	privateKey, err := secret.NewFromBytes([]byte(privateKeyString))
	if err != nil {
		return nil, fmt.Errorf("credstore: protecting generated identity: %w", err)
	}
	return &Identity{privateKey: privateKey, publicKey: generated.Recipient().String()}, nil
}

// SaveToken encrypts token to the identity's public key and writes it
// (base64, mode 0600) to path.
func SaveToken(path string, token *secret.Buffer, identity *Identity) error {
	recipient, err := age.ParseX25519Recipient(identity.publicKey)
	if err != nil {
		return fmt.Errorf("credstore: parsing recipient key: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return fmt.Errorf("credstore: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(token.Bytes()); err != nil {
		return fmt.Errorf("credstore: encrypting token: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("credstore: finalizing token encryption: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(ciphertext.Bytes())
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("credstore: creating token cache directory: %w", err)
	}
	return os.WriteFile(path, []byte(encoded), 0600)
}

// LoadToken reads and decrypts the token cached at path. Returns
// os.ErrNotExist (wrapped) if no token has been cached yet. The
// caller must Close the returned buffer.
func LoadToken(path string, identity *Identity) (*secret.Buffer, error) {
	encoded, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("credstore: reading cached token: %w", err)
	}

	rawCiphertext, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("credstore: decoding cached token: %w", err)
	}

	ageIdentity, err := age.ParseX25519Identity(identity.privateKey.String())
	if err != nil {
		return nil, fmt.Errorf("credstore: parsing identity: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(rawCiphertext), ageIdentity)
	if err != nil {
		return nil, fmt.Errorf("credstore: decrypting cached token: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("credstore: reading decrypted token: %w", err)
	}

	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		return nil, fmt.Errorf("credstore: protecting decrypted token: %w", err)
	}
	return buffer, nil
}
