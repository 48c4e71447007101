// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RoamLog Authors

// Package crypto implements the engine's local payload protection: a
// per-installation symmetric key and AES-256-GCM encryption for sensitive
// cache and queue payloads. The key never leaves the device.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// KeyChain derives and applies the installation encryption key.
type KeyChain interface {
	// GenerateSalt returns 16 random bytes for key derivation. Called once
	// per installation; the caller persists the result locally.
	GenerateSalt() ([]byte, error)

	// DeriveKey stretches the installation identifier and salt into a
	// 256-bit key with Argon2id. The key itself is never stored; it is
	// recreated from installation material on every start.
	DeriveKey(installationID string, salt []byte) []byte

	// Encrypt marshals data to JSON and seals it with key using
	// AES-256-GCM. The output is Base64(nonce ‖ ciphertext).
	Encrypt(data any, key []byte) (string, error)

	// Decrypt is the exact inverse of Encrypt. It fails loudly if the key
	// is wrong, the blob is truncated, or the ciphertext is corrupt.
	Decrypt(encryptedB64 string, key []byte, target any) error
}

// keyChain is the private implementation of [KeyChain].
type keyChain struct {
	// Argon2id tuning parameters, adjustable per deployment target.
	argonTime    uint32
	argonMemory  uint32
	argonThreads uint8
	argonKeyLen  uint32
}

// NewKeyChain constructs a [KeyChain] with the Argon2id parameters
// recommended by OWASP (2024):
//   - time cost:   1 iteration
//   - memory cost: 64 MiB
//   - parallelism: 4 threads
//   - key length:  32 bytes (256 bits)
func NewKeyChain() KeyChain {
	return &keyChain{
		argonTime:    1,
		argonMemory:  64 * 1024, // 64 MiB
		argonThreads: 4,
		argonKeyLen:  32, // 256 bits
	}
}

// GenerateSalt implements [KeyChain]. It reads 16 random bytes from the OS
// CSPRNG. Returns an error if the random read fails.
func (k *keyChain) GenerateSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// DeriveKey implements [KeyChain]. The result exists only in process memory
// and is never transmitted.
func (k *keyChain) DeriveKey(installationID string, salt []byte) []byte {
	return argon2.IDKey(
		[]byte(installationID),
		salt,
		k.argonTime,
		k.argonMemory,
		k.argonThreads,
		k.argonKeyLen,
	)
}

// Encrypt implements [KeyChain]. The output blob layout is
// nonce (12 bytes) ‖ ciphertext so Decrypt can split it without metadata.
func (k *keyChain) Encrypt(data any, key []byte) (string, error) {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	blob := append(nonce, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt implements [KeyChain]. target must be a non-nil pointer, identical
// to the requirement of [encoding/json.Unmarshal].
func (k *keyChain) Decrypt(encryptedB64 string, key []byte, target any) error {
	blob, err := base64.StdEncoding.DecodeString(encryptedB64)
	if err != nil {
		return fmt.Errorf("decode base64: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("create gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(blob) < nonceSize {
		return fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]

	// An auth-tag mismatch here means the wrong key or a corrupted blob.
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("decrypt data: %w", err)
	}

	if err := json.Unmarshal(plaintext, target); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}

	return nil
}
