// Package crypto implements the per-user symmetric box used for encrypted
// conversational memory and sensitive preference values.
//
// Ciphertexts are AES-256-GCM with a random nonce, encoded as URL-safe
// base64 and tagged with a recognizable prefix so callers can detect
// encrypted strings without attempting decryption.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Prefix tags every ciphertext produced by this package.
const Prefix = "enc::"

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// ErrInvalidCiphertext is returned on MAC failure, malformed input, or
// wrong-key decryption.
var ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext")

// Key is per-user symmetric key material.
type Key []byte

// NewKey generates a fresh random key.
func NewKey() (Key, error) {
	key := make(Key, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// EncodeKey renders a key as a string for persistence inside a user record.
func EncodeKey(key Key) string {
	return base64.RawURLEncoding.EncodeToString(key)
}

// DecodeKey parses a key previously produced by EncodeKey.
func DecodeKey(s string) (Key, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("decode key: want %d bytes, got %d", KeySize, len(raw))
	}
	return Key(raw), nil
}

// Encrypt seals plaintext with the given key. The output starts with Prefix
// followed by base64(nonce || ciphertext).
func Encrypt(key Key, plaintext []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return Prefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Any tampering, truncation,
// or wrong-key use yields ErrInvalidCiphertext rather than corrupt output.
func Decrypt(key Key, ciphertext string) ([]byte, error) {
	if !IsEncrypted(ciphertext) {
		return nil, ErrInvalidCiphertext
	}
	// Strict decoding rejects non-canonical encodings, so two distinct
	// ciphertext strings can never decode to the same sealed bytes.
	raw, err := base64.RawURLEncoding.Strict().DecodeString(strings.TrimPrefix(ciphertext, Prefix))
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, ErrInvalidCiphertext
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	return plaintext, nil
}

// IsEncrypted reports whether s carries the ciphertext prefix. It is a pure
// prefix check and never attempts decryption.
func IsEncrypted(s string) bool {
	return strings.HasPrefix(s, Prefix)
}

func newGCM(key Key) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}
	return cipher.NewGCM(block)
}
