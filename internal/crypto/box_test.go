package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}

	plaintext := []byte(`{"messages":[{"role":"user","content":"hello"}]}`)
	ciphertext, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !strings.HasPrefix(ciphertext, Prefix) {
		t.Errorf("ciphertext missing prefix: %q", ciphertext[:12])
	}
	if !IsEncrypted(ciphertext) {
		t.Error("IsEncrypted should be true for ciphertext")
	}

	decrypted, err := Decrypt(key, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("round trip mismatch: got %q", decrypted)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key1, _ := NewKey()
	key2, _ := NewKey()

	ciphertext, err := Encrypt(key1, []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := Decrypt(key2, ciphertext); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("wrong key: got %v, want ErrInvalidCiphertext", err)
	}
}

func TestDecryptMalformed(t *testing.T) {
	key, _ := NewKey()

	cases := []string{
		"",
		"plain text",
		Prefix,
		Prefix + "!!!not-base64!!!",
		Prefix + "c2hvcnQ", // too short for a nonce
	}
	for _, input := range cases {
		if _, err := Decrypt(key, input); !errors.Is(err, ErrInvalidCiphertext) {
			t.Errorf("Decrypt(%q): got %v, want ErrInvalidCiphertext", input, err)
		}
	}
}

func TestDecryptTampered(t *testing.T) {
	key, _ := NewKey()
	ciphertext, err := Encrypt(key, []byte("authenticated payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Flip one bit in the middle of the sealed bytes and re-encode.
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(ciphertext, Prefix))
	if err != nil {
		t.Fatalf("decode ciphertext: %v", err)
	}
	raw[len(raw)/2] ^= 0x01
	tampered := Prefix + base64.RawURLEncoding.EncodeToString(raw)

	if _, err := Decrypt(key, tampered); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("tampered: got %v, want ErrInvalidCiphertext", err)
	}
}

func TestDecryptRejectsNonCanonicalEncoding(t *testing.T) {
	key, _ := NewKey()
	ciphertext, err := Encrypt(key, []byte("authenticated payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Flip the lowest bit of the final character's 6-bit value. The sealed
	// length here leaves four non-significant trailing bits, so the altered
	// string decodes to the same bytes under lenient decoding.
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	body := []byte(ciphertext)
	last := len(body) - 1
	body[last] = alphabet[strings.IndexByte(alphabet, body[last])^1]

	if _, err := Decrypt(key, string(body)); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("non-canonical encoding: got %v, want ErrInvalidCiphertext", err)
	}
}

func TestIsEncrypted(t *testing.T) {
	if IsEncrypted("hello") {
		t.Error("plain string reported as encrypted")
	}
	if !IsEncrypted(Prefix + "abc") {
		t.Error("prefixed string not reported as encrypted")
	}
}

func TestKeyEncoding(t *testing.T) {
	key, _ := NewKey()
	decoded, err := DecodeKey(EncodeKey(key))
	if err != nil {
		t.Fatalf("DecodeKey: %v", err)
	}
	if !bytes.Equal(decoded, key) {
		t.Error("key encode/decode mismatch")
	}

	if _, err := DecodeKey("too-short"); err == nil {
		t.Error("DecodeKey should reject short keys")
	}
}
