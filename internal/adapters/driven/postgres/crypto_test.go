package postgres

import (
	"bytes"
	"errors"
	"testing"
)

var testKey = []byte("01234567890123456789012345678901")

func TestTokenEncryptor_RoundTrip(t *testing.T) {
	encryptor, err := NewTokenEncryptor(testKey)
	if err != nil {
		t.Fatalf("NewTokenEncryptor: %v", err)
	}

	aad := []byte("user-1\x00org-1\x00google\x00access")
	blob, err := encryptor.Encrypt("ya29.a0AfH6SMB", aad)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if blob[0] != tokenBlobVersion {
		t.Errorf("version byte: got %d, want %d", blob[0], tokenBlobVersion)
	}
	if bytes.Contains(blob, []byte("ya29")) {
		t.Error("blob contains plaintext")
	}

	got, err := encryptor.Decrypt(blob, aad)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "ya29.a0AfH6SMB" {
		t.Errorf("got %q", got)
	}
}

func TestTokenEncryptor_BoundToRow(t *testing.T) {
	encryptor, _ := NewTokenEncryptor(testKey)

	blob, err := encryptor.Encrypt("token", []byte("user-1\x00org-1\x00google\x00access"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	_, err = encryptor.Decrypt(blob, []byte("user-2\x00org-1\x00google\x00access"))
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestTokenEncryptor_InvalidKeySize(t *testing.T) {
	tests := []struct {
		name    string
		keySize int
	}{
		{"too short", 16},
		{"too long", 64},
		{"empty", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenEncryptor(make([]byte, tt.keySize))
			if !errors.Is(err, ErrInvalidKeySize) {
				t.Errorf("expected ErrInvalidKeySize, got %v", err)
			}
		})
	}
}

func TestTokenEncryptor_DecryptInvalidBlob(t *testing.T) {
	encryptor, _ := NewTokenEncryptor(testKey)

	valid, _ := encryptor.Encrypt("token", nil)
	tampered := append([]byte(nil), valid...)
	tampered[len(tampered)-1] ^= 0xff

	tests := []struct {
		name string
		blob []byte
	}{
		{"empty", []byte{}},
		{"too short", []byte{0x01, 0x02}},
		{"wrong version", append([]byte{0x99}, make([]byte, 100)...)},
		{"tampered", tampered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := encryptor.Decrypt(tt.blob, nil); err == nil {
				t.Error("expected error for invalid blob")
			}
		})
	}
}

func TestTokenEncryptor_UniqueNonce(t *testing.T) {
	encryptor, _ := NewTokenEncryptor(testKey)

	nonces := make(map[string]bool)
	for i := 0; i < 10; i++ {
		blob, err := encryptor.Encrypt("same value", nil)
		if err != nil {
			t.Fatalf("Encrypt %d: %v", i, err)
		}
		nonce := string(blob[1 : 1+nonceSize])
		if nonces[nonce] {
			t.Errorf("duplicate nonce at index %d", i)
		}
		nonces[nonce] = true
	}
}

func TestDeriveKey(t *testing.T) {
	k1, err := DeriveKey([]byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if len(k1) != keySize {
		t.Fatalf("key length = %d, want %d", len(k1), keySize)
	}

	k2, _ := DeriveKey([]byte("correct horse battery staple"))
	if !bytes.Equal(k1, k2) {
		t.Error("derivation is not deterministic")
	}

	k3, _ := DeriveKey([]byte("another secret"))
	if bytes.Equal(k1, k3) {
		t.Error("different secrets derived the same key")
	}

	if _, err := DeriveKey(nil); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("expected ErrEmptySecret, got %v", err)
	}
}

func TestNewTokenEncryptorFromSecret(t *testing.T) {
	a, err := NewTokenEncryptorFromSecret("shared secret")
	if err != nil {
		t.Fatalf("NewTokenEncryptorFromSecret: %v", err)
	}
	b, _ := NewTokenEncryptorFromSecret("shared secret")

	blob, _ := a.Encrypt("token", []byte("row"))
	got, err := b.Decrypt(blob, []byte("row"))
	if err != nil || got != "token" {
		t.Fatalf("Decrypt = %q, %v", got, err)
	}
}
