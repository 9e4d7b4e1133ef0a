package postgres

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// tokenBlobVersion is the version byte for the encrypted blob format.
	tokenBlobVersion = 0x01

	// nonceSize is the AES-GCM nonce size (12 bytes is standard)
	nonceSize = 12

	// keySize is the required key size for AES-256
	keySize = 32

	// keyInfo separates this key from anything else derived from the same secret.
	keyInfo = "adconnect provider token encryption v1"
)

var (
	// ErrInvalidKeySize is returned when the encryption key is not 32 bytes.
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")

	// ErrEmptySecret is returned when no key material is configured.
	ErrEmptySecret = errors.New("encryption secret is empty")

	// ErrInvalidBlobSize is returned when the encrypted blob is too small.
	ErrInvalidBlobSize = errors.New("encrypted blob is too small")

	// ErrUnsupportedVersion is returned when the blob version is not supported.
	ErrUnsupportedVersion = errors.New("unsupported token blob version")

	// ErrDecryptionFailed is returned when decryption fails (wrong key, wrong
	// row binding or corrupted data).
	ErrDecryptionFailed = errors.New("failed to decrypt token blob")
)

// DeriveKey stretches configured key material into an AES-256 key with
// HKDF-SHA256.
func DeriveKey(secret []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// TokenEncryptor handles AES-256-GCM encryption of provider tokens.
// The encrypted format is: version(1) || nonce(12) || ciphertext(N).
// Each blob is bound to its row through additional authenticated data, so a
// blob copied into another row fails to decrypt.
type TokenEncryptor struct {
	gcm cipher.AEAD
}

// NewTokenEncryptor creates a new encryptor with the given 32-byte key.
func NewTokenEncryptor(key []byte) (*TokenEncryptor, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &TokenEncryptor{gcm: gcm}, nil
}

// NewTokenEncryptorFromSecret derives the key from secret and creates an encryptor.
func NewTokenEncryptorFromSecret(secret string) (*TokenEncryptor, error) {
	key, err := DeriveKey([]byte(secret))
	if err != nil {
		return nil, err
	}
	return NewTokenEncryptor(key)
}

// Encrypt seals plaintext bound to aad.
func (e *TokenEncryptor) Encrypt(plaintext string, aad []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := e.gcm.Seal(nil, nonce, []byte(plaintext), aad)

	blob := make([]byte, 1+nonceSize+len(ciphertext))
	blob[0] = tokenBlobVersion
	copy(blob[1:1+nonceSize], nonce)
	copy(blob[1+nonceSize:], ciphertext)

	return blob, nil
}

// Decrypt opens a blob produced by Encrypt with the same aad.
func (e *TokenEncryptor) Decrypt(blob, aad []byte) (string, error) {
	minSize := 1 + nonceSize + e.gcm.Overhead()
	if len(blob) < minSize {
		return "", ErrInvalidBlobSize
	}

	if blob[0] != tokenBlobVersion {
		return "", fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, blob[0])
	}

	nonce := blob[1 : 1+nonceSize]
	plaintext, err := e.gcm.Open(nil, nonce, blob[1+nonceSize:], aad)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
