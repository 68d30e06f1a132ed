package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters for key derivation
	Argon2Time      uint32 = 1
	Argon2Memory    uint32 = 64 * 1024 // 64 MB
	Argon2Threads   uint8  = 4
	Argon2KeyLength uint32 = 32 // 256 bits for AES-256
)

var (
	ErrInvalidKeyLength  = errors.New("invalid key length")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrMissingPassphrase = errors.New("encryption passphrase is empty")
)

// DeriveKey derives an encryption key from a password and salt using Argon2id
func DeriveKey(password string, salt []byte) []byte {
	return argon2.IDKey(
		[]byte(password),
		salt,
		Argon2Time,
		Argon2Memory,
		Argon2Threads,
		Argon2KeyLength,
	)
}

// RandomHex returns n random bytes hex encoded
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// EncryptData encrypts arbitrary data using AES-256-GCM
func EncryptData(data []byte, encryptionKey []byte) (encrypted []byte, nonce []byte, err error) {
	if len(encryptionKey) != 32 {
		return nil, nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	encrypted = gcm.Seal(nil, nonce, data, nil)
	return encrypted, nonce, nil
}

// DecryptData decrypts data produced by EncryptData
func DecryptData(encrypted []byte, nonce []byte, encryptionKey []byte) ([]byte, error) {
	if len(encryptionKey) != 32 {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return plaintext, nil
}

// SecretBox seals small secrets with a key derived once from a passphrase
type SecretBox struct {
	key []byte
}

// NewSecretBox derives the AES key from passphrase and salt
func NewSecretBox(passphrase, salt string) (*SecretBox, error) {
	if passphrase == "" {
		return nil, ErrMissingPassphrase
	}
	return &SecretBox{key: DeriveKey(passphrase, []byte(salt))}, nil
}

// Seal encrypts a secret, returning ciphertext and nonce
func (b *SecretBox) Seal(secret string) ([]byte, []byte, error) {
	return EncryptData([]byte(secret), b.key)
}

// Open decrypts a secret sealed by the same box
func (b *SecretBox) Open(encrypted, nonce []byte) (string, error) {
	plain, err := DecryptData(encrypted, nonce, b.key)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
