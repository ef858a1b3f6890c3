// Package secrets encrypts API keys persisted in the config file. Values
// carry the "enc:" prefix so plaintext and encrypted configs can coexist.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	// SecretPrefix marks encrypted string fields in persisted config files.
	SecretPrefix = "enc:"
	// payloadVersion lets the format evolve without breaking old configs.
	payloadVersion = 1
)

var (
	// ErrInvalidPassword is returned when the password cannot decrypt the payload.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidPayload indicates the payload structure is malformed.
	ErrInvalidPayload = errors.New("invalid encrypted payload")
)

type payload struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// EncryptString encrypts a value with AES-256-GCM under a scrypt-derived key
// and returns a storage-safe representation with the standard prefix.
func EncryptString(value, password string) (string, error) {
	if value == "" {
		return "", nil
	}

	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	p := &payload{
		Version:    payloadVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, []byte(value), nil)),
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return SecretPrefix + base64.StdEncoding.EncodeToString(raw), nil
}

// DecryptString decrypts a value previously returned by EncryptString.
// The bool reports whether the value was actually encrypted; plaintext
// values pass through untouched.
func DecryptString(value, password string) (string, bool, error) {
	if value == "" {
		return "", false, nil
	}
	if !strings.HasPrefix(value, SecretPrefix) {
		return value, false, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SecretPrefix))
	if err != nil {
		return "", true, fmt.Errorf("%w: decode payload: %v", ErrInvalidPayload, err)
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", true, fmt.Errorf("%w: parse payload: %v", ErrInvalidPayload, err)
	}
	if p.Version != payloadVersion {
		return "", true, fmt.Errorf("%w: unsupported version %d", ErrInvalidPayload, p.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(p.Salt)
	if err != nil {
		return "", true, fmt.Errorf("%w: decode salt: %v", ErrInvalidPayload, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(p.Nonce)
	if err != nil {
		return "", true, fmt.Errorf("%w: decode nonce: %v", ErrInvalidPayload, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(p.Ciphertext)
	if err != nil {
		return "", true, fmt.Errorf("%w: decode ciphertext: %v", ErrInvalidPayload, err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return "", true, err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", true, fmt.Errorf("%w: invalid nonce size", ErrInvalidPayload)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", true, fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}
	return string(plaintext), true, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(password), salt, 1<<15, 8, 1, 32) // N=32768
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return gcm, nil
}
