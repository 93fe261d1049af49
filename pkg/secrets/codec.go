// Package secrets seals and opens provider configuration at rest.
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
)

// Codec seals and opens provider credentials. The reconciliation core only
// ever calls DecryptConfig; how material is sealed is an implementation
// detail of the configured codec.
type Codec interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(sealed string) ([]byte, error)
}

// DecryptConfig opens a provider's encrypted configuration into the secrets
// map handed to lifecycle hooks. An empty configuration yields an empty map.
func DecryptConfig(codec Codec, encryptedConfig string) (map[string]string, error) {
	if encryptedConfig == "" {
		return map[string]string{}, nil
	}

	plaintext, err := codec.Decrypt(encryptedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt provider config: %w", err)
	}

	config := make(map[string]string)
	if err := json.Unmarshal(plaintext, &config); err != nil {
		return nil, fmt.Errorf("failed to parse provider config: %w", err)
	}

	return config, nil
}

// AESCodec seals config with AES-256-GCM.
type AESCodec struct {
	key []byte
}

// NewAESCodec creates a codec from a 32-byte key.
func NewAESCodec(key []byte) (*AESCodec, error) {
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes")
	}

	return &AESCodec{key: key}, nil
}

func (c *AESCodec) Encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *AESCodec) Decrypt(sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sealed config: %w", err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(raw) < gcm.NonceSize() {
		return nil, errors.New("sealed config too short")
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed config: %w", err)
	}

	return plaintext, nil
}

// PlainCodec stores config unencrypted. Development only.
type PlainCodec struct{}

func (PlainCodec) Encrypt(plaintext []byte) (string, error) {
	return base64.StdEncoding.EncodeToString(plaintext), nil
}

func (PlainCodec) Decrypt(sealed string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return data, nil
}
