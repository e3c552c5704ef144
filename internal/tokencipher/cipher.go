package tokencipher

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"

	"golang.org/x/crypto/nacl/secretbox"
)

// KeySize is the required decoded length of the encryption key.
const KeySize = 32

const nonceSize = 24

// ErrKeyMissing indicates TOKEN_ENCRYPTION_KEY is not configured.
var ErrKeyMissing = errors.New("token encryption key is not set")

// Cipher encrypts and decrypts secrets (GitHub tokens) for storage in run
// configuration. Ciphertext is base64(nonce || secretbox), tamper-evident.
type Cipher struct {
	key     [KeySize]byte
	haveKey bool
}

// New creates a Cipher from a base64-encoded 32-byte key. An empty key is
// allowed: Encrypt will fail with ErrKeyMissing and Decrypt degrades to "".
func New(encodedKey string) (*Cipher, error) {
	c := &Cipher{}
	if encodedKey == "" {
		return c, nil
	}

	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_ENCRYPTION_KEY: %w", err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("invalid TOKEN_ENCRYPTION_KEY: need %d bytes, got %d", KeySize, len(raw))
	}

	copy(c.key[:], raw)
	c.haveKey = true
	return c, nil
}

// Encrypt encrypts a token for safe storage. Empty input short-circuits to
// an empty string without producing ciphertext.
func (c *Cipher) Encrypt(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	if !c.haveKey {
		return "", ErrKeyMissing
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(token), &nonce, &c.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt decrypts an encrypted token. It never returns an error: on a
// missing key or malformed/tampered ciphertext it logs a warning and returns
// an empty string. Callers must treat "" as "no credential available".
func (c *Cipher) Decrypt(encrypted string) string {
	if encrypted == "" {
		return ""
	}
	if !c.haveKey {
		log.Printf("Warning: failed to decrypt token: encryption key not set")
		return ""
	}

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		log.Printf("Warning: failed to decrypt token: invalid encoding")
		return ""
	}
	if len(raw) <= nonceSize {
		log.Printf("Warning: failed to decrypt token: ciphertext too short")
		return ""
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &c.key)
	if !ok {
		log.Printf("Warning: failed to decrypt token: invalid token")
		return ""
	}
	return string(plain)
}

// HasKey reports whether an encryption key is configured.
func (c *Cipher) HasKey() bool {
	return c.haveKey
}
