// Package fieldcrypt encrypts individual PII columns at rest.
//
// Ciphertexts are self-identifying (prefixed) so Decrypt can pass legacy
// plaintext rows through unchanged instead of failing a whole query.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const prefix = "enc::"

// Crypter is the encrypt/decrypt pair handed to the resolver and the
// batch-link path. A nil *Crypter is valid and performs no encryption,
// so deployments without FIELD_CRYPT_KEY keep working.
type Crypter struct {
	aead cipher.AEAD
}

// New derives a 256-bit AES-GCM key from the configured secret.
// An empty secret returns nil: plaintext passthrough mode.
func New(secret string) (*Crypter, error) {
	if secret == "" {
		return nil, nil
	}

	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("pixeltrace/fieldcrypt"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Crypter{aead: aead}, nil
}

func (c *Crypter) Encrypt(plaintext string) string {
	if c == nil || plaintext == "" {
		return plaintext
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		// Never lose data over an entropy failure; store plaintext.
		return plaintext
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed)
}

// Decrypt reverses Encrypt. Inputs without the ciphertext prefix, or
// ciphertexts that fail to open (wrong key, truncated row), are returned
// as-is rather than erroring.
func (c *Crypter) Decrypt(stored string) string {
	if !strings.HasPrefix(stored, prefix) {
		return stored
	}
	if c == nil {
		return stored
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, prefix))
	if err != nil || len(raw) < c.aead.NonceSize() {
		return stored
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return stored
	}
	return string(plaintext)
}

// EncryptPtr / DecryptPtr are convenience wrappers for nullable columns.
func (c *Crypter) EncryptPtr(v *string) *string {
	if v == nil {
		return nil
	}
	out := c.Encrypt(*v)
	return &out
}

func (c *Crypter) DecryptPtr(v *string) *string {
	if v == nil {
		return nil
	}
	out := c.Decrypt(*v)
	return &out
}
