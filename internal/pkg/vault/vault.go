// Package vault encrypts tenant storage credentials at rest.
//
// Encryption is deterministic: the GCM nonce is derived from an HMAC of the
// plaintext under a separate key (SIV-style), so the same plaintext always
// produces the same ciphertext. Stored ciphertexts can therefore be compared
// for audit purposes without decrypting them, while decryption still
// authenticates the payload and reports tampering.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/argon2"
)

var (
	ErrEmptyPassphrase      = errors.New("vault passphrase is empty")
	ErrCorruptCredential    = errors.New("credential ciphertext is not validly encoded")
	ErrAuthenticationFailed = errors.New("credential failed authentication")
)

// keySalt is a fixed application salt for argon2. The passphrase itself is
// deployment-specific; the salt only separates the two derived keys from
// other uses of the same passphrase.
var keySalt = []byte("mediastore/credential-vault/v1")

const nonceSize = 12

type Vault struct {
	aead     cipher.AEAD
	nonceKey []byte
}

// New derives the encryption and nonce keys from the deployment passphrase.
func New(passphrase string) (*Vault, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}

	// 64 bytes: first half encrypts, second half derives nonces.
	material := argon2.IDKey([]byte(passphrase), keySalt, 1, 64*1024, 4, 64)

	block, err := aes.NewCipher(material[:32])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Vault{aead: aead, nonceKey: material[32:]}, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
// Deterministic: Encrypt(x) == Encrypt(x) for the same vault.
func (v *Vault) Encrypt(plaintext string) string {
	nonce := v.deriveNonce([]byte(plaintext))
	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)

	out := make([]byte, 0, nonceSize+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out)
}

// Decrypt reverses Encrypt. It returns ErrCorruptCredential when the input is
// not validly encoded and ErrAuthenticationFailed when the payload does not
// authenticate under the vault key.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrCorruptCredential
	}
	if len(raw) < nonceSize+v.aead.Overhead() {
		return "", ErrCorruptCredential
	}

	plaintext, err := v.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrAuthenticationFailed
	}
	return string(plaintext), nil
}

func (v *Vault) deriveNonce(plaintext []byte) []byte {
	mac := hmac.New(sha256.New, v.nonceKey)
	mac.Write(plaintext)
	return mac.Sum(nil)[:nonceSize]
}
