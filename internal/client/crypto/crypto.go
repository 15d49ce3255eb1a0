// Package crypto provides the vault's Cryptography Port and its AEAD-backed
// implementations. Items only see the Cipher interface.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Cipher names accepted by New.
const (
	AESGCM            = "aes-gcm"
	XChaCha20Poly1305 = "xchacha20poly1305"
)

const keySize = 32

var (
	// ErrDecryptFailed indicates corrupt or foreign ciphertext.
	ErrDecryptFailed = errors.New("decrypt failed")

	// ErrUnknownCipher is returned by New for an unsupported cipher name.
	ErrUnknownCipher = errors.New("unknown cipher")
)

// Cipher encrypts and decrypts byte blobs. Decrypt(Encrypt(x)) == x for all x.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// AEAD adapts a cipher.AEAD to Cipher. Every ciphertext is prefixed with a
// fresh random nonce.
type AEAD struct {
	aead cipher.AEAD
}

// NewAEAD wraps aead.
func NewAEAD(aead cipher.AEAD) *AEAD {
	return &AEAD{aead: aead}
}

// Encrypt seals plaintext as nonce || ciphertext.
func (a *AEAD) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, a.aead.NonceSize(), a.aead.NonceSize()+len(plaintext)+a.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return a.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt.
func (a *AEAD) Decrypt(ciphertext []byte) ([]byte, error) {
	ns := a.aead.NonceSize()
	if len(ciphertext) < ns+a.aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptFailed)
	}
	plain, err := a.aead.Open(nil, ciphertext[:ns], ciphertext[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	return plain, nil
}

// NewAESGCM returns an AES-256-GCM cipher for a 32 byte key.
func NewAESGCM(key []byte) (*AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return NewAEAD(aead), nil
}

// NewXChaCha20Poly1305 returns an XChaCha20-Poly1305 cipher for a 32 byte key.
func NewXChaCha20Poly1305(key []byte) (*AEAD, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return NewAEAD(aead), nil
}

// New returns the named cipher keyed with key.
func New(name string, key []byte) (*AEAD, error) {
	switch name {
	case AESGCM, "":
		return NewAESGCM(key)
	case XChaCha20Poly1305:
		return NewXChaCha20Poly1305(key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCipher, name)
	}
}

// DeriveKey expands the owner's private key PEM into a 32 byte vault key.
// The same PEM always yields the same key.
func DeriveKey(keyPEM []byte) ([]byte, error) {
	if len(keyPEM) == 0 {
		return nil, errors.New("empty key material")
	}
	key := make([]byte, keySize)
	r := hkdf.New(sha256.New, keyPEM, nil, []byte("passknight vault key v1"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// NewFromKeyPEM derives the vault key from keyPEM and returns the named cipher.
func NewFromKeyPEM(name string, keyPEM []byte) (*AEAD, error) {
	key, err := DeriveKey(keyPEM)
	if err != nil {
		return nil, err
	}
	return New(name, key)
}
