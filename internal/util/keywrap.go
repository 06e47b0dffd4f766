package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	wrapVersion = 1
	wrapSaltLen = 16
	wrapKeyLen  = 32
)

// Argon2idParams are the KDF settings used to derive a key-wrapping key
// from an operator passphrase.
type Argon2idParams struct {
	Time        uint32
	MemoryKiB   uint32
	Parallelism uint8
}

// DefaultArgon2idParams returns the parameters used for new wraps.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:        1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
	}
}

// WrapKey encrypts key material under a passphrase-derived AES-256-GCM key.
// Blob layout:
//
//	version (1 byte) || salt (16 bytes) || AES-256-GCM ciphertext
func WrapKey(plaintext []byte, passphrase string) ([]byte, error) {
	salt, err := RandomBytes(wrapSaltLen)
	if err != nil {
		return nil, err
	}

	key := deriveWrapKey(passphrase, salt, DefaultArgon2idParams())
	defer WipeBytes(key)

	ciphertext, err := encryptAES(plaintext, key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 1+wrapSaltLen+len(ciphertext))
	out = append(out, byte(wrapVersion))
	out = append(out, salt...)
	out = append(out, ciphertext...)
	return out, nil
}

// UnwrapKey reverses WrapKey. A wrong passphrase surfaces as a GCM
// authentication failure.
func UnwrapKey(blob []byte, passphrase string) ([]byte, error) {
	if len(blob) < 1+wrapSaltLen {
		return nil, fmt.Errorf("wrapped key blob too short")
	}
	if blob[0] != wrapVersion {
		return nil, fmt.Errorf("unsupported wrapped key version %d", blob[0])
	}

	salt := blob[1 : 1+wrapSaltLen]
	ciphertext := blob[1+wrapSaltLen:]

	key := deriveWrapKey(passphrase, salt, DefaultArgon2idParams())
	defer WipeBytes(key)

	plaintext, err := decryptAES(ciphertext, key)
	if err != nil {
		return nil, fmt.Errorf("unwrapping key: %w", err)
	}
	return plaintext, nil
}

func deriveWrapKey(passphrase string, salt []byte, params Argon2idParams) []byte {
	return argon2.IDKey([]byte(passphrase), salt, params.Time, params.MemoryKiB, params.Parallelism, wrapKeyLen)
}

func encryptAES(plaintext, rawKey []byte) ([]byte, error) {
	gcm, err := newGCM(rawKey)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptAES(ciphertext, rawKey []byte) ([]byte, error) {
	gcm, err := newGCM(rawKey)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce size")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting ciphertext: %w", err)
	}
	return plaintext, nil
}

func newGCM(rawKey []byte) (cipher.AEAD, error) {
	if len(rawKey) != wrapKeyLen {
		return nil, fmt.Errorf("invalid AES key size: got %d, want %d", len(rawKey), wrapKeyLen)
	}
	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}
