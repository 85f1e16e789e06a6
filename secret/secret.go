// Package secret holds the password hashing and symmetric encryption helpers used by the
// collaborator services.
package secret

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashCost is the bcrypt cost used by Hash.
const HashCost = 10

var (
	ErrKeySize = errors.New("secret: AES key must be 32 bytes")
	ErrIVSize  = errors.New("secret: AES IV must be 16 bytes")
	ErrPadding = errors.New("secret: invalid padding")
)

// Hash returns the bcrypt hash of s.
func Hash(s string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(s), HashCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Check reports whether s matches the bcrypt hash h.
func Check(s, h string) bool {
	return bcrypt.CompareHashAndPassword([]byte(h), []byte(s)) == nil
}

// AES is AES-256-CBC with PKCS#7 padding and a fixed IV.
type AES struct {
	block cipher.Block
	iv    []byte
}

// NewAES creates a cipher from a 32-byte key and a 16-byte IV.
func NewAES(key, iv []byte) (*AES, error) {
	if len(key) != 32 {
		return nil, ErrKeySize
	}
	if len(iv) != aes.BlockSize {
		return nil, ErrIVSize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &AES{block: block, iv: bytes.Clone(iv)}, nil
}

// Encode encrypts text.
func (a *AES) Encode(text []byte) []byte {
	pad := aes.BlockSize - len(text)%aes.BlockSize
	buf := make([]byte, len(text)+pad)
	copy(buf, text)
	for i := len(text); i < len(buf); i++ {
		buf[i] = byte(pad)
	}
	cipher.NewCBCEncrypter(a.block, a.iv).CryptBlocks(buf, buf)
	return buf
}

// Decode decrypts buf produced by Encode.
func (a *AES) Decode(buf []byte) ([]byte, error) {
	if len(buf) == 0 || len(buf)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("secret: ciphertext length %d is not a multiple of the block size", len(buf))
	}
	out := make([]byte, len(buf))
	cipher.NewCBCDecrypter(a.block, a.iv).CryptBlocks(out, buf)

	pad := int(out[len(out)-1])
	if pad == 0 || pad > aes.BlockSize {
		return nil, ErrPadding
	}
	for _, b := range out[len(out)-pad:] {
		if int(b) != pad {
			return nil, ErrPadding
		}
	}
	return out[:len(out)-pad], nil
}

// EncodeString encrypts text and returns it base64 encoded.
func (a *AES) EncodeString(text string) string {
	return Base64Encode(a.Encode([]byte(text)))
}

// DecodeString reverses EncodeString.
func (a *AES) DecodeString(s string) (string, error) {
	buf, err := Base64Decode(s)
	if err != nil {
		return "", err
	}
	out, err := a.Decode(buf)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Base64Encode uses the standard alphabet with padding.
func Base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func Base64Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("secret: %w", err)
	}
	return b, nil
}
