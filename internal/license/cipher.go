package license

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// keySalt is fixed so that offline tooling and the server derive the same
// key from the shared secret.
const keySalt = "assetdesk-license-v1"

// errMalformedKey is returned for any ciphertext that cannot be opened.
var errMalformedKey = errors.New("license: malformed key")

// Cipher encrypts license payloads with AES-256-CBC under a fixed zero IV.
// Identical plaintexts produce identical ciphertexts; the format is kept for
// compatibility with keys already issued.
type Cipher struct {
	block cipher.Block
}

// NewCipher derives the AES key from secret.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("license: secret required")
	}
	key, err := scrypt.Key([]byte(secret), []byte(keySalt), 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("license: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("license: init cipher: %w", err)
	}
	return &Cipher{block: block}, nil
}

// Seal encrypts plaintext and returns upper-case hex.
func (c *Cipher) Seal(plaintext []byte) string {
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)
	return strings.ToUpper(hex.EncodeToString(out))
}

// Open reverses Seal.
func (c *Cipher) Open(key string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(key))
	if err != nil || len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, errMalformedKey
	}
	out := make([]byte, len(raw))
	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, raw)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errMalformedKey
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errMalformedKey
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errMalformedKey
		}
	}
	return data[:len(data)-n], nil
}
