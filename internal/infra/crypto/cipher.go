// Package crypto は暗号化設定エントリの値を AES-256-GCM で暗号化する。
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// keyInfo は HKDF の info。鍵の用途を固定する。
const keyInfo = "k1s0-configdeploy-value-encryption"

// minMasterKeyLength はマスターキーの最小バイト数。
const minMasterKeyLength = 16

var (
	// ErrMasterKeyTooShort はマスターキーが短すぎる場合のエラー。
	ErrMasterKeyTooShort = errors.New("master key must be at least 16 bytes")

	// ErrCiphertextTooShort は暗号文が nonce より短い場合のエラー。
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// AESCipher はマスターキーから HKDF で導出した 32 バイト鍵を使う AES-256-GCM 暗号。
// 暗号文は nonce || sealed を Base64 にしたもの。
type AESCipher struct {
	aead cipher.AEAD
}

// NewAESCipher は masterKey と salt から AESCipher を作成する。
func NewAESCipher(masterKey, salt string) (*AESCipher, error) {
	if len(masterKey) < minMasterKeyLength {
		return nil, ErrMasterKeyTooShort
	}
	key, err := DeriveKey([]byte(masterKey), []byte(salt))
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return &AESCipher{aead: aead}, nil
}

// DeriveKey はマスターキーから 32 バイトの AES 鍵を導出する。
func DeriveKey(masterKey, salt []byte) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, masterKey, salt, []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Encrypt は平文を暗号化し、Base64 エンコードした文字列を返す。
func (c *AESCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt は Base64 デコード後に復号する。
func (c *AESCipher) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrCiphertextTooShort
	}
	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}
	return string(plaintext), nil
}
