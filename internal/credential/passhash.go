// Package credential はパスワードのハッシュ化と検証を提供する。
//
// パスワードレコードは "hex(salt):hex(derivedKey)" 形式の文字列で保存する。
// 鍵導出にはscryptを使用し、比較は定数時間で行う。
package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scryptパラメータ
const (
	saltLen   = 16
	keyLen    = 64
	scryptN   = 16384
	scryptR   = 8
	scryptP   = 1
	separator = ":"
)

// Hash は新しいソルトを生成し、パスワードレコードを返す。
// 同じパスワードでも呼び出しごとに異なるレコードになる。
func Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := deriveKey(password, salt)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}

	return hex.EncodeToString(salt) + separator + hex.EncodeToString(key), nil
}

// Verify はパスワードがレコードと一致するかを返す。
// レコードの形式不正や導出失敗はすべてfalseとして扱い、エラーは返さない。
func Verify(password, record string) bool {
	saltHex, keyHex, ok := strings.Cut(record, separator)
	if !ok || saltHex == "" || keyHex == "" {
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(keyHex)
	if err != nil {
		return false
	}

	got, err := deriveKey(password, salt)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(got, expected) == 1
}

func deriveKey(password string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keyLen)
}
