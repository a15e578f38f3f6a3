package repository

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSessionToken は暗号学的乱数による不透明セッショントークンを生成する。
// 32バイト（256ビット）のエントロピーを64文字の16進文字列として返す。
func GenerateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
