// Package session はセッショントークンの発行と検証を提供する。
//
// トークンはHMAC-SHA256で署名されたJWTであり、Cookie経由でクライアントが
// 保持する。サーバー側にセッション状態は持たない（ステートレス）。
// 署名なしのbase64エンコードではセッションの偽造が可能になるため、
// 必ず署名付きトークンを使用する。
package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/tunesync/internal/model"
)

// CookieName はセッショントークンを保持するCookie名。
const CookieName = "google_auth"

// Claims はセッショントークンに含まれるユーザー情報。
// 有効期限はRegisteredClaimsのexpで管理する。
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Manager はセッショントークンの発行・検証を行う。
type Manager struct {
	secret []byte
	maxAge time.Duration
}

// NewManager はManagerを生成する。
// secretはHMAC署名鍵、maxAgeSecはトークンの有効期間（秒）。
func NewManager(secret string, maxAgeSec int) *Manager {
	return &Manager{
		secret: []byte(secret),
		maxAge: time.Duration(maxAgeSec) * time.Second,
	}
}

// MaxAgeSeconds はCookieのMax-Ageに設定する有効期間（秒）を返す。
func (m *Manager) MaxAgeSeconds() int {
	return int(m.maxAge / time.Second)
}

// Issue はユーザー情報から署名付きセッショントークンを発行する。
func (m *Manager) Issue(user *model.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, nil
}

// Parse はトークンを検証し、Claimsを返す。
// 署名不正・期限切れ・形式不正はすべてエラーとなり、呼び出し側は
// トークンが存在しない場合と同一に（未認証として）扱う。
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("session token has empty user ID")
	}

	return claims, nil
}
