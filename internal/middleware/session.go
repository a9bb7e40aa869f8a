// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/tunesync/internal/session"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストにセッションクレームを格納するためのキー。
var claimsContextKey = contextKey("session_claims")

// TokenParser はセッショントークンの検証に必要なインターフェース。
// session.Managerの部分集合として定義する。
type TokenParser interface {
	Parse(token string) (*session.Claims, error)
}

// NewSessionMiddleware はCookieからセッショントークンを読み取り、検証に
// 成功した場合のみクレームをリクエストコンテキストに注入するミドルウェアを返す。
//
// 検証失敗（Cookie欠落・署名不正・期限切れ）でもリクエストは拒否しない。
// 未認証時の応答（ソフトエラーか401相当か）は各ハンドラーの契約に従うため、
// 判断はハンドラー側に委ねる。
func NewSessionMiddleware(parser TokenParser) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(session.CookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := parser.Parse(cookie.Value)
			if err != nil {
				// 不正・期限切れトークンはCookieなしと同一に扱う
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext はリクエストコンテキストからセッションクレームを取得する。
// 未認証リクエストでは (nil, false) を返す。
func ClaimsFromContext(ctx context.Context) (*session.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*session.Claims)
	if !ok || claims == nil || claims.UserID == "" {
		return nil, false
	}
	return claims, true
}

// ContextWithClaims はコンテキストにセッションクレームを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaims(ctx context.Context, claims *session.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
