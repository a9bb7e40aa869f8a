package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/tunesync/internal/auth"
	"github.com/hitoshi/tunesync/internal/middleware"
	"github.com/hitoshi/tunesync/internal/model"
	"github.com/hitoshi/tunesync/internal/session"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	ClientConfig() auth.ClientConfig
	HandleCallback(ctx context.Context, code string) (*model.User, error)
}

// TokenIssuer はセッショントークンの発行に必要なインターフェース。
// session.Managerの部分集合として定義する。
type TokenIssuer interface {
	Issue(user *model.User) (string, error)
	MaxAgeSeconds() int
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool // BASE_URLがhttpsの場合true。リクエスト単位の判定にORされる
}

// AuthHandler は/api/google-authエンドポイントのHTTPハンドラー。
// メソッドとactionクエリパラメータで操作を多重化する:
//
//	GET  ?action=config  → OAuthクライアント公開設定
//	GET  ?code=&state=   → OAuthコールバック（Cookie発行 + 302）
//	POST ?action=logout  → Cookieクリア
//	POST                 → 現在のセッション情報（WhoAmI）
type AuthHandler struct {
	service AuthServiceInterface
	tokens  TokenIssuer
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, tokens TokenIssuer, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		tokens:  tokens,
		config:  config,
	}
}

// Handle は/api/google-authへのリクエストを操作別に振り分ける。
func (h *AuthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if r.URL.Query().Get("action") == "config" {
			h.Config(w, r)
			return
		}
		h.Callback(w, r)
	case http.MethodPost:
		if r.URL.Query().Get("action") == "logout" {
			h.Logout(w, r)
			return
		}
		h.WhoAmI(w, r)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// Config はフロントエンドが同意画面URLを組み立てるための公開設定を返す。
// クライアントシークレットは含まれない。
// GET /api/google-auth?action=config
func (h *AuthHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ClientConfig())
}

// Callback はOAuthコールバックを処理する。
// 認可コードをトークンに交換してプロフィールを取得し、署名付きセッション
// Cookieを設定してstateで指定されたリダイレクト先（未指定時は/）へ302を返す。
// stateはリダイレクト先のみに使用する。
// GET /api/google-auth?code=xxx&state=/app
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	user, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusBadRequest, callbackErrorMessage(err))
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		slog.Error("failed to issue session token",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		writeJSONError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.tokens.MaxAgeSeconds(),
		HttpOnly: true,
		Secure:   h.secure(r),
		SameSite: http.SameSiteLaxMode,
	})

	target := r.URL.Query().Get("state")
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Logout はセッションCookieをクリアする。
// トークンはステートレスなのでサーバー側の無効化処理はない。
// POST /api/google-auth?action=logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure(r),
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// WhoAmI は現在のセッション情報を返す。
// Cookieが欠落・不正・期限切れの場合はauthenticated:falseを返す（エラーにしない）。
// POST /api/google-auth
func (h *AuthHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"authenticated": false,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"user": map[string]string{
			"id":    claims.UserID,
			"email": claims.Email,
			"name":  claims.Name,
		},
	})
}

// secure はSecure属性を付けるべきかを判定する。
// 設定値に加えて、TLS終端の後段にいる場合のX-Forwarded-Protoも考慮する。
func (h *AuthHandler) secure(r *http.Request) bool {
	return h.config.CookieSecure || r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

// callbackErrorMessage は認証フローの失敗箇所に応じたエラーメッセージを返す。
// プロバイダーのエラー詳細はログにのみ残し、クライアントには返さない。
func callbackErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrNoAccessToken):
		return "No access token"
	case errors.Is(err, auth.ErrUserInfo):
		return "Failed to get user info"
	default:
		return "Token exchange failed"
	}
}
