// Package auth はGoogle OAuth認証フローを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/tunesync/internal/metrics"
	"github.com/hitoshi/tunesync/internal/model"
	"github.com/hitoshi/tunesync/internal/repository"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*GoogleUserInfo, error)
}

// ClientConfig はフロントエンドが同意画面URLの組み立てに使う公開設定。
// クライアントシークレットは絶対に含めない。
type ClientConfig struct {
	ClientID    string `json:"clientId"`
	RedirectURI string `json:"redirectUri"`
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	ClientID    string
	RedirectURI string
}

// Service は認証に関するビジネスロジックを提供する。
// ユーザープロフィールの永続化はベストエフォートであり、
// 失敗してもログインは成功する。
type Service struct {
	oauth     OAuthProvider
	userRepo  repository.UserRepository
	collector metrics.MetricsCollector
	config    ServiceConfig
}

// NewService はServiceを生成する。
// userRepoはnilでもよく、その場合プロフィールの永続化をスキップする
// （DATABASE_URL未設定の縮退モード）。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		oauth:     oauth,
		userRepo:  userRepo,
		collector: collector,
		config:    config,
	}
}

// ClientConfig はOAuthクライアントの公開設定を返す。副作用なし。
func (s *Service) ClientConfig() ClientConfig {
	return ClientConfig{
		ClientID:    s.config.ClientID,
		RedirectURI: s.config.RedirectURI,
	}
}

// HandleCallback はOAuthコールバックを処理する。
// 認可コードをトークンに交換し、ユーザー情報を取得してユーザーを返す。
// ユーザーレコードのUPSERTはベストエフォートで行い、失敗はログに記録して
// 握りつぶす（ログインの成功経路には影響させない）。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.User, error) {
	start := time.Now()
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	s.collector.RecordExchangeLatency(time.Since(start))
	if err != nil {
		s.collector.RecordLoginFailure("exchange")
		return nil, fmt.Errorf("oauth code exchange failed: %w", err)
	}

	user := &model.User{
		ID:      userInfo.SubjectID(),
		Email:   userInfo.Email,
		Name:    userInfo.Name,
		Picture: userInfo.Picture,
	}

	if s.userRepo != nil {
		if err := s.userRepo.Upsert(ctx, user); err != nil {
			// 永続化失敗はログインを妨げない
			slog.Error("failed to upsert user profile",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.collector.RecordLoginSuccess()
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}
