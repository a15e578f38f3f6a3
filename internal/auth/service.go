// Package auth はGoogle OAuth認証フローとセッション管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crvouga/colddrive/internal/model"
	"github.com/crvouga/colddrive/internal/repository"
	"github.com/crvouga/colddrive/internal/token"
)

// コールバック処理の失敗段階を区別するセンチネルエラー。
// ハンドラーはこれをリダイレクト先のエラーコードに変換する。
var (
	// ErrNotConfigured はOAuthクライアント資格情報が未設定であることを示す。
	ErrNotConfigured = errors.New("google oauth is not configured")
	// ErrExchangeFailed は認可コードのトークン交換に失敗したことを示す。
	ErrExchangeFailed = errors.New("token exchange failed")
	// ErrVerificationFailed はIDトークンの検証に失敗したことを示す。
	ErrVerificationFailed = errors.New("token verification failed")
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// ConsentURL はOAuth同意画面のURLを生成する。
	ConsentURL(state string) string
	// ExchangeCode は認可コードをトークンに交換する。
	ExchangeCode(ctx context.Context, code string) (*Tokens, error)
	// VerifyIDToken はIDトークンを検証しユーザー情報を返す。
	VerifyIDToken(ctx context.Context, idToken string) (*Identity, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	Configured    bool          // OAuthクライアント資格情報が設定済みか
	SessionMaxAge time.Duration // セッション有効期間
}

// Service は認証に関するビジネスロジックを提供する。
// OAuthコールバックの処理、セッションの発行・解決・破棄を担う。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	codec       *token.Codec
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	codec *token.Codec,
	config ServiceConfig,
) *Service {
	if config.SessionMaxAge <= 0 {
		config.SessionMaxAge = token.DefaultMaxAge
	}
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		codec:       codec,
		config:      config,
	}
}

// Configured はOAuthクライアント資格情報が設定済みかを返す。
func (s *Service) Configured() bool {
	return s.config.Configured
}

// ConsentURL はOAuth同意画面のURLを返す。
// 未設定の場合はErrNotConfiguredを返す。
func (s *Service) ConsentURL(state string) (string, error) {
	if !s.config.Configured {
		return "", ErrNotConfigured
	}
	return s.oauth.ConsentURL(state), nil
}

// LoginResult はコールバック処理の成功結果。
type LoginResult struct {
	User       *model.User
	Credential string // ブラウザに渡す署名付きセッション資格情報
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 交換→検証→ユーザーUPSERT→セッション作成→資格情報発行を順に行い、
// いずれかが失敗した場合は一切の状態を残さずエラーを返す（all-or-nothing）。
func (s *Service) HandleCallback(ctx context.Context, code string, meta model.ClientMeta) (*LoginResult, error) {
	if !s.config.Configured {
		return nil, ErrNotConfigured
	}

	// 1. 認可コードをトークンに交換
	tokens, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	// 2. IDトークンを暗号学的に検証
	identity, err := s.oauth.VerifyIDToken(ctx, tokens.IDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	// 3. ユーザーディレクトリにUPSERT
	var name, avatarURL *string
	if identity.Name != "" {
		name = &identity.Name
	}
	if identity.AvatarURL != "" {
		avatarURL = &identity.AvatarURL
	}
	user, rebound, err := s.userRepo.Upsert(ctx, identity.GoogleID, identity.Email, name, avatarURL)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	// google_idが紐付け直された場合、旧連携下で発行済みのセッションを
	// すべて失効させてから新しいセッションを発行する
	if rebound {
		if err := s.sessionRepo.DeleteByUserID(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to revoke sessions after rebind: %w", err)
		}
		slog.Info("revoked existing sessions after identity rebind",
			slog.String("user_id", user.ID),
		)
	}

	// 4. セッションレコードを作成
	session, err := s.createSession(ctx, user.ID, meta)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// 5. 署名付き資格情報を発行。クレームのsessionIdには不透明トークンを格納する。
	credential, err := s.codec.Issue(user.ID, session.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session credential: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &LoginResult{User: user, Credential: credential}, nil
}

// createSession は不透明トークンを生成しセッションレコードを永続化する。
// トークン衝突（天文学的に低確率）の場合は1回だけ再試行する。
func (s *Service) createSession(ctx context.Context, userID string, meta model.ClientMeta) (*model.Session, error) {
	for attempt := 0; attempt < 2; attempt++ {
		sessionToken, err := repository.GenerateSessionToken()
		if err != nil {
			return nil, err
		}

		now := time.Now()
		session := &model.Session{
			ID:        uuid.New().String(),
			UserID:    userID,
			Token:     sessionToken,
			ExpiresAt: now.Add(s.config.SessionMaxAge),
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
			CreatedAt: now,
		}

		err = s.sessionRepo.Create(ctx, session)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, model.ErrSessionTokenConflict) {
			return nil, err
		}
	}
	return nil, model.ErrSessionTokenConflict
}

// ResolveUser はセッション資格情報から現在のユーザーを解決する。
// 資格情報の検証、セッションレコードの有効性確認、ユーザー取得のいずれかに
// 失敗した場合はnilを返す（匿名扱い）。副作用はない。
func (s *Service) ResolveUser(ctx context.Context, credential string) *model.User {
	if credential == "" {
		return nil
	}

	payload := s.codec.Verify(credential)
	if payload == nil {
		return nil
	}

	// ストア側の失効判定が正。資格情報が期限内でもレコードがなければ匿名。
	session, err := s.sessionRepo.FindValidByToken(ctx, payload.SessionID)
	if err != nil {
		slog.Error("failed to resolve session", slog.String("error", err.Error()))
		return nil
	}
	if session == nil {
		return nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		slog.Error("failed to resolve user", slog.String("error", err.Error()))
		return nil
	}

	return user
}

// Logout はセッションを破棄する。
// 資格情報が不正・期限切れ・未提示の場合でもエラーにはしない（冪等）。
func (s *Service) Logout(ctx context.Context, credential string) error {
	if credential == "" {
		return nil
	}

	payload := s.codec.Verify(credential)
	if payload == nil {
		return nil
	}

	if err := s.sessionRepo.DeleteByToken(ctx, payload.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("user_id", payload.UserID))
	return nil
}
