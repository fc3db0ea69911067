package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/satoakira/go-event-management/internal/domain/user"
	"github.com/satoakira/go-event-management/internal/pkg/logger"
)

// TokenStore は認証トークンの発行・検証・失効を抽象化する
type TokenStore interface {
	Issue(ctx context.Context, userID string) (string, error)
	Resolve(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

type AuthService struct {
	userRepo   user.Repository
	tokens     TokenStore
	bcryptCost int
}

func NewAuthService(userRepo user.Repository, tokens TokenStore, bcryptCost int) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{userRepo: userRepo, tokens: tokens, bcryptCost: bcryptCost}
}

// Login は認証情報を検証してトークンを発行する
// ユーザーの有無とパスワード不一致は同じエラーにする（列挙攻撃対策）
func (s *AuthService) Login(ctx context.Context, email, password string) (*user.User, string, error) {
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, "", user.ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", user.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Authenticate はトークンからユーザーを特定する
func (s *AuthService) Authenticate(ctx context.Context, token string) (*user.User, error) {
	userID, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, user.ErrInvalidToken
		}
		return nil, err
	}
	return u, nil
}

// Logout はトークンを失効させる
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// EnsureInitialAdmin は管理者が一人もいない場合に初期管理者を作成する
func (s *AuthService) EnsureInitialAdmin(ctx context.Context, email, password, name string) error {
	if email == "" || password == "" {
		return nil
	}

	count, err := s.userRepo.CountByRole(ctx, user.RoleAdmin)
	if err != nil {
		return fmt.Errorf("管理者数の確認に失敗しました: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	admin := user.NewUser(email, name, user.RoleAdmin, string(hash))
	if err := admin.Validate(); err != nil {
		return fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		// 並行起動した別インスタンスが先に作成した場合は成功扱い
		if errors.Is(err, user.ErrEmailAlreadyExists) {
			return nil
		}
		return fmt.Errorf("初期管理者の作成に失敗しました: %w", err)
	}

	logger.Info("初期管理者を作成しました", zap.String("email", email))
	return nil
}
