package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/satoakira/go-event-management/internal/domain/user"
)

// TokenStore は認証トークンをRedisに保存する
// トークンは不透明なUUIDで、TTLが切れると自動的に失効する
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore は新しいTokenStoreインスタンスを作成する
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// Issue はユーザーに新しいトークンを発行する
func (s *TokenStore) Issue(ctx context.Context, userID string) (string, error) {
	token := uuid.New().String()
	key := s.tokenKey(token)
	if err := s.client.Set(ctx, key, userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("トークン発行に失敗しました: %w", err)
	}
	return token, nil
}

// Resolve はトークンからユーザーIDを取得する
func (s *TokenStore) Resolve(ctx context.Context, token string) (string, error) {
	key := s.tokenKey(token)
	userID, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", user.ErrInvalidToken
		}
		return "", fmt.Errorf("トークン検証に失敗しました: %w", err)
	}
	return userID, nil
}

// Revoke はトークンを失効させる
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	key := s.tokenKey(token)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("トークン失効に失敗しました: %w", err)
	}
	return nil
}

func (s *TokenStore) tokenKey(token string) string {
	return fmt.Sprintf("auth:token:%s", token)
}
