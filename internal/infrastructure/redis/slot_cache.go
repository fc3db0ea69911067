package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// SlotCache はイベント空き枠数のキャッシュを管理する
type SlotCache struct {
	client *redis.Client
}

// NewSlotCache は新しいSlotCacheインスタンスを作成する
func NewSlotCache(client *redis.Client) *SlotCache {
	return &SlotCache{client: client}
}

// GetAvailableSlots はイベントの空き枠数をキャッシュから取得する
func (c *SlotCache) GetAvailableSlots(ctx context.Context, eventID string) (int, error) {
	key := c.slotKey(eventID)
	val, err := c.client.Get(ctx, key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// SetAvailableSlots はイベントの空き枠数をキャッシュに保存する
func (c *SlotCache) SetAvailableSlots(ctx context.Context, eventID string, count int, ttl time.Duration) error {
	key := c.slotKey(eventID)
	err := c.client.Set(ctx, key, count, ttl).Err()
	if err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はイベントのキャッシュを無効化する
func (c *SlotCache) Invalidate(ctx context.Context, eventID string) error {
	key := c.slotKey(eventID)
	err := c.client.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *SlotCache) slotKey(eventID string) string {
	return fmt.Sprintf("events:slots:%s", eventID)
}
