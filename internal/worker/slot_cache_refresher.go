package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satoakira/go-event-management/internal/pkg/logger"
)

// SlotRefresher は開催予定イベントの空き枠キャッシュを再計算するインターフェース
type SlotRefresher interface {
	RefreshUpcomingSlots(ctx context.Context) (int, error)
}

// SlotCacheRefresher は空き枠キャッシュを定期的に更新するワーカー
type SlotCacheRefresher struct {
	refresher SlotRefresher
	interval  time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewSlotCacheRefresher は新しいリフレッシャーを作成
func NewSlotCacheRefresher(r SlotRefresher, interval time.Duration) *SlotCacheRefresher {
	return &SlotCacheRefresher{
		refresher: r,
		interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start はリフレッシャーを開始
func (w *SlotCacheRefresher) Start(ctx context.Context) {
	logger.Info("空き枠キャッシュリフレッシャー開始",
		zap.Duration("interval", w.interval),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("空き枠キャッシュリフレッシャー停止（コンテキストキャンセル）")
			return
		case <-w.stopCh:
			logger.Info("空き枠キャッシュリフレッシャー停止（シグナル受信）")
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

// Stop はリフレッシャーを停止
func (w *SlotCacheRefresher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

// refresh は開催予定イベントの空き枠キャッシュを更新
func (w *SlotCacheRefresher) refresh(ctx context.Context) {
	log := logger.Get()
	log.Debug("空き枠キャッシュの更新開始")

	count, err := w.refresher.RefreshUpcomingSlots(ctx)
	if err != nil {
		log.Error("空き枠キャッシュの更新に失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("空き枠キャッシュを更新", zap.Int("count", count))
	} else {
		log.Debug("更新対象のイベントなし")
	}
}
