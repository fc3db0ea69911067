package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satoakira/go-event-management/internal/domain/event"
	"github.com/satoakira/go-event-management/internal/domain/transaction"
	"github.com/satoakira/go-event-management/internal/domain/user"
	redislock "github.com/satoakira/go-event-management/internal/infrastructure/redis"
	"github.com/satoakira/go-event-management/internal/pkg/logger"
	"github.com/satoakira/go-event-management/internal/pkg/metrics"
)

const (
	lockTTL        = 10 * time.Second
	lockMaxRetries = 3
	lockRetryDelay = 100 * time.Millisecond

	slotCacheTTL = 30 * time.Second
)

// RegistrationService はイベントへの参加登録・解除・出欠を扱う
// 同一イベントへの操作はイベント単位の分散ロックと行ロックで直列化する
type RegistrationService struct {
	txManager   transaction.Manager
	eventRepo   event.Repository
	userRepo    user.Repository
	lockManager *redislock.LockManager
	slotCache   SlotCache
	metrics     *metrics.Metrics
}

func NewRegistrationService(txManager transaction.Manager, er event.Repository, ur user.Repository, lm *redislock.LockManager, sc SlotCache, m *metrics.Metrics) *RegistrationService {
	return &RegistrationService{
		txManager:   txManager,
		eventRepo:   er,
		userRepo:    ur,
		lockManager: lm,
		slotCache:   sc,
		metrics:     m,
	}
}

// RegisterInput は参加登録の入力
// EmailとNameを指定すると登録時のスナップショットを上書きする
type RegisterInput struct {
	EventID string
	UserID  string
	Email   string
	Name    string
}

// RegisterResult は登録された参加者と登録後の空き枠数
type RegisterResult struct {
	Attendee       *event.Attendee
	AvailableSlots int
}

// Register はユーザーをイベントに登録する
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	u, err := s.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	registrant := event.Registrant{UserID: u.ID, Email: u.Email, Name: u.Name}
	if input.Email != "" {
		registrant.Email = input.Email
	}
	if input.Name != "" {
		registrant.Name = input.Name
	}

	// イベント単位の分散ロック（複数インスタンスからの同時登録を直列化）
	release, err := s.acquireEventLock(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	e, err := s.eventRepo.GetByIDForUpdate(ctx, tx, input.EventID)
	if err != nil {
		return nil, err
	}

	attendee, err := e.Register(registrant, time.Now())
	if err != nil {
		s.countRegistration(registrationResult(err))
		return nil, err
	}

	if err := s.eventRepo.AppendAttendee(ctx, tx, e, attendee); err != nil {
		s.countRegistration(registrationResult(err))
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		s.countRegistration("error")
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	s.countRegistration("success")
	s.invalidateSlots(ctx, input.EventID)
	return &RegisterResult{Attendee: attendee, AvailableSlots: e.AvailableSlots()}, nil
}

// Unregister はユーザーの参加登録を解除する
func (s *RegistrationService) Unregister(ctx context.Context, eventID, userID string) error {
	release, err := s.acquireEventLock(ctx, eventID)
	if err != nil {
		return err
	}
	defer release()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	e, err := s.eventRepo.GetByIDForUpdate(ctx, tx, eventID)
	if err != nil {
		return err
	}

	if err := e.Unregister(userID, time.Now()); err != nil {
		if errors.Is(err, event.ErrNotRegistered) {
			s.countUnregistration("not_registered")
		} else {
			s.countUnregistration("error")
		}
		return err
	}

	if err := s.eventRepo.RemoveAttendee(ctx, tx, e, userID); err != nil {
		s.countUnregistration("error")
		return err
	}
	if err := tx.Commit(); err != nil {
		s.countUnregistration("error")
		return fmt.Errorf("コミットに失敗: %w", err)
	}

	s.countUnregistration("success")
	s.invalidateSlots(ctx, eventID)
	return nil
}

// MarkAttendance は参加者の出欠を記録する
// 定員やステータスには影響しないためロックは不要
func (s *RegistrationService) MarkAttendance(ctx context.Context, eventID, userID string, attended bool) (*event.Attendee, error) {
	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	attendee, err := e.MarkAttendance(userID, attended, time.Now())
	if err != nil {
		return nil, err
	}

	if err := s.eventRepo.SaveAttendance(ctx, eventID, attendee); err != nil {
		return nil, err
	}
	return attendee, nil
}

// AttendeeReport はイベントの参加者一覧と集計
type AttendeeReport struct {
	EventID         string
	EventName       string
	Quota           int
	RegisteredCount int
	AttendedCount   int
	AvailableSlots  int
	Attendees       []event.Attendee
}

// ListAttendees は参加者一覧を返す。attended で出欠による絞り込みができる
func (s *RegistrationService) ListAttendees(ctx context.Context, eventID string, attended *bool) (*AttendeeReport, error) {
	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return &AttendeeReport{
		EventID:         e.ID,
		EventName:       e.Name,
		Quota:           e.Quota,
		RegisteredCount: len(e.Attendees),
		AttendedCount:   e.AttendedCount(),
		AvailableSlots:  e.AvailableSlots(),
		Attendees:       e.FilterAttendees(attended),
	}, nil
}

// AvailableSlots はイベントの空き枠数を返す（キャッシュ優先）
func (s *RegistrationService) AvailableSlots(ctx context.Context, eventID string) (int, error) {
	if s.slotCache != nil {
		count, err := s.slotCache.GetAvailableSlots(ctx, eventID)
		if err == nil {
			return count, nil
		}
		if !errors.Is(err, redislock.ErrCacheMiss) {
			logger.Warn("空き枠キャッシュの取得に失敗しました", zap.String("event_id", eventID), zap.Error(err))
		}
	}

	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return 0, err
	}
	count := e.AvailableSlots()

	if s.slotCache != nil {
		if err := s.slotCache.SetAvailableSlots(ctx, eventID, count, slotCacheTTL); err != nil {
			logger.Warn("空き枠キャッシュの保存に失敗しました", zap.String("event_id", eventID), zap.Error(err))
		}
	}
	return count, nil
}

// RefreshUpcomingSlots は開催前イベントの空き枠キャッシュを更新する
func (s *RegistrationService) RefreshUpcomingSlots(ctx context.Context) (int, error) {
	if s.slotCache == nil {
		return 0, nil
	}

	now := time.Now()
	events, _, err := s.eventRepo.List(ctx, event.ListFilter{From: &now}, maxPageSize, 0)
	if err != nil {
		return 0, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}

	refreshed := 0
	for _, e := range events {
		if err := s.slotCache.SetAvailableSlots(ctx, e.ID, e.AvailableSlots(), slotCacheTTL); err != nil {
			logger.Warn("空き枠キャッシュの保存に失敗しました", zap.String("event_id", e.ID), zap.Error(err))
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// acquireEventLock はイベント単位の分散ロックを取得し、解放関数を返す
func (s *RegistrationService) acquireEventLock(ctx context.Context, eventID string) (func(), error) {
	if s.lockManager == nil {
		return func() {}, nil
	}

	start := time.Now()
	lock, err := s.lockManager.AcquireLockWithRetry(ctx, "event:"+eventID, lockTTL, lockMaxRetries, lockRetryDelay)
	if err != nil {
		s.observeLock("acquire", "failed", time.Since(start))
		if errors.Is(err, redislock.ErrLockNotAcquired) {
			return nil, event.ErrEventBusy
		}
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	s.observeLock("acquire", "success", time.Since(start))

	return func() {
		if err := lock.Release(ctx); err != nil {
			logger.Warn("ロック解放に失敗しました", zap.String("event_id", eventID), zap.Error(err))
		}
	}, nil
}

// registrationResult は登録エラーをメトリクスのラベルに変換する
func registrationResult(err error) string {
	switch {
	case errors.Is(err, event.ErrEventFull):
		return "full"
	case errors.Is(err, event.ErrRegistrationClosed):
		return "closed"
	case errors.Is(err, event.ErrAlreadyRegistered):
		return "duplicate"
	default:
		return "error"
	}
}

func (s *RegistrationService) countRegistration(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RegistrationsTotal.WithLabelValues(result).Inc()
}

func (s *RegistrationService) countUnregistration(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.UnregistrationsTotal.WithLabelValues(result).Inc()
}

func (s *RegistrationService) observeLock(operation, status string, d time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.DistributedLockDuration.WithLabelValues(operation, status).Observe(d.Seconds())
}

func (s *RegistrationService) invalidateSlots(ctx context.Context, eventID string) {
	if s.slotCache == nil {
		return
	}
	if err := s.slotCache.Invalidate(ctx, eventID); err != nil {
		logger.Warn("空き枠キャッシュの無効化に失敗しました", zap.String("event_id", eventID), zap.Error(err))
	}
}
