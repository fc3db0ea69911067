package application

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/satoakira/go-event-management/internal/domain/event"
	"github.com/satoakira/go-event-management/internal/infrastructure/assets"
	"github.com/satoakira/go-event-management/internal/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SlotCache はイベント空き枠数のキャッシュを抽象化する
type SlotCache interface {
	GetAvailableSlots(ctx context.Context, eventID string) (int, error)
	SetAvailableSlots(ctx context.Context, eventID string, count int, ttl time.Duration) error
	Invalidate(ctx context.Context, eventID string) error
}

type EventService struct {
	eventRepo   event.Repository
	posterStore assets.PosterStore
	slotCache   SlotCache
}

func NewEventService(eventRepo event.Repository, posterStore assets.PosterStore, slotCache SlotCache) *EventService {
	return &EventService{eventRepo: eventRepo, posterStore: posterStore, slotCache: slotCache}
}

type CreateEventInput struct {
	Category    string
	Name        string
	Description string
	Language    string
	Duration    float64
	Assessment  bool
	Lecturers   int
	Quota       int
	Level       event.Level
	Items       []string
	Location    string
	StartAt     time.Time
	CreatedBy   string

	// Poster が nil でなければアップロードして PosterURL に設定する
	Poster         io.Reader
	PosterFilename string
}

func (s *EventService) CreateEvent(ctx context.Context, input CreateEventInput) (*event.Event, error) {
	e := event.NewEvent(
		input.Category, input.Name, input.Description, input.Language, input.Location,
		input.Duration, input.Lecturers, input.Quota, input.Level, input.Items,
		input.StartAt, input.Assessment, input.CreatedBy,
	)
	if err := e.ValidateNew(time.Now()); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}

	if input.Poster != nil {
		url, err := s.posterStore.Store(ctx, input.PosterFilename, input.Poster)
		if err != nil {
			return nil, fmt.Errorf("ポスターの保存に失敗しました: %w", err)
		}
		e.PosterURL = url
	}

	if err := s.eventRepo.Create(ctx, e); err != nil {
		if e.PosterURL != "" {
			if delErr := s.posterStore.Delete(ctx, e.PosterURL); delErr != nil {
				logger.Warn("作成失敗後のポスター削除に失敗しました", zap.String("url", e.PosterURL), zap.Error(delErr))
			}
		}
		return nil, fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return e, nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	return s.eventRepo.GetByID(ctx, id)
}

// ListEventsResult はページネーション付きの一覧結果
type ListEventsResult struct {
	Events []*event.Event
	Total  int
	Page   int
	Limit  int
}

func (s *EventService) ListEvents(ctx context.Context, filter event.ListFilter, page, limit int) (*ListEventsResult, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := (page - 1) * limit

	events, total, err := s.eventRepo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ListEventsResult{Events: events, Total: total, Page: page, Limit: limit}, nil
}

type UpdateEventInput struct {
	ID          string
	Category    string
	Name        string
	Description string
	Language    string
	Duration    float64
	Assessment  bool
	Lecturers   int
	Quota       int
	Level       event.Level
	Items       []string
	Location    string
	StartAt     time.Time

	// Status が空でなければ管理者によるステータス変更として扱う
	Status event.Status

	Poster         io.Reader
	PosterFilename string
}

func (s *EventService) UpdateEvent(ctx context.Context, input UpdateEventInput) (*event.Event, error) {
	e, err := s.eventRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	e.Category = input.Category
	e.Name = input.Name
	e.Description = input.Description
	e.Language = input.Language
	e.Duration = input.Duration
	e.Assessment = input.Assessment
	e.Lecturers = input.Lecturers
	e.Quota = input.Quota
	e.Level = input.Level
	e.Items = input.Items
	e.Location = input.Location
	e.StartAt = input.StartAt

	if input.Status != "" {
		if !input.Status.IsValid() {
			return nil, event.ErrInvalidStatus
		}
		e.Status = input.Status
	}
	// 定員やステータスの変更を open/full に反映する（終了系ステータスは維持）
	e.DeriveStatus()

	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}

	oldPoster := e.PosterURL
	if input.Poster != nil {
		url, err := s.posterStore.Store(ctx, input.PosterFilename, input.Poster)
		if err != nil {
			return nil, fmt.Errorf("ポスターの保存に失敗しました: %w", err)
		}
		e.PosterURL = url
	}

	e.UpdatedAt = time.Now()
	if err := s.eventRepo.Update(ctx, e); err != nil {
		return nil, err
	}

	if input.Poster != nil && oldPoster != "" && oldPoster != e.PosterURL {
		if delErr := s.posterStore.Delete(ctx, oldPoster); delErr != nil {
			logger.Warn("旧ポスターの削除に失敗しました", zap.String("url", oldPoster), zap.Error(delErr))
		}
	}
	s.invalidateSlots(ctx, e.ID)
	return e, nil
}

func (s *EventService) DeleteEvent(ctx context.Context, id string) error {
	e, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.eventRepo.Delete(ctx, id); err != nil {
		return err
	}

	if e.PosterURL != "" {
		if delErr := s.posterStore.Delete(ctx, e.PosterURL); delErr != nil {
			logger.Warn("ポスターの削除に失敗しました", zap.String("url", e.PosterURL), zap.Error(delErr))
		}
	}
	s.invalidateSlots(ctx, id)
	return nil
}

// GetOptions はフィルタ用の選択肢（カテゴリ・ステータス・レベル）を返す
func (s *EventService) GetOptions(ctx context.Context) (*event.ListOptions, error) {
	return s.eventRepo.Options(ctx)
}

func (s *EventService) invalidateSlots(ctx context.Context, eventID string) {
	if s.slotCache == nil {
		return
	}
	if err := s.slotCache.Invalidate(ctx, eventID); err != nil {
		logger.Warn("空き枠キャッシュの無効化に失敗しました", zap.String("event_id", eventID), zap.Error(err))
	}
}
