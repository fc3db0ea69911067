package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/satoakira/go-event-management/internal/domain/event"
	"github.com/satoakira/go-event-management/internal/domain/user"
)

func serviceTestEvent(quota int) *event.Event {
	return &event.Event{
		ID:          "event-1",
		Category:    "tech",
		Name:        "Go勉強会",
		Description: "Goの基礎を学ぶ",
		Language:    "日本語",
		Duration:    1.5,
		Lecturers:   1,
		Quota:       quota,
		Level:       event.LevelEntry,
		Location:    "東京",
		StartAt:     time.Now().Add(24 * time.Hour),
		Status:      event.StatusOpen,
		CreatedBy:   "admin-1",
	}
}

func serviceTestUser() *user.User {
	return &user.User{
		ID:    "user-1",
		Email: "taro@example.com",
		Name:  "山田太郎",
		Role:  user.RoleUser,
	}
}

func TestRegistrationService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("正常に登録できる", func(t *testing.T) {
		// Arrange
		e := serviceTestEvent(3)
		u := serviceTestUser()

		txManager := new(MockTxManager)
		tx := new(MockTx)
		eventRepo := new(MockEventRepository)
		userRepo := new(MockUserRepository)

		userRepo.On("GetByID", ctx, "user-1").Return(u, nil)
		txManager.On("Begin", ctx).Return(tx, nil)
		eventRepo.On("GetByIDForUpdate", ctx, tx, "event-1").Return(e, nil)
		eventRepo.On("AppendAttendee", ctx, tx, e, mock.AnythingOfType("*event.Attendee")).Return(nil)
		tx.On("Commit").Return(nil)
		tx.On("Rollback").Return(nil)

		service := NewRegistrationService(txManager, eventRepo, userRepo, nil, nil, nil)

		// Act
		result, err := service.Register(ctx, RegisterInput{EventID: "event-1", UserID: "user-1"})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "user-1", result.Attendee.UserID)
		assert.Equal(t, "taro@example.com", result.Attendee.Email)
		assert.Equal(t, "山田太郎", result.Attendee.Name)
		assert.False(t, result.Attendee.Attended)
		assert.Equal(t, 2, result.AvailableSlots)
		eventRepo.AssertExpectations(t)
		tx.AssertExpectations(t)
	})

	t.Run("スナップショットを上書きして登録できる", func(t *testing.T) {
		e := serviceTestEvent(3)

		txManager := new(MockTxManager)
		tx := new(MockTx)
		eventRepo := new(MockEventRepository)
		userRepo := new(MockUserRepository)

		userRepo.On("GetByID", ctx, "user-1").Return(serviceTestUser(), nil)
		txManager.On("Begin", ctx).Return(tx, nil)
		eventRepo.On("GetByIDForUpdate", ctx, tx, "event-1").Return(e, nil)
		eventRepo.On("AppendAttendee", ctx, tx, e, mock.AnythingOfType("*event.Attendee")).Return(nil)
		tx.On("Commit").Return(nil)
		tx.On("Rollback").Return(nil)

		service := NewRegistrationService(txManager, eventRepo, userRepo, nil, nil, nil)

		result, err := service.Register(ctx, RegisterInput{
			EventID: "event-1",
			UserID:  "user-1",
			Email:   "work@example.com",
			Name:    "山田（仕事用）",
		})

		require.NoError(t, err)
		assert.Equal(t, "user-1", result.Attendee.UserID)
		assert.Equal(t, "work@example.com", result.Attendee.Email)
		assert.Equal(t, "山田（仕事用）", result.Attendee.Name)
	})

	t.Run("存在しないユーザーは登録できない", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		userRepo.On("GetByID", ctx, "unknown").Return(nil, user.ErrUserNotFound)

		service := NewRegistrationService(new(MockTxManager), new(MockEventRepository), userRepo, nil, nil, nil)

		_, err := service.Register(ctx, RegisterInput{EventID: "event-1", UserID: "unknown"})
		assert.ErrorIs(t, err, user.ErrUserNotFound)
	})

	t.Run("満員のイベントには登録できない", func(t *testing.T) {
		e := serviceTestEvent(1)
		_, err := e.Register(event.Registrant{UserID: "other", Email: "o@example.com", Name: "他"}, time.Now())
		require.NoError(t, err)

		txManager := new(MockTxManager)
		tx := new(MockTx)
		eventRepo := new(MockEventRepository)
		userRepo := new(MockUserRepository)

		userRepo.On("GetByID", ctx, "user-1").Return(serviceTestUser(), nil)
		txManager.On("Begin", ctx).Return(tx, nil)
		eventRepo.On("GetByIDForUpdate", ctx, tx, "event-1").Return(e, nil)
		tx.On("Rollback").Return(nil)

		service := NewRegistrationService(txManager, eventRepo, userRepo, nil, nil, nil)

		_, err = service.Register(ctx, RegisterInput{EventID: "event-1", UserID: "user-1"})
		assert.ErrorIs(t, err, event.ErrEventFull)
		eventRepo.AssertNotCalled(t, "AppendAttendee", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("キャンセル済みイベントには登録できない", func(t *testing.T) {
		e := serviceTestEvent(3)
		e.Status = event.StatusCancelled

		txManager := new(MockTxManager)
		tx := new(MockTx)
		eventRepo := new(MockEventRepository)
		userRepo := new(MockUserRepository)

		userRepo.On("GetByID", ctx, "user-1").Return(serviceTestUser(), nil)
		txManager.On("Begin", ctx).Return(tx, nil)
		eventRepo.On("GetByIDForUpdate", ctx, tx, "event-1").Return(e, nil)
		tx.On("Rollback").Return(nil)

		service := NewRegistrationService(txManager, eventRepo, userRepo, nil, nil, nil)

		_, err := service.Register(ctx, RegisterInput{EventID: "event-1", UserID: "user-1"})
		assert.ErrorIs(t, err, event.ErrRegistrationClosed)
	})

	t.Run("登録済みユーザーは重複登録できない", func(t *testing.T) {
		e := serviceTestEvent(3)
		_, err := e.Register(event.Registrant{UserID: "user-1", Email: "taro@example.com", Name: "山田太郎"}, time.Now())
		require.NoError(t, err)

		txManager := new(MockTxManager)
		tx := new(MockTx)
		eventRepo := new(MockEventRepository)
		userRepo := new(MockUserRepository)

		userRepo.On("GetByID", ctx, "user-1").Return(serviceTestUser(), nil)
		txManager.On("Begin", ctx).Return(tx, nil)
		eventRepo.On("GetByIDForUpdate", ctx, tx, "event-1").Return(e, nil)
		tx.On("Rollback").Return(nil)

		service := NewRegistrationService(txManager, eventRepo, userRepo, nil, nil, nil)

		_, err = service.Register(ctx, RegisterInput{EventID: "event-1", UserID: "user-1"})
		assert.ErrorIs(t, err, event.ErrAlreadyRegistered)
	})

	t.Run("登録成功時にキャッシュを無効化する", func(t *testing.T) {
		e := serviceTestEvent(3)

		txManager := new(MockTxManager)
		tx := new(MockTx)
		eventRepo := new(MockEventRepository)
		userRepo := new(MockUserRepository)
		slotCache := new(MockSlotCache)

		userRepo.On("GetByID", ctx, "user-1").Return(serviceTestUser(), nil)
		txManager.On("Begin", ctx).Return(tx, nil)
		eventRepo.On("GetByIDForUpdate", ctx, tx, "event-1").Return(e, nil)
		eventRepo.On("AppendAttendee", ctx, tx, e, mock.AnythingOfType("*event.Attendee")).Return(nil)
		tx.On("Commit").Return(nil)
		tx.On("Rollback").Return(nil)
		slotCache.On("Invalidate", ctx, "event-1").Return(nil)

		service := NewRegistrationService(txManager, eventRepo, userRepo, nil, slotCache, nil)

		_, err := service.Register(ctx, RegisterInput{EventID: "event-1", UserID: "user-1"})
		require.NoError(t, err)
		slotCache.AssertExpectations(t)
	})
}

func TestRegistrationService_Unregister(t *testing.T) {
	ctx := context.Background()

	t.Run("正常に解除できる", func(t *testing.T) {
		e := serviceTestEvent(3)
		_, err := e.Register(event.Registrant{UserID: "user-1", Email: "taro@example.com", Name: "山田太郎"}, time.Now())
		require.NoError(t, err)

		txManager := new(MockTxManager)
		tx := new(MockTx)
		eventRepo := new(MockEventRepository)

		txManager.On("Begin", ctx).Return(tx, nil)
		eventRepo.On("GetByIDForUpdate", ctx, tx, "event-1").Return(e, nil)
		eventRepo.On("RemoveAttendee", ctx, tx, e, "user-1").Return(nil)
		tx.On("Commit").Return(nil)
		tx.On("Rollback").Return(nil)

		service := NewRegistrationService(txManager, eventRepo, new(MockUserRepository), nil, nil, nil)

		err = service.Unregister(ctx, "event-1", "user-1")
		require.NoError(t, err)
		assert.Empty(t, e.Attendees)
		eventRepo.AssertExpectations(t)
	})

	t.Run("未登録ユーザーの解除はエラーになる", func(t *testing.T) {
		e := serviceTestEvent(3)

		txManager := new(MockTxManager)
		tx := new(MockTx)
		eventRepo := new(MockEventRepository)

		txManager.On("Begin", ctx).Return(tx, nil)
		eventRepo.On("GetByIDForUpdate", ctx, tx, "event-1").Return(e, nil)
		tx.On("Rollback").Return(nil)

		service := NewRegistrationService(txManager, eventRepo, new(MockUserRepository), nil, nil, nil)

		err := service.Unregister(ctx, "event-1", "user-1")
		assert.ErrorIs(t, err, event.ErrNotRegistered)
		eventRepo.AssertNotCalled(t, "RemoveAttendee", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRegistrationService_MarkAttendance(t *testing.T) {
	ctx := context.Background()

	t.Run("出席を記録できる", func(t *testing.T) {
		e := serviceTestEvent(3)
		_, err := e.Register(event.Registrant{UserID: "user-1", Email: "taro@example.com", Name: "山田太郎"}, time.Now())
		require.NoError(t, err)

		eventRepo := new(MockEventRepository)
		eventRepo.On("GetByID", ctx, "event-1").Return(e, nil)
		eventRepo.On("SaveAttendance", ctx, "event-1", mock.AnythingOfType("*event.Attendee")).Return(nil)

		service := NewRegistrationService(new(MockTxManager), eventRepo, new(MockUserRepository), nil, nil, nil)

		attendee, err := service.MarkAttendance(ctx, "event-1", "user-1", true)
		require.NoError(t, err)
		assert.True(t, attendee.Attended)
		assert.NotNil(t, attendee.AttendedAt)
	})

	t.Run("未登録ユーザーの出欠記録はエラーになる", func(t *testing.T) {
		e := serviceTestEvent(3)

		eventRepo := new(MockEventRepository)
		eventRepo.On("GetByID", ctx, "event-1").Return(e, nil)

		service := NewRegistrationService(new(MockTxManager), eventRepo, new(MockUserRepository), nil, nil, nil)

		_, err := service.MarkAttendance(ctx, "event-1", "user-1", true)
		assert.ErrorIs(t, err, event.ErrAttendeeNotFound)
	})
}

func TestRegistrationService_ListAttendees(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	e := serviceTestEvent(5)
	_, err := e.Register(event.Registrant{UserID: "user-1", Email: "a@example.com", Name: "A"}, now)
	require.NoError(t, err)
	_, err = e.Register(event.Registrant{UserID: "user-2", Email: "b@example.com", Name: "B"}, now)
	require.NoError(t, err)
	_, err = e.MarkAttendance("user-1", true, now)
	require.NoError(t, err)

	eventRepo := new(MockEventRepository)
	eventRepo.On("GetByID", ctx, "event-1").Return(e, nil)

	service := NewRegistrationService(new(MockTxManager), eventRepo, new(MockUserRepository), nil, nil, nil)

	t.Run("全参加者と集計を返す", func(t *testing.T) {
		report, err := service.ListAttendees(ctx, "event-1", nil)
		require.NoError(t, err)
		assert.Equal(t, "Go勉強会", report.EventName)
		assert.Equal(t, 5, report.Quota)
		assert.Equal(t, 2, report.RegisteredCount)
		assert.Equal(t, 1, report.AttendedCount)
		assert.Equal(t, 3, report.AvailableSlots)
		assert.Len(t, report.Attendees, 2)
	})

	t.Run("出席者のみに絞り込める", func(t *testing.T) {
		attended := true
		report, err := service.ListAttendees(ctx, "event-1", &attended)
		require.NoError(t, err)
		assert.Len(t, report.Attendees, 1)
		assert.Equal(t, "user-1", report.Attendees[0].UserID)
	})
}

func TestRegistrationService_AvailableSlots(t *testing.T) {
	ctx := context.Background()

	t.Run("キャッシュヒット時はDBを参照しない", func(t *testing.T) {
		slotCache := new(MockSlotCache)
		eventRepo := new(MockEventRepository)
		slotCache.On("GetAvailableSlots", ctx, "event-1").Return(7, nil)

		service := NewRegistrationService(new(MockTxManager), eventRepo, new(MockUserRepository), nil, slotCache, nil)

		count, err := service.AvailableSlots(ctx, "event-1")
		require.NoError(t, err)
		assert.Equal(t, 7, count)
		eventRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("キャッシュなしでも空き枠数を返す", func(t *testing.T) {
		e := serviceTestEvent(3)
		_, err := e.Register(event.Registrant{UserID: "user-1", Email: "a@example.com", Name: "A"}, time.Now())
		require.NoError(t, err)

		eventRepo := new(MockEventRepository)
		eventRepo.On("GetByID", ctx, "event-1").Return(e, nil)

		service := NewRegistrationService(new(MockTxManager), eventRepo, new(MockUserRepository), nil, nil, nil)

		count, err := service.AvailableSlots(ctx, "event-1")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}
