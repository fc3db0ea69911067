package handler

import (
	"context"

	"github.com/satoakira/go-event-management/internal/application"
	"github.com/satoakira/go-event-management/internal/domain/event"
	"github.com/satoakira/go-event-management/internal/domain/user"
)

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error)
	GetEvent(ctx context.Context, id string) (*event.Event, error)
	ListEvents(ctx context.Context, filter event.ListFilter, page, limit int) (*application.ListEventsResult, error)
	UpdateEvent(ctx context.Context, input application.UpdateEventInput) (*event.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	GetOptions(ctx context.Context) (*event.ListOptions, error)
}

// EventGetter は所有者チェックのためにイベントを取得する
type EventGetter interface {
	GetEvent(ctx context.Context, id string) (*event.Event, error)
}

// RegistrationServiceInterface は参加登録サービスのインターフェース
type RegistrationServiceInterface interface {
	Register(ctx context.Context, input application.RegisterInput) (*application.RegisterResult, error)
	Unregister(ctx context.Context, eventID, userID string) error
	MarkAttendance(ctx context.Context, eventID, userID string, attended bool) (*event.Attendee, error)
	ListAttendees(ctx context.Context, eventID string, attended *bool) (*application.AttendeeReport, error)
	AvailableSlots(ctx context.Context, eventID string) (int, error)
}

// UserServiceInterface はユーザーサービスのインターフェース
type UserServiceInterface interface {
	CreateUser(ctx context.Context, input application.CreateUserInput) (*user.User, error)
	GetUser(ctx context.Context, id string) (*user.User, error)
	ListUsers(ctx context.Context, page, limit int) (*application.ListUsersResult, error)
	UpdateUser(ctx context.Context, input application.UpdateUserInput) (*user.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// AuthServiceInterface は認証サービスのインターフェース
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*user.User, string, error)
	Authenticate(ctx context.Context, token string) (*user.User, error)
	Logout(ctx context.Context, token string) error
}
