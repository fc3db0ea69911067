package user

import "time"

// Role はユーザーの権限ロールを表す
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// IsValid はロールが定義済みの値かを返す
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User はユーザーエンティティを表す
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser は新しいユーザーを作成する
func NewUser(email, name string, role Role, passwordHash string) *User {
	now := time.Now()
	return &User{
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate はユーザーの検証を行う
func (u *User) Validate() error {
	if u.Email == "" {
		return ErrEmailRequired
	}
	if u.Name == "" {
		return ErrNameRequired
	}
	if !u.Role.IsValid() {
		return ErrInvalidRole
	}
	return nil
}

// IsAdmin は管理者ロールかを返す
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
