package application

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/satoakira/go-event-management/internal/domain/user"
)

type UserService struct {
	userRepo   user.Repository
	bcryptCost int
}

func NewUserService(userRepo user.Repository, bcryptCost int) *UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{userRepo: userRepo, bcryptCost: bcryptCost}
}

type CreateUserInput struct {
	Email    string
	Name     string
	Password string
	Role     user.Role
}

func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*user.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	role := input.Role
	if role == "" {
		role = user.RoleUser
	}

	u := user.NewUser(input.Email, input.Name, role, string(hash))
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*user.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// ListUsersResult はページネーション付きの一覧結果
type ListUsersResult struct {
	Users []*user.User
	Total int
	Page  int
	Limit int
}

func (s *UserService) ListUsers(ctx context.Context, page, limit int) (*ListUsersResult, error) {
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

	users, total, err := s.userRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ListUsersResult{Users: users, Total: total, Page: page, Limit: limit}, nil
}

type UpdateUserInput struct {
	ID    string
	Email string
	Name  string
	Role  user.Role

	// Password が空でなければパスワードを更新する
	Password string
}

func (s *UserService) UpdateUser(ctx context.Context, input UpdateUserInput) (*user.User, error) {
	u, err := s.userRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	u.Email = input.Email
	u.Name = input.Name
	if input.Role != "" {
		u.Role = input.Role
	}
	if input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
		}
		u.PasswordHash = string(hash)
	}

	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.userRepo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	return s.userRepo.Delete(ctx, id)
}
