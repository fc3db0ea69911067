package user

import "context"

// Repository はユーザーリポジトリのインターフェース
type Repository interface {
	// Create は新しいユーザーを作成する
	Create(ctx context.Context, user *User) error

	// GetByID はIDからユーザーを取得する
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail はメールアドレスからユーザーを取得する
	GetByEmail(ctx context.Context, email string) (*User, error)

	// List はユーザー一覧と総件数を作成日時の昇順で取得する
	List(ctx context.Context, limit, offset int) ([]*User, int, error)

	// Update はユーザーを更新する
	Update(ctx context.Context, user *User) error

	// Delete はユーザーを削除する
	Delete(ctx context.Context, id string) error

	// CountByRole は指定ロールのユーザー数を返す
	CountByRole(ctx context.Context, role Role) (int, error)
}
