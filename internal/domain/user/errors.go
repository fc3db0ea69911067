package user

import "errors"

// User ドメインのエラー定義
var (
	ErrUserNotFound       = errors.New("ユーザーが見つかりません")
	ErrEmailRequired      = errors.New("メールアドレスは必須です")
	ErrNameRequired       = errors.New("名前は必須です")
	ErrInvalidRole        = errors.New("ロールの値が不正です")
	ErrEmailAlreadyExists = errors.New("同じメールアドレスのユーザーが既に存在します")
	ErrInvalidCredentials = errors.New("メールアドレスまたはパスワードが正しくありません")
	ErrInvalidToken       = errors.New("認証トークンが無効です")
)
