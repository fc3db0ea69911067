package event

import (
	"context"
	"time"

	"github.com/satoakira/go-event-management/internal/domain/transaction"
)

// ListFilter はイベント一覧の絞り込み条件
// 条件は AND で結合し、Query は名前・説明への大文字小文字を区別しない部分一致
type ListFilter struct {
	Category string
	Level    string
	Status   string
	Query    string
	From     *time.Time
	To       *time.Time
}

// ListOptions はダッシュボードの絞り込み用ドロップダウンの選択肢
type ListOptions struct {
	Categories []string
	Statuses   []string
	Levels     []string
}

// Repository はイベントリポジトリのインターフェース
type Repository interface {
	// Create は新しいイベントを作成する
	Create(ctx context.Context, event *Event) error

	// GetByID はIDからイベントを参加者込みで取得する
	GetByID(ctx context.Context, id string) (*Event, error)

	// GetByIDForUpdate はイベント行をロックして取得する（トランザクション必須）
	// 同一イベントに対する登録系の読み取り・検査・書き込みを直列化するために使う
	GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id string) (*Event, error)

	// List は条件に合致するイベント一覧と総件数を開催日時の昇順で返す
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Event, int, error)

	// Update はイベントのメタデータを更新する（楽観的ロック）
	Update(ctx context.Context, event *Event) error

	// Delete はイベントを削除する（参加者レコードもカスケード削除）
	Delete(ctx context.Context, id string) error

	// AppendAttendee は参加者行の追加とステータス更新を同一トランザクションで永続化する
	AppendAttendee(ctx context.Context, tx transaction.Tx, event *Event, attendee *Attendee) error

	// RemoveAttendee は参加者行の削除とステータス更新を同一トランザクションで永続化する
	RemoveAttendee(ctx context.Context, tx transaction.Tx, event *Event, userID string) error

	// SaveAttendance は出欠フラグを単一行更新で永続化する
	SaveAttendance(ctx context.Context, eventID string, attendee *Attendee) error

	// Options はカテゴリ・ステータス・レベルの distinct 値を返す
	Options(ctx context.Context) (*ListOptions, error)
}
