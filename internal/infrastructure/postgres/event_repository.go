package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/satoakira/go-event-management/internal/domain/event"
	"github.com/satoakira/go-event-management/internal/domain/transaction"
)

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID          string         `db:"id"`
	Category    string         `db:"category"`
	PosterURL   *string        `db:"poster_url"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Language    string         `db:"language"`
	Duration    float64        `db:"duration"`
	Assessment  bool           `db:"assessment"`
	Lecturers   int            `db:"lecturers"`
	Quota       int            `db:"quota"`
	Level       string         `db:"level"`
	Items       pq.StringArray `db:"items"`
	Location    string         `db:"location"`
	StartAt     time.Time      `db:"start_at"`
	Status      string         `db:"status"`
	CreatedBy   string         `db:"created_by"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	Version     int            `db:"version"`
}

// attendeeRow は参加者行を表す構造体
type attendeeRow struct {
	EventID      string     `db:"event_id"`
	UserID       string     `db:"user_id"`
	Email        string     `db:"email"`
	Name         string     `db:"name"`
	RegisteredAt time.Time  `db:"registered_at"`
	Attended     bool       `db:"attended"`
	AttendedAt   *time.Time `db:"attended_at"`
}

// toEntity はeventRowをEventエンティティに変換する
func (r *eventRow) toEntity() *event.Event {
	var poster string
	if r.PosterURL != nil {
		poster = *r.PosterURL
	}
	return &event.Event{
		ID:          r.ID,
		Category:    r.Category,
		PosterURL:   poster,
		Name:        r.Name,
		Description: r.Description,
		Language:    r.Language,
		Duration:    r.Duration,
		Assessment:  r.Assessment,
		Lecturers:   r.Lecturers,
		Quota:       r.Quota,
		Level:       event.Level(r.Level),
		Items:       []string(r.Items),
		Location:    r.Location,
		StartAt:     r.StartAt,
		Status:      event.Status(r.Status),
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Version:     r.Version,
	}
}

func (r *attendeeRow) toEntity() event.Attendee {
	return event.Attendee{
		UserID:       r.UserID,
		Email:        r.Email,
		Name:         r.Name,
		RegisteredAt: r.RegisteredAt,
		Attended:     r.Attended,
		AttendedAt:   r.AttendedAt,
	}
}

const eventColumns = `id, category, poster_url, name, description, language, duration, assessment, lecturers, quota, level, items, location, start_at, status, created_by, created_at, updated_at, version`

const attendeeColumns = `event_id, user_id, email, name, registered_at, attended, attended_at`

// EventRepository はイベントリポジトリのPostgreSQL実装
// 参加者は attendees テーブルに子行として永続化し、seq 列で登録順を保持する
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create は新しいイベントを作成する
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	query := `
		INSERT INTO events (category, poster_url, name, description, language, duration, assessment, lecturers, quota, level, items, location, start_at, status, created_by, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id
	`
	var poster *string
	if e.PosterURL != "" {
		poster = &e.PosterURL
	}

	err := r.db.QueryRowContext(ctx, query,
		e.Category, poster, e.Name, e.Description, e.Language, e.Duration, e.Assessment,
		e.Lecturers, e.Quota, string(e.Level), pq.Array(e.Items), e.Location, e.StartAt,
		string(e.Status), e.CreatedBy, e.CreatedAt, e.UpdatedAt, e.Version,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDからイベントを参加者込みで取得する
func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	var row eventRow
	err := r.db.GetContext(ctx, &row, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}

	e := row.toEntity()
	if err := r.loadAttendees(ctx, r.db, e); err != nil {
		return nil, err
	}
	return e, nil
}

// GetByIDForUpdate はイベント行をロックして取得する
// FOR UPDATE の行ロックにより同一イベントへの登録処理が直列化される
func (r *EventRepository) GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id string) (*event.Event, error) {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return nil, fmt.Errorf("トランザクションが必要です")
	}

	var row eventRow
	err := sqlxTx.GetContext(ctx, &row, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}

	e := row.toEntity()
	if err := r.loadAttendees(ctx, sqlxTx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// List は条件に合致するイベント一覧と総件数を開催日時の昇順で返す
func (r *EventRepository) List(ctx context.Context, filter event.ListFilter, limit, offset int) ([]*event.Event, int, error) {
	where, args := buildListWhere(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM events` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("イベント件数取得に失敗しました: %w", err)
	}

	listQuery := `SELECT ` + eventColumns + ` FROM events` + where +
		` ORDER BY start_at ASC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}

	events := make([]*event.Event, len(rows))
	ids := make([]string, len(rows))
	byID := make(map[string]*event.Event, len(rows))
	for i, row := range rows {
		events[i] = row.toEntity()
		ids[i] = events[i].ID
		byID[events[i].ID] = events[i]
	}

	if len(ids) > 0 {
		var attendeeRows []attendeeRow
		query := `SELECT ` + attendeeColumns + ` FROM attendees WHERE event_id = ANY($1) ORDER BY seq`
		if err := r.db.SelectContext(ctx, &attendeeRows, query, pq.Array(ids)); err != nil {
			return nil, 0, fmt.Errorf("参加者取得に失敗しました: %w", err)
		}
		for _, ar := range attendeeRows {
			e := byID[ar.EventID]
			e.Attendees = append(e.Attendees, ar.toEntity())
		}
	}

	return events, total, nil
}

// buildListWhere はAND結合のWHERE句を構築する
// Queryは名前・説明に対する大文字小文字を区別しない部分一致
func buildListWhere(filter event.ListFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if filter.Category != "" {
		add("category = ?", filter.Category)
	}
	if filter.Level != "" {
		add("level = ?", filter.Level)
	}
	if filter.Status != "" {
		add("status = ?", filter.Status)
	}
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		args = append(args, pattern)
		n := strconv.Itoa(len(args))
		conditions = append(conditions, "(name ILIKE $"+n+" OR description ILIKE $"+n+")")
	}
	if filter.From != nil {
		add("start_at >= ?", *filter.From)
	}
	if filter.To != nil {
		add("start_at <= ?", *filter.To)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// Update はイベントのメタデータを更新する（楽観的ロック）
func (r *EventRepository) Update(ctx context.Context, e *event.Event) error {
	query := `
		UPDATE events
		SET category = $1, poster_url = $2, name = $3, description = $4, language = $5,
		    duration = $6, assessment = $7, lecturers = $8, quota = $9, level = $10,
		    items = $11, location = $12, start_at = $13, status = $14,
		    updated_at = $15, version = version + 1
		WHERE id = $16 AND version = $17
	`
	var poster *string
	if e.PosterURL != "" {
		poster = &e.PosterURL
	}

	result, err := r.db.ExecContext(ctx, query,
		e.Category, poster, e.Name, e.Description, e.Language, e.Duration, e.Assessment,
		e.Lecturers, e.Quota, string(e.Level), pq.Array(e.Items), e.Location, e.StartAt,
		string(e.Status), time.Now(), e.ID, e.Version,
	)
	if err != nil {
		return fmt.Errorf("イベント更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrEventNotFound
	}

	e.Version++
	return nil
}

// Delete はイベントを削除する（参加者行は外部キーでカスケード削除）
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("イベント削除に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrEventNotFound
	}
	return nil
}

// AppendAttendee は参加者行の追加とステータス更新を同一トランザクションで永続化する
// UNIQUE(event_id, user_id) 制約が重複登録の最終防衛線となる
func (r *EventRepository) AppendAttendee(ctx context.Context, tx transaction.Tx, e *event.Event, a *event.Attendee) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションが必要です")
	}

	query := `
		INSERT INTO attendees (event_id, user_id, email, name, registered_at, attended, attended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := sqlxTx.ExecContext(ctx, query,
		e.ID, a.UserID, a.Email, a.Name, a.RegisteredAt, a.Attended, a.AttendedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return event.ErrAlreadyRegistered
		}
		return fmt.Errorf("参加者追加に失敗しました: %w", err)
	}

	return r.saveStatusTx(ctx, sqlxTx, e)
}

// RemoveAttendee は参加者行の削除とステータス更新を同一トランザクションで永続化する
func (r *EventRepository) RemoveAttendee(ctx context.Context, tx transaction.Tx, e *event.Event, userID string) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションが必要です")
	}

	result, err := sqlxTx.ExecContext(ctx, `DELETE FROM attendees WHERE event_id = $1 AND user_id = $2`, e.ID, userID)
	if err != nil {
		return fmt.Errorf("参加者削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrNotRegistered
	}

	return r.saveStatusTx(ctx, sqlxTx, e)
}

// SaveAttendance は出欠フラグを単一行更新で永続化する
func (r *EventRepository) SaveAttendance(ctx context.Context, eventID string, a *event.Attendee) error {
	query := `UPDATE attendees SET attended = $1, attended_at = $2 WHERE event_id = $3 AND user_id = $4`
	result, err := r.db.ExecContext(ctx, query, a.Attended, a.AttendedAt, eventID, a.UserID)
	if err != nil {
		return fmt.Errorf("出欠記録に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrAttendeeNotFound
	}
	return nil
}

// Options はカテゴリ・ステータス・レベルの distinct 値を返す
func (r *EventRepository) Options(ctx context.Context) (*event.ListOptions, error) {
	opts := &event.ListOptions{}

	queries := []struct {
		column string
		dest   *[]string
	}{
		{"category", &opts.Categories},
		{"status", &opts.Statuses},
		{"level", &opts.Levels},
	}
	for _, q := range queries {
		query := `SELECT DISTINCT ` + q.column + ` FROM events WHERE ` + q.column + ` <> '' ORDER BY ` + q.column
		if err := r.db.SelectContext(ctx, q.dest, query); err != nil {
			return nil, fmt.Errorf("選択肢の取得に失敗しました: %w", err)
		}
	}
	return opts, nil
}

// saveStatusTx は導出済みステータスを楽観的ロック付きで書き込む
func (r *EventRepository) saveStatusTx(ctx context.Context, tx *sqlx.Tx, e *event.Event) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE events SET status = $1, updated_at = $2, version = version + 1 WHERE id = $3 AND version = $4`,
		string(e.Status), e.UpdatedAt, e.ID, e.Version,
	)
	if err != nil {
		return fmt.Errorf("ステータス更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrOptimisticLockConflict
	}

	e.Version++
	return nil
}

// loadAttendees は参加者行を登録順に読み込む
func (r *EventRepository) loadAttendees(ctx context.Context, q sqlx.QueryerContext, e *event.Event) error {
	var rows []attendeeRow
	query := `SELECT ` + attendeeColumns + ` FROM attendees WHERE event_id = $1 ORDER BY seq`
	if err := sqlx.SelectContext(ctx, q, &rows, query, e.ID); err != nil {
		return fmt.Errorf("参加者取得に失敗しました: %w", err)
	}
	for _, row := range rows {
		e.Attendees = append(e.Attendees, row.toEntity())
	}
	return nil
}

// インターフェースを満たしているか確認
var _ event.Repository = (*EventRepository)(nil)
