package event

import "time"

// Status はイベントの状態を表す
type Status string

const (
	StatusOpen      Status = "open"
	StatusFull      Status = "full"
	StatusClosed    Status = "closed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal は管理者操作でのみ設定される終端状態かを返す
// 終端状態は定員ベースの自動導出で上書きされない
func (s Status) IsTerminal() bool {
	switch s {
	case StatusClosed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsValid はステータスが定義済みの値かを返す
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusFull, StatusClosed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Level はイベントの対象レベルを表す
type Level string

const (
	LevelEntry        Level = "entry"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
	LevelAll          Level = "all"
)

// IsValid はレベルが定義済みの値かを返す
func (l Level) IsValid() bool {
	switch l {
	case LevelEntry, LevelIntermediate, LevelAdvanced, LevelAll:
		return true
	}
	return false
}

// MinDuration は所要時間の下限（時間単位）
const MinDuration = 0.5

// Attendee は参加者レコードを表す
// Email と Name は登録時点のユーザー情報のスナップショット（後から追随しない）
type Attendee struct {
	UserID       string
	Email        string
	Name         string
	RegisteredAt time.Time
	Attended     bool
	AttendedAt   *time.Time // Attended が true の場合のみ存在
}

// Registrant は登録操作の入力となるユーザー情報のスナップショット
type Registrant struct {
	UserID string
	Email  string
	Name   string
}

// Event はイベントエンティティを表す
type Event struct {
	ID          string
	Category    string
	PosterURL   string
	Name        string
	Description string
	Language    string
	Duration    float64 // 時間単位
	Assessment  bool
	Lecturers   int
	Quota       int
	Level       Level
	Items       []string
	Location    string
	StartAt     time.Time
	Status      Status
	Attendees   []Attendee
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int // 楽観的ロック用

	// UserID → Attendees の添字。重複チェックを線形走査にしないための索引で、
	// Attendees の変更と常に一緒に更新する
	attendeeIndex map[string]int
}

// NewEvent は新しいイベントを作成する
func NewEvent(category, name, description, language, location string, duration float64, lecturers, quota int, level Level, items []string, startAt time.Time, assessment bool, createdBy string) *Event {
	now := time.Now()
	return &Event{
		Category:    category,
		Name:        name,
		Description: description,
		Language:    language,
		Location:    location,
		Duration:    duration,
		Lecturers:   lecturers,
		Quota:       quota,
		Level:       level,
		Items:       items,
		StartAt:     startAt,
		Assessment:  assessment,
		Status:      StatusOpen,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     0,
	}
}

// Validate はイベントの検証を行う
func (e *Event) Validate() error {
	if e.Category == "" {
		return ErrCategoryRequired
	}
	if e.Name == "" {
		return ErrNameRequired
	}
	if e.Description == "" {
		return ErrDescriptionRequired
	}
	if e.Language == "" {
		return ErrLanguageRequired
	}
	if e.Location == "" {
		return ErrLocationRequired
	}
	if e.Duration < MinDuration {
		return ErrInvalidDuration
	}
	if e.Lecturers < 1 {
		return ErrInvalidLecturers
	}
	if e.Quota < 1 {
		return ErrInvalidQuota
	}
	if !e.Level.IsValid() {
		return ErrInvalidLevel
	}
	if !e.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// ValidateNew は作成時の検証を行う
// 開催日時の未来チェックは作成時のみで、以降の操作では再検証しない
func (e *Event) ValidateNew(now time.Time) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if !e.StartAt.After(now) {
		return ErrStartAtNotFuture
	}
	return nil
}

// AvailableSlots は残り枠数を返す
func (e *Event) AvailableSlots() int {
	return e.Quota - len(e.Attendees)
}

// IsRegistrationOpen は参加登録を受け付けているかを返す
func (e *Event) IsRegistrationOpen() bool {
	return !e.Status.IsTerminal()
}

// DeriveStatus は参加者数からステータスを再計算する
// 終端状態は常に維持され、full ↔ open の組だけが自動導出される
func (e *Event) DeriveStatus() {
	if e.Status.IsTerminal() {
		return
	}
	if len(e.Attendees) >= e.Quota {
		e.Status = StatusFull
	} else {
		e.Status = StatusOpen
	}
}

// Register は参加者を登録する
// 事前条件は順に検査する: 受付終了 → 満席 → 重複登録
func (e *Event) Register(r Registrant, now time.Time) (*Attendee, error) {
	if e.Status.IsTerminal() {
		return nil, ErrRegistrationClosed
	}
	if len(e.Attendees) >= e.Quota {
		return nil, ErrEventFull
	}
	if _, ok := e.indexOf(r.UserID); ok {
		return nil, ErrAlreadyRegistered
	}

	e.Attendees = append(e.Attendees, Attendee{
		UserID:       r.UserID,
		Email:        r.Email,
		Name:         r.Name,
		RegisteredAt: now,
		Attended:     false,
	})
	e.attendeeIndex[r.UserID] = len(e.Attendees) - 1

	e.DeriveStatus()
	e.UpdatedAt = now
	return &e.Attendees[len(e.Attendees)-1], nil
}

// Unregister は参加者を削除する（残りの参加者の順序は保持）
func (e *Event) Unregister(userID string, now time.Time) error {
	idx, ok := e.indexOf(userID)
	if !ok {
		return ErrNotRegistered
	}

	e.Attendees = append(e.Attendees[:idx], e.Attendees[idx+1:]...)
	e.rebuildIndex()

	e.DeriveStatus()
	e.UpdatedAt = now
	return nil
}

// MarkAttendance は出欠を記録する
// attended=true で AttendedAt を設定、false で消去する。冪等であり
// ステータスや定員の計算には影響しない
func (e *Event) MarkAttendance(userID string, attended bool, now time.Time) (*Attendee, error) {
	idx, ok := e.indexOf(userID)
	if !ok {
		return nil, ErrAttendeeNotFound
	}

	a := &e.Attendees[idx]
	a.Attended = attended
	if attended {
		t := now
		a.AttendedAt = &t
	} else {
		a.AttendedAt = nil
	}
	return a, nil
}

// FilterAttendees は参加者の一覧スナップショットを返す
// attended が指定された場合は出欠で絞り込む
func (e *Event) FilterAttendees(attended *bool) []Attendee {
	result := make([]Attendee, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		if attended != nil && a.Attended != *attended {
			continue
		}
		result = append(result, a)
	}
	return result
}

// AttendedCount は出席済みの参加者数を返す
func (e *Event) AttendedCount() int {
	count := 0
	for _, a := range e.Attendees {
		if a.Attended {
			count++
		}
	}
	return count
}

func (e *Event) indexOf(userID string) (int, bool) {
	if e.attendeeIndex == nil {
		e.rebuildIndex()
	}
	idx, ok := e.attendeeIndex[userID]
	return idx, ok
}

func (e *Event) rebuildIndex() {
	e.attendeeIndex = make(map[string]int, len(e.Attendees))
	for i, a := range e.Attendees {
		e.attendeeIndex[a.UserID] = i
	}
}
