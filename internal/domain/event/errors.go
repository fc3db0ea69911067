package event

import "errors"

// Event ドメインのエラー定義
var (
	ErrEventNotFound       = errors.New("イベントが見つかりません")
	ErrCategoryRequired    = errors.New("カテゴリは必須です")
	ErrNameRequired        = errors.New("イベント名は必須です")
	ErrDescriptionRequired = errors.New("説明は必須です")
	ErrLanguageRequired    = errors.New("言語は必須です")
	ErrLocationRequired    = errors.New("開催場所は必須です")
	ErrInvalidDuration     = errors.New("所要時間は0.5時間以上である必要があります")
	ErrInvalidLecturers    = errors.New("講師数は1以上である必要があります")
	ErrInvalidQuota        = errors.New("定員は1以上である必要があります")
	ErrInvalidLevel        = errors.New("レベルの値が不正です")
	ErrInvalidStatus       = errors.New("ステータスの値が不正です")
	ErrStartAtNotFuture    = errors.New("開催日時は未来の日時である必要があります")

	ErrRegistrationClosed = errors.New("イベントの参加受付は終了しています")
	ErrEventFull          = errors.New("イベントは満席です")
	ErrAlreadyRegistered  = errors.New("既にこのイベントに登録されています")
	ErrNotRegistered      = errors.New("このイベントには登録されていません")
	ErrAttendeeNotFound   = errors.New("参加者が見つかりません")

	ErrOptimisticLockConflict = errors.New("楽観的ロックの競合が発生しました")
	ErrEventBusy              = errors.New("イベントが他のユーザーによって処理中です")
)
