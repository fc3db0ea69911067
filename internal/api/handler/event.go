package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/satoakira/go-event-management/internal/application"
	"github.com/satoakira/go-event-management/internal/domain/event"
)

type EventHandler struct {
	eventService EventServiceInterface
}

func NewEventHandler(eventService EventServiceInterface) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// requireOwner はイベントの作成者または管理者であることを確認する
// 確認に失敗した場合はレスポンス済みのerrorを返す
func (h *EventHandler) requireOwner(c echo.Context, id string) (bool, error) {
	u, ok := currentUser(c)
	if !ok {
		return false, c.JSON(http.StatusUnauthorized, map[string]string{"error": "認証が必要です"})
	}

	e, err := h.eventService.GetEvent(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			return false, c.JSON(http.StatusNotFound, map[string]string{"error": "イベントが見つかりません"})
		}
		return false, c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if !u.IsAdmin() && e.CreatedBy != u.ID {
		return false, c.JSON(http.StatusForbidden, map[string]string{"error": "イベントの作成者または管理者のみ実行できます"})
	}
	return true, nil
}

type CreateEventRequest struct {
	Category    string   `json:"category" form:"category" validate:"required" example:"tech"`
	Name        string   `json:"name" form:"name" validate:"required" example:"Goハンズオン"`
	Description string   `json:"description" form:"description" validate:"required" example:"実践的なGoのワークショップ"`
	Language    string   `json:"language" form:"language" validate:"required" example:"日本語"`
	Duration    float64  `json:"duration" form:"duration" validate:"required,gte=0.5" example:"1.5"`
	Assessment  bool     `json:"assessment" form:"assessment" example:"false"`
	Lecturers   int      `json:"lecturers" form:"lecturers" validate:"required,gte=1" example:"2"`
	Quota       int      `json:"quota" form:"quota" validate:"required,gte=1" example:"30"`
	Level       string   `json:"level" form:"level" validate:"required" example:"entry"`
	Items       []string `json:"items" form:"items"`
	Location    string   `json:"location" form:"location" validate:"required" example:"東京"`
	StartAt     string   `json:"start_at" form:"start_at" validate:"required" example:"2026-10-01T10:00:00+09:00"`
}

type UpdateEventRequest struct {
	CreateEventRequest
	Status string `json:"status" form:"status" example:"cancelled"`
}

type EventResponse struct {
	ID             string   `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Category       string   `json:"category" example:"tech"`
	PosterURL      string   `json:"poster_url,omitempty"`
	Name           string   `json:"name" example:"Goハンズオン"`
	Description    string   `json:"description" example:"実践的なGoのワークショップ"`
	Language       string   `json:"language" example:"日本語"`
	Duration       float64  `json:"duration" example:"1.5"`
	Assessment     bool     `json:"assessment" example:"false"`
	Lecturers      int      `json:"lecturers" example:"2"`
	Quota          int      `json:"quota" example:"30"`
	Level          string   `json:"level" example:"entry"`
	Items          []string `json:"items"`
	Location       string   `json:"location" example:"東京"`
	StartAt        string   `json:"start_at" example:"2026-10-01T10:00:00+09:00"`
	Status         string   `json:"status" example:"open"`
	AvailableSlots int      `json:"available_slots" example:"28"`
	CreatedBy      string   `json:"created_by"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

func toEventResponse(e *event.Event) *EventResponse {
	return &EventResponse{
		ID:             e.ID,
		Category:       e.Category,
		PosterURL:      e.PosterURL,
		Name:           e.Name,
		Description:    e.Description,
		Language:       e.Language,
		Duration:       e.Duration,
		Assessment:     e.Assessment,
		Lecturers:      e.Lecturers,
		Quota:          e.Quota,
		Level:          string(e.Level),
		Items:          e.Items,
		Location:       e.Location,
		StartAt:        e.StartAt.Format(time.RFC3339),
		Status:         string(e.Status),
		AvailableSlots: e.AvailableSlots(),
		CreatedBy:      e.CreatedBy,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      e.UpdatedAt.Format(time.RFC3339),
	}
}

// posterFromForm はmultipartリクエストからポスター画像を取り出す
// JSONリクエストやファイル未添付の場合は nil を返す
func posterFromForm(c echo.Context) (io.Reader, string, func(), error) {
	fh, err := c.FormFile("poster")
	if err != nil {
		return nil, "", func() {}, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", func() {}, err
	}
	return f, fh.Filename, func() { f.Close() }, nil
}

// Create godoc
// @Summary イベントを作成
// @Description 新しいイベントを作成します。認証済みユーザーが作成者になります
// @Tags events
// @Accept json
// @Accept mpfd
// @Produce json
// @Param request body CreateEventRequest true "イベント情報"
// @Success 201 {object} EventResponse
// @Failure 400 {object} map[string]string
// @Router /events [post]
func (h *EventHandler) Create(c echo.Context) error {
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "リクエストの形式が不正です"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "開催日時の形式が不正です"})
	}

	poster, filename, closePoster, err := posterFromForm(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "ポスター画像の読み込みに失敗しました"})
	}
	defer closePoster()

	input := application.CreateEventInput{
		Category:       req.Category,
		Name:           req.Name,
		Description:    req.Description,
		Language:       req.Language,
		Duration:       req.Duration,
		Assessment:     req.Assessment,
		Lecturers:      req.Lecturers,
		Quota:          req.Quota,
		Level:          event.Level(req.Level),
		Items:          req.Items,
		Location:       req.Location,
		StartAt:        startAt,
		CreatedBy:      currentUserID(c),
		Poster:         poster,
		PosterFilename: filename,
	}

	e, err := h.eventService.CreateEvent(c.Request().Context(), input)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, toEventResponse(e))
}

// GetByID godoc
// @Summary イベントを取得
// @Description 指定IDのイベントを参加者込みで取得します
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} map[string]string
// @Router /events/{id} [get]
func (h *EventHandler) GetByID(c echo.Context) error {
	id := c.Param("id")
	e, err := h.eventService.GetEvent(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "イベントが見つかりません"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// ListEventsResponse はイベント一覧のレスポンス
type ListEventsResponse struct {
	Events []*EventResponse `json:"events"`
	Total  int              `json:"total"`
	Page   int              `json:"page"`
	Limit  int              `json:"limit"`
}

// List godoc
// @Summary イベント一覧を取得
// @Description 条件に合致するイベントの一覧を取得します
// @Tags events
// @Produce json
// @Param category query string false "カテゴリ"
// @Param level query string false "レベル"
// @Param status query string false "ステータス"
// @Param q query string false "名前・説明のキーワード"
// @Param from query string false "開催日時の下限（RFC3339）"
// @Param to query string false "開催日時の上限（RFC3339）"
// @Param page query int false "ページ番号" default(1)
// @Param limit query int false "取得件数" default(20)
// @Success 200 {object} ListEventsResponse
// @Router /events [get]
func (h *EventHandler) List(c echo.Context) error {
	filter := event.ListFilter{
		Category: c.QueryParam("category"),
		Level:    c.QueryParam("level"),
		Status:   c.QueryParam("status"),
		Query:    c.QueryParam("q"),
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "from の形式が不正です"})
		}
		filter.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "to の形式が不正です"})
		}
		filter.To = &t
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	result, err := h.eventService.ListEvents(c.Request().Context(), filter, page, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	responses := make([]*EventResponse, len(result.Events))
	for i, e := range result.Events {
		responses[i] = toEventResponse(e)
	}
	return c.JSON(http.StatusOK, ListEventsResponse{
		Events: responses,
		Total:  result.Total,
		Page:   result.Page,
		Limit:  result.Limit,
	})
}

// Update godoc
// @Summary イベントを更新
// @Description 指定IDのイベントを更新します。作成者または管理者のみ実行できます
// @Tags events
// @Accept json
// @Accept mpfd
// @Produce json
// @Param id path string true "イベントID"
// @Param request body UpdateEventRequest true "イベント情報"
// @Success 200 {object} EventResponse
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /events/{id} [put]
func (h *EventHandler) Update(c echo.Context) error {
	id := c.Param("id")

	if ok, err := h.requireOwner(c, id); !ok {
		return err
	}

	var req UpdateEventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "リクエストの形式が不正です"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "開催日時の形式が不正です"})
	}

	poster, filename, closePoster, err := posterFromForm(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "ポスター画像の読み込みに失敗しました"})
	}
	defer closePoster()

	input := application.UpdateEventInput{
		ID:             id,
		Category:       req.Category,
		Name:           req.Name,
		Description:    req.Description,
		Language:       req.Language,
		Duration:       req.Duration,
		Assessment:     req.Assessment,
		Lecturers:      req.Lecturers,
		Quota:          req.Quota,
		Level:          event.Level(req.Level),
		Items:          req.Items,
		Location:       req.Location,
		StartAt:        startAt,
		Status:         event.Status(req.Status),
		Poster:         poster,
		PosterFilename: filename,
	}

	e, err := h.eventService.UpdateEvent(c.Request().Context(), input)
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "イベントが見つかりません"})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// Delete godoc
// @Summary イベントを削除
// @Description 指定IDのイベントを参加者レコードごと削除します。作成者または管理者のみ実行できます
// @Tags events
// @Param id path string true "イベントID"
// @Success 204
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c echo.Context) error {
	id := c.Param("id")

	if ok, err := h.requireOwner(c, id); !ok {
		return err
	}

	err := h.eventService.DeleteEvent(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "イベントが見つかりません"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// OptionsResponse はフィルタ用の選択肢のレスポンス
type OptionsResponse struct {
	Categories []string `json:"categories"`
	Statuses   []string `json:"statuses"`
	Levels     []string `json:"levels"`
}

// Options godoc
// @Summary フィルタ選択肢を取得
// @Description 登録済みイベントのカテゴリ・ステータス・レベルの一覧を取得します
// @Tags events
// @Produce json
// @Success 200 {object} OptionsResponse
// @Router /events/options [get]
func (h *EventHandler) Options(c echo.Context) error {
	opts, err := h.eventService.GetOptions(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, OptionsResponse{
		Categories: opts.Categories,
		Statuses:   opts.Statuses,
		Levels:     opts.Levels,
	})
}
