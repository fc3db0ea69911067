package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/satoakira/go-event-management/internal/api/middleware"
	"github.com/satoakira/go-event-management/internal/application"
	"github.com/satoakira/go-event-management/internal/domain/event"
	"github.com/satoakira/go-event-management/internal/domain/user"
)

type RegistrationHandler struct {
	registrationService RegistrationServiceInterface
	events              EventGetter
}

func NewRegistrationHandler(registrationService RegistrationServiceInterface, events EventGetter) *RegistrationHandler {
	return &RegistrationHandler{registrationService: registrationService, events: events}
}

// requireEventOwner はイベントの作成者または管理者であることを確認する
// 確認に失敗した場合はレスポンス済みのerrorを返す
func (h *RegistrationHandler) requireEventOwner(c echo.Context, eventID string) (bool, error) {
	u, ok := currentUser(c)
	if !ok {
		return false, c.JSON(http.StatusUnauthorized, map[string]string{"error": "認証が必要です"})
	}

	e, err := h.events.GetEvent(c.Request().Context(), eventID)
	if err != nil {
		return false, registrationErrorResponse(c, err)
	}
	if !u.IsAdmin() && e.CreatedBy != u.ID {
		return false, c.JSON(http.StatusForbidden, map[string]string{"error": "イベントの作成者または管理者のみ実行できます"})
	}
	return true, nil
}

// currentUser は認証済みユーザーを返す
func currentUser(c echo.Context) (*user.User, bool) {
	return middleware.UserFrom(c)
}

// currentUserID は認証済みユーザーのIDを返す（未認証なら空文字）
func currentUserID(c echo.Context) string {
	u, ok := middleware.UserFrom(c)
	if !ok {
		return ""
	}
	return u.ID
}

type AttendeeResponse struct {
	UserID       string  `json:"user_id"`
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	RegisteredAt string  `json:"registered_at"`
	Attended     bool    `json:"attended"`
	AttendedAt   *string `json:"attended_at,omitempty"`
}

func toAttendeeResponse(a *event.Attendee) *AttendeeResponse {
	resp := &AttendeeResponse{
		UserID:       a.UserID,
		Email:        a.Email,
		Name:         a.Name,
		RegisteredAt: a.RegisteredAt.Format(time.RFC3339),
		Attended:     a.Attended,
	}
	if a.AttendedAt != nil {
		t := a.AttendedAt.Format(time.RFC3339)
		resp.AttendedAt = &t
	}
	return resp
}

// registrationErrorResponse は登録系ドメインエラーをHTTPステータスに変換する
func registrationErrorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, event.ErrEventNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "イベントが見つかりません"})
	case errors.Is(err, user.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "ユーザーが見つかりません"})
	case errors.Is(err, event.ErrRegistrationClosed):
		return c.JSON(http.StatusConflict, map[string]string{"error": "このイベントは受付を終了しています"})
	case errors.Is(err, event.ErrEventFull):
		return c.JSON(http.StatusConflict, map[string]string{"error": "このイベントは満員です"})
	case errors.Is(err, event.ErrAlreadyRegistered):
		return c.JSON(http.StatusConflict, map[string]string{"error": "すでに登録されています"})
	case errors.Is(err, event.ErrNotRegistered):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "登録が見つかりません"})
	case errors.Is(err, event.ErrAttendeeNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "参加者が見つかりません"})
	case errors.Is(err, event.ErrEventBusy):
		return c.JSON(http.StatusConflict, map[string]string{"error": "イベントが他のユーザーによって処理中です"})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// RegisterRequest は参加登録のリクエスト（任意）
// 指定するとユーザープロフィールの代わりにスナップショットとして記録される
type RegisterRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
	Name  string `json:"name"`
}

// RegisterResponse は参加登録のレスポンス
type RegisterResponse struct {
	Attendee       *AttendeeResponse `json:"attendee"`
	AvailableSlots int               `json:"available_slots"`
}

// Register godoc
// @Summary イベントに参加登録
// @Description 認証済みユーザーをイベントに登録します
// @Tags registrations
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body RegisterRequest false "スナップショットの上書き"
// @Success 201 {object} RegisterResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /events/{id}/registrations [post]
func (h *RegistrationHandler) Register(c echo.Context) error {
	eventID := c.Param("id")
	userID := currentUserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "認証が必要です"})
	}

	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "リクエストの形式が不正です"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.registrationService.Register(c.Request().Context(), application.RegisterInput{
		EventID: eventID,
		UserID:  userID,
		Email:   req.Email,
		Name:    req.Name,
	})
	if err != nil {
		return registrationErrorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, RegisterResponse{
		Attendee:       toAttendeeResponse(result.Attendee),
		AvailableSlots: result.AvailableSlots,
	})
}

// Unregister godoc
// @Summary 参加登録を解除
// @Description 参加登録を解除します。本人または管理者のみ実行できます
// @Tags registrations
// @Param id path string true "イベントID"
// @Param user_id path string true "ユーザーID"
// @Success 204
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /events/{id}/registrations/{user_id} [delete]
func (h *RegistrationHandler) Unregister(c echo.Context) error {
	eventID := c.Param("id")
	targetUserID := c.Param("user_id")

	u, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "認証が必要です"})
	}
	if u.ID != targetUserID && !u.IsAdmin() {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "他のユーザーの登録は解除できません"})
	}

	if err := h.registrationService.Unregister(c.Request().Context(), eventID, targetUserID); err != nil {
		return registrationErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type MarkAttendanceRequest struct {
	Attended bool `json:"attended"`
}

// MarkAttendance godoc
// @Summary 出欠を記録
// @Description 参加者の出欠を記録します。イベントの作成者または管理者のみ実行できます
// @Tags registrations
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param user_id path string true "ユーザーID"
// @Param request body MarkAttendanceRequest true "出欠情報"
// @Success 200 {object} AttendeeResponse
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /events/{id}/attendees/{user_id}/attendance [patch]
func (h *RegistrationHandler) MarkAttendance(c echo.Context) error {
	eventID := c.Param("id")
	userID := c.Param("user_id")

	if ok, err := h.requireEventOwner(c, eventID); !ok {
		return err
	}

	var req MarkAttendanceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "リクエストの形式が不正です"})
	}

	attendee, err := h.registrationService.MarkAttendance(c.Request().Context(), eventID, userID, req.Attended)
	if err != nil {
		return registrationErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, toAttendeeResponse(attendee))
}

// AttendeeReportResponse は参加者一覧と集計のレスポンス
type AttendeeReportResponse struct {
	EventID         string              `json:"event_id"`
	EventName       string              `json:"event_name"`
	Quota           int                 `json:"quota"`
	RegisteredCount int                 `json:"registered_count"`
	AttendedCount   int                 `json:"attended_count"`
	AvailableSlots  int                 `json:"available_slots"`
	Attendees       []*AttendeeResponse `json:"attendees"`
}

func toAttendeeReportResponse(r *application.AttendeeReport) *AttendeeReportResponse {
	attendees := make([]*AttendeeResponse, len(r.Attendees))
	for i := range r.Attendees {
		attendees[i] = toAttendeeResponse(&r.Attendees[i])
	}
	return &AttendeeReportResponse{
		EventID:         r.EventID,
		EventName:       r.EventName,
		Quota:           r.Quota,
		RegisteredCount: r.RegisteredCount,
		AttendedCount:   r.AttendedCount,
		AvailableSlots:  r.AvailableSlots,
		Attendees:       attendees,
	}
}

// ListAttendees godoc
// @Summary 参加者一覧を取得
// @Description イベントの参加者一覧と集計を取得します。イベントの作成者または管理者のみ実行できます
// @Tags registrations
// @Produce json
// @Param id path string true "イベントID"
// @Param attended query bool false "出欠で絞り込み"
// @Success 200 {object} AttendeeReportResponse
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /events/{id}/attendees [get]
func (h *RegistrationHandler) ListAttendees(c echo.Context) error {
	eventID := c.Param("id")

	if ok, err := h.requireEventOwner(c, eventID); !ok {
		return err
	}

	var attended *bool
	if v := c.QueryParam("attended"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "attended の形式が不正です"})
		}
		attended = &b
	}

	report, err := h.registrationService.ListAttendees(c.Request().Context(), eventID, attended)
	if err != nil {
		return registrationErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, toAttendeeReportResponse(report))
}

// SlotsResponse は空き枠数のレスポンス
type SlotsResponse struct {
	EventID        string `json:"event_id"`
	AvailableSlots int    `json:"available_slots"`
}

// AvailableSlots godoc
// @Summary 空き枠数を取得
// @Description イベントの空き枠数を取得します（キャッシュ優先）
// @Tags registrations
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} SlotsResponse
// @Failure 404 {object} map[string]string
// @Router /events/{id}/slots [get]
func (h *RegistrationHandler) AvailableSlots(c echo.Context) error {
	eventID := c.Param("id")

	count, err := h.registrationService.AvailableSlots(c.Request().Context(), eventID)
	if err != nil {
		return registrationErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, SlotsResponse{EventID: eventID, AvailableSlots: count})
}
