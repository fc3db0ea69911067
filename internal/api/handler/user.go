package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/satoakira/go-event-management/internal/application"
	"github.com/satoakira/go-event-management/internal/domain/user"
)

type UserHandler struct {
	userService UserServiceInterface
}

func NewUserHandler(userService UserServiceInterface) *UserHandler {
	return &UserHandler{userService: userService}
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email" example:"taro@example.com"`
	Name     string `json:"name" validate:"required" example:"山田太郎"`
	Password string `json:"password" validate:"required,min=8" example:"password123"`
	Role     string `json:"role" example:"user"`
}

type UpdateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password,omitempty" validate:"omitempty,min=8"`
	Role     string `json:"role,omitempty"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toUserResponse(u *user.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.Format(time.RFC3339),
	}
}

// userErrorResponse はユーザー系ドメインエラーをHTTPステータスに変換する
func userErrorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "ユーザーが見つかりません"})
	case errors.Is(err, user.ErrEmailAlreadyExists):
		return c.JSON(http.StatusConflict, map[string]string{"error": "このメールアドレスは登録済みです"})
	case errors.Is(err, user.ErrEmailRequired), errors.Is(err, user.ErrNameRequired), errors.Is(err, user.ErrInvalidRole):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// Create godoc
// @Summary ユーザーを登録
// @Description 新しいユーザーを登録します。ロールの指定は管理者のみ有効です
// @Tags users
// @Accept json
// @Produce json
// @Param request body CreateUserRequest true "ユーザー情報"
// @Success 201 {object} UserResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /users [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "リクエストの形式が不正です"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	// 管理者以外はロールを指定できない
	role := user.RoleUser
	if u, ok := currentUser(c); ok && u.IsAdmin() && req.Role != "" {
		role = user.Role(req.Role)
	}

	created, err := h.userService.CreateUser(c.Request().Context(), application.CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		return userErrorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, toUserResponse(created))
}

// GetByID godoc
// @Summary ユーザーを取得
// @Description 指定IDのユーザーを取得します（管理者のみ）
// @Tags users
// @Produce json
// @Param id path string true "ユーザーID"
// @Success 200 {object} UserResponse
// @Failure 404 {object} map[string]string
// @Router /users/{id} [get]
func (h *UserHandler) GetByID(c echo.Context) error {
	u, err := h.userService.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return userErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, toUserResponse(u))
}

// ListUsersResponse はユーザー一覧のレスポンス
type ListUsersResponse struct {
	Users []*UserResponse `json:"users"`
	Total int             `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// List godoc
// @Summary ユーザー一覧を取得
// @Description ユーザーの一覧を取得します（管理者のみ）
// @Tags users
// @Produce json
// @Param page query int false "ページ番号" default(1)
// @Param limit query int false "取得件数" default(20)
// @Success 200 {object} ListUsersResponse
// @Router /users [get]
func (h *UserHandler) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	result, err := h.userService.ListUsers(c.Request().Context(), page, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	responses := make([]*UserResponse, len(result.Users))
	for i, u := range result.Users {
		responses[i] = toUserResponse(u)
	}
	return c.JSON(http.StatusOK, ListUsersResponse{
		Users: responses,
		Total: result.Total,
		Page:  result.Page,
		Limit: result.Limit,
	})
}

// Update godoc
// @Summary ユーザーを更新
// @Description 指定IDのユーザーを更新します。本人または管理者のみ実行できます
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "ユーザーID"
// @Param request body UpdateUserRequest true "ユーザー情報"
// @Success 200 {object} UserResponse
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /users/{id} [put]
func (h *UserHandler) Update(c echo.Context) error {
	id := c.Param("id")

	u, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "認証が必要です"})
	}
	if u.ID != id && !u.IsAdmin() {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "他のユーザーは更新できません"})
	}

	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "リクエストの形式が不正です"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	input := application.UpdateUserInput{
		ID:       id,
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	}
	// ロール変更は管理者のみ
	if u.IsAdmin() && req.Role != "" {
		input.Role = user.Role(req.Role)
	}

	updated, err := h.userService.UpdateUser(c.Request().Context(), input)
	if err != nil {
		return userErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, toUserResponse(updated))
}

// Delete godoc
// @Summary ユーザーを削除
// @Description 指定IDのユーザーを削除します（管理者のみ）
// @Tags users
// @Param id path string true "ユーザーID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	if err := h.userService.DeleteUser(c.Request().Context(), c.Param("id")); err != nil {
		return userErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
