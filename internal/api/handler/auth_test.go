package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/satoakira/go-event-management/internal/domain/user"
)

// MockAuthService はAuthServiceInterfaceのモック
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*user.User, string, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*user.User), args.String(1), args.Error(2)
}

func (m *MockAuthService) Authenticate(ctx context.Context, token string) (*user.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func TestAuthHandler_Login(t *testing.T) {
	e := NewTestEcho()
	u := &user.User{ID: "user-1", Email: "taro@example.com", Name: "山田太郎", Role: user.RoleUser}

	t.Run("正常にログインできる", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Login", mock.Anything, "taro@example.com", "password123").Return(u, "token-abc", nil)

		handler := NewAuthHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"taro@example.com","password":"password123"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Login(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp LoginResponse
		err = json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "token-abc", resp.Token)
		assert.Equal(t, "user-1", resp.User.ID)
	})

	t.Run("認証失敗で401", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Login", mock.Anything, "taro@example.com", "wrong").Return(nil, "", user.ErrInvalidCredentials)

		handler := NewAuthHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"taro@example.com","password":"wrong"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Login(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("メールアドレスの形式が不正ならバリデーションエラー", func(t *testing.T) {
		handler := NewAuthHandler(new(MockAuthService))

		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"not-an-email","password":"password123"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Login(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常にログアウトできる", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Logout", mock.Anything, "token-abc").Return(nil)

		handler := NewAuthHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer token-abc")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Logout(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("トークンなしで401", func(t *testing.T) {
		handler := NewAuthHandler(new(MockAuthService))

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Logout(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
