package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/satoakira/go-event-management/internal/domain/user"
)

// userContextKey は認証済みユーザーを echo.Context に保存するキー
const userContextKey = "auth.user"

// Authenticator はトークンからユーザーを特定する
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*user.User, error)
}

// RequireAuth は Bearer トークンによる認証を要求するミドルウェア
func RequireAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "認証が必要です"})
			}

			u, err := auth.Authenticate(c.Request().Context(), token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "トークンが無効です"})
			}

			c.Set(userContextKey, u)
			return next(c)
		}
	}
}

// RequireAdmin は管理者ロールを要求するミドルウェア（RequireAuth の後段に置く）
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := UserFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "認証が必要です"})
			}
			if !u.IsAdmin() {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "管理者権限が必要です"})
			}
			return next(c)
		}
	}
}

// UserFrom は認証済みユーザーを取得する
func UserFrom(c echo.Context) (*user.User, bool) {
	u, ok := c.Get(userContextKey).(*user.User)
	return u, ok
}

// SetUser はテスト用に認証済みユーザーを設定する
func SetUser(c echo.Context, u *user.User) {
	c.Set(userContextKey, u)
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
