package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avdeyev/identity-service/internal/middleware"
	"github.com/avdeyev/identity-service/internal/realtime"
	"github.com/avdeyev/identity-service/internal/tokens"
)

type Deps struct {
	Users     *UserHTTP
	Tokens    *tokens.Service
	Realtime  *realtime.Hub
	UploadDir string
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.Static("/uploads", d.UploadDir)

	authMw := middleware.NewSessionAuth(d.Tokens)

	u := e.Group("/users")
	u.GET("", d.Users.Users)
	u.POST("/register", d.Users.Register)
	u.POST("/login", d.Users.Login)
	u.POST("/forgot-password", d.Users.ForgotPassword)
	u.POST("/reset-password/:token", d.Users.ResetPassword)
	u.GET("/verify/:token", d.Users.VerifyEmail)

	private := u.Group("", authMw.RequireAuth)
	private.GET("/me", d.Users.Me)
	private.GET("/search", d.Users.SearchUsers)
	private.PUT("", d.Users.Update)
	private.PATCH("", d.Users.Update)
	private.DELETE("", d.Users.Delete)

	if d.Realtime != nil {
		e.GET("/ws", d.Realtime.Handler)
	}
}
