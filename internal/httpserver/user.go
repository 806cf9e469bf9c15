package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avdeyev/identity-service/pkg/logging"

	"github.com/avdeyev/identity-service/internal/middleware"
	"github.com/avdeyev/identity-service/internal/models"
	"github.com/avdeyev/identity-service/internal/search"
	"github.com/avdeyev/identity-service/internal/service"
	"github.com/avdeyev/identity-service/internal/transport"
	"github.com/avdeyev/identity-service/internal/util"
)

type UserHTTP struct {
	Svc       *service.AccountService
	Search    *search.Indexer
	UploadDir string
}

func (h *UserHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	p, err := h.Svc.Register(ctx, service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
		case errors.Is(err, service.ErrDuplicateEmail):
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		}
		l.Error("register_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "error creating user")
	}

	return c.JSON(http.StatusCreated, p)
}

// Users serves both the listing and the by-id lookup, keyed on the presence
// of the id query parameter.
func (h *UserHTTP) Users(c echo.Context) error {
	ctx := c.Request().Context()

	if raw := c.QueryParam("id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}
		p, err := h.Svc.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "User not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "error fetching user")
		}
		return c.JSON(http.StatusOK, p)
	}

	users, err := h.Svc.List(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "error fetching users")
	}
	if len(users) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "No users found")
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		case errors.Is(err, service.ErrNotVerified):
			return echo.NewHTTPError(http.StatusUnauthorized, "Please verify your account before login.")
		case errors.Is(err, service.ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid credentials")
		}
		l.Error("login_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusOK, transport.LoginResponse{
		Message: "Login successful",
		Token:   res.Token,
		Role:    res.Role,
		ID:      res.UserID,
	})
}

func (h *UserHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()

	caller := middleware.IdentityFrom(c)
	if caller.UserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	p, err := h.Svc.CurrentProfile(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *UserHTTP) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "forgot_password")

	var req transport.ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.RequestPasswordReset(ctx, req.Email); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		l.Error("forgot_password_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Error sending reset link")
	}

	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "Reset link sent successfully"})
}

func (h *UserHTTP) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "reset_password")

	var req transport.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Something went wrong")
	}

	// Every failure here surfaces as 500, bad token included; the client
	// can only restart from the mail link anyway.
	if err := h.Svc.ResetPassword(ctx, c.Param("token"), req.Password); err != nil {
		l.Warn("reset_password_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Something went wrong")
	}

	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "Password reset successfully!"})
}

func (h *UserHTTP) VerifyEmail(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.Svc.VerifyEmail(ctx, c.Param("token")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid or expired token")
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "Email verified successfully!"})
}

func (h *UserHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_update")

	caller := middleware.IdentityFrom(c)

	var (
		targetID uint64
		in       service.UpdateInput
	)

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		params, err := c.FormParams()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
		}
		if raw := params.Get("userId"); raw != "" {
			targetID, err = strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid userId")
			}
		}
		in.FirstName = formField(params, "firstName")
		in.LastName = formField(params, "lastName")
		in.Email = formField(params, "email")
		in.Phone = formField(params, "phone")

		ref, err := h.saveAvatar(c)
		if err != nil {
			l.Error("avatar_save_failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "Error updating user")
		}
		in.AvatarRef = ref
	} else {
		var req transport.UpdateUserRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		targetID = req.UserID
		in.FirstName = req.FirstName
		in.LastName = req.LastName
		in.Email = req.Email
		in.Phone = req.Phone
	}

	if targetID == 0 {
		targetID = caller.UserID
	}

	p, err := h.Svc.UpdateProfile(ctx, caller, targetID, in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		case errors.Is(err, service.ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, "not allowed")
		case errors.Is(err, service.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		case errors.Is(err, service.ErrDuplicateEmail):
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		}
		l.Error("update_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Error updating user")
	}

	return c.JSON(http.StatusOK, p)
}

func (h *UserHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_delete")

	id, err := strconv.ParseUint(c.QueryParam("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	caller := middleware.IdentityFrom(c)
	if err := h.Svc.Delete(ctx, caller, id); err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		case errors.Is(err, service.ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, "not allowed")
		}
		l.Error("delete_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Error deleting user")
	}

	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "User deleted successfully"})
}

func (h *UserHTTP) SearchUsers(c echo.Context) error {
	ctx := c.Request().Context()

	caller := middleware.IdentityFrom(c)
	if caller.Role != models.RoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed")
	}

	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, size := util.Calculate(page, size)

	total, users, err := h.Search.Search(ctx, q, from, size)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}
	return c.JSON(http.StatusOK, transport.SearchResponse{Total: total, Users: users})
}

func formField(params map[string][]string, key string) *string {
	if vs, ok := params[key]; ok && len(vs) > 0 {
		v := vs[0]
		return &v
	}
	return nil
}

// saveAvatar stores an uploaded avatar under the upload dir and returns its
// public ref. No file attached is not an error.
func (h *UserHTTP) saveAvatar(c echo.Context) (*string, error) {
	file, err := c.FormFile("avatar")
	if err != nil {
		return nil, nil
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(file.Filename))
	dst, err := os.Create(filepath.Join(h.UploadDir, name))
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return nil, err
	}

	ref := "/uploads/" + name
	return &ref, nil
}
