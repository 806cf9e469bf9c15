package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avdeyev/identity-service/internal/repo"
	"github.com/avdeyev/identity-service/internal/service"
	"github.com/avdeyev/identity-service/internal/tokens"
)

type stubMailer struct {
	resetTokens  map[string]string
	verifyTokens map[string]string
}

func (m *stubMailer) SendResetPassword(ctx context.Context, address, token string) error {
	m.resetTokens[address] = token
	return nil
}

func (m *stubMailer) SendVerification(ctx context.Context, address, token string) error {
	m.verifyTokens[address] = token
	return nil
}

type testEnv struct {
	t      *testing.T
	e      *echo.Echo
	svc    *service.AccountService
	tokens *tokens.Service
	mailer *stubMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	r := &repo.GormRepo{DB: db}
	require.NoError(t, r.Migrate())

	tok := &tokens.Service{Secret: []byte("test-secret-key")}
	mailer := &stubMailer{
		resetTokens:  make(map[string]string),
		verifyTokens: make(map[string]string),
	}
	svc := &service.AccountService{Repo: r, Tokens: tok, Mailer: mailer}

	e := echo.New()
	Register(e, &Deps{
		Users:     &UserHTTP{Svc: svc, UploadDir: t.TempDir()},
		Tokens:    tok,
		UploadDir: t.TempDir(),
	})

	return &testEnv{t: t, e: e, svc: svc, tokens: tok, mailer: mailer}
}

func (env *testEnv) do(method, path string, body any, sessionToken string) *httptest.ResponseRecorder {
	env.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if sessionToken != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+sessionToken)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// registerVerified creates a verified account through the API and returns
// its session token.
func (env *testEnv) registerVerified(email, password string) (uint64, string) {
	env.t.Helper()

	rec := env.do(http.MethodPost, "/users/register", map[string]string{"email": email, "password": password}, "")
	require.Equal(env.t, http.StatusCreated, rec.Code)

	verifyToken := env.mailer.verifyTokens[email]
	require.NotEmpty(env.t, verifyToken)
	rec = env.do(http.MethodGet, "/users/verify/"+verifyToken, nil, "")
	require.Equal(env.t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/users/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(env.t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
		ID    uint64 `json:"id"`
	}
	require.NoError(env.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(env.t, resp.Token)
	return resp.ID, resp.Token
}

func TestListUsers_EmptyIs404(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/users", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterAndFetch(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/users/register", map[string]string{"email": "a@x.com", "password": "p1"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	var created struct {
		ID       uint64 `json:"id"`
		Verified bool   `json:"isVerified"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, uint64(1), created.ID)
	assert.False(t, created.Verified)

	rec = env.do(http.MethodGet, "/users?id=1", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/users?id=99", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/users", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var list []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]string{"email": "a@x.com", "password": "p1"}
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/users/register", body, "").Code)
	assert.Equal(t, http.StatusConflict, env.do(http.MethodPost, "/users/register", body, "").Code)
}

func TestLogin_StatusContract(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/users/login", map[string]string{"email": "nobody@x.com", "password": "p"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusCreated,
		env.do(http.MethodPost, "/users/register", map[string]string{"email": "a@x.com", "password": "p1"}, "").Code)

	rec = env.do(http.MethodPost, "/users/login", map[string]string{"email": "a@x.com", "password": "p1"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "unverified accounts cannot log in")

	verifyToken := env.mailer.verifyTokens["a@x.com"]
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/users/verify/"+verifyToken, nil, "").Code)

	rec = env.do(http.MethodPost, "/users/login", map[string]string{"email": "a@x.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/users/login", map[string]string{"email": "a@x.com", "password": "p1"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
		Role  string `json:"role"`
		ID    uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "user", resp.Role)
	assert.Equal(t, uint64(1), resp.ID)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/users/me", nil, "").Code)

	id, token := env.registerVerified("a@x.com", "p1")

	rec := env.do(http.MethodGet, "/users/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		ID    uint64 `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, id, me.ID)
	assert.Equal(t, "a@x.com", me.Email)

	// Valid session for an account that no longer exists.
	require.Equal(t, http.StatusOK, env.do(http.MethodDelete, "/users?id=1", nil, token).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/users/me", nil, token).Code)
}

func TestForgotPassword(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/users/forgot-password", map[string]string{"email": "nobody@x.com"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.registerVerified("a@x.com", "p1")
	rec = env.do(http.MethodPost, "/users/forgot-password", map[string]string{"email": "a@x.com"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, env.mailer.resetTokens["a@x.com"])
}

func TestResetPassword(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/users/reset-password/garbage", map[string]string{"password": "x"}, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	env.registerVerified("a@x.com", "oldpw")
	require.Equal(t, http.StatusOK,
		env.do(http.MethodPost, "/users/forgot-password", map[string]string{"email": "a@x.com"}, "").Code)

	resetToken := env.mailer.resetTokens["a@x.com"]
	rec = env.do(http.MethodPost, "/users/reset-password/"+resetToken, map[string]string{"password": "newpw"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK,
		env.do(http.MethodPost, "/users/login", map[string]string{"email": "a@x.com", "password": "newpw"}, "").Code)
	assert.Equal(t, http.StatusBadRequest,
		env.do(http.MethodPost, "/users/login", map[string]string{"email": "a@x.com", "password": "oldpw"}, "").Code)
}

func TestVerifyEmail_BadToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/users/verify/garbage", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdate(t *testing.T) {
	env := newTestEnv(t)

	id, token := env.registerVerified("a@x.com", "p1")
	otherID, _ := env.registerVerified("b@x.com", "p2")

	assert.Equal(t, http.StatusUnauthorized,
		env.do(http.MethodPatch, "/users", map[string]any{"phone": "555"}, "").Code)

	rec := env.do(http.MethodPatch, "/users", map[string]any{"phone": "555"}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated struct {
		ID    uint64 `json:"id"`
		Phone string `json:"phone"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, id, updated.ID)
	assert.Equal(t, "555", updated.Phone)

	// Touching someone else's record without the admin role.
	rec = env.do(http.MethodPut, "/users", map[string]any{"userId": otherID, "phone": "777"}, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)

	_, token := env.registerVerified("a@x.com", "p1")
	otherID, _ := env.registerVerified("b@x.com", "p2")

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodDelete, "/users?id=1", nil, "").Code)
	assert.Equal(t, http.StatusForbidden,
		env.do(http.MethodDelete, "/users?id="+strconv.FormatUint(otherID, 10), nil, token).Code)

	require.Equal(t, http.StatusOK, env.do(http.MethodDelete, "/users?id=1", nil, token).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/users?id=1", nil, "").Code)
}
