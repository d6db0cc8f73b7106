package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jmorand/crm-backend/internal/middleware/auth"
	"github.com/jmorand/crm-backend/internal/models"
	"github.com/jmorand/crm-backend/internal/store"
	"github.com/jmorand/crm-backend/internal/token"
)

type testEnv struct {
	e        *echo.Echo
	db       *gorm.DB
	users    *store.UserStore
	contacts *store.ContactStore
	tokens   *token.Service
	guard    *auth.Guard
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "connect to in-memory db")
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Contact{}), "migrate tables")

	users := store.NewUserStore(db)
	contacts := store.NewContactStore(db)

	tokens, err := token.NewService([]byte("test-secret"), "HS256", 15*time.Minute)
	require.NoError(t, err)

	return &testEnv{
		e:        echo.New(),
		db:       db,
		users:    users,
		contacts: contacts,
		tokens:   tokens,
		guard:    &auth.Guard{Tokens: tokens, Users: users},
	}
}

func postForm(e *echo.Echo, target string, form url.Values) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestToken_Success(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	handler := &AuthHandler{Users: env.users, Tokens: env.tokens}

	_, err := env.users.Create(context.Background(), "Alice", "alice@example.com", "admin", "password")
	require.NoError(t, err)

	c, rec := postForm(env.e, "/auth/token", url.Values{
		"username": {"alice@example.com"},
		"password": {"password"},
	})

	require.NoError(t, handler.Token(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bearer", resp["token_type"])

	subject, err := env.tokens.Verify(resp["access_token"])
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", subject)
}

func TestToken_WrongCredentials(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	handler := &AuthHandler{Users: env.users, Tokens: env.tokens}

	_, err := env.users.Create(context.Background(), "Alice", "alice@example.com", "admin", "password")
	require.NoError(t, err)

	c, _ := postForm(env.e, "/auth/token", url.Values{
		"username": {"alice@example.com"},
		"password": {"wrong"},
	})

	err = handler.Token(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusNotFound, he.Code)
	assert.Equal(t, "Wrong info !", he.Message)
}

func TestToken_InactiveUser(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	handler := &AuthHandler{Users: env.users, Tokens: env.tokens}

	user, err := env.users.Create(context.Background(), "Alice", "alice@example.com", "admin", "password")
	require.NoError(t, err)
	deactivate(t, env, user)

	c, _ := postForm(env.e, "/auth/token", url.Values{
		"username": {"alice@example.com"},
		"password": {"password"},
	})

	err = handler.Token(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusNotFound, he.Code)
	assert.Equal(t, "Inactive User", he.Message)
}

func TestVerifyToken_ThroughGuard(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	handler := &AuthHandler{Users: env.users, Tokens: env.tokens}

	user, err := env.users.Create(context.Background(), "Alice", "alice@example.com", "admin", "password")
	require.NoError(t, err)

	raw, err := env.tokens.Issue(user.Email)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/verify_token", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+raw)
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)

	guarded := env.guard.RequireUser(handler.VerifyToken)
	require.NoError(t, guarded(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Valid bool `json:"valid"`
		User  struct {
			ID    uint   `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, "admin", resp.User.Role)
}

func TestGuard_MissingToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	handler := &AuthHandler{Users: env.users, Tokens: env.tokens}

	req := httptest.NewRequest(http.MethodGet, "/auth/verify_token", nil)
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)

	guarded := env.guard.RequireUser(handler.VerifyToken)
	err := guarded(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusUnauthorized, he.Code)
	assert.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))
}

func TestGuard_UnknownSubject(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	handler := &AuthHandler{Users: env.users, Tokens: env.tokens}

	raw, err := env.tokens.Issue("ghost@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/verify_token", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+raw)
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)

	guarded := env.guard.RequireUser(handler.VerifyToken)
	err = guarded(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

// deactivate flips the active flag directly in the store.
func deactivate(t *testing.T, env *testEnv, user *models.User) {
	t.Helper()
	res := env.db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", false)
	require.NoError(t, res.Error)
	user.IsActive = false
}
