package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorand/crm-backend/internal/middleware/auth"
	"github.com/jmorand/crm-backend/internal/models"
	"github.com/jmorand/crm-backend/internal/store"
)

func postJSON(e *echo.Echo, target string, payload interface{}) (echo.Context, *httptest.ResponseRecorder) {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func requestWithID(e *echo.Echo, method, target string, id uint, payload interface{}) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if payload != nil {
		body, _ := json.Marshal(payload)
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(uint64(id), 10))
	return c, rec
}

func TestUserCreate_Conflict(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	handler := &UserHandler{Users: env.users}

	payload := map[string]string{
		"name":     "Alice",
		"email":    "alice@example.com",
		"role":     "admin",
		"password": "password",
	}

	c, rec := postJSON(env.e, "/auth/user/create/", payload)
	require.NoError(t, handler.Create(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var created models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	assert.True(t, created.IsActive)
	assert.NotContains(t, rec.Body.String(), "password")

	c2, _ := postJSON(env.e, "/auth/user/create/", payload)
	err := handler.Create(c2)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusNotFound, he.Code)
	assert.Equal(t, "User already exists!", he.Message)

	// first account untouched
	kept, err := env.users.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, kept.ID)
}

func TestUserDelete_SelfGuard(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	handler := &UserHandler{Users: env.users}

	alice, err := env.users.Create(context.Background(), "Alice", "alice@example.com", "admin", "password")
	require.NoError(t, err)
	bob, err := env.users.Create(context.Background(), "Bob", "bob@example.com", "user", "password")
	require.NoError(t, err)

	// deleting yourself is rejected
	c, _ := requestWithID(env.e, http.MethodDelete, "/auth/user/users/:id", alice.ID, nil)
	c.Set(auth.UserContextKey, alice)
	err = handler.Delete(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusNotFound, he.Code)
	assert.Equal(t, "You cannot delete yourself!", he.Message)

	// deleting someone else succeeds and the record is gone
	c2, rec2 := requestWithID(env.e, http.MethodDelete, "/auth/user/users/:id", bob.ID, nil)
	c2.Set(auth.UserContextKey, alice)
	require.NoError(t, handler.Delete(c2))
	assert.Equal(t, http.StatusOK, rec2.Code)

	_, err = env.users.GetByID(context.Background(), bob.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserUpdate_Conflict(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	handler := &UserHandler{Users: env.users}

	_, err := env.users.Create(context.Background(), "Alice", "alice@example.com", "admin", "password")
	require.NoError(t, err)
	bob, err := env.users.Create(context.Background(), "Bob", "bob@example.com", "user", "password")
	require.NoError(t, err)

	c, _ := requestWithID(env.e, http.MethodPut, "/auth/user/users/:id", bob.ID, map[string]string{
		"name":  "Bob",
		"email": "alice@example.com",
		"role":  "user",
	})
	err = handler.Update(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusNotFound, he.Code)
	assert.Equal(t, "User already exists!", he.Message)
}

func TestUserGet_NotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	handler := &UserHandler{Users: env.users}

	c, _ := requestWithID(env.e, http.MethodGet, "/auth/user/users/:id", 99, nil)
	err := handler.Get(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusNotFound, he.Code)
}

func TestUserList(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	handler := &UserHandler{Users: env.users}

	_, err := env.users.Create(context.Background(), "Alice", "alice@example.com", "admin", "password")
	require.NoError(t, err)
	_, err = env.users.Create(context.Background(), "Bob", "bob@example.com", "user", "password")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/user/users/", nil)
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)

	require.NoError(t, handler.List(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var users []models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Len(t, users, 2)
}

func TestRequireActive_InactiveUser(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	handler := &UserHandler{Users: env.users}

	user, err := env.users.Create(context.Background(), "Alice", "alice@example.com", "admin", "password")
	require.NoError(t, err)
	deactivate(t, env, user)

	req := httptest.NewRequest(http.MethodGet, "/auth/user/profile", nil)
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	c.Set(auth.UserContextKey, user)

	guarded := auth.RequireActive(handler.Profile)
	err = guarded(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusNotFound, he.Code)
	assert.Equal(t, "Inactive User", he.Message)
}
