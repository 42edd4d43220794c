package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careerhub/internal/app"
	"careerhub/internal/logging"
	"careerhub/internal/model"
	"careerhub/internal/pkg/jwtutil"
	"careerhub/internal/repository"
	"careerhub/internal/testutil"
	"careerhub/internal/transport/http/middleware"
	"careerhub/internal/transport/http/response"
)

const testSecret = "handler-secret"

func init() {
	gin.SetMode(gin.TestMode)
	RegisterValidators()
}

type countingRecorder struct{ outcomes []string }

func (r *countingRecorder) ObserveLogin(outcome string) { r.outcomes = append(r.outcomes, outcome) }

type testEnv struct {
	engine   *gin.Engine
	repo     *repository.UserRepository
	recorder *countingRecorder
	alice    *model.User
	bob      *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	repo := repository.NewUserRepository(db)
	logger := logging.Discard()
	authSvc := app.NewAuthService(repo, testSecret, time.Hour, nil, nil, logger)
	userSvc := app.NewUserService(repo, nil, nil, logger)
	recorder := &countingRecorder{}

	authHandler := NewAuthHandler(authSvc, CookieSettings{Name: "token"}, recorder)
	userHandler := NewUserHandler(userSvc)
	requireAuth := middleware.AuthJWT(middleware.NewAuthenticator(testSecret, "token"))

	r := gin.New()
	r.POST("/signup", authHandler.Signup)
	r.POST("/login", authHandler.Login)
	r.POST("/logout", authHandler.Logout)
	r.GET("/user/me", requireAuth, authHandler.Me)
	r.PUT("/user", requireAuth, userHandler.UpdateUser)
	r.GET("/user/username-available", userHandler.UsernameAvailable)

	return &testEnv{
		engine:   r,
		repo:     repo,
		recorder: recorder,
		alice:    testutil.SeedUser(t, db, "Alice", "alice", "alice@example.com"),
		bob:      testutil.SeedUser(t, db, "Bob", "bob", "bob@example.com"),
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, userID uint) (*httptest.ResponseRecorder, response.APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, err := jwtutil.GenerateToken(testSecret, time.Hour, userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var resp response.APIResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestSignupAndLogin(t *testing.T) {
	e := newTestEnv(t)

	w, resp := e.do(t, http.MethodPost, "/signup",
		`{"name":"Carol","username":"carol","email":"carol@example.com","password":"s3cret-pass","confirmPassword":"s3cret-pass"}`, 0)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, resp.Token)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "token=")
	assert.Contains(t, w.Header().Get("Set-Cookie"), "HttpOnly")

	w, resp = e.do(t, http.MethodPost, "/login", `{"email":"carol@example.com","password":"s3cret-pass"}`, 0)
	require.Equal(t, http.StatusOK, w.Code)
	claims, err := jwtutil.ParseToken(testSecret, resp.Token)
	require.NoError(t, err)

	carol, err := e.repo.GetByUsername(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, carol.ID, claims.UserID)
	assert.Equal(t, []string{"success"}, e.recorder.outcomes)
}

func TestSignupAndLogin_TrimsInputAndCountsCharacters(t *testing.T) {
	e := newTestEnv(t)
	name := strings.Repeat("名", 50)

	w, resp := e.do(t, http.MethodPost, "/signup",
		`{"name":"`+name+`","username":" mei ","email":" Mei@Example.com ","password":"s3cret-pass","confirmPassword":"s3cret-pass"}`, 0)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, resp.Token)

	mei, err := e.repo.GetByEmail(context.Background(), "mei@example.com")
	require.NoError(t, err)
	require.NotNil(t, mei)
	assert.Equal(t, name, mei.Name)
	assert.Equal(t, "mei", mei.Username)

	w, resp = e.do(t, http.MethodPost, "/login", `{"email":" mei@example.com ","password":"s3cret-pass"}`, 0)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, resp.Token)

	w, _ = e.do(t, http.MethodPut, "/user", `{"name":"`+strings.Repeat("名", 60)+`","email":"  MEI2@example.com"}`, mei.ID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	updated, err := e.repo.GetByID(context.Background(), mei.ID)
	require.NoError(t, err)
	assert.Equal(t, "mei2@example.com", updated.Email)
}

func TestSignupRejects(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "mismatched confirmation",
			body:       `{"name":"C","username":"carol","email":"c@example.com","password":"s3cret-pass","confirmPassword":"different"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "confirmPassword must match Password",
		},
		{
			name:       "bad username",
			body:       `{"name":"C","username":"c!","email":"c@example.com","password":"s3cret-pass","confirmPassword":"s3cret-pass"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "username must be 3 to 64 letters, digits, '_', '.' or '-'",
		},
		{
			name:       "invalid email",
			body:       `{"name":"C","username":"carol","email":"not-an-email","password":"s3cret-pass","confirmPassword":"s3cret-pass"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "invalid input: email is not valid",
		},
		{
			name:       "name too long",
			body:       `{"name":"` + strings.Repeat("名", 129) + `","username":"carol","email":"c@example.com","password":"s3cret-pass","confirmPassword":"s3cret-pass"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "name must be at most 128 characters long",
		},
		{
			name:       "duplicate username",
			body:       `{"name":"C","username":"alice","email":"c@example.com","password":"s3cret-pass","confirmPassword":"s3cret-pass"}`,
			wantStatus: http.StatusConflict,
			wantMsg:    "username already taken",
		},
		{
			name:       "duplicate email",
			body:       `{"name":"C","username":"carol","email":"bob@example.com","password":"s3cret-pass","confirmPassword":"s3cret-pass"}`,
			wantStatus: http.StatusConflict,
			wantMsg:    "email already registered",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := e.do(t, http.MethodPost, "/signup", tt.body, 0)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestLoginFailures(t *testing.T) {
	e := newTestEnv(t)

	w, resp := e.do(t, http.MethodPost, "/login", `{"email":"alice@example.com","password":"wrong-pass"}`, 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.CodeInvalidCredentials, resp.Code)
	assert.Empty(t, resp.Token)
	wrongPassMsg := resp.Message

	w, resp = e.do(t, http.MethodPost, "/login", `{"email":"ghost@example.com","password":"whatever1"}`, 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, wrongPassMsg, resp.Message)
	assert.Empty(t, w.Header().Get("Set-Cookie"))

	w, resp = e.do(t, http.MethodPost, "/login", `{"email":"not-an-email","password":"x"}`, 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid input: email is not valid", resp.Message)

	w, _ = e.do(t, http.MethodPost, "/login", `{"email":`, 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, []string{"invalid", "invalid"}, e.recorder.outcomes)
}

func TestUpdateUser(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	w, resp := e.do(t, http.MethodPut, "/user", `{"name":"Robert","username":"robert"}`, e.bob.ID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "User updated successfully", resp.Message)

	got, err := e.repo.GetByID(ctx, e.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "Robert", got.Name)
	assert.Equal(t, "robert", got.Username)
	assert.Equal(t, "bob@example.com", got.Email)
}

func TestUpdateUser_RejectsIDInBody(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	w, resp := e.do(t, http.MethodPut, "/user", bodyWithID(e.alice.ID), e.bob.ID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, `unknown field "id"`, resp.Message)

	alice, err := e.repo.GetByID(ctx, e.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", alice.Name)
	bob, err := e.repo.GetByID(ctx, e.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", bob.Name)
}

func bodyWithID(id uint) string {
	b, _ := json.Marshal(map[string]interface{}{"id": id, "name": "Hijacked"})
	return string(b)
}

func TestUpdateUser_Errors(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name       string
		body       string
		userID     uint
		wantStatus int
		wantMsg    string
	}{
		{name: "no token", body: `{"name":"X"}`, wantStatus: http.StatusUnauthorized, wantMsg: "invalid or missing token"},
		{name: "username taken", body: `{"username":"alice"}`, userID: e.bob.ID, wantStatus: http.StatusConflict, wantMsg: "username already taken"},
		{name: "email taken", body: `{"email":"alice@example.com"}`, userID: e.bob.ID, wantStatus: http.StatusConflict, wantMsg: "email already registered"},
		{name: "empty patch", body: `{}`, userID: e.bob.ID, wantStatus: http.StatusBadRequest, wantMsg: "invalid input: nothing to update"},
		{name: "malformed json", body: `{"name":`, userID: e.bob.ID, wantStatus: http.StatusBadRequest, wantMsg: "invalid json payload"},
		{name: "empty body", body: "", userID: e.bob.ID, wantStatus: http.StatusBadRequest, wantMsg: "invalid json payload"},
		{name: "invalid email", body: `{"email":"nope"}`, userID: e.bob.ID, wantStatus: http.StatusBadRequest, wantMsg: "invalid input: email is not valid"},
		{name: "trailing object", body: `{"name":"X"}{"id":1}`, userID: e.bob.ID, wantStatus: http.StatusBadRequest, wantMsg: "unexpected data after json payload"},
		{name: "trailing garbage", body: `{"name":"X"} junk`, userID: e.bob.ID, wantStatus: http.StatusBadRequest, wantMsg: "unexpected data after json payload"},
		{name: "deleted user", body: `{"name":"Ghost"}`, userID: 9999, wantStatus: http.StatusUnauthorized, wantMsg: "user not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := e.do(t, http.MethodPut, "/user", tt.body, tt.userID)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestMeAndLogout(t *testing.T) {
	e := newTestEnv(t)

	w, resp := e.do(t, http.MethodGet, "/user/me", "", e.alice.ID)
	require.Equal(t, http.StatusOK, w.Code)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "alice", data["username"])
	assert.NotContains(t, w.Body.String(), "password")

	w, _ = e.do(t, http.MethodGet, "/user/me", "", 9999)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.do(t, http.MethodPost, "/logout", "", 0)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestUsernameAvailable(t *testing.T) {
	e := newTestEnv(t)

	w, resp := e.do(t, http.MethodGet, "/user/username-available?username=alice", "", 0)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"username": "alice", "available": false}, resp.Data)

	w, resp = e.do(t, http.MethodGet, "/user/username-available?username=zed", "", 0)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"username": "zed", "available": true}, resp.Data)

	w, _ = e.do(t, http.MethodGet, "/user/username-available?username=a", "", 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthCheck(t *testing.T) {
	r := gin.New()
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	r.GET("/up", NewHealthHandler("careerhub", "test", time.Now(), map[string]Pinger{"mysql": ok, "redis": ok}).Check)
	r.GET("/down", NewHealthHandler("careerhub", "test", time.Now(), map[string]Pinger{"mysql": ok, "redis": down}).Check)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/up", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/down", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
