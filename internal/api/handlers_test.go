package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/postboard/postboard-backend/internal/media"
	"github.com/postboard/postboard-backend/internal/posts"
	"github.com/postboard/postboard-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// Mock metrics for testing
type MockMetrics struct{}

func (m *MockMetrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

type testServer struct {
	router http.Handler
	repo   *repository.Memory
	media  *media.Memory
}

func newTestServer(t *testing.T, opts RouterOptions) *testServer {
	t.Helper()

	logger := zap.NewNop().Sugar()
	repo := repository.NewMemory(repository.DefaultCategories...)
	images := media.NewMemory("https://media.test")
	svc := posts.NewService(repo, images, logger, posts.WithScopedReads(opts.ScopedReads))

	handler := NewHandler(svc, posts.NewValidator(), repo, stubPinger{}, logger)

	if opts.RateLimitRPM == 0 {
		opts.RateLimitRPM = 100000
	}
	opts.Identity = IdentityConfig{JWTSecret: testSecret, TrustUserHeader: true}

	return &testServer{
		router: handler.Routes(NewMiddleware(logger, &MockMetrics{}), opts),
		repo:   repo,
		media:  images,
	}
}

func (s *testServer) do(t *testing.T, method, path string, userID int64, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set(UserIDHeader, strconv.FormatInt(userID, 10))
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createBody(title string, categoryID any) map[string]any {
	return map[string]any{
		"title":      title,
		"content":    "Body",
		"categoryId": categoryID,
		"img":        "data:image/png;base64,AAAA",
	}
}

func TestCreateAndReadPost(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(t, http.MethodPost, "/posts", 7, createBody("Hi", 1))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, MsgPostAdded, decodeBody[MessageResponse](t, rec).Message)

	rec = s.do(t, http.MethodGet, "/posts/1", 7, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	post := decodeBody[posts.Post](t, rec)
	assert.Equal(t, "Hi", post.Title)
	assert.Equal(t, int64(7), post.UserID)
	assert.Equal(t, int64(1), post.CategoryID)
	require.NotNil(t, post.ImageID)
	assert.True(t, s.media.Has(*post.ImageID))
	assert.Equal(t, "https://media.test/"+*post.ImageID, *post.ImageURL)

	rec = s.do(t, http.MethodGet, "/posts", 7, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]posts.Summary](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "General", list[0].Category)
}

func TestListIsPerUser(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/posts", 1, createBody("mine", 1)).Code)

	rec := s.do(t, http.MethodGet, "/posts", 2, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetMissingPostIsNull(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	for _, path := range []string{"/posts/99", "/posts/abc"} {
		rec := s.do(t, http.MethodGet, path, 0, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `null`, rec.Body.String(), path)
	}
}

func TestScopedReads(t *testing.T) {
	s := newTestServer(t, RouterOptions{ScopedReads: true})
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/posts", 1, createBody("mine", 1)).Code)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/posts/1", 0, nil).Code)

	rec := s.do(t, http.MethodGet, "/posts/1", 2, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `null`, rec.Body.String())
}

func TestCreateValidation(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(t, http.MethodPost, "/posts", 7, map[string]any{"title": "  ", "categoryId": "x"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeBody[ValidationErrorResponse](t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)

	fields := make([]string, 0, len(resp.Errors))
	for _, fe := range resp.Errors {
		fields = append(fields, fe.Field)
	}
	assert.Equal(t, []string{"title", "content", "categoryId", "img"}, fields)

	rec = s.do(t, http.MethodPost, "/posts", 7, map[string]any{"title": 5, "content": "c", "categoryId": 1, "img": "x"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp = decodeBody[ValidationErrorResponse](t, rec)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "title", resp.Errors[0].Field)

	empty := createBody("Hi", 1)
	empty["img"] = ""
	rec = s.do(t, http.MethodPost, "/posts", 7, empty)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp = decodeBody[ValidationErrorResponse](t, rec)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "img", resp.Errors[0].Field)

	rec = s.do(t, http.MethodPost, "/posts", 7, `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, 0, s.repo.Count())
	assert.Equal(t, 0, s.media.Len())
}

func TestCreateUnknownCategory(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(t, http.MethodPost, "/posts", 7, createBody("Hi", 404))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgCategoryNotFound, decodeBody[ErrorResponse](t, rec).Message)

	assert.Equal(t, 0, s.repo.Count())
	assert.Equal(t, 0, s.media.Len())
}

func TestRequiresIdentity(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/posts", 0, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/posts", 0, createBody("Hi", 1)).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodDelete, "/posts/1", 0, nil).Code)
}

func TestUpdatePost(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/posts", 7, createBody("Hi", 1)).Code)

	before, err := s.repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	oldID := *before.ImageID

	// another user's post is not found
	rec := s.do(t, http.MethodPatch, "/posts/1", 8, map[string]any{"title": "T", "content": "C", "categoryId": 2})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgPostNotFound, decodeBody[ErrorResponse](t, rec).Message)

	// no img keeps the image
	rec = s.do(t, http.MethodPatch, "/posts/1", 7, map[string]any{"title": "T", "content": "C", "categoryId": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, MsgPostUpdated, decodeBody[MessageResponse](t, rec).Message)

	after, err := s.repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "T", after.Title)
	assert.Equal(t, int64(2), after.CategoryID)
	assert.Equal(t, oldID, *after.ImageID)
	assert.True(t, s.media.Has(oldID))

	// a new img replaces the old one
	rec = s.do(t, http.MethodPatch, "/posts/1", 7, map[string]any{"title": "T", "content": "C", "categoryId": 2, "img": "data:new"})
	require.Equal(t, http.StatusCreated, rec.Code)

	after, err = s.repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.NotEqual(t, oldID, *after.ImageID)
	assert.False(t, s.media.Has(oldID))
	assert.True(t, s.media.Has(*after.ImageID))
	assert.Equal(t, 1, s.media.Len())

	rec = s.do(t, http.MethodPatch, "/posts/x", 7, map[string]any{"categoryId": 2})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDeletePost(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/posts", 7, createBody("Hi", 1)).Code)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/posts/1", 8, nil).Code)
	assert.Equal(t, 1, s.repo.Count())

	rec := s.do(t, http.MethodDelete, "/posts/1", 7, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgPostDeleted, decodeBody[MessageResponse](t, rec).Message)
	assert.Equal(t, 0, s.repo.Count())
	assert.Equal(t, 0, s.media.Len())

	rec = s.do(t, http.MethodDelete, "/posts/1", 7, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/posts/abc", 7, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListCategories(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(t, http.MethodGet, "/categories", 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, repository.DefaultCategories, decodeBody[[]posts.Category](t, rec))
}

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestBearerIdentity(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/posts", 7, createBody("Hi", 1)).Code)

	tests := []struct {
		name   string
		token  string
		status int
		count  int
	}{
		{"user_id claim", signToken(t, jwt.MapClaims{"user_id": 7}, testSecret), http.StatusOK, 1},
		{"sub claim", signToken(t, jwt.MapClaims{"sub": "7"}, testSecret), http.StatusOK, 1},
		{"other user", signToken(t, jwt.MapClaims{"user_id": 9}, testSecret), http.StatusOK, 0},
		{"wrong secret", signToken(t, jwt.MapClaims{"user_id": 7}, "nope"), http.StatusUnauthorized, 0},
		{"expired", signToken(t, jwt.MapClaims{"user_id": 7, "exp": time.Now().Add(-time.Hour).Unix()}, testSecret), http.StatusUnauthorized, 0},
		{"no user", signToken(t, jwt.MapClaims{"role": "admin"}, testSecret), http.StatusUnauthorized, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/posts", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusOK {
				assert.Len(t, decodeBody[[]posts.Summary](t, rec), tt.count)
			}
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	logger := zap.NewNop().Sugar()
	repo := repository.NewMemory()
	svc := posts.NewService(repo, media.NewMemory("https://media.test"), logger)
	m := NewMiddleware(logger, &MockMetrics{})

	healthy := NewHandler(svc, posts.NewValidator(), repo, stubPinger{}, logger).Routes(m, RouterOptions{RateLimitRPM: 1000})

	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	degraded := NewHandler(svc, posts.NewValidator(), repo, stubPinger{err: errors.New("down")}, logger).Routes(m, RouterOptions{RateLimitRPM: 1000})
	rec = httptest.NewRecorder()
	degraded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, []string{"CACHE_UNAVAILABLE"}, decodeBody[HealthDTO](t, rec).Reasons)
}

func TestRecovererAnswersJSON(t *testing.T) {
	m := NewMiddleware(zap.NewNop().Sugar(), &MockMetrics{})
	h := m.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeBody[ErrorResponse](t, rec).Code)
}

func TestTimeoutAnswersJSON(t *testing.T) {
	m := NewMiddleware(zap.NewNop().Sugar(), &MockMetrics{})
	h := m.Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "TIMEOUT", decodeBody[ErrorResponse](t, rec).Code)

	// handlers that finish in time keep their own headers
	fast := m.Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
	}))
	rec = httptest.NewRecorder()
	fast.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
}

func TestHandleServiceErrorMapping(t *testing.T) {
	h := &Handler{logger: zap.NewNop().Sugar()}

	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"wrapped category", fmt.Errorf("create: %w", posts.ErrCategoryNotFound), http.StatusNotFound, "CATEGORY_NOT_FOUND", MsgCategoryNotFound},
		{"post", posts.ErrPostNotFound, http.StatusNotFound, "POST_NOT_FOUND", MsgPostNotFound},
		{"downstream", fmt.Errorf("failed to upload image: %w", media.ErrRejected), http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.handleServiceError(rec, httptest.NewRequest(http.MethodGet, "/posts", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}
