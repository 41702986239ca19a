package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recipethread/internal/config"
	"recipethread/internal/db"
	"recipethread/internal/handlers"
	"recipethread/internal/middleware"
	"recipethread/internal/models"
	"recipethread/internal/services"
	"recipethread/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	alice = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	bob   = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
)

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{JWTSecret: "router-secret"},
		Discussion: config.DiscussionConfig{
			CountDeletedChildren: true,
			MaxContentLength:     200,
		},
		Idempotency: config.IdempotencyConfig{Store: "memory", TTL: time.Minute, Capacity: 100},
		RateLimit:   config.RateLimitConfig{Enabled: true, RPS: 1000, Burst: 1000},
		Cors: config.CorsConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		},
	}
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	auth   *middleware.Authenticator
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	conn, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	t.Cleanup(func() { db.Close(conn) })
	sqlDB, _ := conn.DB()

	backend, err := services.NewBackend(conn, cfg.Discussion, nil)
	if err != nil {
		t.Fatalf("NewBackend failed: %v", err)
	}
	idem, _ := utils.NewMemoryIdempotencyStore(cfg.Idempotency.Capacity)
	limiter, _ := middleware.NewRateLimiter(cfg.RateLimit)
	auth := middleware.NewAuthenticator(cfg.Auth)

	engine := New(Deps{
		Config:      cfg,
		Backend:     backend,
		Idempotency: idem,
		Auth:        auth,
		Limiter:     limiter,
		DB:          sqlDB,
	})
	return &testServer{t: t, engine: engine, auth: auth}
}

func (s *testServer) do(user uuid.UUID, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		token, err := s.auth.Issue(user, time.Minute)
		if err != nil {
			s.t.Fatalf("Issue failed: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q failed: %v", w.Body.String(), err)
	}
	return v
}

func (s *testServer) create(user uuid.UUID, parentID *uint, content string) models.CommentView {
	s.t.Helper()
	w := s.do(user, http.MethodPost, "/api/recipes/1/comments", gin.H{"content": content, "parent_id": parentID})
	if w.Code != http.StatusCreated {
		s.t.Fatalf("create %q: expected 201, got %d: %s", content, w.Code, w.Body.String())
	}
	return decode[models.CommentView](s.t, w)
}

func TestRequiresAuthentication(t *testing.T) {
	s := newTestServer(t, testConfig())
	w := s.do(uuid.Nil, http.MethodGet, "/api/recipes/1/comments", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestCreateAndList(t *testing.T) {
	s := newTestServer(t, testConfig())
	top := s.create(alice, nil, "Needs more salt")
	reply := s.create(bob, &top.ID, "Agreed")

	w := s.do(bob, http.MethodGet, "/api/recipes/1/comments", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	list := decode[handlers.ListResponse](t, w)
	if len(list.Comments) != 1 || list.Comments[0].ChildCount != 1 {
		t.Errorf("Expected one top-level comment with one reply, got %+v", list.Comments)
	}

	w = s.do(bob, http.MethodGet, "/api/recipes/1/comments/"+utils.FormatID(top.ID)+"/replies", nil)
	replies := decode[handlers.ListResponse](t, w)
	if len(replies.Comments) != 1 || replies.Comments[0].ID != reply.ID {
		t.Errorf("Expected reply %d, got %+v", reply.ID, replies.Comments)
	}

	w = s.do(bob, http.MethodGet, "/api/recipes/2/comments", nil)
	if empty := decode[handlers.ListResponse](t, w); empty.Comments == nil || len(empty.Comments) != 0 {
		t.Errorf("Expected empty array for other recipe, got %s", w.Body.String())
	}
}

func TestCreateErrors(t *testing.T) {
	s := newTestServer(t, testConfig())
	tests := []struct {
		name string
		path string
		body any
		code int
		kind string
	}{
		{"blank content", "/api/recipes/1/comments", gin.H{"content": "   "}, http.StatusBadRequest, "validation"},
		{"missing content", "/api/recipes/1/comments", gin.H{}, http.StatusBadRequest, "validation"},
		{"missing parent", "/api/recipes/1/comments", gin.H{"content": "hi", "parent_id": 999}, http.StatusNotFound, "not_found"},
		{"bad recipe id", "/api/recipes/abc/comments", gin.H{"content": "hi"}, http.StatusBadRequest, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(alice, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.code {
				t.Fatalf("Expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
			if resp := decode[handlers.ErrorResponse](t, w); resp.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, resp.Kind)
			}
		})
	}
}

func TestIdempotentCreate(t *testing.T) {
	s := newTestServer(t, testConfig())
	body := gin.H{"content": "posted twice"}

	first := s.do(alice, http.MethodPost, "/api/recipes/1/comments", body, handlers.IdempotencyHeader, "k-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", first.Code)
	}
	second := s.do(alice, http.MethodPost, "/api/recipes/1/comments", body, handlers.IdempotencyHeader, "k-1")
	if second.Code != http.StatusOK {
		t.Fatalf("Expected replay to return 200, got %d", second.Code)
	}
	if decode[models.CommentView](t, first).ID != decode[models.CommentView](t, second).ID {
		t.Error("Expected replay to return the original comment")
	}

	// 不同用户使用相同的键互不影响
	other := s.do(bob, http.MethodPost, "/api/recipes/1/comments", body, handlers.IdempotencyHeader, "k-1")
	if other.Code != http.StatusCreated {
		t.Errorf("Expected another user's key to create, got %d", other.Code)
	}

	list := decode[handlers.ListResponse](t, s.do(alice, http.MethodGet, "/api/recipes/1/comments", nil))
	if len(list.Comments) != 2 {
		t.Errorf("Expected 2 comments, got %d", len(list.Comments))
	}
}

func TestEditAndDeleteOwnership(t *testing.T) {
	s := newTestServer(t, testConfig())
	top := s.create(alice, nil, "original")
	s.create(bob, &top.ID, "reply")
	path := "/api/comments/" + utils.FormatID(top.ID)

	if w := s.do(bob, http.MethodPatch, path, gin.H{"content": "hijack"}); w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 on foreign edit, got %d", w.Code)
	}
	w := s.do(alice, http.MethodPatch, path, gin.H{"content": "edited"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if v := decode[models.CommentView](t, w); v.Content != "edited" {
		t.Errorf("Expected edited content, got %q", v.Content)
	}

	if w := s.do(bob, http.MethodDelete, path, nil); w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 on foreign delete, got %d", w.Code)
	}
	w = s.do(alice, http.MethodDelete, path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if resp := decode[handlers.DeleteResponse](t, w); resp.HardDeleted {
		t.Error("Expected soft delete for comment with replies")
	}

	v := decode[models.CommentView](t, s.do(bob, http.MethodGet, path, nil))
	if !v.Deleted || v.Content != "" {
		t.Errorf("Expected placeholder without content, got %+v", v)
	}
	if w := s.do(alice, http.MethodDelete, path, nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 on repeated delete, got %d", w.Code)
	}
	if w := s.do(alice, http.MethodPatch, path, gin.H{"content": "again"}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 editing a placeholder, got %d", w.Code)
	}
}

func TestVoteRoutes(t *testing.T) {
	s := newTestServer(t, testConfig())
	c := s.create(bob, nil, "vote on me")
	path := "/api/comments/" + utils.FormatID(c.ID) + "/vote"

	vote := func(w *httptest.ResponseRecorder) int {
		t.Helper()
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}
		return decode[handlers.VoteResponse](t, w).Value
	}

	if got := vote(s.do(alice, http.MethodGet, path, nil)); got != 0 {
		t.Errorf("Expected no vote, got %d", got)
	}
	if got := vote(s.do(alice, http.MethodPut, path, gin.H{"value": 1})); got != 1 {
		t.Errorf("Expected 1, got %d", got)
	}
	if w := s.do(alice, http.MethodPut, path, gin.H{"value": -1}); w.Code != http.StatusConflict {
		t.Errorf("Expected 409 on second cast, got %d", w.Code)
	}
	if got := vote(s.do(alice, http.MethodPost, path+"/toggle", gin.H{"value": 1})); got != 0 {
		t.Errorf("Expected toggle to clear, got %d", got)
	}
	if got := vote(s.do(alice, http.MethodPost, path+"/toggle", gin.H{"value": -1})); got != -1 {
		t.Errorf("Expected -1, got %d", got)
	}
	if w := s.do(alice, http.MethodPost, path+"/toggle", gin.H{"value": 3}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid value, got %d", w.Code)
	}

	v := decode[models.CommentView](t, s.do(bob, http.MethodGet, "/api/comments/"+utils.FormatID(c.ID), nil))
	if v.ReactionSum != -1 {
		t.Errorf("Expected reaction_sum -1, got %d", v.ReactionSum)
	}

	if w := s.do(alice, http.MethodDelete, path, nil); w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}
	if got := vote(s.do(alice, http.MethodGet, path, nil)); got != 0 {
		t.Errorf("Expected vote cleared, got %d", got)
	}
}

func TestWritesAreRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	s := newTestServer(t, cfg)

	s.create(alice, nil, "first")
	w := s.do(alice, http.MethodPost, "/api/recipes/1/comments", gin.H{"content": "second"})
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", w.Code)
	}
	if w := s.do(alice, http.MethodGet, "/api/recipes/1/comments", nil); w.Code != http.StatusOK {
		t.Errorf("Expected reads not to be limited, got %d", w.Code)
	}
}

func TestOperationalRoutes(t *testing.T) {
	s := newTestServer(t, testConfig())
	if w := s.do(uuid.Nil, http.MethodGet, "/healthz", nil); w.Code != http.StatusOK {
		t.Errorf("Expected healthz 200, got %d", w.Code)
	}
	s.create(alice, nil, "counted")
	w := s.do(uuid.Nil, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("recipethread_comments_created_total")) {
		t.Errorf("Expected metrics output, got %d", w.Code)
	}
}
