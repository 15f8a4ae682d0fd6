package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"asyncops/internal/config"
	"asyncops/internal/model"
	"asyncops/internal/service"

	"github.com/gin-gonic/gin"
)

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	svcs   Services
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "api.db")
	db, err := cfg.OpenGormDB()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := model.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	now := func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	svcs := NewServices(db, cfg.Auth, service.WithClock(now))
	return &testAPI{t: t, router: NewRouter(cfg.CORS, svcs), svcs: svcs}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) login(email, password string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": password})
	if w.Code != http.StatusOK {
		a.t.Fatalf("login %s: %d %s", email, w.Code, w.Body)
	}
	var resp model.LoginResponse
	decode(a.t, w, &resp)
	return resp.AccessToken
}

func (a *testAPI) member(email string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/auth/register", "", gin.H{"email": email, "password": "password1", "full_name": "Member"})
	if w.Code != http.StatusCreated {
		a.t.Fatalf("register: %d %s", w.Code, w.Body)
	}
	return a.login(email, "password1")
}

func (a *testAPI) admin() string {
	a.t.Helper()
	if _, err := a.svcs.Auth.CreateAdmin(context.Background(), "admin@example.com", "password1", "Admin"); err != nil {
		a.t.Fatal(err)
	}
	return a.login("admin@example.com", "password1")
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body, err)
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"healthy"`) {
		t.Fatalf("health = %d %s", w.Code, w.Body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)
	token := api.member("m@example.com")

	w := api.do(http.MethodGet, "/api/users/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me = %d %s", w.Code, w.Body)
	}
	var me model.User
	decode(t, w, &me)
	if me.Email != "m@example.com" || strings.Contains(w.Body.String(), "password") {
		t.Fatalf("me body = %s", w.Body)
	}

	if w := api.do(http.MethodGet, "/api/users/me", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d", w.Code)
	}
	if w := api.do(http.MethodGet, "/api/users/me", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d", w.Code)
	}

	w = api.do(http.MethodPost, "/api/auth/register", "", gin.H{"email": "m@example.com", "password": "password1", "full_name": "Dup"})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register = %d %s", w.Code, w.Body)
	}
	w = api.do(http.MethodPost, "/api/auth/register", "", gin.H{"email": "short@example.com", "password": "123", "full_name": "S"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("short password = %d", w.Code)
	}
	w = api.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "m@example.com", "password": "wrong-password"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", w.Code)
	}

	if w := api.do(http.MethodGet, "/api/users", token, nil); w.Code != http.StatusForbidden {
		t.Fatalf("member list users = %d", w.Code)
	}
}

func TestSummaryEndpoints(t *testing.T) {
	api := newTestAPI(t)
	admin := api.admin()
	member := api.member("m@example.com")

	w := api.do(http.MethodPost, "/api/status", member, gin.H{"title": "deploy", "content": "done"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d %s", w.Code, w.Body)
	}

	if w := api.do(http.MethodPost, "/api/summaries/generate", member, nil); w.Code != http.StatusForbidden {
		t.Fatalf("member generate = %d, want 403", w.Code)
	}

	w = api.do(http.MethodPost, "/api/summaries/generate?summary_date=2026-03-10", admin, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("generate = %d %s", w.Code, w.Body)
	}
	var first model.SummaryResponse
	decode(t, w, &first)
	if first.SummaryDate != "2026-03-10" || first.StatusUpdatesCount != 1 {
		t.Fatalf("summary = %+v", first)
	}
	if len(first.Content.StatusUpdates) != 1 || first.Content.StatusUpdates[0].Author != "Member" {
		t.Fatalf("content = %+v", first.Content)
	}

	w = api.do(http.MethodPost, "/api/summaries/generate?summary_date=2026-03-10", admin, nil)
	var again model.SummaryResponse
	decode(t, w, &again)
	if again.ID != first.ID || !again.GeneratedAt.Equal(first.GeneratedAt) {
		t.Fatalf("repeat generate changed row: %+v vs %+v", again, first)
	}

	w = api.do(http.MethodPost, "/api/summaries/generate?summary_date=2026-03-10&force=true", admin, nil)
	var forced model.SummaryResponse
	decode(t, w, &forced)
	if forced.ID != first.ID || !forced.GeneratedAt.After(first.GeneratedAt) {
		t.Fatalf("force = %+v", forced)
	}

	if w := api.do(http.MethodPost, "/api/summaries/generate?summary_date=03-10-2026", admin, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad date = %d", w.Code)
	}
	if w := api.do(http.MethodPost, "/api/summaries/generate?force=maybe", admin, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad force = %d", w.Code)
	}

	w = api.do(http.MethodGet, "/api/summaries", member, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d %s", w.Code, w.Body)
	}
	var list struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
		Page  int              `json:"page"`
		Limit int              `json:"limit"`
	}
	decode(t, w, &list)
	if list.Total != 1 || list.Page != 1 || list.Limit != 20 || len(list.Items) != 1 {
		t.Fatalf("list = %+v", list)
	}
	if _, ok := list.Items[0]["content"]; ok {
		t.Fatal("list item carries content")
	}
	if list.Items[0]["summary_date"] != "2026-03-10" {
		t.Fatalf("list item = %v", list.Items[0])
	}

	if w := api.do(http.MethodGet, "/api/summaries/9999", member, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing summary = %d", w.Code)
	}
	if w := api.do(http.MethodGet, "/api/summaries/abc", member, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d", w.Code)
	}
	if w := api.do(http.MethodGet, "/api/summaries?limit=0", member, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("limit=0 = %d", w.Code)
	}
	if w := api.do(http.MethodGet, "/api/summaries?limit=101", member, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("limit=101 = %d", w.Code)
	}
	if w := api.do(http.MethodGet, "/api/summaries?page=0", member, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("page=0 = %d", w.Code)
	}
}

func TestIncidentEndpoints(t *testing.T) {
	api := newTestAPI(t)
	admin := api.admin()
	member := api.member("m@example.com")

	w := api.do(http.MethodPost, "/api/incidents", member, gin.H{"title": "api down", "description": "500s", "severity": "critical"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body)
	}
	var in model.Incident
	decode(t, w, &in)

	if w := api.do(http.MethodPost, "/api/incidents", member, gin.H{"title": "x", "description": "y", "severity": "apocalyptic"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad severity = %d", w.Code)
	}

	path := "/api/incidents/" + strconv.Itoa(in.ID)
	w = api.do(http.MethodPatch, path+"/status", member, gin.H{"status": "resolved"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"resolved_at":"`) {
		t.Fatalf("resolve = %d %s", w.Code, w.Body)
	}

	if w := api.do(http.MethodDelete, path, member, nil); w.Code != http.StatusForbidden {
		t.Fatalf("member delete = %d", w.Code)
	}
	if w := api.do(http.MethodDelete, path, admin, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("delete unarchived = %d", w.Code)
	}
	if w := api.do(http.MethodPatch, path+"/archive", member, nil); w.Code != http.StatusOK {
		t.Fatalf("archive = %d", w.Code)
	}
	if w := api.do(http.MethodDelete, path, admin, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d %s", w.Code, w.Body)
	}
	if w := api.do(http.MethodGet, path, member, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get deleted = %d", w.Code)
	}
}

func TestDecisionEndpoints(t *testing.T) {
	api := newTestAPI(t)
	owner := api.member("owner@example.com")
	other := api.member("other@example.com")

	w := api.do(http.MethodPost, "/api/decisions", owner, gin.H{
		"title": "Adopt gin", "description": "d", "context": "c", "outcome": "o",
		"decision_date": "2026-03-01", "tags": []string{"backend"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), `"decision_date":"2026-03-01"`) {
		t.Fatalf("decision_date not rendered as a date: %s", w.Body)
	}
	var d struct {
		ID int `json:"id"`
	}
	decode(t, w, &d)
	path := "/api/decisions/" + strconv.Itoa(d.ID)

	if w := api.do(http.MethodPatch, path, other, gin.H{"title": "mine now"}); w.Code != http.StatusForbidden {
		t.Fatalf("other update = %d", w.Code)
	}
	if w := api.do(http.MethodPatch, path, owner, gin.H{"title": "Adopt gin v1"}); w.Code != http.StatusOK {
		t.Fatalf("owner update = %d %s", w.Code, w.Body)
	}

	w = api.do(http.MethodGet, path+"/audit", other, nil)
	var audit struct {
		Items []model.DecisionAuditLog `json:"items"`
	}
	decode(t, w, &audit)
	if len(audit.Items) != 2 || audit.Items[0].ChangeType != model.AuditUpdated {
		t.Fatalf("audit = %+v", audit.Items)
	}

	if w := api.do(http.MethodGet, "/api/decisions?tag=backend", other, nil); !strings.Contains(w.Body.String(), `"total":1`) {
		t.Fatalf("tag filter = %s", w.Body)
	}
	if w := api.do(http.MethodDelete, path, owner, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
}
