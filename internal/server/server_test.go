package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/balamir53/snackforge/internal/builder"
	"github.com/balamir53/snackforge/internal/chat"
	"github.com/balamir53/snackforge/internal/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

// fakeAI serves both the chat and builder workflows.
type fakeAI struct {
	fail bool
}

func (f *fakeAI) AskPrompt(_ context.Context, prompt string) (string, error) {
	if f.fail {
		return "", errors.New("provider down")
	}
	switch {
	case strings.Contains(prompt, "determine their intent"):
		return "greeting", nil
	case strings.Contains(prompt, "Design the architecture"):
		return `{"screens": [{"name": "HomeScreen", "purpose": "main", "components": ["Header"]}],
			"navigation": {"type": "stack", "routes": ["Home"]},
			"dependencies": [], "file_structure": {}}`, nil
	default:
		return "assistant reply", nil
	}
}

func (f *fakeAI) CleanJSONResponse(response string) string { return strings.TrimSpace(response) }

type fakeRunner struct{}

func (fakeRunner) Run(context.Context, string, ...string) (string, error) { return "ok", nil }

func newTestRouter(t *testing.T, ai *fakeAI) (*gin.Engine, *Server) {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	buildWF := builder.NewWorkflow(ai, t.TempDir())
	buildWF.SetRunner(fakeRunner{})

	srv := New(st, chat.NewWorkflow(ai), buildWF)
	return srv.Router(), srv
}

func do(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestRootAndHealth(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAI{})

	w := do(t, router, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET / = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/health", nil)
	if got := decode(t, w)["status"]; got != "healthy" {
		t.Fatalf("health status = %v", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAI{})
	w := do(t, router, http.MethodOptions, "/api/v1/items", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("OPTIONS = %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("CORS header missing")
	}
}

func TestUserLifecycle(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAI{})

	w := do(t, router, http.MethodPost, "/api/v1/users",
		map[string]any{"email": "ada@example.com", "full_name": "Ada", "password": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("create user = %d: %s", w.Code, w.Body.String())
	}
	created := decode(t, w)
	if _, leaked := created["hashed_password"]; leaked {
		t.Fatal("hashed password leaked in response")
	}
	id := int64(created["id"].(float64))

	w = do(t, router, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", id), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get user = %d", w.Code)
	}

	w = do(t, router, http.MethodPut, fmt.Sprintf("/api/v1/users/%d", id),
		map[string]any{"full_name": "Ada King"})
	if got := decode(t, w)["full_name"]; got != "Ada King" {
		t.Fatalf("update = %v", got)
	}

	w = do(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", id), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete user = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", id), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get deleted user = %d", w.Code)
	}
}

func TestUserValidation(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAI{})
	w := do(t, router, http.MethodPost, "/api/v1/users", map[string]any{"email": "no-name@example.com"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("create without required fields = %d", w.Code)
	}
}

func TestItemLifecycleAndPagination(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAI{})

	for i := 0; i < 3; i++ {
		w := do(t, router, http.MethodPost, "/api/v1/items",
			map[string]any{"title": fmt.Sprintf("item-%d", i), "owner_id": 1})
		if w.Code != http.StatusOK {
			t.Fatalf("create item = %d: %s", w.Code, w.Body.String())
		}
	}

	w := do(t, router, http.MethodGet, "/api/v1/items?skip=1&limit=1", nil)
	var page []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page) != 1 || page[0]["title"] != "item-1" {
		t.Fatalf("page = %v", page)
	}

	w = do(t, router, http.MethodGet, "/api/v1/items/999", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing item = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/api/v1/items/notanid", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d", w.Code)
	}
}

func TestChatAndConversationLifecycle(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAI{})

	w := do(t, router, http.MethodPost, "/api/v1/ai/chat", map[string]any{"message": "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("chat = %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["conversation_id"] != "default" || resp["workflow_state"] != "complete" {
		t.Fatalf("chat response = %v", resp)
	}

	w = do(t, router, http.MethodGet, "/api/v1/ai/conversations/default", nil)
	conv := decode(t, w)
	if msgs := conv["messages"].([]any); len(msgs) != 2 {
		t.Fatalf("messages = %v", msgs)
	}

	w = do(t, router, http.MethodDelete, "/api/v1/ai/conversations/default", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/api/v1/ai/conversations/default", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("cleared conversation = %d", w.Code)
	}
}

func TestTaskWorkflowEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAI{})

	w := do(t, router, http.MethodPost, "/api/v1/ai/workflow/task",
		map[string]any{"task": "summarize the report"})
	if w.Code != http.StatusOK {
		t.Fatalf("task = %d", w.Code)
	}
	resp := decode(t, w)
	if resp["status"] != "completed" {
		t.Fatalf("task response = %v", resp)
	}

	w = do(t, router, http.MethodPost, "/api/v1/ai/workflow/task", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("task without body = %d", w.Code)
	}
}

func TestAIHealth(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAI{})
	if got := decode(t, do(t, router, http.MethodGet, "/api/v1/ai/health", nil))["llm_connected"]; got != true {
		t.Fatalf("llm_connected = %v", got)
	}

	down, _ := newTestRouter(t, &fakeAI{fail: true})
	resp := decode(t, do(t, down, http.MethodGet, "/api/v1/ai/health", nil))
	if resp["status"] != "error" || resp["llm_connected"] != false {
		t.Fatalf("down health = %v", resp)
	}
}

func TestBuildAndProjectLifecycle(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAI{})

	w := do(t, router, http.MethodPost, "/api/v1/mobile/react-native/build",
		map[string]any{"app_description": "a notes app", "app_name": "Notes"})
	if w.Code != http.StatusOK {
		t.Fatalf("build = %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["status"] != "success" {
		t.Fatalf("build response = %v", resp)
	}
	projectID := resp["project_id"].(string)

	w = do(t, router, http.MethodGet, "/api/v1/mobile/react-native/projects/"+projectID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get project = %d", w.Code)
	}
	if got := decode(t, w)["app_name"]; got != "Notes" {
		t.Fatalf("project app_name = %v", got)
	}

	w = do(t, router, http.MethodDelete, "/api/v1/mobile/react-native/projects/"+projectID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete project = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/api/v1/mobile/react-native/projects/"+projectID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("deleted project = %d", w.Code)
	}
}

func TestBuildRequiresDescription(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAI{})
	w := do(t, router, http.MethodPost, "/api/v1/mobile/react-native/build", map[string]any{"app_name": "X"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("build without description = %d", w.Code)
	}
}

func TestMobileHealth(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAI{})
	resp := decode(t, do(t, router, http.MethodGet, "/api/v1/mobile/react-native/health", nil))
	if _, ok := resp["status"]; !ok {
		t.Fatalf("mobile health = %v", resp)
	}
	if resp["active_projects"] != float64(0) {
		t.Fatalf("active_projects = %v", resp["active_projects"])
	}
}
