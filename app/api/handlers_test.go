package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"mediakeep/app/downloader"
	"mediakeep/app/scraper"
	"mediakeep/app/storage"
	"mediakeep/app/tasks"
	"mediakeep/app/validator"
	"mediakeep/app/ytdlp"
)

func newTestServer(t *testing.T, apiAccessKey string) (*gin.Engine, *Handler, *storage.Store) {
	t.Helper()

	dataDir := t.TempDir()
	store, err := storage.Open(dataDir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	yt := ytdlp.NewRunner("yt-dlp", "", "")
	mediaDir := filepath.Join(dataDir, "media")
	thumbsDir := filepath.Join(dataDir, "thumbnails")
	dl := downloader.New(yt, http.DefaultClient, mediaDir, thumbsDir)
	v := validator.New(http.DefaultClient, validator.DefaultOptions())
	registry := scraper.NewRegistry()
	tracker := tasks.NewTracker()
	runner := tasks.NewRunner(store, v, registry, dl, tracker)
	t.Cleanup(runner.Stop)

	handler := NewHandler(store, runner, dl, yt, ScanSettings{
		SourceDir:   t.TempDir(),
		FilePattern: "*.md",
		Recursive:   true,
	}, "test")

	return NewServer(handler, apiAccessKey, mediaDir, thumbsDir), handler, store
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var decoded map[string]any
	json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

func TestHealthEndpoint(t *testing.T) {
	engine, _, _ := newTestServer(t, "")

	w, body := doJSON(t, engine, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	engine, _, _ := newTestServer(t, "")

	w, _ := doJSON(t, engine, http.MethodGet, "/api/records/nope00000000", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListAndUpdateRecords(t *testing.T) {
	engine, _, store := newTestServer(t, "")

	record := &storage.Record{
		ID:       "aaa111bbb222",
		URL:      "https://www.instagram.com/p/X",
		Platform: "instagram",
		Status:   storage.StatusAccessible,
		Author:   "anna",
	}
	if err := store.Save(record); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	w, body := doJSON(t, engine, http.MethodGet, "/api/records?platform=instagram", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["total"].(float64) != 1 {
		t.Errorf("expected total 1, got %v", body["total"])
	}

	w, body = doJSON(t, engine, http.MethodPut, "/api/records/aaa111bbb222/tags", `{"tags":["cooking"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, body)
	}

	updated, err := store.Get("aaa111bbb222")
	if err != nil || updated == nil {
		t.Fatalf("failed to reload record: %v", err)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "cooking" {
		t.Errorf("tags not persisted: %v", updated.Tags)
	}
}

func TestDeleteRecord(t *testing.T) {
	engine, _, store := newTestServer(t, "")

	if err := store.Save(&storage.Record{ID: "ccc333ddd444", URL: "u", Platform: "threads", Status: storage.StatusPending}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	w, _ := doJSON(t, engine, http.MethodDelete, "/api/records/ccc333ddd444", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if store.Exists("ccc333ddd444") {
		t.Errorf("record should be gone")
	}

	w, _ = doJSON(t, engine, http.MethodDelete, "/api/records/ccc333ddd444", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestScanCreatesPendingRecords(t *testing.T) {
	engine, handler, store := newTestServer(t, "")

	note := "A reel\nhttps://www.instagram.com/reel/SCANME/?igsh=abc\n"
	handler.mu.Lock()
	sourceDir := handler.scan.SourceDir
	handler.mu.Unlock()
	if err := os.WriteFile(filepath.Join(sourceDir, "note.md"), []byte(note), 0644); err != nil {
		t.Fatalf("failed to write note: %v", err)
	}

	w, body := doJSON(t, engine, http.MethodPost, "/api/scan", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, body)
	}
	if body["new_records"].(float64) != 1 {
		t.Errorf("expected 1 new record, got %v", body["new_records"])
	}
	if store.Count() != 1 {
		t.Errorf("expected 1 stored record, got %d", store.Count())
	}

	// second scan finds the same link already registered
	w, body = doJSON(t, engine, http.MethodPost, "/api/scan", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["new_records"].(float64) != 0 {
		t.Errorf("expected 0 new records on rescan, got %v", body["new_records"])
	}
}

func TestScanConflictsWithRunningTask(t *testing.T) {
	engine, handler, _ := newTestServer(t, "")

	if !handler.tracker.TryStart("scrape_metadata", 1) {
		t.Fatalf("failed to claim tracker")
	}
	defer handler.tracker.Finish("")

	w, _ := doJSON(t, engine, http.MethodPost, "/api/scan", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while a task runs, got %d", w.Code)
	}
}

func TestTaskStatusDrainsRecent(t *testing.T) {
	engine, handler, _ := newTestServer(t, "")

	handler.tracker.TryStart("scrape_metadata", 1)
	handler.tracker.PushRecent(tasks.RecentResult{ID: "abc"})

	_, body := doJSON(t, engine, http.MethodGet, "/api/tasks/status", "")
	recent, _ := body["recent"].([]any)
	if len(recent) != 1 {
		t.Fatalf("expected 1 recent result, got %v", body["recent"])
	}

	_, body = doJSON(t, engine, http.MethodGet, "/api/tasks/status", "")
	if recent, _ := body["recent"].([]any); len(recent) != 0 {
		t.Errorf("expected drained recent buffer, got %v", body["recent"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	engine, _, _ := newTestServer(t, "secret")

	w, _ := doJSON(t, engine, http.MethodGet, "/api/records", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/records", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/records", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with bearer token, got %d", rec.Code)
	}

	// health stays open
	w, _ = doJSON(t, engine, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected open health endpoint, got %d", w.Code)
	}
}

func TestUpdateConfig(t *testing.T) {
	engine, handler, _ := newTestServer(t, "")

	w, body := doJSON(t, engine, http.MethodPut, "/api/config", `{"source_dir":"/tmp/other","cookies_from_browser":"chrome"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, body)
	}
	if body["source_dir"] != "/tmp/other" {
		t.Errorf("source_dir not updated: %v", body)
	}
	if fromBrowser, _ := handler.ytdlp.Cookies(); fromBrowser != "chrome" {
		t.Errorf("cookie setting not applied")
	}
}
