package reportgen

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/vocari/reports_backend/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func serve(t *testing.T, h gin.HandlerFunc, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST(path, h)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("response is not json: %v (%s)", err, w.Body.String())
		}
	}
	return w, out
}

func TestGenerateHandler(t *testing.T) {
	store := newFakeStore()
	store.add("r1", "esencial", models.ReportStatusGenerating)
	store.add("done", "esencial", models.ReportStatusReview)
	g := newTestGenerator(store, &fakeCompleter{answers: []completion{{text: fullReportJSON}}})
	h := GenerateHandler(g)

	w, out := serve(t, h, "/api/reports/generate", `{"reportId":"r1"}`, nil)
	if w.Code != http.StatusOK || out["ok"] != true || out["reportId"] != "r1" {
		t.Fatalf("expected ok, got %d %v", w.Code, out)
	}
	if _, ok := out["skipped"]; ok {
		t.Fatalf("fresh generation should not be marked skipped")
	}

	w, out = serve(t, h, "/api/reports/generate", `{"reportId":"done"}`, nil)
	if w.Code != http.StatusOK || out["skipped"] != true {
		t.Fatalf("expected skipped ack, got %d %v", w.Code, out)
	}

	w, out = serve(t, h, "/api/reports/generate", `{}`, nil)
	if w.Code != http.StatusBadRequest || out["ok"] != false || out["error"] != "Falta el reportId" {
		t.Fatalf("expected 400, got %d %v", w.Code, out)
	}

	w, out = serve(t, h, "/api/reports/generate", `{"reportId":"nope"}`, nil)
	if w.Code != http.StatusNotFound || out["error"] != "Informe no encontrado" {
		t.Fatalf("expected 404, got %d %v", w.Code, out)
	}

	store.getErr = errors.New("db down")
	w, out = serve(t, h, "/api/reports/generate", `{"reportId":"r1"}`, nil)
	if w.Code != http.StatusInternalServerError || out["ok"] != false {
		t.Fatalf("expected 500, got %d %v", w.Code, out)
	}
	if strings.Contains(fmt.Sprint(out["error"]), "db down") {
		t.Fatalf("internal detail leaked to client: %v", out["error"])
	}
}

func newIdempotencyDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.IdempotencyKey{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func pushBody(t *testing.T, messageID string, data []byte) string {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"message": map[string]interface{}{
			"data":      base64.StdEncoding.EncodeToString(data),
			"messageId": messageID,
		},
		"subscription": "projects/p/subscriptions/report-generation-push",
	})
	if err != nil {
		t.Fatalf("marshal push body: %v", err)
	}
	return string(body)
}

func TestPushHandlerGeneratesOncePerJob(t *testing.T) {
	store := newFakeStore()
	store.add("r1", "esencial", models.ReportStatusGenerating)
	llm := &fakeCompleter{answers: []completion{{text: fullReportJSON}}}
	h := PushHandler(newTestGenerator(store, llm), newIdempotencyDB(t))
	data, _ := json.Marshal(models.GenerationJobMessage{JobId: "job-1", ReportId: "r1"})

	w, _ := serve(t, h, "/pubsub/report-generation", pushBody(t, "pubsub-1", data), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected ack, got %d", w.Code)
	}
	w, _ = serve(t, h, "/pubsub/report-generation", pushBody(t, "pubsub-2", data), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected ack for redelivery, got %d", w.Code)
	}
	if len(llm.requests) != 1 || len(store.completed) != 1 {
		t.Fatalf("redelivered job must not regenerate: %d calls, %d completions", len(llm.requests), len(store.completed))
	}
}

func TestPushHandlerRetriesOnFailure(t *testing.T) {
	store := newFakeStore()
	store.add("r1", "esencial", models.ReportStatusGenerating)
	store.completeErr = []error{errors.New("db down"), errors.New("db down")}
	llm := &fakeCompleter{answers: []completion{{text: fullReportJSON}}}
	h := PushHandler(newTestGenerator(store, llm), newIdempotencyDB(t))
	data, _ := json.Marshal(models.GenerationJobMessage{JobId: "job-1", ReportId: "r1"})

	w, _ := serve(t, h, "/pubsub/report-generation", pushBody(t, "m1", data), nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so pubsub retries, got %d", w.Code)
	}
	w, _ = serve(t, h, "/pubsub/report-generation", pushBody(t, "m1", data), nil)
	if w.Code != http.StatusNoContent || len(store.completed) != 1 {
		t.Fatalf("retry should succeed, got %d with %d completions", w.Code, len(store.completed))
	}
}

func TestPushHandlerDropsMalformedMessages(t *testing.T) {
	store := newFakeStore()
	llm := &fakeCompleter{}
	h := PushHandler(newTestGenerator(store, llm), newIdempotencyDB(t))

	for name, body := range map[string]string{
		"not json":       `{"message":`,
		"bad payload":    pushBody(t, "m1", []byte("not json")),
		"missing report": pushBody(t, "m2", []byte(`{"jobId":"j"}`)),
		"unknown report": pushBody(t, "m3", []byte(`{"jobId":"j3","reportId":"ghost"}`)),
	} {
		w, _ := serve(t, h, "/pubsub/report-generation", body, nil)
		if w.Code != http.StatusNoContent {
			t.Fatalf("%s: expected ack, got %d", name, w.Code)
		}
	}
	if len(llm.requests) != 0 {
		t.Fatalf("no generation expected")
	}
}
