package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/vitorsj/lawyerless/backend/config"
	"github.com/vitorsj/lawyerless/backend/model"
	"github.com/vitorsj/lawyerless/backend/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Stub collaborators so the pipeline completes instantly without touching
// a real PDF parser or LLM.
type stubProcessor struct{}

func (stubProcessor) Extract(ctx context.Context, content []byte, filename string) (*model.ExtractionResult, error) {
	return &model.ExtractionResult{
		Filename:  filename,
		PageCount: 1,
		Pages:     []model.PageText{{Number: 1, Text: "text"}},
		FullText:  "text",
	}, nil
}

type stubSegmenter struct{}

func (stubSegmenter) Segment(extraction *model.ExtractionResult) ([]model.Clause, error) {
	return []model.Clause{{Number: "1", Text: "clause"}}, nil
}

type stubExtractor struct{}

func (stubExtractor) ExtractSummary(ctx context.Context, extraction *model.ExtractionResult, clauses []model.Clause) (model.ContractSummary, error) {
	return model.ContractSummary{InstrumentType: "SAFE"}, nil
}

type stubAgent struct{}

func (stubAgent) AnalyzeClauses(ctx context.Context, extraction *model.ExtractionResult, clauses []model.Clause, summary model.ContractSummary, perspective string) ([]model.ClauseAnalysis, error) {
	return []model.ClauseAnalysis{{ClauseNumber: "1", RiskFlag: model.RiskGreen}}, nil
}

type testEnv struct {
	handler  *AnalysisHandler
	router   *gin.Engine
	store    service.Store
	hub      *service.Hub
	tracker  *service.Tracker
	pipeline *service.Pipeline
}

func newTestEnv(maxFileSize int64, maxBatchFiles int) *testEnv {
	store := service.NewMemoryStore(&config.StoreConfig{})
	hub := service.NewHub()
	tracker := service.NewTracker(store, hub)
	pipeline := service.NewPipeline(stubProcessor{}, stubSegmenter{}, stubExtractor{}, stubAgent{}, tracker, store)

	h := NewAnalysisHandler(store, hub, tracker, pipeline, nil, maxFileSize, maxBatchFiles)

	router := gin.New()
	router.GET("/health", h.Health)
	api := router.Group("/api")
	{
		api.POST("/analyze", h.Analyze)
		api.POST("/analyze/batch", h.BatchAnalyze)
		api.GET("/analysis", h.List)
		api.GET("/analysis/:id", h.GetResult)
		api.GET("/analysis/:id/status", h.GetStatus)
		api.DELETE("/analysis/:id", h.Delete)
		api.GET("/ws/:id", h.Subscribe)
	}

	return &testEnv{handler: h, router: router, store: store, hub: hub, tracker: tracker, pipeline: pipeline}
}

func multipartBody(t *testing.T, field string, files map[string][]byte, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		part.Write(content)
	}
	for key, value := range values {
		writer.WriteField(key, value)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestAnalyzeAccepted(t *testing.T) {
	env := newTestEnv(1024*1024, 10)

	body, contentType := multipartBody(t,
		"file", map[string][]byte{"contract.pdf": []byte("%PDF-1.4 test")}, nil)

	req := httptest.NewRequest("POST", "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	var status model.AnalysisStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if status.DocumentID == "" {
		t.Error("Expected a document ID")
	}
	if status.Status != model.StatusPending {
		t.Errorf("Expected pending status, got %s", status.Status)
	}

	// The background run completes and stores a result
	env.pipeline.Wait()

	final, err := env.store.GetStatus(status.DocumentID)
	if err != nil {
		t.Fatalf("Expected final status: %v", err)
	}
	if final.Status != model.StatusCompleted || final.Progress != 100 {
		t.Errorf("Unexpected final status: %+v", final)
	}
	if _, err := env.store.GetResult(status.DocumentID); err != nil {
		t.Errorf("Expected stored result: %v", err)
	}
}

func TestAnalyzeRejectsNonPDF(t *testing.T) {
	env := newTestEnv(1024*1024, 10)

	body, contentType := multipartBody(t,
		"file", map[string][]byte{"contract.docx": []byte("word doc")}, nil)

	req := httptest.NewRequest("POST", "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Expected status 415, got %d", w.Code)
	}
	if env.store.Count() != 0 {
		t.Error("Expected no job created for a rejected upload")
	}
}

func TestAnalyzeRejectsOversize(t *testing.T) {
	env := newTestEnv(16, 10)

	body, contentType := multipartBody(t,
		"file", map[string][]byte{"big.pdf": bytes.Repeat([]byte("x"), 64)}, nil)

	req := httptest.NewRequest("POST", "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", w.Code)
	}
	if env.store.Count() != 0 {
		t.Error("Expected no job created for an oversized upload")
	}
}

func TestAnalyzeRejectsBadPerspective(t *testing.T) {
	env := newTestEnv(1024*1024, 10)

	body, contentType := multipartBody(t,
		"file", map[string][]byte{"contract.pdf": []byte("%PDF-1.4")},
		map[string]string{"perspective": "lawyer"})

	req := httptest.NewRequest("POST", "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestAnalyzeNoFile(t *testing.T) {
	env := newTestEnv(1024*1024, 10)

	req := httptest.NewRequest("POST", "/api/analyze", bytes.NewBufferString(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestGetStatusNotFound(t *testing.T) {
	env := newTestEnv(1024*1024, 10)

	req := httptest.NewRequest("GET", "/api/analysis/doc_unknown/status", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestGetResultStates(t *testing.T) {
	env := newTestEnv(1024*1024, 10)

	// Unknown document
	req := httptest.NewRequest("GET", "/api/analysis/doc_unknown", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown document, got %d", w.Code)
	}

	// Still processing
	env.tracker.Create("doc_1", model.StatusProcessing, 30, "working")
	req = httptest.NewRequest("GET", "/api/analysis/doc_1", nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Errorf("Expected status 202 while processing, got %d", w.Code)
	}

	// Completed but result missing is a server error
	env.tracker.Advance("doc_1", model.StatusCompleted, 100, "done", "")
	req = httptest.NewRequest("GET", "/api/analysis/doc_1", nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500 for missing result, got %d", w.Code)
	}

	// Completed with result
	env.store.PutResult("doc_1", &model.ContractAnalysisResponse{DocumentID: "doc_1", Filename: "c.pdf"})
	req = httptest.NewRequest("GET", "/api/analysis/doc_1", nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var result model.ContractAnalysisResponse
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}
	if result.Filename != "c.pdf" {
		t.Errorf("Expected filename c.pdf, got %s", result.Filename)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	env := newTestEnv(1024*1024, 10)

	env.tracker.Create("doc_1", model.StatusCompleted, 100, "done")
	sub := env.hub.Subscribe("doc_1")

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("DELETE", "/api/analysis/doc_1", nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("Delete %d: expected status 200, got %d", i+1, w.Code)
		}
	}

	// Status gone, subscriber force-closed
	req := httptest.NewRequest("GET", "/api/analysis/doc_1/status", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", w.Code)
	}

	if _, ok := <-sub.Updates(); ok {
		t.Error("Expected subscriber channel closed after delete")
	}
}

func TestListOrdering(t *testing.T) {
	env := newTestEnv(1024*1024, 10)

	env.tracker.Create("doc_a", model.StatusCompleted, 100, "done")
	env.tracker.Create("doc_b", model.StatusProcessing, 50, "working")

	req := httptest.NewRequest("GET", "/api/analysis", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Analyses []model.AnalysisStatus `json:"analyses"`
		Total    int                    `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.Total != 2 {
		t.Fatalf("Expected 2 analyses, got %d", response.Total)
	}
	if response.Analyses[0].DocumentID != "doc_b" {
		t.Errorf("Expected most recent first, got %s", response.Analyses[0].DocumentID)
	}
}

func TestBatchPartialFailure(t *testing.T) {
	env := newTestEnv(32, 10)

	body, contentType := multipartBody(t, "files", map[string][]byte{
		"ok1.pdf": []byte("%PDF-1"),
		"big.pdf": bytes.Repeat([]byte("x"), 64),
		"ok2.pdf": []byte("%PDF-2"),
	}, nil)

	req := httptest.NewRequest("POST", "/api/analyze/batch", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response struct {
		Results []map[string]any `json:"results"`
		Total   int              `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.Total != 3 {
		t.Fatalf("Expected 3 results, got %d", response.Total)
	}

	scheduled, failed := 0, 0
	for _, item := range response.Results {
		if _, ok := item["document_id"]; ok {
			scheduled++
		}
		if _, ok := item["error"]; ok {
			failed++
		}
	}
	if scheduled != 2 || failed != 1 {
		t.Errorf("Expected 2 scheduled and 1 failed, got %d and %d", scheduled, failed)
	}

	// Only the scheduled jobs exist
	if env.store.Count() != 2 {
		t.Errorf("Expected 2 jobs in store, got %d", env.store.Count())
	}
}

func TestBatchDuplicateContentGetsDistinctJobs(t *testing.T) {
	env := newTestEnv(1024*1024, 10)

	// Same bytes under two names, submitted in the same second
	body, contentType := multipartBody(t, "files", map[string][]byte{
		"contract.pdf": []byte("%PDF-1.4 same"),
		"copy.pdf":     []byte("%PDF-1.4 same"),
	}, nil)

	req := httptest.NewRequest("POST", "/api/analyze/batch", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	ids := make(map[string]bool)
	for _, item := range response.Results {
		if id, ok := item["document_id"].(string); ok {
			ids[id] = true
		}
	}
	if len(ids) != 2 {
		t.Errorf("Expected 2 distinct document IDs, got %d", len(ids))
	}
	if env.store.Count() != 2 {
		t.Errorf("Expected 2 jobs in store, got %d", env.store.Count())
	}
}

func TestBatchTooManyFiles(t *testing.T) {
	env := newTestEnv(1024*1024, 2)

	body, contentType := multipartBody(t, "files", map[string][]byte{
		"a.pdf": []byte("%PDF"),
		"b.pdf": []byte("%PDF"),
		"c.pdf": []byte("%PDF"),
	}, nil)

	req := httptest.NewRequest("POST", "/api/analyze/batch", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if env.store.Count() != 0 {
		t.Error("Expected no jobs scheduled for an oversized batch")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(1024*1024, 10)

	env.tracker.Create("doc_1", model.StatusProcessing, 10, "working")
	env.hub.Subscribe("doc_1")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var health map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if health["status"] != "ok" {
		t.Errorf("Expected ok status, got %v", health["status"])
	}
	if health["active_analyses"].(float64) != 1 {
		t.Errorf("Expected 1 active analysis, got %v", health["active_analyses"])
	}
	if health["websocket_connections"].(float64) != 1 {
		t.Errorf("Expected 1 websocket connection, got %v", health["websocket_connections"])
	}
}
