package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vitorsj/lawyerless/backend/model"
	"github.com/vitorsj/lawyerless/backend/service"
)

// AnalysisHandler exposes the contract-analysis API: submission, polling,
// result retrieval, deletion, listing and health.
type AnalysisHandler struct {
	store    service.Store
	hub      *service.Hub
	tracker  *service.Tracker
	pipeline *service.Pipeline
	archive  *service.ArchiveService // nil when archival is disabled

	maxFileSize   int64
	maxBatchFiles int
}

// NewAnalysisHandler wires the handler with its collaborators. archive may
// be nil.
func NewAnalysisHandler(store service.Store, hub *service.Hub, tracker *service.Tracker, pipeline *service.Pipeline, archive *service.ArchiveService, maxFileSize int64, maxBatchFiles int) *AnalysisHandler {
	return &AnalysisHandler{
		store:         store,
		hub:           hub,
		tracker:       tracker,
		pipeline:      pipeline,
		archive:       archive,
		maxFileSize:   maxFileSize,
		maxBatchFiles: maxBatchFiles,
	}
}

// documentID derives a process-unique ID from the content fingerprint, the
// submission time and a random suffix. The suffix keeps identical content
// submitted in the same second (the same file twice in one batch) from
// colliding on one job record.
func documentID(content []byte) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("doc_%d_%s_%s", time.Now().Unix(), hex.EncodeToString(sum[:])[:16], uuid.NewString()[:8])
}

// validateUpload checks extension and declared content type. It returns a
// zero status when the file is acceptable.
func validateUpload(header *multipart.FileHeader) (int, string) {
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		return http.StatusUnsupportedMediaType, "Only PDF files are allowed"
	}

	contentType := header.Header.Get("Content-Type")
	if contentType != "" &&
		contentType != "application/octet-stream" &&
		!strings.Contains(contentType, "pdf") {
		return http.StatusUnsupportedMediaType, "Unsupported content type: " + contentType
	}
	return 0, ""
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// accept registers the document, kicks off archival and the pipeline, and
// returns the initial pending snapshot.
func (h *AnalysisHandler) accept(filename string, content []byte, perspective string) model.AnalysisStatus {
	id := documentID(content)

	status := h.tracker.Create(id, model.StatusPending, 0,
		"Document received. Waiting for processing...")

	if h.archive != nil {
		archived := make([]byte, len(content))
		copy(archived, content)
		go h.archive.Archive(context.Background(), id, filename, archived)
	}

	h.pipeline.Launch(service.Submission{
		DocumentID:  id,
		Filename:    filename,
		Content:     content,
		Perspective: perspective,
	})
	return status
}

// Analyze handles a single contract upload and schedules its analysis.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	_, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}

	if code, msg := validateUpload(header); code != 0 {
		c.JSON(code, gin.H{"error": msg})
		return
	}

	perspective := c.DefaultPostForm("perspective", model.PerspectiveFounder)
	if !model.ValidPerspective(perspective) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Perspective must be 'founder' or 'investor'"})
		return
	}

	if header.Size > h.maxFileSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("File too large. Maximum allowed: %.1fMB", float64(h.maxFileSize)/(1024*1024)),
		})
		return
	}

	content, err := readUpload(header)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	if int64(len(content)) > h.maxFileSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("File too large. Maximum allowed: %.1fMB", float64(h.maxFileSize)/(1024*1024)),
		})
		return
	}

	status := h.accept(header.Filename, content, perspective)
	c.JSON(http.StatusAccepted, status)
}

// BatchAnalyze schedules several uploads in one request. A failing item
// never aborts the rest; the response reports every item in input order.
func (h *AnalysisHandler) BatchAnalyze(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files provided"})
		return
	}
	if len(files) > h.maxBatchFiles {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Maximum %d files per batch", h.maxBatchFiles),
		})
		return
	}

	perspective := model.PerspectiveFounder
	if values := form.Value["perspective"]; len(values) > 0 {
		perspective = values[0]
	}
	if !model.ValidPerspective(perspective) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Perspective must be 'founder' or 'investor'"})
		return
	}

	results := make([]gin.H, 0, len(files))
	for _, header := range files {
		if code, msg := validateUpload(header); code != 0 {
			results = append(results, gin.H{"filename": header.Filename, "error": msg})
			continue
		}
		if header.Size > h.maxFileSize {
			results = append(results, gin.H{
				"filename": header.Filename,
				"error":    fmt.Sprintf("File too large (max %.1fMB)", float64(h.maxFileSize)/(1024*1024)),
			})
			continue
		}
		content, err := readUpload(header)
		if err != nil {
			results = append(results, gin.H{"filename": header.Filename, "error": "Failed to read file"})
			continue
		}
		if int64(len(content)) > h.maxFileSize {
			results = append(results, gin.H{
				"filename": header.Filename,
				"error":    fmt.Sprintf("File too large (max %.1fMB)", float64(h.maxFileSize)/(1024*1024)),
			})
			continue
		}

		status := h.accept(header.Filename, content, perspective)
		results = append(results, gin.H{
			"filename":    header.Filename,
			"document_id": status.DocumentID,
			"status":      status.Status,
		})
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "total": len(results)})
}

// GetStatus returns the current snapshot for a document.
func (h *AnalysisHandler) GetStatus(c *gin.Context) {
	id := c.Param("id")

	status, err := h.store.GetStatus(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetResult returns the completed analysis. While the pipeline is still
// running it answers 202 with the current status so clients can tell "not
// ready" apart from "not found".
func (h *AnalysisHandler) GetResult(c *gin.Context) {
	id := c.Param("id")

	result, err := h.store.GetResult(id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
	case errors.Is(err, service.ErrNotReady):
		status, _ := h.store.GetStatus(id)
		c.JSON(http.StatusAccepted, gin.H{
			"error":  fmt.Sprintf("Analysis still in progress. Status: %s", status.Status),
			"status": status,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Analysis result not found"})
	}
}

// Delete removes the job and its result and force-closes any subscriber
// channels. Idempotent.
func (h *AnalysisHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	h.store.Delete(id)
	h.hub.CloseAll(id)

	c.JSON(http.StatusOK, gin.H{"message": "Analysis removed"})
}

// List returns every job's status snapshot, most recently updated first.
func (h *AnalysisHandler) List(c *gin.Context) {
	statuses := h.store.ListAll()
	c.JSON(http.StatusOK, gin.H{"analyses": statuses, "total": len(statuses)})
}

// Health reports service liveness plus active job and subscriber counts.
func (h *AnalysisHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":                "ok",
		"active_analyses":       h.store.Count(),
		"websocket_connections": h.hub.ConnectionCount(),
		"timestamp":             time.Now().Format(time.RFC3339),
	})
}
