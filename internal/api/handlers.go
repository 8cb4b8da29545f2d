package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/RishiKendai/aegis-local/internal/corpus"
	"github.com/RishiKendai/aegis-local/internal/models"
	"github.com/RishiKendai/aegis-local/internal/plagiarism"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CheckQueue accepts checks for asynchronous scoring
type CheckQueue interface {
	Enqueue(ctx context.Context, submission *models.Submission) error
}

// StatusStore records and reads check progress
type StatusStore interface {
	UpdateStatus(ctx context.Context, checkID string, step models.Step) error
	GetStatus(ctx context.Context, checkID string) (models.Step, error)
}

// ReportReader reads persisted check reports
type ReportReader interface {
	GetReportByCheckID(ctx context.Context, checkID string) (*models.CheckReport, error)
	GetReportsBySubmissionID(ctx context.Context, submissionID string, limit int64) ([]*models.CheckReport, error)
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Handler holds dependencies for handlers
type Handler struct {
	detector     *plagiarism.Detector
	source       plagiarism.CorpusSource
	queue        CheckQueue
	status       StatusStore
	reports      ReportReader
	syncSem      chan struct{} // Semaphore for bounded synchronous scoring
	maxTextBytes int
}

// NewHandler creates a new handler
func NewHandler(deps Dependencies, maxConcurrentSync, maxTextBytes int) *Handler {
	return &Handler{
		detector:     plagiarism.NewDetector(deps.Corpus),
		source:       deps.Corpus,
		queue:        deps.Queue,
		status:       deps.Status,
		reports:      deps.Reports,
		syncSem:      make(chan struct{}, maxConcurrentSync),
		maxTextBytes: maxTextBytes,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// Score runs both local scorers synchronously
func (h *Handler) Score(c *gin.Context) {
	var req models.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if err := h.validateText(req.Text, true); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_TEXT",
		})
		return
	}

	ctx := c.Request.Context()

	select {
	case h.syncSem <- struct{}{}:
		defer func() { <-h.syncSem }()
	case <-ctx.Done():
		c.JSON(http.StatusRequestTimeout, ErrorResponse{
			Error: "Request cancelled",
			Code:  "REQUEST_TIMEOUT",
		})
		return
	}

	report, err := h.detector.Check(ctx, req.Text, nil)
	if err != nil {
		h.corpusError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// SubmitCheck queues a check and returns its id immediately
func (h *Handler) SubmitCheck(c *gin.Context) {
	var req models.CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if err := h.validateText(req.Text, false); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_TEXT",
		})
		return
	}

	ctx := c.Request.Context()
	submission := &models.Submission{
		CheckID:      uuid.NewString(),
		SubmissionID: req.SubmissionID,
		Text:         req.Text,
	}

	if err := h.status.UpdateStatus(ctx, submission.CheckID, models.StepQueued); err != nil {
		log.Warn().Err(err).Str("checkId", submission.CheckID).Msg("Failed to update queued status")
	}

	if err := h.queue.Enqueue(ctx, submission); err != nil {
		_ = c.Error(fmt.Errorf("enqueue check %s: %w", submission.CheckID, err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "Failed to queue check",
			Code:  "QUEUE_UNAVAILABLE",
		})
		return
	}

	c.JSON(http.StatusAccepted, models.CheckResponse{
		Step:    models.StepQueued,
		CheckID: submission.CheckID,
	})
}

// GetCheck returns the stored report, or the current step while pending
func (h *Handler) GetCheck(c *gin.Context) {
	checkID := c.Param("id")
	ctx := c.Request.Context()

	report, err := h.reports.GetReportByCheckID(ctx, checkID)
	if err != nil {
		_ = c.Error(fmt.Errorf("get report %s: %w", checkID, err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to get report",
			Code:  "INTERNAL_ERROR",
		})
		return
	}
	if report != nil {
		c.JSON(http.StatusOK, models.CheckResponse{
			Step:    report.Status,
			CheckID: checkID,
			Report:  report,
		})
		return
	}

	step, err := h.status.GetStatus(ctx, checkID)
	if errors.Is(err, plagiarism.ErrUnknownCheck) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "Check not found",
			Code:  "CHECK_NOT_FOUND",
		})
		return
	}
	if err != nil {
		_ = c.Error(fmt.Errorf("get status %s: %w", checkID, err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to get check status",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, models.CheckResponse{
		Step:    step,
		CheckID: checkID,
	})
}

// ListSubmissionChecks returns the newest reports stored for a submission
func (h *Handler) ListSubmissionChecks(c *gin.Context) {
	submissionID := c.Param("id")

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be a positive integer",
				Code:  "INVALID_REQUEST",
			})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	reports, err := h.reports.GetReportsBySubmissionID(c.Request.Context(), submissionID, int64(limit))
	if err != nil {
		_ = c.Error(fmt.Errorf("list reports for %s: %w", submissionID, err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to list reports",
			Code:  "INTERNAL_ERROR",
		})
		return
	}
	if reports == nil {
		reports = []*models.CheckReport{}
	}

	c.JSON(http.StatusOK, gin.H{
		"submissionId": submissionID,
		"reports":      reports,
	})
}

// ListCorpus lists the reference documents currently visible to the scorers
func (h *Handler) ListCorpus(c *gin.Context) {
	docs, err := h.source.Load(c.Request.Context())
	if err != nil {
		h.corpusError(c, err)
		return
	}

	entries := make([]models.CorpusEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, models.CorpusEntry{
			ID:    doc.ID,
			Chars: utf8.RuneCountInString(doc.Text),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": entries,
		"count":     len(entries),
	})
}

func (h *Handler) corpusError(c *gin.Context, err error) {
	if errors.Is(err, corpus.ErrStorageUnavailable) {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "Reference corpus unavailable",
			Code:  "CORPUS_UNAVAILABLE",
		})
		return
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: "Scoring failed",
		Code:  "INTERNAL_ERROR",
	})
}

func (h *Handler) validateText(text string, allowEmpty bool) error {
	if !allowEmpty && strings.TrimSpace(text) == "" {
		return fmt.Errorf("text is required")
	}
	if h.maxTextBytes > 0 && len(text) > h.maxTextBytes {
		return fmt.Errorf("text exceeds %d bytes", h.maxTextBytes)
	}
	return nil
}
