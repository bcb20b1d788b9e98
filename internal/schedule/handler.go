package schedule

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillbatch/backend/pkg/response"
)

// ScheduleBatchRequest is the body for POST /schedule-batch.
type ScheduleBatchRequest struct {
	CourseName             string  `json:"courseName"`
	BatchName              string  `json:"batchName"`
	StartDate              string  `json:"startDate"`
	EndDate                string  `json:"endDate"`
	SessionDaysOfWeek      []int   `json:"sessionDaysOfWeek"`
	SessionStartTime       string  `json:"sessionStartTime"`
	SessionDurationMinutes int     `json:"sessionDurationMinutes"`
	Timezone               string  `json:"timezone"`
	InstructorID           *string `json:"instructorId"`
}

// Handler handles the scheduling HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a schedule handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// ScheduleBatch handles POST /schedule-batch.
func (h *Handler) ScheduleBatch(c *gin.Context) {
	var req ScheduleBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.CourseName == "" || req.BatchName == "" || req.StartDate == "" || req.EndDate == "" {
		response.BadRequest(c, "missing required fields")
		return
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		response.BadRequest(c, "invalid startDate")
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		response.BadRequest(c, "invalid endDate")
		return
	}

	result, err := h.service.ScheduleBatch(c.Request.Context(), ScheduleBatchInput{
		CourseName:      req.CourseName,
		BatchName:       req.BatchName,
		StartDate:       startDate,
		EndDate:         endDate,
		DaysOfWeek:      req.SessionDaysOfWeek,
		StartTime:       req.SessionStartTime,
		DurationMinutes: req.SessionDurationMinutes,
		Timezone:        req.Timezone,
		InstructorID:    req.InstructorID,
	})
	if err != nil {
		if errors.Is(err, ErrMissingFields) {
			response.BadRequest(c, "missing required fields")
			return
		}
		h.logger.Error("schedule batch failed", zap.Error(err))
		response.Internal(c, "failed to schedule batch")
		return
	}
	response.OK(c, result)
}

// ListBatches handles GET /batches.
func (h *Handler) ListBatches(c *gin.Context) {
	list, err := h.service.ListBatches(c.Request.Context())
	if err != nil {
		h.logger.Error("list batches failed", zap.Error(err))
		response.Internal(c, "failed to list batches")
		return
	}
	response.OK(c, list)
}

// ListSessions handles GET /sessions/:batchId.
func (h *Handler) ListSessions(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		response.BadRequest(c, "invalid batch id")
		return
	}
	list, err := h.service.ListSessionsForBatch(c.Request.Context(), batchID)
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err), zap.String("batch_id", batchID.String()))
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, list)
}

// BackfillBatch handles POST /batches/:batchId/backfill.
func (h *Handler) BackfillBatch(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		response.BadRequest(c, "invalid batch id")
		return
	}
	enqueued, err := h.service.BackfillBatch(c.Request.Context(), batchID)
	if err != nil {
		if errors.Is(err, ErrBatchNotFound) {
			response.NotFound(c, "batch not found")
			return
		}
		h.logger.Error("backfill failed", zap.Error(err), zap.String("batch_id", batchID.String()))
		response.Internal(c, "failed to enqueue backfill")
		return
	}
	response.OK(c, gin.H{"enqueued": enqueued})
}
