package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	syncapp "github.com/tradeshelf/backend/internal/application/sync"
	"github.com/tradeshelf/backend/internal/infrastructure/scheduler"
	"github.com/tradeshelf/backend/internal/interfaces/http/dto"
)

// SyncRunner starts pipeline runs on demand. Implemented by the sync trigger.
type SyncRunner interface {
	TriggerSweep(ctx context.Context) (*syncapp.RunReport, error)
	TriggerRefresh(ctx context.Context, count int) (*syncapp.RunReport, error)
}

// ReportReader serves the most recent run report per kind.
type ReportReader interface {
	LatestReport(ctx context.Context, kind string) (*syncapp.RunReport, error)
}

// SyncHandler exposes the pipeline over HTTP: manual runs and run status
type SyncHandler struct {
	BaseHandler
	runner  SyncRunner
	reports ReportReader
	logger  *zap.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(runner SyncRunner, reports ReportReader, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		runner:  runner,
		reports: reports,
		logger:  logger,
	}
}

// RegisterRoutes registers sync routes on the given router group
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sync := rg.Group("/sync")
	{
		sync.POST("/run", h.Run)
		sync.POST("/refresh", h.Refresh)
		sync.GET("/status", h.Status)
	}
}

// Run executes a full sweep over every delta source and answers with the
// run report. The sweep runs synchronously; the response carries the
// finished report.
func (h *SyncHandler) Run(c *gin.Context) {
	report, err := h.runner.TriggerSweep(c.Request.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrRunInProgress) {
			h.Conflict(c, dto.ErrCodeRunInProgress, "a sync run is already in progress")
			return
		}
		h.logger.Error("sweep failed to start", zap.Error(err))
		h.InternalError(c, "failed to start sweep")
		return
	}

	h.Success(c, report)
}

// Refresh drains up to count queued identifiers through the pull
// processors. Count zero or absent means the server default; counts above
// the configured maximum are refused inside the run and reported as a
// failed report.
func (h *SyncHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.Error(c, dto.GetHTTPStatus(dto.ErrCodeInvalidJSON), dto.ErrCodeInvalidJSON, err.Error())
			return
		}
	}

	report, err := h.runner.TriggerRefresh(c.Request.Context(), req.Count)
	if err != nil {
		if errors.Is(err, scheduler.ErrRunInProgress) {
			h.Conflict(c, dto.ErrCodeRunInProgress, "a sync run is already in progress")
			return
		}
		h.logger.Error("refresh failed to start", zap.Error(err))
		h.InternalError(c, "failed to start refresh")
		return
	}

	h.Success(c, report)
}

// Status returns the most recent run report of the requested kind.
// Defaults to the sweep report.
func (h *SyncHandler) Status(c *gin.Context) {
	var query dto.StatusQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
		return
	}

	kind := query.Kind
	if kind == "" {
		kind = syncapp.KindSweep
	}

	report, err := h.reports.LatestReport(c.Request.Context(), kind)
	if err != nil {
		h.logger.Error("failed to read run report", zap.String("kind", kind), zap.Error(err))
		h.InternalError(c, "failed to read run report")
		return
	}
	if report == nil {
		h.NotFound(c, "no "+kind+" run recorded yet")
		return
	}

	h.Success(c, report)
}
