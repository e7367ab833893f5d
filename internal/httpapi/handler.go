package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/capture"
	nerrors "github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/errors"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/state"
)

// #region dto
type ingestResponse struct {
	SequenceID int       `json:"sequenceId"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type nudgeList struct {
	Nudges []state.Nudge `json:"nudges"`
}

type batchView struct {
	ID             string    `json:"batchId"`
	Timestamp      time.Time `json:"timestamp"`
	RawEntryCount  int       `json:"rawEntryCount"`
	TimespanMs     int64     `json:"timespanMs"`
	StructuredText string    `json:"structuredText"`
}

type errorResponse struct {
	Code  nerrors.ErrorCode `json:"code"`
	Error string            `json:"error"`
}

// #endregion dto

// #region handler
// Handler serves the capture and nudge endpoints for one session.
type Handler struct {
	pipeline Pipeline
	logger   *zap.Logger
}

// NewHandler creates a handler around p.
func NewHandler(p Pipeline, logger *zap.Logger) *Handler {
	return &Handler{pipeline: p, logger: logger}
}

// Ingest accepts one capture record.
func (h *Handler) Ingest(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.fail(c, nerrors.NewInvalidRequest("unreadable body"))
		return
	}
	rec, err := capture.ParseRecord(body)
	if err != nil {
		h.logger.Warn("invalid capture record", zap.Error(err))
		h.fail(c, nerrors.NewInvalidRequest(err.Error()))
		return
	}
	e := h.pipeline.Ingest(rec)
	c.JSON(http.StatusAccepted, ingestResponse{SequenceID: e.SequenceID, ReceivedAt: e.ReceivedAt})
}

// Manual asks for a nudge now, bypassing the cooldown.
func (h *Handler) Manual(c *gin.Context) {
	n, err := h.pipeline.TriggerManual(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

// ListNudges returns the retained nudge history, oldest first.
func (h *Handler) ListNudges(c *gin.Context) {
	nudges := h.pipeline.Nudges()
	if nudges == nil {
		nudges = []state.Nudge{}
	}
	c.JSON(http.StatusOK, nudgeList{Nudges: nudges})
}

// ListBatches returns the retained batches, oldest first.
func (h *Handler) ListBatches(c *gin.Context) {
	batches := h.pipeline.Batches()
	out := make([]batchView, 0, len(batches))
	for _, b := range batches {
		out = append(out, batchView{
			ID:             b.ID,
			Timestamp:      b.Timestamp,
			RawEntryCount:  b.RawEntryCount,
			TimespanMs:     b.Timespan.Milliseconds(),
			StructuredText: b.StructuredText,
		})
	}
	c.JSON(http.StatusOK, gin.H{"batches": out})
}

// State returns the session snapshot.
func (h *Handler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.pipeline.Snapshot())
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := nerrors.StatusOf(err)
	code := nerrors.ErrInternal
	msg := "internal error"
	var ne *nerrors.NudgeError
	if errors.As(err, &ne) {
		code, msg = ne.Code, ne.Message
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, errorResponse{Code: code, Error: msg})
}

// #endregion handler
