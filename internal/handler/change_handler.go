package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wave-alert-api/internal/middleware"
	"github.com/noah-isme/wave-alert-api/internal/models"
	appErrors "github.com/noah-isme/wave-alert-api/pkg/errors"
	"github.com/noah-isme/wave-alert-api/pkg/response"
)

const (
	defaultChangeWindow = 24 * time.Hour
	defaultChangeLimit  = 100
	maxChangeLimit      = 1000
)

type changeLister interface {
	ListSince(ctx context.Context, since time.Time, limit int) ([]models.ChangeRecord, error)
}

// ChangeHandler exposes the change-record audit log.
type ChangeHandler struct {
	changes changeLister
	now     func() time.Time
}

// NewChangeHandler builds a new handler.
func NewChangeHandler(changes changeLister) *ChangeHandler {
	return &ChangeHandler{changes: changes, now: time.Now}
}

// List godoc
// @Summary List detected session changes
// @Tags Changes
// @Produce json
// @Security TriggerSecret
// @Param since query string false "RFC3339 lower bound, defaults to 24h ago"
// @Param limit query int false "Maximum records" default(100)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /changes [get]
func (h *ChangeHandler) List(c *gin.Context) {
	since := h.now().Add(-defaultChangeWindow)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "since must be RFC3339"))
			return
		}
		since = parsed
	}

	limit := defaultChangeLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxChangeLimit {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be between 1 and 1000"))
			return
		}
		limit = parsed
	}

	records, err := h.changes.ListSince(c.Request.Context(), since, limit)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load changes"))
		return
	}
	middleware.SetMeta(c, "since", since.UTC().Format(time.RFC3339))
	middleware.SetMeta(c, "count", len(records))
	response.JSON(c, http.StatusOK, records, middleware.ExtractMeta(c))
}
