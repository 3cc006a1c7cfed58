package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wave-alert-api/internal/dto"
	"github.com/noah-isme/wave-alert-api/internal/middleware"
	"github.com/noah-isme/wave-alert-api/internal/models"
	appErrors "github.com/noah-isme/wave-alert-api/pkg/errors"
	"github.com/noah-isme/wave-alert-api/pkg/response"
)

type reminderRunner interface {
	Run(ctx context.Context) (*dto.RunSummary, error)
}

type digestRunner interface {
	Run(ctx context.Context, digestType models.DigestType) (*dto.RunSummary, error)
}

type sessionRefresher interface {
	Refresh(ctx context.Context, req *dto.AcquisitionRequest) (*dto.RunSummary, error)
}

// TriggerHandler exposes the scheduler-facing engine entry points.
type TriggerHandler struct {
	reminders reminderRunner
	digests   digestRunner
	sync      sessionRefresher
}

// NewTriggerHandler builds a new handler.
func NewTriggerHandler(reminders reminderRunner, digests digestRunner, sync sessionRefresher) *TriggerHandler {
	return &TriggerHandler{reminders: reminders, digests: digests, sync: sync}
}

// Reminders godoc
// @Summary Run a lead-time reminder pass
// @Tags Triggers
// @Produce json
// @Security TriggerSecret
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /triggers/reminders [post]
func (h *TriggerHandler) Reminders(c *gin.Context) {
	summary, err := h.reminders.Run(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, middleware.ExtractMeta(c))
}

// Digest godoc
// @Summary Send the morning or evening digest
// @Tags Triggers
// @Produce json
// @Security TriggerSecret
// @Param type path string true "Digest type" Enums(morning, evening)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /triggers/digests/{type} [post]
func (h *TriggerHandler) Digest(c *gin.Context) {
	digestType := models.DigestType(c.Param("type"))
	if !digestType.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "digest type must be morning or evening"))
		return
	}

	summary, err := h.digests.Run(c.Request.Context(), digestType)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, middleware.ExtractMeta(c))
}

// Refresh godoc
// @Summary Apply a fresh schedule acquisition
// @Description An empty body pulls the acquisition from the configured schedule feed.
// @Tags Triggers
// @Accept json
// @Produce json
// @Security TriggerSecret
// @Param payload body dto.AcquisitionRequest false "Acquisition snapshot"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /triggers/refresh [post]
func (h *TriggerHandler) Refresh(c *gin.Context) {
	var req *dto.AcquisitionRequest
	var payload dto.AcquisitionRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		if !errors.Is(err, io.EOF) {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid acquisition payload"))
			return
		}
	} else {
		req = &payload
	}

	summary, err := h.sync.Refresh(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, middleware.ExtractMeta(c))
}
