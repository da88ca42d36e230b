package receipts

import (
	"net/http"

	"receipt_ingest_backend/platform/httpkit"
	"receipt_ingest_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	errInvalidRequest = "invalid request body"
	errValidation     = "validation error"
	errInvalidEventID = "invalid event ID"
)

// Handler handles receipt HTTP requests.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates a new receipts handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// HandleEnqueue accepts an inbound receipt payload.
// POST /api/v1/receipts
// Responds 202 on first acceptance, 200 when suppressed as a duplicate.
func (h *Handler) HandleEnqueue(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return
	}

	result, err := h.service.Enqueue(c.Request.Context(), req.toPayload())
	if httpkit.HandleError(c, err) {
		return
	}

	resp := EnqueueResponse{
		EventID:   result.ReceiptID,
		Duplicate: result.Duplicate,
		Status:    result.Status,
	}
	if result.Duplicate {
		httpkit.OK(c, resp)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// HandleGetStatus exposes the processing state of one receipt.
// GET /api/v1/receipts/:eventId
func (h *Handler) HandleGetStatus(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidEventID, nil)
		return
	}

	rec, err := h.service.GetStatus(c.Request.Context(), eventID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toStatusResponse(rec))
}
