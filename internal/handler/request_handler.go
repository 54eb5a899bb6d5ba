package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orbitalworks/imagery-api/internal/dto"
	"github.com/orbitalworks/imagery-api/internal/models"
	appErrors "github.com/orbitalworks/imagery-api/pkg/errors"
	"github.com/orbitalworks/imagery-api/pkg/response"
)

// RequestService is the lifecycle surface the user-facing handler consumes.
type RequestService interface {
	Create(ctx context.Context, req dto.CreateImageryRequestRequest, claims *models.JWTClaims) (*models.ImageryRequest, error)
	List(ctx context.Context, filter models.RequestFilter, claims *models.JWTClaims) ([]models.ImageryRequest, *models.Pagination, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.ImageryRequest, error)
	Cancel(ctx context.Context, id, reason string, claims *models.JWTClaims) (*models.ImageryRequest, error)
}

// RequestHandler handles the user-facing imagery request endpoints.
type RequestHandler struct {
	service RequestService
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(svc RequestService) *RequestHandler {
	return &RequestHandler{service: svc}
}

// Create godoc
// @Summary Submit imagery request
// @Description Submit a new imagery request. Guests must provide contact fields; authenticated users are identified by their token.
// @Tags Imagery Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateImageryRequestRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /imagery-requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	var req dto.CreateImageryRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	record, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, record)
}

// List godoc
// @Summary List own imagery requests
// @Description List the caller's imagery requests with pagination and filtering
// @Tags Imagery Requests
// @Produce json
// @Param status query string false "Status filter"
// @Param urgency query string false "Urgency filter"
// @Param date_from query string false "Created-at lower bound (YYYY-MM-DD)"
// @Param date_to query string false "Created-at upper bound (YYYY-MM-DD)"
// @Param sort query string false "Sort field"
// @Param order query string false "Sort order"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /imagery-requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	filter := parseRequestFilter(c, 20)

	requests, pagination, err := h.service.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get imagery request
// @Description Ownership-checked fetch of one imagery request
// @Tags Imagery Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /imagery-requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	aoi := record.AOI()
	meta := map[string]interface{}{"bounding_box": aoi.BoundingBox()}
	response.JSON(c, http.StatusOK, record, nil, meta)
}

// Cancel godoc
// @Summary Cancel imagery request
// @Description User-initiated cancellation, legal only from pending or reviewing
// @Tags Imagery Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.CancelImageryRequestRequest false "Cancellation payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /imagery-requests/{id}/cancel [post]
func (h *RequestHandler) Cancel(c *gin.Context) {
	var req dto.CancelImageryRequestRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}

	record, err := h.service.Cancel(c.Request.Context(), c.Param("id"), req.CancellationReason, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}
