package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orbitalworks/imagery-api/internal/dto"
	"github.com/orbitalworks/imagery-api/internal/models"
	appErrors "github.com/orbitalworks/imagery-api/pkg/errors"
	"github.com/orbitalworks/imagery-api/pkg/response"
)

// AdminRequestService is the triage surface the admin handler consumes.
type AdminRequestService interface {
	List(ctx context.Context, filter models.RequestFilter, claims *models.JWTClaims) ([]models.ImageryRequest, *models.Pagination, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.ImageryRequest, error)
	Update(ctx context.Context, id string, req dto.UpdateImageryRequestRequest, claims *models.JWTClaims) (*models.ImageryRequest, error)
	Stats(ctx context.Context) (*dto.RequestStats, error)
}

// RequestExporter materializes filtered requests as downloadable documents.
type RequestExporter interface {
	RenderListing(ctx context.Context, filter models.RequestFilter, format string) ([]byte, string, error)
	RenderQuotePDF(ctx context.Context, id string, claims *models.JWTClaims) ([]byte, string, error)
}

// AdminRequestHandler handles the admin triage endpoints.
type AdminRequestHandler struct {
	service AdminRequestService
	export  RequestExporter
}

// NewAdminRequestHandler creates a new admin request handler.
func NewAdminRequestHandler(svc AdminRequestService, exportSvc RequestExporter) *AdminRequestHandler {
	return &AdminRequestHandler{service: svc, export: exportSvc}
}

// List godoc
// @Summary List all imagery requests
// @Description Unscoped listing with pagination and filtering
// @Tags Admin
// @Produce json
// @Param status query string false "Status filter"
// @Param urgency query string false "Urgency filter"
// @Param user_id query string false "Owner filter"
// @Param email query string false "Email substring filter"
// @Param provider query string false "Provider substring filter"
// @Param date_from query string false "Created-at lower bound (YYYY-MM-DD)"
// @Param date_to query string false "Created-at upper bound (YYYY-MM-DD)"
// @Param sort query string false "Sort field"
// @Param order query string false "Sort order"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/imagery-requests [get]
func (h *AdminRequestHandler) List(c *gin.Context) {
	filter := parseRequestFilter(c, 50)

	requests, pagination, err := h.service.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get any imagery request
// @Tags Admin
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/imagery-requests/{id} [get]
func (h *AdminRequestHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	aoi := record.AOI()
	meta := map[string]interface{}{"bounding_box": aoi.BoundingBox()}
	response.JSON(c, http.StatusOK, record, nil, meta)
}

// Update godoc
// @Summary Update imagery request
// @Description Admin partial update of status, notes and quote. A status change appends to the audit trail and notifies the requester.
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.UpdateImageryRequestRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/imagery-requests/{id} [put]
func (h *AdminRequestHandler) Update(c *gin.Context) {
	var req dto.UpdateImageryRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	record, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Export godoc
// @Summary Export imagery requests
// @Description Materialization of the same filtered query as the listing, as CSV or PDF
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "Export format (csv or pdf)"
// @Success 200 {string} string "Export payload"
// @Router /admin/imagery-requests/export [get]
func (h *AdminRequestHandler) Export(c *gin.Context) {
	filter := parseRequestFilter(c, 50)
	format := c.DefaultQuery("format", "csv")

	payload, filename, err := h.export.RenderListing(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	contentType := "text/csv"
	if format == "pdf" {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

// QuotePDF godoc
// @Summary Download quote document
// @Description PDF quote summary for one imagery request
// @Tags Admin
// @Produce application/pdf
// @Param id path string true "Request ID"
// @Success 200 {string} string "PDF payload"
// @Router /admin/imagery-requests/{id}/quote.pdf [get]
func (h *AdminRequestHandler) QuotePDF(c *gin.Context) {
	payload, filename, err := h.export.RenderQuotePDF(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", payload)
}

// Stats godoc
// @Summary Imagery request queue stats
// @Description Counts by status and urgency
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/imagery-requests/stats [get]
func (h *AdminRequestHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}
