package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbitalworks/imagery-api/internal/dto"
	"github.com/orbitalworks/imagery-api/internal/models"
	"github.com/orbitalworks/imagery-api/internal/repository"
	appErrors "github.com/orbitalworks/imagery-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type requestRepository interface {
	Create(ctx context.Context, req *models.ImageryRequest) error
	FindByID(ctx context.Context, id string, scope repository.Scope) (*models.ImageryRequest, error)
	List(ctx context.Context, filter models.RequestFilter, scope repository.Scope) ([]models.ImageryRequest, int, error)
	ListAll(ctx context.Context, filter models.RequestFilter, scope repository.Scope, maxRows int) ([]models.ImageryRequest, error)
	UpdateWithHistory(ctx context.Context, req *models.ImageryRequest, entry *models.StatusHistoryEntry) error
	Update(ctx context.Context, req *models.ImageryRequest) error
	CountByStatus(ctx context.Context) (map[string]int, error)
	CountByUrgency(ctx context.Context) (map[string]int, error)
}

type statusNotifier interface {
	NotifyStatusChange(event StatusChangedEvent)
}

// RequestService owns the imagery request lifecycle: submission validation,
// the status workflow and its audit trail, quoting, and listing.
type RequestService struct {
	repo      requestRepository
	notifier  statusNotifier
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRequestService creates an instance of RequestService.
func NewRequestService(repo requestRepository, notifier statusNotifier, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{repo: repo, notifier: notifier, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

func (s *RequestService) observeQuery(label string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

// Create validates a submission and persists it in the pending state.
// Registered identity is taken from the claims when present; otherwise the
// guest contact fields are required.
func (s *RequestService) Create(ctx context.Context, req dto.CreateImageryRequestRequest, claims *models.JWTClaims) (*models.ImageryRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid imagery request payload")
	}

	var requester models.Requester
	var err error
	if claims != nil {
		requester, err = models.RegisteredRequester(claims.UserID, claims.FullName, claims.Email)
	} else {
		requester, err = models.GuestRequester(req.FullName, req.Email, req.Company, req.Phone)
	}
	if err != nil {
		return nil, err
	}

	aoi, err := buildAOI(req)
	if err != nil {
		return nil, err
	}
	if !aoi.CenterWithinBounds() {
		// Sanity check only: the client-derived center is stored as-is.
		s.logger.Warn("aoi center outside ring bounding envelope",
			zap.Float64("lat", aoi.Center.Lat), zap.Float64("lng", aoi.Center.Lng))
	}

	startDate, endDate, err := parseDateRange(req.DateRange)
	if err != nil {
		return nil, err
	}

	urgency, err := models.ParseUrgency(req.Urgency)
	if err != nil {
		return nil, err
	}

	filters, err := buildFilters(req.Filters)
	if err != nil {
		return nil, err
	}

	record := &models.ImageryRequest{
		ID:                     uuid.NewString(),
		FullName:               requester.FullName,
		Email:                  requester.Email,
		AOIKind:                aoi.Kind,
		AOIRing:                aoi.Ring,
		AOIAreaKm2:             aoi.AreaKm2,
		AOICenterLat:           aoi.Center.Lat,
		AOICenterLng:           aoi.Center.Lng,
		StartDate:              startDate,
		EndDate:                endDate,
		Filters:                filters,
		Urgency:                urgency,
		AdditionalRequirements: req.AdditionalRequirements,
		Status:                 models.StatusPending,
	}
	switch requester.Kind {
	case models.RequesterRegistered:
		record.UserID = &requester.UserID
	case models.RequesterGuest:
		if requester.Company != "" {
			record.Company = &requester.Company
		}
		if requester.Phone != "" {
			record.Phone = &requester.Phone
		}
	}

	start := time.Now()
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create imagery request")
	}
	s.observeQuery("requests_insert", start)
	return record, nil
}

// Get returns a request by id, scoped to the caller. Non-admin callers only
// see their own records; a foreign record reads as not found.
func (s *RequestService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.ImageryRequest, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidID, "malformed request id")
	}

	cacheKey := requestCacheKey(id)
	var cached models.ImageryRequest
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		if !claims.IsAdmin() && !cached.OwnedBy(claims.UserID) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "imagery request not found")
		}
		return &cached, nil
	}

	start := time.Now()
	record, err := s.repo.FindByID(ctx, id, s.scopeFor(claims))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "imagery request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load imagery request")
	}
	s.observeQuery("requests_find", start)

	if err := s.cache.Set(ctx, cacheKey, record, 0); err != nil {
		s.logger.Debug("request cache set failed", zap.String("id", id), zap.Error(err))
	}
	return record, nil
}

// List returns paginated requests. Non-admin callers are always scoped to
// their own user id regardless of the supplied filter. Malformed pagination
// and sort inputs were already defaulted at the edge; clamping happens here.
func (s *RequestService) List(ctx context.Context, filter models.RequestFilter, claims *models.JWTClaims) ([]models.ImageryRequest, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	scope := s.scopeFor(claims)
	if scope.OwnerID != "" {
		filter.UserID = ""
	}

	filter.Page = clampPage(filter.Page)
	filter.Limit = clampLimit(filter.Limit)

	start := time.Now()
	requests, total, err := s.repo.List(ctx, filter, scope)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list imagery requests")
	}
	s.observeQuery("requests_list", start)

	return requests, models.NewPagination(total, filter.Page, filter.Limit), nil
}

// Cancel performs the user-initiated cancellation. Legal only while the
// request is still pending or in review; admins use Update instead.
func (s *RequestService) Cancel(ctx context.Context, id, reason string, claims *models.JWTClaims) (*models.ImageryRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidID, "malformed request id")
	}
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}

	record, err := s.repo.FindByID(ctx, id, repository.OwnedBy(claims.UserID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "imagery request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load imagery request")
	}

	if !record.Status.UserCancellable() {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition,
			fmt.Sprintf("cannot cancel a request in status %q; cancellation is allowed from %s",
				record.Status, statusList(models.UserCancellableStatuses())))
	}

	oldStatus := record.Status
	record.Status = models.StatusCancelled

	note := "Cancelled by user"
	if reason != "" {
		note = "Cancelled by user: " + reason
	}
	entry := &models.StatusHistoryEntry{
		RequestID: record.ID,
		Status:    models.StatusCancelled,
		Notes:     &note,
	}

	start := time.Now()
	if err := s.repo.UpdateWithHistory(ctx, record, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel imagery request")
	}
	s.observeQuery("requests_update", start)
	record.StatusHistory = append(record.StatusHistory, *entry)
	s.afterStatusChange(ctx, record, oldStatus)
	return record, nil
}

// Update applies an admin partial update: status transition, admin notes
// and/or quote. Every admin update stamps reviewed_at/reviewed_by. Setting
// the quote does not itself force a status transition.
func (s *RequestService) Update(ctx context.Context, id string, req dto.UpdateImageryRequestRequest, claims *models.JWTClaims) (*models.ImageryRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidID, "malformed request id")
	}
	if !claims.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	record, err := s.repo.FindByID(ctx, id, repository.ScopeAny)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "imagery request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load imagery request")
	}

	var newStatus *models.RequestStatus
	if req.Status != nil {
		parsed, err := models.ParseRequestStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		if parsed != record.Status {
			newStatus = &parsed
		}
	}

	if req.AdminNotes != nil {
		record.AdminNotes = *req.AdminNotes
	}
	if req.QuoteAmount != nil {
		if req.QuoteAmount.IsNegative() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "quote amount must not be negative")
		}
		amount := *req.QuoteAmount
		record.QuoteAmount = &amount
	}
	if req.QuoteCurrency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*req.QuoteCurrency))
		record.QuoteCurrency = &currency
	}

	now := time.Now().UTC()
	record.ReviewedAt = &now
	reviewedBy := claims.UserID
	record.ReviewedBy = &reviewedBy

	oldStatus := record.Status
	if newStatus == nil {
		start := time.Now()
		if err := s.repo.Update(ctx, record); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update imagery request")
		}
		s.observeQuery("requests_update", start)
		s.invalidate(ctx, record.ID)
		return record, nil
	}

	record.Status = *newStatus
	entry := &models.StatusHistoryEntry{
		RequestID: record.ID,
		Status:    *newStatus,
		ChangedBy: &reviewedBy,
		Notes:     req.StatusNotes,
	}
	start := time.Now()
	if err := s.repo.UpdateWithHistory(ctx, record, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update imagery request")
	}
	s.observeQuery("requests_update", start)
	record.StatusHistory = append(record.StatusHistory, *entry)
	s.afterStatusChange(ctx, record, oldStatus)
	return record, nil
}

// ListAll returns the unpaginated filtered set for export materialization.
func (s *RequestService) ListAll(ctx context.Context, filter models.RequestFilter, maxRows int) ([]models.ImageryRequest, error) {
	start := time.Now()
	requests, err := s.repo.ListAll(ctx, filter, repository.ScopeAny, maxRows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list imagery requests")
	}
	s.observeQuery("requests_export", start)
	return requests, nil
}

// Stats returns queue counts by status and urgency, cached briefly.
func (s *RequestService) Stats(ctx context.Context) (*dto.RequestStats, error) {
	const cacheKey = "imagery_requests:stats"
	var cached dto.RequestStats
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	start := time.Now()
	byStatus, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests by status")
	}
	byUrgency, err := s.repo.CountByUrgency(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests by urgency")
	}
	s.observeQuery("requests_stats", start)

	stats := &dto.RequestStats{ByStatus: byStatus, ByUrgency: byUrgency}
	for _, count := range byStatus {
		stats.Total += count
	}

	if err := s.cache.Set(ctx, cacheKey, stats, 0); err != nil {
		s.logger.Debug("stats cache set failed", zap.Error(err))
	}
	return stats, nil
}

// afterStatusChange runs the post-commit side effects: cache invalidation
// and the fire-and-forget notification. The persisted transition is final
// regardless of either outcome.
func (s *RequestService) afterStatusChange(ctx context.Context, record *models.ImageryRequest, oldStatus models.RequestStatus) {
	s.invalidate(ctx, record.ID)
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyStatusChange(StatusChangedEvent{
		RequestID: record.ID,
		Recipient: record.Email,
		OldStatus: oldStatus,
		NewStatus: record.Status,
		Snapshot:  *record,
	})
}

func (s *RequestService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, requestCacheKey(id)); err != nil {
		s.logger.Debug("request cache invalidate failed", zap.String("id", id), zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx, "imagery_requests:stats"); err != nil {
		s.logger.Debug("stats cache invalidate failed", zap.Error(err))
	}
}

func (s *RequestService) scopeFor(claims *models.JWTClaims) repository.Scope {
	if claims.IsAdmin() {
		return repository.ScopeAny
	}
	return repository.OwnedBy(claims.UserID)
}

func requestCacheKey(id string) string {
	return "imagery_request:" + id
}

func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func statusList(statuses []models.RequestStatus) string {
	parts := make([]string, len(statuses))
	for i, st := range statuses {
		parts[i] = string(st)
	}
	return strings.Join(parts, ", ")
}

func buildAOI(req dto.CreateImageryRequestRequest) (*models.GeoAOI, error) {
	ring := make([]models.GeoPoint, 0, len(req.AOICoordinates))
	for _, pair := range req.AOICoordinates {
		if len(pair) != 2 {
			return nil, appErrors.Clone(appErrors.ErrInvalidGeometry, "coordinates must be [lng, lat] pairs")
		}
		// GeoJSON order: longitude first.
		ring = append(ring, models.GeoPoint{Lat: pair[1], Lng: pair[0]})
	}
	center := models.GeoPoint{Lat: req.AOICenter.Lat, Lng: req.AOICenter.Lng}
	return models.NewGeoAOI(models.AOIKind(req.AOIType), ring, req.AOIAreaKm2, center)
}

func parseDateRange(payload dto.DateRangePayload) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, payload.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	end, err := time.Parse(dateLayout, payload.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "start date must not be after end date")
	}
	return start, end, nil
}

func buildFilters(payload *dto.RequestFiltersPayload) (*models.RequestFilters, error) {
	if payload == nil {
		return nil, nil
	}
	filters := &models.RequestFilters{
		MaxCloudCoveragePct: payload.MaxCloudCoveragePct,
		Providers:           payload.Providers,
		Bands:               payload.Bands,
		ImageTypes:          payload.ImageTypes,
	}
	for _, raw := range payload.ResolutionCategories {
		category, err := models.ParseResolutionCategory(raw)
		if err != nil {
			return nil, err
		}
		filters.ResolutionCategories = append(filters.ResolutionCategories, category)
	}
	if filters.Empty() {
		// Absence means unfiltered; never persist an empty spec.
		return nil, nil
	}
	return filters, nil
}
