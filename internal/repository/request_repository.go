package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/orbitalworks/imagery-api/internal/models"
)

// Scope bounds a read to an owner. The zero value is unscoped (admin).
type Scope struct {
	OwnerID string
}

// ScopeAny reads without an ownership bound.
var ScopeAny = Scope{}

// OwnedBy scopes reads to the given registered user.
func OwnedBy(userID string) Scope {
	return Scope{OwnerID: userID}
}

const requestColumns = `id, user_id, full_name, email, company, phone,
	aoi_kind, aoi_ring, aoi_area_km2, aoi_center_lat, aoi_center_lng,
	start_date, end_date, filters, urgency, additional_requirements,
	status, admin_notes, quote_amount, quote_currency,
	reviewed_at, reviewed_by, created_at, updated_at`

// Column whitelist for sorting. Keys cover both the documented camelCase
// wire values and their snake_case equivalents.
var requestSortColumns = map[string]string{
	"createdAt":  "created_at",
	"created_at": "created_at",
	"updatedAt":  "updated_at",
	"updated_at": "updated_at",
	"status":     "status",
	"urgency":    "urgency",
	"areaKm2":    "aoi_area_km2",
	"area_km2":   "aoi_area_km2",
	"fullName":   "full_name",
	"full_name":  "full_name",
	"email":      "email",
}

// RequestRepository provides database access for imagery requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository creates a new instance of RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request and seeds the initial pending history entry
// in the same transaction.
func (r *RequestRepository) Create(ctx context.Context, req *models.ImageryRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = models.StatusPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create request: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertRequest = `INSERT INTO imagery_requests (
		id, user_id, full_name, email, company, phone,
		aoi_kind, aoi_ring, aoi_area_km2, aoi_center_lat, aoi_center_lng,
		start_date, end_date, filters, urgency, additional_requirements,
		status, admin_notes, quote_amount, quote_currency,
		reviewed_at, reviewed_by, created_at, updated_at
	) VALUES (
		:id, :user_id, :full_name, :email, :company, :phone,
		:aoi_kind, :aoi_ring, :aoi_area_km2, :aoi_center_lat, :aoi_center_lng,
		:start_date, :end_date, :filters, :urgency, :additional_requirements,
		:status, :admin_notes, :quote_amount, :quote_currency,
		:reviewed_at, :reviewed_by, :created_at, :updated_at
	)`
	if _, err := tx.NamedExecContext(ctx, insertRequest, req); err != nil {
		return fmt.Errorf("create imagery request: %w", err)
	}

	seed := models.StatusHistoryEntry{
		ID:        uuid.NewString(),
		RequestID: req.ID,
		Status:    models.StatusPending,
		ChangedAt: req.CreatedAt,
	}
	const insertHistory = `INSERT INTO request_status_history (id, request_id, status, changed_at, changed_by, notes)
		VALUES (:id, :request_id, :status, :changed_at, :changed_by, :notes)`
	if _, err := tx.NamedExecContext(ctx, insertHistory, seed); err != nil {
		return fmt.Errorf("seed status history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create request: %w", err)
	}
	req.StatusHistory = []models.StatusHistoryEntry{seed}
	return nil
}

// FindByID returns a request with its history. A scoped lookup behaves like
// a miss when the record is not owned by the scope's user, so callers cannot
// distinguish absence from foreign ownership.
func (r *RequestRepository) FindByID(ctx context.Context, id string, scope Scope) (*models.ImageryRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM imagery_requests WHERE id = $1`, requestColumns)
	args := []interface{}{id}
	if scope.OwnerID != "" {
		query += ` AND user_id = $2`
		args = append(args, scope.OwnerID)
	}
	query += ` LIMIT 1`

	var req models.ImageryRequest
	if err := r.db.GetContext(ctx, &req, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find imagery request by id: %w", err)
	}

	history, err := r.ListHistory(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	req.StatusHistory = history
	return &req, nil
}

// List returns requests matching the filter with the total count.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter, scope Scope) ([]models.ImageryRequest, int, error) {
	baseQuery, args := buildRequestWhere(filter, scope)

	sortBy := requestSortColumns[filter.SortBy]
	if sortBy == "" {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}
	orderBy := fmt.Sprintf("%s %s", sortBy, sortOrder)
	if sortBy != "created_at" {
		// Deterministic ordering among ties.
		orderBy += ", created_at DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d", requestColumns, baseQuery, orderBy, limit, offset)

	var requests []models.ImageryRequest
	if err := r.db.SelectContext(ctx, &requests, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list imagery requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count imagery requests: %w", err)
	}

	return requests, total, nil
}

// ListAll returns every request matching the filter up to maxRows, for
// export materialization. No pagination is applied.
func (r *RequestRepository) ListAll(ctx context.Context, filter models.RequestFilter, scope Scope, maxRows int) ([]models.ImageryRequest, error) {
	baseQuery, args := buildRequestWhere(filter, scope)
	if maxRows <= 0 {
		maxRows = 10000
	}
	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d", requestColumns, baseQuery, maxRows)

	var requests []models.ImageryRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list imagery requests for export: %w", err)
	}
	return requests, nil
}

// Update writes the mutable fields, always re-stamping updated_at.
// Concurrent updates are last-write-wins; no version token is checked.
func (r *RequestRepository) Update(ctx context.Context, req *models.ImageryRequest) error {
	req.UpdatedAt = time.Now().UTC()
	const query = `UPDATE imagery_requests SET
		status = :status,
		admin_notes = :admin_notes,
		quote_amount = :quote_amount,
		quote_currency = :quote_currency,
		reviewed_at = :reviewed_at,
		reviewed_by = :reviewed_by,
		updated_at = :updated_at
	WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("update imagery request: %w", err)
	}
	return nil
}

// UpdateWithHistory writes the mutable fields and appends a history entry in
// one transaction, so a transition and its audit record land together.
func (r *RequestRepository) UpdateWithHistory(ctx context.Context, req *models.ImageryRequest, entry *models.StatusHistoryEntry) error {
	req.UpdatedAt = time.Now().UTC()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = req.UpdatedAt
	}
	entry.RequestID = req.ID

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update request: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const update = `UPDATE imagery_requests SET
		status = :status,
		admin_notes = :admin_notes,
		quote_amount = :quote_amount,
		quote_currency = :quote_currency,
		reviewed_at = :reviewed_at,
		reviewed_by = :reviewed_by,
		updated_at = :updated_at
	WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, update, req); err != nil {
		return fmt.Errorf("update imagery request: %w", err)
	}

	const insertHistory = `INSERT INTO request_status_history (id, request_id, status, changed_at, changed_by, notes)
		VALUES (:id, :request_id, :status, :changed_at, :changed_by, :notes)`
	if _, err := tx.NamedExecContext(ctx, insertHistory, entry); err != nil {
		return fmt.Errorf("append status history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update request: %w", err)
	}
	return nil
}

// ListHistory returns the audit trail for a request in change order.
func (r *RequestRepository) ListHistory(ctx context.Context, requestID string) ([]models.StatusHistoryEntry, error) {
	const query = `SELECT id, request_id, status, changed_at, changed_by, notes
		FROM request_status_history WHERE request_id = $1 ORDER BY changed_at ASC, id ASC`
	var history []models.StatusHistoryEntry
	if err := r.db.SelectContext(ctx, &history, query, requestID); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return history, nil
}

// CountByStatus returns request counts grouped by status.
func (r *RequestRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	const query = `SELECT status, COUNT(*) AS count FROM imagery_requests GROUP BY status`
	return r.countGrouped(ctx, query)
}

// CountByUrgency returns request counts grouped by urgency.
func (r *RequestRepository) CountByUrgency(ctx context.Context) (map[string]int, error) {
	const query = `SELECT urgency, COUNT(*) AS count FROM imagery_requests GROUP BY urgency`
	return r.countGrouped(ctx, query)
}

func (r *RequestRepository) countGrouped(ctx context.Context, query string) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count grouped requests: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan grouped count: %w", err)
		}
		counts[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grouped counts: %w", err)
	}
	return counts, nil
}

func buildRequestWhere(filter models.RequestFilter, scope Scope) (string, []interface{}) {
	baseQuery := `FROM imagery_requests WHERE 1=1`
	var conditions []string
	var args []interface{}

	if scope.OwnerID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, scope.OwnerID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Urgency != nil {
		conditions = append(conditions, fmt.Sprintf("urgency = $%d", len(args)+1))
		args = append(args, *filter.Urgency)
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Email != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(email) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Email)+"%")
	}
	if filter.Provider != "" {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements_text(filters->'providers') AS p WHERE p ILIKE $%d)", len(args)+1))
		args = append(args, "%"+filter.Provider+"%")
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}
	return baseQuery, args
}
