package dto

import (
	"github.com/shopspring/decimal"
)

// AOICenterPayload is the submitted AOI centroid.
type AOICenterPayload struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

// DateRangePayload is the requested acquisition window, ISO dates.
type DateRangePayload struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// RequestFiltersPayload carries the optional imagery filter criteria.
type RequestFiltersPayload struct {
	ResolutionCategories []string `json:"resolution_categories" validate:"omitempty,dive,oneof=vhr high medium low"`
	MaxCloudCoveragePct  *int     `json:"max_cloud_coverage_pct" validate:"omitempty,min=0,max=100"`
	Providers            []string `json:"providers" validate:"omitempty,dive,max=100"`
	Bands                []string `json:"bands" validate:"omitempty,dive,max=100"`
	ImageTypes           []string `json:"image_types" validate:"omitempty,max=1,dive,max=100"`
}

// CreateImageryRequestRequest is the submission payload. Guest contact
// fields are required only when the caller is unauthenticated; the service
// enforces that once the identity path is known.
type CreateImageryRequestRequest struct {
	FullName string `json:"full_name" validate:"omitempty,max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
	Company  string `json:"company" validate:"omitempty,max=200"`
	Phone    string `json:"phone" validate:"omitempty,max=50"`

	AOIType        string           `json:"aoi_type" validate:"required,oneof=polygon rectangle circle"`
	AOICoordinates [][]float64      `json:"aoi_coordinates" validate:"required,min=4,dive,len=2"`
	AOIAreaKm2     float64          `json:"aoi_area_km2" validate:"required,gt=0"`
	AOICenter      AOICenterPayload `json:"aoi_center" validate:"required"`

	DateRange DateRangePayload       `json:"date_range" validate:"required"`
	Filters   *RequestFiltersPayload `json:"filters" validate:"omitempty"`

	Urgency                string `json:"urgency" validate:"required,oneof=standard urgent emergency"`
	AdditionalRequirements string `json:"additional_requirements" validate:"omitempty,max=2000"`
}

// UpdateImageryRequestRequest is the admin-only partial update payload.
type UpdateImageryRequestRequest struct {
	Status        *string          `json:"status"`
	StatusNotes   *string          `json:"status_notes" validate:"omitempty,max=1000"`
	AdminNotes    *string          `json:"admin_notes" validate:"omitempty,max=5000"`
	QuoteAmount   *decimal.Decimal `json:"quote_amount"`
	QuoteCurrency *string          `json:"quote_currency" validate:"omitempty,len=3"`
}

// CancelImageryRequestRequest is the user-initiated cancellation payload.
type CancelImageryRequestRequest struct {
	CancellationReason string `json:"cancellation_reason" validate:"omitempty,max=500"`
}

// RequestStats summarizes the queue for the admin dashboard.
type RequestStats struct {
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	ByUrgency map[string]int `json:"by_urgency"`
}
