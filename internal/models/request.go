package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	appErrors "github.com/orbitalworks/imagery-api/pkg/errors"
)

// RequestStatus is the single status enum shared by every layer.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusReviewing RequestStatus = "reviewing"
	StatusQuoted    RequestStatus = "quoted"
	StatusApproved  RequestStatus = "approved"
	StatusCompleted RequestStatus = "completed"
	StatusCancelled RequestStatus = "cancelled"
)

// AllStatuses enumerates the legal status values in lifecycle order.
var AllStatuses = []RequestStatus{
	StatusPending, StatusReviewing, StatusQuoted,
	StatusApproved, StatusCompleted, StatusCancelled,
}

// ParseRequestStatus validates a raw status value.
func ParseRequestStatus(raw string) (RequestStatus, error) {
	s := RequestStatus(raw)
	for _, known := range AllStatuses {
		if s == known {
			return s, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("unknown status %q", raw))
}

// Terminal reports whether the status ends the lifecycle.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// UserCancellable reports whether the owning user may still cancel.
func (s RequestStatus) UserCancellable() bool {
	return s == StatusPending || s == StatusReviewing
}

// UserCancellableStatuses lists the states a user-initiated cancel is legal from.
func UserCancellableStatuses() []RequestStatus {
	return []RequestStatus{StatusPending, StatusReviewing}
}

// Urgency is the requester-declared priority tier. Informational only, it
// never alters transition legality.
type Urgency string

const (
	UrgencyStandard  Urgency = "standard"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

// ParseUrgency validates a raw urgency value.
func ParseUrgency(raw string) (Urgency, error) {
	switch Urgency(raw) {
	case UrgencyStandard, UrgencyUrgent, UrgencyEmergency:
		return Urgency(raw), nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown urgency %q", raw))
}

// RequesterKind discriminates the identity path on a request.
type RequesterKind string

const (
	RequesterRegistered RequesterKind = "registered"
	RequesterGuest      RequesterKind = "guest"
)

// Requester is a tagged union: exactly one of the registered or guest paths
// is populated. Email is carried on both paths as the notification recipient.
type Requester struct {
	Kind     RequesterKind
	UserID   string
	FullName string
	Email    string
	Company  string
	Phone    string
}

// RegisteredRequester builds the identity of a logged-in submitter.
func RegisteredRequester(userID, fullName, email string) (Requester, error) {
	if userID == "" {
		return Requester{}, appErrors.Clone(appErrors.ErrValidation, "registered requester requires a user id")
	}
	if email == "" {
		return Requester{}, appErrors.Clone(appErrors.ErrValidation, "registered requester requires an email")
	}
	return Requester{Kind: RequesterRegistered, UserID: userID, FullName: fullName, Email: strings.ToLower(email)}, nil
}

// GuestRequester builds the identity of an anonymous submitter.
func GuestRequester(fullName, email, company, phone string) (Requester, error) {
	if fullName == "" || email == "" {
		return Requester{}, appErrors.Clone(appErrors.ErrValidation, "guest requester requires full name and email")
	}
	return Requester{Kind: RequesterGuest, FullName: fullName, Email: strings.ToLower(email), Company: company, Phone: phone}, nil
}

// ResolutionCategory buckets imagery by ground sample distance.
type ResolutionCategory string

const (
	ResolutionVHR    ResolutionCategory = "vhr"
	ResolutionHigh   ResolutionCategory = "high"
	ResolutionMedium ResolutionCategory = "medium"
	ResolutionLow    ResolutionCategory = "low"
)

// ParseResolutionCategory validates a raw resolution category.
func ParseResolutionCategory(raw string) (ResolutionCategory, error) {
	switch ResolutionCategory(raw) {
	case ResolutionVHR, ResolutionHigh, ResolutionMedium, ResolutionLow:
		return ResolutionCategory(raw), nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown resolution category %q", raw))
}

// RequestFilters is the optional filter criteria attached to a request.
// A field is present only when the submitter actively constrained it;
// absence means unfiltered, not "empty set".
type RequestFilters struct {
	ResolutionCategories []ResolutionCategory `json:"resolution_categories,omitempty"`
	MaxCloudCoveragePct  *int                 `json:"max_cloud_coverage_pct,omitempty"`
	Providers            []string             `json:"providers,omitempty"`
	Bands                []string             `json:"bands,omitempty"`
	ImageTypes           []string             `json:"image_types,omitempty"`
}

// Empty reports whether no constraint is present at all.
func (f *RequestFilters) Empty() bool {
	if f == nil {
		return true
	}
	return len(f.ResolutionCategories) == 0 && f.MaxCloudCoveragePct == nil &&
		len(f.Providers) == 0 && len(f.Bands) == 0 && len(f.ImageTypes) == 0
}

// Value implements driver.Valuer for JSONB storage.
func (f RequestFilters) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements sql.Scanner.
func (f *RequestFilters) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	}
	return fmt.Errorf("cannot scan %T into RequestFilters", src)
}

// StatusHistoryEntry is one row of the append-only audit trail.
type StatusHistoryEntry struct {
	ID        string        `db:"id" json:"id"`
	RequestID string        `db:"request_id" json:"-"`
	Status    RequestStatus `db:"status" json:"status"`
	ChangedAt time.Time     `db:"changed_at" json:"changed_at"`
	ChangedBy *string       `db:"changed_by" json:"changed_by,omitempty"`
	Notes     *string       `db:"notes" json:"notes,omitempty"`
}

// DateRange is the requested acquisition window.
type DateRange struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// ImageryRequest is the aggregate entity for one imagery order.
type ImageryRequest struct {
	ID string `db:"id" json:"id"`

	// Requester identity: user_id set for registered submitters, guest
	// contact fields otherwise. Exactly one path is populated.
	UserID   *string `db:"user_id" json:"user_id,omitempty"`
	FullName string  `db:"full_name" json:"full_name"`
	Email    string  `db:"email" json:"email"`
	Company  *string `db:"company" json:"company,omitempty"`
	Phone    *string `db:"phone" json:"phone,omitempty"`

	AOIKind      AOIKind `db:"aoi_kind" json:"aoi_kind"`
	AOIRing      GeoRing `db:"aoi_ring" json:"aoi_ring"`
	AOIAreaKm2   float64 `db:"aoi_area_km2" json:"aoi_area_km2"`
	AOICenterLat float64 `db:"aoi_center_lat" json:"aoi_center_lat"`
	AOICenterLng float64 `db:"aoi_center_lng" json:"aoi_center_lng"`

	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`

	Filters *RequestFilters `db:"filters" json:"filters,omitempty"`

	Urgency                Urgency `db:"urgency" json:"urgency"`
	AdditionalRequirements string  `db:"additional_requirements" json:"additional_requirements,omitempty"`

	Status        RequestStatus        `db:"status" json:"status"`
	StatusHistory []StatusHistoryEntry `db:"-" json:"status_history,omitempty"`

	AdminNotes    string           `db:"admin_notes" json:"admin_notes,omitempty"`
	QuoteAmount   *decimal.Decimal `db:"quote_amount" json:"quote_amount,omitempty"`
	QuoteCurrency *string          `db:"quote_currency" json:"quote_currency,omitempty"`

	ReviewedAt *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AOI reconstructs the validated footprint value from the flattened columns.
func (r *ImageryRequest) AOI() GeoAOI {
	return GeoAOI{
		Kind:    r.AOIKind,
		Ring:    r.AOIRing,
		AreaKm2: r.AOIAreaKm2,
		Center:  GeoPoint{Lat: r.AOICenterLat, Lng: r.AOICenterLng},
	}
}

// Requester reconstructs the identity union from the flattened columns.
func (r *ImageryRequest) Requester() Requester {
	if r.UserID != nil {
		return Requester{Kind: RequesterRegistered, UserID: *r.UserID, FullName: r.FullName, Email: r.Email}
	}
	req := Requester{Kind: RequesterGuest, FullName: r.FullName, Email: r.Email}
	if r.Company != nil {
		req.Company = *r.Company
	}
	if r.Phone != nil {
		req.Phone = *r.Phone
	}
	return req
}

// OwnedBy reports whether the record belongs to the given registered user.
func (r *ImageryRequest) OwnedBy(userID string) bool {
	return r.UserID != nil && *r.UserID == userID
}

// RequestFilter captures listing criteria for imagery requests.
type RequestFilter struct {
	Status    *RequestStatus
	Urgency   *Urgency
	UserID    string
	Email     string
	Provider  string
	DateFrom  *time.Time
	DateTo    *time.Time
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes the page count for an effective limit.
func NewPagination(total, page, limit int) *Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &Pagination{Total: total, Page: page, Limit: limit, TotalPages: totalPages}
}
