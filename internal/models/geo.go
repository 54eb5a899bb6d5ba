package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/golang/geo/s2"

	appErrors "github.com/orbitalworks/imagery-api/pkg/errors"
)

// AOIKind identifies how the area of interest was drawn on the map.
type AOIKind string

const (
	AOIPolygon   AOIKind = "polygon"
	AOIRectangle AOIKind = "rectangle"
	AOICircle    AOIKind = "circle"
)

// ParseAOIKind validates a raw AOI kind value.
func ParseAOIKind(raw string) (AOIKind, error) {
	switch AOIKind(raw) {
	case AOIPolygon, AOIRectangle, AOICircle:
		return AOIKind(raw), nil
	}
	return "", appErrors.Clone(appErrors.ErrInvalidGeometry, fmt.Sprintf("unknown aoi type %q", raw))
}

// GeoPoint is a geographic coordinate in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeoRing is a closed ring of coordinates stored as JSONB.
type GeoRing []GeoPoint

// Value implements driver.Valuer for JSONB storage.
func (r GeoRing) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *GeoRing) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	}
	return fmt.Errorf("cannot scan %T into GeoRing", src)
}

// Bounds is the bounding envelope of a ring, used for display only.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// GeoAOI is a validated, immutable area-of-interest footprint. The area is
// client-derived at submission time and stored as-is; the server never
// recomputes it.
type GeoAOI struct {
	Kind    AOIKind
	Ring    GeoRing
	AreaKm2 float64
	Center  GeoPoint
}

// NewGeoAOI validates and constructs an area of interest. The ring must be
// closed (first and last point identical), contain at least three distinct
// vertices and every coordinate must lie within geographic bounds.
func NewGeoAOI(kind AOIKind, ring []GeoPoint, areaKm2 float64, center GeoPoint) (*GeoAOI, error) {
	if _, err := ParseAOIKind(string(kind)); err != nil {
		return nil, err
	}
	if len(ring) < 4 {
		return nil, appErrors.Clone(appErrors.ErrInvalidGeometry, "ring must contain at least 4 points (3 vertices plus closure)")
	}
	if ring[0] != ring[len(ring)-1] {
		return nil, appErrors.Clone(appErrors.ErrInvalidGeometry, "ring must be closed: first and last points must match")
	}
	if distinctVertices(ring) < 3 {
		return nil, appErrors.Clone(appErrors.ErrInvalidGeometry, "ring must contain at least 3 distinct vertices")
	}
	for i, p := range ring {
		if !validCoordinate(p) {
			return nil, appErrors.Clone(appErrors.ErrInvalidGeometry, fmt.Sprintf("ring point %d out of geographic bounds", i))
		}
	}
	if areaKm2 <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidGeometry, "area must be a positive number")
	}
	if !validCoordinate(center) {
		return nil, appErrors.Clone(appErrors.ErrInvalidGeometry, "center out of geographic bounds")
	}

	return &GeoAOI{Kind: kind, Ring: append(GeoRing(nil), ring...), AreaKm2: areaKm2, Center: center}, nil
}

// BoundingBox computes the bounding envelope of the ring.
func (a *GeoAOI) BoundingBox() Bounds {
	rect := s2.EmptyRect()
	for _, p := range a.Ring {
		rect = rect.AddPoint(s2.LatLngFromDegrees(p.Lat, p.Lng))
	}
	return Bounds{
		North: rect.Hi().Lat.Degrees(),
		South: rect.Lo().Lat.Degrees(),
		East:  rect.Hi().Lng.Degrees(),
		West:  rect.Lo().Lng.Degrees(),
	}
}

// CenterWithinBounds reports whether the stored center falls inside the
// ring's bounding envelope. Sanity check only, never a hard precondition.
func (a *GeoAOI) CenterWithinBounds() bool {
	rect := s2.EmptyRect()
	for _, p := range a.Ring {
		rect = rect.AddPoint(s2.LatLngFromDegrees(p.Lat, p.Lng))
	}
	return rect.ContainsLatLng(s2.LatLngFromDegrees(a.Center.Lat, a.Center.Lng))
}

func distinctVertices(ring []GeoPoint) int {
	seen := make(map[GeoPoint]struct{}, len(ring))
	for _, p := range ring[:len(ring)-1] {
		seen[p] = struct{}{}
	}
	return len(seen)
}

func validCoordinate(p GeoPoint) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
