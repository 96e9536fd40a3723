package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Boundary is a parcel outline: an orb.Polygon or orb.MultiPolygon in WGS84
// (lon, lat) order. The properties table stores it as GeoJSON text.
type Boundary struct {
	Geometry orb.Geometry
}

// NewBoundary wraps a polygon or multipolygon.
func NewBoundary(g orb.Geometry) (Boundary, error) {
	if err := checkBoundaryType(g); err != nil {
		return Boundary{}, err
	}
	return Boundary{Geometry: g}, nil
}

func checkBoundaryType(g orb.Geometry) error {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return nil
	case nil:
		return fmt.Errorf("boundary geometry is empty")
	default:
		return fmt.Errorf("expected Polygon or MultiPolygon, got %s", g.GeoJSONType())
	}
}

// IsEmpty reports whether no geometry is set.
func (b Boundary) IsEmpty() bool {
	return b.Geometry == nil
}

// Scan implements sql.Scanner. The column holds GeoJSON as text or bytes.
func (b *Boundary) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		b.Geometry = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan Boundary: expected []byte or string, got %T", value)
	}

	return b.UnmarshalJSON(raw)
}

// Value implements driver.Valuer, writing GeoJSON text.
func (b Boundary) Value() (driver.Value, error) {
	if b.Geometry == nil {
		return nil, nil
	}
	data, err := b.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// MarshalJSON renders the boundary as a GeoJSON geometry object.
func (b Boundary) MarshalJSON() ([]byte, error) {
	if b.Geometry == nil {
		return []byte("null"), nil
	}
	data, err := geojson.NewGeometry(b.Geometry).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal boundary to GeoJSON: %w", err)
	}
	return data, nil
}

// UnmarshalJSON parses a GeoJSON geometry object.
func (b *Boundary) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		b.Geometry = nil
		return nil
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("failed to unmarshal boundary geometry: %w", err)
	}
	if head.Type != "Polygon" && head.Type != "MultiPolygon" {
		return fmt.Errorf("expected Polygon or MultiPolygon type, got %q", head.Type)
	}

	geom, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return fmt.Errorf("failed to unmarshal boundary geometry: %w", err)
	}
	b.Geometry = geom.Geometry()
	return nil
}

// Centroid returns the area-weighted centroid, used to anchor labels.
func (b Boundary) Centroid() orb.Point {
	if b.Geometry == nil {
		return orb.Point{}
	}
	c, _ := planar.CentroidArea(b.Geometry)
	return c
}

// Bound returns the bounding box.
func (b Boundary) Bound() orb.Bound {
	if b.Geometry == nil {
		return orb.Bound{}
	}
	return b.Geometry.Bound()
}
