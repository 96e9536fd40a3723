package models

import (
	"github.com/paulmach/orb/geojson"
)

// Property is a county parcel record.
// Nullable attributes use pointers to distinguish between zero values and NULL.
type Property struct {
	OwnerName *string  `json:"ownerName"`
	SitusAddr *string  `json:"situsAddr"`
	MailAddr  *string  `json:"mailAddr"`
	LandValue *float64 `json:"landValue"`
	MktValue  *float64 `json:"mktValue"`
	GisArea   *float64 `json:"gisArea"`
	CountyID  *int64   `json:"countyId,omitempty"`
	Geometry  Boundary `json:"-"`
	PropID    string   `json:"propId"`
	County    string   `json:"county"`
	ID        int64    `json:"id"`
}

// Feature property keys shared by the boundaries endpoint and its consumers.
const (
	FeatureKeyID     = "id"
	FeatureKeyPropID = "propId"
)

// BoundaryFeature returns the lightweight map feature: geometry plus id and propId.
func (p *Property) BoundaryFeature() *geojson.Feature {
	f := geojson.NewFeature(p.Geometry.Geometry)
	f.Properties[FeatureKeyID] = p.ID
	f.Properties[FeatureKeyPropID] = p.PropID
	return f
}

// DetailFeature returns the feature with every owner and valuation attribute.
func (p *Property) DetailFeature() *geojson.Feature {
	f := p.BoundaryFeature()
	f.Properties["ownerName"] = p.OwnerName
	f.Properties["situsAddr"] = p.SitusAddr
	f.Properties["mailAddr"] = p.MailAddr
	f.Properties["landValue"] = p.LandValue
	f.Properties["mktValue"] = p.MktValue
	f.Properties["gisArea"] = p.GisArea
	return f
}

// StringValue dereferences an optional string.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// FloatValue dereferences an optional number, treating NULL as zero.
func FloatValue(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
