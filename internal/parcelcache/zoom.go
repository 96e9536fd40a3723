package parcelcache

import (
	"sort"

	"github.com/paulmach/orb/geojson"
)

// Tier caps how many features are drawn at zooms at or above MinZoom.
type Tier struct {
	MinZoom int
	Cap     int
}

// ZoomPolicy decides how much of a county's collection is drawn at a zoom level.
// At FullDetailZoom and above every feature is shown; below it the first
// matching tier caps the count. A zoom below every tier shows nothing.
type ZoomPolicy struct {
	FullDetailZoom int
	Tiers          []Tier
}

// DefaultZoomPolicy shows everything from zoom 8, 500 features from zoom 6
// and 200 below that.
func DefaultZoomPolicy() ZoomPolicy {
	return NewZoomPolicy(8, 6, 500, 200)
}

// NewZoomPolicy builds the two-tier policy used by the server and the session.
func NewZoomPolicy(fullDetailZoom, midZoom, midCap, lowCap int) ZoomPolicy {
	return ZoomPolicy{
		FullDetailZoom: fullDetailZoom,
		Tiers: []Tier{
			{MinZoom: midZoom, Cap: midCap},
			{MinZoom: 0, Cap: lowCap},
		},
	}
}

// Limit returns how many features to draw at zoom. all is true when the
// collection is drawn in full.
func (p ZoomPolicy) Limit(zoom int) (limit int, all bool) {
	if zoom >= p.FullDetailZoom {
		return 0, true
	}

	tiers := append([]Tier(nil), p.Tiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinZoom > tiers[j].MinZoom })
	for _, tier := range tiers {
		if zoom >= tier.MinZoom {
			if tier.Cap < 0 {
				return 0, false
			}
			return tier.Cap, false
		}
	}
	return 0, false
}

// Filter returns the features visible at zoom: the whole collection, or its
// first Limit(zoom) features. The input is never modified and the same
// arguments always give the same output.
func (p ZoomPolicy) Filter(fc *geojson.FeatureCollection, zoom int) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	if fc == nil {
		return out
	}

	limit, all := p.Limit(zoom)
	if all || limit >= len(fc.Features) {
		limit = len(fc.Features)
	}
	out.Features = fc.Features[:limit:limit]
	return out
}
