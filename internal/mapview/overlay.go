package mapview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/stwalsh4118/parcelbook/internal/client"
	"github.com/stwalsh4118/parcelbook/internal/logger"
	"github.com/stwalsh4118/parcelbook/internal/models"
)

// ErrDetailsNotFound means the detail lookup returned nothing for the parcel.
var ErrDetailsNotFound = errors.New("property details not found")

// API is the server surface the overlay depends on. *client.Client implements it.
type API interface {
	Details(ctx context.Context, ids []int64) (map[int64]models.Property, error)
	NextNumber(ctx context.Context, countyID int64, reserved []string) (string, error)
	Save(ctx context.Context, propertyID int64) (*client.SaveOutcome, error)
	Unsave(ctx context.Context, propertyID int64) error
	Saved(ctx context.Context, county string, includeDetails bool) ([]models.SavedProperty, error)
}

// RenderedFeature is one parcel ready to draw.
type RenderedFeature struct {
	Geometry orb.Geometry `json:"-"`
	PropID   string       `json:"propId"`
	Label    string       `json:"label"`
	Style    Style        `json:"style"`
	Anchor   orb.Point    `json:"anchor"`
	ID       int64        `json:"id"`
	Selected bool         `json:"selected"`
	Saved    bool         `json:"saved"`
}

// SaveAllResult summarizes SaveAll.
type SaveAllResult struct {
	Message      string
	Saved        int
	AlreadySaved int
	Failed       int
}

// OK reports whether every save succeeded.
func (r SaveAllResult) OK() bool {
	return r.Failed == 0 && r.Saved+r.AlreadySaved > 0
}

// Overlay mediates clicks, saves and styling over the shared Store.
// Every mutating call applies its state change first and undoes it when the
// server call fails.
type Overlay struct {
	store *Store
	api   API
	log   *logger.Logger
}

// NewOverlay creates an overlay over store.
func NewOverlay(store *Store, api API, log *logger.Logger) *Overlay {
	return &Overlay{store: store, api: api, log: log.WithComponent("overlay")}
}

// Store returns the underlying state container.
func (o *Overlay) Store() *Store {
	return o.store
}

// Toggle flips the selection of a parcel. Selecting fetches details (unless
// cached) and a session display number; if either fails the parcel is
// deselected again and the error returned. It reports the resulting state.
func (o *Overlay) Toggle(ctx context.Context, id int64) (bool, error) {
	if o.store.IsSelected(id) {
		o.store.Deselect(id)
		return false, nil
	}

	o.store.Select(id)

	detail, err := o.detail(ctx, id)
	if err != nil {
		o.rollbackSelect(id, err)
		return false, err
	}

	if err := o.assignTemp(ctx, id, detail); err != nil {
		o.rollbackSelect(id, err)
		return false, err
	}

	return o.store.IsSelected(id), nil
}

func (o *Overlay) rollbackSelect(id int64, err error) {
	o.store.Deselect(id)
	o.log.Warn("Selection rolled back", map[string]interface{}{
		"property_id": id,
		"error":       err.Error(),
	})
}

func (o *Overlay) detail(ctx context.Context, id int64) (models.Property, error) {
	if p, ok := o.store.Detail(id); ok {
		return p, nil
	}

	found, err := o.api.Details(ctx, []int64{id})
	if err != nil {
		return models.Property{}, fmt.Errorf("failed to fetch details for %d: %w", id, err)
	}
	p, ok := found[id]
	if !ok {
		return models.Property{}, fmt.Errorf("%w: %d", ErrDetailsNotFound, id)
	}
	o.store.SetDetail(p)
	return p, nil
}

// assignTemp gives a selected, unsaved parcel a session number. An existing
// number is kept so the label does not change while selected.
func (o *Overlay) assignTemp(ctx context.Context, id int64, p models.Property) error {
	if o.store.IsSaved(id) || p.CountyID == nil {
		return nil
	}
	if _, ok := o.store.TempNumber(id); ok {
		return nil
	}

	number, err := o.api.NextNumber(ctx, *p.CountyID, o.store.TempNumbers(id))
	if err != nil {
		return fmt.Errorf("failed to get a display number for %d: %w", id, err)
	}
	if o.store.IsSelected(id) {
		o.store.SetTemp(id, number)
	}
	return nil
}

// Save persists a parcel. The saved set is updated before the call and
// restored if it fails. On success the server's display number replaces the
// session number.
func (o *Overlay) Save(ctx context.Context, id int64) (*client.SaveOutcome, error) {
	prev, wasSaved := o.store.SavedNumber(id)
	if !wasSaved {
		o.store.SetSaved(id, "")
	}

	out, err := o.api.Save(ctx, id)
	if err != nil {
		if wasSaved {
			o.store.SetSaved(id, prev)
		} else {
			o.store.RemoveSaved(id)
		}
		o.log.Warn("Save rolled back", map[string]interface{}{
			"property_id": id,
			"error":       err.Error(),
		})
		return nil, err
	}

	o.store.SetSaved(id, out.Saved.DisplayNumber())
	o.store.DropTemp(id)
	return out, nil
}

// Unsave deletes a saved parcel. A parcel the server does not know as saved
// counts as unsaved.
func (o *Overlay) Unsave(ctx context.Context, id int64) error {
	prev, wasSaved := o.store.SavedNumber(id)
	o.store.RemoveSaved(id)

	err := o.api.Unsave(ctx, id)
	if err == nil || errors.Is(err, client.ErrNotFound) {
		return nil
	}

	if wasSaved {
		o.store.SetSaved(id, prev)
	}
	o.log.Warn("Unsave rolled back", map[string]interface{}{
		"property_id": id,
		"error":       err.Error(),
	})
	return err
}

// SaveAll saves ids one after another and summarizes the outcome.
func (o *Overlay) SaveAll(ctx context.Context, ids []int64) SaveAllResult {
	var res SaveAllResult
	if len(ids) == 0 {
		res.Message = "No properties to save"
		return res
	}

	for _, id := range ids {
		out, err := o.Save(ctx, id)
		switch {
		case err != nil:
			res.Failed++
		case out.AlreadySaved:
			res.AlreadySaved++
		default:
			res.Saved++
		}
	}

	switch {
	case res.Failed > 0:
		res.Message = fmt.Sprintf("%d saved, %d failed", res.Saved, res.Failed)
	case res.AlreadySaved == len(ids):
		res.Message = "All properties were already saved"
	case res.Saved > 0 && res.AlreadySaved > 0:
		res.Message = fmt.Sprintf("%d properties saved, %d were already saved", res.Saved, res.AlreadySaved)
	default:
		res.Message = fmt.Sprintf("%d properties saved successfully", res.Saved)
	}
	return res
}

// SyncSaved replaces the saved set with the server's list for a county.
func (o *Overlay) SyncSaved(ctx context.Context, county string) error {
	saved, err := o.api.Saved(ctx, county, false)
	if err != nil {
		return fmt.Errorf("failed to list saved properties: %w", err)
	}

	numbers := make(map[int64]string, len(saved))
	for i := range saved {
		numbers[saved[i].PropertyID] = saved[i].DisplayNumber()
	}
	o.store.ReplaceSaved(numbers)
	return nil
}

// Reset clears the session state for a county change.
func (o *Overlay) Reset() {
	o.store.ClearSession()
}

// Render styles and labels every feature of fc. Features without a usable id are skipped.
func (o *Overlay) Render(fc *geojson.FeatureCollection) []RenderedFeature {
	if fc == nil {
		return []RenderedFeature{}
	}

	st := o.store.snapshot()
	out := make([]RenderedFeature, 0, len(fc.Features))
	for _, f := range fc.Features {
		id, ok := FeatureID(f)
		if !ok {
			continue
		}
		savedNumber, saved := st.saved[id]
		_, selected := st.selected[id]
		propID := f.Properties.MustString(models.FeatureKeyPropID, "")

		rf := RenderedFeature{
			ID:       id,
			PropID:   propID,
			Geometry: f.Geometry,
			Selected: selected,
			Saved:    saved,
			Style:    StyleFor(selected, saved),
			Label:    LabelFor(savedNumber, st.temp[id], propID),
		}
		if f.Geometry != nil {
			rf.Anchor, _ = planar.CentroidArea(f.Geometry)
		}
		out = append(out, rf)
	}
	return out
}

// FeatureID reads the integer id property of a feature. Decoded JSON
// numbers arrive as float64; features built in-process carry int64.
func FeatureID(f *geojson.Feature) (int64, bool) {
	switch v := f.Properties[models.FeatureKeyID].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		id, err := v.Int64()
		return id, err == nil
	default:
		return 0, false
	}
}
