// Package mapview is a headless map session: it turns zoom and pan events
// into zoom-filtered parcel views, and tracks which parcels are selected and
// saved.
package mapview

import (
	"context"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stwalsh4118/parcelbook/internal/logger"
	"github.com/stwalsh4118/parcelbook/internal/parcelcache"
)

// State is the boundary layer state.
type State int

// Boundary layer states.
const (
	StateOff State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Viewport is the map camera and layer toggles.
type Viewport struct {
	Center     orb.Point
	Zoom       int
	Boundaries bool
	Labels     bool
}

// View is what a renderer draws. Features is empty unless State is StateReady.
type View struct {
	Collection *geojson.FeatureCollection
	CountyKey  string
	Features   []RenderedFeature
	Viewport   Viewport
	State      State
	Seq        uint64
}

// Renderer receives views. Calls are serialized and never made while the
// controller holds its lock; an older view is never delivered after a newer one.
type Renderer func(View)

// Options configure a Controller.
type Options struct {
	Renderer Renderer
	Center   orb.Point
	Zoom     int
	Debounce time.Duration
}

// Controller drives one map session over a parcel cache.
type Controller struct {
	cache     *parcelcache.Cache
	overlay   *Overlay
	debouncer *Debouncer
	render    Renderer
	log       *logger.Logger

	county string
	vp     Viewport
	mu     sync.Mutex
	state  State
	gen    uint64
	seq    uint64

	renderMu  sync.Mutex
	delivered uint64
}

// NewController creates a controller for county with boundaries off. overlay may be nil.
func NewController(cache *parcelcache.Cache, overlay *Overlay, county string, opts Options, log *logger.Logger) *Controller {
	return &Controller{
		cache:     cache,
		overlay:   overlay,
		debouncer: NewDebouncer(opts.Debounce),
		render:    opts.Renderer,
		log:       log.WithComponent("viewport"),
		county:    county,
		vp:        Viewport{Center: opts.Center, Zoom: opts.Zoom},
		state:     StateOff,
	}
}

// ToggleBoundaries shows or hides the boundary layer. Turning it on loads the
// county through the cache (a cached county is not fetched again) and blocks
// until the load settles. Turning it off takes effect at once; a load still in
// flight is ignored when it returns. A failed load leaves the layer off.
func (c *Controller) ToggleBoundaries(ctx context.Context, on bool) error {
	if !on {
		c.mu.Lock()
		c.gen++
		c.state = StateOff
		c.vp.Boundaries = false
		view := c.viewLocked()
		c.mu.Unlock()

		c.deliver(view)
		return nil
	}

	c.mu.Lock()
	if c.state != StateOff {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen
	county := c.county
	c.state = StateLoading
	c.vp.Boundaries = true
	view := c.viewLocked()
	c.mu.Unlock()
	c.deliver(view)

	_, err := c.cache.Load(ctx, county)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.log.Debug("Discarded superseded boundary load", map[string]interface{}{"county": county})
		return nil
	}
	if err != nil {
		c.state = StateOff
		c.vp.Boundaries = false
		view = c.viewLocked()
		c.mu.Unlock()

		c.deliver(view)
		c.log.Warn("Boundary load failed", map[string]interface{}{
			"county": county,
			"error":  err.Error(),
		})
		return err
	}
	c.state = StateReady
	view = c.viewLocked()
	c.mu.Unlock()

	c.deliver(view)
	return nil
}

// ZoomEnd records a finished zoom gesture and recomputes the view at once.
func (c *Controller) ZoomEnd(zoom int) {
	c.mu.Lock()
	c.vp.Zoom = zoom
	view := c.viewLocked()
	c.mu.Unlock()

	c.deliver(view)
}

// MoveEnd records a finished pan. The recompute waits for the debounce
// window; bursts of moves produce one recompute with the last position.
func (c *Controller) MoveEnd(center orb.Point, zoom int) {
	c.mu.Lock()
	c.vp.Center = center
	c.vp.Zoom = zoom
	c.mu.Unlock()

	c.debouncer.Trigger(c.Refresh)
}

// FlushMoves runs a pending debounced recompute now.
func (c *Controller) FlushMoves() bool {
	return c.debouncer.Flush()
}

// Refresh recomputes and delivers the current view.
func (c *Controller) Refresh() {
	c.mu.Lock()
	view := c.viewLocked()
	c.mu.Unlock()

	c.deliver(view)
}

// SetLabels toggles parcel labels.
func (c *Controller) SetLabels(on bool) {
	c.mu.Lock()
	c.vp.Labels = on
	view := c.viewLocked()
	c.mu.Unlock()

	c.deliver(view)
}

// ChangeCounty switches the session to another county: the old county's
// cache entry is dropped, the boundary layer turns off and the selection is
// cleared.
func (c *Controller) ChangeCounty(county string) {
	c.mu.Lock()
	if county == c.county {
		c.mu.Unlock()
		return
	}
	old := c.county
	c.gen++
	c.county = county
	c.state = StateOff
	c.vp.Boundaries = false
	c.cache.Invalidate(old)
	view := c.viewLocked()
	c.mu.Unlock()

	if c.overlay != nil {
		c.overlay.Reset()
	}
	c.log.Info("County changed", map[string]interface{}{"from": old, "to": county})
	c.deliver(view)
}

// County returns the active county key.
func (c *Controller) County() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.county
}

// State returns the boundary layer state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Viewport returns the current camera and toggles.
func (c *Controller) Viewport() Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vp
}

// Close stops the debouncer. Pending recomputes are dropped.
func (c *Controller) Close() {
	c.debouncer.Stop()
}

func (c *Controller) viewLocked() View {
	c.seq++
	view := View{
		CountyKey: c.county,
		Viewport:  c.vp,
		State:     c.state,
		Seq:       c.seq,
	}
	if c.state == StateReady {
		view.Collection = c.cache.FilterForZoom(c.county, c.vp.Zoom)
	} else {
		view.Collection = geojson.NewFeatureCollection()
	}
	return view
}

func (c *Controller) deliver(view View) {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	if view.Seq <= c.delivered {
		return
	}
	c.delivered = view.Seq

	if c.overlay != nil {
		view.Features = c.overlay.Render(view.Collection)
	} else {
		view.Features = []RenderedFeature{}
	}
	if c.render != nil {
		c.render(view)
	}
}
