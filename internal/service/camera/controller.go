// internal/service/camera/controller.go

package camera

import (
	"log"
	"sync"

	"mapaeleitoral/internal/domain/election"
	"mapaeleitoral/internal/service/render"
)

// Kind names a camera intent
type Kind string

const (
	KindFlyTo     Kind = "flyTo"
	KindFitBounds Kind = "fitBounds"
)

// Intent is a one-shot camera move. A higher Seq preempts any animation
// started for a lower one.
type Intent struct {
	Seq     uint64           `json:"seq"`
	Kind    Kind             `json:"kind"`
	Center  *election.LatLng `json:"center,omitempty"`
	Zoom    int              `json:"zoom,omitempty"`
	Bounds  *render.Box      `json:"bounds,omitempty"`
	Padding int              `json:"padding,omitempty"`
	MaxZoom int              `json:"maxZoom,omitempty"`
}

// Sink applies intents to the view
type Sink interface {
	ApplyCamera(intent Intent) error
}

// Config contains configuration for the camera controller
type Config struct {
	FlyToZoom  int
	FitPadding int
	FitMaxZoom int
}

// DefaultConfig returns the camera settings used by the map
func DefaultConfig() Config {
	return Config{
		FlyToZoom:  15,
		FitPadding: 50,
		FitMaxZoom: 12,
	}
}

// Controller owns the transient camera intents of one view.
//
// Intents are never queued: a new one replaces whatever is pending and
// preempts the animation in progress. An explicit FlyTo holds the camera
// so a later automatic FitBounds does not undo it until Release.
type Controller struct {
	cfg Config

	mu      sync.Mutex
	sink    Sink
	seq     uint64
	pending *Intent
	held    bool
}

// NewController creates a controller
func NewController(cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.FlyToZoom <= 0 {
		cfg.FlyToZoom = def.FlyToZoom
	}
	if cfg.FitMaxZoom <= 0 {
		cfg.FitMaxZoom = def.FitMaxZoom
	}
	return &Controller{cfg: cfg}
}

// Attach sets the sink intents are delivered to. A pending intent is
// delivered immediately. A nil sink keeps intents pending.
func (c *Controller) Attach(sink Sink) {
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()
	c.deliver()
}

// FlyTo centers the view on a coordinate. A zoom of zero uses the
// configured fly-to zoom.
func (c *Controller) FlyTo(pos election.LatLng, zoom int) Intent {
	if zoom <= 0 {
		zoom = c.cfg.FlyToZoom
	}
	return c.fly(pos, zoom)
}

// PanTo centers the view on a coordinate keeping the current zoom
func (c *Controller) PanTo(pos election.LatLng) Intent {
	return c.fly(pos, 0)
}

func (c *Controller) fly(pos election.LatLng, zoom int) Intent {
	c.mu.Lock()
	c.seq++
	center := pos
	intent := Intent{Seq: c.seq, Kind: KindFlyTo, Center: &center, Zoom: zoom}
	c.pending = &intent
	c.held = true
	c.mu.Unlock()

	c.deliver()
	return intent
}

// FitBounds fits the view to a region with the configured padding and
// zoom ceiling. It is skipped while an explicit FlyTo holds the camera.
func (c *Controller) FitBounds(box render.Box) (Intent, bool) {
	c.mu.Lock()
	if c.held {
		c.mu.Unlock()
		return Intent{}, false
	}
	c.seq++
	intent := Intent{
		Seq:     c.seq,
		Kind:    KindFitBounds,
		Bounds:  &box,
		Padding: c.cfg.FitPadding,
		MaxZoom: c.cfg.FitMaxZoom,
	}
	c.pending = &intent
	c.mu.Unlock()

	c.deliver()
	return intent, true
}

// Release lets automatic fits move the camera again
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held = false
}

// Take consumes the pending intent, if any
func (c *Controller) Take() (Intent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Intent{}, false
	}
	intent := *c.pending
	c.pending = nil
	return intent, true
}

func (c *Controller) deliver() {
	c.mu.Lock()
	sink := c.sink
	if sink == nil || c.pending == nil {
		c.mu.Unlock()
		return
	}
	intent := *c.pending
	c.mu.Unlock()

	if err := sink.ApplyCamera(intent); err != nil {
		log.Printf("camera: error applying %s intent: %v", intent.Kind, err)
		return
	}

	c.mu.Lock()
	// A newer intent may have replaced this one meanwhile
	if c.pending != nil && c.pending.Seq == intent.Seq {
		c.pending = nil
	}
	c.mu.Unlock()
}
