// internal/service/session/observer.go

package session

import (
	"sync"

	"mapaeleitoral/internal/domain/filter"
	"mapaeleitoral/internal/service/camera"
	"mapaeleitoral/internal/service/render"
)

// Event kinds published by a session
const (
	EventFilter    = "filter"
	EventResults   = "results"
	EventSelection = "selection"
	EventSpiderfy  = "spiderfy"
	EventClosed    = "closed"
)

// Event is one change in a session, addressed to whoever observes it
type Event struct {
	Session string      `json:"session"`
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload,omitempty"`
}

// Observer receives session events. Notify must not block.
type Observer interface {
	Notify(event Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

// Notify calls f
func (f ObserverFunc) Notify(event Event) {
	f(event)
}

// View is the renderer attached to a session: it draws the results
// layer, moves the camera and mirrors the page URL.
type View interface {
	render.Surface
	camera.Sink
	filter.HistoryWriter
}

// viewProxy forwards to the attached view. Calls made while no view is
// attached are dropped; attaching replays the current state instead.
type viewProxy struct {
	mu   sync.RWMutex
	view View
}

func (p *viewProxy) get() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.view
}

func (p *viewProxy) set(v View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view = v
}

// clear detaches v if it is still the attached view
func (p *viewProxy) clear(v View) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.view != v {
		return false
	}
	p.view = nil
	return true
}

func (p *viewProxy) ResetLayer(version uint64) error {
	if v := p.get(); v != nil {
		return v.ResetLayer(version)
	}
	return nil
}

func (p *viewProxy) AddMarkers(version uint64, markers []render.Marker) error {
	if v := p.get(); v != nil {
		return v.AddMarkers(version, markers)
	}
	return nil
}

func (p *viewProxy) SetHeat(version uint64, heat *render.HeatLayer) error {
	if v := p.get(); v != nil {
		return v.SetHeat(version, heat)
	}
	return nil
}

func (p *viewProxy) LayerDone(version uint64, summary render.LayerSummary) error {
	if v := p.get(); v != nil {
		return v.LayerDone(version, summary)
	}
	return nil
}

func (p *viewProxy) ApplyCamera(intent camera.Intent) error {
	if v := p.get(); v != nil {
		return v.ApplyCamera(intent)
	}
	return errNoView
}

func (p *viewProxy) ReplaceQuery(query string) {
	if v := p.get(); v != nil {
		v.ReplaceQuery(query)
	}
}
