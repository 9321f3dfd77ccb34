// internal/service/render/builder.go

package render

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"mapaeleitoral/internal/clock"
	"mapaeleitoral/internal/domain/election"
)

// ErrSuperseded is returned by a build cancelled by a newer one
var ErrSuperseded = errors.New("render build superseded")

// Config contains configuration for the layer builder
type Config struct {
	// ChunkBudget bounds the work done in one chunk before yielding
	ChunkBudget time.Duration
	// ChunkPause is the idle time between chunks
	ChunkPause time.Duration
	// MaxChunkSize caps the markers in one chunk regardless of time
	MaxChunkSize int

	Heat    HeatConfig
	Cluster ClusterConfig
}

// DefaultConfig returns the builder settings used by the map
func DefaultConfig() Config {
	return Config{
		ChunkBudget:  200 * time.Millisecond,
		ChunkPause:   50 * time.Millisecond,
		MaxChunkSize: 500,
		Heat:         DefaultHeatConfig(),
		Cluster:      DefaultClusterConfig(),
	}
}

// Layer is the disposable artifact built for one point set
type Layer struct {
	Version uint64
	Index   *ClusterIndex
	Heat    *HeatLayer
	Summary LayerSummary
}

// Builder turns point sets into the results layer of a Surface.
//
// A rebuild happens only when the point set version changes. Starting a
// rebuild cancels and waits for the one in flight and releases the
// previous layer before anything of the new one is drawn. Markers are
// inserted in chunks; each chunk is bounded by ChunkBudget and
// MaxChunkSize and followed by a ChunkPause during which the build can
// be cancelled.
type Builder struct {
	surface Surface
	clock   clock.Clock
	cfg     Config
	onBuilt func(Layer)

	// rebuildMu serialises Rebuild so each build starts only after the
	// previous one has stopped
	rebuildMu sync.Mutex

	mu          sync.Mutex
	lastVersion uint64
	lastPoints  []election.ResultPoint
	cancel      context.CancelFunc
	done        chan struct{}
	current     *Layer
	closed      bool
}

// NewBuilder creates a builder drawing on surface. onBuilt is called
// after every completed build.
func NewBuilder(surface Surface, clk clock.Clock, cfg Config, onBuilt func(Layer)) *Builder {
	if clk == nil {
		clk = clock.Real()
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = DefaultConfig().MaxChunkSize
	}
	if cfg.ChunkBudget <= 0 {
		cfg.ChunkBudget = DefaultConfig().ChunkBudget
	}
	if cfg.Heat == (HeatConfig{}) {
		cfg.Heat = DefaultHeatConfig()
	}
	if cfg.Cluster == (ClusterConfig{}) {
		cfg.Cluster = DefaultClusterConfig()
	}
	if onBuilt == nil {
		onBuilt = func(Layer) {}
	}
	return &Builder{
		surface: surface,
		clock:   clk,
		cfg:     cfg,
		onBuilt: onBuilt,
	}
}

// Rebuild starts building the layer for a point set version. Versions
// equal to or older than the last one requested are ignored. It reports
// whether a build was started.
func (b *Builder) Rebuild(version uint64, points []election.ResultPoint) bool {
	return b.start(version, points, false)
}

// Redraw rebuilds the last requested version from scratch, for a
// surface that lost its content.
func (b *Builder) Redraw() bool {
	b.mu.Lock()
	version, points := b.lastVersion, b.lastPoints
	b.mu.Unlock()
	if version == 0 {
		return false
	}
	return b.start(version, points, true)
}

func (b *Builder) start(version uint64, points []election.ResultPoint, redraw bool) bool {
	b.rebuildMu.Lock()
	defer b.rebuildMu.Unlock()

	b.mu.Lock()
	if b.closed || version < b.lastVersion || (version == b.lastVersion && !redraw) {
		b.mu.Unlock()
		return false
	}
	b.lastVersion = version
	b.lastPoints = points
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.current = nil
	b.mu.Unlock()

	// Stop the build in flight before touching the surface
	if cancel != nil {
		cancel()
		<-done
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	done = make(chan struct{})
	b.cancel, b.done = cancel, done
	b.mu.Unlock()

	go func() {
		defer close(done)
		layer, err := b.build(ctx, version, points)
		if err != nil {
			if !errors.Is(err, ErrSuperseded) {
				log.Printf("render: error building layer %d: %v", version, err)
			}
			return
		}

		b.mu.Lock()
		if b.lastVersion != version || b.closed {
			b.mu.Unlock()
			return
		}
		b.current = layer
		b.mu.Unlock()

		b.onBuilt(*layer)
	}()
	return true
}

func (b *Builder) build(ctx context.Context, version uint64, points []election.ResultPoint) (*Layer, error) {
	if err := b.surface.ResetLayer(version); err != nil {
		return nil, fmt.Errorf("error releasing previous layer: %w", err)
	}

	layer := &Layer{Version: version}
	layer.Heat = BuildHeat(points, b.cfg.Heat)
	if layer.Heat != nil {
		if err := b.surface.SetHeat(version, layer.Heat); err != nil {
			return nil, fmt.Errorf("error setting heat layer: %w", err)
		}
	}

	markers := make([]Marker, 0, len(points))
	chunks := 0
	next := 0
	for next < len(points) {
		if ctx.Err() != nil {
			return nil, ErrSuperseded
		}

		// Build one chunk within the time budget
		start := b.clock.Now()
		chunkStart := len(markers)
		for next < len(points) {
			if m, ok := MarkerFor(points[next]); ok {
				markers = append(markers, m)
			}
			next++
			if len(markers)-chunkStart >= b.cfg.MaxChunkSize {
				break
			}
			if b.clock.Now().Sub(start) >= b.cfg.ChunkBudget {
				break
			}
		}

		if chunk := markers[chunkStart:]; len(chunk) > 0 {
			if err := b.surface.AddMarkers(version, chunk); err != nil {
				return nil, fmt.Errorf("error adding markers: %w", err)
			}
			chunks++
		}

		if next < len(points) {
			// Yield before the next chunk
			select {
			case <-ctx.Done():
				return nil, ErrSuperseded
			case <-b.clock.After(b.cfg.ChunkPause):
			}
		}
	}

	layer.Index = NewClusterIndex(markers, b.cfg.Cluster)
	layer.Summary = LayerSummary{
		Version: version,
		Markers: len(markers),
		Chunks:  chunks,
		Skipped: len(points) - len(markers),
		HasHeat: layer.Heat != nil,
		Bounds:  Bounds(markers),
	}

	if ctx.Err() != nil {
		return nil, ErrSuperseded
	}
	if err := b.surface.LayerDone(version, layer.Summary); err != nil {
		return nil, fmt.Errorf("error finishing layer: %w", err)
	}
	return layer, nil
}

// Current returns the last completed layer, or nil while a build is in
// flight or before the first one.
func (b *Builder) Current() *Layer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Wait blocks until the build in flight, if any, has finished
func (b *Builder) Wait() {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close cancels the build in flight and drops the current layer
func (b *Builder) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.current = nil
	b.lastPoints = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
