package imageio

import (
	"image"
	"sync"

	"lens-composer/internal/app"
)

// Result is the outcome of one asynchronous decode.
type Result struct {
	Path  string
	Image *image.RGBA
	DPI   float64
	Err   error
}

// Loader runs decodes off the interaction thread. A new Load supersedes
// any decode still in flight: the stale result is discarded without ever
// reaching the caller, so no partial state is created from an outdated
// request.
type Loader struct {
	mu     sync.Mutex
	gen    uint64
	closed bool

	// decode is swappable in tests.
	decode func(path string) (*image.RGBA, error)
}

// NewLoader returns a loader using the package decoder.
func NewLoader() *Loader {
	return &Loader{decode: Decode}
}

// Load decodes path on a background goroutine and calls deliver with the
// result, unless a later Load or Close supersedes it first. deliver runs
// on the loader goroutine.
func (ld *Loader) Load(path string, deliver func(Result)) {
	ld.mu.Lock()
	if ld.closed {
		ld.mu.Unlock()
		return
	}
	ld.gen++
	gen := ld.gen
	ld.mu.Unlock()

	go func() {
		img, err := ld.decode(path)
		var dpi float64
		if err == nil {
			if d, derr := ProbeDPI(path); derr == nil {
				dpi = d
			}
		}

		ld.mu.Lock()
		stale := ld.closed || gen != ld.gen
		ld.mu.Unlock()
		if stale {
			app.Logger().Debug("decode superseded", "path", path)
			return
		}
		if err != nil {
			app.Logger().Warn("decode failed", "path", path, "error", err)
		}
		deliver(Result{Path: path, Image: img, DPI: dpi, Err: err})
	}()
}

// Close discards any in-flight decode and rejects further loads.
func (ld *Loader) Close() {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	ld.closed = true
}
