package tracer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// RenderMode selects the buffer a worker produces.
type RenderMode string

const (
	ModeColor RenderMode = "color"
	ModeDepth RenderMode = "depth"
)

// Params is the opaque render-parameter bag the scheduler hands to SetScene.
// The scheduler never looks inside it.
type Params struct {
	SceneID     int
	MaxRayDepth int
	Mode        RenderMode
	Camera      Camera
}

// Worker is one raytracer instance owned by one scheduler slot. It renders
// one block at a time against the session state captured by the most recent
// SetScene call.
type Worker struct {
	store    *AssetStore
	registry *SceneRegistry

	mu     sync.Mutex // guards the session state below
	scene  *Scene
	params Params
	width  int
	height int

	terminated atomic.Bool
}

// NewWorker creates a worker sharing the given assets and scene registry.
func NewWorker(registry *SceneRegistry, store *AssetStore) *Worker {
	return &Worker{store: store, registry: registry}
}

// SetScene prepares the worker for a viewport. Repeated calls replace the
// session state wholesale; the last call wins.
func (w *Worker) SetScene(width, height int, params any) error {
	if w.terminated.Load() {
		return errors.New("worker terminated")
	}
	p, ok := params.(Params)
	if !ok {
		return fmt.Errorf("unexpected render parameter type %T", params)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.scene = w.registry.Build(p.SceneID)
	w.params = p
	w.width = width
	w.height = height
	return nil
}

// RenderBlock traces the rectangle and returns a packed RGB slab of 3*bw*bh
// bytes. The anti-alias level aa supersamples each pixel on an aa by aa grid.
func (w *Worker) RenderBlock(x, y, bw, bh, aa int) ([]byte, error) {
	w.mu.Lock()
	scene := w.scene
	p := w.params
	width, height := w.width, w.height
	w.mu.Unlock()

	if scene == nil {
		return nil, errors.New("render before scene initialization")
	}
	if aa < 1 {
		aa = 1
	}

	w.store.RLock()
	defer w.store.RUnlock()

	out := make([]byte, 3*bw*bh)
	inv := 1 / float64(aa)
	weight := inv * inv
	for j := 0; j < bh; j++ {
		if w.terminated.Load() {
			return nil, errors.New("worker terminated")
		}
		for i := 0; i < bw; i++ {
			var acc Vec3
			for sy := 0; sy < aa; sy++ {
				for sx := 0; sx < aa; sx++ {
					ox := (float64(sx) + 0.5) * inv
					oy := (float64(sy) + 0.5) * inv
					ray := p.Camera.PrimaryRay(x+i, y+j, ox, oy, width, height)
					var c Vec3
					if p.Mode == ModeDepth {
						c = scene.Depth(ray, w.store)
					} else {
						c = scene.Shade(ray, p.MaxRayDepth, w.store)
					}
					acc = acc.Add(c)
				}
			}
			acc = acc.Scale(weight).Clamp01()
			o := (j*bw + i) * 3
			out[o+0] = byte(acc.X * 255)
			out[o+1] = byte(acc.Y * 255)
			out[o+2] = byte(acc.Z * 255)
		}
	}
	return out, nil
}

// Terminate releases the worker. A render in progress bails out at the next
// row boundary.
func (w *Worker) Terminate() {
	w.terminated.Store(true)
}
