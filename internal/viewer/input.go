package viewer

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"

	"blocktrace/internal/tracer"
	"blocktrace/internal/viewer/keytracker"
)

// InputHandler turns keyboard state into camera motion and render commands.
type InputHandler struct {
	viewer *Viewer

	sceneTrackers  [9]keytracker.KeyStateTracker
	debandTracker  keytracker.KeyStateTracker
	modeTracker    keytracker.KeyStateTracker
	growTracker    keytracker.KeyStateTracker
	shrinkTracker  keytracker.KeyStateTracker
	refreshTracker keytracker.KeyStateTracker
}

// NewInputHandler creates an input handler bound to a viewer.
func NewInputHandler(v *Viewer) *InputHandler {
	return &InputHandler{viewer: v}
}

// HandleInput processes one tick of keyboard input.
func (ih *InputHandler) HandleInput() {
	moved := ih.handleMovement()
	changed := ih.handleSession()
	if moved || changed {
		ih.viewer.RequestRender()
	}
	ih.handlePool()
}

// handleMovement applies WASD walking, Q/E vertical motion and arrow-key
// rotation. It reports whether the camera changed this tick.
func (ih *InputHandler) handleMovement() bool {
	v := ih.viewer
	move := v.cfg.Camera.MoveSpeed
	rot := v.cfg.Camera.RotationSpeed

	// Walking stays on the horizontal plane regardless of pitch.
	forward := tracer.Vec3{Z: 1}.RotY(v.cam.RotY)
	right := tracer.Vec3{X: 1}.RotY(v.cam.RotY)

	var delta tracer.Vec3
	if ebiten.IsKeyPressed(ebiten.KeyW) {
		delta = delta.Add(forward)
	}
	if ebiten.IsKeyPressed(ebiten.KeyS) {
		delta = delta.Sub(forward)
	}
	if ebiten.IsKeyPressed(ebiten.KeyD) {
		delta = delta.Add(right)
	}
	if ebiten.IsKeyPressed(ebiten.KeyA) {
		delta = delta.Sub(right)
	}
	if ebiten.IsKeyPressed(ebiten.KeyE) {
		delta = delta.Add(tracer.Vec3{Y: 1})
	}
	if ebiten.IsKeyPressed(ebiten.KeyQ) {
		delta = delta.Sub(tracer.Vec3{Y: 1})
	}

	moved := false
	if delta.Length() > 0 {
		v.cam.Location = v.cam.Location.Add(delta.Normalize().Scale(move))
		moved = true
	}

	if ebiten.IsKeyPressed(ebiten.KeyLeft) {
		v.cam.RotY -= rot
		moved = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyRight) {
		v.cam.RotY += rot
		moved = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyUp) {
		v.cam.RotX = clampPitch(v.cam.RotX + rot)
		moved = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyDown) {
		v.cam.RotX = clampPitch(v.cam.RotX - rot)
		moved = true
	}
	return moved
}

// handleSession processes scene selection, render mode, de-banding and the
// manual refresh key. It reports whether a new render is needed.
func (ih *InputHandler) handleSession() bool {
	v := ih.viewer
	changed := false

	for i := range ih.sceneTrackers {
		if ih.sceneTrackers[i].IsKeyJustPressed(ebiten.Key1+ebiten.Key(i)) && i < v.registry.Count() {
			if v.sceneID != i {
				v.sceneID = i
				changed = true
			}
		}
	}

	if ih.modeTracker.IsKeyJustPressed(ebiten.KeyTab) {
		if v.mode == tracer.ModeColor {
			v.mode = tracer.ModeDepth
		} else {
			v.mode = tracer.ModeColor
		}
		changed = true
	}

	if ih.refreshTracker.IsKeyJustPressed(ebiten.KeyR) {
		changed = true
	}

	// De-banding retargets the presentation surface in place; no restart.
	if ih.debandTracker.IsKeyJustPressed(ebiten.KeyB) {
		v.deband = !v.deband
		v.scheduler.SetDeBand(v.deband)
	}

	return changed
}

// handlePool grows or shrinks the worker pool one slot at a time.
func (ih *InputHandler) handlePool() {
	v := ih.viewer
	if ih.growTracker.IsKeyJustPressed(ebiten.KeyEqual) {
		v.workers++
		v.scheduler.ResizePool(v.workers)
	}
	if ih.shrinkTracker.IsKeyJustPressed(ebiten.KeyMinus) && v.workers > 0 {
		v.workers--
		v.scheduler.ResizePool(v.workers)
	}
}

// clampPitch keeps the camera from flipping over the poles.
func clampPitch(a float64) float64 {
	const limit = math.Pi/2 - 0.01
	if a > limit {
		return limit
	}
	if a < -limit {
		return -limit
	}
	return a
}
