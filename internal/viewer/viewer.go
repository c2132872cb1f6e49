// Package viewer is the ebiten shell around the render scheduler: it blits
// the scheduler's frame buffer to the window, draws the HUD, and turns
// keyboard input into serialized render commands.
package viewer

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"blocktrace/internal/config"
	"blocktrace/internal/monitoring"
	"blocktrace/internal/sched"
	"blocktrace/internal/tracer"
)

// Viewer implements ebiten.Game. All of its state is touched only from the
// ebiten update/draw goroutine; the scheduler and serializer do their own
// locking.
type Viewer struct {
	cfg       *config.Config
	scheduler *sched.Scheduler
	serial    *sched.Serializer
	registry  *tracer.SceneRegistry
	monitor   *monitoring.Monitor
	input     *InputHandler
	hud       *HUD

	// Render session state, mutated by input and snapshotted into a
	// sched.Config on every restart.
	cam     tracer.Camera
	sceneID int
	mode    tracer.RenderMode
	deband  bool
	workers int

	// Restart coalescing. While a submitted start is still queued or
	// running, further input only marks the session dirty; the next ticket
	// is submitted once the current one settles.
	pending *sched.Ticket
	dirty   bool

	// Event taps feeding the monitor.
	progressEvents <-chan sched.Progress
	doneEvents     <-chan time.Duration

	frame *ebiten.Image // cached blit image, rebuilt when the viewport changes
}

// New wires a viewer and submits the initial render.
func New(cfg *config.Config, scheduler *sched.Scheduler, serial *sched.Serializer,
	registry *tracer.SceneRegistry, monitor *monitoring.Monitor) *Viewer {
	v := &Viewer{
		cfg:       cfg,
		scheduler: scheduler,
		serial:    serial,
		registry:  registry,
		monitor:   monitor,
		cam: tracer.Camera{
			Location: tracer.Vec3{X: cfg.Camera.X, Y: cfg.Camera.Y, Z: cfg.Camera.Z},
			RotX:     cfg.Camera.RotX,
			RotY:     cfg.Camera.RotY,
		},
		sceneID:        cfg.Scenes.Default,
		mode:           tracer.RenderMode(cfg.Render.Mode),
		deband:         cfg.Render.DeBand,
		workers:        scheduler.PoolSize(),
		progressEvents: scheduler.Events().Progress(),
		doneEvents:     scheduler.Events().Done(),
	}
	v.input = NewInputHandler(v)
	v.hud = NewHUD(v)
	v.RequestRender()
	return v
}

// renderConfig snapshots the current session state into a render request.
func (v *Viewer) renderConfig() sched.Config {
	return sched.Config{
		BlockSize: v.cfg.Render.BlockSize,
		Width:     v.cfg.Display.ScreenWidth,
		Height:    v.cfg.Display.ScreenHeight,
		AntiAlias: v.cfg.Render.AntiAlias,
		DeBand:    v.deband,
		Renderer: tracer.Params{
			SceneID:     v.sceneID,
			MaxRayDepth: v.cfg.Render.MaxRayDepth,
			Mode:        v.mode,
			Camera:      v.cam,
		},
	}
}

// RequestRender asks for a fresh frame with the current session state. At
// most one start is in the serializer at a time; extra requests coalesce
// into a single follow-up render.
func (v *Viewer) RequestRender() {
	if v.pending != nil {
		v.dirty = true
		return
	}
	cfg := v.renderConfig()
	v.pending = v.serial.Submit(func() error {
		return v.scheduler.Start(cfg)
	})
}

// pumpPending resubmits a coalesced render once the in-serializer start has
// settled. Start failures surface on the HUD rather than crashing the loop.
func (v *Viewer) pumpPending() {
	if v.pending == nil {
		return
	}
	select {
	case <-v.pending.Done():
	default:
		return
	}
	if err := v.pending.Err(); err != nil {
		v.hud.SetStatus("render rejected: " + err.Error())
	}
	v.pending = nil
	if v.dirty {
		v.dirty = false
		v.RequestRender()
	}
}

// pumpEvents drains the scheduler's event taps into the monitor without
// blocking the update loop.
func (v *Viewer) pumpEvents() {
	for {
		select {
		case <-v.progressEvents:
			v.monitor.BlockComposited()
		case d := <-v.doneEvents:
			v.monitor.RenderFinished(d)
		default:
			return
		}
	}
}

// Update runs one tick of input handling and event bookkeeping.
func (v *Viewer) Update() error {
	ft := v.monitor.StartFrame()
	defer ft.EndFrame()

	v.input.HandleInput()
	v.pumpPending()
	v.pumpEvents()
	return nil
}

// Draw blits the scheduler's frame buffer and the HUD on top of it.
func (v *Viewer) Draw(screen *ebiten.Image) {
	if fb := v.scheduler.Target(); fb != nil {
		if v.frame == nil || v.frame.Bounds().Dx() != fb.Width() || v.frame.Bounds().Dy() != fb.Height() {
			v.frame = ebiten.NewImage(fb.Width(), fb.Height())
		}
		v.frame.WritePixels(fb.Pixels())
		screen.DrawImage(v.frame, nil)
	}
	v.hud.Draw(screen)
}

// Layout fixes the logical screen size to the configured viewport.
func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return v.cfg.Display.ScreenWidth, v.cfg.Display.ScreenHeight
}
