// Package sched distributes block render work across a pool of raytracer
// workers and composites their results into a frame buffer.
//
// All scheduler state transitions happen under one mutex, so the dispatch
// loop, result handling, and pool reconfiguration observe each other's
// effects atomically. The only real parallelism lives inside the workers
// themselves; the scheduler processes their completions one at a time.
package sched

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"blocktrace/internal/framebuffer"
)

// Config describes one render request. It is read-only once passed to Start.
type Config struct {
	BlockSize int  // block edge length in pixels, >= 1
	Width     int  // viewport width in pixels, >= 1
	Height    int  // viewport height in pixels, >= 1
	AntiAlias int  // anti-alias level, one of 1, 2, 4, 8
	DeBand    bool // enable the de-banding post-process on the frame buffer

	// Renderer carries kernel parameters (scene id, ray depth, render mode,
	// camera). The scheduler hands it to SetScene verbatim and never
	// interprets it.
	Renderer any
}

// validate rejects configurations that cannot produce a frame.
func (c Config) validate() error {
	if c.BlockSize < 1 {
		return fmt.Errorf("block size must be at least 1, got %d", c.BlockSize)
	}
	if c.Width < 1 || c.Height < 1 {
		return fmt.Errorf("viewport must be at least 1x1, got %dx%d", c.Width, c.Height)
	}
	switch c.AntiAlias {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("anti-alias level must be 1, 2, 4 or 8, got %d", c.AntiAlias)
	}
	return nil
}

// Scheduler converts render requests into executing frames. It owns the
// worker pool, the pending block queue, the frame buffer, and the progress
// counters; nothing else mutates them.
type Scheduler struct {
	mu sync.Mutex

	pool    *pool
	events  *Bus
	rng     *rand.Rand
	nextID  uint64 // next block id, monotonic across frames
	started bool

	// Per-frame state, replaced wholesale by Start.
	cfg       Config
	fb        *framebuffer.Buffer
	pending   []*Block
	total     int
	done      int
	startedAt time.Time
}

// New creates a scheduler with an empty worker pool. The factory is invoked
// once per worker slot whenever the pool grows or is recycled.
func New(factory Factory) *Scheduler {
	return &Scheduler{
		pool:   newPool(factory),
		events: NewBus(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Events returns the scheduler's event bus.
func (s *Scheduler) Events() *Bus {
	return s.events
}

// Target returns the frame buffer of the current frame, or nil if no frame
// has been started. External readers must treat the pixels as read-only.
func (s *Scheduler) Target() *framebuffer.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fb
}

// Counts returns the composited and total block counts of the current frame.
func (s *Scheduler) Counts() (done, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done, s.total
}

// PoolSize returns the current number of worker slots.
func (s *Scheduler) PoolSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.len()
}

// Start begins a new frame. Invalid configurations are rejected before any
// existing state is touched; no events are emitted for a rejected start.
//
// If the previous frame is still incomplete its workers are terminated and
// replaced rather than awaited; the user has moved on. A completed frame's
// workers are kept and re-initialized for the new viewport.
func (s *Scheduler) Start(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	incomplete := s.started && s.done < s.total
	if incomplete {
		s.pool.recycleAll(cfg.Width, cfg.Height, cfg.Renderer, s.dispatchAsync)
	} else {
		s.pool.reinitAll(cfg.Width, cfg.Height, cfg.Renderer, s.dispatchAsync)
	}

	s.cfg = cfg
	s.fb = framebuffer.New(cfg.Width, cfg.Height, cfg.DeBand)
	s.pending = blockGrid(cfg.Width, cfg.Height, cfg.BlockSize, s.nextID)
	s.nextID += uint64(len(s.pending))
	shuffleBlocks(s.pending, s.rng)
	s.total = len(s.pending)
	s.done = 0
	s.startedAt = time.Now()
	s.started = true

	s.dispatchLocked()
	return nil
}

// ResizePool grows or shrinks the worker pool to n slots.
//
// Shrinking pops workers from the tail; each popped worker's in-flight block
// is returned to the pending queue (with an unqueued event) before the worker
// is terminated. Growing constructs fresh workers initialized against the
// current viewport and immediately offers them pending work.
func (s *Scheduler) ResizePool(n int) {
	if n < 0 {
		n = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case n < s.pool.len():
		for _, sl := range s.pool.shrinkTo(n) {
			if sl.inFlight != nil {
				blk := sl.inFlight
				sl.inFlight = nil
				s.pending = append(s.pending, blk)
				s.events.emitUnqueued(*blk)
			}
			sl.renderer.Terminate()
		}
	case n > s.pool.len():
		s.pool.growTo(n, s.cfg.Width, s.cfg.Height, s.cfg.Renderer, s.dispatchAsync)
		s.dispatchLocked()
	}
}

// SetDeBand toggles the de-banding post-process on the current frame buffer
// and remembers the choice for subsequent frames.
func (s *Scheduler) SetDeBand(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.DeBand = on
	if s.fb != nil {
		s.fb.SetDeBand(on)
	}
}

// dispatchAsync runs a dispatch pass from outside the scheduler mutex. Init
// goroutines use it to offer work to a slot whose ready token just resolved.
func (s *Scheduler) dispatchAsync() {
	s.mu.Lock()
	s.dispatchLocked()
	s.mu.Unlock()
}

// dispatchLocked hands pending blocks to every idle, initialized slot. Must
// be called with the mutex held.
func (s *Scheduler) dispatchLocked() {
	for _, sl := range s.pool.slots {
		if len(s.pending) == 0 {
			return
		}
		if sl.disposed || sl.inFlight != nil || !sl.token.resolved() {
			continue
		}

		blk := s.pending[0]
		s.pending = s.pending[1:]
		sl.inFlight = blk
		s.events.emitQueued(*blk)

		// The frame buffer reference is captured here; a later Start swaps
		// s.fb and thereby invalidates this dispatch's results.
		fb := s.fb
		aa := s.cfg.AntiAlias
		go s.renderBlock(sl, blk, fb, aa)
	}
}

// renderBlock runs one block on the slot's worker and reports the outcome.
func (s *Scheduler) renderBlock(sl *slot, blk *Block, fb *framebuffer.Buffer, aa int) {
	pixels, err := sl.renderer.RenderBlock(blk.X, blk.Y, blk.W, blk.H, aa)
	s.onResult(sl, blk, fb, pixels, err)
}

// onResult composites one block result, or discards it if the dispatch that
// produced it has been superseded. The identity check compares the captured
// frame buffer and the slot's in-flight block id; anything else is a stale
// result from a reclaimed slot or an abandoned frame.
func (s *Scheduler) onResult(sl *slot, blk *Block, fb *framebuffer.Buffer, pixels []byte, err error) {
	s.mu.Lock()

	stale := fb != s.fb || sl.disposed || sl.inFlight == nil || sl.inFlight.ID != blk.ID
	if stale {
		s.mu.Unlock()
		s.dispatchAsync()
		return
	}

	if err != nil {
		// The block stays assigned to this slot until a ResizePool or Start
		// reclaims it. Per-block retry is not a scheduler concern.
		s.mu.Unlock()
		return
	}

	sl.inFlight = nil
	s.done++
	s.fb.WriteRect(blk.X, blk.Y, blk.W, blk.H, pixels)
	s.events.emitProgress(Progress{Block: *blk, Done: s.done, Total: s.total})
	if s.done == s.total {
		s.events.emitDone(time.Since(s.startedAt))
	}

	s.dispatchLocked()
	s.mu.Unlock()
}
