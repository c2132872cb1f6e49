package sched

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeRenderer is a scriptable BlockRenderer. Its pixel output encodes the
// global pixel coordinates so tests can verify composite placement.
type fakeRenderer struct {
	mu         sync.Mutex
	scenes     [][2]int
	terminated bool
	quit       chan struct{}

	// gate, when non-nil, blocks RenderBlock until it is closed or the
	// worker is terminated.
	gate chan struct{}

	// failHook, when non-nil, may reject a render attempt by origin.
	failHook func(x, y int) error
}

func newFakeRenderer(gate chan struct{}) *fakeRenderer {
	return &fakeRenderer{quit: make(chan struct{}), gate: gate}
}

func (f *fakeRenderer) SetScene(width, height int, params any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scenes = append(f.scenes, [2]int{width, height})
	return nil
}

func (f *fakeRenderer) RenderBlock(x, y, w, h, aa int) ([]byte, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-f.quit:
			return nil, errors.New("terminated")
		}
	}

	if f.failHook != nil {
		if err := f.failHook(x, y); err != nil {
			return nil, err
		}
	}

	src := make([]byte, 3*w*h)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			si := (j*w + i) * 3
			src[si+0] = byte(x + i)
			src[si+1] = byte(y + j)
			src[si+2] = byte((x + i) ^ (y + j))
		}
	}
	return src, nil
}

func (f *fakeRenderer) Terminate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.terminated {
		f.terminated = true
		close(f.quit)
	}
}

func (f *fakeRenderer) isTerminated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}

// fakeFleet builds fakeRenderers and remembers every instance it constructed.
type fakeFleet struct {
	mu        sync.Mutex
	gate      chan struct{}
	instances []*fakeRenderer
}

func (ff *fakeFleet) factory() BlockRenderer {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	f := newFakeRenderer(ff.gate)
	ff.instances = append(ff.instances, f)
	return f
}

func (ff *fakeFleet) built() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.instances)
}

func (ff *fakeFleet) snapshot() []*fakeRenderer {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return append([]*fakeRenderer(nil), ff.instances...)
}

func waitDone(t *testing.T, ch <-chan time.Duration) time.Duration {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for done event")
		return 0
	}
}

func collectQueued(t *testing.T, ch <-chan Block, n int) []Block {
	t.Helper()
	blocks := make([]Block, 0, n)
	deadline := time.After(5 * time.Second)
	for len(blocks) < n {
		select {
		case b := <-ch:
			blocks = append(blocks, b)
		case <-deadline:
			t.Fatalf("timed out waiting for queued events, got %d of %d", len(blocks), n)
		}
	}
	return blocks
}

func drainProgress(ch <-chan Progress) []Progress {
	var out []Progress
	for {
		select {
		case p := <-ch:
			out = append(out, p)
		default:
			return out
		}
	}
}

func TestStartRendersAllBlocks(t *testing.T) {
	fleet := &fakeFleet{}
	s := New(fleet.factory)

	queuedCh := s.Events().Queued()
	progressCh := s.Events().Progress()
	doneCh := s.Events().Done()

	s.ResizePool(1)
	if err := s.Start(Config{BlockSize: 128, Width: 256, Height: 256, AntiAlias: 1}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, doneCh)

	queued := collectQueued(t, queuedCh, 4)
	origins := map[[2]int]bool{}
	for _, b := range queued {
		origins[[2]int{b.X, b.Y}] = true
		if b.W != 128 || b.H != 128 {
			t.Errorf("block at (%d,%d) is %dx%d, want 128x128", b.X, b.Y, b.W, b.H)
		}
	}
	want := [][2]int{{0, 0}, {128, 0}, {0, 128}, {128, 128}}
	for _, o := range want {
		if !origins[o] {
			t.Errorf("no queued event for block origin %v", o)
		}
	}
	if len(origins) != 4 {
		t.Errorf("got %d distinct block origins, want 4", len(origins))
	}

	progress := drainProgress(progressCh)
	if len(progress) != 4 {
		t.Fatalf("got %d progress events, want 4", len(progress))
	}
	for i, p := range progress {
		if p.Total != 4 {
			t.Errorf("progress %d has total %d, want 4", i, p.Total)
		}
		if p.Done != i+1 {
			t.Errorf("progress %d has done %d, want %d", i, p.Done, i+1)
		}
	}

	fb := s.Target()
	px := fb.Pixels()
	for _, pt := range [][2]int{{0, 0}, {127, 127}, {128, 0}, {255, 129}, {13, 200}} {
		x, y := pt[0], pt[1]
		i := (y*256 + x) * 4
		if px[i] != byte(x) || px[i+1] != byte(y) || px[i+2] != byte(x^y) || px[i+3] != 255 {
			t.Errorf("pixel (%d,%d) = %v, want [%d %d %d 255]", x, y, px[i:i+4], byte(x), byte(y), byte(x^y))
		}
	}
}

func TestFractionalEdgeBlocks(t *testing.T) {
	fleet := &fakeFleet{}
	s := New(fleet.factory)

	queuedCh := s.Events().Queued()
	doneCh := s.Events().Done()

	s.ResizePool(2)
	if err := s.Start(Config{BlockSize: 100, Width: 250, Height: 100, AntiAlias: 1}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, doneCh)

	queued := collectQueued(t, queuedCh, 3)
	rects := map[[4]int]bool{}
	area := 0
	for _, b := range queued {
		rects[[4]int{b.X, b.Y, b.W, b.H}] = true
		area += b.W * b.H
	}
	for _, r := range [][4]int{{0, 0, 100, 100}, {100, 0, 100, 100}, {200, 0, 50, 100}} {
		if !rects[r] {
			t.Errorf("missing block %v", r)
		}
	}
	if area != 250*100 {
		t.Errorf("blocks cover %d pixels, want %d", area, 250*100)
	}

	// The narrow block writes only columns 200..249.
	px := s.Target().Pixels()
	for _, pt := range [][2]int{{200, 0}, {249, 99}, {230, 42}} {
		x, y := pt[0], pt[1]
		i := (y*250 + x) * 4
		if px[i] != byte(x) || px[i+1] != byte(y) {
			t.Errorf("pixel (%d,%d) = %v, want [%d %d ...]", x, y, px[i:i+4], byte(x), byte(y))
		}
	}
}

func TestRestartMidFrameReplacesWorkers(t *testing.T) {
	gate := make(chan struct{})
	fleet := &fakeFleet{gate: gate}
	s := New(fleet.factory)

	queuedCh := s.Events().Queued()
	doneCh := s.Events().Done()

	s.ResizePool(2)
	if err := s.Start(Config{BlockSize: 64, Width: 256, Height: 256, AntiAlias: 1}); err != nil {
		t.Fatalf("Start A: %v", err)
	}
	collectQueued(t, queuedCh, 2)
	frameA := s.Target()
	oldWorkers := fleet.snapshot()

	if err := s.Start(Config{BlockSize: 60, Width: 120, Height: 60, AntiAlias: 1}); err != nil {
		t.Fatalf("Start B: %v", err)
	}
	for _, w := range oldWorkers {
		if !w.isTerminated() {
			t.Error("worker from the abandoned frame was not terminated")
		}
	}
	if fleet.built() != 4 {
		t.Errorf("built %d workers, want 4 (2 per frame)", fleet.built())
	}

	close(gate)
	waitDone(t, doneCh)

	// Frame B composited fully.
	done, total := s.Counts()
	if done != total || total != 2 {
		t.Errorf("frame B counts done=%d total=%d, want 2/2", done, total)
	}
	px := s.Target().Pixels()
	i := (30*120 + 70) * 4
	if px[i] != 70 || px[i+1] != 30 {
		t.Errorf("frame B pixel (70,30) = %v", px[i:i+4])
	}

	// Late results from frame A never reach its abandoned buffer.
	time.Sleep(50 * time.Millisecond)
	for _, b := range frameA.Pixels() {
		if b != 0 && b != 255 {
			t.Fatal("abandoned frame buffer received writes after restart")
		}
	}
}

func TestShrinkReclaimsInFlightBlock(t *testing.T) {
	gate := make(chan struct{})
	fleet := &fakeFleet{gate: gate}
	s := New(fleet.factory)

	queuedCh := s.Events().Queued()
	unqueuedCh := s.Events().Unqueued()
	progressCh := s.Events().Progress()
	doneCh := s.Events().Done()

	s.ResizePool(2)
	// 3x2 grid of 100px blocks.
	if err := s.Start(Config{BlockSize: 100, Width: 300, Height: 200, AntiAlias: 1}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	collectQueued(t, queuedCh, 2)

	s.ResizePool(1)
	var reclaimed Block
	select {
	case reclaimed = <-unqueuedCh:
	case <-time.After(time.Second):
		t.Fatal("no unqueued event after shrink")
	}

	close(gate)
	waitDone(t, doneCh)

	progress := drainProgress(progressCh)
	if len(progress) != 6 {
		t.Fatalf("got %d progress events, want 6", len(progress))
	}
	found := false
	for _, p := range progress {
		if p.Total != 6 {
			t.Errorf("progress total = %d, want 6", p.Total)
		}
		if p.Block.ID == reclaimed.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("reclaimed block %d never appeared in a progress event", reclaimed.ID)
	}
}

func TestResizeIsIdempotent(t *testing.T) {
	fleet := &fakeFleet{}
	s := New(fleet.factory)

	s.ResizePool(3)
	s.ResizePool(3)
	if fleet.built() != 3 {
		t.Errorf("built %d workers, want 3", fleet.built())
	}
	for _, w := range fleet.snapshot() {
		if w.isTerminated() {
			t.Error("worker terminated by a same-size resize")
		}
	}
	if s.PoolSize() != 3 {
		t.Errorf("pool size %d, want 3", s.PoolSize())
	}
}

func TestStartWithEmptyPoolStalls(t *testing.T) {
	fleet := &fakeFleet{}
	s := New(fleet.factory)
	doneCh := s.Events().Done()

	if err := s.Start(Config{BlockSize: 64, Width: 128, Height: 128, AntiAlias: 1}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-doneCh:
		t.Fatal("frame completed with an empty worker pool")
	case <-time.After(100 * time.Millisecond):
	}
	done, total := s.Counts()
	if done != 0 || total != 4 {
		t.Errorf("counts done=%d total=%d, want 0/4", done, total)
	}

	s.ResizePool(2)
	waitDone(t, doneCh)
}

func TestShrinkToZeroThenRegrow(t *testing.T) {
	gate := make(chan struct{})
	fleet := &fakeFleet{gate: gate}
	s := New(fleet.factory)

	queuedCh := s.Events().Queued()
	unqueuedCh := s.Events().Unqueued()
	doneCh := s.Events().Done()

	s.ResizePool(2)
	if err := s.Start(Config{BlockSize: 100, Width: 300, Height: 200, AntiAlias: 1}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	collectQueued(t, queuedCh, 2)

	s.ResizePool(0)
	reclaimed := 0
	for reclaimed < 2 {
		select {
		case <-unqueuedCh:
			reclaimed++
		case <-time.After(time.Second):
			t.Fatalf("got %d unqueued events after shrink to zero, want 2", reclaimed)
		}
	}
	if s.PoolSize() != 0 {
		t.Errorf("pool size %d, want 0", s.PoolSize())
	}

	close(gate)
	s.ResizePool(3)
	waitDone(t, doneCh)

	done, total := s.Counts()
	if done != 6 || total != 6 {
		t.Errorf("counts done=%d total=%d, want 6/6: a reclaimed block was lost or duplicated", done, total)
	}
}

func TestStartRejectsBadConfig(t *testing.T) {
	fleet := &fakeFleet{}
	s := New(fleet.factory)
	queuedCh := s.Events().Queued()
	s.ResizePool(1)

	bad := []Config{
		{BlockSize: 0, Width: 100, Height: 100, AntiAlias: 1},
		{BlockSize: 16, Width: 0, Height: 100, AntiAlias: 1},
		{BlockSize: 16, Width: 100, Height: 0, AntiAlias: 1},
		{BlockSize: 16, Width: 100, Height: 100, AntiAlias: 3},
	}
	for _, cfg := range bad {
		if err := s.Start(cfg); err == nil {
			t.Errorf("Start(%+v) accepted an invalid config", cfg)
		}
	}

	if s.Target() != nil {
		t.Error("rejected starts must not create a frame buffer")
	}
	select {
	case b := <-queuedCh:
		t.Errorf("rejected start emitted a queued event for %+v", b)
	default:
	}
}

func TestSingleBlockFrame(t *testing.T) {
	fleet := &fakeFleet{}
	s := New(fleet.factory)
	queuedCh := s.Events().Queued()
	doneCh := s.Events().Done()

	s.ResizePool(4)
	if err := s.Start(Config{BlockSize: 512, Width: 200, Height: 150, AntiAlias: 1}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, doneCh)

	queued := collectQueued(t, queuedCh, 1)
	b := queued[0]
	if b.X != 0 || b.Y != 0 || b.W != 200 || b.H != 150 {
		t.Errorf("block = %+v, want the whole 200x150 viewport at the origin", b)
	}
	if _, total := s.Counts(); total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
}

func TestFailedRenderLeavesSlotStuck(t *testing.T) {
	// The first render attempt of the block at the origin fails, fleet-wide.
	var failMu sync.Mutex
	failed := false
	fleet := &fakeFleet{}
	s := New(func() BlockRenderer {
		f := fleet.factory().(*fakeRenderer)
		f.failHook = func(x, y int) error {
			failMu.Lock()
			defer failMu.Unlock()
			if x == 0 && y == 0 && !failed {
				failed = true
				return fmt.Errorf("render failed for block at (%d,%d)", x, y)
			}
			return nil
		}
		return f
	})
	doneCh := s.Events().Done()

	s.ResizePool(1)
	if err := s.Start(Config{BlockSize: 64, Width: 128, Height: 64, AntiAlias: 1}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The failing block wedges its only slot; the frame must stall short of
	// completion with the block still assigned.
	select {
	case <-doneCh:
		t.Fatal("frame completed despite a failed block")
	case <-time.After(200 * time.Millisecond):
	}
	done, total := s.Counts()
	if total != 2 || done >= total {
		t.Errorf("counts done=%d total=%d, want a stalled 2-block frame", done, total)
	}

	// Coarse recovery: recycle the pool. Shrinking reclaims the stuck block
	// into the pending queue and the replacement worker drains it.
	s.ResizePool(0)
	s.ResizePool(1)
	waitDone(t, doneCh)

	done, total = s.Counts()
	if done != 2 || total != 2 {
		t.Errorf("counts done=%d total=%d after recovery, want 2/2", done, total)
	}
}

func TestReinitKeepsWorkersBetweenCompleteFrames(t *testing.T) {
	fleet := &fakeFleet{}
	s := New(fleet.factory)
	doneCh := s.Events().Done()

	s.ResizePool(2)
	if err := s.Start(Config{BlockSize: 64, Width: 128, Height: 128, AntiAlias: 1}); err != nil {
		t.Fatalf("Start A: %v", err)
	}
	waitDone(t, doneCh)

	if err := s.Start(Config{BlockSize: 64, Width: 64, Height: 64, AntiAlias: 1}); err != nil {
		t.Fatalf("Start B: %v", err)
	}
	waitDone(t, doneCh)

	if fleet.built() != 2 {
		t.Errorf("built %d workers, want 2: complete frames re-initialize workers instead of replacing them", fleet.built())
	}
	for _, w := range fleet.snapshot() {
		// SetScene runs on its own goroutine, so a worker that took no block
		// may still be initializing when the done event arrives.
		deadline := time.Now().Add(5 * time.Second)
		var n int
		var last [2]int
		for {
			w.mu.Lock()
			n = len(w.scenes)
			if n > 0 {
				last = w.scenes[n-1]
			}
			w.mu.Unlock()
			if n >= 2 || time.Now().After(deadline) {
				break
			}
			time.Sleep(time.Millisecond)
		}
		if n != 2 {
			t.Errorf("worker saw %d SetScene calls, want 2", n)
		}
		if last != [2]int{64, 64} {
			t.Errorf("worker's last viewport = %v, want [64 64]", last)
		}
	}
}
