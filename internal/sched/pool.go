package sched

// BlockRenderer is the boundary to the opaque raytracing kernel. One instance
// renders one block at a time for one worker slot.
//
// SetScene prepares the instance for the given viewport and must have
// returned before the first RenderBlock call. It is safe to call repeatedly;
// the last call wins. RenderBlock produces a packed RGB slab of 3*w*h bytes,
// row-major with the top-left origin. Terminate releases the instance; calls
// issued after it have no obligation to complete.
type BlockRenderer interface {
	SetScene(width, height int, params any) error
	RenderBlock(x, y, w, h, aa int) ([]byte, error)
	Terminate()
}

// Factory constructs one fresh BlockRenderer per worker slot.
type Factory func() BlockRenderer

// initToken tracks one SetScene call. err is written by the init goroutine
// before ch is closed and read only after receiving from ch.
type initToken struct {
	ch  chan struct{}
	err error
}

// resolved reports whether the init has finished without error.
func (t *initToken) resolved() bool {
	select {
	case <-t.ch:
		return t.err == nil
	default:
		return false
	}
}

// slot pairs a BlockRenderer with its init-ready token and current in-flight
// block. The token is swapped wholesale on re-initialization so a stale
// SetScene goroutine can only ever resolve the token it was started with.
// All other fields are guarded by the owning scheduler's mutex.
type slot struct {
	renderer BlockRenderer
	token    *initToken
	inFlight *Block
	disposed bool
}

// pool owns the worker slots. Iteration order is insertion order and shrink
// removes from the tail, which is what makes reclaim predictable.
type pool struct {
	factory Factory
	slots   []*slot
}

func newPool(factory Factory) *pool {
	return &pool{factory: factory}
}

func (p *pool) len() int {
	return len(p.slots)
}

// growTo appends fresh slots until the pool holds n. Each new slot starts
// initializing against the given viewport, except when no frame has been
// started yet (width == 0), in which case the slot stays unready until the
// first Start re-initializes the pool.
func (p *pool) growTo(n, width, height int, params any, onReady func()) {
	for len(p.slots) < n {
		sl := &slot{
			renderer: p.factory(),
			token:    &initToken{ch: make(chan struct{})},
		}
		p.slots = append(p.slots, sl)
		if width > 0 {
			initSlot(sl, width, height, params, onReady)
		}
	}
}

// shrinkTo pops slots from the tail until the pool holds n and returns the
// popped slots in pop order. The caller reclaims their in-flight blocks and
// terminates them.
func (p *pool) shrinkTo(n int) []*slot {
	if n < 0 {
		n = 0
	}
	var popped []*slot
	for len(p.slots) > n {
		sl := p.slots[len(p.slots)-1]
		p.slots = p.slots[:len(p.slots)-1]
		sl.disposed = true
		popped = append(popped, sl)
	}
	return popped
}

// recycleAll terminates every current worker and replaces the pool with the
// same number of fresh slots initialized for the given viewport. In-flight
// blocks are forgotten; their late results fail the identity check.
func (p *pool) recycleAll(width, height int, params any, onReady func()) {
	n := len(p.slots)
	for _, sl := range p.slots {
		sl.disposed = true
		sl.inFlight = nil
		sl.renderer.Terminate()
	}
	p.slots = nil
	p.growTo(n, width, height, params, onReady)
}

// reinitAll resets every slot's init token and re-runs SetScene against the
// new viewport, keeping the worker instances alive.
func (p *pool) reinitAll(width, height int, params any, onReady func()) {
	for _, sl := range p.slots {
		sl.token = &initToken{ch: make(chan struct{})}
		initSlot(sl, width, height, params, onReady)
	}
}

// initSlot runs SetScene off the scheduler goroutine and resolves the slot's
// current token when it returns.
func initSlot(sl *slot, width, height int, params any, onReady func()) {
	token := sl.token
	renderer := sl.renderer
	go func() {
		token.err = renderer.SetScene(width, height, params)
		close(token.ch)
		onReady()
	}()
}
