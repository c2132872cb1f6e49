// Package framebuffer holds the RGBA composite for one frame. The scheduler
// is the only writer; the viewer reads the pixel slice through the
// scheduler's Target and must treat it as read-only.
package framebuffer

import (
	"fmt"
	"math/rand"
	"time"
)

// Buffer is the composite target for one render. The backing array is
// width*height*4 bytes of RGBA with every alpha byte pre-set to 255.
type Buffer struct {
	width  int
	height int
	pixels []byte

	// De-banding keeps a second buffer of identical geometry that receives a
	// noise-dithered copy of every composited block. While enabled it is the
	// presentation surface.
	deband   bool
	smoothed []byte
	rng      *rand.Rand
}

// New creates a frame buffer of the given dimensions.
func New(width, height int, deband bool) *Buffer {
	b := &Buffer{
		width:  width,
		height: height,
		pixels: newRGBA(width, height),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if deband {
		b.SetDeBand(true)
	}
	return b
}

// newRGBA allocates a cleared RGBA array with alpha pre-set to 255.
func newRGBA(width, height int) []byte {
	px := make([]byte, width*height*4)
	for i := 3; i < len(px); i += 4 {
		px[i] = 255
	}
	return px
}

// Width returns the viewport width in pixels.
func (b *Buffer) Width() int {
	return b.width
}

// Height returns the viewport height in pixels.
func (b *Buffer) Height() int {
	return b.height
}

// Pixels returns the presentation surface as a byte view of length
// width*height*4. The view stays valid until the next composite.
func (b *Buffer) Pixels() []byte {
	if b.deband {
		return b.smoothed
	}
	return b.pixels
}

// WriteRect composites a packed RGB slab of 3*w*h bytes at (x, y). With
// de-banding disabled this is a pure copy modulo the alpha byte, so writing
// the same slab twice yields identical pixels.
func (b *Buffer) WriteRect(x, y, w, h int, src []byte) error {
	if len(src) != 3*w*h {
		return fmt.Errorf("slab is %d bytes, want %d for a %dx%d block", len(src), 3*w*h, w, h)
	}
	if x < 0 || y < 0 || x+w > b.width || y+h > b.height {
		return fmt.Errorf("block %dx%d at (%d,%d) exceeds %dx%d buffer", w, h, x, y, b.width, b.height)
	}

	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			si := (j*w + i) * 3
			di := ((y+j)*b.width + (x + i)) * 4
			b.pixels[di+0] = src[si+0]
			b.pixels[di+1] = src[si+1]
			b.pixels[di+2] = src[si+2]
			b.pixels[di+3] = 255
		}
	}

	if b.deband {
		b.debandRect(x, y, w, h)
	}
	return nil
}

// SetDeBand enables or disables the de-banding post-process. Enabling on a
// populated buffer back-fills the secondary buffer from the primary;
// disabling restores the primary as the presentation surface.
func (b *Buffer) SetDeBand(on bool) {
	if on == b.deband {
		return
	}
	b.deband = on
	if on {
		b.smoothed = newRGBA(b.width, b.height)
		b.debandRect(0, 0, b.width, b.height)
	}
}

// DeBand reports whether the de-banding post-process is enabled.
func (b *Buffer) DeBand() bool {
	return b.deband
}
