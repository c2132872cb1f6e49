package tracer

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"

	"blocktrace/internal/threading"
)

// Texture is a decoded RGB image sampled with normalized uv coordinates.
type Texture struct {
	Width  int
	Height int
	Pix    []byte // packed RGB
}

// DecodeTexture reads any registered image format into a Texture.
func DecodeTexture(r io.Reader) (*Texture, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode texture: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	tex := &Texture{Width: w, Height: h, Pix: make([]byte, 3*w*h)}

	// Rows write disjoint slices of Pix, so the conversion fans out safely.
	rows := make([]int, h)
	for y := range rows {
		rows[y] = y
	}
	threading.ParallelForEach(rows, func(y int) {
		for x := 0; x < w; x++ {
			r16, g16, b16, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := (y*w + x) * 3
			tex.Pix[i+0] = byte(r16 >> 8)
			tex.Pix[i+1] = byte(g16 >> 8)
			tex.Pix[i+2] = byte(b16 >> 8)
		}
	})
	return tex, nil
}

// Sample returns the texel color at (u, v) with wrap-around addressing.
func (t *Texture) Sample(u, v float64) Vec3 {
	u -= math.Floor(u)
	v -= math.Floor(v)
	x := int(u * float64(t.Width))
	y := int(v * float64(t.Height))
	if x >= t.Width {
		x = t.Width - 1
	}
	if y >= t.Height {
		y = t.Height - 1
	}
	i := (y*t.Width + x) * 3
	return Vec3{
		float64(t.Pix[i+0]) / 255,
		float64(t.Pix[i+1]) / 255,
		float64(t.Pix[i+2]) / 255,
	}
}
