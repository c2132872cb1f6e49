package sched

import "math/rand"

// Block is one rectangular unit of render work. Width and height never exceed
// the configured block size; blocks on the right and bottom edges are clamped
// to the viewport.
type Block struct {
	ID   uint64
	X, Y int
	W, H int
}

// blockGrid enumerates the full block grid for a viewport, assigning each
// block a monotonically increasing id starting at firstID.
func blockGrid(width, height, blockSize int, firstID uint64) []*Block {
	cols := (width + blockSize - 1) / blockSize
	rows := (height + blockSize - 1) / blockSize

	blocks := make([]*Block, 0, cols*rows)
	id := firstID
	for by := 0; by < rows; by++ {
		for bx := 0; bx < cols; bx++ {
			x := bx * blockSize
			y := by * blockSize
			blocks = append(blocks, &Block{
				ID: id,
				X:  x,
				Y:  y,
				W:  min(blockSize, width-x),
				H:  min(blockSize, height-y),
			})
			id++
		}
	}
	return blocks
}

// shuffleBlocks permutes the pending queue in place (Fisher-Yates). Rendering
// shuffled blocks makes progress appear uniformly across the viewport and
// interleaves expensive regions with cheap ones.
func shuffleBlocks(blocks []*Block, rng *rand.Rand) {
	for i := len(blocks) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}
}
