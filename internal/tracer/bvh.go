package tracer

import (
	"math"
	"sort"
)

// aabb is an axis-aligned bounding box.
type aabb struct {
	min, max Vec3
}

func emptyAABB() aabb {
	inf := math.Inf(1)
	return aabb{min: Vec3{inf, inf, inf}, max: Vec3{-inf, -inf, -inf}}
}

func (b *aabb) extend(p Vec3) {
	b.min = Vec3{math.Min(b.min.X, p.X), math.Min(b.min.Y, p.Y), math.Min(b.min.Z, p.Z)}
	b.max = Vec3{math.Max(b.max.X, p.X), math.Max(b.max.Y, p.Y), math.Max(b.max.Z, p.Z)}
}

func (b *aabb) merge(o aabb) {
	b.extend(o.min)
	b.extend(o.max)
}

func (b aabb) center(axis int) float64 {
	switch axis {
	case 0:
		return (b.min.X + b.max.X) / 2
	case 1:
		return (b.min.Y + b.max.Y) / 2
	default:
		return (b.min.Z + b.max.Z) / 2
	}
}

// hit runs the slab test against the ray, bounded above by tMax.
func (b aabb) hit(r Ray, tMax float64) bool {
	tMin := hitEpsilon
	for axis := 0; axis < 3; axis++ {
		var origin, dir, lo, hi float64
		switch axis {
		case 0:
			origin, dir, lo, hi = r.Origin.X, r.Dir.X, b.min.X, b.max.X
		case 1:
			origin, dir, lo, hi = r.Origin.Y, r.Dir.Y, b.min.Y, b.max.Y
		default:
			origin, dir, lo, hi = r.Origin.Z, r.Dir.Z, b.min.Z, b.max.Z
		}
		inv := 1 / dir
		t0 := (lo - origin) * inv
		t1 := (hi - origin) * inv
		if inv < 0 {
			t0, t1 = t1, t0
		}
		tMin = math.Max(tMin, t0)
		tMax = math.Min(tMax, t1)
		if tMax < tMin {
			return false
		}
	}
	return true
}

// bvhNode is one node of the flattened tree. Leaves hold a face range in the
// reordered index list; interior nodes hold their children.
type bvhNode struct {
	bounds      aabb
	left, right int // child node indices, -1 for leaves
	start, end  int // face index range for leaves
}

// BVH accelerates ray/mesh intersection. Build it once per mesh and rebuild
// after the mesh changes.
type BVH struct {
	mesh  *Mesh
	faces []int // face indices, reordered during the build
	nodes []bvhNode
}

const bvhLeafSize = 4

// BuildBVH constructs the tree for a mesh by recursive median split.
func BuildBVH(mesh *Mesh) *BVH {
	b := &BVH{mesh: mesh, faces: make([]int, len(mesh.Faces))}
	for i := range b.faces {
		b.faces[i] = i
	}
	if len(b.faces) > 0 {
		b.build(0, len(b.faces))
	}
	return b
}

// build creates the node for faces[start:end] and returns its index.
func (b *BVH) build(start, end int) int {
	bounds := emptyAABB()
	for _, fi := range b.faces[start:end] {
		bounds.merge(b.faceBounds(fi))
	}

	node := bvhNode{bounds: bounds, left: -1, right: -1, start: start, end: end}
	idx := len(b.nodes)
	b.nodes = append(b.nodes, node)

	if end-start <= bvhLeafSize {
		return idx
	}

	// Split on the widest axis at the median face center.
	ext := bounds.max.Sub(bounds.min)
	axis := 0
	if ext.Y > ext.X && ext.Y > ext.Z {
		axis = 1
	} else if ext.Z > ext.X && ext.Z > ext.Y {
		axis = 2
	}
	part := b.faces[start:end]
	sort.Slice(part, func(i, j int) bool {
		bi := b.faceBounds(part[i])
		bj := b.faceBounds(part[j])
		return bi.center(axis) < bj.center(axis)
	})

	mid := start + (end-start)/2
	left := b.build(start, mid)
	right := b.build(mid, end)
	b.nodes[idx].left = left
	b.nodes[idx].right = right
	return idx
}

func (b *BVH) faceBounds(fi int) aabb {
	tr := b.mesh.Triangle(fi)
	bounds := emptyAABB()
	bounds.extend(tr.A)
	bounds.extend(tr.B)
	bounds.extend(tr.C)
	return bounds
}

// Intersect returns the nearest triangle hit below tMax, or false.
func (b *BVH) Intersect(r Ray, tMax float64) (float64, Triangle, bool) {
	if len(b.nodes) == 0 {
		return 0, Triangle{}, false
	}

	best := tMax
	var bestTri Triangle
	found := false

	stack := make([]int, 0, 64)
	stack = append(stack, 0)
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := b.nodes[ni]
		if !node.bounds.hit(r, best) {
			continue
		}
		if node.left < 0 {
			for _, fi := range b.faces[node.start:node.end] {
				tr := b.mesh.Triangle(fi)
				if t, ok := tr.Intersect(r); ok && t < best {
					best = t
					bestTri = tr
					found = true
				}
			}
			continue
		}
		stack = append(stack, node.left, node.right)
	}
	return best, bestTri, found
}
