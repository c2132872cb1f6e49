package tracer

import "math"

// MeshInstance places a stored mesh into a scene with a uniform scale and a
// translation.
type MeshInstance struct {
	MeshID uint32
	Offset Vec3
	Scale  float64
	Mat    Material
}

// Scene is everything a worker needs to shade a ray: primitives, lights and
// the sky color.
type Scene struct {
	Spheres []Sphere
	Planes  []Plane
	Meshes  []MeshInstance
	Lights  []PointLight
	Ambient float64
	Sky     Vec3
}

// intersect finds the nearest hit along the ray, consulting the asset store
// for mesh geometry.
func (sc *Scene) intersect(r Ray, store *AssetStore) (Hit, bool) {
	best := Hit{T: math.Inf(1)}
	found := false

	for _, s := range sc.Spheres {
		if t, ok := s.Intersect(r); ok && t < best.T {
			best = s.hitAt(r, t)
			found = true
		}
	}
	for _, p := range sc.Planes {
		if t, ok := p.Intersect(r); ok && t < best.T {
			best = p.hitAt(r, t)
			found = true
		}
	}
	for _, mi := range sc.Meshes {
		bvh, err := store.MeshAccel(mi.MeshID)
		if err != nil {
			continue
		}
		// Transform the ray into mesh space instead of the mesh into world
		// space; a uniform scale keeps t comparable after rescaling.
		local := Ray{
			Origin: r.Origin.Sub(mi.Offset).Scale(1 / mi.Scale),
			Dir:    r.Dir,
		}
		t, tri, ok := bvh.Intersect(local, best.T/mi.Scale)
		if ok && t*mi.Scale < best.T {
			best = Hit{
				T:      t * mi.Scale,
				Point:  r.At(t * mi.Scale),
				Normal: tri.normal(r.Dir),
				Mat:    mi.Mat,
			}
			found = true
		}
	}
	return best, found
}

// occluded reports whether anything blocks the segment from p toward the
// light at distance dist.
func (sc *Scene) occluded(p, dir Vec3, dist float64, store *AssetStore) bool {
	r := Ray{Origin: p, Dir: dir}
	for _, s := range sc.Spheres {
		if t, ok := s.Intersect(r); ok && t < dist {
			return true
		}
	}
	for _, pl := range sc.Planes {
		if t, ok := pl.Intersect(r); ok && t < dist {
			return true
		}
	}
	for _, mi := range sc.Meshes {
		bvh, err := store.MeshAccel(mi.MeshID)
		if err != nil {
			continue
		}
		local := Ray{Origin: p.Sub(mi.Offset).Scale(1 / mi.Scale), Dir: dir}
		if _, _, ok := bvh.Intersect(local, dist/mi.Scale); ok {
			return true
		}
	}
	return false
}

// Shade traces a ray and returns its color with components in [0,1].
func (sc *Scene) Shade(r Ray, depth int, store *AssetStore) Vec3 {
	hit, ok := sc.intersect(r, store)
	if !ok {
		return sc.Sky
	}

	base := hit.Mat.Color
	if tex := store.Texture(hit.Mat.TextureID); tex != nil && hit.Mat.TextureID != 0 {
		base = tex.Sample(hit.U, hit.V)
	}
	if hit.Mat.Checker {
		if (int(math.Floor(hit.U))+int(math.Floor(hit.V)))%2 != 0 {
			base = base.Scale(0.35)
		}
	}

	color := base.Scale(sc.Ambient)
	for _, light := range sc.Lights {
		toLight := light.Position.Sub(hit.Point)
		dist := toLight.Length()
		dir := toLight.Scale(1 / dist)

		lambert := hit.Normal.Dot(dir)
		if lambert <= 0 {
			continue
		}
		if sc.occluded(hit.Point.Add(hit.Normal.Scale(hitEpsilon)), dir, dist, store) {
			continue
		}
		color = color.Add(base.MulElem(light.Color).Scale(lambert * light.Intensity))
	}

	if hit.Mat.Reflect > 0 && depth > 0 {
		refl := r.Dir.Sub(hit.Normal.Scale(2 * r.Dir.Dot(hit.Normal)))
		bounce := Ray{Origin: hit.Point.Add(hit.Normal.Scale(hitEpsilon)), Dir: refl}
		color = color.Scale(1 - hit.Mat.Reflect).
			Add(sc.Shade(bounce, depth-1, store).Scale(hit.Mat.Reflect))
	}

	return color.Clamp01()
}

// Depth traces a ray and returns a grayscale depth response, bright up close
// and falling off with distance.
func (sc *Scene) Depth(r Ray, store *AssetStore) Vec3 {
	hit, ok := sc.intersect(r, store)
	if !ok {
		return Vec3{}
	}
	v := 1 / (1 + 0.1*hit.T)
	return Vec3{v, v, v}
}
