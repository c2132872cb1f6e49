package tracer

import "math"

// hitEpsilon keeps secondary rays from re-hitting the surface they left.
const hitEpsilon = 1e-4

// Material describes how a surface responds to light.
type Material struct {
	Color     Vec3    // base color in [0,1] per channel
	Reflect   float64 // 0 = diffuse, 1 = perfect mirror
	Checker   bool    // checkerboard-modulate the base color
	TextureID uint32  // 0 = untextured, otherwise an AssetStore texture
}

// Hit records the nearest intersection found along a ray.
type Hit struct {
	T      float64
	Point  Vec3
	Normal Vec3
	Mat    Material
	U, V   float64
}

// Sphere is a center/radius primitive.
type Sphere struct {
	Center Vec3
	Radius float64
	Mat    Material
}

// Intersect returns the nearest positive hit parameter, or false.
func (s Sphere) Intersect(r Ray) (float64, bool) {
	oc := r.Origin.Sub(s.Center)
	b := oc.Dot(r.Dir)
	c := oc.Dot(oc) - s.Radius*s.Radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < hitEpsilon {
		t = -b + sq
	}
	if t < hitEpsilon {
		return 0, false
	}
	return t, true
}

// hitAt fills a Hit record for parameter t.
func (s Sphere) hitAt(r Ray, t float64) Hit {
	p := r.At(t)
	n := p.Sub(s.Center).Normalize()
	// Spherical uv for texture lookup.
	u := 0.5 + math.Atan2(n.Z, n.X)/(2*math.Pi)
	v := 0.5 - math.Asin(math.Max(-1, math.Min(1, n.Y)))/math.Pi
	return Hit{T: t, Point: p, Normal: n, Mat: s.Mat, U: u, V: v}
}

// Plane is an infinite plane through a point.
type Plane struct {
	Point  Vec3
	Normal Vec3
	Mat    Material
}

// Intersect returns the nearest positive hit parameter, or false.
func (p Plane) Intersect(r Ray) (float64, bool) {
	denom := p.Normal.Dot(r.Dir)
	if math.Abs(denom) < 1e-9 {
		return 0, false
	}
	t := p.Point.Sub(r.Origin).Dot(p.Normal) / denom
	if t < hitEpsilon {
		return 0, false
	}
	return t, true
}

func (p Plane) hitAt(r Ray, t float64) Hit {
	pt := r.At(t)
	n := p.Normal
	if n.Dot(r.Dir) > 0 {
		n = n.Scale(-1)
	}
	// Planar uv from the world x/z coordinates, useful for checkering.
	return Hit{T: t, Point: pt, Normal: n, Mat: p.Mat, U: pt.X, V: pt.Z}
}

// Triangle is a counter-clockwise wound face.
type Triangle struct {
	A, B, C Vec3
}

// Intersect runs Moeller-Trumbore and returns the hit parameter, or false.
func (tr Triangle) Intersect(r Ray) (float64, bool) {
	e1 := tr.B.Sub(tr.A)
	e2 := tr.C.Sub(tr.A)
	p := r.Dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < 1e-9 {
		return 0, false
	}
	inv := 1 / det
	tv := r.Origin.Sub(tr.A)
	u := tv.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := tv.Cross(e1)
	v := r.Dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t < hitEpsilon {
		return 0, false
	}
	return t, true
}

// normal returns the geometric normal facing against the ray direction.
func (tr Triangle) normal(dir Vec3) Vec3 {
	n := tr.B.Sub(tr.A).Cross(tr.C.Sub(tr.A)).Normalize()
	if n.Dot(dir) > 0 {
		n = n.Scale(-1)
	}
	return n
}

// PointLight illuminates the scene from a single position.
type PointLight struct {
	Position  Vec3
	Color     Vec3
	Intensity float64
}
