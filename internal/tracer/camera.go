package tracer

// Camera is a pinhole camera. Directions are built in view space with z
// pointing into the screen, rotated first around the x axis, then around the
// y axis, then translated to the camera location.
type Camera struct {
	Location Vec3
	RotX     float64
	RotY     float64
}

// PrimaryRay builds the ray through viewport pixel (px, py) at the given
// sub-pixel offset (ox, oy in [0,1)). The aspect ratio stretches x so square
// viewport pixels stay square in world space.
func (c Camera) PrimaryRay(px, py int, ox, oy float64, width, height int) Ray {
	ar := float64(width) / float64(height)
	fx := ((float64(px)+ox)/float64(width) - 0.5) * ar
	fy := 0.5 - (float64(py)+oy)/float64(height)

	dir := Vec3{fx, fy, 1}.Normalize().RotX(c.RotX).RotY(c.RotY)
	return Ray{Origin: c.Location, Dir: dir}
}
