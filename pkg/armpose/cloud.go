package armpose

import (
	"gonum.org/v1/gonum/mat"
)

// CalibrationTransform is a rigid transform p' = p·R + t taking camera-frame
// points into the calibrated world frame. The zero value is the identity
// transform (R=I, t=0).
type CalibrationTransform struct {
	R *mat.Dense // 3x3
	T *mat.Dense // 1x3
}

// IdentityTransform returns the default (no-op) calibration transform.
func IdentityTransform() CalibrationTransform {
	r := mat.NewDense(3, 3, nil)
	r.Set(0, 0, 1)
	r.Set(1, 1, 1)
	r.Set(2, 2, 1)
	t := mat.NewDense(1, 3, nil)
	return CalibrationTransform{R: r, T: t}
}

// PointCloud is a growable ordered sequence of 3D points, stored as an N×3
// matrix. Row order is preserved across transforms (no resorting).
type PointCloud struct {
	rows [][3]float64
}

// NewPointCloud returns an empty point cloud.
func NewPointCloud() *PointCloud {
	return &PointCloud{}
}

// Clear empties the cloud in place, for reuse across frames.
func (p *PointCloud) Clear() {
	p.rows = p.rows[:0]
}

// AddPoint appends a row.
func (p *PointCloud) AddPoint(v Vec3) {
	p.rows = append(p.rows, [3]float64{v.X, v.Y, v.Z})
}

// Rows returns the number of points currently in the cloud.
func (p *PointCloud) Rows() int { return len(p.rows) }

// At returns the point at row i.
func (p *PointCloud) At(i int) Vec3 {
	r := p.rows[i]
	return Vec3{r[0], r[1], r[2]}
}

// Set overwrites the point at row i in place.
func (p *PointCloud) Set(i int, v Vec3) {
	p.rows[i] = [3]float64{v.X, v.Y, v.Z}
}

// Dense returns the cloud as a freshly-built N×3 gonum matrix, suitable for
// feeding into Calibrator's least-squares/line-fit steps or Clusterer's
// k-means.
func (p *PointCloud) Dense() *mat.Dense {
	data := make([]float64, len(p.rows)*3)
	for i, r := range p.rows {
		data[i*3] = r[0]
		data[i*3+1] = r[1]
		data[i*3+2] = r[2]
	}
	return mat.NewDense(len(p.rows), 3, data)
}

// Transform replaces every row p with p·R + t in place, preserving row
// order.
func (p *PointCloud) Transform(xf CalibrationTransform) {
	if len(p.rows) == 0 {
		return
	}
	src := p.Dense()
	var rotated mat.Dense
	rotated.Mul(src, xf.R)

	tx, ty, tz := xf.T.At(0, 0), xf.T.At(0, 1), xf.T.At(0, 2)
	for i := range p.rows {
		p.rows[i] = [3]float64{
			rotated.At(i, 0) + tx,
			rotated.At(i, 1) + ty,
			rotated.At(i, 2) + tz,
		}
	}
}

// Mean returns the row-wise centroid of the cloud. Returns the zero vector
// for an empty cloud.
func (p *PointCloud) Mean() Vec3 {
	if len(p.rows) == 0 {
		return Vec3{}
	}
	var sum Vec3
	for _, r := range p.rows {
		sum.X += r[0]
		sum.Y += r[1]
		sum.Z += r[2]
	}
	n := float64(len(p.rows))
	return Vec3{sum.X / n, sum.Y / n, sum.Z / n}
}

// CloudBuilder deprojects a filtered depth image into camera-frame 3D points
// and applies the active calibration transform.
type CloudBuilder struct {
	Intrinsics Intrinsics
	Transform  CalibrationTransform
}

// NewCloudBuilder creates a builder with the identity transform active.
func NewCloudBuilder(intr Intrinsics) *CloudBuilder {
	return &CloudBuilder{Intrinsics: intr, Transform: IdentityTransform()}
}

// SetTransform installs a new calibration transform, e.g. one just produced
// by Calibrator or loaded from disk.
func (b *CloudBuilder) SetTransform(xf CalibrationTransform) {
	b.Transform = xf
}

// Build deprojects every nonzero (sentinel-valued) pixel of filtered into
// cloud's camera frame, then applies b.Transform. cloud is cleared first;
// callers reuse the same *PointCloud across frames.
func (b *CloudBuilder) Build(filtered *DepthImage, cloud *PointCloud) {
	cloud.Clear()
	intr := b.Intrinsics

	for y := 0; y < filtered.Height; y++ {
		for x := 0; x < filtered.Width; x++ {
			raw := filtered.At(x, y)
			if raw == 0 {
				continue
			}
			z := float64(raw) * filtered.DepthScale
			px := (float64(x) - intr.CX) * z / intr.FX
			py := (float64(y) - intr.CY) * z / intr.FY
			cloud.AddPoint(Vec3{px, py, z})
		}
	}

	cloud.Transform(b.Transform)
}
