package armpose

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ErrBadOffset is returned by ApplyManualOffset when the offset text can't
// be parsed.
var ErrBadOffset = errors.New("armpose: unable to parse manual offset")

// Calibrator derives a rigid transform aligning a flat reference object
// (seen as the entire contents of the point cloud during calibration mode)
// to a canonical frame: plane normal → +Z, the axis normal × line → +X,
// centroid → origin. Because the x axis is normal × line, the dominant long
// axis lands on −Y.
type Calibrator struct{}

// Calibrate fits a plane and dominant line through cloud and returns the
// (R, t) transform that maps it to the canonical frame. Returns
// (CalibrationTransform{}, false) with no side effect if cloud has fewer
// than 3 rows or the fit is otherwise degenerate.
func (Calibrator) Calibrate(cloud *PointCloud) (CalibrationTransform, bool) {
	if cloud.Rows() < 3 {
		return CalibrationTransform{}, false
	}

	origin := cloud.Mean()
	data := cloud.Dense()

	normal, ok := planeNormal(data)
	if !ok {
		return CalibrationTransform{}, false
	}

	direction := dominantLine(data, origin)
	if direction.Z < 0 {
		direction = direction.Scale(-1)
	}

	xAxis := normal.Cross(direction)

	// Rz: rotate about Z so x_src lands in the XZ plane. Points are row
	// vectors (p·R), so p·rotZ(θ) turns p by −θ.
	thetaZ := math.Atan2(xAxis.Y, xAxis.X)
	rz := rotZ(thetaZ)

	// Ry: rotate about Y so x_src aligns with +X.
	xyNorm := math.Hypot(xAxis.X, xAxis.Y)
	thetaY := -math.Atan2(xAxis.Z, xyNorm)
	ry := rotY(thetaY)

	var rzy mat.Dense
	rzy.Mul(rz, ry)

	// Rx: rotate about X so the (Rz*Ry)-transformed normal aligns with +Z.
	nRow := mat.NewDense(1, 3, []float64{normal.X, normal.Y, normal.Z})
	var nTransformed mat.Dense
	nTransformed.Mul(nRow, &rzy)
	thetaX := -math.Atan2(nTransformed.At(0, 1), nTransformed.At(0, 2))
	rx := rotX(thetaX)

	var r mat.Dense
	r.Mul(&rzy, rx)

	// t = -(origin·R)
	oRow := mat.NewDense(1, 3, []float64{origin.X, origin.Y, origin.Z})
	var tRow mat.Dense
	tRow.Mul(oRow, &r)
	tRow.Scale(-1, &tRow)

	rCopy := mat.DenseCopyOf(&r)
	tCopy := mat.DenseCopyOf(&tRow)

	return CalibrationTransform{R: rCopy, T: tCopy}, true
}

// ApplyManualOffset parses text as "dx,dy,dz" and subtracts the result from
// xf.T in place, for interactively nudging a computed calibration. On parse
// failure xf is left unchanged and ErrBadOffset is returned so the caller
// can warn and proceed with the computed transform.
func ApplyManualOffset(xf *CalibrationTransform, text string) error {
	parts := strings.Split(text, ",")
	if len(parts) != 3 {
		return ErrBadOffset
	}

	offsets := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return ErrBadOffset
		}
		offsets[i] = v
	}

	xf.T.Set(0, 0, xf.T.At(0, 0)-offsets[0])
	xf.T.Set(0, 1, xf.T.At(0, 1)-offsets[1])
	xf.T.Set(0, 2, xf.T.At(0, 2)-offsets[2])
	return nil
}

// planeNormal fits z = Ax + By + C by ordinary least squares and returns the
// plane normal (β1, β2, -1). Direction only matters; no unit normalization
// is required downstream. Returns ok=false if the cloud is too degenerate
// (collinear/coincident points) to invert XᵀX.
func planeNormal(cloud *mat.Dense) (Vec3, bool) {
	n, _ := cloud.Dims()
	xData := make([]float64, n*3)
	yData := make([]float64, n)
	for i := 0; i < n; i++ {
		xData[i*3] = 1
		xData[i*3+1] = cloud.At(i, 0)
		xData[i*3+2] = cloud.At(i, 1)
		yData[i] = cloud.At(i, 2)
	}
	X := mat.NewDense(n, 3, xData)
	Y := mat.NewDense(n, 1, yData)

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return Vec3{}, false
	}

	var xty mat.Dense
	xty.Mul(X.T(), Y)
	var beta mat.Dense
	beta.Mul(&xtxInv, &xty)

	return Vec3{X: beta.At(1, 0), Y: beta.At(2, 0), Z: -1}, true
}

// dominantLine runs a robust 3D line fit (L2) over cloud and returns a unit
// direction vector. The L2 fit is the principal axis of the centered
// scatter matrix, found via symmetric eigendecomposition (gonum/mat.EigenSym) —
// equivalent to cv::fitLine with CV_DIST_L2 for an unweighted point set.
func dominantLine(cloud *mat.Dense, mean Vec3) Vec3 {
	n, _ := cloud.Dims()
	centered := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		centered.Set(i, 0, cloud.At(i, 0)-mean.X)
		centered.Set(i, 1, cloud.At(i, 1)-mean.Y)
		centered.Set(i, 2, cloud.At(i, 2)-mean.Z)
	}

	var scatter mat.Dense
	scatter.Mul(centered.T(), centered)
	scatterSym := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			scatterSym.SetSym(i, j, scatter.At(i, j))
		}
	}

	var eig mat.EigenSym
	eig.Factorize(scatterSym, true)
	values := eig.Values(nil)

	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}

	return Vec3{vectors.At(0, best), vectors.At(1, best), vectors.At(2, best)}
}

func rotZ(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

func rotY(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(3, 3, []float64{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	})
}

func rotX(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	})
}
