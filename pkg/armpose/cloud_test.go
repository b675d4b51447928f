package armpose

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestIdentityTransform(t *testing.T) {
	xf := IdentityTransform()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if xf.R.At(i, j) != want {
				t.Errorf("R[%d][%d] = %v, want %v", i, j, xf.R.At(i, j), want)
			}
		}
	}
	for j := 0; j < 3; j++ {
		if xf.T.At(0, j) != 0 {
			t.Errorf("T[%d] = %v, want 0", j, xf.T.At(0, j))
		}
	}
}

func TestPointCloud_AddAndAt(t *testing.T) {
	cloud := NewPointCloud()
	cloud.AddPoint(Vec3{X: 1, Y: 2, Z: 3})
	cloud.AddPoint(Vec3{X: 4, Y: 5, Z: 6})

	if cloud.Rows() != 2 {
		t.Fatalf("expected 2 rows, got %d", cloud.Rows())
	}
	if cloud.At(1) != (Vec3{X: 4, Y: 5, Z: 6}) {
		t.Errorf("unexpected point: %v", cloud.At(1))
	}
}

func TestPointCloud_Clear(t *testing.T) {
	cloud := NewPointCloud()
	cloud.AddPoint(Vec3{X: 1, Y: 1, Z: 1})
	cloud.Clear()
	if cloud.Rows() != 0 {
		t.Errorf("expected 0 rows after Clear, got %d", cloud.Rows())
	}
}

func TestPointCloud_Mean(t *testing.T) {
	cloud := NewPointCloud()
	cloud.AddPoint(Vec3{X: 0, Y: 0, Z: 0})
	cloud.AddPoint(Vec3{X: 2, Y: 4, Z: 6})

	mean := cloud.Mean()
	if !almostEqual(mean.X, 1) || !almostEqual(mean.Y, 2) || !almostEqual(mean.Z, 3) {
		t.Errorf("unexpected mean: %v", mean)
	}
}

func TestPointCloud_Mean_Empty(t *testing.T) {
	cloud := NewPointCloud()
	if cloud.Mean() != (Vec3{}) {
		t.Error("expected zero mean for empty cloud")
	}
}

func TestPointCloud_Transform_Identity(t *testing.T) {
	cloud := NewPointCloud()
	cloud.AddPoint(Vec3{X: 1, Y: 2, Z: 3})
	cloud.Transform(IdentityTransform())

	got := cloud.At(0)
	if !almostEqual(got.X, 1) || !almostEqual(got.Y, 2) || !almostEqual(got.Z, 3) {
		t.Errorf("identity transform should not move points, got %v", got)
	}
}

func TestPointCloud_Transform_Translation(t *testing.T) {
	cloud := NewPointCloud()
	cloud.AddPoint(Vec3{X: 0, Y: 0, Z: 0})

	xf := IdentityTransform()
	xf.T.Set(0, 0, 1)
	xf.T.Set(0, 1, 2)
	xf.T.Set(0, 2, 3)
	cloud.Transform(xf)

	got := cloud.At(0)
	if !almostEqual(got.X, 1) || !almostEqual(got.Y, 2) || !almostEqual(got.Z, 3) {
		t.Errorf("unexpected translated point: %v", got)
	}
}

func TestCloudBuilder_Build(t *testing.T) {
	intr := Intrinsics{FX: 100, FY: 100, CX: 50, CY: 50, Width: 100, Height: 100}
	builder := NewCloudBuilder(intr)

	depth := NewDepthImage(100, 100, 0.001)
	depth.Set(50, 50, 1000) // on the principal point, 1m out

	cloud := NewPointCloud()
	builder.Build(depth, cloud)

	if cloud.Rows() != 1 {
		t.Fatalf("expected 1 point, got %d", cloud.Rows())
	}
	p := cloud.At(0)
	if !almostEqual(p.X, 0) || !almostEqual(p.Y, 0) || !almostEqual(p.Z, 1) {
		t.Errorf("expected point at (0,0,1), got %v", p)
	}
}

func TestCloudBuilder_Build_ClearsPreviousFrame(t *testing.T) {
	intr := Intrinsics{FX: 100, FY: 100, CX: 0, CY: 0, Width: 10, Height: 10}
	builder := NewCloudBuilder(intr)

	cloud := NewPointCloud()
	cloud.AddPoint(Vec3{X: 99, Y: 99, Z: 99})

	depth := NewDepthImage(10, 10, 0.001)
	builder.Build(depth, cloud)

	if cloud.Rows() != 0 {
		t.Errorf("expected Build to clear stale rows on an empty depth frame, got %d", cloud.Rows())
	}
}
