package armpose

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// buildChainClusterer constructs a Clusterer with hand-authored centers and
// adjacency so ArmTracer tests don't depend on k-means convergence.
func buildChainClusterer(centers [][3]float64, edges [][2]int) *Clusterer {
	k := len(centers)
	c := &Clusterer{
		K:       k,
		Centers: mat.NewDense(k, 3, nil),
		Adj:     mat.NewDense(k, k, nil),
		rng:     rand.New(rand.NewSource(1)),
	}
	for i, p := range centers {
		c.Centers.Set(i, 0, p[0])
		c.Centers.Set(i, 1, p[1])
		c.Centers.Set(i, 2, p[2])
	}
	for _, e := range edges {
		c.Adj.Set(e[0], e[1], 1)
		c.Adj.Set(e[1], e[0], 1)
	}
	return c
}

func TestArmTracer_TracksStraightArm(t *testing.T) {
	// Right-hand arm (seed.X > 0): hand -> elbow -> shoulder, z increasing.
	centers := [][3]float64{
		{0.3, 0, 0.5},  // 0: hand
		{0.2, 0, 0.7},  // 1: elbow
		{0.1, 0, 0.9},  // 2: shoulder
	}
	edges := [][2]int{{0, 1}, {1, 2}}
	clusterer := buildChainClusterer(centers, edges)

	tracer := NewArmTracer(clusterer, Vec3{X: 0.3, Y: 0, Z: 0.5}, 0.1, 5.0, 5)
	tracked := tracer.UpdateJoints(1.0)

	if !tracked {
		t.Fatal("expected the arm to be tracked")
	}
	if tracer.HandLoc != (Vec3{X: 0.3, Y: 0, Z: 0.5}) {
		t.Errorf("unexpected hand location: %v", tracer.HandLoc)
	}
	if tracer.ShoulderLoc != (Vec3{X: 0.1, Y: 0, Z: 0.9}) {
		t.Errorf("unexpected shoulder location: %v", tracer.ShoulderLoc)
	}
	if tracer.ElbowInd != 1 {
		t.Errorf("expected cluster 1 to be picked as elbow, got %d", tracer.ElbowInd)
	}
}

func TestArmTracer_NoHandWithinGraceWindow(t *testing.T) {
	centers := [][3]float64{{10, 10, 10}}
	clusterer := buildChainClusterer(centers, nil)

	tracer := NewArmTracer(clusterer, Vec3{X: 0.3, Y: 0, Z: 0.5}, 0.1, 5.0, 3)

	if tracer.UpdateJoints(1.0) {
		t.Fatal("expected no hand cluster to be found on the first frame")
	}

	tracer.lastTrackedStep = 1
	tracer.trackingStep = 1
	if !tracer.UpdateJoints(1.0) {
		t.Error("expected the grace window to keep the arm tracked for a few missed frames")
	}
}

func TestArmTracer_StopsAtSlopeCutoff(t *testing.T) {
	centers := [][3]float64{
		{0.3, 0, 0.5},
		{0.3, 0, 0.6},
		{5.0, 0, 0.7}, // a sharp sideways jump should be rejected by the slope cutoff
	}
	edges := [][2]int{{0, 1}, {1, 2}}
	clusterer := buildChainClusterer(centers, edges)

	tracer := NewArmTracer(clusterer, Vec3{X: 0.3, Y: 0, Z: 0.5}, 0.1, 1.0, 5)
	chain := tracer.walk(0)

	if len(chain) != 2 {
		t.Errorf("expected the walk to stop before the sharp jump, got chain %v", chain)
	}
}

func TestArmTracer_Smoothing(t *testing.T) {
	centers := [][3]float64{
		{0.3, 0, 0.5},
		{0.2, 0, 0.7},
		{0.1, 0, 0.9},
	}
	edges := [][2]int{{0, 1}, {1, 2}}
	clusterer := buildChainClusterer(centers, edges)

	tracer := NewArmTracer(clusterer, Vec3{X: 0.3, Y: 0, Z: 0.5}, 0.1, 5.0, 5)
	tracer.UpdateJoints(1.0) // snap on first acquisition

	clusterer.Centers.Set(0, 0, 0.35)
	tracer.UpdateJoints(0.5) // should lerp halfway, not snap

	if tracer.HandLoc.X <= 0.3 || tracer.HandLoc.X >= 0.35 {
		t.Errorf("expected smoothed hand X between 0.3 and 0.35, got %v", tracer.HandLoc.X)
	}
}

func TestArmTracer_BendAngle(t *testing.T) {
	tracer := &ArmTracer{
		HandLoc:     Vec3{X: 1, Y: 0, Z: 0},
		ElbowLoc:    Vec3{X: 0, Y: 0, Z: 0},
		ShoulderLoc: Vec3{X: -1, Y: 0, Z: 0},
	}
	angle := tracer.BendAngle()
	if math.Abs(angle-180) > 1e-6 {
		t.Errorf("expected a straight arm to measure 180 degrees, got %v", angle)
	}

	tracer.ShoulderLoc = Vec3{X: 0, Y: 1, Z: 0}
	angle = tracer.BendAngle()
	if math.Abs(angle-90) > 1e-6 {
		t.Errorf("expected a right-angle bend to measure 90 degrees, got %v", angle)
	}
}

func TestArmTracer_OrientationFromSeed(t *testing.T) {
	clusterer := buildChainClusterer([][3]float64{{0, 0, 0}}, nil)

	left := NewArmTracer(clusterer, Vec3{X: -0.3}, 0.1, 1.0, 5)
	if left.Orientation != 1 {
		t.Errorf("expected a negative-x seed to get orientation +1, got %v", left.Orientation)
	}

	right := NewArmTracer(clusterer, Vec3{X: 0.3}, 0.1, 1.0, 5)
	if right.Orientation != -1 {
		t.Errorf("expected a positive-x seed to get orientation -1, got %v", right.Orientation)
	}
}
