package armpose

import "math"

// ArmTracer walks a Clusterer's proximity graph from a hand seed position up
// to the shoulder, picks the elbow, and temporally smooths the three
// resulting joint locations.
type ArmTracer struct {
	clusterer *Clusterer

	Seed          Vec3
	MaxDistToSeed float64
	DxDzThreshold float64
	Orientation   float64 // +1 for a left-side seed (x<0), -1 for right

	MaxMissedSteps int

	KMeanInd []int32 // hand (front) .. shoulder (back)
	ElbowInd int32

	trackingStep    int
	lastTrackedStep int

	HandLoc, ElbowLoc, ShoulderLoc Vec3
}

// NewArmTracer builds a tracer for one arm. seed is the approximate hand
// position in the calibrated world frame.
func NewArmTracer(clusterer *Clusterer, seed Vec3, maxDistToSeed, dxdzThreshold float64, maxMissedSteps int) *ArmTracer {
	orientation := -1.0
	if seed.X < 0 {
		orientation = 1.0
	}
	return &ArmTracer{
		clusterer:      clusterer,
		Seed:           seed,
		MaxDistToSeed:  maxDistToSeed,
		DxDzThreshold:  dxdzThreshold,
		Orientation:    orientation,
		MaxMissedSteps: maxMissedSteps,
		HandLoc:        seed,
		ElbowLoc:       seed,
		ShoulderLoc:    seed,
	}
}

// UpdateJoints re-derives the arm chain from the clusterer's current
// centers/adjacency and advances the smoothed joint locations. Returns
// whether the arm is considered tracked this frame.
func (a *ArmTracer) UpdateJoints(smoothingFactor float64) bool {
	a.trackingStep++

	handIdx, ok := a.findHandCluster()
	if !ok {
		return a.withinGraceWindow()
	}

	chain := a.walk(handIdx)
	if len(chain) < 3 {
		return a.withinGraceWindow()
	}

	elbow := a.pickElbow(chain)
	a.KMeanInd = chain
	a.ElbowInd = elbow

	centers := a.clusterer.Centers
	targetHand := centerVec(centers, int(chain[0]))
	targetShoulder := centerVec(centers, int(chain[len(chain)-1]))
	targetElbow := centerVec(centers, int(elbow))

	if a.lastTrackedStep == 0 || a.trackingStep-a.lastTrackedStep > a.MaxMissedSteps {
		a.HandLoc = targetHand
		a.ElbowLoc = targetElbow
		a.ShoulderLoc = targetShoulder
	} else {
		a.HandLoc = lerp(a.HandLoc, targetHand, smoothingFactor)
		a.ElbowLoc = lerp(a.ElbowLoc, targetElbow, smoothingFactor)
		a.ShoulderLoc = lerp(a.ShoulderLoc, targetShoulder, smoothingFactor)
	}

	a.lastTrackedStep = a.trackingStep
	return true
}

func (a *ArmTracer) withinGraceWindow() bool {
	return a.lastTrackedStep > 0 && a.trackingStep-a.lastTrackedStep <= a.MaxMissedSteps
}

// findHandCluster picks the center with z >= seed.z closest to seed,
// provided that distance is within MaxDistToSeed.
func (a *ArmTracer) findHandCluster() (int32, bool) {
	centers := a.clusterer.Centers
	k, _ := centers.Dims()

	best := int32(-1)
	bestDist := math.Inf(1)
	for kk := 0; kk < k; kk++ {
		c := centerVec(centers, kk)
		if c.Z < a.Seed.Z {
			continue
		}
		dist := c.Sub(a.Seed).Norm()
		if dist < bestDist {
			bestDist = dist
			best = int32(kk)
		}
	}

	if best < 0 || bestDist > a.MaxDistToSeed {
		return 0, false
	}
	return best, true
}

// walk climbs the proximity graph from handIdx toward the shoulder: at each
// step, among up-in-z neighbors, pick the one maximizing outward travel
// (−orientation·x); ties broken by ascending cluster index; stop (without
// appending) once the magnitude of the x/z slope since the last accepted
// point reaches DxDzThreshold.
func (a *ArmTracer) walk(handIdx int32) []int32 {
	centers := a.clusterer.Centers
	adj := a.clusterer.Adj
	k, _ := centers.Dims()

	chain := []int32{handIdx}
	cur := handIdx
	curVec := centerVec(centers, int(cur))
	xLast, zLast := curVec.X, curVec.Z

	for {
		best := int32(-1)
		bestScore := math.Inf(-1)
		for n := 0; n < k; n++ {
			if adj.At(int(cur), n) == 0 {
				continue
			}
			nVec := centerVec(centers, n)
			if nVec.Z <= curVec.Z {
				continue
			}
			score := -a.Orientation * nVec.X
			if score > bestScore {
				bestScore = score
				best = int32(n)
			}
		}

		if best < 0 {
			break
		}

		nVec := centerVec(centers, int(best))
		dxdz := a.Orientation * (nVec.X - xLast) / (nVec.Z - zLast)
		if math.Abs(dxdz) >= a.DxDzThreshold {
			break
		}

		chain = append(chain, best)
		cur = best
		curVec = nVec
		xLast, zLast = nVec.X, nVec.Z
	}

	return chain
}

// pickElbow returns the chain index maximizing the product of distances to
// the hand and shoulder endpoints.
func (a *ArmTracer) pickElbow(chain []int32) int32 {
	centers := a.clusterer.Centers
	hand := centerVec(centers, int(chain[0]))
	shoulder := centerVec(centers, int(chain[len(chain)-1]))

	best := chain[0]
	bestScore := math.Inf(-1)
	for _, idx := range chain {
		c := centerVec(centers, int(idx))
		score := c.Sub(hand).Norm() * c.Sub(shoulder).Norm()
		if score > bestScore {
			bestScore = score
			best = idx
		}
	}
	return best
}

// BendAngle returns the angle at the elbow between the forearm
// (hand−elbow) and upper-arm (shoulder−elbow) vectors, in degrees.
func (a *ArmTracer) BendAngle() float64 {
	forearm := a.HandLoc.Sub(a.ElbowLoc)
	upperArm := a.ShoulderLoc.Sub(a.ElbowLoc)
	denom := forearm.Norm() * upperArm.Norm()
	if denom == 0 {
		return 0
	}
	cos := forearm.Dot(upperArm) / denom
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

func centerVec(centers interface {
	At(i, j int) float64
}, row int) Vec3 {
	return Vec3{X: centers.At(row, 0), Y: centers.At(row, 1), Z: centers.At(row, 2)}
}

// lerp blends current toward target: current ← current·(1−t) + target·t.
func lerp(current, target Vec3, t float64) Vec3 {
	return current.Scale(1 - t).Add(target.Scale(t))
}
