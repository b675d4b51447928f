package armpose

// FrameSegmenter reduces a raw depth image to the single largest
// depth-connected region, discarding everything else: a non-recursive BFS
// flood-fill where each newly-visited pixel is compared against its
// immediate parent's depth (not the seed's), so smoothly curved surfaces
// survive while depth discontinuities still cut the region in two.
type FrameSegmenter struct {
	// Manhattan is the neighbor search radius (Manhattan distance).
	Manhattan int
	// MaxDist is the per-step depth tolerance in meters.
	MaxDist float64
	// Sentinel is the value retained pixels are rewritten to.
	Sentinel uint16
}

// NewFrameSegmenter builds a segmenter that rewrites retained pixels to the
// default sentinel value (50000).
func NewFrameSegmenter(manhattan int, maxDist float64) *FrameSegmenter {
	return &FrameSegmenter{Manhattan: manhattan, MaxDist: maxDist, Sentinel: 50000}
}

type bfsNode struct {
	x, y int
	d    uint16
}

// Segment runs the flood-fill over src and returns the ClusterMap plus a
// filtered depth image where pixels of the winning component are set to
// s.Sentinel and everything else is zero. src is consumed destructively:
// visited pixels are zeroed in place to double as the visited set, so
// callers pass a scratch copy when the source must be preserved.
func (s *FrameSegmenter) Segment(src *DepthImage) (*ClusterMap, *DepthImage) {
	clusters := NewClusterMap(src.Width, src.Height)
	work := src // visited pixels are zeroed in place, doubling as the visited set

	currentInd := int32(0)
	largestInd := int32(-1)
	largestArea := 0

	for y := 0; y < work.Height; y++ {
		for x := 0; x < work.Width; x++ {
			if work.At(x, y) == 0 {
				continue
			}
			area := s.bfsFill(x, y, currentInd, work, clusters)
			if area > largestArea {
				largestArea = area
				largestInd = currentInd
			}
			currentInd++
		}
	}

	filtered := NewDepthImage(src.Width, src.Height, src.DepthScale)
	for i, id := range clusters.IDs {
		if largestInd >= 0 && id == largestInd {
			filtered.Samples[i] = s.Sentinel
		}
	}

	return clusters, filtered
}

// bfsFill expands outward from (x0, y0), stamping cluster_id into clusters
// and zeroing work pixels as they're claimed. Returns the component's pixel
// count. The neighbor-similarity reference point is always the parent pixel
// that discovered the neighbor, not the original seed.
func (s *FrameSegmenter) bfsFill(x0, y0 int, clusterID int32, work *DepthImage, clusters *ClusterMap) int {
	queue := []bfsNode{{x0, y0, work.At(x0, y0)}}
	clusters.Set(x0, y0, clusterID)
	work.Set(x0, y0, 0)
	area := 1

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		yMin := max(cur.y-s.Manhattan, 0)
		yMax := min(cur.y+s.Manhattan, work.Height-1)
		for y := yMin; y <= yMax; y++ {
			dxLim := s.Manhattan - abs(y-cur.y)
			xMin := max(cur.x-dxLim, 0)
			xMax := min(cur.x+dxLim, work.Width-1)
			for x := xMin; x <= xMax; x++ {
				d := work.At(x, y)
				if d == 0 {
					continue
				}
				if float64(absDelta(cur.d, d))*work.DepthScale > s.MaxDist {
					continue
				}
				clusters.Set(x, y, clusterID)
				work.Set(x, y, 0)
				queue = append(queue, bfsNode{x, y, d})
				area++
			}
		}
	}

	return area
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func absDelta(a, b uint16) uint16 {
	if a > b {
		return a - b
	}
	return b - a
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Downscale returns a new DepthImage resampled by area-averaging to
// width*scale x height*scale (rounded). Area-averaging is the usual OpenCV
// choice for shrinking and best preserves depth discontinuities, treating
// the zero "no data" sentinel specially by excluding it from each cell's
// average instead of letting it pull the average toward zero.
func Downscale(src *DepthImage, scale float64) *DepthImage {
	if scale <= 0 || scale >= 1 {
		return src.Clone()
	}

	dstW := int(float64(src.Width)*scale + 0.5)
	dstH := int(float64(src.Height)*scale + 0.5)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := NewDepthImage(dstW, dstH, src.DepthScale)
	cellW := float64(src.Width) / float64(dstW)
	cellH := float64(src.Height) / float64(dstH)

	for dy := 0; dy < dstH; dy++ {
		sy0 := int(float64(dy) * cellH)
		sy1 := min(((dy+1)*src.Height+dstH-1)/dstH, src.Height)
		for dx := 0; dx < dstW; dx++ {
			sx0 := int(float64(dx) * cellW)
			sx1 := min(((dx+1)*src.Width+dstW-1)/dstW, src.Width)

			var sum, count int
			for sy := sy0; sy < sy1; sy++ {
				for sx := sx0; sx < sx1; sx++ {
					v := src.At(sx, sy)
					if v == 0 {
						continue
					}
					sum += int(v)
					count++
				}
			}
			if count > 0 {
				dst.Set(dx, dy, uint16(sum/count))
			}
		}
	}

	return dst
}
