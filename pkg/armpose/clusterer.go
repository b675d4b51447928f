package armpose

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Clusterer summarizes a PointCloud into K centers via k-means, then builds
// a binary proximity graph over those centers.
type Clusterer struct {
	K int

	cloud  *PointCloud
	Labels []int32   // one cluster id per cloud row, -1 if never clustered
	Centers *mat.Dense // K x 3
	Adj    *mat.Dense // K x K, symmetric, zero diagonal after ConnectMeans

	rng *rand.Rand
}

// NewClusterer allocates a Clusterer for k clusters, preallocating the
// center and adjacency matrices.
func NewClusterer(k int, rng *rand.Rand) *Clusterer {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Clusterer{
		K:       k,
		Centers: mat.NewDense(k, 3, nil),
		Adj:     mat.NewDense(k, k, nil),
		rng:     rng,
	}
}

// UpdatePointCloud attaches source as the cloud to cluster. Existing labels
// are preserved where row indices still apply, which is what lets Cluster
// warm-start from the previous frame's assignment instead of reseeding from
// scratch every call.
func (c *Clusterer) UpdatePointCloud(source *PointCloud) {
	c.cloud = source
	n := source.Rows()
	if len(c.Labels) == n {
		return
	}
	grown := make([]int32, n)
	copy(grown, c.Labels)
	for i := len(c.Labels); i < n; i++ {
		grown[i] = -1
	}
	c.Labels = grown
}

// Cluster runs k-means over the attached cloud with up to attempts restarts,
// each capped at maxIter iterations or converged once center movement drops
// below epsilon; the restart with lowest sum-of-squared-distances wins.
// Returns false (clearing Labels) if the cloud has fewer points than K.
func (c *Clusterer) Cluster(attempts, maxIter int, epsilon float64) bool {
	n := c.cloud.Rows()
	if n < c.K {
		c.Labels = c.Labels[:0]
		return false
	}

	data := c.cloud.Dense()
	warmStart := len(c.Labels) == n && hasValidLabels(c.Labels, c.K)

	var bestLabels []int32
	var bestCenters *mat.Dense
	bestSSE := math.Inf(1)

	for attempt := 0; attempt < attempts; attempt++ {
		var centers *mat.Dense
		if warmStart && attempt == 0 {
			centers = c.centersFromLabels(data, c.Labels)
		} else {
			centers = c.seedPlusPlus(data)
		}

		labels, finalCenters, sse := lloyd(data, centers, c.K, maxIter, epsilon)
		if sse < bestSSE {
			bestSSE = sse
			bestLabels = labels
			bestCenters = finalCenters
		}
	}

	c.Labels = bestLabels
	c.Centers = bestCenters
	return true
}

func hasValidLabels(labels []int32, k int) bool {
	for _, l := range labels {
		if l < 0 || int(l) >= k {
			return false
		}
	}
	return true
}

// centersFromLabels averages the rows assigned to each label. A label with
// no assigned rows is reseeded at a random data point, matching Lloyd's
// algorithm's usual empty-cluster fallback.
func (c *Clusterer) centersFromLabels(data *mat.Dense, labels []int32) *mat.Dense {
	n, d := data.Dims()
	sums := mat.NewDense(c.K, d, nil)
	counts := make([]int, c.K)

	for i := 0; i < n; i++ {
		k := labels[i]
		for j := 0; j < d; j++ {
			sums.Set(int(k), j, sums.At(int(k), j)+data.At(i, j))
		}
		counts[k]++
	}

	centers := mat.NewDense(c.K, d, nil)
	for k := 0; k < c.K; k++ {
		if counts[k] == 0 {
			row := c.rng.Intn(n)
			for j := 0; j < d; j++ {
				centers.Set(k, j, data.At(row, j))
			}
			continue
		}
		for j := 0; j < d; j++ {
			centers.Set(k, j, sums.At(k, j)/float64(counts[k]))
		}
	}
	return centers
}

// seedPlusPlus picks K initial centers via k-means++: the first uniformly at
// random, each subsequent one with probability proportional to its squared
// distance to the nearest already-chosen center.
func (c *Clusterer) seedPlusPlus(data *mat.Dense) *mat.Dense {
	n, d := data.Dims()
	centers := mat.NewDense(c.K, d, nil)

	first := c.rng.Intn(n)
	copyRow(centers, 0, data, first)

	minDistSq := make([]float64, n)
	for i := range minDistSq {
		minDistSq[i] = rowDistSq(data, i, centers, 0)
	}

	for k := 1; k < c.K; k++ {
		total := 0.0
		for _, v := range minDistSq {
			total += v
		}

		var chosen int
		if total <= 0 {
			chosen = c.rng.Intn(n)
		} else {
			target := c.rng.Float64() * total
			acc := 0.0
			for i, v := range minDistSq {
				acc += v
				if acc >= target {
					chosen = i
					break
				}
			}
		}

		copyRow(centers, k, data, chosen)
		for i := 0; i < n; i++ {
			d2 := rowDistSq(data, i, centers, k)
			if d2 < minDistSq[i] {
				minDistSq[i] = d2
			}
		}
	}

	return centers
}

// lloyd runs standard Lloyd iteration from the given initial centers and
// returns the final labels, centers, and sum-of-squared-distances.
func lloyd(data, initCenters *mat.Dense, k, maxIter int, epsilon float64) ([]int32, *mat.Dense, float64) {
	n, d := data.Dims()
	centers := mat.DenseCopyOf(initCenters)
	labels := make([]int32, n)

	for iter := 0; iter < maxIter; iter++ {
		for i := 0; i < n; i++ {
			best, bestDist := 0, math.Inf(1)
			for kk := 0; kk < k; kk++ {
				dist := rowDistSq(data, i, centers, kk)
				if dist < bestDist {
					bestDist = dist
					best = kk
				}
			}
			labels[i] = int32(best)
		}

		sums := mat.NewDense(k, d, nil)
		counts := make([]int, k)
		for i := 0; i < n; i++ {
			kk := labels[i]
			for j := 0; j < d; j++ {
				sums.Set(int(kk), j, sums.At(int(kk), j)+data.At(i, j))
			}
			counts[kk]++
		}

		moved := 0.0
		for kk := 0; kk < k; kk++ {
			if counts[kk] == 0 {
				continue
			}
			for j := 0; j < d; j++ {
				newVal := sums.At(kk, j) / float64(counts[kk])
				moved += (newVal - centers.At(kk, j)) * (newVal - centers.At(kk, j))
				centers.Set(kk, j, newVal)
			}
		}

		if math.Sqrt(moved) < epsilon {
			break
		}
	}

	sse := 0.0
	for i := 0; i < n; i++ {
		sse += rowDistSq(data, i, centers, int(labels[i]))
	}

	return labels, centers, sse
}

func copyRow(dst *mat.Dense, dstRow int, src *mat.Dense, srcRow int) {
	_, d := src.Dims()
	for j := 0; j < d; j++ {
		dst.Set(dstRow, j, src.At(srcRow, j))
	}
}

func rowDistSq(a *mat.Dense, aRow int, b *mat.Dense, bRow int) float64 {
	_, d := a.Dims()
	sum := 0.0
	for j := 0; j < d; j++ {
		diff := a.At(aRow, j) - b.At(bRow, j)
		sum += diff * diff
	}
	return sum
}

// ConnectMeans builds the weighted adjacency matrix over cluster centers
// from the attached cloud and current Labels, then binarizes it: for every
// point, its distance to its own ("home") cluster center is compared against
// its distance to every other center; a small difference (the point sits
// near the boundary between the two) adds 1/Δ to both adj[home][k] and
// adj[k][home]. After the sweep, density normalization divides each column j
// by the count of points homed at j, then each row i by the count homed at
// i, before thresholding to 0/1 and zeroing the diagonal. Empty clusters get
// an all-zero row/column rather than a divide-by-zero.
func (c *Clusterer) ConnectMeans(threshold float64) {
	k := c.K
	adj := mat.NewDense(k, k, nil)
	histogram := make([]float64, k)

	n := c.cloud.Rows()
	data := c.cloud.Dense()

	for i := 0; i < n; i++ {
		home := int(c.Labels[i])
		homeDist := math.Sqrt(rowDistSq(data, i, c.Centers, home))
		histogram[home]++

		for kk := 0; kk < k; kk++ {
			if kk == home {
				continue
			}
			dist := math.Sqrt(rowDistSq(data, i, c.Centers, kk))
			delta := math.Abs(dist - homeDist)
			if delta == 0 {
				continue
			}
			w := 1 / delta
			adj.Set(home, kk, adj.At(home, kk)+w)
			adj.Set(kk, home, adj.At(home, kk))
		}
	}

	for j := 0; j < k; j++ {
		if histogram[j] == 0 {
			for i := 0; i < k; i++ {
				adj.Set(i, j, 0)
				adj.Set(j, i, 0)
			}
			continue
		}
		for i := 0; i < k; i++ {
			adj.Set(i, j, adj.At(i, j)/histogram[j])
		}
	}
	for i := 0; i < k; i++ {
		if histogram[i] == 0 {
			continue
		}
		for j := 0; j < k; j++ {
			adj.Set(i, j, adj.At(i, j)/histogram[i])
		}
	}

	binarized := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			v := 0.0
			if adj.At(i, j) > threshold {
				v = 1
			}
			binarized.Set(i, j, v)
			binarized.Set(j, i, v)
		}
	}

	c.Adj = binarized
}
