package armpose

import (
	"math/rand"
	"testing"
)

func cloudFromPoints(points []Vec3) *PointCloud {
	cloud := NewPointCloud()
	for _, p := range points {
		cloud.AddPoint(p)
	}
	return cloud
}

func twoBlobCloud() *PointCloud {
	return cloudFromPoints([]Vec3{
		{X: 0, Y: 0, Z: 0}, {X: 0.01, Y: 0, Z: 0}, {X: 0, Y: 0.01, Z: 0}, {X: 0.01, Y: 0.01, Z: 0},
		{X: 5, Y: 5, Z: 5}, {X: 5.01, Y: 5, Z: 5}, {X: 5, Y: 5.01, Z: 5}, {X: 5.01, Y: 5.01, Z: 5},
	})
}

func TestClusterer_UpdatePointCloud_PreservesLabels(t *testing.T) {
	c := NewClusterer(2, rand.New(rand.NewSource(1)))
	cloud := cloudFromPoints([]Vec3{{X: 0}, {X: 1}})
	c.UpdatePointCloud(cloud)
	c.Labels[0] = 1
	c.Labels[1] = 0

	cloud.AddPoint(Vec3{X: 2})
	c.UpdatePointCloud(cloud)

	if c.Labels[0] != 1 || c.Labels[1] != 0 {
		t.Error("expected existing labels to be preserved when the cloud grows")
	}
	if c.Labels[2] != -1 {
		t.Error("expected the newly added row to be unlabeled")
	}
}

func TestClusterer_Cluster_InsufficientPoints(t *testing.T) {
	c := NewClusterer(5, rand.New(rand.NewSource(1)))
	cloud := cloudFromPoints([]Vec3{{X: 0}, {X: 1}})
	c.UpdatePointCloud(cloud)

	if c.Cluster(2, 10, 0.01) {
		t.Error("expected Cluster to fail when n < k")
	}
	if len(c.Labels) != 0 {
		t.Error("expected Labels to be cleared on failure")
	}
}

func TestClusterer_Cluster_SeparatesTwoBlobs(t *testing.T) {
	c := NewClusterer(2, rand.New(rand.NewSource(42)))
	cloud := twoBlobCloud()
	c.UpdatePointCloud(cloud)

	if !c.Cluster(5, 50, 1e-6) {
		t.Fatal("expected Cluster to succeed")
	}

	label0 := c.Labels[0]
	for i := 0; i < 4; i++ {
		if c.Labels[i] != label0 {
			t.Errorf("expected first blob's points to share a label, row %d differs", i)
		}
	}
	label4 := c.Labels[4]
	if label4 == label0 {
		t.Error("expected the two blobs to land in different clusters")
	}
	for i := 4; i < 8; i++ {
		if c.Labels[i] != label4 {
			t.Errorf("expected second blob's points to share a label, row %d differs", i)
		}
	}
}

func TestClusterer_ConnectMeans_ThresholdsSymmetrically(t *testing.T) {
	c := NewClusterer(2, rand.New(rand.NewSource(7)))
	cloud := twoBlobCloud()
	c.UpdatePointCloud(cloud)
	if !c.Cluster(5, 50, 1e-6) {
		t.Fatal("expected Cluster to succeed")
	}

	c.ConnectMeans(0.01)

	rows, cols := c.Adj.Dims()
	if rows != 2 || cols != 2 {
		t.Fatalf("expected a 2x2 adjacency matrix, got %dx%d", rows, cols)
	}
	if c.Adj.At(0, 0) != 0 || c.Adj.At(1, 1) != 0 {
		t.Error("expected a zero diagonal")
	}
	if c.Adj.At(0, 1) != c.Adj.At(1, 0) {
		t.Error("expected a symmetric adjacency matrix")
	}
}

func TestClusterer_ConnectMeans_EmptyClusterNoDivideByZero(t *testing.T) {
	c := NewClusterer(3, rand.New(rand.NewSource(3)))
	cloud := cloudFromPoints([]Vec3{{X: 0}, {X: 0.01}, {X: 0.02}})
	c.UpdatePointCloud(cloud)
	c.Labels = []int32{0, 0, 0}
	c.Centers.Set(0, 0, 0.01)
	c.Centers.Set(1, 0, 10)
	c.Centers.Set(2, 0, 20)

	c.ConnectMeans(0.01)

	for i := 0; i < 3; i++ {
		if c.Adj.At(1, i) != 0 || c.Adj.At(i, 1) != 0 {
			t.Error("expected an empty cluster's row/column to stay all-zero")
		}
	}
}
