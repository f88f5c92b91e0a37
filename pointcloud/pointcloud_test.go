// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pointcloud_test

import (
	"testing"

	"code.hybscloud.com/pointkit/pointcloud"
)

func TestNewRejectsMismatchedNormals(t *testing.T) {
	pts := []pointcloud.Point{{X: 0}, {X: 1}}
	if _, err := pointcloud.New(pts, make([]pointcloud.Point, 1), nil); err == nil {
		t.Fatal("New with mismatched normals length: want error, got nil")
	}
}

func TestLabeledCloudIndexSets(t *testing.T) {
	pts := make([]pointcloud.Point, 5)
	cloud, err := pointcloud.New(pts, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	labels := []pointcloud.Label{
		pointcloud.LabelEdge,
		pointcloud.LabelNonFeature,
		pointcloud.LabelPlanar,
		pointcloud.LabelEdge,
		pointcloud.LabelNonFeature,
	}
	lc, err := pointcloud.NewLabeledCloud(cloud, labels)
	if err != nil {
		t.Fatalf("NewLabeledCloud: %v", err)
	}

	assertIndices(t, "edge", lc.EdgeIndices(), []int{0, 3})
	assertIndices(t, "planar", lc.PlanarIndices(), []int{2})
	assertIndices(t, "non-feature", lc.NonFeatureIndices(), []int{1, 4})
	assertIndices(t, "extract (edge∪planar)", lc.Extract(), []int{0, 2, 3})
}

func assertIndices(t *testing.T, name string, got pointcloud.KeypointIndexSet, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %v, want %v", name, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s: got %v, want %v", name, got, want)
		}
	}
}
