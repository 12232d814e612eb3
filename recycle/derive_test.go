//
// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package recycle

import (
	"math"
	"testing"

	"github.com/differentialprivacyir/privacyFlow/level"
	"github.com/differentialprivacyir/privacyFlow/noise"
	"github.com/differentialprivacyir/privacyFlow/rand"
	"github.com/differentialprivacyir/privacyFlow/report"
	"github.com/differentialprivacyir/privacyFlow/stattestutils"
	"github.com/google/go-cmp/cmp"
	"github.com/grd/stat"
)

func newTable(t *testing.T, epsilons ...float64) *level.Table {
	t.Helper()
	table, err := level.NewTable(epsilons)
	if err != nil {
		t.Fatalf("level.NewTable(%v): got err %v", epsilons, err)
	}
	return table
}

func TestDeriveErrors(t *testing.T) {
	table := newTable(t, 0.5, 2, 10)
	r := report.Report{V: []int{1, -1}, H: []int{0, 1}}
	for _, tc := range []struct {
		desc     string
		versions map[level.ID]report.Report
		target   level.ID
	}{
		{"empty version set", map[level.ID]report.Report{}, 0},
		{"unmapped level", map[level.ID]report.Report{3: r}, 0},
		{"undefined target", map[level.ID]report.Report{2: r}, 5},
		{"target looser than every version", map[level.ID]report.Report{0: r}, 1},
		{"versions of different widths", map[level.ID]report.Report{0: {V: []int{1}, H: []int{0}}, 2: r}, 1},
	} {
		if _, err := Derive(tc.versions, tc.target, table, rand.NewSeeded(1)); err == nil {
			t.Errorf("Derive: when %s got no error, want error", tc.desc)
		}
	}
}

func TestDeriveIdentity(t *testing.T) {
	table := newTable(t, 0.5, 2, 10)
	versions := map[level.ID]report.Report{
		1: {V: []int{1, -1, 1}, H: []int{0, 2, 0}},
		2: {V: []int{-1, -1, 1}, H: []int{1, 0, 0}},
	}
	got, err := Derive(versions, 1, table, rand.NewSeeded(1))
	if err != nil {
		t.Fatalf("Derive: got err %v", err)
	}
	if diff := cmp.Diff(versions[1], got); diff != "" {
		t.Errorf("Derive: for a cached level got a modified report (-want +got):\n%s", diff)
	}
	got.V[0] = -1
	if versions[1].V[0] != 1 {
		t.Errorf("Derive: returned report aliases the cached version")
	}
}

func TestDeriveInheritsHeightsOfInfimum(t *testing.T) {
	table := newTable(t, 0.5, 1, 2, 10)
	versions := map[level.ID]report.Report{
		0: {V: []int{1, 1}, H: []int{3, 3}},
		2: {V: []int{1, -1}, H: []int{0, 2}},
		3: {V: []int{-1, -1}, H: []int{1, 1}},
	}
	got, err := Derive(versions, 1, table, rand.NewSeeded(3))
	if err != nil {
		t.Fatalf("Derive: got err %v", err)
	}
	if diff := cmp.Diff([]int{0, 2}, got.H); diff != "" {
		t.Errorf("Derive: unexpected heights (-want +got):\n%s", diff)
	}
	for i, v := range got.V {
		if v != 1 && v != -1 {
			t.Errorf("Derive: bit %d got %d, want ±1", i, v)
		}
	}
}

func TestThresholdsAreProbabilities(t *testing.T) {
	levels := []float64{0.1, 0.5, 1, 2, 5, 10}
	for i := range levels {
		for j := i + 1; j < len(levels); j++ {
			for k := j + 1; k < len(levels); k++ {
				qI, qTarget, qS := noise.RecycleQ(levels[i]), noise.RecycleQ(levels[j]), noise.RecycleQ(levels[k])
				t1 := (1 + f1(qS, qTarget) + g1(qS, qTarget, qI)) / 2
				t2 := (1 + f2(qS, qTarget, qI) - g2(qS, qTarget, qI)) / 2
				if t1 < 0 || t1 > 1 || t2 < 0 || t2 > 1 {
					t.Errorf("thresholds for supremum %f, target %f, infimum %f: got %f and %f, want both in [0, 1]",
						levels[i], levels[j], levels[k], t1, t2)
				}
			}
		}
	}
}

// Deriving from a looser version alone scales the expected agreement with the true sign by
// q(target)/q(infimum).
func TestDeriveWithoutSupremumShrinksSignal(t *testing.T) {
	const numberOfSamples = 100000
	table := newTable(t, 1, 4)
	src := rand.NewSeeded(42)
	rr := noise.RandomizedResponse(src)
	samples := make(stat.Float64Slice, numberOfSamples)
	for i := range samples {
		versions := map[level.ID]report.Report{1: {V: []int{rr.Perturb(1, 4)}, H: []int{0}}}
		got, err := Derive(versions, 0, table, src)
		if err != nil {
			t.Fatalf("Derive: got err %v", err)
		}
		samples[i] = float64(got.V[0])
	}
	want := math.Tanh(2) * noise.RecycleQ(1) / noise.RecycleQ(4)
	sigma := math.Sqrt(1 - want*want)
	tolerance := stattestutils.Tolerance(sigma, numberOfSamples)
	if mean := stat.Mean(samples); math.Abs(mean-want) > tolerance {
		t.Errorf("Derive: got mean answer %f, want %f ± %f", mean, want, tolerance)
	}
}
