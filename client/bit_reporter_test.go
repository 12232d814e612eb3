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

package client

import (
	"math"
	mathrand "math/rand"
	"testing"

	"github.com/differentialprivacyir/privacyFlow/noise"
	"github.com/differentialprivacyir/privacyFlow/rand"
	"github.com/differentialprivacyir/privacyFlow/stattestutils"
	"github.com/grd/stat"
)

func noiselessBitReporter(t *testing.T, reportLimit int64) *BitReporter {
	t.Helper()
	b, err := NewBitReporter(&BitReporterOptions{
		Epsilon:     1,
		ReportLimit: reportLimit,
		Mechanism:   noise.None(),
		Source:      rand.NewSeeded(1),
	})
	if err != nil {
		t.Fatalf("NewBitReporter: got err %v", err)
	}
	return b
}

func TestNewBitReporter(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		opt     *BitReporterOptions
		wantErr bool
	}{
		{"valid options", &BitReporterOptions{Epsilon: 1, ReportLimit: 3}, false},
		{"nil options", nil, true},
		{"zero epsilon", &BitReporterOptions{Epsilon: 0, ReportLimit: 3}, true},
		{"zero report limit", &BitReporterOptions{Epsilon: 1, ReportLimit: 0}, true},
	} {
		if _, err := NewBitReporter(tc.opt); (err != nil) != tc.wantErr {
			t.Errorf("NewBitReporter: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
	}
}

func TestBitReporterRejectsNonBinaryValues(t *testing.T) {
	b := noiselessBitReporter(t, 10)
	if _, _, err := b.Submit(2); err == nil {
		t.Errorf("Submit(2): got no error, want error")
	}
	if b.Round() != 0 {
		t.Errorf("Submit(2): advanced the round to %d, want 0", b.Round())
	}
}

// Every recomputed node must hold the change of the bit over the subtree it covers, and
// chaining the roots reported at the end of each tree must give back the bit itself.
func TestDifferenceTreeReconstructsPrefixSums(t *testing.T) {
	const rounds = 300
	b := noiselessBitReporter(t, rounds)
	r := mathrand.New(mathrand.NewSource(5))
	x := []int{0}
	roots := map[int64]int{}
	for round := int64(1); round <= rounds; round++ {
		value := r.Intn(2)
		x = append(x, value)
		if _, _, err := b.Submit(value); err != nil {
			t.Fatalf("Submit: got err %v", err)
		}
		nodes := b.Nodes()
		if want := Segments(round)[0] + 1; len(nodes) != want {
			t.Fatalf("round %d: got %d nodes, want %d", round, len(nodes), want)
		}
		if got, want := nodes[0], x[round]-x[round-1]; got != want {
			t.Errorf("round %d: leaf got %d, want %d", round, got, want)
		}
		h := b.RootHeight()
		if got, want := nodes[h], x[round]-x[round-(int64(1)<<h)]; got != want {
			t.Errorf("round %d: root at height %d got %d, want %d", round, h, got, want)
		}
		roots[round] = nodes[h]

		// x[round] = Σ roots along round → round - 2^{lowest set bit} → ... → 0.
		sum := 0
		for s := round; s > 0; s -= int64(1) << Segments(s)[len(Segments(s))-1] {
			sum += roots[s]
		}
		if sum != x[round] {
			t.Errorf("round %d: reconstructed value %d, want %d", round, sum, x[round])
		}
	}
}

func TestBitReporterReportsSelectedNode(t *testing.T) {
	b := noiselessBitReporter(t, 1000)
	values := []int{1, 1, 0, 1, 0, 0, 1, 1, 1, 0, 1, 0}
	for _, value := range values {
		v, h, err := b.Submit(value)
		if err != nil {
			t.Fatalf("Submit: got err %v", err)
		}
		if h != 0 && h != b.RootHeight() {
			t.Errorf("Submit: got height %d, want 0 or %d", h, b.RootHeight())
		}
		if node := b.Nodes()[h]; node != 0 && v != node {
			t.Errorf("Submit: without noise got %d for node value %d", v, node)
		}
	}
	if got, want := b.Changes(), int64(8); got != want {
		t.Errorf("Changes: got %d, want %d", got, want)
	}
}

func TestBitReporterBudgetExhaustion(t *testing.T) {
	const reportLimit = 4
	b := noiselessBitReporter(t, reportLimit)
	spent := int64(0)
	for i := 0; i < 200; i++ {
		// Alternating values keep the leaf non-zero.
		if _, _, err := b.Submit(i % 2); err != nil {
			t.Fatalf("Submit: got err %v", err)
		}
		if b.BudgetSpentLastCall() {
			spent++
			if spent < reportLimit && b.Exhausted() {
				t.Fatalf("Exhausted: got true after %d spends, want false before %d", spent, reportLimit)
			}
		}
		if b.BudgetSpentLastCall() {
			t.Fatalf("BudgetSpentLastCall: second call got true, want the indicator to reset")
		}
	}
	if spent != reportLimit {
		t.Errorf("BitReporter spent budget %d times, want %d", spent, reportLimit)
	}
	if !b.Exhausted() {
		t.Errorf("Exhausted: got false after %d spends, want true", spent)
	}
	if got, want := b.UsedBudget(), b.GlobalBudget(); got != want {
		t.Errorf("UsedBudget: got %f, want %f", got, want)
	}
}

func TestExhaustedBitReporterIsUninformative(t *testing.T) {
	const numberOfSamples = 50000
	b, err := NewBitReporter(&BitReporterOptions{Epsilon: 10, ReportLimit: 1})
	if err != nil {
		t.Fatalf("NewBitReporter: got err %v", err)
	}
	b.Exhaust()
	samples := make(stat.Float64Slice, 0, numberOfSamples)
	for i := 0; i < numberOfSamples; i++ {
		v, h, err := b.Submit(i % 2)
		if err != nil {
			t.Fatalf("Submit: got err %v", err)
		}
		if node := b.Nodes()[h]; node != 0 {
			samples = append(samples, float64(v*node))
		}
		if b.BudgetSpentLastCall() {
			t.Fatalf("BudgetSpentLastCall: got true for an exhausted reporter")
		}
	}
	// With ε = 10 an informative answer agrees with its node almost surely. An exhausted
	// reporter must agree half of the time, i.e. the product has mean 0 and variance 1.
	tolerance := stattestutils.Tolerance(1, len(samples))
	if mean := stat.Mean(samples); math.Abs(mean) > tolerance {
		t.Errorf("exhausted Submit: got mean agreement %f, want 0", mean)
	}
}
