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

// Package estimator reconstructs population bit frequencies from difference tree reports.
package estimator

import (
	"fmt"

	"github.com/differentialprivacyir/privacyFlow/checks"
	"github.com/differentialprivacyir/privacyFlow/noise"
	log "github.com/golang/glog"
)

// BitEstimator estimates, round after round, the fraction of users whose bit is 1 at one
// privacy level.
//
// Two unbiased estimates are formed every round: one from leaf reports, which describe the
// change since the previous round, and one from root reports, which describe the change
// over the last 2^h rounds. They are combined with inverse-variance weights. Reports of
// recycled data go to a shadow accumulator that only contributes while the replica is
// active, so they never reach the committed history.
//
// BitEstimator is not safe for concurrent use.
type BitEstimator struct {
	epsilon float64
	coef    float64

	live   accumulator
	shadow accumulator
	state  replicaState

	// f[0] and variances[0] are the seed; f[r] is the estimate committed for round r.
	f         []float64
	variances []float64
}

// BitEstimatorOptions is used to set the privacy parameters of a BitEstimator.
type BitEstimatorOptions struct {
	Epsilon float64 // Privacy parameter ε of the level the reports were collected at. Required.
}

// NewBitEstimator returns a new BitEstimator with a history holding only the seed.
func NewBitEstimator(opt *BitEstimatorOptions) (*BitEstimator, error) {
	if opt == nil {
		opt = &BitEstimatorOptions{}
	}
	if err := checks.CheckEpsilonStrict(opt.Epsilon); err != nil {
		return nil, fmt.Errorf("NewBitEstimator: %w", err)
	}
	return &BitEstimator{
		epsilon:   opt.Epsilon,
		coef:      noise.Coefficient(opt.Epsilon),
		f:         []float64{0},
		variances: []float64{0},
	}, nil
}

// Ingest adds a report of value v ∈ {+1,−1} taken from the node of height h. Reports with
// replica set go to the shadow accumulator.
func (e *BitEstimator) Ingest(v, h int, replica bool) error {
	if v != 1 && v != -1 {
		return fmt.Errorf("BitEstimator.Ingest: v must be +1 or -1, got %d", v)
	}
	if err := checks.CheckHeight(h); err != nil {
		return fmt.Errorf("BitEstimator.Ingest: %w", err)
	}
	corrected := float64(v) * e.coef
	if replica {
		e.shadow = e.shadow.add(corrected, h)
	} else {
		e.live = e.live.add(corrected, h)
	}
	return nil
}

// ActivateReplica makes the shadow accumulator contribute to Peek.
func (e *BitEstimator) ActivateReplica() error {
	if e.state != replicaInactive {
		return fmt.Errorf("BitEstimator.ActivateReplica: %s", e.state.errorMessage())
	}
	e.state = replicaActive
	return nil
}

// DeactivateReplica removes the contribution of the shadow accumulator. The shadow reports
// are kept until the round advances.
func (e *BitEstimator) DeactivateReplica() error {
	if e.state != replicaActive {
		return fmt.Errorf("BitEstimator.DeactivateReplica: %s", e.state.errorMessage())
	}
	e.state = replicaInactive
	return nil
}

// ReplicaActive reports whether the shadow accumulator currently contributes to Peek.
func (e *BitEstimator) ReplicaActive() bool {
	return e.state == replicaActive
}

// Peek returns the estimate for the current round, clamped to [0, 1], without committing it.
func (e *BitEstimator) Peek() float64 {
	freq, _ := e.estimate(e.current())
	return clamp(freq, 0, 1)
}

// AdvanceRound commits the estimate of the current round to the history, discards every
// report of the round and returns the committed estimate clamped to [0, 1].
func (e *BitEstimator) AdvanceRound() (float64, error) {
	if e.state != replicaInactive {
		return 0, fmt.Errorf("BitEstimator.AdvanceRound: replica must be deactivated before advancing the round")
	}
	freq, variance := e.estimate(e.live)
	if e.live.empty() {
		log.Warningf("BitEstimator.AdvanceRound: no reports in round %d, the previous estimate carries forward", e.Round()+1)
	}
	e.f = append(e.f, freq)
	e.variances = append(e.variances, variance)
	e.live = accumulator{}
	e.shadow = accumulator{}
	return clamp(freq, 0, 1), nil
}

// Round returns the number of committed rounds.
func (e *BitEstimator) Round() int64 {
	return int64(len(e.f) - 1)
}

// Epsilon returns the privacy parameter of the estimator.
func (e *BitEstimator) Epsilon() float64 {
	return e.epsilon
}

// Finish returns the committed estimates of every round, clamped to [0, 1].
func (e *BitEstimator) Finish() []float64 {
	out := make([]float64, 0, len(e.f)-1)
	for _, f := range e.f[1:] {
		out = append(out, clamp(f, 0, 1))
	}
	return out
}

// Variances returns the variance propagated along with every committed estimate.
func (e *BitEstimator) Variances() []float64 {
	return append([]float64(nil), e.variances[1:]...)
}

func (e *BitEstimator) current() accumulator {
	if e.state == replicaActive {
		return merge(e.live, e.shadow)
	}
	return e.live
}

// estimate computes the unclamped estimate of the current round and its variance.
func (e *BitEstimator) estimate(acc accumulator) (freq, variance float64) {
	last := len(e.f) - 1
	t := last + 1
	coef2 := e.coef * e.coef

	leaf := acc.leafUsers > 0
	f1, v1 := e.f[last], e.variances[last]
	if leaf {
		f1 += acc.leafSum / float64(acc.leafUsers)
		v1 += coef2 / float64(acc.leafUsers)
	}

	// On odd rounds the newest tree has height 0 and the root path coincides with the leaf path.
	root := acc.rootUsers > 0 && t%2 == 0
	if !root {
		return f1, v1
	}
	back := t - 1<<acc.lastRoot
	if back < 0 {
		back = 0
	}
	f2 := e.f[back] + acc.rootSum/float64(acc.rootUsers)
	v2 := e.variances[back] + coef2/float64(acc.rootUsers)
	if !leaf {
		return f2, v2
	}
	w1, w2 := 1/v1, 1/v2
	w := w1 / (w1 + w2)
	return w*f1 + (1-w)*f2, v1 * v2 / (v1 + v2)
}
