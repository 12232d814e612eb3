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

package estimator

import (
	"fmt"

	"github.com/differentialprivacyir/privacyFlow/checks"
	"github.com/differentialprivacyir/privacyFlow/report"
	"gonum.org/v1/gonum/mat"
)

// Estimator fans reports of multi-bit values out to one BitEstimator per bit position.
// Bit 0 is the most significant bit.
type Estimator struct {
	bits       int
	epsilon    float64
	estimators []*BitEstimator
}

// Options is used to set the privacy parameters and the value width of an Estimator.
type Options struct {
	Bits    int     // Width of the reported values. Required.
	Epsilon float64 // Privacy parameter ε of the level. Required.
}

// New returns a new Estimator.
func New(opt *Options) (*Estimator, error) {
	if opt == nil {
		opt = &Options{}
	}
	if err := checks.CheckBits(opt.Bits); err != nil {
		return nil, fmt.Errorf("estimator.New: %w", err)
	}
	estimators := make([]*BitEstimator, opt.Bits)
	for i := range estimators {
		be, err := NewBitEstimator(&BitEstimatorOptions{Epsilon: opt.Epsilon})
		if err != nil {
			return nil, fmt.Errorf("estimator.New: %w", err)
		}
		estimators[i] = be
	}
	return &Estimator{bits: opt.Bits, epsilon: opt.Epsilon, estimators: estimators}, nil
}

// Ingest routes the report (v, h) of one bit to the estimator of that bit.
func (e *Estimator) Ingest(v, h, bit int, replica bool) error {
	if bit < 0 || bit >= e.bits {
		return fmt.Errorf("Estimator.Ingest: bit must be in [0, %d), got %d", e.bits, bit)
	}
	if err := e.estimators[bit].Ingest(v, h, replica); err != nil {
		return fmt.Errorf("Estimator.Ingest: bit %d: %w", bit, err)
	}
	return nil
}

// IngestReport ingests every bit of r. r is validated first so a malformed report leaves
// the estimator unchanged.
func (e *Estimator) IngestReport(r report.Report, replica bool) error {
	if err := r.Validate(e.bits); err != nil {
		return fmt.Errorf("Estimator.IngestReport: %w", err)
	}
	for i := range r.V {
		if err := e.estimators[i].Ingest(r.V[i], r.H[i], replica); err != nil {
			return fmt.Errorf("Estimator.IngestReport: bit %d: %w", i, err)
		}
	}
	return nil
}

// ActivateReplica activates the replica of every bit.
func (e *Estimator) ActivateReplica() error {
	for i, be := range e.estimators {
		if err := be.ActivateReplica(); err != nil {
			return fmt.Errorf("Estimator.ActivateReplica: bit %d: %w", i, err)
		}
	}
	return nil
}

// DeactivateReplica deactivates the replica of every bit.
func (e *Estimator) DeactivateReplica() error {
	for i, be := range e.estimators {
		if err := be.DeactivateReplica(); err != nil {
			return fmt.Errorf("Estimator.DeactivateReplica: bit %d: %w", i, err)
		}
	}
	return nil
}

// Peek returns the current estimate of every bit without committing it.
func (e *Estimator) Peek() []float64 {
	out := make([]float64, e.bits)
	for i, be := range e.estimators {
		out[i] = be.Peek()
	}
	return out
}

// AdvanceRound commits the current estimate of every bit and returns it.
func (e *Estimator) AdvanceRound() ([]float64, error) {
	for i, be := range e.estimators {
		if be.ReplicaActive() {
			return nil, fmt.Errorf("Estimator.AdvanceRound: bit %d: replica must be deactivated before advancing the round", i)
		}
	}
	out := make([]float64, e.bits)
	for i, be := range e.estimators {
		f, err := be.AdvanceRound()
		if err != nil {
			return nil, fmt.Errorf("Estimator.AdvanceRound: bit %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// Predicate returns Peek, or the result of AdvanceRound if advance is set.
func (e *Estimator) Predicate(advance bool) ([]float64, error) {
	if advance {
		return e.AdvanceRound()
	}
	return e.Peek(), nil
}

// Finish returns the committed history as a rounds × bits matrix, or nil if no round has
// been committed.
func (e *Estimator) Finish() *mat.Dense {
	rounds := int(e.Round())
	if rounds == 0 {
		return nil
	}
	m := mat.NewDense(rounds, e.bits, nil)
	for j, be := range e.estimators {
		m.SetCol(j, be.Finish())
	}
	return m
}

// Round returns the number of committed rounds.
func (e *Estimator) Round() int64 {
	return e.estimators[0].Round()
}

// Bits returns the width of the values.
func (e *Estimator) Bits() int {
	return e.bits
}

// Epsilon returns the privacy parameter of the level.
func (e *Estimator) Epsilon() float64 {
	return e.epsilon
}
