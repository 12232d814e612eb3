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
	"fmt"

	"github.com/differentialprivacyir/privacyFlow/checks"
	"github.com/differentialprivacyir/privacyFlow/noise"
	"github.com/differentialprivacyir/privacyFlow/rand"
	"github.com/differentialprivacyir/privacyFlow/report"
)

// Reporter reports a fixed-width integer value by running one BitReporter per bit.
//
// The bits share one global budget: every round in which at least one bit spends epsilon
// consumes epsilon from it, and once ReportLimit rounds have done so every bit is exhausted.
type Reporter struct {
	bits        int
	epsilon     float64
	reportLimit int64
	reporters   []*BitReporter

	spentRounds int64
	changes     int64
	previous    int64
}

// ReporterOptions contains the options necessary to initialize a Reporter.
type ReporterOptions struct {
	Bits        int             // Width of the reported values. Required.
	Epsilon     float64         // Privacy parameter ε of the level the client selected. Required.
	ReportLimit int64           // Number of rounds the global budget allows to spend ε in. Required.
	Mechanism   noise.Mechanism // Perturbation shared by all bits. Defaults to randomized response drawing from Source.
	Source      rand.Source     // Defaults to rand.Secure().
}

// NewReporter returns a new Reporter.
func NewReporter(opt *ReporterOptions) (*Reporter, error) {
	if opt == nil {
		opt = &ReporterOptions{}
	}
	if err := checks.CheckBits(opt.Bits); err != nil {
		return nil, fmt.Errorf("NewReporter: %w", err)
	}
	reporters := make([]*BitReporter, opt.Bits)
	for i := range reporters {
		br, err := NewBitReporter(&BitReporterOptions{
			Epsilon:     opt.Epsilon,
			ReportLimit: opt.ReportLimit,
			Mechanism:   opt.Mechanism,
			Source:      opt.Source,
		})
		if err != nil {
			return nil, fmt.Errorf("NewReporter: %w", err)
		}
		reporters[i] = br
	}
	return &Reporter{
		bits:        opt.Bits,
		epsilon:     opt.Epsilon,
		reportLimit: opt.ReportLimit,
		reporters:   reporters,
		previous:    -1,
	}, nil
}

// Submit binarizes value most significant bit first, submits every bit to its
// BitReporter and returns the combined report.
func (r *Reporter) Submit(value int64) (report.Report, error) {
	if err := checks.CheckValue(value, r.bits); err != nil {
		return report.Report{}, fmt.Errorf("Reporter.Submit: %w", err)
	}
	if value != r.previous {
		r.changes++
	}
	r.previous = value

	out := report.Report{V: make([]int, r.bits), H: make([]int, r.bits)}
	spent := false
	for i, br := range r.reporters {
		bit := int(value>>(r.bits-1-i)) & 1
		v, h, err := br.Submit(bit)
		if err != nil {
			return report.Report{}, fmt.Errorf("Reporter.Submit: bit %d: %w", i, err)
		}
		out.V[i], out.H[i] = v, h
		// Every indicator is queried so none carries over to the next round.
		if br.BudgetSpentLastCall() {
			spent = true
		}
	}
	if spent {
		r.spentRounds++
		if r.spentRounds >= r.reportLimit {
			for _, br := range r.reporters {
				br.Exhaust()
			}
		}
	}
	return out, nil
}

// Bits returns the width of the reported values.
func (r *Reporter) Bits() int {
	return r.bits
}

// Epsilon returns the privacy parameter of the client's level.
func (r *Reporter) Epsilon() float64 {
	return r.epsilon
}

// UsedBudget returns the shared privacy budget spent so far.
func (r *Reporter) UsedBudget() float64 {
	return float64(r.spentRounds) * r.epsilon
}

// Exhausted reports whether every bit answers uniformly at random.
func (r *Reporter) Exhausted() bool {
	for _, br := range r.reporters {
		if !br.Exhausted() {
			return false
		}
	}
	return true
}

// Changes returns the number of rounds whose value differed from the previous round. The
// first submitted value counts as a change.
func (r *Reporter) Changes() int64 {
	return r.changes
}

// BitReporter returns the reporter of bit i, where bit 0 is the most significant one.
func (r *Reporter) BitReporter(i int) *BitReporter {
	return r.reporters[i]
}
