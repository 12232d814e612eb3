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

// Package client implements the client side of continual frequency estimation: a
// difference-tree continual counter per bit, perturbed with randomized response under a
// personalized privacy budget.
package client

import (
	"fmt"

	"github.com/differentialprivacyir/privacyFlow/checks"
	"github.com/differentialprivacyir/privacyFlow/noise"
	"github.com/differentialprivacyir/privacyFlow/rand"
)

// BitReporter reports one bit of one client over successive rounds.
//
// Each round it folds the change of the bit into a binary-indexed difference tree, picks
// either the newest leaf or the root of the newest tree with equal probability, and
// perturbs that node's value. Every informative answer spends epsilon; once the reporter
// has spent its budget ReportLimit times it is exhausted and answers uniformly at random
// forever after.
type BitReporter struct {
	// Parameters
	epsilon     float64
	reportLimit int64
	mechanism   noise.Mechanism
	src         rand.Source

	// Difference tree
	t          int64
	nodes      []int // nodes[j] holds the change accumulated by the subtree of height j ending at t.
	previous   int
	rootHeight int

	// Budget
	count         int64
	exhausted     bool
	spentLastCall bool

	changes int64
}

// BitReporterOptions contains the options necessary to initialize a BitReporter.
type BitReporterOptions struct {
	Epsilon     float64         // Privacy parameter ε spent by each informative answer. Required.
	ReportLimit int64           // Number of informative answers the global budget allows. Required.
	Mechanism   noise.Mechanism // Perturbation of the reported node. Defaults to randomized response drawing from Source.
	Source      rand.Source     // Randomness for node selection and uninformative answers. Defaults to rand.Secure().
}

// NewBitReporter returns a new BitReporter.
func NewBitReporter(opt *BitReporterOptions) (*BitReporter, error) {
	if opt == nil {
		opt = &BitReporterOptions{}
	}
	if err := checks.CheckEpsilonStrict(opt.Epsilon); err != nil {
		return nil, fmt.Errorf("NewBitReporter: %w", err)
	}
	if err := checks.CheckReportLimit(opt.ReportLimit); err != nil {
		return nil, fmt.Errorf("NewBitReporter: %w", err)
	}
	src := opt.Source
	if src == nil {
		src = rand.Secure()
	}
	m := opt.Mechanism
	if m == nil {
		m = noise.RandomizedResponse(src)
	}
	return &BitReporter{
		epsilon:     opt.Epsilon,
		reportLimit: opt.ReportLimit,
		mechanism:   m,
		src:         src,
	}, nil
}

// Submit records value, which must be 0 or 1, as the bit of the next round and returns
// the perturbed answer v ∈ {+1, -1} together with the height h of the reported node.
func (b *BitReporter) Submit(value int) (v, h int, err error) {
	if err := checks.CheckBit(value); err != nil {
		return 0, 0, fmt.Errorf("BitReporter.Submit: %w", err)
	}
	b.update(value)
	if b.src.Boolean() {
		h = b.rootHeight
	}
	return b.perturb(b.nodes[h]), h, nil
}

// update advances the round and recomputes the difference tree.
func (b *BitReporter) update(value int) {
	b.t++
	segments := Segments(b.t)
	largest := segments[0]
	b.rootHeight = segments[len(segments)-1]

	delta := value - b.previous
	nodes := make([]int, largest+1)
	prefix := 0
	for j := range nodes {
		if j > b.rootHeight {
			// Trees older than the newest one are complete and keep their values.
			nodes[j] = b.nodes[j]
			continue
		}
		nodes[j] = prefix + delta
		if j < len(b.nodes) {
			prefix += b.nodes[j]
		}
	}
	b.nodes = nodes

	if value != b.previous {
		b.changes++
	}
	b.previous = value
}

func (b *BitReporter) perturb(value int) int {
	if b.exhausted || value == 0 {
		return rand.SignOf(b.src)
	}
	b.count++
	b.spentLastCall = true
	if b.count >= b.reportLimit {
		b.exhausted = true
	}
	return b.mechanism.Perturb(value, b.epsilon)
}

// Exhaust marks the global budget as consumed. Used when the bits of one client share a
// budget and another bit has used it up.
func (b *BitReporter) Exhaust() {
	b.exhausted = true
}

// Exhausted reports whether the reporter only answers uniformly at random.
func (b *BitReporter) Exhausted() bool {
	return b.exhausted
}

// BudgetSpentLastCall reports whether the previous Submit spent budget and resets the
// indicator.
func (b *BitReporter) BudgetSpentLastCall() bool {
	spent := b.spentLastCall
	b.spentLastCall = false
	return spent
}

// UsedBudget returns the privacy budget spent so far.
func (b *BitReporter) UsedBudget() float64 {
	return float64(b.count) * b.epsilon
}

// GlobalBudget returns the total privacy budget of the reporter.
func (b *BitReporter) GlobalBudget() float64 {
	return float64(b.reportLimit) * b.epsilon
}

// Changes returns the number of rounds in which the bit differed from the previous round.
func (b *BitReporter) Changes() int64 {
	return b.changes
}

// Round returns the number of values submitted so far.
func (b *BitReporter) Round() int64 {
	return b.t
}

// RootHeight returns the height of the newest tree's root in the current round.
func (b *BitReporter) RootHeight() int {
	return b.rootHeight
}

// Nodes returns a copy of the difference tree of the current round.
func (b *BitReporter) Nodes() []int {
	return append([]int(nil), b.nodes...)
}
