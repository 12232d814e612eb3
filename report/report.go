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

// Package report defines the wire shape exchanged between clients and the server.
package report

import (
	"fmt"

	"github.com/differentialprivacyir/privacyFlow/checks"
	"github.com/differentialprivacyir/privacyFlow/level"
)

// Report is one user's perturbed answer for one round. V[i] is the noisy sign reported for
// bit i (most significant bit first) and H[i] the height of the difference-tree node it
// was computed from: 0 for the newest leaf, h > 0 for a root covering 2^h rounds.
type Report struct {
	V []int
	H []int
}

// Bits returns the number of bits covered by r.
func (r Report) Bits() int {
	return len(r.V)
}

// Validate returns an error if r is not a well-formed report over bits bits.
func (r Report) Validate(bits int) error {
	return checks.CheckReport(r.V, r.H, bits)
}

// Clone returns a deep copy of r.
func (r Report) Clone() Report {
	return Report{
		V: append([]int(nil), r.V...),
		H: append([]int(nil), r.H...),
	}
}

// UserReport is a Report tagged with the user that produced it.
type UserReport struct {
	UserID int64
	Value  Report
}

// Round holds the reports of one round grouped by the level each user selected.
type Round map[level.ID][]UserReport

// Population returns the number of users that reported at id.
func (r Round) Population(id level.ID) int {
	return len(r[id])
}

// FromEpsilons groups reports keyed by epsilon into a Round keyed by level.ID, resolving
// every epsilon against table exactly once.
func FromEpsilons(table *level.Table, reports map[float64][]UserReport) (Round, error) {
	round := make(Round, len(reports))
	for eps, users := range reports {
		id, err := table.ID(eps)
		if err != nil {
			return nil, fmt.Errorf("report.FromEpsilons: %w", err)
		}
		round[id] = append(round[id], users...)
	}
	return round, nil
}
