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

// Package level maps privacy levels to stable integer identifiers.
//
// Levels are epsilons sorted in ascending order, so the identifier of a level is also its
// privacy strength rank: a lower ID means a smaller epsilon and a stronger guarantee.
// Components key their state by ID and never compare epsilons directly.
package level

import (
	"fmt"
	"math"

	"github.com/differentialprivacyir/privacyFlow/checks"
)

// ID is the index of a privacy level in its Table.
type ID int

// relativeTolerance bounds the relative difference accepted by Table.ID.
const relativeTolerance = 1e-9

// Table is an immutable, validated list of privacy levels.
type Table struct {
	epsilons []float64
}

// NewTable returns a Table over epsilons, which must be positive, finite and sorted in
// strictly ascending order.
func NewTable(epsilons []float64) (*Table, error) {
	if err := checks.CheckLevels(epsilons); err != nil {
		return nil, fmt.Errorf("level.NewTable: %w", err)
	}
	return &Table{epsilons: append([]float64(nil), epsilons...)}, nil
}

// Len returns the number of levels.
func (t *Table) Len() int {
	return len(t.epsilons)
}

// Valid reports whether id belongs to the table.
func (t *Table) Valid(id ID) bool {
	return id >= 0 && int(id) < len(t.epsilons)
}

// Epsilon returns the epsilon of level id. It panics if id is not Valid.
func (t *Table) Epsilon(id ID) float64 {
	return t.epsilons[id]
}

// Epsilons returns a copy of all epsilons in ascending order.
func (t *Table) Epsilons() []float64 {
	return append([]float64(nil), t.epsilons...)
}

// IDs returns every level ID in ascending order.
func (t *Table) IDs() []ID {
	ids := make([]ID, len(t.epsilons))
	for i := range ids {
		ids[i] = ID(i)
	}
	return ids
}

// ID resolves epsilon to its level. Harnesses that hold epsilons should resolve them once
// and key everything else by the returned ID.
func (t *Table) ID(epsilon float64) (ID, error) {
	for i, eps := range t.epsilons {
		if math.Abs(eps-epsilon) <= relativeTolerance*math.Max(math.Abs(eps), math.Abs(epsilon)) {
			return ID(i), nil
		}
	}
	return 0, fmt.Errorf("epsilon %f is not one of the privacy levels %v", epsilon, t.epsilons)
}

// Stricter returns the levels with a smaller epsilon than id, in ascending order.
func (t *Table) Stricter(id ID) []ID {
	ids := make([]ID, 0, int(id))
	for i := ID(0); i < id; i++ {
		ids = append(ids, i)
	}
	return ids
}

// Looser returns the levels with a larger epsilon than id, in ascending order.
func (t *Table) Looser(id ID) []ID {
	var ids []ID
	for i := id + 1; int(i) < len(t.epsilons); i++ {
		ids = append(ids, i)
	}
	return ids
}
