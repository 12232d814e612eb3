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

// Package noise contains the local perturbation mechanisms applied by clients to the
// difference-tree node they report.
package noise

import (
	"github.com/differentialprivacyir/privacyFlow/rand"
	log "github.com/golang/glog"
)

// Kind is an enum type. Its values are the supported mechanism kinds.
type Kind int

// Available mechanisms.
const (
	RandomizedResponseNoise Kind = iota
	NoNoise
	Unrecognised
)

// Mechanism perturbs the value of a reported difference-tree node.
type Mechanism interface {
	// Perturb returns +1 or -1 for a non-zero node value such that the output is
	// ε-locally differentially private. Callers must not pass a zero value: a node that
	// carries no change is answered uniformly at random without spending budget.
	Perturb(value int, epsilon float64) int
}

// ToMechanism converts a Kind into the corresponding Mechanism drawing from src. A nil src
// selects the secure source.
func ToMechanism(k Kind, src rand.Source) Mechanism {
	switch k {
	case RandomizedResponseNoise:
		return RandomizedResponse(src)
	case NoNoise:
		return None()
	case Unrecognised:
		log.Warningf("ToMechanism: Unrecognised mechanism specified, returning nil")
	default:
		log.Warningf("ToMechanism: unknown kind (%v) specified, returning nil", k)
	}
	return nil
}

// ToKind converts a Mechanism into the corresponding Kind.
func ToKind(m Mechanism) Kind {
	switch m.(type) {
	case randomizedResponse:
		return RandomizedResponseNoise
	case noNoise:
		return NoNoise
	case nil:
		log.Warningf("ToKind: nil mechanism specified, returning Unrecognised")
	default:
		log.Warningf("ToKind: unknown Mechanism (%v) specified, returning Unrecognised", m)
	}
	return Unrecognised
}

// String returns the name of the mechanism kind.
func (k Kind) String() string {
	switch k {
	case RandomizedResponseNoise:
		return "RandomizedResponse"
	case NoNoise:
		return "NoNoise"
	default:
		return "Unrecognised"
	}
}

type noNoise struct{}

// None returns a Mechanism that reports the sign of the node value without noise. It
// provides no privacy and exists to verify the difference tree and the estimators
// deterministically.
func None() Mechanism {
	return noNoise{}
}

func (noNoise) Perturb(value int, _ float64) int {
	if value > 0 {
		return 1
	}
	return -1
}
