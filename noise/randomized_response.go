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

package noise

import (
	"math"

	"github.com/differentialprivacyir/privacyFlow/rand"
)

type randomizedResponse struct {
	src rand.Source
}

// RandomizedResponse returns the bounded randomized response mechanism drawing from src.
// A nil src selects the secure source.
func RandomizedResponse(src rand.Source) Mechanism {
	if src == nil {
		src = rand.Secure()
	}
	return randomizedResponse{src: src}
}

// Perturb answers +1 with probability ProbabilityOfOne(value, epsilon) and -1 otherwise.
func (rr randomizedResponse) Perturb(value int, epsilon float64) int {
	if rand.Bernoulli(rr.src, ProbabilityOfOne(float64(value), epsilon)) {
		return 1
	}
	return -1
}

// ProbabilityOfOne returns the probability that randomized response answers +1 for a node
// value in [-1, 1]:
//
//	0.5 + (value/2)·(e^ε − 1)/(e^ε + 1)
func ProbabilityOfOne(value, epsilon float64) float64 {
	return 0.5 + (value/2)*signal(epsilon)
}

// Coefficient returns the debiasing factor (1 + e^ε)/(e^ε − 1) of randomized response, so
// that Coefficient(ε)·E[answer] equals the node value.
func Coefficient(epsilon float64) float64 {
	return 1 / signal(epsilon)
}

// RecycleQ returns q(ε) = (e^{ε/2} − 1)/(e^{ε/2} + 1), the retained signal that data
// recycling attributes to a report at level ε. It is increasing in ε.
func RecycleQ(epsilon float64) float64 {
	return signal(epsilon / 2)
}

// signal returns (e^x − 1)/(e^x + 1), computed without cancellation for small x.
func signal(x float64) float64 {
	em1 := math.Expm1(x)
	if math.IsInf(em1, 1) {
		return 1
	}
	return em1 / (em1 + 2)
}
