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

// Package combiner merges the frequency estimates of several privacy levels into one
// estimate with Advanced Combination.
package combiner

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Weights returns the normalized combination weights of levels 0..target.
//
// estimates[i] is the estimate vector of level i, epsilons[i] its privacy parameter and
// population[i] its number of users; the slices must be indexed by level in ascending
// epsilon order. Only the first target+1 levels are used. The raw weight of level i is
//
//	population[i] / (1 − Σ_bits(estimates[i][bit]² + k/(e^{ε_i/2} + e^{−ε_i/2} − 2)))
//
// where k is the number of bits. An error including the weights is returned if they cannot
// be normalized or if any normalized weight is negative.
func Weights(estimates [][]float64, epsilons []float64, population []int, target int) ([]float64, error) {
	if err := checkInputs(estimates, epsilons, population, target); err != nil {
		return nil, fmt.Errorf("combiner.Weights: %w", err)
	}
	weights := make([]float64, target+1)
	for i := range weights {
		k := float64(len(estimates[i]))
		eps := epsilons[i]
		noiseTerm := k / (math.Exp(eps/2) + math.Exp(-eps/2) - 2)
		denominator := 1 - (floats.Dot(estimates[i], estimates[i]) + k*noiseTerm)
		weights[i] = float64(population[i]) / denominator
	}
	total := floats.Sum(weights)
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("combiner.Weights: weights %v cannot be normalized", weights)
	}
	floats.Scale(1/total, weights)
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return nil, fmt.Errorf("combiner.Weights: negative weight detected: %v", weights)
		}
	}
	return weights, nil
}

// Combine returns the weighted sum of the estimates of levels 0..target, using Weights.
func Combine(estimates [][]float64, epsilons []float64, population []int, target int) ([]float64, error) {
	weights, err := Weights(estimates, epsilons, population, target)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(estimates[target]))
	for i, w := range weights {
		floats.AddScaled(out, w, estimates[i])
	}
	return out, nil
}

func checkInputs(estimates [][]float64, epsilons []float64, population []int, target int) error {
	if target < 0 || target >= len(estimates) {
		return fmt.Errorf("target level %d is out of range for %d levels", target, len(estimates))
	}
	if len(epsilons) <= target || len(population) <= target {
		return fmt.Errorf("got %d epsilons and %d population counts, want at least %d of each", len(epsilons), len(population), target+1)
	}
	bits := len(estimates[target])
	if bits == 0 {
		return fmt.Errorf("estimate of level %d is empty", target)
	}
	for i := 0; i <= target; i++ {
		if len(estimates[i]) != bits {
			return fmt.Errorf("estimate of level %d has %d bits, want %d", i, len(estimates[i]), bits)
		}
		if population[i] < 0 {
			return fmt.Errorf("population of level %d is negative: %d", i, population[i])
		}
	}
	return nil
}
