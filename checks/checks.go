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

// Package checks contains checks for the parameters of the continual frequency
// estimation protocol.
package checks

import (
	"fmt"
	"math"
)

const (
	epsilonName = "Epsilon"
	// maxBits keeps every binarized value and every 2^h lookback inside an int64.
	maxBits = 62
)

func verifyName(defaultName string, nameSlice []string) (string, error) {
	var name string
	switch len(nameSlice) {
	case 0:
		name = defaultName
	case 1:
		name = nameSlice[0]
	default:
		return "", fmt.Errorf("This should never happen. There should be 0 or 1 'name' parameter, got %d", len(nameSlice))
	}
	return name, nil
}

// CheckEpsilonStrict returns an error if ε is nonpositive or +∞.
func CheckEpsilonStrict(epsilon float64, name ...string) error {
	epsName, err := verifyName(epsilonName, name)
	if err != nil {
		return err
	}
	if epsilon <= 0 || math.IsInf(epsilon, 0) || math.IsNaN(epsilon) {
		return fmt.Errorf("%s is %f, must be strictly positive and finite", epsName, epsilon)
	}
	return nil
}

// CheckLevels returns an error if levels is empty, contains an invalid epsilon, or is not
// sorted in strictly ascending order.
//
// The position of a level in the sorted table is its privacy strength rank, so an unsorted
// table would silently map users to the wrong estimators.
func CheckLevels(levels []float64) error {
	if len(levels) == 0 {
		return fmt.Errorf("Levels is empty, must contain at least one privacy level")
	}
	for i, eps := range levels {
		if err := CheckEpsilonStrict(eps, fmt.Sprintf("Level %d epsilon", i)); err != nil {
			return err
		}
		if i > 0 && levels[i-1] >= eps {
			return fmt.Errorf("Levels must be sorted in strictly ascending order, got %f at position %d after %f", eps, i, levels[i-1])
		}
	}
	return nil
}

// CheckReportLimit returns an error if reportLimit is nonpositive.
func CheckReportLimit(reportLimit int64) error {
	if reportLimit <= 0 {
		return fmt.Errorf("ReportLimit is %d, must be strictly positive", reportLimit)
	}
	return nil
}

// CheckBits returns an error if bits is not in [1, 62].
func CheckBits(bits int) error {
	if bits < 1 || bits > maxBits {
		return fmt.Errorf("Bits is %d, must be within [1, %d]", bits, maxBits)
	}
	return nil
}

// CheckBit returns an error if value is neither 0 nor 1.
func CheckBit(value int) error {
	if value != 0 && value != 1 {
		return fmt.Errorf("bit value is %d, must be 0 or 1", value)
	}
	return nil
}

// CheckValue returns an error if value cannot be represented with the given number of bits.
func CheckValue(value int64, bits int) error {
	if err := CheckBits(bits); err != nil {
		return err
	}
	if value < 0 || value >= int64(1)<<bits {
		return fmt.Errorf("value is %d, must be within [0, %d]", value, int64(1)<<bits-1)
	}
	return nil
}

// CheckReport returns an error if the perturbed values v and node heights h do not form a
// valid report over the given number of bits.
func CheckReport(v, h []int, bits int) error {
	if len(v) != bits || len(h) != bits {
		return fmt.Errorf("report has %d values and %d heights, must have %d of each", len(v), len(h), bits)
	}
	for i := range v {
		if v[i] != 1 && v[i] != -1 {
			return fmt.Errorf("report value at bit %d is %d, must be +1 or -1", i, v[i])
		}
		if err := CheckHeight(h[i]); err != nil {
			return fmt.Errorf("report at bit %d: %w", i, err)
		}
	}
	return nil
}

// CheckHeight returns an error if h is not a node height whose 2^h lookback fits in an int64.
func CheckHeight(h int) error {
	if h < 0 || h > maxBits {
		return fmt.Errorf("height is %d, must be within [0, %d]", h, maxBits)
	}
	return nil
}
