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

// accumulator holds the calibrated sums of one round, split by the difference tree node the
// reports were taken from.
type accumulator struct {
	leafSum   float64 // Σ v·coef over reports of leaves (h = 0).
	leafUsers int64
	rootSum   float64 // Σ v·coef over reports of roots (h > 0).
	rootUsers int64
	lastRoot  int // Largest root height seen.
}

func (a accumulator) add(corrected float64, h int) accumulator {
	if h == 0 {
		a.leafSum += corrected
		a.leafUsers++
		return a
	}
	a.rootSum += corrected
	a.rootUsers++
	if h > a.lastRoot {
		a.lastRoot = h
	}
	return a
}

// merge returns the accumulator holding the reports of both a and b. It keeps the larger root
// height, which equals either input's because every root report of a round shares one height.
func merge(a, b accumulator) accumulator {
	lastRoot := a.lastRoot
	if b.lastRoot > lastRoot {
		lastRoot = b.lastRoot
	}
	return accumulator{
		leafSum:   a.leafSum + b.leafSum,
		leafUsers: a.leafUsers + b.leafUsers,
		rootSum:   a.rootSum + b.rootSum,
		rootUsers: a.rootUsers + b.rootUsers,
		lastRoot:  lastRoot,
	}
}

func (a accumulator) empty() bool {
	return a.leafUsers == 0 && a.rootUsers == 0
}
