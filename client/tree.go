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

import "math/bits"

// Segments decomposes t into the heights of the difference trees covering rounds 1..t,
// largest first, so that t = Σ 2^{h_i}. The last height is the lowest set bit of t: the
// newest tree, whose root is the one a client may report in round t.
func Segments(t int64) []int {
	var heights []int
	for t > 0 {
		h := bits.Len64(uint64(t)) - 1
		heights = append(heights, h)
		t -= int64(1) << h
	}
	return heights
}
