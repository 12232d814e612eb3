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

package rand

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/grd/stat"
)

func TestBooleanBufIsShifting(t *testing.T) {
	defer func(buf io.Reader) {
		randBuf = buf
		randBitPos = math.MaxInt8
	}(randBuf)
	randBuf = bytes.NewReader([]byte{
		0b00100100,
		0b10010000,
	})
	randBitPos = math.MaxInt8
	for pos, want := range []bool{
		// first byte
		false,
		false,
		true,
		false,
		false,
		true,
		false,
		false,
		// second byte
		false,
		false,
		false,
		false,
		true,
		false,
		false,
		true,
	} {
		if got := Boolean(); got != want {
			t.Errorf("Boolean: got %v, want %v in %v-th iteration", got, want, pos)
		}
	}
}

func TestUniformIsInUnitInterval(t *testing.T) {
	for _, src := range []Source{Secure(), NewSeeded(42)} {
		for i := 0; i < 10000; i++ {
			if u := src.Uniform(); u <= 0 || u > 1 {
				t.Fatalf("Uniform: got %f, want a value in (0, 1]", u)
			}
		}
	}
}

func TestSeededIsReproducible(t *testing.T) {
	a, b := NewSeeded(7), NewSeeded(7)
	for i := 0; i < 1000; i++ {
		if ua, ub := a.Uniform(), b.Uniform(); ua != ub {
			t.Fatalf("Uniform: with equal seeds got %f and %f in %d-th iteration, want equal draws", ua, ub, i)
		}
		if ba, bb := a.Boolean(), b.Boolean(); ba != bb {
			t.Fatalf("Boolean: with equal seeds got %t and %t in %d-th iteration, want equal draws", ba, bb, i)
		}
	}
}

func TestBernoulliStatistics(t *testing.T) {
	const numberOfSamples = 100000
	for _, p := range []float64{0, 0.1, 0.5, 0.9, 1} {
		samples := make(stat.IntSlice, numberOfSamples)
		src := Secure()
		for i := range samples {
			if Bernoulli(src, p) {
				samples[i] = 1
			}
		}
		sampleMean := stat.Mean(samples)
		// The sample mean is approximately Gaussian with mean p and variance p(1-p)/n. The
		// tolerance is the 99.9995% quantile, so the test falsely rejects with probability 10⁻⁵.
		tolerance := 4.41717 * math.Sqrt(p*(1-p)/numberOfSamples)
		if math.Abs(sampleMean-p) > tolerance {
			t.Errorf("Bernoulli: got mean = %f, want %f", sampleMean, p)
		}
	}
}

func TestSignOfIsBalanced(t *testing.T) {
	const numberOfSamples = 100000
	samples := make(stat.IntSlice, numberOfSamples)
	src := NewSeeded(3)
	for i := range samples {
		s := SignOf(src)
		if s != 1 && s != -1 {
			t.Fatalf("SignOf: got %d, want +1 or -1", s)
		}
		samples[i] = int64(s)
	}
	tolerance := 4.41717 / math.Sqrt(numberOfSamples)
	if mean := stat.Mean(samples); math.Abs(mean) > tolerance {
		t.Errorf("SignOf: got mean = %f, want 0", mean)
	}
}
