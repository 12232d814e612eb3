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

// Package rand provides the random draws used by the perturbation and recycling
// mechanisms of the continual frequency estimation protocol.
//
// The package-level functions draw from a cryptographically secure source. Mechanisms take
// a Source so that simulations can be replayed with a seeded source instead.
package rand

import (
	"bufio"
	cryptorand "crypto/rand"
	"encoding/binary"
	"io"
	"math"
	"math/bits"
	mathrand "math/rand"
	"sync"

	log "github.com/golang/glog"
)

var (
	randBufLock sync.Mutex
	randBuf     io.Reader = bufio.NewReaderSize(cryptorand.Reader, 65536)

	randBitLock sync.Mutex
	randBitBuf  uint8
	randBitPos  int8 = math.MaxInt8
)

func readRandBuf(b []byte) (int, error) {
	randBufLock.Lock()
	defer randBufLock.Unlock()
	return io.ReadFull(randBuf, b)
}

// U64 returns a uniformly random uint64.
func U64() uint64 {
	var r [8]uint8
	if _, err := readRandBuf(r[:]); err != nil {
		log.Fatalf("out of randomness, should never happen: %v", err)
	}
	return binary.LittleEndian.Uint64(r[:])
}

// U8 returns a uniformly random uint8.
func U8() uint8 {
	var r [1]uint8
	if _, err := readRandBuf(r[:]); err != nil {
		log.Fatalf("out of randomness, should never happen: %v", err)
	}
	return r[0]
}

// Boolean returns true or false with equal probability.
func Boolean() bool {
	randBitLock.Lock()
	defer randBitLock.Unlock()
	if randBitPos > 7 { // Out of random bits.
		randBitBuf = U8()
		randBitPos = 0
	}
	res := randBitBuf&(1<<randBitPos) > 0
	randBitPos++
	return res
}

// Uniform returns a float64 from the interval (0,1] such that each float
// in the interval is returned with positive probability and the resulting
// distribution simulates a continuous uniform distribution on (0, 1].
func Uniform() float64 {
	i := U64() % (1 << 53)
	r := (1 + float64(i)/(1<<53)) / math.Pow(2, geometric())
	if r == 0 {
		return 1
	}
	return r
}

// geometric returns a float64 that counts the number of Bernoulli trials until
// the first success for a success probability of 0.5.
func geometric() float64 {
	// 1 plus the number of leading zeros from an infinite stream of random bits
	// follows the desired geometric distribution.
	b := 1
	var r uint8
	for r == 0 {
		r = U8()
		b += bits.LeadingZeros8(r)
	}
	return float64(b)
}

// Source provides the random draws consumed by a mechanism.
type Source interface {
	// Uniform returns a float64 from the interval (0,1].
	Uniform() float64
	// Boolean returns true or false with equal probability.
	Boolean() bool
}

type secureSource struct{}

func (secureSource) Uniform() float64 { return Uniform() }
func (secureSource) Boolean() bool    { return Boolean() }

// Secure returns a Source backed by the package-level cryptographically secure functions.
func Secure() Source {
	return secureSource{}
}

// seededSource is a reproducible Source. It is not suitable for protecting real users and
// exists for simulations and tests.
type seededSource struct {
	mu sync.Mutex
	r  *mathrand.Rand
}

// NewSeeded returns a deterministic Source seeded with seed. It is safe for concurrent use.
func NewSeeded(seed int64) Source {
	return &seededSource{r: mathrand.New(mathrand.NewSource(seed))}
}

func (s *seededSource) Uniform() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Float64 is in [0,1), so its complement is in (0,1].
	return 1 - s.r.Float64()
}

func (s *seededSource) Boolean() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Int63()&1 == 1
}

// Bernoulli returns true with probability p, using src.
func Bernoulli(src Source, p float64) bool {
	return src.Uniform() <= p
}

// SignOf returns +1 or -1 with equal probabilities, using src.
func SignOf(src Source) int {
	if src.Boolean() {
		return 1
	}
	return -1
}
