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

package simulation

import (
	"fmt"
	mathrand "math/rand"

	"github.com/differentialprivacyir/privacyFlow/level"
)

// User is a simulated client: the level it selected and its value in every round.
type User struct {
	ID     int64
	Level  level.ID
	Values []int64
}

// Dataset holds the users of a scenario. Every user has a value for each of Rounds rounds.
type Dataset struct {
	Users  []User
	Rounds int
}

// Generate returns a synthetic dataset of cfg.UsersPerLevel users per level with values
// drawn uniformly from [0, 2^bits).
func Generate(cfg *Config, r *mathrand.Rand) (*Dataset, error) {
	changeProbability := cfg.ChangeProbability
	switch cfg.Dataset {
	case ConstantDataset:
		changeProbability = 0
	case RandomDataset:
	default:
		return nil, fmt.Errorf("simulation.Generate: dataset %q cannot be generated", cfg.Dataset)
	}
	limit := int64(1) << cfg.Bits
	ds := &Dataset{Rounds: cfg.Rounds}
	for l := range cfg.Levels {
		for u := 0; u < cfg.UsersPerLevel; u++ {
			values := make([]int64, cfg.Rounds)
			values[0] = r.Int63n(limit)
			for round := 1; round < cfg.Rounds; round++ {
				values[round] = values[round-1]
				if r.Float64() < changeProbability {
					values[round] = r.Int63n(limit)
				}
			}
			ds.Users = append(ds.Users, User{
				ID:     int64(len(ds.Users)),
				Level:  level.ID(l),
				Values: values,
			})
		}
	}
	return ds, nil
}

// Truth returns the fraction of users whose bit is 1 in the given round, most significant
// bit first.
func (d *Dataset) Truth(round, bits int) []float64 {
	freq := make([]float64, bits)
	if len(d.Users) == 0 {
		return freq
	}
	for _, u := range d.Users {
		for i := 0; i < bits; i++ {
			freq[i] += float64((u.Values[round] >> (bits - 1 - i)) & 1)
		}
	}
	for i := range freq {
		freq[i] /= float64(len(d.Users))
	}
	return freq
}

// Population returns the number of users that selected each level.
func (d *Dataset) Population(levels int) []int {
	out := make([]int, levels)
	for _, u := range d.Users {
		if int(u.Level) < levels {
			out[u.Level]++
		}
	}
	return out
}
