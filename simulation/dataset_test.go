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
	mathrand "math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/differentialprivacyir/privacyFlow/level"
	"github.com/google/go-cmp/cmp"
)

func TestGenerateConstant(t *testing.T) {
	cfg := DefaultConfig()
	ds, err := Generate(cfg, mathrand.New(mathrand.NewSource(1)))
	if err != nil {
		t.Fatalf("Generate: got err %v", err)
	}
	if diff := cmp.Diff([]int{100, 100, 100}, ds.Population(len(cfg.Levels))); diff != "" {
		t.Errorf("Generate: unexpected population (-want +got):\n%s", diff)
	}
	for _, u := range ds.Users {
		if len(u.Values) != cfg.Rounds {
			t.Fatalf("Generate: user %d got %d rounds, want %d", u.ID, len(u.Values), cfg.Rounds)
		}
		for _, v := range u.Values {
			if v != u.Values[0] {
				t.Errorf("Generate: user %d of a constant dataset got values %v", u.ID, u.Values)
				break
			}
			if v < 0 || v >= 1<<cfg.Bits {
				t.Errorf("Generate: user %d got value %d outside [0, %d)", u.ID, v, 1<<cfg.Bits)
			}
		}
	}
}

func TestGenerateRandomChanges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dataset = RandomDataset
	cfg.ChangeProbability = 1
	cfg.Bits = 10
	ds, err := Generate(cfg, mathrand.New(mathrand.NewSource(1)))
	if err != nil {
		t.Fatalf("Generate: got err %v", err)
	}
	changes := 0
	for _, u := range ds.Users {
		for round := 1; round < len(u.Values); round++ {
			if u.Values[round] != u.Values[round-1] {
				changes++
			}
		}
	}
	// Redrawing 10 bit values repeats a value with probability 2^-10.
	if want := len(ds.Users) * (cfg.Rounds - 1) * 9 / 10; changes < want {
		t.Errorf("Generate: got %d changes, want at least %d", changes, want)
	}
}

func TestGenerateRejectsCSV(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dataset = CSVDataset
	if _, err := Generate(cfg, mathrand.New(mathrand.NewSource(1))); err == nil {
		t.Errorf("Generate: for a csv dataset got no error, want error")
	}
}

func TestTruth(t *testing.T) {
	ds := &Dataset{
		Rounds: 2,
		Users: []User{
			{ID: 1, Values: []int64{0b101, 0b000}},
			{ID: 2, Values: []int64{0b100, 0b111}},
			{ID: 3, Values: []int64{0b001, 0b110}},
			{ID: 4, Values: []int64{0b111, 0b000}},
		},
	}
	if diff := cmp.Diff([]float64{0.75, 0.25, 0.75}, ds.Truth(0, 3)); diff != "" {
		t.Errorf("Truth: round 0 unexpected frequencies (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0.5, 0.5, 0.25}, ds.Truth(1, 3)); diff != "" {
		t.Errorf("Truth: round 1 unexpected frequencies (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0, 0}, (&Dataset{}).Truth(0, 2)); diff != "" {
		t.Errorf("Truth: empty dataset unexpected frequencies (-want +got):\n%s", diff)
	}
}

func TestDatasetCSV(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UsersPerLevel = 5
	cfg.Dataset = RandomDataset
	cfg.ChangeProbability = 0.5
	want, err := Generate(cfg, mathrand.New(mathrand.NewSource(3)))
	if err != nil {
		t.Fatalf("Generate: got err %v", err)
	}
	path := filepath.Join(t.TempDir(), "dataset.csv")
	if err := SaveDataset(cfg, want, path); err != nil {
		t.Fatalf("SaveDataset: got err %v", err)
	}
	cfg.Dataset = CSVDataset
	cfg.DatasetFile = path
	got, err := LoadDataset(cfg)
	if err != nil {
		t.Fatalf("LoadDataset: got err %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadDataset: unexpected dataset (-want +got):\n%s", diff)
	}
}

func TestReadDatasetFromCSVErrors(t *testing.T) {
	table, err := level.NewTable([]float64{0.5, 2})
	if err != nil {
		t.Fatalf("level.NewTable: got err %v", err)
	}
	for _, tc := range []struct {
		desc string
		data string
	}{
		{"wrong header", "id,eps,r0\n1,0.5,3\n"},
		{"no rounds", "user_id,level\n1,0.5\n"},
		{"unknown level", "user_id,level,round_0\n1,3,3\n"},
		{"value too wide", "user_id,level,round_0\n1,2,16\n"},
		{"duplicate user", "user_id,level,round_0\n1,2,1\n1,0.5,1\n"},
		{"malformed value", "user_id,level,round_0\n1,2,x\n"},
		{"missing column", "user_id,level,round_0,round_1\n1,2,1\n"},
	} {
		path := filepath.Join(t.TempDir(), "dataset.csv")
		if err := os.WriteFile(path, []byte(tc.data), 0644); err != nil {
			t.Fatalf("WriteFile: got err %v", err)
		}
		if _, err := readDatasetFromCSV(path, table, 4); err == nil {
			t.Errorf("readDatasetFromCSV: when %s got no error, want error", tc.desc)
		}
	}
}
