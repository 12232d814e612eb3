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

package report

import (
	"testing"

	"github.com/differentialprivacyir/privacyFlow/level"
	"github.com/google/go-cmp/cmp"
)

func TestReportValidate(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		r       Report
		wantErr bool
	}{
		{"valid", Report{V: []int{1, -1}, H: []int{0, 1}}, false},
		{"wrong width", Report{V: []int{1}, H: []int{0}}, true},
		{"invalid value", Report{V: []int{1, 0}, H: []int{0, 1}}, true},
	} {
		if err := tc.r.Validate(2); (err != nil) != tc.wantErr {
			t.Errorf("Validate: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
	}
}

func TestReportClone(t *testing.T) {
	r := Report{V: []int{1, -1}, H: []int{0, 1}}
	c := r.Clone()
	c.V[0] = -1
	c.H[1] = 5
	if r.V[0] != 1 || r.H[1] != 1 {
		t.Errorf("Clone: modifying the clone changed the original, got %+v", r)
	}
}

func TestFromEpsilons(t *testing.T) {
	table, err := level.NewTable([]float64{0.5, 2})
	if err != nil {
		t.Fatalf("NewTable: got err %v", err)
	}
	u1 := UserReport{UserID: 1, Value: Report{V: []int{1}, H: []int{0}}}
	u2 := UserReport{UserID: 2, Value: Report{V: []int{-1}, H: []int{0}}}
	round, err := FromEpsilons(table, map[float64][]UserReport{0.5: {u1}, 2: {u2}})
	if err != nil {
		t.Fatalf("FromEpsilons: got err %v", err)
	}
	want := Round{0: {u1}, 1: {u2}}
	if diff := cmp.Diff(want, round); diff != "" {
		t.Errorf("FromEpsilons: unexpected round (-want +got):\n%s", diff)
	}
	if got := round.Population(1); got != 1 {
		t.Errorf("Population(1): got %d, want 1", got)
	}
	if _, err := FromEpsilons(table, map[float64][]UserReport{3: {u1}}); err == nil {
		t.Errorf("FromEpsilons: with an unknown epsilon got no error, want error")
	}
}
