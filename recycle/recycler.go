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

package recycle

import (
	"fmt"

	"github.com/differentialprivacyir/privacyFlow/level"
	"github.com/differentialprivacyir/privacyFlow/rand"
	"github.com/differentialprivacyir/privacyFlow/report"
)

// Recycler expands the population of a privacy level with reports derived from users of
// looser levels within a single round.
//
// Every derived report is cached in the private version set of its user, so deriving the
// same (user, level) twice returns the same report. A Recycler is scoped to one round and
// must not be reused for another. It is not safe for concurrent use.
type Recycler struct {
	table    *level.Table
	round    report.Round
	src      rand.Source
	versions map[int64]map[level.ID]report.Report
}

// Options is used to set the randomness of a Recycler.
type Options struct {
	Source rand.Source // Randomness for re-randomizing answers. Defaults to rand.Secure().
}

// NewRecycler returns a Recycler over the reports of round. Every user must report at
// exactly one level of table.
func NewRecycler(table *level.Table, round report.Round, opt *Options) (*Recycler, error) {
	if table == nil {
		return nil, fmt.Errorf("NewRecycler: level table is nil")
	}
	if opt == nil {
		opt = &Options{}
	}
	src := opt.Source
	if src == nil {
		src = rand.Secure()
	}
	versions := make(map[int64]map[level.ID]report.Report)
	for id, users := range round {
		if !table.Valid(id) {
			return nil, fmt.Errorf("NewRecycler: not defined level in round: %d", id)
		}
		for _, u := range users {
			if _, ok := versions[u.UserID]; ok {
				return nil, fmt.Errorf("NewRecycler: user %d reported more than once", u.UserID)
			}
			versions[u.UserID] = map[level.ID]report.Report{id: u.Value}
		}
	}
	return &Recycler{table: table, round: round, src: src, versions: versions}, nil
}

// Derive returns the report of the user at level target, deriving and caching it if the
// user has no version at target yet.
func (r *Recycler) Derive(userID int64, target level.ID) (report.Report, error) {
	versions, ok := r.versions[userID]
	if !ok {
		return report.Report{}, fmt.Errorf("Recycler.Derive: user %d did not report in this round", userID)
	}
	if v, ok := versions[target]; ok {
		return v.Clone(), nil
	}
	derived, err := Derive(versions, target, r.table, r.src)
	if err != nil {
		return report.Report{}, fmt.Errorf("Recycler.Derive: user %d: %w", userID, err)
	}
	versions[target] = derived
	return derived.Clone(), nil
}

// Recycle returns the expanded group of target, i.e. the real reports at target followed
// by reports derived from every user of a looser level, and the replicated group, i.e. the
// derived reports only.
func (r *Recycler) Recycle(target level.ID) (expanded, replicated []report.UserReport, err error) {
	if !r.table.Valid(target) {
		return nil, nil, fmt.Errorf("Recycler.Recycle: target level %d is not defined", target)
	}
	expanded = append(expanded, r.round[target]...)
	for _, id := range r.table.Looser(target) {
		for _, u := range r.round[id] {
			derived, err := r.Derive(u.UserID, target)
			if err != nil {
				return nil, nil, fmt.Errorf("Recycler.Recycle: %w", err)
			}
			ur := report.UserReport{UserID: u.UserID, Value: derived}
			expanded = append(expanded, ur)
			replicated = append(replicated, ur)
		}
	}
	return expanded, replicated, nil
}

// Versions returns a copy of the private version set of the user.
func (r *Recycler) Versions(userID int64) map[level.ID]report.Report {
	out := make(map[level.ID]report.Report, len(r.versions[userID]))
	for id, v := range r.versions[userID] {
		out[id] = v.Clone()
	}
	return out
}
