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

// Package flow orchestrates continual frequency estimation under personalized local
// differential privacy: it files the reports of every round into per-level estimators,
// recycles reports of looser levels into stricter ones and combines the levels into the
// answer for a requested level.
package flow

import (
	"errors"
	"fmt"
	"sync"

	"github.com/differentialprivacyir/privacyFlow/checks"
	"github.com/differentialprivacyir/privacyFlow/combiner"
	"github.com/differentialprivacyir/privacyFlow/estimator"
	"github.com/differentialprivacyir/privacyFlow/level"
	"github.com/differentialprivacyir/privacyFlow/rand"
	"github.com/differentialprivacyir/privacyFlow/recycle"
	"github.com/differentialprivacyir/privacyFlow/report"
	log "github.com/golang/glog"
	"gonum.org/v1/gonum/mat"
)

// Manager runs the rounds of a privacy flow. Each round goes through SubmitRound, any
// number of Estimate, Peek and Population calls, and a single AdvanceRound.
//
// Manager is safe for concurrent use; operations are serialized.
type Manager struct {
	mu sync.Mutex

	table      *level.Table
	bits       int
	src        rand.Source
	estimators []*estimator.Estimator // Indexed by level.ID.

	submitted  bool
	population []int
}

// Options is used to set up a Manager.
type Options struct {
	Levels []float64 // Privacy levels, sorted ascending. Required.
	Bits   int       // Width of the reported values. Required.
	// Randomness used to recycle reports. Defaults to rand.Secure().
	Source rand.Source
	// Reports of a first round. Not supported anymore; rounds must be submitted with
	// SubmitRound. Must be empty.
	Data report.Round
}

// NewManager returns a new Manager with one estimator per privacy level.
func NewManager(opt *Options) (*Manager, error) {
	if opt == nil {
		opt = &Options{}
	}
	if len(opt.Data) > 0 {
		return nil, fmt.Errorf("NewManager: data is not supported in the constructor anymore, submit it with SubmitRound")
	}
	table, err := level.NewTable(opt.Levels)
	if err != nil {
		return nil, fmt.Errorf("NewManager: %w", err)
	}
	if err := checks.CheckBits(opt.Bits); err != nil {
		return nil, fmt.Errorf("NewManager: %w", err)
	}
	src := opt.Source
	if src == nil {
		src = rand.Secure()
	}
	estimators := make([]*estimator.Estimator, table.Len())
	for _, id := range table.IDs() {
		e, err := estimator.New(&estimator.Options{Bits: opt.Bits, Epsilon: table.Epsilon(id)})
		if err != nil {
			return nil, fmt.Errorf("NewManager: level %d: %w", id, err)
		}
		estimators[id] = e
	}
	return &Manager{
		table:      table,
		bits:       opt.Bits,
		src:        src,
		estimators: estimators,
		population: make([]int, table.Len()),
	}, nil
}

// Levels returns the privacy level table of the manager.
func (m *Manager) Levels() *level.Table {
	return m.table
}

// SubmitRound files the reports of the current round. Real reports go to the estimator of
// the level they were collected at, and reports recycled from looser levels go to the
// replica of every stricter level.
//
// Reports are validated per user: a malformed report or a user reporting more than once is
// skipped, the remaining reports are filed and the failures are returned joined. Reports at
// a level outside the table, or a second submission in the same round, fail the whole call.
func (m *Manager) SubmitRound(round report.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitted {
		return fmt.Errorf("Manager.SubmitRound: round %d was already submitted", m.round()+1)
	}
	for id := range round {
		if !m.table.Valid(id) {
			return fmt.Errorf("Manager.SubmitRound: not defined level: %d", id)
		}
	}

	var errs []error
	accepted := make(report.Round, len(round))
	seen := make(map[int64]bool)
	for _, id := range m.table.IDs() {
		for _, u := range round[id] {
			if seen[u.UserID] {
				errs = append(errs, fmt.Errorf("user %d: reported more than once", u.UserID))
				continue
			}
			seen[u.UserID] = true
			if err := m.estimators[id].IngestReport(u.Value, false); err != nil {
				errs = append(errs, fmt.Errorf("user %d: %w", u.UserID, err))
				continue
			}
			accepted[id] = append(accepted[id], u)
		}
	}
	if len(errs) > 0 {
		log.Warningf("Manager.SubmitRound: skipped %d of the reports of round %d", len(errs), m.round()+1)
	}

	recycler, err := recycle.NewRecycler(m.table, accepted, &recycle.Options{Source: m.src})
	if err != nil {
		return fmt.Errorf("Manager.SubmitRound: %w", err)
	}
	for _, id := range m.table.IDs() {
		_, replicated, err := recycler.Recycle(id)
		if err != nil {
			return fmt.Errorf("Manager.SubmitRound: %w", err)
		}
		for _, u := range replicated {
			if err := m.estimators[id].IngestReport(u.Value, true); err != nil {
				return fmt.Errorf("Manager.SubmitRound: recycled report of user %d: %w", u.UserID, err)
			}
		}
		m.population[id] = accepted.Population(id)
	}
	m.submitted = true

	if len(errs) > 0 {
		return fmt.Errorf("Manager.SubmitRound: %w", errors.Join(errs...))
	}
	return nil
}

// Estimate returns the estimated frequency of ones per bit at level id for the current
// round. The estimate of id includes the reports recycled from looser levels and is
// combined with the plain estimates of every stricter level.
func (m *Manager) Estimate(id level.ID) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkEstimate(id); err != nil {
		return nil, fmt.Errorf("Manager.Estimate: %w", err)
	}
	estimates := make([][]float64, m.table.Len())
	for _, stricter := range m.table.Stricter(id) {
		estimates[stricter] = m.estimators[stricter].Peek()
	}
	e := m.estimators[id]
	if err := e.ActivateReplica(); err != nil {
		return nil, fmt.Errorf("Manager.Estimate: %w", err)
	}
	estimates[id] = e.Peek()
	if err := e.DeactivateReplica(); err != nil {
		return nil, fmt.Errorf("Manager.Estimate: %w", err)
	}
	for _, looser := range m.table.Looser(id) {
		estimates[looser] = make([]float64, m.bits)
	}
	out, err := combiner.Combine(estimates, m.table.Epsilons(), m.population, int(id))
	if err != nil {
		return nil, fmt.Errorf("Manager.Estimate: level %d: %w", id, err)
	}
	return out, nil
}

// Peek returns the estimate of level id for the current round from the reports collected
// at that level alone.
func (m *Manager) Peek(id level.ID) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkEstimate(id); err != nil {
		return nil, fmt.Errorf("Manager.Peek: %w", err)
	}
	return m.estimators[id].Peek(), nil
}

// Population returns the number of users whose reports at level id were accepted in the
// current round.
func (m *Manager) Population(id level.ID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.table.Valid(id) {
		return 0
	}
	return m.population[id]
}

// AdvanceRound commits the current round in every estimator and discards its recycled
// reports.
func (m *Manager) AdvanceRound() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.submitted {
		return fmt.Errorf("Manager.AdvanceRound: no reports were submitted in round %d", m.round()+1)
	}
	for id, e := range m.estimators {
		if _, err := e.AdvanceRound(); err != nil {
			return fmt.Errorf("Manager.AdvanceRound: level %d: %w", id, err)
		}
	}
	m.submitted = false
	for i := range m.population {
		m.population[i] = 0
	}
	return nil
}

// Round returns the number of committed rounds.
func (m *Manager) Round() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.round()
}

// Finish returns, per level, the committed estimates as a rounds × bits matrix, or nil for
// every level if no round was committed.
func (m *Manager) Finish() []*mat.Dense {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*mat.Dense, len(m.estimators))
	for id, e := range m.estimators {
		out[id] = e.Finish()
	}
	return out
}

func (m *Manager) round() int64 {
	return m.estimators[0].Round()
}

func (m *Manager) checkEstimate(id level.ID) error {
	if !m.table.Valid(id) {
		return fmt.Errorf("not defined level: %d", id)
	}
	if !m.submitted {
		return fmt.Errorf("no reports were submitted in round %d", m.round()+1)
	}
	return nil
}
