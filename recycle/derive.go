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

// Package recycle derives reports at stricter privacy levels from reports a user already
// disclosed at looser levels, without further privacy loss.
package recycle

import (
	"fmt"

	"github.com/differentialprivacyir/privacyFlow/level"
	"github.com/differentialprivacyir/privacyFlow/noise"
	"github.com/differentialprivacyir/privacyFlow/rand"
	"github.com/differentialprivacyir/privacyFlow/report"
)

// Derive returns a report of the user at level target given the private version set
// versions, the reports the user already has at other levels.
//
// If versions holds target, that report is returned unchanged. Otherwise the answers of
// the closest looser version (the infimum) are re-randomized with public probabilities,
// using the closest stricter version (the supremum) when there is one. The node heights of
// the derived report are those of the infimum.
//
// An error is returned if versions is empty, holds a level outside table, holds reports of
// different widths, or has no version at a level looser than target.
func Derive(versions map[level.ID]report.Report, target level.ID, table *level.Table, src rand.Source) (report.Report, error) {
	if len(versions) == 0 {
		return report.Report{}, fmt.Errorf("recycle.Derive: private version set is empty")
	}
	if !table.Valid(target) {
		return report.Report{}, fmt.Errorf("recycle.Derive: target level %d is not defined", target)
	}
	infimum, supremum := level.ID(-1), level.ID(-1)
	for id := range versions {
		if !table.Valid(id) {
			return report.Report{}, fmt.Errorf("recycle.Derive: not defined level in private version set: %d", id)
		}
		if id >= target && (infimum < 0 || id < infimum) {
			infimum = id
		}
		if id <= target && (supremum < 0 || id > supremum) {
			supremum = id
		}
	}
	if infimum == target {
		return versions[target].Clone(), nil
	}
	if infimum < 0 {
		return report.Report{}, fmt.Errorf("recycle.Derive: no version at a level looser than %f", table.Epsilon(target))
	}

	zSup := versions[infimum]
	qS := noise.RecycleQ(table.Epsilon(infimum))
	qTarget := noise.RecycleQ(table.Epsilon(target))
	derived := report.Report{V: make([]int, len(zSup.V)), H: append([]int(nil), zSup.H...)}

	if supremum < 0 {
		threshold := (qS + qTarget) / (2 * qS)
		for i, v := range zSup.V {
			derived.V[i] = keepOrFlip(v, threshold, src)
		}
		return derived, nil
	}

	zInf := versions[supremum]
	if len(zInf.V) != len(zSup.V) {
		return report.Report{}, fmt.Errorf("recycle.Derive: versions at levels %d and %d have %d and %d bits", supremum, infimum, len(zInf.V), len(zSup.V))
	}
	qI := noise.RecycleQ(table.Epsilon(supremum))
	threshold1 := (1 + f1(qS, qTarget) + g1(qS, qTarget, qI)) / 2
	threshold2 := (1 + f2(qS, qTarget, qI) - g2(qS, qTarget, qI)) / 2
	for i, v := range zSup.V {
		if v == zInf.V[i] {
			derived.V[i] = keepOrFlip(v, threshold1, src)
			continue
		}
		if rand.Bernoulli(src, threshold2) {
			derived.V[i] = v
		} else {
			derived.V[i] = zInf.V[i]
		}
	}
	return derived, nil
}

func keepOrFlip(v int, keep float64, src rand.Source) int {
	if rand.Bernoulli(src, keep) {
		return v
	}
	return -v
}

func f1(qS, qTarget float64) float64 {
	return qTarget / qS
}

func g1(qS, qTarget, qI float64) float64 {
	return ((qS - qTarget) / qS) * (1 - (1-qI/qTarget)/(qI/qS+1))
}

func f2(qS, qTarget, qI float64) float64 {
	return (qTarget - qI) / (qS - qI)
}

func g2(qS, qTarget, qI float64) float64 {
	return (qI * (qS - qTarget)) / (qTarget * (qS - qI))
}
