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
	"context"
	"fmt"
	mathrand "math/rand"
	"runtime"
	"time"

	"github.com/differentialprivacyir/privacyFlow/client"
	"github.com/differentialprivacyir/privacyFlow/flow"
	"github.com/differentialprivacyir/privacyFlow/level"
	"github.com/differentialprivacyir/privacyFlow/noise"
	"github.com/differentialprivacyir/privacyFlow/rand"
	"github.com/differentialprivacyir/privacyFlow/report"
	"github.com/differentialprivacyir/privacyFlow/stattestutils"
	log "github.com/golang/glog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Result is the estimate of one level in one round.
type Result struct {
	Round      int
	Epsilon    float64
	Population int
	// Combined is false if the combination of levels failed and Estimate holds the
	// estimate of the level's own reports.
	Combined bool
	Estimate []float64
	Truth    []float64
	MAE      float64
	MSE      float64
}

// Summary aggregates the results of one level over every round.
type Summary struct {
	Epsilon float64
	MAE     float64
	MSE     float64
}

// LoadDataset returns the dataset described by cfg.
func LoadDataset(cfg *Config) (*Dataset, error) {
	if cfg.Dataset == CSVDataset {
		table, err := level.NewTable(cfg.Levels)
		if err != nil {
			return nil, fmt.Errorf("simulation.LoadDataset: %w", err)
		}
		ds, err := readDatasetFromCSV(cfg.DatasetFile, table, cfg.Bits)
		if err != nil {
			return nil, fmt.Errorf("simulation.LoadDataset: %w", err)
		}
		if ds.Rounds < cfg.Rounds {
			return nil, fmt.Errorf("simulation.LoadDataset: the csv file = %q has %d rounds, want at least %d", cfg.DatasetFile, ds.Rounds, cfg.Rounds)
		}
		return ds, nil
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return Generate(cfg, mathrand.New(mathrand.NewSource(seed)))
}

// SaveDataset writes ds as a CSV file that LoadDataset can read back.
func SaveDataset(cfg *Config, ds *Dataset, outputFile string) error {
	table, err := level.NewTable(cfg.Levels)
	if err != nil {
		return fmt.Errorf("simulation.SaveDataset: %w", err)
	}
	return writeDatasetToCSV(ds, table, outputFile)
}

// Run simulates cfg.Rounds rounds of the users of ds and returns the estimate of every
// level in every round. Clients report in parallel.
func Run(ctx context.Context, cfg *Config, ds *Dataset) ([]Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("simulation.Run: %w", err)
	}
	if ds.Rounds < cfg.Rounds {
		return nil, fmt.Errorf("simulation.Run: dataset has %d rounds, want at least %d", ds.Rounds, cfg.Rounds)
	}
	m, err := flow.NewManager(&flow.Options{Levels: cfg.Levels, Bits: cfg.Bits, Source: source(cfg.Seed, 0)})
	if err != nil {
		return nil, fmt.Errorf("simulation.Run: %w", err)
	}
	kind, err := cfg.mechanismKind()
	if err != nil {
		return nil, fmt.Errorf("simulation.Run: %w", err)
	}
	table := m.Levels()
	reporters := make([]*client.Reporter, len(ds.Users))
	for i, u := range ds.Users {
		if !table.Valid(u.Level) {
			return nil, fmt.Errorf("simulation.Run: user %d selected an undefined level %d", u.ID, u.Level)
		}
		src := source(cfg.Seed, u.ID+1)
		reporters[i], err = client.NewReporter(&client.ReporterOptions{
			Bits:        cfg.Bits,
			Epsilon:     table.Epsilon(u.Level),
			ReportLimit: cfg.ReportLimit,
			Mechanism:   noise.ToMechanism(kind, src),
			Source:      src,
		})
		if err != nil {
			return nil, fmt.Errorf("simulation.Run: user %d: %w", u.ID, err)
		}
	}

	var results []Result
	for round := 0; round < cfg.Rounds; round++ {
		reports, err := collect(ctx, reporters, ds, round)
		if err != nil {
			return nil, fmt.Errorf("simulation.Run: round %d: %w", round, err)
		}
		if err := m.SubmitRound(reports); err != nil {
			return nil, fmt.Errorf("simulation.Run: round %d: %w", round, err)
		}
		truth := ds.Truth(round, cfg.Bits)
		for _, id := range table.IDs() {
			res, err := estimate(m, id, truth)
			if err != nil {
				return nil, fmt.Errorf("simulation.Run: round %d: %w", round, err)
			}
			res.Round = round
			results = append(results, res)
		}
		if err := m.AdvanceRound(); err != nil {
			return nil, fmt.Errorf("simulation.Run: round %d: %w", round, err)
		}
		log.Infof("Finished round %d of %d", round+1, cfg.Rounds)
	}

	if cfg.OutputFile != "" {
		if err := writeResultsToCSV(results, cfg.Bits, cfg.OutputFile); err != nil {
			return nil, fmt.Errorf("simulation.Run: %w", err)
		}
		log.Infof("Wrote %d results to %s", len(results), cfg.OutputFile)
	}
	return results, nil
}

// Summarize returns the mean errors of every level over all rounds, in ascending epsilon
// order.
func Summarize(results []Result) []Summary {
	var order []float64
	mae := make(map[float64][]float64)
	mse := make(map[float64][]float64)
	for _, res := range results {
		if _, ok := mae[res.Epsilon]; !ok {
			order = append(order, res.Epsilon)
		}
		mae[res.Epsilon] = append(mae[res.Epsilon], res.MAE)
		mse[res.Epsilon] = append(mse[res.Epsilon], res.MSE)
	}
	out := make([]Summary, 0, len(order))
	for _, eps := range order {
		out = append(out, Summary{
			Epsilon: eps,
			MAE:     stat.Mean(mae[eps], nil),
			MSE:     stat.Mean(mse[eps], nil),
		})
	}
	return out
}

func collect(ctx context.Context, reporters []*client.Reporter, ds *Dataset, round int) (report.Round, error) {
	reports := make([]report.Report, len(reporters))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i := range reporters {
		i := i
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			r, err := reporters[i].Submit(ds.Users[i].Values[round])
			if err != nil {
				return fmt.Errorf("user %d: %w", ds.Users[i].ID, err)
			}
			reports[i] = r
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	out := make(report.Round)
	for i, u := range ds.Users {
		out[u.Level] = append(out[u.Level], report.UserReport{UserID: u.ID, Value: reports[i]})
	}
	return out, nil
}

func estimate(m *flow.Manager, id level.ID, truth []float64) (Result, error) {
	res := Result{Epsilon: m.Levels().Epsilon(id), Population: m.Population(id), Combined: true, Truth: truth}
	est, err := m.Estimate(id)
	if err != nil {
		log.Warningf("Combining levels failed at level %v, using its own estimate: %v", res.Epsilon, err)
		res.Combined = false
		if est, err = m.Peek(id); err != nil {
			return Result{}, err
		}
	}
	res.Estimate = est
	res.MAE = stattestutils.MeanAbsoluteError(est, truth)
	res.MSE = stattestutils.MeanSquaredError(est, truth)
	return res, nil
}

// source returns the randomness of the stream-th consumer of a run.
func source(seed, stream int64) rand.Source {
	if seed == 0 {
		return rand.Secure()
	}
	return rand.NewSeeded(seed*1000003 + stream)
}
