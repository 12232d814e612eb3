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

// Package simulation runs privacy flow scenarios end to end: it simulates the clients of
// every privacy level on a dataset, feeds their reports to a flow.Manager round by round
// and measures the estimates against the true bit frequencies.
package simulation

import (
	"fmt"
	"io"
	"os"

	"github.com/differentialprivacyir/privacyFlow/checks"
	"github.com/differentialprivacyir/privacyFlow/noise"
	"gopkg.in/yaml.v3"
)

// DatasetKind selects where the values of the simulated users come from.
type DatasetKind string

const (
	// ConstantDataset draws one value per user and keeps it for every round.
	ConstantDataset DatasetKind = "constant"
	// RandomDataset draws a value per user and redraws it every round with probability
	// ChangeProbability.
	RandomDataset DatasetKind = "random"
	// CSVDataset reads the values from DatasetFile.
	CSVDataset DatasetKind = "csv"
)

// Config describes a simulation scenario.
type Config struct {
	// Privacy levels, sorted ascending.
	Levels []float64 `yaml:"levels"`
	// Width of the values.
	Bits int `yaml:"bits"`
	// Number of generated users per level. Ignored for CSV datasets.
	UsersPerLevel int `yaml:"users_per_level"`
	// Number of rounds to run.
	Rounds int `yaml:"rounds"`
	// Perturbation applied by the clients, by the name of its noise.Kind.
	Mechanism string `yaml:"mechanism"`
	// Number of rounds in which every client may spend its privacy budget.
	ReportLimit int64 `yaml:"report_limit"`
	// Seed of every random draw. 0 uses secure randomness for the clients and the
	// recycler and a time based seed for generated datasets.
	Seed int64 `yaml:"seed"`
	// Dataset kind.
	Dataset DatasetKind `yaml:"dataset"`
	// Path of the dataset for CSV datasets.
	DatasetFile string `yaml:"dataset_file,omitempty"`
	// Probability that a user of a random dataset changes its value between rounds.
	ChangeProbability float64 `yaml:"change_probability"`
	// Path of the CSV file results are written to. Empty skips writing.
	OutputFile string `yaml:"output_file,omitempty"`
}

// DefaultConfig returns the three level scenario used to compare recycled estimates with
// single level ones.
func DefaultConfig() *Config {
	return &Config{
		Levels:            []float64{0.5, 2, 10},
		Bits:              4,
		UsersPerLevel:     100,
		Rounds:            5,
		Mechanism:         noise.RandomizedResponseNoise.String(),
		ReportLimit:       5,
		Dataset:           ConstantDataset,
		ChangeProbability: 0,
	}
}

// Validate returns an error if the scenario cannot be run.
func (c *Config) Validate() error {
	if err := checks.CheckLevels(c.Levels); err != nil {
		return err
	}
	if err := checks.CheckBits(c.Bits); err != nil {
		return err
	}
	if err := checks.CheckReportLimit(c.ReportLimit); err != nil {
		return err
	}
	if _, err := c.mechanismKind(); err != nil {
		return err
	}
	if c.Rounds <= 0 {
		return fmt.Errorf("rounds must be positive, got %d", c.Rounds)
	}
	switch c.Dataset {
	case ConstantDataset, RandomDataset:
		if c.UsersPerLevel <= 0 {
			return fmt.Errorf("users_per_level must be positive, got %d", c.UsersPerLevel)
		}
		if c.ChangeProbability < 0 || c.ChangeProbability > 1 {
			return fmt.Errorf("change_probability must be in [0, 1], got %f", c.ChangeProbability)
		}
	case CSVDataset:
		if c.DatasetFile == "" {
			return fmt.Errorf("dataset_file is required for csv datasets")
		}
	default:
		return fmt.Errorf("unknown dataset %q, must be one of %q, %q or %q", c.Dataset, ConstantDataset, RandomDataset, CSVDataset)
	}
	return nil
}

// LoadConfig loads and validates a scenario from a YAML file. Fields missing from the file
// keep the values of DefaultConfig.
func LoadConfig(filePath string) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// SaveConfig saves a scenario to a YAML file.
func SaveConfig(config *Config, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(filePath, data, 0644)
}

func (c *Config) mechanismKind() (noise.Kind, error) {
	for _, k := range []noise.Kind{noise.RandomizedResponseNoise, noise.NoNoise} {
		if c.Mechanism == k.String() {
			return k, nil
		}
	}
	return noise.Unrecognised, fmt.Errorf("unknown mechanism %q, must be %q or %q", c.Mechanism, noise.RandomizedResponseNoise, noise.NoNoise)
}
