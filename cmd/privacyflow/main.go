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

// Command privacyflow runs a privacy flow simulation scenario and reports the estimation
// error of every privacy level.
package main

import (
	"context"
	"flag"

	"github.com/differentialprivacyir/privacyFlow/simulation"
	log "github.com/golang/glog"
)

var (
	configFile        = flag.String("config", "", "YAML file describing the scenario. The built-in three level scenario is run if empty.")
	outputFile        = flag.String("output_file", "", "Output csv file name for the per round results. Overrides output_file of the scenario.")
	datasetOutputFile = flag.String("dataset_output_file", "", "Output csv file name for the simulated dataset.")
	rounds            = flag.Int("rounds", 0, "Number of rounds to run. Overrides rounds of the scenario if positive.")
)

func main() {
	flag.Parse()

	log.Infof("The simulation was run with arguments: config = %q,"+
		" outputFile = %q, datasetOutputFile = %q, rounds = %d",
		*configFile,
		*outputFile,
		*datasetOutputFile,
		*rounds,
	)

	cfg := simulation.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = simulation.LoadConfig(*configFile)
		if err != nil {
			log.Exitf("Couldn't load the scenario, err = %v", err)
		}
	}
	if *outputFile != "" {
		cfg.OutputFile = *outputFile
	}
	if *rounds < 0 {
		log.Exitf("Number of rounds must be non-negative, got %d", *rounds)
	}
	if *rounds > 0 {
		cfg.Rounds = *rounds
	}
	if err := cfg.Validate(); err != nil {
		log.Exitf("Invalid scenario, err = %v", err)
	}

	ds, err := simulation.LoadDataset(cfg)
	if err != nil {
		log.Exitf("Couldn't load the dataset, err = %v", err)
	}
	if *datasetOutputFile != "" {
		if err := simulation.SaveDataset(cfg, ds, *datasetOutputFile); err != nil {
			log.Exitf("Couldn't save the dataset, err = %v", err)
		}
	}

	results, err := simulation.Run(context.Background(), cfg, ds)
	if err != nil {
		log.Exitf("Couldn't execute the simulation, err = %v", err)
	}
	for _, s := range simulation.Summarize(results) {
		log.Infof("Evaluation for level eps = %v: mean absolute error = %f, mean squared error = %f", s.Epsilon, s.MAE, s.MSE)
	}

	log.Infof("Successfully finished executing the simulation")
}
