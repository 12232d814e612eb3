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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/differentialprivacyir/privacyFlow/checks"
	"github.com/differentialprivacyir/privacyFlow/level"
)

// readDatasetFromCSV reads a dataset with the header user_id,level,round_0,round_1,...
// The level column holds the epsilon the user selected.
func readDatasetFromCSV(inputFile string, table *level.Table, bits int) (*Dataset, error) {
	csvFile, err := os.Open(inputFile)
	if err != nil {
		return nil, fmt.Errorf("couldn't open the csv file = %q, err = %v", inputFile, err)
	}

	defer csvFile.Close()

	r := csv.NewReader(csvFile)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("couldn't read the header of the csv file = %q, err = %v", inputFile, err)
	}
	if len(header) < 3 || header[0] != "user_id" || header[1] != "level" {
		return nil, fmt.Errorf("the csv file = %q has incorrect format, want header user_id,level,round_0,...", inputFile)
	}

	ds := &Dataset{Rounds: len(header) - 2}
	seen := make(map[int64]bool)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("couldn't read the csv file = %q, err = %v", inputFile, err)
		}

		userID, err := toInt64(record[0])
		if err != nil {
			return nil, fmt.Errorf("couldn't read user_id = %s as int64 in the csv file = %q, err = %v", record[0], inputFile, err)
		}
		if seen[userID] {
			return nil, fmt.Errorf("user_id = %d appears more than once in the csv file = %q", userID, inputFile)
		}
		seen[userID] = true
		eps, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("couldn't read level = %s as float64 in the csv file = %q, err = %v", record[1], inputFile, err)
		}
		id, err := table.ID(eps)
		if err != nil {
			return nil, fmt.Errorf("user_id = %d in the csv file = %q: %w", userID, inputFile, err)
		}
		values := make([]int64, ds.Rounds)
		for i := range values {
			values[i], err = toInt64(record[i+2])
			if err != nil {
				return nil, fmt.Errorf("couldn't read round_%d = %s as int64 in the csv file = %q, err = %v", i, record[i+2], inputFile, err)
			}
			if err := checks.CheckValue(values[i], bits); err != nil {
				return nil, fmt.Errorf("user_id = %d in the csv file = %q: %w", userID, inputFile, err)
			}
		}
		ds.Users = append(ds.Users, User{ID: userID, Level: id, Values: values})
	}

	return ds, nil
}

// writeDatasetToCSV writes ds in the format read by readDatasetFromCSV.
func writeDatasetToCSV(ds *Dataset, table *level.Table, outputFile string) error {
	records := [][]string{append([]string{"user_id", "level"}, roundColumns("round", ds.Rounds)...)}
	for _, u := range ds.Users {
		record := []string{toString(u.ID), strconv.FormatFloat(table.Epsilon(u.Level), 'g', -1, 64)}
		for _, v := range u.Values {
			record = append(record, toString(v))
		}
		records = append(records, record)
	}
	return writeCSV(records, outputFile)
}

// writeResultsToCSV writes one row per round and level.
func writeResultsToCSV(results []Result, bits int, outputFile string) error {
	header := []string{"round", "level", "population", "combined", "mae", "mse"}
	header = append(header, roundColumns("estimate_bit", bits)...)
	header = append(header, roundColumns("truth_bit", bits)...)
	records := [][]string{header}
	for _, res := range results {
		record := []string{
			strconv.Itoa(res.Round),
			strconv.FormatFloat(res.Epsilon, 'g', -1, 64),
			strconv.Itoa(res.Population),
			strconv.FormatBool(res.Combined),
			strconv.FormatFloat(res.MAE, 'g', -1, 64),
			strconv.FormatFloat(res.MSE, 'g', -1, 64),
		}
		for _, f := range res.Estimate {
			record = append(record, strconv.FormatFloat(f, 'g', -1, 64))
		}
		for _, f := range res.Truth {
			record = append(record, strconv.FormatFloat(f, 'g', -1, 64))
		}
		records = append(records, record)
	}
	return writeCSV(records, outputFile)
}

func writeCSV(records [][]string, outputFile string) error {
	csvFile, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("couldn't open the csv file = %q, err = %v", outputFile, err)
	}

	writer := csv.NewWriter(csvFile)

	for _, data := range records {
		err := writer.Write(data)
		if err != nil {
			return fmt.Errorf(
				"couldn't write to the csv file = %q, err = %v",
				outputFile, combineErrors(err, csvFile.Close()))
		}
	}

	writer.Flush()
	err = writer.Error()

	if err != nil {
		return fmt.Errorf(
			"couldn't write to the csv file = %q, err = %v",
			outputFile, combineErrors(err, csvFile.Close()))
	}

	err = csvFile.Close()
	if err != nil {
		return fmt.Errorf("couldn't close the csv file = %q, err = %v", outputFile, err)
	}

	return nil
}

func roundColumns(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + "_" + strconv.Itoa(i)
	}
	return out
}

func toString(n int64) string {
	return strconv.FormatInt(n, 10)
}

func toInt64(str string) (int64, error) {
	return strconv.ParseInt(str, 10, 64)
}

func combineErrors(errors ...error) string {
	var nonNilErrors []error
	for _, err := range errors {
		if err != nil {
			nonNilErrors = append(nonNilErrors, err)
		}
	}
	return fmt.Sprintf("%+v", nonNilErrors)
}
