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

package estimator

// replicaState tracks whether the shadow accumulator of recycled reports currently
// contributes to estimates.
type replicaState int

const (
	replicaInactive replicaState = iota
	replicaActive
)

var replicaStateName = map[replicaState]string{
	replicaInactive: "Inactive",
	replicaActive:   "Active",
}

var replicaErrorMessages = map[replicaState]string{
	replicaInactive: "replica is not active",
	replicaActive:   "replica is already active",
}

func (s replicaState) errorMessage() string {
	return replicaErrorMessages[s]
}

func (s replicaState) String() string {
	return replicaStateName[s]
}
