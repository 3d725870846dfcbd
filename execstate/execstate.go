//   Copyright 2016 Wercker Holding BV
//
//   Licensed under the Apache License, Version 2.0 (the "License");
//   you may not use this file except in compliance with the License.
//   You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
//   Unless required by applicable law or agreed to in writing, software
//   distributed under the License is distributed on an "AS IS" BASIS,
//   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//   See the License for the specific language governing permissions and
//   limitations under the License.

// Package execstate exposes the "update running flag" capability a
// Runner persists through and an Exec Socket observes, without either
// side holding raw mutable shared data.
package execstate

import "sync"

// State is the capability interface the spec calls "executor state":
// the Runner calls UpdateRunning, the Exec Socket calls Running. Only
// the root Runner of a run tree ever calls UpdateRunning; child
// Runners are built with the NoOp variant.
type State interface {
	UpdateRunning(running bool)
	Running() bool
}

// Shared is the default mutex-guarded implementation backing one run.
type Shared struct {
	mu      sync.Mutex
	running bool
}

// NewShared returns a fresh Shared state, initially not running.
func NewShared() *Shared {
	return &Shared{}
}

// UpdateRunning sets the running flag under lock.
func (s *Shared) UpdateRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

// Running reads the running flag under lock.
func (s *Shared) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// noop discards updates; used by every child Runner so that only the
// root of a run tree can affect persisted run state.
type noop struct{}

// NoOp returns the no-op State every child Runner must use.
func NoOp() State {
	return noop{}
}

func (noop) UpdateRunning(bool) {}
func (noop) Running() bool      { return false }
