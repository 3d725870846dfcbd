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

package execsocket

import (
	"sync"

	"github.com/wercker/pipelined/stopsignal"
)

// Pool is the server's pipeline pool: a mapping of run id to that
// run's stop-signal, guarded by a mutex. An entry is inserted at run
// start and removed when the run's goroutine tree exits.
type Pool struct {
	mu      sync.Mutex
	signals map[string]*stopsignal.Signal
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{signals: make(map[string]*stopsignal.Signal)}
}

// Register adds run_id's stop-signal to the pool.
func (p *Pool) Register(runID string, sig *stopsignal.Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals[runID] = sig
}

// Remove drops run_id from the pool.
func (p *Pool) Remove(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.signals, runID)
}

// Cancel signals the run_id's stop-signal, if it is still registered.
// Reports whether a run was found.
func (p *Pool) Cancel(runID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	sig, ok := p.signals[runID]
	if !ok {
		return false
	}
	sig.Cancel()
	return true
}
