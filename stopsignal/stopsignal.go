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

// Package stopsignal implements the cooperative cancellation broadcast
// threaded through a Runner and all of its children: a single
// producer (the Exec Socket's Pool.Cancel) and any number of
// non-blocking observers (every Runner frame in the tree), latching
// once triggered.
package stopsignal

import (
	"sync"
	"sync/atomic"

	"github.com/wercker/pipelined/pipeline"
)

// Signal is a shared, observe-only cancellation flag. Zero value is
// not usable; construct with New.
type Signal struct {
	triggered int32
	once      sync.Once
	done      chan struct{}
}

// New returns a fresh, untriggered Signal.
func New() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Cancel latches the signal. Safe to call more than once or
// concurrently; only the first call has any effect.
func (s *Signal) Cancel() {
	if atomic.CompareAndSwapInt32(&s.triggered, 0, 1) {
		s.once.Do(func() { close(s.done) })
	}
}

// Triggered is a non-blocking observation of whether Cancel has been
// called. Safe to call from any descendant Runner concurrently.
func (s *Signal) Triggered() bool {
	return atomic.LoadInt32(&s.triggered) == 1
}

// Check is the Runner checkpoint primitive: a non-blocking read that
// returns pipeline.ErrCancelled if the signal has latched, nil
// otherwise. Call after every call-site, after every command, and
// after every step, per the spec's cancellation checkpoints.
func (s *Signal) Check() error {
	if s.Triggered() {
		return pipeline.ErrCancelled
	}
	return nil
}

// Done returns a channel closed when Cancel is first called, for
// callers that want to select on cancellation alongside other
// suspension points (e.g. a long-running subprocess wait).
func (s *Signal) Done() <-chan struct{} {
	return s.done
}
