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

// Package supervisor maintains a bounded FIFO queue of worker child
// processes, enforcing a concurrency cap, and exposes a local IPC
// endpoint (Unix domain socket, length-delimited msgpack frames) over
// which a server process enqueues runs and monitors queue state.
package supervisor

import (
	"encoding/json"
	"net"
	"os"
	"os/exec"
	"sync"

	"github.com/pkg/errors"
	"github.com/wercker/pipelined/logging"
)

// Supervisor owns the work queue and the concurrency-capped set of
// running worker processes.
type Supervisor struct {
	mu          sync.Mutex
	concurrency int
	running     int
	queue       []*Worker
	byRunID     map[string]*Worker
	logger      logging.Logger
	executable  string
	listener    net.Listener

	// launch starts w's process and arranges for s.finish to be called
	// on its completion. Overridable in tests so the state machine can
	// be exercised without actually spawning the current binary.
	launch func(w *Worker)
}

// New returns a Supervisor enforcing at most concurrency simultaneous
// workers.
func New(concurrency int, logger logging.Logger) (*Supervisor, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, errors.Wrap(err, "resolving supervisor executable")
	}
	s := &Supervisor{
		concurrency: concurrency,
		byRunID:     make(map[string]*Worker),
		logger:      logger,
		executable:  exe,
	}
	s.launch = s.defaultLaunch
	return s, nil
}

// Enqueue appends a new worker descriptor to the FIFO queue and
// attempts to start it immediately if a concurrency slot is free.
// The supervisor's own executable path is resolved once, by New;
// Enqueue does not resolve it again and always returns nil.
func (s *Supervisor) Enqueue(pipelineName, runID string, variables, environment map[string]string) error {
	s.mu.Lock()
	w := &Worker{
		RunID:       runID,
		Pipeline:    pipelineName,
		Variables:   variables,
		Environment: environment,
		Status:      Queued,
	}
	s.queue = append(s.queue, w)
	s.byRunID[runID] = w
	queueDepthGauge.Set(float64(s.queuedLocked()))
	s.mu.Unlock()

	s.drain()
	return nil
}

// Ack marks the worker for run_id as having freed its slot, regardless
// of how the supervisor itself learns the process exited; it is safe
// to call this more than once for the same run id.
func (s *Supervisor) Ack(runID string) {
	s.mu.Lock()
	w, ok := s.byRunID[runID]
	if ok && w.Status == Running {
		w.Status = Exited
		s.running--
		runningGauge.Set(float64(s.running))
	}
	s.mu.Unlock()
	s.drain()
}

// Monitor reports the current queue depth and running worker count.
func (s *Supervisor) Monitor() (queued, running int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.queue {
		if w.Status == Queued {
			queued++
		}
	}
	return queued, s.running
}

// drain starts queued workers while a concurrency slot remains free.
func (s *Supervisor) drain() {
	for {
		s.mu.Lock()
		if s.running >= s.concurrency {
			s.mu.Unlock()
			return
		}
		var next *Worker
		for _, w := range s.queue {
			if w.Status == Queued {
				next = w
				break
			}
		}
		if next == nil {
			s.mu.Unlock()
			return
		}
		next.Status = Running
		s.running++
		queueDepthGauge.Set(float64(s.queuedLocked()))
		runningGauge.Set(float64(s.running))
		s.mu.Unlock()

		s.launch(next)
	}
}

func (s *Supervisor) queuedLocked() int {
	n := 0
	for _, w := range s.queue {
		if w.Status == Queued {
			n++
		}
	}
	return n
}

// defaultLaunch launches the worker's child process and, in a
// background goroutine, waits for it to exit and transitions it to
// its terminal state, freeing its slot either way.
func (s *Supervisor) defaultLaunch(w *Worker) {
	cmd := exec.Command(s.executable, w.args()...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		s.logger.Errorf("worker %s failed to start: %v", w.RunID, err)
		s.mu.Lock()
		w.Status = Failed
		s.running--
		runningGauge.Set(float64(s.running))
		s.mu.Unlock()
		s.drain()
		return
	}

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		if err != nil {
			s.logger.Warnf("worker %s exited with error: %v", w.RunID, err)
		}
		// An Ack for this run may already have freed the slot.
		if w.Status == Running {
			if err != nil {
				w.Status = Failed
			} else {
				w.Status = Exited
			}
			s.running--
			runningGauge.Set(float64(s.running))
		}
		s.mu.Unlock()
		s.drain()
	}()
}

func (w *Worker) args() []string {
	args := []string{"worker", "--pipeline", w.Pipeline, "--run-id", w.RunID}
	if len(w.Variables) > 0 {
		args = append(args, "--variables", encodeJSON(w.Variables))
	}
	if len(w.Environment) > 0 {
		args = append(args, "--environment", encodeJSON(w.Environment))
	}
	return args
}

// Close stops accepting new IPC connections, if Serve is running.
// Workers already in flight are left to finish on their own; it does
// not drain the queue.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	return ln.Close()
}

func encodeJSON(m map[string]string) string {
	body, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(body)
}
