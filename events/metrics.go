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

package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipelined_steps_total",
		Help: "Build steps finished, labeled by outcome.",
	}, []string{"outcome"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipelined_runs_total",
		Help: "Runner executions finished, labeled by outcome.",
	}, []string{"outcome"})
)

// MetricsHandler subscribes to RunFinished and StepFinished and
// increments the process-wide Prometheus counters above. It lives
// alongside the exec socket's Handler, the one place a Runner and an
// HTTP /metrics endpoint share a process.
type MetricsHandler struct{}

// NewMetricsHandler constructs a MetricsHandler.
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ListenTo attaches the handler to the two finished events.
func (h *MetricsHandler) ListenTo(e *Emitter) {
	e.AddListener(RunFinished, h.run)
	e.AddListener(StepFinished, h.step)
}

func (h *MetricsHandler) run(args interface{}) {
	a, ok := args.(*RunArgs)
	if !ok {
		return
	}
	runsTotal.WithLabelValues(outcome(a.Successful)).Inc()
}

func (h *MetricsHandler) step(args interface{}) {
	a, ok := args.(*StepArgs)
	if !ok {
		return
	}
	stepsTotal.WithLabelValues(outcome(a.Successful)).Inc()
}

func outcome(successful bool) string {
	if successful {
		return "success"
	}
	return "failure"
}
