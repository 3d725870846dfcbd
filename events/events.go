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

// Package events wraps chuckpreslar/emission the way the teacher
// repo's core/events.go does: named events, typed Args structs, and a
// normalizing emitter that fills in the run id and current step so
// callers further down the step loop don't have to keep re-supplying
// it on every Emit call.
package events

import (
	"github.com/chuckpreslar/emission"
)

const (
	// RunStarted fires once, before a Runner begins its Artifacts(None)
	// phase.
	RunStarted = "RunStarted"

	// RunFinished fires once a Runner has run Steps (or failed to) and
	// is about to dispose its Platform.
	RunFinished = "RunFinished"

	// StepStarted fires when a Runner begins a BuildStep, before its
	// nested calls and commands.
	StepStarted = "StepStarted"

	// StepFinished fires after a BuildStep's calls and commands have all
	// run (or one of them has failed). The artifacts anchored after the
	// step run once StepFinished has fired.
	StepFinished = "StepFinished"

	// ArtifactTransferred fires after a Push or Get, successful or not.
	ArtifactTransferred = "ArtifactTransferred"
)

// RunArgs accompanies RunStarted and RunFinished.
type RunArgs struct {
	RunID    string
	Pipeline string
	RunsOn   string
	// Successful is only meaningful on RunFinished.
	Successful bool
}

// StepArgs accompanies StepStarted and StepFinished.
type StepArgs struct {
	RunID    string
	Pipeline string
	Step     string
	// Successful and Message are only meaningful on StepFinished.
	Successful bool
	Message    string
}

// ArtifactArgs accompanies ArtifactTransferred.
type ArtifactArgs struct {
	RunID      string
	Pipeline   string
	Step       string
	From       string
	To         string
	Push       bool
	Successful bool
}

// Emitter wraps emission.Emitter and remembers the run id and current
// step so a Runner doesn't need to thread that context through every
// call site that wants to Emit. The pipeline name is passed on each
// call.
type Emitter struct {
	*emission.Emitter

	runID       string
	currentStep string
}

// New constructs an Emitter scoped to one run id. A single Emitter is
// shared by a Runner and every child Runner it builds for nested
// calls, so one set of listeners sees the whole tree.
func New(runID string) *Emitter {
	return &Emitter{
		Emitter: emission.NewEmitter(),
		runID:   runID,
	}
}

// Run emits RunStarted or RunFinished with the run context filled in
// automatically.
func (e *Emitter) Run(event, pipeline, runsOn string, successful bool) {
	e.Emitter.Emit(event, &RunArgs{
		RunID:      e.runID,
		Pipeline:   pipeline,
		RunsOn:     runsOn,
		Successful: successful,
	})
}

// Step emits StepStarted or StepFinished, remembering the step name
// between the two calls so StepFinished doesn't need it repeated.
func (e *Emitter) Step(event, pipeline, step string, successful bool, message string) {
	if step != "" {
		e.currentStep = step
	}
	e.Emitter.Emit(event, &StepArgs{
		RunID:      e.runID,
		Pipeline:   pipeline,
		Step:       e.currentStep,
		Successful: successful,
		Message:    message,
	})
	if event == StepFinished {
		e.currentStep = ""
	}
}

// Artifact emits ArtifactTransferred with the current step filled in.
// Outside a StepStarted/StepFinished pair (pre-step artifacts, and the
// artifacts anchored after a step) the step is empty.
func (e *Emitter) Artifact(pipeline, from, to string, push, successful bool) {
	e.Emitter.Emit(ArtifactTransferred, &ArtifactArgs{
		RunID:      e.runID,
		Pipeline:   pipeline,
		Step:       e.currentStep,
		From:       from,
		To:         to,
		Push:       push,
		Successful: successful,
	})
}

// Logger is the subset of logging.Logger the DebugHandler writes
// through; declared locally so this package doesn't import logging
// just for one method.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// DebugHandler subscribes to every event this package defines and
// dumps it through a Logger at debug level, the same role the
// teacher's DebugHandler plays for its own event set.
type DebugHandler struct {
	logger Logger
}

// NewDebugHandler constructs a DebugHandler writing through logger.
func NewDebugHandler(logger Logger) *DebugHandler {
	return &DebugHandler{logger: logger}
}

// ListenTo attaches the handler to every event name this package
// defines.
func (h *DebugHandler) ListenTo(e *Emitter) {
	e.AddListener(RunStarted, h.handle(RunStarted))
	e.AddListener(RunFinished, h.handle(RunFinished))
	e.AddListener(StepStarted, h.handle(StepStarted))
	e.AddListener(StepFinished, h.handle(StepFinished))
	e.AddListener(ArtifactTransferred, h.handle(ArtifactTransferred))
}

func (h *DebugHandler) handle(name string) func(interface{}) {
	return func(args interface{}) {
		h.logger.Debugf("%s %+v", name, args)
	}
}
