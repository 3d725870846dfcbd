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

// Package runner implements the Runner: the interpreter that executes
// one parsed Pipeline against one Platform, recursively building child
// Runners for nested pipeline calls.
package runner

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/wercker/pipelined/events"
	"github.com/wercker/pipelined/execstate"
	"github.com/wercker/pipelined/logging"
	"github.com/wercker/pipelined/pipeline"
	"github.com/wercker/pipelined/platform"
	"github.com/wercker/pipelined/proxy"
	"github.com/wercker/pipelined/stopsignal"
)

// Config is the ambient configuration a Runner needs to materialize a
// Platform; the real process-wide configuration loader is an external
// collaborator, this is the minimal slice the Runner consumes.
type Config struct {
	DockerHost string
}

// Builder assembles a Runner. All of RunID, Config, Logger, Proxy,
// PipelineName, ExecState, Environment and Variables are required;
// RunStartTime is required; StopSignal is optional. Build reads the
// pipeline text via the proxy, parses it, resolves environment and
// variables, and materializes the Platform.
type Builder struct {
	runID         string
	runStartTime  string
	config        *Config
	logger        logging.Logger
	proxy         proxy.Proxy
	pipelineName  string
	execState     execstate.State
	environment   map[string]string
	variables     map[string]string
	stopSignal    *stopsignal.Signal
	isChild       bool
	emitter       *events.Emitter
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) RunID(id string) *Builder                    { b.runID = id; return b }
func (b *Builder) RunStartTime(t string) *Builder               { b.runStartTime = t; return b }
func (b *Builder) Config(c *Config) *Builder                    { b.config = c; return b }
func (b *Builder) Logger(l logging.Logger) *Builder             { b.logger = l; return b }
func (b *Builder) Proxy(p proxy.Proxy) *Builder                 { b.proxy = p; return b }
func (b *Builder) Pipeline(name string) *Builder                { b.pipelineName = name; return b }
func (b *Builder) ExecState(s execstate.State) *Builder         { b.execState = s; return b }
func (b *Builder) Environment(env map[string]string) *Builder   { b.environment = env; return b }
func (b *Builder) Variables(vars map[string]string) *Builder    { b.variables = vars; return b }
func (b *Builder) StopSignal(s *stopsignal.Signal) *Builder     { b.stopSignal = s; return b }
func (b *Builder) Child() *Builder                              { b.isChild = true; return b }

// Emitter attaches an existing events.Emitter, the way call() shares
// one Emitter across a whole Runner tree. When left unset, Build
// creates a fresh one and attaches a debug-log listener.
func (b *Builder) Emitter(e *events.Emitter) *Builder { b.emitter = e; return b }

// Build validates required inputs, parses the pipeline, resolves
// context, materializes the Platform and returns a ready-to-run
// Runner.
func (b *Builder) Build(ctx context.Context) (*Runner, error) {
	if b.runID == "" {
		return nil, missing("run id")
	}
	if b.config == nil {
		return nil, missing("config")
	}
	if b.logger == nil {
		return nil, missing("logger")
	}
	if b.proxy == nil {
		return nil, missing("proxy")
	}
	if b.pipelineName == "" {
		return nil, missing("pipeline name")
	}
	if b.execState == nil {
		return nil, missing("executor state")
	}
	if b.environment == nil {
		return nil, missing("environment")
	}
	if b.variables == nil {
		return nil, missing("variables")
	}
	if b.runStartTime == "" {
		return nil, missing("run start time")
	}

	raw, err := b.proxy.Read(b.pipelineName)
	if err != nil {
		return nil, err
	}
	pip, err := pipeline.Parse(raw)
	if err != nil {
		return nil, err
	}

	env := pipeline.ResolveVariables(pip.Environment, b.environment)
	vars := pipeline.ResolveVariables(pip.Variables, b.variables)

	plat, err := materializePlatform(ctx, b.runID, pip.RunsOn, b.config, b.logger)
	if err != nil {
		return nil, err
	}

	emitter := b.emitter
	if emitter == nil {
		emitter = events.New(b.runID)
		events.NewDebugHandler(b.logger).ListenTo(emitter)
	}

	return &Runner{
		runID:        b.runID,
		runStartTime: b.runStartTime,
		config:       b.config,
		logger:       b.logger,
		proxy:        b.proxy,
		pipelineName: b.pipelineName,
		pipeline:     pip,
		execState:    b.execState,
		environment:  env,
		variables:    vars,
		stopSignal:   b.stopSignal,
		isChild:      b.isChild,
		platform:     plat,
		emitter:      emitter,
		interpolator: pipeline.NewInterpolator(b.runID, b.runStartTime, env, pip.Environment, vars, pip.Variables),
	}, nil
}

// Emitter returns the Runner's event emitter so a caller (the server
// command's exec socket, for instance) can attach extra listeners,
// such as a Prometheus collector, before Run is called.
func (r *Runner) Emitter() *events.Emitter { return r.emitter }

func missing(field string) error {
	return errors.Wrapf(pipeline.ErrConfigMissing, "missing required field: %s", field)
}

func materializePlatform(ctx context.Context, runID string, runsOn pipeline.RunsOn, cfg *Config, logger logging.Logger) (platform.Platform, error) {
	if runsOn.IsMachine() {
		return platform.NewMachine(runID, logger)
	}
	return platform.NewContainer(ctx, cfg.DockerHost, runsOn.Image, logger)
}

// Runner interprets one Pipeline against one Platform.
type Runner struct {
	runID        string
	runStartTime string
	config       *Config
	logger       logging.Logger
	proxy        proxy.Proxy
	pipelineName string
	pipeline     *pipeline.Pipeline
	execState    execstate.State
	environment  map[string]string
	variables    map[string]string
	stopSignal   *stopsignal.Signal
	isChild      bool
	platform     platform.Platform
	emitter      *events.Emitter
	interpolator *pipeline.Interpolator
}

// Run executes the Built -> Started -> Artifacts(None) -> Steps ->
// Disposed state machine described by the spec. Any failure in
// Artifacts(None) short-circuits to Disposed; any failure in Steps is
// logged but does not skip Disposed.
func (r *Runner) Run(ctx context.Context) error {
	r.execState.UpdateRunning(true)
	r.info()
	r.emitter.Run(events.RunStarted, r.pipelineName, r.pipeline.RunsOn.String(), false)

	var runErr error
	if err := r.artifacts(ctx, nil); err != nil {
		r.logger.Emit(err.Error())
		runErr = err
	} else if err := r.steps(ctx); err != nil {
		r.logger.Emit(err.Error())
		runErr = err
	}

	r.execState.UpdateRunning(false)
	r.emitter.Run(events.RunFinished, r.pipelineName, r.pipeline.RunsOn.String(), runErr == nil)

	if r.pipeline.Dispose {
		if err := r.platform.Dispose(r.isChild); err != nil {
			r.logger.Warnf("dispose failed: %v", err)
		}
	}
	return nil
}

func (r *Runner) info() {
	if r.pipeline.Name != nil {
		r.logger.Emit(fmt.Sprintf("[pipelined] Pipeline: %s", *r.pipeline.Name))
	}
	r.logger.Emit(fmt.Sprintf("[pipelined] Runs on: %s", r.pipeline.RunsOn.String()))
}

func (r *Runner) checkStop() error {
	if r.stopSignal == nil {
		return nil
	}
	return r.stopSignal.Check()
}

// steps executes each BuildStep in declaration order: call, then
// commands, then post-step artifacts, checking the stop-signal after
// each group.
func (r *Runner) steps(ctx context.Context) error {
	for _, step := range r.pipeline.Steps {
		if err := r.step(ctx, step); err != nil {
			return err
		}
		if err := r.artifacts(ctx, step.Name); err != nil {
			return err
		}
		if err := r.checkStop(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) step(ctx context.Context, step pipeline.BuildStep) error {
	name := ""
	if step.Name != nil {
		name = *step.Name
		r.logger.Emit(fmt.Sprintf("[pipelined] Step: %s", name))
	}
	r.emitter.Step(events.StepStarted, r.pipelineName, name, false, "")

	err := r.call(ctx, step)
	if err == nil {
		err = r.sh(ctx, step)
	}

	message := ""
	if err != nil {
		message = err.Error()
	}
	r.emitter.Step(events.StepFinished, r.pipelineName, name, err == nil, message)
	return err
}

// call builds and runs a child Runner for each nested pipeline name,
// fully nested inside this step: siblings do not interleave.
func (r *Runner) call(ctx context.Context, step pipeline.BuildStep) error {
	for _, name := range step.Call {
		child, err := NewBuilder().
			RunID(r.runID).
			RunStartTime(r.runStartTime).
			Config(r.config).
			Logger(r.logger).
			Proxy(r.proxy).
			Pipeline(name).
			ExecState(execstate.NoOp()).
			Environment(r.environment).
			Variables(r.variables).
			StopSignal(r.stopSignal).
			Emitter(r.emitter).
			Child().
			Build(ctx)
		if err != nil {
			return err
		}
		if err := child.Run(ctx); err != nil {
			return err
		}
		if err := r.checkStop(); err != nil {
			return err
		}
	}
	return nil
}

// sh interpolates and dispatches each command in declaration order.
func (r *Runner) sh(ctx context.Context, step pipeline.BuildStep) error {
	for _, command := range step.Commands {
		var workingDir *string
		if step.WorkingDir != nil {
			wd := r.interpolator.Apply(*step.WorkingDir)
			workingDir = &wd
		}
		cmd := r.interpolator.Apply(command)
		if err := r.platform.Shell(ctx, workingDir, cmd, r.execState); err != nil {
			return err
		}
		if err := r.checkStop(); err != nil {
			return err
		}
	}
	return nil
}

// artifacts executes every artifact anchored at anchor (nil for the
// pre-steps anchor), in declaration order.
func (r *Runner) artifacts(ctx context.Context, anchor *string) error {
	for _, a := range r.pipeline.ArtifactsAt(anchor) {
		from := r.interpolator.Apply(a.From)
		to := r.interpolator.Apply(a.To)
		r.logger.Emit(fmt.Sprintf("[pipelined] Copying artifact from: %s to: %s", from, to))

		var err error
		switch a.Method {
		case pipeline.Push:
			err = r.platform.Push(ctx, from, to)
		case pipeline.Get:
			err = r.platform.Get(ctx, from, to)
		}
		r.emitter.Artifact(r.pipelineName, from, to, a.Method == pipeline.Push, err == nil)
		if err != nil && !a.IgnoreErrors {
			return err
		}
		if err != nil {
			r.logger.Warnf("artifact transfer ignored: %v", err)
		}
	}
	return nil
}
