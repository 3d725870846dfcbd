package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/wercker/pipelined/events"
	"github.com/wercker/pipelined/execstate"
	"github.com/wercker/pipelined/logging"
	"github.com/wercker/pipelined/platform"
	"github.com/wercker/pipelined/proxy"
	"github.com/wercker/pipelined/stopsignal"
)

func writePipeline(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestRunner(t *testing.T, dir, name string, env, vars map[string]string) *Runner {
	t.Helper()
	p := proxy.NewFileSystem(dir)
	log := logging.New("test-run")
	b, err := NewBuilder().
		RunID("test-run").
		RunStartTime("2026-07-30T00:00:00Z").
		Config(&Config{}).
		Logger(log).
		Proxy(p).
		Pipeline(name).
		ExecState(execstate.NewShared()).
		Environment(env).
		Variables(vars).
		Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return b
}

func TestRunnerExecutesStepsAndDisposes(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "main", `
runs_on: machine
dispose: true
steps:
  - name: build
    commands:
      - echo hello
`)
	r := newTestRunner(t, dir, "main", map[string]string{}, map[string]string{})
	m, ok := r.platform.(*platform.Machine)
	if !ok {
		t.Fatalf("expected a Machine platform, got %T", r.platform)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(m.TempDir()); !os.IsNotExist(err) {
		t.Fatalf("expected temp dir removed by dispose, stat err = %v", err)
	}
}

func TestRunnerInterpolatesVariablesIntoCommands(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "main", `
runs_on: machine
dispose: true
variables:
  - name: greeting
    default_value: hi
steps:
  - name: build
    commands:
      - echo ${var:greeting}
`)
	r := newTestRunner(t, dir, "main", map[string]string{}, map[string]string{"greeting": "overridden"})
	if got := r.interpolator.Apply("echo ${var:greeting}"); got != "echo overridden" {
		t.Fatalf("interpolated command = %q", got)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunnerCallsNestedPipeline(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "main", `
runs_on: machine
dispose: true
steps:
  - name: build
    call:
      - child
    commands:
      - echo parent
`)
	writePipeline(t, dir, "child", `
runs_on: machine
dispose: true
steps:
  - name: only
    commands:
      - echo child
`)
	r := newTestRunner(t, dir, "main", map[string]string{}, map[string]string{})

	var started, finished []string
	r.Emitter().AddListener(events.StepStarted, func(args interface{}) {
		started = append(started, args.(*events.StepArgs).Step)
	})
	r.Emitter().AddListener(events.StepFinished, func(args interface{}) {
		finished = append(finished, args.(*events.StepArgs).Step)
	})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(started) != 2 || started[0] != "build" || started[1] != "only" {
		t.Fatalf("started = %v", started)
	}
	if len(finished) != 2 || finished[0] != "only" || finished[1] != "build" {
		t.Fatalf("finished = %v", finished)
	}
}

func TestRunnerEmitsStepLifecycleEvents(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "main", `
runs_on: machine
dispose: true
steps:
  - name: build
    commands:
      - echo hello
`)
	r := newTestRunner(t, dir, "main", map[string]string{}, map[string]string{})

	var started, finished []string
	r.Emitter().AddListener(events.StepStarted, func(args interface{}) {
		started = append(started, args.(*events.StepArgs).Step)
	})
	r.Emitter().AddListener(events.StepFinished, func(args interface{}) {
		finished = append(finished, args.(*events.StepArgs).Step)
	})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(started) != 1 || started[0] != "build" {
		t.Fatalf("started = %v", started)
	}
	if len(finished) != 1 || finished[0] != "build" {
		t.Fatalf("finished = %v", finished)
	}
}

func TestRunnerMissingPipelineSurfacesAsError(t *testing.T) {
	dir := t.TempDir()
	p := proxy.NewFileSystem(dir)
	log := logging.New("test-run")
	_, err := NewBuilder().
		RunID("test-run").
		RunStartTime("2026-07-30T00:00:00Z").
		Config(&Config{}).
		Logger(log).
		Proxy(p).
		Pipeline("does-not-exist").
		ExecState(execstate.NewShared()).
		Environment(map[string]string{}).
		Variables(map[string]string{}).
		Build(context.Background())
	if err == nil {
		t.Fatal("expected error for missing pipeline")
	}
}

func TestBuilderRejectsMissingRequiredFields(t *testing.T) {
	_, err := NewBuilder().Build(context.Background())
	if err == nil {
		t.Fatal("expected error for empty builder")
	}
}

// cancelingPlatform is a Platform stub that records every command it
// is asked to run and, on a chosen trigger command, cancels sig
// before returning - simulating a stop token arriving while that
// command was in flight.
type cancelingPlatform struct {
	sig     *stopsignal.Signal
	trigger string
	calls   []string
}

func (p *cancelingPlatform) Push(ctx context.Context, from, to string) error { return nil }
func (p *cancelingPlatform) Get(ctx context.Context, from, to string) error  { return nil }

func (p *cancelingPlatform) Shell(ctx context.Context, workingDir *string, command string, state execstate.State) error {
	p.calls = append(p.calls, command)
	if command == p.trigger {
		p.sig.Cancel()
	}
	return nil
}

func (p *cancelingPlatform) Dispose(inChildRunner bool) error { return nil }

// TestRunnerStopsAfterCurrentStepOnCancel drives a multi-step pipeline
// where the stop signal is cancelled while the first step's only
// command is in flight. It asserts that no command from any later
// step ever runs - the cancellation checkpoint after each command in
// sh() must unwind before steps() advances to the next step.
func TestRunnerStopsAfterCurrentStepOnCancel(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "main", `
runs_on: machine
dispose: true
steps:
  - name: one
    commands:
      - echo step1
  - name: two
    commands:
      - echo step2
  - name: three
    commands:
      - echo step3
`)

	sig := stopsignal.New()
	p := proxy.NewFileSystem(dir)
	log := logging.New("test-run")
	r, err := NewBuilder().
		RunID("test-run").
		RunStartTime("2026-07-30T00:00:00Z").
		Config(&Config{}).
		Logger(log).
		Proxy(p).
		Pipeline("main").
		ExecState(execstate.NewShared()).
		Environment(map[string]string{}).
		Variables(map[string]string{}).
		StopSignal(sig).
		Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	fake := &cancelingPlatform{sig: sig, trigger: "echo step1"}
	r.platform = fake

	var successful []bool
	r.Emitter().AddListener(events.RunFinished, func(args interface{}) {
		successful = append(successful, args.(*events.RunArgs).Successful)
	})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(fake.calls) != 1 || fake.calls[0] != "echo step1" {
		t.Fatalf("expected only step one's command to run, got %v", fake.calls)
	}
	if len(successful) != 1 || successful[0] {
		t.Fatalf("expected RunFinished to report failure, got %v", successful)
	}
}
