package events

import "testing"

func TestEmitterStepRemembersCurrentStepAcrossStartedAndFinished(t *testing.T) {
	e := New("run-1")

	var started, finished *StepArgs
	e.AddListener(StepStarted, func(args interface{}) { started = args.(*StepArgs) })
	e.AddListener(StepFinished, func(args interface{}) { finished = args.(*StepArgs) })

	e.Step(StepStarted, "build", "compile", true, "")
	e.Step(StepFinished, "build", "", true, "ok")

	if started.Step != "compile" {
		t.Fatalf("started step = %q", started.Step)
	}
	if finished.Step != "compile" {
		t.Fatalf("finished step = %q, expected carried-over name", finished.Step)
	}
	if finished.Message != "ok" {
		t.Fatalf("finished message = %q", finished.Message)
	}
}

func TestEmitterArtifactCarriesCurrentStep(t *testing.T) {
	e := New("run-1")

	var got *ArtifactArgs
	e.AddListener(ArtifactTransferred, func(args interface{}) { got = args.(*ArtifactArgs) })

	e.Step(StepStarted, "build", "compile", true, "")
	e.Artifact("build", "/src", "/dst", true, true)

	if got.Step != "compile" {
		t.Fatalf("artifact step = %q", got.Step)
	}
	if !got.Push || !got.Successful {
		t.Fatalf("got %+v", got)
	}
}

func TestDebugHandlerReceivesEveryEvent(t *testing.T) {
	e := New("run-1")
	var lines []string
	h := NewDebugHandler(recordingLogger{&lines})
	h.ListenTo(e)

	e.Run(RunStarted, "build", "machine", false)
	e.Step(StepStarted, "build", "compile", false, "")
	e.Step(StepFinished, "build", "", true, "done")
	e.Artifact("build", "/a", "/b", false, true)
	e.Run(RunFinished, "build", "machine", true)

	if len(lines) != 5 {
		t.Fatalf("expected 5 debug lines, got %d: %v", len(lines), lines)
	}
}

type recordingLogger struct {
	lines *[]string
}

func (r recordingLogger) Debugf(format string, args ...interface{}) {
	*r.lines = append(*r.lines, format)
}
