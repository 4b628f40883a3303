package pipeline

import (
	"testing"

	"entryway/internal/services"
)

func startedRun(keys ...StageKey) Run {
	return Apply(NewRun(keys...), Event{Type: EventRunStarted})
}

func TestNewRunStartsIdleWithPendingStages(t *testing.T) {
	run := NewRun(StagePreparing, StageVideo, StageSubmission)
	if run.Status != StatusIdle {
		t.Fatalf("expected idle run, got %s", run.Status)
	}
	if run.Active != "" {
		t.Fatalf("expected no active stage, got %s", run.Active)
	}
	for _, stage := range run.Stages {
		if stage.Status != StagePending {
			t.Fatalf("stage %s not pending: %s", stage.Key, stage.Status)
		}
	}
}

func TestApplyHappyPath(t *testing.T) {
	run := startedRun(StagePreparing, StageVideo, StageThumbnail, StageSubmission)
	for _, key := range []StageKey{StagePreparing, StageVideo, StageThumbnail, StageSubmission} {
		run = Apply(run, Event{Type: EventStageStarted, Stage: key})
		if run.Active != key {
			t.Fatalf("expected %s active, got %q", key, run.Active)
		}
		run = Apply(run, Event{Type: EventStageCompleted, Stage: key})
		if run.Active != "" {
			t.Fatalf("stage %s left active after completion", key)
		}
	}
	run = Apply(run, Event{Type: EventRunSucceeded})
	if run.Status != StatusSucceeded {
		t.Fatalf("expected succeeded run, got %s", run.Status)
	}
}

func TestApplyRefusesSecondActiveStage(t *testing.T) {
	run := startedRun(StageVideo, StageThumbnail)
	run = Apply(run, Event{Type: EventStageStarted, Stage: StageVideo})
	next := Apply(run, Event{Type: EventStageStarted, Stage: StageThumbnail})
	if next.Active != StageVideo {
		t.Fatalf("expected video to stay active, got %q", next.Active)
	}
	state, _ := next.StageFor(StageThumbnail)
	if state.Status != StagePending {
		t.Fatalf("thumbnail should stay pending, got %s", state.Status)
	}
}

func TestApplyProgressOnlyForActiveByteStages(t *testing.T) {
	run := startedRun(StagePreparing, StageVideo)

	run = Apply(run, Event{Type: EventStageStarted, Stage: StagePreparing})
	run = Apply(run, Event{Type: EventStageProgress, Stage: StagePreparing, Percent: 40})
	state, _ := run.StageFor(StagePreparing)
	if state.Percent != 0 {
		t.Fatalf("preparing stage accepted percent %d", state.Percent)
	}
	run = Apply(run, Event{Type: EventStageCompleted, Stage: StagePreparing})

	// Progress before the stage is active must be dropped.
	run = Apply(run, Event{Type: EventStageProgress, Stage: StageVideo, Percent: 10})
	state, _ = run.StageFor(StageVideo)
	if state.Percent != 0 {
		t.Fatalf("pending video stage accepted percent %d", state.Percent)
	}

	run = Apply(run, Event{Type: EventStageStarted, Stage: StageVideo})
	run = Apply(run, Event{Type: EventStageProgress, Stage: StageVideo, Percent: 55})
	state, _ = run.StageFor(StageVideo)
	if state.Percent != 55 {
		t.Fatalf("expected 55, got %d", state.Percent)
	}

	run = Apply(run, Event{Type: EventStageProgress, Stage: StageVideo, Percent: 180})
	state, _ = run.StageFor(StageVideo)
	if state.Percent != 100 {
		t.Fatalf("expected clamp to 100, got %d", state.Percent)
	}

	run = Apply(run, Event{Type: EventStageProgress, Stage: StageVideo, Percent: -3})
	state, _ = run.StageFor(StageVideo)
	if state.Percent != 0 {
		t.Fatalf("expected clamp to 0, got %d", state.Percent)
	}
}

func TestApplyCompletionPinsByteStageAtHundred(t *testing.T) {
	run := startedRun(StageVideo)
	run = Apply(run, Event{Type: EventStageStarted, Stage: StageVideo})
	run = Apply(run, Event{Type: EventStageProgress, Stage: StageVideo, Percent: 73})
	run = Apply(run, Event{Type: EventStageCompleted, Stage: StageVideo})
	state, _ := run.StageFor(StageVideo)
	if state.Percent != 100 {
		t.Fatalf("expected 100 on completion, got %d", state.Percent)
	}
}

func TestApplyFailureIsTerminal(t *testing.T) {
	classified := &services.ClassifiedError{Category: services.CategoryTransport, Message: "upload timed out"}
	run := startedRun(StageVideo, StageThumbnail)
	run = Apply(run, Event{Type: EventStageStarted, Stage: StageVideo})
	run = Apply(run, Event{Type: EventStageFailed, Stage: StageVideo, Err: classified})

	if run.Status != StatusFailed {
		t.Fatalf("expected failed run, got %s", run.Status)
	}
	if run.Err == nil || run.Err.Category != services.CategoryTransport {
		t.Fatalf("run did not capture the classified error: %+v", run.Err)
	}

	after := Apply(run, Event{Type: EventStageStarted, Stage: StageThumbnail})
	state, _ := after.StageFor(StageThumbnail)
	if state.Status != StagePending {
		t.Fatalf("stage started after terminal failure: %s", state.Status)
	}
	if after.Status != StatusFailed {
		t.Fatalf("terminal run mutated to %s", after.Status)
	}
}

func TestApplyStartResetsPercent(t *testing.T) {
	run := startedRun(StageVideo)
	run = Apply(run, Event{Type: EventStageStarted, Stage: StageVideo})
	run = Apply(run, Event{Type: EventStageProgress, Stage: StageVideo, Percent: 30})

	// Rebuild the same stage key as pending to confirm activation zeroes it.
	run.Stages[0].Status = StagePending
	run.Active = ""
	run = Apply(run, Event{Type: EventStageStarted, Stage: StageVideo})
	state, _ := run.StageFor(StageVideo)
	if state.Percent != 0 {
		t.Fatalf("expected percent reset on activation, got %d", state.Percent)
	}
}

func TestApplySucceededRequiresNoActiveStage(t *testing.T) {
	run := startedRun(StageVideo)
	run = Apply(run, Event{Type: EventStageStarted, Stage: StageVideo})
	next := Apply(run, Event{Type: EventRunSucceeded})
	if next.Status != StatusRunning {
		t.Fatalf("run succeeded with an active stage: %s", next.Status)
	}
}

func TestByteTransportStages(t *testing.T) {
	for key, want := range map[StageKey]bool{
		StagePreparing:   false,
		StageVideo:       true,
		StageThumbnail:   true,
		StageProofImages: false,
		StageSubmission:  false,
	} {
		if got := key.ByteTransport(); got != want {
			t.Fatalf("%s: ByteTransport() = %v, want %v", key, got, want)
		}
	}
}
