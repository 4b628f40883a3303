package pipeline

import "entryway/internal/services"

// StageKey identifies one discrete unit of the pipeline.
type StageKey string

const (
	StagePreparing   StageKey = "preparing"
	StageVideo       StageKey = "video"
	StageThumbnail   StageKey = "thumbnail"
	StageProofImages StageKey = "proof-images"
	StageSubmission  StageKey = "submission"
)

// ByteTransport reports whether progress percent is meaningful for the stage.
// Only stages backed by a byte-level transport carry one.
func (k StageKey) ByteTransport() bool {
	return k == StageVideo || k == StageThumbnail
}

// StageStatus is the lifecycle state of a single stage.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageActive    StageStatus = "active"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// Status is the overall run state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// StageState is one stage's observable state within a run.
type StageState struct {
	Key      StageKey
	Status   StageStatus
	Percent  int
	FileName string
	FileSize int64
}

// Run is the state of one end-to-end submission attempt.
type Run struct {
	Stages []StageState
	Status Status
	Active StageKey
	Err    *services.ClassifiedError
}

// EventType enumerates the transitions a run can undergo.
type EventType string

const (
	EventRunStarted     EventType = "run_started"
	EventStageStarted   EventType = "stage_started"
	EventStageProgress  EventType = "stage_progress"
	EventStageCompleted EventType = "stage_completed"
	EventStageFailed    EventType = "stage_failed"
	EventRunSucceeded   EventType = "run_succeeded"
)

// Event is one input to the transition function.
type Event struct {
	Type    EventType
	Stage   StageKey
	Percent int
	Err     *services.ClassifiedError
}

// NewRun builds an idle run with the given stage sequence, all pending.
func NewRun(keys ...StageKey) Run {
	stages := make([]StageState, len(keys))
	for i, key := range keys {
		stages[i] = StageState{Key: key, Status: StagePending}
	}
	return Run{Stages: stages, Status: StatusIdle}
}

// Apply is the pure transition function. Terminal runs are returned
// unchanged; at most one stage is active after any transition; a failed
// stage fails the whole run and nothing later ever starts.
func Apply(run Run, event Event) Run {
	if run.Status == StatusSucceeded || run.Status == StatusFailed {
		return run
	}

	next := run
	next.Stages = make([]StageState, len(run.Stages))
	copy(next.Stages, run.Stages)

	switch event.Type {
	case EventRunStarted:
		if next.Status == StatusIdle {
			next.Status = StatusRunning
		}

	case EventStageStarted:
		if next.Status != StatusRunning || next.Active != "" {
			return run
		}
		idx := stageIndex(next.Stages, event.Stage)
		if idx < 0 || next.Stages[idx].Status != StagePending {
			return run
		}
		next.Stages[idx].Status = StageActive
		next.Stages[idx].Percent = 0
		next.Active = event.Stage

	case EventStageProgress:
		idx := stageIndex(next.Stages, event.Stage)
		if idx < 0 || next.Stages[idx].Status != StageActive || !event.Stage.ByteTransport() {
			return run
		}
		next.Stages[idx].Percent = clampPercent(event.Percent)

	case EventStageCompleted:
		idx := stageIndex(next.Stages, event.Stage)
		if idx < 0 || next.Stages[idx].Status != StageActive {
			return run
		}
		next.Stages[idx].Status = StageCompleted
		if event.Stage.ByteTransport() {
			next.Stages[idx].Percent = 100
		}
		next.Active = ""

	case EventStageFailed:
		idx := stageIndex(next.Stages, event.Stage)
		if idx >= 0 {
			next.Stages[idx].Status = StageFailed
		}
		next.Active = ""
		next.Status = StatusFailed
		next.Err = event.Err

	case EventRunSucceeded:
		if next.Status != StatusRunning || next.Active != "" {
			return run
		}
		next.Status = StatusSucceeded
	}

	return next
}

// StageFor returns the state of the named stage, if present.
func (r Run) StageFor(key StageKey) (StageState, bool) {
	idx := stageIndex(r.Stages, key)
	if idx < 0 {
		return StageState{}, false
	}
	return r.Stages[idx], true
}

func stageIndex(stages []StageState, key StageKey) int {
	for i := range stages {
		if stages[i].Key == key {
			return i
		}
	}
	return -1
}

func clampPercent(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
