package pipeline

// StageUpdate is one entry of the one-directional stage-transition feed. It
// is a notification, not a queryable replay log. An active stage repeats
// with each progress tick; a new Stage value marks the activation.
type StageUpdate struct {
	Stage    StageKey
	Status   StageStatus
	Percent  int
	FileName string
	FileSize int64
}

// Observer receives stage transitions as the run progresses. Implementations
// must not block; updates are delivered synchronously from the run.
type Observer interface {
	StageTransition(update StageUpdate)
}

// NopObserver discards all updates.
type NopObserver struct{}

func (NopObserver) StageTransition(StageUpdate) {}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(update StageUpdate)

func (f ObserverFunc) StageTransition(update StageUpdate) { f(update) }
