package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"entryway/internal/config"
	"entryway/internal/draft"
	"entryway/internal/logging"
	"entryway/internal/services"
	"entryway/internal/services/contestapi"
	"entryway/internal/services/mediahost"
	"entryway/internal/services/ticket"
	"entryway/internal/session"
)

// TicketService issues one-time video upload tickets.
type TicketService interface {
	Request(ctx context.Context, durationLimitSeconds int) (*ticket.Ticket, error)
}

// MediaUploader performs the raw video upload with byte-level progress.
type MediaUploader interface {
	Upload(ctx context.Context, target string, file *draft.File, progress mediahost.ProgressFunc) error
}

// ObjectStore writes image assets and derives their public URLs.
type ObjectStore interface {
	Put(ctx context.Context, stage, objectPath, token string, file *draft.File) error
	PublicURL(objectPath string) string
}

// ContestService covers the contest API surface the pipeline consumes.
type ContestService interface {
	ContestMetadata(ctx context.Context, token, contestID string) (*contestapi.Contest, error)
	RegisterSubmission(ctx context.Context, token string, payload contestapi.RegistrationPayload) (string, error)
}

// SessionService is the credential surface the stages consume.
type SessionService interface {
	RefreshBestEffort(ctx context.Context)
	ResolveIdentity(ctx context.Context) (session.Identity, error)
	Token(ctx context.Context) (string, error)
}

// QuotaService is the advisory pre-flight submission limit check.
type QuotaService interface {
	Check(ctx context.Context, userID, contestID string, maxPerUser int) error
}

// Journal records uploaded assets for orphan reconciliation. May be nil.
type Journal interface {
	BeginRun(ctx context.Context, runID, contestID, userID string) error
	RecordAsset(ctx context.Context, runID, stage, objectPath, assetID string) error
	CompleteRun(ctx context.Context, runID, submissionID string) error
	FailRun(ctx context.Context, runID, failedStage, errorCategory string) error
}

// Dependencies bundles the collaborators the orchestrator sequences.
type Dependencies struct {
	Tickets  TicketService
	Media    MediaUploader
	Store    ObjectStore
	Contest  ContestService
	Session  SessionService
	Quota    QuotaService
	Journal  Journal
	Observer Observer
}

// Orchestrator drives the fixed stage sequence for one submission attempt at
// a time.
type Orchestrator struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   Dependencies

	busy atomic.Bool
}

// New constructs an orchestrator.
func New(cfg *config.Config, logger *slog.Logger, deps Dependencies) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "pipeline")),
		deps:   deps,
	}
}

// Result is a successful run's outcome.
type Result struct {
	SubmissionID string
	RunID        string
	Run          Run
}

// Start consumes the draft and executes the pipeline. It returns the
// server-issued submission identifier on success and a *services.ClassifiedError
// on failure. The draft is treated as immutable once the run begins, except
// for resolved proof URLs written back by the proof-images stage.
func (o *Orchestrator) Start(ctx context.Context, d *draft.Draft) (*Result, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return nil, services.Details(services.Wrap(services.ErrGeneric, "run", "start",
			"a submission run is already in progress", nil))
	}
	defer o.busy.Store(false)

	// Validation failures never start a run and never touch the network.
	if err := d.Validate(o.cfg.Limits); err != nil {
		return nil, services.Details(err)
	}

	runID := uuid.NewString()
	ctx = services.WithRunID(services.WithContestID(ctx, d.ContestID), runID)
	logger := logging.WithContext(ctx, o.logger)

	identity, err := o.deps.Session.ResolveIdentity(ctx)
	if err != nil {
		return nil, o.reject(logger, err)
	}
	token, err := o.deps.Session.Token(ctx)
	if err != nil {
		return nil, o.reject(logger, err)
	}
	contest, err := o.deps.Contest.ContestMetadata(ctx, token, d.ContestID)
	if err != nil {
		return nil, o.reject(logger, err)
	}
	if err := validateAgainstContest(d, contest); err != nil {
		return nil, o.reject(logger, err)
	}

	// A quota rejection short-circuits the whole run: zero stage
	// transitions, zero calls to any upload endpoint.
	if err := o.deps.Quota.Check(ctx, identity.UserID, d.ContestID, contest.MaxPerUser); err != nil {
		return nil, o.reject(logger, err)
	}

	exec := &execution{
		o:      o,
		logger: logger,
		run:    NewRun(stageSequence(d)...),
		state: runState{
			runID:    runID,
			draft:    d,
			identity: identity,
			token:    token,
		},
	}
	return exec.start(ctx)
}

func (o *Orchestrator) reject(logger *slog.Logger, err error) error {
	classified := services.Details(err)
	logger.Warn("run refused before any stage started",
		logging.String("category", string(classified.Category)),
		logging.Error(err),
		logging.String(logging.FieldEventType, "run_refused"),
	)
	return classified
}

// validateAgainstContest applies the server-declared constraints a local
// draft cannot know: the contest's accepted video extensions and its bonus
// configuration identifiers. Contests that declare neither skip both checks.
func validateAgainstContest(d *draft.Draft, contest *contestapi.Contest) error {
	if len(contest.AllowedExtensions) > 0 && d.Video != nil {
		ext := strings.ToLower(filepath.Ext(d.Video.Name))
		allowed := false
		for _, candidate := range contest.AllowedExtensions {
			candidate = strings.ToLower(strings.TrimSpace(candidate))
			if candidate != "" && !strings.HasPrefix(candidate, ".") {
				candidate = "." + candidate
			}
			if candidate == ext {
				allowed = true
				break
			}
		}
		if !allowed {
			return services.Wrap(services.ErrValidation, string(StagePreparing), "contest",
				fmt.Sprintf("video extension %q is not accepted by this contest", ext), nil)
		}
	}

	if len(contest.BonusConfigs) > 0 {
		known := make(map[string]bool, len(contest.BonusConfigs))
		for _, bonus := range contest.BonusConfigs {
			known[bonus.ID] = true
		}
		for _, idx := range d.QualifyingBonusEntries() {
			if id := d.BonusEntries[idx].BonusConfigID; !known[id] {
				return services.Wrap(services.ErrValidation, string(StagePreparing), "contest",
					fmt.Sprintf("bonus configuration %q does not belong to this contest", id), nil)
			}
		}
	}
	return nil
}

// stageSequence is the fixed order; proof-images appears only when at least
// one bonus entry qualifies.
func stageSequence(d *draft.Draft) []StageKey {
	keys := []StageKey{StagePreparing, StageVideo, StageThumbnail}
	if len(d.QualifyingBonusEntries()) > 0 {
		keys = append(keys, StageProofImages)
	}
	return append(keys, StageSubmission)
}

// runState carries the outputs each stage hands to its successors.
type runState struct {
	runID        string
	draft        *draft.Draft
	identity     session.Identity
	token        string
	assetID      string
	thumbnailURL string
	submissionID string
}

// execution owns one run's mutable state. Progress callbacks can arrive from
// transport goroutines, so every run mutation goes through the mutex.
type execution struct {
	o      *Orchestrator
	logger *slog.Logger

	mu    sync.Mutex
	run   Run
	state runState
}

type stageRunner struct {
	key  StageKey
	file *draft.File
	run  func(ctx context.Context) error
}

func (e *execution) start(ctx context.Context) (*Result, error) {
	e.apply(Event{Type: EventRunStarted}, nil)

	d := e.state.draft
	runners := []stageRunner{
		{StagePreparing, nil, e.runPreparing},
		{StageVideo, d.Video, e.runVideo},
		{StageThumbnail, d.Thumbnail, e.runThumbnail},
	}
	if len(d.QualifyingBonusEntries()) > 0 {
		runners = append(runners, stageRunner{StageProofImages, nil, e.runProofImages})
	}
	runners = append(runners, stageRunner{StageSubmission, nil, e.runSubmission})

	for _, runner := range runners {
		stageCtx := services.WithStage(ctx, string(runner.key))
		stageLogger := logging.WithContext(stageCtx, e.logger)
		stageStart := time.Now()

		e.beginStage(runner.key, runner.file)
		stageLogger.Info("stage started",
			logging.String(logging.FieldEventType, "stage_start"),
		)

		if err := runner.run(stageCtx); err != nil {
			return nil, e.fail(stageCtx, stageLogger, runner.key, err)
		}

		e.apply(Event{Type: EventStageCompleted, Stage: runner.key}, nil)
		stageLogger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("stage_duration", time.Since(stageStart)),
		)
	}

	if j := e.o.deps.Journal; j != nil {
		if err := j.CompleteRun(ctx, e.state.runID, e.state.submissionID); err != nil {
			e.logger.Warn("failed to commit journal entries", logging.Error(err))
		}
	}

	e.apply(Event{Type: EventRunSucceeded}, nil)
	e.logger.Info("run succeeded",
		logging.String("submission_id", e.state.submissionID),
		logging.String(logging.FieldEventType, "run_succeeded"),
	)

	e.mu.Lock()
	defer e.mu.Unlock()
	return &Result{
		SubmissionID: e.state.submissionID,
		RunID:        e.state.runID,
		Run:          e.run,
	}, nil
}

func (e *execution) fail(ctx context.Context, logger *slog.Logger, key StageKey, err error) error {
	classified := services.Details(err)
	logger.Error("stage failed",
		logging.String("category", string(classified.Category)),
		logging.Error(err),
		logging.String(logging.FieldEventType, "stage_failure"),
	)

	if j := e.o.deps.Journal; j != nil {
		if jErr := j.FailRun(ctx, e.state.runID, string(key), string(classified.Category)); jErr != nil {
			logger.Warn("failed to journal run failure; orphaned assets may go untracked", logging.Error(jErr))
		}
	}

	e.apply(Event{Type: EventStageFailed, Stage: key, Err: classified}, nil)
	return classified
}

// beginStage activates a stage and attaches display metadata before the
// observer sees the transition.
func (e *execution) beginStage(key StageKey, file *draft.File) {
	e.apply(Event{Type: EventStageStarted, Stage: key}, file)
}

func (e *execution) apply(event Event, meta *draft.File) {
	e.mu.Lock()
	e.run = Apply(e.run, event)
	if meta != nil && event.Type == EventStageStarted {
		if idx := stageIndex(e.run.Stages, event.Stage); idx >= 0 {
			e.run.Stages[idx].FileName = meta.Name
			e.run.Stages[idx].FileSize = meta.Size
		}
	}
	update, ok := updateFor(e.run, event)
	e.mu.Unlock()

	if ok {
		e.o.deps.Observer.StageTransition(update)
	}
}

func (e *execution) reportProgress(key StageKey, percent int) {
	e.apply(Event{Type: EventStageProgress, Stage: key, Percent: percent}, nil)
}

func updateFor(run Run, event Event) (StageUpdate, bool) {
	if event.Stage == "" {
		return StageUpdate{}, false
	}
	state, ok := run.StageFor(event.Stage)
	if !ok {
		return StageUpdate{}, false
	}
	return StageUpdate{
		Stage:    state.Key,
		Status:   state.Status,
		Percent:  state.Percent,
		FileName: state.FileName,
		FileSize: state.FileSize,
	}, true
}
