package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"entryway/internal/config"
	"entryway/internal/draft"
	"entryway/internal/logging"
	"entryway/internal/services"
	"entryway/internal/services/contestapi"
	"entryway/internal/services/mediahost"
	"entryway/internal/services/ticket"
	"entryway/internal/session"
)

type fakeTickets struct {
	calls  int
	ticket ticket.Ticket
	err    error
}

func (f *fakeTickets) Request(ctx context.Context, durationLimitSeconds int) (*ticket.Ticket, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	issued := f.ticket
	return &issued, nil
}

type fakeMedia struct {
	calls    int
	target   string
	progress []int
	err      error
}

func (f *fakeMedia) Upload(ctx context.Context, target string, file *draft.File, progress mediahost.ProgressFunc) error {
	f.calls++
	f.target = target
	if f.err != nil {
		return f.err
	}
	for _, pct := range []int{25, 50, 100} {
		f.progress = append(f.progress, pct)
		progress(pct)
	}
	return nil
}

type fakeStore struct {
	puts      []string
	deadlines map[string]bool
	stageErrs map[string]error
}

func (f *fakeStore) Put(ctx context.Context, stage, objectPath, token string, file *draft.File) error {
	f.puts = append(f.puts, stage)
	if f.deadlines == nil {
		f.deadlines = map[string]bool{}
	}
	_, f.deadlines[stage] = ctx.Deadline()
	if err := f.stageErrs[stage]; err != nil {
		return err
	}
	return nil
}

func (f *fakeStore) PublicURL(objectPath string) string {
	return "https://assets.example.com/" + objectPath
}

type fakeContest struct {
	meta         contestapi.Contest
	metaCalls    int
	metaErr      error
	payloads     []contestapi.RegistrationPayload
	submissionID string
	registerErr  error
}

func (f *fakeContest) ContestMetadata(ctx context.Context, token, contestID string) (*contestapi.Contest, error) {
	f.metaCalls++
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	meta := f.meta
	return &meta, nil
}

func (f *fakeContest) RegisterSubmission(ctx context.Context, token string, payload contestapi.RegistrationPayload) (string, error) {
	f.payloads = append(f.payloads, payload)
	if f.registerErr != nil {
		return "", f.registerErr
	}
	return f.submissionID, nil
}

type fakeSession struct {
	identity          session.Identity
	identityErr       error
	identityErrOnCall int
	identityCalls     int
	token             string
	refreshes         int
}

func (f *fakeSession) RefreshBestEffort(ctx context.Context) { f.refreshes++ }

func (f *fakeSession) ResolveIdentity(ctx context.Context) (session.Identity, error) {
	f.identityCalls++
	if f.identityErr != nil && f.identityCalls >= f.identityErrOnCall {
		return session.Identity{}, f.identityErr
	}
	return f.identity, nil
}

func (f *fakeSession) Token(ctx context.Context) (string, error) {
	return f.token, nil
}

type fakeQuota struct {
	calls int
	err   error
}

func (f *fakeQuota) Check(ctx context.Context, userID, contestID string, maxPerUser int) error {
	f.calls++
	return f.err
}

type recordingObserver struct {
	mu      sync.Mutex
	updates []StageUpdate
}

func (r *recordingObserver) StageTransition(update StageUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
}

// activeStages lists each stage activation once; repeated active updates
// for the same stage are progress ticks, not new activations.
func (r *recordingObserver) activeStages() []StageKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []StageKey
	for _, update := range r.updates {
		if update.Status != StageActive {
			continue
		}
		if len(keys) == 0 || keys[len(keys)-1] != update.Stage {
			keys = append(keys, update.Stage)
		}
	}
	return keys
}

type harness struct {
	tickets  *fakeTickets
	media    *fakeMedia
	store    *fakeStore
	contest  *fakeContest
	session  *fakeSession
	quota    *fakeQuota
	observer *recordingObserver
	orch     *Orchestrator
}

func newHarness() *harness {
	cfg := config.Default()
	h := &harness{
		tickets:  &fakeTickets{ticket: ticket.Ticket{UploadTarget: "https://media.example.com/up/1", AssetID: "asset-123"}},
		media:    &fakeMedia{},
		store:    &fakeStore{stageErrs: map[string]error{}},
		contest:  &fakeContest{meta: contestapi.Contest{ID: "contest-1", MaxPerUser: 3}, submissionID: "sub-900"},
		session:  &fakeSession{identity: session.Identity{UserID: "user-7", DisplayName: "entrant"}, token: "tok"},
		quota:    &fakeQuota{},
		observer: &recordingObserver{},
	}
	h.orch = New(&cfg, logging.NewNop(), Dependencies{
		Tickets:  h.tickets,
		Media:    h.media,
		Store:    h.store,
		Contest:  h.contest,
		Session:  h.session,
		Quota:    h.quota,
		Observer: h.observer,
	})
	return h
}

func testFile(name, mimeType string, size int64) *draft.File {
	return &draft.File{
		Name: name,
		Size: size,
		MIME: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("payload")), nil
		},
	}
}

func validDraft() *draft.Draft {
	return &draft.Draft{
		ContestID:         "contest-1",
		Title:             "Neon Alley",
		Description:       "city flythrough",
		ProductionProcess: "prompt, refine, grade",
		AITools:           []string{"gen-video"},
		Agreed:            true,
		Video:             testFile("entry.mp4", "video/mp4", 4<<20),
		Thumbnail:         testFile("cover.png", "image/png", 1<<20),
	}
}

func TestStartValidationFailureTouchesNothing(t *testing.T) {
	h := newHarness()
	d := validDraft()
	d.Title = ""

	_, err := h.orch.Start(context.Background(), d)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	classified := services.Details(err)
	if classified.Category != services.CategoryValidation {
		t.Fatalf("expected validation, got %s", classified.Category)
	}
	if h.tickets.calls != 0 || h.media.calls != 0 || len(h.store.puts) != 0 ||
		h.contest.metaCalls != 0 || len(h.contest.payloads) != 0 || h.quota.calls != 0 {
		t.Fatal("validation failure must not reach any service")
	}
	if len(h.observer.updates) != 0 {
		t.Fatalf("validation failure produced %d stage transitions", len(h.observer.updates))
	}
}

func TestStartQuotaRejectionShortCircuits(t *testing.T) {
	h := newHarness()
	h.contest.meta.MaxPerUser = 1
	h.quota.err = services.Wrap(services.ErrDuplicate, "preparing", "quota",
		"submission limit reached for this contest", nil)

	_, err := h.orch.Start(context.Background(), validDraft())
	if err == nil {
		t.Fatal("expected quota rejection")
	}
	if got := services.Details(err).Category; got != services.CategoryDuplicate {
		t.Fatalf("expected duplicate, got %s", got)
	}
	if h.tickets.calls != 0 || h.media.calls != 0 || len(h.store.puts) != 0 {
		t.Fatal("quota rejection must precede every upload")
	}
	if len(h.observer.updates) != 0 {
		t.Fatal("quota rejection must produce zero stage transitions")
	}
}

func TestStartIdentityFailureIsAuthExpired(t *testing.T) {
	h := newHarness()
	h.session.identityErr = services.Wrap(services.ErrAuthExpired, "preparing", "identity",
		"session expired; sign in again", nil)

	_, err := h.orch.Start(context.Background(), validDraft())
	if err == nil {
		t.Fatal("expected identity failure")
	}
	if got := services.Details(err).Category; got != services.CategoryAuthExpired {
		t.Fatalf("expected auth_expired, got %s", got)
	}
	if h.contest.metaCalls != 0 || h.tickets.calls != 0 {
		t.Fatal("identity failure must stop the run before any contest call")
	}
}

func TestStartExpiredSessionAtThumbnailHardStops(t *testing.T) {
	h := newHarness()
	h.session.identityErr = services.Wrap(services.ErrAuthExpired, "thumbnail", "identity",
		"session expired; sign in again", nil)
	h.session.identityErrOnCall = 2

	_, err := h.orch.Start(context.Background(), validDraft())
	if err == nil {
		t.Fatal("expected auth failure at thumbnail")
	}
	if got := services.Details(err).Category; got != services.CategoryAuthExpired {
		t.Fatalf("expected auth_expired, got %s", got)
	}
	if len(h.store.puts) != 0 {
		t.Fatal("thumbnail upload ran without a resolved identity")
	}
	if len(h.contest.payloads) != 0 {
		t.Fatal("registration ran after auth failure")
	}
}

func TestStartRejectsExtensionOutsideContestAllowList(t *testing.T) {
	h := newHarness()
	h.contest.meta.AllowedExtensions = []string{"webm", ".mov"}

	_, err := h.orch.Start(context.Background(), validDraft())
	if err == nil {
		t.Fatal("expected extension rejection for .mp4")
	}
	if got := services.Details(err).Category; got != services.CategoryValidation {
		t.Fatalf("expected validation, got %s", got)
	}
	if h.tickets.calls != 0 || len(h.store.puts) != 0 {
		t.Fatal("rejected draft must not reach any upload endpoint")
	}
	if len(h.observer.updates) != 0 {
		t.Fatal("contest-constraint rejection must produce zero stage transitions")
	}
}

func TestStartAcceptsExtensionInContestAllowList(t *testing.T) {
	h := newHarness()
	h.contest.meta.AllowedExtensions = []string{"MP4", ".webm"}

	if _, err := h.orch.Start(context.Background(), validDraft()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
}

func TestStartRejectsUnknownBonusConfig(t *testing.T) {
	h := newHarness()
	h.contest.meta.BonusConfigs = []contestapi.BonusConfig{{ID: "bonus-sns"}}
	d := validDraft()
	d.BonusEntries = []draft.BonusEntry{
		{BonusConfigID: "bonus-unknown", SNSURL: "https://sns.example.com/post/1"},
	}

	_, err := h.orch.Start(context.Background(), d)
	if err == nil {
		t.Fatal("expected unknown bonus config rejection")
	}
	if got := services.Details(err).Category; got != services.CategoryValidation {
		t.Fatalf("expected validation, got %s", got)
	}
}

func TestStartSuccessWithoutBonusEntries(t *testing.T) {
	h := newHarness()

	result, err := h.orch.Start(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.SubmissionID != "sub-900" {
		t.Fatalf("unexpected submission id %q", result.SubmissionID)
	}
	if result.Run.Status != StatusSucceeded {
		t.Fatalf("expected succeeded run, got %s", result.Run.Status)
	}

	want := []StageKey{StagePreparing, StageVideo, StageThumbnail, StageSubmission}
	if len(result.Run.Stages) != len(want) {
		t.Fatalf("expected %d stages, got %d", len(want), len(result.Run.Stages))
	}
	for i, key := range want {
		if result.Run.Stages[i].Key != key {
			t.Fatalf("stage %d: expected %s, got %s", i, key, result.Run.Stages[i].Key)
		}
		if result.Run.Stages[i].Status != StageCompleted {
			t.Fatalf("stage %s not completed: %s", key, result.Run.Stages[i].Status)
		}
	}
	got := h.observer.activeStages()
	if len(got) != len(want) {
		t.Fatalf("observer saw %v activations, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("activation %d: got %s, want %s", i, got[i], want[i])
		}
	}
	if len(h.store.puts) != 1 || h.store.puts[0] != string(StageThumbnail) {
		t.Fatalf("expected a single thumbnail put, got %v", h.store.puts)
	}
	if h.session.refreshes != 1 {
		t.Fatalf("expected one session refresh before the thumbnail, got %d", h.session.refreshes)
	}
}

func TestStartPassesTicketAssetIDToRegistration(t *testing.T) {
	h := newHarness()
	h.tickets.ticket.AssetID = "asset-777"

	if _, err := h.orch.Start(context.Background(), validDraft()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(h.contest.payloads) != 1 {
		t.Fatalf("expected one registration, got %d", len(h.contest.payloads))
	}
	payload := h.contest.payloads[0]
	if payload.AssetID != "asset-777" {
		t.Fatalf("registration carried asset %q", payload.AssetID)
	}
	if payload.ThumbnailURL == "" || !strings.HasPrefix(payload.ThumbnailURL, "https://assets.example.com/") {
		t.Fatalf("registration carried thumbnail URL %q", payload.ThumbnailURL)
	}
	if !payload.AgreementFlag {
		t.Fatal("agreement flag lost in payload assembly")
	}
}

func TestStartUploadsQualifyingProofImages(t *testing.T) {
	h := newHarness()
	d := validDraft()
	d.BonusEntries = []draft.BonusEntry{
		{BonusConfigID: "bonus-sns", SNSURL: "https://sns.example.com/post/1"},
		{BonusConfigID: "bonus-skip"},
		{BonusConfigID: "bonus-proof", Proof: testFile("receipt.jpg", "image/jpeg", 200<<10)},
	}

	result, err := h.orch.Start(context.Background(), d)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if _, ok := result.Run.StageFor(StageProofImages); !ok {
		t.Fatal("proof-images stage missing from the run")
	}

	var proofPuts int
	for _, stage := range h.store.puts {
		if stage == string(StageProofImages) {
			proofPuts++
		}
	}
	if proofPuts != 1 {
		t.Fatalf("expected one proof upload, got %d", proofPuts)
	}

	payload := h.contest.payloads[0]
	if len(payload.BonusEntries) != 2 {
		t.Fatalf("expected 2 qualifying bonus entries, got %d", len(payload.BonusEntries))
	}
	if payload.BonusEntries[0].BonusConfigID != "bonus-sns" || payload.BonusEntries[0].SNSURL == "" {
		t.Fatalf("first bonus entry malformed: %+v", payload.BonusEntries[0])
	}
	if payload.BonusEntries[1].ProofImageURL == "" {
		t.Fatal("proof entry carried no resolved image URL")
	}
}

func TestStartExpiredSessionAtProofImagesHardStops(t *testing.T) {
	h := newHarness()
	h.session.identityErr = services.Wrap(services.ErrAuthExpired, "proof-images", "identity",
		"session expired; sign in again", nil)
	h.session.identityErrOnCall = 3
	d := validDraft()
	d.BonusEntries = []draft.BonusEntry{
		{BonusConfigID: "bonus-proof", Proof: testFile("receipt.jpg", "image/jpeg", 200<<10)},
	}

	_, err := h.orch.Start(context.Background(), d)
	if err == nil {
		t.Fatal("expected auth failure at proof-images")
	}
	if got := services.Details(err).Category; got != services.CategoryAuthExpired {
		t.Fatalf("expected auth_expired, got %s", got)
	}
	for _, stage := range h.store.puts {
		if stage == string(StageProofImages) {
			t.Fatal("proof upload ran without a resolved identity")
		}
	}
	if len(h.contest.payloads) != 0 {
		t.Fatal("registration ran after auth failure")
	}
}

func TestStartOmitsProofStageWithoutQualifyingEntries(t *testing.T) {
	h := newHarness()
	d := validDraft()
	d.BonusEntries = []draft.BonusEntry{{BonusConfigID: "bonus-skip"}}

	result, err := h.orch.Start(context.Background(), d)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if _, ok := result.Run.StageFor(StageProofImages); ok {
		t.Fatal("proof-images stage present despite zero qualifying entries")
	}
	if len(h.contest.payloads[0].BonusEntries) != 0 {
		t.Fatalf("payload carried bonus entries: %+v", h.contest.payloads[0].BonusEntries)
	}
}

func TestStartVideoUploadFailureStopsBeforeThumbnail(t *testing.T) {
	h := newHarness()
	h.media.err = services.Wrap(services.ErrRejection, "video", "upload",
		"media host rejected the upload with status 500", nil)

	_, err := h.orch.Start(context.Background(), validDraft())
	if err == nil {
		t.Fatal("expected upload failure")
	}
	classified := services.Details(err)
	if classified.Category != services.CategoryRejection {
		t.Fatalf("expected rejection, got %s", classified.Category)
	}
	if !strings.Contains(classified.Message, "500") {
		t.Fatalf("message lost the status code: %q", classified.Message)
	}
	if len(h.store.puts) != 0 {
		t.Fatal("thumbnail upload ran after video failure")
	}
	for _, key := range h.observer.activeStages() {
		if key == StageThumbnail {
			t.Fatal("thumbnail became active after video failure")
		}
	}
}

func TestStartThumbnailTimeoutReportsTransport(t *testing.T) {
	h := newHarness()
	h.store.stageErrs[string(StageThumbnail)] = services.Wrap(services.ErrTransport, "thumbnail", "store",
		"timed out waiting for storage", context.DeadlineExceeded)

	_, err := h.orch.Start(context.Background(), validDraft())
	if err == nil {
		t.Fatal("expected thumbnail failure")
	}
	if got := services.Details(err).Category; got != services.CategoryTransport {
		t.Fatalf("expected transport, got %s", got)
	}
	if len(h.contest.payloads) != 0 {
		t.Fatal("registration ran after thumbnail failure")
	}
}

func TestStartThumbnailTimeoutConfiguration(t *testing.T) {
	h := newHarness()
	if _, err := h.orch.Start(context.Background(), validDraft()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !h.store.deadlines[string(StageThumbnail)] {
		t.Fatal("configured thumbnail timeout did not bound the upload context")
	}

	h = newHarness()
	h.orch.cfg.Timeouts.ThumbnailUpload = 0
	if _, err := h.orch.Start(context.Background(), validDraft()); err != nil {
		t.Fatalf("run with zero timeout failed: %v", err)
	}
	if h.store.deadlines[string(StageThumbnail)] {
		t.Fatal("zero timeout must leave the upload on the transport default")
	}
}

func TestStartRegistrationDuplicateMapsThrough(t *testing.T) {
	h := newHarness()
	h.contest.registerErr = services.Wrap(services.ErrDuplicate, "submission", "register",
		"a submission for this contest already exists", nil)

	_, err := h.orch.Start(context.Background(), validDraft())
	if err == nil {
		t.Fatal("expected registration failure")
	}
	if got := services.Details(err).Category; got != services.CategoryDuplicate {
		t.Fatalf("expected duplicate, got %s", got)
	}
}

func TestStartVideoProgressReachesObserver(t *testing.T) {
	h := newHarness()

	if _, err := h.orch.Start(context.Background(), validDraft()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var percents []int
	h.observer.mu.Lock()
	for _, update := range h.observer.updates {
		if update.Stage == StageVideo && update.Status == StageActive && update.Percent > 0 {
			percents = append(percents, update.Percent)
		}
	}
	h.observer.mu.Unlock()
	if len(percents) == 0 {
		t.Fatal("observer saw no video progress")
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress regressed: %v", percents)
		}
	}
}

func TestStartRefusesConcurrentRuns(t *testing.T) {
	h := newHarness()
	if !h.orch.busy.CompareAndSwap(false, true) {
		t.Fatal("orchestrator started busy")
	}
	defer h.orch.busy.Store(false)

	_, err := h.orch.Start(context.Background(), validDraft())
	if err == nil {
		t.Fatal("expected in-progress refusal")
	}
	if !strings.Contains(err.Error(), "already in progress") {
		t.Fatalf("unexpected refusal message: %v", err)
	}
}

func TestStartReturnsClassifiedError(t *testing.T) {
	h := newHarness()
	h.tickets.err = services.Wrap(services.ErrTransport, "video", "ticket",
		"no response from upload service", errors.New("dial tcp: connection refused"))

	_, err := h.orch.Start(context.Background(), validDraft())
	var classified *services.ClassifiedError
	if !errors.As(err, &classified) {
		t.Fatalf("expected *services.ClassifiedError, got %T", err)
	}
	if classified.Recovery == "" {
		t.Fatal("classified error carried no recovery action")
	}
}
