package pipeline

import (
	"context"
	"time"

	"entryway/internal/logging"
	"entryway/internal/services"
	"entryway/internal/services/contestapi"
	"entryway/internal/services/objectstore"
)

// runPreparing opens the journal entry for the run. Journal trouble is
// logged and tolerated; losing orphan tracking must not block a submission.
func (e *execution) runPreparing(ctx context.Context) error {
	j := e.o.deps.Journal
	if j == nil {
		return nil
	}
	if err := j.BeginRun(ctx, e.state.runID, e.state.draft.ContestID, e.state.identity.UserID); err != nil {
		e.logger.Warn("failed to journal run start", logging.Error(err))
	}
	return nil
}

// runVideo requests an upload ticket, streams the video to the issued
// target, and captures the asset identifier for the registration stage.
func (e *execution) runVideo(ctx context.Context) error {
	issued, err := e.o.deps.Tickets.Request(ctx, e.o.cfg.Limits.VideoDurationLimitSeconds)
	if err != nil {
		return err
	}

	if err := e.o.deps.Media.Upload(ctx, issued.UploadTarget, e.state.draft.Video, func(percent int) {
		e.reportProgress(StageVideo, percent)
	}); err != nil {
		return err
	}

	e.mu.Lock()
	e.state.assetID = issued.AssetID
	e.mu.Unlock()

	if j := e.o.deps.Journal; j != nil {
		if err := j.RecordAsset(ctx, e.state.runID, string(StageVideo), "", issued.AssetID); err != nil {
			e.logger.Warn("failed to journal video asset", logging.Error(err))
		}
	}
	return nil
}

// runThumbnail refreshes the session if it can, re-resolves the identity
// the object path is keyed on, then writes the thumbnail to object storage
// under its own deadline and resolves the public URL.
func (e *execution) runThumbnail(ctx context.Context) error {
	e.o.deps.Session.RefreshBestEffort(ctx)

	identity, err := e.o.deps.Session.ResolveIdentity(ctx)
	if err != nil {
		return err
	}
	token, err := e.o.deps.Session.Token(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.state.identity = identity
	e.mu.Unlock()

	d := e.state.draft
	objectPath := objectstore.ObjectPath(d.ContestID, identity.UserID, d.Thumbnail.Name)

	putCtx := ctx
	if seconds := e.o.cfg.Timeouts.ThumbnailUpload; seconds > 0 {
		var cancel context.CancelFunc
		putCtx, cancel = context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
		defer cancel()
	}
	if err := e.o.deps.Store.Put(putCtx, string(StageThumbnail), objectPath, token, d.Thumbnail); err != nil {
		return err
	}

	e.mu.Lock()
	e.state.thumbnailURL = e.o.deps.Store.PublicURL(objectPath)
	e.state.token = token
	e.mu.Unlock()

	if j := e.o.deps.Journal; j != nil {
		if err := j.RecordAsset(ctx, e.state.runID, string(StageThumbnail), objectPath, ""); err != nil {
			e.logger.Warn("failed to journal thumbnail asset", logging.Error(err))
		}
	}
	return nil
}

// runProofImages uploads the proof image of every qualifying bonus entry in
// declaration order and writes the resolved URL back onto the entry. Entries
// that carry only an SNS URL need no upload. The identity keying the object
// paths is re-resolved at stage entry, same as the thumbnail stage. The
// first failure aborts the stage; already uploaded proofs stay journaled
// for reconciliation.
func (e *execution) runProofImages(ctx context.Context) error {
	identity, err := e.o.deps.Session.ResolveIdentity(ctx)
	if err != nil {
		return err
	}
	token, err := e.o.deps.Session.Token(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.state.identity = identity
	e.mu.Unlock()

	d := e.state.draft
	for _, idx := range d.QualifyingBonusEntries() {
		entry := &d.BonusEntries[idx]
		if entry.Proof == nil {
			continue
		}

		objectPath := objectstore.ObjectPath(d.ContestID, identity.UserID, entry.Proof.Name)
		if err := e.o.deps.Store.Put(ctx, string(StageProofImages), objectPath, token, entry.Proof); err != nil {
			return err
		}
		entry.ProofURL = e.o.deps.Store.PublicURL(objectPath)

		if j := e.o.deps.Journal; j != nil {
			if err := j.RecordAsset(ctx, e.state.runID, string(StageProofImages), objectPath, ""); err != nil {
				e.logger.Warn("failed to journal proof asset", logging.Error(err))
			}
		}
	}
	return nil
}

// runSubmission assembles the registration payload from the stage outputs
// and posts it. The server response supplies the submission identifier.
func (e *execution) runSubmission(ctx context.Context) error {
	e.mu.Lock()
	payload := e.buildPayloadLocked()
	token := e.state.token
	e.mu.Unlock()

	submissionID, err := e.o.deps.Contest.RegisterSubmission(ctx, token, payload)
	if err != nil {
		return err
	}
	if submissionID == "" {
		return services.Wrap(services.ErrGeneric, string(StageSubmission), "register",
			"registration response carried no submission identifier", nil)
	}

	e.mu.Lock()
	e.state.submissionID = submissionID
	e.mu.Unlock()
	return nil
}

func (e *execution) buildPayloadLocked() contestapi.RegistrationPayload {
	d := e.state.draft
	payload := contestapi.RegistrationPayload{
		ContestID:         d.ContestID,
		AssetID:           e.state.assetID,
		ThumbnailURL:      e.state.thumbnailURL,
		Title:             d.Title,
		Description:       d.Description,
		ProductionProcess: d.ProductionProcess,
		AITools:           d.AITools,
		AgreementFlag:     d.Agreed,
	}
	for _, idx := range d.QualifyingBonusEntries() {
		entry := d.BonusEntries[idx]
		payload.BonusEntries = append(payload.BonusEntries, contestapi.BonusEntryPayload{
			BonusConfigID: entry.BonusConfigID,
			SNSURL:        entry.SNSURL,
			ProofImageURL: entry.ProofURL,
		})
	}
	return payload
}
