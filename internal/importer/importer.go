// Package importer drives one import run against the budgeting service:
// authenticate, list prior imports, drop already imported rows, upload,
// find the new import and commit it.
//
// Every step depends on the previous one's output, so a run is strictly
// sequential and the first failure ends it.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/walletimport/internal/csvfile"
	"github.com/cleared-dev/walletimport/internal/model"
	"github.com/cleared-dev/walletimport/internal/stamp"
	"github.com/cleared-dev/walletimport/internal/wire"
)

// Transport is the remote side of a run. budgetapi.Client implements it over
// the service's HTTP API; a browser-driven transport can implement the same
// calls by operating the web UI.
type Transport interface {
	// Authenticate logs in and resolves the user id.
	Authenticate(ctx context.Context, username, password string) (*model.Session, error)
	// ListImports returns prior imports newest first, filtered by account
	// when account is non-empty.
	ListImports(ctx context.Context, s *model.Session, account string) ([]model.ImportedFile, error)
	Upload(ctx context.Context, s *model.Session, fileName string, content []byte) error
	Commit(ctx context.Context, s *model.Session, importID string, payload wire.TimestampPayload) error
}

// CutoffPolicy decides what happens when the last import's file name
// carries no readable timestamp.
type CutoffPolicy string

const (
	CutoffSkip  CutoffPolicy = "skip"  // warn and upload every row
	CutoffAbort CutoffPolicy = "abort" // fail with ErrCutoffUnparsable
)

// Options configures an Importer.
type Options struct {
	Incremental    bool
	AccountID      string
	CutoffPolicy   CutoffPolicy
	RelistAttempts int           // catalog reads after upload; 1 means no retry
	RelistInterval time.Duration // pause between catalog reads
	Logger         logrus.FieldLogger
}

// Importer runs imports through a Transport.
type Importer struct {
	transport Transport
	opts      Options
	log       logrus.FieldLogger
}

// New returns an Importer.
func New(t Transport, opts Options) *Importer {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.CutoffPolicy == "" {
		opts.CutoffPolicy = CutoffSkip
	}
	if opts.RelistAttempts < 1 {
		opts.RelistAttempts = 1
	}
	return &Importer{transport: t, opts: opts, log: opts.Logger}
}

// Request is one import run's input.
type Request struct {
	Username string
	Password string
	FileName string // name announced to the service
	File     *csvfile.File
	DryRun   bool // stop before uploading

	// Rewrite, when set, receives the filtered file before upload. It is
	// only called when a cutoff removed rows from consideration.
	Rewrite func(*csvfile.File) error
}

// Result describes how a run ended. On failure State is the last state
// reached and Outcome is model.OutcomeFailed.
type Result struct {
	RunID    string
	Outcome  model.Outcome
	State    model.State
	ImportID string
	Cutoff   time.Time      // zero when no cutoff applied
	Uploaded *csvfile.File  // rows sent, or that would be sent on a dry run
	Totals   csvfile.Totals // of Uploaded
}

type run struct {
	res Result
	log logrus.FieldLogger
}

func (r *run) advance(s model.State) {
	r.res.State = s
	r.log.WithField("state", s).Debug("import state")
}

func (r *run) fail(err error) (Result, error) {
	r.res.Outcome = model.OutcomeFailed
	r.log.WithField("state", r.res.State).WithError(err).Error("import failed")
	return r.res, err
}

func (r *run) done(o model.Outcome) (Result, error) {
	r.res.Outcome = o
	r.log.WithFields(logrus.Fields{
		"outcome":   o,
		"import_id": r.res.ImportID,
		"rows":      r.res.Totals.Rows,
		"net":       r.res.Totals.Net().StringFixed(2),
	}).Info("import finished")
	return r.res, nil
}

// Run executes one import. A returned error carries one of the model error
// kinds; UpToDate and DryRun outcomes are successes.
func (im *Importer) Run(ctx context.Context, req Request) (Result, error) {
	r := &run{res: Result{RunID: uuid.NewString(), State: model.StateIdle}}
	r.log = im.log.WithFields(logrus.Fields{"run_id": r.res.RunID, "file": req.FileName})

	if req.File == nil {
		return r.fail(fmt.Errorf("%w: no transaction file", model.ErrFileMissing))
	}

	session, err := im.transport.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return r.fail(err)
	}
	r.advance(model.StateAuthenticated)
	r.advance(model.StateUserResolved)

	prior, err := im.transport.ListImports(ctx, session, im.opts.AccountID)
	if err != nil {
		return r.fail(err)
	}
	r.advance(model.StateCatalogListed)

	upload, filtered, err := im.filter(r, req.File, prior)
	if err != nil {
		return r.fail(err)
	}
	r.res.Uploaded = upload
	r.res.Totals = upload.Totals()
	if upload.UpToDate() {
		r.advance(model.StateUpToDate)
		return r.done(model.OutcomeUpToDate)
	}
	r.advance(model.StateFiltered)

	if req.DryRun {
		return r.done(model.OutcomeDryRun)
	}

	if filtered && req.Rewrite != nil {
		if err := req.Rewrite(upload); err != nil {
			return r.fail(fmt.Errorf("rewriting source: %w", err))
		}
	}

	if err := im.transport.Upload(ctx, session, req.FileName, upload.Bytes()); err != nil {
		return r.fail(err)
	}
	r.advance(model.StateUploaded)

	id, err := im.discover(ctx, r, session, prior)
	if err != nil {
		return r.fail(err)
	}
	r.res.ImportID = id
	r.advance(model.StateCatalogRelisted)

	if err := im.transport.Commit(ctx, session, id, wire.NewTimestampPayload(upload.Len())); err != nil {
		return r.fail(err)
	}
	r.advance(model.StateCommitted)
	return r.done(model.OutcomeCommitted)
}

// filter applies the cutoff taken from the newest prior import. It reports
// whether a cutoff was applied.
func (im *Importer) filter(r *run, f *csvfile.File, prior []model.ImportedFile) (*csvfile.File, bool, error) {
	if !im.opts.Incremental || len(prior) == 0 {
		return f, false, nil
	}

	last := prior[0]
	cutoff, err := stamp.Cutoff(last.FileName)
	if err != nil {
		if im.opts.CutoffPolicy == CutoffAbort {
			return nil, false, fmt.Errorf("%w: %w", model.ErrCutoffUnparsable, err)
		}
		r.log.WithField("last_import", last.FileName).Warn("cannot read last import date, uploading all rows")
		return f, false, nil
	}

	r.res.Cutoff = cutoff
	out := f.Filter(cutoff)
	r.log.WithFields(logrus.Fields{
		"cutoff": cutoff.Format(time.RFC3339),
		"kept":   out.Len() - 1,
		"total":  f.Len() - 1,
	}).Debug("filtered imported rows")
	return out, true, nil
}

// discover finds the id of the file just uploaded: the newest catalog entry
// that was not listed before the upload.
func (im *Importer) discover(ctx context.Context, r *run, s *model.Session, prior []model.ImportedFile) (string, error) {
	known := make(map[string]bool, len(prior))
	for _, f := range prior {
		known[f.ID] = true
	}

	for attempt := 1; ; attempt++ {
		files, err := im.transport.ListImports(ctx, s, im.opts.AccountID)
		if err != nil {
			return "", err
		}
		for _, f := range files {
			if !known[f.ID] {
				return f.ID, nil
			}
		}
		if attempt >= im.opts.RelistAttempts {
			return "", fmt.Errorf("%w: after %d catalog reads", model.ErrUploadNotReflected, attempt)
		}

		r.log.WithField("attempt", attempt).Debug("upload not listed yet")
		if err := sleep(ctx, im.opts.RelistInterval); err != nil {
			return "", errors.Join(model.ErrUploadNotReflected, err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
