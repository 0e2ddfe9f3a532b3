package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/walletimport/internal/csvfile"
	"github.com/cleared-dev/walletimport/internal/model"
	"github.com/cleared-dev/walletimport/internal/wire"
)

var sampleRows = []string{
	"date,note,amount,expense",
	"2024-01-01T10:00,x,5,false",
	"2024-01-02T10:00,y,3,true",
}

func sampleFile() *csvfile.File {
	return &csvfile.File{Rows: append([]string(nil), sampleRows...)}
}

// fakeTransport records calls and serves a scripted catalog.
type fakeTransport struct {
	calls []string

	authErr   error
	listErr   error
	uploadErr error
	commitErr error

	// catalogs[i] is returned by the i-th ListImports call; the last one
	// repeats.
	catalogs [][]model.ImportedFile

	uploadedName    string
	uploadedContent []byte
	committedID     string
	payload         wire.TimestampPayload
}

func (f *fakeTransport) Authenticate(_ context.Context, username, password string) (*model.Session, error) {
	f.calls = append(f.calls, "authenticate")
	if f.authErr != nil {
		return nil, f.authErr
	}
	if username == "" || password == "" {
		return nil, model.ErrCredentialsMissing
	}
	return &model.Session{Token: "sid=1", UserID: "user-1"}, nil
}

func (f *fakeTransport) ListImports(_ context.Context, s *model.Session, account string) ([]model.ImportedFile, error) {
	n := len(f.calls)
	f.calls = append(f.calls, "list")
	if !s.Valid() {
		return nil, model.ErrSessionRequired
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	lists := 0
	for _, c := range f.calls[:n] {
		if c == "list" {
			lists++
		}
	}
	if len(f.catalogs) == 0 {
		return nil, nil
	}
	files := f.catalogs[min(lists, len(f.catalogs)-1)]
	if account == "" {
		return files, nil
	}
	var out []model.ImportedFile
	for _, file := range files {
		if file.AccountID == account {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *fakeTransport) Upload(_ context.Context, _ *model.Session, fileName string, content []byte) error {
	f.calls = append(f.calls, "upload")
	f.uploadedName = fileName
	f.uploadedContent = content
	return f.uploadErr
}

func (f *fakeTransport) Commit(_ context.Context, _ *model.Session, importID string, payload wire.TimestampPayload) error {
	f.calls = append(f.calls, "commit")
	f.committedID = importID
	f.payload = payload
	return f.commitErr
}

func newTestImporter(t *testing.T, tr Transport, opts Options) (*Importer, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts.Logger = logger
	return New(tr, opts), hook
}

func request() Request {
	return Request{Username: "jane", Password: "pw", FileName: "wallet.csv", File: sampleFile()}
}

func prior(name string) []model.ImportedFile {
	return []model.ImportedFile{{ID: "f-1", FileName: name}}
}

func withUploaded(files []model.ImportedFile) []model.ImportedFile {
	return append([]model.ImportedFile{{ID: "f-new", FileName: "wallet.csv"}}, files...)
}

func TestRun_CutoffBeforeAllRows(t *testing.T) {
	p := prior("import-2024-01-01T09-00-00.csv")
	tr := &fakeTransport{catalogs: [][]model.ImportedFile{p, withUploaded(p)}}
	im, _ := newTestImporter(t, tr, Options{Incremental: true})

	var rewritten *csvfile.File
	req := request()
	req.Rewrite = func(f *csvfile.File) error { rewritten = f; return nil }

	res, err := im.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeCommitted, res.Outcome)
	assert.Equal(t, model.StateCommitted, res.State)
	assert.Equal(t, "f-new", res.ImportID)
	assert.Equal(t, []string{"authenticate", "list", "upload", "list", "commit"}, tr.calls)

	assert.Equal(t, sampleRows, res.Uploaded.Rows)
	assert.Equal(t, []byte("date,note,amount,expense\n2024-01-01T10:00,x,5,false\n2024-01-02T10:00,y,3,true\n"), tr.uploadedContent)
	assert.Equal(t, "wallet.csv", tr.uploadedName)
	assert.Equal(t, "f-new", tr.committedID)
	assert.Equal(t, uint64(3), tr.payload.Formats[0].Rows)
	assert.Equal(t, uint64(3), tr.payload.Formats[0].Columns)

	require.NotNil(t, rewritten)
	assert.Equal(t, sampleRows, rewritten.Rows)
	assert.True(t, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC).Equal(res.Cutoff))
	assert.Equal(t, 2, res.Totals.Rows)
	assert.NotEmpty(t, res.RunID)
}

func TestRun_PartiallyImported(t *testing.T) {
	p := prior("import-2024-01-02T00-00-00.csv")
	tr := &fakeTransport{catalogs: [][]model.ImportedFile{p, withUploaded(p)}}
	im, _ := newTestImporter(t, tr, Options{Incremental: true})

	res, err := im.Run(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, []string{sampleRows[0], sampleRows[2]}, res.Uploaded.Rows)
	assert.Equal(t, uint64(2), tr.payload.Formats[0].Rows)
}

func TestRun_UpToDate(t *testing.T) {
	tr := &fakeTransport{catalogs: [][]model.ImportedFile{prior("import-2024-01-03T09-00-00.csv")}}
	im, _ := newTestImporter(t, tr, Options{Incremental: true})

	rewrites := 0
	req := request()
	req.Rewrite = func(*csvfile.File) error { rewrites++; return nil }

	res, err := im.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeUpToDate, res.Outcome)
	assert.Equal(t, model.StateUpToDate, res.State)
	assert.Equal(t, []string{"authenticate", "list"}, tr.calls)
	assert.Zero(t, rewrites)
	assert.Equal(t, sampleRows, req.File.Rows)
}

func TestRun_HeaderOnlyIsUpToDate(t *testing.T) {
	tr := &fakeTransport{catalogs: [][]model.ImportedFile{prior("import-2020-01-01T00-00-00.csv")}}
	im, _ := newTestImporter(t, tr, Options{Incremental: true})

	req := request()
	req.File = &csvfile.File{Rows: []string{csvfile.Header}}

	res, err := im.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeUpToDate, res.Outcome)
	assert.NotContains(t, tr.calls, "upload")
	assert.NotContains(t, tr.calls, "commit")
}

func TestRun_UnparsableCutoffSkips(t *testing.T) {
	p := prior("transactions.csv")
	tr := &fakeTransport{catalogs: [][]model.ImportedFile{p, withUploaded(p)}}
	im, hook := newTestImporter(t, tr, Options{Incremental: true})

	rewrites := 0
	req := request()
	req.Rewrite = func(*csvfile.File) error { rewrites++; return nil }

	res, err := im.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeCommitted, res.Outcome)
	assert.Equal(t, sampleRows, res.Uploaded.Rows)
	assert.Equal(t, uint64(3), tr.payload.Formats[0].Rows)
	assert.True(t, res.Cutoff.IsZero())
	assert.Zero(t, rewrites)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
			assert.Equal(t, "transactions.csv", e.Data["last_import"])
		}
	}
	assert.True(t, warned, "expected a warning for the unreadable cutoff")
}

func TestRun_UnparsableCutoffAborts(t *testing.T) {
	tr := &fakeTransport{catalogs: [][]model.ImportedFile{prior("transactions.csv")}}
	im, _ := newTestImporter(t, tr, Options{Incremental: true, CutoffPolicy: CutoffAbort})

	res, err := im.Run(context.Background(), request())
	assert.ErrorIs(t, err, model.ErrCutoffUnparsable)
	assert.Equal(t, model.OutcomeFailed, res.Outcome)
	assert.Equal(t, model.StateCatalogListed, res.State)
	assert.Equal(t, []string{"authenticate", "list"}, tr.calls)
}

func TestRun_NotIncremental(t *testing.T) {
	p := prior("import-2030-01-01T00-00-00.csv")
	tr := &fakeTransport{catalogs: [][]model.ImportedFile{p, withUploaded(p)}}
	im, _ := newTestImporter(t, tr, Options{Incremental: false})

	res, err := im.Run(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCommitted, res.Outcome)
	assert.Equal(t, sampleRows, res.Uploaded.Rows)
}

func TestRun_NoPriorImport(t *testing.T) {
	tr := &fakeTransport{catalogs: [][]model.ImportedFile{nil, {{ID: "f-new", FileName: "wallet.csv"}}}}
	im, _ := newTestImporter(t, tr, Options{Incremental: true})

	res, err := im.Run(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "f-new", res.ImportID)
	assert.Equal(t, sampleRows, res.Uploaded.Rows)
}

func TestRun_AccountFilter(t *testing.T) {
	before := []model.ImportedFile{
		{ID: "f-2", FileName: "other-2024-01-05T00-00-00.csv", AccountID: "acc-2"},
		{ID: "f-1", FileName: "import-2024-01-02T00-00-00.csv", AccountID: "acc-1"},
	}
	after := append([]model.ImportedFile{
		{ID: "f-other", FileName: "x.csv", AccountID: "acc-2"},
		{ID: "f-new", FileName: "wallet.csv", AccountID: "acc-1"},
	}, before...)
	tr := &fakeTransport{catalogs: [][]model.ImportedFile{before, after}}
	im, _ := newTestImporter(t, tr, Options{Incremental: true, AccountID: "acc-1"})

	res, err := im.Run(context.Background(), request())
	require.NoError(t, err)

	// acc-2's newer import does not set the cutoff.
	assert.True(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).Equal(res.Cutoff))
	assert.Equal(t, "f-new", res.ImportID)
}

func TestRun_AuthenticationFailureStopsRun(t *testing.T) {
	tr := &fakeTransport{authErr: fmt.Errorf("%w: 401", model.ErrLoginFailed)}
	im, _ := newTestImporter(t, tr, Options{Incremental: true})

	res, err := im.Run(context.Background(), request())
	assert.ErrorIs(t, err, model.ErrLoginFailed)
	assert.Equal(t, model.StateIdle, res.State)
	assert.Equal(t, []string{"authenticate"}, tr.calls)
}

func TestRun_MissingCredentials(t *testing.T) {
	tr := &fakeTransport{}
	im, _ := newTestImporter(t, tr, Options{})

	req := request()
	req.Password = ""
	_, err := im.Run(context.Background(), req)
	assert.ErrorIs(t, err, model.ErrCredentialsMissing)
	assert.Equal(t, []string{"authenticate"}, tr.calls)
}

func TestRun_NoFile(t *testing.T) {
	tr := &fakeTransport{}
	im, _ := newTestImporter(t, tr, Options{})

	req := request()
	req.File = nil
	_, err := im.Run(context.Background(), req)
	assert.ErrorIs(t, err, model.ErrFileMissing)
	assert.Empty(t, tr.calls)
}

func TestRun_CatalogFailure(t *testing.T) {
	tr := &fakeTransport{listErr: fmt.Errorf("%w: timeout", model.ErrCatalogFetchFailed)}
	im, _ := newTestImporter(t, tr, Options{})

	res, err := im.Run(context.Background(), request())
	assert.ErrorIs(t, err, model.ErrCatalogFetchFailed)
	assert.Equal(t, model.StateUserResolved, res.State)
	assert.Equal(t, []string{"authenticate", "list"}, tr.calls)
}

func TestRun_UploadFailure(t *testing.T) {
	cause := errors.New("connection reset")
	tr := &fakeTransport{uploadErr: fmt.Errorf("%w: %w", model.ErrUploadFailed, cause)}
	im, _ := newTestImporter(t, tr, Options{})

	res, err := im.Run(context.Background(), request())
	assert.ErrorIs(t, err, model.ErrUploadFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, model.StateFiltered, res.State)
	assert.Equal(t, []string{"authenticate", "list", "upload"}, tr.calls)
}

func TestRun_UploadNotReflected(t *testing.T) {
	p := prior("import-2024-01-01T09-00-00.csv")
	tr := &fakeTransport{catalogs: [][]model.ImportedFile{p}}
	im, _ := newTestImporter(t, tr, Options{Incremental: true})

	res, err := im.Run(context.Background(), request())
	assert.ErrorIs(t, err, model.ErrUploadNotReflected)
	assert.Equal(t, model.StateUploaded, res.State)
	assert.Equal(t, []string{"authenticate", "list", "upload", "list"}, tr.calls)
}

func TestRun_RelistPolling(t *testing.T) {
	p := prior("import-2024-01-01T09-00-00.csv")
	tr := &fakeTransport{catalogs: [][]model.ImportedFile{p, p, p, withUploaded(p)}}
	im, _ := newTestImporter(t, tr, Options{Incremental: true, RelistAttempts: 5, RelistInterval: time.Millisecond})

	res, err := im.Run(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "f-new", res.ImportID)
	assert.Equal(t, []string{"authenticate", "list", "upload", "list", "list", "list", "commit"}, tr.calls)
}

func TestRun_RelistPollingCancelled(t *testing.T) {
	p := prior("import-2024-01-01T09-00-00.csv")
	tr := &fakeTransport{catalogs: [][]model.ImportedFile{p}}
	im, _ := newTestImporter(t, tr, Options{RelistAttempts: 3, RelistInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	req := request()
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := im.Run(ctx, req)
	assert.ErrorIs(t, err, model.ErrUploadNotReflected)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_CommitFailure(t *testing.T) {
	p := prior("import-2024-01-01T09-00-00.csv")
	tr := &fakeTransport{
		catalogs:  [][]model.ImportedFile{p, withUploaded(p)},
		commitErr: fmt.Errorf("%w: 400", model.ErrCommitFailed),
	}
	im, _ := newTestImporter(t, tr, Options{Incremental: true})

	res, err := im.Run(context.Background(), request())
	assert.ErrorIs(t, err, model.ErrCommitFailed)
	assert.Equal(t, model.OutcomeFailed, res.Outcome)
	assert.Equal(t, model.StateCatalogRelisted, res.State)
	assert.Equal(t, "f-new", res.ImportID)
}

func TestRun_RewriteFailure(t *testing.T) {
	tr := &fakeTransport{catalogs: [][]model.ImportedFile{prior("import-2024-01-01T09-00-00.csv")}}
	im, _ := newTestImporter(t, tr, Options{Incremental: true})

	req := request()
	req.Rewrite = func(*csvfile.File) error { return errors.New("read-only file system") }

	_, err := im.Run(context.Background(), req)
	assert.ErrorContains(t, err, "rewriting source")
	assert.NotContains(t, tr.calls, "upload")
}

func TestRun_DryRun(t *testing.T) {
	tr := &fakeTransport{catalogs: [][]model.ImportedFile{prior("import-2024-01-02T00-00-00.csv")}}
	im, _ := newTestImporter(t, tr, Options{Incremental: true})

	rewrites := 0
	req := request()
	req.DryRun = true
	req.Rewrite = func(*csvfile.File) error { rewrites++; return nil }

	res, err := im.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeDryRun, res.Outcome)
	assert.Equal(t, 2, res.Uploaded.Len())
	assert.Equal(t, []string{"authenticate", "list"}, tr.calls)
	assert.Zero(t, rewrites)
}

func TestRun_StateTransitionsLogged(t *testing.T) {
	p := prior("import-2024-01-01T09-00-00.csv")
	tr := &fakeTransport{catalogs: [][]model.ImportedFile{p, withUploaded(p)}}
	im, hook := newTestImporter(t, tr, Options{Incremental: true})

	res, err := im.Run(context.Background(), request())
	require.NoError(t, err)

	var states []model.State
	for _, e := range hook.AllEntries() {
		if s, ok := e.Data["state"].(model.State); ok && e.Message == "import state" {
			states = append(states, s)
			assert.Equal(t, res.RunID, e.Data["run_id"])
		}
	}
	assert.Equal(t, []model.State{
		model.StateAuthenticated,
		model.StateUserResolved,
		model.StateCatalogListed,
		model.StateFiltered,
		model.StateUploaded,
		model.StateCatalogRelisted,
		model.StateCommitted,
	}, states)
}
