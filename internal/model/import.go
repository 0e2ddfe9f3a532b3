package model

// ImportedFile is a server-side record of a previously accepted upload.
type ImportedFile struct {
	ID        string
	FileName  string
	AccountID string // empty when the import is not bound to an account
}

// Session is an authenticated credential plus the resolved user, valid for
// one import run.
type Session struct {
	Token  string // opaque cookie header value
	UserID string
}

// Valid reports whether the session finished authentication and user
// resolution.
func (s *Session) Valid() bool {
	return s != nil && s.Token != "" && s.UserID != ""
}

// Outcome is the successful terminal result of a run.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeUpToDate  Outcome = "up-to-date"
	OutcomeDryRun    Outcome = "dry-run"
	OutcomeFailed    Outcome = "failed"
)

// State is a step of the import state machine.
type State string

const (
	StateIdle            State = "idle"
	StateAuthenticated   State = "authenticated"
	StateUserResolved    State = "user-resolved"
	StateCatalogListed   State = "catalog-listed"
	StateFiltered        State = "filtered"
	StateUpToDate        State = "up-to-date"
	StateUploaded        State = "uploaded"
	StateCatalogRelisted State = "catalog-relisted"
	StateCommitted       State = "committed"
)
