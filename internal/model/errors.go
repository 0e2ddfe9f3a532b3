package model

import "errors"

// Failure kinds surfaced by an import run. Callers match them with errors.Is;
// the underlying cause, when there is one, is wrapped alongside.
var (
	ErrCredentialsMissing   = errors.New("credentials missing")
	ErrFileMissing          = errors.New("file missing")
	ErrFileFormatInvalid    = errors.New("file format invalid")
	ErrLoginFailed          = errors.New("login failed")
	ErrUserResolutionFailed = errors.New("user resolution failed")
	ErrSessionRequired      = errors.New("session required")
	ErrCatalogFetchFailed   = errors.New("catalog fetch failed")
	ErrUploadFailed         = errors.New("upload failed")
	ErrUploadNotReflected   = errors.New("upload not reflected in catalog")
	ErrCommitFailed         = errors.New("commit failed")
	ErrMalformedMessage     = errors.New("malformed message")
	ErrCutoffUnparsable     = errors.New("cutoff unparsable")
)

var kinds = []error{
	ErrCredentialsMissing,
	ErrFileMissing,
	ErrFileFormatInvalid,
	ErrLoginFailed,
	ErrUserResolutionFailed,
	ErrSessionRequired,
	ErrCatalogFetchFailed,
	ErrUploadFailed,
	ErrUploadNotReflected,
	ErrCommitFailed,
	ErrMalformedMessage,
	ErrCutoffUnparsable,
}

// Kind returns the first taxonomy sentinel err matches, or nil.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
