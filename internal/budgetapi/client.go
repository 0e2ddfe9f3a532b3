// Package budgetapi talks to the budgeting service's import pipeline.
package budgetapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/walletimport/internal/model"
	"github.com/cleared-dev/walletimport/internal/wire"
)

const (
	pathLogin   = "/auth/authenticate/userpass"
	pathUser    = "/ribeez/user/abc"
	pathImports = "/ribeez/import/v1/all"
	pathUpload  = "/upload/import-web/"
	pathItem    = "/ribeez/import/v1/item/"
)

// Identity is the client identity the service checks on every call.
type Identity struct {
	Flavor   string
	Platform string
	Version  string
}

func (id Identity) apply(h http.Header) {
	h.Set("flavor", id.Flavor)
	h.Set("platform", id.Platform)
	h.Set("web-version-code", id.Version)
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	UploadURL   string
	ImportEmail string
	Identity    Identity
	HTTPClient  *http.Client       // defaults to a client with a 60s timeout
	Logger      logrus.FieldLogger // defaults to logrus.StandardLogger()
}

// Client is a stateless service client; the session travels with each call.
type Client struct {
	http        *http.Client
	baseURL     string
	uploadURL   string
	importEmail string
	identity    Identity
	log         logrus.FieldLogger
}

// New returns a Client for opts.
func New(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	logged := *hc
	logged.Transport = &loggingTransport{base: base, log: log}

	return &Client{
		http:        &logged,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		uploadURL:   strings.TrimRight(opts.UploadURL, "/"),
		importEmail: opts.ImportEmail,
		identity:    opts.Identity,
		log:         log,
	}
}

// Authenticate logs in and resolves the user. No session is returned unless
// both steps succeed.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*model.Session, error) {
	if username == "" || password == "" {
		return nil, model.ErrCredentialsMissing
	}

	token, err := c.login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrLoginFailed, err)
	}

	userID, err := c.resolveUser(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrUserResolutionFailed, err)
	}
	return &model.Session{Token: token, UserID: userID}, nil
}

func (c *Client) login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathLogin, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return "", fmt.Errorf("no session cookie in response")
	}
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; "), nil
}

func (c *Client) resolveUser(ctx context.Context, token string) (string, error) {
	body, err := c.get(ctx, token, pathUser)
	if err != nil {
		return "", err
	}
	u, err := wire.DecodeUser(body)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// ListImports returns previously imported files, newest first as the service
// orders them. A non-empty account keeps only that account's imports.
func (c *Client) ListImports(ctx context.Context, s *model.Session, account string) ([]model.ImportedFile, error) {
	if !s.Valid() {
		return nil, model.ErrSessionRequired
	}
	body, err := c.get(ctx, s.Token, pathImports)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrCatalogFetchFailed, err)
	}
	files, err := wire.DecodeImportList(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrCatalogFetchFailed, err)
	}
	if account == "" {
		return files, nil
	}

	matched := make([]model.ImportedFile, 0, len(files))
	for _, f := range files {
		if f.AccountID == account {
			matched = append(matched, f)
		}
	}
	return matched, nil
}

// Upload posts the raw CSV to the user's import address under fileName.
func (c *Client) Upload(ctx context.Context, s *model.Session, fileName string, content []byte) error {
	if !s.Valid() {
		return model.ErrSessionRequired
	}
	addr := c.uploadURL + pathUpload + url.PathEscape(c.importEmail)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrUploadFailed, err)
	}
	c.identity.apply(req.Header)
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("x-filename", fileName)
	req.Header.Set("x-userid", s.UserID)

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("%w: %w", model.ErrUploadFailed, err)
	}
	return nil
}

// Commit asks the service to parse the uploaded file importID into records.
func (c *Client) Commit(ctx context.Context, s *model.Session, importID string, payload wire.TimestampPayload) error {
	if !s.Valid() {
		return model.ErrSessionRequired
	}
	addr := c.baseURL + pathItem + url.PathEscape(importID) + "/records"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr, bytes.NewReader(payload.Marshal()))
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrCommitFailed, err)
	}
	c.identity.apply(req.Header)
	req.Header.Set("Cookie", s.Token)
	req.Header.Set("Content-Type", "application/x-protobuf")

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("%w: %w", model.ErrCommitFailed, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, token, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.identity.apply(req.Header)
	req.Header.Set("Cookie", token)
	return c.do(req)
}

// do sends req and returns the body of a 2xx response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("reading %s response: %w", req.URL.Path, err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cannot http %s %v%v: %v", resp.Request.Method, resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	return nil
}

// loggingTransport logs every round trip at debug level.
type loggingTransport struct {
	base http.RoundTripper
	log  logrus.FieldLogger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	fields := logrus.Fields{
		"method":  req.Method,
		"host":    req.URL.Host,
		"path":    req.URL.Path,
		"elapsed": time.Since(start).Round(time.Millisecond),
	}
	if err != nil {
		t.log.WithFields(fields).WithError(err).Debug("http round trip failed")
		return nil, err
	}
	fields["status"] = resp.StatusCode
	t.log.WithFields(fields).Debug("http round trip")
	return resp, nil
}
