package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/walletimport/internal/budgetapi"
	"github.com/cleared-dev/walletimport/internal/config"
	"github.com/cleared-dev/walletimport/internal/history"
	"github.com/cleared-dev/walletimport/internal/importer"
)

// runtime is what a command needs to talk to the service.
type runtime struct {
	cfg   *config.Config
	dir   string // directory holding the config file; relative paths resolve here
	log   *logrus.Logger
	creds config.Credentials
}

func loadRuntime(g *globalFlags, stderr io.Writer) (*runtime, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", g.configPath, err)
	}

	log, err := newLogger(stderr, cfg.Log.Level, g.logLevel)
	if err != nil {
		return nil, err
	}

	envFiles := g.envFiles
	if len(envFiles) == 0 {
		envFiles = config.DefaultEnvFiles
	}
	creds, err := config.LoadCredentials(envFiles)
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:   cfg,
		dir:   filepath.Dir(g.configPath),
		log:   log,
		creds: creds,
	}, nil
}

func newLogger(w io.Writer, level, override string) (*logrus.Logger, error) {
	if override != "" {
		level = override
	}
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return log, nil
}

func (rt *runtime) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(rt.dir, p)
}

func (rt *runtime) client() *budgetapi.Client {
	return budgetapi.New(budgetapi.Options{
		BaseURL:     rt.cfg.API.BaseURL,
		UploadURL:   rt.cfg.API.UploadURL,
		ImportEmail: rt.cfg.API.ImportEmail,
		Identity: budgetapi.Identity{
			Flavor:   rt.cfg.Client.Flavor,
			Platform: rt.cfg.Client.Platform,
			Version:  rt.cfg.Client.Version,
		},
		Logger: rt.log,
	})
}

func (rt *runtime) importer(incremental bool, account string) *importer.Importer {
	return importer.New(rt.client(), importer.Options{
		Incremental:    incremental,
		AccountID:      account,
		CutoffPolicy:   importer.CutoffPolicy(rt.cfg.Import.CutoffPolicy),
		RelistAttempts: rt.cfg.Import.RelistAttempts,
		RelistInterval: rt.cfg.Import.RelistInterval,
		Logger:         rt.log,
	})
}

// record appends the run to the history log. A failure to write history
// is reported but never fails the run.
func (rt *runtime) record(file string, res importer.Result, runErr error) {
	e := history.Entry{
		Timestamp: nowFunc(),
		RunID:     res.RunID,
		File:      file,
		Outcome:   res.Outcome,
		ImportID:  res.ImportID,
		Rows:      res.Totals.Rows,
		Net:       res.Totals.Net(),
	}
	if runErr != nil {
		e.Error = runErr.Error()
	}
	if err := history.Append(rt.path(rt.cfg.History.Path), []history.Entry{e}); err != nil {
		rt.log.WithError(err).Warn("failed to write import history")
	}
}
