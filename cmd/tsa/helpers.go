package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"tsa/internal/config"
	"tsa/internal/errors"
	"tsa/internal/paths"
	"tsa/internal/slogutil"
	"tsa/internal/stackup"
	"tsa/internal/storage"
)

// workspace bundles what a command needs: the resolved root, loaded config,
// open database, and the invocation logger.
type workspace struct {
	root   string
	cfg    *config.Config
	db     *storage.DB
	logger *slog.Logger
	closer io.Closer
}

// openWorkspace locates the enclosing .tsa workspace and opens its database.
func openWorkspace() (*workspace, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := paths.FindWorkspaceRoot(cwd)
	if err != nil {
		return nil, fmt.Errorf("no %s workspace found in %s or any parent; run 'tsa init' first",
			paths.DataDirName, cwd)
	}

	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, err
	}

	logger, closer := newWorkspaceLogger(root, cfg)

	db, err := storage.Open(root, logger)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, errors.NewTsaError(errors.StoreCorrupt,
			fmt.Sprintf("cannot open project store at %s", paths.GetDBPath(root)), err)
	}

	return &workspace{
		root:   root,
		cfg:    cfg,
		db:     db,
		logger: logger,
		closer: closer,
	}, nil
}

// mustOpenWorkspace opens the workspace or exits on error.
func mustOpenWorkspace() *workspace {
	ws, err := openWorkspace()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return ws
}

func (w *workspace) Close() {
	if w.db != nil {
		_ = w.db.Close()
	}
	if w.closer != nil {
		_ = w.closer.Close()
	}
}

// newWorkspaceLogger tees command logs to stderr at the CLI level and to the
// workspace log file at the configured level.
func newWorkspaceLogger(root string, cfg *config.Config) (*slog.Logger, io.Closer) {
	cliLevel := resolveLogLevel(cfg)
	stderrHandler := slogutil.NewTSAHandler(os.Stderr, &slog.HandlerOptions{Level: cliLevel})

	fileLevel := slogutil.LevelFromString(cfg.Logging.Level)
	fileLogger, closer := slogutil.OpenWorkspaceLogger(root, cfg, fileLevel)

	return slogutil.NewTeeLogger(stderrHandler, fileLogger.Handler()), closer
}

// findComponent resolves a component reference by name, then by ID.
func (w *workspace) findComponent(ref string) (*stackup.Component, error) {
	repo := storage.NewComponentRepository(w.db)

	c, err := repo.GetByName(ref)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c, err = repo.GetByID(ref)
		if err != nil {
			return nil, err
		}
	}
	if c == nil {
		return nil, errors.NewTsaError(errors.FeatureNotFound,
			fmt.Sprintf("component %q not found", ref), nil)
	}
	return c, nil
}

// findAnalysis resolves an analysis reference by name, then by ID.
func (w *workspace) findAnalysis(ref string) (*stackup.Analysis, error) {
	repo := storage.NewAnalysisRepository(w.db)

	a, err := repo.GetByName(ref)
	if err != nil {
		return nil, err
	}
	if a == nil {
		a, err = repo.GetByID(ref)
		if err != nil {
			return nil, err
		}
	}
	if a == nil {
		return nil, errors.NewTsaError(errors.AnalysisNotFound,
			fmt.Sprintf("analysis %q not found", ref), nil)
	}
	return a, nil
}

// fail prints the error and exits.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
