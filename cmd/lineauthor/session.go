package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wahlandcase/lineauthor/internal/commitcache"
	"github.com/wahlandcase/lineauthor/internal/config"
	"github.com/wahlandcase/lineauthor/internal/git"
	"github.com/wahlandcase/lineauthor/internal/lineauthor"
	"github.com/wahlandcase/lineauthor/internal/models"
	"github.com/wahlandcase/lineauthor/internal/store"
	"github.com/wahlandcase/lineauthor/internal/ui"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// session holds everything a command needs to annotate one file
type session struct {
	cfg      *config.Config
	settings config.Settings
	logger   *log.Logger
	backend  git.Backend
	repo     models.RepoInfo
	engine   *lineauthor.Engine
	db       *store.DB
	// file is the absolute path of the annotated file
	file string
}

// openSession loads the config, finds the repository containing file and
// wires the engine
func openSession(file string, logger *log.Logger) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	settings := cfg.Settings()
	if followFlag != "" {
		mode, err := models.ParseMovementMode(followFlag)
		if err != nil {
			return nil, err
		}
		settings.Movement = mode
	}

	if !filepath.IsAbs(file) && cfg.BasePath() != "" {
		if _, err := os.Stat(file); err != nil {
			file = filepath.Join(cfg.BasePath(), file)
		}
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}

	backend, repo, err := git.Open(git.Options{
		Kind:      git.Kind(cfg.Git.Backend),
		Dir:       filepath.Dir(abs),
		Binary:    cfg.Git.Binary,
		Env:       cfg.Git.Env,
		ExtraPath: cfg.Git.ExtraPath,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:      cfg,
		settings: settings,
		logger:   logger,
		backend:  backend,
		repo:     repo,
		file:     abs,
	}

	var disk commitcache.Persistent
	if cfg.Cache.Persist {
		if db, err := openStore(cfg); err != nil {
			// Another viewer may hold the database; run from memory
			logger.Warn("commit cache not persisted", "err", err)
		} else {
			s.db = db
			disk = db
		}
	}
	commits, err := commitcache.New(backend, cfg.Cache.Size, disk, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.engine = lineauthor.NewEngine(backend, repo, commits, logger)
	return s, nil
}

func openStore(cfg *config.Config) (*store.DB, error) {
	path := cfg.CachePath()
	if path == "" {
		var err error
		if path, err = store.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return store.Open(path)
}

// Close releases the commit database
func (s *session) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// gutter returns a gutter renderer for w honoring --no-color
func (s *session) gutter(w io.Writer) *ui.Gutter {
	return newGutter(w, s.settings.ShowCommitHash)
}

func newGutter(w io.Writer, showHash bool) *ui.Gutter {
	profile := termenv.Ascii
	if !noColorFlag && os.Getenv("NO_COLOR") == "" {
		profile = termenv.NewOutput(w).EnvColorProfile()
	}
	return ui.NewGutter(w, profile, showHash)
}
