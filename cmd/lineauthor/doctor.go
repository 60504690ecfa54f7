package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/wahlandcase/lineauthor/internal/config"
	"github.com/wahlandcase/lineauthor/internal/git"
	"github.com/wahlandcase/lineauthor/internal/logging"
	"github.com/wahlandcase/lineauthor/internal/models"
	"github.com/wahlandcase/lineauthor/internal/ui"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor [dir]",
		Short: "Check that config, repository, git and cache are usable",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDoctor,
	}
}

// versioned backends can report the git they run
type versioned interface {
	Version(ctx context.Context) (string, error)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	out := cmd.OutOrStdout()
	r := newGutter(out, false).Renderer()
	fmt.Fprintln(out, ui.RenderBanner(r))
	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.SectionHeader(r, "CHECKS", ui.ColorCyan))

	failed := 0
	check := func(ok bool, label, detail string) {
		if !ok {
			failed++
		}
		fmt.Fprintln(out, ui.CheckLine(r, ok, label, detail))
	}

	cfgPath, _ := config.Path()
	cfg, err := config.Load()
	if err != nil {
		check(false, "config", err.Error())
		cfg = config.DefaultConfig()
	} else {
		check(true, "config", cfgPath)
	}

	logPath, _ := logging.Path()
	check(true, "logging", fmt.Sprintf("level %s, viewer log %s", logging.Level(), logPath))

	backend, repo, err := git.Open(git.Options{
		Kind:      git.Kind(cfg.Git.Backend),
		Dir:       dir,
		Binary:    cfg.Git.Binary,
		Env:       cfg.Git.Env,
		ExtraPath: cfg.Git.ExtraPath,
		Logger:    log.New(cmd.ErrOrStderr()),
	})
	switch {
	case repo.Root == "":
		check(false, "repository", err.Error())
	default:
		check(true, "repository", fmt.Sprintf("%s (%s)", repo.Root, repo.DisplayBranch()))
	}

	if backend == nil {
		if repo.Root != "" {
			check(false, "git backend", err.Error())
		}
	} else {
		detail := string(git.KindCLI)
		if cfg.Git.Backend != "" {
			detail = cfg.Git.Backend
		}
		var versionErr error
		if v, ok := backend.(versioned); ok {
			var version string
			if version, versionErr = v.Version(ctx); versionErr == nil {
				detail += " " + version
			} else {
				detail = versionErr.Error()
			}
		}
		check(versionErr == nil, "git backend", detail)

		head, err := backend.Head(ctx)
		if err != nil {
			check(false, "HEAD", err.Error())
		} else {
			check(true, "HEAD", models.ShortHash(head))
		}
	}

	if cfg.Cache.Persist {
		db, err := openStore(cfg)
		if err != nil {
			check(false, "commit cache", err.Error())
		} else {
			n, err := db.CountCommits()
			size := ""
			if info, statErr := os.Stat(db.Path()); statErr == nil {
				size = ", " + humanize.Bytes(uint64(info.Size()))
			}
			_ = db.Close()
			check(err == nil, "commit cache", fmt.Sprintf("%s commits%s", humanize.Comma(int64(n)), size))
		}
	} else {
		check(true, "commit cache", "memory only")
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}
