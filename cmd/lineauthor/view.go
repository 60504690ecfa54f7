package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wahlandcase/lineauthor/internal/app"
	"github.com/wahlandcase/lineauthor/internal/lineauthor"
	"github.com/wahlandcase/lineauthor/internal/logging"
	"github.com/wahlandcase/lineauthor/internal/watch"

	"github.com/charmbracelet/log"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view <file>",
		Short: "Open the interactive viewer, refreshing as the file and repository change",
		Args:  cobra.ExactArgs(1),
		RunE:  runView,
	}
}

func runView(cmd *cobra.Command, args []string) error {
	// The viewer owns the terminal, so logs go to a file
	logger := log.New(io.Discard)
	if path, err := logging.Path(); err == nil {
		if l, f, err := logging.OpenFile(path); err == nil {
			logger = l
			defer f.Close()
		}
	}

	s, err := openSession(args[0], logger)
	if err != nil {
		return err
	}
	defer s.Close()

	provider := lineauthor.NewProvider(s.engine, s.settings, s.cfg.DebounceDelay(), logger)
	defer provider.Stop()

	watcher, err := watch.New(s.repo.GitDir, watch.DefaultQuiet, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return provider.Watch(gctx, watcher.Changes()) })

	historyPath, _ := app.HistoryPath()
	model := app.New(app.Options{
		Provider:    provider,
		Config:      s.cfg,
		Repo:        s.repo,
		Gutter:      s.gutter(os.Stdout),
		Path:        s.file,
		Edits:       watcher.Edits(),
		Track:       watcher.Track,
		HistoryPath: historyPath,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, runErr := p.Run()

	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("background watcher stopped", "err", err)
	}
	if runErr != nil {
		return fmt.Errorf("error running program: %w", runErr)
	}
	return nil
}
