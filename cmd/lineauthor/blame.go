package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/wahlandcase/lineauthor/internal/git"
	"github.com/wahlandcase/lineauthor/internal/lineauthor"
	"github.com/wahlandcase/lineauthor/internal/logging"
	"github.com/wahlandcase/lineauthor/internal/models"

	"github.com/spf13/cobra"
)

func newBlameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blame <file>",
		Short: "Print a file with its line author gutter",
		Args:  cobra.ExactArgs(1),
		RunE:  runBlame,
	}
	cmd.Flags().StringVar(&revFlag, "rev", "", "Annotate the file as of this commit instead of the working copy")
	return cmd
}

func runBlame(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	logger := logging.New(cmd.ErrOrStderr())
	s, err := openSession(args[0], logger)
	if err != nil {
		return err
	}
	defer s.Close()

	lines, contents, err := s.sourceLines(ctx, revFlag)
	if err != nil {
		return err
	}

	snap, err := s.engine.ComputeAt(ctx, s.file, revFlag, s.settings, contents)
	if err != nil {
		return err
	}
	commits, err := s.engine.Commits(ctx, snap)
	if err != nil {
		return err
	}
	anns := lineauthor.Annotate(snap, commits, s.settings, time.Now())
	return printAnnotated(cmd.OutOrStdout(), s, lines, anns)
}

// sourceLines returns the text to annotate: the working copy, or the file
// at rev. contents is what the engine should blame in place of the commit.
func (s *session) sourceLines(ctx context.Context, rev string) ([]string, []byte, error) {
	if rev != "" {
		rel, err := git.RelPath(s.repo.Root, s.file)
		if err != nil {
			return nil, nil, err
		}
		lines, err := s.backend.FileLines(ctx, rev, rel)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s at %s: %w", rel, models.ShortHash(rev), err)
		}
		return lines, nil, nil
	}
	data, err := os.ReadFile(s.file)
	if err != nil {
		return nil, nil, err
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil, data, nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines, data, nil
}

func printAnnotated(w io.Writer, s *session, lines []string, anns []models.Annotation) error {
	g := s.gutter(w)
	width := g.Width(anns)
	for i, line := range lines {
		var ann *models.Annotation
		if i < len(anns) && anns[i].LineNumber == i+1 {
			ann = &anns[i]
		}
		if _, err := fmt.Fprintln(w, g.Line(ann, width, line)); err != nil {
			return err
		}
	}
	return nil
}
