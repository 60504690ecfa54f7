package app

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/wahlandcase/lineauthor/internal/attribution"
	"github.com/wahlandcase/lineauthor/internal/config"
	"github.com/wahlandcase/lineauthor/internal/lineauthor"
	"github.com/wahlandcase/lineauthor/internal/models"

	tea "github.com/charmbracelet/bubbletea"
)

// annotationTimeout bounds one background annotation request
const annotationTimeout = 2 * time.Minute

// Message types for async operations

type fileLoadedResult struct {
	path string
	data []byte
	err  error
}

type annotationsLoadedResult struct {
	path string
	anns []models.Annotation
	err  error
}

// snapshotUpdatedMsg is sent whenever the provider retains a new snapshot
type snapshotUpdatedMsg struct {
	update attribution.Update
}

// fileEditedMsg is sent when the watcher sees the file saved
type fileEditedMsg struct {
	path string
}

type configSavedResult struct {
	err error
}

type configEditedResult struct {
	cfg *config.Config
	err error
}

type trackResult struct {
	err error
}

// Commands

func loadFileCmd(path string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		return fileLoadedResult{path: path, data: data, err: err}
	}
}

// annotationsCmd waits for the attribution of path and renders it with the
// current settings
func annotationsCmd(p *lineauthor.Provider, path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), annotationTimeout)
		defer cancel()
		anns, err := p.Annotations(ctx, path)
		return annotationsLoadedResult{path: path, anns: anns, err: err}
	}
}

// annotateCmd renders a snapshot that just arrived
func annotateCmd(p *lineauthor.Provider, snap *models.FileAttributionSnapshot) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), annotationTimeout)
		defer cancel()
		anns, err := p.Annotate(ctx, snap)
		return annotationsLoadedResult{path: snap.FilePath, anns: anns, err: err}
	}
}

// listenForUpdates creates a subscription that listens to snapshot updates
func listenForUpdates(ch <-chan attribution.Update) tea.Cmd {
	return func() tea.Msg {
		if ch == nil {
			return nil
		}
		u, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotUpdatedMsg{update: u}
	}
}

// listenForEdits creates a subscription that listens to file saves
func listenForEdits(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		if ch == nil {
			return nil
		}
		path, ok := <-ch
		if !ok {
			return nil
		}
		return fileEditedMsg{path: path}
	}
}

func trackCmd(track func(string) error, path string) tea.Cmd {
	return func() tea.Msg {
		return trackResult{err: track(path)}
	}
}

func saveConfigCmd(cfg *config.Config) tea.Cmd {
	return func() tea.Msg {
		return configSavedResult{err: cfg.Save()}
	}
}

// editConfigCmd opens the config file in $EDITOR and reloads it afterwards
func editConfigCmd(cfg *config.Config) tea.Cmd {
	path := cfg.File()
	if path == "" {
		var err error
		if path, err = config.Path(); err != nil {
			return func() tea.Msg { return configEditedResult{err: err} }
		}
	}
	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}
	fields := strings.Fields(editor)
	cmd := exec.Command(fields[0], append(fields[1:], path)...)
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		if err != nil {
			return configEditedResult{err: err}
		}
		next, err := config.LoadFrom(path)
		return configEditedResult{cfg: next, err: err}
	})
}
