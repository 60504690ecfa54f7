// Package app is the interactive line author viewer: a scrolling file view
// with an age-colored authorship gutter that refreshes as the file or the
// repository changes.
package app

import (
	"path/filepath"
	"time"

	"github.com/wahlandcase/lineauthor/internal/attribution"
	"github.com/wahlandcase/lineauthor/internal/config"
	"github.com/wahlandcase/lineauthor/internal/lineauthor"
	"github.com/wahlandcase/lineauthor/internal/models"
	"github.com/wahlandcase/lineauthor/internal/ui"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Options wires the viewer to its collaborators
type Options struct {
	Provider *lineauthor.Provider
	Config   *config.Config
	Repo     models.RepoInfo
	Gutter   *ui.Gutter
	// Path is the absolute path of the file to show
	Path string
	// Edits reports saves of tracked files; may be nil
	Edits <-chan string
	// Track, when set, asks the watcher to report saves of a file
	Track func(path string) error
	// HistoryPath stores recently viewed files; "" disables it
	HistoryPath string
}

// Model is the main application state
type Model struct {
	provider *lineauthor.Provider
	cfg      *config.Config
	repo     models.RepoInfo
	gutter   *ui.Gutter
	track    func(path string) error

	updates     <-chan attribution.Update
	unsubscribe func()
	edits       <-chan string

	// Navigation
	screen     Screen
	shouldQuit bool

	// File state
	path    string
	relPath string
	lines   []string
	opened  bool
	anns    []models.Annotation
	loading bool

	// UI state
	viewport      viewport.Model
	ready         bool
	errorMessage  string
	statusMessage string
	spinnerFrame  int

	// Recently viewed files (survives restarts)
	historyPath  string
	history      []historyEntry
	historyIndex int

	now func() time.Time

	// Window size
	width  int
	height int
}

// New creates a new application model
func New(opts Options) Model {
	updates, unsubscribe := opts.Provider.Subscribe()
	m := Model{
		provider:    opts.Provider,
		cfg:         opts.Config,
		repo:        opts.Repo,
		gutter:      opts.Gutter,
		track:       opts.Track,
		updates:     updates,
		unsubscribe: unsubscribe,
		edits:       opts.Edits,
		screen:      ScreenLoading,
		historyPath: opts.HistoryPath,
		now:         time.Now,
		width:       80,
		height:      24,
	}
	m.history = loadHistory(m.historyPath, m.now())
	m.setPath(opts.Path)
	return m
}

func (m *Model) setPath(path string) {
	m.path = path
	m.relPath = path
	if rel, err := filepath.Rel(m.repo.Root, path); err == nil {
		m.relPath = filepath.ToSlash(rel)
	}
	m.lines = nil
	m.anns = nil
	m.opened = false
	m.loading = true
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(),
		loadFileCmd(m.path),
		listenForUpdates(m.updates),
		listenForEdits(m.edits),
	}
	if m.track != nil {
		cmds = append(cmds, trackCmd(m.track, m.path))
	}
	return tea.Batch(cmds...)
}

// Close releases the provider subscription
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// tickMsg is sent on each tick for the spinner
type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(_ time.Time) tea.Msg {
		return tickMsg{}
	})
}
