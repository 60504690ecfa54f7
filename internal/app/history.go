package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const (
	historyMaxAge  = 30 * 24 * time.Hour
	historyMaxSize = 20
)

// historyEntry is one recently viewed file
type historyEntry struct {
	Path     string    `json:"path"`
	Root     string    `json:"root"`
	ViewedAt time.Time `json:"viewed_at"`
}

// HistoryPath is where recently viewed files are remembered
func HistoryPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "lineauthor", "recent.json"), nil
}

// loadHistory reads the recent files list, dropping entries that are too
// old or whose file is gone
func loadHistory(path string, now time.Time) []historyEntry {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var entries []historyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}

	cutoff := now.Add(-historyMaxAge)
	var valid []historyEntry
	for _, e := range entries {
		if !e.ViewedAt.After(cutoff) {
			continue
		}
		if _, err := os.Stat(e.Path); err != nil {
			continue
		}
		valid = append(valid, e)
	}

	// Rewrite file if we pruned anything
	if len(valid) != len(entries) {
		saveHistory(path, valid)
	}
	return valid
}

// recordView moves file to the front of entries
func recordView(entries []historyEntry, file, root string, now time.Time) []historyEntry {
	out := []historyEntry{{Path: file, Root: root, ViewedAt: now}}
	for _, e := range entries {
		if e.Path != file {
			out = append(out, e)
		}
	}
	if len(out) > historyMaxSize {
		out = out[:historyMaxSize]
	}
	return out
}

// inRepo returns the entries that belong to the repository at root
func inRepo(entries []historyEntry, root string) []historyEntry {
	var out []historyEntry
	for _, e := range entries {
		if e.Root == root {
			out = append(out, e)
		}
	}
	return out
}

func saveHistory(path string, entries []historyEntry) {
	if path == "" {
		return
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(path), 0755)
	_ = os.WriteFile(path, data, 0644)
}
