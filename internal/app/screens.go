package app

// Screen represents the current view in the application
type Screen int

const (
	ScreenLoading Screen = iota
	ScreenViewer
	ScreenRecent
	ScreenError
)

func (s Screen) String() string {
	names := []string{
		"Loading",
		"Viewer",
		"Recent",
		"Error",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}
