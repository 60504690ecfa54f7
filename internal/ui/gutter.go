package ui

import (
	"io"
	"strings"

	"github.com/wahlandcase/lineauthor/internal/agecolor"
	"github.com/wahlandcase/lineauthor/internal/models"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/termenv"
)

// MovedMark flags lines whose origin was found through movement detection
const MovedMark = "↷"

// Gutter renders annotations as fixed-width, age-colored cells
type Gutter struct {
	r        *lipgloss.Renderer
	showHash bool
}

// NewGutter renders for w with the given color profile. termenv.Ascii
// disables color entirely.
func NewGutter(w io.Writer, profile termenv.Profile, showHash bool) *Gutter {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(profile)
	return &Gutter{r: r, showHash: showHash}
}

// Renderer exposes the renderer so other components share the profile
func (g *Gutter) Renderer() *lipgloss.Renderer {
	return g.r
}

// SetShowHash toggles the commit hash column
func (g *Gutter) SetShowHash(show bool) {
	g.showHash = show
}

// Text is the uncolored cell contents of a
func (g *Gutter) Text(a models.Annotation) string {
	var parts []string
	if g.showHash {
		parts = append(parts, a.CommitHashShort)
	}
	if a.AuthorDisplay != "" {
		parts = append(parts, a.AuthorDisplay)
	}
	if a.HasDate() {
		parts = append(parts, a.FormattedDate)
	}
	if a.IsMoved {
		parts = append(parts, MovedMark)
	}
	return strings.Join(parts, " ")
}

// Width is the cell width that fits every annotation in anns
func (g *Gutter) Width(anns []models.Annotation) int {
	w := 0
	for _, a := range anns {
		w = max(w, lipgloss.Width(g.Text(a)))
	}
	return w
}

// Cell renders a padded to width with its age color as background
func (g *Gutter) Cell(a models.Annotation, width int) string {
	style := g.r.NewStyle().
		Width(width).
		MaxWidth(width).
		Background(lipgloss.Color(a.Color.Hex())).
		Foreground(textOn(a.Color))
	if a.Uncommitted {
		style = style.Italic(true)
	}
	return style.Render(g.Text(a))
}

// Blank is an empty cell for lines without an annotation
func (g *Gutter) Blank(width int) string {
	return strings.Repeat(" ", width)
}

// Line renders one gutter cell followed by the source text
func (g *Gutter) Line(a *models.Annotation, width int, text string) string {
	cell := g.Blank(width)
	if a != nil {
		cell = g.Cell(*a, width)
	}
	sep := g.r.NewStyle().Foreground(ColorDarkGray).Render(" │ ")
	return cell + sep + text
}

// Legend renders a gradient from newest to oldest, steps cells wide
func (g *Gutter) Legend(newest, oldest models.RGB, steps int) string {
	if steps < 2 {
		steps = 2
	}
	var b strings.Builder
	b.WriteString(g.r.NewStyle().Foreground(ColorDarkGray).Render("new "))
	for i := 0; i < steps; i++ {
		c := agecolor.Interpolate(newest, oldest, float64(i)/float64(steps-1))
		b.WriteString(g.r.NewStyle().Background(lipgloss.Color(c.Hex())).Render(" "))
	}
	b.WriteString(g.r.NewStyle().Foreground(ColorDarkGray).Render(" old"))
	return b.String()
}

// textOn picks black or white text for legibility on bg
func textOn(bg models.RGB) lipgloss.Color {
	c := colorful.Color{R: float64(bg.R) / 255, G: float64(bg.G) / 255, B: float64(bg.B) / 255}
	l, _, _ := c.Lab()
	if l > 0.6 {
		return ColorBlack
	}
	return ColorWhite
}
