package lineauthor

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/wahlandcase/lineauthor/internal/agecolor"
	"github.com/wahlandcase/lineauthor/internal/config"
	"github.com/wahlandcase/lineauthor/internal/dateformat"
	"github.com/wahlandcase/lineauthor/internal/models"
)

// UncommittedHash stands in for the commit hash of working-copy lines
const UncommittedHash = "+++++++"

// Annotate turns a snapshot into one annotation per line. commits must hold
// metadata for every origin commit; missing entries render without author.
func Annotate(snap *models.FileAttributionSnapshot, commits map[string]models.CommitInfo, settings config.Settings, now time.Time) []models.Annotation {
	if snap == nil {
		return nil
	}
	dateOpts := settings.DateOptions()
	out := make([]models.Annotation, len(snap.Attributions))
	for i, a := range snap.Attributions {
		ann := models.Annotation{
			LineNumber: a.LineNumber,
			IsMoved:    a.IsMoved,
		}
		if models.IsUncommitted(a.OriginCommitID) {
			ann.Uncommitted = true
			ann.CommitHashShort = UncommittedHash
			ann.AuthorDisplay = FormatAuthor(models.UncommittedInfo(now).AuthorName, settings.AuthorDisplay)
			ann.Color = settings.ColorNewest
			out[i] = ann
			continue
		}

		ann.CommitHashShort = models.ShortHash(a.OriginCommitID)
		when := a.OriginTime
		if info, ok := commits[a.OriginCommitID]; ok {
			ann.AuthorDisplay = FormatAuthor(info.AuthorName, settings.AuthorDisplay)
			if when.IsZero() {
				when = info.AuthorTime
			}
		}
		ann.FormattedDate = dateformat.Format(when, now, dateOpts)
		ann.Color = agecolor.ColorFor(when, now, settings.MaxAge, settings.ColorNewest, settings.ColorOldest)
		out[i] = ann
	}
	return out
}

// FormatAuthor applies an author display rule to a full name
func FormatAuthor(name string, display models.AuthorDisplay) string {
	name = strings.TrimSpace(name)
	words := strings.Fields(name)
	if len(words) == 0 {
		return ""
	}
	switch display {
	case models.AuthorHide:
		return ""
	case models.AuthorFirstName:
		return words[0]
	case models.AuthorLastName:
		return words[len(words)-1]
	case models.AuthorFull:
		return strings.Join(words, " ")
	default:
		var b strings.Builder
		for _, w := range words {
			r, _ := utf8.DecodeRuneInString(w)
			b.WriteRune(unicode.ToUpper(r))
		}
		return b.String()
	}
}
