package git

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/wahlandcase/lineauthor/internal/models"
)

// parsePorcelain reads `git blame --porcelain` output. Lines are returned in
// final-file order; author headers (emitted once per commit) are collected
// into the commit map.
func parsePorcelain(r io.Reader) (BlameResult, error) {
	result := BlameResult{Commits: make(map[string]models.CommitInfo)}
	byLine := make(map[int]models.LineRecord)
	headers := make(map[string]*porcelainCommit)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var current *porcelainCommit
	var currentLine int
	maxLine := 0

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "\t") {
			if current == nil {
				return BlameResult{}, fmt.Errorf("porcelain: content line before header")
			}
			byLine[currentLine] = models.NewLineRecord(currentLine, current.id, strings.TrimSuffix(line[1:], "\r"))
			continue
		}

		fields := strings.Fields(line)
		if len(fields) >= 3 && isHexID(fields[0]) {
			final, err := strconv.Atoi(fields[2])
			if err != nil {
				return BlameResult{}, fmt.Errorf("porcelain: bad line number in %q", line)
			}
			id := fields[0]
			if headers[id] == nil {
				headers[id] = &porcelainCommit{id: id}
			}
			current = headers[id]
			currentLine = final
			if final > maxLine {
				maxLine = final
			}
			continue
		}

		if current == nil {
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		switch key {
		case "author":
			current.name = value
		case "author-mail":
			current.email = strings.TrimSuffix(strings.TrimPrefix(value, "<"), ">")
		case "author-time":
			current.unix, _ = strconv.ParseInt(value, 10, 64)
			current.hasTime = true
		case "author-tz":
			current.tz = value
		}
	}
	if err := scanner.Err(); err != nil {
		return BlameResult{}, err
	}

	for n := 1; n <= maxLine; n++ {
		rec, ok := byLine[n]
		if !ok {
			return BlameResult{}, fmt.Errorf("porcelain: missing line %d of %d", n, maxLine)
		}
		result.Lines = append(result.Lines, rec)
	}
	for id, h := range headers {
		if h.hasTime {
			result.Commits[id] = models.NewCommitInfo(id, h.name, h.email, time.Unix(h.unix, 0).In(parseTZ(h.tz)))
		}
	}
	return result, nil
}

type porcelainCommit struct {
	id      string
	name    string
	email   string
	unix    int64
	tz      string
	hasTime bool
}

func isHexID(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

// parseTZ turns git's "+0130" into a fixed zone
func parseTZ(tz string) *time.Location {
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return time.UTC
	}
	hours, err1 := strconv.Atoi(tz[1:3])
	mins, err2 := strconv.Atoi(tz[3:5])
	if err1 != nil || err2 != nil {
		return time.UTC
	}
	offset := hours*3600 + mins*60
	if tz[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(tz, offset)
}
