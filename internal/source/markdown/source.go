// Package markdown reads local calendar events from a directory of markdown
// files with YAML front matter.
package markdown

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

const dateLayout = "2006-01-02"

// frontMatter is the event schema inside a note's YAML header. Date fields
// are strings so notes stay editable by hand; parsing happens here.
type frontMatter struct {
	Title     string `yaml:"title"`
	Date      string `yaml:"date"`
	EndDate   string `yaml:"endDate"`
	AllDay    bool   `yaml:"allDay"`
	StartTime string `yaml:"startTime"`
	EndTime   string `yaml:"endTime"`
	ID        string `yaml:"id"`
	Repeat    string `yaml:"repeat"`
}

// Source reads the complete current event set from one directory on every
// call. It never mutates the underlying files.
type Source struct {
	dir    string
	logger *slog.Logger
}

// NewSource creates an event source over a directory of markdown notes.
func NewSource(dir string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{dir: dir, logger: logger}
}

// Dir returns the watched directory.
func (s *Source) Dir() string { return s.dir }

// ListEvents walks the directory and returns every note that carries a
// date in its front matter. Notes that fail to parse are skipped with a
// warning; a single malformed file never hides the rest of the set.
func (s *Source) ListEvents(ctx context.Context) ([]domain.LocalEvent, error) {
	var events []domain.LocalEvent
	err := filepath.WalkDir(s.dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			// Hidden directories (.git, .obsidian, ...) are not note storage.
			if name := entry.Name(); name != "." && strings.HasPrefix(name, ".") && path != s.dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		event, ok, err := s.parseFile(path)
		if err != nil {
			s.logger.Warn("skipping unparsable note", "path", path, "error", err)
			return nil
		}
		if ok {
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.dir, err)
	}
	return events, nil
}

func (s *Source) parseFile(path string) (domain.LocalEvent, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.LocalEvent{}, false, err
	}

	header, ok := extractFrontMatter(string(raw))
	if !ok {
		return domain.LocalEvent{}, false, nil
	}

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return domain.LocalEvent{}, false, fmt.Errorf("parse front matter: %w", err)
	}
	if fm.Date == "" {
		// Not a calendar note.
		return domain.LocalEvent{}, false, nil
	}

	date, err := time.ParseInLocation(dateLayout, fm.Date, time.Local)
	if err != nil {
		return domain.LocalEvent{}, false, fmt.Errorf("parse date %q: %w", fm.Date, err)
	}

	event := domain.LocalEvent{
		Title:      fm.Title,
		AllDay:     fm.AllDay,
		Date:       date,
		StartTime:  fm.StartTime,
		EndTime:    fm.EndTime,
		ExplicitID: fm.ID,
		SourcePath: path,
		Recurring:  fm.Repeat != "",
	}
	if event.Title == "" {
		event.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if fm.EndDate != "" {
		endDate, err := time.ParseInLocation(dateLayout, fm.EndDate, time.Local)
		if err != nil {
			return domain.LocalEvent{}, false, fmt.Errorf("parse endDate %q: %w", fm.EndDate, err)
		}
		event.EndDate = endDate
	}
	// A note with times but no allDay flag is a timed event; a note with
	// neither times nor the flag is treated as all-day.
	if !event.AllDay && event.StartTime == "" && event.EndTime == "" {
		event.AllDay = true
	}
	return event, true, nil
}

// extractFrontMatter returns the YAML between the leading "---" fences.
func extractFrontMatter(content string) (string, bool) {
	content = strings.TrimPrefix(content, "\uFEFF")
	if !strings.HasPrefix(content, "---") {
		return "", false
	}
	rest := content[3:]
	if len(rest) > 0 && rest[0] == '\r' {
		rest = rest[1:]
	}
	if len(rest) == 0 || rest[0] != '\n' {
		return "", false
	}
	rest = rest[1:]

	for _, fence := range []string{"\n---\n", "\n---\r\n"} {
		if idx := strings.Index(rest, fence); idx >= 0 {
			return rest[:idx], true
		}
	}
	// Fence at end of file without trailing newline.
	if strings.HasSuffix(rest, "\n---") {
		return strings.TrimSuffix(rest, "\n---"), true
	}
	return "", false
}
