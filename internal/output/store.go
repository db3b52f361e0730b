package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/codefionn/tldrbot/internal/consts"
	"github.com/codefionn/tldrbot/internal/logger"
)

// DateLayout is the date stamp used in summary filenames.
const DateLayout = "20060102"

// ErrNoSummaries is returned by Read when no file was named and none exist.
var ErrNoSummaries = errors.New("no summaries found")

// Store persists summary documents in a single directory.
type Store struct {
	dir string
	now func() time.Time
	log *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for today's date.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store rooted at dir. The directory is created on first save.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir: dir,
		now: time.Now,
		log: logger.Global().WithPrefix("output"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// BuildFilename returns "{prefix}_{date}.md". An empty date means today in
// local time.
func BuildFilename(prefix, date string) string {
	if date == "" {
		date = time.Now().Format(DateLayout)
	}
	return fmt.Sprintf("%s_%s.md", prefix, date)
}

// Filename is BuildFilename for today according to the store's clock.
func (s *Store) Filename(prefix string) string {
	return BuildFilename(prefix, s.now().Format(DateLayout))
}

// Save writes content to filename inside the output directory, replacing any
// existing file, and returns the full path.
func (s *Store) Save(content, filename string) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.log.Error("failed to create output directory %s: %v", s.dir, err)
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.dir, filepath.Base(filename))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		s.log.Error("failed to save %s: %v", path, err)
		return "", fmt.Errorf("failed to save summary: %w", err)
	}

	s.log.Info("Saved: %s", path)
	return path, nil
}

// List returns the files in the output directory matching pattern, sorted
// lexicographically. An empty pattern lists the canned summaries.
func (s *Store) List(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = consts.DefaultListPattern
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	files := matches[:0]
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Latest returns the last file of the default listing.
func (s *Store) Latest() (string, bool, error) {
	files, err := s.List("")
	if err != nil {
		return "", false, err
	}
	if len(files) == 0 {
		return "", false, nil
	}
	return files[len(files)-1], true, nil
}

// Read returns the content of a summary. Bare names are resolved inside the
// output directory and an empty name means the latest summary.
func (s *Store) Read(name string) (string, string, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read summary: %w", err)
	}
	return string(data), path, nil
}

// Resolve maps a user supplied name to a path.
func (s *Store) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		latest, ok, err := s.Latest()
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrNoSummaries
		}
		return latest, nil
	}
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		return name, nil
	}
	return filepath.Join(s.dir, name), nil
}
