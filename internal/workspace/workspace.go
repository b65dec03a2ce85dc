// Package workspace manages the on-disk diagram store.
//
// Every diagram lives under one directory keyed by its ID:
// {id}.mmd holds the source, {id}.json the render options, and
// {id}.svg or {id}.png the rendered artifact.
package workspace

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/easel-dev/easel/internal/errors"
	"github.com/easel-dev/easel/internal/render"
)

const (
	sourceExt  = ".mmd"
	optionsExt = ".json"
)

// idPattern is the only shape a diagram ID may take. It is checked before
// any filesystem or map access so an ID can never carry a path.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidID reports whether id is a well-formed diagram ID.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// ValidateID returns an error describing why id is rejected, or nil.
func ValidateID(id string) error {
	if ValidID(id) {
		return nil
	}
	return errors.New("E001").
		WithDetail("Got " + strconv.Quote(id) + ", want only letters, digits, hyphens, and underscores")
}

// Diagram is one workspace entry, as reported by List.
type Diagram struct {
	// ID is the diagram identifier.
	ID string `json:"id"`

	// UpdatedAt is the newest modification time across the diagram's files.
	UpdatedAt time.Time `json:"updatedAt"`

	// HasArtifact reports whether a rendered artifact exists.
	HasArtifact bool `json:"hasArtifact"`

	// Format is the artifact format when HasArtifact is true.
	Format string `json:"format,omitempty"`
}

// Store manages diagram sources, options, and rendered artifacts.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New opens (creating if needed) the workspace at dir.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.New("E041").
			WithDetail("Cannot create workspace at " + dir).
			Wrap(err)
	}
	return &Store{
		dir:    dir,
		logger: logger.With("component", "workspace"),
	}, nil
}

// Dir returns the workspace directory.
func (s *Store) Dir() string {
	return s.dir
}

// SourcePath returns the path of the diagram source file.
func (s *Store) SourcePath(id string) string {
	return filepath.Join(s.dir, id+sourceExt)
}

// OptionsPath returns the path of the per-diagram render options file.
func (s *Store) OptionsPath(id string) string {
	return filepath.Join(s.dir, id+optionsExt)
}

// ArtifactPath returns the path of the rendered artifact for a format.
func (s *Store) ArtifactPath(id, format string) string {
	return filepath.Join(s.dir, id+"."+format)
}

// Exists reports whether a source exists for id.
func (s *Store) Exists(id string) bool {
	if !ValidID(id) {
		return false
	}
	_, err := os.Stat(s.SourcePath(id))
	return err == nil
}

// SaveSource writes the diagram source.
func (s *Store) SaveSource(id string, source []byte) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := os.WriteFile(s.SourcePath(id), source, 0644); err != nil {
		return errors.New("E041").Wrap(err)
	}
	return nil
}

// LoadSource reads the diagram source.
func (s *Store) LoadSource(id string) ([]byte, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.SourcePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E040").WithDetail("No source for " + id)
		}
		return nil, errors.New("E041").Wrap(err)
	}
	return data, nil
}

// SaveOptions persists the render options used for a diagram so that
// exports and re-renders reproduce the same output.
func (s *Store) SaveOptions(id string, opts render.Options) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	data, err := json.MarshalIndent(opts, "", "  ")
	if err != nil {
		return errors.New("E041").Wrap(err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(s.OptionsPath(id), data, 0644); err != nil {
		return errors.New("E041").Wrap(err)
	}
	return nil
}

// LoadOptions reads the persisted render options. A missing options file
// is not an error: defaults apply.
func (s *Store) LoadOptions(id string) (render.Options, error) {
	if err := ValidateID(id); err != nil {
		return render.Options{}, err
	}
	data, err := os.ReadFile(s.OptionsPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return render.Options{}.Normalize(), nil
		}
		return render.Options{}, errors.New("E041").Wrap(err)
	}
	var opts render.Options
	if err := json.Unmarshal(data, &opts); err != nil {
		return render.Options{}, errors.New("E041").
			WithDetail("Corrupt options file for " + id).
			Wrap(err)
	}
	return opts.Normalize(), nil
}

// SaveArtifact writes a rendered artifact.
func (s *Store) SaveArtifact(id, format string, data []byte) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := os.WriteFile(s.ArtifactPath(id, format), data, 0644); err != nil {
		return errors.New("E041").Wrap(err)
	}
	return nil
}

// Artifact returns the path and format of the diagram's rendered artifact,
// preferring svg over png.
func (s *Store) Artifact(id string) (string, string, error) {
	if err := ValidateID(id); err != nil {
		return "", "", err
	}
	for _, format := range []string{render.FormatSVG, render.FormatPNG} {
		path := s.ArtifactPath(id, format)
		if _, err := os.Stat(path); err == nil {
			return path, format, nil
		}
	}
	return "", "", errors.New("E042").WithDetail("No rendered artifact for " + id)
}

// Remove deletes every file belonging to the diagram.
func (s *Store) Remove(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	paths := []string{
		s.SourcePath(id),
		s.OptionsPath(id),
		s.ArtifactPath(id, render.FormatSVG),
		s.ArtifactPath(id, render.FormatPNG),
	}
	var firstErr error
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = errors.New("E041").Wrap(err)
			}
		}
	}
	return firstErr
}

// List returns every diagram in the workspace, newest first.
func (s *Store) List() ([]Diagram, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.New("E041").Wrap(err)
	}

	diagrams := make([]Diagram, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sourceExt) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), sourceExt)
		if !ValidID(id) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		d := Diagram{ID: id, UpdatedAt: info.ModTime()}

		if path, format, err := s.Artifact(id); err == nil {
			d.HasArtifact = true
			d.Format = format
			if st, err := os.Stat(path); err == nil && st.ModTime().After(d.UpdatedAt) {
				d.UpdatedAt = st.ModTime()
			}
		}
		diagrams = append(diagrams, d)
	}

	sort.Slice(diagrams, func(i, j int) bool {
		if !diagrams[i].UpdatedAt.Equal(diagrams[j].UpdatedAt) {
			return diagrams[i].UpdatedAt.After(diagrams[j].UpdatedAt)
		}
		return diagrams[i].ID < diagrams[j].ID
	})

	return diagrams, nil
}

// Sweep removes rendered artifacts older than maxAge. Individual failures
// are logged and skipped; the sweep keeps going.
func (s *Store) Sweep(maxAge time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("sweep skipped", "error", err)
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, "."+render.FormatSVG) && !strings.HasSuffix(name, "."+render.FormatPNG) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil {
			s.logger.Warn("sweep: cannot remove artifact",
				"path", path,
				"error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("swept stale artifacts",
			"removed", removed,
			"max_age", maxAge)
	}
	return removed
}
