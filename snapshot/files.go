package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aluiziolira/steamfetch/models"
)

// FileStore reads and writes bundles as pretty-printed JSON files.
type FileStore struct {
	dir    string
	layout Layout
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string, layout Layout) *FileStore {
	return &FileStore{dir: dir, layout: layout}
}

// Path returns the absolute location of one bundle file.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Layout returns the file names used by the store.
func (s *FileStore) Layout() Layout {
	return s.layout
}

// Load reads the list and detail files. Absent files are empty collections.
func (s *FileStore) Load() (*Bundle, error) {
	b := &Bundle{
		Summaries: []models.GameSummary{},
		Details:   []models.GameDetail{},
	}
	if _, err := ReadJSON(s.Path(s.layout.List), &b.Summaries); err != nil {
		return nil, fmt.Errorf("load summaries: %w", err)
	}
	if _, err := ReadJSON(s.Path(s.layout.Details), &b.Details); err != nil {
		return nil, fmt.Errorf("load details: %w", err)
	}
	if b.Summaries == nil {
		b.Summaries = []models.GameSummary{}
	}
	if b.Details == nil {
		b.Details = []models.GameDetail{}
	}
	slog.Debug("snapshot loaded",
		slog.String("dir", s.dir),
		slog.Int("summaries", len(b.Summaries)),
		slog.Int("details", len(b.Details)),
	)
	return b, nil
}

// LoadIndex reads the search index file. An absent file is an empty index.
func (s *FileStore) LoadIndex() ([]models.SearchEntry, error) {
	index := []models.SearchEntry{}
	if _, err := ReadJSON(s.Path(s.layout.Index), &index); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	return index, nil
}

// LoadMetadata reads the metadata file; found is false when it does not exist.
func (s *FileStore) LoadMetadata() (models.Metadata, bool, error) {
	var meta models.Metadata
	found, err := ReadJSON(s.Path(s.layout.Metadata), &meta)
	if err != nil {
		return models.Metadata{}, false, fmt.Errorf("load metadata: %w", err)
	}
	return meta, found, nil
}

// WriteBundle writes list, details and index, then metadata last, each atomically.
// A reader that sees the new metadata therefore sees the new data files.
func (s *FileStore) WriteBundle(ctx context.Context, b *Bundle) error {
	files := []struct {
		name string
		v    any
	}{
		{s.layout.List, b.Summaries},
		{s.layout.Details, b.Details},
		{s.layout.Index, b.Index},
		{s.layout.Metadata, b.Metadata},
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := WriteJSONAtomic(s.Path(f.name), f.v); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	slog.Info("snapshot written",
		slog.String("dir", s.dir),
		slog.String("release", b.Metadata.ReleaseID),
		slog.Int("games", len(b.Summaries)),
		slog.Int("details", len(b.Details)),
	)
	return nil
}

// Validate re-reads the bundle and checks the metadata counts match the data files.
func (s *FileStore) Validate() error {
	b, err := s.Load()
	if err != nil {
		return err
	}
	meta, found, err := s.LoadMetadata()
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("metadata file %s is missing", s.layout.Metadata)
	}
	if meta.TotalGames != len(b.Summaries) {
		return fmt.Errorf("metadata reports %d games, list has %d", meta.TotalGames, len(b.Summaries))
	}
	if meta.TotalDetails != len(b.Details) {
		return fmt.Errorf("metadata reports %d details, file has %d", meta.TotalDetails, len(b.Details))
	}
	return nil
}

// Close is a no-op; every write is self-contained.
func (s *FileStore) Close() error {
	return nil
}
