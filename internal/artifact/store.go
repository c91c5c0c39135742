// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package artifact keeps finished outputs in memory until they are released.
package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/ManuGH/condense/internal/log"
	"github.com/ManuGH/condense/internal/media"
	"github.com/ManuGH/condense/internal/metrics"
)

// ErrNotFound is returned for unknown or released artifacts.
var ErrNotFound = errors.New("artifact not found")

// Artifact describes a stored output. Data is not part of the descriptor.
type Artifact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MediaType string    `json:"media_type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

type entry struct {
	Artifact
	data []byte
}

// Store is an in-memory artifact store. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	bytes   int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Put stores data and returns its descriptor. The store takes ownership of data.
func (s *Store) Put(name, mediaType string, data []byte) Artifact {
	a := Artifact{
		ID:        uuid.NewString(),
		Name:      name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.entries[a.ID] = &entry{Artifact: a, data: data}
	s.bytes += a.Size
	count, total := len(s.entries), s.bytes
	s.mu.Unlock()

	metrics.SetArtifacts(count, total)
	return a
}

// Get returns the descriptor for id.
func (s *Store) Get(id string) (Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return Artifact{}, false
	}
	return e.Artifact, true
}

// Open returns a reader over the artifact bytes, suitable for range requests.
// The reader stays valid after Release.
func (s *Store) Open(id string) (Artifact, io.ReadSeeker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return Artifact{}, nil, ErrNotFound
	}
	return e.Artifact, bytes.NewReader(e.data), nil
}

// Release drops the artifact. Releasing an unknown id is a no-op.
func (s *Store) Release(id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
		s.bytes -= e.Size
	}
	count, total := len(s.entries), s.bytes
	s.mu.Unlock()

	if ok {
		metrics.SetArtifacts(count, total)
	}
	return ok
}

// Len is the number of held artifacts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Bytes is the total size of held artifacts.
func (s *Store) Bytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytes
}

// Export writes the artifact into dir under its name, atomically and durably.
func (s *Store) Export(ctx context.Context, id, dir string) (string, error) {
	a, r, err := s.Open(id)
	if err != nil {
		return "", err
	}
	return WriteFile(ctx, filepath.Join(dir, media.SanitizeName(a.Name)), r)
}

// WriteFile atomically replaces path with the content of r.
func WriteFile(ctx context.Context, path string, r io.Reader) (string, error) {
	logger := log.FromContext(ctx)

	// #nosec G301 -- export directories are operator-chosen
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return "", fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending export file")
		}
	}()

	if _, err := io.Copy(pendingFile, r); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("commit %s: %w", path, err)
	}
	logger.Info().Str(log.FieldPath, path).Msg("artifact exported")
	return path, nil
}
