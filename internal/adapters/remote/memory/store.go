// Package memory provides an in-process RemoteStore for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/SscSPs/kiosc_finance_app/internal/apperrors"
	portsrepo "github.com/SscSPs/kiosc_finance_app/internal/core/ports/repositories"
)

// DriverName identifies this driver in configuration.
const DriverName = "memory"

type object struct {
	name     string
	content  []byte
	revision string
	modified time.Time
	message  string
}

// Store keeps files in a map keyed by lower-cased name.
type Store struct {
	mu       sync.RWMutex
	objects  map[string]object
	seen     map[string]string
	sequence int
}

var _ portsrepo.RemoteStore = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{objects: make(map[string]object), seen: make(map[string]string)}
}

// Seed places a file without revision checks, as if written by another client.
func (s *Store) Seed(filename string, content []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(filename, content, "seed")
}

// LastMessage returns the commit message of the latest write to filename.
func (s *Store) LastMessage(filename string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[strings.ToLower(filename)].message
}

// Driver implements RemoteStore.
func (s *Store) Driver() string { return DriverName }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// ListFiles implements RemoteStore.
func (s *Store) ListFiles(context.Context) ([]portsrepo.RemoteFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := make([]portsrepo.RemoteFile, 0, len(s.objects))
	for _, obj := range s.objects {
		files = append(files, portsrepo.RemoteFile{
			Name:       obj.name,
			Path:       obj.name,
			Size:       int64(len(obj.content)),
			Revision:   obj.revision,
			ModifiedAt: obj.modified,
		})
	}
	return files, nil
}

// FileExists implements RemoteStore.
func (s *Store) FileExists(_ context.Context, filename string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[strings.ToLower(filename)]
	return ok, nil
}

// FetchFile implements RemoteStore.
func (s *Store) FetchFile(_ context.Context, filename string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[strings.ToLower(filename)]
	if !ok {
		return nil, apperrors.NewRemoteError(apperrors.ErrFileNotFound, "fetch", filename, 0, nil)
	}
	s.seen[strings.ToLower(filename)] = obj.revision
	return append([]byte(nil), obj.content...), nil
}

// PutFile implements RemoteStore with the same compare-and-swap rule as the hosted drivers.
func (s *Store) PutFile(_ context.Context, filename string, content []byte, commitMessage string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(filename)
	if current, ok := s.objects[key]; ok {
		if seen, known := s.seen[key]; known && seen != current.revision {
			return "", apperrors.NewRemoteError(apperrors.ErrConflict, "put", filename, 0, nil)
		}
	}
	rev := s.write(filename, content, commitMessage)
	s.seen[key] = rev
	return rev, nil
}

func (s *Store) write(filename string, content []byte, message string) string {
	s.sequence++
	key := strings.ToLower(filename)
	name := filename
	if existing, ok := s.objects[key]; ok {
		name = existing.name
	}
	rev := fmt.Sprintf("r%d", s.sequence)
	s.objects[key] = object{
		name:     name,
		content:  append([]byte(nil), content...),
		revision: rev,
		modified: time.Now().UTC(),
		message:  message,
	}
	return rev
}
