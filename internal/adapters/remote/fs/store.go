// Package fs stores the workbook in a local directory. Intended for
// development and single-host deployments.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/SscSPs/kiosc_finance_app/internal/apperrors"
	portsrepo "github.com/SscSPs/kiosc_finance_app/internal/core/ports/repositories"
	"github.com/SscSPs/kiosc_finance_app/internal/middleware"
)

// DriverName identifies this driver in configuration.
const DriverName = "fs"

// Store is a RemoteStore over a directory. The sha256 of the file content is
// its revision.
type Store struct {
	root      string
	mu        sync.Mutex
	revisions map[string]string
}

var _ portsrepo.RemoteStore = (*Store)(nil)

// New creates the directory if needed and returns a Store rooted at it.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: fs data directory required", apperrors.ErrValidation)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Store{root: root, revisions: make(map[string]string)}, nil
}

// Driver implements RemoteStore.
func (s *Store) Driver() string { return DriverName }

// Ping checks that the directory is still accessible.
func (s *Store) Ping(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return apperrors.NewRemoteError(apperrors.ErrTransport, "ping", s.root, 0, err)
	}
	if !info.IsDir() {
		return apperrors.NewRemoteError(apperrors.ErrTransport, "ping", s.root, 0, errors.New("not a directory"))
	}
	return nil
}

// ListFiles lists spreadsheet files in the directory.
func (s *Store) ListFiles(_ context.Context) ([]portsrepo.RemoteFile, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, apperrors.NewRemoteError(apperrors.ErrTransport, "list", s.root, 0, err)
	}
	files := make([]portsrepo.RemoteFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isSpreadsheet(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		full := filepath.Join(s.root, entry.Name())
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, apperrors.NewRemoteError(apperrors.ErrTransport, "list", full, 0, err)
		}
		files = append(files, portsrepo.RemoteFile{
			Name:       entry.Name(),
			Path:       full,
			Size:       info.Size(),
			Revision:   digest(data),
			ModifiedAt: info.ModTime().UTC(),
		})
	}
	return files, nil
}

// FileExists reports whether a case-insensitive match exists.
func (s *Store) FileExists(ctx context.Context, filename string) (bool, error) {
	_, ok, err := s.resolve(filename)
	return ok, err
}

// FetchFile reads the matching file.
func (s *Store) FetchFile(_ context.Context, filename string) ([]byte, error) {
	name, ok, err := s.resolve(filename)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewRemoteError(apperrors.ErrFileNotFound, "fetch", filepath.Join(s.root, filename), 0, nil)
	}
	full := filepath.Join(s.root, name)
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, apperrors.NewRemoteError(apperrors.ErrTransport, "fetch", full, 0, err)
	}
	s.remember(filename, digest(data))
	return data, nil
}

// PutFile replaces the file atomically. A file changed on disk since it was
// last read or written by this store yields ErrConflict.
func (s *Store) PutFile(ctx context.Context, filename string, content []byte, commitMessage string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, exists, err := s.resolve(filename)
	if err != nil {
		return "", err
	}
	if !exists {
		name = filepath.Base(filename)
	}
	full := filepath.Join(s.root, name)

	if expected, known := s.revisions[strings.ToLower(filename)]; known && exists {
		current, err := os.ReadFile(full)
		if err != nil {
			return "", apperrors.NewRemoteError(apperrors.ErrTransport, "put", full, 0, err)
		}
		if digest(current) != expected {
			return "", apperrors.NewRemoteError(apperrors.ErrConflict, "put", full, 0, errors.New("file changed since last read"))
		}
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", apperrors.NewRemoteError(apperrors.ErrTransport, "put", full, 0, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", apperrors.NewRemoteError(apperrors.ErrTransport, "put", full, 0, err)
	}
	if err := tmp.Close(); err != nil {
		return "", apperrors.NewRemoteError(apperrors.ErrTransport, "put", full, 0, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", apperrors.NewRemoteError(apperrors.ErrTransport, "put", full, 0, err)
	}

	revision := digest(content)
	s.revisions[strings.ToLower(filename)] = revision
	middleware.GetLoggerFromCtx(ctx).Info("Workbook written",
		slog.String("path", full), slog.String("revision", revision), slog.String("message", commitMessage))
	return revision, nil
}

// resolve finds the on-disk name matching filename case-insensitively.
func (s *Store) resolve(filename string) (string, bool, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, apperrors.NewRemoteError(apperrors.ErrTransport, "list", s.root, 0, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(entry.Name(), filename) {
			return entry.Name(), true, nil
		}
	}
	return "", false, nil
}

func (s *Store) remember(filename, revision string) {
	s.mu.Lock()
	s.revisions[strings.ToLower(filename)] = revision
	s.mu.Unlock()
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func isSpreadsheet(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls", ".xlsm", ".xlsb":
		return true
	}
	return false
}
