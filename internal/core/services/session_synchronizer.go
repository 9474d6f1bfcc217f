package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/SscSPs/kiosc_finance_app/internal/apperrors"
	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	portsrepo "github.com/SscSPs/kiosc_finance_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
)

// SessionSynchronizer loads the workbook into the collection store and saves it back.
// Unsaved changes are tracked by comparing the store version with the version
// captured by the last load or successful save.
type SessionSynchronizer struct {
	BaseService
	store       portssvc.CollectionStoreSvc
	remote      portsrepo.RemoteStore
	codec       portsrepo.WorkbookCodec
	reconciler  portssvc.ReconcilerSvc
	initializer portssvc.DataInitializerSvc
	filename    string
	listeners   []portssvc.SyncListener

	mu           sync.Mutex
	state        portssvc.SessionState
	savedVersion uint64
	source       portssvc.LoadSource
	lastRevision string
}

var _ portssvc.SessionSynchronizerSvc = (*SessionSynchronizer)(nil)

// SyncOption is a functional option for configuring the synchronizer
type SyncOption func(*SessionSynchronizer)

// WithReconciler overrides the default Reconciler.
func WithReconciler(r portssvc.ReconcilerSvc) SyncOption {
	return func(s *SessionSynchronizer) {
		s.reconciler = r
	}
}

// WithDataInitializer overrides the embedded default dataset.
func WithDataInitializer(d portssvc.DataInitializerSvc) SyncOption {
	return func(s *SessionSynchronizer) {
		s.initializer = d
	}
}

// WithSyncListener registers an observer of load and save outcomes.
func WithSyncListener(l portssvc.SyncListener) SyncOption {
	return func(s *SessionSynchronizer) {
		if l != nil {
			s.listeners = append(s.listeners, l)
		}
	}
}

// NewSessionSynchronizer creates a synchronizer for the workbook named filename.
func NewSessionSynchronizer(store portssvc.CollectionStoreSvc, remote portsrepo.RemoteStore, codec portsrepo.WorkbookCodec, filename string, options ...SyncOption) *SessionSynchronizer {
	s := &SessionSynchronizer{
		store:       store,
		remote:      remote,
		codec:       codec,
		filename:    filename,
		reconciler:  NewReconciler(),
		initializer: NewDataInitializer(),
		state:       portssvc.StateUninitialized,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Load fetches and decodes the workbook, falling back to the default dataset
// on any remote or decode failure. In-memory changes are discarded.
func (s *SessionSynchronizer) Load(ctx context.Context) (portssvc.LoadResult, error) {
	s.mu.Lock()
	if s.state == portssvc.StateLoading || s.state == portssvc.StateSaving {
		s.mu.Unlock()
		return portssvc.LoadResult{}, fmt.Errorf("%w: %s in progress", apperrors.ErrBusy, s.state)
	}
	previous := s.state
	s.state = portssvc.StateLoading
	s.mu.Unlock()

	result := portssvc.LoadResult{Filename: s.filename, Source: portssvc.SourceRemote}
	ds, err := s.fetch(ctx)
	if err != nil {
		s.LogWarn(ctx, "Remote workbook unavailable, loading default dataset",
			slog.String("file", s.filename), slog.String("error", err.Error()))
		result.Source = portssvc.SourceDefaults
		result.FallbackReason = err.Error()

		defaults, initErr := s.initializer.DefaultDataset(ctx)
		if initErr != nil {
			s.mu.Lock()
			s.state = previous
			s.mu.Unlock()
			initErr = fmt.Errorf("loading default dataset: %w", initErr)
			s.LogError(ctx, initErr, "Load failed")
			s.notifyLoad(ctx, result, initErr)
			return result, initErr
		}
		ds = defaults
	}

	version := s.store.Replace(ctx, s.reconciler.Reconcile(ctx, ds))

	s.mu.Lock()
	s.savedVersion = version
	s.source = result.Source
	if result.Source == portssvc.SourceDefaults {
		s.lastRevision = ""
	}
	s.state = portssvc.StateReady
	s.mu.Unlock()

	s.LogInfo(ctx, "Session loaded", slog.String("source", string(result.Source)), slog.String("file", s.filename))
	s.notifyLoad(ctx, result, nil)
	return result, nil
}

func (s *SessionSynchronizer) fetch(ctx context.Context) (domain.Dataset, error) {
	data, err := s.remote.FetchFile(ctx, s.filename)
	if err != nil {
		return nil, err
	}
	ds, err := s.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// Save encodes a snapshot of the store and writes it to the remote store.
// On failure the store is untouched and unsaved changes stay flagged.
func (s *SessionSynchronizer) Save(ctx context.Context) (portssvc.SaveResult, error) {
	s.mu.Lock()
	switch s.state {
	case portssvc.StateUninitialized:
		s.mu.Unlock()
		return portssvc.SaveResult{}, apperrors.ErrNotReady
	case portssvc.StateLoading, portssvc.StateSaving:
		state := s.state
		s.mu.Unlock()
		return portssvc.SaveResult{}, fmt.Errorf("%w: %s in progress", apperrors.ErrBusy, state)
	}
	s.state = portssvc.StateSaving
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = portssvc.StateReady
		s.mu.Unlock()
	}()

	result := portssvc.SaveResult{Filename: s.filename}
	snapshot, version := s.store.Snapshot(ctx)
	data, err := s.codec.Encode(snapshot)
	if err != nil {
		err = fmt.Errorf("encoding workbook: %w", err)
		s.LogError(ctx, err, "Save failed")
		s.notifySave(ctx, result, err)
		return portssvc.SaveResult{}, err
	}

	revision, err := s.remote.PutFile(ctx, s.filename, data, "Update data file: "+s.filename)
	if err != nil {
		err = fmt.Errorf("saving workbook: %w", err)
		s.LogError(ctx, err, "Save failed", slog.String("file", s.filename))
		s.notifySave(ctx, result, err)
		return portssvc.SaveResult{}, err
	}

	result.Revision = revision
	result.Bytes = len(data)

	s.mu.Lock()
	s.savedVersion = version
	s.lastRevision = revision
	s.mu.Unlock()

	s.LogInfo(ctx, "Session saved", slog.String("file", s.filename), slog.String("revision", revision), slog.Int("bytes", len(data)))
	s.notifySave(ctx, result, nil)
	return result, nil
}

// Export encodes the current state without writing it anywhere.
func (s *SessionSynchronizer) Export(ctx context.Context) ([]byte, error) {
	if s.State() == portssvc.StateUninitialized {
		return nil, apperrors.ErrNotReady
	}
	snapshot, _ := s.store.Snapshot(ctx)
	data, err := s.codec.Encode(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encoding workbook: %w", err)
	}
	return data, nil
}

// State implements SessionSynchronizerSvc.
func (s *SessionSynchronizer) State() portssvc.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HasUnsavedChanges reports whether the store changed since the last load or successful save.
func (s *SessionSynchronizer) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsavedLocked()
}

func (s *SessionSynchronizer) unsavedLocked() bool {
	if s.state == portssvc.StateUninitialized {
		return false
	}
	return s.store.Version() != s.savedVersion
}

// LastRevision is the revision returned by the last successful save.
func (s *SessionSynchronizer) LastRevision() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRevision
}

// LastLoadSource tells whether the current data came from the remote workbook or the defaults.
func (s *SessionSynchronizer) LastLoadSource() portssvc.LoadSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Status implements SessionSynchronizerSvc.
func (s *SessionSynchronizer) Status() portssvc.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return portssvc.SessionStatus{
		State:             s.state,
		HasUnsavedChanges: s.unsavedLocked(),
		Source:            s.source,
		Filename:          s.filename,
		LastRevision:      s.lastRevision,
		Driver:            s.remote.Driver(),
	}
}

// ListRemoteFiles lists the workbooks available in the remote store.
func (s *SessionSynchronizer) ListRemoteFiles(ctx context.Context) ([]portsrepo.RemoteFile, error) {
	return s.remote.ListFiles(ctx)
}

// TestConnection checks the remote store is reachable.
func (s *SessionSynchronizer) TestConnection(ctx context.Context) error {
	return s.remote.Ping(ctx)
}

func (s *SessionSynchronizer) notifyLoad(ctx context.Context, result portssvc.LoadResult, err error) {
	for _, l := range s.listeners {
		l.OnLoad(ctx, result, err)
	}
}

func (s *SessionSynchronizer) notifySave(ctx context.Context, result portssvc.SaveResult, err error) {
	for _, l := range s.listeners {
		l.OnSave(ctx, result, err)
	}
}
