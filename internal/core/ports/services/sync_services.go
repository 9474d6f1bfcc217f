package services

import (
	"context"

	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	portsrepo "github.com/SscSPs/kiosc_finance_app/internal/core/ports/repositories"
)

// SessionState is a state of the session synchronizer.
type SessionState string

const (
	StateUninitialized SessionState = "Uninitialized"
	StateLoading       SessionState = "Loading"
	StateReady         SessionState = "Ready"
	StateSaving        SessionState = "Saving"
)

// LoadSource tells where the current dataset came from.
type LoadSource string

const (
	SourceNone     LoadSource = ""
	SourceRemote   LoadSource = "remote"
	SourceDefaults LoadSource = "defaults"
)

// LoadResult reports the outcome of a load.
type LoadResult struct {
	Source   LoadSource `json:"source"`
	Filename string     `json:"filename"`
	// FallbackReason is set when the remote workbook could not be used.
	FallbackReason string `json:"fallbackReason,omitempty"`
}

// SaveResult reports the outcome of a successful save.
type SaveResult struct {
	Filename string `json:"filename"`
	Revision string `json:"revision"`
	Bytes    int    `json:"bytes"`
}

// SessionStatus is a point-in-time view of the synchronizer.
type SessionStatus struct {
	State             SessionState `json:"state"`
	HasUnsavedChanges bool         `json:"hasUnsavedChanges"`
	Source            LoadSource   `json:"source"`
	Filename          string       `json:"filename"`
	LastRevision      string       `json:"lastRevision,omitempty"`
	Driver            string       `json:"driver"`
}

// SessionSynchronizerSvc orchestrates loading and saving the workbook.
type SessionSynchronizerSvc interface {
	Load(ctx context.Context) (LoadResult, error)
	Save(ctx context.Context) (SaveResult, error)
	Export(ctx context.Context) ([]byte, error)
	State() SessionState
	HasUnsavedChanges() bool
	Status() SessionStatus
	LastRevision() string
	LastLoadSource() LoadSource
	ListRemoteFiles(ctx context.Context) ([]portsrepo.RemoteFile, error)
	TestConnection(ctx context.Context) error
}

// SyncListener observes load and save outcomes (metrics, analytics).
type SyncListener interface {
	OnLoad(ctx context.Context, result LoadResult, err error)
	OnSave(ctx context.Context, result SaveResult, err error)
}

// DataInitializerSvc produces the default dataset used when no workbook is reachable.
type DataInitializerSvc interface {
	DefaultDataset(ctx context.Context) (domain.Dataset, error)
}

// ReconcilerSvc turns decoded sheets into the in-memory shape and back.
type ReconcilerSvc interface {
	Reconcile(ctx context.Context, raw domain.Dataset) domain.Dataset
	Flatten(ds domain.Dataset) domain.Dataset
}
