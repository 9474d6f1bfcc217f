package services

import (
	portsrepo "github.com/SscSPs/kiosc_finance_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/SscSPs/kiosc_finance_app/internal/platform/config"
)

// Observers groups the optional listeners attached to the store and the synchronizer.
type Observers struct {
	Mutations []portssvc.MutationListener
	Sync      []portssvc.SyncListener
}

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, remote portsrepo.RemoteStore, codec portsrepo.WorkbookCodec, observers Observers) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	store := NewCollectionStore(NewAuditLogger(), observers.Mutations...)
	container.Store = store

	options := make([]SyncOption, 0, len(observers.Sync))
	for _, l := range observers.Sync {
		options = append(options, WithSyncListener(l))
	}
	container.Sync = NewSessionSynchronizer(store, remote, codec, cfg.WorkbookFilename, options...)
	container.Validator = NewDataValidator()

	return container
}
