package services

// ServiceContainer holds instances of all the application services.
// It is what the handlers and the CLI commands receive.
type ServiceContainer struct {
	Store     CollectionStoreSvc
	Sync      SessionSynchronizerSvc
	Validator ValidatorSvc
}
