package domain

// Actor identifies who performed a mutation, as recorded in the audit log.
type Actor struct {
	UserID   string
	Username string
}

// SystemActor is used for mutations without an authenticated caller (CLI, seeding).
var SystemActor = Actor{UserID: "system", Username: "system"}
