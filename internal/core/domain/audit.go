package domain

// AuditAction enumerates the kinds of audited mutations.
type AuditAction string

const (
	ActionCreate  AuditAction = "CREATE"
	ActionUpdate  AuditAction = "UPDATE"
	ActionDelete  AuditAction = "DELETE"
	ActionApprove AuditAction = "APPROVE"
	ActionReject  AuditAction = "REJECT"
)

// AuditEntry is one immutable AuditLog row.
type AuditEntry struct {
	ID          string
	EntityType  string
	EntityID    string
	Action      AuditAction
	UserID      string
	Username    string
	Timestamp   string
	Changes     string
	Description string
}

func (AuditEntry) Collection() string { return AuditLog }

// ToRecord converts the entry to its AuditLog record.
func (a AuditEntry) ToRecord() Record {
	return Record{
		FieldID:       a.ID,
		"entityType":  a.EntityType,
		"entityId":    a.EntityID,
		"action":      string(a.Action),
		"userId":      a.UserID,
		"username":    a.Username,
		"timestamp":   a.Timestamp,
		"changes":     a.Changes,
		"description": a.Description,
	}
}

// AuditEntryFromRecord converts an AuditLog record to its typed form.
func AuditEntryFromRecord(r Record) AuditEntry {
	return AuditEntry{
		ID:          r.ID(),
		EntityType:  r.String("entityType"),
		EntityID:    CanonicalID(r["entityId"]),
		Action:      AuditAction(r.String("action")),
		UserID:      r.String("userId"),
		Username:    r.String("username"),
		Timestamp:   r.String("timestamp"),
		Changes:     r.String("changes"),
		Description: r.String("description"),
	}
}
