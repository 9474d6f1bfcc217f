package dto

import "github.com/SscSPs/kiosc_finance_app/internal/core/domain"

// ListAuditParams filters the audit trail.
type ListAuditParams struct {
	EntityType string `form:"entityType"`
	EntityID   string `form:"entityId"`
	Limit      int    `form:"limit,default=100" binding:"min=0,max=1000"`
}

// AuditEntryResponse is one audit log row.
type AuditEntryResponse struct {
	ID          string `json:"id"`
	EntityType  string `json:"entityType"`
	EntityID    string `json:"entityId"`
	Action      string `json:"action"`
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	Timestamp   string `json:"timestamp"`
	Changes     string `json:"changes"`
	Description string `json:"description"`
}

// ListAuditResponse wraps audit rows, newest first.
type ListAuditResponse struct {
	Entries []AuditEntryResponse `json:"entries"`
}

// ToAuditEntryResponse converts a domain.AuditEntry to its response form.
func ToAuditEntryResponse(e domain.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:          e.ID,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Action:      string(e.Action),
		UserID:      e.UserID,
		Username:    e.Username,
		Timestamp:   e.Timestamp,
		Changes:     e.Changes,
		Description: e.Description,
	}
}

// ToAuditEntryResponses converts a slice of domain.AuditEntry.
func ToAuditEntryResponses(entries []domain.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = ToAuditEntryResponse(e)
	}
	return out
}
