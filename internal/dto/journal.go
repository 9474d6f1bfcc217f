package dto

// RejectJournalRequest carries the reason recorded on a rejected journal entry.
type RejectJournalRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// BudgetLookupParams identifies a payment center budget by its composite key.
type BudgetLookupParams struct {
	PaymentCenterID string `form:"paymentCenterId" binding:"required"`
	Year            int    `form:"year" binding:"required,min=1900,max=9999"`
}
