package dto

import (
	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
)

// ListRecordsParams holds the query parameters of a collection listing.
// Field and Value filter by equality when both are set.
type ListRecordsParams struct {
	Field     string `form:"field"`
	Value     string `form:"value"`
	Limit     int    `form:"limit,default=100" binding:"min=0,max=1000"`
	NextToken string `form:"nextToken"`
}

// ListRecordsResponse is one page of a collection.
type ListRecordsResponse struct {
	Collection string          `json:"collection"`
	Records    []domain.Record `json:"records"`
	Total      int             `json:"total"`
	NextToken  *string         `json:"nextToken,omitempty"`
}

// ListCollectionsResponse lists the declared collections with their sizes.
type ListCollectionsResponse struct {
	Collections []portssvc.CollectionInfo `json:"collections"`
}
