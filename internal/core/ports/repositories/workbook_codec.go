package repositories

import "github.com/SscSPs/kiosc_finance_app/internal/core/domain"

// WorkbookCodec converts between spreadsheet bytes and collections of flat records.
type WorkbookCodec interface {
	// Decode parses every sheet into a collection keyed by sheet name.
	Decode(data []byte) (domain.Dataset, error)

	// Encode writes one sheet per collection.
	Encode(ds domain.Dataset) ([]byte, error)
}
