package domain

import "sort"

// Collection names. Each one corresponds to a sheet of the workbook.
const (
	Users                = "Users"
	Suppliers            = "Suppliers"
	Programs             = "Programs"
	PaymentCenters       = "PaymentCenters"
	PaymentCenterBudgets = "PaymentCenterBudgets"
	PaymentTypes         = "PaymentTypes"
	ExpenseStatus        = "ExpenseStatus"
	Expenses             = "Expenses"
	JournalEntries       = "JournalEntries"
	JournalLines         = "JournalLines"
	AuditLog             = "AuditLog"
)

// Field names with special meaning to the store.
const (
	FieldID              = "id"
	FieldLines           = "lines"
	FieldJournalID       = "journalId"
	FieldLineNumber      = "lineNumber"
	FieldTotalAmount     = "totalAmount"
	FieldStatus          = "status"
	FieldPermissions     = "permissions"
	FieldPaymentCenterID = "paymentCenterId"
	FieldYear            = "year"
)

var knownCollections = []string{
	Users,
	Suppliers,
	Programs,
	PaymentCenters,
	PaymentCenterBudgets,
	PaymentTypes,
	ExpenseStatus,
	Expenses,
	JournalEntries,
	JournalLines,
	AuditLog,
}

// KnownCollections returns the collections the application declares up front, in sheet order.
func KnownCollections() []string {
	return append([]string(nil), knownCollections...)
}

// RequiredCollections must exist after every load, even if the workbook omitted the sheet.
func RequiredCollections() []string {
	return []string{JournalEntries, JournalLines, AuditLog, PaymentCenterBudgets}
}

// IsKnownCollection reports whether name is one of the declared collections.
func IsKnownCollection(name string) bool {
	for _, c := range knownCollections {
		if c == name {
			return true
		}
	}
	return false
}

// columnOrder fixes the column layout of reserved sheets. Fields not listed
// are written after these, sorted by name.
var columnOrder = map[string][]string{
	Users:                {"id", "username", "name", "email", "role", "permissions", "status", "lastLogin", "createdAt"},
	JournalEntries:       {"id", "date", "description", "reference", "status", "totalAmount", "notes", "createdBy", "createdAt", "approvedBy", "approvedAt", "rejectedBy", "rejectedAt", "reason"},
	JournalLines:         {"id", "journalId", "lineNumber", "type", "program", "paymentCenter", "amount", "description"},
	AuditLog:             {"id", "entityType", "entityId", "action", "userId", "username", "timestamp", "changes", "description"},
	PaymentCenterBudgets: {"id", "paymentCenterId", "year", "budget", "description", "notes", "createdAt"},
}

// ColumnOrder returns the preferred leading columns of a collection's sheet.
// Unreserved collections only pin "id" first.
func ColumnOrder(collection string) []string {
	if cols, ok := columnOrder[collection]; ok {
		return append([]string(nil), cols...)
	}
	return []string{FieldID}
}

// SheetOrder sorts collection names so known sheets come first in declaration order.
func SheetOrder(names []string) []string {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	out := make([]string, 0, len(names))
	for _, k := range knownCollections {
		if present[k] {
			out = append(out, k)
			delete(present, k)
		}
	}
	rest := make([]string, 0, len(present))
	for n := range present {
		rest = append(rest, n)
	}
	sort.Strings(rest)
	return append(out, rest...)
}
