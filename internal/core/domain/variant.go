package domain

// Variant is a record viewed through the typed form of its collection.
type Variant interface {
	Collection() string
	ToRecord() Record
}

// GenericRecord is the fallback variant for collections without a typed form.
type GenericRecord struct {
	Name   string
	Fields Record
}

func (g GenericRecord) Collection() string { return g.Name }

func (g GenericRecord) ToRecord() Record { return g.Fields.Clone() }

// AsVariant returns the typed variant of a record for reserved collections
// and a GenericRecord for everything else.
func AsVariant(collection string, r Record) (Variant, error) {
	switch collection {
	case JournalEntries:
		return JournalEntryFromRecord(r)
	case JournalLines:
		return JournalLineFromRecord(r)
	case Users:
		return UserFromRecord(r), nil
	case AuditLog:
		return AuditEntryFromRecord(r), nil
	case PaymentCenterBudgets:
		return PaymentCenterBudgetFromRecord(r)
	default:
		return GenericRecord{Name: collection, Fields: r.Clone()}, nil
	}
}

var (
	_ Variant = JournalEntry{}
	_ Variant = JournalLine{}
	_ Variant = User{}
	_ Variant = AuditEntry{}
	_ Variant = PaymentCenterBudget{}
	_ Variant = GenericRecord{}
)
