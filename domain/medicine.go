package domain

// Medicine is a catalog entry. Name is unique across the catalog.
type Medicine struct {
	ID          int64   `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	GenericName *string `db:"generic_name" json:"generic_name"`
}

// Generic returns the generic name or "" when unset.
func (m Medicine) Generic() string {
	if m.GenericName == nil {
		return ""
	}
	return *m.GenericName
}
