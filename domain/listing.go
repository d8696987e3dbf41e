package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is one pharmacy's offer for a catalog medicine.
type Listing struct {
	ID         int64           `db:"id" json:"id"`
	PharmacyID int64           `db:"pharmacy_id" json:"pharmacy_id"`
	MedicineID int64           `db:"medicine_id" json:"medicine_id"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Quantity   int64           `db:"quantity" json:"quantity"`
	ExpiryDate *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// InStock reports whether the listing can be sold on the given day: positive
// quantity and an expiry date, if any, strictly after today.
func (l Listing) InStock(today time.Time) bool {
	return inStock(l.Quantity, l.ExpiryDate, today)
}

// ListingView is a listing joined with its medicine and pharmacy.
type ListingView struct {
	Listing
	MedicineName      string   `db:"medicine_name"`
	GenericName       *string  `db:"generic_name"`
	PharmacyName      string   `db:"pharmacy_name"`
	PharmacyAddress   string   `db:"pharmacy_address"`
	PharmacyLatitude  *float64 `db:"pharmacy_latitude"`
	PharmacyLongitude *float64 `db:"pharmacy_longitude"`
}

func inStock(quantity int64, expiry *time.Time, today time.Time) bool {
	if quantity <= 0 {
		return false
	}
	if expiry == nil {
		return true
	}
	return dateOf(*expiry).After(dateOf(today))
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
