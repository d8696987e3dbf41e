package domain

type Pharmacy struct {
	ID        int64    `db:"id" json:"id"`
	OwnerID   int64    `db:"owner_id" json:"owner_id"`
	Name      string   `db:"name" json:"name"`
	Address   string   `db:"address" json:"address"`
	Phone     string   `db:"phone" json:"phone"`
	Latitude  *float64 `db:"latitude" json:"latitude"`
	Longitude *float64 `db:"longitude" json:"longitude"`
	CreatedAt string   `db:"created_at" json:"created_at"`
}

// Located reports whether both coordinates are set.
func (p Pharmacy) Located() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// PharmacyLocation is the map marker payload for one approved pharmacy.
type PharmacyLocation struct {
	Name      string  `db:"name" json:"name"`
	Latitude  float64 `db:"latitude" json:"lat"`
	Longitude float64 `db:"longitude" json:"lng"`
	Address   string  `db:"address" json:"address"`
}
