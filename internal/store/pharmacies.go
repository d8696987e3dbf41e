package store

import (
	"context"
	"fmt"

	"medlocator/m/domain"
)

const pharmacyColumns = `id, owner_id, name, address, phone, latitude, longitude, created_at`

// PharmacyByOwner loads the profile owned by an account.
func (s *Store) PharmacyByOwner(ctx context.Context, ownerID int64) (domain.Pharmacy, error) {
	var p domain.Pharmacy
	err := s.get(ctx, &p, `SELECT `+pharmacyColumns+` FROM pharmacies WHERE owner_id = ?`, ownerID)
	return p, notFound(err, "pharmacy")
}

// SavePharmacy creates the owner's profile or updates it in place. An account
// has at most one profile.
func (s *Store) SavePharmacy(ctx context.Context, p domain.Pharmacy) (domain.Pharmacy, error) {
	_, err := s.exec(ctx, `INSERT INTO pharmacies (owner_id, name, address, phone, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			phone = excluded.phone,
			latitude = excluded.latitude,
			longitude = excluded.longitude`,
		p.OwnerID, p.Name, p.Address, p.Phone, p.Latitude, p.Longitude)
	if err != nil {
		return domain.Pharmacy{}, fmt.Errorf("save pharmacy: %w", err)
	}
	return s.PharmacyByOwner(ctx, p.OwnerID)
}

// UpdateLocation sets the coordinates of the owner's profile.
func (s *Store) UpdateLocation(ctx context.Context, ownerID int64, lat, lng *float64) error {
	n, err := s.exec(ctx, `UPDATE pharmacies SET latitude = ?, longitude = ? WHERE owner_id = ?`, lat, lng, ownerID)
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ApprovedLocations returns every pharmacy whose owner is approved and whose
// coordinates are both set.
func (s *Store) ApprovedLocations(ctx context.Context) ([]domain.PharmacyLocation, error) {
	rows := []domain.PharmacyLocation{}
	err := s.selectAll(ctx, &rows, `SELECT p.name, p.latitude, p.longitude, p.address
		FROM pharmacies p
		JOIN accounts a ON a.id = p.owner_id
		WHERE a.is_approved = ? AND p.latitude IS NOT NULL AND p.longitude IS NOT NULL
		ORDER BY p.id`, true)
	if err != nil {
		return nil, fmt.Errorf("list pharmacy locations: %w", err)
	}
	return rows, nil
}
