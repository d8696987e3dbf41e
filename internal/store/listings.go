package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"medlocator/m/domain"
)

// ListingFields are the caller-controlled columns of a listing.
type ListingFields struct {
	MedicineID int64
	Price      decimal.Decimal
	Quantity   int64
	ExpiryDate *time.Time
}

const listingViewSelect = `SELECT l.id, l.pharmacy_id, l.medicine_id, l.price, l.quantity, l.expiry_date, l.updated_at,
		m.name AS medicine_name, m.generic_name AS generic_name,
		p.name AS pharmacy_name, p.address AS pharmacy_address,
		p.latitude AS pharmacy_latitude, p.longitude AS pharmacy_longitude
	FROM listings l
	JOIN medicines m ON m.id = l.medicine_id
	JOIN pharmacies p ON p.id = l.pharmacy_id`

// InsertListing creates a listing for pharmacyID and returns it.
func (s *Store) InsertListing(ctx context.Context, pharmacyID int64, f ListingFields) (domain.Listing, error) {
	now := s.now()
	id, err := s.insertReturningID(ctx, `INSERT INTO listings (pharmacy_id, medicine_id, price, quantity, expiry_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		pharmacyID, f.MedicineID, f.Price, f.Quantity, dateParam(f.ExpiryDate), now)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("insert listing: %w", err)
	}
	return domain.Listing{
		ID:         id,
		PharmacyID: pharmacyID,
		MedicineID: f.MedicineID,
		Price:      f.Price,
		Quantity:   f.Quantity,
		ExpiryDate: f.ExpiryDate,
		UpdatedAt:  now,
	}, nil
}

// UpdateListing rewrites a listing owned by pharmacyID. A listing that does not
// exist and one owned by another pharmacy both yield ErrNotFound.
func (s *Store) UpdateListing(ctx context.Context, pharmacyID, id int64, f ListingFields) (domain.Listing, error) {
	now := s.now()
	n, err := s.exec(ctx, `UPDATE listings SET medicine_id = ?, price = ?, quantity = ?, expiry_date = ?, updated_at = ?
		WHERE id = ? AND pharmacy_id = ?`,
		f.MedicineID, f.Price, f.Quantity, dateParam(f.ExpiryDate), now, id, pharmacyID)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("update listing: %w", err)
	}
	if n == 0 {
		return domain.Listing{}, ErrNotFound
	}
	return domain.Listing{
		ID:         id,
		PharmacyID: pharmacyID,
		MedicineID: f.MedicineID,
		Price:      f.Price,
		Quantity:   f.Quantity,
		ExpiryDate: f.ExpiryDate,
		UpdatedAt:  now,
	}, nil
}

// DeleteListing removes a listing owned by pharmacyID.
func (s *Store) DeleteListing(ctx context.Context, pharmacyID, id int64) error {
	n, err := s.exec(ctx, `DELETE FROM listings WHERE id = ? AND pharmacy_id = ?`, id, pharmacyID)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountListings returns the total number of listings.
func (s *Store) CountListings(ctx context.Context) (int, error) {
	var n int
	if err := s.get(ctx, &n, `SELECT COUNT(*) FROM listings`); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

// ListingFilter narrows SearchListings.
type ListingFilter struct {
	// Query keeps listings whose medicine name contains it, ignoring case.
	Query string
	// OrderByPrice sorts by price ascending instead of by listing id.
	OrderByPrice bool
}

// SearchListings reads listings joined with their medicine and pharmacy.
// Rows come back in listing id order unless OrderByPrice is set; price ties
// are broken by listing id.
func (s *Store) SearchListings(ctx context.Context, f ListingFilter) ([]domain.ListingView, error) {
	var (
		where []string
		args  []any
		exact = true
	)
	q := strings.TrimSpace(f.Query)
	if q != "" {
		var pattern string
		pattern, exact = likePattern(q)
		where = append(where, `LOWER(m.name) LIKE ? ESCAPE '\'`)
		args = append(args, pattern)
	}
	query := listingViewSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.OrderByPrice {
		query += " ORDER BY l.price, l.id"
	} else {
		query += " ORDER BY l.id"
	}

	rows := []domain.ListingView{}
	if err := s.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("search listings: %w", err)
	}
	if exact {
		return rows, nil
	}
	matched := rows[:0]
	for _, r := range rows {
		if matchesQuery(q, r.MedicineName) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// ListingsByPharmacy returns a pharmacy's listings ordered by medicine name.
func (s *Store) ListingsByPharmacy(ctx context.Context, pharmacyID int64) ([]domain.ListingView, error) {
	rows := []domain.ListingView{}
	err := s.selectAll(ctx, &rows, listingViewSelect+` WHERE l.pharmacy_id = ? ORDER BY m.name, l.id`, pharmacyID)
	if err != nil {
		return nil, fmt.Errorf("list pharmacy listings: %w", err)
	}
	return rows, nil
}

// ExpiringListings returns a pharmacy's stocked listings whose expiry date is
// on or before the given day, soonest first.
func (s *Store) ExpiringListings(ctx context.Context, pharmacyID int64, before time.Time) ([]domain.ListingView, error) {
	rows := []domain.ListingView{}
	err := s.selectAll(ctx, &rows, listingViewSelect+`
		WHERE l.pharmacy_id = ? AND l.quantity > 0 AND l.expiry_date IS NOT NULL AND l.expiry_date <= ?
		ORDER BY l.expiry_date, l.id`, pharmacyID, dateParam(&before))
	if err != nil {
		return nil, fmt.Errorf("list expiring listings: %w", err)
	}
	return rows, nil
}

// dateParam normalises a date to midnight UTC so stored dates compare
// consistently.
func dateParam(t *time.Time) any {
	if t == nil {
		return nil
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
