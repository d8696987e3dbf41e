// Package inventory implements the pharmacy-owner operations: catalog merge
// with listing create/update/delete, and the pharmacy profile.
package inventory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medlocator/m/domain"
	"medlocator/m/internal/apperr"
	"medlocator/m/internal/auth"
	"medlocator/m/internal/store"
)

// ErrNoPharmacy is returned when the caller has no pharmacy profile.
var ErrNoPharmacy = apperr.Forbidden("no pharmacy linked to this account")

// ListingInput is a validated listing submission.
type ListingInput struct {
	MedicineName string
	GenericName  string
	Price        decimal.Decimal
	Quantity     int64
	ExpiryDate   *time.Time
}

// OwnListing is a caller's listing with its stock state for today.
type OwnListing struct {
	domain.ListingView
	InStock bool
}

// Service runs inventory operations on behalf of a pharmacy owner.
type Service struct {
	store    *store.Store
	gate     auth.Gate
	logger   *zap.Logger
	observer LocationObserver
}

func NewService(s *store.Store, gate auth.Gate, logger *zap.Logger) *Service {
	return &Service{store: s, gate: gate, logger: logger}
}

// AddListing resolves the catalog entry for in.MedicineName, creating it or
// refreshing its generic name, and creates a listing for the caller's
// pharmacy. Both writes commit together or not at all.
func (s *Service) AddListing(ctx context.Context, id *auth.Identity, in ListingInput) (domain.Listing, error) {
	if err := s.gate.RequirePharmacy(id); err != nil {
		return domain.Listing{}, err
	}
	if err := in.validate(); err != nil {
		return domain.Listing{}, err
	}

	var listing domain.Listing
	err := s.store.WithTx(ctx, func(tx *store.Store) error {
		pharmacy, err := pharmacyOf(ctx, tx, id.AccountID)
		if err != nil {
			return err
		}
		medicine, created, err := tx.UpsertMedicine(ctx, in.MedicineName, in.GenericName)
		if err != nil {
			return err
		}
		listing, err = tx.InsertListing(ctx, pharmacy.ID, in.fields(medicine.ID))
		if err != nil {
			return err
		}
		s.logger.Info("listing created",
			zap.Int64("listing_id", listing.ID),
			zap.Int64("pharmacy_id", pharmacy.ID),
			zap.String("medicine", medicine.Name),
			zap.Bool("catalog_created", created))
		return nil
	})
	if err != nil {
		return domain.Listing{}, wrap(err, "unable to add listing")
	}
	return listing, nil
}

// UpdateListing applies the same catalog merge and rewrites one of the
// caller's listings. Listings of other pharmacies are reported as not found.
func (s *Service) UpdateListing(ctx context.Context, id *auth.Identity, listingID int64, in ListingInput) (domain.Listing, error) {
	if err := s.gate.RequirePharmacy(id); err != nil {
		return domain.Listing{}, err
	}
	if err := in.validate(); err != nil {
		return domain.Listing{}, err
	}

	var listing domain.Listing
	err := s.store.WithTx(ctx, func(tx *store.Store) error {
		pharmacy, err := pharmacyOf(ctx, tx, id.AccountID)
		if err != nil {
			return err
		}
		medicine, _, err := tx.UpsertMedicine(ctx, in.MedicineName, in.GenericName)
		if err != nil {
			return err
		}
		listing, err = tx.UpdateListing(ctx, pharmacy.ID, listingID, in.fields(medicine.ID))
		return err
	})
	if err != nil {
		return domain.Listing{}, wrap(err, "unable to update listing")
	}
	return listing, nil
}

// DeleteListing removes one of the caller's listings.
func (s *Service) DeleteListing(ctx context.Context, id *auth.Identity, listingID int64) error {
	if err := s.gate.RequirePharmacy(id); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(tx *store.Store) error {
		pharmacy, err := pharmacyOf(ctx, tx, id.AccountID)
		if err != nil {
			return err
		}
		return tx.DeleteListing(ctx, pharmacy.ID, listingID)
	})
	if err != nil {
		return wrap(err, "unable to delete listing")
	}
	return nil
}

// ListOwn returns the caller's listings with their stock state.
func (s *Service) ListOwn(ctx context.Context, id *auth.Identity) ([]OwnListing, error) {
	if err := s.gate.RequirePharmacy(id); err != nil {
		return nil, err
	}
	pharmacy, err := pharmacyOf(ctx, s.store, id.AccountID)
	if err != nil {
		return nil, wrap(err, "unable to load pharmacy")
	}
	rows, err := s.store.ListingsByPharmacy(ctx, pharmacy.ID)
	if err != nil {
		return nil, wrap(err, "unable to load listings")
	}
	return s.withStock(rows), nil
}

// ExpiringSoon returns the caller's stocked listings that expire within days.
func (s *Service) ExpiringSoon(ctx context.Context, id *auth.Identity, days int) ([]OwnListing, error) {
	if err := s.gate.RequirePharmacy(id); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 30
	}
	pharmacy, err := pharmacyOf(ctx, s.store, id.AccountID)
	if err != nil {
		return nil, wrap(err, "unable to load pharmacy")
	}
	rows, err := s.store.ExpiringListings(ctx, pharmacy.ID, s.store.Now().AddDate(0, 0, days))
	if err != nil {
		return nil, wrap(err, "unable to fetch alerts")
	}
	return s.withStock(rows), nil
}

func (s *Service) withStock(rows []domain.ListingView) []OwnListing {
	today := s.store.Now()
	out := make([]OwnListing, len(rows))
	for i, r := range rows {
		out[i] = OwnListing{ListingView: r, InStock: r.InStock(today)}
	}
	return out
}

func (in *ListingInput) validate() error {
	in.MedicineName = strings.TrimSpace(in.MedicineName)
	in.GenericName = strings.TrimSpace(in.GenericName)
	if in.MedicineName == "" {
		return apperr.Validation("medicine_name is required")
	}
	if !in.Price.IsPositive() {
		return apperr.Validation("price must be positive")
	}
	if !in.Price.Equal(in.Price.Round(2)) {
		return apperr.Validation("price must have at most 2 decimal places")
	}
	return nil
}

func (in ListingInput) fields(medicineID int64) store.ListingFields {
	return store.ListingFields{
		MedicineID: medicineID,
		Price:      in.Price.Round(2),
		Quantity:   in.Quantity,
		ExpiryDate: in.ExpiryDate,
	}
}

func pharmacyOf(ctx context.Context, s *store.Store, ownerID int64) (domain.Pharmacy, error) {
	p, err := s.PharmacyByOwner(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Pharmacy{}, ErrNoPharmacy
	}
	return p, err
}

// wrap maps store errors to application errors.
func wrap(err error, message string) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("listing not found")
	default:
		return apperr.Internal(message, err)
	}
}
