package inventory

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"medlocator/m/domain"
	"medlocator/m/internal/apperr"
	"medlocator/m/internal/auth"
	"medlocator/m/internal/store"
)

// LocationObserver is told when a pharmacy's public map data may have changed.
type LocationObserver interface {
	Invalidate(ctx context.Context)
}

// ProfileInput is a pharmacy profile submission.
type ProfileInput struct {
	Name      string
	Address   string
	Phone     string
	Latitude  *float64
	Longitude *float64
}

// SetObserver registers o to be notified after profile or location changes.
func (s *Service) SetObserver(o LocationObserver) {
	s.observer = o
}

// Profile returns the caller's pharmacy profile.
func (s *Service) Profile(ctx context.Context, id *auth.Identity) (domain.Pharmacy, error) {
	if err := s.gate.RequirePharmacy(id); err != nil {
		return domain.Pharmacy{}, err
	}
	p, err := pharmacyOf(ctx, s.store, id.AccountID)
	if err != nil {
		return domain.Pharmacy{}, wrap(err, "unable to load pharmacy")
	}
	return p, nil
}

// SaveProfile creates the caller's profile or replaces its fields.
func (s *Service) SaveProfile(ctx context.Context, id *auth.Identity, in ProfileInput) (domain.Pharmacy, error) {
	if err := s.gate.RequirePharmacy(id); err != nil {
		return domain.Pharmacy{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return domain.Pharmacy{}, apperr.Validation("name is required")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return domain.Pharmacy{}, apperr.Validation("latitude and longitude must be set together")
	}
	var p domain.Pharmacy
	err := s.store.WithTx(ctx, func(tx *store.Store) error {
		var err error
		p, err = tx.SavePharmacy(ctx, domain.Pharmacy{
			OwnerID:   id.AccountID,
			Name:      in.Name,
			Address:   strings.TrimSpace(in.Address),
			Phone:     strings.TrimSpace(in.Phone),
			Latitude:  in.Latitude,
			Longitude: in.Longitude,
		})
		return err
	})
	if err != nil {
		return domain.Pharmacy{}, apperr.Internal("unable to save pharmacy", err)
	}
	s.logger.Info("pharmacy profile saved", zap.Int64("pharmacy_id", p.ID), zap.Bool("located", p.Located()))
	s.notify(ctx)
	return p, nil
}

// UpdateLocation sets the coordinates of the caller's profile.
func (s *Service) UpdateLocation(ctx context.Context, id *auth.Identity, lat, lng float64) error {
	if err := s.gate.RequirePharmacy(id); err != nil {
		return err
	}
	if err := s.store.UpdateLocation(ctx, id.AccountID, &lat, &lng); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoPharmacy
		}
		return apperr.Internal("unable to update location", err)
	}
	s.notify(ctx)
	return nil
}

func (s *Service) notify(ctx context.Context) {
	if s.observer != nil {
		s.observer.Invalidate(ctx)
	}
}
