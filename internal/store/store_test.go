package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medlocator/m/domain"
	"medlocator/m/internal/database"
	"medlocator/m/internal/migrations"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))

	s := New(db)
	s.SetClock(func() time.Time { return fixedNow })
	return s
}

func ptr[T any](v T) *T { return &v }

// seedPharmacy creates an owner account and its profile.
func seedPharmacy(t *testing.T, s *Store, username string, approved bool, lat, lng *float64) domain.Pharmacy {
	t.Helper()
	ctx := context.Background()
	ownerID, err := s.CreateAccount(ctx, domain.Account{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         domain.RolePharmacy,
		IsApproved:   approved,
	})
	require.NoError(t, err)
	p, err := s.SavePharmacy(ctx, domain.Pharmacy{
		OwnerID:   ownerID,
		Name:      username + " pharmacy",
		Address:   "1 Main St",
		Phone:     "555-0100",
		Latitude:  lat,
		Longitude: lng,
	})
	require.NoError(t, err)
	return p
}

func addListing(t *testing.T, s *Store, pharmacyID int64, medicine, price string, qty int64) domain.Listing {
	t.Helper()
	ctx := context.Background()
	m, _, err := s.UpsertMedicine(ctx, medicine, "")
	require.NoError(t, err)
	l, err := s.InsertListing(ctx, pharmacyID, ListingFields{
		MedicineID: m.ID,
		Price:      decimal.RequireFromString(price),
		Quantity:   qty,
	})
	require.NoError(t, err)
	return l
}

func TestUpsertMedicineMergesGenericName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, created, err := s.UpsertMedicine(ctx, "Napa", "Paracetamol")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := s.UpsertMedicine(ctx, "Napa", "Acetaminophen")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	n, err := s.CountMedicines(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := s.MedicineByName(ctx, "Napa")
	require.NoError(t, err)
	assert.Equal(t, "Acetaminophen", stored.Generic())
}

func TestUpsertMedicineEmptyGenericKeepsStored(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.UpsertMedicine(ctx, "Seclo", "Omeprazole")
	require.NoError(t, err)
	m, created, err := s.UpsertMedicine(ctx, "Seclo", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Omeprazole", m.Generic())
}

func TestUpsertMedicineIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := s.UpsertMedicine(ctx, "Aspirin", "Acetylsalicylic acid")
		require.NoError(t, err)
	}
	n, err := s.CountMedicines(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	m, err := s.MedicineByName(ctx, "Aspirin")
	require.NoError(t, err)
	assert.Equal(t, "Acetylsalicylic acid", m.Generic())
}

func TestUpsertMedicineWithoutGeneric(t *testing.T) {
	s := newTestStore(t)
	m, created, err := s.UpsertMedicine(context.Background(), "Histacin", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, m.GenericName)
}

func TestSearchListingsCaseInsensitiveSubstring(t *testing.T) {
	s := newTestStore(t)
	p := seedPharmacy(t, s, "alpha", true, nil, nil)
	addListing(t, s, p.ID, "Aspirin", "3.00", 10)
	addListing(t, s, p.ID, "Napa", "1.00", 10)
	addListing(t, s, p.ID, "Disprin ASPro", "2.00", 10)

	rows, err := s.SearchListings(context.Background(), ListingFilter{Query: "asp"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Aspirin", rows[0].MedicineName)
	assert.Equal(t, "Disprin ASPro", rows[1].MedicineName)
	assert.Equal(t, "alpha pharmacy", rows[0].PharmacyName)
}

func TestSearchListingsEscapesWildcards(t *testing.T) {
	s := newTestStore(t)
	p := seedPharmacy(t, s, "alpha", true, nil, nil)
	addListing(t, s, p.ID, "Vitamin B_12", "3.00", 10)
	addListing(t, s, p.ID, "Vitamin B612", "3.00", 10)

	rows, err := s.SearchListings(context.Background(), ListingFilter{Query: "b_1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Vitamin B_12", rows[0].MedicineName)
}

func TestSearchListingsFoldsNonASCIICase(t *testing.T) {
	s := newTestStore(t)
	p := seedPharmacy(t, s, "alpha", true, nil, nil)
	addListing(t, s, p.ID, "Éfferalgan", "3.00", 10)
	addListing(t, s, p.ID, "Efferalgan Kids", "2.00", 10)
	addListing(t, s, p.ID, "Öfferal", "2.00", 10)

	for _, q := range []string{"Éffer", "éffer", "ÉFFERALGAN"} {
		rows, err := s.SearchListings(context.Background(), ListingFilter{Query: q})
		require.NoError(t, err)
		require.Len(t, rows, 1, q)
		assert.Equal(t, "Éfferalgan", rows[0].MedicineName)
	}

	rows, err := s.SearchListings(context.Background(), ListingFilter{Query: "FFERAL"})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestSearchMedicinesFoldsNonASCIICase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _, err := s.UpsertMedicine(ctx, "Doliprane", "Paracétamol")
	require.NoError(t, err)
	_, _, err = s.UpsertMedicine(ctx, "Ácido", "")
	require.NoError(t, err)
	_, _, err = s.UpsertMedicine(ctx, "Acetam", "")
	require.NoError(t, err)

	meds, err := s.SearchMedicines(ctx, "CÉTAM", 10)
	require.NoError(t, err)
	require.Len(t, meds, 1)
	assert.Equal(t, "Doliprane", meds[0].Name)

	meds, err = s.SearchMedicines(ctx, "á", 1)
	require.NoError(t, err)
	require.Len(t, meds, 1)
	assert.Equal(t, "Ácido", meds[0].Name)
}

func TestSearchListingsOrderByPrice(t *testing.T) {
	s := newTestStore(t)
	p := seedPharmacy(t, s, "alpha", true, nil, nil)
	addListing(t, s, p.ID, "Aspirin", "9.99", 1)
	addListing(t, s, p.ID, "Aspirin 75", "1.50", 1)
	addListing(t, s, p.ID, "Aspirin 300", "5.00", 1)
	addListing(t, s, p.ID, "Aspirin 500", "10.00", 1)

	rows, err := s.SearchListings(context.Background(), ListingFilter{OrderByPrice: true})
	require.NoError(t, err)
	var prices []string
	for _, r := range rows {
		prices = append(prices, r.Price.StringFixed(2))
	}
	assert.Equal(t, []string{"1.50", "5.00", "9.99", "10.00"}, prices)

	rows, err = s.SearchListings(context.Background(), ListingFilter{})
	require.NoError(t, err)
	assert.Equal(t, "9.99", rows[0].Price.StringFixed(2))
}

func TestListingRoundTripsDatesAndCoordinates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedPharmacy(t, s, "alpha", true, ptr(23.81), ptr(90.41))
	m, _, err := s.UpsertMedicine(ctx, "Napa", "")
	require.NoError(t, err)
	expiry := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	l, err := s.InsertListing(ctx, p.ID, ListingFields{MedicineID: m.ID, Price: decimal.RequireFromString("12.50"), Quantity: 4, ExpiryDate: &expiry})
	require.NoError(t, err)

	rows, err := s.ListingsByPharmacy(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	v := rows[0]
	assert.Equal(t, l.ID, v.ID)
	require.NotNil(t, v.ExpiryDate)
	assert.True(t, expiry.Equal(v.ExpiryDate.UTC()))
	assert.True(t, fixedNow.Equal(v.UpdatedAt))
	assert.Equal(t, "12.50", v.Price.StringFixed(2))
	require.NotNil(t, v.PharmacyLatitude)
	assert.InDelta(t, 23.81, *v.PharmacyLatitude, 1e-9)
}

func TestUpdateAndDeleteListingScopedToOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mine := seedPharmacy(t, s, "alpha", true, nil, nil)
	theirs := seedPharmacy(t, s, "beta", true, nil, nil)
	l := addListing(t, s, mine.ID, "Napa", "1.00", 10)

	_, err := s.UpdateListing(ctx, theirs.ID, l.ID, ListingFields{MedicineID: l.MedicineID, Price: decimal.NewFromInt(2), Quantity: 1})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteListing(ctx, theirs.ID, l.ID), ErrNotFound)
	assert.ErrorIs(t, s.DeleteListing(ctx, mine.ID, 9999), ErrNotFound)

	later := fixedNow.Add(time.Hour)
	s.SetClock(func() time.Time { return later })
	updated, err := s.UpdateListing(ctx, mine.ID, l.ID, ListingFields{MedicineID: l.MedicineID, Price: decimal.NewFromInt(2), Quantity: 7})
	require.NoError(t, err)
	assert.Equal(t, later, updated.UpdatedAt)

	require.NoError(t, s.DeleteListing(ctx, mine.ID, l.ID))
	n, err := s.CountListings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDeleteAccountCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedPharmacy(t, s, "alpha", true, nil, nil)
	addListing(t, s, p.ID, "Napa", "1.00", 10)

	require.NoError(t, s.DeleteAccount(ctx, p.OwnerID))

	_, err := s.PharmacyByOwner(ctx, p.OwnerID)
	assert.ErrorIs(t, err, ErrNotFound)
	n, err := s.CountListings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestApprovedLocations(t *testing.T) {
	s := newTestStore(t)
	seedPharmacy(t, s, "located", true, ptr(23.7), ptr(90.4))
	seedPharmacy(t, s, "nolat", true, nil, ptr(90.4))
	seedPharmacy(t, s, "nolng", true, ptr(23.7), nil)
	seedPharmacy(t, s, "pending", false, ptr(23.8), ptr(90.5))

	locs, err := s.ApprovedLocations(context.Background())
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, domain.PharmacyLocation{Name: "located pharmacy", Latitude: 23.7, Longitude: 90.4, Address: "1 Main St"}, locs[0])
}

func TestSavePharmacyOnePerOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedPharmacy(t, s, "alpha", false, nil, nil)

	p.Name = "Alpha Drugs"
	updated, err := s.SavePharmacy(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, p.ID, updated.ID)
	assert.Equal(t, "Alpha Drugs", updated.Name)

	require.NoError(t, s.UpdateLocation(ctx, p.OwnerID, ptr(1.5), ptr(2.5)))
	got, err := s.PharmacyByOwner(ctx, p.OwnerID)
	require.NoError(t, err)
	assert.True(t, got.Located())
	assert.ErrorIs(t, s.UpdateLocation(ctx, 4242, ptr(1.0), ptr(1.0)), ErrNotFound)
}

func TestAccounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateAccount(ctx, domain.Account{Username: "rahim", Email: "Rahim@Example.com", PasswordHash: "h", Role: domain.RolePharmacy})
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, domain.Account{Username: "rahim", Email: "other@example.com", PasswordHash: "h", Role: domain.RoleUser})
	assert.ErrorIs(t, err, ErrDuplicate)

	byEmail, err := s.AccountByLogin(ctx, "RAHIM@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, byEmail.ID)
	assert.Equal(t, "rahim@example.com", byEmail.Email)
	assert.False(t, byEmail.IsApproved)

	pending, err := s.PendingPharmacies(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Nil(t, pending[0].PharmacyName)

	require.NoError(t, s.SetApproved(ctx, id))
	a, err := s.AccountByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, a.IsApproved)
	assert.ErrorIs(t, s.SetApproved(ctx, 999), ErrNotFound)

	pending, err = s.PendingPharmacies(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = s.AccountByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiringListings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedPharmacy(t, s, "alpha", true, nil, nil)
	m, _, err := s.UpsertMedicine(ctx, "Napa", "")
	require.NoError(t, err)

	soon := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	far := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, f := range []ListingFields{
		{MedicineID: m.ID, Price: decimal.NewFromInt(1), Quantity: 5, ExpiryDate: &far},
		{MedicineID: m.ID, Price: decimal.NewFromInt(1), Quantity: 5, ExpiryDate: &soon},
		{MedicineID: m.ID, Price: decimal.NewFromInt(1), Quantity: 0, ExpiryDate: &soon},
		{MedicineID: m.ID, Price: decimal.NewFromInt(1), Quantity: 5},
	} {
		_, err := s.InsertListing(ctx, p.ID, f)
		require.NoError(t, err)
	}

	rows, err := s.ExpiringListings(ctx, p.ID, fixedNow.AddDate(0, 0, 30))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, soon.Equal(rows[0].ExpiryDate.UTC()))
}

func TestSearchMedicines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, m := range [][2]string{{"Napa", "Paracetamol"}, {"Ace", "Paracetamol"}, {"Seclo", "Omeprazole"}} {
		_, _, err := s.UpsertMedicine(ctx, m[0], m[1])
		require.NoError(t, err)
	}

	got, err := s.SearchMedicines(ctx, "PARA", 25)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Ace", got[0].Name)

	all, err := s.SearchMedicines(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestWithTxRollsBackCatalogEntryWhenListingFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("listing write failed")
	err := s.WithTx(ctx, func(tx *Store) error {
		if _, _, err := tx.UpsertMedicine(ctx, "Orphan", "Nothing"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.MedicineByName(ctx, "Orphan")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithTxRollbackOnDriverError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	s := New(sqlx.NewDb(mockDB, "sqlmock"))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO medicines`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT id, name, generic_name FROM medicines`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "generic_name"}).AddRow(1, "Napa", nil))
	mock.ExpectQuery(`INSERT INTO listings`).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	ctx := context.Background()
	err = s.WithTx(ctx, func(tx *Store) error {
		m, _, err := tx.UpsertMedicine(ctx, "Napa", "")
		if err != nil {
			return err
		}
		_, err = tx.InsertListing(ctx, 7, ListingFields{MedicineID: m.ID, Price: decimal.NewFromInt(1), Quantity: 1})
		return err
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}
