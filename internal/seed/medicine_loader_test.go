package seed

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medlocator/m/internal/database"
	"medlocator/m/internal/migrations"
	"medlocator/m/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	return store.New(db)
}

const catalogCSV = `brand id,brand name,type,slug,dosage form,generic,strength,manufacturer,package
1,Napa,allopathic,napa,Tablet,Paracetamol,500 mg,Beximco,10x10
2,Seclo,allopathic,seclo,Capsule,Omeprazole,20 mg,Square,10x10
3,Napa,allopathic,napa-1,Tablet,Paracetamol,500 mg,Beximco,10x10
4,,allopathic,blank,Tablet,Nothing,1 mg,Nobody,1
5,Histacin,allopathic,histacin,Tablet,,4 mg,Jayson,10x10
`

func TestLoadMedicines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := LoadMedicines(ctx, s, strings.NewReader(catalogCSV), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	napa, err := s.MedicineByName(ctx, "Napa")
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol", napa.Generic())

	histacin, err := s.MedicineByName(ctx, "Histacin")
	require.NoError(t, err)
	assert.Nil(t, histacin.GenericName)

	// Reloading inserts nothing new.
	n, err = LoadMedicines(ctx, s, strings.NewReader(catalogCSV), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLoadMedicinesKeepsExistingGeneric(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _, err := s.UpsertMedicine(ctx, "Napa", "Acetaminophen")
	require.NoError(t, err)

	_, err = LoadMedicines(ctx, s, strings.NewReader(catalogCSV), zap.NewNop())
	require.NoError(t, err)

	napa, err := s.MedicineByName(ctx, "Napa")
	require.NoError(t, err)
	assert.Equal(t, "Acetaminophen", napa.Generic())
}

func TestLoadMedicinesRejectsHeaderWithoutName(t *testing.T) {
	s := newTestStore(t)
	_, err := LoadMedicines(context.Background(), s, strings.NewReader("id,price\n1,2\n"), zap.NewNop())
	assert.Error(t, err)
}

func TestLoadMedicinesFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := LoadMedicinesFile(ctx, s, filepath.Join(t.TempDir(), "missing.csv"), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	path := filepath.Join(t.TempDir(), "medicine.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,generic_name\nAce,Paracetamol\n"), 0o600))
	n, err = LoadMedicinesFile(ctx, s, path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestLoadMedicinesSkipsMalformedRows(t *testing.T) {
	s := newTestStore(t)
	n, err := LoadMedicines(context.Background(), s,
		strings.NewReader("name,generic\nNa\"pa,x\nSeclo,Omeprazole\n"), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLoadMedicinesStopsOnReadError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := io.MultiReader(strings.NewReader("name,generic\nNapa,Paracetamol\n"), brokenReader{})

	_, err := LoadMedicines(ctx, s, r, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")

	count, err := s.CountMedicines(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
