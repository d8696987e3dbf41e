package store

import (
	"context"
	"fmt"
	"strings"

	"medlocator/m/domain"
)

// UpsertMedicine resolves the catalog entry for name, creating it when absent.
// When the entry already existed and genericName is non-empty the stored
// generic name is overwritten. created reports whether a row was inserted.
//
// The insert uses ON CONFLICT DO NOTHING so concurrent first-time creations of
// the same name converge on one row.
func (s *Store) UpsertMedicine(ctx context.Context, name, genericName string) (m domain.Medicine, created bool, err error) {
	var generic *string
	if genericName != "" {
		generic = &genericName
	}
	n, err := s.exec(ctx, `INSERT INTO medicines (name, generic_name) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`, name, generic)
	if err != nil {
		return domain.Medicine{}, false, fmt.Errorf("insert medicine: %w", err)
	}
	created = n > 0

	if err := s.get(ctx, &m, `SELECT id, name, generic_name FROM medicines WHERE name = ?`, name); err != nil {
		return domain.Medicine{}, false, notFound(err, "medicine")
	}
	if created || genericName == "" || m.Generic() == genericName {
		return m, created, nil
	}

	if _, err := s.exec(ctx, `UPDATE medicines SET generic_name = ? WHERE id = ?`, genericName, m.ID); err != nil {
		return domain.Medicine{}, false, fmt.Errorf("update generic name: %w", err)
	}
	m.GenericName = &genericName
	return m, false, nil
}

// MedicineByName loads a catalog entry by exact name.
func (s *Store) MedicineByName(ctx context.Context, name string) (domain.Medicine, error) {
	var m domain.Medicine
	err := s.get(ctx, &m, `SELECT id, name, generic_name FROM medicines WHERE name = ?`, name)
	return m, notFound(err, "medicine")
}

// CountMedicines returns the number of catalog entries.
func (s *Store) CountMedicines(ctx context.Context) (int, error) {
	var n int
	if err := s.get(ctx, &n, `SELECT COUNT(*) FROM medicines`); err != nil {
		return 0, fmt.Errorf("count medicines: %w", err)
	}
	return n, nil
}

// SearchMedicines looks up catalog entries whose name or generic name contains
// query, case-insensitively. An empty query lists the first entries by name.
func (s *Store) SearchMedicines(ctx context.Context, query string, limit int) ([]domain.Medicine, error) {
	medicines := []domain.Medicine{}
	query = strings.TrimSpace(query)
	var err error
	if query == "" {
		err = s.selectAll(ctx, &medicines, `SELECT id, name, generic_name FROM medicines ORDER BY name LIMIT ?`, limit)
	} else {
		like, exact := likePattern(query)
		stmt := `SELECT id, name, generic_name FROM medicines
			WHERE LOWER(name) LIKE ? ESCAPE '\' OR LOWER(COALESCE(generic_name, '')) LIKE ? ESCAPE '\'
			ORDER BY name`
		args := []any{like, like}
		// Inexact patterns over-match, so the limit is applied after filtering.
		if exact {
			stmt += ` LIMIT ?`
			args = append(args, limit)
		}
		err = s.selectAll(ctx, &medicines, stmt, args...)
		if err == nil && !exact {
			medicines = filterMedicines(medicines, query, limit)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("search medicines: %w", err)
	}
	return medicines, nil
}

func filterMedicines(medicines []domain.Medicine, query string, limit int) []domain.Medicine {
	matched := medicines[:0]
	for _, m := range medicines {
		if len(matched) == limit {
			break
		}
		if matchesQuery(query, m.Name, m.Generic()) {
			matched = append(matched, m)
		}
	}
	return matched
}

// InsertMedicineIfAbsent adds a catalog entry unless the name already exists.
// Existing entries are left untouched.
func (s *Store) InsertMedicineIfAbsent(ctx context.Context, name, genericName string) (bool, error) {
	var generic *string
	if genericName != "" {
		generic = &genericName
	}
	n, err := s.exec(ctx, `INSERT INTO medicines (name, generic_name) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`, name, generic)
	if err != nil {
		return false, fmt.Errorf("insert medicine %s: %w", name, err)
	}
	return n > 0, nil
}
