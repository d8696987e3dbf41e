package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"medlocator/m/internal/store"
)

// LoadMedicinesFile ingests a catalog CSV file. A missing file is logged and
// skipped.
func LoadMedicinesFile(ctx context.Context, s *store.Store, csvPath string, logger *zap.Logger) (int, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		logger.Warn("unable to load medicine catalog", zap.String("path", csvPath), zap.Error(err))
		return 0, nil
	}
	defer file.Close()
	return LoadMedicines(ctx, s, file, logger)
}

// LoadMedicines ingests catalog rows, ignoring names already present. The
// header must name a "name" or "brand name" column; a "generic" or
// "generic name" column is optional.
func LoadMedicines(ctx context.Context, s *store.Store, r io.Reader, logger *zap.Logger) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("unable to read medicine header: %w", err)
	}
	nameCol, genericCol := columns(header)
	if nameCol < 0 {
		return 0, errors.New("medicine header has no name column")
	}

	rows := 0
	err = s.WithTx(ctx, func(tx *store.Store) error {
		for {
			record, err := reader.Read()
			if err == io.EOF {
				return nil
			}
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				logger.Warn("skipping malformed medicine row", zap.Error(err))
				continue
			}
			if err != nil {
				return fmt.Errorf("read medicine row: %w", err)
			}
			if nameCol >= len(record) {
				continue
			}
			name := strings.TrimSpace(record[nameCol])
			if name == "" {
				continue
			}
			generic := ""
			if genericCol >= 0 && genericCol < len(record) {
				generic = strings.TrimSpace(record[genericCol])
			}
			inserted, err := tx.InsertMedicineIfAbsent(ctx, name, generic)
			if err != nil {
				return err
			}
			if inserted {
				rows++
			}
		}
	})
	if err != nil {
		return 0, fmt.Errorf("unable to seed medicine catalog: %w", err)
	}
	logger.Info("seeded medicine catalog", zap.Int("rows", rows))
	return rows, nil
}

func columns(header []string) (name, generic int) {
	name, generic = -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(h), "_", " ")) {
		case "name", "brand name", "medicine name":
			if name < 0 {
				name = i
			}
		case "generic", "generic name":
			if generic < 0 {
				generic = i
			}
		}
	}
	return name, generic
}
