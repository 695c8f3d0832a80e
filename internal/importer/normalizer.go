package importer

import (
	"fmt"
	"strconv"
	"strings"

	"product-importer/internal/models"
)

// RowDefect records a value that had to be coerced to a default.
type RowDefect struct {
	Column string
	Reason string
}

// NormalizeHeader lower-cases and trims a raw CSV header cell so column
// lookup is insensitive to casing and padding.
func NormalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

// NormalizeRow turns a header-keyed row into an always-usable product
// candidate. Imports are permissive: a malformed cell never rejects the
// row, it falls back to a default and is reported as a defect.
//
// Defaults: price 0 when absent, unparsable or negative; active true when
// absent or unparsable; a missing name is stored as the empty string.
func NormalizeRow(row map[string]string) (*models.Product, []RowDefect) {
	var defects []RowDefect

	sku := models.NormalizeSKU(row["sku"])
	if sku == "" {
		defects = append(defects, RowDefect{
			Column: "sku",
			Reason: "missing value, row has no upsert key",
		})
	}

	name := strings.TrimSpace(row["name"])
	if name == "" {
		defects = append(defects, RowDefect{
			Column: "name",
			Reason: "missing value, stored empty",
		})
	}

	price := 0.0
	if raw, ok := row["price"]; ok && strings.TrimSpace(raw) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		switch {
		case err != nil:
			defects = append(defects, RowDefect{
				Column: "price",
				Reason: fmt.Sprintf("unparsable value %q, defaulted to 0", raw),
			})
		case parsed < 0:
			defects = append(defects, RowDefect{
				Column: "price",
				Reason: fmt.Sprintf("negative value %q, defaulted to 0", raw),
			})
		default:
			price = parsed
		}
	}

	active := true
	if raw, ok := row["active"]; ok && strings.TrimSpace(raw) != "" {
		parsed, err := parseBool(raw)
		if err != nil {
			defects = append(defects, RowDefect{
				Column: "active",
				Reason: fmt.Sprintf("unparsable value %q, defaulted to true", raw),
			})
		} else {
			active = parsed
		}
	}

	product := &models.Product{
		SKU:         sku,
		Name:        name,
		Description: strings.TrimSpace(row["description"]),
		Price:       price,
		Active:      active,
	}
	return product, defects
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "t", "yes", "y", "1":
		return true, nil
	case "false", "f", "no", "n", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}
