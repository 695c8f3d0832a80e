package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRowDefaults(t *testing.T) {
	product, defects := NormalizeRow(map[string]string{
		"sku":  "  tsh-001 ",
		"name": "Blue Tee",
	})
	assert.Empty(t, defects)
	assert.Equal(t, "TSH-001", product.SKU)
	assert.Equal(t, "Blue Tee", product.Name)
	assert.Equal(t, 0.0, product.Price)
	assert.True(t, product.Active)
}

func TestNormalizeRowBadPriceFallsBackToZero(t *testing.T) {
	product, defects := NormalizeRow(map[string]string{
		"sku":   "SKU-1",
		"name":  "One",
		"price": "not-a-number",
	})
	assert.Equal(t, 0.0, product.Price)
	assert.Len(t, defects, 1)
	assert.Equal(t, "price", defects[0].Column)
}

func TestNormalizeRowNegativePriceFallsBackToZero(t *testing.T) {
	product, defects := NormalizeRow(map[string]string{
		"sku":   "SKU-1",
		"name":  "One",
		"price": "-5.50",
	})
	assert.Equal(t, 0.0, product.Price)
	assert.Len(t, defects, 1)
}

func TestNormalizeRowParsesActiveVariants(t *testing.T) {
	for raw, want := range map[string]bool{
		"true": true, "TRUE": true, "yes": true, "1": true,
		"false": false, "no": false, "0": false, "N": false,
	} {
		product, defects := NormalizeRow(map[string]string{"sku": "SKU-1", "name": "One", "active": raw})
		assert.Empty(t, defects, "active=%q", raw)
		assert.Equal(t, want, product.Active, "active=%q", raw)
	}

	product, defects := NormalizeRow(map[string]string{"sku": "SKU-1", "name": "One", "active": "maybe"})
	assert.True(t, product.Active)
	assert.Len(t, defects, 1)
}

func TestNormalizeRowMissingNameStoredEmptyWithDefect(t *testing.T) {
	product, defects := NormalizeRow(map[string]string{"sku": "sku-9"})
	assert.Equal(t, "", product.Name)
	assert.Len(t, defects, 1)
	assert.Equal(t, "name", defects[0].Column)
}

func TestNormalizeRowMissingSKUSurfacedAsDefect(t *testing.T) {
	product, defects := NormalizeRow(map[string]string{"name": "Orphan"})
	assert.Equal(t, "", product.SKU)
	assert.Len(t, defects, 1)
	assert.Equal(t, "sku", defects[0].Column)
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "sku", NormalizeHeader("  SKU "))
	assert.Equal(t, "price", NormalizeHeader("Price"))
}
