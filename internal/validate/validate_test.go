package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/engine/constants"
	"github.com/docuflow/engine/internal/entity"
)

var receiptSchema = []entity.FieldSpec{
	{Name: "vendor_name", Type: entity.FieldText},
	{Name: "subtotal", Type: entity.FieldCurrency},
	{Name: "tax_amount", Type: entity.FieldCurrency},
	{Name: "total", Type: entity.FieldCurrency},
}

func TestCheck_SubtotalPlusTaxMatches(t *testing.T) {
	fields := map[string]any{
		"vendor_name": "Acme Corp",
		"subtotal":    100.0,
		"tax_amount":  8.25,
		"total":       108.25,
	}
	report := Check(fields, nil, receiptSchema)
	assert.Equal(t, constants.ValidationValid, report.Status)
	assert.Empty(t, report.Errors)
	assert.InDelta(t, 1.0, report.Confidence, 0.001)
}

func TestCheck_LineItemsMismatch(t *testing.T) {
	fields := map[string]any{
		"vendor_name": "Acme Corp",
		"subtotal":    0.0,
		"tax_amount":  10.0,
		"total":       500.0,
	}
	items := []entity.LineItem{{Description: "consulting", Amount: 100.0}}
	report := Check(fields, items, receiptSchema)
	require.Equal(t, constants.ValidationNeedsReview, report.Status)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "arithmetic mismatch")
	assert.Contains(t, report.Errors[0], "110.00")
	assert.Contains(t, report.Errors[0], "500.00")
}

func TestCheck_TaxLineItemNotDoubleCounted(t *testing.T) {
	fields := map[string]any{
		"vendor_name": "Acme Corp",
		"subtotal":    0.0,
		"tax_amount":  8.25,
		"total":       108.25,
	}
	items := []entity.LineItem{
		{Description: "widgets", Amount: 100.0},
		{Description: "Tax", Amount: 8.25},
	}
	report := Check(fields, items, receiptSchema)
	assert.Equal(t, constants.ValidationValid, report.Status)
}

func TestCheck_EpsilonTolerance(t *testing.T) {
	fields := map[string]any{
		"vendor_name": "Acme Corp",
		"subtotal":    100.0,
		"tax_amount":  8.25,
		"total":       108.255, // off by half a cent
	}
	report := Check(fields, nil, receiptSchema)
	assert.Equal(t, constants.ValidationValid, report.Status, "differences within epsilon pass")

	fields["total"] = 108.30
	report = Check(fields, nil, receiptSchema)
	assert.Equal(t, constants.ValidationNeedsReview, report.Status)
}

func TestCheck_MissingVendor(t *testing.T) {
	fields := map[string]any{
		"vendor_name": "",
		"subtotal":    100.0,
		"tax_amount":  8.25,
		"total":       108.25,
	}
	report := Check(fields, nil, receiptSchema)
	require.Equal(t, constants.ValidationNeedsReview, report.Status)
	assert.Contains(t, report.Errors[0], "vendor_name")
}

func TestCheck_MissingTotal(t *testing.T) {
	fields := map[string]any{
		"vendor_name": "Acme Corp",
		"subtotal":    0.0,
		"tax_amount":  0.0,
		"total":       0.0,
	}
	report := Check(fields, nil, receiptSchema)
	require.Equal(t, constants.ValidationNeedsReview, report.Status)
	assert.Contains(t, report.Errors[0], "total")
}

func TestCheck_NoFinancialFieldsSkipsArithmetic(t *testing.T) {
	schema := []entity.FieldSpec{
		{Name: "author", Type: entity.FieldText},
		{Name: "title", Type: entity.FieldText},
	}
	fields := map[string]any{"author": "someone", "title": "something"}
	report := Check(fields, nil, schema)
	assert.Equal(t, constants.ValidationValid, report.Status)
}

func TestCheck_ConfidencePenalty(t *testing.T) {
	fields := map[string]any{
		"vendor_name": "",
		"subtotal":    0.0,
		"tax_amount":  0.0,
		"total":       0.0,
	}
	report := Check(fields, nil, receiptSchema)
	// nothing filled, two findings: 0 - 0.2 floors at 0
	assert.Equal(t, float32(0), report.Confidence)
}

func TestCheck_ConfidenceReflectsFill(t *testing.T) {
	fields := map[string]any{
		"vendor_name": "Acme Corp",
		"subtotal":    0.0,
		"tax_amount":  0.0,
		"total":       108.25,
	}
	items := []entity.LineItem{{Description: "svc", Amount: 50.0}}
	report := Check(fields, items, receiptSchema)
	require.Equal(t, constants.ValidationNeedsReview, report.Status)
	// 2 of 4 filled minus one finding's penalty
	assert.InDelta(t, 0.4, report.Confidence, 0.001)
}
