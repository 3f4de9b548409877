package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerstack/ledgerstack/constants"
	"github.com/ledgerstack/ledgerstack/internal/repository"
)

func TestRegistryCoversAllCategories(t *testing.T) {
	for _, cat := range constants.AllCategories() {
		e, ok := Get(cat)
		require.True(t, ok, "category %s", cat)
		assert.Equal(t, cat, e.Category)
		assert.NotEmpty(t, e.SchemaMap)
		assert.NotNil(t, e.Decode)
	}
}

func TestGetUnknownCategory(t *testing.T) {
	_, ok := Get(constants.Category("tax returns"))
	assert.False(t, ok)
}

func TestReceiptValidation(t *testing.T) {
	e, _ := Get(constants.Receipts)

	good := `{"merchant_name":"Blue Bottle","tx_date":"2026-01-15","currency_code":"USD","total":"12.50"}`
	require.NoError(t, e.Validate(json.RawMessage(good)))

	cases := map[string]string{
		"missing total":       `{"merchant_name":"Blue Bottle","tx_date":"2026-01-15","currency_code":"USD"}`,
		"bad date format":     `{"merchant_name":"Blue Bottle","tx_date":"15/01/2026","currency_code":"USD","total":"12.50"}`,
		"numeric total":       `{"merchant_name":"Blue Bottle","tx_date":"2026-01-15","currency_code":"USD","total":12.5}`,
		"unknown property":    `{"merchant_name":"Blue Bottle","tx_date":"2026-01-15","currency_code":"USD","total":"12.50","color":"red"}`,
		"two-letter currency": `{"merchant_name":"Blue Bottle","tx_date":"2026-01-15","currency_code":"US","total":"12.50"}`,
		"not json":            `{"merchant_name":`,
	}
	for name, payload := range cases {
		assert.Error(t, e.Validate(json.RawMessage(payload)), name)
	}
}

func TestInvoiceValidation(t *testing.T) {
	e, _ := Get(constants.Invoices)

	good := `{"vendor_name":"Acme","invoice_number":"INV-9","issue_date":"2026-02-01","currency_code":"EUR","total":"250.00","items":[{"description":"consulting","quantity":"2","unit_price":"125.00","amount":"250.00"}]}`
	require.NoError(t, e.Validate(json.RawMessage(good)))

	missingNumber := `{"vendor_name":"Acme","issue_date":"2026-02-01","currency_code":"EUR","total":"250.00"}`
	assert.Error(t, e.Validate(json.RawMessage(missingNumber)))
}

func TestCardStatementValidation(t *testing.T) {
	e, _ := Get(constants.CardStatements)

	good := `{"issuer":"First Bank","card_last4":"4242","period_start":"2026-01-01","period_end":"2026-01-31","currency_code":"USD","total_due":"310.75","entries":[{"tx_date":"2026-01-10","description":"refund","amount":"-12.00"}]}`
	require.NoError(t, e.Validate(json.RawMessage(good)))

	badLast4 := `{"issuer":"First Bank","card_last4":"42","period_start":"2026-01-01","period_end":"2026-01-31","currency_code":"USD","total_due":"310.75"}`
	assert.Error(t, e.Validate(json.RawMessage(badLast4)))
}

func TestDecodeProducesProjection(t *testing.T) {
	e, _ := Get(constants.Receipts)
	proj, err := e.Decode(json.RawMessage(`{"merchant_name":"Blue Bottle","tx_date":"2026-01-15","currency_code":"USD","total":"12.50","items":[{"description":"latte","amount":"5.50"}]}`))
	require.NoError(t, err)

	rec, ok := proj.(*repository.ReceiptRecord)
	require.True(t, ok)
	assert.Equal(t, "Blue Bottle", rec.MerchantName)
	assert.Len(t, rec.Items, 1)
}

func TestSchemaMapSurvivesSerialization(t *testing.T) {
	// The schema map is sent verbatim to the extraction service; it must be
	// marshalable as-is.
	for _, cat := range constants.AllCategories() {
		e, _ := Get(cat)
		_, err := json.Marshal(e.SchemaMap)
		require.NoError(t, err, "category %s", cat)
	}
}
