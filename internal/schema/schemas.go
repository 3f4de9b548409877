package schema

func buildReceiptSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"merchant_name": map[string]any{"type": "string", "minLength": 1},
			"tx_date":       dateProp(),
			"currency_code": currencyProp(),
			"subtotal":      decimalProp(),
			"tax":           decimalProp(),
			"total":         decimalProp(),
			"items":         lineItems(),
		},
		"required": []string{"merchant_name", "tx_date", "total", "currency_code"},
	}
}

func buildInvoiceSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"vendor_name":    map[string]any{"type": "string", "minLength": 1},
			"invoice_number": map[string]any{"type": "string", "minLength": 1},
			"issue_date":     dateProp(),
			"due_date":       dateProp(),
			"currency_code":  currencyProp(),
			"total":          decimalProp(),
			"items":          lineItems(),
		},
		"required": []string{"vendor_name", "invoice_number", "issue_date", "total", "currency_code"},
	}
}

func buildCardStatementSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"issuer":        map[string]any{"type": "string", "minLength": 1},
			"card_last4":    map[string]any{"type": "string", "minLength": 4, "maxLength": 4, "pattern": `^\d{4}$`},
			"period_start":  dateProp(),
			"period_end":    dateProp(),
			"currency_code": currencyProp(),
			"total_due":     decimalProp(),
			"entries": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"tx_date":     dateProp(),
						"description": map[string]any{"type": "string", "minLength": 1},
						"amount":      decimalProp(),
					},
					"required": []string{"tx_date", "description", "amount"},
				},
			},
		},
		"required": []string{"issuer", "period_start", "period_end", "total_due", "currency_code"},
	}
}

func lineItems() map[string]any {
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"description": map[string]any{"type": "string", "minLength": 1},
				"quantity":    decimalProp(),
				"unit_price":  decimalProp(),
				"amount":      decimalProp(),
			},
			"required": []string{"description", "amount"},
		},
	}
}

func dateProp() map[string]any {
	return map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`}
}

func currencyProp() map[string]any {
	return map[string]any{"type": "string", "minLength": 3, "maxLength": 3}
}

func decimalProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^-?\d+(\.\d{1,2})?$`, // allow negatives for credits
	}
}
