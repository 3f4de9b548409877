package constants

import (
	"strings"
)

type Category string

const (
	Receipts       Category = "receipts"
	Invoices       Category = "invoices"
	CardStatements Category = "credit card statements"
)

var allCategories = []Category{
	Receipts,
	Invoices,
	CardStatements,
}

func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps a free-form label to a known category.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return "", false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"receipt":               Receipts,
		"invoice":               Invoices,
		"bill":                  Invoices,
		"card statement":        CardStatements,
		"card statements":       CardStatements,
		"credit card statement": CardStatements,
		"statement":             CardStatements,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return "", false
}
