// Package schema holds the process-wide category registry: for every document
// category, the JSON Schema its structured payload must satisfy and the
// decoder producing its verified projection. The registry is populated once at
// init and read-only afterwards; a new category is added by appending an entry
// here, never by special-casing call sites.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ledgerstack/ledgerstack/constants"
	"github.com/ledgerstack/ledgerstack/internal/repository"
)

// Entry describes one category.
type Entry struct {
	Category constants.Category
	Title    string
	// SchemaMap is the JSON-Schema (draft 2020-12 subset) sent verbatim to the
	// extraction service as the output constraint.
	SchemaMap map[string]any
	compiled  *jsonschema.Schema
	// Decode turns a schema-valid payload into the category projection.
	Decode func(data json.RawMessage) (repository.Projection, error)
}

// Validate checks data against the entry's schema.
func (e *Entry) Validate(data json.RawMessage) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := e.compiled.Validate(v); err != nil {
		return fmt.Errorf("json does not match %s schema: %w", e.Category, err)
	}
	return nil
}

var registry = map[constants.Category]*Entry{}

// Get returns the registry entry for a category.
func Get(cat constants.Category) (*Entry, bool) {
	e, ok := registry[cat]
	return e, ok
}

func init() {
	register(&Entry{
		Category:  constants.Receipts,
		Title:     "Receipt",
		SchemaMap: buildReceiptSchema(),
		Decode: func(data json.RawMessage) (repository.Projection, error) {
			var rec repository.ReceiptRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return nil, err
			}
			return &rec, nil
		},
	})
	register(&Entry{
		Category:  constants.Invoices,
		Title:     "Invoice",
		SchemaMap: buildInvoiceSchema(),
		Decode: func(data json.RawMessage) (repository.Projection, error) {
			var rec repository.InvoiceRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return nil, err
			}
			return &rec, nil
		},
	})
	register(&Entry{
		Category:  constants.CardStatements,
		Title:     "Credit Card Statement",
		SchemaMap: buildCardStatementSchema(),
		Decode: func(data json.RawMessage) (repository.Projection, error) {
			var rec repository.CardStatementRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return nil, err
			}
			return &rec, nil
		},
	})
}

func register(e *Entry) {
	e.compiled = mustCompile(e.SchemaMap)
	registry[e.Category] = e
}

func mustCompile(schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("marshal schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add schema: %v", err))
	}
	s, err := compiler.Compile("schema.json")
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return s
}
