package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerstack/ledgerstack/internal/common"
)

// Projection is a category-specific record written exactly once when an
// extraction reaches VERIFIED. Implementations insert themselves and their
// line items inside the finalize transaction.
type Projection interface {
	insertTx(ctx context.Context, tx *sql.Tx, ownerID, extractionID uuid.UUID, now time.Time) error
}

// ReceiptItem is one purchased line on a receipt.
type ReceiptItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity,omitempty"`
	UnitPrice   string `json:"unit_price,omitempty"`
	Amount      string `json:"amount"`
}

// ReceiptRecord is the verified projection for the receipts category.
type ReceiptRecord struct {
	MerchantName string        `json:"merchant_name"`
	TxDate       string        `json:"tx_date"` // YYYY-MM-DD
	CurrencyCode string        `json:"currency_code"`
	Subtotal     string        `json:"subtotal,omitempty"`
	Tax          string        `json:"tax,omitempty"`
	Total        string        `json:"total"`
	Items        []ReceiptItem `json:"items,omitempty"`
}

func (r *ReceiptRecord) insertTx(ctx context.Context, tx *sql.Tx, ownerID, extractionID uuid.UUID, now time.Time) error {
	recID := uuid.New()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO receipts (id, owner_id, extraction_id, merchant_name, tx_date, currency_code, subtotal, tax, total, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		recID.String(), ownerID.String(), extractionID.String(),
		r.MerchantName, r.TxDate, r.CurrencyCode, r.Subtotal, r.Tax, r.Total, now)
	if err != nil {
		return err
	}
	for _, it := range r.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO receipt_items (id, receipt_id, description, quantity, unit_price, amount)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New().String(), recID.String(), it.Description, it.Quantity, it.UnitPrice, it.Amount)
		if err != nil {
			return err
		}
	}
	return nil
}

// InvoiceItem is one billed line on an invoice.
type InvoiceItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity,omitempty"`
	UnitPrice   string `json:"unit_price,omitempty"`
	Amount      string `json:"amount"`
}

// InvoiceRecord is the verified projection for the invoices category.
type InvoiceRecord struct {
	VendorName    string        `json:"vendor_name"`
	InvoiceNumber string        `json:"invoice_number"`
	IssueDate     string        `json:"issue_date"` // YYYY-MM-DD
	DueDate       string        `json:"due_date,omitempty"`
	CurrencyCode  string        `json:"currency_code"`
	Total         string        `json:"total"`
	Items         []InvoiceItem `json:"items,omitempty"`
}

func (r *InvoiceRecord) insertTx(ctx context.Context, tx *sql.Tx, ownerID, extractionID uuid.UUID, now time.Time) error {
	recID := uuid.New()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO invoices (id, owner_id, extraction_id, vendor_name, invoice_number, issue_date, due_date, currency_code, total, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		recID.String(), ownerID.String(), extractionID.String(),
		r.VendorName, r.InvoiceNumber, r.IssueDate, r.DueDate, r.CurrencyCode, r.Total, now)
	if err != nil {
		return err
	}
	for _, it := range r.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO invoice_items (id, invoice_id, description, quantity, unit_price, amount)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New().String(), recID.String(), it.Description, it.Quantity, it.UnitPrice, it.Amount)
		if err != nil {
			return err
		}
	}
	return nil
}

// StatementEntry is one transaction line on a card statement.
type StatementEntry struct {
	TxDate      string `json:"tx_date"` // YYYY-MM-DD
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

// CardStatementRecord is the verified projection for the credit card
// statements category.
type CardStatementRecord struct {
	Issuer       string           `json:"issuer"`
	CardLast4    string           `json:"card_last4,omitempty"`
	PeriodStart  string           `json:"period_start"` // YYYY-MM-DD
	PeriodEnd    string           `json:"period_end"`   // YYYY-MM-DD
	CurrencyCode string           `json:"currency_code"`
	TotalDue     string           `json:"total_due"`
	Entries      []StatementEntry `json:"entries,omitempty"`
}

func (r *CardStatementRecord) insertTx(ctx context.Context, tx *sql.Tx, ownerID, extractionID uuid.UUID, now time.Time) error {
	recID := uuid.New()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO card_statements (id, owner_id, extraction_id, issuer, card_last4, period_start, period_end, currency_code, total_due, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		recID.String(), ownerID.String(), extractionID.String(),
		r.Issuer, r.CardLast4, r.PeriodStart, r.PeriodEnd, r.CurrencyCode, r.TotalDue, now)
	if err != nil {
		return err
	}
	for _, e := range r.Entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO statement_entries (id, statement_id, tx_date, description, amount)
			 VALUES ($1, $2, $3, $4, $5)`,
			uuid.New().String(), recID.String(), e.TxDate, e.Description, e.Amount)
		if err != nil {
			return err
		}
	}
	return nil
}

// ReceiptRow is a verified receipt as read back for listing/export.
type ReceiptRow struct {
	ID           uuid.UUID
	ExtractionID uuid.UUID
	MerchantName string
	TxDate       string
	CurrencyCode string
	Subtotal     string
	Tax          string
	Total        string
	ItemCount    int
	CreatedAt    time.Time
}

// InvoiceRow is a verified invoice as read back for listing/export.
type InvoiceRow struct {
	ID            uuid.UUID
	ExtractionID  uuid.UUID
	VendorName    string
	InvoiceNumber string
	IssueDate     string
	DueDate       string
	CurrencyCode  string
	Total         string
	ItemCount     int
	CreatedAt     time.Time
}

// StatementRow is a verified card statement as read back for listing/export.
type StatementRow struct {
	ID           uuid.UUID
	ExtractionID uuid.UUID
	Issuer       string
	CardLast4    string
	PeriodStart  string
	PeriodEnd    string
	CurrencyCode string
	TotalDue     string
	EntryCount   int
	CreatedAt    time.Time
}

// DateRange bounds a listing by the record's primary date (transaction date,
// issue date or period start). Dates are YYYY-MM-DD strings, which compare
// correctly as text; an empty bound is open.
type DateRange struct {
	From string
	To   string
}

// RecordRepository reads back verified projections.
type RecordRepository interface {
	ListReceipts(ctx context.Context, ownerID uuid.UUID, rng DateRange) ([]*ReceiptRow, error)
	ListInvoices(ctx context.Context, ownerID uuid.UUID, rng DateRange) ([]*InvoiceRow, error)
	ListStatements(ctx context.Context, ownerID uuid.UUID, rng DateRange) ([]*StatementRow, error)
}

type recordRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewRecordRepository(db *sql.DB, log *slog.Logger) RecordRepository {
	if log == nil {
		log = slog.Default()
	}
	return &recordRepo{db: db, log: log}
}

func (r *recordRepo) ListReceipts(ctx context.Context, ownerID uuid.UUID, rng DateRange) ([]*ReceiptRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.extraction_id, r.merchant_name, r.tx_date, r.currency_code, r.subtotal, r.tax, r.total,
		        (SELECT COUNT(*) FROM receipt_items i WHERE i.receipt_id = r.id), r.created_at
		 FROM receipts r
		 WHERE r.owner_id = $1 AND ($2 = '' OR r.tx_date >= $2) AND ($3 = '' OR r.tx_date <= $3)
		 ORDER BY r.tx_date`,
		ownerID.String(), rng.From, rng.To)
	if err != nil {
		r.log.Error("list receipts failed", "owner_id", ownerID, "err", err)
		return nil, common.WrapError(err, "list receipts")
	}
	defer rows.Close()

	var out []*ReceiptRow
	for rows.Next() {
		var (
			rec             ReceiptRow
			idStr, extIDStr string
		)
		if err := rows.Scan(&idStr, &extIDStr, &rec.MerchantName, &rec.TxDate, &rec.CurrencyCode,
			&rec.Subtotal, &rec.Tax, &rec.Total, &rec.ItemCount, &rec.CreatedAt); err != nil {
			return nil, common.WrapError(err, "scan receipt")
		}
		if rec.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		if rec.ExtractionID, err = uuid.Parse(extIDStr); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *recordRepo) ListInvoices(ctx context.Context, ownerID uuid.UUID, rng DateRange) ([]*InvoiceRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT v.id, v.extraction_id, v.vendor_name, v.invoice_number, v.issue_date, v.due_date, v.currency_code, v.total,
		        (SELECT COUNT(*) FROM invoice_items i WHERE i.invoice_id = v.id), v.created_at
		 FROM invoices v
		 WHERE v.owner_id = $1 AND ($2 = '' OR v.issue_date >= $2) AND ($3 = '' OR v.issue_date <= $3)
		 ORDER BY v.issue_date`,
		ownerID.String(), rng.From, rng.To)
	if err != nil {
		r.log.Error("list invoices failed", "owner_id", ownerID, "err", err)
		return nil, common.WrapError(err, "list invoices")
	}
	defer rows.Close()

	var out []*InvoiceRow
	for rows.Next() {
		var (
			rec             InvoiceRow
			idStr, extIDStr string
		)
		if err := rows.Scan(&idStr, &extIDStr, &rec.VendorName, &rec.InvoiceNumber, &rec.IssueDate,
			&rec.DueDate, &rec.CurrencyCode, &rec.Total, &rec.ItemCount, &rec.CreatedAt); err != nil {
			return nil, common.WrapError(err, "scan invoice")
		}
		if rec.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		if rec.ExtractionID, err = uuid.Parse(extIDStr); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *recordRepo) ListStatements(ctx context.Context, ownerID uuid.UUID, rng DateRange) ([]*StatementRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.extraction_id, s.issuer, s.card_last4, s.period_start, s.period_end, s.currency_code, s.total_due,
		        (SELECT COUNT(*) FROM statement_entries e WHERE e.statement_id = s.id), s.created_at
		 FROM card_statements s
		 WHERE s.owner_id = $1 AND ($2 = '' OR s.period_start >= $2) AND ($3 = '' OR s.period_start <= $3)
		 ORDER BY s.period_start`,
		ownerID.String(), rng.From, rng.To)
	if err != nil {
		r.log.Error("list statements failed", "owner_id", ownerID, "err", err)
		return nil, common.WrapError(err, "list statements")
	}
	defer rows.Close()

	var out []*StatementRow
	for rows.Next() {
		var (
			rec             StatementRow
			idStr, extIDStr string
		)
		if err := rows.Scan(&idStr, &extIDStr, &rec.Issuer, &rec.CardLast4, &rec.PeriodStart,
			&rec.PeriodEnd, &rec.CurrencyCode, &rec.TotalDue, &rec.EntryCount, &rec.CreatedAt); err != nil {
			return nil, common.WrapError(err, "scan statement")
		}
		if rec.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		if rec.ExtractionID, err = uuid.Parse(extIDStr); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
