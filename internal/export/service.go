package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/ledgerstack/ledgerstack/constants"
	"github.com/ledgerstack/ledgerstack/internal/common"
	"github.com/ledgerstack/ledgerstack/internal/repository"
)

// Service is a tiny façade over the record repository that produces XLSX
// bytes for exports of verified records.
type Service struct {
	records repository.RecordRepository
	logger  *slog.Logger
}

func NewService(records repository.RecordRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, logger: logger}
}

// ExportXLSX returns an XLSX workbook for one owner's verified records of the
// given category, bounded by rng on the record's primary date.
func (s *Service) ExportXLSX(ctx context.Context, ownerID uuid.UUID, category constants.Category, rng repository.DateRange) ([]byte, error) {
	start := time.Now()

	var (
		sheet   string
		headers []string
		rows    [][]any
		err     error
	)

	switch category {
	case constants.Receipts:
		sheet = "Receipts"
		headers = []string{"Transaction Date", "Merchant", "Currency", "Subtotal", "Tax", "Total", "Items"}
		var recs []*repository.ReceiptRow
		if recs, err = s.records.ListReceipts(ctx, ownerID, rng); err == nil {
			for _, r := range recs {
				rows = append(rows, []any{r.TxDate, r.MerchantName, r.CurrencyCode, r.Subtotal, r.Tax, r.Total, r.ItemCount})
			}
		}
	case constants.Invoices:
		sheet = "Invoices"
		headers = []string{"Issue Date", "Due Date", "Vendor", "Invoice #", "Currency", "Total", "Items"}
		var recs []*repository.InvoiceRow
		if recs, err = s.records.ListInvoices(ctx, ownerID, rng); err == nil {
			for _, r := range recs {
				rows = append(rows, []any{r.IssueDate, r.DueDate, r.VendorName, r.InvoiceNumber, r.CurrencyCode, r.Total, r.ItemCount})
			}
		}
	case constants.CardStatements:
		sheet = "Card Statements"
		headers = []string{"Period Start", "Period End", "Issuer", "Card", "Currency", "Total Due", "Entries"}
		var recs []*repository.StatementRow
		if recs, err = s.records.ListStatements(ctx, ownerID, rng); err == nil {
			for _, r := range recs {
				rows = append(rows, []any{r.PeriodStart, r.PeriodEnd, r.Issuer, r.CardLast4, r.CurrencyCode, r.TotalDue, r.EntryCount})
			}
		}
	default:
		return nil, common.InvalidInputErrorf("unknown category %q", category)
	}
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	f := excelize.NewFile()
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for rowIdx, vals := range rows {
		for col, v := range vals {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "B", 14)
	_ = f.SetColWidth(sheet, "C", "C", 28)
	_ = f.SetColWidth(sheet, "D", "G", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"owner_id", ownerID.String(),
		"category", string(category),
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
