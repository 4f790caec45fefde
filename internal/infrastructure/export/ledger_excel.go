package export

import (
	"context"
	"fmt"
	"io"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const ledgerSheet = "Ledger"

var ledgerHeader = []interface{}{
	"Entry", "Date", "Type", "Amount", "Running balance", "Trip request", "Admin request", "Created by", "Note",
}

// LedgerExcel renders a budget owner's ledger as an XLSX workbook
type LedgerExcel struct {
	places int32
	logger *zap.Logger
}

// NewLedgerExcel creates a ledger exporter rounding money to places decimals
func NewLedgerExcel(places int32, logger *zap.Logger) *LedgerExcel {
	if places <= 0 {
		places = 2
	}
	return &LedgerExcel{places: places, logger: logger}
}

var _ port.LedgerExporter = (*LedgerExcel)(nil)

// Export writes one sheet with a title row, a header row and one row per entry
func (e *LedgerExcel) Export(ctx context.Context, owner port.LedgerOwner, entries []*entity.BudgetHistoryEntry, w io.Writer) error {
	e.logger.Info("Exporting ledger",
		zap.String("owner_kind", string(owner.Kind)),
		zap.Int64("owner_id", owner.ID),
		zap.Int("entries", len(entries)))

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ledgerSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	title := fmt.Sprintf("%s %d: %s", owner.Kind, owner.ID, owner.Name)
	e.setCell(f, "A1", title)

	if err := f.SetSheetRow(ledgerSheet, "A3", &ledgerHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return fmt.Errorf("failed to resolve row %d: %w", i, err)
		}

		row := []interface{}{
			entry.ID,
			entry.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			string(entry.TransactionType),
			entry.Amount.StringFixed(e.places),
			entry.RunningBalance.StringFixed(e.places),
			optionalID(entry.TripRequestID),
			optionalID(entry.AdminRequestID),
			entry.CreatedBy,
			entry.Note,
		}
		if err := f.SetSheetRow(ledgerSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write entry %d: %w", entry.ID, err)
		}
	}

	if len(entries) > 0 {
		last := entries[len(entries)-1]
		summary, _ := excelize.CoordinatesToCellName(4, len(entries)+5)
		e.setCell(f, summary, "Closing balance")
		closing, _ := excelize.CoordinatesToCellName(5, len(entries)+5)
		e.setCell(f, closing, last.RunningBalance.StringFixed(e.places))
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// setCell sets a cell value in the ledger sheet
func (e *LedgerExcel) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(ledgerSheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func optionalID(id *int64) interface{} {
	if id == nil {
		return ""
	}
	return *id
}
