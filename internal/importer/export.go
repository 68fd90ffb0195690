package importer

import (
	"encoding/csv"
	"io"

	"ledger/internal/core"
)

func headerRow() []string {
	out := make([]string, len(CanonicalFields))
	for i, f := range CanonicalFields {
		out[i] = string(f)
	}
	return out
}

// WriteTemplate writes the canonical header row only.
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headerRow()); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV writes transactions with the canonical headers so the output can
// be fed back to Parse. categoryNames resolves category ids to names.
func WriteCSV(w io.Writer, txs []core.Transaction, categoryNames map[int64]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headerRow()); err != nil {
		return err
	}
	for _, tx := range txs {
		var category string
		if tx.CategoryID != nil {
			category = categoryNames[*tx.CategoryID]
		}
		rec := []string{
			string(tx.Type),
			tx.Date.String(),
			tx.Period.String(),
			tx.Description,
			core.FormatAmount(tx.Amount),
			category,
			string(tx.CategoryKind),
			string(tx.Currency),
			tx.Source,
			string(tx.RecurrenceType),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
