package ledger

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/emilsk/kasa/pkg/models"
)

var csvHeader = []string{
	"id", "date", "amount", "currency", "counterparty",
	"raw_description", "category", "hidden", "category_is_override", "notes",
}

// MarshalCSV serializes the ledger as one tabular snapshot, one row per
// transaction, sorted by ID. The format round-trips exactly through
// UnmarshalCSV.
func (l *Ledger) MarshalCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, tx := range l.Snapshot().Transactions {
		row := []string{
			tx.ID,
			tx.Date.UTC().Format(time.RFC3339),
			strconv.FormatInt(tx.Amount, 10),
			tx.Currency,
			tx.Counterparty,
			tx.RawDescription,
			tx.Category,
			strconv.FormatBool(tx.Hidden),
			strconv.FormatBool(tx.CategoryIsOverride),
			tx.Notes,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// UnmarshalCSV rebuilds a ledger from a tabular snapshot produced by
// MarshalCSV.
func UnmarshalCSV(data []byte) (*Ledger, error) {
	r := csv.NewReader(bytes.NewReader(data))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ledger snapshot: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("ledger snapshot: missing header")
	}

	l := New()
	for i, row := range rows[1:] {
		if len(row) != len(csvHeader) {
			return nil, fmt.Errorf("ledger snapshot: row %d has %d fields, want %d", i+2, len(row), len(csvHeader))
		}

		date, err := time.Parse(time.RFC3339, row[1])
		if err != nil {
			return nil, fmt.Errorf("ledger snapshot: row %d: %w", i+2, err)
		}
		amount, err := strconv.ParseInt(row[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ledger snapshot: row %d: %w", i+2, err)
		}
		hidden, err := strconv.ParseBool(row[7])
		if err != nil {
			return nil, fmt.Errorf("ledger snapshot: row %d: %w", i+2, err)
		}
		override, err := strconv.ParseBool(row[8])
		if err != nil {
			return nil, fmt.Errorf("ledger snapshot: row %d: %w", i+2, err)
		}

		l.txs[row[0]] = &models.Transaction{
			ID:                 row[0],
			Date:               date.UTC(),
			Amount:             amount,
			Currency:           row[3],
			Counterparty:       row[4],
			RawDescription:     row[5],
			Category:           row[6],
			Hidden:             hidden,
			CategoryIsOverride: override,
			Notes:              row[9],
		}
		if l.currency == "" {
			l.currency = row[3]
		}
	}
	return l, nil
}
