package parser

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/emilsk/kasa/pkg/models"
)

// ParseRevolutCSV parses a Revolut account statement export. The export is a
// header-addressed CSV; column order varies between app versions so fields
// are located by header name.
func (p *Parser) ParseRevolutCSV(data []byte) ([]models.Record, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, &ParseError{Format: string(RevolutCSV), Msg: err.Error()}
	}
	if len(rows) < 1 {
		return nil, &ParseError{Format: string(RevolutCSV), Msg: "file is empty"}
	}

	cols := map[string]int{}
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"started date", "description", "amount"} {
		if _, ok := cols[required]; !ok {
			return nil, &ParseError{Format: string(RevolutCSV), Line: 1, Msg: "missing required column " + required}
		}
	}

	field := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var records []models.Record
	for i, row := range rows[1:] {
		line := i + 2

		// Interest postings are bookkeeping noise in this export, skip them.
		if strings.EqualFold(field(row, "type"), "INTEREST") {
			continue
		}

		date, ok := parseDate(field(row, "started date"))
		if !ok {
			return nil, &ParseError{Format: string(RevolutCSV), Line: line, Msg: "malformed date " + field(row, "started date")}
		}

		description := field(row, "description")
		if description == "" {
			return nil, &ParseError{Format: string(RevolutCSV), Line: line, Msg: "missing description"}
		}

		currency := strings.ToUpper(field(row, "currency"))
		if currency == "" {
			currency = p.fallbackCurrency
		}

		amount, ok := parseAmountMinor(field(row, "amount"), currency)
		if !ok {
			return nil, &ParseError{Format: string(RevolutCSV), Line: line, Msg: "malformed amount " + field(row, "amount")}
		}

		records = append(records, models.Record{
			Date:           date,
			Amount:         amount,
			Currency:       currency,
			Counterparty:   description,
			RawDescription: description,
			Hidden:         p.hiddenByDefault(description),
		})
	}

	if len(records) == 0 {
		return nil, &ParseError{Format: string(RevolutCSV), Msg: "no transactions found"}
	}
	return records, nil
}
