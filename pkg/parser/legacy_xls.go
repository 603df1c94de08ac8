package parser

import (
	"bytes"
	"strings"

	"github.com/emilsk/kasa/pkg/models"
	"github.com/extrame/xls"
)

// ParseLegacyXLS parses the legacy XLS statement export. The sheet has
// leading report boilerplate; transactions start after a header row whose
// first cell is "date" and carry date | description | amount | currency.
func (p *Parser) ParseLegacyXLS(data []byte) ([]models.Record, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "cp1252")
	if err != nil {
		return nil, &ParseError{Format: string(LegacyXLS), Msg: "error opening workbook: " + err.Error()}
	}

	rows := workbook.ReadAllCells(1000)
	if len(rows) == 0 {
		return nil, &ParseError{Format: string(LegacyXLS), Msg: "no data found in sheet"}
	}

	var records []models.Record
	var foundTransactions bool

	for _, row := range rows {
		if len(row) == 0 {
			continue
		}

		// Skip until we find the transactions section.
		if strings.EqualFold(strings.TrimSpace(row[0]), "date") {
			foundTransactions = true
			continue
		}
		if !foundTransactions || len(row) < 3 {
			continue
		}

		date, ok := parseDate(row[0])
		if !ok {
			p.logger.Debug("skipping row with malformed date", "row", row)
			continue
		}

		description := strings.TrimSpace(row[1])
		if description == "" {
			continue
		}

		currency := p.fallbackCurrency
		if len(row) >= 4 && strings.TrimSpace(row[3]) != "" {
			currency = strings.ToUpper(strings.TrimSpace(row[3]))
		}

		amount, ok := parseAmountMinor(row[2], currency)
		if !ok {
			p.logger.Debug("skipping row with malformed amount", "row", row)
			continue
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
		return nil, &ParseError{Format: string(LegacyXLS), Msg: "no transactions found"}
	}
	return records, nil
}
