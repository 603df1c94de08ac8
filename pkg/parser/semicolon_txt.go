package parser

import (
	"strings"

	"github.com/emilsk/kasa/pkg/models"
)

// ParseSemicolonTXT parses the plain-text export some banks offer:
// one transaction per line, `date;description;amount`, no currency column.
func (p *Parser) ParseSemicolonTXT(data []byte) ([]models.Record, error) {
	var records []models.Record
	lines := strings.Split(string(data), "\n")

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, ";")
		if len(fields) < 3 {
			return nil, &ParseError{Format: string(SemicolonTXT), Line: i + 1, Msg: "expected date;description;amount"}
		}

		date, ok := parseDate(fields[0])
		if !ok {
			return nil, &ParseError{Format: string(SemicolonTXT), Line: i + 1, Msg: "malformed date " + fields[0]}
		}

		description := strings.TrimSpace(fields[1])
		if description == "" {
			return nil, &ParseError{Format: string(SemicolonTXT), Line: i + 1, Msg: "missing description"}
		}

		amount, ok := parseAmountMinor(fields[2], p.fallbackCurrency)
		if !ok {
			return nil, &ParseError{Format: string(SemicolonTXT), Line: i + 1, Msg: "malformed amount " + fields[2]}
		}

		records = append(records, models.Record{
			Date:           date,
			Amount:         amount,
			Currency:       p.fallbackCurrency,
			Counterparty:   description,
			RawDescription: description,
			Hidden:         p.hiddenByDefault(description),
		})
	}

	if len(records) == 0 {
		return nil, &ParseError{Format: string(SemicolonTXT), Msg: "no transactions found"}
	}
	return records, nil
}
