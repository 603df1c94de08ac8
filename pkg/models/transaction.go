package models

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Direction tells whether money entered or left the account.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// Record is a single normalized statement row as produced by a parser.
// It carries no ID — the ledger is the only place IDs are assigned, so
// deduplication has exactly one authority.
type Record struct {
	Date           time.Time
	Amount         int64 // signed minor units (cents), debits negative
	Currency       string
	Counterparty   string
	RawDescription string
	Hidden         bool // pre-flagged by import rules (internal transfers)
}

// Direction derives credit/debit from the sign of the amount.
func (r Record) Direction() Direction {
	if r.Amount < 0 {
		return Debit
	}
	return Credit
}

// Transaction is one ledger entry. Everything except Category, Hidden,
// CategoryIsOverride and Notes comes from the bank and is immutable after
// creation.
type Transaction struct {
	ID             string    `json:"id"`
	Date           time.Time `json:"date"`
	Amount         int64     `json:"amount"` // signed minor units
	Currency       string    `json:"currency"`
	Counterparty   string    `json:"counterparty"`
	RawDescription string    `json:"raw_description"`

	Category           string `json:"category,omitempty"`
	Hidden             bool   `json:"hidden"`
	CategoryIsOverride bool   `json:"category_is_override"`
	Notes              string `json:"notes,omitempty"`
}

// Direction derives credit/debit from the sign of the amount.
func (t Transaction) Direction() Direction {
	if t.Amount < 0 {
		return Debit
	}
	return Credit
}

// TransactionID derives the stable identifier for a record. It hashes only
// the immutable source fields so re-importing the same statement always
// yields the same ID.
func TransactionID(r Record) string {
	input := fmt.Sprintf("%s|%d|%s|%s|%s",
		r.Date.UTC().Format("2006-01-02 15:04:05"),
		r.Amount,
		strings.ToUpper(strings.TrimSpace(r.Currency)),
		strings.TrimSpace(r.Counterparty),
		strings.TrimSpace(r.RawDescription),
	)
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash)[:16]
}
