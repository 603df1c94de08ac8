package ledger

import (
	"sort"
	"strings"

	"github.com/emilsk/kasa/pkg/models"
)

// Ledger is the canonical, deduplicated set of one user's transactions. It
// lives in memory; durability is the coordinator's job. All mutations mark
// the ledger dirty so the caller knows there is unpersisted state.
type Ledger struct {
	currency string
	txs      map[string]*models.Transaction
	dirty    bool
}

// MergeReport summarizes what a merge did to the ledger.
type MergeReport struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Snapshot is an immutable view of the ledger for read-only consumers.
// It reflects all completed mutations at the time of the call, never a
// partially applied merge.
type Snapshot struct {
	Currency     string               `json:"currency"`
	Transactions []models.Transaction `json:"transactions"` // sorted by ID
}

func New() *Ledger {
	return &Ledger{txs: make(map[string]*models.Transaction)}
}

// Currency returns the ledger's established currency, empty until the first
// successful merge.
func (l *Ledger) Currency() string { return l.currency }

// Len returns the number of transactions in the ledger.
func (l *Ledger) Len() int { return len(l.txs) }

// Dirty reports whether the ledger has mutations that have not been
// persisted yet.
func (l *Ledger) Dirty() bool { return l.dirty }

// MarkClean is called by the coordinator once the current state has been
// durably committed.
func (l *Ledger) MarkClean() { l.dirty = false }

// Merge folds a parsed statement batch into the ledger. The whole batch is
// validated before anything is applied so a rejected import never leaves a
// half-merged ledger. Records whose derived ID already exists are skipped,
// which makes re-importing the same statement a no-op.
func (l *Ledger) Merge(records []models.Record) (MergeReport, error) {
	if len(records) == 0 {
		return MergeReport{}, &ImportError{Msg: "batch is empty"}
	}

	batchCurrency := strings.ToUpper(strings.TrimSpace(records[0].Currency))
	for _, r := range records {
		if strings.ToUpper(strings.TrimSpace(r.Currency)) != batchCurrency {
			return MergeReport{}, &ImportError{
				Msg:            "batch mixes currencies",
				BatchCurrency:  batchCurrency,
				LedgerCurrency: strings.ToUpper(strings.TrimSpace(r.Currency)),
			}
		}
	}
	if l.currency != "" && batchCurrency != l.currency {
		return MergeReport{}, &ImportError{
			Msg:            "batch currency conflicts with ledger currency",
			BatchCurrency:  batchCurrency,
			LedgerCurrency: l.currency,
		}
	}

	var report MergeReport
	for _, r := range records {
		id := models.TransactionID(r)
		if _, exists := l.txs[id]; exists {
			report.Skipped++
			continue
		}
		l.txs[id] = &models.Transaction{
			ID:             id,
			Date:           r.Date,
			Amount:         r.Amount,
			Currency:       batchCurrency,
			Counterparty:   strings.TrimSpace(r.Counterparty),
			RawDescription: strings.TrimSpace(r.RawDescription),
			Hidden:         r.Hidden,
		}
		report.Inserted++
	}

	if l.currency == "" {
		l.currency = batchCurrency
	}
	if report.Inserted > 0 {
		l.dirty = true
	}
	return report, nil
}

// Get returns a copy of the transaction with the given ID.
func (l *Ledger) Get(id string) (models.Transaction, error) {
	tx, ok := l.txs[id]
	if !ok {
		return models.Transaction{}, &NotFoundError{ID: id}
	}
	return *tx, nil
}

// SetCategory sets the category on a single transaction. Manual edits flip
// the override flag so automatic resolution never touches the transaction
// again; rule-table upkeep is the coordinator's business, not the ledger's.
func (l *Ledger) SetCategory(id, category string, manual bool) error {
	tx, ok := l.txs[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	tx.Category = category
	if manual {
		tx.CategoryIsOverride = true
	}
	l.dirty = true
	return nil
}

// ClearOverride drops a manual override so the resolver may categorize the
// transaction again.
func (l *Ledger) ClearOverride(id string) error {
	tx, ok := l.txs[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	tx.Category = ""
	tx.CategoryIsOverride = false
	l.dirty = true
	return nil
}

// SetHidden flips the analytics-exclusion flag.
func (l *Ledger) SetHidden(id string, hidden bool) error {
	tx, ok := l.txs[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	tx.Hidden = hidden
	l.dirty = true
	return nil
}

// SetNotes replaces the free-text note on a transaction.
func (l *Ledger) SetNotes(id, notes string) error {
	tx, ok := l.txs[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	tx.Notes = notes
	l.dirty = true
	return nil
}

// Uncategorized returns copies of every transaction the resolver is allowed
// to categorize, i.e. everything without a manual override.
func (l *Ledger) Uncategorized() []models.Transaction {
	var out []models.Transaction
	for _, tx := range l.txs {
		if !tx.CategoryIsOverride {
			out = append(out, *tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Assign sets a resolver-derived category. Unknown IDs are a programming
// error upstream and are ignored here; overrides are never touched.
func (l *Ledger) Assign(id, category string) {
	tx, ok := l.txs[id]
	if !ok || tx.CategoryIsOverride {
		return
	}
	if tx.Category != category {
		tx.Category = category
		l.dirty = true
	}
}

// Snapshot copies the current state for read-only consumers.
func (l *Ledger) Snapshot() Snapshot {
	snap := Snapshot{
		Currency:     l.currency,
		Transactions: make([]models.Transaction, 0, len(l.txs)),
	}
	for _, tx := range l.txs {
		snap.Transactions = append(snap.Transactions, *tx)
	}
	sort.Slice(snap.Transactions, func(i, j int) bool {
		return snap.Transactions[i].ID < snap.Transactions[j].ID
	})
	return snap
}
