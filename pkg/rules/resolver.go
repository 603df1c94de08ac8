package rules

import "github.com/emilsk/kasa/pkg/models"

// Ledger is the slice of ledger behaviour the resolver needs. Assign must
// never touch transactions with a manual override.
type Ledger interface {
	Uncategorized() []models.Transaction
	Assign(id, category string)
}

// Resolver fills in categories from the rule table. It is deterministic and
// idempotent: running it twice on unchanged input changes nothing, and it
// never guesses — transactions without a matching rule stay uncategorized.
type Resolver struct {
	table *Table
	norm  *Normalizer
}

func NewResolver(table *Table, norm *Normalizer) *Resolver {
	return &Resolver{table: table, norm: norm}
}

// Table exposes the underlying rule table.
func (r *Resolver) Table() *Table { return r.table }

// Key derives the rule key for a transaction.
func (r *Resolver) Key(tx models.Transaction) string {
	return r.norm.Key(tx.Counterparty, tx.RawDescription)
}

// Resolve assigns categories to every non-override transaction whose key has
// a rule. Returns the number of assignments made.
func (r *Resolver) Resolve(l Ledger) int {
	assigned := 0
	for _, tx := range l.Uncategorized() {
		category, ok := r.table.Lookup(r.Key(tx))
		if !ok {
			continue
		}
		if tx.Category != category {
			l.Assign(tx.ID, category)
			assigned++
		}
	}
	return assigned
}
