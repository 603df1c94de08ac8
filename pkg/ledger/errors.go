package ledger

import "fmt"

// ImportError rejects a whole merge batch — nothing from the batch is
// applied.
type ImportError struct {
	Msg            string
	BatchCurrency  string
	LedgerCurrency string
}

func (e *ImportError) Error() string {
	if e.BatchCurrency != "" && e.LedgerCurrency != "" {
		return fmt.Sprintf("import rejected: %s (batch %s, ledger %s)", e.Msg, e.BatchCurrency, e.LedgerCurrency)
	}
	return "import rejected: " + e.Msg
}

// NotFoundError means an edit referenced a transaction ID that is not in the
// ledger. This is a caller bug and is surfaced, never ignored.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("transaction %s not found", e.ID)
}
