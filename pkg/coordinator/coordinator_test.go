package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/emilsk/kasa/pkg/ledger"
	"github.com/emilsk/kasa/pkg/models"
	"github.com/emilsk/kasa/pkg/remote"
	"github.com/emilsk/kasa/pkg/sealer"
)

var testParams = sealer.Params{Time: 1, MemoryKiB: 1024, Threads: 1}

func newCoordinator(t *testing.T, store remote.Store, pass string) *Coordinator {
	t.Helper()
	return New(log.New(io.Discard), store, "alice", []byte(pass),
		WithSealParams(testParams),
		WithRetries(1),
		WithBackoff(time.Millisecond),
		WithTimeout(5*time.Second),
	)
}

func record(day int, description string, amount int64) models.Record {
	return models.Record{
		Date:           time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC),
		Amount:         amount,
		Currency:       "EUR",
		Counterparty:   description,
		RawDescription: description,
	}
}

func findByDescription(t *testing.T, snap ledger.Snapshot, description string) models.Transaction {
	t.Helper()
	for _, tx := range snap.Transactions {
		if tx.RawDescription == description {
			return tx
		}
	}
	t.Fatalf("no transaction with description %q", description)
	return models.Transaction{}
}

func TestImportCommitAndReload(t *testing.T) {
	store := remote.NewMemoryStore()
	ctx := context.Background()

	c := newCoordinator(t, store, "hunter2")
	report, err := c.Import(ctx, []models.Record{
		record(1, "SUPERMART #123", -2350),
		record(2, "CAFE ROMA", -480),
	})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if report.Inserted != 2 {
		t.Errorf("expected 2 inserted, got %d", report.Inserted)
	}
	if c.State() != Idle || c.Dirty() {
		t.Errorf("expected clean idle state after commit, got %s dirty=%v", c.State(), c.Dirty())
	}
	if c.Version() == "" {
		t.Error("commit did not record a remote version")
	}

	// A second coordinator with the same passphrase sees the same ledger.
	other := newCoordinator(t, store, "hunter2")
	if err := other.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := len(other.Snapshot().Transactions); got != 2 {
		t.Errorf("reloaded ledger has %d transactions, want 2", got)
	}
	if other.Version() != c.Version() {
		t.Errorf("version mismatch after reload: %q vs %q", other.Version(), c.Version())
	}
}

func TestImportDuplicateDoesNotPush(t *testing.T) {
	store := remote.NewMemoryStore()
	ctx := context.Background()
	c := newCoordinator(t, store, "hunter2")

	batch := []models.Record{record(1, "SUPERMART #123", -2350)}
	if _, err := c.Import(ctx, batch); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	v1 := c.Version()

	report, err := c.Import(ctx, batch)
	if err != nil {
		t.Fatalf("re-import failed: %v", err)
	}
	if report.Inserted != 0 || report.Skipped != 1 {
		t.Errorf("expected pure duplicate batch, got %+v", report)
	}
	if c.Version() != v1 {
		t.Errorf("duplicate import pushed a new version: %q -> %q", v1, c.Version())
	}
	if c.State() != Idle {
		t.Errorf("expected idle after duplicate import, got %s", c.State())
	}
}

func TestLoadWrongPassphrase(t *testing.T) {
	store := remote.NewMemoryStore()
	ctx := context.Background()

	c := newCoordinator(t, store, "correct")
	if _, err := c.Import(ctx, []models.Record{record(1, "SHOP", -100)}); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	other := newCoordinator(t, store, "wrong")
	err := other.Load(ctx)
	var cryptoErr *sealer.CryptoError
	if !errors.As(err, &cryptoErr) {
		t.Fatalf("expected CryptoError for wrong passphrase, got %v", err)
	}
}

func TestSetCategoryUpsertsRuleAndConverges(t *testing.T) {
	store := remote.NewMemoryStore()
	ctx := context.Background()
	c := newCoordinator(t, store, "hunter2")

	if _, err := c.Import(ctx, []models.Record{
		record(1, "SUPERMART #123", -2350),
		record(2, "SUPERMART #456", -1800),
		record(3, "CAFE ROMA", -480),
	}); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	first := findByDescription(t, c.Snapshot(), "SUPERMART #123")
	if err := c.SetCategory(ctx, first.ID, "Groceries", false); err != nil {
		t.Fatalf("SetCategory failed: %v", err)
	}
	if c.RuleCount() != 1 {
		t.Errorf("expected 1 rule, got %d", c.RuleCount())
	}

	snap := c.Snapshot()
	sibling := findByDescription(t, snap, "SUPERMART #456")
	if sibling.Category != "Groceries" || sibling.CategoryIsOverride {
		t.Errorf("sibling did not converge via rule: %+v", sibling)
	}
	if cafe := findByDescription(t, snap, "CAFE ROMA"); cafe.Category != "" {
		t.Errorf("unrelated transaction got categorized: %q", cafe.Category)
	}

	// Scoped edit: override only, no shared rule.
	cafe := findByDescription(t, snap, "CAFE ROMA")
	if err := c.SetCategory(ctx, cafe.ID, "Treats", true); err != nil {
		t.Fatalf("scoped SetCategory failed: %v", err)
	}
	if c.RuleCount() != 1 {
		t.Errorf("scoped edit must not add a rule, got %d", c.RuleCount())
	}
	got := findByDescription(t, c.Snapshot(), "CAFE ROMA")
	if got.Category != "Treats" || !got.CategoryIsOverride {
		t.Errorf("scoped edit not applied: %+v", got)
	}
}

func TestConcurrentEditConflicts(t *testing.T) {
	store := remote.NewMemoryStore()
	ctx := context.Background()

	a := newCoordinator(t, store, "hunter2")
	if _, err := a.Import(ctx, []models.Record{record(1, "SUPERMART #123", -2350)}); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	b := newCoordinator(t, store, "hunter2")
	if err := b.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	id := b.Snapshot().Transactions[0].ID

	// A commits first; B's parent version is now stale.
	if err := a.SetHidden(ctx, id, true); err != nil {
		t.Fatalf("SetHidden failed: %v", err)
	}

	err := b.SetNotes(ctx, id, "lunch with Ana")
	var conflict *SyncConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected SyncConflictError, got %v", err)
	}

	// B's change is staged, not lost, and nothing was merged automatically.
	if b.State() != Staged || !b.Dirty() {
		t.Errorf("expected staged dirty state after conflict, got %s dirty=%v", b.State(), b.Dirty())
	}
	if staged := b.Snapshot().Transactions[0]; staged.Notes != "lunch with Ana" {
		t.Errorf("staged note lost after conflict: %+v", staged)
	}

	// After a fresh pull the same edit goes through.
	if err := b.Load(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if err := b.SetNotes(ctx, id, "lunch with Ana"); err != nil {
		t.Fatalf("retry after reload failed: %v", err)
	}
	tx := b.Snapshot().Transactions[0]
	if tx.Notes != "lunch with Ana" || !tx.Hidden {
		t.Errorf("expected both edits present after reload, got %+v", tx)
	}
}

// flakyStore fails the first N pushes with a transient error.
type flakyStore struct {
	*remote.MemoryStore
	failures int
}

func (s *flakyStore) Push(ctx context.Context, user string, data []byte, parent remote.Version) (remote.Version, error) {
	if s.failures > 0 {
		s.failures--
		return "", fmt.Errorf("backend unavailable")
	}
	return s.MemoryStore.Push(ctx, user, data, parent)
}

func TestPushRetriesThenRecovers(t *testing.T) {
	store := &flakyStore{MemoryStore: remote.NewMemoryStore(), failures: 5}
	ctx := context.Background()
	c := newCoordinator(t, store, "hunter2")

	_, err := c.Import(ctx, []models.Record{record(1, "SHOP", -100)})
	if err == nil {
		t.Fatal("expected import to fail while the backend is down")
	}
	if !strings.Contains(err.Error(), "push failed after") {
		t.Errorf("unexpected error: %v", err)
	}
	if c.State() != Staged || !c.Dirty() {
		t.Errorf("expected staged dirty state, got %s dirty=%v", c.State(), c.Dirty())
	}

	// Backend is back: a plain push drains the staged state.
	store.failures = 0
	if err := c.Push(ctx); err != nil {
		t.Fatalf("push after recovery failed: %v", err)
	}
	if c.State() != Idle || c.Dirty() || c.Version() == "" {
		t.Errorf("expected committed state, got %s dirty=%v version=%q", c.State(), c.Dirty(), c.Version())
	}
}

func TestDeleteRemote(t *testing.T) {
	store := remote.NewMemoryStore()
	ctx := context.Background()
	c := newCoordinator(t, store, "hunter2")

	if _, err := c.Import(ctx, []models.Record{record(1, "SHOP", -100)}); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if err := c.DeleteRemote(ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	other := newCoordinator(t, store, "hunter2")
	if err := other.Load(ctx); err != nil {
		t.Fatalf("load after delete failed: %v", err)
	}
	if len(other.Snapshot().Transactions) != 0 {
		t.Error("remote state survived deletion")
	}
}
