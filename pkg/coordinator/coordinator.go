// Package coordinator drives "merge → categorize → seal → push" as one
// logical transaction. The remote only ever observes fully merged, fully
// categorized, fully encrypted states.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/emilsk/kasa/pkg/ledger"
	"github.com/emilsk/kasa/pkg/models"
	"github.com/emilsk/kasa/pkg/remote"
	"github.com/emilsk/kasa/pkg/rules"
	"github.com/emilsk/kasa/pkg/sealer"
)

// State tracks where the pending change is in the pipeline.
type State int

const (
	Idle State = iota
	Staged
	Sealing
	Pushing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Staged:
		return "staged"
	case Sealing:
		return "sealing"
	case Pushing:
		return "pushing"
	}
	return "unknown"
}

// SyncConflictError means the remote moved underneath us. The staged local
// change is preserved; reconciliation is the caller's decision, never ours.
type SyncConflictError struct {
	LocalVersion  remote.Version
	RemoteVersion remote.Version
}

func (e *SyncConflictError) Error() string {
	return fmt.Sprintf("remote changed concurrently (local parent %q, remote now %q); pull before retrying", e.LocalVersion, e.RemoteVersion)
}

// Coordinator owns the in-memory ledger and rule table for one user and is
// the single writer for that user's remote state.
type Coordinator struct {
	logger   *log.Logger
	store    remote.Store
	user     string
	pass     []byte
	params   sealer.Params
	norm     *rules.Normalizer
	resolver *rules.Resolver

	ledger *ledger.Ledger
	table  *rules.Table

	version remote.Version
	state   State

	retries int
	backoff time.Duration
	timeout time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithRetries(n int) Option              { return func(c *Coordinator) { c.retries = n } }
func WithBackoff(d time.Duration) Option    { return func(c *Coordinator) { c.backoff = d } }
func WithTimeout(d time.Duration) Option    { return func(c *Coordinator) { c.timeout = d } }
func WithSealParams(p sealer.Params) Option { return func(c *Coordinator) { c.params = p } }

// WithNormalizePatterns replaces the default key normalization strip list.
func WithNormalizePatterns(patterns []string) Option {
	return func(c *Coordinator) {
		norm, err := rules.NewNormalizer(patterns)
		if err != nil {
			c.logger.Warn("invalid normalization patterns, keeping defaults", "error", err)
			return
		}
		c.norm = norm
	}
}

func (c *Coordinator) setDefaults() {
	c.params = sealer.DefaultParams()
	c.retries = 3
	c.backoff = 500 * time.Millisecond
	c.timeout = 30 * time.Second
}

func New(logger *log.Logger, store remote.Store, user string, passphrase []byte, opts ...Option) *Coordinator {
	c := &Coordinator{
		logger: logger,
		store:  store,
		user:   user,
		pass:   append([]byte(nil), passphrase...),
		ledger: ledger.New(),
		table:  rules.NewTable(),
	}
	c.setDefaults()
	defaultNorm, _ := rules.NewNormalizer(rules.DefaultPatterns())
	c.norm = defaultNorm
	for _, opt := range opts {
		opt(c)
	}
	c.resolver = rules.NewResolver(c.table, c.norm)
	return c
}

// State returns the current pipeline state.
func (c *Coordinator) State() State { return c.state }

// Version returns the last known remote version.
func (c *Coordinator) Version() remote.Version { return c.version }

// Dirty reports whether there is staged, uncommitted local state.
func (c *Coordinator) Dirty() bool { return c.ledger.Dirty() || c.table.Dirty() }

// Snapshot exposes the read-only ledger view for analytics and UI.
func (c *Coordinator) Snapshot() ledger.Snapshot { return c.ledger.Snapshot() }

// RuleCount returns the number of category rules.
func (c *Coordinator) RuleCount() int { return c.table.Len() }

// Load pulls and decrypts the remote state. A user with no remote state
// starts with an empty ledger and rule table.
func (c *Coordinator) Load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, version, err := c.store.Pull(ctx, c.user)
	if errors.Is(err, remote.ErrNotFound) {
		c.logger.Info("no remote state yet, starting fresh", "user", c.user)
		c.version = ""
		return nil
	}
	if err != nil {
		return err
	}

	led, table, err := decodeState(data, c.pass)
	if err != nil {
		return err
	}

	c.ledger = led
	c.table = table
	c.resolver = rules.NewResolver(c.table, c.norm)
	c.version = version
	c.state = Idle
	c.logger.Debug("loaded remote state", "user", c.user, "version", version, "transactions", led.Len(), "rules", table.Len())
	return nil
}

// Import merges a parsed statement batch and commits the result. On push
// failure the merged state stays staged in memory so the user can retry
// without re-importing.
func (c *Coordinator) Import(ctx context.Context, records []models.Record) (ledger.MergeReport, error) {
	report, err := c.ledger.Merge(records)
	if err != nil {
		return report, err
	}
	c.state = Staged
	c.logger.Info("merged statement batch", "inserted", report.Inserted, "skipped", report.Skipped)

	if report.Inserted == 0 && !c.Dirty() {
		// Fully duplicate re-import: nothing to persist.
		c.state = Idle
		return report, nil
	}
	return report, c.commit(ctx)
}

// SetCategory records a manual categorization. Unless the edit is scoped to
// this one transaction it also upserts the shared rule so other
// transactions with the same key converge on the category.
func (c *Coordinator) SetCategory(ctx context.Context, id, category string, scopeToTransaction bool) error {
	tx, err := c.ledger.Get(id)
	if err != nil {
		return err
	}
	if err := c.ledger.SetCategory(id, category, true); err != nil {
		return err
	}
	if !scopeToTransaction {
		c.table.Upsert(c.resolver.Key(tx), category)
	}
	c.state = Staged
	return c.commit(ctx)
}

// ClearCategory drops a manual override so automatic resolution applies
// again.
func (c *Coordinator) ClearCategory(ctx context.Context, id string) error {
	if err := c.ledger.ClearOverride(id); err != nil {
		return err
	}
	c.state = Staged
	return c.commit(ctx)
}

// SetHidden flips analytics exclusion for one transaction.
func (c *Coordinator) SetHidden(ctx context.Context, id string, hidden bool) error {
	if err := c.ledger.SetHidden(id, hidden); err != nil {
		return err
	}
	c.state = Staged
	return c.commit(ctx)
}

// SetNotes replaces the note on one transaction.
func (c *Coordinator) SetNotes(ctx context.Context, id, notes string) error {
	if err := c.ledger.SetNotes(id, notes); err != nil {
		return err
	}
	c.state = Staged
	return c.commit(ctx)
}

// Push retries committing staged state after an earlier failure.
func (c *Coordinator) Push(ctx context.Context) error {
	if !c.Dirty() {
		c.logger.Debug("nothing to push")
		return nil
	}
	c.state = Staged
	return c.commit(ctx)
}

// DeleteRemote irreversibly removes the user's remote state. The in-memory
// ledger is left untouched.
func (c *Coordinator) DeleteRemote(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.store.DeleteAll(ctx, c.user); err != nil {
		return err
	}
	c.version = ""
	c.logger.Info("remote state deleted", "user", c.user)
	return nil
}

// commit runs resolve → seal → push on the staged state. Any failure rolls
// the machine back to Staged with the in-memory change intact.
func (c *Coordinator) commit(ctx context.Context) error {
	changeID := uuid.NewString()

	c.state = Sealing
	if assigned := c.resolver.Resolve(c.ledger); assigned > 0 {
		c.logger.Debug("resolved categories", "change", changeID, "assigned", assigned)
	}

	data, err := encodeState(c.ledger, c.table, c.pass, c.params)
	if err != nil {
		c.state = Staged
		return err
	}

	c.state = Pushing
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, time.Duration(attempt)*c.backoff); err != nil {
				c.state = Staged
				return err
			}
		}

		pushCtx, cancel := context.WithTimeout(ctx, c.timeout)
		version, err := c.store.Push(pushCtx, c.user, data, c.version)
		cancel()

		if err == nil {
			c.version = version
			c.ledger.MarkClean()
			c.table.MarkClean()
			c.state = Idle
			c.logger.Info("committed", "change", changeID, "version", version)
			return nil
		}

		var conflict *remote.ConflictError
		if errors.As(err, &conflict) {
			c.state = Staged
			return &SyncConflictError{LocalVersion: c.version, RemoteVersion: conflict.Actual}
		}
		if ctx.Err() != nil {
			c.state = Staged
			return err
		}

		lastErr = err
		c.logger.Warn("push failed, will retry", "change", changeID, "attempt", attempt+1, "error", err)
	}

	c.state = Staged
	return fmt.Errorf("push failed after %d attempts: %w", c.retries+1, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
