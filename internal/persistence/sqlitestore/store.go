// Package sqlitestore is a reference caller-side adapter for persisting
// TradeExecution history and ReserveState snapshots. The core mandates no
// persistence format; integrators that already have a ledger can ignore this
// package entirely.
package sqlitestore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tonsurance/btcfloat/internal/core"
	"github.com/tonsurance/btcfloat/internal/money"
)

// Store persists executions and reserve snapshots in a single sqlite file.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at INTEGER NOT NULL,
	data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS reserve_snapshot (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	data TEXT NOT NULL,
	checksum BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Open opens (creating if necessary) the store at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable WAL mode for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// executionRecord is the stored JSON shape of a TradeExecution. The error in
// a failed hedge outcome survives only as its message; that is enough for an
// audit trail, and error values do not round-trip through JSON anyway.
type executionRecord struct {
	Signal          string             `json:"signal"`
	SignalUSD       int64              `json:"signal_usd_cents,omitempty"`
	SignalBTCSats   int64              `json:"signal_btc_sats,omitempty"`
	Price           int64              `json:"price_cents_per_btc"`
	BTCAmountSats   int64              `json:"btc_amount_sats"`
	USDAmountCents  int64              `json:"usd_amount_cents"`
	At              time.Time          `json:"at"`
	Reason          string             `json:"reason"`
	HedgeOutcome    string             `json:"hedge_outcome"`
	HedgeEntryPrice int64              `json:"hedge_entry_price,omitempty"`
	HedgeError      string             `json:"hedge_error,omitempty"`
	CloseReport     *closeReportRecord `json:"close_report,omitempty"`
}

type closeReportRecord struct {
	RealizedPnLUSD int64     `json:"realized_pnl_usd"`
	FeesUSD        int64     `json:"fees_usd"`
	NetPnLUSD      int64     `json:"net_pnl_usd"`
	ClosedAt       time.Time `json:"closed_at"`
}

func toRecord(exec core.TradeExecution) executionRecord {
	rec := executionRecord{
		Signal:         exec.Signal.Kind.String(),
		SignalUSD:      int64(exec.Signal.USD),
		SignalBTCSats:  int64(exec.Signal.BTCSats),
		Price:          int64(exec.Price),
		BTCAmountSats:  int64(exec.BTCAmountSats),
		USDAmountCents: int64(exec.USDAmountCents),
		At:             exec.At,
		Reason:         exec.Reason,
	}
	switch exec.HedgeOutcome.Kind {
	case core.HedgeOutcomeNone:
		rec.HedgeOutcome = "none"
	case core.HedgeOutcomeHedgedAt:
		rec.HedgeOutcome = "hedged"
		rec.HedgeEntryPrice = int64(exec.HedgeOutcome.EntryPrice)
	case core.HedgeOutcomeHedgeFailed:
		rec.HedgeOutcome = "failed"
		if exec.HedgeOutcome.Err != nil {
			rec.HedgeError = exec.HedgeOutcome.Err.Error()
		}
	case core.HedgeOutcomeHedgeClosed:
		rec.HedgeOutcome = "closed"
		if r := exec.HedgeOutcome.CloseReport; r != nil {
			rec.CloseReport = &closeReportRecord{
				RealizedPnLUSD: r.RealizedPnLUSD,
				FeesUSD:        r.FeesUSD,
				NetPnLUSD:      r.NetPnLUSD,
				ClosedAt:       r.ClosedAt,
			}
		}
	}
	return rec
}

func fromRecord(rec executionRecord) core.TradeExecution {
	exec := core.TradeExecution{
		Price:          money.Price(rec.Price),
		BTCAmountSats:  money.Sats(rec.BTCAmountSats),
		USDAmountCents: money.USDCents(rec.USDAmountCents),
		At:             rec.At,
		Reason:         rec.Reason,
	}
	switch rec.Signal {
	case "BuyBTC":
		exec.Signal = core.TradeSignal{Kind: core.BuyBTC, USD: money.USDCents(rec.SignalUSD)}
	case "SellBTC":
		exec.Signal = core.TradeSignal{Kind: core.SellBTC, BTCSats: money.Sats(rec.SignalBTCSats)}
	default:
		exec.Signal = core.HoldSignal
	}
	switch rec.HedgeOutcome {
	case "hedged":
		exec.HedgeOutcome = core.HedgeOutcome{Kind: core.HedgeOutcomeHedgedAt, EntryPrice: money.Price(rec.HedgeEntryPrice)}
	case "failed":
		exec.HedgeOutcome = core.HedgeOutcome{Kind: core.HedgeOutcomeHedgeFailed, Err: errors.New(rec.HedgeError)}
	case "closed":
		outcome := core.HedgeOutcome{Kind: core.HedgeOutcomeHedgeClosed}
		if rec.CloseReport != nil {
			outcome.CloseReport = &core.HedgeCloseReport{
				RealizedPnLUSD: rec.CloseReport.RealizedPnLUSD,
				FeesUSD:        rec.CloseReport.FeesUSD,
				NetPnLUSD:      rec.CloseReport.NetPnLUSD,
				ClosedAt:       rec.CloseReport.ClosedAt,
			}
		}
		exec.HedgeOutcome = outcome
	default:
		exec.HedgeOutcome = core.NoHedgeOutcome
	}
	return exec
}

// isBusy reports whether an sqlite error is transient lock contention.
// SQLITE_BUSY surfaces through mattn/go-sqlite3 as "database is locked";
// with WAL mode the writer lock windows are per-transaction and short.
func isBusy(err error) bool {
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// busyRetry runs fn, retrying while sqlite reports lock contention. The
// execution log and the snapshot row share sqlite's single writer, so a
// tick's append can land while a snapshot save holds the lock; three
// attempts with doubling backoff outlasts any one commit. Non-busy errors
// surface immediately.
func busyRetry(ctx context.Context, fn func() error) error {
	const attempts = 3
	backoff := 50 * time.Millisecond

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return err
}

// AppendExecution appends one execution to the audit table. Writes contend
// with concurrent snapshot saves on the single sqlite writer, so lock errors
// are retried briefly before surfacing.
func (s *Store) AppendExecution(ctx context.Context, exec core.TradeExecution) error {
	data, err := json.Marshal(toRecord(exec))
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	return busyRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO executions (at, data) VALUES (?, ?)`,
			exec.At.UnixNano(), string(data),
		)
		if err != nil {
			return fmt.Errorf("failed to append execution: %w", err)
		}
		return nil
	})
}

// Executions returns the stored executions in append order. A limit of 0
// returns everything.
func (s *Store) Executions(ctx context.Context, limit int) ([]core.TradeExecution, error) {
	query := `SELECT data FROM executions ORDER BY id ASC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read executions: %w", err)
	}
	defer rows.Close()

	var out []core.TradeExecution
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec executionRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
		}
		out = append(out, fromRecord(rec))
	}
	return out, rows.Err()
}

type snapshotRecord struct {
	BTCSats         int64     `json:"btc_sats"`
	USDReserves     int64     `json:"usd_reserves"`
	LastRebalanceAt time.Time `json:"last_rebalance_at"`
	RebalanceCount  uint32    `json:"rebalance_count"`
}

// SaveSnapshot persists the reserve snapshot, replacing any previous one.
func (s *Store) SaveSnapshot(ctx context.Context, state core.ReserveState) error {
	data, err := json.Marshal(snapshotRecord{
		BTCSats:         int64(state.BTCSats),
		USDReserves:     int64(state.USDReserves),
		LastRebalanceAt: state.LastRebalanceAt,
		RebalanceCount:  state.RebalanceCount,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Validate JSON (round-trip test)
	var check snapshotRecord
	if err := json.Unmarshal(data, &check); err != nil {
		return fmt.Errorf("snapshot validation failed: %w", err)
	}

	checksum := sha256.Sum256(data)

	return busyRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		query := `INSERT OR REPLACE INTO reserve_snapshot (id, data, checksum, updated_at) VALUES (1, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query, string(data), checksum[:], time.Now().UnixNano()); err != nil {
			return fmt.Errorf("failed to write snapshot to db: %w", err)
		}

		return tx.Commit()
	})
}

// LoadSnapshot returns the stored snapshot, or nil when none has been saved.
func (s *Store) LoadSnapshot(ctx context.Context) (*core.ReserveState, error) {
	query := `SELECT data, checksum FROM reserve_snapshot WHERE id = 1`
	var data string
	var storedChecksum []byte
	err := s.db.QueryRowContext(ctx, query).Scan(&data, &storedChecksum)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot from db: %w", err)
	}

	// Verify checksum
	computedChecksum := sha256.Sum256([]byte(data))
	if len(storedChecksum) != len(computedChecksum) {
		return nil, fmt.Errorf("checksum length mismatch: expected %d, got %d", len(computedChecksum), len(storedChecksum))
	}
	for i := range computedChecksum {
		if storedChecksum[i] != computedChecksum[i] {
			return nil, fmt.Errorf("checksum verification failed: data corruption detected")
		}
	}

	var rec snapshotRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &core.ReserveState{
		BTCSats:         money.Sats(rec.BTCSats),
		USDReserves:     money.USDCents(rec.USDReserves),
		LastRebalanceAt: rec.LastRebalanceAt,
		RebalanceCount:  rec.RebalanceCount,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
