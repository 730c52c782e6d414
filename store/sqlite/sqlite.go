/*
Package sqlite provides a SQLite-backed persistence Gateway.

PURPOSE:
  Stores every account's identity, balances and transaction history in one
  SQLite database. The same schema applies to PostgreSQL with minor dialect
  changes.

KEY TABLES:
  accounts:  One row per account (kind, identity fields, overdraft, members)
  balances:  Current per-currency balance per account
  history:   Append-only per-account transaction log

APPEND-ONLY ENFORCEMENT:
  history rows are only ever inserted. A Save writes the entries beyond the
  count already stored; nothing updates or deletes a history row.

WAL MODE:
  The database is opened with WAL (Write-Ahead Logging): readers don't block
  the single writer, and crash recovery is cleaner.

USAGE:
  gw, err := sqlite.New("./data/eco.db", pool)
  if err != nil {
      log.Fatal(err)
  }
  defer gw.Close()

SEE ALSO:
  - account/gateway.go: Gateway contract and Snapshot
  - store/yaml: file-per-account alternative
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/EconToolBox/EconToolBox/account"
)

// Gateway implements account.Gateway on SQLite.
type Gateway struct {
	db   *sql.DB
	pool *account.Pool
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database. Loaded accounts run their
// asynchronous operations on pool; nil is allowed.
func New(dbPath string, pool *account.Pool) (*Gateway, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The sqlite3 driver is not safe for concurrent writes over multiple
	// connections to the same file.
	db.SetMaxOpenConns(1)

	g := &Gateway{db: db, pool: pool}
	if err := g.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return g, nil
}

// Close closes the database connection.
func (g *Gateway) Close() error {
	return g.db.Close()
}

func (g *Gateway) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		key TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT,
		owner TEXT,
		uuid TEXT,
		overdraft INTEGER NOT NULL DEFAULT 0,
		members TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS balances (
		account_key TEXT NOT NULL REFERENCES accounts(key) ON DELETE CASCADE,
		namespace TEXT NOT NULL,
		currency TEXT NOT NULL,
		symbol TEXT,
		amount TEXT NOT NULL,
		PRIMARY KEY (account_key, namespace, currency)
	);

	-- Append-only: rows are inserted, never updated or deleted.
	CREATE TABLE IF NOT EXISTS history (
		account_key TEXT NOT NULL REFERENCES accounts(key) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		tx_type TEXT NOT NULL,
		namespace TEXT NOT NULL,
		currency TEXT NOT NULL,
		symbol TEXT,
		amount TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		counterparty TEXT,
		PRIMARY KEY (account_key, idx)
	);

	CREATE INDEX IF NOT EXISTS idx_history_account
		ON history(account_key, idx);
	`
	_, err := g.db.Exec(schema)
	return err
}

// Save stores the account's current state in one database transaction.
func (g *Gateway) Save(ctx context.Context, acc account.Account) error {
	snap := account.TakeSnapshot(acc)

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save %s: %w", acc.Key(), err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (key, kind, name, owner, uuid, overdraft, members, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			overdraft = excluded.overdraft,
			members = excluded.members,
			updated_at = excluded.updated_at`,
		acc.Key(), string(snap.Kind), snap.Name, snap.Owner, snap.UUID,
		boolToInt(snap.Overdraft), strings.Join(snap.Members, ","),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", acc.Key(), err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM balances WHERE account_key = ?`, acc.Key()); err != nil {
		return fmt.Errorf("clear balances %s: %w", acc.Key(), err)
	}
	for _, b := range snap.Balances {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO balances (account_key, namespace, currency, symbol, amount)
			VALUES (?, ?, ?, ?, ?)`,
			acc.Key(), b.Namespace, b.Currency, b.Symbol, b.Amount)
		if err != nil {
			return fmt.Errorf("insert balance %s %s: %w", acc.Key(), b.Currency, err)
		}
	}

	// Only the entries beyond what is already stored are written.
	var stored int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM history WHERE account_key = ?`, acc.Key()).Scan(&stored); err != nil {
		return fmt.Errorf("count history %s: %w", acc.Key(), err)
	}
	for i := stored; i < len(snap.History); i++ {
		h := snap.History[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO history (account_key, idx, tx_type, namespace, currency, symbol, amount, timestamp, counterparty)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			acc.Key(), i, h.Type, h.Namespace, h.Currency, h.Symbol, h.Amount,
			h.Timestamp.UTC().Format(time.RFC3339Nano), h.Counterparty)
		if err != nil {
			return fmt.Errorf("insert history %s[%d]: %w", acc.Key(), i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save %s: %w", acc.Key(), err)
	}
	return nil
}

// Load reconstructs the account stored under key. The account is wired back
// to this gateway for subsequent saves.
func (g *Gateway) Load(ctx context.Context, key string) (account.Account, error) {
	snap, err := g.loadSnapshot(ctx, key)
	if err != nil {
		return nil, err
	}
	return account.FromSnapshot(snap, g, g.pool)
}

// LoadAll loads every stored account. Used at startup to populate the
// registry.
func (g *Gateway) LoadAll(ctx context.Context) ([]account.Account, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT key FROM accounts ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	accounts := make([]account.Account, 0, len(keys))
	for _, key := range keys {
		acc, err := g.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

// Delete removes an account with its balances and history. Used when named
// accounts are removed.
func (g *Gateway) Delete(ctx context.Context, key string) error {
	if _, err := g.db.ExecContext(ctx, `DELETE FROM accounts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (g *Gateway) loadSnapshot(ctx context.Context, key string) (account.Snapshot, error) {
	var (
		snap    account.Snapshot
		kind    string
		name    sql.NullString
		owner   sql.NullString
		id      sql.NullString
		over    int
		members sql.NullString
	)
	err := g.db.QueryRowContext(ctx, `
		SELECT kind, name, owner, uuid, overdraft, members
		FROM accounts WHERE key = ?`, key).
		Scan(&kind, &name, &owner, &id, &over, &members)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, fmt.Errorf("load %q: %w", key, account.ErrUnknownAccount)
	}
	if err != nil {
		return snap, fmt.Errorf("load %q: %w", key, err)
	}
	snap.Kind = account.Kind(kind)
	snap.Name = name.String
	snap.Owner = owner.String
	snap.UUID = id.String
	snap.Overdraft = over != 0
	if members.String != "" {
		snap.Members = strings.Split(members.String, ",")
	}

	rows, err := g.db.QueryContext(ctx, `
		SELECT namespace, currency, symbol, amount
		FROM balances WHERE account_key = ?`, key)
	if err != nil {
		return snap, fmt.Errorf("balances %q: %w", key, err)
	}
	defer rows.Close()
	for rows.Next() {
		var b account.BalanceRecord
		var symbol sql.NullString
		if err := rows.Scan(&b.Namespace, &b.Currency, &symbol, &b.Amount); err != nil {
			return snap, err
		}
		b.Symbol = symbol.String
		snap.Balances = append(snap.Balances, b)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	hrows, err := g.db.QueryContext(ctx, `
		SELECT tx_type, namespace, currency, symbol, amount, timestamp, counterparty
		FROM history WHERE account_key = ? ORDER BY idx`, key)
	if err != nil {
		return snap, fmt.Errorf("history %q: %w", key, err)
	}
	defer hrows.Close()
	for hrows.Next() {
		var (
			h            account.HistoryRecord
			symbol       sql.NullString
			counterparty sql.NullString
			ts           string
		)
		if err := hrows.Scan(&h.Type, &h.Namespace, &h.Currency, &symbol, &h.Amount, &ts, &counterparty); err != nil {
			return snap, err
		}
		h.Symbol = symbol.String
		h.Counterparty = counterparty.String
		h.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return snap, fmt.Errorf("history timestamp %q: %w", ts, err)
		}
		snap.History = append(snap.History, h)
	}
	return snap, hrows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
