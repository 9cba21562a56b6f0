package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"fastboard/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists snapshots in a local SQLite database. Decimal
// values are stored as TEXT to keep them exact.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the snapshot database and
// runs pending migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close implements SnapshotStore.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveSnapshot implements SnapshotWriter. The snapshot and its rows
// are written in one transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *Snapshot) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (created_at, total_wallets, total_value, collection_count, avg_wallet_value)
		 VALUES (?, ?, ?, ?, ?)`,
		snap.CreatedAt.UTC().Format(time.RFC3339Nano),
		snap.Summary.TotalWallets,
		snap.Summary.TotalValue.String(),
		snap.Summary.CollectionCount,
		snap.Summary.AverageWalletValue.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("snapshot id: %w", err)
	}

	for i, row := range snap.Collections {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_collections
			 (snapshot_id, position, collection_id, name, item_count, collection_value, wallet_count, total_value, share)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i,
			row.Collection.ID, row.Collection.Name, row.Collection.ItemCount, row.Collection.TotalValue.String(),
			row.WalletCount, row.TotalValue.String(), row.Share.String(),
		)
		if err != nil {
			return 0, fmt.Errorf("insert collection row %d: %w", i, err)
		}
	}

	for i, w := range snap.Wallets {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_wallets (snapshot_id, position, address, balance, collection_id)
			 VALUES (?, ?, ?, ?, ?)`,
			id, i, w.Address, w.Balance.String(), w.CollectionID,
		)
		if err != nil {
			return 0, fmt.Errorf("insert wallet row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}
	return id, nil
}

// GetSnapshot implements SnapshotReader.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, id int64) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, total_wallets, total_value, collection_count, avg_wallet_value
		 FROM snapshots WHERE id = ?`, id)
	return s.scanSnapshot(ctx, row)
}

// LatestSnapshot implements SnapshotReader.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, total_wallets, total_value, collection_count, avg_wallet_value
		 FROM snapshots ORDER BY id DESC LIMIT 1`)
	return s.scanSnapshot(ctx, row)
}

func (s *SQLiteStore) scanSnapshot(ctx context.Context, row *sql.Row) (*Snapshot, error) {
	var (
		snap                 Snapshot
		createdAt            string
		totalValue, avgValue string
	)
	err := row.Scan(&snap.ID, &createdAt, &snap.Summary.TotalWallets, &totalValue,
		&snap.Summary.CollectionCount, &avgValue)
	if err == sql.ErrNoRows {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}

	if snap.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if snap.Summary.TotalValue, err = decimal.NewFromString(totalValue); err != nil {
		return nil, fmt.Errorf("parse total_value %q: %w", totalValue, err)
	}
	if snap.Summary.AverageWalletValue, err = decimal.NewFromString(avgValue); err != nil {
		return nil, fmt.Errorf("parse avg_wallet_value %q: %w", avgValue, err)
	}

	if snap.Collections, err = s.collectionRows(ctx, snap.ID); err != nil {
		return nil, err
	}
	if snap.Wallets, err = s.walletRows(ctx, snap.ID); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SQLiteStore) collectionRows(ctx context.Context, snapshotID int64) ([]core.CollectionPerformance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection_id, name, item_count, collection_value, wallet_count, total_value, share
		 FROM snapshot_collections WHERE snapshot_id = ? ORDER BY position`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query collection rows: %w", err)
	}
	defer rows.Close()

	var out []core.CollectionPerformance
	for rows.Next() {
		var (
			perf                               core.CollectionPerformance
			collectionValue, totalValue, share string
		)
		err := rows.Scan(&perf.Collection.ID, &perf.Collection.Name, &perf.Collection.ItemCount,
			&collectionValue, &perf.WalletCount, &totalValue, &share)
		if err != nil {
			return nil, fmt.Errorf("scan collection row: %w", err)
		}
		if perf.Collection.TotalValue, err = decimal.NewFromString(collectionValue); err != nil {
			return nil, fmt.Errorf("parse collection_value %q: %w", collectionValue, err)
		}
		if perf.TotalValue, err = decimal.NewFromString(totalValue); err != nil {
			return nil, fmt.Errorf("parse total_value %q: %w", totalValue, err)
		}
		if perf.Share, err = decimal.NewFromString(share); err != nil {
			return nil, fmt.Errorf("parse share %q: %w", share, err)
		}
		out = append(out, perf)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) walletRows(ctx context.Context, snapshotID int64) ([]core.WalletRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT address, balance, collection_id
		 FROM snapshot_wallets WHERE snapshot_id = ? ORDER BY position`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query wallet rows: %w", err)
	}
	defer rows.Close()

	var out []core.WalletRecord
	for rows.Next() {
		var (
			w       core.WalletRecord
			balance string
		)
		if err := rows.Scan(&w.Address, &balance, &w.CollectionID); err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		if w.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parse balance %q: %w", balance, err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
