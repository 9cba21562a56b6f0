// Package export materializes snapshots as files: a wallet list CSV
// sorted by balance and a summary JSON with the per-collection rows.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"fastboard/internal/amqp"
	"fastboard/internal/log"
	"fastboard/internal/store"
)

const (
	walletListFile = "wallet_list.csv"
	summaryFile    = "summary.json"
)

// Exporter consumes snapshot messages and writes export files.
type Exporter struct {
	reader store.SnapshotReader
	dir    string
	logger *log.Logger
}

// NewExporter creates an exporter writing into dir.
func NewExporter(reader store.SnapshotReader, dir string, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Exporter{
		reader: reader,
		dir:    dir,
		logger: logger.WithComponent("export"),
	}
}

type summaryExport struct {
	SnapshotID        int64              `json:"snapshot_id"`
	CreatedAt         time.Time          `json:"created_at"`
	TotalWallets      int                `json:"total_wallets"`
	TotalValueUSD     string             `json:"total_value_usd"`
	CollectionCount   int                `json:"collection_count"`
	AvgWalletValueUSD string             `json:"avg_wallet_value_usd"`
	Collections       []collectionExport `json:"collections"`
}

type collectionExport struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ItemCount     int64  `json:"item_count"`
	WalletCount   int    `json:"wallet_count"`
	TotalValueUSD string `json:"total_value_usd"`
	Share         string `json:"share"`
}

// HandleSnapshot loads the announced snapshot and writes both export
// files. Files are overwritten in place so the directory always holds
// the latest snapshot.
func (e *Exporter) HandleSnapshot(ctx context.Context, msg *amqp.SnapshotMessage) error {
	snap, err := e.reader.GetSnapshot(ctx, msg.SnapshotID)
	if err != nil {
		return fmt.Errorf("load snapshot %d: %w", msg.SnapshotID, err)
	}

	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	if err := e.writeWalletList(snap); err != nil {
		return err
	}
	if err := e.writeSummary(snap); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "Exported snapshot",
		log.FieldSnapshotID, snap.ID,
		log.FieldWalletCount, len(snap.Wallets),
		"dir", e.dir)

	return nil
}

func (e *Exporter) writeWalletList(snap *store.Snapshot) error {
	path := filepath.Join(e.dir, walletListFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	// Highest balances first, matching how the list is read.
	records := append(snap.Wallets[:0:0], snap.Wallets...)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Balance.GreaterThan(records[j].Balance)
	})

	writer := csv.NewWriter(f)
	if err := writer.Write([]string{"Address", "Balance USD", "Collection"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, w := range records {
		if err := writer.Write([]string{w.Address, w.Balance.StringFixed(2), w.CollectionID}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return f.Close()
}

func (e *Exporter) writeSummary(snap *store.Snapshot) error {
	out := summaryExport{
		SnapshotID:        snap.ID,
		CreatedAt:         snap.CreatedAt,
		TotalWallets:      snap.Summary.TotalWallets,
		TotalValueUSD:     snap.Summary.TotalValue.StringFixed(2),
		CollectionCount:   snap.Summary.CollectionCount,
		AvgWalletValueUSD: snap.Summary.AverageWalletValue.StringFixed(2),
	}
	for _, row := range snap.Collections {
		out.Collections = append(out.Collections, collectionExport{
			ID:            row.Collection.ID,
			Name:          row.Collection.Name,
			ItemCount:     row.Collection.ItemCount,
			WalletCount:   row.WalletCount,
			TotalValueUSD: row.TotalValue.StringFixed(2),
			Share:         row.Share.StringFixed(4),
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	path := filepath.Join(e.dir, summaryFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
