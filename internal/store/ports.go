// Package store persists refresh snapshots so the dashboard can fall
// back to the last good data set when the upstream API is unreachable.
package store

import (
	"context"
	"errors"
	"time"

	"fastboard/internal/core"
)

// ErrNoSnapshot is returned when no snapshot has been persisted yet.
var ErrNoSnapshot = errors.New("no snapshot available")

// Snapshot is one fully-materialized refresh cycle: the raw record set
// plus the aggregates computed from it. The aggregates are a cache of
// the last run, never authoritative; they are recomputed from records
// on every refresh.
type Snapshot struct {
	ID          int64
	CreatedAt   time.Time
	Summary     core.SummaryMetrics
	Collections []core.CollectionPerformance
	Wallets     []core.WalletRecord
}

// SnapshotWriter persists completed refresh cycles.
type SnapshotWriter interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) (int64, error)
}

// SnapshotReader serves persisted snapshots to the dashboard and the
// export worker.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, id int64) (*Snapshot, error)
	LatestSnapshot(ctx context.Context) (*Snapshot, error)
}

// SnapshotStore is the full snapshot persistence surface.
type SnapshotStore interface {
	SnapshotWriter
	SnapshotReader
	Close() error
}
