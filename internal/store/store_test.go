package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fastboard/internal/core"
)

func testSnapshot(t *testing.T) *Snapshot {
	t.Helper()

	w1, err := core.NewWalletRecord("0xabc", decimal.RequireFromString("60.5"), "c1")
	if err != nil {
		t.Fatalf("NewWalletRecord: %v", err)
	}
	w2, err := core.NewWalletRecord("0xdef", decimal.RequireFromString("39.5"), "c2")
	if err != nil {
		t.Fatalf("NewWalletRecord: %v", err)
	}

	c1, err := core.NewCollection("c1", "Alpha", 3, decimal.Zero)
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	c2, err := core.NewCollection("c2", "Beta", 1, decimal.Zero)
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}

	wallets := []core.WalletRecord{w1, w2}
	collections := []core.Collection{c1, c2}

	return &Snapshot{
		CreatedAt:   time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		Summary:     core.ComputeSummary(wallets, collections),
		Collections: core.ComputeCollectionPerformance(wallets, collections),
		Wallets:     wallets,
	}
}

func assertSnapshotEqual(t *testing.T, got, want *Snapshot) {
	t.Helper()

	if got.Summary.TotalWallets != want.Summary.TotalWallets {
		t.Errorf("TotalWallets = %d, want %d", got.Summary.TotalWallets, want.Summary.TotalWallets)
	}
	if !got.Summary.TotalValue.Equal(want.Summary.TotalValue) {
		t.Errorf("TotalValue = %s, want %s", got.Summary.TotalValue, want.Summary.TotalValue)
	}
	if got.Summary.CollectionCount != want.Summary.CollectionCount {
		t.Errorf("CollectionCount = %d, want %d", got.Summary.CollectionCount, want.Summary.CollectionCount)
	}
	if !got.Summary.AverageWalletValue.Equal(want.Summary.AverageWalletValue) {
		t.Errorf("AverageWalletValue = %s, want %s", got.Summary.AverageWalletValue, want.Summary.AverageWalletValue)
	}

	if len(got.Collections) != len(want.Collections) {
		t.Fatalf("len(Collections) = %d, want %d", len(got.Collections), len(want.Collections))
	}
	for i := range want.Collections {
		g, w := got.Collections[i], want.Collections[i]
		if g.Collection.ID != w.Collection.ID || g.Collection.Name != w.Collection.Name {
			t.Errorf("collection %d = %s/%s, want %s/%s", i, g.Collection.ID, g.Collection.Name, w.Collection.ID, w.Collection.Name)
		}
		if g.WalletCount != w.WalletCount {
			t.Errorf("collection %d wallet count = %d, want %d", i, g.WalletCount, w.WalletCount)
		}
		if !g.TotalValue.Equal(w.TotalValue) {
			t.Errorf("collection %d total = %s, want %s", i, g.TotalValue, w.TotalValue)
		}
		if !g.Share.Equal(w.Share) {
			t.Errorf("collection %d share = %s, want %s", i, g.Share, w.Share)
		}
	}

	if len(got.Wallets) != len(want.Wallets) {
		t.Fatalf("len(Wallets) = %d, want %d", len(got.Wallets), len(want.Wallets))
	}
	for i := range want.Wallets {
		g, w := got.Wallets[i], want.Wallets[i]
		if g.Address != w.Address || g.CollectionID != w.CollectionID || !g.Balance.Equal(w.Balance) {
			t.Errorf("wallet %d = %+v, want %+v", i, g, w)
		}
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	ctx := context.Background()
	snap := testSnapshot(t)

	id, err := s.SaveSnapshot(ctx, snap)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if id != 1 {
		t.Errorf("first snapshot id = %d, want 1", id)
	}

	got, err := s.GetSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	assertSnapshotEqual(t, got, snap)

	latest, err := s.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if latest.ID != id {
		t.Errorf("latest id = %d, want %d", latest.ID, id)
	}
}

func TestMemoryStoreEmpty(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.LatestSnapshot(ctx); err != ErrNoSnapshot {
		t.Errorf("LatestSnapshot error = %v, want ErrNoSnapshot", err)
	}
	if _, err := s.GetSnapshot(ctx, 42); err != ErrNoSnapshot {
		t.Errorf("GetSnapshot error = %v, want ErrNoSnapshot", err)
	}
}

func TestMemoryStoreLatestTracksNewest(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := testSnapshot(t)
	if _, err := s.SaveSnapshot(ctx, first); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	second := testSnapshot(t)
	second.Summary.TotalWallets = 99
	id, err := s.SaveSnapshot(ctx, second)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	latest, err := s.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if latest.ID != id {
		t.Errorf("latest id = %d, want %d", latest.ID, id)
	}
	if latest.Summary.TotalWallets != 99 {
		t.Errorf("latest TotalWallets = %d, want 99", latest.Summary.TotalWallets)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	snap := testSnapshot(t)

	id, err := s.SaveSnapshot(ctx, snap)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, err := s.GetSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	assertSnapshotEqual(t, got, snap)
	if !got.CreatedAt.Equal(snap.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, snap.CreatedAt)
	}

	latest, err := s.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if latest.ID != id {
		t.Errorf("latest id = %d, want %d", latest.ID, id)
	}
}

func TestSQLiteStoreEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	if _, err := s.LatestSnapshot(context.Background()); err != ErrNoSnapshot {
		t.Errorf("LatestSnapshot error = %v, want ErrNoSnapshot", err)
	}
}
