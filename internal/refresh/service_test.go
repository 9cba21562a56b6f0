package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fastboard/internal/store"
)

type fakeFetcher struct {
	entities    []string
	entitiesErr error
	users       map[string][]string
	usersErr    map[string]error
}

func (f *fakeFetcher) Entities(_ context.Context) ([]string, error) {
	return f.entities, f.entitiesErr
}

func (f *fakeFetcher) EntityUsers(_ context.Context, entity string) ([]string, error) {
	if err := f.usersErr[entity]; err != nil {
		return nil, err
	}
	return f.users[entity], nil
}

type fakeBalances struct {
	balances map[string]decimal.Decimal
	err      error
	requests [][]string
}

func (f *fakeBalances) Balances(_ context.Context, addresses []string) (map[string]decimal.Decimal, error) {
	f.requests = append(f.requests, addresses)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]decimal.Decimal, len(addresses))
	for _, a := range addresses {
		out[a] = f.balances[a]
	}
	return out, nil
}

type fakePublisher struct {
	published []int64
	err       error
}

func (f *fakePublisher) PublishSnapshot(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, id)
	return nil
}

func TestServiceRun(t *testing.T) {
	fetcher := &fakeFetcher{
		entities: []string{"alpha", "beta"},
		users: map[string][]string{
			"alpha": {"0xa1", "0xa2"},
			"beta":  {"0xb1"},
		},
	}
	balances := &fakeBalances{
		balances: map[string]decimal.Decimal{
			"0xa1": decimal.RequireFromString("10"),
			"0xa2": decimal.RequireFromString("30"),
			"0xb1": decimal.RequireFromString("60"),
		},
	}
	st := store.NewMemoryStore()
	pub := &fakePublisher{}

	svc := NewService(fetcher, balances, st, pub, nil)

	snap, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if snap.Summary.TotalWallets != 3 {
		t.Errorf("TotalWallets = %d, want 3", snap.Summary.TotalWallets)
	}
	if !snap.Summary.TotalValue.Equal(decimal.RequireFromString("100")) {
		t.Errorf("TotalValue = %s, want 100", snap.Summary.TotalValue)
	}
	if snap.Summary.CollectionCount != 2 {
		t.Errorf("CollectionCount = %d, want 2", snap.Summary.CollectionCount)
	}

	if len(snap.Collections) != 2 {
		t.Fatalf("len(Collections) = %d, want 2", len(snap.Collections))
	}
	// beta holds 60 of 100, alpha 40; rows sort by value descending.
	if snap.Collections[0].Collection.ID != "beta" {
		t.Errorf("top collection = %s, want beta", snap.Collections[0].Collection.ID)
	}
	if !snap.Collections[0].Share.Equal(decimal.RequireFromString("0.6")) {
		t.Errorf("beta share = %s, want 0.6", snap.Collections[0].Share)
	}

	if len(pub.published) != 1 || pub.published[0] != snap.ID {
		t.Errorf("published = %v, want [%d]", pub.published, snap.ID)
	}

	stored, err := st.LatestSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if stored.ID != snap.ID {
		t.Errorf("stored id = %d, want %d", stored.ID, snap.ID)
	}
}

func TestServiceRunDeduplicatesWallets(t *testing.T) {
	fetcher := &fakeFetcher{
		entities: []string{"alpha", "beta"},
		users: map[string][]string{
			"alpha": {"0xshared", "0xa2"},
			"beta":  {"0xshared", "0xb1"},
		},
	}
	balances := &fakeBalances{
		balances: map[string]decimal.Decimal{
			"0xshared": decimal.RequireFromString("50"),
			"0xa2":     decimal.RequireFromString("25"),
			"0xb1":     decimal.RequireFromString("25"),
		},
	}
	st := store.NewMemoryStore()

	svc := NewService(fetcher, balances, st, nil, nil)

	snap, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if snap.Summary.TotalWallets != 3 {
		t.Errorf("TotalWallets = %d, want 3", snap.Summary.TotalWallets)
	}
	if len(balances.requests) != 1 {
		t.Fatalf("balance requests = %d, want 1", len(balances.requests))
	}
	if got := len(balances.requests[0]); got != 3 {
		t.Errorf("requested %d addresses, want 3 after dedupe", got)
	}

	// Shared wallet belongs to the first entity listing it.
	for _, w := range snap.Wallets {
		if w.Address == "0xshared" && w.CollectionID != "alpha" {
			t.Errorf("shared wallet assigned to %s, want alpha", w.CollectionID)
		}
	}
}

func TestServiceRunSkipsFailedEntity(t *testing.T) {
	fetcher := &fakeFetcher{
		entities: []string{"alpha", "broken"},
		users: map[string][]string{
			"alpha": {"0xa1"},
		},
		usersErr: map[string]error{
			"broken": errors.New("upstream timeout"),
		},
	}
	balances := &fakeBalances{
		balances: map[string]decimal.Decimal{
			"0xa1": decimal.RequireFromString("5"),
		},
	}

	svc := NewService(fetcher, balances, store.NewMemoryStore(), nil, nil)

	snap, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Summary.CollectionCount != 1 {
		t.Errorf("CollectionCount = %d, want 1 after skipping broken entity", snap.Summary.CollectionCount)
	}
}

func TestServiceRunEntitiesError(t *testing.T) {
	fetcher := &fakeFetcher{entitiesErr: errors.New("api down")}
	svc := NewService(fetcher, &fakeBalances{}, store.NewMemoryStore(), nil, nil)

	if _, err := svc.Run(context.Background()); err == nil {
		t.Error("Run should fail when the entity list cannot be fetched")
	}
}

func TestServiceRunBalancesError(t *testing.T) {
	fetcher := &fakeFetcher{
		entities: []string{"alpha"},
		users:    map[string][]string{"alpha": {"0xa1"}},
	}
	balances := &fakeBalances{err: errors.New("etherscan down")}
	svc := NewService(fetcher, balances, store.NewMemoryStore(), nil, nil)

	if _, err := svc.Run(context.Background()); err == nil {
		t.Error("Run should fail when balances cannot be fetched")
	}
}

func TestServiceRunPublishFailureIsNotFatal(t *testing.T) {
	fetcher := &fakeFetcher{
		entities: []string{"alpha"},
		users:    map[string][]string{"alpha": {"0xa1"}},
	}
	balances := &fakeBalances{
		balances: map[string]decimal.Decimal{"0xa1": decimal.RequireFromString("5")},
	}
	pub := &fakePublisher{err: errors.New("broker down")}
	st := store.NewMemoryStore()

	svc := NewService(fetcher, balances, st, pub, nil)

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run should succeed despite publish failure: %v", err)
	}
	if _, err := st.LatestSnapshot(context.Background()); err != nil {
		t.Errorf("snapshot should be persisted despite publish failure: %v", err)
	}
}

func TestServiceRunOnSavedHook(t *testing.T) {
	fetcher := &fakeFetcher{
		entities: []string{"alpha"},
		users:    map[string][]string{"alpha": {"0xa1"}},
	}
	balances := &fakeBalances{
		balances: map[string]decimal.Decimal{"0xa1": decimal.RequireFromString("5")},
	}

	svc := NewService(fetcher, balances, store.NewMemoryStore(), nil, nil)

	var called atomic.Int64
	svc.OnSaved = func(id int64) { called.Store(id) }

	snap, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called.Load() != snap.ID {
		t.Errorf("OnSaved called with %d, want %d", called.Load(), snap.ID)
	}
}

func TestSchedulerStartTwice(t *testing.T) {
	scheduler := NewScheduler(nil, time.Hour, nil)

	scheduler.mu.Lock()
	scheduler.running = true
	scheduler.mu.Unlock()

	if err := scheduler.Start(context.Background()); err == nil {
		t.Error("expected error when starting an already running scheduler")
	}
}

func TestSchedulerStopNotRunning(t *testing.T) {
	scheduler := NewScheduler(nil, time.Hour, nil)

	if err := scheduler.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestSchedulerRunsImmediately(t *testing.T) {
	fetcher := &fakeFetcher{
		entities: []string{"alpha"},
		users:    map[string][]string{"alpha": {"0xa1"}},
	}
	balances := &fakeBalances{
		balances: map[string]decimal.Decimal{"0xa1": decimal.RequireFromString("5")},
	}
	st := store.NewMemoryStore()

	svc := NewService(fetcher, balances, st, nil, nil)
	scheduler := NewScheduler(svc, time.Hour, nil)

	ctx := context.Background()
	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := st.LatestSnapshot(ctx); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not produce a snapshot in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !scheduler.IsRunning() {
		t.Error("scheduler should report running")
	}
	if err := scheduler.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if scheduler.IsRunning() {
		t.Error("scheduler should report stopped")
	}
}
