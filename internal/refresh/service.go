// Package refresh runs the data pipeline: fetch entities and their
// users from the FAST Protocol API, price the wallets via Etherscan,
// aggregate, and persist the result as a snapshot.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fastboard/internal/core"
	"fastboard/internal/log"
	"fastboard/internal/store"
)

// EntityFetcher lists collections and their claiming users.
type EntityFetcher interface {
	Entities(ctx context.Context) ([]string, error)
	EntityUsers(ctx context.Context, entity string) ([]string, error)
}

// BalanceFetcher resolves wallet addresses to USD balances.
type BalanceFetcher interface {
	Balances(ctx context.Context, addresses []string) (map[string]decimal.Decimal, error)
}

// SnapshotPublisher announces saved snapshots to the export queue.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snapshotID int64) error
}

// Service orchestrates one refresh cycle end to end.
type Service struct {
	fetcher   EntityFetcher
	balances  BalanceFetcher
	writer    store.SnapshotWriter
	publisher SnapshotPublisher
	logger    *log.Logger

	// OnSaved is called after each persisted snapshot. The HTTP layer
	// uses it to invalidate partial caches.
	OnSaved func(snapshotID int64)
}

// NewService creates a refresh service. publisher may be nil when AMQP
// is disabled.
func NewService(fetcher EntityFetcher, balances BalanceFetcher, writer store.SnapshotWriter, publisher SnapshotPublisher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Service{
		fetcher:   fetcher,
		balances:  balances,
		writer:    writer,
		publisher: publisher,
		logger:    logger.WithComponent("refresh"),
	}
}

// Run executes one refresh cycle and returns the persisted snapshot.
// A failing entity is skipped; the cycle fails only when the entity
// list itself or the balance lookup cannot be fetched.
func (s *Service) Run(ctx context.Context) (*store.Snapshot, error) {
	started := time.Now()

	entities, err := s.fetcher.Entities(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch entities: %w", err)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("no entities returned by API")
	}

	// A wallet claiming several entities is attributed to the first
	// one that lists it.
	var (
		collections []core.Collection
		addresses   []string
		assigned    = make(map[string]string)
	)
	for _, entity := range entities {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		users, err := s.fetcher.EntityUsers(ctx, entity)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping entity after fetch failure",
				log.FieldEntity, entity, log.FieldError, err)
			continue
		}

		collection, err := core.NewCollection(entity, entity, int64(len(users)), decimal.Zero)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping invalid entity",
				log.FieldEntity, entity, log.FieldError, err)
			continue
		}
		collections = append(collections, collection)

		for _, addr := range users {
			if _, seen := assigned[addr]; seen {
				continue
			}
			assigned[addr] = entity
			addresses = append(addresses, addr)
		}
	}

	if len(collections) == 0 {
		return nil, fmt.Errorf("no entity could be fetched")
	}

	balances, err := s.balances.Balances(ctx, addresses)
	if err != nil {
		return nil, fmt.Errorf("fetch balances: %w", err)
	}

	wallets := make([]core.WalletRecord, 0, len(addresses))
	for _, addr := range addresses {
		record, err := core.NewWalletRecord(addr, balances[addr], assigned[addr])
		if err != nil {
			s.logger.WarnContext(ctx, "Dropping invalid wallet record",
				"address", addr, log.FieldError, err)
			continue
		}
		wallets = append(wallets, record)
	}

	snap := &store.Snapshot{
		CreatedAt:   time.Now().UTC(),
		Summary:     core.ComputeSummary(wallets, collections),
		Collections: core.ComputeCollectionPerformance(wallets, collections),
		Wallets:     wallets,
	}

	id, err := s.writer.SaveSnapshot(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	snap.ID = id

	if s.publisher != nil {
		if err := s.publisher.PublishSnapshot(ctx, id); err != nil {
			// Export is best effort; the snapshot is already durable.
			s.logger.WarnContext(ctx, "Failed to publish snapshot message",
				log.FieldSnapshotID, id, log.FieldError, err)
		}
	}

	if s.OnSaved != nil {
		s.OnSaved(id)
	}

	s.logger.InfoContext(ctx, "Refresh cycle completed",
		log.FieldSnapshotID, id,
		log.FieldWalletCount, len(wallets),
		"collections", len(collections),
		log.FieldDuration, time.Since(started).Round(time.Millisecond))

	return snap, nil
}
