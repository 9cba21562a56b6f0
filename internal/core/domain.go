package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyAddress      = errors.New("empty wallet address")
	ErrNegativeBalance   = errors.New("negative balance")
	ErrEmptyCollectionID = errors.New("empty collection id")
	ErrEmptyName         = errors.New("empty collection name")
	ErrNegativeItemCount = errors.New("negative item count")
	ErrNegativeValue     = errors.New("negative total value")
)

// ValidationError reports a rejected field on record construction.
// Records are validated when built from fetched API data so the
// aggregator can assume valid input.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

type (
	// WalletRecord is an address holding some balance, optionally
	// associated with one collection (empty CollectionID means none).
	// Immutable once constructed; discarded at the end of each refresh.
	WalletRecord struct {
		Address      string
		Balance      decimal.Decimal
		CollectionID string
	}

	// Collection is a named grouping of wallets/items with an
	// aggregate value, as reported by the upstream API.
	Collection struct {
		ID         string
		Name       string
		ItemCount  int64
		TotalValue decimal.Decimal
	}

	// SummaryMetrics holds the dashboard headline figures. Derived,
	// recomputed on every refresh, never persisted as authoritative state.
	SummaryMetrics struct {
		TotalWallets       int
		TotalValue         decimal.Decimal
		CollectionCount    int
		AverageWalletValue decimal.Decimal
	}

	// CollectionPerformance is the per-collection breakdown row.
	CollectionPerformance struct {
		Collection  Collection
		WalletCount int
		TotalValue  decimal.Decimal
		Share       decimal.Decimal
	}
)

// NewWalletRecord builds a validated wallet record. The address must be
// non-empty (hex format is not cryptographically checked here) and the
// balance non-negative.
func NewWalletRecord(address string, balance decimal.Decimal, collectionID string) (WalletRecord, error) {
	if strings.TrimSpace(address) == "" {
		return WalletRecord{}, &ValidationError{Field: "address", Err: ErrEmptyAddress}
	}
	if balance.IsNegative() {
		return WalletRecord{}, &ValidationError{Field: "balance", Err: ErrNegativeBalance}
	}
	return WalletRecord{
		Address:      address,
		Balance:      balance,
		CollectionID: collectionID,
	}, nil
}

// NewCollection builds a validated collection record.
func NewCollection(id, name string, itemCount int64, totalValue decimal.Decimal) (Collection, error) {
	if strings.TrimSpace(id) == "" {
		return Collection{}, &ValidationError{Field: "id", Err: ErrEmptyCollectionID}
	}
	if strings.TrimSpace(name) == "" {
		return Collection{}, &ValidationError{Field: "name", Err: ErrEmptyName}
	}
	if itemCount < 0 {
		return Collection{}, &ValidationError{Field: "itemCount", Err: ErrNegativeItemCount}
	}
	if totalValue.IsNegative() {
		return Collection{}, &ValidationError{Field: "totalValue", Err: ErrNegativeValue}
	}
	return Collection{
		ID:         id,
		Name:       name,
		ItemCount:  itemCount,
		TotalValue: totalValue,
	}, nil
}
