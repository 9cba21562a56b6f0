package core

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ComputeSummary derives the headline metrics from a refresh cycle's
// record set. Balance sums use exact decimal arithmetic.
//
// CollectionCount counts all fetched collections, not only those with
// at least one wallet, matching the upstream dashboard's behavior.
// With zero wallets the average is defined as zero.
func ComputeSummary(wallets []WalletRecord, collections []Collection) SummaryMetrics {
	total := decimal.Zero
	for _, w := range wallets {
		total = total.Add(w.Balance)
	}

	avg := decimal.Zero
	if len(wallets) > 0 {
		avg = total.Div(decimal.NewFromInt(int64(len(wallets))))
	}

	return SummaryMetrics{
		TotalWallets:       len(wallets),
		TotalValue:         total,
		CollectionCount:    len(collections),
		AverageWalletValue: avg,
	}
}

// ComputeCollectionPerformance groups wallets by collection and returns
// one row per collection that has at least one associated wallet,
// ordered by descending total value with ties broken by name ascending
// (case-insensitive).
//
// Each row's share is its fraction of the grand total across assigned
// wallets, so shares sum to one when that total is positive. Wallets
// referencing an unknown collection id are excluded here; they still
// count toward ComputeSummary.
func ComputeCollectionPerformance(wallets []WalletRecord, collections []Collection) []CollectionPerformance {
	byID := make(map[string]Collection, len(collections))
	for _, c := range collections {
		byID[c.ID] = c
	}

	type group struct {
		total decimal.Decimal
		count int
	}
	groups := make(map[string]*group)
	grand := decimal.Zero
	for _, w := range wallets {
		if _, known := byID[w.CollectionID]; !known {
			continue
		}
		g, ok := groups[w.CollectionID]
		if !ok {
			g = &group{total: decimal.Zero}
			groups[w.CollectionID] = g
		}
		g.total = g.total.Add(w.Balance)
		g.count++
		grand = grand.Add(w.Balance)
	}

	rows := make([]CollectionPerformance, 0, len(groups))
	for id, g := range groups {
		share := decimal.Zero
		if grand.IsPositive() {
			share = g.total.Div(grand)
		}
		rows = append(rows, CollectionPerformance{
			Collection:  byID[id],
			WalletCount: g.count,
			TotalValue:  g.total,
			Share:       share,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].TotalValue.Equal(rows[j].TotalValue) {
			return rows[i].TotalValue.GreaterThan(rows[j].TotalValue)
		}
		return strings.ToLower(rows[i].Collection.Name) < strings.ToLower(rows[j].Collection.Name)
	})

	return rows
}
