package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fastboard/internal/store"
)

// maxWalletRows caps the wallet table; the full list is available via
// the CSV export.
const maxWalletRows = 100

type summaryView struct {
	HasData         bool
	GeneratedAt     string
	TotalWallets    int
	TotalValue      string
	CollectionCount int
	AvgWalletValue  string
}

type collectionRow struct {
	ID          string
	Name        string
	ItemCount   int64
	WalletCount int
	TotalValue  string
	Share       string
	Width       int
}

type collectionsView struct {
	HasData bool
	Rows    []collectionRow
}

type walletRow struct {
	Address    string
	Short      string
	Balance    string
	Collection string
}

type walletsView struct {
	HasData   bool
	Rows      []walletRow
	Truncated bool
	Total     int
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data := struct {
		RefreshEnabled bool
	}{
		RefreshEnabled: s.refresher != nil,
	}

	if err := s.templates.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Dashboard template execution failed", "error", err, "template", "dashboard.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// renderPartial memoizes a rendered partial under its cache key until
// the next snapshot invalidates it.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, key, tmpl string, build func(*store.Snapshot) any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if cached, found := s.partialCache.Get(key); found {
		_, _ = w.Write(cached)
		return
	}

	snap, err := s.reader.LatestSnapshot(r.Context())
	if err != nil && err != store.ErrNoSnapshot {
		slog.ErrorContext(r.Context(), "Load snapshot failed", "error", err, "partial", key)
		_, _ = w.Write([]byte(`<div class="placeholder error">Data unavailable</div>`))
		return
	}

	data := build(snap)

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, tmpl, data); err != nil {
		slog.ErrorContext(r.Context(), "Partial template execution failed", "error", err, "template", tmpl)
		_, _ = w.Write([]byte(`<div class="placeholder error">Rendering failed</div>`))
		return
	}

	s.partialCache.Set(key, buf.Bytes())
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSummaryPartial(w http.ResponseWriter, r *http.Request) {
	s.renderPartial(w, r, "summary", "summary.html", func(snap *store.Snapshot) any {
		if snap == nil {
			return summaryView{}
		}
		return summaryView{
			HasData:         true,
			GeneratedAt:     snap.CreatedAt.UTC().Format(time.RFC1123),
			TotalWallets:    snap.Summary.TotalWallets,
			TotalValue:      formatUSD(snap.Summary.TotalValue),
			CollectionCount: snap.Summary.CollectionCount,
			AvgWalletValue:  formatUSD(snap.Summary.AverageWalletValue),
		}
	})
}

func (s *Server) handleCollectionsPartial(w http.ResponseWriter, r *http.Request) {
	s.renderPartial(w, r, "collections", "collections.html", func(snap *store.Snapshot) any {
		view := collectionsView{}
		if snap == nil {
			return view
		}
		view.HasData = true

		// Rows arrive sorted by value descending; scale bars to the top row.
		var top decimal.Decimal
		if len(snap.Collections) > 0 {
			top = snap.Collections[0].TotalValue
		}
		for _, row := range snap.Collections {
			width := 0
			if top.IsPositive() {
				width = int(row.TotalValue.Div(top).Mul(decimal.NewFromInt(100)).IntPart())
				if width > 0 && width < 2 {
					width = 2
				}
				if width > 100 {
					width = 100
				}
			}
			view.Rows = append(view.Rows, collectionRow{
				ID:          row.Collection.ID,
				Name:        row.Collection.Name,
				ItemCount:   row.Collection.ItemCount,
				WalletCount: row.WalletCount,
				TotalValue:  formatUSD(row.TotalValue),
				Share:       formatPercent(row.Share),
				Width:       width,
			})
		}
		return view
	})
}

func (s *Server) handleWalletsPartial(w http.ResponseWriter, r *http.Request) {
	s.renderPartial(w, r, "wallets", "wallets.html", func(snap *store.Snapshot) any {
		view := walletsView{}
		if snap == nil {
			return view
		}
		view.HasData = true
		view.Total = len(snap.Wallets)

		records := append(snap.Wallets[:0:0], snap.Wallets...)
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Balance.GreaterThan(records[j].Balance)
		})
		if len(records) > maxWalletRows {
			records = records[:maxWalletRows]
			view.Truncated = true
		}
		for _, rec := range records {
			view.Rows = append(view.Rows, walletRow{
				Address:    rec.Address,
				Short:      shortenAddress(rec.Address),
				Balance:    formatUSD(rec.Balance),
				Collection: rec.CollectionID,
			})
		}
		return view
	})
}

// handleChartData serves the per-collection value distribution consumed
// by the dashboard chart.
func (s *Server) handleChartData(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	snap, err := s.reader.LatestSnapshot(r.Context())
	if err == store.ErrNoSnapshot {
		_ = json.NewEncoder(w).Encode(chartData{Labels: []string{}, Values: []float64{}, Shares: []float64{}})
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Load snapshot for chart failed", "error", err)
		http.Error(w, "data unavailable", http.StatusInternalServerError)
		return
	}

	data := chartData{
		Labels: make([]string, 0, len(snap.Collections)),
		Values: make([]float64, 0, len(snap.Collections)),
		Shares: make([]float64, 0, len(snap.Collections)),
	}
	for _, row := range snap.Collections {
		value, _ := row.TotalValue.Float64()
		share, _ := row.Share.Float64()
		data.Labels = append(data.Labels, row.Collection.Name)
		data.Values = append(data.Values, value)
		data.Shares = append(data.Shares, share)
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(r.Context(), "Encode chart data failed", "error", err)
	}
}

type chartData struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Shares []float64 `json:"shares"`
}

// handleRefresh runs one refresh cycle on demand.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}
	if s.refresher == nil {
		ErrorResponse(http.StatusServiceUnavailable, "Manual refresh is disabled").Write(w)
		return
	}

	snap, err := s.refresher.Run(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Manual refresh failed", "error", err)
		InternalServerError("Refresh failed, showing last known data").
			TriggerErrorNotification("Refresh failed, showing last known data").
			Write(w)
		return
	}

	s.InvalidateCaches()

	NewHTMXResponse().
		TriggerSnapshotRefreshed(snap.ID).
		TriggerSuccessNotification("Data refreshed").
		BodyHTML(`<div class="success">Snapshot updated</div>`).
		Write(w)
}
