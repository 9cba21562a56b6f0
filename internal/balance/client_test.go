package balance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// fakeEtherscan serves ethprice and balancemulti with fixed data and
// counts calls per action.
type fakeEtherscan struct {
	priceCalls   int64
	balanceCalls int64
	// balances in wei keyed by lowercased address
	balances map[string]string
}

func (f *fakeEtherscan) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "ethprice":
			atomic.AddInt64(&f.priceCalls, 1)
			fmt.Fprint(w, `{"status":"1","message":"OK","result":{"ethusd":"2000"}}`)
		case "balancemulti":
			atomic.AddInt64(&f.balanceCalls, 1)
			addrs := strings.Split(r.URL.Query().Get("address"), ",")
			var rows []string
			for _, a := range addrs {
				if wei, ok := f.balances[strings.ToLower(a)]; ok {
					rows = append(rows, fmt.Sprintf(`{"account":"%s","balance":"%s"}`, a, wei))
				}
			}
			fmt.Fprintf(w, `{"status":"1","message":"OK","result":[%s]}`, strings.Join(rows, ","))
		default:
			http.Error(w, "unknown action", http.StatusBadRequest)
		}
	})
}

func newTestClient(t *testing.T, f *fakeEtherscan, batchSize int) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewClient(Options{
		APIURL:        srv.URL,
		APIKey:        "test",
		Timeout:       5 * time.Second,
		BatchSize:     batchSize,
		MaxConcurrent: 2,
	})
}

func TestBalancesConvertsWeiToUSD(t *testing.T) {
	f := &fakeEtherscan{balances: map[string]string{
		"0xa": "1000000000000000000", // 1 ETH
		"0xb": "500000000000000000",  // 0.5 ETH
	}}
	client := newTestClient(t, f, 20)

	got, err := client.Balances(context.Background(), []string{"0xA", "0xB"})
	if err != nil {
		t.Fatalf("Balances: %v", err)
	}

	if !got["0xA"].Equal(decimal.NewFromInt(2000)) {
		t.Errorf("0xA = %s, want 2000", got["0xA"])
	}
	if !got["0xB"].Equal(decimal.NewFromInt(1000)) {
		t.Errorf("0xB = %s, want 1000", got["0xB"])
	}
}

func TestBalancesMissingAddressIsZero(t *testing.T) {
	f := &fakeEtherscan{balances: map[string]string{"0xa": "1000000000000000000"}}
	client := newTestClient(t, f, 20)

	got, err := client.Balances(context.Background(), []string{"0xA", "0xUnknown"})
	if err != nil {
		t.Fatalf("Balances: %v", err)
	}
	if !got["0xUnknown"].IsZero() {
		t.Errorf("0xUnknown = %s, want 0", got["0xUnknown"])
	}
}

func TestBalancesBatchesRequests(t *testing.T) {
	f := &fakeEtherscan{balances: map[string]string{}}
	addrs := make([]string, 45)
	for i := range addrs {
		addrs[i] = fmt.Sprintf("0x%02d", i)
		f.balances[strings.ToLower(addrs[i])] = "0"
	}
	client := newTestClient(t, f, 20)

	if _, err := client.Balances(context.Background(), addrs); err != nil {
		t.Fatalf("Balances: %v", err)
	}
	if n := atomic.LoadInt64(&f.balanceCalls); n != 3 {
		t.Errorf("balancemulti calls = %d, want 3 for 45 addresses in batches of 20", n)
	}
}

func TestEthPriceIsCached(t *testing.T) {
	f := &fakeEtherscan{balances: map[string]string{"0xa": "0"}}
	client := newTestClient(t, f, 20)

	for i := 0; i < 3; i++ {
		if _, err := client.Balances(context.Background(), []string{"0xA"}); err != nil {
			t.Fatalf("Balances: %v", err)
		}
	}
	if n := atomic.LoadInt64(&f.priceCalls); n != 1 {
		t.Errorf("ethprice calls = %d, want 1 (cached)", n)
	}
}

func TestBalancesEmptyInput(t *testing.T) {
	f := &fakeEtherscan{}
	client := newTestClient(t, f, 20)

	got, err := client.Balances(context.Background(), nil)
	if err != nil {
		t.Fatalf("Balances: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty map, got %v", got)
	}
	if atomic.LoadInt64(&f.priceCalls) != 0 {
		t.Error("expected no API calls for empty input")
	}
}

func TestEtherscanErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`)
	}))
	defer srv.Close()

	client := NewClient(Options{APIURL: srv.URL, Timeout: 5 * time.Second})
	if _, err := client.Balances(context.Background(), []string{"0xA"}); err == nil {
		t.Fatal("expected error for NOTOK status")
	}
}
