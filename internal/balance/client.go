// Package balance looks up wallet balances through the Etherscan API
// and converts them to USD using the current ETH price.
package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fastboard/internal/log"
)

const priceCacheKey = "ethusd"

// Client batches balancemulti lookups and caches the ETH/USD price for
// five minutes so a refresh cycle prices every wallet consistently.
type Client struct {
	apiURL        string
	apiKey        string
	httpClient    *http.Client
	prices        *gocache.Cache
	batchSize     int
	maxConcurrent int
	logger        *log.Logger
}

// Options configures a Client.
type Options struct {
	APIURL        string
	APIKey        string
	Timeout       time.Duration
	BatchSize     int
	MaxConcurrent int
	Logger        *log.Logger
}

// NewClient creates an Etherscan balance client.
func NewClient(opts Options) *Client {
	batchSize := opts.BatchSize
	if batchSize < 1 || batchSize > 20 {
		batchSize = 20
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 5
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		apiURL:        strings.TrimRight(opts.APIURL, "/"),
		apiKey:        opts.APIKey,
		httpClient:    &http.Client{Timeout: opts.Timeout},
		prices:        gocache.New(5*time.Minute, 10*time.Minute),
		batchSize:     batchSize,
		maxConcurrent: maxConcurrent,
		logger:        logger.WithComponent("balance"),
	}
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type accountBalance struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type ethPrice struct {
	EthUSD string `json:"ethusd"`
}

// EthPriceUSD returns the current ETH/USD price, served from cache
// when a recent value is available.
func (c *Client) EthPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	if cached, ok := c.prices.Get(priceCacheKey); ok {
		return cached.(decimal.Decimal), nil
	}

	params := url.Values{}
	params.Set("module", "stats")
	params.Set("action", "ethprice")

	result, err := c.call(ctx, params)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch eth price: %w", err)
	}

	var price ethPrice
	if err := json.Unmarshal(result, &price); err != nil {
		return decimal.Zero, fmt.Errorf("decode eth price: %w", err)
	}
	value, err := decimal.NewFromString(price.EthUSD)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse eth price %q: %w", price.EthUSD, err)
	}

	c.prices.Set(priceCacheKey, value, gocache.DefaultExpiration)
	return value, nil
}

// Balances returns the USD value held by each address. Addresses are
// split into balancemulti batches fetched concurrently with a bounded
// group; an address missing from the response is reported as zero.
func (c *Client) Balances(ctx context.Context, addresses []string) (map[string]decimal.Decimal, error) {
	values := make(map[string]decimal.Decimal, len(addresses))
	if len(addresses) == 0 {
		return values, nil
	}

	price, err := c.EthPriceUSD(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)

	for start := 0; start < len(addresses); start += c.batchSize {
		end := start + c.batchSize
		if end > len(addresses) {
			end = len(addresses)
		}
		batch := addresses[start:end]

		g.Go(func() error {
			balances, err := c.fetchBatch(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for addr, wei := range balances {
				values[addr] = wei.Shift(-18).Mul(price)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, addr := range addresses {
		if _, ok := values[addr]; !ok {
			values[addr] = decimal.Zero
		}
	}

	c.logger.InfoContext(ctx, "Fetched wallet balances", log.FieldWalletCount, len(addresses))
	return values, nil
}

// fetchBatch returns wei balances keyed by lowercased address.
func (c *Client) fetchBatch(ctx context.Context, batch []string) (map[string]decimal.Decimal, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "balancemulti")
	params.Set("address", strings.Join(batch, ","))
	params.Set("tag", "latest")

	result, err := c.call(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch balances: %w", err)
	}

	var accounts []accountBalance
	if err := json.Unmarshal(result, &accounts); err != nil {
		return nil, fmt.Errorf("decode balances: %w", err)
	}

	// Etherscan echoes addresses in its own casing.
	wanted := make(map[string]string, len(batch))
	for _, addr := range batch {
		wanted[strings.ToLower(addr)] = addr
	}

	balances := make(map[string]decimal.Decimal, len(accounts))
	for _, acct := range accounts {
		addr, ok := wanted[strings.ToLower(acct.Account)]
		if !ok {
			continue
		}
		wei, err := decimal.NewFromString(acct.Balance)
		if err != nil {
			return nil, fmt.Errorf("parse balance %q for %s: %w", acct.Balance, acct.Account, err)
		}
		balances[addr] = wei
	}
	return balances, nil
}

func (c *Client) call(ctx context.Context, params url.Values) (json.RawMessage, error) {
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}
	requestURL := c.apiURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request etherscan: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Status != "1" {
		return nil, fmt.Errorf("etherscan error: %s", parsed.Message)
	}
	return parsed.Result, nil
}
