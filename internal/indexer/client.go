// Package indexer talks to an Etherscan-V2-style multichain block explorer
// API to fetch raw transaction history for an address. It is the engine's
// only network dependency besides the bridge decoders.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rawblock/evm-risk-engine/internal/apperr"
)

// RawTx is the unparsed shape returned by the indexer's txlist/tokentx
// actions, before classification into models.Transaction.
type RawTx struct {
	Hash            string `json:"hash"`
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	ContractAddress string `json:"contractAddress"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
	MethodID        string `json:"methodId"`
	IsError         string `json:"isError"`
}

// IndexerClient fetches an address's transaction history on a given chain.
// chain_id is a per-call argument (not fixed at construction) so a single
// client instance can serve a multi-chain BFS collection.
type IndexerClient interface {
	NormalTransactions(ctx context.Context, chainID int, address string, startBlock, endBlock uint64, sort string) ([]RawTx, error)
	ERC20Transfers(ctx context.Context, chainID int, address string, startBlock, endBlock uint64, sort string) ([]RawTx, error)
}

// Config configures an EtherscanV2Client.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	MinDelay   time.Duration // floor between consecutive requests
}

// EtherscanV2Client is the default IndexerClient implementation.
type EtherscanV2Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	minDelay   time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewClient returns an EtherscanV2Client with sensible defaults applied.
func NewClient(cfg Config) *EtherscanV2Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.etherscan.io/v2/api"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.MinDelay == 0 {
		cfg.MinDelay = 400 * time.Millisecond
	}
	return &EtherscanV2Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: cfg.HTTPClient,
		minDelay:   cfg.MinDelay,
	}
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (c *EtherscanV2Client) NormalTransactions(ctx context.Context, chainID int, address string, startBlock, endBlock uint64, sort string) ([]RawTx, error) {
	return c.fetch(ctx, chainID, map[string]string{
		"module":    "account",
		"action":    "txlist",
		"address":   address,
		"startblock": strconv.FormatUint(startBlock, 10),
		"endblock":   strconv.FormatUint(endBlock, 10),
		"sort":      sort,
	})
}

func (c *EtherscanV2Client) ERC20Transfers(ctx context.Context, chainID int, address string, startBlock, endBlock uint64, sort string) ([]RawTx, error) {
	return c.fetch(ctx, chainID, map[string]string{
		"module":    "account",
		"action":    "tokentx",
		"address":   address,
		"startblock": strconv.FormatUint(startBlock, 10),
		"endblock":   strconv.FormatUint(endBlock, 10),
		"sort":      sort,
	})
}

// fetch issues one rate-limited GET and unpacks the result array. "No
// transactions found" is not an error: it returns (nil, nil).
func (c *EtherscanV2Client) fetch(ctx context.Context, chainID int, params map[string]string) ([]RawTx, error) {
	c.throttle()

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("chainid", strconv.Itoa(chainID))
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrTransientUpstream, "build indexer request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrTransientUpstream, "indexer request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.Wrap(apperr.ErrTransientUpstream, "indexer non-2xx", fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.Wrap(apperr.ErrTransientUpstream, "decode indexer response", err)
	}

	if parsed.Status == "0" {
		if parsed.Message == "No transactions found" {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.ErrTransientUpstream, "indexer NOTOK", fmt.Errorf("%s", parsed.Message))
	}

	var txs []RawTx
	if err := json.Unmarshal(parsed.Result, &txs); err != nil {
		return nil, nil // result wasn't an array (e.g. empty object) — treat as no data
	}
	return txs, nil
}

// throttle blocks until at least minDelay has elapsed since the previous
// call, serializing all callers through a single mutex-guarded timestamp.
func (c *EtherscanV2Client) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	wait := c.minDelay - time.Since(c.lastCall)
	if wait > 0 {
		time.Sleep(wait)
	}
	c.lastCall = time.Now()
}
