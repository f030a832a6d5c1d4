package collector

import (
	"context"
	"sync"

	"github.com/rawblock/evm-risk-engine/internal/apperr"
	"github.com/rawblock/evm-risk-engine/internal/indexer"
	"github.com/rawblock/evm-risk-engine/pkg/models"
)

// PriceOracle resolves a USD value for a native/token amount. The engine
// does not fetch live prices (see Non-goals) — callers that need USD
// valuation inject their own oracle; the default NoPricing oracle returns 0
// for everything, which keeps every USD-threshold rule a no-op rather than
// a crash.
type PriceOracle interface {
	USDValue(tokenSymbol string, amount string) float64
}

// NoPricing is the zero-value PriceOracle.
type NoPricing struct{}

func (NoPricing) USDValue(string, string) float64 { return 0 }

// Config bounds a single collection run.
type Config struct {
	MaxHops                  int
	MaxAddressesPerDirection int
	Workers                  int // bounded worker pool size, clamped to [2,4]
	Oracle                   PriceOracle
}

// Summary reports what happened during a collection run, independent of
// the graph contents — used to populate models.Summary.PartialData.
type Summary struct {
	AddressesVisited int
	MaxHopReached    int
	SuppressedErrors int
}

// Collector drives the bounded-concurrency BFS over an IndexerClient.
type Collector struct {
	client indexer.IndexerClient
}

// New returns a Collector backed by client.
func New(client indexer.IndexerClient) *Collector {
	return &Collector{client: client}
}

type frontierEntry struct {
	address string
	hop     int
}

type discovered struct {
	node models.Node
	edge models.Edge
}

// Collect runs a breadth-first traversal from seed up to cfg.MaxHops hops.
// Each hop fetches both the inbound and outbound counterparties of every
// address in the current frontier, merges them into a single next-hop
// candidate set, trims that merged set to cfg.MaxAddressesPerDirection, and
// advances the one resulting frontier to the next hop — an address reached
// through an inbound edge at hop N is free to be explored in either
// direction at hop N+1, since there is only ever one frontier. A canceled
// context aborts the whole run; Collect returns the context's error and no
// partial graph.
func (c *Collector) Collect(ctx context.Context, chainID int, seed string, cfg Config) (*models.ScoringGraph, Summary, error) {
	workers := cfg.Workers
	if workers < 2 {
		workers = 2
	}
	if workers > 4 {
		workers = 4
	}
	oracle := cfg.Oracle
	if oracle == nil {
		oracle = NoPricing{}
	}

	graph := &models.ScoringGraph{SeedAddresses: []string{seed}, ChainID: chainID}
	graph.Nodes = append(graph.Nodes, models.Node{ChainID: chainID, Address: seed, HopNumber: 0, Role: "source"})

	summary := Summary{AddressesVisited: 1}
	visited := map[string]bool{seed: true}

	var mu sync.Mutex // serializes graph + summary + visited mutation

	frontier := []frontierEntry{{address: seed, hop: 0}}

	for hop := 1; hop <= cfg.MaxHops; hop++ {
		if len(frontier) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, summary, err
		}

		results, err := c.fetchHop(ctx, chainID, frontier, workers, oracle)
		if err != nil {
			return nil, summary, err
		}

		nextAddrs := make(map[string]bool)
		for _, d := range results {
			mu.Lock()
			graph.Edges = append(graph.Edges, d.edge)
			if !graph.HasNode(chainID, d.node.Address) {
				graph.Nodes = append(graph.Nodes, d.node)
				if !visited[d.node.Address] {
					visited[d.node.Address] = true
					summary.AddressesVisited++
				}
			}
			if hop > graph.MaxHopReached {
				graph.MaxHopReached = hop
			}
			if hop > summary.MaxHopReached {
				summary.MaxHopReached = hop
			}
			mu.Unlock()
			nextAddrs[d.node.Address] = true
		}

		trimmed := trimFrontier(nextAddrs, cfg.MaxAddressesPerDirection)
		frontier = make([]frontierEntry, 0, len(trimmed))
		for _, addr := range trimmed {
			frontier = append(frontier, frontierEntry{address: addr, hop: hop})
		}
	}

	return graph, summary, nil
}

// trimFrontier returns a stable-ordered, size-bounded slice of addrs. Map
// iteration order is randomized by the runtime; a deterministic ordering
// matters for test reproducibility, so addresses are sorted before
// trimming.
func trimFrontier(addrs map[string]bool, limit int) []string {
	out := make([]string, 0, len(addrs))
	for a := range addrs {
		out = append(out, a)
	}
	sortStrings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// fetchHop fans out one request per frontier address through a bounded
// worker pool, isolating per-address failures: a failing address is
// skipped and counted, it never aborts the hop. Each address contributes
// both its inbound and outbound counterparties to the returned set.
func (c *Collector) fetchHop(ctx context.Context, chainID int, frontier []frontierEntry, workers int, oracle PriceOracle) ([]discovered, error) {
	jobs := make(chan frontierEntry)
	results := make(chan []discovered, len(frontier))
	errCh := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				fetched, err := c.fetchAddress(ctx, chainID, entry, oracle)
				if err != nil {
					if apperr.IsTransient(err) {
						results <- nil
						continue
					}
					select {
					case errCh <- err:
					default:
					}
					return
				}
				results <- fetched
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, entry := range frontier {
			select {
			case jobs <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	select {
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
	default:
	}

	var all []discovered
	for r := range results {
		all = append(all, r...)
	}
	return all, nil
}

func (c *Collector) fetchAddress(ctx context.Context, chainID int, entry frontierEntry, oracle PriceOracle) ([]discovered, error) {
	normalTxs, err := c.client.NormalTransactions(ctx, chainID, entry.address, 0, 99999999, "asc")
	if err != nil {
		return nil, err
	}
	tokenTxs, err := c.client.ERC20Transfers(ctx, chainID, entry.address, 0, 99999999, "asc")
	if err != nil {
		return nil, err
	}

	var out []discovered
	for _, raw := range normalTxs {
		out = append(out, fromRaw(raw, chainID, "txlist", entry, oracle)...)
	}
	for _, raw := range tokenTxs {
		out = append(out, fromRaw(raw, chainID, "tokentx", entry, oracle)...)
	}
	return out, nil
}

// fromRaw turns a single raw record touching entry.address into zero, one,
// or two discovered counterparties: one for each side of the transaction
// that actually matches entry.address (both, in the self-transfer edge
// case where from == to == entry.address).
func fromRaw(raw indexer.RawTx, chainID int, action string, entry frontierEntry, oracle PriceOracle) []discovered {
	inputData := "0x"
	if raw.MethodID != "" {
		inputData = raw.MethodID
	}
	tx, ok := toTransaction(raw, chainID, action, inputData)
	if !ok {
		return nil
	}
	tx.USDValue = oracle.USDValue(tx.TokenSymbol, tx.Amount)

	edge := models.Edge{
		FromAddress: tx.FromAddress,
		ToAddress:   tx.ToAddress,
		TxHash:      tx.TxHash,
		ChainID:     chainID,
		USDValue:    tx.USDValue,
		Timestamp:   tx.Timestamp,
		HopNumber:   entry.hop,
		TxType:      tx.TxType,
	}

	var out []discovered
	if tx.ToAddress == entry.address && tx.FromAddress != "" {
		out = append(out, discovered{
			node: models.Node{ChainID: chainID, Address: tx.FromAddress, HopNumber: entry.hop},
			edge: edge,
		})
	}
	if tx.FromAddress == entry.address && tx.ToAddress != "" {
		out = append(out, discovered{
			node: models.Node{ChainID: chainID, Address: tx.ToAddress, HopNumber: entry.hop},
			edge: edge,
		})
	}
	return out
}
