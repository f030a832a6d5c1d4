package scoring

import (
	"context"
	"testing"

	"github.com/rawblock/evm-risk-engine/internal/collector"
	"github.com/rawblock/evm-risk-engine/internal/indexer"
	"github.com/rawblock/evm-risk-engine/internal/lists"
	"github.com/rawblock/evm-risk-engine/internal/rules"
	"github.com/rawblock/evm-risk-engine/pkg/models"
)

const testSeed = "0x000000000000000000000000000000000000aa"
const testMixer = "0x8589427373D6D84E98730D7795D8f6f8731FDA0" // seeded mixer address

// fakeIndexer returns one native inbound transfer from a listed mixer to
// the seed address, and nothing else, regardless of which address or
// action is queried — enough to exercise one full collection hop without
// reaching out to a network.
type fakeIndexer struct{}

func (fakeIndexer) NormalTransactions(ctx context.Context, chainID int, address string, startBlock, endBlock uint64, sort string) ([]indexer.RawTx, error) {
	if address != testSeed {
		return nil, nil
	}
	return []indexer.RawTx{
		{
			Hash: "0xabc123", BlockNumber: "100", TimeStamp: "1700000000",
			From: testMixer, To: testSeed, Value: "1000000000000000000", // 1 ETH
		},
	}, nil
}

func (fakeIndexer) ERC20Transfers(ctx context.Context, chainID int, address string, startBlock, endBlock uint64, sort string) ([]indexer.RawTx, error) {
	return nil, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	loader := rules.NewLoader("../rules/ruleset.yaml")
	if err := loader.Load(); err != nil {
		t.Fatalf("loading ruleset: %v", err)
	}
	listLoader := lists.NewLoader("../lists/data")
	coll := collector.New(fakeIndexer{})

	cfg := DefaultConfig()
	cfg.MaxHops = 1
	cfg.Workers = 2

	return New(cfg, coll, listLoader, loader)
}

func TestAnalyzeAddress_CollectsAndScoresMixerInflow(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.AnalyzeAddress(context.Background(), AnalyzeRequest{
		RequestID: "req-1", ChainID: 1, Address: testSeed, AnalysisType: "basic",
	})
	if err != nil {
		t.Fatalf("AnalyzeAddress returned an error: %v", err)
	}

	if result.Address != testSeed {
		t.Errorf("expected address %s, got %s", testSeed, result.Address)
	}
	if result.Summary.TransactionsAnalyzed == 0 {
		t.Fatal("expected at least one collected transaction")
	}

	found := false
	for _, fr := range result.FiredRules {
		if fr.RuleID == "E-101" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected E-101 mixer exposure to be aggregated into the result, got %+v", result.FiredRules)
	}
	if result.Patterns.MixerExposureCount == 0 {
		t.Fatal("expected mixer exposure to be counted in transaction patterns")
	}
}

func TestAnalyzeAddress_EmptyHistoryReturnsLowRisk(t *testing.T) {
	e := newTestEngine(t)
	const quiet = "0x00000000000000000000000000000000000bbb"

	result, err := e.AnalyzeAddress(context.Background(), AnalyzeRequest{
		RequestID: "req-2", ChainID: 1, Address: quiet, AnalysisType: "basic",
	})
	if err != nil {
		t.Fatalf("AnalyzeAddress returned an error: %v", err)
	}
	if result.RiskLevel != "low" || result.RiskScore != 0 {
		t.Fatalf("expected a zero-risk result for an address with no transactions, got score=%v level=%s", result.RiskScore, result.RiskLevel)
	}
	if len(result.FiredRules) != 0 {
		t.Fatalf("expected no fired rules, got %+v", result.FiredRules)
	}
}

func TestScoreTransaction_FlagsSanctionedCounterparty(t *testing.T) {
	e := newTestEngine(t)
	tx := models.Transaction{
		TxHash:      "0xsanctioned1",
		ChainID:     1,
		Timestamp:   1700000000,
		FromAddress: "0x7f367cc41522ce07553e823bf3be79a889debe1b", // seeded SDN address
		ToAddress:   testSeed,
		TxType:      models.TxNative,
		USDValue:    500,
	}

	result, err := e.ScoreTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("ScoreTransaction returned an error: %v", err)
	}
	if result.TxHash != tx.TxHash {
		t.Errorf("expected tx hash to round-trip, got %s", result.TxHash)
	}

	found := false
	for _, fr := range result.FiredRules {
		if fr.RuleID == "C-001" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected C-001 sanction exposure to fire, got %+v", result.FiredRules)
	}
}
