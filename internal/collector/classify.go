// Package collector drives the bounded-concurrency multi-hop BFS that
// fetches transaction history per address and classifies raw indexer
// records into typed models.Transaction values.
package collector

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/rawblock/evm-risk-engine/internal/bridges"
	"github.com/rawblock/evm-risk-engine/internal/indexer"
	"github.com/rawblock/evm-risk-engine/pkg/models"
)

const nativeTokenDecimals = 18

// classify determines a raw record's TxType, mirroring the original's
// dispatch: tokentx action + ERC20 transfer selector -> ERC20_TRANSFER;
// txlist action + empty calldata -> NATIVE; otherwise dispatch on method id
// against the swap/bridge tables; everything else is UNKNOWN.
func classify(raw indexer.RawTx, action string, inputData string) models.TxType {
	switch {
	case action == "tokentx":
		return models.TxERC20Transfer
	case action == "txlist" && inputData == "0x":
		return models.TxNative
	case bridges.IsSwap(raw.MethodID):
		return models.TxSwap
	case bridges.IsBridge(raw.MethodID):
		return models.TxBridge
	default:
		return models.TxUnknown
	}
}

// toTransaction converts a raw indexer record for the given action
// ("txlist" or "tokentx") into a normalized Transaction. Returns ok=false
// for UNKNOWN-classified records, which are dropped entirely rather than
// carried through the graph.
func toTransaction(raw indexer.RawTx, chainID int, action, inputData string) (models.Transaction, bool) {
	txType := classify(raw, action, inputData)
	if txType == models.TxUnknown {
		return models.Transaction{}, false
	}

	blockHeight, _ := strconv.ParseUint(raw.BlockNumber, 10, 64)
	timestamp, _ := strconv.ParseInt(raw.TimeStamp, 10, 64)

	tx := models.Transaction{
		TxHash:      strings.ToLower(raw.Hash),
		ChainID:     chainID,
		BlockHeight: blockHeight,
		Timestamp:   timestamp,
		FromAddress: strings.ToLower(raw.From),
		ToAddress:   strings.ToLower(raw.To),
		TxType:      txType,
	}

	switch txType {
	case models.TxNative:
		tx.Amount = scaledAmount(raw.Value, nativeTokenDecimals)
		tx.TokenSymbol = "ETH"
	case models.TxERC20Transfer:
		decimals, err := strconv.Atoi(raw.TokenDecimal)
		if err != nil {
			decimals = 18
		}
		tx.Amount = scaledAmount(raw.Value, decimals)
		tx.TokenAddress = strings.ToLower(raw.ContractAddress)
		if raw.TokenSymbol != "" {
			tx.TokenSymbol = raw.TokenSymbol
		} else {
			tx.TokenSymbol = "UNKNOWN"
		}
	case models.TxSwap, models.TxBridge:
		tx.Amount = scaledAmount(raw.Value, nativeTokenDecimals)
		tx.IsBridge = txType == models.TxBridge
	}

	return tx, true
}

// scaledAmount divides a raw integer token-unit string by 10^decimals,
// returning a fixed-point decimal string. Unparseable values yield "0".
func scaledAmount(raw string, decimals int) string {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return "0"
	}
	f := new(big.Float).SetInt(v)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f.Quo(f, divisor)
	return f.Text('f', -1)
}
