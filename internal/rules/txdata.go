package rules

import (
	"strconv"

	"github.com/rawblock/evm-risk-engine/internal/lists"
	"github.com/rawblock/evm-risk-engine/pkg/models"
)

// TxData is the loosely-typed per-transaction view rule evaluation
// operates on, mirroring the ruleset file and the original evaluator's
// dict-based transactions.
type TxData map[string]interface{}

// FromTransaction builds a TxData view of a classified transaction,
// looking up its sanction/mixer/bridge membership against the reputation
// lists so "in_list" match clauses and the is_sanctioned/is_mixer
// shortcuts both work.
func FromTransaction(tx models.Transaction, l *lists.Loader) TxData {
	isSanctioned := tx.IsSanctioned || l.Contains(lists.SDN, tx.ToAddress) || l.Contains(lists.SDN, tx.FromAddress)
	isMixer := tx.IsMixer || l.Contains(lists.Mixer, tx.ToAddress) || l.Contains(lists.Mixer, tx.FromAddress)
	isScam := tx.IsKnownScam || l.Contains(lists.Scam, tx.ToAddress) || l.Contains(lists.Scam, tx.FromAddress)

	return TxData{
		"tx_hash":        tx.TxHash,
		"to":             tx.ToAddress,
		"from":           tx.FromAddress,
		"target_address": tx.ToAddress,
		"timestamp":      tx.Timestamp,
		"usd_value":      tx.USDValue,
		"amount_usd":     tx.USDValue,
		"value":          tx.Amount,
		"asset_contract": tx.TokenAddress,
		"token_symbol":   tx.TokenSymbol,
		"tx_type":        string(tx.TxType),
		"is_sanctioned":  isSanctioned,
		"is_mixer":       isMixer,
		"is_known_scam":  isScam,
		"is_bridge":      tx.IsBridge || tx.TxType == models.TxBridge,
	}
}

func (t TxData) str(field string) string {
	if v, ok := t[field]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (t TxData) float(field string) float64 {
	v, ok := t[field]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err == nil {
			return f
		}
	}
	return 0
}

func (t TxData) bool(field string) bool {
	v, ok := t[field]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func (t TxData) int64(field string) int64 {
	v, ok := t[field]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// TargetAddress returns the transaction's evaluation target: "to", falling
// back to "target_address".
func (t TxData) TargetAddress() string {
	if to := t.str("to"); to != "" {
		return to
	}
	return t.str("target_address")
}
