// Package bridges decodes method-id-level bridge/swap hints on a raw
// transaction and resolves cross-chain bridge destinations for
// BRIDGE-classified transactions. It never executes live RPC calls during
// scoring — decoders are only consulted for a transaction already flagged
// TxBridge, using an injected *http.Client so tests never hit the network.
package bridges

// SwapMethods maps 4-byte method selectors to known DEX/aggregator swap
// entry points (Uniswap V4 universal router, LI.FI single-hop swaps).
var SwapMethods = map[string]string{
	"0x3593564c": "Uniswap V4 | PancakeSwap universal router",
	"0x733214a3": "LI.FI swapTokensSingleV3ERC20ToNative",
	"0xaf7060fd": "LI.FI swapTokensSingleV3NativeToERC20",
	"0x4666fc80": "LI.FI swapTokensSingleV3ERC20ToERC20",
}

// BridgeMethods maps 4-byte method selectors to known cross-chain bridge
// entry points.
var BridgeMethods = map[string]string{
	"0x4d8160ba": "DeBridge strictlySwapAndCall",
	"0xae328590": "Relay startBridgeTokensViaRelay",
	"0xc7c7f5b3": "USDT0 send",
}

// IsSwap reports whether a method id matches a known swap entry point.
func IsSwap(methodID string) bool {
	_, ok := SwapMethods[methodID]
	return ok
}

// IsBridge reports whether a method id matches a known bridge entry point.
func IsBridge(methodID string) bool {
	_, ok := BridgeMethods[methodID]
	return ok
}
