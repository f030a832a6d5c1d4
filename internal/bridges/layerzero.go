package bridges

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// layerZeroToEtherscan mirrors the DeBridge table's shape for LayerZero
// chain keys that have an Etherscan-family explorer.
var layerZeroToEtherscan = map[string]int{
	"ethereum":  1,
	"bsc":       56,
	"polygon":   137,
	"arbitrum":  42161,
	"optimism":  10,
	"base":      8453,
	"avalanche": 43114,
}

// ConvertLayerZeroChainKey resolves a LayerZero deployment chain key to an
// Etherscan-style chain id.
func ConvertLayerZeroChainKey(chainKey string) (int, error) {
	id, ok := layerZeroToEtherscan[chainKey]
	if !ok {
		return 0, fmt.Errorf("chain key %q not supported by indexer", chainKey)
	}
	return id, nil
}

// USDT0Decoder resolves the destination chain and recipient of a
// USDT0/LayerZero `send(...)` transaction.
//
// This project has no generic ABI-decoding dependency available, so rather
// than decode the full call payload this only pulls the two fixed-offset
// fields it needs (destination endpoint id, recipient) directly from the
// known calldata layout of LayerZero's OFT `send` selector, which is stable
// across OFT-standard bridges.
type USDT0Decoder struct {
	MetadataURL string
	RPC         RPCClient
	Client      *http.Client

	mu         sync.Mutex
	endpointID map[uint32]string // cached endpoint id -> chain key
}

// RPCClient performs a raw JSON-RPC eth_getTransactionByHash call. Kept as
// an interface so tests can supply a fake without touching the network.
type RPCClient interface {
	TransactionInput(ctx context.Context, chainID int, txHash string) (string, error)
}

// NewUSDT0Decoder returns a decoder using the public LayerZero metadata API.
func NewUSDT0Decoder(rpc RPCClient, client *http.Client) *USDT0Decoder {
	if client == nil {
		client = http.DefaultClient
	}
	return &USDT0Decoder{
		MetadataURL: "https://metadata.layerzero-api.com/v1/metadata/deployments",
		RPC:         rpc,
		Client:      client,
		endpointID:  make(map[uint32]string),
	}
}

// Decode returns the destination chain id and recipient address for a
// USDT0 send() transaction hash on chainID.
func (d *USDT0Decoder) Decode(ctx context.Context, chainID int, txHash string) (dstChainID int, recipient string, err error) {
	input, err := d.RPC.TransactionInput(ctx, chainID, txHash)
	if err != nil {
		return 0, "", fmt.Errorf("fetch tx input: %w", err)
	}
	input = strings.TrimPrefix(input, "0x")
	if len(input) < 8+64*2 {
		return 0, "", fmt.Errorf("input too short for send() calldata")
	}
	raw, err := hex.DecodeString(input[8:]) // strip 4-byte selector
	if err != nil {
		return 0, "", fmt.Errorf("decode calldata: %w", err)
	}

	// SendParam is the first ABI-encoded tuple; its first two words are
	// (uint32 dstEid, bytes32 to) at a fixed head offset regardless of the
	// dynamic tail that follows.
	if len(raw) < 64 {
		return 0, "", fmt.Errorf("calldata shorter than SendParam head")
	}
	dstEid := uint32(be64ToUint(raw[28:32]))
	recipientBytes32 := raw[32:64]
	recipient = "0x" + hex.EncodeToString(recipientBytes32[12:]) // last 20 bytes

	chainKey, err := d.chainKeyForEndpoint(ctx, dstEid)
	if err != nil {
		return 0, "", err
	}
	dstChainID, err = ConvertLayerZeroChainKey(chainKey)
	if err != nil {
		return 0, "", err
	}
	return dstChainID, recipient, nil
}

func be64ToUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

type lzMetadata map[string]struct {
	Deployments []struct {
		EID      string `json:"eid"`
		ChainKey string `json:"chainKey"`
	} `json:"deployments"`
}

func (d *USDT0Decoder) chainKeyForEndpoint(ctx context.Context, eid uint32) (string, error) {
	d.mu.Lock()
	if key, ok := d.endpointID[eid]; ok {
		d.mu.Unlock()
		return key, nil
	}
	d.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.MetadataURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("layerzero metadata fetch: %w", err)
	}
	defer resp.Body.Close()

	var meta lzMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", fmt.Errorf("layerzero metadata decode: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, entry := range meta {
		for _, dep := range entry.Deployments {
			id, err := strconv.Atoi(dep.EID)
			if err != nil {
				continue
			}
			d.endpointID[uint32(id)] = dep.ChainKey
		}
	}
	if key, ok := d.endpointID[eid]; ok {
		return key, nil
	}
	return "", fmt.Errorf("no chain found for endpoint id %d", eid)
}
