package bridges

import "fmt"

// debridgeToEtherscan maps DeBridge's internal chain codes to the
// Etherscan-style chain ids this engine otherwise works with. A nil-valued
// entry means DeBridge supports the chain but Etherscan's API family does
// not expose it, so it can never become a scoring-graph node.
var debridgeToEtherscan = map[string]*int{
	"42161":     intp(42161),
	"43114":     intp(43114),
	"56":        intp(56),
	"1":         intp(1),
	"137":       intp(137),
	"59144":     intp(59144),
	"8453":      intp(8453),
	"10":        intp(10),
	"100000001": nil,
	"100000002": intp(100),
	"100000003": nil,
	"100000004": nil,
	"100000005": nil,
	"100000014": intp(146),
	"100000006": nil,
	"100000010": nil,
	"100000017": intp(2741),
	"100000020": intp(80094),
	"100000013": nil,
	"100000022": intp(999),
	"100000015": nil,
	"100000009": nil,
	"100000008": nil,
	"100000021": nil,
	"100000023": intp(5000),
	"100000024": nil,
	"100000025": intp(50104),
	"100000027": intp(1329),
	"100000026": nil,
	"7565164":   nil,
}

func intp(v int) *int { return &v }

// ConvertDeBridgeChainID resolves a DeBridge internal chain code to an
// Etherscan-style chain id, or an error if the destination chain has no
// Etherscan-family explorer this engine can query.
func ConvertDeBridgeChainID(debridgeChainID string) (int, error) {
	id, known := debridgeToEtherscan[debridgeChainID]
	if !known || id == nil {
		return 0, fmt.Errorf("chain id %s not supported by indexer", debridgeChainID)
	}
	return *id, nil
}
