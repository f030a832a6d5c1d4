// Package lists loads and serves the address reputation lists (OFAC/SDN,
// centralized exchanges, mixers, bridge contracts, known scams) that rules
// and graph node labeling consult on every lookup.
//
// Lookups happen on the hot path — once per node per hop during collection
// and once per rule evaluation — so lists are held in a map behind a
// sync.RWMutex, read-mostly after startup load.
package lists

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Category names mirror the original data files: sdn, cex, mixer, bridge, scam.
const (
	SDN    = "sdn"
	CEX    = "cex"
	Mixer  = "mixer"
	Bridge = "bridge"
	Scam   = "scam"
)

// Loader serves address-list membership checks, cached after first load.
type Loader struct {
	dir string

	mu    sync.RWMutex
	cache map[string]map[string]struct{}
}

// NewLoader returns a Loader reading JSON list files from dir.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:   dir,
		cache: make(map[string]map[string]struct{}),
	}
}

// Contains reports whether address (any case) is present in category.
func (l *Loader) Contains(category, address string) bool {
	set := l.get(category)
	_, ok := set[normalize(address)]
	return ok
}

// Size returns how many addresses are loaded for category.
func (l *Loader) Size(category string) int {
	return len(l.get(category))
}

func (l *Loader) get(category string) map[string]struct{} {
	l.mu.RLock()
	set, ok := l.cache[category]
	l.mu.RUnlock()
	if ok {
		return set
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if set, ok := l.cache[category]; ok {
		return set
	}

	set = l.load(category)
	l.cache[category] = set
	return set
}

func (l *Loader) load(category string) map[string]struct{} {
	switch category {
	case SDN:
		return l.loadFlatJSON("sdn_addresses.json")
	case Scam:
		return l.loadFlatJSON("scam_addresses.json")
	case CEX:
		return l.loadCEX("cex_addresses.json")
	case Mixer:
		return l.loadBridgeFile("bridge_contracts.json", "mixer_services")
	case Bridge:
		return l.loadBridgeContracts("bridge_contracts.json")
	default:
		return map[string]struct{}{}
	}
}

// loadFlatJSON parses a file whose top level is either a JSON array of
// addresses, or an object with an "addresses" array.
func (l *Loader) loadFlatJSON(filename string) map[string]struct{} {
	raw, ok := l.readFile(filename)
	if !ok {
		return map[string]struct{}{}
	}

	var asArray []string
	if err := json.Unmarshal(raw, &asArray); err == nil {
		return toSet(asArray)
	}

	var asObject struct {
		Addresses []string `json:"addresses"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil {
		return toSet(asObject.Addresses)
	}
	return map[string]struct{}{}
}

// loadCEX parses {"binance": ["0x..."], "coinbase": [...]}.
func (l *Loader) loadCEX(filename string) map[string]struct{} {
	raw, ok := l.readFile(filename)
	if !ok {
		return map[string]struct{}{}
	}
	var byExchange map[string][]string
	if err := json.Unmarshal(raw, &byExchange); err != nil {
		return map[string]struct{}{}
	}
	set := make(map[string]struct{})
	for _, addrs := range byExchange {
		for _, a := range addrs {
			set[normalize(a)] = struct{}{}
		}
	}
	return set
}

// loadBridgeFile parses {"<field>": ["0x...", ...]} from bridge_contracts.json.
func (l *Loader) loadBridgeFile(filename, field string) map[string]struct{} {
	raw, ok := l.readFile(filename)
	if !ok {
		return map[string]struct{}{}
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return map[string]struct{}{}
	}
	var addrs []string
	if err := json.Unmarshal(doc[field], &addrs); err != nil {
		return map[string]struct{}{}
	}
	return toSet(addrs)
}

// loadBridgeContracts parses
// {"bridges": [{"contracts": {"ethereum": "0x...", "bsc": "0x..."}}]}.
func (l *Loader) loadBridgeContracts(filename string) map[string]struct{} {
	raw, ok := l.readFile(filename)
	if !ok {
		return map[string]struct{}{}
	}
	var doc struct {
		Bridges []struct {
			Contracts map[string]string `json:"contracts"`
		} `json:"bridges"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return map[string]struct{}{}
	}
	set := make(map[string]struct{})
	for _, b := range doc.Bridges {
		for _, addr := range b.Contracts {
			if addr != "" {
				set[normalize(addr)] = struct{}{}
			}
		}
	}
	return set
}

func (l *Loader) readFile(filename string) ([]byte, bool) {
	raw, err := os.ReadFile(filepath.Join(l.dir, filename))
	if err != nil {
		return nil, false
	}
	return raw, true
}

func toSet(addrs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		set[normalize(a)] = struct{}{}
	}
	return set
}

func normalize(addr string) string {
	out := make([]byte, len(addr))
	for i := 0; i < len(addr); i++ {
		c := addr[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
