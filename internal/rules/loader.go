// Package rules loads the YAML ruleset and evaluates it against
// transactions and addresses.
//
// Rule bodies are kept as loosely-typed maps (map[string]interface{}) like
// the ruleset file itself, rather than a fixed schema per rule id — the
// rule grammar mixes match/conditions/exceptions/window/bucket/topology
// shapes freely per rule, and forcing a single Go struct onto all of them
// would just reintroduce the same map underneath a thinner name.
package rules

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule is one entry from the ruleset file's "rules" list.
type Rule map[string]interface{}

// ID returns the rule's id, or "" if missing/not a string.
func (r Rule) ID() string { return str(r["id"]) }

// Loader reads and caches a ruleset YAML file.
type Loader struct {
	path string

	loaded   bool
	rules    []Rule
	defaults map[string]interface{}
}

// NewLoader returns a Loader for the ruleset at path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load parses the ruleset file once and caches the result. Individual
// rules that fail to parse as a map, or have no id, are skipped with a
// log line rather than failing the whole load — a syntactically broken
// rule should not take down every other rule in the file.
func (l *Loader) Load() error {
	if l.loaded {
		return nil
	}

	raw, err := os.ReadFile(l.path)
	if err != nil {
		return err
	}

	var doc struct {
		Defaults map[string]interface{}   `yaml:"defaults"`
		Rules    []map[string]interface{} `yaml:"rules"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}

	l.defaults = doc.Defaults
	for i, r := range doc.Rules {
		rule := Rule(r)
		if rule.ID() == "" {
			log.Printf("rules: skipping entry %d in %s: missing id", i, l.path)
			continue
		}
		l.rules = append(l.rules, rule)
	}
	l.loaded = true
	return nil
}

// Rules returns the loaded rule list, loading the file on first call.
func (l *Loader) Rules() []Rule {
	_ = l.Load()
	return l.rules
}

// Defaults returns the ruleset's defaults block.
func (l *Loader) Defaults() map[string]interface{} {
	_ = l.Load()
	return l.defaults
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
