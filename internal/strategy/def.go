package strategy

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Key identifies one of the six built-in strategies.
type Key string

const (
	KeyTrend      Key = "trend"
	KeyMeanRevert Key = "mean_revert"
	KeyBreakout   Key = "breakout"
	KeyScalper    Key = "scalper"
	KeyLongHold   Key = "long_hold"
	KeyShortHold  Key = "short_hold"
)

// Definition is the static display configuration for one strategy.
type Definition struct {
	Key         Key    `yaml:"key"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Timeframe   int    `yaml:"timeframe"`
}

// Entry pairs a definition with its behavior.
type Entry struct {
	Definition Definition
	Variant    Variant
}

// Registry holds the ordered, closed strategy set. Order matters: the active
// strategy is the first one with the maximum score.
type Registry struct {
	entries []Entry
	byKey   map[Key]int
}

//go:embed defs.yaml
var defsYAML []byte

type defsFile struct {
	Strategies []Definition `yaml:"strategies"`
}

// LoadRegistry decodes the embedded definitions and binds each to its
// variant. Unknown or duplicate keys fail, so the set stays closed.
func LoadRegistry() (*Registry, error) {
	var file defsFile
	if err := yaml.Unmarshal(defsYAML, &file); err != nil {
		return nil, fmt.Errorf("decoding strategy definitions: %w", err)
	}
	if len(file.Strategies) == 0 {
		return nil, fmt.Errorf("strategy definitions are empty")
	}
	reg := &Registry{byKey: make(map[Key]int, len(file.Strategies))}
	for _, def := range file.Strategies {
		v, ok := variants[def.Key]
		if !ok {
			return nil, fmt.Errorf("no behavior for strategy key %q", def.Key)
		}
		if def.Timeframe <= 0 {
			return nil, fmt.Errorf("strategy %q has invalid timeframe %d", def.Key, def.Timeframe)
		}
		if _, dup := reg.byKey[def.Key]; dup {
			return nil, fmt.Errorf("duplicate strategy key %q", def.Key)
		}
		reg.byKey[def.Key] = len(reg.entries)
		reg.entries = append(reg.entries, Entry{Definition: def, Variant: v})
	}
	return reg, nil
}

// Entries returns the strategies in definition order.
func (r *Registry) Entries() []Entry { return r.entries }

func (r *Registry) Lookup(key Key) (Entry, bool) {
	idx, ok := r.byKey[key]
	if !ok {
		return Entry{}, false
	}
	return r.entries[idx], true
}

// ActiveKey picks the highest-scoring strategy; ties go to the earliest
// definition.
func (r *Registry) ActiveKey(scores map[Key]float64) Key {
	if len(r.entries) == 0 {
		return ""
	}
	best := r.entries[0].Definition.Key
	bestScore := scores[best]
	for _, e := range r.entries[1:] {
		k := e.Definition.Key
		if s := scores[k]; s > bestScore {
			best = k
			bestScore = s
		}
	}
	return best
}
