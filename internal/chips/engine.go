// Package chips implements the declarative chip rule engine: named boolean
// classification tags evaluated per enriched trade, each declaring the
// metric caches it depends on.
package chips

import (
	"fmt"
	"sort"
	"strings"

	"options-flow-lab/internal/domain"
)

// Engine evaluates chip definitions and resolves chip names to canonical IDs.
// Alias resolution happens once at construction, not at evaluation time.
type Engine struct {
	defs    []Definition
	byAlias map[string]string // normalized alias -> canonical id
	byID    map[string]*Definition
}

// NewEngine builds an engine over the standard definitions.
func NewEngine() *Engine {
	return NewEngineWithDefinitions(Definitions())
}

// NewEngineWithDefinitions builds an engine over a custom rule set.
func NewEngineWithDefinitions(defs []Definition) *Engine {
	e := &Engine{
		defs:    defs,
		byAlias: make(map[string]string),
		byID:    make(map[string]*Definition, len(defs)),
	}
	for i := range defs {
		d := &defs[i]
		e.byID[d.ID] = d
		e.byAlias[normalizeAlias(d.ID)] = d.ID
		e.byAlias[normalizeAlias(d.Label)] = d.ID
		for _, a := range d.Aliases {
			e.byAlias[normalizeAlias(a)] = d.ID
		}
	}
	return e
}

// normalizeAlias folds case and strips spacing/punctuation variants so
// "Position Builder", "position-builder" and "positionBuilder" all match.
func normalizeAlias(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '/':
			return -1
		}
		return r
	}, s)
}

// Resolve maps requested chip names (ids, labels, or aliases in any
// case/spacing variant) to canonical chip IDs. Unknown names are an error.
func (e *Engine) Resolve(names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		id, ok := e.byAlias[normalizeAlias(trimmed)]
		if !ok {
			return nil, fmt.Errorf("unknown chip: %q", trimmed)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// RequiredMetrics returns the sorted union of metric names required by the
// given chip IDs. This is the contract the query engine uses to avoid
// enrichment work for metrics nothing filters on.
func (e *Engine) RequiredMetrics(ids []string) []string {
	set := make(map[string]struct{})
	for _, id := range ids {
		d, ok := e.byID[id]
		if !ok {
			continue
		}
		for _, m := range d.RequiredMetrics {
			set[m] = struct{}{}
		}
	}

	metrics := make([]string, 0, len(set))
	for m := range set {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)
	return metrics
}

// Evaluate returns the chip IDs whose predicates hold for the trade.
func (e *Engine) Evaluate(t *domain.EnrichedTrade, th *Thresholds) []string {
	var hits []string
	for i := range e.defs {
		if e.defs[i].Predicate(t, th) {
			hits = append(hits, e.defs[i].ID)
		}
	}
	return hits
}

// Has reports whether a canonical chip ID exists.
func (e *Engine) Has(id string) bool {
	_, ok := e.byID[id]
	return ok
}
