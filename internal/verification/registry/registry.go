// Package registry implements the known-counterfeit registry: a small
// curated table of confirmed fake products. The registry is checked before
// any fuzzy alert search and, on a hit, hard-overrides the whole pipeline.
// Confirmed fakes must never be missed because of corpus staleness or
// fuzzy-matching noise.
package registry

import (
	"strings"
	"sync"

	"github.com/medcheck/MedCheck-Engine/internal/verification/common"
	"github.com/medcheck/MedCheck-Engine/internal/verification/similarity"
)

// nameMatchThreshold is the minimum product-name similarity for a registry
// hit. High on purpose: the registry is an override, not a search.
const nameMatchThreshold = 0.7

// Entry is one confirmed-fake tuple.
type Entry struct {
	ProductName string `json:"product_name" mapstructure:"product_name"`
	Batch       string `json:"batch" mapstructure:"batch"`
	SourceURL   string `json:"source_url" mapstructure:"source_url"`
}

// Registry is a read-only table safely shared across concurrent requests.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
}

// DefaultEntries returns the built-in confirmed-fake table. Deployments
// extend it through configuration.
func DefaultEntries() []Entry {
	return []Entry{
		{
			ProductName: "Postinor 2",
			Batch:       "T36184B",
			SourceURL:   "https://nafdac.gov.ng/public-alert-no-013-2019-alert-on-falsified-postinor-2-levonorgestrel-0-75mg-in-nigeria/",
		},
		{
			ProductName: "Augmentin 625mg",
			Batch:       "665P",
			SourceURL:   "https://nafdac.gov.ng/public-alert-no-009-2022-alert-on-confirmed-counterfeit-augmentin-625mg-in-nigeria/",
		},
		{
			ProductName: "Coartem 80/480mg",
			Batch:       "F2452",
			SourceURL:   "https://nafdac.gov.ng/public-alert-no-016-2021-alert-on-falsified-coartem-80-480mg-tablets/",
		},
	}
}

// New constructs a Registry from the given entries. With no entries the
// built-in table is used.
func New(entries ...Entry) *Registry {
	if len(entries) == 0 {
		entries = DefaultEntries()
	}
	return &Registry{entries: entries}
}

// Replace swaps the whole table, used by configuration hot-reload.
func (r *Registry) Replace(entries []Entry) {
	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()
}

// Entries returns a copy of the current table.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// CheckKnownFake looks productName and the candidate batches up in the
// table. A hit requires name similarity at or above the threshold AND an
// exact-or-near batch match: case-insensitive equality, or one batch string
// containing the other.
func (r *Registry) CheckKnownFake(productName string, candidateBatches []string) (*common.RegistryHit, bool) {
	if strings.TrimSpace(productName) == "" || len(candidateBatches) == 0 {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if similarity.NameSimilarity(productName, e.ProductName) < nameMatchThreshold {
			continue
		}
		for _, cb := range candidateBatches {
			if batchesMatch(cb, e.Batch) {
				return &common.RegistryHit{
					ProductName:  e.ProductName,
					Batch:        e.Batch,
					MatchedBatch: strings.ToUpper(strings.TrimSpace(cb)),
					SourceURL:    e.SourceURL,
				}, true
			}
		}
	}
	return nil, false
}

// HasBatch reports whether batch matches any registry entry's batch,
// regardless of product name. Used by the heuristic scorer's batch anomaly
// detection.
func (r *Registry) HasBatch(batch string) bool {
	b := strings.ToUpper(strings.TrimSpace(batch))
	if b == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if batchesMatch(b, e.Batch) {
			return true
		}
	}
	return false
}

func batchesMatch(a, b string) bool {
	x := strings.ToUpper(strings.TrimSpace(a))
	y := strings.ToUpper(strings.TrimSpace(b))
	if x == "" || y == "" {
		return false
	}
	return x == y || strings.Contains(x, y) || strings.Contains(y, x)
}
