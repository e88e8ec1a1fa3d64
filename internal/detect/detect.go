// Package detect finds the stored interaction facts that apply to a set of
// resolved drugs.
package detect

import (
	"math/bits"
	"slices"
	"strings"

	"github.com/Skufu/medsafe/internal/model"
)

const (
	// DefaultMaxExhaustive is the largest drug set checked for every
	// combination of two or more drugs.
	DefaultMaxExhaustive = 8
	// Limit bounds MaxExhaustive; 2^Limit lookups per check at most.
	Limit = 16
)

// FactReader is the part of the KB the detector needs.
type FactReader interface {
	Fact(ids model.DrugSet) (model.InteractionFact, bool)
}

// Detector enumerates candidate drug subsets and looks each one up.
type Detector struct {
	maxExhaustive int
}

// New returns a Detector that checks all subsets of up to maxExhaustive
// drugs and only pairs beyond that. Values below 2 select the default;
// values above Limit are clamped.
func New(maxExhaustive int) *Detector {
	switch {
	case maxExhaustive < 2:
		maxExhaustive = DefaultMaxExhaustive
	case maxExhaustive > Limit:
		maxExhaustive = Limit
	}
	return &Detector{maxExhaustive: maxExhaustive}
}

// MaxExhaustive reports the configured cap.
func (d *Detector) MaxExhaustive() int { return d.maxExhaustive }

// Detect returns every fact stored for a subset of ids, ordered by drug
// set. advisory is true when ids was larger than the cap and only pairs
// were checked. Sets of fewer than two drugs match nothing.
func (d *Detector) Detect(kb FactReader, ids model.DrugSet) (facts []model.InteractionFact, advisory bool) {
	facts = []model.InteractionFact{}
	n := len(ids)
	if n < 2 {
		return facts, false
	}

	seen := make(map[string]bool)
	collect := func(subset model.DrugSet) {
		f, ok := kb.Fact(subset)
		if !ok || seen[f.Drugs.Key()] {
			return
		}
		seen[f.Drugs.Key()] = true
		facts = append(facts, f)
	}

	if n <= d.maxExhaustive {
		subset := make(model.DrugSet, 0, n)
		for mask := uint(3); mask < 1<<n; mask++ {
			if bits.OnesCount(mask) < 2 {
				continue
			}
			subset = subset[:0]
			for i := 0; i < n; i++ {
				if mask&(1<<i) != 0 {
					subset = append(subset, ids[i])
				}
			}
			collect(subset)
		}
	} else {
		advisory = true
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				collect(model.DrugSet{ids[i], ids[j]})
			}
		}
	}

	slices.SortFunc(facts, func(a, b model.InteractionFact) int {
		return strings.Compare(a.Drugs.Key(), b.Drugs.Key())
	})
	return facts, advisory
}
