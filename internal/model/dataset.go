package model

import (
	"fmt"
	"strings"
	"time"
)

// ClassPrefix marks a fact member that names a drug class instead of a drug.
const ClassPrefix = "class:"

// Dataset is the wholesale persistence layout of a knowledge base: every
// drug with its synonyms and every interaction fact. Seed files may also
// declare drug classes, which expand into concrete facts on load.
type Dataset struct {
	Drugs   []Drug       `json:"drugs" yaml:"drugs"`
	Classes []DrugClass  `json:"classes,omitempty" yaml:"classes,omitempty"`
	Facts   []FactRecord `json:"facts" yaml:"facts"`
}

// DrugClass groups drugs that share an interaction profile, e.g. "nsaid".
type DrugClass struct {
	Name    string   `json:"name" yaml:"name"`
	Members []string `json:"members" yaml:"members"`
}

// FactRecord is the stored form of an InteractionFact. Drugs may contain
// "class:<name>" references in seed files.
type FactRecord struct {
	ID          string    `json:"id,omitempty" yaml:"id,omitempty"`
	Drugs       []string  `json:"drugs" yaml:"drugs"`
	Severity    Severity  `json:"severity" yaml:"severity"`
	Description string    `json:"description" yaml:"description"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// RecordOf converts a live fact into its stored form.
func RecordOf(f InteractionFact) FactRecord {
	return FactRecord{
		ID:          f.ID,
		Drugs:       append([]string(nil), f.Drugs...),
		Severity:    f.Severity,
		Description: f.Description,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ExpandFacts resolves class references and returns one record per concrete
// drug combination, in file order. A combination that would pair a drug
// with itself is skipped. Records without class references pass through
// unchanged apart from ID normalization.
func (d Dataset) ExpandFacts() ([]FactRecord, error) {
	classes := make(map[string][]string, len(d.Classes))
	for _, c := range d.Classes {
		name := NormalizeName(c.Name)
		if name == "" {
			return nil, fmt.Errorf("drug class with empty name")
		}
		if _, dup := classes[name]; dup {
			return nil, fmt.Errorf("drug class %q declared twice", name)
		}
		members := NewDrugSet(c.Members...)
		if len(members) == 0 {
			return nil, fmt.Errorf("drug class %q has no members", name)
		}
		classes[name] = members
	}

	var out []FactRecord
	for i, rec := range d.Facts {
		slots := make([][]string, 0, len(rec.Drugs))
		for _, ref := range rec.Drugs {
			ref = strings.TrimSpace(ref)
			if rest, ok := strings.CutPrefix(strings.ToLower(ref), ClassPrefix); ok {
				members, found := classes[NormalizeName(rest)]
				if !found {
					return nil, fmt.Errorf("fact %d: unknown drug class %q", i, rest)
				}
				slots = append(slots, members)
				continue
			}
			slots = append(slots, []string{NormalizeName(ref)})
		}

		for _, combo := range product(slots) {
			set := NewDrugSet(combo...)
			if len(set) != len(combo) {
				continue
			}
			r := rec
			r.Drugs = set
			out = append(out, r)
		}
	}
	return out, nil
}

// product returns the cartesian product of slots.
func product(slots [][]string) [][]string {
	if len(slots) == 0 {
		return nil
	}
	out := [][]string{{}}
	for _, slot := range slots {
		next := make([][]string, 0, len(out)*len(slot))
		for _, prefix := range out {
			for _, v := range slot {
				combo := make([]string, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, v))
			}
		}
		out = next
	}
	return out
}
