package model

import (
	"slices"
	"strings"
	"time"
)

// Drug is a canonical drug identity. ID is immutable once created and is
// stored in normalized form.
type Drug struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Synonyms []string `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
	Warnings string   `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Clone returns a deep copy of d.
func (d Drug) Clone() Drug {
	d.Synonyms = slices.Clone(d.Synonyms)
	return d
}

// DrugSet is a sorted, duplicate-free set of canonical drug IDs. Two sets
// built from the same IDs in any order are equal.
type DrugSet []string

// NewDrugSet normalizes, sorts and de-duplicates ids.
func NewDrugSet(ids ...string) DrugSet {
	out := make(DrugSet, 0, len(ids))
	for _, id := range ids {
		if n := NormalizeName(id); n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// keySep cannot appear in a normalized ID.
const keySep = "\x1f"

// Key is the map key identifying the set.
func (s DrugSet) Key() string {
	return strings.Join(s, keySep)
}

// Contains reports whether id is in the set.
func (s DrugSet) Contains(id string) bool {
	_, ok := slices.BinarySearch(s, id)
	return ok
}

// SubsetOf reports whether every member of s is in other.
func (s DrugSet) SubsetOf(other DrugSet) bool {
	for _, id := range s {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

func (s DrugSet) String() string {
	return strings.Join(s, " + ")
}

// InteractionFact records that a set of two or more drugs interact. At most
// one fact exists per set.
type InteractionFact struct {
	ID          string    `json:"id" yaml:"id,omitempty"`
	Drugs       DrugSet   `json:"drugs" yaml:"drugs"`
	Severity    Severity  `json:"severity" yaml:"severity"`
	Description string    `json:"description" yaml:"description"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

// Clone returns a deep copy of f.
func (f InteractionFact) Clone() InteractionFact {
	f.Drugs = slices.Clone(f.Drugs)
	return f
}
