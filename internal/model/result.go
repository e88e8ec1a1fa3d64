package model

import "slices"

// ResolvedDrug pairs a caller's input string with the drug it resolved to.
type ResolvedDrug struct {
	Input string `json:"input"`
	ID    string `json:"id"`
	Name  string `json:"name"`
}

// Interaction is a matched fact re-expressed with the caller's spelling of
// each involved drug.
type Interaction struct {
	Drugs       []string `json:"drugs"`
	DrugIDs     DrugSet  `json:"drug_ids"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Summary counts matched interactions per severity.
type Summary struct {
	Safe     int `json:"safe"`
	Moderate int `json:"moderate"`
	High     int `json:"high"`
}

// MatchResult is the outcome of one check.
type MatchResult struct {
	Resolved     []ResolvedDrug `json:"resolved"`
	Unresolved   []string       `json:"unresolved"`
	Interactions []Interaction  `json:"interactions"`
	RiskLevel    Severity       `json:"risk_level"`
	// Advisory is set when higher-order combinations were not checked.
	Advisory bool    `json:"advisory"`
	Summary  Summary `json:"summary"`
}

// Clone returns a deep copy of r.
func (r *MatchResult) Clone() *MatchResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Resolved = slices.Clone(r.Resolved)
	c.Unresolved = slices.Clone(r.Unresolved)
	c.Interactions = make([]Interaction, len(r.Interactions))
	for i, in := range r.Interactions {
		in.Drugs = slices.Clone(in.Drugs)
		in.DrugIDs = slices.Clone(in.DrugIDs)
		c.Interactions[i] = in
	}
	return &c
}
