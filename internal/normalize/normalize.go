// Package normalize maps caller-supplied drug names onto canonical drugs.
package normalize

import (
	"errors"

	"github.com/Skufu/medsafe/internal/apperr"
	"github.com/Skufu/medsafe/internal/model"
)

// Lookup resolves one name. kb.Reader satisfies it.
type Lookup interface {
	LookupDrug(name string) (model.Drug, error)
}

// Resolved is one input that matched a drug.
type Resolved struct {
	Input string
	Drug  model.Drug
}

// Result splits the input into resolved and unresolved names, both in
// input order.
type Result struct {
	// Resolved keeps one entry per distinct spelling. Inputs that normalize
	// to the same key collapse into their first occurrence.
	Resolved   []Resolved
	Unresolved []string
	// Drugs is the de-duplicated set of matched canonical IDs.
	Drugs model.DrugSet
}

// Normalize resolves raw against kb. A name the KB does not know goes to
// Unresolved; it never fails the whole call. Any other lookup error is
// returned.
func Normalize(kb Lookup, raw []string) (Result, error) {
	res := Result{
		Resolved:   []Resolved{},
		Unresolved: []string{},
	}
	seen := make(map[string]bool, len(raw))
	ids := make([]string, 0, len(raw))

	for _, name := range raw {
		key := model.NormalizeName(name)
		if seen[key] {
			continue
		}
		seen[key] = true

		drug, err := kb.LookupDrug(name)
		if errors.Is(err, apperr.ErrNotFound) {
			res.Unresolved = append(res.Unresolved, name)
			continue
		}
		if err != nil {
			return Result{}, err
		}
		res.Resolved = append(res.Resolved, Resolved{Input: name, Drug: drug})
		ids = append(ids, drug.ID)
	}

	res.Drugs = model.NewDrugSet(ids...)
	return res, nil
}
