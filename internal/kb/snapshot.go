package kb

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Skufu/medsafe/internal/apperr"
	"github.com/Skufu/medsafe/internal/model"
)

// snapshot is never mutated after it has been published.
type snapshot struct {
	version uint64
	drugs   map[string]model.Drug            // canonical ID -> drug
	names   map[string]string                // normalized ID/name/synonym -> canonical ID
	facts   map[string]model.InteractionFact // DrugSet.Key() -> fact
	byDrug  map[string][]string              // canonical ID -> keys of facts naming it
}

func newSnapshot() *snapshot {
	return &snapshot{
		drugs:  make(map[string]model.Drug),
		names:  make(map[string]string),
		facts:  make(map[string]model.InteractionFact),
		byDrug: make(map[string][]string),
	}
}

// clone copies the maps so the result can be modified freely. Slices held
// in byDrug are shared and must be replaced, not appended to in place.
func (s *snapshot) clone() *snapshot {
	return &snapshot{
		version: s.version,
		drugs:   maps.Clone(s.drugs),
		names:   maps.Clone(s.names),
		facts:   maps.Clone(s.facts),
		byDrug:  maps.Clone(s.byDrug),
	}
}

func newFactID() string {
	return ulid.Make().String()
}

// buildSnapshot validates ds and indexes it. Conflicting seed facts for the
// same drug set resolve to the highest severity; on a tie the first one in
// file order is kept.
func buildSnapshot(ds model.Dataset, now time.Time) (*snapshot, error) {
	s := newSnapshot()
	for _, d := range ds.Drugs {
		if _, err := s.addDrug(d); err != nil {
			return nil, err
		}
	}

	records, err := ds.ExpandFacts()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInvalidInput, "expand facts")
	}
	for _, rec := range records {
		f, err := s.resolveFact(rec.Drugs, rec.Severity, rec.Description)
		if err != nil {
			return nil, err
		}
		f.ID = rec.ID
		if f.ID == "" {
			f.ID = newFactID()
		}
		f.UpdatedAt = rec.UpdatedAt
		if f.UpdatedAt.IsZero() {
			f.UpdatedAt = now
		}
		if prev, ok := s.facts[f.Drugs.Key()]; ok && prev.Severity.Rank() >= f.Severity.Rank() {
			continue
		}
		s.putFact(f)
	}
	return s, nil
}

// addDrug validates d, normalizes its ID and indexes every name.
func (s *snapshot) addDrug(d model.Drug) (model.Drug, error) {
	id := model.NormalizeName(d.ID)
	if id == "" {
		return model.Drug{}, apperr.New(apperr.CodeInvalidInput, "drug id is required")
	}
	if _, exists := s.drugs[id]; exists {
		return model.Drug{}, apperr.ErrDuplicateDrug.WithDetail(id)
	}

	out := model.Drug{
		ID:       id,
		Name:     strings.TrimSpace(d.Name),
		Warnings: strings.TrimSpace(d.Warnings),
	}
	if out.Name == "" {
		out.Name = id
	}

	keys := []string{id, model.NormalizeName(out.Name)}
	for _, syn := range d.Synonyms {
		key := model.NormalizeName(syn)
		if key == "" || slices.Contains(keys, key) {
			continue
		}
		keys = append(keys, key)
		out.Synonyms = append(out.Synonyms, strings.TrimSpace(syn))
	}
	for _, key := range keys {
		if err := checkName(key); err != nil {
			return model.Drug{}, err
		}
		if owner, taken := s.names[key]; taken && owner != id {
			return model.Drug{}, apperr.ErrDuplicateSynonym.WithDetail(key + " already names " + owner)
		}
	}

	for _, key := range keys {
		s.names[key] = id
	}
	s.drugs[id] = out
	return out.Clone(), nil
}

// checkName rejects a normalized drug name that a persisted fact would
// read back as a class reference.
func checkName(key string) error {
	if strings.HasPrefix(key, model.ClassPrefix) {
		return apperr.Newf(apperr.CodeInvalidInput, "drug name %q must not start with %q", key, model.ClassPrefix)
	}
	return nil
}

// resolveFact maps names onto canonical IDs and validates the result.
func (s *snapshot) resolveFact(names []string, severity model.Severity, description string) (model.InteractionFact, error) {
	if !severity.Valid() {
		return model.InteractionFact{}, apperr.Newf(apperr.CodeInvalidInput, "invalid severity %q", severity)
	}
	ids := make([]string, 0, len(names))
	for _, n := range names {
		id, ok := s.names[model.NormalizeName(n)]
		if !ok {
			return model.InteractionFact{}, apperr.ErrNotFound.WithDetail("drug " + n)
		}
		ids = append(ids, id)
	}
	set := model.NewDrugSet(ids...)
	if len(set) < 2 {
		return model.InteractionFact{}, apperr.New(apperr.CodeInvalidInput, "an interaction needs at least two distinct drugs").
			WithDetail(strings.Join(names, ", "))
	}
	return model.InteractionFact{
		Drugs:       set,
		Severity:    severity,
		Description: strings.TrimSpace(description),
	}, nil
}

func (s *snapshot) putFact(f model.InteractionFact) {
	key := f.Drugs.Key()
	if _, exists := s.facts[key]; !exists {
		for _, id := range f.Drugs {
			s.byDrug[id] = append(slices.Clip(s.byDrug[id]), key)
		}
	}
	s.facts[key] = f
}

func (s *snapshot) Version() uint64 { return s.version }

func (s *snapshot) LookupDrug(name string) (model.Drug, error) {
	key := model.NormalizeName(name)
	if id, ok := s.names[key]; ok {
		return s.drugs[id].Clone(), nil
	}
	return model.Drug{}, apperr.ErrNotFound.WithDetail(name)
}

func (s *snapshot) Fact(ids model.DrugSet) (model.InteractionFact, bool) {
	f, ok := s.facts[ids.Key()]
	if !ok {
		return model.InteractionFact{}, false
	}
	return f.Clone(), true
}

func (s *snapshot) FactsFor(ids model.DrugSet) []model.InteractionFact {
	seen := make(map[string]bool)
	var out []model.InteractionFact
	for _, id := range ids {
		for _, key := range s.byDrug[id] {
			if seen[key] {
				continue
			}
			seen[key] = true
			if f := s.facts[key]; f.Drugs.SubsetOf(ids) {
				out = append(out, f.Clone())
			}
		}
	}
	sortFacts(out)
	return out
}

func (s *snapshot) Drugs() []model.Drug {
	out := make([]model.Drug, 0, len(s.drugs))
	for _, d := range s.drugs {
		out = append(out, d.Clone())
	}
	slices.SortFunc(out, func(a, b model.Drug) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (s *snapshot) Facts() []model.InteractionFact {
	out := make([]model.InteractionFact, 0, len(s.facts))
	for _, f := range s.facts {
		out = append(out, f.Clone())
	}
	sortFacts(out)
	return out
}

func (s *snapshot) Dataset() model.Dataset {
	ds := model.Dataset{Drugs: s.Drugs()}
	for _, f := range s.Facts() {
		ds.Facts = append(ds.Facts, model.RecordOf(f))
	}
	return ds
}

func sortFacts(fs []model.InteractionFact) {
	slices.SortFunc(fs, func(a, b model.InteractionFact) int {
		return strings.Compare(a.Drugs.Key(), b.Drugs.Key())
	})
}
