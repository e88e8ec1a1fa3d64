// Package kbtest holds the behavioral contract every kb.Store must satisfy,
// so in-memory and durable stores are checked by identical tests.
package kbtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/medsafe/internal/apperr"
	"github.com/Skufu/medsafe/internal/kb"
	"github.com/Skufu/medsafe/internal/model"
)

// Factory builds a fresh store seeded with ds.
type Factory func(t *testing.T, ds model.Dataset) kb.Store

// Fixture is a small dataset used across tests.
func Fixture() model.Dataset {
	return model.Dataset{
		Drugs: []model.Drug{
			{ID: "aspirin", Name: "Aspirin", Synonyms: []string{"ASA"}},
			{ID: "ibuprofen", Name: "Ibuprofen", Synonyms: []string{"Advil"}},
			{ID: "naproxen", Name: "Naproxen"},
			{ID: "acetaminophen", Name: "Acetaminophen", Synonyms: []string{"Paracetamol"}},
			{ID: "warfarin", Name: "Warfarin", Synonyms: []string{"Coumadin"}},
			{ID: "metformin", Name: "Metformin"},
			{ID: "contrast", Name: "Iodinated contrast"},
			{ID: "vitamin d", Name: "Vitamin D"},
			{ID: "calcium", Name: "Calcium"},
		},
		Classes: []model.DrugClass{
			{Name: "nsaid", Members: []string{"aspirin", "ibuprofen", "naproxen"}},
		},
		Facts: []model.FactRecord{
			{Drugs: []string{"aspirin", "ibuprofen"}, Severity: model.SeverityHigh, Description: "Increased GI bleeding risk"},
			{Drugs: []string{"warfarin", "class:nsaid"}, Severity: model.SeverityHigh, Description: "Increased bleeding risk"},
			{Drugs: []string{"metformin", "contrast"}, Severity: model.SeverityModerate, Description: "Kidney function risk"},
			{Drugs: []string{"vitamin d", "calcium"}, Severity: model.SeveritySafe, Description: "Beneficial combination"},
			{Drugs: []string{"aspirin", "ibuprofen", "warfarin"}, Severity: model.SeverityHigh, Description: "Major bleeding risk"},
			// lower than the explicit fact above; must not replace it
			{Drugs: []string{"ibuprofen", "aspirin"}, Severity: model.SeverityModerate, Description: "Duplicate NSAID"},
		},
	}
}

// RunStoreSuite runs the Store contract against stores built by newStore.
func RunStoreSuite(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("LookupDrugByIDNameAndSynonym", func(t *testing.T) {
		s := newStore(t, Fixture())
		for _, name := range []string{"aspirin", "  ASPIRIN ", "asa", "Aspirin"} {
			d, err := s.LookupDrug(name)
			require.NoError(t, err, name)
			assert.Equal(t, "aspirin", d.ID)
		}
		d, err := s.LookupDrug("Vitamin   d")
		require.NoError(t, err)
		assert.Equal(t, "vitamin d", d.ID)
	})

	t.Run("LookupDrugMiss", func(t *testing.T) {
		s := newStore(t, Fixture())
		_, err := s.LookupDrug("Not A Real Drug")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = s.LookupDrug("   ")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("SeedConflictKeepsHigherSeverity", func(t *testing.T) {
		s := newStore(t, Fixture())
		f, ok := s.Fact(model.NewDrugSet("ibuprofen", "aspirin"))
		require.True(t, ok)
		assert.Equal(t, model.SeverityHigh, f.Severity)
		assert.Equal(t, "Increased GI bleeding risk", f.Description)
		assert.NotEmpty(t, f.ID)
	})

	t.Run("ClassesExpandIntoFacts", func(t *testing.T) {
		s := newStore(t, Fixture())
		for _, nsaid := range []string{"aspirin", "ibuprofen", "naproxen"} {
			f, ok := s.Fact(model.NewDrugSet("warfarin", nsaid))
			require.True(t, ok, nsaid)
			assert.Equal(t, model.SeverityHigh, f.Severity)
		}
	})

	t.Run("FactsForReturnsSubsets", func(t *testing.T) {
		s := newStore(t, Fixture())
		facts := s.FactsFor(model.NewDrugSet("aspirin", "ibuprofen", "warfarin", "calcium"))

		var keys []string
		for _, f := range facts {
			keys = append(keys, f.Drugs.String())
		}
		assert.ElementsMatch(t, []string{
			"aspirin + ibuprofen",
			"aspirin + warfarin",
			"ibuprofen + warfarin",
			"aspirin + ibuprofen + warfarin",
		}, keys)

		assert.Empty(t, s.FactsFor(model.NewDrugSet("aspirin")))
	})

	t.Run("UpsertFactInsertsNew", func(t *testing.T) {
		s := newStore(t, Fixture())
		v := s.Version()
		f, err := s.UpsertFact(ctx, []string{"Paracetamol", "warfarin"}, model.SeverityModerate, "Raises INR", false)
		require.NoError(t, err)
		assert.Equal(t, model.DrugSet{"acetaminophen", "warfarin"}, f.Drugs)
		assert.Greater(t, s.Version(), v)

		got, ok := s.Fact(model.NewDrugSet("warfarin", "acetaminophen"))
		require.True(t, ok)
		assert.Equal(t, "Raises INR", got.Description)
	})

	t.Run("UpsertFactConflict", func(t *testing.T) {
		s := newStore(t, Fixture())
		_, err := s.UpsertFact(ctx, []string{"aspirin", "ibuprofen"}, model.SeverityModerate, "downgrade", false)
		assert.ErrorIs(t, err, apperr.ErrConflictingFact)

		f, _ := s.Fact(model.NewDrugSet("aspirin", "ibuprofen"))
		assert.Equal(t, model.SeverityHigh, f.Severity)
	})

	t.Run("UpsertFactSameSeverityUpdatesDescription", func(t *testing.T) {
		s := newStore(t, Fixture())
		_, err := s.UpsertFact(ctx, []string{"ibuprofen", "aspirin"}, model.SeverityHigh, "Updated text", false)
		require.NoError(t, err)
		f, _ := s.Fact(model.NewDrugSet("aspirin", "ibuprofen"))
		assert.Equal(t, "Updated text", f.Description)
	})

	t.Run("UpsertFactOverride", func(t *testing.T) {
		s := newStore(t, Fixture())
		_, err := s.UpsertFact(ctx, []string{"aspirin", "ibuprofen"}, model.SeverityModerate, "reclassified", true)
		require.NoError(t, err)
		f, _ := s.Fact(model.NewDrugSet("aspirin", "ibuprofen"))
		assert.Equal(t, model.SeverityModerate, f.Severity)
		assert.Equal(t, "reclassified", f.Description)
	})

	t.Run("UpsertFactValidation", func(t *testing.T) {
		s := newStore(t, Fixture())
		_, err := s.UpsertFact(ctx, []string{"aspirin", "unobtainium"}, model.SeverityHigh, "", false)
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		_, err = s.UpsertFact(ctx, []string{"aspirin", "ASA"}, model.SeverityHigh, "", false)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)

		_, err = s.UpsertFact(ctx, []string{"aspirin", "calcium"}, model.Severity("severe"), "", false)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	})

	t.Run("AddSynonym", func(t *testing.T) {
		s := newStore(t, Fixture())
		require.NoError(t, s.AddSynonym(ctx, "acetaminophen", "Tylenol"))
		d, err := s.LookupDrug("tylenol")
		require.NoError(t, err)
		assert.Equal(t, "acetaminophen", d.ID)
		assert.Contains(t, d.Synonyms, "Tylenol")

		// rebinding to the same drug is a no-op
		v := s.Version()
		require.NoError(t, s.AddSynonym(ctx, "acetaminophen", "TYLENOL"))
		assert.Equal(t, v, s.Version())
	})

	t.Run("AddSynonymDuplicate", func(t *testing.T) {
		s := newStore(t, Fixture())
		err := s.AddSynonym(ctx, "ibuprofen", "asa")
		assert.ErrorIs(t, err, apperr.ErrDuplicateSynonym)
		d, _ := s.LookupDrug("asa")
		assert.Equal(t, "aspirin", d.ID)

		err = s.AddSynonym(ctx, "unobtainium", "x")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("AddDrug", func(t *testing.T) {
		s := newStore(t, Fixture())
		d, err := s.AddDrug(ctx, model.Drug{ID: "Clopidogrel", Name: "Clopidogrel", Synonyms: []string{"Plavix", "plavix"}})
		require.NoError(t, err)
		assert.Equal(t, "clopidogrel", d.ID)
		assert.Equal(t, []string{"Plavix"}, d.Synonyms)

		_, err = s.AddDrug(ctx, model.Drug{ID: "clopidogrel"})
		assert.ErrorIs(t, err, apperr.ErrDuplicateDrug)

		_, err = s.AddDrug(ctx, model.Drug{ID: "bayer", Synonyms: []string{"ASA"}})
		assert.ErrorIs(t, err, apperr.ErrDuplicateSynonym)
		_, err = s.LookupDrug("bayer")
		assert.ErrorIs(t, err, apperr.ErrNotFound, "failed add must not be partially applied")
	})

	t.Run("ClassPrefixedNamesRejected", func(t *testing.T) {
		s := newStore(t, Fixture())
		v := s.Version()

		_, err := s.AddDrug(ctx, model.Drug{ID: "class:x"})
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		_, err = s.AddDrug(ctx, model.Drug{ID: "clopidogrel", Name: "Class:Antiplatelet"})
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		_, err = s.AddDrug(ctx, model.Drug{ID: "clopidogrel", Synonyms: []string{" CLASS:p2y12"}})
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		err = s.AddSynonym(ctx, "aspirin", "class:nsaids")
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)

		assert.Equal(t, v, s.Version())
		_, err = s.LookupDrug("clopidogrel")
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		// whatever the store accepted must load again
		_, err = kb.NewMemoryStore(s.Dataset())
		assert.NoError(t, err)
	})

	t.Run("ReplaceSwapsEverything", func(t *testing.T) {
		s := newStore(t, Fixture())
		err := s.Replace(ctx, model.Dataset{
			Drugs: []model.Drug{{ID: "a"}, {ID: "b"}},
			Facts: []model.FactRecord{{Drugs: []string{"a", "b"}, Severity: model.SeveritySafe}},
		})
		require.NoError(t, err)
		assert.Len(t, s.Drugs(), 2)
		assert.Len(t, s.Facts(), 1)
		_, err = s.LookupDrug("aspirin")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("SnapshotIsStable", func(t *testing.T) {
		s := newStore(t, Fixture())
		snap := s.Snapshot()
		_, err := s.UpsertFact(ctx, []string{"aspirin", "calcium"}, model.SeveritySafe, "fine", false)
		require.NoError(t, err)

		_, ok := snap.Fact(model.NewDrugSet("aspirin", "calcium"))
		assert.False(t, ok, "pinned snapshot must not observe later writes")
		_, ok = s.Fact(model.NewDrugSet("aspirin", "calcium"))
		assert.True(t, ok)
	})

	t.Run("DatasetRoundTrip", func(t *testing.T) {
		s := newStore(t, Fixture())
		again := newStore(t, s.Dataset())
		assert.Equal(t, s.Drugs(), again.Drugs())
		assert.Equal(t, s.Facts(), again.Facts())
	})

	t.Run("ConcurrentReadersSeeWholeUpdates", func(t *testing.T) {
		s := newStore(t, Fixture())
		var wg sync.WaitGroup
		stop := make(chan struct{})

		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					snap := s.Snapshot()
					for _, f := range snap.Facts() {
						if len(f.Drugs) < 2 || !f.Severity.Valid() {
							t.Errorf("observed malformed fact %+v", f)
							return
						}
					}
				}
			}()
		}

		for i := 0; i < 20; i++ {
			id := fmt.Sprintf("drug-%d", i)
			_, err := s.AddDrug(ctx, model.Drug{ID: id})
			require.NoError(t, err)
			_, err = s.UpsertFact(ctx, []string{id, "aspirin"}, model.SeverityModerate, "test", false)
			require.NoError(t, err)
		}
		close(stop)
		wg.Wait()
		assert.Len(t, s.FactsFor(model.NewDrugSet("aspirin", "drug-19")), 1)
	})
}
