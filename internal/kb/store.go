// Package kb is the drug interaction knowledge base: canonical drugs, their
// synonyms, and interaction facts keyed by unordered drug sets.
//
// Readers work against immutable snapshots and never take a lock. Writers
// are serialized, build a modified copy of the current snapshot, persist it
// when a Backend is configured, and only then publish it with one atomic
// pointer swap. A reader therefore sees the KB entirely before or entirely
// after an update.
package kb

import (
	"context"

	"github.com/Skufu/medsafe/internal/model"
)

// Reader is a consistent read-only view of the KB.
type Reader interface {
	// Version increases with every published update.
	Version() uint64
	// LookupDrug resolves a canonical ID, display name or synonym,
	// case- and whitespace-insensitively. Misses return apperr.ErrNotFound.
	LookupDrug(name string) (model.Drug, error)
	// Fact returns the fact stored for exactly ids.
	Fact(ids model.DrugSet) (model.InteractionFact, bool)
	// FactsFor returns every fact whose drug set is a subset of ids.
	FactsFor(ids model.DrugSet) []model.InteractionFact
	Drugs() []model.Drug
	Facts() []model.InteractionFact
	// Dataset renders the view in its persistence layout.
	Dataset() model.Dataset
}

// Store is a Reader over the latest snapshot plus the administrative
// update contract. Every update is all-or-nothing.
type Store interface {
	Reader
	// Snapshot pins the current view so that a caller can run several
	// reads against one consistent state.
	Snapshot() Reader
	// AddDrug registers a new canonical drug with its synonyms.
	AddDrug(ctx context.Context, d model.Drug) (model.Drug, error)
	// AddSynonym binds synonym to an existing canonical drug. Fails with
	// apperr.ErrDuplicateSynonym when it already names another drug.
	AddSynonym(ctx context.Context, canonicalID, synonym string) error
	// UpsertFact inserts or replaces the fact for exactly ids. Changing the
	// severity of an existing fact requires override, otherwise it fails
	// with apperr.ErrConflictingFact.
	UpsertFact(ctx context.Context, ids []string, severity model.Severity, description string, override bool) (model.InteractionFact, error)
	// Replace swaps the whole KB for ds.
	Replace(ctx context.Context, ds model.Dataset) error
	Close() error
}

// Backend is the durable persistence collaborator. Datasets are loaded and
// saved wholesale; Save must be atomic.
type Backend interface {
	Load(ctx context.Context) (model.Dataset, error)
	Save(ctx context.Context, ds model.Dataset) error
	Ping(ctx context.Context) error
	Close() error
}
