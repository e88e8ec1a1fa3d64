package kb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Skufu/medsafe/internal/apperr"
	"github.com/Skufu/medsafe/internal/logging"
	"github.com/Skufu/medsafe/internal/model"
)

// UpdateObserver is told about every administrative update attempt and the
// KB size after it.
type UpdateObserver func(op string, err error, drugs, facts int)

// Option configures a store.
type Option func(*base)

// WithLogger sets the logger. The default discards output.
func WithLogger(l logging.Logger) Option {
	return func(b *base) { b.log = l }
}

// WithClock overrides time.Now for fact timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithObserver registers an update observer, typically metrics.
func WithObserver(o UpdateObserver) Option {
	return func(b *base) { b.observe = o }
}

// errUnchanged aborts an update that would not change anything.
var errUnchanged = errors.New("unchanged")

// base holds the snapshot pointer and the write path shared by both store
// implementations. persist is called with the candidate snapshot while the
// write lock is held; a failure leaves the published snapshot untouched.
type base struct {
	mu      sync.Mutex
	cur     atomic.Pointer[snapshot]
	persist func(ctx context.Context, next *snapshot) error
	log     logging.Logger
	now     func() time.Time
	observe UpdateObserver
}

func (b *base) init(opts []Option) {
	b.log = logging.NewNop()
	b.now = time.Now
	b.persist = func(context.Context, *snapshot) error { return nil }
	for _, opt := range opts {
		opt(b)
	}
}

func (b *base) current() *snapshot { return b.cur.Load() }

func (b *base) publish(s *snapshot) {
	b.cur.Store(s)
	if b.observe != nil {
		b.observe("load", nil, len(s.drugs), len(s.facts))
	}
}

// update applies fn to a private copy of the current snapshot and publishes
// it once persisted.
func (b *base) update(ctx context.Context, op string, fn func(next *snapshot) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.current()
	next := prev.clone()
	next.version = prev.version + 1

	err := fn(next)
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err == nil {
		err = b.persist(ctx, next)
	}
	if err != nil {
		b.log.Warn("kb update rejected", logging.String("op", op), logging.Err(err))
		b.notify(op, err, prev)
		return err
	}

	b.cur.Store(next)
	b.log.Info("kb updated", logging.String("op", op), logging.Uint64("version", next.version))
	b.notify(op, nil, next)
	return nil
}

func (b *base) notify(op string, err error, s *snapshot) {
	if b.observe != nil {
		b.observe(op, err, len(s.drugs), len(s.facts))
	}
}

func (b *base) Snapshot() Reader { return b.current() }

func (b *base) Version() uint64 { return b.current().Version() }

func (b *base) LookupDrug(name string) (model.Drug, error) {
	return b.current().LookupDrug(name)
}

func (b *base) Fact(ids model.DrugSet) (model.InteractionFact, bool) {
	return b.current().Fact(ids)
}

func (b *base) FactsFor(ids model.DrugSet) []model.InteractionFact {
	return b.current().FactsFor(ids)
}

func (b *base) Drugs() []model.Drug { return b.current().Drugs() }

func (b *base) Facts() []model.InteractionFact { return b.current().Facts() }

func (b *base) Dataset() model.Dataset { return b.current().Dataset() }

func (b *base) AddDrug(ctx context.Context, d model.Drug) (model.Drug, error) {
	var added model.Drug
	err := b.update(ctx, "add_drug", func(next *snapshot) error {
		var err error
		added, err = next.addDrug(d)
		return err
	})
	return added, err
}

func (b *base) AddSynonym(ctx context.Context, canonicalID, synonym string) error {
	return b.update(ctx, "add_synonym", func(next *snapshot) error {
		id := model.NormalizeName(canonicalID)
		drug, ok := next.drugs[id]
		if !ok {
			return apperr.ErrNotFound.WithDetail("drug " + canonicalID)
		}
		key := model.NormalizeName(synonym)
		if key == "" {
			return apperr.New(apperr.CodeInvalidInput, "synonym is empty")
		}
		if err := checkName(key); err != nil {
			return err
		}
		if owner, taken := next.names[key]; taken {
			if owner == id {
				return errUnchanged
			}
			return apperr.ErrDuplicateSynonym.WithDetail(key + " already names " + owner)
		}

		drug = drug.Clone()
		drug.Synonyms = append(drug.Synonyms, strings.TrimSpace(synonym))
		next.drugs[id] = drug
		next.names[key] = id
		return nil
	})
}

func (b *base) UpsertFact(ctx context.Context, ids []string, severity model.Severity, description string, override bool) (model.InteractionFact, error) {
	var stored model.InteractionFact
	err := b.update(ctx, "upsert_fact", func(next *snapshot) error {
		f, err := next.resolveFact(ids, severity, description)
		if err != nil {
			return err
		}
		if prev, ok := next.facts[f.Drugs.Key()]; ok && prev.Severity != f.Severity && !override {
			return apperr.ErrConflictingFact.WithDetail(
				f.Drugs.String() + " is recorded as " + prev.Severity.String() + "; set override to replace it")
		}
		f.ID = newFactID()
		f.UpdatedAt = b.now().UTC()
		next.putFact(f)
		stored = f.Clone()
		return nil
	})
	return stored, err
}

func (b *base) Replace(ctx context.Context, ds model.Dataset) error {
	built, err := buildSnapshot(ds, b.now().UTC())
	if err != nil {
		return err
	}
	return b.update(ctx, "replace", func(next *snapshot) error {
		built.version = next.version
		*next = *built
		return nil
	})
}

// MemoryStore keeps the KB in process memory only.
type MemoryStore struct {
	base
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds a store seeded from ds.
func NewMemoryStore(ds model.Dataset, opts ...Option) (*MemoryStore, error) {
	s := &MemoryStore{}
	s.init(opts)
	snap, err := buildSnapshot(ds, s.now().UTC())
	if err != nil {
		return nil, err
	}
	snap.version = 1
	s.publish(snap)
	return s, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
