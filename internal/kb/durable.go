package kb

import (
	"context"
	"fmt"

	"github.com/Skufu/medsafe/internal/apperr"
	"github.com/Skufu/medsafe/internal/logging"
	"github.com/Skufu/medsafe/internal/model"
)

// DurableStore is a KB whose every update is saved through a Backend before
// it becomes visible. A failed save leaves the prior state authoritative.
type DurableStore struct {
	base
	backend Backend
}

var _ Store = (*DurableStore)(nil)

// Open loads the backend's dataset. When the backend is empty and seed is
// non-nil, seed is saved and used instead. Any failure is returned as
// apperr.ErrStorageUnavailable or a validation error; the caller must not
// serve queries without a loaded KB.
func Open(ctx context.Context, backend Backend, seed *model.Dataset, opts ...Option) (*DurableStore, error) {
	s := &DurableStore{backend: backend}
	s.init(opts)
	s.persist = func(ctx context.Context, next *snapshot) error {
		if err := backend.Save(ctx, next.Dataset()); err != nil {
			return apperr.Wrap(err, apperr.CodeStorageUnavailable, "save knowledge base")
		}
		return nil
	}

	ds, err := backend.Load(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStorageUnavailable, "load knowledge base")
	}

	seeded := false
	if len(ds.Drugs) == 0 && len(ds.Facts) == 0 && seed != nil {
		ds = *seed
		seeded = true
	}

	snap, err := buildSnapshot(ds, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("validate stored knowledge base: %w", err)
	}
	snap.version = 1
	if seeded {
		if err := s.persist(ctx, snap); err != nil {
			return nil, err
		}
	}
	s.publish(snap)

	s.log.Info("knowledge base loaded",
		logging.Int("drugs", len(snap.drugs)),
		logging.Int("facts", len(snap.facts)),
		logging.Bool("seeded", seeded))
	return s, nil
}

// Ping checks the backend.
func (s *DurableStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close waits for an in-flight update and closes the backend.
func (s *DurableStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Close()
}
