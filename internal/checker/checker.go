// Package checker is the entry point for interaction checks. It runs the
// normalizer, the detector and the risk aggregator against one pinned KB
// snapshot and shapes the result for callers.
package checker

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Skufu/medsafe/internal/apperr"
	"github.com/Skufu/medsafe/internal/detect"
	"github.com/Skufu/medsafe/internal/kb"
	"github.com/Skufu/medsafe/internal/logging"
	"github.com/Skufu/medsafe/internal/model"
	"github.com/Skufu/medsafe/internal/normalize"
	"github.com/Skufu/medsafe/internal/risk"
)

// MinMedications is the smallest input a check accepts.
const MinMedications = 2

// ErrInsufficientInput is returned for fewer than MinMedications names.
var ErrInsufficientInput = apperr.New(apperr.CodeInsufficientInput, "provide at least 2 medications")

// Source hands out consistent KB views. kb.Store satisfies it.
type Source interface {
	Snapshot() kb.Reader
}

// Recorder receives check telemetry. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveCheck(level model.Severity, unresolved int, took time.Duration, cached bool)
	ObserveRejection()
}

type nopRecorder struct{}

func (nopRecorder) ObserveCheck(model.Severity, int, time.Duration, bool) {}
func (nopRecorder) ObserveRejection()                                     {}

// Option configures a Checker.
type Option func(*Checker)

// WithMaxExhaustive sets the drug count above which only pairs are checked.
func WithMaxExhaustive(n int) Option {
	return func(c *Checker) { c.detector = detect.New(n) }
}

// WithCacheTTL memoizes results per KB version and input for ttl. Zero
// disables the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Checker) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = cache.New(ttl, 2*ttl)
	}
}

// WithRecorder sets the telemetry sink.
func WithRecorder(r Recorder) Option {
	return func(c *Checker) { c.rec = r }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Checker) { c.log = l }
}

// WithClock overrides time.Now for duration measurement.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) { c.now = now }
}

// Checker is safe for concurrent use.
type Checker struct {
	src      Source
	detector *detect.Detector
	cache    *cache.Cache
	rec      Recorder
	log      logging.Logger
	now      func() time.Time
}

// New returns a Checker reading from src. Caching is off unless
// WithCacheTTL is given.
func New(src Source, opts ...Option) *Checker {
	c := &Checker{
		src:      src,
		detector: detect.New(detect.DefaultMaxExhaustive),
		rec:      nopRecorder{},
		log:      logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxExhaustive reports the detector cap in use.
func (c *Checker) MaxExhaustive() int { return c.detector.MaxExhaustive() }

// Check runs one interaction check over raw drug names. Names the KB does
// not know are reported in Unresolved and never fail the call. Fewer than
// two names fail with ErrInsufficientInput.
//
// The returned result is owned by the caller.
func (c *Checker) Check(raw []string) (*model.MatchResult, error) {
	if len(raw) < MinMedications {
		c.rec.ObserveRejection()
		return nil, ErrInsufficientInput.WithDetail("got " + strconv.Itoa(len(raw)))
	}
	start := c.now()

	snap := c.src.Snapshot()
	key := cacheKey(snap.Version(), raw)
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			res := v.(*model.MatchResult)
			c.rec.ObserveCheck(res.RiskLevel, len(res.Unresolved), c.now().Sub(start), true)
			return res.Clone(), nil
		}
	}

	res, err := c.run(snap, raw)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.SetDefault(key, res.Clone())
	}

	took := c.now().Sub(start)
	c.rec.ObserveCheck(res.RiskLevel, len(res.Unresolved), took, false)
	c.log.Debug("check completed",
		logging.Int("inputs", len(raw)),
		logging.Int("resolved", len(res.Resolved)),
		logging.Int("unresolved", len(res.Unresolved)),
		logging.Int("interactions", len(res.Interactions)),
		logging.String("risk_level", res.RiskLevel.String()),
		logging.Bool("advisory", res.Advisory),
		logging.Uint64("kb_version", snap.Version()),
		logging.Duration("took", took),
	)
	return res, nil
}

func (c *Checker) run(snap kb.Reader, raw []string) (*model.MatchResult, error) {
	norm, err := normalize.Normalize(snap, raw)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "normalize medications")
	}

	res := &model.MatchResult{
		Resolved:     make([]model.ResolvedDrug, 0, len(norm.Resolved)),
		Unresolved:   norm.Unresolved,
		Interactions: []model.Interaction{},
		RiskLevel:    model.SeveritySafe,
	}
	// first spelling the caller used for each drug
	spelling := make(map[string]string, len(norm.Resolved))
	for _, r := range norm.Resolved {
		res.Resolved = append(res.Resolved, model.ResolvedDrug{Input: r.Input, ID: r.Drug.ID, Name: r.Drug.Name})
		if _, ok := spelling[r.Drug.ID]; !ok {
			spelling[r.Drug.ID] = r.Input
		}
	}
	if len(norm.Drugs) < MinMedications {
		return res, nil
	}

	facts, advisory := c.detector.Detect(snap, norm.Drugs)
	res.Advisory = advisory
	res.RiskLevel = risk.Aggregate(facts)
	res.Summary = risk.Summarize(facts)

	for _, f := range facts {
		names := make([]string, 0, len(f.Drugs))
		for _, id := range f.Drugs {
			names = append(names, spelling[id])
		}
		res.Interactions = append(res.Interactions, model.Interaction{
			Drugs:       names,
			DrugIDs:     slices.Clone(f.Drugs),
			Severity:    f.Severity,
			Description: f.Description,
		})
	}
	slices.SortStableFunc(res.Interactions, func(a, b model.Interaction) int {
		if d := b.Severity.Rank() - a.Severity.Rank(); d != 0 {
			return d
		}
		return strings.Compare(a.DrugIDs.Key(), b.DrugIDs.Key())
	})
	return res, nil
}

// cacheKey length-prefixes every name so that no two inputs collide.
func cacheKey(version uint64, raw []string) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(version, 10))
	for _, s := range raw {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	return b.String()
}
