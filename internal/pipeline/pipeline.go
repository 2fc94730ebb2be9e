// Package pipeline composes normalization, identity resolution,
// classification, correction and aggregation into one run over a batch of
// payments.
//
// A run is a pure function of (prior registry, payments, corrections): it
// works on a clone of the prior registry and returns the updated copy for
// the caller to persist.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ledger/internal/aggregate"
	"ledger/internal/classify"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/normalize"
	"ledger/internal/registry"
)

// DefaultTopN matches the size of the review batch the classifier was
// tuned on.
const DefaultTopN = 2000

type Options struct {
	// Cutoff is the first fiscal year kept in the composition table.
	Cutoff int
	// TopN limits classification to the highest-spend vendors. Zero or
	// less classifies every vendor observed in the run.
	TopN int
	// Workers bounds parallel classification. Values below 1 mean 1.
	Workers int
	// Corrections defaults to classify.DefaultCorrections.
	Corrections *classify.Corrections
	// Memo is optional and may be shared across runs.
	Memo *classify.Memo
	// Logger defaults to the logger carried by the run context.
	Logger *log.Logger
}

// Stats summarizes what a run did.
type Stats struct {
	Payments          int
	Unmatched         int
	VendorsObserved   int
	VendorsCreated    int
	Classified        int
	ClassifiedChanged int
	Corrected         int
	CorrectionsByKind map[string]int
	VendorsByType     map[core.VendorType]int
	// ClassifiedByType counts the cascade's proposals, applied or not.
	ClassifiedByType  map[core.VendorType]int
}

// Result is the output of Run.
type Result struct {
	RunID     string
	StartedAt time.Time
	Registry  *registry.Registry
	Aggregate *aggregate.Result
	Stats     Stats
}

type classifyJob struct {
	id   string
	name string
}

type classifyResult struct {
	c    core.Classification
	rule string
}

// Run executes resolve, classify, correct and aggregate in that order.
// prior may be nil on a first run. The prior registry is not modified.
func Run(ctx context.Context, prior *registry.Registry, payments []core.RawPayment, opts Options) (*Result, error) {
	runID := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = log.FromContext(ctx)
		if logger.Component() != log.ComponentPipeline {
			logger = logger.WithComponent(log.ComponentPipeline)
		}
	}
	logger = logger.WithFields(log.NewFields().WithRunID(runID))

	corrections := opts.Corrections
	if corrections == nil {
		corrections = classify.DefaultCorrections()
	}

	reg := registry.New()
	if prior != nil {
		reg = prior.Clone()
	}
	res := &Result{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Registry:  reg,
		Stats: Stats{
			Payments:          len(payments),
			CorrectionsByKind: make(map[string]int),
			VendorsByType:     make(map[core.VendorType]int),
			ClassifiedByType:  make(map[core.VendorType]int),
		},
	}

	spend, err := resolve(reg, payments, &res.Stats)
	if err != nil {
		return nil, err
	}
	logger.Info("Resolved vendor identities",
		log.FieldOperation, log.OpResolve,
		"observed", res.Stats.VendorsObserved,
		"created", res.Stats.VendorsCreated,
		"unmatched", res.Stats.Unmatched)

	if err := classifyTop(ctx, reg, spend, opts, &res.Stats, logger); err != nil {
		return nil, err
	}

	correct(reg, spend, corrections, &res.Stats, logger)

	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("registry invalid before aggregation: %w", err)
	}
	agg, err := aggregate.Aggregate(payments, reg.IDsByName(), reg.Classifications(), opts.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	for id, s := range agg.Summaries {
		if err := reg.ApplySummary(id, s); err != nil {
			return nil, fmt.Errorf("write back summary: %w", err)
		}
	}
	res.Aggregate = agg

	for _, v := range reg.Vendors() {
		res.Stats.VendorsByType[v.Classification.Type]++
	}
	logger.Info("Aggregated payments",
		log.FieldOperation, log.OpAggregate,
		"years", len(agg.Composition),
		"yearly_totals", len(agg.YearlyTotals))
	return res, nil
}

// resolve assigns every payment to an identity and returns the run's spend
// per vendor id.
func resolve(reg *registry.Registry, payments []core.RawPayment, stats *Stats) (map[string]core.Money, error) {
	spend := make(map[string]core.Money)
	before := reg.Len()
	for _, p := range payments {
		name := normalize.Normalize(p.VendorNameRaw)
		if name == "" {
			stats.Unmatched++
			continue
		}
		id, err := reg.Resolve(name, p.VendorNameRaw)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", p.VendorNameRaw, err)
		}
		spend[id] = spend[id].Add(p.Amount)
	}
	stats.VendorsObserved = len(spend)
	stats.VendorsCreated = reg.Len() - before
	return spend, nil
}

// rankBySpend orders ids by spend descending, then id.
func rankBySpend(spend map[string]core.Money) []string {
	ids := make([]string, 0, len(spend))
	for id := range spend {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := spend[ids[i]], spend[ids[j]]
		if a.Cents != b.Cents {
			return a.Cents > b.Cents
		}
		return ids[i] < ids[j]
	})
	return ids
}

// classifyTop classifies the highest-spend vendors in parallel and applies
// the results to the registry from this goroutine only.
func classifyTop(ctx context.Context, reg *registry.Registry, spend map[string]core.Money, opts Options, stats *Stats, logger *log.Logger) error {
	ranked := rankBySpend(spend)
	if opts.TopN > 0 && len(ranked) > opts.TopN {
		ranked = ranked[:opts.TopN]
	}

	jobs := make([]classifyJob, len(ranked))
	for i, id := range ranked {
		v, _ := reg.Get(id)
		jobs[i] = classifyJob{id: id, name: v.DisplayName()}
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	results := make([]classifyResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, rule := classifyName(opts.Memo, job.name)
			results[i] = classifyResult{c: c, rule: rule}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	for i, job := range jobs {
		changed, err := reg.ApplyClassification(job.id, results[i].c, core.SourceAuto, "")
		if err != nil {
			return err
		}
		stats.Classified++
		stats.ClassifiedByType[results[i].c.Type]++
		if changed {
			stats.ClassifiedChanged++
			c := results[i].c
			logger.WithFields(log.NewFields().
				WithVendor(job.id, job.name).
				WithClassification(string(c.Type), string(c.Category), string(c.Confidence))).
				Debug("Classified vendor", log.FieldRule, results[i].rule)
		}
	}
	logger.Info("Classified vendors",
		log.FieldOperation, log.OpClassify,
		"reviewed", stats.Classified,
		"changed", stats.ClassifiedChanged,
		"workers", workers)
	return nil
}

func classifyName(memo *classify.Memo, name string) (core.Classification, string) {
	if memo != nil {
		return memo.ClassifyWithRule(name)
	}
	return classify.ClassifyWithRule(name)
}

// correct applies the correction table to every identity. Spend observed in
// this run takes precedence over the stored all-year total.
func correct(reg *registry.Registry, spend map[string]core.Money, corrections *classify.Corrections, stats *Stats, logger *log.Logger) {
	for _, v := range reg.Vendors() {
		total := v.TotalPaid
		if s, ok := spend[v.ID]; ok {
			total = s
		}
		names := append([]string{v.NormalizedName}, v.Aliases...)
		fix, ok := corrections.Apply(classify.Subject{Names: names, Current: v.Classification, Total: total})
		if !ok {
			continue
		}
		changed, err := reg.ApplyClassification(v.ID, fix.Classification, core.SourceCorrection, fix.Reason)
		if err != nil || !changed {
			continue
		}
		stats.Corrected++
		stats.CorrectionsByKind[fix.Kind]++
		c := fix.Classification
		logger.WithFields(log.NewFields().
			WithOperation(log.OpCorrect).
			WithVendor(v.ID, v.DisplayName()).
			WithClassification(string(c.Type), string(c.Category), string(c.Confidence))).
			Info("Corrected classification",
				"from", v.Classification.Type,
				log.FieldReason, fix.Reason)
	}
}
