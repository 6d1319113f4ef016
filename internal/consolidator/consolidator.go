// Package consolidator joins normalized transaction lines against the article
// and channel dimensions and aggregates them into the fact table. Net sale is
// always gross minus returns over the same underlying lines, so the fact
// invariant holds by construction.
package consolidator

import (
	"fmt"
	"sort"
	"sync"

	"ventasbi/internal/model"
	"ventasbi/internal/normalizer"
)

// UnresolvedPolicy decides what happens when a line references an article or
// channel that is missing from the dimensions.
type UnresolvedPolicy string

const (
	// PolicyAbort fails the whole run on the first unresolved line.
	PolicyAbort UnresolvedPolicy = "abort"
	// PolicyQuarantine sets unresolved lines aside and consolidates the rest.
	PolicyQuarantine UnresolvedPolicy = "quarantine"
)

// KeyResolutionError reports a line whose article or channel key has no
// dimension entry. The line itself is carried for quarantine reporting.
type KeyResolutionError struct {
	Field string // "articulo" or "canal"
	Key   string
	Line  model.TransactionLine
}

func (e *KeyResolutionError) Error() string {
	return fmt.Sprintf("consolidator: %s %q sin entrada en la dimension", e.Field, e.Key)
}

// Options configures a consolidation pass.
type Options struct {
	// Period overrides the per-line reporting period when non-empty.
	Period string
	// Policy for unresolved lines. Defaults to PolicyAbort.
	Policy UnresolvedPolicy
	// Workers > 1 enables sharded partial-sum aggregation. Aggregation is a
	// commutative sum per key, so shards can be consolidated independently
	// and merged.
	Workers int
}

// Result is the output of a consolidation pass. Included holds exactly the
// lines that were folded into Facts — the auditor reconciles against these,
// so quarantined lines can never mask a missing fact row.
type Result struct {
	Facts       []model.FactRecord
	Included    []model.TransactionLine
	Quarantined []model.TransactionLine
	Warnings    []model.Anomaly // EmptyKey fallbacks observed while normalizing
}

// Consolidator aggregates normalized lines into fact records.
type Consolidator struct {
	articles map[string]model.ArticleDimension
	channels map[string]model.ChannelDimension
}

// New indexes the dimension tables by normalized key.
func New(articles []model.ArticleDimension, channels []model.ChannelDimension) *Consolidator {
	c := &Consolidator{
		articles: make(map[string]model.ArticleDimension, len(articles)),
		channels: make(map[string]model.ChannelDimension, len(channels)),
	}
	for _, a := range articles {
		a.Code = normalizer.Key(a.Code)
		a.Category = normalizer.Key(a.Category)
		c.articles[a.Code] = a
	}
	for _, ch := range channels {
		ch.Code = normalizer.Key(ch.Code)
		c.channels[ch.Code] = ch
	}
	return c
}

// Article returns the dimension entry for a normalized article key.
func (c *Consolidator) Article(key string) (model.ArticleDimension, bool) {
	a, ok := c.articles[key]
	return a, ok
}

// Channel returns the dimension entry for a normalized channel key.
func (c *Consolidator) Channel(key string) (model.ChannelDimension, bool) {
	ch, ok := c.channels[key]
	return ch, ok
}

// Normalize canonicalizes the key fields of every line and reports EmptyKey
// fallbacks as warnings. The input slice is not modified.
func (c *Consolidator) Normalize(lines []model.TransactionLine) ([]model.TransactionLine, []model.Anomaly) {
	out := make([]model.TransactionLine, len(lines))
	var warnings []model.Anomaly
	for i, l := range lines {
		for _, f := range []struct {
			name string
			raw  string
			dst  *string
		}{
			{"articulo", l.Article, &l.Article},
			{"canal", l.Channel, &l.Channel},
			{"categoria", l.Category, &l.Category},
		} {
			key := normalizer.Key(f.raw)
			// Line-level categoria is untrusted free text and is re-resolved
			// from the article dimension during metric derivation (see
			// CategoryMetrics), so its EmptyKey fallback carries no signal.
			// Only articulo and canal drive fact resolution and warn.
			if normalizer.IsEmpty(key) && f.name != "categoria" {
				warnings = append(warnings, model.Anomaly{
					Kind:    model.AnomalyEmptyKey,
					Subject: f.name,
					Detail:  fmt.Sprintf("linea %d: %s %q normalizado a %s", i, f.name, f.raw, normalizer.EmptyKey),
				})
			}
			*f.dst = key
		}
		out[i] = l
	}
	return out, warnings
}

// Consolidate aggregates normalized lines into the fact table. Lines must
// already be normalized (see Normalize). Under PolicyAbort the first
// unresolved line fails the pass with a *KeyResolutionError; under
// PolicyQuarantine unresolved lines are collected in the result instead.
func (c *Consolidator) Consolidate(lines []model.TransactionLine, opts Options) (*Result, error) {
	if opts.Policy == "" {
		opts.Policy = PolicyAbort
	}
	if opts.Workers > 1 && len(lines) >= opts.Workers {
		return c.consolidateSharded(lines, opts)
	}
	return c.consolidateSerial(lines, opts)
}

func (c *Consolidator) consolidateSerial(lines []model.TransactionLine, opts Options) (*Result, error) {
	acc := make(map[model.FactKey]*model.FactRecord)
	res := &Result{}

	for _, l := range lines {
		if err := c.accumulate(acc, l, opts, res); err != nil {
			return nil, err
		}
	}

	res.Facts = sortedFacts(acc)
	return res, nil
}

// consolidateSharded splits the lines into shards, consolidates each shard on
// its own goroutine and merges the partial sums. Per-key sums are commutative,
// so the merged result is identical to a serial pass.
func (c *Consolidator) consolidateSharded(lines []model.TransactionLine, opts Options) (*Result, error) {
	shardSize := (len(lines) + opts.Workers - 1) / opts.Workers

	type partial struct {
		acc map[model.FactKey]*model.FactRecord
		res *Result
		err error
	}
	numShards := (len(lines) + shardSize - 1) / shardSize
	partials := make([]partial, numShards)
	for i := range partials {
		partials[i] = partial{
			acc: make(map[model.FactKey]*model.FactRecord),
			res: &Result{},
		}
	}

	var wg sync.WaitGroup
	for s := range partials {
		start := s * shardSize
		end := start + shardSize
		if end > len(lines) {
			end = len(lines)
		}
		wg.Add(1)
		go func(p *partial, chunk []model.TransactionLine) {
			defer wg.Done()
			for _, l := range chunk {
				if err := c.accumulate(p.acc, l, opts, p.res); err != nil {
					p.err = err
					return
				}
			}
		}(&partials[s], lines[start:end])
	}
	wg.Wait()

	merged := make(map[model.FactKey]*model.FactRecord)
	res := &Result{}
	for _, p := range partials {
		if p.err != nil {
			return nil, p.err
		}
		res.Included = append(res.Included, p.res.Included...)
		res.Quarantined = append(res.Quarantined, p.res.Quarantined...)
		for k, f := range p.acc {
			if m, ok := merged[k]; ok {
				m.GrossSale = m.GrossSale.Add(f.GrossSale)
				m.ReturnAmount = m.ReturnAmount.Add(f.ReturnAmount)
				m.NetSale = m.NetSale.Add(f.NetSale)
				m.Quantity += f.Quantity
			} else {
				cp := *f
				merged[k] = &cp
			}
		}
	}

	res.Facts = sortedFacts(merged)
	return res, nil
}

// accumulate folds one line into the running aggregation.
func (c *Consolidator) accumulate(acc map[model.FactKey]*model.FactRecord, l model.TransactionLine, opts Options, res *Result) error {
	if _, ok := c.articles[l.Article]; !ok {
		return c.unresolved(&KeyResolutionError{Field: "articulo", Key: l.Article, Line: l}, opts, res)
	}
	if _, ok := c.channels[l.Channel]; !ok {
		return c.unresolved(&KeyResolutionError{Field: "canal", Key: l.Channel, Line: l}, opts, res)
	}

	period := opts.Period
	if period == "" {
		period = l.Period()
	}

	key := model.FactKey{Article: l.Article, Channel: l.Channel, Period: period}
	f, ok := acc[key]
	if !ok {
		f = &model.FactRecord{Article: l.Article, Channel: l.Channel, Period: period}
		acc[key] = f
	}

	if l.Amount.IsNegative() {
		f.ReturnAmount = f.ReturnAmount.Add(l.Amount.Abs())
	} else {
		f.GrossSale = f.GrossSale.Add(l.Amount)
	}
	// Signed sum — identical to GrossSale − ReturnAmount at all times.
	f.NetSale = f.NetSale.Add(l.Amount)
	f.Quantity += l.Quantity
	res.Included = append(res.Included, l)
	return nil
}

func (c *Consolidator) unresolved(err *KeyResolutionError, opts Options, res *Result) error {
	if opts.Policy == PolicyQuarantine {
		res.Quarantined = append(res.Quarantined, err.Line)
		return nil
	}
	return err
}

func sortedFacts(acc map[model.FactKey]*model.FactRecord) []model.FactRecord {
	facts := make([]model.FactRecord, 0, len(acc))
	for _, f := range acc {
		facts = append(facts, *f)
	}
	sort.Slice(facts, func(i, j int) bool {
		if facts[i].Article != facts[j].Article {
			return facts[i].Article < facts[j].Article
		}
		if facts[i].Channel != facts[j].Channel {
			return facts[i].Channel < facts[j].Channel
		}
		return facts[i].Period < facts[j].Period
	})
	return facts
}
