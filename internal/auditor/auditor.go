// Package auditor certifies a consolidated run before anything is written.
//
// The reconciliation check re-derives the grand total twice, through two
// independent paths — a direct signed sum over the normalized lines and a sum
// over the consolidated fact rows — and compares them. Trusting a single
// computation would let an aggregation bug ship silently; two paths have to
// agree to the cent.
package auditor

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ventasbi/internal/model"
)

// Config holds the audit tolerances. Epsilon is an absolute currency
// tolerance — never relative, since a near-zero grand total would make a
// relative tolerance meaningless.
type Config struct {
	Epsilon              decimal.Decimal // default 0.01
	ZeroPriceThreshold   decimal.Decimal // default 0.01
	ReturnRateMultiplier decimal.Decimal // default 2
}

// DefaultConfig returns the standard tolerances.
func DefaultConfig() Config {
	return Config{
		Epsilon:              decimal.NewFromFloat(0.01),
		ZeroPriceThreshold:   decimal.NewFromFloat(0.01),
		ReturnRateMultiplier: decimal.NewFromInt(2),
	}
}

// MismatchError is returned when the two reconciliation paths disagree by
// more than epsilon. The run must not be written; the caller fixes the source
// data and reruns.
type MismatchError struct {
	Result *model.AuditResult
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("auditor: totales no conciliados: lineas %s vs hechos %s (delta %s)",
		e.Result.LineTotal.StringFixed(2), e.Result.FactTotal.StringFixed(2), e.Result.Delta.StringFixed(2))
}

// Auditor performs the reconciliation check and anomaly scan.
type Auditor struct {
	cfg Config
}

// New returns an Auditor. Zero-valued tolerances fall back to the defaults.
func New(cfg Config) *Auditor {
	def := DefaultConfig()
	if cfg.Epsilon.Sign() <= 0 {
		cfg.Epsilon = def.Epsilon
	}
	if cfg.ZeroPriceThreshold.Sign() <= 0 {
		cfg.ZeroPriceThreshold = def.ZeroPriceThreshold
	}
	if cfg.ReturnRateMultiplier.Sign() <= 0 {
		cfg.ReturnRateMultiplier = def.ReturnRateMultiplier
	}
	return &Auditor{cfg: cfg}
}

// Audit reconciles lines (the ones that were actually consolidated — callers
// must exclude quarantined lines) against facts and scans for anomalies.
// It always returns a populated AuditResult; the error is a *MismatchError
// when status is MISMATCH, nil otherwise. Anomalies never produce an error.
func (a *Auditor) Audit(runID uuid.UUID, lines []model.TransactionLine, facts []model.FactRecord) (*model.AuditResult, error) {
	lineTotal := decimal.Zero
	for _, l := range lines {
		lineTotal = lineTotal.Add(l.Amount)
	}

	factTotal := decimal.Zero
	for _, f := range facts {
		factTotal = factTotal.Add(f.NetSale)
	}

	delta := lineTotal.Sub(factTotal)
	res := &model.AuditResult{
		RunID:     runID,
		Status:    model.StatusReconciled,
		LineTotal: lineTotal,
		FactTotal: factTotal,
		Delta:     delta,
		Anomalies: a.scan(lines, facts),
		AuditedAt: time.Now().UTC(),
	}

	if delta.Abs().GreaterThan(a.cfg.Epsilon) {
		res.Status = model.StatusMismatch
		return res, &MismatchError{Result: res}
	}
	return res, nil
}

// scan flags zero-price lines and return-rate outliers. Flagged lines stay in
// the reconciliation totals — anomalies report, they never correct.
func (a *Auditor) scan(lines []model.TransactionLine, facts []model.FactRecord) []model.Anomaly {
	var anomalies []model.Anomaly

	for i, l := range lines {
		if l.Quantity > 0 && l.UnitPrice.LessThanOrEqual(a.cfg.ZeroPriceThreshold) {
			anomalies = append(anomalies, model.Anomaly{
				Kind:    model.AnomalyZeroPrice,
				Subject: l.Article,
				Detail:  fmt.Sprintf("linea %d: precio unitario %s con cantidad %d", i, l.UnitPrice.StringFixed(2), l.Quantity),
				Value:   l.UnitPrice,
			})
		}
	}

	anomalies = append(anomalies, a.returnRateOutliers(facts)...)
	return anomalies
}

// returnRateOutliers flags channels and articles whose return rate exceeds
// the global mean rate by more than the configured multiplier.
func (a *Auditor) returnRateOutliers(facts []model.FactRecord) []model.Anomaly {
	type agg struct{ gross, returns decimal.Decimal }

	byChannel := make(map[string]*agg)
	byArticle := make(map[string]*agg)
	global := &agg{}

	add := func(m map[string]*agg, key string, f model.FactRecord) {
		e, ok := m[key]
		if !ok {
			e = &agg{}
			m[key] = e
		}
		e.gross = e.gross.Add(f.GrossSale)
		e.returns = e.returns.Add(f.ReturnAmount)
	}
	for _, f := range facts {
		add(byChannel, f.Channel, f)
		add(byArticle, f.Article, f)
		global.gross = global.gross.Add(f.GrossSale)
		global.returns = global.returns.Add(f.ReturnAmount)
	}

	if global.gross.Sign() <= 0 || global.returns.Sign() <= 0 {
		return nil
	}
	mean := global.returns.Div(global.gross)
	cutoff := mean.Mul(a.cfg.ReturnRateMultiplier)

	var out []model.Anomaly
	flag := func(kind model.AnomalyKind, m map[string]*agg, what string) {
		for code, e := range m {
			if e.gross.Sign() <= 0 {
				continue
			}
			rate := e.returns.Div(e.gross)
			if rate.GreaterThan(cutoff) {
				out = append(out, model.Anomaly{
					Kind:    kind,
					Subject: code,
					Detail: fmt.Sprintf("%s %s: tasa de devolucion %s supera %s (media global %s x %s)",
						what, code, rate.Round(4).String(), cutoff.Round(4).String(),
						mean.Round(4).String(), a.cfg.ReturnRateMultiplier.String()),
					Value: rate.Round(4),
				})
			}
		}
	}
	flag(model.AnomalyReturnRateChannel, byChannel, "canal")
	flag(model.AnomalyReturnRateArticle, byArticle, "articulo")

	// Map iteration order is random; keep the report stable across runs.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Subject < out[j].Subject
	})
	return out
}
