// Package classifier ranks articles by net revenue contribution and assigns
// Pareto (ABC) class labels.
package classifier

import (
	"sort"

	"github.com/shopspring/decimal"

	"ventasbi/internal/model"
)

// Thresholds are the cumulative-share cutoffs for classes A and B. Anything
// beyond ClassB is C.
type Thresholds struct {
	ClassA decimal.Decimal // default 0.80
	ClassB decimal.Decimal // default 0.95
}

// DefaultThresholds returns the standard 80/95 Pareto cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ClassA: decimal.NewFromFloat(0.80),
		ClassB: decimal.NewFromFloat(0.95),
	}
}

// DimensionLookup resolves an article code to its master record. Missing
// articles get an empty description; classification does not depend on it.
type DimensionLookup func(code string) (model.ArticleDimension, bool)

// Classify groups facts by article, ranks them by net revenue descending
// (ties broken by article code ascending) and assigns A/B/C labels by
// cumulative revenue share.
//
// Articles with zero or negative net revenue are forced to class C and placed
// after every positive-revenue article: folding negative entries into the
// cumulative sum would let the running share exceed 1 and misclassify the
// tail. Their cumulative share is reported as 1. Output order is ranking
// order.
func Classify(facts []model.FactRecord, lookup DimensionLookup, t Thresholds) []model.ABCClass {
	type perArticle struct {
		net     decimal.Decimal
		gross   decimal.Decimal
		returns decimal.Decimal
	}
	byArticle := make(map[string]*perArticle)
	for _, f := range facts {
		a, ok := byArticle[f.Article]
		if !ok {
			a = &perArticle{}
			byArticle[f.Article] = a
		}
		a.net = a.net.Add(f.NetSale)
		a.gross = a.gross.Add(f.GrossSale)
		a.returns = a.returns.Add(f.ReturnAmount)
	}

	rows := make([]model.ABCClass, 0, len(byArticle))
	for code, a := range byArticle {
		row := model.ABCClass{
			Article:      code,
			NetSale:      a.net,
			GrossSale:    a.gross,
			ReturnAmount: a.returns,
		}
		if a.gross.Sign() > 0 {
			row.ReturnRate = a.returns.Div(a.gross).Round(4)
		}
		if lookup != nil {
			if dim, ok := lookup(code); ok {
				row.Description = dim.Description
			}
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		ci := rows[i].NetSale.Cmp(rows[j].NetSale)
		if ci != 0 {
			return ci > 0 // revenue descending
		}
		return rows[i].Article < rows[j].Article
	})

	grandTotal := decimal.Zero
	for _, r := range rows {
		if r.NetSale.Sign() > 0 {
			grandTotal = grandTotal.Add(r.NetSale)
		}
	}

	running := decimal.Zero
	for i := range rows {
		rows[i].Rank = i + 1

		if rows[i].NetSale.Sign() <= 0 || grandTotal.Sign() <= 0 {
			// Sorted descending, so once revenue is non-positive every
			// remaining row is too.
			rows[i].Label = model.ClassC
			rows[i].Share = decimal.Zero
			rows[i].CumulativeShare = decimal.NewFromInt(1)
			continue
		}

		running = running.Add(rows[i].NetSale)
		cumulative := running.Div(grandTotal)

		switch {
		case cumulative.LessThanOrEqual(t.ClassA):
			rows[i].Label = model.ClassA
		case cumulative.LessThanOrEqual(t.ClassB):
			rows[i].Label = model.ClassB
		default:
			rows[i].Label = model.ClassC
		}

		rows[i].Share = rows[i].NetSale.Div(grandTotal).Round(4)
		rows[i].CumulativeShare = cumulative.Round(4)
	}

	return rows
}
