package consolidator

import (
	"sort"

	"github.com/shopspring/decimal"

	"ventasbi/internal/model"
)

// ChannelMetrics derives the DATA_CANALES table from consolidated facts.
// ReturnRate is returns over gross for the channel, 0 when gross is 0.
func (c *Consolidator) ChannelMetrics(facts []model.FactRecord) []model.ChannelMetric {
	type agg struct {
		net     decimal.Decimal
		gross   decimal.Decimal
		returns decimal.Decimal
	}
	byChannel := make(map[string]*agg)
	for _, f := range facts {
		a, ok := byChannel[f.Channel]
		if !ok {
			a = &agg{}
			byChannel[f.Channel] = a
		}
		a.net = a.net.Add(f.NetSale)
		a.gross = a.gross.Add(f.GrossSale)
		a.returns = a.returns.Add(f.ReturnAmount)
	}

	metrics := make([]model.ChannelMetric, 0, len(byChannel))
	for code, a := range byChannel {
		m := model.ChannelMetric{
			Channel:      code,
			Type:         model.ChannelPhysical,
			TotalNetSale: a.net,
			ReturnRate:   returnRate(a.returns, a.gross),
		}
		if dim, ok := c.channels[code]; ok {
			m.Type = dim.Type
		}
		metrics = append(metrics, m)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Channel < metrics[j].Channel })
	return metrics
}

// CategoryMetrics derives the DATA_CATEGORIAS table from consolidated facts.
// The category of each fact row comes from the article dimension (master
// data), not from whatever the source line carried.
func (c *Consolidator) CategoryMetrics(facts []model.FactRecord) []model.CategoryMetric {
	type agg struct {
		net      decimal.Decimal
		articles map[string]struct{}
	}
	byCategory := make(map[string]*agg)
	grandTotal := decimal.Zero

	for _, f := range facts {
		category := ""
		if dim, ok := c.articles[f.Article]; ok {
			category = dim.Category
		}
		a, ok := byCategory[category]
		if !ok {
			a = &agg{articles: make(map[string]struct{})}
			byCategory[category] = a
		}
		a.net = a.net.Add(f.NetSale)
		a.articles[f.Article] = struct{}{}
		grandTotal = grandTotal.Add(f.NetSale)
	}

	metrics := make([]model.CategoryMetric, 0, len(byCategory))
	for code, a := range byCategory {
		share := decimal.Zero
		if grandTotal.Sign() > 0 {
			share = a.net.Div(grandTotal).Round(4)
		}
		metrics = append(metrics, model.CategoryMetric{
			Category:          code,
			TotalNetSale:      a.net,
			ArticleCount:      len(a.articles),
			ContributionShare: share,
		})
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Category < metrics[j].Category })
	return metrics
}

func returnRate(returns, gross decimal.Decimal) decimal.Decimal {
	if gross.Sign() <= 0 {
		return decimal.Zero
	}
	return returns.Div(gross).Round(4)
}
