package model

import "github.com/shopspring/decimal"

// FactKey is the composite aggregation key of the fact table.
type FactKey struct {
	Article string
	Channel string
	Period  string
}

// FactRecord is a DATA_BI output row: one consolidated row per
// (article, channel, period). The invariant NetSale = GrossSale − ReturnAmount
// holds exactly — both sides are accumulated from the same underlying lines,
// never adjusted after the fact.
type FactRecord struct {
	Article      string          `json:"articulo"`
	Channel      string          `json:"canal"`
	Period       string          `json:"periodo"`
	GrossSale    decimal.Decimal `json:"venta_bruta"`
	ReturnAmount decimal.Decimal `json:"venta_devolucion"`
	NetSale      decimal.Decimal `json:"venta_neta"`
	Quantity     int             `json:"cantidad"`
}

// Key returns the composite aggregation key of the record.
func (f FactRecord) Key() FactKey {
	return FactKey{Article: f.Article, Channel: f.Channel, Period: f.Period}
}

// ABCLabel is the Pareto class of an article.
type ABCLabel string

const (
	ClassA ABCLabel = "A"
	ClassB ABCLabel = "B"
	ClassC ABCLabel = "C"
)

// ABCClass is one row of the per-article Pareto ranking. Rank is 1-based in
// ranking order; ties on revenue break by article code ascending so repeated
// runs over the same data always produce the same ordering.
type ABCClass struct {
	Article         string          `json:"articulo"`
	Description     string          `json:"descripcion"`
	Rank            int             `json:"ranking"`
	Label           ABCLabel        `json:"clasificacion_abc"`
	NetSale         decimal.Decimal `json:"venta_neta_total"`
	GrossSale       decimal.Decimal `json:"venta_bruta_total"`
	ReturnAmount    decimal.Decimal `json:"venta_devolucion_total"`
	ReturnRate      decimal.Decimal `json:"tasa_devolucion"`
	Share           decimal.Decimal `json:"participacion"`
	CumulativeShare decimal.Decimal `json:"participacion_acumulada"`
}
