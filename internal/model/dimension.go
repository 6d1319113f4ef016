package model

import "github.com/shopspring/decimal"

// ChannelType distinguishes physical stores from online channels.
type ChannelType string

const (
	ChannelPhysical ChannelType = "FISICA"
	ChannelOnline   ChannelType = "ONLINE"
)

// ArticleDimension is the article master record. Code is the normalized,
// unique key used for all fact lookups.
type ArticleDimension struct {
	Code        string           `json:"articulo"`
	Description string           `json:"descripcion"`
	Category    string           `json:"categoria"`
	UnitCost    *decimal.Decimal `json:"costo_unitario,omitempty"`
}

// ChannelDimension describes a sales channel (one per sucursal / storefront).
type ChannelDimension struct {
	Code string      `json:"canal"`
	Type ChannelType `json:"tipo"`
}

// ChannelMetric is a DATA_CANALES output row: per-channel net revenue and
// return rate. ReturnRate = returns / gross, defined as 0 when gross is 0.
type ChannelMetric struct {
	Channel      string          `json:"canal"`
	Type         ChannelType     `json:"tipo"`
	TotalNetSale decimal.Decimal `json:"venta_neta_total"`
	ReturnRate   decimal.Decimal `json:"tasa_devolucion"`
}

// CategoryMetric is a DATA_CATEGORIAS output row. ContributionShare is the
// category's fraction of total net revenue (0–1, rounded to 4 decimals).
type CategoryMetric struct {
	Category          string          `json:"categoria"`
	TotalNetSale      decimal.Decimal `json:"venta_neta_total"`
	ArticleCount      int             `json:"articulos"`
	ContributionShare decimal.Decimal `json:"participacion"`
}
