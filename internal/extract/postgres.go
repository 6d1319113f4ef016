package extract

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ventasbi/internal/model"
)

// PostgresExtractor reads completed sales straight from the POS database.
// Each sale item becomes one positive transaction line; items of voided
// sales additionally produce a mirrored negative line, so voids show up as
// returns instead of silently disappearing from the totals.
type PostgresExtractor struct {
	db      *gorm.DB
	channel string // the POS has no channel concept; all lines map to one
	from    time.Time
	to      time.Time
}

func NewPostgresExtractor(db *gorm.DB, channel string, from, to time.Time) *PostgresExtractor {
	if channel == "" {
		channel = "TIENDA"
	}
	return &PostgresExtractor{db: db, channel: channel, from: from, to: to}
}

// itemRow is the flattened join of venta_items × ventas × productos.
type itemRow struct {
	CodigoBarras string
	Nombre       string
	Categoria    string
	Precio       decimal.Decimal
	Cantidad     int
	Subtotal     decimal.Decimal
	Estado       string
	CreatedAt    time.Time
}

func (e *PostgresExtractor) Extract(ctx context.Context) (*Dataset, error) {
	var rows []itemRow
	err := e.db.WithContext(ctx).
		Table("venta_items AS vi").
		Select(`p.codigo_barras, p.nombre, p.categoria,
		        vi.precio_unitario AS precio, vi.cantidad, vi.subtotal,
		        v.estado, v.created_at`).
		Joins("JOIN ventas v ON v.id = vi.venta_id").
		Joins("JOIN productos p ON p.id = vi.producto_id").
		Where("v.created_at >= ? AND v.created_at < ?", e.from, e.to).
		Where("v.estado IN ?", []string{"completada", "anulada"}).
		Order("v.created_at").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Channels: []model.ChannelDimension{{Code: e.channel, Type: channelType(e.channel)}},
	}
	articleSeen := make(map[string]bool)

	for _, r := range rows {
		line := model.TransactionLine{
			Article:   r.CodigoBarras,
			Channel:   e.channel,
			Category:  r.Categoria,
			UnitPrice: r.Precio,
			Quantity:  r.Cantidad,
			Amount:    r.Subtotal,
			Timestamp: r.CreatedAt,
		}
		ds.Lines = append(ds.Lines, line)

		if r.Estado == "anulada" {
			void := line
			void.Amount = line.Amount.Neg()
			void.Quantity = -line.Quantity
			ds.Lines = append(ds.Lines, void)
		}

		if !articleSeen[r.CodigoBarras] {
			articleSeen[r.CodigoBarras] = true
			ds.Articles = append(ds.Articles, model.ArticleDimension{
				Code:        r.CodigoBarras,
				Description: r.Nombre,
				Category:    r.Categoria,
			})
		}
	}
	return ds, nil
}
