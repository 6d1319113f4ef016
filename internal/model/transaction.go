package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionLine is a single raw sale or return line as handed over by the
// extraction layer. Amount is signed: positive = sale, negative = return /
// credit note. Codes are raw on input and canonical after normalization —
// the pipeline never mutates a line once it has been normalized.
type TransactionLine struct {
	Article   string          `json:"articulo"`
	Channel   string          `json:"canal"`
	Category  string          `json:"categoria"`
	UnitPrice decimal.Decimal `json:"precio_unitario"`
	Quantity  int             `json:"cantidad"`
	Amount    decimal.Decimal `json:"importe"`
	Timestamp time.Time       `json:"fecha"`
}

// IsReturn reports whether the line is a return / credit note.
func (l TransactionLine) IsReturn() bool {
	return l.Amount.IsNegative()
}

// Period returns the reporting period key (YYYY-MM) derived from the line
// timestamp. A zero timestamp yields the empty string; callers fall back to
// the configured period in that case.
func (l TransactionLine) Period() string {
	if l.Timestamp.IsZero() {
		return ""
	}
	return l.Timestamp.Format("2006-01")
}
