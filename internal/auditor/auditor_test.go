package auditor

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ventasbi/internal/model"
)

func saleLine(article string, price, amount float64, qty int) model.TransactionLine {
	return model.TransactionLine{
		Article:   article,
		Channel:   "TIENDA",
		UnitPrice: decimal.NewFromFloat(price),
		Quantity:  qty,
		Amount:    decimal.NewFromFloat(amount),
	}
}

func TestAuditReconciledWhenPathsAgree(t *testing.T) {
	lines := []model.TransactionLine{
		saleLine("A-1", 50, 100, 2),
		saleLine("A-2", 30, -30, -1),
	}
	facts := []model.FactRecord{
		{Article: "A-1", Channel: "TIENDA", GrossSale: decimal.NewFromInt(100), NetSale: decimal.NewFromInt(100)},
		{Article: "A-2", Channel: "TIENDA", GrossSale: decimal.NewFromInt(0), ReturnAmount: decimal.NewFromInt(30), NetSale: decimal.NewFromInt(-30)},
	}

	res, err := New(DefaultConfig()).Audit(uuid.New(), lines, facts)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReconciled, res.Status)
	assert.True(t, res.Reconciled())
	assert.True(t, res.Delta.IsZero())
	assert.Equal(t, "70", res.LineTotal.String())
	assert.Equal(t, "70", res.FactTotal.String())
}

func TestAuditMismatchOnInjectedDiscrepancy(t *testing.T) {
	lines := []model.TransactionLine{saleLine("A-1", 50, 100, 2)}
	// The consolidated total was tampered with after consolidation.
	facts := []model.FactRecord{
		{Article: "A-1", Channel: "TIENDA", GrossSale: decimal.NewFromFloat(98.50), NetSale: decimal.NewFromFloat(98.50)},
	}

	res, err := New(DefaultConfig()).Audit(uuid.New(), lines, facts)
	require.Error(t, err)

	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, model.StatusMismatch, res.Status)
	assert.Equal(t, "1.50", res.Delta.StringFixed(2))
	assert.Same(t, res, mismatch.Result)
	assert.Contains(t, mismatch.Error(), "delta")
}

func TestAuditDeltaWithinEpsilonStillReconciles(t *testing.T) {
	lines := []model.TransactionLine{saleLine("A-1", 50, 100, 2)}
	facts := []model.FactRecord{
		{Article: "A-1", Channel: "TIENDA", NetSale: decimal.NewFromFloat(99.99)},
	}

	// |delta| == epsilon exactly: tolerance is inclusive.
	res, err := New(DefaultConfig()).Audit(uuid.New(), lines, facts)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReconciled, res.Status)
	assert.Equal(t, "0.01", res.Delta.StringFixed(2))
}

func TestAuditZeroPriceAnomalyStaysInTotals(t *testing.T) {
	lines := []model.TransactionLine{
		saleLine("A-1", 0.01, 0.03, 3), // near-zero price, quantity 3
		saleLine("A-2", 50, 100, 2),
	}
	facts := []model.FactRecord{
		{Article: "A-1", Channel: "TIENDA", NetSale: decimal.NewFromFloat(0.03)},
		{Article: "A-2", Channel: "TIENDA", NetSale: decimal.NewFromInt(100)},
	}

	res, err := New(DefaultConfig()).Audit(uuid.New(), lines, facts)
	require.NoError(t, err)

	// Flagged, but the line still participates in both totals.
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, model.AnomalyZeroPrice, res.Anomalies[0].Kind)
	assert.Equal(t, "A-1", res.Anomalies[0].Subject)
	assert.Equal(t, "100.03", res.LineTotal.String())
}

func TestAuditZeroPriceIgnoredForReturns(t *testing.T) {
	// Negative-quantity lines (returns) are not zero-price anomalies.
	lines := []model.TransactionLine{saleLine("A-1", 0.0, -10, -1)}

	res, err := New(DefaultConfig()).Audit(uuid.New(), lines, []model.FactRecord{
		{Article: "A-1", Channel: "TIENDA", NetSale: decimal.NewFromInt(-10), ReturnAmount: decimal.NewFromInt(10)},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Anomalies)
}

func TestAuditReturnRateOutliers(t *testing.T) {
	// Global: gross 1000, returns 60 → mean rate 0.06, cutoff 0.12.
	// TIENDA (and article A-1) run at 0.50 — both flagged. ONLINE at ~0.011 is not.
	facts := []model.FactRecord{
		{Article: "A-1", Channel: "TIENDA", GrossSale: decimal.NewFromInt(100), ReturnAmount: decimal.NewFromInt(50), NetSale: decimal.NewFromInt(50)},
		{Article: "A-2", Channel: "ONLINE", GrossSale: decimal.NewFromInt(900), ReturnAmount: decimal.NewFromInt(10), NetSale: decimal.NewFromInt(890)},
	}
	lines := []model.TransactionLine{
		saleLine("A-1", 50, 50, 1),
		saleLine("A-2", 50, 890, 18),
	}

	res, err := New(DefaultConfig()).Audit(uuid.New(), lines, facts)
	require.NoError(t, err)

	require.Len(t, res.Anomalies, 2)
	// Sorted by kind then subject: return_rate_article before return_rate_channel.
	assert.Equal(t, model.AnomalyReturnRateArticle, res.Anomalies[0].Kind)
	assert.Equal(t, "A-1", res.Anomalies[0].Subject)
	assert.Equal(t, "0.5", res.Anomalies[0].Value.String())
	assert.Equal(t, model.AnomalyReturnRateChannel, res.Anomalies[1].Kind)
	assert.Equal(t, "TIENDA", res.Anomalies[1].Subject)
}

func TestAuditNoOutliersWithoutReturns(t *testing.T) {
	facts := []model.FactRecord{
		{Article: "A-1", Channel: "TIENDA", GrossSale: decimal.NewFromInt(100), NetSale: decimal.NewFromInt(100)},
	}
	res, err := New(DefaultConfig()).Audit(uuid.New(), []model.TransactionLine{saleLine("A-1", 50, 100, 2)}, facts)
	require.NoError(t, err)
	assert.Empty(t, res.Anomalies)
}

func TestNewFillsZeroTolerances(t *testing.T) {
	a := New(Config{})
	def := DefaultConfig()
	assert.True(t, a.cfg.Epsilon.Equal(def.Epsilon))
	assert.True(t, a.cfg.ZeroPriceThreshold.Equal(def.ZeroPriceThreshold))
	assert.True(t, a.cfg.ReturnRateMultiplier.Equal(def.ReturnRateMultiplier))
}

func TestAuditEmptyRunReconciles(t *testing.T) {
	res, err := New(DefaultConfig()).Audit(uuid.New(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReconciled, res.Status)
	assert.True(t, res.LineTotal.IsZero())
	assert.True(t, res.FactTotal.IsZero())
}
