package classifier

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ventasbi/internal/model"
)

func fact(article string, net int64) model.FactRecord {
	return model.FactRecord{
		Article:   article,
		Channel:   "TIENDA",
		Period:    "2026-01",
		GrossSale: decimal.NewFromInt(net),
		NetSale:   decimal.NewFromInt(net),
	}
}

func labels(rows []model.ABCClass) []model.ABCLabel {
	out := make([]model.ABCLabel, len(rows))
	for i, r := range rows {
		out[i] = r.Label
	}
	return out
}

func TestClassifyParetoCutoffs(t *testing.T) {
	// Nets 100, 100, 50, 25, 25 over a total of 300: cumulative shares are
	// 0.3333, 0.6667, 0.8333, 0.9167, 1.0 → A, A, B, B, C.
	facts := []model.FactRecord{
		fact("A-1", 100), fact("A-2", 100), fact("A-3", 50), fact("A-4", 25), fact("A-5", 25),
	}
	rows := Classify(facts, nil, DefaultThresholds())

	require.Len(t, rows, 5)
	assert.Equal(t, []model.ABCLabel{model.ClassA, model.ClassA, model.ClassB, model.ClassB, model.ClassC}, labels(rows))
	for i, r := range rows {
		assert.Equal(t, i+1, r.Rank)
	}
	assert.Equal(t, "1", rows[4].CumulativeShare.String())
}

func TestClassifyTieBrokenByArticleCodeAscending(t *testing.T) {
	facts := []model.FactRecord{fact("Z-9", 100), fact("A-1", 100), fact("M-5", 100)}
	rows := Classify(facts, nil, DefaultThresholds())

	require.Len(t, rows, 3)
	assert.Equal(t, "A-1", rows[0].Article)
	assert.Equal(t, "M-5", rows[1].Article)
	assert.Equal(t, "Z-9", rows[2].Article)
}

func TestClassifyAggregatesAcrossChannelsAndPeriods(t *testing.T) {
	f1 := fact("A-1", 60)
	f2 := fact("A-1", 40)
	f2.Channel = "ONLINE"
	f2.Period = "2026-02"

	rows := Classify([]model.FactRecord{f1, f2}, nil, DefaultThresholds())
	require.Len(t, rows, 1)
	assert.Equal(t, "100", rows[0].NetSale.String())
}

func TestClassifyNegativeAndZeroRevenueForcedToC(t *testing.T) {
	// A net-negative article (returns exceed sales) must not shrink the
	// denominator or push positive articles past the cutoffs.
	facts := []model.FactRecord{
		fact("A-1", 200),
		fact("A-2", -50),
		fact("A-3", 0),
	}
	rows := Classify(facts, nil, DefaultThresholds())
	require.Len(t, rows, 3)

	assert.Equal(t, "A-1", rows[0].Article)
	assert.Equal(t, model.ClassA, rows[0].Label)
	assert.Equal(t, "1", rows[0].Share.String())

	for _, r := range rows[1:] {
		assert.Equal(t, model.ClassC, r.Label)
		assert.True(t, r.Share.IsZero())
		assert.Equal(t, "1", r.CumulativeShare.String())
	}
}

func TestClassifyAllNonPositiveRevenue(t *testing.T) {
	rows := Classify([]model.FactRecord{fact("A-1", -10), fact("A-2", 0)}, nil, DefaultThresholds())
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, model.ClassC, r.Label)
	}
}

func TestClassifyBoundaryIsInclusive(t *testing.T) {
	// Cumulative shares 0.80 and 0.95 land exactly on the cutoffs; <= keeps
	// them in the higher class. A sole article (share 1.0) falls past both.
	facts := []model.FactRecord{fact("A-1", 80), fact("A-2", 15), fact("A-3", 5)}
	rows := Classify(facts, nil, DefaultThresholds())
	require.Len(t, rows, 3)
	assert.Equal(t, model.ClassA, rows[0].Label) // 0.80
	assert.Equal(t, model.ClassB, rows[1].Label) // 0.95
	assert.Equal(t, model.ClassC, rows[2].Label) // 1.00

	solo := Classify([]model.FactRecord{fact("A-1", 100)}, nil, DefaultThresholds())
	require.Len(t, solo, 1)
	assert.Equal(t, model.ClassC, solo[0].Label)
	assert.Equal(t, "1", solo[0].CumulativeShare.String())
}

func TestClassifyUsesDimensionDescriptions(t *testing.T) {
	lookup := func(code string) (model.ArticleDimension, bool) {
		if code == "A-1" {
			return model.ArticleDimension{Code: code, Description: "Remera basica"}, true
		}
		return model.ArticleDimension{}, false
	}
	rows := Classify([]model.FactRecord{fact("A-1", 100), fact("A-2", 50)}, lookup, DefaultThresholds())
	require.Len(t, rows, 2)
	assert.Equal(t, "Remera basica", rows[0].Description)
	assert.Empty(t, rows[1].Description)
}

func TestClassifyReturnRatePerArticle(t *testing.T) {
	f := model.FactRecord{
		Article:      "A-1",
		GrossSale:    decimal.NewFromInt(200),
		ReturnAmount: decimal.NewFromInt(50),
		NetSale:      decimal.NewFromInt(150),
	}
	rows := Classify([]model.FactRecord{f}, nil, DefaultThresholds())
	require.Len(t, rows, 1)
	assert.Equal(t, "0.25", rows[0].ReturnRate.String())
}

func TestClassifyEmptyInput(t *testing.T) {
	assert.Empty(t, Classify(nil, nil, DefaultThresholds()))
}
