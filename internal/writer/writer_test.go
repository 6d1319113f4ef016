package writer

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ventasbi/internal/model"
)

func sampleTables() Tables {
	return Tables{
		Facts: []model.FactRecord{
			{Article: "A-1", Channel: "TIENDA", Period: "2026-01",
				GrossSale: decimal.NewFromInt(150), ReturnAmount: decimal.NewFromInt(30),
				NetSale: decimal.NewFromInt(120), Quantity: 3},
			{Article: "A-2", Channel: "ONLINE", Period: "2026-01",
				GrossSale: decimal.NewFromInt(80), NetSale: decimal.NewFromInt(80), Quantity: 1},
		},
		Channels: []model.ChannelMetric{
			{Channel: "ONLINE", Type: model.ChannelOnline, TotalNetSale: decimal.NewFromInt(80), ReturnRate: decimal.Zero},
			{Channel: "TIENDA", Type: model.ChannelPhysical, TotalNetSale: decimal.NewFromInt(120), ReturnRate: decimal.NewFromFloat(0.2)},
		},
		Categories: []model.CategoryMetric{
			{Category: "INDUMENTARIA", TotalNetSale: decimal.NewFromInt(200), ArticleCount: 2, ContributionShare: decimal.NewFromInt(1)},
		},
		Articles: []model.ABCClass{
			{Article: "A-1", Description: "Remera basica", Rank: 1, Label: model.ClassA,
				NetSale: decimal.NewFromInt(120), GrossSale: decimal.NewFromInt(150),
				ReturnAmount: decimal.NewFromInt(30), ReturnRate: decimal.NewFromFloat(0.2),
				Share: decimal.NewFromFloat(0.6), CumulativeShare: decimal.NewFromFloat(0.6)},
		},
	}
}

func sampleAudit() *model.AuditResult {
	return &model.AuditResult{
		RunID:     uuid.New(),
		Status:    model.StatusReconciled,
		LineTotal: decimal.NewFromInt(200),
		FactTotal: decimal.NewFromInt(200),
		AuditedAt: time.Now().UTC(),
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = ';'
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func TestWritePersistsAllTables(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "salida")

	require.NoError(t, New().Write(dest, sampleTables(), sampleAudit()))

	facts := readCSV(t, filepath.Join(dest, FactsFile))
	require.Len(t, facts, 3) // header + 2 rows
	assert.Equal(t, []string{"Articulo", "Canal", "Periodo", "Venta_Bruta", "Venta_Devolucion", "Venta_Neta", "Cantidad"}, facts[0])
	assert.Equal(t, []string{"A-1", "TIENDA", "2026-01", "150,00", "30,00", "120,00", "3"}, facts[1])

	channels := readCSV(t, filepath.Join(dest, ChannelsFile))
	require.Len(t, channels, 3)
	assert.Equal(t, []string{"TIENDA", "FISICA", "120,00", "0,2000"}, channels[2])

	categories := readCSV(t, filepath.Join(dest, CategoriesFile))
	require.Len(t, categories, 2)

	articles := readCSV(t, filepath.Join(dest, ArticlesFile))
	require.Len(t, articles, 2)
	assert.Equal(t, "A", articles[1][3])

	// No quarantined lines → no quarantine table.
	_, err := os.Stat(filepath.Join(dest, QuarantineFile))
	assert.True(t, os.IsNotExist(err))

	var audit model.AuditResult
	data, err := os.ReadFile(filepath.Join(dest, AuditReportFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &audit))
	assert.Equal(t, model.StatusReconciled, audit.Status)
}

func TestWriteQuarantineTable(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "salida")
	tables := sampleTables()
	tables.Quarantined = []model.TransactionLine{
		{Article: "X-9", Channel: "TIENDA", Amount: decimal.NewFromInt(50), Quantity: 1},
	}

	require.NoError(t, New().Write(dest, tables, sampleAudit()))

	rows := readCSV(t, filepath.Join(dest, QuarantineFile))
	require.Len(t, rows, 2)
	assert.Equal(t, "X-9", rows[1][0])
}

func TestWriteReplacesPreviousRun(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "salida")
	w := New()

	require.NoError(t, w.Write(dest, sampleTables(), sampleAudit()))

	second := sampleTables()
	second.Facts = second.Facts[:1]
	require.NoError(t, w.Write(dest, second, sampleAudit()))

	facts := readCSV(t, filepath.Join(dest, FactsFile))
	assert.Len(t, facts, 2) // header + 1 row

	// No parked previous directory or stray staging dirs left behind.
	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(dest), entries[0].Name())
}

func TestWriteInterruptionLeavesDestinationUntouched(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "salida")
	w := New()
	require.NoError(t, w.Write(dest, sampleTables(), sampleAudit()))

	before, err := os.ReadFile(filepath.Join(dest, FactsFile))
	require.NoError(t, err)

	// Crash after staging and verification, immediately before the swap.
	w.beforeSwap = func() error { return errors.New("interrupted") }

	tampered := sampleTables()
	tampered.Facts[0].NetSale = decimal.NewFromInt(999)
	err = w.Write(dest, tampered, sampleAudit())
	require.Error(t, err)

	var wf *WriteFailure
	require.ErrorAs(t, err, &wf)

	after, err := os.ReadFile(filepath.Join(dest, FactsFile))
	require.NoError(t, err)
	assert.Equal(t, before, after, "el destino debe quedar byte a byte identico")

	// The failed stage directory was discarded.
	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteFirstRunFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "salida")
	w := New()
	w.beforeSwap = func() error { return errors.New("interrupted") }

	require.Error(t, w.Write(dest, sampleTables(), sampleAudit()))

	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteTablesAreHeaderPlusDataOnly(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "salida")
	require.NoError(t, New().Write(dest, sampleTables(), sampleAudit()))

	for _, file := range []string{FactsFile, ChannelsFile, CategoriesFile, ArticlesFile} {
		records := readCSV(t, filepath.Join(dest, file))
		for i, rec := range records {
			for _, cell := range rec {
				assert.NotContains(t, cell, "TOTAL", "%s fila %d", file, i)
			}
			assert.NotEmpty(t, rec[0], "%s fila %d: sin filas en blanco", file, i)
		}
	}
}
