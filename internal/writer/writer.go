// Package writer persists the certified output tables. The destination is a
// directory of CSV tables (header row + data rows only — no titles, blank or
// summary rows, which downstream tools would aggregate into their totals).
//
// Writes are crash-safe: everything is staged into a temporary sibling
// directory, verified, and swapped onto the destination. A failure at any
// point before the swap leaves the previous destination untouched.
package writer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ventasbi/internal/model"
)

// Output file names inside the destination directory.
const (
	FactsFile       = "data_bi.csv"
	ChannelsFile    = "data_canales.csv"
	CategoriesFile  = "data_categorias.csv"
	ArticlesFile    = "dim_articulos.csv"
	QuarantineFile  = "lineas_no_resueltas.csv"
	AuditReportFile = "auditoria.json"
)

// Excel-Spanish CSV conventions: ';' column separator, ',' decimal separator.
// Matches what the reporting workbook and Power BI imports expect.
const csvSeparator = ';'

// WriteFailure reports a failed write attempt. The destination is guaranteed
// to be in its prior state; the caller may retry.
type WriteFailure struct {
	Op  string
	Err error
}

func (e *WriteFailure) Error() string { return fmt.Sprintf("writer: %s: %v", e.Op, e.Err) }
func (e *WriteFailure) Unwrap() error { return e.Err }

// Tables is the full certified output of a run.
type Tables struct {
	Facts       []model.FactRecord
	Channels    []model.ChannelMetric
	Categories  []model.CategoryMetric
	Articles    []model.ABCClass
	Quarantined []model.TransactionLine
}

// Writer persists run output atomically. Concurrent writers against the same
// destination are not supported; runs against one destination must be
// serialized by the caller (see infra.RunLock).
type Writer struct {
	// beforeSwap is a test hook invoked after staging and verification,
	// immediately before the destination swap.
	beforeSwap func() error
}

func New() *Writer { return &Writer{} }

// Write stages all tables plus the audit artifact, verifies them, and swaps
// the staged directory onto dest. On any error the stage is discarded and
// dest keeps its previous content.
func (w *Writer) Write(dest string, tables Tables, audit *model.AuditResult) error {
	stage := fmt.Sprintf("%s.tmp-%s", strings.TrimRight(dest, string(os.PathSeparator)), uuid.NewString()[:8])
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return &WriteFailure{Op: "crear directorio de staging", Err: err}
	}
	// The stage never survives this call: it is either swapped in (and the
	// variable repointed) or removed on the error path.
	defer os.RemoveAll(stage)

	steps := []struct {
		file string
		rows int
		fn   func(path string) error
	}{
		{FactsFile, len(tables.Facts), func(p string) error { return writeFacts(p, tables.Facts) }},
		{ChannelsFile, len(tables.Channels), func(p string) error { return writeChannels(p, tables.Channels) }},
		{CategoriesFile, len(tables.Categories), func(p string) error { return writeCategories(p, tables.Categories) }},
		{ArticlesFile, len(tables.Articles), func(p string) error { return writeArticles(p, tables.Articles) }},
	}
	if len(tables.Quarantined) > 0 {
		steps = append(steps, struct {
			file string
			rows int
			fn   func(path string) error
		}{QuarantineFile, len(tables.Quarantined), func(p string) error { return writeQuarantine(p, tables.Quarantined) }})
	}

	for _, s := range steps {
		path := filepath.Join(stage, s.file)
		if err := s.fn(path); err != nil {
			return &WriteFailure{Op: "escribir " + s.file, Err: err}
		}
		if err := verifyCSV(path, s.rows); err != nil {
			return &WriteFailure{Op: "verificar " + s.file, Err: err}
		}
	}

	if audit != nil {
		data, err := json.MarshalIndent(audit, "", "  ")
		if err != nil {
			return &WriteFailure{Op: "serializar auditoria", Err: err}
		}
		if err := os.WriteFile(filepath.Join(stage, AuditReportFile), data, 0o644); err != nil {
			return &WriteFailure{Op: "escribir " + AuditReportFile, Err: err}
		}
	}

	if w.beforeSwap != nil {
		if err := w.beforeSwap(); err != nil {
			return &WriteFailure{Op: "pre-swap", Err: err}
		}
	}

	if err := swap(stage, dest); err != nil {
		return &WriteFailure{Op: "reemplazar destino", Err: err}
	}
	return nil
}

// swap renames stage onto dest, parking any previous destination first.
// The park/rename pair is the only non-atomic window; everything before it
// leaves dest untouched.
func swap(stage, dest string) error {
	prev := dest + ".prev"
	_ = os.RemoveAll(prev)

	if _, err := os.Stat(dest); err == nil {
		if err := os.Rename(dest, prev); err != nil {
			return err
		}
	}
	if err := os.Rename(stage, dest); err != nil {
		// Roll the previous destination back so the caller can retry.
		_ = os.Rename(prev, dest)
		return err
	}
	_ = os.RemoveAll(prev)
	return nil
}

// verifyCSV re-opens a staged table and checks it is readable, non-empty and
// has exactly the expected number of data rows.
func verifyCSV(path string, wantRows int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = csvSeparator
	records, err := r.ReadAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("tabla sin encabezado")
	}
	if got := len(records) - 1; got != wantRows {
		return fmt.Errorf("esperadas %d filas, encontradas %d", wantRows, got)
	}
	return nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = csvSeparator
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// money renders a decimal with 2 fixed decimals and Spanish decimal comma.
func money(d decimal.Decimal) string {
	return strings.ReplaceAll(d.StringFixed(2), ".", ",")
}

// ratio renders a 0–1 share with 4 decimals and Spanish decimal comma.
func ratio(d decimal.Decimal) string {
	return strings.ReplaceAll(d.StringFixed(4), ".", ",")
}

func writeFacts(path string, facts []model.FactRecord) error {
	rows := make([][]string, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, []string{
			f.Article, f.Channel, f.Period,
			money(f.GrossSale), money(f.ReturnAmount), money(f.NetSale),
			strconv.Itoa(f.Quantity),
		})
	}
	return writeCSV(path, []string{"Articulo", "Canal", "Periodo", "Venta_Bruta", "Venta_Devolucion", "Venta_Neta", "Cantidad"}, rows)
}

func writeChannels(path string, channels []model.ChannelMetric) error {
	rows := make([][]string, 0, len(channels))
	for _, c := range channels {
		rows = append(rows, []string{c.Channel, string(c.Type), money(c.TotalNetSale), ratio(c.ReturnRate)})
	}
	return writeCSV(path, []string{"Canal", "Tipo", "Venta_Neta_Total", "Tasa_Devolucion"}, rows)
}

func writeCategories(path string, categories []model.CategoryMetric) error {
	rows := make([][]string, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, []string{c.Category, money(c.TotalNetSale), strconv.Itoa(c.ArticleCount), ratio(c.ContributionShare)})
	}
	return writeCSV(path, []string{"Categoria", "Venta_Neta_Total", "Articulos", "Participacion"}, rows)
}

func writeArticles(path string, articles []model.ABCClass) error {
	rows := make([][]string, 0, len(articles))
	for _, a := range articles {
		rows = append(rows, []string{
			a.Article, a.Description, strconv.Itoa(a.Rank), string(a.Label),
			money(a.NetSale), money(a.GrossSale), money(a.ReturnAmount),
			ratio(a.ReturnRate), ratio(a.Share), ratio(a.CumulativeShare),
		})
	}
	return writeCSV(path, []string{
		"Articulo", "Descripcion", "Ranking", "Clasificacion_ABC",
		"Venta_Neta_Total", "Venta_Bruta_Total", "Venta_Devolucion_Total",
		"Tasa_Devolucion", "Participacion", "Participacion_Acumulada",
	}, rows)
}

func writeQuarantine(path string, lines []model.TransactionLine) error {
	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		ts := ""
		if !l.Timestamp.IsZero() {
			ts = l.Timestamp.Format("2006-01-02")
		}
		rows = append(rows, []string{
			l.Article, l.Channel, l.Category,
			money(l.UnitPrice), strconv.Itoa(l.Quantity), money(l.Amount), ts,
		})
	}
	return writeCSV(path, []string{"Articulo", "Canal", "Categoria", "Precio_Unitario", "Cantidad", "Importe", "Fecha"}, rows)
}
