package report

// pdf.go — audit summary PDF generation using go-pdf/fpdf.
// One A4 page with:
//   - Run id, status and timestamp header
//   - Reconciliation totals (line path vs fact path, delta)
//   - ABC class distribution
//   - Top anomalies table (capped; the JSON artifact carries the full list)

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"

	"ventasbi/internal/model"
)

const maxAnomalyRows = 25

// GeneratePDF writes the audit summary for a run to path. The PDF is a human
// convenience artifact; failures here never change the outcome of a run.
func GeneratePDF(path string, audit *model.AuditResult, articles []model.ABCClass) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: create dir: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, "Auditoria de Conciliacion", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("Run %s — %s", audit.RunID, audit.AuditedAt.Format("02/01/2006 15:04")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	// ── Status banner ─────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 12)
	if audit.Reconciled() {
		pdf.SetTextColor(0, 120, 0)
	} else {
		pdf.SetTextColor(180, 0, 0)
	}
	pdf.CellFormat(contentW, 8, string(audit.Status), "1", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	// ── Totals ────────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW, 6, "Totales (doble via)", "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	totals := [][2]string{
		{"Suma directa de lineas", "$ " + audit.LineTotal.StringFixed(2)},
		{"Suma de tabla de hechos", "$ " + audit.FactTotal.StringFixed(2)},
		{"Delta", "$ " + audit.Delta.StringFixed(2)},
		{"Lineas no resueltas", fmt.Sprintf("%d", audit.Quarantined)},
	}
	for _, row := range totals {
		pdf.CellFormat(contentW*0.6, 6, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW*0.4, 6, row[1], "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	// ── ABC distribution ──────────────────────────────────────────────────────
	counts := map[model.ABCLabel]int{}
	for _, a := range articles {
		counts[a.Label]++
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW, 6, "Clasificacion ABC", "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentW, 6,
		fmt.Sprintf("A: %d    B: %d    C: %d    (total %d articulos)",
			counts[model.ClassA], counts[model.ClassB], counts[model.ClassC], len(articles)),
		"", 1, "L", false, 0, "")
	pdf.Ln(4)

	// ── Anomalies ─────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW, 6, fmt.Sprintf("Anomalias (%d)", len(audit.Anomalies)), "B", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW*0.22, 5, "Tipo", "B", 0, "L", false, 0, "")
	pdf.CellFormat(contentW*0.20, 5, "Sujeto", "B", 0, "L", false, 0, "")
	pdf.CellFormat(contentW*0.58, 5, "Detalle", "B", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	for i, a := range audit.Anomalies {
		if i == maxAnomalyRows {
			pdf.CellFormat(contentW, 5, fmt.Sprintf("… y %d mas (ver %s)", len(audit.Anomalies)-maxAnomalyRows, "auditoria.json"), "", 1, "L", false, 0, "")
			break
		}
		detail := a.Detail
		if len(detail) > 90 {
			detail = detail[:89] + "…"
		}
		pdf.CellFormat(contentW*0.22, 5, string(a.Kind), "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW*0.20, 5, a.Subject, "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW*0.58, 5, detail, "", 1, "L", false, 0, "")
	}
	if len(audit.Anomalies) == 0 {
		pdf.CellFormat(contentW, 5, "Sin anomalias detectadas", "", 1, "L", false, 0, "")
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("report: write pdf: %w", err)
	}
	return nil
}
