// Package pipeline orchestrates one batch run: normalize, consolidate,
// classify, audit, write. Each stage owns its output until the next consumes
// it; nothing is shared or mutated across stages. The auditor sits in front
// of the writer — output the run cannot certify as reconciled is never
// persisted.
package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"ventasbi/internal/auditor"
	"ventasbi/internal/classifier"
	"ventasbi/internal/config"
	"ventasbi/internal/consolidator"
	"ventasbi/internal/extract"
	"ventasbi/internal/model"
	"ventasbi/internal/report"
	"ventasbi/internal/writer"
)

// AuditReportPDF is the name of the PDF summary written next to the tables.
const AuditReportPDF = "auditoria.pdf"

// Alerter notifies on reconciliation failure. Satisfied by *infra.Mailer.
type Alerter interface {
	SendAuditAlert(audit *model.AuditResult, pdfPath string) error
}

// RunResult is the certified output of a completed run.
type RunResult struct {
	RunID  uuid.UUID
	Audit  *model.AuditResult
	Tables writer.Tables
}

// Runner executes batch runs with a fixed configuration.
type Runner struct {
	cfg     *config.Config
	writer  *writer.Writer
	alerter Alerter // nil when SMTP is not configured
}

func NewRunner(cfg *config.Config, w *writer.Writer, alerter Alerter) *Runner {
	return &Runner{cfg: cfg, writer: w, alerter: alerter}
}

// Run processes one dataset end to end and writes the output tables to
// cfg.OutputDir. On a reconciliation mismatch nothing is written, an alert
// is sent when configured, and the returned error is a *auditor.MismatchError
// carrying the full result.
func (r *Runner) Run(ctx context.Context, ds *extract.Dataset) (*RunResult, error) {
	runID := uuid.New()
	logger := log.With().Stringer("run_id", runID).Logger()
	logger.Info().
		Int("lineas", len(ds.Lines)).
		Int("articulos", len(ds.Articles)).
		Int("canales", len(ds.Channels)).
		Msg("inicio de corrida")

	cons := consolidator.New(ds.Articles, ds.Channels)

	lines, warnings := cons.Normalize(ds.Lines)

	res, err := cons.Consolidate(lines, consolidator.Options{
		Period:  r.cfg.ReportingPeriod,
		Policy:  consolidator.UnresolvedPolicy(r.cfg.UnresolvedPolicy),
		Workers: r.cfg.Workers,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Quarantined) > 0 {
		logger.Warn().Int("lineas", len(res.Quarantined)).Msg("lineas con claves no resueltas en cuarentena")
	}

	abc := classifier.Classify(res.Facts, cons.Article, classifier.Thresholds{
		ClassA: decimal.NewFromFloat(r.cfg.ClassAThreshold),
		ClassB: decimal.NewFromFloat(r.cfg.ClassBThreshold),
	})

	aud := auditor.New(auditor.Config{
		Epsilon:              decimal.NewFromFloat(r.cfg.ReconciliationEpsilon),
		ZeroPriceThreshold:   decimal.NewFromFloat(r.cfg.ZeroPriceThreshold),
		ReturnRateMultiplier: decimal.NewFromFloat(r.cfg.ReturnRateMultiplier),
	})
	audit, auditErr := aud.Audit(runID, res.Included, res.Facts)
	audit.Anomalies = append(warnings, audit.Anomalies...)
	audit.Quarantined = len(res.Quarantined)

	if auditErr != nil {
		logger.Error().
			Str("total_lineas", audit.LineTotal.StringFixed(2)).
			Str("total_hechos", audit.FactTotal.StringFixed(2)).
			Str("delta", audit.Delta.StringFixed(2)).
			Msg("conciliacion fallida — no se escribe salida")
		r.alert(audit, abc)
		return nil, auditErr
	}

	tables := writer.Tables{
		Facts:       res.Facts,
		Channels:    cons.ChannelMetrics(res.Facts),
		Categories:  cons.CategoryMetrics(res.Facts),
		Articles:    abc,
		Quarantined: res.Quarantined,
	}
	if err := r.writer.Write(r.cfg.OutputDir, tables, audit); err != nil {
		return nil, err
	}

	// The PDF is a convenience copy of the audit artifact; its failure does
	// not invalidate an already-written run.
	pdfPath := filepath.Join(r.cfg.OutputDir, AuditReportPDF)
	if err := report.GeneratePDF(pdfPath, audit, abc); err != nil {
		logger.Warn().Err(err).Msg("no se pudo generar el PDF de auditoria")
	}

	logger.Info().
		Int("hechos", len(tables.Facts)).
		Int("anomalias", len(audit.Anomalies)).
		Str("total", audit.FactTotal.StringFixed(2)).
		Msg("corrida conciliada y escrita")

	return &RunResult{RunID: runID, Audit: audit, Tables: tables}, nil
}

// alert emails the mismatch report. The PDF attachment is generated into a
// temp dir because nothing was written to the destination.
func (r *Runner) alert(audit *model.AuditResult, abc []model.ABCClass) {
	if r.alerter == nil {
		return
	}
	pdfPath := filepath.Join(os.TempDir(), "ventasbi-"+audit.RunID.String()+".pdf")
	if err := report.GeneratePDF(pdfPath, audit, abc); err != nil {
		pdfPath = ""
	}
	defer func() {
		if pdfPath != "" {
			_ = os.Remove(pdfPath)
		}
	}()

	if err := r.alerter.SendAuditAlert(audit, pdfPath); err != nil {
		log.Error().Err(err).Msg("no se pudo enviar la alerta de conciliacion")
	}
}
