package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditStatus is the outcome of the two-path reconciliation check.
type AuditStatus string

const (
	StatusReconciled AuditStatus = "RECONCILED"
	StatusMismatch   AuditStatus = "MISMATCH"
)

// AnomalyKind classifies non-blocking data quality findings.
type AnomalyKind string

const (
	AnomalyZeroPrice         AnomalyKind = "zero_price"
	AnomalyReturnRateChannel AnomalyKind = "return_rate_channel"
	AnomalyReturnRateArticle AnomalyKind = "return_rate_article"
	AnomalyEmptyKey          AnomalyKind = "empty_key"
)

// Anomaly is a single flagged finding. Anomalies never block the write; they
// are surfaced next to the output tables for review.
type Anomaly struct {
	Kind    AnomalyKind     `json:"tipo"`
	Subject string          `json:"sujeto"` // article or channel code, or raw field
	Detail  string          `json:"detalle"`
	Value   decimal.Decimal `json:"valor"`
}

// AuditResult is the structured verdict of a pipeline run. Delta is
// LineTotal − FactTotal; it must be zero (within the configured epsilon)
// for the run to be written.
type AuditResult struct {
	RunID       uuid.UUID       `json:"run_id"`
	Status      AuditStatus     `json:"estado"`
	LineTotal   decimal.Decimal `json:"total_lineas"`
	FactTotal   decimal.Decimal `json:"total_hechos"`
	Delta       decimal.Decimal `json:"delta"`
	Anomalies   []Anomaly       `json:"anomalias"`
	Quarantined int             `json:"lineas_no_resueltas"`
	AuditedAt   time.Time       `json:"auditado_en"`
}

// Reconciled reports whether the run may be written.
func (r AuditResult) Reconciled() bool { return r.Status == StatusReconciled }
