package infra

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"

	"ventasbi/internal/config"
	"ventasbi/internal/model"
)

// Mailer wraps SMTP configuration for sending audit alert emails.
type Mailer struct {
	host     string
	port     int
	user     string
	password string
	addr     string
	to       string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		to:       cfg.AlertTo,
	}
}

// SendAuditAlert emails the reconciliation failure summary, attaching the PDF
// report when available. Alerting is best-effort: errors are returned for
// logging but never change the outcome of the run.
func (m *Mailer) SendAuditAlert(audit *model.AuditResult, pdfPath string) error {
	e := email.NewEmail()
	e.From = m.user
	e.To = []string{m.to}
	e.Subject = fmt.Sprintf("[ventasbi] Conciliacion fallida — run %s", audit.RunID)
	e.Text = []byte(fmt.Sprintf(
		"La corrida %s termino en %s.\n\n"+
			"Suma directa de lineas: $ %s\n"+
			"Suma de tabla de hechos: $ %s\n"+
			"Delta:                  $ %s\n\n"+
			"No se escribio ninguna salida. Corregir los datos de origen y reejecutar.",
		audit.RunID, audit.Status,
		audit.LineTotal.StringFixed(2), audit.FactTotal.StringFixed(2), audit.Delta.StringFixed(2)))

	if pdfPath != "" {
		if _, err := e.AttachFile(pdfPath); err != nil {
			return fmt.Errorf("mailer: attach PDF: %w", err)
		}
	}

	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	return e.Send(m.addr, auth)
}
