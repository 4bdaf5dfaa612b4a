package exporter

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

// MailReport delivers the run summary to operators, attaching the
// persisted report document when a path is given.
func MailReport(cfg SmtpConfig, recipients []string, report ExportReport, reportPath string) error {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Gradeport <%s>", cfg.EmailAddress)
	mail.To = recipients
	mail.Subject = fmt.Sprintf(
		"Gradebook export report: %d/%d successful",
		report.Successful, report.Total,
	)
	mail.Text = []byte(RenderSummaryText(report))

	if reportPath != "" {
		_, err := mail.AttachFile(reportPath)
		if err != nil {
			return err
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)
	err := mail.Send(addr, smtp.PlainAuth("", cfg.EmailAddress, cfg.Password, cfg.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		return mail.Send(addr, nil)
	}
	return err
}
