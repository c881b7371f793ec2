package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/automateflow/automateflow/pkg/models"
)

// Mailer sends terminal-outcome notifications. Implementations must treat
// delivery failure as non-fatal; callers log and continue.
type Mailer interface {
	SendJobComplete(user *models.User, job *models.Job) error
	SendJobFailed(user *models.User, job *models.Job) error
}

// SMTPConfig holds mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AppURL   string
}

// SMTPMailer sends HTML mail through a plain SMTP relay.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) SendJobComplete(user *models.User, job *models.Job) error {
	subject := fmt.Sprintf("AutomateFlow: Job %q completed", job.Name)
	elapsed := "N/A"
	if job.ExecutionTime != nil {
		elapsed = fmt.Sprintf("%.1fs", float64(*job.ExecutionTime)/1000)
	}
	body := fmt.Sprintf(
		`<h2>Job Completed</h2>
<p>Hi %s,</p>
<p>Your automation job <strong>%s</strong> has completed successfully.</p>
<p>Execution time: %s</p>
<p>View the results in your <a href="%s/jobs/%s">dashboard</a>.</p>`,
		user.Name, job.Name, elapsed, m.cfg.AppURL, job.ID)
	return m.send(user.Email, subject, body)
}

func (m *SMTPMailer) SendJobFailed(user *models.User, job *models.Job) error {
	subject := fmt.Sprintf("AutomateFlow: Job %q failed", job.Name)
	reason := "Unknown error"
	if job.Error != nil && *job.Error != "" {
		reason = *job.Error
	}
	body := fmt.Sprintf(
		`<h2>Job Failed</h2>
<p>Hi %s,</p>
<p>Your automation job <strong>%s</strong> has failed.</p>
<p>Error: %s</p>
<p>View the details in your <a href="%s/jobs/%s">dashboard</a>.</p>`,
		user.Name, job.Name, reason, m.cfg.AppURL, job.ID)
	return m.send(user.Email, subject, body)
}

func (m *SMTPMailer) send(to, subject, htmlBody string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: AutomateFlow <%s>\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
