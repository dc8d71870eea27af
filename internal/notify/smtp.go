package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/dvloznov/daily-balance/internal/config"
	"github.com/dvloznov/daily-balance/internal/logger"
)

const (
	implicitTLSPort = "465"
	sendTimeout     = 30 * time.Second
	maxDiagnostics  = 20
)

// SMTPNotifier e-mails run outcomes to a fixed list of recipients.
type SMTPNotifier struct {
	host     string
	port     string
	username string
	password string
	from     string
	to       []string
	prefix   string

	send func(ctx context.Context, msg []byte) error
}

// NewSMTPNotifier creates a notifier from the notify configuration. The sender
// address defaults to the SMTP username.
func NewSMTPNotifier(cfg config.NotifyConfig) *SMTPNotifier {
	n := &SMTPNotifier{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		to:       cfg.Recipients,
		prefix:   cfg.SubjectPrefix,
	}
	if n.from == "" {
		n.from = n.username
	}
	n.send = n.deliver
	return n
}

// Notify renders the notice and sends it.
func (s *SMTPNotifier) Notify(ctx context.Context, n Notice) error {
	body, err := renderBody(n)
	if err != nil {
		return fmt.Errorf("Notify: rendering body: %w", err)
	}
	msg := s.message(subject(s.prefix, n), body)

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := s.send(ctx, msg); err != nil {
		return fmt.Errorf("Notify: sending to %s: %w", strings.Join(s.to, ", "), err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("run_id", n.RunID).
		Strs("recipients", s.to).
		Bool("succeeded", n.Succeeded()).
		Msg("Run notification sent")
	return nil
}

func subject(prefix string, n Notice) string {
	at := n.Finished().Format("2006-01-02 15:04:05")
	if n.Succeeded() {
		return fmt.Sprintf("[%s] Run %s succeeded at %s", prefix, n.RunID, at)
	}
	return fmt.Sprintf("[%s] Run %s failed at %s", prefix, n.RunID, at)
}

func (s *SMTPNotifier) message(subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(s.to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// deliver opens one SMTP session per message.
func (s *SMTPNotifier) deliver(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(s.host, s.port)
	tlsConfig := &tls.Config{ServerName: s.host}

	var (
		conn net.Conn
		err  error
	)
	if s.port == implicitTLSPort {
		d := &tls.Dialer{Config: tlsConfig}
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if s.port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if s.username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range s.to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing message: %w", err)
	}
	return client.Quit()
}

var bodyTemplate = template.Must(template.New("notice").Parse(`<html>
<body style="font-family: Arial, sans-serif;">
{{- if .Succeeded}}
<h2 style="color: green;">Daily balance run completed</h2>
{{- else}}
<h2 style="color: red;">Daily balance run failed</h2>
{{- end}}
<p><strong>Run:</strong> {{.RunID}}</p>
<p><strong>Source:</strong> {{.Source}}<br><strong>Sink:</strong> {{.Sink}}</p>
<p><strong>Finished:</strong> {{.Finished}}<br><strong>Duration:</strong> {{.Duration}}</p>
{{- if not .Succeeded}}
<p><strong>Failed step:</strong> {{.Step}}</p>
<pre style="background-color: #f0f0f0; padding: 10px; border-left: 4px solid red;">{{.Error}}</pre>
{{- end}}
{{- with .Summary}}
<h3>Summary</h3>
<ul>
<li>Input rows: {{.InputRows}}</li>
<li>Accounts: {{.Accounts}}</li>
<li>Periods: {{.Periods}}</li>
<li>Sub-ledgers: {{.SubLedgers}}</li>
<li>Placeholders dropped: {{.PlaceholdersDropped}}</li>
<li>Transactions: {{.Transactions}}</li>
<li>Closing records: {{.ClosingRecords}}</li>
<li>Days with movement: {{.DaysWithMovement}}</li>
<li>Days without movement: {{.DaysWithoutMovement}}</li>
<li>Output rows: {{.OutputRows}}</li>
{{- if .MissingColumns}}
<li>Missing columns: {{range $i, $c := .MissingColumns}}{{if $i}}, {{end}}{{$c}}{{end}}</li>
{{- end}}
</ul>
{{- end}}
{{- if .Diagnostics}}
<h3>Diagnostics</h3>
<ul>
{{- range .Diagnostics}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- if .MoreDiagnostics}}
<p>{{.MoreDiagnostics}} more not shown.</p>
{{- end}}
{{- end}}
</body>
</html>
`))

type bodyData struct {
	Notice
	Finished        string
	Error           string
	MoreDiagnostics int
}

func renderBody(n Notice) (string, error) {
	data := bodyData{
		Notice:   n,
		Finished: n.Finished().Format("2006-01-02 15:04:05 MST"),
	}
	if n.Err != nil {
		data.Error = n.Err.Error()
	}
	if len(n.Diagnostics) > maxDiagnostics {
		data.MoreDiagnostics = len(n.Diagnostics) - maxDiagnostics
		data.Diagnostics = n.Diagnostics[:maxDiagnostics]
	}

	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
