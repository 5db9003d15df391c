// Package email sends notification emails over SMTP, the Gmail API or, in
// development, the log.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"
)

// SubjectPrefix is prepended to every notification subject.
const SubjectPrefix = "PisoHeroes - "

var ErrNoRecipient = errors.New("email: no recipient")

// Message is a single outbound email. HTML is optional.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	if strings.ContainsAny(m.To+m.Subject, "\r\n") {
		return errors.New("email: header contains newline")
	}
	return nil
}

// Sender delivers messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// LogSender only logs messages. It is the development default.
type LogSender struct {
	From string
}

func (s LogSender) Name() string { return "log" }

func (s LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Email not sent (log backend)",
		"to", msg.To,
		"subject", msg.Subject,
		"bytes", len(msg.Text))
	return nil
}

var notificationTmpl = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; background:#f9fafb; color:#1f2937; margin:0; padding:0;">
  <div style="max-width:600px; margin:40px auto; background:#fff; border-radius:12px; overflow:hidden;">
    <div style="background:#4F46E5; color:#fff; padding:32px 24px; text-align:center;">
      <h1 style="margin:0; font-size:28px;">💰 PisoHeroes</h1>
    </div>
    <div style="padding:32px 24px;">
      <span style="display:inline-block; background:#EEF2FF; color:#4F46E5; padding:4px 12px; border-radius:12px; font-size:12px; font-weight:600; text-transform:uppercase;">{{.Category}}</span>
      <h2 style="color:#111827;">{{.Title}}</h2>
      {{range .Lines}}<p style="color:#4b5563; font-size:16px;">{{.}}</p>{{end}}
      {{if .Link}}<a href="{{.Link}}/notifications" style="display:inline-block; background:#4F46E5; color:#fff; padding:14px 28px; text-decoration:none; border-radius:8px;">View in App →</a>{{end}}
    </div>
    <div style="text-align:center; padding:24px; background:#f9fafb; color:#6b7280; font-size:14px;">
      <p>You're receiving this because you have notifications enabled for PisoHeroes.</p>
      {{if .Link}}<p><a href="{{.Link}}/notifications/preferences" style="color:#4F46E5;">Manage Email Preferences</a></p>{{end}}
    </div>
  </div>
</body>
</html>`))

// Compose builds the email for a notification. baseURL may be empty.
func Compose(to, category, title, body, baseURL string) (Message, error) {
	var lines []string
	for _, l := range strings.Split(body, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	var buf bytes.Buffer
	err := notificationTmpl.Execute(&buf, map[string]any{
		"Category": strings.ReplaceAll(category, "_", " "),
		"Title":    title,
		"Lines":    lines,
		"Link":     strings.TrimRight(baseURL, "/"),
	})
	if err != nil {
		return Message{}, fmt.Errorf("render email: %w", err)
	}
	return Message{
		To:      to,
		Subject: SubjectPrefix + title,
		Text:    body,
		HTML:    buf.String(),
	}, nil
}

// buildMIME renders msg as an RFC 5322 message with a text part and, when
// present, an HTML alternative.
func buildMIME(msg Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }

	header("From", msg.From)
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	if msg.HTML == "" {
		header("Content-Type", `text/plain; charset="utf-8"`)
		header("Content-Transfer-Encoding", "8bit")
		buf.WriteString("\r\n")
		buf.WriteString(msg.Text)
		return buf.Bytes(), nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header("Content-Type", `multipart/alternative; boundary="`+mw.Boundary()+`"`)
	buf.WriteString("\r\n")

	for _, part := range []struct{ ctype, content string }{
		{`text/plain; charset="utf-8"`, msg.Text},
		{`text/html; charset="utf-8"`, msg.HTML},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.ctype},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}
