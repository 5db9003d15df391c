package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeBuildsSubjectAndHTML(t *testing.T) {
	msg, err := Compose("ana@example.com", "budget_alert", "Budget Alert: Food",
		"Budget exceeded!\n\nYou've spent ₱1,200.00 out of ₱1,000.00 (120.0%).", "http://localhost:8081/")
	require.NoError(t, err)

	assert.Equal(t, "PisoHeroes - Budget Alert: Food", msg.Subject)
	assert.Contains(t, msg.HTML, "budget alert")
	assert.Contains(t, msg.HTML, "<p style=\"color:#4b5563; font-size:16px;\">Budget exceeded!</p>")
	assert.Contains(t, msg.HTML, "http://localhost:8081/notifications/preferences")
	assert.Contains(t, msg.Text, "₱1,200.00")
}

func TestComposeEscapesHTML(t *testing.T) {
	msg, err := Compose("ana@example.com", "system", "<script>", "a < b", "")
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
	assert.NotContains(t, msg.HTML, "View in App")
}

func TestBuildMIMEAlternative(t *testing.T) {
	raw, err := buildMIME(Message{
		From:    "noreply@pisoheroes.app",
		To:      "ana@example.com",
		Subject: "PisoHeroes - 🚨 Budget Alert",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	}, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	s := string(raw)
	assert.Contains(t, s, "To: ana@example.com\r\n")
	assert.Contains(t, s, "Subject: =?utf-8?q?")
	assert.Contains(t, s, "multipart/alternative; boundary=")
	assert.Contains(t, s, "plain body")
	assert.Contains(t, s, "<p>html body</p>")
}

func TestBuildMIMEPlain(t *testing.T) {
	raw, err := buildMIME(Message{From: "a@b.c", To: "d@e.f", Subject: "hi", Text: "body"}, time.Now())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(raw), "\r\nbody"))
	assert.Contains(t, string(raw), "Subject: hi\r\n")
}

func TestSMTPSender(t *testing.T) {
	var gotAddr string
	var gotTo []string
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "noreply@example.com"})
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo = addr, to
		assert.NotNil(t, a)
		assert.Equal(t, "noreply@example.com", from)
		assert.Contains(t, string(msg), "From: noreply@example.com")
		return nil
	}

	require.NoError(t, s.Send(context.Background(), Message{To: "ana@example.com", Subject: "s", Text: "t"}))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"ana@example.com"}, gotTo)

	s.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }
	err := s.Send(context.Background(), Message{To: "ana@example.com", Subject: "s", Text: "t"})
	assert.ErrorContains(t, err, "connection refused")
}

func TestSendersRejectMissingRecipient(t *testing.T) {
	assert.ErrorIs(t, LogSender{}.Send(context.Background(), Message{Subject: "s"}), ErrNoRecipient)
	assert.Error(t, NewSMTPSender(SMTPConfig{}).Send(context.Background(), Message{To: "a@b.c\r\nBcc: x@y.z"}))
}
