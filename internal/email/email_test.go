package email

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	to, subject, html, text string
	calls                   int
}

func (c *captureSender) Send(to, subject, html, text string) error {
	c.to, c.subject, c.html, c.text = to, subject, html, text
	c.calls++
	return nil
}

func TestResetMailer(t *testing.T) {
	cs := &captureSender{}
	m, err := NewResetMailer(cs, "Accountd", "https://app.example.com/")
	require.NoError(t, err)

	require.NoError(t, m.SendPasswordReset(context.Background(), "ana+x@example.com", "tok_123", time.Hour))
	assert.Equal(t, 1, cs.calls)
	assert.Equal(t, "ana+x@example.com", cs.to)

	link := "https://app.example.com/reset-password/tok_123?email=ana%2Bx%40example.com"
	assert.Contains(t, cs.text, link)
	assert.Contains(t, cs.text, "60 minutos")
	assert.Contains(t, cs.html, `href="https://app.example.com/reset-password/tok_123?email=`)
}

func TestResetMailerCanceledContext(t *testing.T) {
	cs := &captureSender{}
	m, err := NewResetMailer(cs, "Accountd", "http://localhost")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, m.SendPasswordReset(ctx, "a@example.com", "t", time.Hour))
	assert.Equal(t, 0, cs.calls)
}

func TestSMTPMessageParts(t *testing.T) {
	s := NewSMTPSender("smtp.example.com", 587, "no-reply@example.com", "", "")
	m := s.message("a@example.com", "hola", "<p>hi</p>", "hi")
	assert.Equal(t, []string{"a@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"hola"}, m.GetHeader("Subject"))
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, LogSender{}.Send("a@example.com", "s", "h", "t"))
}
