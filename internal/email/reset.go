package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ResetMailer arma y envía el link de reset de password.
type ResetMailer struct {
	Sender    Sender
	Templates *Templates
	AppName   string
	BaseURL   string
}

func NewResetMailer(s Sender, appName, baseURL string) (*ResetMailer, error) {
	tpl, err := LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("email: templates: %w", err)
	}
	return &ResetMailer{Sender: s, Templates: tpl, AppName: appName, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// ResetLink arma {base}/reset-password/{token}?email=...
func (m *ResetMailer) ResetLink(token, email string) string {
	return m.BaseURL + "/reset-password/" + url.PathEscape(token) + "?email=" + url.QueryEscape(email)
}

func (m *ResetMailer) SendPasswordReset(ctx context.Context, to, token string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	html, text, err := m.Templates.RenderReset(ResetVars{
		AppName:   m.AppName,
		UserEmail: to,
		Link:      m.ResetLink(token, to),
		TTL:       fmt.Sprintf("%d minutos", int(ttl.Minutes())),
	})
	if err != nil {
		return fmt.Errorf("email: render reset: %w", err)
	}
	return m.Sender.Send(to, "Restablecer contraseña", html, text)
}
