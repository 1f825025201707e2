package email

import (
	"bytes"
	"embed"
	"html/template"
	texttpl "text/template"
)

//go:embed templates/*
var templateFS embed.FS

type Templates struct {
	ResetHTML *template.Template
	ResetTXT  *texttpl.Template
}

type ResetVars struct {
	AppName   string
	UserEmail string
	Link      string
	TTL       string
}

// LoadTemplates parsea los templates embebidos.
func LoadTemplates() (*Templates, error) {
	rh, err := template.ParseFS(templateFS, "templates/reset_password.html")
	if err != nil {
		return nil, err
	}
	rt, err := texttpl.ParseFS(templateFS, "templates/reset_password.txt")
	if err != nil {
		return nil, err
	}
	return &Templates{ResetHTML: rh, ResetTXT: rt}, nil
}

func (t *Templates) RenderReset(vars ResetVars) (html, text string, err error) {
	var hb, tb bytes.Buffer
	if err := t.ResetHTML.Execute(&hb, vars); err != nil {
		return "", "", err
	}
	if err := t.ResetTXT.Execute(&tb, vars); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}
