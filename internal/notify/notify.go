// Package notify delivers the account emails: verification links, welcome
// messages and password reset links.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

type Kind string

const (
	KindWelcome       Kind = "welcome"
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
)

type Recipient struct {
	Email    string
	Username string
}

// Params carries the per-message values. Token is the verification or reset
// token; welcome messages ignore it.
type Params struct {
	Token string
}

// Notifier attempts a single delivery and reports whether it failed.
type Notifier interface {
	Notify(ctx context.Context, to Recipient, kind Kind, params Params) error
}

type Config struct {
	APIKey  string `json:"api_key"`
	From    string `json:"from"`
	SiteURL string `json:"site_url"`
}

type Message struct {
	Subject string
	HTML    string
	Text    string
}

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var subjects = map[Kind]string{
	KindWelcome:       "Welcome to To-Do App!",
	KindVerification:  "Verify Your Email Address",
	KindPasswordReset: "Reset Your Password",
}

// Renderer turns a notification kind into a message with absolute links.
type Renderer struct {
	siteURL string
}

func NewRenderer(siteURL string) Renderer {
	return Renderer{siteURL: strings.TrimRight(siteURL, "/")}
}

func (r Renderer) Link(kind Kind, params Params) string {
	switch kind {
	case KindVerification:
		return fmt.Sprintf("%s/verify-email/%s", r.siteURL, params.Token)
	case KindPasswordReset:
		return fmt.Sprintf("%s/password-reset/%s", r.siteURL, params.Token)
	default:
		return r.siteURL + "/dashboard"
	}
}

func (r Renderer) Render(to Recipient, kind Kind, params Params) (Message, error) {
	subject, ok := subjects[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown notification kind %q", kind)
	}

	link := r.Link(kind, params)
	var html bytes.Buffer
	err := templates.ExecuteTemplate(&html, string(kind)+".html", struct {
		Username string
		Link     string
	}{Username: to.Username, Link: link})
	if err != nil {
		return Message{}, fmt.Errorf("render %s: %w", kind, err)
	}

	var text string
	switch kind {
	case KindVerification:
		text = "Click this link to verify your email: " + link
	case KindPasswordReset:
		text = "Click this link to reset your password: " + link
	default:
		text = "Welcome to To-Do App! " + link
	}

	return Message{Subject: subject, HTML: html.String(), Text: text}, nil
}

// New picks the Resend transport when an API key is configured and the log
// transport otherwise.
func New(cfg *Config) Notifier {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.APIKey == "" {
		return NewLogNotifier(cfg)
	}
	return NewResendNotifier(cfg, nil)
}
