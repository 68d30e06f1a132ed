package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"gopkg.in/gomail.v2"
)

var ErrEmailNotConfigured = errors.New("SMTP not configured")

// TemplateRenderer renders a named template, satisfied by the fiber html engine
type TemplateRenderer interface {
	Render(out io.Writer, name string, binding interface{}, layout ...string) error
}

// EmailConfig holds SMTP settings
type EmailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AdminEmail string
}

// IsConfigured checks if SMTP is properly configured
func (c EmailConfig) IsConfigured() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

// Attachment is a file sent along with an email
type Attachment struct {
	Path string
	Name string
}

// EmailMessage is an HTML email rendered from a template
type EmailMessage struct {
	To          []string
	Subject     string
	Template    string
	Data        interface{}
	Attachments []Attachment
}

// Mailer sends rendered emails
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailService handles sending emails via SMTP
type EmailService struct {
	config   EmailConfig
	renderer TemplateRenderer
	dialer   *gomail.Dialer
}

// NewEmailService creates a new email service instance
func NewEmailService(config EmailConfig, renderer TemplateRenderer) *EmailService {
	port := config.Port
	if port == 0 {
		port = 587
	}
	return &EmailService{
		config:   config,
		renderer: renderer,
		dialer:   gomail.NewDialer(config.Host, port, config.Username, config.Password),
	}
}

// AdminEmail is the address copied on every order and refund notification
func (e *EmailService) AdminEmail() string {
	return e.config.AdminEmail
}

// Send renders the message template and submits it over SMTP
func (e *EmailService) Send(ctx context.Context, msg EmailMessage) error {
	recipients := compact(msg.To)
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients for %q", msg.Subject)
	}
	if !e.config.IsConfigured() {
		log.Printf("[EMAIL] SMTP not configured, skipping %q to %s", msg.Subject, strings.Join(recipients, ", "))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := e.render(msg.Template, msg.Data)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.config.From)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", htmlToText(body))
	m.AddAlternative("text/html", body)
	for _, a := range msg.Attachments {
		name := a.Name
		if name == "" {
			name = filepath.Base(a.Path)
		}
		m.Attach(a.Path, gomail.Rename(name))
	}

	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	log.Printf("[EMAIL] sent %q to %s", msg.Subject, strings.Join(recipients, ", "))
	return nil
}

func (e *EmailService) render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := e.renderer.Render(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

// htmlToText flattens an HTML document into readable plain text
func htmlToText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseBlankLines(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "style", "script", "title":
				skip++
			case "br", "p", "tr", "h1", "h2", "h3", "div":
				b.WriteString("\n")
			case "td", "th":
				b.WriteString(" ")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "style", "script", "title":
				if skip > 0 {
					skip--
				}
			case "p", "tr", "h1", "h2", "h3", "div":
				b.WriteString("\n")
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				b.WriteString("\n")
			}
		case html.TextToken:
			if skip == 0 {
				b.WriteString(strings.Join(strings.Fields(string(z.Text())), " "))
			}
		}
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[strings.ToLower(v)] {
			continue
		}
		seen[strings.ToLower(v)] = true
		out = append(out, v)
	}
	return out
}
