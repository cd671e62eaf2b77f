package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/platinummonkey/multipass/pkg/identity"
	"github.com/platinummonkey/multipass/pkg/observability"
)

// ErrNoRecipient is returned when the person has no email address
var ErrNoRecipient = errors.New("notify: person has no email address")

// Notifier delivers account confirmation emails
type Notifier interface {
	SendConfirmationEmail(ctx context.Context, person identity.Identity, confirmationURL string) error
}

// User is the login merge field
type User struct {
	UserName string
}

// MergeFields is the data the confirmation template is rendered with
type MergeFields struct {
	ConfirmAccountUrl string
	Person            identity.Identity
	User              User
}

// DefaultSubject is used when no subject is configured
const DefaultSubject = "Account Confirmation"

const defaultTemplate = `<p>{{ .Person.PreferredName }},</p>
<p>Thank-you for creating an account. Please confirm that you want to use this email address for your account by clicking the link below.</p>
<p><a href="{{ .ConfirmAccountUrl }}">Confirm Account</a></p>
<p>Your username is {{ .User.UserName }}.</p>`

// ParseTemplate parses the confirmation template at path, or the built in
// template when path is empty.
func ParseTemplate(path string) (*template.Template, error) {
	if path == "" {
		return template.New("confirm-account").Parse(defaultTemplate)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read confirmation template: %w", err)
	}
	return template.New("confirm-account").Parse(string(body))
}

// Render executes tmpl with the merge fields for person
func Render(tmpl *template.Template, person identity.Identity, confirmationURL string) (string, error) {
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, MergeFields{
		ConfirmAccountUrl: confirmationURL,
		Person:            person,
		User:              User{UserName: person.Username},
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute confirmation template: %w", err)
	}
	return buf.String(), nil
}

// ResendConfig configures the Resend delivery
type ResendConfig struct {
	APIKey       string
	From         string
	Subject      string
	TemplateFile string
	BaseURL      string // overrides the Resend API endpoint
}

// ResendNotifier sends confirmation emails through Resend
type ResendNotifier struct {
	client  *resend.Client
	from    string
	subject string
	tmpl    *template.Template
	logger  *observability.Logger
}

// NewResendNotifier creates a notifier from cfg
func NewResendNotifier(cfg ResendConfig, logger *observability.Logger) (*ResendNotifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("sender address is required")
	}

	tmpl, err := ParseTemplate(cfg.TemplateFile)
	if err != nil {
		return nil, err
	}

	client := resend.NewClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid resend base URL: %w", err)
		}
		client.BaseURL = base
	}

	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}

	return &ResendNotifier{
		client:  client,
		from:    cfg.From,
		subject: subject,
		tmpl:    tmpl,
		logger:  logger,
	}, nil
}

// SendConfirmationEmail renders and sends the confirmation email to person
func (n *ResendNotifier) SendConfirmationEmail(ctx context.Context, person identity.Identity, confirmationURL string) error {
	if strings.TrimSpace(person.Email) == "" {
		return ErrNoRecipient
	}

	html, err := Render(n.tmpl, person, confirmationURL)
	if err != nil {
		return err
	}

	sent, err := n.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{person.Email},
		Subject: n.subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("failed to send confirmation email: %w", err)
	}

	n.logger.WithFields(map[string]interface{}{
		"username": person.Username,
		"email_id": sent.Id,
		"service":  "resend",
	}).Info("Sent account confirmation email")
	return nil
}

// LogNotifier logs confirmation emails instead of sending them. It is
// used when no email provider is configured.
type LogNotifier struct {
	tmpl   *template.Template
	logger *observability.Logger
}

// NewLogNotifier creates a LogNotifier rendering the built in template
func NewLogNotifier(logger *observability.Logger) *LogNotifier {
	tmpl, _ := ParseTemplate("")
	return &LogNotifier{tmpl: tmpl, logger: logger}
}

// SendConfirmationEmail renders the email and logs the confirmation URL
func (n *LogNotifier) SendConfirmationEmail(_ context.Context, person identity.Identity, confirmationURL string) error {
	if strings.TrimSpace(person.Email) == "" {
		return ErrNoRecipient
	}
	if _, err := Render(n.tmpl, person, confirmationURL); err != nil {
		return err
	}
	n.logger.WithFields(map[string]interface{}{
		"username":         person.Username,
		"confirmation_url": confirmationURL,
	}).Info("Confirmation email not sent: no email provider configured")
	return nil
}
