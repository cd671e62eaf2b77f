package login

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"text/template"

	"github.com/platinummonkey/multipass/pkg/checkin"
	"github.com/platinummonkey/multipass/pkg/multipass"
	"github.com/platinummonkey/multipass/pkg/sso"
)

// Default texts and pages
const (
	DefaultHelpURL         = "/ForgotUserName"
	DefaultConfirmationURL = "/ConfirmAccount"
	DefaultNewAccountURL   = "/NewAccount"
	DefaultNewAccountText  = "Register"

	DefaultConfirmCaption = "Thank-you for logging in, however, we need to confirm the email associated with this account belongs to you. " +
		"We've sent you an email that contains a link for confirming.  Please click the link in your email to continue."

	DefaultLockedOutCaption = "Sorry, your account has been locked.  Please contact our office at {{ .OrganizationPhone }} " +
		"or email {{ .OrganizationEmail }} to resolve this.  Thank-you."

	// InvalidCredentialsMessage is shown for every failed local login
	InvalidCredentialsMessage = "Sorry, we couldn't find an account matching that username/password. " +
		"Can we help you recover your account information?"
)

// Options is one immutable snapshot of the login settings. A reload
// swaps the whole snapshot; a running request keeps the one it started
// with.
type Options struct {
	// RedirectURL is the base of the multipass redirect. SSO issuance is
	// configured when it is set.
	RedirectURL string
	// SSOKey is the secret shared with the SSO-trusting party
	SSOKey string
	// RedirectPageURL replaces the provider's return URL after a remote login
	RedirectPageURL string

	HelpURL         string
	ConfirmationURL string
	NewAccountURL   string
	HideNewAccount  bool
	NewAccountText  string
	PromptMessage   string

	ConfirmCaption    string
	LockedOutCaption  string
	OrganizationPhone string
	OrganizationEmail string

	CheckIn checkin.Settings

	// Registry holds the allow-listed remote providers
	Registry *sso.Registry
}

// SSOConfigured reports whether successful logins issue a multipass
func (o *Options) SSOConfigured() bool {
	return strings.TrimSpace(o.RedirectURL) != ""
}

// Validate rejects settings that can never issue a valid redirect
func (o *Options) Validate() error {
	if o.SSOConfigured() {
		if _, err := multipass.NewEncoder(o.SSOKey); err != nil {
			return fmt.Errorf("%w: sso key is required when a redirect url is set", multipass.ErrConfiguration)
		}
		u, err := url.Parse(o.RedirectURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: redirect url %q is not absolute", multipass.ErrConfiguration, o.RedirectURL)
		}
	}
	if _, err := template.New("locked").Parse(o.lockedOutCaption()); err != nil {
		return fmt.Errorf("invalid locked out caption: %w", err)
	}
	return nil
}

func (o *Options) helpURL() string {
	return orDefault(o.HelpURL, DefaultHelpURL)
}

func (o *Options) confirmationURL() string {
	return orDefault(o.ConfirmationURL, DefaultConfirmationURL)
}

func (o *Options) newAccountURL() string {
	return orDefault(o.NewAccountURL, DefaultNewAccountURL)
}

func (o *Options) newAccountText() string {
	return orDefault(o.NewAccountText, DefaultNewAccountText)
}

func (o *Options) confirmCaption() string {
	return orDefault(o.ConfirmCaption, DefaultConfirmCaption)
}

func (o *Options) lockedOutCaption() string {
	return orDefault(o.LockedOutCaption, DefaultLockedOutCaption)
}

// renderLockedOutCaption merges the organization contact fields into the
// lockout caption
func (o *Options) renderLockedOutCaption() (string, error) {
	tmpl, err := template.New("locked").Parse(o.lockedOutCaption())
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		OrganizationPhone string
		OrganizationEmail string
	}{o.OrganizationPhone, o.OrganizationEmail})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// resolve makes page absolute against siteRoot
func resolve(siteRoot, page string) string {
	if u, err := url.Parse(page); err == nil && u.IsAbs() {
		return page
	}
	return strings.TrimSuffix(siteRoot, "/") + "/" + strings.TrimPrefix(page, "/")
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
