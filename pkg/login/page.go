package login

import (
	"net/url"
	"strings"
)

// ProviderButton is one remote login button on the login page
type ProviderButton struct {
	Name     string `json:"name"`
	ButtonID string `json:"button_id"`
	CSSClass string `json:"css_class"`
	// ImageURL is empty when the button falls back to its name as text
	ImageURL string `json:"image_url,omitempty"`
	Text     string `json:"text,omitempty"`
	// LoginURL starts the provider's flow through this service
	LoginURL string `json:"login_url"`
}

// Page is what the login form needs to render
type Page struct {
	PromptMessage      string           `json:"prompt_message,omitempty"`
	ShowNewAccount     bool             `json:"show_new_account"`
	NewAccountText     string           `json:"new_account_text"`
	NewAccountURL      string           `json:"new_account_url"`
	HelpURL            string           `json:"help_url"`
	Providers          []ProviderButton `json:"providers"`
	HasRemoteProviders bool             `json:"has_remote_providers"`
	ReturnURL          string           `json:"return_url,omitempty"`
}

// LoginPage builds the login page model. loginPath is the path of the login
// form; provider buttons link to loginPath/{provider}.
func (d *Dispatcher) LoginPage(loginPath, returnURL string) Page {
	opts := d.opts.Load()

	p := Page{
		PromptMessage:  opts.PromptMessage,
		ShowNewAccount: !opts.HideNewAccount,
		NewAccountText: opts.newAccountText(),
		NewAccountURL:  d.NewAccountURL(returnURL),
		HelpURL:        opts.helpURL(),
		ReturnURL:      returnURL,
	}

	base := strings.TrimSuffix(loginPath, "/")
	for _, desc := range opts.Registry.ListActive() {
		btn := ProviderButton{
			Name:     desc.Name,
			ButtonID: "lb" + desc.Name + "Login",
			CSSClass: "btn btn-authenication " + lowerName(desc.Name),
			ImageURL: desc.ImageURL,
			LoginURL: base + "/" + url.PathEscape(desc.Name),
		}
		if btn.ImageURL == "" {
			btn.Text = desc.Name
		}
		if returnURL != "" {
			btn.LoginURL += "?returnurl=" + url.QueryEscape(returnURL)
		}
		p.Providers = append(p.Providers, btn)
	}
	p.HasRemoteProviders = len(p.Providers) > 0
	return p
}

// NewAccountURL returns the registration page carrying returnURL along
func (d *Dispatcher) NewAccountURL(returnURL string) string {
	target := d.opts.Load().newAccountURL()
	if returnURL == "" {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + "returnurl=" + url.QueryEscape(returnURL)
}
