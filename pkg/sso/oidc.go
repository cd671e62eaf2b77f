package sso

import (
	"context"
	"fmt"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCAdapter logs users in through OpenID Connect
type OIDCAdapter struct {
	baseAdapter
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewOIDCAdapter discovers the issuer and creates the adapter
func NewOIDCAdapter(ctx context.Context, config *ProviderConfig, states StateStore, provisioner Provisioner) (*OIDCAdapter, error) {
	if config.OIDC == nil {
		return nil, fmt.Errorf("OIDC config is required")
	}
	if err := validateOIDCConfig(config.OIDC); err != nil {
		return nil, err
	}

	provider, err := oidc.NewProvider(ctx, config.OIDC.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID:        config.OIDC.ClientID,
		SkipIssuerCheck: config.OIDC.SkipIssuerCheck,
	})

	return &OIDCAdapter{
		baseAdapter: baseAdapter{config: config, states: states, provisioner: provisioner},
		provider:    provider,
		verifier:    verifier,
		oauth2Config: &oauth2.Config{
			ClientID:     config.OIDC.ClientID,
			ClientSecret: config.OIDC.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  config.OIDC.RedirectURL,
			Scopes:       config.OIDC.Scopes,
		},
	}, nil
}

func (p *OIDCAdapter) IsReturnCallback(req Request) bool {
	return isCodeCallback(&p.baseAdapter, req)
}

// BuildLoginURI returns the authorization endpoint URL
func (p *OIDCAdapter) BuildLoginURI(ctx context.Context, req Request) (*url.URL, error) {
	state, err := p.beginFlow(ctx, req)
	if err != nil {
		return nil, err
	}
	return url.Parse(p.oauth2Config.AuthCodeURL(state))
}

// CompleteAuthentication exchanges the code and verifies the ID token
func (p *OIDCAdapter) CompleteAuthentication(ctx context.Context, req Request) (string, string, error) {
	st, code, err := readCodeCallback(ctx, &p.baseAdapter, req)
	if err != nil {
		return "", "", err
	}

	oauth2Token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return "", "", fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return "", "", fmt.Errorf("missing id_token in response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", "", fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return "", "", fmt.Errorf("failed to parse claims: %w", err)
	}

	if p.config.OIDC.FetchUserInfo {
		userInfo, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(oauth2Token))
		if err == nil {
			var extra map[string]interface{}
			if err := userInfo.Claims(&extra); err == nil {
				for k, v := range extra {
					if _, exists := claims[k]; !exists {
						claims[k] = v
					}
				}
			}
		}
	}

	user := &RemoteUser{Attributes: make(map[string]string)}
	for k, v := range claims {
		if str, ok := v.(string); ok {
			user.Attributes[k] = str
		}
	}
	mapAttributes(user, p.config.AttributeMapping, claims)
	if user.ExternalID == "" {
		user.ExternalID = idToken.Subject
	}

	return p.finish(ctx, user, st)
}

func validateOIDCConfig(cfg *OIDCConfig) error {
	if cfg.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if cfg.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if cfg.IssuerURL == "" {
		return fmt.Errorf("issuer_url is required")
	}
	if cfg.RedirectURL == "" {
		return fmt.Errorf("redirect_url is required")
	}

	for _, scope := range cfg.Scopes {
		if scope == oidc.ScopeOpenID {
			return nil
		}
	}
	return fmt.Errorf("'openid' scope is required for OIDC")
}
