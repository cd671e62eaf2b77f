package sso

import (
	"context"
	"fmt"
)

// AdapterFactory builds adapters from configuration
type AdapterFactory struct {
	baseURL     string
	states      StateStore
	provisioner Provisioner
}

// NewAdapterFactory creates a factory. baseURL is the public root of this
// service and is used for SAML endpoints.
func NewAdapterFactory(baseURL string, states StateStore, provisioner Provisioner) *AdapterFactory {
	return &AdapterFactory{
		baseURL:     baseURL,
		states:      states,
		provisioner: provisioner,
	}
}

// CreateAdapter creates an adapter from config. Presets fill in any
// settings config leaves empty. Disabled providers are still built so
// their logins keep resolving; the registry skips inactive adapters.
func (f *AdapterFactory) CreateAdapter(ctx context.Context, config *ProviderConfig) (Adapter, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	if config.Preset != "" {
		if err := applyPreset(config); err != nil {
			return nil, err
		}
	}

	switch config.Type {
	case ProviderTypeSAML:
		return NewSAMLAdapter(config, f.baseURL, f.states, f.provisioner)
	case ProviderTypeOAuth2:
		return NewOAuth2Adapter(config, f.states, f.provisioner)
	case ProviderTypeOIDC:
		return NewOIDCAdapter(ctx, config, f.states, f.provisioner)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

// GetPresetConfig returns the canned configuration of a well-known provider
func GetPresetConfig(preset Preset) (*ProviderConfig, error) {
	switch preset {
	case PresetAzureAD:
		return &ProviderConfig{
			Type: ProviderTypeOIDC,
			AttributeMapping: AttributeMap{
				UserID:    "oid",
				Username:  "preferred_username",
				Email:     "email",
				FullName:  "name",
				FirstName: "given_name",
				LastName:  "family_name",
			},
			OIDC: &OIDCConfig{
				Scopes: []string{"openid", "profile", "email"},
			},
		}, nil

	case PresetOkta:
		return &ProviderConfig{
			Type: ProviderTypeOIDC,
			AttributeMapping: AttributeMap{
				UserID:    "sub",
				Username:  "preferred_username",
				Email:     "email",
				FullName:  "name",
				FirstName: "given_name",
				LastName:  "family_name",
			},
			OIDC: &OIDCConfig{
				Scopes: []string{"openid", "profile", "email"},
			},
		}, nil

	case PresetGoogle:
		return &ProviderConfig{
			Type: ProviderTypeOIDC,
			AttributeMapping: AttributeMap{
				UserID:    "sub",
				Username:  "email",
				Email:     "email",
				FullName:  "name",
				FirstName: "given_name",
				LastName:  "family_name",
			},
			OIDC: &OIDCConfig{
				IssuerURL: "https://accounts.google.com",
				Scopes:    []string{"openid", "profile", "email"},
			},
		}, nil

	default:
		return nil, fmt.Errorf("no preset configuration for provider: %s", preset)
	}
}

// applyPreset fills the unset fields of config from its preset
func applyPreset(config *ProviderConfig) error {
	preset, err := GetPresetConfig(config.Preset)
	if err != nil {
		return err
	}

	if config.Type == "" {
		config.Type = preset.Type
	}
	if config.AttributeMapping == (AttributeMap{}) {
		config.AttributeMapping = preset.AttributeMapping
	}
	if preset.OIDC != nil {
		if config.OIDC == nil {
			config.OIDC = &OIDCConfig{}
		}
		if config.OIDC.IssuerURL == "" {
			config.OIDC.IssuerURL = preset.OIDC.IssuerURL
		}
		if len(config.OIDC.Scopes) == 0 {
			config.OIDC.Scopes = preset.OIDC.Scopes
		}
	}
	return nil
}
