package sso

// ProviderType is the protocol a remote provider speaks
type ProviderType string

const (
	ProviderTypeSAML   ProviderType = "saml"
	ProviderTypeOAuth2 ProviderType = "oauth2"
	ProviderTypeOIDC   ProviderType = "oidc"
)

// Preset names a well-known provider with a canned configuration
type Preset string

const (
	PresetAzureAD Preset = "azuread"
	PresetOkta    Preset = "okta"
	PresetGoogle  Preset = "google"
)

// ProviderConfig configures one remote login provider
type ProviderConfig struct {
	// Name is the stable identifier used in the allow-list, in URLs and
	// as the login type of provisioned logins
	Name     string       `yaml:"name" json:"name"`
	Type     ProviderType `yaml:"type" json:"type"`
	Preset   Preset       `yaml:"preset,omitempty" json:"preset,omitempty"`
	Enabled  bool         `yaml:"enabled" json:"enabled"`
	ImageURL string       `yaml:"image_url,omitempty" json:"image_url,omitempty"`

	SAML   *SAMLConfig   `yaml:"saml,omitempty" json:"saml,omitempty"`
	OAuth2 *OAuth2Config `yaml:"oauth2,omitempty" json:"oauth2,omitempty"`
	OIDC   *OIDCConfig   `yaml:"oidc,omitempty" json:"oidc,omitempty"`

	AttributeMapping AttributeMap `yaml:"attribute_mapping" json:"attribute_mapping"`
}

// SAMLConfig holds SAML 2.0 settings
type SAMLConfig struct {
	EntityID             string `yaml:"entity_id" json:"entity_id"`
	SSOURL               string `yaml:"sso_url" json:"sso_url"`
	Certificate          string `yaml:"certificate" json:"certificate"` // PEM encoded IdP certificate
	PrivateKey           string `yaml:"private_key" json:"-"`
	SignRequests         bool   `yaml:"sign_requests" json:"sign_requests"`
	NameIDFormat         string `yaml:"name_id_format,omitempty" json:"name_id_format,omitempty"`
	AssertionConsumerURL string `yaml:"assertion_consumer_url,omitempty" json:"assertion_consumer_url,omitempty"`
}

// OAuth2Config holds plain OAuth2 settings
type OAuth2Config struct {
	ClientID     string   `yaml:"client_id" json:"client_id"`
	ClientSecret string   `yaml:"client_secret" json:"-"`
	AuthURL      string   `yaml:"auth_url" json:"auth_url"`
	TokenURL     string   `yaml:"token_url" json:"token_url"`
	UserInfoURL  string   `yaml:"user_info_url" json:"user_info_url"`
	RedirectURL  string   `yaml:"redirect_url" json:"redirect_url"`
	Scopes       []string `yaml:"scopes" json:"scopes"`
}

// OIDCConfig holds OpenID Connect settings
type OIDCConfig struct {
	ClientID        string   `yaml:"client_id" json:"client_id"`
	ClientSecret    string   `yaml:"client_secret" json:"-"`
	IssuerURL       string   `yaml:"issuer_url" json:"issuer_url"`
	RedirectURL     string   `yaml:"redirect_url" json:"redirect_url"`
	Scopes          []string `yaml:"scopes" json:"scopes"`
	SkipIssuerCheck bool     `yaml:"skip_issuer_check,omitempty" json:"skip_issuer_check,omitempty"`
	FetchUserInfo   bool     `yaml:"fetch_user_info,omitempty" json:"fetch_user_info,omitempty"`
}

// AttributeMap names the provider attributes holding each user field
type AttributeMap struct {
	UserID    string `yaml:"user_id" json:"user_id"`
	Username  string `yaml:"username" json:"username"`
	Email     string `yaml:"email" json:"email"`
	FullName  string `yaml:"full_name,omitempty" json:"full_name,omitempty"`
	FirstName string `yaml:"first_name,omitempty" json:"first_name,omitempty"`
	LastName  string `yaml:"last_name,omitempty" json:"last_name,omitempty"`
}

// RemoteUser is what a provider vouched for at the end of its handshake
type RemoteUser struct {
	ExternalID   string            `json:"external_id"`
	Username     string            `json:"username"`
	Email        string            `json:"email"`
	FullName     string            `json:"full_name,omitempty"`
	FirstName    string            `json:"first_name,omitempty"`
	LastName     string            `json:"last_name,omitempty"`
	ProviderName string            `json:"provider_name"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// Descriptor describes one remote login capability
type Descriptor struct {
	Name                   string `json:"name"`
	IsActive               bool   `json:"is_active"`
	RequiresRemoteRedirect bool   `json:"requires_remote_redirect"`
	ImageURL               string `json:"image_url,omitempty"`
}

// mapAttributes fills the mapped user fields from a claim set
func mapAttributes(user *RemoteUser, mapping AttributeMap, claims map[string]interface{}) {
	user.ExternalID = getStringValue(claims, mapping.UserID)
	user.Username = getStringValue(claims, mapping.Username)
	user.Email = getStringValue(claims, mapping.Email)
	user.FullName = getStringValue(claims, mapping.FullName)
	user.FirstName = getStringValue(claims, mapping.FirstName)
	user.LastName = getStringValue(claims, mapping.LastName)

	if user.Username == "" && user.Email != "" {
		user.Username = user.Email
	}
}

func getStringValue(data map[string]interface{}, key string) string {
	if key == "" {
		return ""
	}
	if val, ok := data[key]; ok {
		switch v := val.(type) {
		case string:
			return v
		case float64:
			// numeric ids come back from JSON as floats
			return formatNumber(v)
		}
	}
	return ""
}
