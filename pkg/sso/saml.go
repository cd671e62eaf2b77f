package sso

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	saml2 "github.com/russellhaering/gosaml2"
	dsig "github.com/russellhaering/goxmldsig"
)

// SAMLAdapter logs users in through a SAML 2.0 identity provider. The
// IdP posts its response back to the login page with the RelayState
// issued when the flow began.
type SAMLAdapter struct {
	baseAdapter
	sp *saml2.SAMLServiceProvider
}

// NewSAMLAdapter creates a SAML adapter. baseURL is the public root of
// this service.
func NewSAMLAdapter(config *ProviderConfig, baseURL string, states StateStore, provisioner Provisioner) (*SAMLAdapter, error) {
	if config.SAML == nil {
		return nil, fmt.Errorf("SAML config is required")
	}
	if err := validateSAMLConfig(config.SAML); err != nil {
		return nil, err
	}

	certBlock, _ := pem.Decode([]byte(config.SAML.Certificate))
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	certStore := dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{cert},
	}

	var keyStore dsig.X509KeyStore
	if config.SAML.PrivateKey != "" {
		key, err := parsePrivateKey(config.SAML.PrivateKey)
		if err != nil {
			return nil, err
		}
		keyStore = dsig.TLSCertKeyStore{
			PrivateKey:  key,
			Certificate: [][]byte{certBlock.Bytes},
		}
	}

	baseURL = strings.TrimSuffix(baseURL, "/")
	acs := config.SAML.AssertionConsumerURL
	if acs == "" {
		acs = baseURL + "/login"
	}

	sp := &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      config.SAML.SSOURL,
		IdentityProviderIssuer:      config.SAML.EntityID,
		ServiceProviderIssuer:       baseURL + "/login/saml/" + strings.ToLower(config.Name) + "/metadata",
		AssertionConsumerServiceURL: acs,
		SignAuthnRequests:           config.SAML.SignRequests && keyStore != nil,
		AudienceURI:                 baseURL,
		IDPCertificateStore:         &certStore,
		SPKeyStore:                  keyStore,
	}
	if config.SAML.NameIDFormat != "" {
		sp.NameIdFormat = config.SAML.NameIDFormat
	}

	return &SAMLAdapter{
		baseAdapter: baseAdapter{config: config, states: states, provisioner: provisioner},
		sp:          sp,
	}, nil
}

// IsReturnCallback matches a posted SAMLResponse whose RelayState was
// issued by this provider
func (p *SAMLAdapter) IsReturnCallback(req Request) bool {
	return req.Form("SAMLResponse") != "" && p.ownsState(req.Form("RelayState"))
}

// BuildLoginURI returns the IdP URL carrying the AuthnRequest
func (p *SAMLAdapter) BuildLoginURI(ctx context.Context, req Request) (*url.URL, error) {
	relayState, err := p.beginFlow(ctx, req)
	if err != nil {
		return nil, err
	}

	authURL, err := p.sp.BuildAuthURL(relayState)
	if err != nil {
		return nil, fmt.Errorf("failed to build auth URL: %w", err)
	}
	return url.Parse(authURL)
}

// CompleteAuthentication validates the posted assertion
func (p *SAMLAdapter) CompleteAuthentication(ctx context.Context, req Request) (string, string, error) {
	if !p.IsReturnCallback(req) {
		return "", "", ErrNotCallback
	}

	st, err := p.consumeState(ctx, req.Form("RelayState"))
	if err != nil {
		return "", "", err
	}

	assertionInfo, err := p.sp.RetrieveAssertionInfo(req.Form("SAMLResponse"))
	if err != nil {
		return "", "", fmt.Errorf("failed to validate assertion: %w", err)
	}
	if assertionInfo.WarningInfo != nil {
		if assertionInfo.WarningInfo.InvalidTime {
			return "", "", fmt.Errorf("assertion has invalid time")
		}
		if assertionInfo.WarningInfo.NotInAudience {
			return "", "", fmt.Errorf("assertion not in expected audience")
		}
	}

	claims := make(map[string]interface{}, len(assertionInfo.Values))
	user := &RemoteUser{Attributes: make(map[string]string)}
	for name, attr := range assertionInfo.Values {
		if len(attr.Values) == 0 {
			continue
		}
		claims[name] = attr.Values[0].Value
		user.Attributes[name] = attr.Values[0].Value
	}
	mapAttributes(user, p.config.AttributeMapping, claims)
	if user.ExternalID == "" {
		user.ExternalID = assertionInfo.NameID
	}

	return p.finish(ctx, user, st)
}

// Metadata returns the service provider metadata document
func (p *SAMLAdapter) Metadata() ([]byte, error) {
	md, err := p.sp.Metadata()
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata: %w", err)
	}
	out, err := xml.MarshalIndent(md, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func parsePrivateKey(keyPEM string) (*rsa.PrivateKey, error) {
	keyBlock, _ := pem.Decode([]byte(keyPEM))
	if keyBlock == nil {
		return nil, fmt.Errorf("failed to decode private key PEM")
	}

	if key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes); err == nil {
		return key, nil
	}
	pkcs8Key, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := pkcs8Key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return key, nil
}

func validateSAMLConfig(cfg *SAMLConfig) error {
	if cfg.EntityID == "" {
		return fmt.Errorf("entity_id is required")
	}
	if cfg.SSOURL == "" {
		return fmt.Errorf("sso_url is required")
	}
	if cfg.Certificate == "" {
		return fmt.Errorf("certificate is required")
	}
	if block, _ := pem.Decode([]byte(cfg.Certificate)); block == nil {
		return fmt.Errorf("invalid certificate PEM format")
	}
	return nil
}
