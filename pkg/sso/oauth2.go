package sso

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"
)

// OAuth2Adapter logs users in through a plain OAuth2 authorization code
// flow followed by a user info request
type OAuth2Adapter struct {
	baseAdapter
	oauth2Config *oauth2.Config
}

// NewOAuth2Adapter creates an OAuth2 adapter
func NewOAuth2Adapter(config *ProviderConfig, states StateStore, provisioner Provisioner) (*OAuth2Adapter, error) {
	if config.OAuth2 == nil {
		return nil, fmt.Errorf("OAuth2 config is required")
	}
	if err := validateOAuth2Config(config.OAuth2); err != nil {
		return nil, err
	}

	return &OAuth2Adapter{
		baseAdapter: baseAdapter{config: config, states: states, provisioner: provisioner},
		oauth2Config: &oauth2.Config{
			ClientID:     config.OAuth2.ClientID,
			ClientSecret: config.OAuth2.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  config.OAuth2.AuthURL,
				TokenURL: config.OAuth2.TokenURL,
			},
			RedirectURL: config.OAuth2.RedirectURL,
			Scopes:      config.OAuth2.Scopes,
		},
	}, nil
}

// IsReturnCallback matches a state issued by this provider together with
// a code or an error
func (p *OAuth2Adapter) IsReturnCallback(req Request) bool {
	return isCodeCallback(&p.baseAdapter, req)
}

// BuildLoginURI returns the authorization endpoint URL
func (p *OAuth2Adapter) BuildLoginURI(ctx context.Context, req Request) (*url.URL, error) {
	state, err := p.beginFlow(ctx, req)
	if err != nil {
		return nil, err
	}
	return url.Parse(p.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline))
}

// CompleteAuthentication exchanges the code and fetches the user
func (p *OAuth2Adapter) CompleteAuthentication(ctx context.Context, req Request) (string, string, error) {
	st, code, err := readCodeCallback(ctx, &p.baseAdapter, req)
	if err != nil {
		return "", "", err
	}

	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return "", "", fmt.Errorf("failed to exchange token: %w", err)
	}

	userInfo, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return "", "", err
	}

	user := &RemoteUser{Attributes: make(map[string]string)}
	for k, v := range userInfo {
		if str, ok := v.(string); ok {
			user.Attributes[k] = str
		} else {
			jsonBytes, _ := json.Marshal(v)
			user.Attributes[k] = string(jsonBytes)
		}
	}
	mapAttributes(user, p.config.AttributeMapping, userInfo)

	return p.finish(ctx, user, st)
}

func (p *OAuth2Adapter) fetchUserInfo(ctx context.Context, token *oauth2.Token) (map[string]interface{}, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.OAuth2.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build user info request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.oauth2Config.Client(ctx, token).Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("user info request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var userInfo map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return userInfo, nil
}

func validateOAuth2Config(cfg *OAuth2Config) error {
	if cfg.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if cfg.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if cfg.AuthURL == "" {
		return fmt.Errorf("auth_url is required")
	}
	if cfg.TokenURL == "" {
		return fmt.Errorf("token_url is required")
	}
	if cfg.UserInfoURL == "" {
		return fmt.Errorf("user_info_url is required")
	}
	if cfg.RedirectURL == "" {
		return fmt.Errorf("redirect_url is required")
	}
	if len(cfg.Scopes) == 0 {
		return fmt.Errorf("scopes are required")
	}
	return nil
}

// isCodeCallback is shared by the authorization code adapters
func isCodeCallback(b *baseAdapter, req Request) bool {
	if !b.ownsState(req.Query("state")) {
		return false
	}
	return req.Query("code") != "" || req.Query("error") != ""
}

// readCodeCallback consumes the state and returns the authorization code
func readCodeCallback(ctx context.Context, b *baseAdapter, req Request) (State, string, error) {
	if !isCodeCallback(b, req) {
		return State{}, "", ErrNotCallback
	}

	st, err := b.consumeState(ctx, req.Query("state"))
	if err != nil {
		return State{}, "", err
	}

	if e := req.Query("error"); e != "" {
		return State{}, "", fmt.Errorf("%w: %s", ErrCallbackDenied, e)
	}
	return st, req.Query("code"), nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
