package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
)

// ProviderGoogle is the only provider the login page offers.
const ProviderGoogle = "google"

// GoogleUserInfoURL is Google's OpenID Connect userinfo endpoint.
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Provider runs the OAuth authorization code flow for one identity provider.
type Provider interface {
	Name() string
	AuthCodeURL(state, redirectURL string) string
	Exchange(ctx context.Context, code, redirectURL string) (domain.Identity, error)
}

// GoogleConfig configures the Google provider. Endpoint and UserInfoURL
// default to Google's; tests point them at a local server.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
	HTTPClient   *http.Client
}

// GoogleProvider implements Provider over golang.org/x/oauth2.
type GoogleProvider struct {
	cfg         oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

func NewGoogleProvider(c GoogleConfig) *GoogleProvider {
	endpoint := c.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = endpoints.Google
	}
	userInfo := c.UserInfoURL
	if userInfo == "" {
		userInfo = GoogleUserInfoURL
	}
	return &GoogleProvider{
		cfg: oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfo,
		httpClient:  c.HTTPClient,
	}
}

func (p *GoogleProvider) Name() string { return ProviderGoogle }

func (p *GoogleProvider) config(redirectURL string) *oauth2.Config {
	cfg := p.cfg
	cfg.RedirectURL = redirectURL
	return &cfg
}

func (p *GoogleProvider) AuthCodeURL(state, redirectURL string) string {
	return p.config(redirectURL).AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type googleUserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Exchange trades the code for a token and fetches the user's profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code, redirectURL string) (domain.Identity, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	cfg := p.config(redirectURL)
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("google: code exchange failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("google: build userinfo request: %w", err)
	}
	resp, err := cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("google: userinfo request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Identity{}, fmt.Errorf("google: userinfo returned %d: %s", resp.StatusCode, body)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return domain.Identity{}, fmt.Errorf("google: decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return domain.Identity{}, fmt.Errorf("google: userinfo without subject")
	}

	return domain.Identity{
		Provider:  ProviderGoogle,
		Subject:   info.Sub,
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
	}, nil
}
