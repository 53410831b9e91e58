// Package credentials supplies bearer tokens to authenticated sources.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dharmasatrya/flightquery/internal/cache"
)

var (
	ErrNotConfigured = errors.New("credentials not configured")
	ErrTokenRequest  = errors.New("token request failed")
)

// Provider yields a valid access token. Invalidate drops a token the
// upstream rejected so the next call fetches a fresh one.
type Provider interface {
	Token(ctx context.Context) (string, error)
	Invalidate(ctx context.Context)
}

// expiryMargin is subtracted from the advertised lifetime.
const expiryMargin = 60 * time.Second

const defaultExpiresIn = 1799

// OAuthProvider implements the OAuth2 client-credentials grant. Tokens are
// kept in a TokenCache; concurrent misses share one token request.
type OAuthProvider struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Client       *http.Client
	Cache        cache.TokenCache

	group singleflight.Group
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func NewOAuthProvider(tokenURL, clientID, clientSecret string, c cache.TokenCache) *OAuthProvider {
	return &OAuthProvider{
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Client:       &http.Client{Timeout: 10 * time.Second},
		Cache:        c,
	}
}

func (p *OAuthProvider) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

func (p *OAuthProvider) cacheKey() string {
	return p.TokenURL + "|" + p.ClientID
}

func (p *OAuthProvider) Token(ctx context.Context) (string, error) {
	if !p.Configured() {
		return "", ErrNotConfigured
	}
	if p.Cache != nil {
		if token, ok := p.Cache.Get(ctx, p.cacheKey()); ok {
			return token, nil
		}
	}

	ch := p.group.DoChan(p.cacheKey(), func() (any, error) {
		return p.fetch(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *OAuthProvider) Invalidate(ctx context.Context) {
	if p.Cache == nil {
		return
	}
	if err := p.Cache.Delete(ctx, p.cacheKey()); err != nil {
		log.Printf("[credentials] invalidate token: %v", err)
	}
}

func (p *OAuthProvider) fetch(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", p.ClientID)
	form.Set("client_secret", p.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenRequest, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrTokenRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s: %s", ErrTokenRequest, resp.Status, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrTokenRequest, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access_token", ErrTokenRequest)
	}
	if tr.ExpiresIn <= 0 {
		tr.ExpiresIn = defaultExpiresIn
	}

	ttl := time.Duration(tr.ExpiresIn)*time.Second - expiryMargin
	if p.Cache != nil && ttl > 0 {
		if err := p.Cache.Set(ctx, p.cacheKey(), tr.AccessToken, ttl); err != nil {
			log.Printf("[credentials] cache token: %v", err)
		}
	}
	log.Printf("[credentials] access token obtained, expires in %ds", tr.ExpiresIn)
	return tr.AccessToken, nil
}

// Static is a fixed token, for tests and pre-provisioned credentials.
type Static string

func (s Static) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", ErrNotConfigured
	}
	return string(s), nil
}

func (s Static) Invalidate(ctx context.Context) {}
