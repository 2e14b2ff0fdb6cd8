package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"theme-vault/internal/models"
)

type oauthTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type oauthUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Avatar      string `json:"avatar"`
	AccentColor *int   `json:"accent_color"`
}

// ConfigureOAuth arms the authorization-code exchange. Without it
// ExchangeCode refuses every code.
func (c *Client) ConfigureOAuth(clientID, clientSecret, redirectURI string) {
	c.oauthClientID = clientID
	c.oauthClientSecret = clientSecret
	c.oauthRedirectURI = redirectURI
}

// ExchangeCode redeems an authorization code for the profile it belongs
// to: token endpoint first, then the user endpoint with the short-lived
// access token. The profile is always the provider's answer; nothing the
// caller asserts about themselves is trusted. A code the provider refuses
// maps to models.ErrUnauthenticated.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*models.Identity, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, models.ErrUnauthenticated
	}
	if c.oauthClientID == "" || c.oauthClientSecret == "" {
		return nil, fmt.Errorf("oauth exchange not configured")
	}

	if !c.breaker.Allow() {
		return nil, fmt.Errorf("oauth exchange circuit breaker %s", c.breaker.StateString())
	}

	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{
		"client_id":     {c.oauthClientID},
		"client_secret": {c.oauthClientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {c.oauthRedirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.apiBase, "/")+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		c.breaker.RecordSuccess() // upstream answered; the code is just bad
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, models.ErrUnauthenticated
	}
	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("oauth token exchange failed: status %d", resp.StatusCode)
	}

	var tok oauthTokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&tok); err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("oauth token decode: %w", err)
	}
	if tok.AccessToken == "" {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("oauth token exchange returned no access token")
	}

	user, err := c.fetchOAuthUser(ctx, tok.AccessToken)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, err
	}
	c.breaker.RecordSuccess()

	ident := &models.Identity{
		ID:       user.ID,
		Username: user.Username,
	}
	if user.Avatar != "" {
		ident.Avatar = fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", user.ID, user.Avatar)
	}
	if user.AccentColor != nil {
		ident.Color = fmt.Sprintf("#%06x", *user.AccentColor)
	}
	return ident, nil
}

func (c *Client) fetchOAuthUser(ctx context.Context, accessToken string) (*oauthUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(c.apiBase, "/")+"/users/@me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oauth user lookup failed: status %d", resp.StatusCode)
	}

	var user oauthUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return nil, fmt.Errorf("oauth user decode: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("oauth user lookup returned no id")
	}
	return &user, nil
}
