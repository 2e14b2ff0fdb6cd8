package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"theme-vault/internal/models"
)

type inviteResponse struct {
	Code  string `json:"code"`
	Guild struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Icon string `json:"icon"`
	} `json:"guild"`
}

// ParseInviteCode normalizes the forms an @invite directive shows up in:
// bare codes, discord.gg links, discord.com/invite links.
func ParseInviteCode(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "discord.gg/")
	s = strings.TrimPrefix(s, "discord.com/invite/")
	s = strings.TrimPrefix(s, "www.discord.com/invite/")
	return strings.Trim(s, "/")
}

// ResolveInvite looks an invite code up against the Discord API and returns
// the community server it points at. Unknown or expired invites return
// models.ErrNotFound.
func (c *Client) ResolveInvite(ctx context.Context, code string) (*models.Guild, error) {
	code = ParseInviteCode(code)
	if code == "" {
		return nil, models.ErrNotFound
	}

	if !c.breaker.Allow() {
		return nil, fmt.Errorf("invite lookup circuit breaker %s", c.breaker.StateString())
	}

	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/invites/%s", strings.TrimRight(c.apiBase, "/"), code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.breaker.RecordSuccess() // upstream answered; the invite is just bad
		return nil, models.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("invite lookup failed: status %d", resp.StatusCode)
	}

	var out inviteResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("invite lookup decode: %w", err)
	}
	c.breaker.RecordSuccess()

	if out.Guild.ID == "" {
		return nil, models.ErrNotFound
	}

	guild := &models.Guild{
		ID:     out.Guild.ID,
		Name:   out.Guild.Name,
		Invite: out.Code,
	}
	if out.Guild.Icon != "" {
		guild.Icon = fmt.Sprintf("https://cdn.discordapp.com/icons/%s/%s.png", out.Guild.ID, out.Guild.Icon)
	}
	return guild, nil
}
