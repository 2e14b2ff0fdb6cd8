package models

import "time"

// Submission lifecycle states.
const (
	StatePending  = "pending"
	StateApproved = "approved"
	StateRejected = "rejected"
)

// Identity is the profile the identity provider returns for an exchanged
// authorization code. Never client-asserted; it always comes from the
// provider's own user endpoint.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Color    string `json:"color,omitempty"`
}

type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Avatar       string    `json:"avatar,omitempty"`
	Color        string    `json:"color,omitempty"`
	IsAdmin      bool      `json:"is_admin"`
	GithubHandle *string   `json:"github_handle,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Contributor is intake scratch data keyed by discord id; promoted to
// Author records at publish time and stripped from the submission after.
type Contributor struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type Moderator struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type Submission struct {
	ID           int64                  `json:"id"`
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	SourceRef    string                 `json:"source_ref"`
	Content      string                 `json:"content,omitempty"` // base64 of the resolved theme css
	Preview      string                 `json:"preview,omitempty"` // data url or plain url
	Contributors map[string]Contributor `json:"contributors,omitempty"`
	SubmitterID  *string                `json:"submitter_id,omitempty"`
	State        string                 `json:"state"`
	SubmittedAt  time.Time              `json:"submitted_at"`
	Moderator    *Moderator             `json:"moderator,omitempty"`
}

type Author struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Guild describes the community server advertised by a theme's @invite directive.
type Guild struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Icon   string `json:"icon,omitempty"`
	Invite string `json:"invite,omitempty"`
}

type Theme struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	LongDescription *string   `json:"long_description,omitempty"`
	Content         string    `json:"content"` // base64 encoded css
	Version         string    `json:"version"`
	Tags            []string  `json:"tags"`
	Authors         []Author  `json:"authors"`
	Thumbnail       string    `json:"thumbnail"`
	SourceRef       string    `json:"source_ref"`
	Guild           *Guild    `json:"guild,omitempty"`
	Likes           int       `json:"likes"`
	Downloads       int       `json:"downloads"`
	ReleaseDate     time.Time `json:"release_date"`
}
