package discord

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client talks to Discord: executes the moderation webhook and resolves
// theme invites. One breaker and one pacing limiter cover both, since both
// hit the same upstream.
type Client struct {
	log        *slog.Logger
	httpClient *http.Client
	apiBase    string
	webhookURL string
	siteBase   string

	breaker *CircuitBreaker
	pacer   *rate.Limiter
	retry   RetryConfig

	// oauth exchange credentials; set via ConfigureOAuth
	oauthClientID     string
	oauthClientSecret string
	oauthRedirectURI  string
}

func NewClient(log *slog.Logger, apiBase, webhookURL, siteBase string) *Client {
	return &Client{
		log:        log,
		httpClient: DiscordHTTPClient,
		apiBase:    apiBase,
		webhookURL: webhookURL,
		siteBase:   siteBase,
		breaker:    NewCircuitBreaker(),
		pacer:      rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
		retry:      DefaultRetryConfig(),
	}
}
