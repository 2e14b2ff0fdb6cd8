package config

import (
	"errors"
	"net/url"
	"os"
	"strings"
)

type Config struct {
	DBDSN    string
	HTTPAddr string
	LogLevel string
	RedisDSN string

	// thumbnail storage (R2 via s3 api)
	R2Endpoint  string
	R2Bucket    string
	R2PublicURL string
	R2Region    string

	// collaborators
	DiscordAPIBase      string
	DiscordWebhookURL   string // raw secret, never log
	DiscordClientID     string
	DiscordClientSecret string // raw secret, never log
	DiscordRedirectURI  string
	GithubAPIBase     string
	GithubToken       string // raw secret, never log

	SiteBaseURL        string // base for moderation deep links in notifications
	PlaceholderPreview string

	CORSOrigins []string
}

func Load() (Config, error) {
	cfg := Config{
		DBDSN:              os.Getenv("DB_DSN"),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:           getenvDefault("LOG_LEVEL", "info"),
		RedisDSN:           getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		R2Endpoint:         getenvDefault("R2_ENDPOINT", ""),
		R2Bucket:           getenvDefault("R2_BUCKET", ""),
		R2PublicURL:        getenvDefault("R2_PUBLIC_URL", ""),
		R2Region:           getenvDefault("R2_REGION", "auto"),
		DiscordAPIBase:     getenvDefault("DISCORD_API_BASE", "https://discord.com/api/v10"),
		DiscordWebhookURL:  os.Getenv("DISCORD_WEBHOOK_URL"),
		DiscordClientID:    os.Getenv("DISCORD_CLIENT_ID"),
		DiscordClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
		DiscordRedirectURI: getenvDefault("DISCORD_REDIRECT_URI", "http://localhost:3000/callback"),
		GithubAPIBase:      getenvDefault("GITHUB_API_BASE", "https://api.github.com"),
		GithubToken:        os.Getenv("GITHUB_TOKEN"),
		SiteBaseURL:        getenvDefault("SITE_BASE_URL", "http://localhost:3000"),
		PlaceholderPreview: getenvDefault("PLACEHOLDER_PREVIEW_URL", "https://i.imgur.com/rY5vUz8.png"),
	}

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}

	// light validation: webhook must be a url if set
	if cfg.DiscordWebhookURL != "" {
		if _, err := url.ParseRequestURI(cfg.DiscordWebhookURL); err != nil {
			return Config{}, errors.New("DISCORD_WEBHOOK_URL must be a valid url")
		}
	}

	// parse CORS origins
	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
