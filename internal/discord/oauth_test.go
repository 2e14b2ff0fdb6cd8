package discord

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"theme-vault/internal/models"
)

func TestExchangeCode_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/token":
			if err := r.ParseForm(); err != nil {
				t.Fatalf("token request is not a form: %v", err)
			}
			if r.FormValue("grant_type") != "authorization_code" {
				t.Errorf("grant_type = %q", r.FormValue("grant_type"))
			}
			if r.FormValue("code") != "valid-code" {
				t.Errorf("code = %q", r.FormValue("code"))
			}
			if r.FormValue("client_id") != "cid" || r.FormValue("client_secret") != "csecret" {
				t.Error("client credentials not forwarded")
			}
			if r.FormValue("redirect_uri") != "https://themes.example/callback" {
				t.Errorf("redirect_uri = %q", r.FormValue("redirect_uri"))
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer"}`))
		case "/users/@me":
			if r.Header.Get("Authorization") != "Bearer at-123" {
				t.Errorf("user lookup auth = %q", r.Header.Get("Authorization"))
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"80351110224678912","username":"dev","avatar":"aabbcc","accent_color":7506394}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(slog.Default(), srv.URL, "", "")
	c.httpClient = srv.Client()
	c.ConfigureOAuth("cid", "csecret", "https://themes.example/callback")

	ident, err := c.ExchangeCode(context.Background(), "valid-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ident.ID != "80351110224678912" || ident.Username != "dev" {
		t.Errorf("unexpected identity: %+v", ident)
	}
	if ident.Avatar != "https://cdn.discordapp.com/avatars/80351110224678912/aabbcc.png" {
		t.Errorf("unexpected avatar url: %s", ident.Avatar)
	}
	if ident.Color != "#7289da" {
		t.Errorf("unexpected color: %s", ident.Color)
	}
}

func TestExchangeCode_RefusedCodeIsUnauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	c := NewClient(slog.Default(), srv.URL, "", "")
	c.httpClient = srv.Client()
	c.ConfigureOAuth("cid", "csecret", "")

	_, err := c.ExchangeCode(context.Background(), "stolen-or-expired")
	if !errors.Is(err, models.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}

	// a well-formed refusal must not trip the breaker
	if c.breaker.State() != CBClosed {
		t.Error("breaker should stay closed on a refused code")
	}
}

func TestExchangeCode_EmptyCodeNeverReachesUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made for an empty code")
	}))
	defer srv.Close()

	c := NewClient(slog.Default(), srv.URL, "", "")
	c.httpClient = srv.Client()
	c.ConfigureOAuth("cid", "csecret", "")

	if _, err := c.ExchangeCode(context.Background(), "  "); !errors.Is(err, models.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestExchangeCode_Unconfigured(t *testing.T) {
	c := NewClient(slog.Default(), "https://discord.example", "", "")

	if _, err := c.ExchangeCode(context.Background(), "some-code"); err == nil {
		t.Error("exchange without oauth credentials must fail")
	}
}
