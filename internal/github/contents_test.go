package github

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResolve_RawURL(t *testing.T) {
	css := "/* @version 2.0.0 */\nbody { background: #111; }\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/x/y/main/theme.css" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(css))
	}))
	defer srv.Close()

	res := NewResolver(slog.Default(), "https://api.github.example", "")
	res.httpClient = srv.Client()

	got, err := res.Resolve(context.Background(), srv.URL+"/x/y/main/theme.css")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != base64.StdEncoding.EncodeToString([]byte(css)) {
		t.Error("resolved content is not the base64 of the fetched bytes")
	}
}

func TestResolve_RawURL_NonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res := NewResolver(slog.Default(), "https://api.github.example", "")
	res.httpClient = srv.Client()

	if _, err := res.Resolve(context.Background(), srv.URL+"/missing.css"); err == nil {
		t.Fatal("expected error on 404")
	}
}

func TestResolve_RepoReference(t *testing.T) {
	css := "body { color: white; }"
	// contents api wraps base64 at 60 cols
	wrapped := base64.StdEncoding.EncodeToString([]byte(css))
	wrapped = wrapped[:10] + "\n" + wrapped[10:]

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/alice/themes/contents/dist/midnight.css" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("ref") != "main" {
			t.Errorf("expected ref=main, got %q", r.URL.Query().Get("ref"))
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":"` + strings.ReplaceAll(wrapped, "\n", `\n`) + `","encoding":"base64"}`))
	}))
	defer srv.Close()

	res := NewResolver(slog.Default(), srv.URL, "tok123")
	res.httpClient = srv.Client()

	got, err := res.Resolve(context.Background(), "alice/themes/main/dist/midnight.css")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != base64.StdEncoding.EncodeToString([]byte(css)) {
		t.Errorf("unexpected content %q", got)
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
}

func TestResolve_MalformedReference(t *testing.T) {
	res := NewResolver(slog.Default(), "https://api.github.example", "")

	for _, ref := range []string{"", "alice", "alice/themes", "alice/themes/main"} {
		if _, err := res.Resolve(context.Background(), ref); err == nil {
			t.Errorf("reference %q should fail", ref)
		}
	}
}
