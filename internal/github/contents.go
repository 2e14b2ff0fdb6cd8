package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const maxContentBytes = 2 << 20 // themes are css files; 2MB is generous

// Resolver turns a submission's source reference into base64 theme content.
// Direct raw urls are fetched as-is; anything else is treated as an
// owner/repo/branch/path reference and fetched through the contents api.
type Resolver struct {
	log        *slog.Logger
	httpClient *http.Client
	apiBase    string
	token      string
}

func NewResolver(log *slog.Logger, apiBase, token string) *Resolver {
	return &Resolver{
		log: log,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		apiBase: strings.TrimRight(apiBase, "/"),
		token:   token,
	}
}

// Resolve fetches the referenced content and returns it base64-encoded.
func (r *Resolver) Resolve(ctx context.Context, sourceRef string) (string, error) {
	sourceRef = strings.TrimSpace(sourceRef)
	if sourceRef == "" {
		return "", fmt.Errorf("empty source reference")
	}

	if strings.HasPrefix(sourceRef, "http://") || strings.HasPrefix(sourceRef, "https://") {
		return r.fetchRaw(ctx, sourceRef)
	}
	return r.fetchFromAPI(ctx, sourceRef)
}

func (r *Resolver) fetchRaw(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("source fetch failed: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read source body: %w", err)
	}
	if len(data) > maxContentBytes {
		return "", fmt.Errorf("source content too large")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("source content is empty")
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

type contentsEnvelope struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// fetchFromAPI resolves an owner/repo/branch/path reference. The path part
// may itself contain slashes.
func (r *Resolver) fetchFromAPI(ctx context.Context, ref string) (string, error) {
	parts := strings.SplitN(strings.Trim(ref, "/"), "/", 4)
	if len(parts) < 4 {
		return "", fmt.Errorf("malformed source reference %q: want owner/repo/branch/path", ref)
	}
	owner, repo, branch, path := parts[0], parts[1], parts[2], parts[3]

	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s", r.apiBase, owner, repo, path, branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("contents api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("contents api failed: status %d", resp.StatusCode)
	}

	var env contentsEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxContentBytes*2)).Decode(&env); err != nil {
		return "", fmt.Errorf("contents api decode: %w", err)
	}
	if env.Encoding != "base64" || env.Content == "" {
		return "", fmt.Errorf("unexpected contents api envelope (encoding %q)", env.Encoding)
	}

	// the api wraps base64 at 60 columns; strip whitespace and re-validate
	compact := strings.Map(func(c rune) rune {
		if c == '\n' || c == '\r' || c == ' ' {
			return -1
		}
		return c
	}, env.Content)

	if _, err := base64.StdEncoding.DecodeString(compact); err != nil {
		return "", fmt.Errorf("contents api returned invalid base64: %w", err)
	}

	return compact, nil
}
