package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"theme-vault/internal/models"
)

// SubmissionNotice is everything the moderation channel needs to triage a
// new submission. PreviewData, when set, is attached to the webhook message
// so Discord hosts the image and the embed can reference it.
type SubmissionNotice struct {
	Submission  *models.Submission
	PreviewData []byte
	PreviewExt  string
}

type webhookEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	URL         string              `json:"url,omitempty"`
	Color       int                 `json:"color"`
	Fields      []webhookEmbedField `json:"fields,omitempty"`
	Image       *webhookEmbedImage  `json:"image,omitempty"`
}

type webhookEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type webhookEmbedImage struct {
	URL string `json:"url"`
}

type webhookPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []webhookEmbed `json:"embeds"`
}

// NotifySubmission posts a new-submission message to the moderation
// webhook. Callers treat failures as degraded success: the submission is
// already persisted and must not be rolled back over a dead webhook.
func (c *Client) NotifySubmission(ctx context.Context, notice SubmissionNotice) error {
	if c.webhookURL == "" {
		c.log.Debug("webhook_not_configured")
		return nil
	}

	if !c.breaker.Allow() {
		return fmt.Errorf("webhook circuit breaker %s", c.breaker.StateString())
	}

	body, contentType, err := c.buildWebhookRequest(notice)
	if err != nil {
		c.breaker.RecordFailure()
		return err
	}

	err = c.postWithRetry(ctx, c.webhookURL, body, contentType)
	if err != nil {
		c.breaker.RecordFailure()
		return err
	}

	c.breaker.RecordSuccess()
	return nil
}

func (c *Client) buildWebhookRequest(notice SubmissionNotice) ([]byte, string, error) {
	sub := notice.Submission

	fields := []webhookEmbedField{
		{Name: "Contributors", Value: contributorLines(sub.Contributors)},
		{Name: "Source", Value: sub.SourceRef},
		{Name: "Moderation", Value: fmt.Sprintf("[Review](%s/moderation?submission=%d)", strings.TrimRight(c.siteBase, "/"), sub.ID)},
	}

	embed := webhookEmbed{
		Title:       "New theme submission: " + sub.Title,
		Description: sub.Description,
		Color:       0x5865F2,
		Fields:      fields,
	}

	payload := webhookPayload{Username: "theme-vault", Embeds: []webhookEmbed{embed}}

	if len(notice.PreviewData) == 0 {
		// no embedded preview; fall back to whatever url the submitter gave
		if sub.Preview != "" && !strings.HasPrefix(sub.Preview, "data:") {
			payload.Embeds[0].Image = &webhookEmbedImage{URL: sub.Preview}
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, "", err
		}
		return raw, "application/json", nil
	}

	filename := "preview." + notice.PreviewExt
	payload.Embeds[0].Image = &webhookEmbedImage{URL: "attachment://" + filename}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("payload_json", string(raw)); err != nil {
		return nil, "", err
	}
	part, err := w.CreateFormFile("files[0]", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(notice.PreviewData); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *Client) postWithRetry(ctx context.Context, url string, body []byte, contentType string) error {
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()

			if resp.StatusCode < 300 {
				return nil
			}
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return fmt.Errorf("webhook rejected: status %d", resp.StatusCode)
			}
			lastErr = fmt.Errorf("webhook failed: status %d", resp.StatusCode)

			if attempt < c.retry.MaxRetries {
				var retryAfter time.Duration
				if s := resp.Header.Get("Retry-After"); s != "" {
					if secs, perr := strconv.ParseFloat(s, 64); perr == nil {
						retryAfter = time.Duration(secs * float64(time.Second))
					}
				}
				wait := CalculateBackoff(c.retry, attempt, retryAfter)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
				continue
			}
		}

		if attempt < c.retry.MaxRetries && lastErr != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(CalculateBackoff(c.retry, attempt, 0)):
			}
		}
	}

	return lastErr
}

func contributorLines(contributors map[string]models.Contributor) string {
	if len(contributors) == 0 {
		return "none"
	}
	ids := make([]string, 0, len(contributors))
	for id := range contributors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s (<@%s>)", contributors[id].Username, id)
	}
	return b.String()
}
