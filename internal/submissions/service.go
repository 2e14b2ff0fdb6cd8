package submissions

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/microcosm-cc/bluemonday"

	"theme-vault/internal/db"
	"theme-vault/internal/discord"
	"theme-vault/internal/models"
	"theme-vault/internal/security"
	"theme-vault/internal/storage"
)

// SourceResolver turns a source reference into base64 theme content.
type SourceResolver interface {
	Resolve(ctx context.Context, sourceRef string) (string, error)
}

// DiscordAPI is the slice of the discord client the lifecycle needs.
type DiscordAPI interface {
	NotifySubmission(ctx context.Context, notice discord.SubmissionNotice) error
	ResolveInvite(ctx context.Context, code string) (*models.Guild, error)
}

// Service runs the submission lifecycle: intake of new submissions and the
// pending -> approved/rejected state machine with its publication side
// effects.
type Service struct {
	log      *slog.Logger
	db       *db.DB
	source   SourceResolver
	dc       DiscordAPI
	store    storage.Client
	sanitize *bluemonday.Policy

	placeholderPreview string
	httpClient         *http.Client
}

func NewService(log *slog.Logger, dbConn *db.DB, source SourceResolver, dc DiscordAPI, store storage.Client, placeholderPreview string) *Service {
	return &Service{
		log:                log,
		db:                 dbConn,
		source:             source,
		dc:                 dc,
		store:              store,
		sanitize:           bluemonday.StrictPolicy(),
		placeholderPreview: placeholderPreview,
		httpClient:         &http.Client{Timeout: 15 * time.Second},
	}
}

type SubmitRequest struct {
	Title        string                        `json:"title"`
	Description  string                        `json:"description"`
	SourceRef    string                        `json:"source_ref"`
	Preview      string                        `json:"preview"`
	Contributors map[string]models.Contributor `json:"contributors"`
}

// Submit validates and records a new pending submission. Source resolution
// failures abort before anything is persisted; notification failures after
// the insert are degraded success, reported only in logs.
func (s *Service) Submit(ctx context.Context, req SubmitRequest, submitter *models.Account) (int64, error) {
	var missing []string
	if strings.TrimSpace(req.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(req.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(req.SourceRef) == "" {
		missing = append(missing, "source_ref")
	}
	if len(req.Contributors) == 0 {
		missing = append(missing, "contributors")
	}
	if len(missing) > 0 {
		return 0, &models.ValidationError{Fields: missing}
	}

	for id := range req.Contributors {
		if _, err := security.ParseSnowflake(id); err != nil {
			return 0, &models.ValidationError{Fields: []string{"contributors"}}
		}
	}

	// an embedded preview must at least parse; catching it here keeps
	// garbage out of the moderation queue
	preview := strings.TrimSpace(req.Preview)
	var previewData []byte
	var previewExt string
	if strings.HasPrefix(preview, "data:") {
		_, ext, data, err := ParseDataURL(preview)
		if err != nil {
			return 0, &models.ValidationError{Fields: []string{"preview"}}
		}
		previewData, previewExt = data, ext
	}
	if preview == "" {
		preview = s.placeholderPreview
	}

	content, err := s.source.Resolve(ctx, req.SourceRef)
	if err != nil {
		s.log.Warn("source_resolve_failed", "source_ref", req.SourceRef, "error", err)
		return 0, &models.ValidationError{Fields: []string{"source_ref"}}
	}

	contribJSON, err := json.Marshal(req.Contributors)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.db.Pool.QueryRow(ctx,
		`INSERT INTO submissions (title, description, source_ref, content_b64, preview, contributors, submitter_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		strings.TrimSpace(req.Title), req.Description, strings.TrimSpace(req.SourceRef),
		content, preview, contribJSON, submitter.ID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("submission insert: %w", err)
	}

	s.log.Info("submission_created", "submission_id", id, "submitter_id", submitter.ID, "title", req.Title)

	notice := discord.SubmissionNotice{
		Submission: &models.Submission{
			ID:           id,
			Title:        req.Title,
			Description:  req.Description,
			SourceRef:    req.SourceRef,
			Preview:      preview,
			Contributors: req.Contributors,
		},
		PreviewData: previewData,
		PreviewExt:  previewExt,
	}
	if err := s.dc.NotifySubmission(ctx, notice); err != nil {
		// the record is committed; a dead webhook must not fail the caller
		s.log.Warn("submission_notify_failed", "submission_id", id, "error", err)
	}

	return id, nil
}

// Get returns one submission by id.
func (s *Service) Get(ctx context.Context, id int64) (*models.Submission, error) {
	return s.loadSubmission(ctx, id)
}

// ListPending returns the moderation queue, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]models.Submission, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, title, description, source_ref, preview, contributors, submitter_id, state, submitted_at
		 FROM submissions
		 WHERE state = 'pending'
		 ORDER BY submitted_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("pending query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Submission, 0, 16)
	for rows.Next() {
		var sub models.Submission
		var contribJSON []byte
		if err := rows.Scan(&sub.ID, &sub.Title, &sub.Description, &sub.SourceRef, &sub.Preview,
			&contribJSON, &sub.SubmitterID, &sub.State, &sub.SubmittedAt); err != nil {
			return nil, err
		}
		if len(contribJSON) > 0 {
			json.Unmarshal(contribJSON, &sub.Contributors)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Approve publishes a pending submission into the catalog. External side
// effects (preview decode, invite resolution, thumbnail upload) run first;
// the terminal state stamp and the catalog insert share one transaction,
// so a failure anywhere leaves the submission pending and retriable.
func (s *Service) Approve(ctx context.Context, id int64, tags []string, moderator *models.Account) (string, error) {
	if moderator == nil || !moderator.IsAdmin {
		return "", models.ErrForbidden
	}

	sub, err := s.loadSubmission(ctx, id)
	if err != nil {
		return "", err
	}
	if sub.State != models.StatePending {
		return "", models.ErrInvalidState
	}

	mime, ext, previewData, err := s.previewBytes(ctx, sub.Preview)
	if err != nil {
		s.log.Warn("approve_preview_invalid", "submission_id", id, "error", err)
		return "", &models.ValidationError{Fields: []string{"preview"}}
	}

	rawCSS, err := base64.StdEncoding.DecodeString(sub.Content)
	if err != nil {
		return "", &models.ValidationError{Fields: []string{"content"}}
	}

	meta := ExtractMeta(string(rawCSS))
	version := meta.Version
	if version == "" {
		version = "1.0.0"
	}

	var guild *models.Guild
	if meta.Invite != "" {
		guild, err = s.dc.ResolveInvite(ctx, meta.Invite)
		if errors.Is(err, models.ErrNotFound) {
			return "", &models.ValidationError{Fields: []string{"invite"}}
		}
		if err != nil {
			return "", &models.UpstreamError{Op: "invite_lookup", Err: err}
		}
	}

	var themeID int64
	if err := s.db.Pool.QueryRow(ctx, `SELECT nextval('themes_id_seq')`).Scan(&themeID); err != nil {
		return "", fmt.Errorf("theme id allocation: %w", err)
	}

	thumbKey := fmt.Sprintf("thumbnails/%s-%d.%s", Slug(sub.Title), themeID, ext)
	thumbURL, err := s.store.UploadThumbnail(ctx, thumbKey, previewData, mime)
	if err != nil {
		return "", &models.UpstreamError{Op: "thumbnail_upload", Err: err}
	}

	authors := authorsFromContributors(sub.Contributors)
	authorsJSON, err := json.Marshal(authors)
	if err != nil {
		return "", err
	}

	var guildJSON []byte
	if guild != nil {
		if guildJSON, err = json.Marshal(guild); err != nil {
			return "", err
		}
	}

	modJSON, err := json.Marshal(models.Moderator{ID: moderator.ID, Name: moderator.Username, Avatar: moderator.Avatar})
	if err != nil {
		return "", err
	}

	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("approve tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO themes (id, name, description, content_b64, version, tags, authors, thumbnail, source_ref, guild, likes, downloads, release_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, 0, NOW())`,
		themeID, sub.Title, s.sanitize.Sanitize(sub.Description), sub.Content, version,
		dedupeTags(tags), authorsJSON, thumbURL, sub.SourceRef, guildJSON,
	)
	if err != nil {
		return "", fmt.Errorf("theme insert: %w", err)
	}

	// the state guard makes the transition race-safe under concurrent
	// moderators: whoever commits first wins, the loser rolls back whole
	tag, err := tx.Exec(ctx,
		`UPDATE submissions
		 SET state = 'approved', moderator = $2,
		     preview = '', contributors = '{}'::jsonb, submitter_id = NULL
		 WHERE id = $1 AND state = 'pending'`,
		id, modJSON,
	)
	if err != nil {
		return "", fmt.Errorf("approve stamp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", models.ErrInvalidState
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("approve commit: %w", err)
	}

	s.log.Info("submission_approved", "submission_id", id, "theme_id", themeID, "moderator_id", moderator.ID)
	return sub.Title, nil
}

// Reject stamps a pending submission as rejected. Terminal; no publication
// side effects.
func (s *Service) Reject(ctx context.Context, id int64, moderator *models.Account) error {
	if moderator == nil || !moderator.IsAdmin {
		return models.ErrForbidden
	}

	sub, err := s.loadSubmission(ctx, id)
	if err != nil {
		return err
	}
	if sub.State != models.StatePending {
		return models.ErrInvalidState
	}

	modJSON, err := json.Marshal(models.Moderator{ID: moderator.ID, Name: moderator.Username, Avatar: moderator.Avatar})
	if err != nil {
		return err
	}

	tag, err := s.db.Pool.Exec(ctx,
		`UPDATE submissions
		 SET state = 'rejected', moderator = $2,
		     preview = '', contributors = '{}'::jsonb, submitter_id = NULL
		 WHERE id = $1 AND state = 'pending'`,
		id, modJSON,
	)
	if err != nil {
		return fmt.Errorf("reject stamp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInvalidState
	}

	s.log.Info("submission_rejected", "submission_id", id, "moderator_id", moderator.ID)
	return nil
}

func (s *Service) loadSubmission(ctx context.Context, id int64) (*models.Submission, error) {
	var sub models.Submission
	var contribJSON, modJSON []byte

	err := s.db.Pool.QueryRow(ctx,
		`SELECT id, title, description, source_ref, content_b64, preview, contributors, submitter_id, state, submitted_at, moderator
		 FROM submissions
		 WHERE id = $1`,
		id,
	).Scan(&sub.ID, &sub.Title, &sub.Description, &sub.SourceRef, &sub.Content, &sub.Preview,
		&contribJSON, &sub.SubmitterID, &sub.State, &sub.SubmittedAt, &modJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("submission lookup: %w", err)
	}

	if len(contribJSON) > 0 {
		json.Unmarshal(contribJSON, &sub.Contributors)
	}
	if len(modJSON) > 0 {
		json.Unmarshal(modJSON, &sub.Moderator)
	}
	return &sub, nil
}

// previewBytes resolves the stored preview (data url or plain url) into
// raw image bytes with a recognized MIME shape.
func (s *Service) previewBytes(ctx context.Context, preview string) (mime, ext string, data []byte, err error) {
	if strings.HasPrefix(preview, "data:") {
		return ParseDataURL(preview)
	}
	if !strings.HasPrefix(preview, "http://") && !strings.HasPrefix(preview, "https://") {
		return "", "", nil, fmt.Errorf("preview is neither a data url nor a url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, preview, nil)
	if err != nil {
		return "", "", nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", "", nil, fmt.Errorf("preview fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", nil, fmt.Errorf("preview fetch: status %d", resp.StatusCode)
	}

	mime, _, _ = strings.Cut(resp.Header.Get("Content-Type"), ";")
	mime = strings.TrimSpace(mime)
	ext, ok := imageExts[mime]
	if !ok {
		return "", "", nil, fmt.Errorf("unrecognized preview content type %q", mime)
	}

	data, err = io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", "", nil, err
	}
	if len(data) == 0 {
		return "", "", nil, fmt.Errorf("empty preview body")
	}
	return mime, ext, data, nil
}

func authorsFromContributors(contributors map[string]models.Contributor) []models.Author {
	ids := make([]string, 0, len(contributors))
	for id := range contributors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	authors := make([]models.Author, 0, len(ids))
	for _, id := range ids {
		c := contributors[id]
		authors = append(authors, models.Author{ID: id, Name: c.Username, Avatar: c.Avatar})
	}
	return authors
}

func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
