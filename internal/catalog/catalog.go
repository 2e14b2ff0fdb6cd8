package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"theme-vault/internal/db"
	"theme-vault/internal/models"
	"theme-vault/internal/redis"
)

const (
	cacheTTL      = 5 * time.Minute
	downloadsTTL  = 48 * time.Hour
	maxListLength = 100
)

// Service is the public catalog: browsing plus the engagement ledger
// (likes and download counting) on published themes.
type Service struct {
	log   *slog.Logger
	db    db.Querier
	cache *redis.Client
}

func NewService(log *slog.Logger, q db.Querier, cache *redis.Client) *Service {
	return &Service{log: log, db: q, cache: cache}
}

type Filter struct {
	Tag    string
	Query  string
	Sort   string // likes | downloads | date
	Limit  int
	Offset int
}

const themeColumns = `id, name, description, long_description, content_b64, version, tags, authors, thumbnail, source_ref, guild, likes, downloads, release_date`

func scanTheme(row pgx.Row) (*models.Theme, error) {
	var t models.Theme
	var authorsJSON, guildJSON []byte

	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.LongDescription, &t.Content, &t.Version,
		&t.Tags, &authorsJSON, &t.Thumbnail, &t.SourceRef, &guildJSON, &t.Likes, &t.Downloads, &t.ReleaseDate)
	if err != nil {
		return nil, err
	}

	if len(authorsJSON) > 0 {
		json.Unmarshal(authorsJSON, &t.Authors)
	}
	if len(guildJSON) > 0 {
		json.Unmarshal(guildJSON, &t.Guild)
	}
	return &t, nil
}

// List returns catalog entries matching the filter. Cached per filter for
// a few minutes; engagement counters in lists may lag by that much.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Theme, error) {
	if f.Limit <= 0 || f.Limit > maxListLength {
		f.Limit = maxListLength
	}

	cacheKey := fmt.Sprintf("themes:list:%s:%s:%s:%d:%d", f.Tag, f.Query, f.Sort, f.Limit, f.Offset)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
			var out []models.Theme
			if json.Unmarshal([]byte(cached), &out) == nil {
				return out, nil
			}
		}
	}

	order := "release_date DESC"
	switch f.Sort {
	case "likes":
		order = "likes DESC, release_date DESC"
	case "downloads":
		order = "downloads DESC, release_date DESC"
	}

	where := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)
	if f.Tag != "" {
		args = append(args, strings.ToLower(f.Tag))
		where = append(where, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	q := "SELECT " + themeColumns + " FROM themes"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit)
	q += fmt.Sprintf(" ORDER BY %s LIMIT $%d", order, len(args))
	args = append(args, f.Offset)
	q += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("theme list: %w", err)
	}
	defer rows.Close()

	out := make([]models.Theme, 0, f.Limit)
	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(out); err == nil {
			s.cache.Set(ctx, cacheKey, string(raw), cacheTTL)
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Theme, error) {
	cacheKey := fmt.Sprintf("theme:%d", id)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
			var t models.Theme
			if json.Unmarshal([]byte(cached), &t) == nil {
				return &t, nil
			}
		}
	}

	t, err := scanTheme(s.db.QueryRow(ctx,
		"SELECT "+themeColumns+" FROM themes WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("theme lookup: %w", err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(t); err == nil {
			s.cache.Set(ctx, cacheKey, string(raw), cacheTTL)
		}
	}
	return t, nil
}

// Like adds the account to the theme's like set. The membership table is
// ground truth; the denormalized counter moves in the same transaction so
// the two cannot drift. Already-liked is a conflict.
func (s *Service) Like(ctx context.Context, themeID int64, accountID string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("like tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE themes SET likes = likes + 1 WHERE id = $1`, themeID)
	if err != nil {
		return fmt.Errorf("like counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	tag, err = tx.Exec(ctx,
		`INSERT INTO theme_likes (theme_id, account_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		themeID, accountID)
	if err != nil {
		return fmt.Errorf("like membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("like commit: %w", err)
	}

	s.invalidate(ctx, themeID)
	return nil
}

// Unlike removes the account from the like set; not-a-member is a conflict.
func (s *Service) Unlike(ctx context.Context, themeID int64, accountID string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("unlike tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM theme_likes WHERE theme_id = $1 AND account_id = $2`,
		themeID, accountID)
	if err != nil {
		return fmt.Errorf("unlike membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// distinguish unknown theme from not-liked
		var exists bool
		if qerr := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM themes WHERE id = $1)`, themeID).Scan(&exists); qerr == nil && !exists {
			return models.ErrNotFound
		}
		return models.ErrConflict
	}

	if _, err := tx.Exec(ctx,
		`UPDATE themes SET likes = GREATEST(likes - 1, 0) WHERE id = $1`, themeID); err != nil {
		return fmt.Errorf("unlike counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("unlike commit: %w", err)
	}

	s.invalidate(ctx, themeID)
	return nil
}

// Download returns the theme's content blob and bumps the download counter
// best-effort: a failed increment is logged, never surfaced, and the
// content is served regardless.
func (s *Service) Download(ctx context.Context, themeID int64) (*models.Theme, error) {
	t, err := s.Get(ctx, themeID)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(ctx,
		`UPDATE themes SET downloads = downloads + 1 WHERE id = $1`, themeID); err != nil {
		s.log.Warn("download_count_failed", "theme_id", themeID, "error", err)
	} else {
		s.invalidate(ctx, themeID)
		if s.cache != nil {
			// daily tally for /health, best-effort as well
			key := "downloads:" + time.Now().UTC().Format("2006-01-02")
			if _, err := s.cache.Increment(ctx, key, downloadsTTL); err != nil {
				s.log.Debug("download_tally_failed", "error", err)
			}
		}
	}

	return t, nil
}

// DownloadsToday reads the best-effort daily tally for health reporting.
func (s *Service) DownloadsToday(ctx context.Context) int64 {
	if s.cache == nil {
		return 0
	}
	n, err := s.cache.GetInt(ctx, "downloads:"+time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		return 0
	}
	return n
}

func (s *Service) invalidate(ctx context.Context, themeID int64) {
	if s.cache == nil {
		return
	}
	// list cache entries just age out on their ttl
	if err := s.cache.Del(ctx, fmt.Sprintf("theme:%d", themeID)); err != nil {
		s.log.Debug("cache_invalidate_failed", "theme_id", themeID, "error", err)
	}
}
