package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"theme-vault/internal/db"
	"theme-vault/internal/logging"
	"theme-vault/internal/models"
	"theme-vault/internal/security"
)

// Service owns the accounts table: token resolution for every authorized
// request plus the account lifecycle (created on first identity exchange,
// token rotate/revoke, delete).
type Service struct {
	log *slog.Logger
	db  *db.DB
}

func NewService(log *slog.Logger, dbConn *db.DB) *Service {
	return &Service{log: log, db: dbConn}
}

// Resolve maps an opaque bearer token to the owning account. Unknown
// tokens return models.ErrNotFound; callers decide how that surfaces.
func (s *Service) Resolve(ctx context.Context, token string) (*models.Account, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, models.ErrNotFound
	}

	var a models.Account
	err := s.db.Pool.QueryRow(ctx,
		`SELECT id, username, avatar, color, is_admin, github_handle, created_at
		 FROM accounts
		 WHERE auth_token = $1`,
		token,
	).Scan(&a.ID, &a.Username, &a.Avatar, &a.Color, &a.IsAdmin, &a.GithubHandle, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		s.log.Debug("token_miss", "token", logging.MaskToken(token))
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account lookup: %w", err)
	}
	return &a, nil
}

// Upsert records the profile returned by the identity exchange and hands
// back a fresh bearer token. Repeat logins refresh profile fields and
// rotate the token.
func (s *Service) Upsert(ctx context.Context, id, username, avatar, color string) (string, error) {
	if _, err := security.ParseSnowflake(id); err != nil {
		return "", &models.ValidationError{Fields: []string{"id"}}
	}

	token, err := security.NewAuthToken()
	if err != nil {
		return "", err
	}

	_, err = s.db.Pool.Exec(ctx,
		`INSERT INTO accounts (id, username, avatar, color, auth_token)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET username = EXCLUDED.username,
		     avatar = EXCLUDED.avatar,
		     color = EXCLUDED.color,
		     auth_token = EXCLUDED.auth_token`,
		id, username, avatar, color, token,
	)
	if err != nil {
		return "", fmt.Errorf("account upsert: %w", err)
	}

	s.log.Info("account_upserted", "account_id", id)
	return token, nil
}

// RefreshToken rotates the opaque token for an account. The old token stops
// resolving the moment the update lands.
func (s *Service) RefreshToken(ctx context.Context, accountID string) (string, error) {
	token, err := security.NewAuthToken()
	if err != nil {
		return "", err
	}

	tag, err := s.db.Pool.Exec(ctx,
		`UPDATE accounts SET auth_token = $2 WHERE id = $1`,
		accountID, token,
	)
	if err != nil {
		return "", fmt.Errorf("token refresh: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", models.ErrNotFound
	}

	s.log.Info("token_refreshed", "account_id", accountID)
	return token, nil
}

// RevokeToken logs the account out everywhere.
func (s *Service) RevokeToken(ctx context.Context, accountID string) error {
	tag, err := s.db.Pool.Exec(ctx,
		`UPDATE accounts SET auth_token = NULL WHERE id = $1`,
		accountID,
	)
	if err != nil {
		return fmt.Errorf("token revoke: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, accountID string) error {
	tag, err := s.db.Pool.Exec(ctx,
		`DELETE FROM accounts WHERE id = $1`,
		accountID,
	)
	if err != nil {
		return fmt.Errorf("account delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	s.log.Info("account_deleted", "account_id", accountID)
	return nil
}
