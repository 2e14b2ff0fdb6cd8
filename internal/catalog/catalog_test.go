package catalog

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"theme-vault/internal/models"
)

func newMockService(t *testing.T) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewService(slog.Default(), mock, nil), mock
}

func themeRow(id int64, downloads int) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "name", "description", "long_description", "content_b64", "version",
		"tags", "authors", "thumbnail", "source_ref", "guild", "likes", "downloads", "release_date",
	}).AddRow(
		id, "Midnight", "a dark theme", nil, "Ym9keXt9", "1.0.0",
		[]string{"dark"}, []byte(`[{"id":"1","name":"alice"}]`), "https://cdn.example/t.png",
		"x/y/main/theme.css", nil, 7, downloads, time.Unix(1700000000, 0),
	)
}

func TestDownload_ServesContentWhenCounterWriteFails(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(`SELECT .+ FROM themes WHERE id`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(themeRow(42, 10))
	mock.ExpectExec(`UPDATE themes SET downloads = downloads \+ 1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(errors.New("write timeout"))

	theme, err := svc.Download(context.Background(), 42)
	if err != nil {
		t.Fatalf("a failed counter write must not block delivery: %v", err)
	}
	if theme == nil || theme.Content != "Ym9keXt9" {
		t.Errorf("content not served: %+v", theme)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDownload_CountsOnSuccess(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(`SELECT .+ FROM themes WHERE id`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(themeRow(42, 10))
	mock.ExpectExec(`UPDATE themes SET downloads = downloads \+ 1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if _, err := svc.Download(context.Background(), 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGet_Unknown(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(`SELECT .+ FROM themes WHERE id`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	if _, err := svc.Get(context.Background(), 999); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLike_AlreadyLikedIsConflict(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE themes SET likes = likes \+ 1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO theme_likes`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	err := svc.Like(context.Background(), 3, "80351110224678912")
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLike_UnknownTheme(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE themes SET likes = likes \+ 1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	if err := svc.Like(context.Background(), 999, "80351110224678912"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// like, unlike, unlike again: the second unlike conflicts and the counter
// statements run exactly once each way, so the net effect is zero.
func TestLikeUnlikeUnlike_NetZero(t *testing.T) {
	svc, mock := newMockService(t)
	ctx := context.Background()
	account := "80351110224678912"

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE themes SET likes = likes \+ 1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO theme_likes`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM theme_likes`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`UPDATE themes SET likes = GREATEST`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM theme_likes`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	if err := svc.Like(ctx, 3, account); err != nil {
		t.Fatalf("like: %v", err)
	}
	if err := svc.Unlike(ctx, 3, account); err != nil {
		t.Fatalf("unlike: %v", err)
	}
	if err := svc.Unlike(ctx, 3, account); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("second unlike should conflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUnlike_UnknownTheme(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM theme_likes`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	if err := svc.Unlike(context.Background(), 999, "80351110224678912"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
