package submissions

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"theme-vault/internal/db"
	"theme-vault/internal/discord"
	"theme-vault/internal/models"
	"theme-vault/internal/storage"
)

type stubResolver struct {
	content string
	err     error
	calls   int
}

func (r *stubResolver) Resolve(_ context.Context, _ string) (string, error) {
	r.calls++
	return r.content, r.err
}

type stubDiscord struct {
	notices int
}

func (d *stubDiscord) NotifySubmission(_ context.Context, _ discord.SubmissionNotice) error {
	d.notices++
	return nil
}

func (d *stubDiscord) ResolveInvite(_ context.Context, _ string) (*models.Guild, error) {
	return nil, models.ErrNotFound
}

// newValidationOnlyService builds a Service whose db is never reached;
// every test here exercises the paths that fail before persistence.
func newValidationOnlyService(resolver *stubResolver) (*Service, *stubDiscord) {
	dc := &stubDiscord{}
	svc := NewService(slog.Default(), &db.DB{}, resolver, dc, storage.NewSimulator("", ""), "https://placeholder.example/p.png")
	return svc, dc
}

func validRequest() SubmitRequest {
	return SubmitRequest{
		Title:       "Midnight",
		Description: "a dark theme",
		SourceRef:   "https://raw.githubusercontent.com/x/y/main/theme.css",
		Contributors: map[string]models.Contributor{
			"123456789012345678": {Username: "alice"},
		},
	}
}

func TestSubmit_MissingFieldsFailWithoutPersisting(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
		field  string
	}{
		{"missing title", func(r *SubmitRequest) { r.Title = "" }, "title"},
		{"blank title", func(r *SubmitRequest) { r.Title = "   " }, "title"},
		{"missing description", func(r *SubmitRequest) { r.Description = "" }, "description"},
		{"missing source", func(r *SubmitRequest) { r.SourceRef = "" }, "source_ref"},
		{"missing contributors", func(r *SubmitRequest) { r.Contributors = nil }, "contributors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &stubResolver{content: "Ym9keXt9"}
			svc, dc := newValidationOnlyService(resolver)

			req := validRequest()
			tt.mutate(&req)

			_, err := svc.Submit(context.Background(), req, &models.Account{ID: "1"})

			var verr *models.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(verr.Error(), tt.field) {
				t.Errorf("error should name %q, got %q", tt.field, verr.Error())
			}
			if resolver.calls != 0 {
				t.Error("source must not be resolved for an invalid request")
			}
			if dc.notices != 0 {
				t.Error("no notification for an invalid request")
			}
		})
	}
}

func TestSubmit_AllFieldsMissingNamesAll(t *testing.T) {
	svc, _ := newValidationOnlyService(&stubResolver{})

	_, err := svc.Submit(context.Background(), SubmitRequest{}, &models.Account{ID: "1"})

	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, f := range []string{"title", "description", "source_ref", "contributors"} {
		if !strings.Contains(verr.Error(), f) {
			t.Errorf("error should name %q, got %q", f, verr.Error())
		}
	}
}

func TestSubmit_InvalidContributorID(t *testing.T) {
	svc, _ := newValidationOnlyService(&stubResolver{content: "Ym9keXt9"})

	req := validRequest()
	req.Contributors = map[string]models.Contributor{"not-a-snowflake": {Username: "bob"}}

	_, err := svc.Submit(context.Background(), req, &models.Account{ID: "1"})

	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSubmit_MalformedEmbeddedPreview(t *testing.T) {
	resolver := &stubResolver{content: "Ym9keXt9"}
	svc, _ := newValidationOnlyService(resolver)

	req := validRequest()
	req.Preview = "data:image/tiff;base64,AAAA"

	_, err := svc.Submit(context.Background(), req, &models.Account{ID: "1"})

	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if resolver.calls != 0 {
		t.Error("source must not be resolved when the preview is garbage")
	}
}

func TestSubmit_SourceResolutionFailureAbortsBeforePersist(t *testing.T) {
	resolver := &stubResolver{err: errors.New("status 404")}
	svc, dc := newValidationOnlyService(resolver)

	_, err := svc.Submit(context.Background(), validRequest(), &models.Account{ID: "1"})

	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), "source_ref") {
		t.Errorf("error should name source_ref, got %q", verr.Error())
	}
	if dc.notices != 0 {
		t.Error("no notification when the submission was never persisted")
	}
}

func TestApprove_RequiresAdmin(t *testing.T) {
	svc, _ := newValidationOnlyService(&stubResolver{})

	_, err := svc.Approve(context.Background(), 1, nil, &models.Account{ID: "1", IsAdmin: false})
	if !errors.Is(err, models.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	if err := svc.Reject(context.Background(), 1, &models.Account{ID: "1"}); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestAuthorsFromContributors_DeterministicOrder(t *testing.T) {
	authors := authorsFromContributors(map[string]models.Contributor{
		"300000000000000003": {Username: "carol"},
		"100000000000000001": {Username: "alice"},
		"200000000000000002": {Username: "bob"},
	})

	if len(authors) != 3 {
		t.Fatalf("expected 3 authors, got %d", len(authors))
	}
	if authors[0].Name != "alice" || authors[1].Name != "bob" || authors[2].Name != "carol" {
		t.Errorf("authors not sorted by id: %+v", authors)
	}
}
