package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"theme-vault/internal/catalog"
	"theme-vault/internal/config"
	"theme-vault/internal/db"
	"theme-vault/internal/models"
	"theme-vault/internal/redis"
	"theme-vault/internal/security"
	"theme-vault/internal/submissions"
)

// IdentityProvider redeems an authorization code for the profile the
// identity provider vouches for. The login surface never accepts a
// client-asserted profile.
type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code string) (*models.Identity, error)
}

// Service boundaries the handlers talk through; tests swap in stubs.
type AccountService interface {
	Resolve(ctx context.Context, token string) (*models.Account, error)
	Upsert(ctx context.Context, id, username, avatar, color string) (string, error)
	RefreshToken(ctx context.Context, accountID string) (string, error)
	RevokeToken(ctx context.Context, accountID string) error
	Delete(ctx context.Context, accountID string) error
}

type SubmissionService interface {
	Submit(ctx context.Context, req submissions.SubmitRequest, submitter *models.Account) (int64, error)
	Get(ctx context.Context, id int64) (*models.Submission, error)
	ListPending(ctx context.Context) ([]models.Submission, error)
	Approve(ctx context.Context, id int64, tags []string, moderator *models.Account) (string, error)
	Reject(ctx context.Context, id int64, moderator *models.Account) error
}

type CatalogService interface {
	List(ctx context.Context, f catalog.Filter) ([]models.Theme, error)
	Get(ctx context.Context, id int64) (*models.Theme, error)
	Like(ctx context.Context, themeID int64, accountID string) error
	Unlike(ctx context.Context, themeID int64, accountID string) error
	Download(ctx context.Context, themeID int64) (*models.Theme, error)
	DownloadsToday(ctx context.Context) int64
}

type Server struct {
	log       *slog.Logger
	db        *db.DB
	redis     *redis.Client
	cfg       config.Config
	router    *gin.Engine
	admission *security.Admission

	identity IdentityProvider
	accounts AccountService
	subs     SubmissionService
	catalog  CatalogService
}

func NewServer(log *slog.Logger, dbConn *db.DB, redisClient *redis.Client, cfg config.Config,
	identity IdentityProvider, accountSvc AccountService, subSvc SubmissionService, catalogSvc CatalogService) *Server {

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		log:       log,
		db:        dbConn,
		redis:     redisClient,
		cfg:       cfg,
		router:    gin.New(),
		admission: security.NewAdmission(),
		identity:  identity,
		accounts:  accountSvc,
		subs:      subSvc,
		catalog:   catalogSvc,
	}

	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.inputValidationMiddleware())
	r.Use(s.admissionMiddleware())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/themes", s.listThemes)
		v1.GET("/themes/:id", s.getTheme)
		v1.GET("/themes/:id/download", s.downloadTheme)
		v1.PUT("/themes/:id/like", s.likeTheme)
		v1.DELETE("/themes/:id/like", s.unlikeTheme)

		v1.POST("/submissions", s.createSubmission)
		v1.GET("/submissions", s.listPendingSubmissions)
		v1.GET("/submissions/:id", s.getSubmission)
		v1.POST("/submissions/:id/approve", s.approveSubmission)
		v1.POST("/submissions/:id/reject", s.rejectSubmission)

		v1.POST("/users/login", s.login)
		v1.GET("/users/@me", s.getSelf)
		v1.POST("/users/@me/token", s.refreshToken)
		v1.DELETE("/users/@me/token", s.logout)
		v1.DELETE("/users/@me", s.deleteAccount)
	}

	// health lives outside /api so probes bypass admission
	r.GET("/health", s.health)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}
