package api

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"theme-vault/internal/catalog"
)

func themeID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "id must be a positive integer"}})
		return 0, false
	}
	return id, true
}

func (s *Server) listThemes(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	themes, err := s.catalog.List(ctx, catalog.Filter{
		Tag:    c.Query("tag"),
		Query:  c.Query("q"),
		Sort:   c.Query("sort"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"themes": themes, "count": len(themes)})
}

func (s *Server) getTheme(c *gin.Context) {
	id, ok := themeID(c)
	if !ok {
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	theme, err := s.catalog.Get(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, theme)
}

func (s *Server) downloadTheme(c *gin.Context) {
	id, ok := themeID(c)
	if !ok {
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	theme, err := s.catalog.Download(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	raw, err := base64.StdEncoding.DecodeString(theme.Content)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+theme.Name+`.theme.css"`)
	c.Data(http.StatusOK, "text/css; charset=utf-8", raw)
}

func (s *Server) likeTheme(c *gin.Context) {
	acct := s.requireAccount(c)
	if acct == nil {
		return
	}
	id, ok := themeID(c)
	if !ok {
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.catalog.Like(ctx, id, acct.ID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) unlikeTheme(c *gin.Context) {
	acct := s.requireAccount(c)
	if acct == nil {
		return
	}
	id, ok := themeID(c)
	if !ok {
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.catalog.Unlike(ctx, id, acct.ID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// login is the identity exchange: the frontend hands over the
// authorization code from the provider's consent redirect, the provider
// tells us whose code it is, and the caller receives this service's
// opaque bearer token. Repeat logins rotate the token. The request body
// carries only the code; profile fields are taken from the provider,
// never from the caller.
func (s *Server) login(c *gin.Context) {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "body must be valid json"}})
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "missing authorization code"}})
		return
	}

	ctx, cancel := s.longCtx(c)
	defer cancel()

	ident, err := s.identity.ExchangeCode(ctx, req.Code)
	if err != nil {
		s.writeError(c, err)
		return
	}

	token, err := s.accounts.Upsert(ctx, ident.ID, ident.Username, ident.Avatar, ident.Color)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) getSelf(c *gin.Context) {
	acct := s.requireAccount(c)
	if acct == nil {
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (s *Server) refreshToken(c *gin.Context) {
	acct := s.requireAccount(c)
	if acct == nil {
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	token, err := s.accounts.RefreshToken(ctx, acct.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) logout(c *gin.Context) {
	acct := s.requireAccount(c)
	if acct == nil {
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.accounts.RevokeToken(ctx, acct.ID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) deleteAccount(c *gin.Context) {
	acct := s.requireAccount(c)
	if acct == nil {
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.accounts.Delete(ctx, acct.ID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	dbStatus := "connected"
	if err := s.db.Pool.Ping(ctx); err != nil {
		dbStatus = "disconnected"
	}

	redisStatus := "connected"
	if s.redis == nil {
		redisStatus = "not_configured"
	} else if err := s.redis.RDB().Ping(ctx).Err(); err != nil {
		redisStatus = "disconnected"
	}

	var pendingCount int64
	s.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM submissions WHERE state = 'pending'`).Scan(&pendingCount)

	status := "healthy"
	code := http.StatusOK
	if dbStatus != "connected" {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":              status,
		"database":            dbStatus,
		"redis":               redisStatus,
		"pending_submissions": pendingCount,
		"downloads_today":     s.catalog.DownloadsToday(ctx),
	})
}
