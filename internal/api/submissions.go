package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"theme-vault/internal/submissions"
)

// submit/approve talk to external collaborators (source fetch, webhook,
// thumbnail upload); they get a longer budget than plain CRUD.
func (s *Server) longCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 30*time.Second)
}

func (s *Server) createSubmission(c *gin.Context) {
	acct := s.requireAccount(c)
	if acct == nil {
		return
	}

	var req submissions.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "body must be valid json"}})
		return
	}

	ctx, cancel := s.longCtx(c)
	defer cancel()

	id, err := s.subs.Submit(ctx, req, acct)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"submission_id": id})
}

func (s *Server) listPendingSubmissions(c *gin.Context) {
	if s.requireAdmin(c) == nil {
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	pending, err := s.subs.ListPending(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": pending, "count": len(pending)})
}

// getSubmission backs the moderation deep links in webhook notices.
func (s *Server) getSubmission(c *gin.Context) {
	if s.requireAdmin(c) == nil {
		return
	}
	id, ok := submissionID(c)
	if !ok {
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	sub, err := s.subs.Get(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func submissionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "id must be a positive integer"}})
		return 0, false
	}
	return id, true
}

func (s *Server) approveSubmission(c *gin.Context) {
	mod := s.requireAdmin(c)
	if mod == nil {
		return
	}
	id, ok := submissionID(c)
	if !ok {
		return
	}

	var req struct {
		Tags []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "body must be valid json"}})
		return
	}

	ctx, cancel := s.longCtx(c)
	defer cancel()

	title, err := s.subs.Approve(ctx, id, req.Tags, mod)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "title": title})
}

func (s *Server) rejectSubmission(c *gin.Context) {
	mod := s.requireAdmin(c)
	if mod == nil {
		return
	}
	id, ok := submissionID(c)
	if !ok {
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.subs.Reject(ctx, id, mod); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
