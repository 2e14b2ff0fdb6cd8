package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"theme-vault/internal/models"
)

// writeError maps the service error taxonomy onto the response envelope.
// Every failure is terminal for its operation; nothing here retries.
func (s *Server) writeError(c *gin.Context, err error) {
	var verr *models.ValidationError
	var uerr *models.UpstreamError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": verr.Error()}})
	case errors.Is(err, models.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "unauthenticated", "message": "token does not resolve to an account"}})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"code": "forbidden", "message": "insufficient privileges"}})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_found", "message": "resource not found"}})
	case errors.Is(err, models.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{"code": "invalid_state", "message": "operation not valid for the current lifecycle state"}})
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{"code": "conflict", "message": "conflicting engagement state"}})
	case errors.As(err, &uerr):
		s.log.Error("upstream_failure", "op", uerr.Op, "error", uerr.Err)
		c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"code": "upstream_error", "message": "a collaborator failed: " + uerr.Op}})
	default:
		s.log.Error("internal_error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal_error", "message": "internal error"}})
	}
}

// bearerToken pulls the opaque token off the request; empty means the
// caller sent none, which is a malformed request rather than a failed
// authorization.
func bearerToken(c *gin.Context) string {
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return auth
}

// requireAccount resolves the bearer token or writes the failure and
// returns nil.
func (s *Server) requireAccount(c *gin.Context) *models.Account {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "missing bearer token"}})
		return nil
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	acct, err := s.accounts.Resolve(ctx, token)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "unauthenticated", "message": "token does not resolve to an account"}})
		return nil
	}
	if err != nil {
		s.writeError(c, err)
		return nil
	}
	return acct
}

// requireAdmin is requireAccount plus the moderator role check.
func (s *Server) requireAdmin(c *gin.Context) *models.Account {
	acct := s.requireAccount(c)
	if acct == nil {
		return nil
	}
	if !acct.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"code": "forbidden", "message": "moderator role required"}})
		return nil
	}
	return acct
}
