package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tracker/internal/models"
)

const (
	requestIDKey  = "request_id"
	requestHeader = "X-Request-ID"
	userKey       = "user"
	boardKey      = "board"
)

// requestID tags every request with an id, reusing the caller's header when set.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestHeader, id)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("http request", fields...)
			return
		}

		logger.Info("http request", fields...)
	}
}

// authenticate resolves the caller from HTTP basic auth.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="tracker"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		user, err := s.deps.Users.Authenticate(c.Request.Context(), username, []byte(password))
		if err != nil {
			if statusFor(err) == http.StatusNotFound {
				c.Header("WWW-Authenticate", `Basic realm="tracker"`)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			s.respondError(c, err)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// loadBoard resolves /:username/:symbol to a board without checking permissions.
func (s *Server) loadBoard() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		owner, err := s.deps.Users.ByUsername(ctx, c.Param("username"))
		if err != nil {
			s.respondError(c, err)
			return
		}
		b, err := s.deps.Boards.GetByCreatorSymbol(ctx, owner.ID, c.Param("symbol"))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.Set(boardKey, b)
		c.Next()
	}
}

func currentUser(c *gin.Context) models.User {
	u, _ := c.MustGet(userKey).(models.User)
	return u
}

func currentBoard(c *gin.Context) models.Board {
	b, _ := c.MustGet(boardKey).(models.Board)
	return b
}

// authorize checks action on the current board and writes the refusal itself.
func (s *Server) authorize(c *gin.Context, action models.Action) bool {
	if err := s.deps.Guard.Require(c.Request.Context(), currentBoard(c), currentUser(c).ID, action); err != nil {
		s.respondError(c, err)
		return false
	}
	return true
}
