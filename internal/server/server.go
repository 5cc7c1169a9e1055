package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tracker/internal/access"
	"tracker/internal/auth"
	"tracker/internal/board"
	"tracker/internal/events"
	"tracker/internal/models"
	"tracker/internal/search"
	"tracker/internal/task"
)

// Deps are the core services the HTTP adapter drives.
type Deps struct {
	Users  *auth.Service
	Boards *board.Registry
	Guard  *access.Guard
	Tasks  *task.Engine
	Events *events.Log
	Search *search.Service
}

// Server provides the JSON API over the tracker core.
type Server struct {
	engine *gin.Engine
	deps   Deps
	logger *zap.Logger
}

// New constructs the HTTP server with routes and middleware configured.
func New(deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "server"))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(logger))

	srv := &Server{
		engine: router,
		deps:   deps,
		logger: logger,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	api.GET("/healthz", s.handleHealth)
	api.POST("/signup", s.handleSignup)

	authed := api.Group("", s.authenticate())
	{
		authed.GET("/me", s.handleMe)
		authed.GET("/users", s.handleListUsers)
		authed.GET("/search", s.handleSearch)

		authed.GET("/boards", s.handleListBoards)
		authed.POST("/boards", s.handleCreateBoard)

		b := authed.Group("/boards/:username/:symbol", s.loadBoard())
		{
			b.GET("", s.handleGetBoard)
			b.DELETE("", s.handleDeleteBoard)
			b.PUT("/status", s.handleSetBoardStatus)
			b.PUT("/name", s.handleRenameBoard)
			b.PUT("/symbol", s.handleSetBoardSymbol)
			b.GET("/events", s.handleBoardEvents)

			b.GET("/users", s.handleBoardUsers)
			b.POST("/users", s.handleShareBoard)
			b.DELETE("/users/:member", s.handleUnshareBoard)
			b.POST("/accept", s.handleAcceptInvitation)
			b.POST("/decline", s.handleDeclineInvitation)

			b.GET("/tasks", s.handleListTasks)
			b.POST("/tasks", s.handleCreateTask)
			b.GET("/tasks/:number", s.handleGetTask)
			b.PUT("/tasks/:number", s.handleUpdateTask)
			b.DELETE("/tasks/:number", s.handleDeleteTask)
			b.POST("/tasks/:number/comments", s.handleNewComment)
			b.PUT("/tasks/:number/comments/:comment", s.handleEditComment)
			b.DELETE("/tasks/:number/comments/:comment", s.handleDeleteComment)
			b.POST("/tasks/:number/tags", s.handleAddTag)
			b.DELETE("/tasks/:number/tags/:tag", s.handleRemoveTag)
		}
	}
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return id, true
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, models.ErrResourceExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrInvalidState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs server-side failures and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err),
		)
	}
	if models.IsRetryable(err) {
		c.Header("Retry-After", "1")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// badRequest reports a malformed request body.
func (s *Server) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
