package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tracker/internal/models"
)

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleSignup registers a new account when sign-ups are open.
func (s *Server) handleSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	user, err := s.deps.Users.CreateUser(c.Request.Context(), req.Username, []byte(req.Password))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"user": user})
}

// handleMe returns the caller with their assigned tasks and pending invitations.
func (s *Server) handleMe(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)

	tasks, err := s.deps.Tasks.UserTasks(ctx, user.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	requests, err := s.deps.Boards.ShareRequests(ctx, user.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"user":           user,
		"tasks":          tasks,
		"share_requests": requests,
	})
}

// handleListUsers is the admin account listing.
func (s *Server) handleListUsers(c *gin.Context) {
	if !currentUser(c).IsAdmin {
		s.respondError(c, models.PermissionDenied("list users", "admin"))
		return
	}
	users, err := s.deps.Users.ListUsers(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"users": users})
}

func (s *Server) handleSearch(c *gin.Context) {
	results, err := s.deps.Search.Search(c.Request.Context(), currentUser(c), c.Query("q"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"results": results})
}
