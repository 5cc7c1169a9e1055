package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tracker/internal/models"
)

type boardRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	Name   string `json:"name" binding:"required"`
}

type shareRequest struct {
	Username string      `json:"username" binding:"required"`
	Role     models.Role `json:"role" binding:"required"`
}

// handleListBoards returns the summaries of boards the caller has accepted.
func (s *Server) handleListBoards(c *gin.Context) {
	boards, err := s.deps.Boards.UserBoards(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"boards": boards})
}

// handleCreateBoard creates a board owned by the caller.
func (s *Server) handleCreateBoard(c *gin.Context) {
	var req boardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	b, err := s.deps.Boards.CreateBoard(c.Request.Context(), req.Symbol, req.Name, currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"board": b})
}

func (s *Server) handleGetBoard(c *gin.Context) {
	if !s.authorize(c, models.ActionView) {
		return
	}
	b := currentBoard(c)
	tasks, err := s.deps.Tasks.BoardTasks(c.Request.Context(), b.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"board": b, "tasks": tasks})
}

// handleDeleteBoard removes the board and everything on it.
func (s *Server) handleDeleteBoard(c *gin.Context) {
	if !s.authorize(c, models.ActionDelete) {
		return
	}
	if err := s.deps.Boards.Delete(c.Request.Context(), currentBoard(c).ID); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

type valueRequest struct {
	Value string `json:"value" binding:"required"`
}

// boardUpdate binds {"value": ...} and applies fn after an edit check.
func (s *Server) boardUpdate(c *gin.Context, fn func(b models.Board, value string) (models.Board, error)) {
	if !s.authorize(c, models.ActionEdit) {
		return
	}
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	b, err := fn(currentBoard(c), req.Value)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"board": b})
}

func (s *Server) handleSetBoardStatus(c *gin.Context) {
	s.boardUpdate(c, func(b models.Board, value string) (models.Board, error) {
		return s.deps.Boards.SetStatus(c.Request.Context(), b.ID, value)
	})
}

func (s *Server) handleRenameBoard(c *gin.Context) {
	s.boardUpdate(c, func(b models.Board, value string) (models.Board, error) {
		return s.deps.Boards.Rename(c.Request.Context(), b.ID, value)
	})
}

func (s *Server) handleSetBoardSymbol(c *gin.Context) {
	s.boardUpdate(c, func(b models.Board, value string) (models.Board, error) {
		return s.deps.Boards.SetSymbol(c.Request.Context(), b.ID, value)
	})
}

// handleBoardEvents returns the audit history of every task on the board.
func (s *Server) handleBoardEvents(c *gin.Context) {
	if !s.authorize(c, models.ActionView) {
		return
	}
	evs, err := s.deps.Events.ForBoard(c.Request.Context(), currentBoard(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"events": evs})
}

func (s *Server) handleBoardUsers(c *gin.Context) {
	if !s.authorize(c, models.ActionView) {
		return
	}
	roles, err := s.deps.Boards.BoardUserRoles(c.Request.Context(), currentBoard(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"users": roles})
}

// handleShareBoard invites a user, or re-invites them under a new role.
func (s *Server) handleShareBoard(c *gin.Context) {
	if !s.authorize(c, models.ActionInvite) {
		return
	}
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	grantee, err := s.deps.Users.Resolve(ctx, req.Username)
	if err != nil {
		s.respondError(c, err)
		return
	}
	role, err := s.deps.Boards.SetUserRole(ctx, currentUser(c), currentBoard(c).ID, grantee.ID, req.Role)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"role": role})
}

func (s *Server) handleUnshareBoard(c *gin.Context) {
	if !s.authorize(c, models.ActionInvite) {
		return
	}
	ctx := c.Request.Context()
	member, err := s.deps.Users.ByUsername(ctx, c.Param("member"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.deps.Boards.DeleteUserRole(ctx, currentBoard(c).ID, member.ID); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleAcceptInvitation answers the caller's own pending invitation.
func (s *Server) handleAcceptInvitation(c *gin.Context) {
	role, err := s.deps.Boards.AcceptUserRole(c.Request.Context(), currentBoard(c).ID, currentUser(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"role": role})
}

func (s *Server) handleDeclineInvitation(c *gin.Context) {
	role, err := s.deps.Boards.DeclineUserRole(c.Request.Context(), currentBoard(c).ID, currentUser(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"role": role})
}
