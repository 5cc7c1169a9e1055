package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tracker/internal/models"
)

type taskRequest struct {
	Title  *string `json:"title"`
	Body   *string `json:"body"`
	Status *string `json:"status"`

	// Assignee is a username; an empty string unassigns.
	Assignee *string `json:"assignee"`
}

type commentRequest struct {
	Contents string `json:"contents" binding:"required"`
}

type tagRequest struct {
	Value string `json:"value" binding:"required"`
}

// loadTask resolves :number on the current board.
func (s *Server) loadTask(c *gin.Context) (models.Task, bool) {
	number, ok := parseID(c, "number")
	if !ok {
		return models.Task{}, false
	}
	t, err := s.deps.Tasks.GetByBoardNumber(c.Request.Context(), currentBoard(c).ID, number)
	if err != nil {
		s.respondError(c, err)
		return models.Task{}, false
	}
	return t, true
}

// resolveAssignee turns an optional username into an optional user id.
func (s *Server) resolveAssignee(c *gin.Context, username string) (*int64, error) {
	if username == "" {
		return nil, nil
	}
	u, err := s.deps.Users.Resolve(c.Request.Context(), username)
	if err != nil {
		return nil, err
	}
	return &u.ID, nil
}

// handleListTasks fetches task summaries for a board.
func (s *Server) handleListTasks(c *gin.Context) {
	if !s.authorize(c, models.ActionView) {
		return
	}
	tasks, err := s.deps.Tasks.BoardTasks(c.Request.Context(), currentBoard(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleCreateTask inserts a new task on the board.
func (s *Server) handleCreateTask(c *gin.Context) {
	if !s.authorize(c, models.ActionCreate) {
		return
	}
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	assignee, err := s.resolveAssignee(c, getString(req.Assignee))
	if err != nil {
		s.respondError(c, err)
		return
	}
	t, err := s.deps.Tasks.Create(c.Request.Context(), currentBoard(c).ID, currentUser(c),
		getString(req.Title), getString(req.Body), assignee)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": t})
}

func (s *Server) handleGetTask(c *gin.Context) {
	if !s.authorize(c, models.ActionView) {
		return
	}
	t, ok := s.loadTask(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": t})
}

// handleUpdateTask applies each present field as its own audited change.
func (s *Server) handleUpdateTask(c *gin.Context) {
	if !s.authorize(c, models.ActionEdit) {
		return
	}
	t, ok := s.loadTask(c)
	if !ok {
		return
	}
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	actor := currentUser(c)
	var err error
	if req.Title != nil && *req.Title != t.Title {
		if t, err = s.deps.Tasks.SetTitle(ctx, actor, t.ID, *req.Title); err != nil {
			s.respondError(c, err)
			return
		}
	}
	if req.Body != nil && *req.Body != t.Body {
		if t, err = s.deps.Tasks.SetBody(ctx, actor, t.ID, *req.Body); err != nil {
			s.respondError(c, err)
			return
		}
	}
	if req.Status != nil {
		if t, err = s.deps.Tasks.SetStatus(ctx, actor, t.ID, *req.Status); err != nil {
			s.respondError(c, err)
			return
		}
	}
	if req.Assignee != nil {
		assignee, err := s.resolveAssignee(c, *req.Assignee)
		if err != nil {
			s.respondError(c, err)
			return
		}
		if t, err = s.deps.Tasks.SetAssignee(ctx, actor, t.ID, assignee); err != nil {
			s.respondError(c, err)
			return
		}
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": t})
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	if !s.authorize(c, models.ActionDelete) {
		return
	}
	t, ok := s.loadTask(c)
	if !ok {
		return
	}
	if err := s.deps.Tasks.Delete(c.Request.Context(), currentUser(c), t.ID); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleNewComment(c *gin.Context) {
	if !s.authorize(c, models.ActionEdit) {
		return
	}
	t, ok := s.loadTask(c)
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	t, err := s.deps.Tasks.NewComment(c.Request.Context(), currentUser(c), t.ID, req.Contents)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": t})
}

func (s *Server) handleEditComment(c *gin.Context) {
	if !s.authorize(c, models.ActionEdit) {
		return
	}
	t, ok := s.loadTask(c)
	if !ok {
		return
	}
	number, ok := parseID(c, "comment")
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	t, err := s.deps.Tasks.EditComment(c.Request.Context(), currentUser(c), t.ID, number, req.Contents)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": t})
}

func (s *Server) handleDeleteComment(c *gin.Context) {
	if !s.authorize(c, models.ActionEdit) {
		return
	}
	t, ok := s.loadTask(c)
	if !ok {
		return
	}
	number, ok := parseID(c, "comment")
	if !ok {
		return
	}
	t, err := s.deps.Tasks.DeleteComment(c.Request.Context(), currentUser(c), t.ID, number)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": t})
}

func (s *Server) handleAddTag(c *gin.Context) {
	if !s.authorize(c, models.ActionEdit) {
		return
	}
	t, ok := s.loadTask(c)
	if !ok {
		return
	}
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	t, err := s.deps.Tasks.AddTag(c.Request.Context(), currentUser(c), t.ID, req.Value)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": t})
}

func (s *Server) handleRemoveTag(c *gin.Context) {
	if !s.authorize(c, models.ActionEdit) {
		return
	}
	t, ok := s.loadTask(c)
	if !ok {
		return
	}
	t, err := s.deps.Tasks.RemoveTag(c.Request.Context(), currentUser(c), t.ID, c.Param("tag"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": t})
}

func getString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
