package models

// Timestamps throughout are integer epoch seconds, UTC.

// User is an account known to the tracker. Other entities reference users by id.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password []byte `json:"-"`
	IsAdmin  bool   `json:"is_admin"`
	IsActive bool   `json:"is_active"`
	Created  int64  `json:"created"`
	Modified *int64 `json:"modified,omitempty"`
}

// Board is a symbol-keyed container of tasks owned by its creator.
type Board struct {
	ID               int64         `json:"id"`
	Symbol           string        `json:"symbol"`
	Name             string        `json:"name"`
	CreatorID        int64         `json:"creator_id"`
	Creator          string        `json:"creator"`
	Created          int64         `json:"created"`
	Modified         *int64        `json:"modified,omitempty"`
	CurrentStatus    BoardStatus   `json:"current_status"`
	PossibleStatuses []BoardStatus `json:"possible_statuses"`
	TaskSeq          int64         `json:"task_seq"`
}

// BoardStatus is one entry of a board's own status set.
type BoardStatus struct {
	ID      int64  `json:"id"`
	BoardID int64  `json:"board_id"`
	Name    string `json:"name"`
}

// BoardSummary is the denormalized row shown in a user's board list.
type BoardSummary struct {
	ID          int64  `json:"id"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	CreatorID   int64  `json:"creator_id"`
	Creator     string `json:"creator"`
	Role        Role   `json:"role"`
	LastUpdated int64  `json:"last_updated"`
	TaskCount   int64  `json:"task_count"`
	UserCount   int64  `json:"user_count"`
}

// UserRole is the role and invitation state of one user on one board.
type UserRole struct {
	ID        int64           `json:"id"`
	BoardID   int64           `json:"board_id"`
	UserID    int64           `json:"user_id"`
	Role      Role            `json:"role"`
	State     InvitationState `json:"state"`
	InvitedBy int64           `json:"invited_by"`
	Created   int64           `json:"created"`
	Modified  *int64          `json:"modified,omitempty"`
}

// BoardUserRoleSummary describes one member of a board for the sharing view.
type BoardUserRoleSummary struct {
	BoardCreator string          `json:"board_creator"`
	BoardSymbol  string          `json:"board_symbol"`
	Username     string          `json:"username"`
	Role         Role            `json:"role"`
	IsActive     bool            `json:"is_active"`
	State        InvitationState `json:"state"`
}

// ShareRequest is a pending invitation received by a user.
type ShareRequest struct {
	BoardCreator string `json:"board_creator"`
	BoardSymbol  string `json:"board_symbol"`
	BoardName    string `json:"board_name"`
	Role         Role   `json:"role"`
}

// Task is a unit of work inside a board, loaded with all of its children.
type Task struct {
	ID               int64         `json:"id"`
	Number           int64         `json:"number"`
	BoardID          int64         `json:"board_id"`
	CreatorID        int64         `json:"creator_id"`
	AssigneeID       *int64        `json:"assignee_id,omitempty"`
	Title            string        `json:"title"`
	Body             string        `json:"body"`
	Created          int64         `json:"created"`
	Modified         *int64        `json:"modified,omitempty"`
	Status           TaskStatus    `json:"status"`
	PossibleStatuses []TaskStatus  `json:"possible_statuses"`
	Tags             []TaskTag     `json:"tags"`
	Comments         []TaskComment `json:"comments"`
	Events           []TaskEvent   `json:"events"`
}

// TaskStatus is one entry of a task's own status set.
type TaskStatus struct {
	ID     int64  `json:"id"`
	TaskID int64  `json:"task_id"`
	Name   string `json:"name"`
}

// TaskTag is a lower-cased label attached to a task.
type TaskTag struct {
	ID     int64  `json:"id"`
	TaskID int64  `json:"task_id"`
	Value  string `json:"value"`
}

// TaskComment is a numbered comment on a task.
type TaskComment struct {
	ID       int64  `json:"id"`
	TaskID   int64  `json:"task_id"`
	Number   int64  `json:"number"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Contents string `json:"contents"`
	Created  int64  `json:"created"`
	Modified *int64 `json:"modified,omitempty"`
}

// TaskEvent is an immutable audit record of one mutation on a task.
type TaskEvent struct {
	ID          int64   `json:"id"`
	TaskID      int64   `json:"task_id"`
	UserID      int64   `json:"user_id"`
	Created     int64   `json:"created"`
	Description string  `json:"description"`
	ChangeField *string `json:"change_field,omitempty"`
	ChangeOld   *string `json:"change_old,omitempty"`
	ChangeNew   *string `json:"change_new,omitempty"`
}

// TaskSummary is the denormalized row shown in task lists.
type TaskSummary struct {
	TaskID       int64   `json:"task_id"`
	BoardCreator string  `json:"board_creator"`
	Symbol       string  `json:"symbol"`
	Number       int64   `json:"number"`
	Title        string  `json:"title"`
	Status       string  `json:"status"`
	Creator      string  `json:"creator"`
	Assignee     *string `json:"assignee,omitempty"`
	TagCount     int64   `json:"tag_count"`
	CommentCount int64   `json:"comment_count"`
	LastUpdated  int64   `json:"last_updated"`
}

// SearchResult is one task matched by a search query.
type SearchResult struct {
	TaskID       int64  `json:"task_id"`
	BoardCreator string `json:"board_creator"`
	Symbol       string `json:"symbol"`
	Number       int64  `json:"number"`
	Title        string `json:"title"`
}

// DefaultStatuses seeds every new board and task. The first entry is the initial status.
var DefaultStatuses = []string{"todo", "in-progress", "completed"}

// StringPtr is a helper for optional event fields.
func StringPtr(s string) *string {
	return &s
}
