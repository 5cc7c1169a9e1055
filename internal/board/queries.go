package board

const selectBoardQuery = `
SELECT
  b.id, b.creator_id, u.username AS creator, b.symbol, b.task_seq,
  b.status_id, b.name, b.created, b.modified
FROM boards b
JOIN users u ON u.id = b.creator_id
`

const selectUserRoleQuery = `
SELECT bu.id, bu.board_id, bu.user_id, r.name AS role, bu.state,
  bu.invitation_from, bu.created, bu.modified
FROM board_users bu
JOIN roles r ON r.id = bu.role_id
WHERE bu.board_id = ? AND bu.user_id = ?
`

const userBoardsQuery = `
SELECT
  b.id, b.symbol, b.name,
  COALESCE(s.name, '') AS status,
  b.creator_id, u.username AS creator, r.name AS role,
  MAX(
    COALESCE(b.modified, b.created),
    COALESCE((SELECT MAX(COALESCE(t.modified, t.created)) FROM tasks t WHERE t.board_id = b.id), 0)
  ) AS last_updated,
  (SELECT COUNT(1) FROM tasks t WHERE t.board_id = b.id) AS task_count,
  (SELECT COUNT(1) FROM board_users m WHERE m.board_id = b.id AND m.state = 'accepted') AS user_count
FROM board_users bu
JOIN boards b ON b.id = bu.board_id
JOIN users u ON u.id = b.creator_id
JOIN roles r ON r.id = bu.role_id
LEFT JOIN board_statuses s ON s.id = b.status_id
WHERE bu.user_id = ? AND bu.state = 'accepted'
ORDER BY b.id
`

const shareRequestsQuery = `
SELECT u.username AS board_creator, b.symbol AS board_symbol, b.name AS board_name, r.name AS role
FROM board_users bu
JOIN boards b ON b.id = bu.board_id
JOIN users u ON u.id = b.creator_id
JOIN roles r ON r.id = bu.role_id
WHERE bu.user_id = ? AND bu.state = 'invited'
ORDER BY bu.id
`

const boardUserRolesQuery = `
SELECT c.username AS board_creator, b.symbol AS board_symbol, u.username,
  r.name AS role, u.is_active, bu.state
FROM board_users bu
JOIN boards b ON b.id = bu.board_id
JOIN users c ON c.id = b.creator_id
JOIN users u ON u.id = bu.user_id
JOIN roles r ON r.id = bu.role_id
WHERE bu.board_id = ?
ORDER BY u.username
`

const boardUsersQuery = `
SELECT u.username
FROM board_users bu
JOIN users u ON u.id = bu.user_id
WHERE bu.board_id = ? AND bu.state = 'accepted' AND u.is_active = 1
ORDER BY u.username
`

// deleteBoardSteps removes a board and everything under it, children first.
var deleteBoardSteps = []string{
	`DELETE FROM task_comments WHERE task_id IN (SELECT id FROM tasks WHERE board_id = ?)`,
	`DELETE FROM task_statuses WHERE task_id IN (SELECT id FROM tasks WHERE board_id = ?)`,
	`DELETE FROM task_tags WHERE task_id IN (SELECT id FROM tasks WHERE board_id = ?)`,
	`DELETE FROM task_events WHERE task_id IN (SELECT id FROM tasks WHERE board_id = ?)`,
	`DELETE FROM tasks WHERE board_id = ?`,
	`DELETE FROM board_statuses WHERE board_id = ?`,
	`DELETE FROM board_users WHERE board_id = ?`,
	`DELETE FROM boards WHERE id = ?`,
}
