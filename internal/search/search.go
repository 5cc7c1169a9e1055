// Package search matches task content and filters the matches down to what the
// searching user may view.
package search

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"tracker/internal/access"
	"tracker/internal/models"
	"tracker/internal/storage/sqlite"
)

// Service runs searches through the storage gate.
type Service struct {
	store *sqlite.Store
}

// NewService builds a search service over store.
func NewService(store *sqlite.Store) *Service {
	return &Service{store: store}
}

type resultRow struct {
	TaskID       int64  `db:"task_id"`
	BoardCreator string `db:"board_creator"`
	Symbol       string `db:"symbol"`
	Number       int64  `db:"number"`
	Title        string `db:"title"`
}

// matchQuery selects tasks whose title, body or any comment contains every term.
func matchQuery(terms []string) sq.SelectBuilder {
	q := sq.Select(
		"t.id AS task_id",
		"u.username AS board_creator",
		"b.symbol AS symbol",
		"t.number AS number",
		"t.title AS title",
	).
		From("tasks t").
		Join("boards b ON b.id = t.board_id").
		Join("users u ON u.id = b.creator_id").
		OrderBy("b.id", "t.number")

	for _, term := range terms {
		pattern := "%" + escapeLike(term) + "%"
		q = q.Where(sq.Or{
			sq.Expr(`t.title LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`t.body LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`EXISTS (SELECT 1 FROM task_comments c WHERE c.task_id = t.id AND c.contents LIKE ? ESCAPE '\')`, pattern),
		})
	}
	return q
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Search returns the tasks matching query that user may view. A blank query or
// an empty intersection yields an empty slice, never an error.
func (s *Service) Search(ctx context.Context, user models.User, query string) ([]models.SearchResult, error) {
	out := []models.SearchResult{}
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return out, nil
	}

	matchSQL, matchArgs, err := matchQuery(terms).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}
	visibleSQL, visibleArgs, err := access.VisibleTaskIDs(user.ID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build visibility query: %w", err)
	}

	var (
		matches []resultRow
		visible []int64
	)
	err = s.store.Do(ctx, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &matches, matchSQL, matchArgs...); err != nil {
			return fmt.Errorf("select search matches: %w", err)
		}
		if len(matches) == 0 {
			return nil
		}
		if err := tx.SelectContext(ctx, &visible, visibleSQL, visibleArgs...); err != nil {
			return fmt.Errorf("select visible tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	allowed := make(map[int64]struct{}, len(visible))
	for _, id := range visible {
		allowed[id] = struct{}{}
	}
	for _, m := range matches {
		if _, ok := allowed[m.TaskID]; !ok {
			continue
		}
		out = append(out, models.SearchResult(m))
	}
	return out, nil
}
