package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across boards and tasks using
// plainto_tsquery and ts_rank, with ts_headline for snippets. Hits are
// limited to the caller's boards.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	if len(q.AllowedBoardIDs) == 0 {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text, q.AllowedBoardIDs}
	argN := 3

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultBoard {
		boardWhere := "b.fts @@ " + tsQuery + " AND b.id = ANY($2)"
		if q.WorkspaceID != "" {
			boardWhere += fmt.Sprintf(" AND b.workspace_id = $%d", argN)
			args = append(args, q.WorkspaceID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'board'::text AS type, b.id, b.name AS title,
				''::text AS snippet,
				b.id AS board_id, b.workspace_id,
				ts_rank(b.fts, %s) AS rank
			FROM boards b
			WHERE %s`, tsQuery, boardWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultTask {
		taskWhere := "t.fts @@ " + tsQuery + " AND l.board_id = ANY($2)"
		if q.WorkspaceID != "" {
			taskWhere += fmt.Sprintf(" AND b.workspace_id = $%d", argN)
			args = append(args, q.WorkspaceID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'task'::text AS type, t.id, t.title,
				ts_headline('english', coalesce(t.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				l.board_id, b.workspace_id,
				ts_rank(t.fts, %s) AS rank
			FROM tasks t
			JOIN lists l ON l.id = t.list_id
			JOIN boards b ON b.id = l.board_id
			WHERE %s`, tsQuery, tsQuery, taskWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	union := strings.Join(subQueries, "\nUNION ALL\n")
	query := fmt.Sprintf(`
		WITH hits AS (%s)
		SELECT type, id, title, snippet, board_id, workspace_id, COUNT(*) OVER () AS total
		FROM hits
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`, union, limit, offset)

	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts search: %w", err)
	}
	defer rows.Close()

	var results []Result
	total := 0
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.BoardID, &r.WorkspaceID, &total); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords reads every board and task for bulk reindexing into
// Meilisearch.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]BoardRecord, []TaskRecord, error) {
	boardRows, err := p.db.QueryContext(ctx, `SELECT id, name, workspace_id FROM boards`)
	if err != nil {
		return nil, nil, fmt.Errorf("load boards: %w", err)
	}
	defer boardRows.Close()

	var boards []BoardRecord
	for boardRows.Next() {
		var b BoardRecord
		if err := boardRows.Scan(&b.ID, &b.Name, &b.WorkspaceID); err != nil {
			return nil, nil, fmt.Errorf("scan board record: %w", err)
		}
		boards = append(boards, b)
	}
	if err := boardRows.Err(); err != nil {
		return nil, nil, err
	}

	taskRows, err := p.db.QueryContext(ctx, `
		SELECT t.id, t.title, t.description, t.list_id, l.board_id, b.workspace_id
		FROM tasks t
		JOIN lists l ON l.id = t.list_id
		JOIN boards b ON b.id = l.board_id`)
	if err != nil {
		return nil, nil, fmt.Errorf("load tasks: %w", err)
	}
	defer taskRows.Close()

	var tasks []TaskRecord
	for taskRows.Next() {
		var t TaskRecord
		if err := taskRows.Scan(&t.ID, &t.Title, &t.Description, &t.ListID, &t.BoardID, &t.WorkspaceID); err != nil {
			return nil, nil, fmt.Errorf("scan task record: %w", err)
		}
		tasks = append(tasks, t)
	}
	return boards, tasks, taskRows.Err()
}
