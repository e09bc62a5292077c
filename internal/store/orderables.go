package store

import (
	"context"
	"database/sql"
	"fmt"
)

// The four sibling-ordered tables share one code path keyed by Kind.
// Table and column names come from the fixed kinds registry, never from
// request input, so building queries with Sprintf is safe here.

func (s *PostgresStore) InsertOrderable(ctx context.Context, kind Kind, row Orderable) error {
	spec, ok := kinds[kind]
	if !ok {
		return fmt.Errorf("unknown kind %q", kind)
	}
	var err error
	if spec.extended {
		_, err = s.q.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (id, %s, %s, description, created_by, position)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
			spec.table, spec.parentCol, spec.nameCol),
			row.ID, row.ParentID, row.Name, row.Description, row.CreatedBy, row.Position)
	} else {
		_, err = s.q.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (id, %s, %s, position) VALUES ($1, $2, $3, $4)`,
			spec.table, spec.parentCol, spec.nameCol),
			row.ID, row.ParentID, row.Name, row.Position)
	}
	if err != nil {
		return fmt.Errorf("insert %s: %w", kind, err)
	}
	return nil
}

func (s *PostgresStore) GetOrderable(ctx context.Context, kind Kind, id string) (Orderable, error) {
	spec, ok := kinds[kind]
	if !ok {
		return Orderable{}, fmt.Errorf("unknown kind %q", kind)
	}
	row := s.q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s WHERE id = $1`, orderableCols(spec), spec.table), id)
	return scanOrderable(row, spec)
}

// GetOrderableInParent fetches a row only when it sits under the given
// parent. Position anchors resolve through this so an anchor from
// another group never leaks in.
func (s *PostgresStore) GetOrderableInParent(ctx context.Context, kind Kind, id, parentID string) (Orderable, error) {
	spec, ok := kinds[kind]
	if !ok {
		return Orderable{}, fmt.Errorf("unknown kind %q", kind)
	}
	row := s.q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s WHERE id = $1 AND %s = $2`,
		orderableCols(spec), spec.table, spec.parentCol), id, parentID)
	return scanOrderable(row, spec)
}

func (s *PostgresStore) ListOrderables(ctx context.Context, kind Kind, parentID string) ([]Orderable, error) {
	spec, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	rows, err := s.q.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s WHERE %s = $1 ORDER BY position ASC`,
		orderableCols(spec), spec.table, spec.parentCol), parentID)
	if err != nil {
		return nil, fmt.Errorf("list %ss: %w", kind, err)
	}
	defer rows.Close()

	var out []Orderable
	for rows.Next() {
		o, err := scanOrderableRows(rows, spec)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MaxOrderablePosition(ctx context.Context, kind Kind, parentID string) (float64, error) {
	spec, ok := kinds[kind]
	if !ok {
		return 0, fmt.Errorf("unknown kind %q", kind)
	}
	var max float64
	err := s.q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COALESCE(MAX(position), 0) FROM %s WHERE %s = $1`,
		spec.table, spec.parentCol), parentID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max %s position: %w", kind, err)
	}
	return max, nil
}

func (s *PostgresStore) RenameOrderable(ctx context.Context, kind Kind, id, name string) error {
	spec, ok := kinds[kind]
	if !ok {
		return fmt.Errorf("unknown kind %q", kind)
	}
	res, err := s.q.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET %s = $2 WHERE id = $1`, spec.table, spec.nameCol), id, name)
	if err != nil {
		return fmt.Errorf("rename %s: %w", kind, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateTaskDescription(ctx context.Context, id, description string) error {
	res, err := s.q.ExecContext(ctx, `UPDATE tasks SET description = $2 WHERE id = $1`, id, description)
	if err != nil {
		return fmt.Errorf("update task description: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteOrderable(ctx context.Context, kind Kind, id string) error {
	spec, ok := kinds[kind]
	if !ok {
		return fmt.Errorf("unknown kind %q", kind)
	}
	res, err := s.q.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE id = $1`, spec.table), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateOrderablePosition(ctx context.Context, kind Kind, id string, position float64) error {
	spec, ok := kinds[kind]
	if !ok {
		return fmt.Errorf("unknown kind %q", kind)
	}
	res, err := s.q.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET position = $2 WHERE id = $1`, spec.table), id, position)
	if err != nil {
		return fmt.Errorf("update %s position: %w", kind, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MoveOrderable reparents a row and sets its position in one statement,
// so a cross-group move can never be observed half done.
func (s *PostgresStore) MoveOrderable(ctx context.Context, kind Kind, id, parentID string, position float64) error {
	spec, ok := kinds[kind]
	if !ok {
		return fmt.Errorf("unknown kind %q", kind)
	}
	res, err := s.q.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET %s = $2, position = $3 WHERE id = $1`,
		spec.table, spec.parentCol), id, parentID, position)
	if err != nil {
		return fmt.Errorf("move %s: %w", kind, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func orderableCols(spec kindSpec) string {
	if spec.extended {
		return fmt.Sprintf("id, %s, %s, description, COALESCE(created_by, ''), position, created_at",
			spec.parentCol, spec.nameCol)
	}
	return fmt.Sprintf("id, %s, %s, position, created_at", spec.parentCol, spec.nameCol)
}

func scanOrderable(row *sql.Row, spec kindSpec) (Orderable, error) {
	var o Orderable
	var err error
	if spec.extended {
		err = row.Scan(&o.ID, &o.ParentID, &o.Name, &o.Description, &o.CreatedBy, &o.Position, &o.CreatedAt)
	} else {
		err = row.Scan(&o.ID, &o.ParentID, &o.Name, &o.Position, &o.CreatedAt)
	}
	if err != nil {
		return Orderable{}, err
	}
	return o, nil
}

func scanOrderableRows(rows *sql.Rows, spec kindSpec) (Orderable, error) {
	var o Orderable
	var err error
	if spec.extended {
		err = rows.Scan(&o.ID, &o.ParentID, &o.Name, &o.Description, &o.CreatedBy, &o.Position, &o.CreatedAt)
	} else {
		err = rows.Scan(&o.ID, &o.ParentID, &o.Name, &o.Position, &o.CreatedAt)
	}
	if err != nil {
		return Orderable{}, fmt.Errorf("scan row: %w", err)
	}
	return o, nil
}
