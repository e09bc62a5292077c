package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"taskboard/api/internal/ordering"
	"taskboard/api/internal/rbac"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

var parentKind = map[store.Kind]store.Kind{
	store.KindTask: store.KindList,
	store.KindTodo: store.KindTask,
	store.KindItem: store.KindTodo,
}

var idPrefix = map[store.Kind]string{
	store.KindList: "lst",
	store.KindTask: "tsk",
	store.KindTodo: "tdo",
	store.KindItem: "itm",
}

// boardIDForParent walks the containment chain from a parent id up to
// its board. For a list the parent IS the board; deeper kinds hop one
// level per ancestor. A broken link anywhere surfaces as NotFound.
func boardIDForParent(ctx context.Context, st store.Store, kind store.Kind, parentID string) (string, error) {
	for {
		above, ok := parentKind[kind]
		if !ok {
			return parentID, nil
		}
		row, err := st.GetOrderable(ctx, above, parentID)
		if err != nil {
			return "", err
		}
		kind, parentID = above, row.ParentID
	}
}

// boardIDForOrderable resolves the board containing an existing row.
func boardIDForOrderable(ctx context.Context, st store.Store, kind store.Kind, id string) (store.Orderable, string, error) {
	row, err := st.GetOrderable(ctx, kind, id)
	if err != nil {
		return store.Orderable{}, "", err
	}
	boardID, err := boardIDForParent(ctx, st, kind, row.ParentID)
	if err != nil {
		return store.Orderable{}, "", err
	}
	return row, boardID, nil
}

// requireBoardWrite gates a mutation on board editor standing.
func requireBoardWrite(ctx context.Context, st store.Store, boardID, actorID string) error {
	role, err := boardRoleOf(ctx, st, boardID, actorID)
	if err != nil {
		return err
	}
	if !rbac.Can(role, rbac.ActionWrite) {
		return errForbidden("Viewers cannot modify board contents")
	}
	return nil
}

// CreateOrderable appends a new row at the end of its sibling group.
// Description and the creator stamp only apply to tasks.
func (s *Service) CreateOrderable(ctx context.Context, actorID string, kind store.Kind, parentID, name, description string) (store.Orderable, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Orderable{}, errValidation("name is required", nil)
	}

	row := store.Orderable{
		ID:       util.NewID(idPrefix[kind]),
		ParentID: parentID,
		Name:     name,
	}
	if kind == store.KindTask {
		row.Description = description
		row.CreatedBy = actorID
	}

	var boardID string
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		boardID, err = boardIDForParent(ctx, tx, kind, parentID)
		if err != nil {
			return err
		}
		if kind == store.KindList {
			if _, err := tx.GetBoard(ctx, boardID); err != nil {
				return err
			}
		}
		if err := requireBoardWrite(ctx, tx, boardID, actorID); err != nil {
			return err
		}
		max, err := tx.MaxOrderablePosition(ctx, kind, parentID)
		if err != nil {
			return err
		}
		row.Position = ordering.Append(max)
		return tx.InsertOrderable(ctx, kind, row)
	})
	if err != nil {
		return store.Orderable{}, err
	}
	if kind == store.KindTask {
		s.indexTask(ctx, row, boardID)
	}
	return row, nil
}

func (s *Service) GetOrderable(ctx context.Context, actorID string, kind store.Kind, id string) (store.Orderable, error) {
	row, boardID, err := boardIDForOrderable(ctx, s.store, kind, id)
	if err != nil {
		return store.Orderable{}, err
	}
	if _, err := boardRoleOf(ctx, s.store, boardID, actorID); err != nil {
		return store.Orderable{}, err
	}
	return row, nil
}

// ListOrderables returns a parent's children in position order.
func (s *Service) ListOrderables(ctx context.Context, actorID string, kind store.Kind, parentID string) ([]store.Orderable, error) {
	boardID, err := boardIDForParent(ctx, s.store, kind, parentID)
	if err != nil {
		return nil, err
	}
	if kind == store.KindList {
		if _, err := s.store.GetBoard(ctx, boardID); err != nil {
			return nil, err
		}
	}
	if _, err := boardRoleOf(ctx, s.store, boardID, actorID); err != nil {
		return nil, err
	}
	return s.store.ListOrderables(ctx, kind, parentID)
}

func (s *Service) RenameOrderable(ctx context.Context, actorID string, kind store.Kind, id, name string) (store.Orderable, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Orderable{}, errValidation("name is required", nil)
	}
	row, boardID, err := boardIDForOrderable(ctx, s.store, kind, id)
	if err != nil {
		return store.Orderable{}, err
	}
	if err := requireBoardWrite(ctx, s.store, boardID, actorID); err != nil {
		return store.Orderable{}, err
	}
	if err := s.store.RenameOrderable(ctx, kind, id, name); err != nil {
		return store.Orderable{}, err
	}
	row.Name = name
	if kind == store.KindTask {
		s.indexTask(ctx, row, boardID)
	}
	return row, nil
}

func (s *Service) UpdateTaskDescription(ctx context.Context, actorID, id, description string) (store.Orderable, error) {
	row, boardID, err := boardIDForOrderable(ctx, s.store, store.KindTask, id)
	if err != nil {
		return store.Orderable{}, err
	}
	if err := requireBoardWrite(ctx, s.store, boardID, actorID); err != nil {
		return store.Orderable{}, err
	}
	if err := s.store.UpdateTaskDescription(ctx, id, description); err != nil {
		return store.Orderable{}, err
	}
	row.Description = description
	s.indexTask(ctx, row, boardID)
	return row, nil
}

func (s *Service) DeleteOrderable(ctx context.Context, actorID string, kind store.Kind, id string) error {
	_, boardID, err := boardIDForOrderable(ctx, s.store, kind, id)
	if err != nil {
		return err
	}
	if err := requireBoardWrite(ctx, s.store, boardID, actorID); err != nil {
		return err
	}
	if err := s.store.DeleteOrderable(ctx, kind, id); err != nil {
		return err
	}
	if kind == store.KindTask && s.search != nil {
		s.search.DeleteTask(id)
	}
	return nil
}

// MoveRequest names the drop target for a drag-and-drop reorder. The
// anchors are sibling ids in the TARGET group; either may be absent.
// TargetParentID is honored for tasks only (cross-list moves).
type MoveRequest struct {
	BeforeID       string
	AfterID        string
	TargetParentID string
}

// MoveOrderable repositions a row between two optional anchors. When
// the landing position collapses the gap below the usable threshold,
// the whole target sibling group, moved row included, is renumbered to
// uniform Gap multiples inside the same transaction.
func (s *Service) MoveOrderable(ctx context.Context, actorID string, kind store.Kind, id string, req MoveRequest) (store.Orderable, error) {
	var moved store.Orderable
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		row, boardID, err := boardIDForOrderable(ctx, tx, kind, id)
		if err != nil {
			return err
		}
		if err := requireBoardWrite(ctx, tx, boardID, actorID); err != nil {
			return err
		}

		targetParent := row.ParentID
		if kind == store.KindTask && req.TargetParentID != "" && req.TargetParentID != row.ParentID {
			targetBoard, err := boardIDForParent(ctx, tx, kind, req.TargetParentID)
			if err != nil {
				return err
			}
			if err := requireBoardWrite(ctx, tx, targetBoard, actorID); err != nil {
				return err
			}
			targetParent, boardID = req.TargetParentID, targetBoard
		}

		before, after, err := resolveAnchors(ctx, tx, kind, targetParent, req.BeforeID, req.AfterID)
		if err != nil {
			return err
		}
		position, err := placeFor(kind, before, after)
		if err != nil {
			return err
		}

		if err := tx.MoveOrderable(ctx, kind, id, targetParent, position); err != nil {
			return err
		}
		row.ParentID, row.Position = targetParent, position

		if ordering.NeedsReindex(before, after, position) {
			siblings, err := tx.ListOrderables(ctx, kind, targetParent)
			if err != nil {
				return err
			}
			for i, fresh := range ordering.Reindexed(len(siblings)) {
				if err := tx.UpdateOrderablePosition(ctx, kind, siblings[i].ID, fresh); err != nil {
					return err
				}
				if siblings[i].ID == id {
					row.Position = fresh
				}
			}
		}
		moved = row
		if kind == store.KindTask {
			s.indexTask(ctx, row, boardID)
		}
		return nil
	})
	if err != nil {
		return store.Orderable{}, err
	}
	return moved, nil
}

// resolveAnchors looks up the named siblings in the target group. An
// anchor that is missing or lives in another parent degrades to absent
// rather than failing: the client's snapshot of the board may be stale.
func resolveAnchors(ctx context.Context, st store.Store, kind store.Kind, parentID, beforeID, afterID string) (ordering.Anchor, ordering.Anchor, error) {
	before, err := resolveAnchor(ctx, st, kind, parentID, beforeID)
	if err != nil {
		return ordering.Anchor{}, ordering.Anchor{}, err
	}
	after, err := resolveAnchor(ctx, st, kind, parentID, afterID)
	if err != nil {
		return ordering.Anchor{}, ordering.Anchor{}, err
	}
	return before, after, nil
}

func resolveAnchor(ctx context.Context, st store.Store, kind store.Kind, parentID, id string) (ordering.Anchor, error) {
	if id == "" {
		return ordering.None(), nil
	}
	row, err := st.GetOrderableInParent(ctx, kind, id, parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return ordering.None(), nil
	}
	if err != nil {
		return ordering.Anchor{}, err
	}
	return ordering.At(row.Position), nil
}

// placeFor computes the landing position. List moves must name at
// least one live anchor; the deeper kinds fall back to the head slot.
func placeFor(kind store.Kind, before, after ordering.Anchor) (float64, error) {
	if kind == store.KindList {
		position, err := ordering.PlaceStrict(before, after)
		if errors.Is(err, ordering.ErrNoAnchors) {
			return 0, errValidation("at least one of beforeId or afterId must resolve", nil)
		}
		return position, err
	}
	return ordering.Place(before, after), nil
}

// indexTask pushes a task into the search index, resolving the board's
// workspace for scoping. Indexing is advisory; failures only log.
func (s *Service) indexTask(ctx context.Context, row store.Orderable, boardID string) {
	if s.search == nil {
		return
	}
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return
	}
	s.search.IndexTask(search.TaskRecord{
		ID:          row.ID,
		Title:       row.Name,
		Description: row.Description,
		ListID:      row.ParentID,
		BoardID:     boardID,
		WorkspaceID: board.WorkspaceID,
	})
}
