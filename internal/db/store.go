package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/danielgrim/dayblock/internal/engine"
	"github.com/danielgrim/dayblock/internal/model"
	"github.com/danielgrim/dayblock/internal/timeutil"
)

type Store struct {
	DB *sql.DB
}

type TaskInput struct {
	WorkspaceID     int64
	Title           string
	Memo            string
	Urgent          bool
	EstimateMinutes int64
}

type WindowInput struct {
	WorkspaceID int64
	Label       string
	Start       string
	End         string
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// EnsureWorkspace returns the workspace with the given name, creating
// it on first use.
func (s *Store) EnsureWorkspace(ctx context.Context, name string) (model.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "default"
	}

	if _, err := s.DB.ExecContext(ctx, "INSERT INTO workspaces (name) VALUES (?) ON CONFLICT(name) DO NOTHING", name); err != nil {
		return model.Workspace{}, err
	}

	var ws model.Workspace
	err := s.DB.QueryRowContext(ctx,
		"SELECT id, name, core_time_start, core_time_end, created_at FROM workspaces WHERE name = ?", name).
		Scan(&ws.ID, &ws.Name, &ws.CoreTimeStart, &ws.CoreTimeEnd, &ws.CreatedAt)
	if err != nil {
		return model.Workspace{}, err
	}
	return ws, nil
}

// SetCoreTime stores the workspace's working-hours banner. Empty
// strings clear it.
func (s *Store) SetCoreTime(ctx context.Context, workspaceID int64, start, end string) error {
	startMins, endMins := -1, -1
	var err error
	if start != "" {
		if startMins, err = timeutil.ParseWall(start); err != nil {
			return err
		}
	}
	if end != "" {
		if endMins, err = timeutil.ParseWall(end); err != nil {
			return err
		}
	}
	if startMins >= 0 && endMins >= 0 && endMins <= startMins {
		return fmt.Errorf("core time end must follow start")
	}
	_, err = s.DB.ExecContext(ctx,
		"UPDATE workspaces SET core_time_start = ?, core_time_end = ? WHERE id = ?", start, end, workspaceID)
	return err
}

func (s *Store) GetWorkspace(ctx context.Context, workspaceID int64) (model.Workspace, error) {
	var ws model.Workspace
	err := s.DB.QueryRowContext(ctx,
		"SELECT id, name, core_time_start, core_time_end, created_at FROM workspaces WHERE id = ?", workspaceID).
		Scan(&ws.ID, &ws.Name, &ws.CoreTimeStart, &ws.CoreTimeEnd, &ws.CreatedAt)
	if err != nil {
		return model.Workspace{}, err
	}
	return ws, nil
}

func (s *Store) CreateTask(ctx context.Context, input TaskInput) (model.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return model.Task{}, fmt.Errorf("task title is required")
	}
	if input.EstimateMinutes <= 0 {
		return model.Task{}, fmt.Errorf("task estimate must be positive")
	}

	result, err := s.DB.ExecContext(ctx,
		"INSERT INTO tasks (workspace_id, title, memo, urgent, estimate_minutes) VALUES (?, ?, ?, ?, ?)",
		input.WorkspaceID, strings.TrimSpace(input.Title), input.Memo, boolToInt(input.Urgent), input.EstimateMinutes)
	if err != nil {
		return model.Task{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return model.Task{}, err
	}
	return s.GetTask(ctx, id)
}

func (s *Store) UpdateTask(ctx context.Context, taskID int64, input TaskInput) (model.Task, error) {
	if input.EstimateMinutes <= 0 {
		return model.Task{}, fmt.Errorf("task estimate must be positive")
	}

	_, err := s.DB.ExecContext(ctx,
		"UPDATE tasks SET title = ?, memo = ?, urgent = ?, estimate_minutes = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		strings.TrimSpace(input.Title), input.Memo, boolToInt(input.Urgent), input.EstimateMinutes, taskID)
	if err != nil {
		return model.Task{}, err
	}

	// Denormalized block fields follow the task.
	if _, err := s.DB.ExecContext(ctx,
		"UPDATE time_blocks SET title = ?, urgent = ? WHERE task_id = ? AND status != ?",
		strings.TrimSpace(input.Title), boolToInt(input.Urgent), taskID, model.StatusDone); err != nil {
		return model.Task{}, err
	}

	return s.GetTask(ctx, taskID)
}

// DeleteTask removes a task; its blocks go with it via the foreign key
// cascade.
func (s *Store) DeleteTask(ctx context.Context, taskID int64) error {
	_, err := s.DB.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", taskID)
	return err
}

func (s *Store) GetTask(ctx context.Context, taskID int64) (model.Task, error) {
	var task model.Task
	var urgent, scheduled int64
	err := s.DB.QueryRowContext(ctx,
		"SELECT id, workspace_id, title, memo, urgent, estimate_minutes, scheduled, created_at, updated_at FROM tasks WHERE id = ?", taskID).
		Scan(&task.ID, &task.WorkspaceID, &task.Title, &task.Memo, &urgent, &task.EstimateMinutes, &scheduled, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return model.Task{}, err
	}
	task.Urgent = urgent != 0
	task.Scheduled = scheduled != 0
	return task, nil
}

func (s *Store) LoadInbox(ctx context.Context, workspaceID int64) ([]model.Task, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT id, workspace_id, title, memo, urgent, estimate_minutes, scheduled, created_at, updated_at FROM tasks WHERE workspace_id = ? AND scheduled = 0 ORDER BY urgent DESC, created_at",
		workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var task model.Task
		var urgent, scheduled int64
		if err := rows.Scan(&task.ID, &task.WorkspaceID, &task.Title, &task.Memo, &urgent, &task.EstimateMinutes, &scheduled, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, err
		}
		task.Urgent = urgent != 0
		task.Scheduled = scheduled != 0
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *Store) AddUnpluggedWindow(ctx context.Context, input WindowInput) (model.UnpluggedWindow, error) {
	startMins, err := timeutil.ParseWall(input.Start)
	if err != nil {
		return model.UnpluggedWindow{}, err
	}
	endMins, err := timeutil.ParseWall(input.End)
	if err != nil {
		return model.UnpluggedWindow{}, err
	}
	if endMins <= startMins {
		return model.UnpluggedWindow{}, fmt.Errorf("window end must follow start")
	}

	result, err := s.DB.ExecContext(ctx,
		"INSERT INTO unplugged_windows (workspace_id, label, start_wall, end_wall) VALUES (?, ?, ?, ?)",
		input.WorkspaceID, input.Label, input.Start, input.End)
	if err != nil {
		return model.UnpluggedWindow{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return model.UnpluggedWindow{}, err
	}
	return model.UnpluggedWindow{ID: id, WorkspaceID: input.WorkspaceID, Label: input.Label, Start: input.Start, End: input.End}, nil
}

func (s *Store) DeleteUnpluggedWindow(ctx context.Context, windowID int64) error {
	_, err := s.DB.ExecContext(ctx, "DELETE FROM unplugged_windows WHERE id = ?", windowID)
	return err
}

func (s *Store) LoadUnpluggedWindows(ctx context.Context, workspaceID int64) ([]model.UnpluggedWindow, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT id, workspace_id, label, start_wall, end_wall FROM unplugged_windows WHERE workspace_id = ? ORDER BY start_wall", workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []model.UnpluggedWindow
	for rows.Next() {
		var window model.UnpluggedWindow
		if err := rows.Scan(&window.ID, &window.WorkspaceID, &window.Label, &window.Start, &window.End); err != nil {
			return nil, err
		}
		windows = append(windows, window)
	}
	return windows, rows.Err()
}

func (s *Store) LoadLedger(ctx context.Context, workspaceID int64, day time.Time) ([]model.TimeBlock, error) {
	dayStart := timeutil.DayStart(day)
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := s.DB.QueryContext(ctx,
		"SELECT id, task_id, workspace_id, title, start_at, end_at, status, review_memo, urgent, split_index, position FROM time_blocks WHERE workspace_id = ? AND start_at >= ? AND start_at < ? ORDER BY position, start_at",
		workspaceID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []model.TimeBlock
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

func (s *Store) PersistTransition(ctx context.Context, requestID string, result engine.TransitionResult) (int64, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := claimRequest(ctx, tx, requestID); err != nil {
		return 0, err
	}

	block := result.Block
	if _, err := tx.ExecContext(ctx,
		"UPDATE time_blocks SET start_at = ?, end_at = ?, status = ?, review_memo = ? WHERE id = ?",
		block.Start, block.End, block.Status, block.ReviewMemo, block.ID); err != nil {
		return 0, err
	}

	for _, shifted := range result.Shifted {
		if _, err := tx.ExecContext(ctx,
			"UPDATE time_blocks SET start_at = ?, end_at = ? WHERE id = ?",
			shifted.Start, shifted.End, shifted.ID); err != nil {
			return 0, err
		}
	}

	for _, renumbered := range result.Renumbered {
		if _, err := tx.ExecContext(ctx,
			"UPDATE time_blocks SET split_index = ? WHERE id = ?",
			renumbered.SplitIndex, renumbered.ID); err != nil {
			return 0, err
		}
	}

	var residualID int64
	if result.Residual != nil {
		residual := *result.Residual
		inserted, err := tx.ExecContext(ctx,
			"INSERT INTO time_blocks (task_id, workspace_id, title, start_at, end_at, status, urgent, split_index, position) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			nullableID(residual.TaskID), residual.WorkspaceID, residual.Title, residual.Start, residual.End, residual.Status, boolToInt(residual.Urgent), residual.SplitIndex, residual.Position)
		if err != nil {
			return 0, err
		}
		residualID, err = inserted.LastInsertId()
		if err != nil {
			return 0, err
		}
	}

	if result.Block.Status == model.StatusDone && result.Residual == nil && result.Block.TaskID != nil {
		if err := archiveTaskIfDone(ctx, tx, *result.Block.TaskID); err != nil {
			return 0, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO transitions (workspace_id, block_id, action, extra_minutes, discarded_minutes, details) VALUES (?, ?, ?, ?, ?, ?)",
		block.WorkspaceID, block.ID, result.Action.String(), result.ExtraMinutes, result.DiscardedMinutes, formatTransitionDetails(result)); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return residualID, nil
}

func (s *Store) PersistReorder(ctx context.Context, requestID string, workspaceID int64, orderedBlockIDs []int64, retimed []model.TimeBlock) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := claimRequest(ctx, tx, requestID); err != nil {
		return err
	}

	for position, blockID := range orderedBlockIDs {
		if _, err := tx.ExecContext(ctx,
			"UPDATE time_blocks SET position = ? WHERE id = ? AND workspace_id = ?",
			position, blockID, workspaceID); err != nil {
			return err
		}
	}
	for _, block := range retimed {
		if _, err := tx.ExecContext(ctx,
			"UPDATE time_blocks SET start_at = ?, end_at = ? WHERE id = ?",
			block.Start, block.End, block.ID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) PersistMoveToInbox(ctx context.Context, requestID string, blockID int64, taskFullyRemoved bool) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := claimRequest(ctx, tx, requestID); err != nil {
		return err
	}

	var taskID sql.NullInt64
	if err := tx.QueryRowContext(ctx, "SELECT task_id FROM time_blocks WHERE id = ?", blockID).Scan(&taskID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM time_blocks WHERE id = ?", blockID); err != nil {
		return err
	}
	if taskFullyRemoved && taskID.Valid {
		if _, err := tx.ExecContext(ctx, "UPDATE tasks SET scheduled = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?", taskID.Int64); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) PersistMoveToTimeline(ctx context.Context, requestID string, taskID int64, blocks []model.TimeBlock) ([]model.TimeBlock, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := claimRequest(ctx, tx, requestID); err != nil {
		return nil, err
	}

	var position int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM time_blocks WHERE workspace_id = ?",
		blocksWorkspace(blocks)).Scan(&position); err != nil {
		return nil, err
	}

	persisted := make([]model.TimeBlock, 0, len(blocks))
	for _, block := range blocks {
		block.Position = position
		inserted, err := tx.ExecContext(ctx,
			"INSERT INTO time_blocks (task_id, workspace_id, title, start_at, end_at, status, urgent, split_index, position) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			nullableID(block.TaskID), block.WorkspaceID, block.Title, block.Start, block.End, block.Status, boolToInt(block.Urgent), block.SplitIndex, block.Position)
		if err != nil {
			return nil, err
		}
		block.ID, err = inserted.LastInsertId()
		if err != nil {
			return nil, err
		}
		persisted = append(persisted, block)
		position++
	}

	if _, err := tx.ExecContext(ctx, "UPDATE tasks SET scheduled = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?", taskID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return persisted, nil
}

func (s *Store) PersistStatusChange(ctx context.Context, requestID string, blockID int64, status string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := claimRequest(ctx, tx, requestID); err != nil {
		return err
	}

	var workspaceID int64
	if err := tx.QueryRowContext(ctx, "SELECT workspace_id FROM time_blocks WHERE id = ?", blockID).Scan(&workspaceID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE time_blocks SET status = ? WHERE id = ?", status, blockID); err != nil {
		return err
	}

	action := "status_change"
	switch status {
	case model.StatusNow:
		action = "promote"
	case model.StatusPending:
		action = "flag_pending"
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO transitions (workspace_id, block_id, action, details) VALUES (?, ?, ?, ?)",
		workspaceID, blockID, action, fmt.Sprintf("status -> %s", status)); err != nil {
		return err
	}

	return tx.Commit()
}

// ListTransitions returns the audit entries for one calendar day,
// newest first. The day filter runs in Go: created_at is sqlite's
// CURRENT_TIMESTAMP text and does not range-compare cleanly against
// driver-bound time values.
func (s *Store) ListTransitions(ctx context.Context, workspaceID int64, day time.Time) ([]model.TransitionEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT id, block_id, action, extra_minutes, discarded_minutes, details, created_at FROM transitions WHERE workspace_id = ? ORDER BY created_at DESC, id DESC",
		workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.TransitionEntry
	for rows.Next() {
		var entry model.TransitionEntry
		if err := rows.Scan(&entry.ID, &entry.BlockID, &entry.Action, &entry.ExtraMinutes, &entry.DiscardedMinutes, &entry.Details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if !timeutil.SameDay(entry.CreatedAt.Local(), day) {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// archiveTaskIfDone flips the task back to unscheduled-done bookkeeping
// once every one of its blocks is done: the task leaves the inbox for
// good but keeps its record.
func archiveTaskIfDone(ctx context.Context, tx *sql.Tx, taskID int64) error {
	var open int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM time_blocks WHERE task_id = ? AND status != ?", taskID, model.StatusDone).Scan(&open)
	if err != nil {
		return err
	}
	if open > 0 {
		return nil
	}
	_, err = tx.ExecContext(ctx, "UPDATE tasks SET scheduled = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?", taskID)
	return err
}

func claimRequest(ctx context.Context, tx *sql.Tx, requestID string) error {
	result, err := tx.ExecContext(ctx,
		"INSERT INTO requests (request_id) VALUES (?) ON CONFLICT(request_id) DO NOTHING", requestID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", engine.ErrDuplicateRequest, requestID)
	}
	return nil
}

func scanBlock(rows *sql.Rows) (model.TimeBlock, error) {
	var block model.TimeBlock
	var taskID sql.NullInt64
	var urgent int64
	if err := rows.Scan(&block.ID, &taskID, &block.WorkspaceID, &block.Title, &block.Start, &block.End, &block.Status, &block.ReviewMemo, &urgent, &block.SplitIndex, &block.Position); err != nil {
		return model.TimeBlock{}, err
	}
	if taskID.Valid {
		id := taskID.Int64
		block.TaskID = &id
	}
	block.Urgent = urgent != 0
	return block, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

func blocksWorkspace(blocks []model.TimeBlock) int64 {
	if len(blocks) == 0 {
		return 0
	}
	return blocks[0].WorkspaceID
}

func formatTransitionDetails(result engine.TransitionResult) string {
	details := fmt.Sprintf("%s: '%s' -> %s, %s - %s",
		result.Action, result.Block.Title, result.Block.Status,
		result.Block.Start.Format("15:04"), result.Block.End.Format("15:04"))
	if result.DiscardedMinutes > 0 {
		details += fmt.Sprintf(", discarded %dm", result.DiscardedMinutes)
	}
	if result.Residual != nil {
		details += fmt.Sprintf(", continues %s - %s", result.Residual.Start.Format("15:04"), result.Residual.End.Format("15:04"))
	}
	if len(result.Shifted) > 0 {
		details += fmt.Sprintf(", shifted %d queued", len(result.Shifted))
	}
	if result.ReviewMemo != "" {
		details += fmt.Sprintf(", memo: %s", result.ReviewMemo)
	}
	return details
}
