package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/danielgrim/dayblock/internal/model"
	"github.com/danielgrim/dayblock/internal/timeutil"
)

func at(t *testing.T, wall string) time.Time {
	t.Helper()
	day, err := time.Parse("2006-01-02", "2025-03-10")
	if err != nil {
		t.Fatalf("parse day: %v", err)
	}
	placed, err := timeutil.OnDay(day, wall)
	if err != nil {
		t.Fatalf("place %s: %v", wall, err)
	}
	return placed
}

func block(t *testing.T, id int64, taskID int64, status, start, end string) model.TimeBlock {
	t.Helper()
	b := model.TimeBlock{
		ID:          id,
		WorkspaceID: 1,
		Title:       "task",
		Start:       at(t, start),
		End:         at(t, end),
		Status:      status,
	}
	if taskID != 0 {
		b.TaskID = &taskID
	}
	return b
}

func TestNewOrdersByPositionThenStart(t *testing.T) {
	a := block(t, 1, 1, model.StatusWill, "10:00", "11:00")
	a.Position = 2
	b := block(t, 2, 2, model.StatusWill, "09:00", "10:00")
	b.Position = 1

	l := New([]model.TimeBlock{a, b})
	blocks := l.Blocks()
	if blocks[0].ID != 2 || blocks[1].ID != 1 {
		t.Fatalf("unexpected order: %d, %d", blocks[0].ID, blocks[1].ID)
	}
	if blocks[0].Position != 0 || blocks[1].Position != 1 {
		t.Fatalf("expected renumbered positions, got %d and %d", blocks[0].Position, blocks[1].Position)
	}
}

func TestInsertKeepsStartOrder(t *testing.T) {
	l := New([]model.TimeBlock{
		block(t, 1, 1, model.StatusNow, "09:00", "10:00"),
		block(t, 2, 2, model.StatusWill, "11:00", "12:00"),
	})

	if err := l.Insert([]model.TimeBlock{block(t, 3, 3, model.StatusWill, "10:00", "11:00")}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	blocks := l.Blocks()
	if blocks[1].ID != 3 {
		t.Fatalf("expected inserted block in the middle, got id %d", blocks[1].ID)
	}
	if err := l.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestInsertRejectsOverlap(t *testing.T) {
	l := New([]model.TimeBlock{block(t, 1, 1, model.StatusWill, "09:00", "10:00")})

	err := l.Insert([]model.TimeBlock{block(t, 2, 2, model.StatusWill, "09:30", "10:30")})
	if !errors.Is(err, ErrInvalidReorder) {
		t.Fatalf("expected ErrInvalidReorder, got %v", err)
	}
}

func TestRemoveToInboxSplitTask(t *testing.T) {
	l := New([]model.TimeBlock{
		block(t, 1, 7, model.StatusWill, "09:00", "09:30"),
		block(t, 2, 7, model.StatusWill, "10:00", "10:30"),
	})

	fully, err := l.RemoveToInbox(1)
	if err != nil {
		t.Fatalf("remove first split: %v", err)
	}
	if fully {
		t.Fatalf("task still has a block, should not be fully removed")
	}

	fully, err = l.RemoveToInbox(2)
	if err != nil {
		t.Fatalf("remove last split: %v", err)
	}
	if !fully {
		t.Fatalf("expected task fully removed")
	}
}

func TestRemoveToInboxRejectsDoneAndUnplugged(t *testing.T) {
	l := New([]model.TimeBlock{
		block(t, 1, 1, model.StatusDone, "09:00", "10:00"),
		block(t, 2, 0, model.StatusUnplugged, "12:00", "13:00"),
	})

	if _, err := l.RemoveToInbox(1); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for done block, got %v", err)
	}
	if _, err := l.RemoveToInbox(2); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for unplugged block, got %v", err)
	}
}

func TestReorderSwapsFutureBlocks(t *testing.T) {
	l := New([]model.TimeBlock{
		block(t, 1, 1, model.StatusNow, "09:00", "10:00"),
		block(t, 2, 2, model.StatusWill, "10:00", "11:00"),
		block(t, 3, 3, model.StatusWill, "11:00", "12:00"),
	})

	if err := l.Reorder([]int64{1, 3, 2}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	blocks := l.Blocks()
	if blocks[0].ID != 1 || blocks[1].ID != 3 || blocks[2].ID != 2 {
		t.Fatalf("unexpected order: %d %d %d", blocks[0].ID, blocks[1].ID, blocks[2].ID)
	}
}

func TestReorderKeepsImmovableSlots(t *testing.T) {
	l := New([]model.TimeBlock{
		block(t, 1, 1, model.StatusDone, "08:00", "09:00"),
		block(t, 2, 2, model.StatusWill, "10:00", "11:00"),
		block(t, 3, 0, model.StatusUnplugged, "12:00", "13:00"),
		block(t, 4, 4, model.StatusWill, "13:00", "14:00"),
	})

	if err := l.Reorder([]int64{4, 2}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	blocks := l.Blocks()
	if blocks[0].ID != 1 || blocks[2].ID != 3 {
		t.Fatalf("immovable blocks moved: %d %d %d %d", blocks[0].ID, blocks[1].ID, blocks[2].ID, blocks[3].ID)
	}
	if blocks[1].ID != 4 || blocks[3].ID != 2 {
		t.Fatalf("movable blocks not reordered: %d %d", blocks[1].ID, blocks[3].ID)
	}
}

func TestReorderRejections(t *testing.T) {
	build := func() *Ledger {
		return New([]model.TimeBlock{
			block(t, 1, 1, model.StatusNow, "09:00", "10:00"),
			block(t, 2, 2, model.StatusWill, "10:00", "11:00"),
			block(t, 3, 3, model.StatusDone, "08:00", "09:00"),
		})
	}
	if err := build().Reorder([]int64{2, 1}); !errors.Is(err, ErrInvalidReorder) {
		t.Fatalf("expected rejection when active block is displaced, got %v", err)
	}
	if err := build().Reorder([]int64{1, 3}); !errors.Is(err, ErrInvalidReorder) {
		t.Fatalf("expected rejection when done block is named, got %v", err)
	}
	if err := build().Reorder([]int64{1}); !errors.Is(err, ErrInvalidReorder) {
		t.Fatalf("expected rejection on dropped block, got %v", err)
	}
	if err := build().Reorder([]int64{1, 1}); !errors.Is(err, ErrInvalidReorder) {
		t.Fatalf("expected rejection on duplicate block, got %v", err)
	}
}

func TestSplitAt(t *testing.T) {
	l := New([]model.TimeBlock{block(t, 1, 5, model.StatusNow, "09:00", "10:00")})

	prefix, residual, renumbered, err := l.SplitAt(1, 40)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(renumbered) != 0 {
		t.Fatalf("single-block task should not renumber anything, got %d", len(renumbered))
	}
	if prefix.Status != model.StatusDone || !prefix.End.Equal(at(t, "09:40")) {
		t.Fatalf("unexpected prefix: %s ending %v", prefix.Status, prefix.End)
	}
	if residual.Status != model.StatusPending || !residual.Start.Equal(at(t, "09:40")) || !residual.End.Equal(at(t, "10:00")) {
		t.Fatalf("unexpected residual: %s %v - %v", residual.Status, residual.Start, residual.End)
	}
	if residual.SplitIndex != prefix.SplitIndex+1 {
		t.Fatalf("expected residual split index %d, got %d", prefix.SplitIndex+1, residual.SplitIndex)
	}
	if residual.TaskID == nil || *residual.TaskID != 5 {
		t.Fatalf("residual lost its task")
	}
}

func TestSplitAtRejectsBadInput(t *testing.T) {
	l := New([]model.TimeBlock{
		block(t, 1, 1, model.StatusNow, "09:00", "10:00"),
		block(t, 2, 2, model.StatusWill, "10:00", "11:00"),
	})

	if _, _, _, err := l.SplitAt(1, 0); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration for zero elapsed, got %v", err)
	}
	if _, _, _, err := l.SplitAt(1, 60); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration for full elapsed, got %v", err)
	}
	if _, _, _, err := l.SplitAt(2, 10); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for will block, got %v", err)
	}
}

func TestSplitAtRenumbersLaterSplitsOfSameTask(t *testing.T) {
	later := block(t, 2, 7, model.StatusWill, "10:30", "11:00")
	later.SplitIndex = 1
	l := New([]model.TimeBlock{
		block(t, 1, 7, model.StatusNow, "09:00", "10:00"),
		later,
	})

	_, residual, renumbered, err := l.SplitAt(1, 40)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if residual.SplitIndex != 1 {
		t.Fatalf("expected residual split index 1, got %d", residual.SplitIndex)
	}
	if len(renumbered) != 1 || renumbered[0].ID != 2 || renumbered[0].SplitIndex != 2 {
		t.Fatalf("expected block 2 renumbered to split index 2, got %+v", renumbered)
	}
	if err := l.CheckInvariants(); err != nil {
		t.Fatalf("invariants after split: %v", err)
	}
}

func TestShiftFromPreservesGaps(t *testing.T) {
	l := New([]model.TimeBlock{
		block(t, 1, 1, model.StatusPending, "10:00", "11:00"),
		block(t, 2, 2, model.StatusWill, "11:00", "12:00"),
		block(t, 3, 3, model.StatusWill, "12:30", "13:00"),
	})

	if err := l.ShiftFrom(1, 15); err != nil {
		t.Fatalf("shift: %v", err)
	}
	blocks := l.Blocks()
	if !blocks[0].Start.Equal(at(t, "10:15")) {
		t.Fatalf("acted block not shifted: %v", blocks[0].Start)
	}
	if !blocks[1].Start.Equal(at(t, "11:15")) || !blocks[2].Start.Equal(at(t, "12:45")) {
		t.Fatalf("trailing blocks not shifted: %v, %v", blocks[1].Start, blocks[2].Start)
	}
	if gap := blocks[2].Start.Sub(blocks[1].End); gap != 30*time.Minute {
		t.Fatalf("relative gap changed: %v", gap)
	}
}

func TestCheckInvariantsCatchesSecondNow(t *testing.T) {
	l := New([]model.TimeBlock{
		block(t, 1, 1, model.StatusNow, "09:00", "10:00"),
		block(t, 2, 2, model.StatusNow, "10:00", "11:00"),
	})
	if err := l.CheckInvariants(); err == nil {
		t.Fatalf("expected invariant failure for two now blocks")
	}
}
