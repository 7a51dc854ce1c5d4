package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/danielgrim/dayblock/internal/model"
)

var (
	ErrInvalidState    = errors.New("block is not in an actionable status")
	ErrInvalidDuration = errors.New("invalid minute value")
	ErrInvalidReorder  = errors.New("reorder violates block ordering rules")
	ErrAlreadyResolved = errors.New("block has already been resolved")
	ErrBlockNotFound   = errors.New("block not found")
)

// Ledger is the ordered block sequence for one workspace-day. It is a
// plain in-memory structure; persistence happens outside it.
type Ledger struct {
	blocks []model.TimeBlock
}

// New builds a ledger from stored blocks, normalizing order: position
// ascending, with start time breaking ties for blocks persisted before
// positions existed.
func New(blocks []model.TimeBlock) *Ledger {
	sorted := make([]model.TimeBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Position != sorted[j].Position {
			return sorted[i].Position < sorted[j].Position
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})
	ledger := &Ledger{blocks: sorted}
	ledger.renumber()
	return ledger
}

// Blocks returns a copy of the sequence in ledger order.
func (l *Ledger) Blocks() []model.TimeBlock {
	result := make([]model.TimeBlock, len(l.blocks))
	copy(result, l.blocks)
	return result
}

func (l *Ledger) Len() int {
	return len(l.blocks)
}

// Get returns the block with the given id.
func (l *Ledger) Get(blockID int64) (model.TimeBlock, error) {
	for _, block := range l.blocks {
		if block.ID == blockID {
			return block, nil
		}
	}
	return model.TimeBlock{}, fmt.Errorf("%w: %d", ErrBlockNotFound, blockID)
}

// NowBlock returns the block currently in now status, if any.
func (l *Ledger) NowBlock() *model.TimeBlock {
	for i := range l.blocks {
		if l.blocks[i].Status == model.StatusNow {
			block := l.blocks[i]
			return &block
		}
	}
	return nil
}

// PendingBlock returns the unresolved pending block, if any.
func (l *Ledger) PendingBlock() *model.TimeBlock {
	for i := range l.blocks {
		if l.blocks[i].Status == model.StatusPending {
			block := l.blocks[i]
			return &block
		}
	}
	return nil
}

// NextEligible returns the earliest will block whose start has arrived.
func (l *Ledger) NextEligible(now time.Time) *model.TimeBlock {
	var next *model.TimeBlock
	for i := range l.blocks {
		block := l.blocks[i]
		if block.Status != model.StatusWill || block.Start.After(now) {
			continue
		}
		if next == nil || block.Start.Before(next.Start) {
			copied := block
			next = &copied
		}
	}
	return next
}

// Insert adds new will blocks at the positions matching their start
// times, keeping scheduled blocks totally ordered.
func (l *Ledger) Insert(blocks []model.TimeBlock) error {
	for _, block := range blocks {
		if block.Status != model.StatusWill {
			return fmt.Errorf("%w: can only insert will blocks", ErrInvalidState)
		}
		if !block.End.After(block.Start) {
			return fmt.Errorf("%w: block end must follow start", ErrInvalidDuration)
		}
		for _, existing := range l.blocks {
			if existing.Status != model.StatusWill && existing.Status != model.StatusNow {
				continue
			}
			if block.Start.Before(existing.End) && existing.Start.Before(block.End) {
				return fmt.Errorf("%w: block overlaps %q", ErrInvalidReorder, existing.Title)
			}
		}
		l.blocks = append(l.blocks, block)
	}

	sort.SliceStable(l.blocks, func(i, j int) bool {
		return l.blocks[i].Start.Before(l.blocks[j].Start)
	})
	l.renumber()
	return nil
}

// RemoveToInbox removes a not-yet-done block. It reports whether the
// owning task has no blocks left in the ledger, meaning the task is
// fully back in the inbox.
func (l *Ledger) RemoveToInbox(blockID int64) (taskFullyRemoved bool, err error) {
	index := -1
	for i, block := range l.blocks {
		if block.ID == blockID {
			index = i
			break
		}
	}
	if index == -1 {
		return false, fmt.Errorf("%w: %d", ErrBlockNotFound, blockID)
	}

	removed := l.blocks[index]
	if removed.Status == model.StatusDone {
		return false, fmt.Errorf("%w: done blocks cannot return to the inbox", ErrInvalidState)
	}
	if removed.Status == model.StatusUnplugged {
		return false, fmt.Errorf("%w: unplugged blocks are not tasks", ErrInvalidState)
	}

	l.blocks = append(l.blocks[:index], l.blocks[index+1:]...)
	l.renumber()

	if removed.TaskID == nil {
		return false, nil
	}
	for _, block := range l.blocks {
		if block.TaskID != nil && *block.TaskID == *removed.TaskID {
			return false, nil
		}
	}
	return true, nil
}

// Reorder applies a full reordering of the movable blocks. The id list
// must be a permutation of the non-done, non-unplugged blocks, and the
// now block must stay first. Blocks are not re-timed here; the caller
// re-derives timestamps afterwards.
func (l *Ledger) Reorder(orderedIDs []int64) error {
	movable := make(map[int64]model.TimeBlock)
	for _, block := range l.blocks {
		if block.Status == model.StatusDone || block.Status == model.StatusUnplugged {
			continue
		}
		movable[block.ID] = block
	}

	if len(orderedIDs) != len(movable) {
		return fmt.Errorf("%w: order names %d blocks, ledger has %d movable", ErrInvalidReorder, len(orderedIDs), len(movable))
	}
	seen := make(map[int64]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, ok := movable[id]; !ok {
			return fmt.Errorf("%w: block %d is not movable", ErrInvalidReorder, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: block %d appears twice", ErrInvalidReorder, id)
		}
		seen[id] = struct{}{}
	}

	nowIndex := -1
	for i, id := range orderedIDs {
		if movable[id].Status == model.StatusNow {
			nowIndex = i
			break
		}
	}
	if nowIndex > 0 {
		return fmt.Errorf("%w: the active block must stay first", ErrInvalidReorder)
	}

	// Immovable blocks keep their slots; the movable slots are refilled
	// in the requested order.
	next := 0
	for i := range l.blocks {
		if l.blocks[i].Status == model.StatusDone || l.blocks[i].Status == model.StatusUnplugged {
			continue
		}
		l.blocks[i] = movable[orderedIDs[next]]
		next++
	}
	l.renumber()
	return nil
}

// SplitAt cuts an actionable block into a terminal prefix of elapsed
// minutes and a residual continuation carrying the remainder. The
// prefix keeps the block id; the residual is placed directly after it
// in the sequence with a zero id until the caller persists it. Later
// splits of the same task move up one index to make room for the
// residual; the renumbered blocks are returned so the caller can
// persist the new indexes.
func (l *Ledger) SplitAt(blockID int64, elapsedMinutes int64) (prefix, residual model.TimeBlock, renumbered []model.TimeBlock, err error) {
	index := -1
	for i, block := range l.blocks {
		if block.ID == blockID {
			index = i
			break
		}
	}
	if index == -1 {
		return model.TimeBlock{}, model.TimeBlock{}, nil, fmt.Errorf("%w: %d", ErrBlockNotFound, blockID)
	}

	block := l.blocks[index]
	if !block.Actionable() {
		return model.TimeBlock{}, model.TimeBlock{}, nil, fmt.Errorf("%w: %s block cannot be split", ErrInvalidState, block.Status)
	}
	if elapsedMinutes < 1 || elapsedMinutes >= block.Minutes() {
		return model.TimeBlock{}, model.TimeBlock{}, nil, fmt.Errorf("%w: elapsed %d of %d minutes", ErrInvalidDuration, elapsedMinutes, block.Minutes())
	}

	prefix = block
	prefix.End = prefix.Start.Add(time.Duration(elapsedMinutes) * time.Minute)
	prefix.Status = model.StatusDone

	residual = block
	residual.ID = 0
	residual.Start = prefix.End
	residual.End = block.End
	residual.Status = model.StatusPending
	residual.SplitIndex = block.SplitIndex + 1

	if block.TaskID != nil {
		for i := range l.blocks {
			other := &l.blocks[i]
			if i == index || other.TaskID == nil || *other.TaskID != *block.TaskID {
				continue
			}
			if other.SplitIndex > block.SplitIndex {
				other.SplitIndex++
				renumbered = append(renumbered, *other)
			}
		}
	}

	l.blocks[index] = prefix
	l.blocks = append(l.blocks[:index+1], append([]model.TimeBlock{residual}, l.blocks[index+1:]...)...)
	l.renumber()
	return prefix, residual, renumbered, nil
}

// ClaimID assigns a persisted id to the first block still carrying a
// zero id.
func (l *Ledger) ClaimID(id int64) {
	for i := range l.blocks {
		if l.blocks[i].ID == 0 {
			l.blocks[i].ID = id
			return
		}
	}
}

// SetStatus flips a block's status in place.
func (l *Ledger) SetStatus(blockID int64, status string) error {
	for i := range l.blocks {
		if l.blocks[i].ID == blockID {
			l.blocks[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrBlockNotFound, blockID)
}

// Update replaces a block wholesale, matching on id.
func (l *Ledger) Update(block model.TimeBlock) error {
	for i := range l.blocks {
		if l.blocks[i].ID == block.ID {
			block.Position = l.blocks[i].Position
			l.blocks[i] = block
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrBlockNotFound, block.ID)
}

// ShiftFrom moves the given block and every later will block forward
// by the same number of minutes, preserving their relative gaps.
func (l *Ledger) ShiftFrom(blockID int64, minutes int64) error {
	index := -1
	for i, block := range l.blocks {
		if block.ID == blockID {
			index = i
			break
		}
	}
	if index == -1 {
		return fmt.Errorf("%w: %d", ErrBlockNotFound, blockID)
	}

	delta := time.Duration(minutes) * time.Minute
	l.blocks[index].Start = l.blocks[index].Start.Add(delta)
	l.blocks[index].End = l.blocks[index].End.Add(delta)
	for i := index + 1; i < len(l.blocks); i++ {
		if l.blocks[i].Status != model.StatusWill {
			continue
		}
		l.blocks[i].Start = l.blocks[i].Start.Add(delta)
		l.blocks[i].End = l.blocks[i].End.Add(delta)
	}
	return nil
}

// CheckInvariants verifies the workspace-day invariants: at most one
// now block, scheduled blocks ordered and non-overlapping, and split
// blocks of one task contiguous in the sequence.
func (l *Ledger) CheckInvariants() error {
	nowCount := 0
	var prev *model.TimeBlock
	for i := range l.blocks {
		block := l.blocks[i]
		if !block.End.After(block.Start) {
			return fmt.Errorf("block %d has start >= end", block.ID)
		}
		if block.Status == model.StatusNow {
			nowCount++
		}
		if block.Status != model.StatusWill && block.Status != model.StatusNow {
			continue
		}
		if prev != nil {
			if block.Start.Before(prev.Start) {
				return fmt.Errorf("block %d starts before block %d", block.ID, prev.ID)
			}
			if block.Start.Before(prev.End) {
				return fmt.Errorf("block %d overlaps block %d", block.ID, prev.ID)
			}
		}
		copied := block
		prev = &copied
	}
	if nowCount > 1 {
		return fmt.Errorf("%d blocks in now status", nowCount)
	}

	lastIndexByTask := make(map[int64]int64)
	for _, block := range l.blocks {
		if block.TaskID == nil || block.Status == model.StatusUnplugged {
			continue
		}
		if last, ok := lastIndexByTask[*block.TaskID]; ok && block.SplitIndex <= last {
			return fmt.Errorf("task %d split indexes out of order", *block.TaskID)
		}
		lastIndexByTask[*block.TaskID] = block.SplitIndex
	}
	return nil
}

func (l *Ledger) renumber() {
	for i := range l.blocks {
		l.blocks[i].Position = int64(i)
	}
}
