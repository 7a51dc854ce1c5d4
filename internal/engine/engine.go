package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danielgrim/dayblock/internal/ledger"
	"github.com/danielgrim/dayblock/internal/model"
	"github.com/danielgrim/dayblock/internal/schedule"
	"github.com/danielgrim/dayblock/internal/timeutil"
	"github.com/google/uuid"
)

var (
	// ErrPersistence wraps store failures. The engine never retries;
	// it reloads the ledger and surfaces the error to the caller.
	ErrPersistence = errors.New("persistence failure")

	// ErrDuplicateRequest is returned by stores when a request id has
	// already been applied.
	ErrDuplicateRequest = errors.New("request already applied")
)

// Store is the narrow contract to the persistence collaborator. Every
// write takes a client-issued request id so retries stay idempotent.
type Store interface {
	LoadLedger(ctx context.Context, workspaceID int64, day time.Time) ([]model.TimeBlock, error)
	LoadInbox(ctx context.Context, workspaceID int64) ([]model.Task, error)
	LoadUnpluggedWindows(ctx context.Context, workspaceID int64) ([]model.UnpluggedWindow, error)
	PersistTransition(ctx context.Context, requestID string, result TransitionResult) (residualID int64, err error)
	PersistReorder(ctx context.Context, requestID string, workspaceID int64, orderedBlockIDs []int64, retimed []model.TimeBlock) error
	PersistMoveToInbox(ctx context.Context, requestID string, blockID int64, taskFullyRemoved bool) error
	PersistMoveToTimeline(ctx context.Context, requestID string, taskID int64, blocks []model.TimeBlock) ([]model.TimeBlock, error)
	PersistStatusChange(ctx context.Context, requestID string, blockID int64, status string) error
}

// Transition is one user-issued action against the current now or
// pending block.
type Transition struct {
	BlockID    int64
	Action     Action
	Minutes    int64
	ReviewMemo string
}

// TransitionResult is the authoritative post-mutation state handed to
// the caller and to the store.
type TransitionResult struct {
	Action           Action
	Block            model.TimeBlock
	Residual         *model.TimeBlock
	Shifted          []model.TimeBlock
	Renumbered       []model.TimeBlock
	Promoted         *model.TimeBlock
	ExtraMinutes     int64
	DiscardedMinutes int64
	ReviewMemo       string
}

// TickResult reports what one promotion-monitor tick changed.
type TickResult struct {
	Skipped        bool
	FlaggedPending *model.TimeBlock
	Promoted       *model.TimeBlock
}

// Engine serializes all mutations to one workspace-day's ledger. The
// mutex is the "one mutation in flight" rule; Tick uses TryLock so a
// stuck mutation drops ticks instead of queueing them.
type Engine struct {
	store        Store
	clock        timeutil.Clock
	workspaceID  int64
	day          time.Time
	newRequestID func() string

	mu      sync.Mutex
	ledger  *ledger.Ledger
	windows []model.UnpluggedWindow
}

func New(store Store, clock timeutil.Clock, workspaceID int64, day time.Time) *Engine {
	return &Engine{
		store:        store,
		clock:        clock,
		workspaceID:  workspaceID,
		day:          timeutil.DayStart(day),
		newRequestID: uuid.NewString,
	}
}

func (e *Engine) WorkspaceID() int64 {
	return e.workspaceID
}

func (e *Engine) Day() time.Time {
	return e.day
}

// Refresh reloads the ledger and unplugged windows from the store and
// projects the windows onto the day as read-only unplugged blocks.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reload(ctx)
}

func (e *Engine) reload(ctx context.Context) error {
	blocks, err := e.store.LoadLedger(ctx, e.workspaceID, e.day)
	if err != nil {
		return fmt.Errorf("%w: load ledger: %v", ErrPersistence, err)
	}
	windows, err := e.store.LoadUnpluggedWindows(ctx, e.workspaceID)
	if err != nil {
		return fmt.Errorf("%w: load unplugged windows: %v", ErrPersistence, err)
	}

	e.windows = windows
	all := make([]model.TimeBlock, 0, len(blocks)+len(windows))
	all = append(all, blocks...)
	for i, window := range windows {
		interval := timeutil.WindowsOnDay(e.day, []model.UnpluggedWindow{window})
		if len(interval) == 0 {
			continue
		}
		all = append(all, model.TimeBlock{
			// Projection only; negative ids keep these apart from
			// persisted blocks.
			ID:          -int64(i + 1),
			WorkspaceID: e.workspaceID,
			Title:       window.Label,
			Start:       interval[0].Start,
			End:         interval[0].End,
			Status:      model.StatusUnplugged,
		})
	}
	e.ledger = ledger.New(all)
	return nil
}

// Blocks returns the current ledger snapshot in sequence order.
func (e *Engine) Blocks() []model.TimeBlock {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger == nil {
		return nil
	}
	return e.ledger.Blocks()
}

func (e *Engine) Inbox(ctx context.Context) ([]model.Task, error) {
	tasks, err := e.store.LoadInbox(ctx, e.workspaceID)
	if err != nil {
		return nil, fmt.Errorf("%w: load inbox: %v", ErrPersistence, err)
	}
	return tasks, nil
}

// Apply runs one transition through the state machine: validate, mutate
// the ledger, persist, then promote the next eligible block.
func (e *Engine) Apply(ctx context.Context, transition Transition) (TransitionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	block, err := e.ledger.Get(transition.BlockID)
	if err != nil {
		return TransitionResult{}, err
	}
	if block.Status == model.StatusDone {
		return TransitionResult{}, fmt.Errorf("%w: block %d", ledger.ErrAlreadyResolved, block.ID)
	}
	if !block.Actionable() {
		return TransitionResult{}, fmt.Errorf("%w: block %d is %s", ledger.ErrInvalidState, block.ID, block.Status)
	}

	now := e.clock.Now()
	result := TransitionResult{
		Action:       transition.Action,
		ExtraMinutes: transition.Minutes,
		ReviewMemo:   transition.ReviewMemo,
	}

	switch transition.Action {
	case ActionCompleteOnTime:
		block.Status = model.StatusDone
		block.ReviewMemo = transition.ReviewMemo
		if err := e.ledger.Update(block); err != nil {
			return TransitionResult{}, err
		}

	case ActionCompleteNow:
		if !now.After(block.Start) {
			return TransitionResult{}, fmt.Errorf("%w: completion would not follow block start", ledger.ErrInvalidDuration)
		}
		if now.Before(block.End) {
			result.DiscardedMinutes = int64(block.End.Sub(now) / time.Minute)
		}
		block.Status = model.StatusDone
		block.End = now
		block.ReviewMemo = transition.ReviewMemo
		if err := e.ledger.Update(block); err != nil {
			return TransitionResult{}, err
		}

	case ActionCompleteAgo:
		if transition.Minutes < 0 {
			return TransitionResult{}, fmt.Errorf("%w: minutes ago must be >= 0", ledger.ErrInvalidDuration)
		}
		end := timeutil.AddMinutes(now, -transition.Minutes)
		if !end.After(block.Start) {
			return TransitionResult{}, fmt.Errorf("%w: end would precede block start", ledger.ErrInvalidDuration)
		}
		if end.Before(block.End) {
			result.DiscardedMinutes = int64(block.End.Sub(end) / time.Minute)
		}
		block.Status = model.StatusDone
		block.End = end
		block.ReviewMemo = transition.ReviewMemo
		if err := e.ledger.Update(block); err != nil {
			return TransitionResult{}, err
		}

	case ActionDelay:
		if transition.Minutes <= 0 {
			return TransitionResult{}, fmt.Errorf("%w: delay must be positive", ledger.ErrInvalidDuration)
		}
		if err := e.ledger.SetStatus(block.ID, model.StatusWill); err != nil {
			return TransitionResult{}, err
		}
		if err := e.ledger.ShiftFrom(block.ID, transition.Minutes); err != nil {
			return TransitionResult{}, err
		}
		block, err = e.ledger.Get(block.ID)
		if err != nil {
			return TransitionResult{}, err
		}
		result.Shifted = e.shiftedAfter(block)

	case ActionInterrupt:
		elapsed := transition.Minutes
		if elapsed == 0 {
			elapsed = int64(now.Sub(block.Start) / time.Minute)
		}
		prefix, residual, renumbered, err := e.ledger.SplitAt(block.ID, elapsed)
		if err != nil {
			return TransitionResult{}, err
		}
		block = prefix
		block.ReviewMemo = transition.ReviewMemo
		if err := e.ledger.Update(block); err != nil {
			return TransitionResult{}, err
		}
		result.Residual = &residual
		result.Renumbered = renumbered

	default:
		return TransitionResult{}, fmt.Errorf("%w: %s", ledger.ErrInvalidState, transition.Action)
	}

	result.Block = block

	if err := e.checkInvariants(ctx); err != nil {
		return TransitionResult{}, err
	}

	residualID, err := e.store.PersistTransition(ctx, e.newRequestID(), result)
	if err != nil {
		return TransitionResult{}, e.failAndReload(ctx, err)
	}
	if result.Residual != nil {
		e.ledger.ClaimID(residualID)
		result.Residual.ID = residualID
	}

	if transition.Action != ActionDelay && transition.Action != ActionInterrupt {
		promoted, err := e.promote(ctx, now)
		if err != nil {
			return TransitionResult{}, err
		}
		result.Promoted = promoted
	}

	return result, nil
}

func (e *Engine) shiftedAfter(block model.TimeBlock) []model.TimeBlock {
	var shifted []model.TimeBlock
	past := false
	for _, other := range e.ledger.Blocks() {
		if other.ID == block.ID {
			past = true
			continue
		}
		if past && other.Status == model.StatusWill {
			shifted = append(shifted, other)
		}
	}
	return shifted
}

// MoveToTimeline schedules an inbox task after the current cursor and
// inserts the resulting blocks into the ledger.
func (e *Engine) MoveToTimeline(ctx context.Context, task model.Task) ([]model.TimeBlock, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if task.EstimateMinutes <= 0 {
		return nil, fmt.Errorf("%w: task estimate must be positive", ledger.ErrInvalidDuration)
	}

	now := e.clock.Now()
	cursor := schedule.Cursor(e.ledger.Blocks(), now)
	blocks := schedule.Pack(task, cursor, timeutil.WindowsOnDay(e.day, e.windows))

	persisted, err := e.store.PersistMoveToTimeline(ctx, e.newRequestID(), task.ID, blocks)
	if err != nil {
		return nil, e.failAndReload(ctx, err)
	}
	if err := e.ledger.Insert(persisted); err != nil {
		// The store accepted what the ledger will not; resync.
		if reloadErr := e.reload(ctx); reloadErr != nil {
			return nil, reloadErr
		}
		return nil, err
	}
	return persisted, nil
}

// MoveToInbox removes a block from the timeline and returns its task to
// the inbox once no blocks remain.
func (e *Engine) MoveToInbox(ctx context.Context, blockID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fully, err := e.ledger.RemoveToInbox(blockID)
	if err != nil {
		return err
	}
	if err := e.store.PersistMoveToInbox(ctx, e.newRequestID(), blockID, fully); err != nil {
		return e.failAndReload(ctx, err)
	}
	return nil
}

// Reorder validates the new sequence, re-derives timestamps for the
// queued blocks in their new order, and persists both.
func (e *Engine) Reorder(ctx context.Context, orderedIDs []int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if err := e.ledger.Reorder(orderedIDs); err != nil {
		return err
	}
	retimed := e.retimeQueued(now)

	if err := e.store.PersistReorder(ctx, e.newRequestID(), e.workspaceID, orderedIDs, retimed); err != nil {
		return e.failAndReload(ctx, err)
	}
	return nil
}

// retimeQueued walks the will blocks in sequence order and re-derives
// start times after the cursor, skipping unplugged windows. Each block
// keeps its duration whole; reorder never re-splits.
func (e *Engine) retimeQueued(now time.Time) []model.TimeBlock {
	exclusions := timeutil.WindowsOnDay(e.day, e.windows)
	cursor := now
	if nowBlock := e.ledger.NowBlock(); nowBlock != nil {
		cursor = nowBlock.End
	}

	var retimed []model.TimeBlock
	for _, block := range e.ledger.Blocks() {
		switch block.Status {
		case model.StatusPending:
			if block.End.After(cursor) {
				cursor = block.End
			}
			continue
		case model.StatusWill:
		default:
			continue
		}

		duration := block.Minutes()
		start := nextFit(cursor, duration, exclusions)
		if !start.Equal(block.Start) {
			block.Start = start
			block.End = timeutil.AddMinutes(start, duration)
			_ = e.ledger.Update(block)
			retimed = append(retimed, block)
		}
		cursor = timeutil.AddMinutes(start, duration)
	}
	return retimed
}

// nextFit finds the earliest start at or after cursor where the whole
// duration avoids every exclusion window.
func nextFit(cursor time.Time, minutes int64, exclusions []timeutil.Interval) time.Time {
	start := cursor
	for {
		candidate := timeutil.Interval{Start: start, End: timeutil.AddMinutes(start, minutes)}
		moved := false
		for _, excl := range exclusions {
			if candidate.Start.Before(excl.End) && excl.Start.Before(candidate.End) {
				start = excl.End
				moved = true
				break
			}
		}
		if !moved {
			return start
		}
	}
}

// Tick is one promotion-monitor pass: flag an overdue now block as
// pending, otherwise promote the next eligible will block. A pending
// block parks promotion until the user disposes of it.
func (e *Engine) Tick(ctx context.Context) (TickResult, error) {
	if !e.mu.TryLock() {
		return TickResult{Skipped: true}, nil
	}
	defer e.mu.Unlock()

	if e.ledger == nil {
		if err := e.reload(ctx); err != nil {
			return TickResult{}, err
		}
	}

	now := e.clock.Now()

	if nowBlock := e.ledger.NowBlock(); nowBlock != nil {
		if nowBlock.End.After(now) {
			return TickResult{}, nil
		}
		if err := e.ledger.SetStatus(nowBlock.ID, model.StatusPending); err != nil {
			return TickResult{}, err
		}
		if err := e.store.PersistStatusChange(ctx, e.newRequestID(), nowBlock.ID, model.StatusPending); err != nil {
			return TickResult{}, e.failAndReload(ctx, err)
		}
		flagged, err := e.ledger.Get(nowBlock.ID)
		if err != nil {
			return TickResult{}, err
		}
		return TickResult{FlaggedPending: &flagged}, nil
	}

	if e.ledger.PendingBlock() != nil {
		return TickResult{}, nil
	}

	promoted, err := e.promote(ctx, now)
	if err != nil {
		return TickResult{}, err
	}
	return TickResult{Promoted: promoted}, nil
}

func (e *Engine) promote(ctx context.Context, now time.Time) (*model.TimeBlock, error) {
	if e.ledger.NowBlock() != nil || e.ledger.PendingBlock() != nil {
		return nil, nil
	}
	next := e.ledger.NextEligible(now)
	if next == nil {
		return nil, nil
	}
	if err := e.ledger.SetStatus(next.ID, model.StatusNow); err != nil {
		return nil, err
	}
	if err := e.store.PersistStatusChange(ctx, e.newRequestID(), next.ID, model.StatusNow); err != nil {
		return nil, e.failAndReload(ctx, err)
	}
	promoted, err := e.ledger.Get(next.ID)
	if err != nil {
		return nil, err
	}
	if err := e.checkInvariants(ctx); err != nil {
		return nil, err
	}
	return &promoted, nil
}

// checkInvariants guards the one-now / ordering invariants after a
// local mutation. A violation means the mutation logic is wrong; the
// ledger is reloaded from the store so the caller never sees the bad
// state.
func (e *Engine) checkInvariants(ctx context.Context) error {
	err := e.ledger.CheckInvariants()
	if err == nil {
		return nil
	}
	if reloadErr := e.reload(ctx); reloadErr != nil {
		return fmt.Errorf("%w: %v (reload also failed: %v)", ledger.ErrInvalidState, err, reloadErr)
	}
	return fmt.Errorf("%w: %v", ledger.ErrInvalidState, err)
}

// failAndReload maps a store error and restores the ledger to the
// persisted state, since a partial local mutation must not survive a
// failed write.
func (e *Engine) failAndReload(ctx context.Context, err error) error {
	if errors.Is(err, ErrDuplicateRequest) {
		return fmt.Errorf("%w: %v", ledger.ErrAlreadyResolved, err)
	}
	if reloadErr := e.reload(ctx); reloadErr != nil {
		return fmt.Errorf("%w: %v (reload also failed: %v)", ErrPersistence, err, reloadErr)
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
