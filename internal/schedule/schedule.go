package schedule

import (
	"time"

	"github.com/danielgrim/dayblock/internal/model"
	"github.com/danielgrim/dayblock/internal/timeutil"
)

// horizon bounds how far past the last exclusion the packer looks. The
// windows are recurring daily exclusions, so one day past the cursor
// always leaves room.
const horizonMinutes = 24 * 60

// Pack lays the task out after the cursor, splitting around the
// exclusion windows. The returned blocks are all in will status, carry
// ascending split indexes, and sum to the task's estimate. Packing
// never fails; a non-positive estimate yields no blocks.
func Pack(task model.Task, afterCursor time.Time, exclusions []timeutil.Interval) []model.TimeBlock {
	if task.EstimateMinutes <= 0 {
		return nil
	}

	span := timeutil.Interval{
		Start: afterCursor,
		End:   timeutil.AddMinutes(afterCursor, task.EstimateMinutes+horizonMinutes),
	}

	blocks := make([]model.TimeBlock, 0, 2)
	remaining := task.EstimateMinutes
	splitIndex := int64(0)

	for _, free := range timeutil.Subtract(span, exclusions) {
		if remaining <= 0 {
			break
		}
		length := free.Minutes()
		if length < 1 {
			continue
		}
		if length > remaining {
			length = remaining
		}

		taskID := task.ID
		blocks = append(blocks, model.TimeBlock{
			TaskID:      &taskID,
			WorkspaceID: task.WorkspaceID,
			Title:       task.Title,
			Start:       free.Start,
			End:         timeutil.AddMinutes(free.Start, length),
			Status:      model.StatusWill,
			Urgent:      task.Urgent,
			SplitIndex:  splitIndex,
		})
		splitIndex++
		remaining -= length
	}

	return blocks
}

// Cursor finds the earliest start for newly scheduled work: the end of
// the last will/now block, or now when nothing is scheduled ahead.
func Cursor(blocks []model.TimeBlock, now time.Time) time.Time {
	cursor := now
	for _, block := range blocks {
		if block.Status != model.StatusWill && block.Status != model.StatusNow {
			continue
		}
		if block.End.After(cursor) {
			cursor = block.End
		}
	}
	return cursor
}
