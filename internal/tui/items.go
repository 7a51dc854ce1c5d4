package tui

import (
	"fmt"
	"strings"

	"github.com/danielgrim/dayblock/internal/model"
)

func formatBlockSummary(block model.TimeBlock) string {
	span := fmt.Sprintf("%s-%s", block.Start.Format("15:04"), block.End.Format("15:04"))
	title := block.Title
	if block.SplitIndex > 0 {
		title += " (cont.)"
	}
	if block.Urgent {
		title = "! " + title
	}
	return fmt.Sprintf("%s %4dm %-9s %s", span, block.Minutes(), block.Status, title)
}

func formatTaskSummary(task model.Task) string {
	title := task.Title
	if task.Urgent {
		title = "! " + title
	}
	summary := fmt.Sprintf("%s | %dm", title, task.EstimateMinutes)
	if memo := strings.TrimSpace(task.Memo); memo != "" {
		summary += " | " + memo
	}
	return summary
}

func formatTransitionSummary(entry model.TransitionEntry) string {
	return fmt.Sprintf("%s | %s | %s", entry.CreatedAt.Format("15:04"), entry.Action, entry.Details)
}

// movableBlockIDs returns the reorderable slice of the ledger: every
// block except done and unplugged ones, in sequence order.
func movableBlockIDs(blocks []model.TimeBlock) []int64 {
	ids := make([]int64, 0, len(blocks))
	for _, block := range blocks {
		if block.Status == model.StatusDone || block.Status == model.StatusUnplugged {
			continue
		}
		ids = append(ids, block.ID)
	}
	return ids
}

// swapNeighbor swaps id with its neighbor in ids. delta is -1 for up,
// +1 for down. Returns false when id is absent or already at the edge.
func swapNeighbor(ids []int64, id int64, delta int) bool {
	for i, candidate := range ids {
		if candidate != id {
			continue
		}
		j := i + delta
		if j < 0 || j >= len(ids) {
			return false
		}
		ids[i], ids[j] = ids[j], ids[i]
		return true
	}
	return false
}
