package printers

import (
	"fmt"
	"time"

	"github.com/danielgrim/dayblock/internal/model"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
)

// Agenda prints a one-shot snapshot of the day to stdout.
type Agenda struct {
	ShowMemos bool
}

var statusColors = map[string]*color.Color{
	model.StatusWill:      color.New(),
	model.StatusNow:       color.New(color.FgGreen, color.Bold),
	model.StatusPending:   color.New(color.FgRed, color.Bold),
	model.StatusDone:      color.New(color.Faint),
	model.StatusUnplugged: color.New(color.FgCyan, color.Italic),
}

func (a *Agenda) Day(workspace model.Workspace, day time.Time, blocks []model.TimeBlock) {
	title := color.New(color.Bold, color.Underline)
	faint := color.New(color.Faint)

	_, _ = title.Printf("%s - %s\n", workspace.Name, day.Format("Mon 2006-01-02"))
	if workspace.CoreTimeStart != "" {
		_, _ = faint.Printf("core time %s-%s\n", workspace.CoreTimeStart, workspace.CoreTimeEnd)
	}
	fmt.Println("")

	if len(blocks) == 0 {
		_, _ = faint.Println("  nothing scheduled")
		fmt.Println("")
		return
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	for _, block := range blocks {
		span := fmt.Sprintf("%s-%s", block.Start.Format("15:04"), block.End.Format("15:04"))
		statusColor, ok := statusColors[block.Status]
		if !ok {
			statusColor = color.New()
		}

		blockTitle := block.Title
		if block.SplitIndex > 0 {
			blockTitle += " (cont.)"
		}
		if block.Urgent {
			blockTitle = color.New(color.FgHiYellow).Sprint("! " + blockTitle)
		}

		row := []interface{}{
			span,
			fmt.Sprintf("%dm", block.Minutes()),
			statusColor.Sprint(block.Status),
			blockTitle,
		}
		if a.ShowMemos {
			row = append(row, faint.Sprint(block.ReviewMemo))
		}
		tbl.AddRow(row...)
	}
	_, _ = fmt.Fprintln(color.Output, tbl)
	fmt.Println("")
}

func (a *Agenda) Inbox(tasks []model.Task) {
	title := color.New(color.Bold, color.Underline)
	faint := color.New(color.Faint)

	_, _ = title.Print("Inbox")
	_, _ = faint.Printf(" - %d\n", len(tasks))

	if len(tasks) == 0 {
		_, _ = faint.Println("  empty")
		fmt.Println("")
		return
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	for _, task := range tasks {
		taskTitle := task.Title
		if task.Urgent {
			taskTitle = color.New(color.FgHiYellow).Sprint("! " + taskTitle)
		}
		tbl.AddRow(taskTitle, fmt.Sprintf("%dm", task.EstimateMinutes), faint.Sprint(task.Memo))
	}
	_, _ = fmt.Fprintln(color.Output, tbl)
	fmt.Println("")
}

// Summary tallies the day once all blocks are in.
func (a *Agenda) Summary(blocks []model.TimeBlock) {
	var doneMinutes, queuedMinutes int64
	var doneCount, queuedCount int
	for _, block := range blocks {
		switch block.Status {
		case model.StatusDone:
			doneMinutes += block.Minutes()
			doneCount++
		case model.StatusWill, model.StatusNow, model.StatusPending:
			queuedMinutes += block.Minutes()
			queuedCount++
		}
	}

	faint := color.New(color.Faint)
	_, _ = faint.Printf("%d done (%dm), %d remaining (%dm)\n", doneCount, doneMinutes, queuedCount, queuedMinutes)
}
