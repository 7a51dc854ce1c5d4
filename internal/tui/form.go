package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danielgrim/dayblock/internal/db"
	"github.com/danielgrim/dayblock/internal/engine"
	"github.com/danielgrim/dayblock/internal/model"
)

type formField struct {
	Label string
	Value string
}

const (
	fieldTitle = iota
	fieldMemo
	fieldEstimate
	fieldUrgent
)

func buildFormFields(task *model.Task) []formField {
	fields := []formField{
		{Label: "Title"},
		{Label: "Memo"},
		{Label: "Estimate (minutes)"},
		{Label: "Urgent (space)"},
	}

	if task == nil {
		fields[fieldEstimate].Value = "30"
		fields[fieldUrgent].Value = "no"
		return fields
	}

	fields[fieldTitle].Value = task.Title
	fields[fieldMemo].Value = task.Memo
	fields[fieldEstimate].Value = strconv.FormatInt(task.EstimateMinutes, 10)
	fields[fieldUrgent].Value = formatUrgent(task.Urgent)

	return fields
}

func parseFormFields(workspaceID int64, fields []formField) (db.TaskInput, error) {
	estimate, err := parseEstimate(fields[fieldEstimate].Value)
	if err != nil {
		return db.TaskInput{}, err
	}

	return db.TaskInput{
		WorkspaceID:     workspaceID,
		Title:           strings.TrimSpace(fields[fieldTitle].Value),
		Memo:            strings.TrimSpace(fields[fieldMemo].Value),
		Urgent:          parseUrgent(fields[fieldUrgent].Value),
		EstimateMinutes: estimate,
	}, nil
}

func parseEstimate(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("estimate is required")
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("estimate must be a positive number of minutes")
	}
	return parsed, nil
}

func formatUrgent(urgent bool) string {
	if urgent {
		return "yes"
	}
	return "no"
}

func parseUrgent(value string) bool {
	return strings.TrimSpace(strings.ToLower(value)) == "yes"
}

func isUrgentField(label string) bool {
	return strings.HasPrefix(label, "Urgent")
}

func toggleUrgent(current string) string {
	return formatUrgent(!parseUrgent(current))
}

// promptLabel names the input a transition prompt asks for.
func promptLabel(action engine.Action) string {
	switch action {
	case engine.ActionCompleteOnTime, engine.ActionCompleteNow:
		return "Review memo (optional)"
	case engine.ActionCompleteAgo:
		return "Minutes ago[, memo]"
	case engine.ActionDelay:
		return "Delay minutes"
	case engine.ActionInterrupt:
		return "Elapsed minutes (blank = until now)[, memo]"
	default:
		return "Value"
	}
}

// parsePromptValue turns the prompt buffer into a transition for the
// given action. Minutes-taking actions accept "N" or "N, memo".
func parsePromptValue(action engine.Action, blockID int64, value string) (engine.Transition, error) {
	transition := engine.Transition{BlockID: blockID, Action: action}
	value = strings.TrimSpace(value)

	switch action {
	case engine.ActionCompleteOnTime, engine.ActionCompleteNow:
		transition.ReviewMemo = value
		return transition, nil

	case engine.ActionCompleteAgo, engine.ActionDelay, engine.ActionInterrupt:
		minutesPart := value
		if at := strings.Index(value, ","); at >= 0 {
			minutesPart = strings.TrimSpace(value[:at])
			transition.ReviewMemo = strings.TrimSpace(value[at+1:])
		}
		if minutesPart == "" {
			if action == engine.ActionInterrupt {
				return transition, nil
			}
			return engine.Transition{}, fmt.Errorf("minutes are required")
		}
		minutes, err := strconv.ParseInt(minutesPart, 10, 64)
		if err != nil {
			return engine.Transition{}, fmt.Errorf("invalid minutes %q", minutesPart)
		}
		transition.Minutes = minutes
		return transition, nil

	default:
		return engine.Transition{}, fmt.Errorf("unknown action %s", action)
	}
}

func taskInputFromTask(task model.Task) db.TaskInput {
	return db.TaskInput{
		WorkspaceID:     task.WorkspaceID,
		Title:           task.Title,
		Memo:            task.Memo,
		Urgent:          task.Urgent,
		EstimateMinutes: task.EstimateMinutes,
	}
}
