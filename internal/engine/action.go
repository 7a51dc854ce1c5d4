package engine

import "fmt"

// Action is the closed set of user-issued transitions. Keeping it a
// tagged type gives the dispatch switch exhaustiveness instead of
// string-keyed action names.
type Action int

const (
	ActionCompleteOnTime Action = iota
	ActionCompleteNow
	ActionCompleteAgo
	ActionDelay
	ActionInterrupt
)

func (a Action) String() string {
	switch a {
	case ActionCompleteOnTime:
		return "complete_on_time"
	case ActionCompleteNow:
		return "complete_now"
	case ActionCompleteAgo:
		return "complete_ago"
	case ActionDelay:
		return "delay"
	case ActionInterrupt:
		return "interrupt"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

func ParseAction(value string) (Action, error) {
	switch value {
	case "complete_on_time":
		return ActionCompleteOnTime, nil
	case "complete_now":
		return ActionCompleteNow, nil
	case "complete_ago":
		return ActionCompleteAgo, nil
	case "delay":
		return ActionDelay, nil
	case "interrupt":
		return ActionInterrupt, nil
	default:
		return 0, fmt.Errorf("unknown action %q", value)
	}
}
