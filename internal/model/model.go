package model

import "time"

const (
	StatusWill      = "will"
	StatusNow       = "now"
	StatusDone      = "done"
	StatusPending   = "pending"
	StatusUnplugged = "unplugged"
)

type Task struct {
	ID              int64
	WorkspaceID     int64
	Title           string
	Memo            string
	Urgent          bool
	EstimateMinutes int64
	Scheduled       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type TimeBlock struct {
	ID          int64
	TaskID      *int64
	WorkspaceID int64
	Title       string
	Start       time.Time
	End         time.Time
	Status      string
	ReviewMemo  string
	Urgent      bool
	SplitIndex  int64
	Position    int64
}

// Minutes is the block's scheduled length.
func (b TimeBlock) Minutes() int64 {
	return int64(b.End.Sub(b.Start) / time.Minute)
}

// Actionable reports whether the block can be the target of a user
// transition.
func (b TimeBlock) Actionable() bool {
	return b.Status == StatusNow || b.Status == StatusPending
}

type UnpluggedWindow struct {
	ID          int64
	WorkspaceID int64
	Label       string
	Start       string
	End         string
}

type Workspace struct {
	ID            int64
	Name          string
	CoreTimeStart string
	CoreTimeEnd   string
	CreatedAt     time.Time
}

type TransitionEntry struct {
	ID               int64
	BlockID          int64
	Action           string
	ExtraMinutes     int64
	DiscardedMinutes int64
	Details          string
	CreatedAt        time.Time
}
