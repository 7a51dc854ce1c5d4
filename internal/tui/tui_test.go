package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/danielgrim/dayblock/internal/engine"
	"github.com/danielgrim/dayblock/internal/model"
)

func TestParsePromptValueMinutesAndMemo(t *testing.T) {
	transition, err := parsePromptValue(engine.ActionCompleteAgo, 7, "15, wrapped up early")
	if err != nil {
		t.Fatalf("parse prompt: %v", err)
	}
	if transition.BlockID != 7 {
		t.Fatalf("expected block id 7, got %d", transition.BlockID)
	}
	if transition.Minutes != 15 {
		t.Fatalf("expected 15 minutes, got %d", transition.Minutes)
	}
	if transition.ReviewMemo != "wrapped up early" {
		t.Fatalf("expected memo to be parsed, got %q", transition.ReviewMemo)
	}

	if _, err := parsePromptValue(engine.ActionDelay, 7, ""); err == nil {
		t.Fatalf("expected delay without minutes to be rejected")
	}
	if _, err := parsePromptValue(engine.ActionCompleteAgo, 7, "soon"); err == nil {
		t.Fatalf("expected non-numeric minutes to be rejected")
	}
}

func TestParsePromptValueInterruptDefaultsToNow(t *testing.T) {
	transition, err := parsePromptValue(engine.ActionInterrupt, 3, "")
	if err != nil {
		t.Fatalf("parse prompt: %v", err)
	}
	if transition.Minutes != 0 {
		t.Fatalf("expected blank interrupt minutes to stay 0, got %d", transition.Minutes)
	}

	transition, err = parsePromptValue(engine.ActionCompleteOnTime, 3, "went fine")
	if err != nil {
		t.Fatalf("parse prompt: %v", err)
	}
	if transition.ReviewMemo != "went fine" {
		t.Fatalf("expected whole buffer as memo, got %q", transition.ReviewMemo)
	}
}

func TestMovableBlockIDsSkipsDoneAndUnplugged(t *testing.T) {
	blocks := []model.TimeBlock{
		{ID: 1, Status: model.StatusDone},
		{ID: 2, Status: model.StatusNow},
		{ID: -1, Status: model.StatusUnplugged},
		{ID: 3, Status: model.StatusWill},
		{ID: 4, Status: model.StatusPending},
	}
	ids := movableBlockIDs(blocks)
	if len(ids) != 3 {
		t.Fatalf("expected 3 movable blocks, got %d", len(ids))
	}
	if ids[0] != 2 || ids[1] != 3 || ids[2] != 4 {
		t.Fatalf("expected [2 3 4], got %v", ids)
	}
}

func TestSwapNeighbor(t *testing.T) {
	ids := []int64{2, 3, 4}
	if !swapNeighbor(ids, 3, 1) {
		t.Fatalf("expected swap to succeed")
	}
	if ids[1] != 4 || ids[2] != 3 {
		t.Fatalf("expected [2 4 3], got %v", ids)
	}
	if swapNeighbor(ids, 2, -1) {
		t.Fatalf("expected swap at top edge to fail")
	}
	if swapNeighbor(ids, 99, 1) {
		t.Fatalf("expected swap of unknown id to fail")
	}
}

func TestParseFormFieldsValidatesEstimate(t *testing.T) {
	fields := buildFormFields(nil)
	fields[fieldTitle].Value = "Write tests"
	fields[fieldEstimate].Value = "45"
	fields[fieldUrgent].Value = "yes"

	input, err := parseFormFields(1, fields)
	if err != nil {
		t.Fatalf("parse form: %v", err)
	}
	if input.EstimateMinutes != 45 {
		t.Fatalf("expected 45 minute estimate, got %d", input.EstimateMinutes)
	}
	if !input.Urgent {
		t.Fatalf("expected urgent to be set")
	}

	fields[fieldEstimate].Value = "0"
	if _, err := parseFormFields(1, fields); err == nil {
		t.Fatalf("expected zero estimate to be rejected")
	}
	fields[fieldEstimate].Value = "later"
	if _, err := parseFormFields(1, fields); err == nil {
		t.Fatalf("expected non-numeric estimate to be rejected")
	}
}

func TestFormatBlockSummaryMarksContinuations(t *testing.T) {
	start := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	block := model.TimeBlock{
		Title:      "Write report",
		Start:      start,
		End:        start.Add(time.Hour),
		Status:     model.StatusWill,
		SplitIndex: 1,
	}
	summary := formatBlockSummary(block)
	if want := "15:00-16:00"; !strings.Contains(summary, want) {
		t.Fatalf("expected summary to contain %q, got %q", want, summary)
	}
	if !strings.Contains(summary, "(cont.)") {
		t.Fatalf("expected continuation marker, got %q", summary)
	}
}
