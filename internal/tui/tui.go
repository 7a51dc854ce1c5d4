package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danielgrim/dayblock/internal/db"
	"github.com/danielgrim/dayblock/internal/engine"
	"github.com/danielgrim/dayblock/internal/model"
	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
)

const (
	viewHeader   = "header"
	viewFooter   = "footer"
	viewTimeline = "timeline"
	viewInbox    = "inbox"
	viewDetail   = "detail"
	viewHistory  = "history"
	viewForm     = "form"
	viewPrompt   = "prompt"
	viewHelp     = "help"
)

type UI struct {
	store  *db.Store
	engine *engine.Engine
	gui    *gocui.Gui

	workspace model.Workspace
	blocks    []model.TimeBlock
	inbox     []model.Task
	history   []model.TransitionEntry

	selectedBlock   int
	selectedInbox   int
	selectedHistory int
	focus           string

	form       *formState
	formEditor *formEditor
	prompt     *promptState
	helpActive bool
	status     string
}

type formState struct {
	taskID int64
	fields []formField
	index  int
}

type formEditor struct {
	ui *UI
}

type promptState struct {
	action  engine.Action
	blockID int64
	label   string
}

func Run(store *db.Store, eng *engine.Engine, tickInterval time.Duration) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	ui := &UI{
		store:  store,
		engine: eng,
		gui:    gui,
		focus:  viewTimeline,
	}
	ui.formEditor = &formEditor{ui: ui}

	workspace, err := store.GetWorkspace(context.Background(), eng.WorkspaceID())
	if err != nil {
		return err
	}
	ui.workspace = workspace

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}
	if err := eng.Refresh(context.Background()); err != nil {
		return err
	}
	if err := ui.refresh(); err != nil {
		return err
	}

	monitorCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor := engine.NewMonitor(eng, tickInterval, func(result engine.TickResult, tickErr error) {
		gui.Update(func(*gocui.Gui) error {
			if tickErr != nil {
				ui.status = tickErr.Error()
			}
			return ui.refresh()
		})
	})
	go monitor.Run(monitorCtx)

	if err := gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}

	return nil
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	if err := gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'q', gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'r', gocui.ModNone, u.reload); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'a', gocui.ModNone, u.addTask); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '?', gocui.ModNone, u.toggleHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", gocui.KeyTab, gocui.ModNone, u.switchFocus); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '1', gocui.ModNone, u.focusTimeline); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '2', gocui.ModNone, u.focusInbox); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '3', gocui.ModNone, u.focusDetail); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '4', gocui.ModNone, u.focusHistory); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTimeline, gocui.KeyArrowDown, gocui.ModNone, u.moveDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTimeline, 'j', gocui.ModNone, u.moveDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTimeline, gocui.KeyArrowUp, gocui.ModNone, u.moveUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTimeline, 'k', gocui.ModNone, u.moveUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTimeline, 'x', gocui.ModNone, u.completeOnTime); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTimeline, 'c', gocui.ModNone, u.completeNow); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTimeline, 'o', gocui.ModNone, u.completeAgo); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTimeline, 'w', gocui.ModNone, u.delayBlock); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTimeline, 'i', gocui.ModNone, u.interruptBlock); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTimeline, 'b', gocui.ModNone, u.moveBlockToInbox); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTimeline, 'K', gocui.ModNone, u.moveBlockUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTimeline, 'J', gocui.ModNone, u.moveBlockDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewInbox, gocui.KeyArrowDown, gocui.ModNone, u.moveDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewInbox, 'j', gocui.ModNone, u.moveDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewInbox, gocui.KeyArrowUp, gocui.ModNone, u.moveUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewInbox, 'k', gocui.ModNone, u.moveUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewInbox, 't', gocui.ModNone, u.moveTaskToTimeline); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewInbox, gocui.KeyEnter, gocui.ModNone, u.moveTaskToTimeline); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewInbox, 'e', gocui.ModNone, u.editTask); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewInbox, 'd', gocui.ModNone, u.deleteTask); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewInbox, 'u', gocui.ModNone, u.toggleTaskUrgent); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHistory, gocui.KeyArrowDown, gocui.ModNone, u.moveDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHistory, 'j', gocui.ModNone, u.moveDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHistory, gocui.KeyArrowUp, gocui.ModNone, u.moveUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHistory, 'k', gocui.ModNone, u.moveUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEnter, gocui.ModNone, u.submitForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyTab, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyBacktab, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowDown, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowUp, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEsc, gocui.ModNone, u.cancelForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewPrompt, gocui.KeyEnter, gocui.ModNone, u.submitPrompt); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewPrompt, gocui.KeyEsc, gocui.ModNone, u.cancelPrompt); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, gocui.KeyEsc, gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, 'q', gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, '?', gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	return nil
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 0, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	headerView.Wrap = true
	headerView.FgColor = gocui.ColorDefault
	u.renderHeader(headerView)

	footerY1 := maxY - 2
	if footerY1 < 1 {
		footerY1 = 1
	}
	footerY0 := footerY1 - 2
	if footerY0 < 1 {
		footerY0 = 1
	}
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = gocui.ColorDefault | gocui.AttrDim
	footerView.BgColor = gocui.ColorDefault
	u.renderFooter(footerView)

	bodyTop := 1
	bodyBottom := footerY0 - 1
	if bodyBottom < bodyTop {
		return nil
	}

	bodyHeight := bodyBottom - bodyTop + 1
	layout := computeLayout(maxX, bodyHeight)
	leftX0 := 0
	leftX1 := leftX0 + layout.leftWidth - 1
	rightX0 := leftX1 + 1
	if rightX0 >= maxX {
		rightX0 = leftX1
	}
	rightX1 := maxX - 1

	timelineY0 := bodyTop
	timelineY1 := timelineY0 + layout.timelineHeight - 1
	inboxY0 := timelineY1 + 1
	inboxY1 := bodyBottom

	detailY0 := bodyTop
	detailY1 := detailY0 + layout.detailHeight - 1
	historyY0 := detailY1 + 1
	historyY1 := bodyBottom

	timelineView, err := gui.SetView(viewTimeline, leftX0, timelineY0, leftX1, timelineY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		timelineView.Title = "1 Timeline"
		timelineView.TitleColor = gocui.ColorGreen
	}
	applyViewStyle(timelineView, u.focus == viewTimeline, true)
	u.renderTimeline(timelineView, u.focus == viewTimeline)

	inboxView, err := gui.SetView(viewInbox, leftX0, inboxY0, leftX1, inboxY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		inboxView.Title = "2 Inbox"
		inboxView.TitleColor = gocui.ColorYellow
	}
	applyViewStyle(inboxView, u.focus == viewInbox, true)
	u.renderInbox(inboxView, u.focus == viewInbox)

	detailView, err := gui.SetView(viewDetail, rightX0, detailY0, rightX1, detailY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		detailView.Title = "3 Detail"
	}
	applyViewStyle(detailView, u.focus == viewDetail, false)
	u.renderDetail(detailView)

	historyView, err := gui.SetView(viewHistory, rightX0, historyY0, rightX1, historyY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		historyView.Title = "4 History"
	}
	applyViewStyle(historyView, u.focus == viewHistory, true)
	u.renderHistory(historyView, u.focus == viewHistory)

	_, _ = gui.SetViewOnTop(viewHeader)
	_, _ = gui.SetViewOnTop(viewFooter)

	if u.form != nil {
		if err := u.showForm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewForm)
	}

	if u.prompt != nil {
		if err := u.showPrompt(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewPrompt)
	}

	if u.helpActive {
		if err := u.showHelp(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewHelp)
	}

	if gui.CurrentView() == nil {
		_, _ = gui.SetCurrentView(u.focus)
	}

	gui.Cursor = u.form != nil || u.prompt != nil

	return nil
}

type paneLayout struct {
	leftWidth      int
	timelineHeight int
	inboxHeight    int
	detailHeight   int
	historyHeight  int
}

func computeLayout(width, height int) paneLayout {
	safeWidth := max(width-2, 20)
	safeHeight := max(height, 8)

	leftWidth := safeWidth * 3 / 5
	if leftWidth < 40 {
		leftWidth = min(40, safeWidth-10)
	}

	timelineHeight := int(float64(safeHeight) * 0.65)
	if timelineHeight < 5 {
		timelineHeight = 5
	}
	inboxHeight := safeHeight - timelineHeight - 1
	if inboxHeight < 3 {
		inboxHeight = 3
		timelineHeight = max(safeHeight-inboxHeight-1, 5)
	}

	detailHeight := int(float64(safeHeight) * 0.5)
	if detailHeight < 5 {
		detailHeight = 5
	}
	historyHeight := safeHeight - detailHeight - 1
	if historyHeight < 3 {
		historyHeight = 3
		detailHeight = max(safeHeight-historyHeight-1, 5)
	}

	return paneLayout{
		leftWidth:      leftWidth,
		timelineHeight: timelineHeight,
		inboxHeight:    inboxHeight,
		detailHeight:   detailHeight,
		historyHeight:  historyHeight,
	}
}

func (u *UI) refresh() error {
	u.blocks = u.engine.Blocks()

	inbox, err := u.engine.Inbox(context.Background())
	if err != nil {
		return err
	}
	u.inbox = inbox

	history, err := u.store.ListTransitions(context.Background(), u.engine.WorkspaceID(), u.engine.Day())
	if err != nil {
		return err
	}
	u.history = history

	if u.selectedBlock >= len(u.blocks) {
		u.selectedBlock = max(len(u.blocks)-1, 0)
	}
	if u.selectedInbox >= len(u.inbox) {
		u.selectedInbox = max(len(u.inbox)-1, 0)
	}
	if u.selectedHistory >= len(u.history) {
		u.selectedHistory = max(len(u.history)-1, 0)
	}

	return nil
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()
	core := ""
	if u.workspace.CoreTimeStart != "" {
		core = fmt.Sprintf(" | core %s-%s", u.workspace.CoreTimeStart, u.workspace.CoreTimeEnd)
	}
	fmt.Fprintf(view, "%s | %s%s | %d scheduled, %d in inbox",
		u.workspace.Name, u.engine.Day().Format("Mon 2006-01-02"), core, len(u.blocks), len(u.inbox))
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	view.SetOrigin(0, 0)
	view.SetCursor(0, 0)

	fmt.Fprintln(view, "x done | c done now | o done ago | w delay | i interrupt | J/K reorder | b to inbox")
	fmt.Fprintln(view, "a add | e edit | d delete | u urgent | t/enter schedule | tab panes | r reload | ? help | q quit")
	if u.status != "" {
		fmt.Fprint(view, u.status)
	}
}

func (u *UI) renderTimeline(view *gocui.View, focused bool) {
	view.Clear()
	for i, block := range u.blocks {
		prefix := " "
		if i == u.selectedBlock {
			if focused {
				prefix = ">"
			} else {
				prefix = "*"
			}
		}
		fmt.Fprintf(view, "%s %s\n", prefix, formatBlockSummary(block))
	}
	if focused {
		view.SetCursor(0, min(u.selectedBlock, len(u.blocks)-1))
	}
}

func (u *UI) renderInbox(view *gocui.View, focused bool) {
	view.Clear()
	for i, task := range u.inbox {
		prefix := " "
		if i == u.selectedInbox {
			if focused {
				prefix = ">"
			} else {
				prefix = "*"
			}
		}
		fmt.Fprintf(view, "%s %s\n", prefix, formatTaskSummary(task))
	}
	if focused {
		view.SetCursor(0, min(u.selectedInbox, len(u.inbox)-1))
	}
}

func (u *UI) renderDetail(view *gocui.View) {
	view.Clear()

	if u.focus == viewInbox {
		task := u.selectedInboxTask()
		if task == nil {
			fmt.Fprint(view, "No task selected")
			return
		}
		lines := []string{
			task.Title,
			fmt.Sprintf("Estimate: %dm", task.EstimateMinutes),
			fmt.Sprintf("Urgent: %s", formatUrgent(task.Urgent)),
			"",
			task.Memo,
		}
		fmt.Fprint(view, strings.Join(lines, "\n"))
		return
	}

	block := u.selectedBlockRef()
	if block == nil {
		fmt.Fprint(view, "No block selected")
		return
	}

	lines := []string{
		block.Title,
		fmt.Sprintf("When: %s - %s (%dm)", block.Start.Format("15:04"), block.End.Format("15:04"), block.Minutes()),
		fmt.Sprintf("Status: %s", block.Status),
	}
	if block.SplitIndex > 0 {
		lines = append(lines, fmt.Sprintf("Continuation part %d", block.SplitIndex+1))
	}
	if block.Urgent {
		lines = append(lines, "Urgent")
	}
	if block.ReviewMemo != "" {
		lines = append(lines, "", fmt.Sprintf("Memo: %s", block.ReviewMemo))
	}
	fmt.Fprint(view, strings.Join(lines, "\n"))
}

func (u *UI) renderHistory(view *gocui.View, focused bool) {
	view.Clear()
	for i, entry := range u.history {
		prefix := " "
		if i == u.selectedHistory {
			if focused {
				prefix = ">"
			} else {
				prefix = "*"
			}
		}
		fmt.Fprintf(view, "%s %s\n", prefix, formatTransitionSummary(entry))
	}
	if focused {
		view.SetCursor(0, min(u.selectedHistory, len(u.history)-1))
	}
}

func (u *UI) selectedBlockRef() *model.TimeBlock {
	if u.selectedBlock >= 0 && u.selectedBlock < len(u.blocks) {
		return &u.blocks[u.selectedBlock]
	}
	return nil
}

func (u *UI) selectedInboxTask() *model.Task {
	if u.selectedInbox >= 0 && u.selectedInbox < len(u.inbox) {
		return &u.inbox[u.selectedInbox]
	}
	return nil
}

func (u *UI) switchFocus(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewTimeline:
		u.focus = viewInbox
	case viewInbox:
		u.focus = viewHistory
	default:
		u.focus = viewTimeline
	}
	_, _ = gui.SetCurrentView(u.focus)
	return nil
}

func (u *UI) focusTimeline(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewTimeline)
}

func (u *UI) focusInbox(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewInbox)
}

func (u *UI) focusDetail(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewDetail)
}

func (u *UI) focusHistory(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewHistory)
}

func (u *UI) setFocus(gui *gocui.Gui, name string) error {
	if u.inputActive() {
		return nil
	}
	u.focus = name
	_, _ = gui.SetCurrentView(name)
	return nil
}

func (u *UI) moveDown(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewTimeline:
		if u.selectedBlock < len(u.blocks)-1 {
			u.selectedBlock++
		}
	case viewInbox:
		if u.selectedInbox < len(u.inbox)-1 {
			u.selectedInbox++
		}
	case viewHistory:
		if u.selectedHistory < len(u.history)-1 {
			u.selectedHistory++
		}
	}
	return nil
}

func (u *UI) moveUp(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewTimeline:
		if u.selectedBlock > 0 {
			u.selectedBlock--
		}
	case viewInbox:
		if u.selectedInbox > 0 {
			u.selectedInbox--
		}
	case viewHistory:
		if u.selectedHistory > 0 {
			u.selectedHistory--
		}
	}
	return nil
}

func (u *UI) reload(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.status = ""
	if err := u.engine.Refresh(context.Background()); err != nil {
		u.status = err.Error()
		return nil
	}
	return u.refresh()
}

func (u *UI) completeOnTime(gui *gocui.Gui, _ *gocui.View) error {
	return u.openPrompt(engine.ActionCompleteOnTime)
}

func (u *UI) completeNow(gui *gocui.Gui, _ *gocui.View) error {
	return u.openPrompt(engine.ActionCompleteNow)
}

func (u *UI) completeAgo(gui *gocui.Gui, _ *gocui.View) error {
	return u.openPrompt(engine.ActionCompleteAgo)
}

func (u *UI) delayBlock(gui *gocui.Gui, _ *gocui.View) error {
	return u.openPrompt(engine.ActionDelay)
}

func (u *UI) interruptBlock(gui *gocui.Gui, _ *gocui.View) error {
	return u.openPrompt(engine.ActionInterrupt)
}

func (u *UI) openPrompt(action engine.Action) error {
	if u.inputActive() {
		return nil
	}
	block := u.selectedBlockRef()
	if block == nil {
		return nil
	}
	if !block.Actionable() {
		u.status = fmt.Sprintf("block is %s, only the now or pending block can be acted on", block.Status)
		return nil
	}
	u.prompt = &promptState{action: action, blockID: block.ID, label: promptLabel(action)}
	return nil
}

func (u *UI) showPrompt(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(50, maxX/3)
	height := 3
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2
	x1 := x0 + width
	y1 := y0 + height

	view, err := gui.SetView(viewPrompt, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Wrap = true
		view.Clear()
	}
	view.Title = fmt.Sprintf("%s: %s", u.prompt.action, u.prompt.label)
	view.Editable = true
	view.Editor = gocui.DefaultEditor
	_, _ = gui.SetCurrentView(viewPrompt)
	return nil
}

func (u *UI) submitPrompt(gui *gocui.Gui, view *gocui.View) error {
	if u.prompt == nil {
		return nil
	}

	transition, err := parsePromptValue(u.prompt.action, u.prompt.blockID, view.Buffer())
	if err != nil {
		u.status = err.Error()
		return nil
	}

	if _, err := u.engine.Apply(context.Background(), transition); err != nil {
		u.status = err.Error()
		return u.closePrompt(gui)
	}
	u.status = ""
	return u.closePrompt(gui)
}

func (u *UI) cancelPrompt(gui *gocui.Gui, _ *gocui.View) error {
	if u.prompt == nil {
		return nil
	}
	return u.closePrompt(gui)
}

func (u *UI) closePrompt(gui *gocui.Gui) error {
	u.prompt = nil
	_ = gui.DeleteView(viewPrompt)
	_, _ = gui.SetCurrentView(u.focus)
	return u.refresh()
}

func (u *UI) moveBlockToInbox(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	block := u.selectedBlockRef()
	if block == nil {
		return nil
	}
	if err := u.engine.MoveToInbox(context.Background(), block.ID); err != nil {
		u.status = err.Error()
		return nil
	}
	u.status = ""
	return u.refresh()
}

func (u *UI) moveBlockUp(gui *gocui.Gui, _ *gocui.View) error {
	return u.moveBlock(-1)
}

func (u *UI) moveBlockDown(gui *gocui.Gui, _ *gocui.View) error {
	return u.moveBlock(1)
}

func (u *UI) moveBlock(delta int) error {
	if u.inputActive() {
		return nil
	}
	block := u.selectedBlockRef()
	if block == nil {
		return nil
	}

	ids := movableBlockIDs(u.blocks)
	if !swapNeighbor(ids, block.ID, delta) {
		return nil
	}
	if err := u.engine.Reorder(context.Background(), ids); err != nil {
		u.status = err.Error()
		return nil
	}
	u.status = ""
	if err := u.refresh(); err != nil {
		return err
	}
	for i, candidate := range u.blocks {
		if candidate.ID == block.ID {
			u.selectedBlock = i
			break
		}
	}
	return nil
}

func (u *UI) moveTaskToTimeline(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	task := u.selectedInboxTask()
	if task == nil {
		return nil
	}
	if _, err := u.engine.MoveToTimeline(context.Background(), *task); err != nil {
		u.status = err.Error()
		return nil
	}
	u.status = ""
	return u.refresh()
}

func (u *UI) addTask(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.form = &formState{fields: buildFormFields(nil)}
	return nil
}

func (u *UI) editTask(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	task := u.selectedInboxTask()
	if task == nil {
		return nil
	}
	u.form = &formState{taskID: task.ID, fields: buildFormFields(task)}
	return nil
}

func (u *UI) deleteTask(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	task := u.selectedInboxTask()
	if task == nil {
		return nil
	}
	if err := u.store.DeleteTask(context.Background(), task.ID); err != nil {
		u.status = err.Error()
		return nil
	}
	u.status = ""
	return u.refresh()
}

func (u *UI) toggleTaskUrgent(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	task := u.selectedInboxTask()
	if task == nil {
		return nil
	}
	input := taskInputFromTask(*task)
	input.Urgent = !task.Urgent
	if _, err := u.store.UpdateTask(context.Background(), task.ID, input); err != nil {
		u.status = err.Error()
		return nil
	}
	u.status = ""
	return u.refresh()
}

func (u *UI) showForm(gui *gocui.Gui) error {
	if u.form == nil {
		return nil
	}

	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := min(10, max(7, maxY/2))
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2
	x1 := x0 + width
	y1 := y0 + height

	view, err := gui.SetView(viewForm, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Wrap = true
	}
	if u.form.taskID != 0 {
		view.Title = "Edit Task"
	} else {
		view.Title = "New Task"
	}
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.formEditor
	u.renderForm(view)
	_, _ = gui.SetCurrentView(viewForm)
	return nil
}

func (u *UI) submitForm(gui *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}

	input, err := parseFormFields(u.engine.WorkspaceID(), u.form.fields)
	if err != nil {
		u.status = err.Error()
		return nil
	}

	if u.form.taskID == 0 {
		if _, err := u.store.CreateTask(context.Background(), input); err != nil {
			u.status = err.Error()
			return nil
		}
	} else {
		if _, err := u.store.UpdateTask(context.Background(), u.form.taskID, input); err != nil {
			u.status = err.Error()
			return nil
		}
	}

	u.form = nil
	u.status = ""
	_ = gui.DeleteView(viewForm)
	_, _ = gui.SetCurrentView(u.focus)
	return u.refresh()
}

func (u *UI) cancelForm(gui *gocui.Gui, _ *gocui.View) error {
	u.form = nil
	_ = gui.DeleteView(viewForm)
	_, _ = gui.SetCurrentView(u.focus)
	return nil
}

func (u *UI) nextFormField(gui *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index < len(u.form.fields)-1 {
		u.form.index++
	}
	u.renderForm(view)
	return nil
}

func (u *UI) prevFormField(gui *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index > 0 {
		u.form.index--
	}
	u.renderForm(view)
	return nil
}

func (u *UI) renderForm(view *gocui.View) {
	if u.form == nil || view == nil {
		return
	}
	view.Clear()
	for index, field := range u.form.fields {
		prefix := "  "
		if index == u.form.index {
			prefix = "> "
		}
		fmt.Fprintf(view, "%s%s: %s\n", prefix, field.Label, field.Value)
	}
	label := u.form.fields[u.form.index].Label + ": "
	cursorX := len([]rune(label)) + len([]rune(u.form.fields[u.form.index].Value)) + 2
	view.SetCursor(cursorX, u.form.index)
}

func (e *formEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || ui.form == nil || view == nil {
		return false
	}
	field := &ui.form.fields[ui.form.index]

	if isUrgentField(field.Label) {
		switch key {
		case gocui.KeySpace, gocui.KeyArrowLeft, gocui.KeyArrowRight:
			field.Value = toggleUrgent(field.Value)
		}
		ui.renderForm(view)
		return true
	}

	switch key {
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(field.Value)
		if len(runes) > 0 {
			field.Value = string(runes[:len(runes)-1])
		}
	case gocui.KeySpace:
		field.Value += " "
	case gocui.KeyCtrlU:
		field.Value = ""
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		field.Value += string(ch)
	}

	ui.renderForm(view)
	return true
}

func (u *UI) toggleHelp(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() && !u.helpActive {
		return nil
	}
	u.helpActive = !u.helpActive
	return nil
}

func (u *UI) closeHelp(gui *gocui.Gui, _ *gocui.View) error {
	u.helpActive = false
	_ = gui.DeleteView(viewHelp)
	_, _ = gui.SetCurrentView(u.focus)
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := 14
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2
	x1 := x0 + width
	y1 := y0 + height

	view, err := gui.SetView(viewHelp, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Help"
		view.Wrap = true
	}
	view.Clear()
	fmt.Fprint(view, helpText())
	_, _ = gui.SetCurrentView(viewHelp)
	return nil
}

func (u *UI) inputActive() bool {
	return u.form != nil || u.prompt != nil || u.helpActive
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func helpText() string {
	return strings.Join([]string{
		"Navigation:",
		"  Tab cycle panes (timeline/inbox/history)",
		"  1 Timeline | 2 Inbox | 3 Detail | 4 History",
		"  j/k or arrows move selection",
		"",
		"Timeline (now or pending block):",
		"  x finished on schedule | c finished just now | o finished N minutes ago",
		"  w push back N minutes | i interrupted after N minutes (splits the block)",
		"  J/K move block down/up | b send block back to inbox",
		"",
		"Inbox:",
		"  a add | e edit | d delete | u toggle urgent",
		"  t or enter schedule onto the timeline",
		"",
		"Other:",
		"  r reload | ? help | esc/q close help | q quit",
	}, "\n")
}

func applyViewStyle(view *gocui.View, focused bool, highlight bool) {
	view.Frame = true
	view.Highlight = focused && highlight
	view.HighlightInactive = false
	view.SelBgColor = gocui.ColorBlue
	view.SelFgColor = gocui.ColorBlack
	view.InactiveViewSelBgColor = gocui.ColorDefault
	if focused {
		view.FrameColor = gocui.ColorCyan
		view.TitleColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
