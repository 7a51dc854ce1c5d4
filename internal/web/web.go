package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgrim/dayblock/internal/db"
	"github.com/danielgrim/dayblock/internal/engine"
	"github.com/danielgrim/dayblock/internal/ledger"
	"github.com/danielgrim/dayblock/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.tmpl"))

type Server struct {
	store  *db.Store
	engine *engine.Engine
}

type blockRow struct {
	Block    model.TimeBlock
	Span     string
	Minutes  int64
	Resumed  bool
	Editable bool
}

func NewServer(store *db.Store, eng *engine.Engine) *Server {
	return &Server{store: store, engine: eng}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.indexHandler)
	mux.HandleFunc("/api/ledger", s.apiLedgerHandler)
	mux.HandleFunc("/api/inbox", s.apiInboxHandler)
	mux.HandleFunc("/api/transitions", s.apiTransitionsHandler)
	mux.HandleFunc("/api/tasks", s.apiTasksHandler)
	mux.HandleFunc("/api/tasks/", s.apiTaskActionHandler)
	mux.HandleFunc("/api/blocks/", s.apiBlockActionHandler)
	mux.HandleFunc("/api/reorder", s.apiReorderHandler)
	mux.HandleFunc("/api/windows", s.apiWindowsHandler)
	mux.HandleFunc("/api/windows/", s.apiWindowActionHandler)
	mux.HandleFunc("/api/core-time", s.apiCoreTimeHandler)
	return mux
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspace, err := s.store.GetWorkspace(ctx, s.engine.WorkspaceID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	inbox, err := s.engine.Inbox(ctx)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	transitions, err := s.store.ListTransitions(ctx, s.engine.WorkspaceID(), s.engine.Day())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	data := struct {
		Workspace   model.Workspace
		Day         string
		Rows        []blockRow
		Inbox       []model.Task
		Transitions []model.TransitionEntry
	}{
		Workspace:   workspace,
		Day:         s.engine.Day().Format("Mon 2006-01-02"),
		Rows:        buildBlockRows(s.engine.Blocks()),
		Inbox:       inbox,
		Transitions: transitions,
	}

	if err := indexTemplate.Execute(w, data); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
}

func buildBlockRows(blocks []model.TimeBlock) []blockRow {
	rows := make([]blockRow, 0, len(blocks))
	for _, block := range blocks {
		rows = append(rows, blockRow{
			Block:    block,
			Span:     fmt.Sprintf("%s - %s", block.Start.Format("15:04"), block.End.Format("15:04")),
			Minutes:  block.Minutes(),
			Resumed:  block.SplitIndex > 0,
			Editable: block.Status != model.StatusDone && block.Status != model.StatusUnplugged,
		})
	}
	return rows
}

func (s *Server) apiLedgerHandler(w http.ResponseWriter, r *http.Request) {
	// Without a date the live engine ledger is authoritative; any other
	// day is a read-only view straight from the store.
	value := strings.TrimSpace(r.URL.Query().Get("date"))
	if value == "" {
		writeJSON(w, s.engine.Blocks())
		return
	}

	day, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid date %q, want YYYY-MM-DD", value))
		return
	}
	if day.Equal(s.engine.Day()) {
		writeJSON(w, s.engine.Blocks())
		return
	}

	blocks, err := s.store.LoadLedger(r.Context(), s.engine.WorkspaceID(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, blocks)
}

func (s *Server) apiInboxHandler(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.engine.Inbox(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, tasks)
}

func (s *Server) apiTransitionsHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListTransitions(r.Context(), s.engine.WorkspaceID(), s.engine.Day())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, entries)
}

func (s *Server) apiTasksHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	var payload struct {
		Title           string `json:"title"`
		Memo            string `json:"memo"`
		Urgent          bool   `json:"urgent"`
		EstimateMinutes int64  `json:"estimate_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	task, err := s.store.CreateTask(r.Context(), db.TaskInput{
		WorkspaceID:     s.engine.WorkspaceID(),
		Title:           payload.Title,
		Memo:            payload.Memo,
		Urgent:          payload.Urgent,
		EstimateMinutes: payload.EstimateMinutes,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, task)
}

func (s *Server) apiTaskActionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	id, action, err := parseIDAction(r.URL.Path, "/api/tasks/")
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if action != "timeline" {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown task action %q", action))
		return
	}

	task, err := s.store.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	blocks, err := s.engine.MoveToTimeline(r.Context(), task)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, blocks)
}

func (s *Server) apiBlockActionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	id, action, err := parseIDAction(r.URL.Path, "/api/blocks/")
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	switch action {
	case "transition":
		var payload struct {
			Action     string `json:"action"`
			Minutes    int64  `json:"minutes"`
			ReviewMemo string `json:"review_memo"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		parsed, err := engine.ParseAction(payload.Action)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		result, err := s.engine.Apply(r.Context(), engine.Transition{
			BlockID:    id,
			Action:     parsed,
			Minutes:    payload.Minutes,
			ReviewMemo: payload.ReviewMemo,
		})
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, result)

	case "inbox":
		if err := s.engine.MoveToInbox(r.Context(), id); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})

	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown block action %q", action))
	}
}

func (s *Server) apiReorderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	var payload struct {
		BlockIDs []int64 `json:"block_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Reorder(r.Context(), payload.BlockIDs); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, s.engine.Blocks())
}

// Window mutations refresh the engine so the unplugged projections on
// the timeline follow immediately.
func (s *Server) apiWindowsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		windows, err := s.store.LoadUnpluggedWindows(r.Context(), s.engine.WorkspaceID())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, windows)

	case http.MethodPost:
		var payload struct {
			Label string `json:"label"`
			Start string `json:"start"`
			End   string `json:"end"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		window, err := s.store.AddUnpluggedWindow(r.Context(), db.WindowInput{
			WorkspaceID: s.engine.WorkspaceID(),
			Label:       payload.Label,
			Start:       payload.Start,
			End:         payload.End,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.engine.Refresh(r.Context()); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, window)

	default:
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
	}
}

func (s *Server) apiWindowActionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	id, action, err := parseIDAction(r.URL.Path, "/api/windows/")
	if err != nil || action != "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown window path %q", r.URL.Path))
		return
	}
	if err := s.store.DeleteUnpluggedWindow(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.engine.Refresh(r.Context()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) apiCoreTimeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	var payload struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.SetCoreTime(r.Context(), s.engine.WorkspaceID(), payload.Start, payload.End); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	workspace, err := s.store.GetWorkspace(r.Context(), s.engine.WorkspaceID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, workspace)
}

func parseIDAction(path, prefix string) (int64, string, error) {
	if !strings.HasPrefix(path, prefix) {
		return 0, "", fmt.Errorf("invalid path")
	}
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return 0, "", fmt.Errorf("missing id")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", err
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	return id, action, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrBlockNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrAlreadyResolved):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidState),
		errors.Is(err, ledger.ErrInvalidDuration),
		errors.Is(err, ledger.ErrInvalidReorder):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}
