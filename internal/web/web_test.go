package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgrim/dayblock/internal/db"
	"github.com/danielgrim/dayblock/internal/engine"
	"github.com/danielgrim/dayblock/internal/ledger"
	"github.com/danielgrim/dayblock/internal/model"
	"github.com/danielgrim/dayblock/internal/timeutil"
)

func newTestServer(t *testing.T) (*Server, func()) {
	t.Helper()
	sqlDB, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store := db.NewStore(sqlDB)
	ws, err := store.EnsureWorkspace(context.Background(), "work")
	if err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	eng := engine.New(store, timeutil.SystemClock(), ws.ID, time.Now())
	if err := eng.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return NewServer(store, eng), func() {
		_ = sqlDB.Close()
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestParseIDAction(t *testing.T) {
	id, action, err := parseIDAction("/api/blocks/42/transition", "/api/blocks/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != 42 || action != "transition" {
		t.Fatalf("expected (42, transition), got (%d, %q)", id, action)
	}

	id, action, err = parseIDAction("/api/tasks/7", "/api/tasks/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != 7 || action != "" {
		t.Fatalf("expected (7, \"\"), got (%d, %q)", id, action)
	}

	if _, _, err := parseIDAction("/api/blocks/", "/api/blocks/"); err == nil {
		t.Fatalf("expected missing id to fail")
	}
	if _, _, err := parseIDAction("/api/blocks/abc", "/api/blocks/"); err == nil {
		t.Fatalf("expected non-numeric id to fail")
	}
}

func TestWindowEndpointsManageUnpluggedWindows(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/windows", `{"label":"lunch","start":"12:00","end":"12:45"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add window: status %d: %s", rec.Code, rec.Body.String())
	}
	var window model.UnpluggedWindow
	if err := json.Unmarshal(rec.Body.Bytes(), &window); err != nil {
		t.Fatalf("decode window: %v", err)
	}
	if window.ID == 0 {
		t.Fatalf("expected window ID to be assigned")
	}

	projected := false
	for _, block := range srv.engine.Blocks() {
		if block.Status == model.StatusUnplugged && block.Title == "lunch" {
			projected = true
		}
	}
	if !projected {
		t.Fatalf("expected the new window projected onto the timeline")
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/windows", `{"label":"bad","start":"13:00","end":"12:00"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted window: status %d, want 400", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/windows", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list windows: status %d", rec.Code)
	}
	var windows []model.UnpluggedWindow
	if err := json.Unmarshal(rec.Body.Bytes(), &windows); err != nil {
		t.Fatalf("decode windows: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}

	rec = doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/api/windows/%d", window.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete window: status %d: %s", rec.Code, rec.Body.String())
	}
	for _, block := range srv.engine.Blocks() {
		if block.Status == model.StatusUnplugged {
			t.Fatalf("deleted window still projected onto the timeline")
		}
	}
}

func TestCoreTimeEndpointUpdatesWorkspace(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/core-time", `{"start":"09:00","end":"18:00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set core time: status %d: %s", rec.Code, rec.Body.String())
	}
	var workspace model.Workspace
	if err := json.Unmarshal(rec.Body.Bytes(), &workspace); err != nil {
		t.Fatalf("decode workspace: %v", err)
	}
	if workspace.CoreTimeStart != "09:00" || workspace.CoreTimeEnd != "18:00" {
		t.Fatalf("core time not stored, got %q - %q", workspace.CoreTimeStart, workspace.CoreTimeEnd)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/core-time", `{"start":"9am","end":"18:00"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad wall time: status %d, want 400", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/core-time", `{"start":"18:00","end":"09:00"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted core time: status %d, want 400", rec.Code)
	}
}

func TestStatusForMapsLedgerErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", ledger.ErrBlockNotFound), http.StatusNotFound},
		{fmt.Errorf("wrap: %w", ledger.ErrAlreadyResolved), http.StatusConflict},
		{fmt.Errorf("wrap: %w", ledger.ErrInvalidState), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", ledger.ErrInvalidDuration), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", ledger.ErrInvalidReorder), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", engine.ErrPersistence), http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
