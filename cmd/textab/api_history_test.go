package main

import (
	"net/http"
	"testing"

	"github.com/Lector07/textab/pkg/latex"
)

// generateThrough runs one generation over the API so a history row gets
// recorded.
func generateThrough(t *testing.T, server *Server, cfg latex.TableConfig) {
	t.Helper()
	rr := doRequest(t, server, http.MethodPost, "/api/generate", "", cfg)
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /api/generate status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestHistoryRecordsGenerations(t *testing.T) {
	server := setupTestServer(t)

	cfg := latex.TableConfig{Rows: 2, Columns: 5, BorderStyle: latex.BorderFull, HasHeader: true}
	generateThrough(t, server, cfg)

	rr := doRequest(t, server, http.MethodGet, "/api/history", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /api/history status = %d", rr.Code)
	}
	var entries []HistoryEntry
	decodeBody(t, rr, &entries)
	if len(entries) != 1 {
		t.Fatalf("history has %d entries, want 1", len(entries))
	}

	e := entries[0]
	if e.Source != "api" {
		t.Errorf("source = %q, want %q", e.Source, "api")
	}
	if e.Config != cfg {
		t.Errorf("recorded config = %+v, want %+v", e.Config, cfg)
	}
	if e.OutputBytes <= 0 {
		t.Errorf("output_bytes = %d, want > 0", e.OutputBytes)
	}
	if e.CreatedAt.IsZero() {
		t.Error("created_at is zero")
	}
}

func TestHistoryListOrderAndLimit(t *testing.T) {
	server := setupTestServer(t)

	for rows := 1; rows <= 4; rows++ {
		generateThrough(t, server, latex.TableConfig{Rows: rows, Columns: 1})
	}

	rr := doRequest(t, server, http.MethodGet, "/api/history", "", nil)
	var entries []HistoryEntry
	decodeBody(t, rr, &entries)
	if len(entries) != 4 {
		t.Fatalf("history has %d entries, want 4", len(entries))
	}
	// Newest first.
	for i, wantRows := range []int{4, 3, 2, 1} {
		if entries[i].Config.Rows != wantRows {
			t.Errorf("entries[%d].Config.Rows = %d, want %d", i, entries[i].Config.Rows, wantRows)
		}
	}

	rr = doRequest(t, server, http.MethodGet, "/api/history?limit=2", "", nil)
	decodeBody(t, rr, &entries)
	if len(entries) != 2 || entries[0].Config.Rows != 4 {
		t.Errorf("limited list = %d entries starting at rows=%d, want 2 starting at 4",
			len(entries), entries[0].Config.Rows)
	}

	for _, bad := range []string{"0", "-3", "abc"} {
		rr = doRequest(t, server, http.MethodGet, "/api/history?limit="+bad, "", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want %d", bad, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestHistoryTrimsToConfiguredLimit(t *testing.T) {
	server := setupTestServer(t)

	cfg := server.cm.Get()
	gen := *cfg.Generate
	gen.HistoryLimit = 2
	cfg.Generate = &gen
	if err := server.cm.Update(cfg); err != nil {
		t.Fatalf("failed to set history limit: %v", err)
	}

	for rows := 1; rows <= 3; rows++ {
		generateThrough(t, server, latex.TableConfig{Rows: rows, Columns: 1})
	}

	rr := doRequest(t, server, http.MethodGet, "/api/history", "", nil)
	var entries []HistoryEntry
	decodeBody(t, rr, &entries)
	if len(entries) != 2 {
		t.Fatalf("history has %d entries, want 2", len(entries))
	}
	if entries[0].Config.Rows != 3 || entries[1].Config.Rows != 2 {
		t.Errorf("kept entries have rows %d and %d, want the two newest (3 and 2)",
			entries[0].Config.Rows, entries[1].Config.Rows)
	}
}

func TestHistoryDisabledByZeroLimit(t *testing.T) {
	server := setupTestServer(t)

	cfg := server.cm.Get()
	gen := *cfg.Generate
	gen.HistoryLimit = 0
	cfg.Generate = &gen
	if err := server.cm.Update(cfg); err != nil {
		t.Fatalf("failed to disable history: %v", err)
	}

	generateThrough(t, server, latex.TableConfig{Rows: 2, Columns: 2})

	rr := doRequest(t, server, http.MethodGet, "/api/history", "", nil)
	var entries []HistoryEntry
	decodeBody(t, rr, &entries)
	if len(entries) != 0 {
		t.Errorf("history has %d entries, want none while disabled", len(entries))
	}
}

func TestHistorySummary(t *testing.T) {
	server := setupTestServer(t)

	generateThrough(t, server, latex.TableConfig{Rows: 2, Columns: 3, BorderStyle: latex.BorderNone})
	generateThrough(t, server, latex.TableConfig{Rows: 8, Columns: 1, BorderStyle: latex.BorderFull})
	generateThrough(t, server, latex.TableConfig{Rows: 1, Columns: 6, BorderStyle: latex.BorderFull})

	rr := doRequest(t, server, http.MethodGet, "/api/history/summary", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /api/history/summary status = %d", rr.Code)
	}
	var summary HistorySummary
	decodeBody(t, rr, &summary)

	if summary.TotalGenerations != 3 {
		t.Errorf("total_generations = %d, want 3", summary.TotalGenerations)
	}
	if summary.TotalOutputBytes <= 0 {
		t.Errorf("total_output_bytes = %d, want > 0", summary.TotalOutputBytes)
	}
	if summary.LargestRows != 8 || summary.LargestColumns != 6 {
		t.Errorf("largest dimensions = %dx%d, want 8x6", summary.LargestRows, summary.LargestColumns)
	}
	if summary.ByBorderStyle["full"] != 2 || summary.ByBorderStyle["none"] != 1 {
		t.Errorf("by_border_style = %v, want full:2 none:1", summary.ByBorderStyle)
	}
	if summary.BySource["api"] != 3 {
		t.Errorf("by_source = %v, want api:3", summary.BySource)
	}
}

func TestHistoryClear(t *testing.T) {
	server := setupTestServer(t)

	generateThrough(t, server, latex.TableConfig{Rows: 2, Columns: 2})

	rr := doRequest(t, server, http.MethodDelete, "/api/history", "", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("DELETE /api/history status = %d, want %d", rr.Code, http.StatusNoContent)
	}

	rr = doRequest(t, server, http.MethodGet, "/api/history", "", nil)
	var entries []HistoryEntry
	decodeBody(t, rr, &entries)
	if len(entries) != 0 {
		t.Errorf("history has %d entries after clear, want 0", len(entries))
	}
}
