package main

import (
	"net/http"
	"strings"
	"testing"

	"github.com/Lector07/textab/pkg/latex"
)

func TestPresetLifecycle(t *testing.T) {
	server := setupTestServer(t)

	cfg := latex.TableConfig{
		Rows:        4,
		Columns:     3,
		BorderStyle: latex.BorderHorizontal,
		FontStyle:   latex.FontBold,
		HasHeader:   true,
	}

	rr := doRequest(t, server, http.MethodPut, "/api/presets/quarterly", "", cfg)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT preset status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, server, http.MethodGet, "/api/presets/quarterly", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET preset status = %d", rr.Code)
	}
	var got latex.TableConfig
	decodeBody(t, rr, &got)
	if got != cfg {
		t.Errorf("stored preset = %+v, want %+v", got, cfg)
	}

	rr = doRequest(t, server, http.MethodGet, "/api/presets", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET presets status = %d", rr.Code)
	}
	var all map[string]latex.TableConfig
	decodeBody(t, rr, &all)
	if _, ok := all["quarterly"]; !ok || len(all) != 1 {
		t.Errorf("preset list = %v, want exactly the quarterly preset", all)
	}

	rr = doRequest(t, server, http.MethodDelete, "/api/presets/quarterly", "", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("DELETE preset status = %d, want %d", rr.Code, http.StatusNoContent)
	}

	rr = doRequest(t, server, http.MethodGet, "/api/presets/quarterly", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	rr = doRequest(t, server, http.MethodDelete, "/api/presets/quarterly", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestPresetOverwrite(t *testing.T) {
	server := setupTestServer(t)

	first := latex.TableConfig{Rows: 2, Columns: 2}
	second := latex.TableConfig{Rows: 9, Columns: 1, BorderStyle: latex.BorderFull}

	for _, cfg := range []latex.TableConfig{first, second} {
		rr := doRequest(t, server, http.MethodPut, "/api/presets/report", "", cfg)
		if rr.Code != http.StatusOK {
			t.Fatalf("PUT preset status = %d, body = %s", rr.Code, rr.Body.String())
		}
	}

	var got latex.TableConfig
	rr := doRequest(t, server, http.MethodGet, "/api/presets/report", "", nil)
	decodeBody(t, rr, &got)
	if got != second {
		t.Errorf("preset after overwrite = %+v, want %+v", got, second)
	}
}

func TestPresetValidation(t *testing.T) {
	server := setupTestServer(t)

	rr := doRequest(t, server, http.MethodPut, "/api/presets/bad", "", latex.TableConfig{Rows: 0, Columns: 2})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("PUT invalid config status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	longName := strings.Repeat("x", maxPresetNameLen+1)
	rr = doRequest(t, server, http.MethodPut, "/api/presets/"+longName, "", latex.TableConfig{Rows: 1, Columns: 1})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("PUT overlong name status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	// A name of only whitespace trims down to nothing.
	rr = doRequest(t, server, http.MethodPut, "/api/presets/%20%20", "", latex.TableConfig{Rows: 1, Columns: 1})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("PUT blank name status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestPresetGenerate(t *testing.T) {
	server := setupTestServer(t)

	cfg := latex.TableConfig{Rows: 3, Columns: 3, HasHeader: true, AutoNumberRows: true}
	rr := doRequest(t, server, http.MethodPut, "/api/presets/demo", "", cfg)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT preset status = %d", rr.Code)
	}

	rr = doRequest(t, server, http.MethodPost, "/api/presets/demo/generate", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("POST generate status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var markup latex.Markup
	decodeBody(t, rr, &markup)
	want, _ := latex.Generate(cfg)
	if markup.Full != want.Full {
		t.Errorf("preset markup mismatch:\ngot:\n%s\nwant:\n%s", markup.Full, want.Full)
	}

	// Generations through a preset are attributed to it in the history.
	rr = doRequest(t, server, http.MethodGet, "/api/history/summary", "", nil)
	var summary HistorySummary
	decodeBody(t, rr, &summary)
	if summary.BySource["preset"] != 1 {
		t.Errorf("preset source count = %d, want 1", summary.BySource["preset"])
	}

	rr = doRequest(t, server, http.MethodPost, "/api/presets/unknown/generate", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("POST generate for unknown preset status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// Presets live in the database; a fresh cache must see what an earlier
// server cycle saved.
func TestPresetCacheReload(t *testing.T) {
	server := setupTestServer(t)

	cfg := latex.TableConfig{Rows: 6, Columns: 2, BorderStyle: latex.BorderFull}
	rr := doRequest(t, server, http.MethodPut, "/api/presets/saved", "", cfg)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT preset status = %d", rr.Code)
	}

	fresh := NewPresetCache()
	if err := fresh.LoadFromDB(server.db); err != nil {
		t.Fatalf("LoadFromDB() error = %v", err)
	}
	got, ok := fresh.Get("saved")
	if !ok {
		t.Fatal("reloaded cache is missing the saved preset")
	}
	if got != cfg {
		t.Errorf("reloaded preset = %+v, want %+v", got, cfg)
	}
}
