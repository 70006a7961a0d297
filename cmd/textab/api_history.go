package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Lector07/textab/pkg/latex"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS generation_history (
    id               INTEGER PRIMARY KEY,
    created_at       DATETIME NOT NULL,
    source           TEXT NOT NULL,
    row_count        INTEGER NOT NULL,
    column_count     INTEGER NOT NULL,
    border_style     TEXT NOT NULL,
    font_style       TEXT NOT NULL,
    has_header       INTEGER NOT NULL,
    auto_number_rows INTEGER NOT NULL,
    numeric_cells    INTEGER NOT NULL,
    output_bytes     INTEGER NOT NULL,
    duration_us      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_created_at ON generation_history (created_at DESC);
`

// HistoryEntry is one recorded generation.
type HistoryEntry struct {
	ID          int64             `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	Source      string            `json:"source"`
	Config      latex.TableConfig `json:"config"`
	OutputBytes int               `json:"output_bytes"`
	DurationUS  int64             `json:"duration_us"`
}

// HistorySummary provides a high-level overview of all recorded generations.
type HistorySummary struct {
	TotalGenerations int64            `json:"total_generations"`
	TotalOutputBytes int64            `json:"total_output_bytes"`
	LargestRows      int              `json:"largest_rows"`
	LargestColumns   int              `json:"largest_columns"`
	ByBorderStyle    map[string]int64 `json:"by_border_style"`
	BySource         map[string]int64 `json:"by_source"`
}

// HistoryAPI holds the dependencies for the generation history handlers.
type HistoryAPI struct {
	db     *sql.DB
	cm     *ConfigManager
	logger *slog.Logger
}

func setupHistorySchema(db *sql.DB) error {
	_, err := db.Exec(historySchema)
	return err
}

func NewHistoryAPI(db *sql.DB, cm *ConfigManager, logger *slog.Logger) *HistoryAPI {
	return &HistoryAPI{
		db:     db,
		cm:     cm,
		logger: logger,
	}
}

func (h *HistoryAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/history", h.handleList)
	mux.HandleFunc("GET /api/history/summary", h.handleSummary)
	mux.HandleFunc("DELETE /api/history", h.handleClear)
}

// Record stores one generation. Recording is best-effort: failures are
// logged and never surfaced to the request that triggered them. A history
// limit of zero disables recording.
func (h *HistoryAPI) Record(ctx context.Context, cfg latex.TableConfig, source string, outputBytes int, took time.Duration) {
	limit := h.cm.Get().Generate.HistoryLimit
	if limit == 0 {
		return
	}

	_, err := h.db.ExecContext(ctx, `
        INSERT INTO generation_history
            (created_at, source, row_count, column_count, border_style, font_style,
             has_header, auto_number_rows, numeric_cells, output_bytes, duration_us)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, time.Now(), source, cfg.Rows, cfg.Columns, string(cfg.BorderStyle), string(cfg.FontStyle),
		cfg.HasHeader, cfg.AutoNumberRows, cfg.NumericCells, outputBytes, took.Microseconds())
	if err != nil {
		h.logger.Error("Failed to record generation", "error", err)
		return
	}

	// Trim anything beyond the configured window.
	_, err = h.db.ExecContext(ctx, `
        DELETE FROM generation_history
        WHERE id NOT IN (SELECT id FROM generation_history ORDER BY id DESC LIMIT ?)
    `, limit)
	if err != nil {
		h.logger.Error("Failed to trim generation history", "error", err)
	}
}

func (h *HistoryAPI) handleList(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopeHistoryRead) {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'history:read' scope")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondWithError(w, http.StatusBadRequest, "Query parameter 'limit' must be a positive integer")
			return
		}
		limit = min(parsed, 500)
	}

	rows, err := h.db.QueryContext(r.Context(), `
        SELECT id, created_at, source, row_count, column_count, border_style, font_style,
               has_header, auto_number_rows, numeric_cells, output_bytes, duration_us
        FROM generation_history ORDER BY id DESC LIMIT ?
    `, limit)
	if err != nil {
		h.logger.Error("Failed to query history", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		var border, font string
		err = rows.Scan(&e.ID, &e.CreatedAt, &e.Source, &e.Config.Rows, &e.Config.Columns,
			&border, &font, &e.Config.HasHeader, &e.Config.AutoNumberRows,
			&e.Config.NumericCells, &e.OutputBytes, &e.DurationUS)
		if err != nil {
			h.logger.Error("Failed to scan history row", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to process database results")
			return
		}
		e.Config.BorderStyle = latex.BorderStyle(border)
		e.Config.FontStyle = latex.FontStyle(font)
		entries = append(entries, e)
	}
	respondWithJSON(w, http.StatusOK, entries)
}

func (h *HistoryAPI) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopeHistoryRead) {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'history:read' scope")
		return
	}

	summary := HistorySummary{
		ByBorderStyle: make(map[string]int64),
		BySource:      make(map[string]int64),
	}
	_ = h.db.QueryRowContext(r.Context(), `
        SELECT COUNT(*), COALESCE(SUM(output_bytes), 0),
               COALESCE(MAX(row_count), 0), COALESCE(MAX(column_count), 0)
        FROM generation_history
    `).Scan(&summary.TotalGenerations, &summary.TotalOutputBytes, &summary.LargestRows, &summary.LargestColumns)

	for query, into := range map[string]map[string]int64{
		"SELECT border_style, COUNT(*) FROM generation_history GROUP BY border_style": summary.ByBorderStyle,
		"SELECT source, COUNT(*) FROM generation_history GROUP BY source":             summary.BySource,
	} {
		rows, err := h.db.QueryContext(r.Context(), query)
		if err != nil {
			h.logger.Error("Failed to query history summary", "error", err)
			continue
		}
		for rows.Next() {
			var key string
			var count int64
			if err = rows.Scan(&key, &count); err == nil {
				into[key] = count
			}
		}
		_ = rows.Close()
	}

	respondWithJSON(w, http.StatusOK, summary)
}

func (h *HistoryAPI) handleClear(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopeHistoryWrite) {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'history:write' scope")
		return
	}

	if _, err := h.db.ExecContext(r.Context(), "DELETE FROM generation_history"); err != nil {
		h.logger.Error("Failed to clear history", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to clear history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
