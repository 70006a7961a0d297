package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Lector07/textab/pkg/latex"
)

const presetsSchema = `
CREATE TABLE IF NOT EXISTS presets (
    name             TEXT PRIMARY KEY,
    row_count        INTEGER NOT NULL,
    column_count     INTEGER NOT NULL,
    border_style     TEXT NOT NULL,
    font_style       TEXT NOT NULL,
    has_header       INTEGER NOT NULL,
    auto_number_rows INTEGER NOT NULL,
    numeric_cells    INTEGER NOT NULL,
    updated_at       DATETIME NOT NULL
);
`

// maxPresetNameLen bounds preset names, which double as URL path elements.
const maxPresetNameLen = 100

func setupPresetsSchema(db *sql.DB) error {
	_, err := db.Exec(presetsSchema)
	return err
}

// PresetCache is the in-memory view of the presets table. Reads go through
// the cache; writes update the database first and then the cache.
type PresetCache struct {
	mu      sync.RWMutex
	presets map[string]latex.TableConfig
}

func NewPresetCache() *PresetCache {
	return &PresetCache{
		presets: make(map[string]latex.TableConfig),
	}
}

// LoadFromDB replaces the cache contents with all presets in the database.
func (c *PresetCache) LoadFromDB(db *sql.DB) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.presets = make(map[string]latex.TableConfig)

	rows, err := db.Query(`
        SELECT name, row_count, column_count, border_style, font_style,
               has_header, auto_number_rows, numeric_cells
        FROM presets
    `)
	if err != nil {
		return err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	for rows.Next() {
		var name, border, font string
		var cfg latex.TableConfig
		err = rows.Scan(&name, &cfg.Rows, &cfg.Columns, &border, &font,
			&cfg.HasHeader, &cfg.AutoNumberRows, &cfg.NumericCells)
		if err != nil {
			return err
		}
		cfg.BorderStyle = latex.BorderStyle(border)
		cfg.FontStyle = latex.FontStyle(font)
		c.presets[name] = cfg
	}
	return rows.Err()
}

// Set safely adds or replaces a single preset in the cache.
func (c *PresetCache) Set(name string, cfg latex.TableConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presets[name] = cfg
}

// Remove safely removes a single preset from the cache.
func (c *PresetCache) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.presets, name)
}

// Get safely looks up one preset.
func (c *PresetCache) Get(name string) (latex.TableConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg, ok := c.presets[name]
	return cfg, ok
}

// All returns a copy of every cached preset, keyed by name.
func (c *PresetCache) All() map[string]latex.TableConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	all := make(map[string]latex.TableConfig, len(c.presets))
	for name, cfg := range c.presets {
		all[name] = cfg
	}
	return all
}

// PresetsAPI manages named saved table configurations.
type PresetsAPI struct {
	db       *sql.DB
	logger   *slog.Logger
	cache    *PresetCache
	generate *GenerateAPI
}

// NewPresetsAPI creates a new instance of the PresetsAPI.
func NewPresetsAPI(db *sql.DB, logger *slog.Logger, cache *PresetCache, generate *GenerateAPI) *PresetsAPI {
	return &PresetsAPI{
		db:       db,
		logger:   logger,
		cache:    cache,
		generate: generate,
	}
}

// RegisterRoutes sets up the routing for all /api/presets endpoints.
func (p *PresetsAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/presets", p.handleList)
	mux.HandleFunc("GET /api/presets/{name}", p.handleGet)
	mux.HandleFunc("PUT /api/presets/{name}", p.handlePut)
	mux.HandleFunc("DELETE /api/presets/{name}", p.handleDelete)
	mux.HandleFunc("POST /api/presets/{name}/generate", p.handleGenerate)
}

// presetName extracts and validates the name path element.
func presetName(r *http.Request) (string, error) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		return "", errors.New("preset name cannot be empty")
	}
	if len(name) > maxPresetNameLen {
		return "", errors.New("preset name is too long")
	}
	return name, nil
}

func (p *PresetsAPI) handleList(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopePresetsRead) {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'presets:read' scope")
		return
	}
	respondWithJSON(w, http.StatusOK, p.cache.All())
}

func (p *PresetsAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopePresetsRead) {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'presets:read' scope")
		return
	}

	name, err := presetName(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, ok := p.cache.Get(name)
	if !ok {
		respondWithError(w, http.StatusNotFound, "Preset not found")
		return
	}
	respondWithJSON(w, http.StatusOK, cfg)
}

func (p *PresetsAPI) handlePut(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopePresetsWrite) {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'presets:write' scope")
		return
	}

	name, err := presetName(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var cfg latex.TableConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if err := cfg.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, err = p.db.ExecContext(r.Context(), `
        INSERT INTO presets
            (name, row_count, column_count, border_style, font_style,
             has_header, auto_number_rows, numeric_cells, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET
            row_count = excluded.row_count,
            column_count = excluded.column_count,
            border_style = excluded.border_style,
            font_style = excluded.font_style,
            has_header = excluded.has_header,
            auto_number_rows = excluded.auto_number_rows,
            numeric_cells = excluded.numeric_cells,
            updated_at = excluded.updated_at
    `, name, cfg.Rows, cfg.Columns, string(cfg.BorderStyle), string(cfg.FontStyle),
		cfg.HasHeader, cfg.AutoNumberRows, cfg.NumericCells, time.Now())
	if err != nil {
		p.logger.Error("Failed to upsert preset", "name", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save preset")
		return
	}

	p.cache.Set(name, cfg)
	p.logger.Info("Saved preset", "name", name)
	respondWithJSON(w, http.StatusOK, cfg)
}

func (p *PresetsAPI) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopePresetsWrite) {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'presets:write' scope")
		return
	}

	name, err := presetName(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := p.db.ExecContext(r.Context(), "DELETE FROM presets WHERE name = ?", name)
	if err != nil {
		p.logger.Error("Failed to delete preset", "name", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to delete preset")
		return
	}
	if rowsAffected, _ := res.RowsAffected(); rowsAffected == 0 {
		respondWithError(w, http.StatusNotFound, "Preset not found")
		return
	}

	p.cache.Remove(name)
	p.logger.Info("Deleted preset", "name", name)
	w.WriteHeader(http.StatusNoContent)
}

// handleGenerate renders a table from a stored preset. The result is
// recorded in the history with the "preset" source.
func (p *PresetsAPI) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopeGenerate) {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'generate' scope")
		return
	}

	name, err := presetName(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, ok := p.cache.Get(name)
	if !ok {
		respondWithError(w, http.StatusNotFound, "Preset not found")
		return
	}

	markup, err := p.generate.generate(r.Context(), cfg, "preset")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, markup)
}
