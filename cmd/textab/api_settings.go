package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Lector07/textab/pkg/latex"
)

const settingsSchema = `
CREATE TABLE IF NOT EXISTS form_settings (
    id               INTEGER PRIMARY KEY CHECK (id = 1),
    row_count        INTEGER NOT NULL,
    column_count     INTEGER NOT NULL,
    border_style     TEXT NOT NULL,
    font_style       TEXT NOT NULL,
    has_header       INTEGER NOT NULL,
    auto_number_rows INTEGER NOT NULL,
    numeric_cells    INTEGER NOT NULL,
    rows_raw         TEXT NOT NULL,
    columns_raw      TEXT NOT NULL,
    updated_at       DATETIME NOT NULL
);
`

// settingsRowID is the fixed identifier of the single stored record.
const settingsRowID = 1

// FormSettings is the dashboard form state persisted across restarts. The
// raw fields keep exactly what the user last typed into the numeric inputs,
// so the form can restore text that never parsed to a valid dimension.
type FormSettings struct {
	latex.TableConfig
	RowsRaw    string `json:"rows_raw"`
	ColumnsRaw string `json:"columns_raw"`
}

// DefaultFormSettings returns what the form shows before anything was saved.
func DefaultFormSettings() FormSettings {
	cfg := latex.TableConfig{
		Rows:        3,
		Columns:     3,
		BorderStyle: latex.BorderNone,
		FontStyle:   latex.FontNormal,
	}
	return FormSettings{
		TableConfig: cfg,
		RowsRaw:     strconv.Itoa(cfg.Rows),
		ColumnsRaw:  strconv.Itoa(cfg.Columns),
	}
}

// SettingsAPI holds the dependencies for the form settings handlers.
type SettingsAPI struct {
	db     *sql.DB
	logger *slog.Logger
}

func setupSettingsSchema(db *sql.DB) error {
	_, err := db.Exec(settingsSchema)
	return err
}

func NewSettingsAPI(db *sql.DB, logger *slog.Logger) *SettingsAPI {
	return &SettingsAPI{
		db:     db,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/settings endpoints.
func (s *SettingsAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/settings", s.handleGet)
	mux.HandleFunc("PUT /api/settings", s.handlePut)
}

// Load reads the stored record, or the defaults when nothing was saved yet.
func (s *SettingsAPI) Load(ctx context.Context) (FormSettings, error) {
	var fs FormSettings
	var border, font string
	err := s.db.QueryRowContext(ctx, `
        SELECT row_count, column_count, border_style, font_style, has_header,
               auto_number_rows, numeric_cells, rows_raw, columns_raw
        FROM form_settings WHERE id = ?
    `, settingsRowID).Scan(&fs.Rows, &fs.Columns, &border, &font, &fs.HasHeader,
		&fs.AutoNumberRows, &fs.NumericCells, &fs.RowsRaw, &fs.ColumnsRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultFormSettings(), nil
	}
	if err != nil {
		return FormSettings{}, err
	}
	fs.BorderStyle = latex.BorderStyle(border)
	fs.FontStyle = latex.FontStyle(font)
	return fs, nil
}

// Save upserts the single settings record.
func (s *SettingsAPI) Save(ctx context.Context, fs FormSettings) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO form_settings
            (id, row_count, column_count, border_style, font_style, has_header,
             auto_number_rows, numeric_cells, rows_raw, columns_raw, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            row_count = excluded.row_count,
            column_count = excluded.column_count,
            border_style = excluded.border_style,
            font_style = excluded.font_style,
            has_header = excluded.has_header,
            auto_number_rows = excluded.auto_number_rows,
            numeric_cells = excluded.numeric_cells,
            rows_raw = excluded.rows_raw,
            columns_raw = excluded.columns_raw,
            updated_at = excluded.updated_at
    `, settingsRowID, fs.Rows, fs.Columns, string(fs.BorderStyle), string(fs.FontStyle),
		fs.HasHeader, fs.AutoNumberRows, fs.NumericCells, fs.RowsRaw, fs.ColumnsRaw, time.Now())
	return err
}

func (s *SettingsAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopeSettingsRead) {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'settings:read' scope")
		return
	}

	fs, err := s.Load(r.Context())
	if err != nil {
		s.logger.Error("Failed to load form settings", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	respondWithJSON(w, http.StatusOK, fs)
}

func (s *SettingsAPI) handlePut(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopeSettingsWrite) {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'settings:write' scope")
		return
	}

	var fs FormSettings
	if err := json.NewDecoder(r.Body).Decode(&fs); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	// The store deliberately accepts configs the generator would reject:
	// it holds whatever the form last had on screen, valid or not.
	if fs.RowsRaw == "" {
		fs.RowsRaw = strconv.Itoa(fs.Rows)
	}
	if fs.ColumnsRaw == "" {
		fs.ColumnsRaw = strconv.Itoa(fs.Columns)
	}

	if err := s.Save(r.Context(), fs); err != nil {
		s.logger.Error("Failed to save form settings", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}
	respondWithJSON(w, http.StatusOK, fs)
}
