package main

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"net/http"
)

//go:embed dashboard.html
var dashboardHTML embed.FS

// Server aggregates the API handler groups behind a single mux.
type Server struct {
	cm          *ConfigManager
	db          *sql.DB
	logger      *slog.Logger
	authAPI     *AuthAPI
	generateAPI *GenerateAPI
	settingsAPI *SettingsAPI
	presetsAPI  *PresetsAPI
	historyAPI  *HistoryAPI
	serverAPI   *ServerAPI
	limiter     *RateLimiter
	apiMux      *http.ServeMux
}

func NewServer(ctx context.Context, cm *ConfigManager, logger *slog.Logger, db *sql.DB, actionChan chan string) (*Server, error) {

	pc := NewPresetCache()
	if err := pc.LoadFromDB(db); err != nil {
		return nil, fmt.Errorf("failed to load presets from db: %w", err)
	}

	// api initialization
	authAPI := NewAuthAPI(db, logger)
	historyAPI := NewHistoryAPI(db, cm, logger)
	generateAPI := NewGenerateAPI(cm, historyAPI, logger)
	settingsAPI := NewSettingsAPI(db, logger)
	presetsAPI := NewPresetsAPI(db, logger, pc, generateAPI)
	serverAPI := NewServerAPI(cm, db, actionChan, logger)

	// create object, register routes to the mux, and return it
	server := &Server{
		cm:          cm,
		db:          db,
		logger:      logger,
		authAPI:     authAPI,
		generateAPI: generateAPI,
		settingsAPI: settingsAPI,
		presetsAPI:  presetsAPI,
		historyAPI:  historyAPI,
		serverAPI:   serverAPI,
		apiMux:      http.NewServeMux(),
	}

	apiMux := http.NewServeMux()

	server.authAPI.RegisterRoutes(apiMux)
	server.generateAPI.RegisterRoutes(apiMux)
	server.settingsAPI.RegisterRoutes(apiMux)
	server.presetsAPI.RegisterRoutes(apiMux)
	server.historyAPI.RegisterRoutes(apiMux)
	server.serverAPI.RegisterRoutes(apiMux)

	// Make sure api functions must pass through authentication first, and
	// rate limiting when enabled.
	var api http.Handler = server.authAPI.Authenticate(apiMux)
	if cfg := cm.Get(); cfg.RateLimit.Enabled {
		server.limiter = NewRateLimiter(ctx, cfg.RateLimit, cm, logger)
		api = server.limiter.Middleware(api)
	}

	// ... except for the health and version endpoints, which stay open so
	// something like docker or deploy tooling can poll them.
	server.apiMux.HandleFunc("GET /healthz", server.serverAPI.handleHealth)
	server.apiMux.HandleFunc("GET /api/server/version", server.serverAPI.handleVersion)

	server.apiMux.Handle("/api/", api)
	server.apiMux.HandleFunc("/", server.handleDashboard)

	return server, nil
}

// handleDashboard serves the form page: the file named by
// server.dashboard_path when set, the embedded page otherwise.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	// Simple check to avoid serving the page for stray paths like /favicon.ico.
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	setSecurityHeaders(w)

	if path := s.cm.Get().Server.DashboardPath; path != "" {
		http.ServeFile(w, r, path)
		return
	}

	content, err := dashboardHTML.ReadFile("dashboard.html")
	if err != nil {
		s.logger.Error("Failed to read embedded dashboard page", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(content)
}
