package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Lector07/textab/pkg/latex"
)

// GenerateAPI holds the dependencies for the table generation endpoints.
type GenerateAPI struct {
	cm      *ConfigManager
	history *HistoryAPI
	logger  *slog.Logger

	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
}

// NewGenerateAPI creates a new instance of the GenerateAPI. history may be
// nil, in which case generations are not recorded.
func NewGenerateAPI(cm *ConfigManager, history *HistoryAPI, logger *slog.Logger) *GenerateAPI {
	return &GenerateAPI{
		cm:      cm,
		history: history,
		logger:  logger,
		upgrader: websocket.Upgrader{
			// The dashboard is served from the same process; other origins
			// still have to present a valid key to reach this handler.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// RegisterRoutes sets up the routing for all /api/generate endpoints.
func (g *GenerateAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/generate", g.handleGenerate)
	mux.HandleFunc("POST /api/generate/download", g.handleDownload)
	mux.HandleFunc("GET /api/generate/ws", g.handlePreviewSocket)
}

// checkConfig validates cfg and applies the configured request ceilings.
func (g *GenerateAPI) checkConfig(cfg latex.TableConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	limits := g.cm.Get().Generate
	if cfg.Rows > limits.MaxRows {
		return fmt.Errorf("rows may not exceed %d", limits.MaxRows)
	}
	if cfg.Columns > limits.MaxColumns {
		return fmt.Errorf("columns may not exceed %d", limits.MaxColumns)
	}
	return nil
}

// generate runs one bounded generation and records it in the history.
func (g *GenerateAPI) generate(ctx context.Context, cfg latex.TableConfig, source string) (latex.Markup, error) {
	if err := g.checkConfig(cfg); err != nil {
		return latex.Markup{}, err
	}
	start := time.Now()
	markup, err := latex.Generate(cfg)
	if err != nil {
		return latex.Markup{}, err
	}
	if g.history != nil {
		g.history.Record(ctx, cfg, source, len(markup.Full), time.Since(start))
	}
	return markup, nil
}

// handleGenerate renders a table from the posted config and returns both the
// full markup and the preview.
func (g *GenerateAPI) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopeGenerate) {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'generate' scope")
		return
	}

	var cfg latex.TableConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	markup, err := g.generate(r.Context(), cfg, "api")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, markup)
}

// handleDownload renders a table and returns the full markup verbatim as a
// .tex attachment.
func (g *GenerateAPI) handleDownload(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopeGenerate) {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'generate' scope")
		return
	}

	var cfg latex.TableConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	markup, err := g.generate(r.Context(), cfg, "api")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	filename := fmt.Sprintf("table_%s.tex", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/x-tex")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	_, _ = w.Write([]byte(markup.Full))
}

// wsMessage is the envelope exchanged over the preview socket.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// handlePreviewSocket serves the live preview channel. The client sends
// {"type":"config","data":{...}} whenever the form changes and receives
// either a "preview" message carrying the rendered markup or an "error"
// message. The server pushes {"type":"reload"} when the dashboard page on
// disk changes.
func (g *GenerateAPI) handlePreviewSocket(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopeGenerate) {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'generate' scope")
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("Preview socket upgrade failed", "error", err)
		return
	}
	g.addClient(conn)
	defer func() {
		g.removeClient(conn)
		_ = conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("Preview socket closed unexpectedly", "error", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			g.sendError(conn, "invalid message envelope")
			continue
		}
		if msg.Type != "config" {
			g.sendError(conn, fmt.Sprintf("unknown message type %q", msg.Type))
			continue
		}

		var cfg latex.TableConfig
		if err := json.Unmarshal(msg.Data, &cfg); err != nil {
			g.sendError(conn, "invalid table config")
			continue
		}

		markup, err := g.generate(r.Context(), cfg, "ws")
		if err != nil {
			g.sendError(conn, err.Error())
			continue
		}
		data, _ := json.Marshal(markup)
		g.send(conn, wsMessage{Type: "preview", Data: data})
	}
}

func (g *GenerateAPI) addClient(conn *websocket.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[conn] = struct{}{}
}

func (g *GenerateAPI) removeClient(conn *websocket.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.clients, conn)
}

// send serializes socket writes; replies and reload broadcasts may come from
// different goroutines.
func (g *GenerateAPI) send(conn *websocket.Conn, msg wsMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		g.logger.Debug("Preview socket write failed", "error", err)
	}
}

func (g *GenerateAPI) sendError(conn *websocket.Conn, message string) {
	data, _ := json.Marshal(map[string]string{"message": message})
	g.send(conn, wsMessage{Type: "error", Data: data})
}

// BroadcastReload tells every connected preview client to reload the page.
// The dashboard watcher calls it when the page file changes on disk.
func (g *GenerateAPI) BroadcastReload() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for conn := range g.clients {
		if err := conn.WriteJSON(wsMessage{Type: "reload"}); err != nil {
			g.logger.Debug("Reload broadcast failed", "error", err)
		}
	}
}
