package main

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/daniacca/bouncefield/internal/bounce"
	"github.com/daniacca/bouncefield/internal/bounce/notifiers"
)

// extractSimID extracts the simulation ID from a path like "/sim/{id}/..."
// Returns the simulation ID and the remaining path, or empty string if not found
func extractSimID(path string) (bounce.SimulationID, string) {
	if !strings.HasPrefix(path, "/sim/") {
		return "", ""
	}

	rest := path[len("/sim/"):]

	idx := strings.Index(rest, "/")
	if idx == -1 {
		return bounce.SimulationID(rest), ""
	}

	return bounce.SimulationID(rest[:idx]), rest[idx:]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps engine errors onto HTTP status codes
func statusFor(err error) int {
	var verr *bounce.ValidationError
	switch {
	case errors.Is(err, bounce.ErrSimulationNotFound):
		return http.StatusNotFound
	case errors.Is(err, bounce.ErrSimulationExists):
		return http.StatusConflict
	case errors.As(err, &verr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// GET /sims
// List all simulation IDs
func (s *Server) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	simIDs := s.manager.ListEngines()
	ids := make([]string, len(simIDs))
	for i, id := range simIDs {
		ids[i] = string(id)
	}

	writeJSON(w, http.StatusOK, map[string][]string{"simulations": ids})
}

// handleSimulationRoutes routes requests to simulation-specific handlers
func (s *Server) handleSimulationRoutes(w http.ResponseWriter, r *http.Request) {
	simID, remainingPath := extractSimID(r.URL.Path)
	if simID == "" {
		http.Error(w, "simulation ID is required in path: /sim/{id}/...", http.StatusBadRequest)
		return
	}

	if remainingPath == "" {
		switch r.Method {
		case http.MethodPost:
			s.handleCreateSimulation(w, r, simID)
		case http.MethodDelete:
			s.handleDeleteSimulation(w, r, simID)
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
		return
	}

	engine, exists := s.manager.GetEngine(simID)
	if !exists {
		http.Error(w, "simulation not found", http.StatusNotFound)
		return
	}

	switch {
	case remainingPath == "/resize" && r.Method == http.MethodPost:
		s.handleResize(w, r, engine)
	case remainingPath == "/tick" && r.Method == http.MethodPost:
		s.handleTick(w, r, engine)
	case remainingPath == "/start" && r.Method == http.MethodPost:
		s.handleStart(w, r, engine)
	case remainingPath == "/stop" && r.Method == http.MethodPost:
		s.handleStop(w, r, engine)
	case remainingPath == "/bodies" && r.Method == http.MethodGet:
		s.handleBodies(w, r, engine)
	case remainingPath == "/frame" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, engine.Frame())
	case remainingPath == "/snapshot" && r.Method == http.MethodPost:
		s.handleSaveSnapshot(w, r, engine)
	case remainingPath == "/snapshot" && r.Method == http.MethodGet:
		s.handleGetSnapshot(w, r, engine)
	case remainingPath == "/restore" && r.Method == http.MethodPost:
		s.handleRestoreSnapshot(w, r, engine)
	case remainingPath == "/stream" && r.Method == http.MethodGet:
		s.handleStream(w, r, simID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// POST /sim/{id}
// Body: { "width": 800, "height": 600, "seed": 42, "config": { ... } }
// seed and config are optional; config fields left out keep the server defaults.
type createSimulationRequest struct {
	Width  float64         `json:"width"`
	Height float64         `json:"height"`
	Seed   *int64          `json:"seed,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

func (s *Server) handleCreateSimulation(w http.ResponseWriter, r *http.Request, simID bounce.SimulationID) {
	defer r.Body.Close()

	var req createSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	cfg := s.physics
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			http.Error(w, "invalid config: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	var opts []bounce.EngineOption
	if req.Seed != nil {
		opts = append(opts, bounce.WithSeed(*req.Seed))
	}

	field := bounce.Field{Width: req.Width, Height: req.Height}
	engine, err := s.manager.CreateEngine(simID, field, cfg, opts...)
	if err != nil {
		s.logger.Warnf("Failed to create simulation: sim_id=%s error=%v", simID, err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusCreated, engine.Frame())
}

// DELETE /sim/{id}
func (s *Server) handleDeleteSimulation(w http.ResponseWriter, r *http.Request, simID bounce.SimulationID) {
	if err := s.manager.DeleteEngine(simID); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("simulation deleted"))
}

// POST /sim/{id}/resize
// Body: { "width": 1024, "height": 768 }
func (s *Server) handleResize(w http.ResponseWriter, r *http.Request, engine *bounce.Engine) {
	defer r.Body.Close()

	var field bounce.Field
	if err := json.NewDecoder(r.Body).Decode(&field); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := engine.Resize(field); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, engine.Frame())
}

// POST /sim/{id}/tick
// Manually trigger a single tick (useful for testing/debugging when auto-running is disabled)
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request, engine *bounce.Engine) {
	writeJSON(w, http.StatusOK, engine.Step())
}

// POST /sim/{id}/start
// Query param: interval in milliseconds (default: the configured tick interval)
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, engine *bounce.Engine) {
	var interval time.Duration
	if intervalStr := r.URL.Query().Get("interval"); intervalStr != "" {
		ms, err := strconv.Atoi(intervalStr)
		if err != nil || ms <= 0 {
			http.Error(w, "invalid interval: must be a positive integer (milliseconds)", http.StatusBadRequest)
			return
		}
		interval = time.Duration(ms) * time.Millisecond
	}

	engine.Start(interval)
	s.logger.Infof("Simulation started: sim_id=%s interval=%v", engine.ID(), interval)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("simulation started"))
}

// POST /sim/{id}/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request, engine *bounce.Engine) {
	engine.Stop()
	s.logger.Infof("Simulation stopped: sim_id=%s", engine.ID())

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("simulation stopped"))
}

// GET /sim/{id}/bodies
// Query param: full=true includes velocities
func (s *Server) handleBodies(w http.ResponseWriter, r *http.Request, engine *bounce.Engine) {
	if r.URL.Query().Get("full") == "true" {
		writeJSON(w, http.StatusOK, map[string]any{"bodies": engine.Bodies()})
		return
	}

	frame := engine.Frame()
	writeJSON(w, http.StatusOK, map[string]any{
		"tick":   frame.Tick,
		"bodies": frame.Bodies,
	})
}

// POST /sim/{id}/snapshot
// Triggers a synchronous snapshot save
func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request, engine *bounce.Engine) {
	path, err := engine.SaveSnapshot()
	if err != nil {
		if errors.Is(err, bounce.ErrNoSnapshotDir) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.logger.Errorf("Failed to save snapshot: sim_id=%s error=%v", engine.ID(), err)
		http.Error(w, "failed to save snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Debugf("Snapshot saved: sim_id=%s path=%s", engine.ID(), path)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "path": path})
}

// GET /sim/{id}/snapshot
// Returns the raw snapshot JSON if it exists
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request, engine *bounce.Engine) {
	path := engine.SnapshotPath()
	if path == "" {
		http.Error(w, bounce.ErrNoSnapshotDir.Error(), http.StatusInternalServerError)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "snapshot not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to read snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// POST /sim/{id}/restore
// Restores the simulation from its saved snapshot
func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request, engine *bounce.Engine) {
	if err := engine.LoadSnapshot(); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, os.ErrNotExist) {
			status = http.StatusNotFound
		}
		http.Error(w, "cannot restore snapshot: "+err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, engine.Frame())
}

// GET /sim/{id}/stream
// Upgrades to a WebSocket receiving this simulation's frames
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, simID bounce.SimulationID) {
	if err := s.stream.Serve(w, r, simID); err != nil {
		s.logger.Warnf("Stream closed with error: sim_id=%s error=%v", simID, err)
	}
}

// GET /stream
// Upgrades to a WebSocket receiving frames from every simulation
func (s *Server) handleStreamAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.stream.Serve(w, r, ""); err != nil {
		s.logger.Warnf("Stream closed with error: error=%v", err)
	}
}

// handleNotifiersRoutes handles notifier management endpoints
func (s *Server) handleNotifiersRoutes(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/notifiers" && r.Method == http.MethodGet:
		s.handleListNotifiers(w, r)
	case r.URL.Path == "/notifiers" && r.Method == http.MethodPost:
		s.handleRegisterNotifier(w, r)
	case strings.HasPrefix(r.URL.Path, "/notifiers/") && r.Method == http.MethodDelete:
		s.handleUnregisterNotifier(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// GET /notifiers
// List all registered notifiers
func (s *Server) handleListNotifiers(w http.ResponseWriter, _ *http.Request) {
	notifierIDs := s.notifications.ListNotifiers()

	list := make([]map[string]string, 0, len(notifierIDs))
	for _, id := range notifierIDs {
		if notifier, exists := s.notifications.GetNotifier(id); exists {
			list = append(list, map[string]string{
				"id":   id,
				"type": notifier.Type(),
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"notifiers": list})
}

// POST /notifiers
// Register a new notifier
// Body: { "type": "webhook", "id": "my-webhook", "config": { "url": "http://...", "simulation_id": "demo", "every": 60 } }
//
//	or { "type": "csv", "id": "trace", "config": { "path": "/tmp/trace.csv" } }
type registerNotifierRequest struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Config map[string]any `json:"config"`
}

func (s *Server) handleRegisterNotifier(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req registerNotifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.ID == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}

	var notifier bounce.Notifier

	switch req.Type {
	case "webhook":
		url, ok := req.Config["url"].(string)
		if !ok || url == "" {
			http.Error(w, "webhook URL is required", http.StatusBadRequest)
			return
		}
		wh := notifiers.NewWebhookNotifier(req.ID, url)

		if headers, ok := req.Config["headers"].(map[string]any); ok {
			for k, v := range headers {
				if vStr, ok := v.(string); ok {
					wh.SetHeader(k, vStr)
				}
			}
		}

		if simID, ok := req.Config["simulation_id"].(string); ok {
			wh.SetSimulation(bounce.SimulationID(simID))
		}
		if every, ok := req.Config["every"].(float64); ok {
			if every != math.Trunc(every) {
				http.Error(w, "webhook every must be a whole number of ticks", http.StatusBadRequest)
				return
			}
			if err := wh.SetEvery(int64(every)); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		notifier = wh
	case "csv":
		path, ok := req.Config["path"].(string)
		if !ok || path == "" {
			http.Error(w, "csv path is required", http.StatusBadRequest)
			return
		}
		cn, err := notifiers.NewCSVFileNotifier(req.ID, path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		notifier = cn
	default:
		http.Error(w, "unknown notifier type: "+req.Type, http.StatusBadRequest)
		return
	}

	if err := s.notifications.RegisterNotifier(notifier); err != nil {
		_ = notifier.Close()
		http.Error(w, "cannot register notifier: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Infof("Notifier registered: id=%s type=%s", req.ID, req.Type)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("notifier registered"))
}

// DELETE /notifiers/{id}
// Unregister a notifier
func (s *Server) handleUnregisterNotifier(w http.ResponseWriter, r *http.Request) {
	notifierID := strings.TrimPrefix(r.URL.Path, "/notifiers/")
	if notifierID == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}
	if notifierID == streamNotifierID {
		http.Error(w, "the stream notifier cannot be removed", http.StatusBadRequest)
		return
	}

	if err := s.notifications.UnregisterNotifier(notifierID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("notifier unregistered"))
}
