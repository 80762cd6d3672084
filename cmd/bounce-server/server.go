package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/daniacca/bouncefield/internal/bounce"
	"github.com/daniacca/bouncefield/internal/bounce/notifiers"
)

// streamNotifierID is the built-in WebSocket notifier behind /sim/{id}/stream
const streamNotifierID = "stream"

// Server represents the HTTP server for bouncefield simulations
type Server struct {
	manager       *bounce.EngineManager
	notifications *bounce.NotificationManager
	stream        *notifiers.WebSocketNotifier
	physics       bounce.Config
	snapshotDir   string
	logger        *Logger
}

// NewServer creates a new server instance. physics is the configuration
// used for simulations created without one. An empty snapshotDir disables
// persistence; snapshotEveryTicks > 0 enables periodic snapshots.
func NewServer(logger *Logger, physics bounce.Config, snapshotDir string, snapshotEveryTicks int64) *Server {
	nm := bounce.NewNotificationManagerWithLogger(logger)
	stream := notifiers.NewWebSocketNotifier(streamNotifierID)
	if err := nm.RegisterNotifier(stream); err != nil {
		// Fresh manager, cannot collide
		panic(err)
	}

	manager := bounce.NewEngineManagerWithLogger(logger,
		bounce.WithNotificationManager(nm),
		bounce.WithSnapshots(snapshotDir, snapshotEveryTicks),
	)

	return &Server{
		manager:       manager,
		notifications: nm,
		stream:        stream,
		physics:       physics,
		snapshotDir:   snapshotDir,
		logger:        logger,
	}
}

// Routes returns the HTTP handler with all routes registered
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/sims", s.handleListSimulations)
	mux.HandleFunc("/sim/", s.handleSimulationRoutes)
	mux.HandleFunc("/stream", s.handleStreamAll)
	mux.HandleFunc("/notifiers", s.handleNotifiersRoutes)
	mux.HandleFunc("/notifiers/", s.handleNotifiersRoutes)
	return withRequestLogging(s.logger, mux)
}

// CreateStartupSimulation creates the simulation named on the command line.
// A saved snapshot for it is restored when present.
func (s *Server) CreateStartupSimulation(id bounce.SimulationID, field bounce.Field, autostart bool) error {
	engine, err := s.manager.CreateEngine(id, field, s.physics)
	if err != nil {
		return fmt.Errorf("creating startup simulation: %w", err)
	}

	if path := engine.SnapshotPath(); path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			switch err := engine.LoadSnapshot(); {
			case errors.Is(err, bounce.ErrSnapshotMismatch):
				s.logger.Warnf("Ignoring snapshot of another simulation: sim_id=%s path=%s error=%v", id, path, err)
			case err != nil:
				s.logger.Warnf("Ignoring unusable snapshot: sim_id=%s path=%s error=%v", id, path, err)
			default:
				s.logger.Infof("Startup simulation restored: sim_id=%s tick=%d", id, engine.Tick())
			}
		}
	}

	if autostart {
		engine.Start(0)
	}
	return nil
}

// Close stops every simulation and closes all notifiers
func (s *Server) Close() error {
	s.manager.StopAll()
	if s.snapshotDir != "" {
		for _, id := range s.manager.ListEngines() {
			engine, ok := s.manager.GetEngine(id)
			if !ok {
				continue
			}
			if _, err := engine.SaveSnapshot(); err != nil && !errors.Is(err, bounce.ErrNoSnapshotDir) {
				s.logger.Errorf("Failed to save snapshot on shutdown: sim_id=%s error=%v", id, err)
			}
		}
	}
	return s.notifications.Close()
}
