package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/vincentbai/pagebeacon/internal/models"
)

const maxBodyBytes = 64 << 10

// EventSink receives every event the collector accepts.
type EventSink interface {
	Record(ctx context.Context, event models.Event) error
}

// Sinks records an event in each sink in turn and joins their errors.
type Sinks []EventSink

func (s Sinks) Record(ctx context.Context, event models.Event) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Server struct {
	sink    EventSink
	address string
	server  *http.Server
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

func NewServer(sink EventSink, address string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		sink:    sink,
		address: address,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

type trackResponse struct {
	Status    string `json:"status"`
	EventType string `json:"event_type"`
}

func (s *Server) handleTrack(w http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var envelope models.Envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, request.Body, maxBodyBytes)).Decode(&envelope); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if !models.IsKnownType(envelope.Type) {
		http.Error(w, "Invalid event type", http.StatusBadRequest)
		return
	}

	event := s.toEvent(envelope)
	if err := s.sink.Record(request.Context(), event); err != nil {
		s.logger.Error("failed to store event", "type", event.Type, "id", event.ID, "error", err)
		http.Error(w, "Failed to store event", http.StatusInternalServerError)
		return
	}
	s.logger.Debug("stored event", "type", event.Type, "path", event.Path, "id", event.ID)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(trackResponse{Status: "success", EventType: event.Type})
}

// toEvent keeps only the columns relevant to the envelope's type, filling
// absent ones with their zero value.
func (s *Server) toEvent(envelope models.Envelope) models.Event {
	ts, err := time.Parse(time.RFC3339Nano, envelope.Timestamp)
	if err != nil {
		s.logger.Warn("invalid timestamp, using receive time", "timestamp", envelope.Timestamp)
		ts = s.now()
	}
	ts = ts.UTC()

	event := models.Event{
		ID:    s.newID(),
		Type:  envelope.Type,
		Path:  strings.Trim(envelope.Path, "/"),
		TSUTC: ts.UnixMilli(),
		TSISO: ts.Format("2006-01-02T15:04:05.000Z"),
	}

	switch envelope.Type {
	case models.TypeClick:
		event.Element = orEmpty(envelope.Element)
		event.ElementID = orEmpty(envelope.ElementID)
		event.ClassName = orEmpty(envelope.ClassName)
	case models.TypeScrollDepth:
		maxScroll := 0
		if envelope.MaxScroll != nil {
			maxScroll = *envelope.MaxScroll
		}
		event.MaxScroll = &maxScroll
	case models.TypeUserAgent:
		event.UserAgent = orEmpty(envelope.UserAgent)
	case models.TypeSessionDuration:
		var duration int64
		if envelope.Duration != nil {
			duration = *envelope.Duration
		}
		event.Duration = &duration
	}
	return event
}

func orEmpty(s *string) *string {
	v := ""
	if s != nil {
		v = *s
	}
	return &v
}

// withCORS lets pages on any origin post to the collector.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle(models.TrackPath, withCORS(http.HandlerFunc(s.handleTrack)))
	return mux
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      s.setupRoutes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("pagebeacon collector listening", "address", s.address)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownContext); err != nil {
		return err
	}

	s.logger.Info("server exited")
	return nil
}
