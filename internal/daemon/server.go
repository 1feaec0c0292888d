package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sreeram-gsan/brillia-v3/internal/concept"
	"github.com/sreeram-gsan/brillia-v3/internal/config"
	"github.com/sreeram-gsan/brillia-v3/internal/intent"
	"github.com/sreeram-gsan/brillia-v3/internal/learning"
	"github.com/sreeram-gsan/brillia-v3/internal/llm"
	"github.com/sreeram-gsan/brillia-v3/internal/mastery"
	"github.com/sreeram-gsan/brillia-v3/internal/queue"
)

// Version is reported on the status endpoint.
const Version = "0.1.0"

// HistoryRecorder persists quiz attempts and chat messages for analytics.
type HistoryRecorder interface {
	RecordAttempt(ctx context.Context, courseID, studentID string, attempt mastery.QuizAttempt) error
	RecordMessage(ctx context.Context, courseID, studentID string, msg mastery.ChatMessage) error
}

// MaterialStore persists and lists course materials.
type MaterialStore interface {
	learning.MaterialSource
	Add(ctx context.Context, courseID, title, content, materialType string) error
}

// Services bundles everything the HTTP server dispatches to.
type Services struct {
	Registry   *llm.Registry
	Mastery    *mastery.Service
	Masteries  mastery.Store
	Aggregator *mastery.Aggregator
	Extractor  *concept.Extractor
	Detector   *concept.Detector
	Cards      *learning.CardService
	Progress   *learning.ProgressService
	Planner    *learning.Planner
	Intent     *intent.Detector
	Materials  MaterialStore
	History    HistoryRecorder

	// Producer is optional; when set, interaction events are published to
	// RabbitMQ instead of being applied inline.
	Producer *queue.Producer
}

// Server is the brillia daemon HTTP server
type Server struct {
	cfg    *config.Config
	server *http.Server
	router *http.ServeMux
	svcs   Services
	logger *slog.Logger
}

// NewServer creates a new daemon server
func NewServer(cfg *config.Config, svcs Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		router: http.NewServeMux(),
		svcs:   svcs,
		logger: logger,
	}

	s.setupRoutes()

	handler := recoveryMiddleware(loggingMiddleware(correlationIDMiddleware(s.router)))
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)

	// Interactions & concept tracking
	s.router.HandleFunc("POST /v1/courses/{course}/interactions", s.handleRecordInteraction)
	s.router.HandleFunc("POST /v1/courses/{course}/messages", s.handleRecordMessage)
	s.router.HandleFunc("POST /v1/courses/{course}/quiz-attempts", s.handleRecordQuizAttempt)
	s.router.HandleFunc("POST /v1/concepts/detect", s.handleDetectConcepts)

	// Materials & concept extraction
	s.router.HandleFunc("POST /v1/courses/{course}/materials", s.handleAddMaterial)
	s.router.HandleFunc("POST /v1/courses/{course}/concepts/extract", s.handleExtractConcepts)

	// Mastery maintenance
	s.router.HandleFunc("POST /v1/courses/{course}/cleanup", s.handleCleanup)
	s.router.HandleFunc("POST /v1/courses/{course}/recalculate", s.handleRecalculate)

	// Analytics
	s.router.HandleFunc("GET /v1/courses/{course}/heatmap", s.handleHeatmap)
	s.router.HandleFunc("GET /v1/courses/{course}/insights", s.handleInsights)

	// Learning cards, progress, study plans
	s.router.HandleFunc("GET /v1/courses/{course}/cards", s.handleGetCards)
	s.router.HandleFunc("POST /v1/cards/dismiss", s.handleDismissCard)
	s.router.HandleFunc("GET /v1/courses/{course}/progress", s.handleGetProgress)
	s.router.HandleFunc("GET /v1/courses/{course}/study-plan", s.handleStudyPlan)

	// Intent detection & tutor response parsing
	s.router.HandleFunc("POST /v1/intent/quiz", s.handleQuizIntent)
	s.router.HandleFunc("POST /v1/tutor/parse", s.handleTutorParse)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting brillia daemon",
		"addr", s.server.Addr,
		"llm_providers", s.svcs.Registry.List(),
		"queue_enabled", s.svcs.Producer != nil,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down daemon...")
	return s.server.Shutdown(ctx)
}

// Handler returns the root handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// HandleInteractionEvent applies a queued interaction event to the mastery
// store. It is wired as the queue consumer handler when RabbitMQ is enabled.
func (s *Server) HandleInteractionEvent(ctx context.Context, event *queue.InteractionEvent) error {
	return s.applyInteraction(ctx, event.CourseID, event.StudentID, event.Concept, event.Text, mastery.Interaction(event.Kind), event.Weight)
}

// applyInteraction updates mastery for an explicit concept, or detects
// concepts in free text against the course's known concepts.
func (s *Server) applyInteraction(ctx context.Context, courseID, studentID, conceptName, text string, kind mastery.Interaction, weight float64) error {
	if conceptName != "" {
		return s.svcs.Mastery.Update(ctx, studentID, courseID, conceptName, kind, weight)
	}

	known, err := s.knownConcepts(ctx, courseID)
	if err != nil {
		return fmt.Errorf("list known concepts: %w", err)
	}

	for _, detected := range s.svcs.Detector.Detect(text, known) {
		if err := s.svcs.Mastery.Update(ctx, studentID, courseID, detected, kind, weight); err != nil {
			return fmt.Errorf("update mastery for %q: %w", detected, err)
		}
	}
	return nil
}

// knownConcepts returns the distinct concept names tracked for a course.
func (s *Server) knownConcepts(ctx context.Context, courseID string) ([]string, error) {
	records, err := s.svcs.Masteries.ListByCourse(ctx, courseID, 0)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(records))
	names := make([]string, 0, len(records))
	for _, r := range records {
		if !seen[r.Concept] {
			seen[r.Concept] = true
			names = append(names, r.Concept)
		}
	}
	return names, nil
}
