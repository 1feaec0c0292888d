package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sreeram-gsan/brillia-v3/internal/concept"
	"github.com/sreeram-gsan/brillia-v3/internal/learning"
	"github.com/sreeram-gsan/brillia-v3/internal/mastery"
	"github.com/sreeram-gsan/brillia-v3/internal/queue"
	"github.com/sreeram-gsan/brillia-v3/internal/tutor"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":        "running",
		"version":       Version,
		"storage":       s.cfg.StorageDriver,
		"llm_providers": s.svcs.Registry.List(),
		"queue_enabled": s.svcs.Producer != nil,
	})
}

// Interaction handlers

func (s *Server) handleRecordInteraction(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("course")

	var req struct {
		StudentID string  `json:"student_id"`
		Concept   string  `json:"concept,omitempty"`
		Text      string  `json:"text,omitempty"`
		Kind      string  `json:"kind"`
		Weight    float64 `json:"weight,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.StudentID == "" {
		s.jsonError(w, http.StatusBadRequest, "student_id is required", nil)
		return
	}
	if req.Concept == "" && req.Text == "" {
		s.jsonError(w, http.StatusBadRequest, "concept or text is required", nil)
		return
	}

	kind := mastery.Interaction(req.Kind)
	switch kind {
	case mastery.InteractionQuestion, mastery.InteractionQuizCorrect, mastery.InteractionQuizIncorrect:
	default:
		s.jsonError(w, http.StatusBadRequest, "kind must be question, quiz_correct or quiz_incorrect", nil)
		return
	}

	weight := req.Weight
	if weight == 0 {
		weight = kind.DefaultWeight()
	}

	// With a queue configured, hand the event off and return immediately.
	if s.svcs.Producer != nil {
		event := &queue.InteractionEvent{
			ID:        uuid.New(),
			StudentID: req.StudentID,
			CourseID:  courseID,
			Concept:   req.Concept,
			Text:      req.Text,
			Kind:      req.Kind,
			Weight:    weight,
		}
		if err := s.svcs.Producer.PublishInteraction(r.Context(), event); err != nil {
			s.jsonError(w, http.StatusServiceUnavailable, "failed to enqueue interaction", err)
			return
		}
		s.jsonResponse(w, http.StatusAccepted, map[string]interface{}{
			"queued": true,
			"id":     event.ID,
		})
		return
	}

	if err := s.applyInteraction(r.Context(), courseID, req.StudentID, req.Concept, req.Text, kind, weight); err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to record interaction", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"queued": false,
	})
}

func (s *Server) handleRecordMessage(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("course")

	var req struct {
		StudentID string `json:"student_id"`
		Role      string `json:"role"`
		Content   string `json:"content"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.StudentID == "" || req.Content == "" {
		s.jsonError(w, http.StatusBadRequest, "student_id and content are required", nil)
		return
	}
	if req.Role == "" {
		req.Role = "user"
	}

	msg := mastery.ChatMessage{
		Role:      req.Role,
		Content:   req.Content,
		Timestamp: time.Now().UTC(),
	}
	if err := s.svcs.History.RecordMessage(r.Context(), courseID, req.StudentID, msg); err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to record message", err)
		return
	}

	// Student questions also count as concept interactions.
	tracked := 0
	if req.Role == "user" {
		known, err := s.knownConcepts(r.Context(), courseID)
		if err != nil {
			s.jsonError(w, http.StatusInternalServerError, "failed to list concepts", err)
			return
		}
		for _, detected := range s.svcs.Detector.Detect(req.Content, known) {
			if err := s.svcs.Mastery.Update(r.Context(), req.StudentID, courseID, detected, mastery.InteractionQuestion, 1.0); err != nil {
				s.jsonError(w, http.StatusInternalServerError, "failed to update mastery", err)
				return
			}
			tracked++
		}
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"recorded":         true,
		"concepts_tracked": tracked,
	})
}

func (s *Server) handleRecordQuizAttempt(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("course")

	var req struct {
		StudentID      string `json:"student_id"`
		Topic          string `json:"topic"`
		Score          int    `json:"score"`
		TotalQuestions int    `json:"total_questions"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.StudentID == "" {
		s.jsonError(w, http.StatusBadRequest, "student_id is required", nil)
		return
	}
	if req.TotalQuestions <= 0 || req.Score < 0 || req.Score > req.TotalQuestions {
		s.jsonError(w, http.StatusBadRequest, "score must be between 0 and total_questions", nil)
		return
	}

	attempt := mastery.QuizAttempt{
		Topic:          req.Topic,
		Score:          req.Score,
		TotalQuestions: req.TotalQuestions,
		CompletedAt:    time.Now().UTC(),
	}
	if err := s.svcs.History.RecordAttempt(r.Context(), courseID, req.StudentID, attempt); err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to record attempt", err)
		return
	}

	// Fold the per-question results into the topic's mastery.
	if req.Topic != "" {
		for i := 0; i < req.Score; i++ {
			kind := mastery.InteractionQuizCorrect
			if err := s.svcs.Mastery.Update(r.Context(), req.StudentID, courseID, req.Topic, kind, kind.DefaultWeight()); err != nil {
				s.jsonError(w, http.StatusInternalServerError, "failed to update mastery", err)
				return
			}
		}
		for i := 0; i < req.TotalQuestions-req.Score; i++ {
			kind := mastery.InteractionQuizIncorrect
			if err := s.svcs.Mastery.Update(r.Context(), req.StudentID, courseID, req.Topic, kind, kind.DefaultWeight()); err != nil {
				s.jsonError(w, http.StatusInternalServerError, "failed to update mastery", err)
				return
			}
		}
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"recorded": true,
	})
}

func (s *Server) handleDetectConcepts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text          string   `json:"text"`
		KnownConcepts []string `json:"known_concepts"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Text == "" {
		s.jsonError(w, http.StatusBadRequest, "text is required", nil)
		return
	}

	detected := s.svcs.Detector.Detect(req.Text, req.KnownConcepts)
	if detected == nil {
		detected = []string{}
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"concepts": detected,
	})
}

// Material & extraction handlers

func (s *Server) handleAddMaterial(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("course")

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Type    string `json:"type,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Title == "" || req.Content == "" {
		s.jsonError(w, http.StatusBadRequest, "title and content are required", nil)
		return
	}

	if err := s.svcs.Materials.Add(r.Context(), courseID, req.Title, req.Content, req.Type); err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to add material", err)
		return
	}

	s.jsonResponse(w, http.StatusCreated, map[string]interface{}{
		"added": true,
	})
}

func (s *Server) handleExtractConcepts(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("course")

	var req struct {
		Materials []concept.Material `json:"materials,omitempty"`
	}

	// An empty body means extract from the course's stored materials.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	materials := req.Materials
	if len(materials) == 0 {
		stored, err := s.svcs.Materials.ListMaterials(r.Context(), courseID)
		if err != nil {
			s.jsonError(w, http.StatusInternalServerError, "failed to load materials", err)
			return
		}
		materials = stored
	}

	concepts := s.svcs.Extractor.Extract(r.Context(), materials)
	if concepts == nil {
		concepts = []string{}
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"course_id": courseID,
		"concepts":  concepts,
	})
}

// Maintenance handlers

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("course")

	removed, err := s.svcs.Mastery.Cleanup(r.Context(), courseID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "cleanup failed", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
	})
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("course")

	updated, err := s.svcs.Mastery.Recalculate(r.Context(), courseID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "recalculate failed", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"updated": updated,
	})
}

// Analytics handlers

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("course")

	heatmap, err := s.svcs.Aggregator.CourseHeatmap(r.Context(), courseID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to build heatmap", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, heatmap)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("course")
	studentID := r.URL.Query().Get("student_id")
	if studentID == "" {
		s.jsonError(w, http.StatusBadRequest, "student_id is required", nil)
		return
	}

	insights, err := s.svcs.Aggregator.StudentInsights(r.Context(), courseID, studentID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to build insights", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, insights)
}

// Learning handlers

func (s *Server) handleGetCards(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("course")
	studentID := r.URL.Query().Get("student_id")
	if studentID == "" {
		s.jsonError(w, http.StatusBadRequest, "student_id is required", nil)
		return
	}

	cards, err := s.svcs.Cards.Cards(r.Context(), courseID, studentID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to get cards", err)
		return
	}
	if cards == nil {
		cards = []*learning.Card{}
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"cards": cards,
	})
}

func (s *Server) handleDismissCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardID  string `json:"card_id"`
		Correct bool   `json:"correct"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	cardID, err := uuid.Parse(req.CardID)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "card_id must be a UUID", err)
		return
	}

	result, err := s.svcs.Cards.Dismiss(r.Context(), cardID, req.Correct)
	if err != nil {
		if errors.Is(err, learning.ErrCardNotFound) {
			s.jsonError(w, http.StatusNotFound, "card not found", nil)
			return
		}
		s.jsonError(w, http.StatusInternalServerError, "failed to dismiss card", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("course")
	studentID := r.URL.Query().Get("student_id")
	if studentID == "" {
		s.jsonError(w, http.StatusBadRequest, "student_id is required", nil)
		return
	}

	view, err := s.svcs.Progress.View(r.Context(), studentID, courseID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to get progress", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, view)
}

func (s *Server) handleStudyPlan(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("course")
	studentID := r.URL.Query().Get("student_id")
	if studentID == "" {
		s.jsonError(w, http.StatusBadRequest, "student_id is required", nil)
		return
	}

	plan, err := s.svcs.Planner.Plan(r.Context(), courseID, studentID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to build study plan", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, plan)
}

// Intent handlers

func (s *Server) handleQuizIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message  string `json:"message"`
		CourseID string `json:"course_id,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Message == "" {
		s.jsonError(w, http.StatusBadRequest, "message is required", nil)
		return
	}

	result := s.svcs.Intent.DetectQuizIntent(r.Context(), req.Message)

	// When the intent names a topic and a course is given, narrow the
	// course materials down to the relevant ones.
	var materials []concept.Material
	if result.IsQuizRequest && req.CourseID != "" {
		stored, err := s.svcs.Materials.ListMaterials(r.Context(), req.CourseID)
		if err != nil {
			s.jsonError(w, http.StatusInternalServerError, "failed to load materials", err)
			return
		}
		materials = s.svcs.Intent.FilterMaterialsByTopic(r.Context(), stored, result.Topic)
	}

	titles := make([]string, 0, len(materials))
	for _, m := range materials {
		titles = append(titles, m.Title)
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"intent":             result,
		"relevant_materials": titles,
	})
}

func (s *Server) handleTutorParse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Response string `json:"response"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Response == "" {
		s.jsonError(w, http.StatusBadRequest, "response is required", nil)
		return
	}

	parsed := tutor.ParseStructured(req.Response)

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"parsed":   parsed,
		"degraded": parsed.Degraded(),
	})
}

// Response helpers

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}
