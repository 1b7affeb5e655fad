package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/askmynotes/backend/internal/core/domain"
	"github.com/askmynotes/backend/internal/core/ports"
	"github.com/askmynotes/backend/internal/observability/metrics"
)

// Options tunes the HTTP surface around the use cases.
type Options struct {
	Service        string
	HistoryTurns   int
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
}

type Router struct {
	subjects ports.SubjectRepository
	notes    ports.NoteRepository
	ingestor ports.NoteIngestor
	answerer ports.QuestionAnswerer
	turns    ports.ConversationStore
	qaLogs   ports.QALogStore
	metrics  *metrics.APIMetrics
	logger   *slog.Logger

	service      string
	historyTurns int
	maxUpload    int64
	limiter      *rate.Limiter
}

func NewRouter(
	subjects ports.SubjectRepository,
	notes ports.NoteRepository,
	ingestor ports.NoteIngestor,
	answerer ports.QuestionAnswerer,
	turns ports.ConversationStore,
	qaLogs ports.QALogStore,
	apiMetrics *metrics.APIMetrics,
	logger *slog.Logger,
	opts Options,
) *Router {
	if opts.Service == "" {
		opts.Service = "api"
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 3
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 10
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = int(opts.RateLimitRPS) * 2
	}

	return &Router{
		subjects:     subjects,
		notes:        notes,
		ingestor:     ingestor,
		answerer:     answerer,
		turns:        turns,
		qaLogs:       qaLogs,
		metrics:      apiMetrics,
		logger:       logger,
		service:      opts.Service,
		historyTurns: opts.HistoryTurns,
		maxUpload:    opts.MaxUploadBytes,
		limiter:      rate.NewLimiter(rate.Limit(opts.RateLimitRPS), opts.RateLimitBurst),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/subjects", rt.subjectsCollection)
	mux.HandleFunc("/v1/subjects/", rt.subjectSubtree)
	mux.HandleFunc("/v1/notes/", rt.getNoteByID)

	handler := rt.metrics.Middleware(rt.service, mux)
	handler = maxBodyMiddleware(rt.maxUpload, handler)
	handler = rateLimitMiddleware(rt.limiter, handler)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) subjectsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.createSubject(w, r)
	case http.MethodGet:
		rt.listSubjects(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	}
}

// subjectSubtree routes /v1/subjects/{id}, /v1/subjects/{id}/notes,
// /v1/subjects/{id}/ask and /v1/subjects/{id}/coverage.
func (rt *Router) subjectSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/subjects/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		rt.getSubject(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "notes":
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		rt.uploadNote(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "ask":
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		rt.ask(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "coverage":
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		rt.coverage(w, r, parts[0])
	default:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	}
}

func (rt *Router) createSubject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "subject name is required"})
		return
	}

	subject := &domain.Subject{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := rt.subjects.Create(r.Context(), subject); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, subject)
}

func (rt *Router) listSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := rt.subjects.List(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if subjects == nil {
		subjects = []domain.Subject{}
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (rt *Router) getSubject(w http.ResponseWriter, r *http.Request, id string) {
	subject, err := rt.subjects.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (rt *Router) uploadNote(w http.ResponseWriter, r *http.Request, subjectID string) {
	if _, err := rt.subjects.GetByID(r.Context(), subjectID); err != nil {
		rt.writeError(w, r, err)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	note, err := rt.ingestor.Upload(
		r.Context(),
		subjectID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, note)
}

func (rt *Router) getNoteByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/notes/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "note id is required"})
		return
	}

	note, err := rt.notes.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

type askResponse struct {
	SessionID string `json:"sessionId"`
	*domain.AnswerResult
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request, subjectID string) {
	var req struct {
		Question  string `json:"question"`
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}

	subject, err := rt.subjects.GetByID(r.Context(), subjectID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// History is context, not evidence. Losing it degrades the prompt, not
	// the answer's grounding, so store failures do not fail the request.
	history, err := rt.turns.RecentTurns(r.Context(), sessionID, subject.ID, rt.historyTurns)
	if err != nil {
		rt.logger.Warn("load conversation history failed",
			"request_id", requestIDFromContext(r.Context()),
			"session_id", sessionID,
			"error", err,
		)
		history = nil
	}

	start := time.Now()
	result, err := rt.answerer.AnswerQuestion(r.Context(), req.Question, subject.ID, subject.Name, history)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.recordAskMetrics(result, time.Since(start))

	turn := domain.ConversationTurn{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		SubjectID:      subject.ID,
		Query:          req.Question,
		Answer:         result.Answer,
		ConfidenceTier: result.ConfidenceTier,
		CreatedAt:      time.Now().UTC(),
	}
	if err := rt.turns.SaveTurn(r.Context(), turn); err != nil {
		rt.logger.Warn("save conversation turn failed",
			"request_id", requestIDFromContext(r.Context()),
			"session_id", sessionID,
			"error", err,
		)
	}

	entry := domain.QALogEntry{
		ID:               uuid.NewString(),
		SessionID:        sessionID,
		SubjectID:        subject.ID,
		Query:            req.Question,
		Answer:           result.Answer,
		ConfidenceTier:   result.ConfidenceTier,
		ConfidenceScore:  result.ConfidenceScore,
		Citations:        result.Citations,
		EvidenceSnippets: result.EvidenceSnippets,
		TopChunkIDs:      result.TopChunkIDs,
		CreatedAt:        turn.CreatedAt,
	}
	if err := rt.qaLogs.SaveEntry(r.Context(), entry); err != nil {
		rt.logger.Warn("save qa log failed",
			"request_id", requestIDFromContext(r.Context()),
			"session_id", sessionID,
			"error", err,
		)
	}

	writeJSON(w, http.StatusOK, askResponse{
		SessionID:    sessionID,
		AnswerResult: result,
	})
}

// coverage reports how often each indexed chunk backed an answered question,
// with HOT/WARM/COOL tiers relative to the subject's most-hit chunk.
func (rt *Router) coverage(w http.ResponseWriter, r *http.Request, subjectID string) {
	if _, err := rt.subjects.GetByID(r.Context(), subjectID); err != nil {
		rt.writeError(w, r, err)
		return
	}

	buckets, err := rt.qaLogs.SubjectCoverage(r.Context(), subjectID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if buckets == nil {
		buckets = []domain.CoverageBucket{}
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (rt *Router) recordAskMetrics(result *domain.AnswerResult, duration time.Duration) {
	switch {
	case result.Diagnostics.GroundingEnforced:
		rt.metrics.RecordRefusal(rt.service, "grounding")
	case result.ConfidenceTier == domain.TierNotFound || result.ConfidenceTier == domain.TierLow:
		rt.metrics.RecordRefusal(rt.service, "gate")
	}
	if len(result.Diagnostics.ExpandedQueries) <= 1 {
		rt.metrics.RecordDegradation(rt.service, "expansion")
	}
	if !result.Diagnostics.RerankApplied && result.Diagnostics.DedupedChunks > 2 {
		rt.metrics.RecordDegradation(rt.service, "rerank")
	}
	rt.metrics.RecordAsk(
		rt.service,
		string(result.ConfidenceTier),
		result.ConfidenceScore,
		result.Diagnostics.DedupedChunks,
		len(result.Citations),
		duration,
	)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
