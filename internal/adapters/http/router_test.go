package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/askmynotes/backend/internal/core/domain"
	"github.com/askmynotes/backend/internal/observability/metrics"
)

type fakeSubjects struct {
	byID map[string]*domain.Subject
}

func (f *fakeSubjects) Create(_ context.Context, subject *domain.Subject) error {
	f.byID[subject.ID] = subject
	return nil
}

func (f *fakeSubjects) GetByID(_ context.Context, id string) (*domain.Subject, error) {
	subject, ok := f.byID[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get subject", errors.New(id))
	}
	return subject, nil
}

func (f *fakeSubjects) List(_ context.Context) ([]domain.Subject, error) {
	var out []domain.Subject
	for _, s := range f.byID {
		out = append(out, *s)
	}
	return out, nil
}

type fakeNotes struct {
	byID map[string]*domain.Note
}

func (f *fakeNotes) Create(_ context.Context, note *domain.Note) error {
	f.byID[note.ID] = note
	return nil
}

func (f *fakeNotes) GetByID(_ context.Context, id string) (*domain.Note, error) {
	note, ok := f.byID[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get note", errors.New(id))
	}
	return note, nil
}

func (f *fakeNotes) UpdateStatus(_ context.Context, id string, status domain.NoteStatus, errMessage string) error {
	return nil
}

type fakeIngestor struct {
	lastFilename string
	err          error
}

func (f *fakeIngestor) Upload(_ context.Context, subjectID, filename, mimeType string, body io.Reader) (*domain.Note, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastFilename = filename
	return &domain.Note{
		ID:        "note-1",
		SubjectID: subjectID,
		Filename:  filename,
		Status:    domain.NoteUploaded,
	}, nil
}

type fakeAnswerer struct {
	lastQuery   string
	lastHistory []domain.ConversationTurn
	result      *domain.AnswerResult
	err         error
}

func (f *fakeAnswerer) AnswerQuestion(
	_ context.Context,
	query, subjectID, subjectName string,
	history []domain.ConversationTurn,
) (*domain.AnswerResult, error) {
	f.lastQuery = query
	f.lastHistory = history
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeTurns struct {
	saved   []domain.ConversationTurn
	history []domain.ConversationTurn
	err     error
}

func (f *fakeTurns) SaveTurn(_ context.Context, turn domain.ConversationTurn) error {
	f.saved = append(f.saved, turn)
	return nil
}

func (f *fakeTurns) RecentTurns(_ context.Context, sessionID, subjectID string, limit int) ([]domain.ConversationTurn, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

type fakeQALogs struct {
	entries  []domain.QALogEntry
	coverage []domain.CoverageBucket
	err      error
}

func (f *fakeQALogs) SaveEntry(_ context.Context, entry domain.QALogEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeQALogs) SubjectCoverage(_ context.Context, subjectID string) ([]domain.CoverageBucket, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.coverage, nil
}

type routerFixture struct {
	subjects *fakeSubjects
	notes    *fakeNotes
	ingestor *fakeIngestor
	answerer *fakeAnswerer
	turns    *fakeTurns
	qaLogs   *fakeQALogs
	handler  http.Handler
}

func groundedResult() *domain.AnswerResult {
	return &domain.AnswerResult{
		Answer:          "Photosynthesis converts light into chemical energy [SOURCE: bio.pdf, Page 3]",
		ConfidenceTier:  domain.TierHigh,
		ConfidenceScore: 0.93,
		Citations: []domain.Citation{
			{FileName: "bio.pdf", LocationRef: "Page 3", ChunkID: "c1", SourceFormat: domain.FormatPDF},
		},
		EvidenceSnippets: []string{"Photosynthesis converts light..."},
		TopChunkIDs:      []string{"c1", "c2"},
		Diagnostics:      domain.Diagnostics{DedupedChunks: 4},
	}
}

func newFixture(t *testing.T, opts Options) *routerFixture {
	t.Helper()

	fx := &routerFixture{
		subjects: &fakeSubjects{byID: map[string]*domain.Subject{
			"s1": {ID: "s1", Name: "Biology"},
		}},
		notes:    &fakeNotes{byID: map[string]*domain.Note{}},
		ingestor: &fakeIngestor{},
		answerer: &fakeAnswerer{result: groundedResult()},
		turns:    &fakeTurns{},
		qaLogs:   &fakeQALogs{},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(
		fx.subjects,
		fx.notes,
		fx.ingestor,
		fx.answerer,
		fx.turns,
		fx.qaLogs,
		metrics.NewAPIMetrics("test"),
		logger,
		opts,
	)
	fx.handler = router.Handler()
	return fx
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestHealthz(t *testing.T) {
	fx := newFixture(t, Options{})

	recorder := doJSON(t, fx.handler, http.MethodGet, "/healthz", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	if recorder.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestCreateSubjectRequiresName(t *testing.T) {
	fx := newFixture(t, Options{})

	recorder := doJSON(t, fx.handler, http.MethodPost, "/v1/subjects", map[string]string{"name": "  "})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
}

func TestCreateThenGetSubject(t *testing.T) {
	fx := newFixture(t, Options{})

	recorder := doJSON(t, fx.handler, http.MethodPost, "/v1/subjects", map[string]string{"name": "Chemistry"})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", recorder.Code, recorder.Body.String())
	}

	var created domain.Subject
	if err := json.Unmarshal(recorder.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Name != "Chemistry" {
		t.Fatalf("unexpected subject %+v", created)
	}

	recorder = doJSON(t, fx.handler, http.MethodGet, "/v1/subjects/"+created.ID, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
}

func TestGetSubjectNotFound(t *testing.T) {
	fx := newFixture(t, Options{})

	recorder := doJSON(t, fx.handler, http.MethodGet, "/v1/subjects/missing", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
}

func TestUploadNoteRequiresFile(t *testing.T) {
	fx := newFixture(t, Options{})

	recorder := doJSON(t, fx.handler, http.MethodPost, "/v1/subjects/s1/notes", map[string]string{})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
}

func TestUploadNoteAccepted(t *testing.T) {
	fx := newFixture(t, Options{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "lecture.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("%PDF-1.4")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/subjects/s1/notes", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	recorder := httptest.NewRecorder()
	fx.handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", recorder.Code, recorder.Body.String())
	}
	if fx.ingestor.lastFilename != "lecture.pdf" {
		t.Fatalf("ingestor got filename %q", fx.ingestor.lastFilename)
	}
}

func TestUploadNoteUnknownSubject(t *testing.T) {
	fx := newFixture(t, Options{})

	recorder := doJSON(t, fx.handler, http.MethodPost, "/v1/subjects/missing/notes", map[string]string{})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
}

func TestGetNoteByID(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.notes.byID["n1"] = &domain.Note{ID: "n1", SubjectID: "s1", Status: domain.NoteReady}

	recorder := doJSON(t, fx.handler, http.MethodGet, "/v1/notes/n1", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}

	recorder = doJSON(t, fx.handler, http.MethodGet, "/v1/notes/missing", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
}

func TestAskRequiresQuestion(t *testing.T) {
	fx := newFixture(t, Options{})

	recorder := doJSON(t, fx.handler, http.MethodPost, "/v1/subjects/s1/ask", map[string]string{"question": "   "})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
}

func TestAskGeneratesSessionAndSavesTurn(t *testing.T) {
	fx := newFixture(t, Options{})

	recorder := doJSON(t, fx.handler, http.MethodPost, "/v1/subjects/s1/ask", map[string]string{
		"question": "What is photosynthesis?",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", recorder.Code, recorder.Body.String())
	}

	var resp struct {
		SessionID string `json:"sessionId"`
		Answer    string `json:"answer"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatalf("expected generated session id")
	}
	if !strings.Contains(resp.Answer, "Photosynthesis") {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}

	if len(fx.turns.saved) != 1 {
		t.Fatalf("saved %d turns, want 1", len(fx.turns.saved))
	}
	turn := fx.turns.saved[0]
	if turn.SessionID != resp.SessionID {
		t.Fatalf("turn session %q, response session %q", turn.SessionID, resp.SessionID)
	}
	if turn.Query != "What is photosynthesis?" || turn.ConfidenceTier != domain.TierHigh {
		t.Fatalf("unexpected turn %+v", turn)
	}
}

func TestAskPassesHistoryToAnswerer(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.turns.history = []domain.ConversationTurn{
		{SessionID: "sess-1", Query: "earlier question", Answer: "earlier answer"},
	}

	recorder := doJSON(t, fx.handler, http.MethodPost, "/v1/subjects/s1/ask", map[string]string{
		"question":  "Follow-up?",
		"sessionId": "sess-1",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}

	var resp struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID != "sess-1" {
		t.Fatalf("session id = %q, want sess-1", resp.SessionID)
	}
	if len(fx.answerer.lastHistory) != 1 || fx.answerer.lastHistory[0].Query != "earlier question" {
		t.Fatalf("answerer history = %+v", fx.answerer.lastHistory)
	}
}

func TestAskHistoryFailureStillAnswers(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.turns.err = errors.New("store down")

	recorder := doJSON(t, fx.handler, http.MethodPost, "/v1/subjects/s1/ask", map[string]string{
		"question": "What is photosynthesis?",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	if fx.answerer.lastHistory != nil {
		t.Fatalf("expected nil history, got %+v", fx.answerer.lastHistory)
	}
}

func TestAskPersistsQALogWithRetrievalOutcome(t *testing.T) {
	fx := newFixture(t, Options{})

	recorder := doJSON(t, fx.handler, http.MethodPost, "/v1/subjects/s1/ask", map[string]string{
		"question":  "What is photosynthesis?",
		"sessionId": "sess-1",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}

	if len(fx.qaLogs.entries) != 1 {
		t.Fatalf("saved %d qa log entries, want 1", len(fx.qaLogs.entries))
	}
	entry := fx.qaLogs.entries[0]
	if entry.SessionID != "sess-1" || entry.SubjectID != "s1" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.ConfidenceScore != 0.93 {
		t.Fatalf("score = %v, want 0.93", entry.ConfidenceScore)
	}
	if len(entry.TopChunkIDs) != 2 || entry.TopChunkIDs[0] != "c1" {
		t.Fatalf("top chunk ids = %v", entry.TopChunkIDs)
	}
	if len(entry.Citations) != 1 || entry.Citations[0].FileName != "bio.pdf" {
		t.Fatalf("citations = %v", entry.Citations)
	}
	if len(entry.EvidenceSnippets) != 1 {
		t.Fatalf("evidence snippets = %v", entry.EvidenceSnippets)
	}
}

func TestAskQALogFailureStillAnswers(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.qaLogs.err = errors.New("log store down")

	recorder := doJSON(t, fx.handler, http.MethodPost, "/v1/subjects/s1/ask", map[string]string{
		"question": "What is photosynthesis?",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
}

func TestSubjectCoverage(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.qaLogs.coverage = []domain.CoverageBucket{
		{ChunkID: "c1", Frequency: 10, CoverageScore: 1.0, CoverageTier: domain.CoverageHot},
		{ChunkID: "c2", Frequency: 2, CoverageScore: 0.2, CoverageTier: domain.CoverageCool},
	}

	recorder := doJSON(t, fx.handler, http.MethodGet, "/v1/subjects/s1/coverage", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}

	var buckets []domain.CoverageBucket
	if err := json.Unmarshal(recorder.Body.Bytes(), &buckets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(buckets) != 2 || buckets[0].CoverageTier != domain.CoverageHot {
		t.Fatalf("buckets = %+v", buckets)
	}
}

func TestSubjectCoverageEmptyIsEmptyArray(t *testing.T) {
	fx := newFixture(t, Options{})

	recorder := doJSON(t, fx.handler, http.MethodGet, "/v1/subjects/s1/coverage", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	if body := strings.TrimSpace(recorder.Body.String()); body != "[]" {
		t.Fatalf("body = %q, want []", body)
	}
}

func TestSubjectCoverageUnknownSubject(t *testing.T) {
	fx := newFixture(t, Options{})

	recorder := doJSON(t, fx.handler, http.MethodGet, "/v1/subjects/missing/coverage", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
}

func TestAskPipelineFailureMapsToBadGateway(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.answerer.err = domain.WrapError(domain.ErrPipeline, "retrieve", errors.New("qdrant unreachable"))

	recorder := doJSON(t, fx.handler, http.MethodPost, "/v1/subjects/s1/ask", map[string]string{
		"question": "What is photosynthesis?",
	})
	if recorder.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", recorder.Code)
	}
	if len(fx.turns.saved) != 0 {
		t.Fatalf("failed question must not be saved, got %d turns", len(fx.turns.saved))
	}
}

func TestAskUnknownSubject(t *testing.T) {
	fx := newFixture(t, Options{})

	recorder := doJSON(t, fx.handler, http.MethodPost, "/v1/subjects/missing/ask", map[string]string{
		"question": "anything",
	})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	fx := newFixture(t, Options{RateLimitRPS: 1, RateLimitBurst: 1})

	first := doJSON(t, fx.handler, http.MethodGet, "/healthz", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.Code)
	}

	second := doJSON(t, fx.handler, http.MethodGet, "/healthz", nil)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
}

func TestMethodNotAllowedOnSubjects(t *testing.T) {
	fx := newFixture(t, Options{})

	recorder := doJSON(t, fx.handler, http.MethodDelete, "/v1/subjects", nil)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", recorder.Code)
	}
}
