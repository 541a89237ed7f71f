package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jsacert/exam-engine/internal/config"
	"github.com/jsacert/exam-engine/internal/handler"
	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/router"
	"github.com/jsacert/exam-engine/internal/service"
	"github.com/jsacert/exam-engine/internal/store/memory"
	"github.com/jsacert/exam-engine/internal/validator"
)

type envelope struct {
	Data  map[string]json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Metadata struct {
		RequestID string `json:"request_id"`
	} `json:"metadata"`
}

func newTestServer(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	validator.Setup()

	st := memory.New()
	seedBank(t, st)

	cfg := &config.Config{
		GinMode:            gin.TestMode,
		ExamDuration:       time.Hour,
		PassPercent:        70,
		RetakeCooldownDays: 7,
	}
	selectionService := service.NewSelectionService(st)
	scoringService := service.NewScoringService(st, st)
	sessionService := service.NewSessionService(st, st, selectionService, scoringService, cfg, zerolog.Nop())
	handlers := &router.Handlers{
		Session:  handler.NewSessionHandler(sessionService, service.NewReportService(), cfg.PassPercent, cfg.RetakeCooldownDays),
		Question: handler.NewQuestionHandler(st, sessionService),
		User:     handler.NewUserHandler(st),
		Stats:    handler.NewStatsHandler(service.NewStatsService(st, cfg.PassPercent)),
	}
	return router.SetupRouter(handlers, cfg), st
}

func seedBank(t *testing.T, st *memory.Store) {
	t.Helper()
	ctx := context.Background()
	quotas := map[model.Section]int{
		model.SectionObjects:  11,
		model.SectionClasses:  7,
		model.SectionBuiltins: 12,
		model.SectionAdvFunc:  10,
	}
	for section, n := range quotas {
		for i := 0; i < n; i++ {
			q := &model.Question{
				Section: section,
				Type:    model.QuestionTypeSingle,
				Text:    fmt.Sprintf("%s question %d", section, i),
				Active:  true,
			}
			opts := []model.AnswerOption{
				{Text: "right", IsCorrect: true, OrderIndex: 0},
				{Text: "wrong", OrderIndex: 1},
			}
			if err := st.CreateQuestion(ctx, q, opts); err != nil {
				t.Fatalf("CreateQuestion: %v", err)
			}
		}
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %s %s: %v\n%s", method, path, err, w.Body.String())
	}
	return w.Code, env
}

func registerUser(t *testing.T, r *gin.Engine, externalID int64) int64 {
	t.Helper()
	code, env := doJSON(t, r, http.MethodPost, "/api/v1/users", gin.H{"external_id": externalID})
	if code != http.StatusOK {
		t.Fatalf("register user: status %d", code)
	}
	var user model.User
	if err := json.Unmarshal(env.Data["user"], &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	return user.ID
}

func createSession(t *testing.T, r *gin.Engine, userID int64, mode string) model.Session {
	t.Helper()
	code, env := doJSON(t, r, http.MethodPost, "/api/v1/sessions",
		gin.H{"user_id": userID, "exam_id": 1, "mode": mode})
	if code != http.StatusCreated {
		t.Fatalf("create session: status %d, error %+v", code, env.Error)
	}
	var sess model.Session
	if err := json.Unmarshal(env.Data["session"], &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return sess
}

func TestExamFlowOverHTTP(t *testing.T) {
	r, _ := newTestServer(t)
	userID := registerUser(t, r, 9001)
	sess := createSession(t, r, userID, "exam")

	// Duplicate attempt is refused with the typed code.
	code, env := doJSON(t, r, http.MethodPost, "/api/v1/sessions",
		gin.H{"user_id": userID, "exam_id": 1, "mode": "practice"})
	if code != http.StatusConflict || env.Error == nil || env.Error.Code != "ACTIVE_SESSION_EXISTS" {
		t.Fatalf("duplicate create: status %d, error %+v", code, env.Error)
	}

	// Remaining time is present for an exam session.
	code, env = doJSON(t, r, http.MethodGet, "/api/v1/sessions/"+sess.ID.String(), nil)
	if code != http.StatusOK {
		t.Fatalf("get session: status %d", code)
	}
	var remaining *int64
	if err := json.Unmarshal(env.Data["remaining_seconds"], &remaining); err != nil || remaining == nil {
		t.Fatalf("remaining_seconds missing: %v", err)
	}
	if *remaining <= 0 || *remaining > 3600 {
		t.Fatalf("remaining = %d, want (0, 3600]", *remaining)
	}

	// First question view: options visible, answer key not serialized.
	path := fmt.Sprintf("/api/v1/sessions/%s/questions/1", sess.ID)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get question: status %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "is_correct") {
		t.Fatal("answer key leaked into the question payload")
	}

	var wrapped struct {
		Data struct {
			Question model.Question       `json:"question"`
			Options  []model.AnswerOption `json:"options"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &wrapped); err != nil {
		t.Fatalf("decode question view: %v", err)
	}
	view := wrapped.Data
	if len(view.Options) != 2 {
		t.Fatalf("got %d options, want 2", len(view.Options))
	}

	// Answer it, check progress.
	code, env = doJSON(t, r, http.MethodPut, "/api/v1/sessions/"+sess.ID.String()+"/answers/single",
		gin.H{"question_id": view.Question.ID, "answer_id": view.Options[0].ID})
	if code != http.StatusOK {
		t.Fatalf("answer: status %d, error %+v", code, env.Error)
	}

	code, env = doJSON(t, r, http.MethodGet, "/api/v1/sessions/"+sess.ID.String()+"/progress", nil)
	if code != http.StatusOK {
		t.Fatalf("progress: status %d", code)
	}
	var prog model.Progress
	if err := json.Unmarshal(env.Data["progress"], &prog); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if prog.Answered != 1 || prog.Total != 40 {
		t.Fatalf("progress = %+v, want 1/40 answered", prog)
	}

	// Submit, then submit again: identical outcome both times.
	code, env = doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+sess.ID.String()+"/submit", gin.H{})
	if code != http.StatusOK {
		t.Fatalf("submit: status %d, error %+v", code, env.Error)
	}
	var first service.GradeResult
	if err := json.Unmarshal(env.Data["result"], &first); err != nil {
		t.Fatalf("decode result: %v", err)
	}

	code, env = doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+sess.ID.String()+"/submit", gin.H{})
	if code != http.StatusOK {
		t.Fatalf("repeat submit: status %d", code)
	}
	var second service.GradeResult
	if err := json.Unmarshal(env.Data["result"], &second); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if first.Correct != second.Correct || first.Percent != second.Percent {
		t.Fatalf("repeat submit drifted: %+v vs %+v", first, second)
	}

	// Failure starts the cooldown.
	code, env = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/retake-eligibility", userID), nil)
	if code != http.StatusOK {
		t.Fatalf("eligibility: status %d", code)
	}
	var eligible bool
	if err := json.Unmarshal(env.Data["eligible"], &eligible); err != nil {
		t.Fatalf("decode eligible: %v", err)
	}
	if eligible {
		t.Fatal("failed taker must not be eligible immediately")
	}
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	r, _ := newTestServer(t)

	code, env := doJSON(t, r, http.MethodPost, "/api/v1/sessions",
		gin.H{"user_id": 1, "exam_id": 1, "mode": "marathon"})
	if code != http.StatusBadRequest || env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("bad mode: status %d, error %+v", code, env.Error)
	}

	code, env = doJSON(t, r, http.MethodGet, "/api/v1/sessions/not-a-uuid", nil)
	if code != http.StatusBadRequest || env.Error == nil || env.Error.Code != "INVALID_ID" {
		t.Fatalf("bad uuid: status %d, error %+v", code, env.Error)
	}

	code, env = doJSON(t, r, http.MethodGet, "/api/v1/users/1/sessions/active", nil)
	if code != http.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("no active session: status %d, error %+v", code, env.Error)
	}
}

func TestRequestIDHeader(t *testing.T) {
	r, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "trace-me-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("health: status %d", w.Code)
	}
	if got := w.Header().Get("X-Request-ID"); got != "trace-me-123" {
		t.Fatalf("request id header = %q, want echoed value", got)
	}
	if !strings.Contains(w.Body.String(), "trace-me-123") {
		t.Fatal("request id missing from response metadata")
	}
}
