package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"moaidev/analysis"
	"moaidev/dialogue"
	"moaidev/logger"
	"moaidev/sessionstore"
	"moaidev/transcription"
)

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(_ context.Context, audio []byte, _ string) (string, error) {
	if err := transcription.ValidateAudio(audio); err != nil {
		return "", err
	}
	return s.text, s.err
}

type stubAnalyzer struct {
	result *analysis.ReflectionAnalysis
	err    error
}

func (s stubAnalyzer) AnalyzeReflection(context.Context, string, string) (*analysis.ReflectionAnalysis, error) {
	return s.result, s.err
}

func newTestServer(t *testing.T, transcriber transcription.Service, analyzer analysis.Analyzer) http.Handler {
	t.Helper()
	log := logger.Connect(logger.LoggerConnectProps{})
	engine := dialogue.Connect(context.Background(), dialogue.EngineConnectProps{
		Logger: log,
		Store:  sessionstore.NewMemoryStore(),
	})
	server := Connect(context.Background(), ServerConnectProps{
		Logger:      log,
		Engine:      engine,
		Transcriber: transcriber,
		Analyzer:    analyzer,
	})
	return server.Router()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("could not decode response body: %v", err)
	}
	return body
}

func multipartAudio(t *testing.T, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "recording.webm")
	if err != nil {
		t.Fatalf("could not create form file: %v", err)
	}
	part.Write(payload)
	writer.Close()
	return &buf, writer.FormDataContentType()
}

func TestHealth(t *testing.T) {
	router := newTestServer(t, stubTranscriber{}, stubAnalyzer{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestTranscribe_NoFile(t *testing.T) {
	router := newTestServer(t, stubTranscriber{}, stubAnalyzer{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/transcribe", strings.NewReader("")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if decodeBody(t, rec)["error"] != "No file provided" {
		t.Fatal("expected the no-file error message")
	}
}

func TestTranscribe_Success(t *testing.T) {
	router := newTestServer(t, stubTranscriber{text: "hello world"}, stubAnalyzer{})
	body, contentType := multipartAudio(t, []byte("fake-audio-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeBody(t, rec)
	if got["text"] != "hello world" || got["success"] != true {
		t.Fatalf("unexpected response: %v", got)
	}
}

func TestTranscribe_EmptyFile(t *testing.T) {
	router := newTestServer(t, stubTranscriber{}, stubAnalyzer{})
	body, contentType := multipartAudio(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty audio, got %d", rec.Code)
	}
	if decodeBody(t, rec)["error"] != "Empty file provided" {
		t.Fatal("expected the empty-file error message")
	}
}

func TestTranscribe_UpstreamFailure(t *testing.T) {
	upstream := &transcription.Error{Kind: transcription.KindUpstreamFailure, Message: "insufficient quota"}
	router := newTestServer(t, stubTranscriber{err: upstream}, stubAnalyzer{})
	body, contentType := multipartAudio(t, []byte("fake-audio-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	// The upstream message surfaces verbatim.
	if decodeBody(t, rec)["error"] != "insufficient quota" {
		t.Fatalf("expected verbatim upstream message, got %s", rec.Body.String())
	}
}

func TestAnalyzeReflection_MissingFields(t *testing.T) {
	router := newTestServer(t, stubTranscriber{}, stubAnalyzer{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze-reflection",
		strings.NewReader(`{"reflection": "only one field"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAnalyzeReflection_Success(t *testing.T) {
	result := analysis.Fallback("it was amazing", "Sam")
	router := newTestServer(t, stubTranscriber{}, stubAnalyzer{result: result})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze-reflection",
		strings.NewReader(`{"reflection": "it was amazing", "personName": "Sam"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := decodeBody(t, rec)
	if got["analysis"] == nil {
		t.Fatalf("expected analysis in response, got %v", got)
	}
}

func TestAnalyzeReflection_FallbackOnError(t *testing.T) {
	router := newTestServer(t, stubTranscriber{}, stubAnalyzer{err: context.DeadlineExceeded})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze-reflection",
		strings.NewReader(`{"reflection": "I felt heard", "personName": "Sam"}`))
	router.ServeHTTP(rec, req)

	// Upstream failures never surface; the local fallback substitutes.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := decodeBody(t, rec)
	payload, _ := json.Marshal(got["analysis"])
	var a analysis.ReflectionAnalysis
	if err := json.Unmarshal(payload, &a); err != nil {
		t.Fatalf("could not decode substituted analysis: %v", err)
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("substituted analysis invalid: %v", err)
	}
}

func createSession(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/companion/session/",
		strings.NewReader(`{"userName": "Maya"}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	session, ok := decodeBody(t, rec)["session"].(map[string]any)
	if !ok {
		t.Fatal("missing session in response")
	}
	id, _ := session["id"].(string)
	if id == "" {
		t.Fatal("missing session id")
	}
	return id
}

func TestSession_CreateAndGreet(t *testing.T) {
	router := newTestServer(t, stubTranscriber{}, stubAnalyzer{})
	id := createSession(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/companion/session/"+id+"/messages", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	messages, ok := decodeBody(t, rec)["messages"].([]any)
	if !ok || len(messages) != 1 {
		t.Fatalf("expected the greeting in the transcript, got %v", messages)
	}
}

func TestSession_PostMessageAccepted(t *testing.T) {
	router := newTestServer(t, stubTranscriber{}, stubAnalyzer{})
	id := createSession(t, router)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/companion/session/"+id+"/message",
		strings.NewReader(`{"text": "hello"}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	// A second turn while the reply is pending is rejected.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/companion/session/"+id+"/message",
		strings.NewReader(`{"text": "hello again"}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while reply pending, got %d", rec.Code)
	}
}

func TestSession_UnknownID(t *testing.T) {
	router := newTestServer(t, stubTranscriber{}, stubAnalyzer{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/companion/session/nope/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSession_Delete(t *testing.T) {
	router := newTestServer(t, stubTranscriber{}, stubAnalyzer{})
	id := createSession(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/companion/session/"+id+"/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/companion/session/"+id+"/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}

	// The transcript route agrees with the session route.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/companion/session/"+id+"/messages", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 transcript after delete, got %d", rec.Code)
	}
}

func TestSpeak_NoProvider(t *testing.T) {
	router := newTestServer(t, stubTranscriber{}, stubAnalyzer{})
	id := createSession(t, router)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/companion/session/"+id+"/speak",
		strings.NewReader(`{"text": "hello"}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a speech provider, got %d", rec.Code)
	}
}

func TestModeling_Advance(t *testing.T) {
	router := newTestServer(t, stubTranscriber{}, stubAnalyzer{})
	id := createSession(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/companion/session/"+id+"/modeling", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/companion/session/"+id+"/modeling/next", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/companion/session/"+id+"/", nil))
	session := decodeBody(t, rec)["session"].(map[string]any)
	if step, _ := session["step"].(float64); step != 1 {
		t.Fatalf("expected step 1 after advance, got %v", session["step"])
	}
}
