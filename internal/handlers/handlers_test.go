package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"annadata-backend/internal/models"
	"annadata-backend/internal/services"
)

// ─── Chat ───

func newOpenRouterMock(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	jsonBody, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

func TestChatHandler_StripsBoldAndTrims(t *testing.T) {
	srv, _ := newOpenRouterMock(t, http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":"  **गेहूं** की बुवाई **नवंबर** में करें  "}}]}`)
	h := NewChatHandler(services.NewCompletionClient("key", srv.URL, "m", "", "", 5*time.Second))

	rr := postJSON(t, h.Chat, "/chat", models.ChatRequest{Message: "गेहूं कब बोएं?"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := decodeBody(t, rr)["reply"]; got != "गेहूं की बुवाई नवंबर में करें" {
		t.Errorf("unexpected reply %q", got)
	}
}

func TestChatHandler_UpstreamFailure(t *testing.T) {
	srv, _ := newOpenRouterMock(t, http.StatusBadGateway, `{"error":"down"}`)
	h := NewChatHandler(services.NewCompletionClient("key", srv.URL, "m", "", "", 5*time.Second))

	rr := postJSON(t, h.Chat, "/chat", models.ChatRequest{Message: "hello"})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if got := decodeBody(t, rr)["reply"]; got != "⚠️ Error from OpenRouter API" {
		t.Errorf("unexpected reply %q", got)
	}
}

func TestChatHandler_MissingKey(t *testing.T) {
	h := NewChatHandler(services.NewCompletionClient("", "http://127.0.0.1:1", "m", "", "", time.Second))

	rr := postJSON(t, h.Chat, "/chat", models.ChatRequest{Message: "hello"})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if got := decodeBody(t, rr)["reply"]; got != "⚠️ Server misconfigured: API key missing" {
		t.Errorf("unexpected reply %q", got)
	}
}

func TestChatHandler_Validation(t *testing.T) {
	srv, calls := newOpenRouterMock(t, http.StatusOK, `{"choices":[{"message":{"content":"x"}}]}`)
	h := NewChatHandler(services.NewCompletionClient("key", srv.URL, "m", "", "", time.Second))

	tests := []struct {
		name string
		body string
	}{
		{"empty message", `{"message":"   "}`},
		{"missing message", `{}`},
		{"malformed json", `{"message":`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			h.Chat(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			if reply, _ := decodeBody(t, rr)["reply"].(string); !strings.HasPrefix(reply, "⚠️") {
				t.Errorf("expected warning reply, got %q", reply)
			}
		})
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Errorf("expected no upstream calls, got %d", *calls)
	}
}

func TestChatHandler_Idempotent(t *testing.T) {
	srv, _ := newOpenRouterMock(t, http.StatusOK, `{"choices":[{"message":{"content":"**Use** neem oil"}}]}`)
	h := NewChatHandler(services.NewCompletionClient("key", srv.URL, "m", "", "", time.Second))

	first := postJSON(t, h.Chat, "/chat", models.ChatRequest{Message: "aphids?"})
	second := postJSON(t, h.Chat, "/chat", models.ChatRequest{Message: "aphids?"})

	if first.Code != second.Code || first.Body.String() != second.Body.String() {
		t.Fatalf("expected identical responses, got %q and %q", first.Body.String(), second.Body.String())
	}
}

// ─── Weather ───

func TestWeatherHandler_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Indore","main":{"temp":28.5},"weather":[{"description":"scattered clouds"}]}`))
	}))
	defer srv.Close()
	h := NewWeatherHandler(services.NewWeatherClient("wkey", srv.URL, time.Second, nil))

	rr := postJSON(t, h.Weather, "/weather", models.WeatherRequest{Location: "Indore"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp models.WeatherResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	want := models.WeatherResponse{Type: "weather", Location: "Indore", Temp: 28.5, Description: "scattered clouds"}
	if resp != want {
		t.Errorf("expected %+v, got %+v", want, resp)
	}
}

func TestWeatherHandler_EmptyLocationMakesNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()
	h := NewWeatherHandler(services.NewWeatherClient("wkey", srv.URL, time.Second, nil))

	rr := postJSON(t, h.Weather, "/weather", models.WeatherRequest{Location: ""})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if msg, _ := decodeBody(t, rr)["weather"].(string); !strings.HasPrefix(msg, "⚠️") {
		t.Errorf("expected warning under weather key, got %q", msg)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("expected zero outbound calls, got %d", calls)
	}
}

func TestWeatherHandler_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"cod":"404"}`, http.StatusNotFound)
	}))
	defer srv.Close()
	h := NewWeatherHandler(services.NewWeatherClient("wkey", srv.URL, time.Second, nil))

	rr := postJSON(t, h.Weather, "/weather", models.WeatherRequest{Location: "Atlantis"})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if got := decodeBody(t, rr)["weather"]; got != "⚠️ Error from OpenWeather API" {
		t.Errorf("unexpected message %q", got)
	}
}

// ─── Schemes ───

type fixedEmbedder struct{ vec []float32 }

func (f fixedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}

func TestSchemesHandler_NotLoaded(t *testing.T) {
	h := NewSchemesHandler(services.UnloadedSchemeRetriever(), 3)

	for _, q := range []string{"PM-KISAN", ""} {
		rr := postJSON(t, h.Schemes, "/schemes", models.SchemeRequest{Query: q})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if got := decodeBody(t, rr)["schemes"]; got != services.SchemesNotLoadedMarker {
			t.Errorf("query %q: expected not-loaded marker, got %q", q, got)
		}
	}
}

func TestSchemesHandler_Search(t *testing.T) {
	docs := []models.SchemeDocument{
		{Content: "PM-KISAN: ₹6000 per year", Embedding: []float32{1, 0}},
		{Content: "Soil Health Card", Embedding: []float32{0, 1}},
	}
	h := NewSchemesHandler(services.NewSchemeRetriever(docs, fixedEmbedder{vec: []float32{1, 0}}, 0.1), 3)

	rr := postJSON(t, h.Schemes, "/schemes", models.SchemeRequest{Query: "income support"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := decodeBody(t, rr)["schemes"]; got != "PM-KISAN: ₹6000 per year" {
		t.Errorf("unexpected schemes %q", got)
	}
}

func TestSchemesHandler_EmptyQuery(t *testing.T) {
	docs := []models.SchemeDocument{{Content: "x", Embedding: []float32{1}}}
	h := NewSchemesHandler(services.NewSchemeRetriever(docs, fixedEmbedder{vec: []float32{1}}, 0), 3)

	rr := postJSON(t, h.Schemes, "/schemes", models.SchemeRequest{Query: " "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

// ─── Voice ───

type fakeTranscriber struct{ text string }

func (f fakeTranscriber) Transcribe(ctx context.Context, audio models.AudioBlob, language string) (string, error) {
	return f.text, nil
}

type fakeCompleter struct {
	reply string
	err   error
}

func (f fakeCompleter) Complete(ctx context.Context, messages []models.ChatMessage, model string) (*models.ChatReply, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.ChatReply{Text: f.reply}, nil
}

type fakeSynthesizer struct{}

func (fakeSynthesizer) Synthesize(ctx context.Context, text, language string) (*models.AudioBlob, error) {
	return &models.AudioBlob{Data: []byte("ID3-mp3"), Format: "mp3", Language: language}, nil
}

func multipartUpload(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	mw.WriteField("language", "hi")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/voice-assistant/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestVoiceHandler_RoundTrip(t *testing.T) {
	pipeline := services.NewVoicePipeline(fakeTranscriber{text: "नमस्ते"}, fakeCompleter{reply: "नमस्ते किसान भाई"}, fakeSynthesizer{}, "hi")
	var stages []services.Stage
	pipeline.OnStage = func(s services.Stage) { stages = append(stages, s) }

	h := NewVoiceHandler(pipeline, 1<<20)
	rr := httptest.NewRecorder()
	h.VoiceAssistant(rr, multipartUpload(t, "audio_file", "q.webm", []byte{0x1A, 0x45, 0xDF, 0xA3, 0x00}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("expected audio/mpeg, got %q", ct)
	}
	if rr.Body.String() != "ID3-mp3" {
		t.Errorf("unexpected audio body %q", rr.Body.String())
	}

	userText, err := url.PathUnescape(rr.Header().Get("X-User-Text"))
	if err != nil || userText != "नमस्ते" {
		t.Errorf("expected X-User-Text नमस्ते, got %q (%v)", userText, err)
	}
	assistantText, _ := url.PathUnescape(rr.Header().Get("X-Assistant-Text"))
	if assistantText != "नमस्ते किसान भाई" {
		t.Errorf("unexpected X-Assistant-Text %q", assistantText)
	}

	want := []services.Stage{
		services.StageReceived, services.StageTranscribing, services.StageCompleting,
		services.StageSynthesizing, services.StageDone,
	}
	if !reflect.DeepEqual(stages, want) {
		t.Errorf("expected stages %v, got %v", want, stages)
	}
}

func TestVoiceHandler_FallbackFieldNames(t *testing.T) {
	pipeline := services.NewVoicePipeline(fakeTranscriber{text: "x"}, fakeCompleter{reply: "y"}, fakeSynthesizer{}, "hi")
	h := NewVoiceHandler(pipeline, 1<<20)

	for _, field := range []string{"file", "audio"} {
		rr := httptest.NewRecorder()
		h.VoiceAssistant(rr, multipartUpload(t, field, "q.wav", []byte("RIFF....WAVE")))
		if rr.Code != http.StatusOK {
			t.Errorf("field %q: expected 200, got %d", field, rr.Code)
		}
	}
}

func TestVoiceHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		completer  fakeCompleter
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantStage  string
	}{
		{
			name:       "missing file",
			completer:  fakeCompleter{reply: "y"},
			req:        func(t *testing.T) *http.Request { return multipartUpload(t, "", "", nil) },
			wantStatus: http.StatusBadRequest,
			wantStage:  "received",
		},
		{
			name:      "not multipart",
			completer: fakeCompleter{reply: "y"},
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/voice-assistant", strings.NewReader("raw"))
			},
			wantStatus: http.StatusBadRequest,
			wantStage:  "received",
		},
		{
			name:       "too large",
			completer:  fakeCompleter{reply: "y"},
			req:        func(t *testing.T) *http.Request { return multipartUpload(t, "audio_file", "q.wav", make([]byte, 4096)) },
			wantStatus: http.StatusBadRequest,
			wantStage:  "received",
		},
		{
			name:       "completion fails",
			completer:  fakeCompleter{err: &services.UpstreamError{Service: "openrouter", StatusCode: 503, Err: errors.New("down")}},
			req:        func(t *testing.T) *http.Request { return multipartUpload(t, "audio_file", "q.wav", []byte("RIFF")) },
			wantStatus: http.StatusInternalServerError,
			wantStage:  "completing",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pipeline := services.NewVoicePipeline(fakeTranscriber{text: "x"}, tc.completer, fakeSynthesizer{}, "hi")
			h := NewVoiceHandler(pipeline, 1024)

			rr := httptest.NewRecorder()
			h.VoiceAssistant(rr, tc.req(t))

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rr.Code)
			}
			var body models.VoiceErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("expected JSON error body: %v", err)
			}
			if body.Stage != tc.wantStage || !strings.HasPrefix(body.Error, "⚠️") {
				t.Errorf("unexpected error body %+v", body)
			}
		})
	}
}

// ─── Health ───

type flag bool

func (f flag) Ready() bool { return bool(f) }

type sessions int

func (s sessions) ActiveSessions() int { return int(s) }

func TestHealthHandler(t *testing.T) {
	h := NewHealthHandler(flag(false), flag(true), sessions(2))

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp models.HealthResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	want := models.HealthResponse{Status: "ok", SchemesIndexLoaded: false, TranscriberReady: true, ActiveVoiceSessions: 2}
	if resp != want {
		t.Errorf("expected %+v, got %+v", want, resp)
	}
}
