package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"
)

func TestTranslateTTS_Synthesize_ConcatenatesChunks(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Query().Get("tl") != "hi" || r.URL.Query().Get("client") != "tw-ob" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3|"))
	}))
	defer srv.Close()

	text := strings.Repeat("गेहूं की बुवाई नवंबर में करें। ", 8)
	tts := NewTranslateTTS(srv.URL, 5*time.Second)

	blob, err := tts.Synthesize(context.Background(), text, "hi")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	n := int(atomic.LoadInt32(&calls))
	if n < 2 {
		t.Fatalf("expected long text to be split into several requests, got %d", n)
	}
	if string(blob.Data) != strings.Repeat("mp3|", n) {
		t.Errorf("expected %d concatenated chunks, got %q", n, blob.Data)
	}
	if blob.Format != "mp3" || blob.Language != "hi" {
		t.Errorf("unexpected blob tags: %+v", blob)
	}
}

func TestTranslateTTS_Synthesize_Errors(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	tests := []struct {
		name     string
		text     string
		language string
	}{
		{"empty text", "   ", "hi"},
		{"unsupported language", "hello", "xx"},
		{"engine failure", "hello", "en"},
	}

	tts := NewTranslateTTS(failing.URL, time.Second)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tts.Synthesize(context.Background(), tc.text, tc.language)
			var synthErr *SynthesisError
			if !errors.As(err, &synthErr) {
				t.Fatalf("expected SynthesisError, got %v", err)
			}
		})
	}
}

func TestSplitTTSText_RespectsLimit(t *testing.T) {
	text := "Short one. " + strings.Repeat("word ", 60) + strings.Repeat("x", 250) + " end।"

	chunks := splitTTSText(text, 100)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 100 {
			t.Errorf("chunk %d has %d runes", i, n)
		}
		if strings.TrimSpace(c) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
}

func TestSplitTTSText_ShortTextIsOneChunk(t *testing.T) {
	chunks := splitTTSText("नमस्ते किसान भाई।", 100)
	if len(chunks) != 1 || chunks[0] != "नमस्ते किसान भाई।" {
		t.Fatalf("unexpected chunks %q", chunks)
	}
}

func TestTranslateTTS_Synthesize_RegionTagUsesPrimaryLanguage(t *testing.T) {
	var gotTL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTL = r.URL.Query().Get("tl")
		w.Write([]byte("mp3|"))
	}))
	defer srv.Close()

	blob, err := NewTranslateTTS(srv.URL, 5*time.Second).Synthesize(context.Background(), "नमस्ते", "hi-IN")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if gotTL != "hi" || blob.Language != "hi" {
		t.Errorf("expected tl=hi, got tl=%q blob language %q", gotTL, blob.Language)
	}
}

func TestPrimaryLanguage(t *testing.T) {
	tests := map[string]string{
		"hi":     "hi",
		"hi-IN":  "hi",
		"en_us":  "en",
		" TA-IN": "ta",
		"":       "",
	}
	for in, want := range tests {
		if got := primaryLanguage(in); got != want {
			t.Errorf("primaryLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
