package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"annadata-backend/internal/models"
)

const maxTTSChunkRunes = 100

// Synthesizer turns reply text into encoded speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) (*models.AudioBlob, error)
}

// ttsLanguages are the tags the translate TTS engine renders; Indian languages first.
var ttsLanguages = map[string]bool{
	"hi": true, "en": true, "bn": true, "gu": true, "kn": true, "ml": true,
	"mr": true, "ne": true, "pa": true, "ta": true, "te": true, "ur": true,
	"si": true, "fr": true, "de": true, "es": true, "pt": true, "ar": true,
}

// TranslateTTS speaks text through the Google Translate TTS endpoint, the
// same engine gTTS uses. Long text is split into chunks and the MP3 frames
// are concatenated in memory.
type TranslateTTS struct {
	baseURL string
	http    *http.Client
}

func NewTranslateTTS(baseURL string, timeout time.Duration) *TranslateTTS {
	return &TranslateTTS{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

func (s *TranslateTTS) Synthesize(ctx context.Context, text, language string) (*models.AudioBlob, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &SynthesisError{Err: errors.New("empty text")}
	}
	language = primaryLanguage(language)
	if !ttsLanguages[language] {
		return nil, &SynthesisError{Err: fmt.Errorf("unsupported language %q", language)}
	}

	var audio bytes.Buffer
	for i, chunk := range splitTTSText(text, maxTTSChunkRunes) {
		if err := s.fetchChunk(ctx, &audio, chunk, language, i); err != nil {
			return nil, &SynthesisError{Err: err}
		}
	}

	if audio.Len() == 0 {
		return nil, &SynthesisError{Err: errors.New("engine returned no audio")}
	}
	return &models.AudioBlob{Data: audio.Bytes(), Format: "mp3", Language: language}, nil
}

func (s *TranslateTTS) fetchChunk(ctx context.Context, dst *bytes.Buffer, chunk, language string, idx int) error {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", language)
	q.Set("q", chunk)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("chunk %d: %w", idx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chunk %d: engine status %d", idx, resp.StatusCode)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("chunk %d: read audio: %w", idx, err)
	}
	return nil
}

// splitTTSText cuts text into pieces of at most limit runes, preferring
// sentence ends, then word gaps, then a hard cut.
func splitTTSText(text string, limit int) []string {
	var chunks []string
	var cur strings.Builder

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, sentence := range splitSentences(text) {
		for _, word := range strings.Fields(sentence) {
			for utf8.RuneCountInString(word) > limit {
				flush()
				r := []rune(word)
				chunks = append(chunks, string(r[:limit]))
				word = string(r[limit:])
			}
			need := utf8.RuneCountInString(word)
			if cur.Len() > 0 {
				need++
			}
			if utf8.RuneCountInString(cur.String())+need > limit {
				flush()
			}
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(word)
		}
		flush()
	}
	return mergeShort(chunks, limit)
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '।' || r == '.' || r == '!' || r == '?' || r == '\n' {
			end := i + utf8.RuneLen(r)
			out = append(out, text[start:end])
			start = end
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// mergeShort joins neighbouring sentence chunks while they still fit.
func mergeShort(chunks []string, limit int) []string {
	var out []string
	for _, c := range chunks {
		if strings.IndexFunc(c, func(r rune) bool { return !unicode.IsPunct(r) && !unicode.IsSpace(r) }) < 0 {
			continue
		}
		if n := len(out); n > 0 && utf8.RuneCountInString(out[n-1])+1+utf8.RuneCountInString(c) <= limit {
			out[n-1] = out[n-1] + " " + c
			continue
		}
		out = append(out, c)
	}
	return out
}
