package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"annadata-backend/internal/models"
)

const (
	providerGemini = "gemini"

	// BatchEmbedContents accepts at most 100 requests per call.
	maxEmbedBatch = 100
)

// GeminiService wraps one genai client for audio transcription and text
// embeddings. Concurrent calls are capped by a token bucket.
type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	embedder *genai.EmbeddingModel
	rateChan chan struct{} // Token bucket
}

func NewGeminiService(apiKey, modelName, embeddingModel string, concurrentReqs int) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	if concurrentReqs < 1 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:   client,
		model:    model,
		embedder: client.EmbeddingModel(embeddingModel),
		rateChan: rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Transcribe implements Transcriber on top of the File API.
func (s *GeminiService) Transcribe(ctx context.Context, audio models.AudioBlob, language string) (string, error) {
	if len(audio.Data) == 0 {
		return "", &TranscriptionError{Err: errors.New("audio payload is empty")}
	}
	text, err := s.TranscribeAudio(ctx, audio.Data, AudioMIMEType(audio.Format), language)
	if err != nil {
		return "", &TranscriptionError{Err: err}
	}
	return text, nil
}

// TranscribeAudio uploads the audio, waits for it to become active and asks
// the model for a verbatim transcript. The remote file is always deleted.
func (s *GeminiService) TranscribeAudio(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	file, err := s.client.UploadFile(ctx, "", bytes.NewReader(audio), &genai.UploadFileOptions{
		DisplayName: "voice-utterance",
		MIMEType:    mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audio to Gemini: %w", err)
	}
	defer s.client.DeleteFile(context.Background(), file.Name)

	for i := 0; i < 20 && file.State != genai.FileStateActive; i++ {
		current, getErr := s.client.GetFile(ctx, file.Name)
		if getErr != nil {
			return "", fmt.Errorf("failed to get uploaded file status: %w", getErr)
		}
		if current.State == genai.FileStateActive {
			file = current
			break
		}
		if current.State == genai.FileStateFailed {
			return "", errors.New("Gemini failed to process uploaded audio file")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	if file.State != genai.FileStateActive {
		return "", errors.New("audio file did not become active in time")
	}

	resp, err := s.model.GenerateContent(ctx,
		genai.Text(transcriptionPrompt(language)),
		genai.FileData{MIMEType: mimeType, URI: file.URI},
	)
	if err != nil {
		return "", fmt.Errorf("Gemini transcription error: %w", err)
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", errors.New("Gemini returned empty transcription")
	}
	log.Printf("gemini: transcribed %d bytes (%s) to %d chars", len(audio), mimeType, len(text))
	return text, nil
}

func transcriptionPrompt(language string) string {
	p := "Transcribe the provided audio verbatim. Return plain text only, without markdown, headers, translations or explanations."
	if language != "" {
		p += fmt.Sprintf(" The speaker is most likely speaking %s; write it in that language's native script.", languageName(language))
	}
	return p
}

// EmbedQuery embeds a single search query.
func (s *GeminiService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := s.acquireRate(ctx); err != nil {
		return nil, &UpstreamError{Service: providerGemini, Err: err}
	}
	defer s.releaseRate()

	resp, err := s.embedder.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, &UpstreamError{Service: providerGemini, Err: fmt.Errorf("embed query: %w", err)}
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, &UpstreamError{Service: providerGemini, Err: errors.New("empty query embedding")}
	}
	return resp.Embedding.Values, nil
}

// EmbedDocuments embeds texts in order, batching requests.
func (s *GeminiService) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))

		vecs, err := s.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (s *GeminiService) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.acquireRate(ctx); err != nil {
		return nil, &UpstreamError{Service: providerGemini, Err: err}
	}
	defer s.releaseRate()

	batch := s.embedder.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := s.embedder.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, &UpstreamError{Service: providerGemini, Err: fmt.Errorf("batch embed: %w", err)}
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, &UpstreamError{
			Service: providerGemini,
			Err:     fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)),
		}
	}

	vecs := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vecs[i] = e.Values
	}
	return vecs, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
