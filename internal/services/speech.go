package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"annadata-backend/internal/models"
)

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// SpeechTranscriber uses Google Cloud Speech-to-Text synchronous recognition.
// Credentials come from Application Default Credentials.
type SpeechTranscriber struct {
	client    *speech.Client
	recognize recognizeFunc
}

func NewSpeechTranscriber(ctx context.Context) (*SpeechTranscriber, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &SpeechTranscriber{
		client: client,
		recognize: func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			return client.Recognize(ctx, req)
		},
	}, nil
}

func (s *SpeechTranscriber) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *SpeechTranscriber) Transcribe(ctx context.Context, audio models.AudioBlob, language string) (string, error) {
	return s.transcribe(ctx, audio.Data, audio.Format, language)
}

func (s *SpeechTranscriber) transcribe(ctx context.Context, data []byte, format, language string) (string, error) {
	if len(data) == 0 {
		return "", &TranscriptionError{Err: errors.New("audio payload is empty")}
	}

	cfg, err := recognitionConfig(format, language)
	if err != nil {
		return "", &TranscriptionError{Err: err}
	}

	resp, err := s.recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: data}},
	})
	if err != nil {
		return "", &TranscriptionError{Err: fmt.Errorf("recognize: %w", err)}
	}

	var parts []string
	for _, result := range resp.GetResults() {
		if alts := result.GetAlternatives(); len(alts) > 0 {
			if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
				parts = append(parts, t)
			}
		}
	}
	if len(parts) == 0 {
		return "", &TranscriptionError{Err: errors.New("no speech recognised")}
	}
	return strings.Join(parts, " "), nil
}

// recognitionConfig maps a container tag to the engine's encoding. WAV and
// FLAC carry their own header; Opus streams need the sample rate.
func recognitionConfig(format, language string) (*speechpb.RecognitionConfig, error) {
	cfg := &speechpb.RecognitionConfig{
		LanguageCode:               bcp47(language),
		EnableAutomaticPunctuation: true,
	}

	switch strings.ToLower(format) {
	case "wav", "flac":
		cfg.Encoding = speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	case "ogg":
		cfg.Encoding = speechpb.RecognitionConfig_OGG_OPUS
		cfg.SampleRateHertz = 48000
	case "webm":
		cfg.Encoding = speechpb.RecognitionConfig_WEBM_OPUS
		cfg.SampleRateHertz = 48000
	default:
		return nil, fmt.Errorf("unsupported audio format %q", format)
	}
	return cfg, nil
}

func bcp47(language string) string {
	language = strings.TrimSpace(language)
	if language == "" {
		return "hi-IN"
	}
	if strings.Contains(language, "-") {
		return language
	}
	return strings.ToLower(language) + "-IN"
}
