package services

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"

	"annadata-backend/internal/models"
)

func stubRecognizer(resp *speechpb.RecognizeResponse, err error, seen **speechpb.RecognizeRequest) *SpeechTranscriber {
	return &SpeechTranscriber{
		recognize: func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			if seen != nil {
				*seen = req
			}
			return resp, err
		},
	}
}

func TestSpeechTranscriber_JoinsResults(t *testing.T) {
	var req *speechpb.RecognizeRequest
	resp := &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "गेहूं में"}}},
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " खाद कब डालें "}}},
	}}
	s := stubRecognizer(resp, nil, &req)

	text, err := s.Transcribe(context.Background(), models.AudioBlob{Data: []byte("x"), Format: "webm"}, "hi")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "गेहूं में खाद कब डालें" {
		t.Errorf("unexpected transcript %q", text)
	}
	if req.GetConfig().GetLanguageCode() != "hi-IN" {
		t.Errorf("expected hi-IN, got %q", req.GetConfig().GetLanguageCode())
	}
	if req.GetConfig().GetEncoding() != speechpb.RecognitionConfig_WEBM_OPUS {
		t.Errorf("expected WEBM_OPUS, got %v", req.GetConfig().GetEncoding())
	}
}

func TestSpeechTranscriber_Errors(t *testing.T) {
	tests := []struct {
		name  string
		audio models.AudioBlob
		resp  *speechpb.RecognizeResponse
		err   error
	}{
		{"empty audio", models.AudioBlob{Format: "wav"}, &speechpb.RecognizeResponse{}, nil},
		{"unsupported format", models.AudioBlob{Data: []byte("x"), Format: "mp3"}, &speechpb.RecognizeResponse{}, nil},
		{"engine failure", models.AudioBlob{Data: []byte("x"), Format: "wav"}, nil, errors.New("unavailable")},
		{"no speech", models.AudioBlob{Data: []byte("x"), Format: "wav"}, &speechpb.RecognizeResponse{}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := stubRecognizer(tc.resp, tc.err, nil)
			_, err := s.Transcribe(context.Background(), tc.audio, "hi")

			var tErr *TranscriptionError
			if !errors.As(err, &tErr) {
				t.Fatalf("expected TranscriptionError, got %v", err)
			}
		})
	}
}

func TestBCP47(t *testing.T) {
	cases := map[string]string{"": "hi-IN", "hi": "hi-IN", "TA": "ta-IN", "en-US": "en-US"}
	for in, want := range cases {
		if got := bcp47(in); got != want {
			t.Errorf("bcp47(%q) = %q, want %q", in, got, want)
		}
	}
}
