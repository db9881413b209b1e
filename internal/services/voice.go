package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"annadata-backend/internal/models"
)

// Stage is one step of a voice round-trip.
type Stage string

const (
	StageReceived     Stage = "received"
	StageTranscribing Stage = "transcribing"
	StageCompleting   Stage = "completing"
	StageSynthesizing Stage = "synthesizing"
	StageDone         Stage = "done"
	StageErrored      Stage = "errored"
)

// StageError names the stage that failed. The cause keeps its own type so
// callers can still map it to a status code.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Completer is the subset of CompletionClient the pipeline needs.
type Completer interface {
	Complete(ctx context.Context, messages []models.ChatMessage, model string) (*models.ChatReply, error)
}

// configurable is implemented by completers that can report missing
// credentials before any audio is sent upstream.
type configurable interface {
	Configured() bool
}

type VoiceResult struct {
	Transcript string
	Reply      string
	Audio      *models.AudioBlob
}

// VoicePipeline runs transcribe, complete and synthesize strictly in order.
// It holds no per-request state and is safe for concurrent use.
type VoicePipeline struct {
	transcriber Transcriber
	completer   Completer
	synthesizer Synthesizer
	language    string

	// OnStage, when set, observes every transition of every run.
	OnStage func(Stage)
}

func NewVoicePipeline(transcriber Transcriber, completer Completer, synthesizer Synthesizer, language string) *VoicePipeline {
	if language == "" {
		language = "hi"
	}
	return &VoicePipeline{
		transcriber: transcriber,
		completer:   completer,
		synthesizer: synthesizer,
		language:    language,
	}
}

// Ready reports whether a transcription backend was initialised.
func (p *VoicePipeline) Ready() bool { return p.transcriber != nil }

func (p *VoicePipeline) DefaultLanguage() string { return p.language }

// Run takes one utterance through the full round-trip. On failure nothing
// but the StageError is returned.
func (p *VoicePipeline) Run(ctx context.Context, audio models.AudioBlob) (*VoiceResult, error) {
	language := audio.Language
	if language == "" {
		language = p.language
	}

	p.enter(StageReceived)
	if len(audio.Data) == 0 {
		return nil, p.fail(StageReceived, requiredField("audio", "No audio provided"))
	}

	if c, ok := p.completer.(configurable); ok && !c.Configured() {
		return nil, p.fail(StageCompleting, errCompletionKeyMissing)
	}

	p.enter(StageTranscribing)
	if p.transcriber == nil {
		return nil, p.fail(StageTranscribing, &ConfigError{Message: "Speech recognition is not available"})
	}
	transcript, err := p.transcriber.Transcribe(ctx, audio, language)
	if err != nil {
		return nil, p.fail(StageTranscribing, err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, p.fail(StageTranscribing, &TranscriptionError{Err: errors.New("empty transcript")})
	}

	p.enter(StageCompleting)
	reply, err := p.completer.Complete(ctx, BuildConversation(transcript), "")
	if err != nil {
		return nil, p.fail(StageCompleting, err)
	}

	p.enter(StageSynthesizing)
	speech, err := p.synthesizer.Synthesize(ctx, reply.Text, language)
	if err != nil {
		return nil, p.fail(StageSynthesizing, err)
	}

	p.enter(StageDone)
	return &VoiceResult{Transcript: transcript, Reply: reply.Text, Audio: speech}, nil
}

func (p *VoicePipeline) enter(s Stage) {
	if p.OnStage != nil {
		p.OnStage(s)
	}
}

func (p *VoicePipeline) fail(s Stage, err error) error {
	log.Printf("voice: %s failed: %v", s, err)
	p.enter(StageErrored)
	return &StageError{Stage: s, Err: err}
}
