package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ConfigError means a credential or setting needed by this request is missing.
// It is reported per request so the process stays up.
type ConfigError struct{ Message string }

func (e *ConfigError) Error() string { return e.Message }

// UpstreamError is a non-success status, timeout or malformed payload from a remote API.
type UpstreamError struct {
	Service    string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream status %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

type TranscriptionError struct{ Err error }

func (e *TranscriptionError) Error() string { return "transcription failed: " + e.Err.Error() }

func (e *TranscriptionError) Unwrap() error { return e.Err }

type SynthesisError struct{ Err error }

func (e *SynthesisError) Error() string { return "speech synthesis failed: " + e.Err.Error() }

func (e *SynthesisError) Unwrap() error { return e.Err }

// ValidationError maps field name → human readable problem.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

func requiredField(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

type InternalError struct{ Err error }

func (e *InternalError) Error() string { return "internal error: " + e.Err.Error() }

func (e *InternalError) Unwrap() error { return e.Err }

const warnPrefix = "⚠️ "

var serviceNames = map[string]string{
	providerOpenRouter:  "OpenRouter",
	providerOpenWeather: "OpenWeather",
	providerGemini:      "Gemini",
}

// UserMessage is the warning-prefixed text shown to the user for err.
// Causes are logged by callers, never echoed.
func UserMessage(err error) string {
	var (
		vErr     *ValidationError
		cfgErr   *ConfigError
		upstream *UpstreamError
		tErr     *TranscriptionError
		sErr     *SynthesisError
	)
	switch {
	case errors.As(err, &vErr):
		return warnPrefix + vErr.Error()
	case errors.As(err, &cfgErr):
		return warnPrefix + cfgErr.Message
	case errors.As(err, &upstream):
		name, ok := serviceNames[upstream.Service]
		if !ok {
			name = upstream.Service
		}
		return warnPrefix + "Error from " + name + " API"
	case errors.As(err, &tErr):
		return warnPrefix + "Could not understand the audio. Please try again."
	case errors.As(err, &sErr):
		return warnPrefix + "Could not generate the spoken reply."
	default:
		return warnPrefix + "Server error"
	}
}
