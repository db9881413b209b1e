package services

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"annadata-backend/internal/models"
)

// Transcriber converts a recorded utterance into text. Implementations are
// built once at startup and shared by every request.
type Transcriber interface {
	Transcribe(ctx context.Context, audio models.AudioBlob, language string) (string, error)
}

var audioMIMETypes = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"webm": "audio/webm",
	"flac": "audio/flac",
	"m4a":  "audio/mp4",
	"aac":  "audio/aac",
}

// AudioMIMEType returns the MIME type for a short format tag, defaulting to wav.
func AudioMIMEType(format string) string {
	if m, ok := audioMIMETypes[strings.ToLower(format)]; ok {
		return m
	}
	return audioMIMETypes["wav"]
}

// DetectAudioFormat guesses the container from magic bytes, then from the
// file name extension. Browsers usually record webm or ogg.
func DetectAudioFormat(data []byte, filename string) string {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav"
	case bytes.HasPrefix(data, []byte("OggS")):
		return "ogg"
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "webm"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(data, []byte("ID3")):
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	case len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")):
		return "m4a"
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "mpeg" {
		ext = "mp3"
	}
	if _, ok := audioMIMETypes[ext]; ok {
		return ext
	}
	return "wav"
}

var languageNames = map[string]string{
	"hi": "Hindi", "en": "English", "bn": "Bengali", "gu": "Gujarati", "kn": "Kannada",
	"ml": "Malayalam", "mr": "Marathi", "pa": "Punjabi", "ta": "Tamil", "te": "Telugu",
	"ur": "Urdu", "ne": "Nepali",
}

// primaryLanguage reduces a tag like "hi-IN" or "hi_IN" to "hi".
func primaryLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return tag
}

func languageName(tag string) string {
	if n, ok := languageNames[primaryLanguage(tag)]; ok {
		return n
	}
	return tag
}
