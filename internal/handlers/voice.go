package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"annadata-backend/internal/models"
	"annadata-backend/internal/services"
)

// Upload field names tried in order.
var audioFields = []string{"audio_file", "file", "audio"}

type voiceRunner interface {
	Run(ctx context.Context, audio models.AudioBlob) (*services.VoiceResult, error)
	DefaultLanguage() string
}

type VoiceHandler struct {
	pipeline       voiceRunner
	maxUploadBytes int64
}

func NewVoiceHandler(pipeline voiceRunner, maxUploadBytes int64) *VoiceHandler {
	return &VoiceHandler{pipeline: pipeline, maxUploadBytes: maxUploadBytes}
}

// VoiceAssistant takes one recorded question and answers with MP3 audio.
// Transcript and reply travel in headers as percent-encoded UTF-8.
func (h *VoiceHandler) VoiceAssistant(w http.ResponseWriter, r *http.Request) {
	audio, err := h.readUpload(w, r)
	if err != nil {
		writeStageError(w, r, &services.StageError{Stage: services.StageReceived, Err: err})
		return
	}

	result, err := h.pipeline.Run(r.Context(), *audio)
	if err != nil {
		writeStageError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Audio.Data)))
	w.Header().Set("X-User-Text", url.PathEscape(result.Transcript))
	w.Header().Set("X-Assistant-Text", url.PathEscape(result.Reply))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Audio.Data)
}

func (h *VoiceHandler) readUpload(w http.ResponseWriter, r *http.Request) (*models.AudioBlob, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &services.ValidationError{Fields: map[string]string{"audio_file": "Audio file is too large"}}
		}
		return nil, &services.ValidationError{Fields: map[string]string{"audio_file": "Expected a multipart audio upload"}}
	}
	defer r.MultipartForm.RemoveAll()

	for _, field := range audioFields {
		file, header, err := r.FormFile(field)
		if err != nil {
			continue
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, &services.InternalError{Err: err}
		}
		if len(data) == 0 {
			break
		}

		language := strings.TrimSpace(r.FormValue("language"))
		if language == "" {
			language = h.pipeline.DefaultLanguage()
		}
		return &models.AudioBlob{
			Data:     data,
			Format:   services.DetectAudioFormat(data, header.Filename),
			Language: language,
		}, nil
	}

	return nil, &services.ValidationError{Fields: map[string]string{"audio_file": "No audio file provided"}}
}

func writeStageError(w http.ResponseWriter, r *http.Request, err error) {
	stage := services.StageErrored
	var stageErr *services.StageError
	if errors.As(err, &stageErr) {
		stage = stageErr.Stage
	}

	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logServiceError(r, err)
	}
	writeJSON(w, status, models.VoiceErrorResponse{Stage: string(stage), Error: services.UserMessage(err)})
}
