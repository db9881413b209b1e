package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"annadata-backend/internal/models"
	"annadata-backend/internal/services"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type voiceRunner interface {
	Run(ctx context.Context, audio models.AudioBlob) (*services.VoiceResult, error)
	DefaultLanguage() string
}

// Hub serves duplex voice sessions. Each session reads one utterance,
// answers it, and only then reads the next, so replies keep request order.
type Hub struct {
	mu              sync.RWMutex
	sessions        map[uuid.UUID]*websocket.Conn
	pipeline        voiceRunner
	maxMessageBytes int64
}

func NewHub(pipeline voiceRunner, maxMessageBytes int64) *Hub {
	return &Hub{
		sessions:        make(map[uuid.UUID]*websocket.Conn),
		pipeline:        pipeline,
		maxMessageBytes: maxMessageBytes,
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	// The server's read timeout also applies to the hijacked connection.
	conn.SetReadDeadline(time.Time{})
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	id := h.registerSession(conn)
	defer h.unregisterSession(id)

	h.serve(r.Context(), id, conn)
}

func (h *Hub) serve(ctx context.Context, id uuid.UUID, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("WebSocket %s read failed: %v", id, err)
			}
			return
		}

		reply := h.answer(ctx, data)

		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(reply); err != nil {
			log.Printf("WebSocket %s write failed: %v", id, err)
			return
		}
	}
}

// answer never fails the session; errors become an {error, stage} reply.
func (h *Hub) answer(ctx context.Context, data []byte) models.VoiceSocketReply {
	audio, err := h.parseUtterance(data)
	if err != nil {
		return models.VoiceSocketReply{Error: services.UserMessage(err), Stage: string(services.StageReceived)}
	}

	result, err := h.pipeline.Run(ctx, audio)
	if err != nil {
		stage := services.StageErrored
		var stageErr *services.StageError
		if errors.As(err, &stageErr) {
			stage = stageErr.Stage
		}
		return models.VoiceSocketReply{Error: services.UserMessage(err), Stage: string(stage)}
	}

	return models.VoiceSocketReply{
		Text:       result.Reply,
		Audio:      base64.StdEncoding.EncodeToString(result.Audio.Data),
		Transcript: result.Transcript,
	}
}

// parseUtterance accepts a bare base64 string (optionally a data URL) or a
// JSON VoiceSocketRequest.
func (h *Hub) parseUtterance(data []byte) (models.AudioBlob, error) {
	var req models.VoiceSocketRequest

	raw := strings.TrimSpace(string(data))
	if strings.HasPrefix(raw, "{") {
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return models.AudioBlob{}, invalidAudio("Invalid message")
		}
	} else {
		req.Audio = raw
	}

	payload := req.Audio
	if i := strings.Index(payload, ","); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+1:]
	}
	if payload == "" {
		return models.AudioBlob{}, invalidAudio("No audio provided")
	}

	audio, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if audio, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return models.AudioBlob{}, invalidAudio("Audio must be base64 encoded")
		}
	}
	if len(audio) == 0 {
		return models.AudioBlob{}, invalidAudio("No audio provided")
	}

	format := strings.ToLower(req.Format)
	if format == "" {
		format = services.DetectAudioFormat(audio, "")
	}
	language := req.Language
	if language == "" {
		language = h.pipeline.DefaultLanguage()
	}

	return models.AudioBlob{Data: audio, Format: format, Language: language}, nil
}

func invalidAudio(msg string) error {
	return &services.ValidationError{Fields: map[string]string{"audio": msg}}
}

func (h *Hub) registerSession(conn *websocket.Conn) uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New()
	h.sessions[id] = conn
	log.Printf("WebSocket connected: session %s (active: %d)", id, len(h.sessions))
	return id
}

func (h *Hub) unregisterSession(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, ok := h.sessions[id]; ok {
		conn.Close()
		delete(h.sessions, id)
	}
	log.Printf("WebSocket disconnected: session %s", id)
}

func (h *Hub) ActiveSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// CloseAll sends a going-away close frame to every open session.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, conn := range h.sessions {
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
}
