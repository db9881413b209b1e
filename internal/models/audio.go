package models

// AudioBlob is an encoded audio payload held by exactly one stage at a time.
type AudioBlob struct {
	Data     []byte
	Format   string // "mp3", "wav", "ogg", "webm", ...
	Language string
}

// VoiceSocketRequest is one utterance pushed over the duplex channel.
type VoiceSocketRequest struct {
	Audio    string `json:"audio"` // base64
	Language string `json:"language,omitempty"`
	Format   string `json:"format,omitempty"`
}

// VoiceSocketReply answers exactly one VoiceSocketRequest.
type VoiceSocketReply struct {
	Text       string `json:"text,omitempty"`
	Audio      string `json:"audio,omitempty"` // base64 mp3
	Transcript string `json:"transcript,omitempty"`
	Error      string `json:"error,omitempty"`
	Stage      string `json:"stage,omitempty"`
}

// VoiceErrorResponse is returned by the upload route when a stage fails.
type VoiceErrorResponse struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}
