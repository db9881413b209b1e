package models

type HealthResponse struct {
	Status              string `json:"status"`
	SchemesIndexLoaded  bool   `json:"schemes_index_loaded"`
	TranscriberReady    bool   `json:"transcriber_ready"`
	ActiveVoiceSessions int    `json:"active_voice_sessions"`
}
