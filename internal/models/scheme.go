package models

import "time"

// SchemeDocument is one embedded chunk of a government scheme document.
type SchemeDocument struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// SchemeResult holds the newline-joined top matches or one of the markers.
type SchemeResult struct {
	Text      string
	NotFound  bool
	NotLoaded bool
}

type SchemeRequest struct {
	Query string `json:"query"`
}

type SchemeResponse struct {
	Schemes string `json:"schemes"`
}
