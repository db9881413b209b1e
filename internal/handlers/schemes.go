package handlers

import (
	"context"
	"net/http"

	"annadata-backend/internal/models"
)

type schemeSearcher interface {
	Search(ctx context.Context, query string, k int) (*models.SchemeResult, error)
}

type SchemesHandler struct {
	retriever schemeSearcher
	topK      int
}

func NewSchemesHandler(retriever schemeSearcher, topK int) *SchemesHandler {
	return &SchemesHandler{retriever: retriever, topK: topK}
}

// Schemes returns the best matching scheme snippets. The not-loaded and
// not-found markers are normal 200 answers.
func (h *SchemesHandler) Schemes(w http.ResponseWriter, r *http.Request) {
	var req models.SchemeRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, "schemes", err)
		return
	}

	result, err := h.retriever.Search(r.Context(), req.Query, h.topK)
	if err != nil {
		handleServiceError(w, r, "schemes", err)
		return
	}

	writeJSON(w, http.StatusOK, models.SchemeResponse{Schemes: result.Text})
}
