package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/arrowhead-dev/llmbridge/internal/client"
)

// ModelsHandler serves the OpenAI-compatible GET /v1/models listing.
type ModelsHandler struct {
	client *client.Client
	logger *slog.Logger
}

func NewModelsHandler(c *client.Client, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{client: c, logger: logger}
}

type modelEntry struct {
	ID     string `json:"id"`
	Object string `json:"object"`
}

func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ids := h.client.ListModels()

	data := make([]modelEntry, 0, len(ids))
	for _, id := range ids {
		data = append(data, modelEntry{ID: id, Object: "model"})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data}); err != nil {
		h.logger.Error("failed to encode models response", "error", err)
	}
}
