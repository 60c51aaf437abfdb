package api

import (
	"net/http"

	"github.com/starford/hypermind/internal/models"
	"github.com/starford/hypermind/internal/settings"
)

// SettingsHandler reads and updates the persisted model selection.
type SettingsHandler struct {
	store *settings.Store
}

// NewSettingsHandler creates a handler over store.
func NewSettingsHandler(store *settings.Store) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// Get handles POST /api/settings/get.
func (h *SettingsHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, http.StatusOK, h.store.LLM())
}

// Update handles POST /api/settings/update. The new selection is written to
// the settings file and pushed to every subscriber.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var llm models.LLM
	if !decodeBody(w, r, &llm) {
		return
	}
	if err := h.store.Save(settings.Settings{LLM: llm}); err != nil {
		fail(w, "save settings", err)
		return
	}
	writeOK(w, http.StatusOK, h.store.LLM())
}
