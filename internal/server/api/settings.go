package api

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/ayusman/handbooth/internal/config"
	"github.com/ayusman/handbooth/internal/store"
)

// SettingsHandler reads and writes the settings overrides stored in sqlite.
// Overrides apply on the next start.
type SettingsHandler struct {
	store *store.Store
	base  func() *config.Config
}

// NewSettingsHandler creates a SettingsHandler. base returns the configuration
// overrides are validated against; nil uses the defaults.
func NewSettingsHandler(s *store.Store, base func() *config.Config) *SettingsHandler {
	if base == nil {
		base = config.Default
	}
	return &SettingsHandler{store: s, base: base}
}

type settingsResponse struct {
	Settings map[string]string `json:"settings"`
	Keys     []string          `json:"keys"`
}

type updateSettingsResponse struct {
	Saved           []string `json:"saved"`
	RestartRequired bool     `json:"restart_required"`
}

// ServeHTTP handles GET and PUT /api/settings.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Settings().All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read settings")
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{Settings: settings, Keys: config.Keys()})
}

// update validates every override against the current configuration before
// any of them is stored.
func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req) == 0 {
		writeError(w, http.StatusBadRequest, "No settings given")
		return
	}

	cfg := h.base()
	if err := cfg.ApplySettings(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	keys := make([]string, 0, len(req))
	for key := range req {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := h.store.Settings().Set(key, req[key]); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save settings")
			return
		}
	}

	writeJSON(w, http.StatusOK, updateSettingsResponse{Saved: keys, RestartRequired: true})
}
