package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"meetflow/internal/interfaces"
	"meetflow/internal/model"
	"meetflow/internal/service"
)

type ChatHandler struct {
	conversation interfaces.ConversationService
	settings     interfaces.SettingsService
}

func NewChatHandler(conversation interfaces.ConversationService, settings interfaces.SettingsService) *ChatHandler {
	return &ChatHandler{conversation: conversation, settings: settings}
}

// HandleSendMessage godoc
// @Summary  Submit a user message and stream the assistant's response
// @Tags     chat
// @Accept   json
// @Produce  text/event-stream
// @Param    sessionID path string true "Session ID"
// @Router   /api/v1/sessions/{sessionID}/messages [post]
func (h *ChatHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req service.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}
	req.SessionID = chi.URLParam(r, "sessionID")
	if err := validateRequest(&req); err != nil {
		respondWithError(w, err)
		return
	}

	// Gate failures surface as plain HTTP statuses before the stream opens:
	// the entitlement dialog and the busy state are not chat messages.
	events, err := h.conversation.Send(r.Context(), &req)
	if err != nil {
		respondWithError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for event := range events {
		if r.Context().Err() != nil {
			slog.Info("Client disconnected mid-stream.")
			// Keep draining so the coordinator can finish persisting.
			continue
		}
		if err := writeStreamEvent(w, event); err != nil {
			slog.Warn("Failed to write stream event", "error", err)
		}
	}
}

// HandleGetMessages godoc
// @Summary  Current conversation for a session
// @Tags     chat
// @Produce  json
// @Param    sessionID path string true "Session ID"
// @Router   /api/v1/sessions/{sessionID}/messages [get]
func (h *ChatHandler) HandleGetMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messages, err := h.conversation.Messages(r.Context(), sessionID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	respondWithJSON(w, http.StatusOK, messages)
}

// HandleListGroups godoc
// @Summary  List chat groups for a session
// @Tags     chat
// @Produce  json
// @Param    sessionID path string true "Session ID"
// @Router   /api/v1/sessions/{sessionID}/groups [get]
func (h *ChatHandler) HandleListGroups(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	groups, err := h.conversation.Groups(r.Context(), sessionID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, groups)
}

// HandleGetSettings godoc
// @Summary  Current application settings
// @Tags     settings
// @Produce  json
// @Router   /api/v1/settings [get]
func (h *ChatHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// HandleSaveSettings godoc
// @Summary  Update application settings
// @Tags     settings
// @Accept   json
// @Produce  json
// @Router   /api/v1/settings [post]
func (h *ChatHandler) HandleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings service.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}
	if err := h.settings.Save(r.Context(), &settings); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}
