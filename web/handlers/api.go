package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Brant123451/soulpack-reader/internal/config"
	"github.com/Brant123451/soulpack-reader/internal/engine"
	"github.com/Brant123451/soulpack-reader/internal/importer"
	"github.com/Brant123451/soulpack-reader/internal/registry"
	"github.com/Brant123451/soulpack-reader/internal/store"
	"github.com/Brant123451/soulpack-reader/pkg/types"
)

// APIHandlers contains HTTP handlers for the REST API. All character and
// memory operations go through the session so the web UI and the MCP
// transport observe the same active character.
type APIHandlers struct {
	session  *engine.Session
	config   *config.Config
	registry *registry.Client
	hub      *WebSocketHub
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(session *engine.Session, cfg *config.Config) *APIHandlers {
	return &APIHandlers{
		session: session,
		config:  cfg,
	}
}

// SetRegistry wires a registry client for URL installs and update checks.
func (h *APIHandlers) SetRegistry(rc *registry.Client) {
	h.registry = rc
}

// SetHub wires a WebSocket hub for event broadcasts.
func (h *APIHandlers) SetHub(hub *WebSocketHub) {
	h.hub = hub
}

func (h *APIHandlers) broadcast(eventType, characterID string, payload interface{}) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(Event{Type: eventType, CharacterID: characterID, Payload: payload})
}

// activeEngine resolves the active engine or writes a 409 response.
func (h *APIHandlers) activeEngine(w http.ResponseWriter) *engine.Engine {
	eng := h.session.Active()
	if eng == nil {
		respondError(w, http.StatusConflict, "no active character", nil)
	}
	return eng
}

// CharacterResponse is one installed character in the characters list.
type CharacterResponse struct {
	CharacterID string `json:"characterId"`
	DisplayName string `json:"displayName"`
	SpecVersion string `json:"specVersion"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Emoji       string `json:"emoji,omitempty"`
	Active      bool   `json:"active"`
}

// ListCharacters handles GET /api/characters.
func (h *APIHandlers) ListCharacters(w http.ResponseWriter, r *http.Request) {
	defs, err := h.session.ListCharacters()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list characters", err)
		return
	}

	activeID := ""
	if def := h.session.ActiveDefinition(); def != nil {
		activeID = def.CharacterID
	}

	characters := make([]CharacterResponse, 0, len(defs))
	for _, def := range defs {
		c := CharacterResponse{
			CharacterID: def.CharacterID,
			DisplayName: def.DisplayName,
			SpecVersion: def.SpecVersion,
			Active:      def.CharacterID == activeID,
		}
		if def.Appearance != nil {
			c.AvatarURL = def.Appearance.AvatarURL
			c.Emoji = def.Appearance.Emoji
		}
		characters = append(characters, c)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"characters": characters,
		"total":      len(characters),
	})
}

// InstallCharacterRequest is the body for POST /api/characters. Either URL
// or Pack must be set.
type InstallCharacterRequest struct {
	URL  string          `json:"url,omitempty"`
	Pack json.RawMessage `json:"pack,omitempty"`
}

// InstallCharacter handles POST /api/characters.
func (h *APIHandlers) InstallCharacter(w http.ResponseWriter, r *http.Request) {
	var req InstallCharacterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var def *types.CharacterDefinition
	switch {
	case req.URL != "":
		if h.registry == nil {
			respondError(w, http.StatusBadRequest, "URL installs are not available", nil)
			return
		}
		fetched, err := h.registry.FetchPack(r.Context(), req.URL)
		if err != nil {
			respondError(w, http.StatusBadGateway, "failed to fetch pack", err)
			return
		}
		def = fetched
	case len(req.Pack) > 0:
		parsed, result := types.ParsePack(req.Pack)
		if !result.OK {
			respondError(w, http.StatusUnprocessableEntity, "invalid character definition", errors.New(result.Summary()))
			return
		}
		def = parsed
	default:
		respondError(w, http.StatusBadRequest, "either url or pack is required", nil)
		return
	}

	if err := h.session.Install(def); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "failed to install character", err)
		return
	}
	respondJSON(w, http.StatusCreated, CharacterResponse{
		CharacterID: def.CharacterID,
		DisplayName: def.DisplayName,
		SpecVersion: def.SpecVersion,
	})
}

// RemoveCharacter handles DELETE /api/characters/{id}.
func (h *APIHandlers) RemoveCharacter(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "character ID is required", nil)
		return
	}

	removed, err := h.session.Remove(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to remove character", err)
		return
	}
	if !removed {
		respondError(w, http.StatusNotFound, "character not installed", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"characterId": id, "removed": true})
}

// ActivateCharacter handles POST /api/characters/{id}/activate.
func (h *APIHandlers) ActivateCharacter(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "character ID is required", nil)
		return
	}

	eng, err := h.session.Activate(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to activate character", err)
		return
	}
	if eng == nil {
		respondError(w, http.StatusNotFound, "character not installed", nil)
		return
	}

	status := eng.Status()
	h.broadcast(EventCharacterActivated, id, nil)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"characterId": id,
		"displayName": h.session.ActiveDefinition().DisplayName,
		"memoryCount": status.MemoryCount,
	})
}

// CheckUpdate handles GET /api/characters/{id}/update-check.
func (h *APIHandlers) CheckUpdate(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "character ID is required", nil)
		return
	}
	if h.registry == nil {
		respondError(w, http.StatusBadRequest, "no registry configured", nil)
		return
	}

	defs, err := h.session.ListCharacters()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list characters", err)
		return
	}
	var current *types.CharacterDefinition
	for _, def := range defs {
		if def.CharacterID == id {
			current = def
			break
		}
	}
	if current == nil {
		respondError(w, http.StatusNotFound, "character not installed", nil)
		return
	}

	info, err := h.registry.CheckUpdate(r.Context(), id, current.SpecVersion)
	if err != nil {
		respondError(w, http.StatusBadGateway, "update check failed", err)
		return
	}
	if info == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"characterId":     id,
			"updateAvailable": false,
			"message":         "no registry information available",
		})
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// GetStatus handles GET /api/status.
func (h *APIHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	eng := h.session.Active()
	if eng == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"active": false})
		return
	}
	status := eng.Status()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"active":          true,
		"characterId":     status.CharacterID,
		"displayName":     h.session.ActiveDefinition().DisplayName,
		"memoryCount":     status.MemoryCount,
		"maxMemories":     status.MaxMemories,
		"conversationId":  status.ConversationID,
		"transcriptCount": status.TranscriptCount,
		"hasOverlay":      h.session.Overlay() != nil,
	})
}

// RecordExchangeRequest is the body for POST /api/record.
type RecordExchangeRequest struct {
	UserText       string `json:"userText"`
	AssistantText  string `json:"assistantText"`
	ConversationID string `json:"conversationId,omitempty"`
}

// RecordExchange handles POST /api/record.
func (h *APIHandlers) RecordExchange(w http.ResponseWriter, r *http.Request) {
	var req RecordExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.UserText == "" || req.AssistantText == "" {
		respondError(w, http.StatusBadRequest, "userText and assistantText are required", nil)
		return
	}

	eng := h.activeEngine(w)
	if eng == nil {
		return
	}
	result, err := eng.Record(req.UserText, req.AssistantText, req.ConversationID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to record exchange", err)
		return
	}
	h.broadcast(EventMemoryCreated, eng.CharacterID(), result)
	respondJSON(w, http.StatusOK, result)
}

// EndConversation handles POST /api/conversation/end.
func (h *APIHandlers) EndConversation(w http.ResponseWriter, r *http.Request) {
	eng := h.activeEngine(w)
	if eng == nil {
		return
	}
	eng.EndConversation()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"characterId": eng.CharacterID(),
		"ended":       true,
	})
}

// ListMemories handles GET /api/memories with optional limit and tag.
func (h *APIHandlers) ListMemories(w http.ResponseWriter, r *http.Request) {
	eng := h.activeEngine(w)
	if eng == nil {
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 0)
	tag := r.URL.Query().Get("tag")

	var records []types.MemoryRecord
	if tag != "" {
		records = eng.GetMemoriesByTag(tag, limit)
	} else {
		records = eng.GetMemories(limit)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"memories": records,
		"total":    len(records),
	})
}

// AddMemoryRequest is the body for POST /api/memories.
type AddMemoryRequest struct {
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// AddMemory handles POST /api/memories.
func (h *APIHandlers) AddMemory(w http.ResponseWriter, r *http.Request) {
	var req AddMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Content == "" {
		respondError(w, http.StatusBadRequest, "content is required", nil)
		return
	}

	eng := h.activeEngine(w)
	if eng == nil {
		return
	}
	record, err := eng.AddManualMemory(req.Content, req.Tags)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to add memory", err)
		return
	}
	h.broadcast(EventMemoryCreated, eng.CharacterID(), record)
	respondJSON(w, http.StatusCreated, record)
}

// DeleteMemory handles DELETE /api/memories/{id}.
func (h *APIHandlers) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "memory ID is required", nil)
		return
	}

	eng := h.activeEngine(w)
	if eng == nil {
		return
	}
	deleted, err := eng.DeleteMemory(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete memory", err)
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "memory not found", nil)
		return
	}
	h.broadcast(EventMemoryDeleted, eng.CharacterID(), map[string]string{"id": id})
	respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "deleted": true})
}

// ClearMemories handles DELETE /api/memories.
func (h *APIHandlers) ClearMemories(w http.ResponseWriter, r *http.Request) {
	eng := h.activeEngine(w)
	if eng == nil {
		return
	}
	if err := eng.ClearMemories(); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear memories", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"characterId": eng.CharacterID(),
		"cleared":     true,
	})
}

// Search handles GET /api/search?q=...&limit=N.
func (h *APIHandlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "q parameter is required", nil)
		return
	}

	eng := h.activeEngine(w)
	if eng == nil {
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 0)
	matches := eng.SearchMemories(query, limit)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": matches,
		"total":   len(matches),
		"query":   query,
	})
}

// SetOverlay handles PUT /api/overlay.
func (h *APIHandlers) SetOverlay(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", err)
		return
	}

	overlay, result := types.ParseOverlay(body)
	if !result.OK {
		respondError(w, http.StatusUnprocessableEntity, "invalid overlay", errors.New(result.Summary()))
		return
	}
	if err := h.session.SetOverlay(overlay); err != nil {
		respondError(w, http.StatusConflict, "failed to apply overlay", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"characterId": overlay.CharacterID,
		"applied":     true,
	})
}

// ClearOverlay handles DELETE /api/overlay.
func (h *APIHandlers) ClearOverlay(w http.ResponseWriter, r *http.Request) {
	if err := h.session.SetOverlay(nil); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear overlay", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"cleared": true})
}

// BuildContext handles GET /api/context.
func (h *APIHandlers) BuildContext(w http.ResponseWriter, r *http.Request) {
	def := h.session.ActiveDefinition()
	if def == nil {
		respondError(w, http.StatusConflict, "no active character", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"characterId": def.CharacterID,
		"context":     h.session.BuildContext(),
	})
}

// ExportState handles GET /api/state/export. The response body is the raw
// memory state document so it can be saved to a file directly.
func (h *APIHandlers) ExportState(w http.ResponseWriter, r *http.Request) {
	def := h.session.ActiveDefinition()
	if def == nil {
		respondError(w, http.StatusConflict, "no active character", nil)
		return
	}
	data, err := h.session.ExportState()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to export state", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+def.CharacterID+`.state.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ImportState handles POST /api/state/import with a state document body.
func (h *APIHandlers) ImportState(w http.ResponseWriter, r *http.Request) {
	def := h.session.ActiveDefinition()
	if def == nil {
		respondError(w, http.StatusConflict, "no active character", nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 8<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", err)
		return
	}

	state, err := h.session.ImportState(body)
	if err != nil {
		if errors.Is(err, store.ErrCharacterMismatch) {
			respondError(w, http.StatusConflict, "state belongs to a different character", err)
			return
		}
		respondError(w, http.StatusUnprocessableEntity, "failed to import state", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"characterId": def.CharacterID,
		"memoryCount": len(state.Memories),
	})
}

// RegistrySearch handles GET /api/registry/search?q=...
func (h *APIHandlers) RegistrySearch(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		respondError(w, http.StatusBadRequest, "no registry configured", nil)
		return
	}
	entries, err := h.registry.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, http.StatusBadGateway, "registry search failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": entries,
		"total":   len(entries),
	})
}

// ImportConversation handles POST /api/import/conversation with a Markdown
// conversation export as the body. The export's character must be the
// active character.
func (h *APIHandlers) ImportConversation(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 8<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", err)
		return
	}

	parsed, err := importer.ParseConversation(body)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "failed to parse conversation", err)
		return
	}

	eng := h.activeEngine(w)
	if eng == nil {
		return
	}
	if parsed.CharacterID != eng.CharacterID() {
		respondError(w, http.StatusConflict, "conversation belongs to a different character", nil)
		return
	}

	result, err := eng.RecordBatch(parsed.Messages, parsed.ConversationID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to record conversation", err)
		return
	}
	h.broadcast(EventMemoryCreated, eng.CharacterID(), result)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"conversationId": result.ConversationID,
		"recordsAdded":   result.RecordsAdded,
		"totalRecords":   result.TotalRecords,
		"messageCount":   len(parsed.Messages),
		"importedAt":     time.Now().UTC(),
	})
}
