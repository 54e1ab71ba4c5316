package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Brant123451/soulpack-reader/internal/engine"
	"github.com/Brant123451/soulpack-reader/internal/registry"
	"github.com/Brant123451/soulpack-reader/pkg/types"
)

const serverVersion = "1.0.0"

// Server implements the Model Context Protocol (MCP) for the Soulpack
// reader. It exposes JSON-RPC 2.0 tools that let an AI assistant install
// and activate characters, record conversations, and query memories.
type Server struct {
	session   *engine.Session
	registry  *registry.Client
	sessionID string // unique ID generated once per MCP server lifetime
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithRegistry injects a registry client so install_character can fetch
// packs from URLs. Without it only inline pack installs work.
func WithRegistry(rc *registry.Client) ServerOption {
	return func(s *Server) {
		s.registry = rc
	}
}

// NewServer creates a new MCP server over the given session.
func NewServer(session *engine.Session, opts ...ServerOption) *Server {
	s := &Server{
		session:   session,
		sessionID: uuid.New().String(),
	}
	for _, opt := range opts {
		opt(s)
	}
	log.Printf("soulpack-mcp: session ID: %s", s.sessionID)
	return s
}

// HandleRequest processes a JSON-RPC 2.0 request and returns a response.
// This is the main entry point for MCP protocol handling.
func (s *Server) HandleRequest(ctx context.Context, requestJSON []byte) ([]byte, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return s.errorResponse(nil, ErrCodeParseError, "Parse error", err)
	}

	if req.JSONRPC != "2.0" {
		return s.errorResponse(req.ID, ErrCodeInvalidRequest, "Invalid JSON-RPC version", nil)
	}

	var result interface{}
	var err error

	switch req.Method {
	// Standard MCP protocol methods
	case "initialize":
		result, err = s.handleInitialize(ctx, req.Params)
	case "initialized":
		// Notification. No response body required; return empty object.
		result = map[string]interface{}{}
	case "tools/list":
		result, err = s.handleToolsList(ctx, req.Params)
	case "tools/call":
		result, err = s.handleToolsCall(ctx, req.Params)

	// Native JSON-RPC methods (kept for direct callers)
	case "record_exchange":
		result, err = s.handleRecordExchange(ctx, req.Params)
	case "record_conversation":
		result, err = s.handleRecordConversation(ctx, req.Params)
	case "search_memories":
		result, err = s.handleSearchMemories(ctx, req.Params)
	case "get_memories":
		result, err = s.handleGetMemories(ctx, req.Params)
	case "add_memory":
		result, err = s.handleAddMemory(ctx, req.Params)
	case "delete_memory":
		result, err = s.handleDeleteMemory(ctx, req.Params)
	case "clear_memories":
		result, err = s.handleClearMemories(ctx, req.Params)
	case "get_status":
		result, err = s.handleGetStatus(ctx, req.Params)
	case "list_characters":
		result, err = s.handleListCharacters(ctx, req.Params)
	case "activate_character":
		result, err = s.handleActivateCharacter(ctx, req.Params)
	case "install_character":
		result, err = s.handleInstallCharacter(ctx, req.Params)
	case "remove_character":
		result, err = s.handleRemoveCharacter(ctx, req.Params)
	case "set_overlay":
		result, err = s.handleSetOverlay(ctx, req.Params)
	case "build_context":
		result, err = s.handleBuildContext(ctx, req.Params)
	case "export_state":
		result, err = s.handleExportState(ctx, req.Params)
	case "import_state":
		result, err = s.handleImportState(ctx, req.Params)
	case "end_conversation":
		result, err = s.handleEndConversation(ctx, req.Params)
	default:
		return s.errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}

	if err != nil {
		return s.errorResponse(req.ID, ErrCodeServerError, err.Error(), nil)
	}

	return s.successResponse(req.ID, result)
}

// activeEngine returns the active character's engine or an error telling
// the caller to activate a character first.
func (s *Server) activeEngine() (*engine.Engine, error) {
	eng := s.session.Active()
	if eng == nil {
		return nil, fmt.Errorf("no active character: call activate_character first")
	}
	return eng, nil
}

func (s *Server) handleRecordExchange(ctx context.Context, params interface{}) (interface{}, error) {
	var args RecordExchangeArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.UserText == "" || args.AssistantText == "" {
		return nil, fmt.Errorf("user_text and assistant_text are required")
	}

	eng, err := s.activeEngine()
	if err != nil {
		return nil, err
	}
	result, err := eng.Record(args.UserText, args.AssistantText, args.ConversationID)
	if err != nil {
		return nil, err
	}
	return &RecordExchangeResult{
		ConversationID: result.ConversationID,
		RecordsAdded:   result.RecordsAdded,
		TotalRecords:   result.TotalRecords,
	}, nil
}

func (s *Server) handleRecordConversation(ctx context.Context, params interface{}) (interface{}, error) {
	var args RecordConversationArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if len(args.Messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}

	eng, err := s.activeEngine()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	messages := make([]types.TranscriptMessage, 0, len(args.Messages))
	for i, m := range args.Messages {
		if m.Role != types.RoleUser && m.Role != types.RoleAssistant {
			return nil, fmt.Errorf("messages[%d].role must be %q or %q", i, types.RoleUser, types.RoleAssistant)
		}
		if m.Content == "" {
			return nil, fmt.Errorf("messages[%d].content is required", i)
		}
		messages = append(messages, types.TranscriptMessage{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: now.Add(time.Duration(i) * time.Second),
		})
	}

	result, err := eng.RecordBatch(messages, args.ConversationID)
	if err != nil {
		return nil, err
	}
	return &RecordConversationResult{
		ConversationID: result.ConversationID,
		RecordsAdded:   result.RecordsAdded,
		TotalRecords:   result.TotalRecords,
		MessageCount:   len(messages),
	}, nil
}

func (s *Server) handleSearchMemories(ctx context.Context, params interface{}) (interface{}, error) {
	var args SearchMemoriesArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.Query == "" {
		return nil, fmt.Errorf("query is required")
	}

	eng, err := s.activeEngine()
	if err != nil {
		return nil, err
	}
	matches := eng.SearchMemories(args.Query, args.Limit)
	return &MemoriesResult{Memories: matches, Total: len(matches)}, nil
}

func (s *Server) handleGetMemories(ctx context.Context, params interface{}) (interface{}, error) {
	var args GetMemoriesArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}

	eng, err := s.activeEngine()
	if err != nil {
		return nil, err
	}
	var records []types.MemoryRecord
	if args.Tag != "" {
		records = eng.GetMemoriesByTag(args.Tag, args.Limit)
	} else {
		records = eng.GetMemories(args.Limit)
	}
	return &MemoriesResult{Memories: records, Total: len(records)}, nil
}

func (s *Server) handleAddMemory(ctx context.Context, params interface{}) (interface{}, error) {
	var args AddMemoryArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.Content == "" {
		return nil, fmt.Errorf("content is required")
	}

	eng, err := s.activeEngine()
	if err != nil {
		return nil, err
	}
	record, err := eng.AddManualMemory(args.Content, args.Tags)
	if err != nil {
		return nil, err
	}
	return &AddMemoryResult{Memory: record}, nil
}

func (s *Server) handleDeleteMemory(ctx context.Context, params interface{}) (interface{}, error) {
	var args DeleteMemoryArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.ID == "" {
		return nil, fmt.Errorf("id is required")
	}

	eng, err := s.activeEngine()
	if err != nil {
		return nil, err
	}
	deleted, err := eng.DeleteMemory(args.ID)
	if err != nil {
		return nil, err
	}
	return &DeleteMemoryResult{ID: args.ID, Deleted: deleted}, nil
}

func (s *Server) handleClearMemories(ctx context.Context, params interface{}) (interface{}, error) {
	eng, err := s.activeEngine()
	if err != nil {
		return nil, err
	}
	if err := eng.ClearMemories(); err != nil {
		return nil, err
	}
	return &ClearMemoriesResult{CharacterID: eng.CharacterID(), Cleared: true}, nil
}

func (s *Server) handleGetStatus(ctx context.Context, params interface{}) (interface{}, error) {
	eng := s.session.Active()
	if eng == nil {
		return &StatusResult{Active: false}, nil
	}
	status := eng.Status()
	return &StatusResult{
		Active:          true,
		CharacterID:     status.CharacterID,
		DisplayName:     s.session.ActiveDefinition().DisplayName,
		MemoryCount:     status.MemoryCount,
		MaxMemories:     status.MaxMemories,
		ConversationID:  status.ConversationID,
		TranscriptCount: status.TranscriptCount,
		HasOverlay:      s.session.Overlay() != nil,
	}, nil
}

func (s *Server) handleListCharacters(ctx context.Context, params interface{}) (interface{}, error) {
	defs, err := s.session.ListCharacters()
	if err != nil {
		return nil, err
	}

	activeID := ""
	if def := s.session.ActiveDefinition(); def != nil {
		activeID = def.CharacterID
	}
	characters := make([]CharacterSummary, 0, len(defs))
	for _, def := range defs {
		characters = append(characters, CharacterSummary{
			CharacterID: def.CharacterID,
			DisplayName: def.DisplayName,
			SpecVersion: def.SpecVersion,
			Active:      def.CharacterID == activeID,
		})
	}
	return &ListCharactersResult{Characters: characters, Total: len(characters)}, nil
}

func (s *Server) handleActivateCharacter(ctx context.Context, params interface{}) (interface{}, error) {
	var args ActivateCharacterArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.CharacterID == "" {
		return nil, fmt.Errorf("character_id is required")
	}

	eng, err := s.session.Activate(args.CharacterID)
	if err != nil {
		return nil, err
	}
	if eng == nil {
		return nil, fmt.Errorf("character %q is not installed", args.CharacterID)
	}
	return &ActivateCharacterResult{
		CharacterID: args.CharacterID,
		DisplayName: s.session.ActiveDefinition().DisplayName,
		MemoryCount: eng.Status().MemoryCount,
	}, nil
}

func (s *Server) handleInstallCharacter(ctx context.Context, params interface{}) (interface{}, error) {
	var args InstallCharacterArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}

	var def *types.CharacterDefinition
	switch {
	case args.URL != "":
		if s.registry == nil {
			return nil, fmt.Errorf("URL installs are not available: no registry client configured")
		}
		fetched, err := s.registry.FetchPack(ctx, args.URL)
		if err != nil {
			return nil, err
		}
		def = fetched
	case len(args.Pack) > 0:
		parsed, result := types.ParsePack(args.Pack)
		if !result.OK {
			return nil, fmt.Errorf("invalid character definition: %s", result.Summary())
		}
		def = parsed
	default:
		return nil, fmt.Errorf("either url or pack is required")
	}

	if err := s.session.Install(def); err != nil {
		return nil, err
	}
	return &InstallCharacterResult{
		CharacterID: def.CharacterID,
		DisplayName: def.DisplayName,
		SpecVersion: def.SpecVersion,
	}, nil
}

func (s *Server) handleRemoveCharacter(ctx context.Context, params interface{}) (interface{}, error) {
	var args RemoveCharacterArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.CharacterID == "" {
		return nil, fmt.Errorf("character_id is required")
	}

	removed, err := s.session.Remove(args.CharacterID)
	if err != nil {
		return nil, err
	}
	return &RemoveCharacterResult{CharacterID: args.CharacterID, Removed: removed}, nil
}

func (s *Server) handleSetOverlay(ctx context.Context, params interface{}) (interface{}, error) {
	var args SetOverlayArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}

	def := s.session.ActiveDefinition()
	if def == nil {
		return nil, fmt.Errorf("no active character: call activate_character first")
	}

	if len(args.Overlay) == 0 || string(args.Overlay) == "null" {
		if err := s.session.SetOverlay(nil); err != nil {
			return nil, err
		}
		return &SetOverlayResult{CharacterID: def.CharacterID, Cleared: true}, nil
	}

	overlay, result := types.ParseOverlay(args.Overlay)
	if !result.OK {
		return nil, fmt.Errorf("invalid overlay: %s", result.Summary())
	}
	if err := s.session.SetOverlay(overlay); err != nil {
		return nil, err
	}
	return &SetOverlayResult{CharacterID: def.CharacterID, Applied: true}, nil
}

func (s *Server) handleBuildContext(ctx context.Context, params interface{}) (interface{}, error) {
	def := s.session.ActiveDefinition()
	if def == nil {
		return nil, fmt.Errorf("no active character: call activate_character first")
	}
	return &BuildContextResult{
		CharacterID: def.CharacterID,
		Context:     s.session.BuildContext(),
	}, nil
}

func (s *Server) handleExportState(ctx context.Context, params interface{}) (interface{}, error) {
	def := s.session.ActiveDefinition()
	if def == nil {
		return nil, fmt.Errorf("no active character: call activate_character first")
	}
	data, err := s.session.ExportState()
	if err != nil {
		return nil, err
	}
	return &ExportStateResult{CharacterID: def.CharacterID, State: data}, nil
}

func (s *Server) handleImportState(ctx context.Context, params interface{}) (interface{}, error) {
	var args ImportStateArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if len(args.State) == 0 {
		return nil, fmt.Errorf("state is required")
	}

	def := s.session.ActiveDefinition()
	if def == nil {
		return nil, fmt.Errorf("no active character: call activate_character first")
	}
	state, err := s.session.ImportState(args.State)
	if err != nil {
		return nil, err
	}
	return &ImportStateResult{
		CharacterID: def.CharacterID,
		MemoryCount: len(state.Memories),
	}, nil
}

func (s *Server) handleEndConversation(ctx context.Context, params interface{}) (interface{}, error) {
	eng, err := s.activeEngine()
	if err != nil {
		return nil, err
	}
	eng.EndConversation()
	return &EndConversationResult{CharacterID: eng.CharacterID(), Ended: true}, nil
}

// handleInitialize handles the MCP initialize handshake.
func (s *Server) handleInitialize(ctx context.Context, params interface{}) (interface{}, error) {
	return MCPInitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities: MCPServerCapabilities{
			Tools: &MCPToolsCapability{},
		},
		ServerInfo: MCPServerInfo{
			Name:    "soulpack-reader",
			Version: serverVersion,
		},
	}, nil
}

// handleToolsList returns the list of all tools this server exposes.
func (s *Server) handleToolsList(ctx context.Context, params interface{}) (interface{}, error) {
	return MCPToolsListResult{Tools: s.buildToolsList()}, nil
}

// handleToolsCall dispatches a tools/call request to the appropriate handler
// and wraps the result in the MCP content envelope.
func (s *Server) handleToolsCall(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPToolCallParams
	if err := s.unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	// Re-marshal arguments so they can be passed to the native handlers
	// which expect an interface{} produced by JSON unmarshal.
	argsJSON, err := json.Marshal(p.Arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arguments: %w", err)
	}
	var rawParams interface{}
	if err := json.Unmarshal(argsJSON, &rawParams); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	var result interface{}
	var handlerErr error

	switch p.Name {
	case "record_exchange":
		result, handlerErr = s.handleRecordExchange(ctx, rawParams)
	case "record_conversation":
		result, handlerErr = s.handleRecordConversation(ctx, rawParams)
	case "search_memories":
		result, handlerErr = s.handleSearchMemories(ctx, rawParams)
	case "get_memories":
		result, handlerErr = s.handleGetMemories(ctx, rawParams)
	case "add_memory":
		result, handlerErr = s.handleAddMemory(ctx, rawParams)
	case "delete_memory":
		result, handlerErr = s.handleDeleteMemory(ctx, rawParams)
	case "clear_memories":
		result, handlerErr = s.handleClearMemories(ctx, rawParams)
	case "get_status":
		result, handlerErr = s.handleGetStatus(ctx, rawParams)
	case "list_characters":
		result, handlerErr = s.handleListCharacters(ctx, rawParams)
	case "activate_character":
		result, handlerErr = s.handleActivateCharacter(ctx, rawParams)
	case "install_character":
		result, handlerErr = s.handleInstallCharacter(ctx, rawParams)
	case "remove_character":
		result, handlerErr = s.handleRemoveCharacter(ctx, rawParams)
	case "set_overlay":
		result, handlerErr = s.handleSetOverlay(ctx, rawParams)
	case "build_context":
		result, handlerErr = s.handleBuildContext(ctx, rawParams)
	case "export_state":
		result, handlerErr = s.handleExportState(ctx, rawParams)
	case "import_state":
		result, handlerErr = s.handleImportState(ctx, rawParams)
	case "end_conversation":
		result, handlerErr = s.handleEndConversation(ctx, rawParams)
	default:
		return &MCPToolCallResult{
			Content: []MCPToolCallContent{{Type: "text", Text: fmt.Sprintf("unknown tool: %s", p.Name)}},
			IsError: true,
		}, nil
	}

	if handlerErr != nil {
		return &MCPToolCallResult{
			Content: []MCPToolCallContent{{Type: "text", Text: handlerErr.Error()}},
			IsError: true,
		}, nil
	}

	text, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &MCPToolCallResult{
		Content: []MCPToolCallContent{{Type: "text", Text: string(text)}},
	}, nil
}

// unmarshalParams unmarshals JSON-RPC parameters into a typed struct.
func (s *Server) unmarshalParams(params interface{}, dest interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal params: %w", err)
	}

	return nil
}

// successResponse creates a JSON-RPC success response.
func (s *Server) successResponse(id interface{}, result interface{}) ([]byte, error) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
	return json.Marshal(resp)
}

// errorResponse creates a JSON-RPC error response.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) ([]byte, error) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
	return json.Marshal(resp)
}
