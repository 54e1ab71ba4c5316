// Package mcp implements the Model Context Protocol (MCP) server for the
// Soulpack reader. It provides JSON-RPC 2.0 based tools for activating
// characters, recording conversations, and querying character memories.
package mcp

import (
	"encoding/json"
	"strings"

	"github.com/Brant123451/soulpack-reader/pkg/types"
)

// RecordExchangeArgs contains arguments for the record_exchange tool.
type RecordExchangeArgs struct {
	UserText       string `json:"user_text"`                 // What the user said (required)
	AssistantText  string `json:"assistant_text"`            // What the character replied (required)
	ConversationID string `json:"conversation_id,omitempty"` // Conversation to record into; one is started if absent
}

// RecordExchangeResult contains the result of recording an exchange.
type RecordExchangeResult struct {
	ConversationID string `json:"conversation_id"`
	RecordsAdded   int    `json:"records_added"`
	TotalRecords   int    `json:"total_records"`
}

// BatchMessage is one message in a record_conversation payload.
type BatchMessage struct {
	Role    string `json:"role"`    // "user" or "assistant"
	Content string `json:"content"` // Message text
}

// RecordConversationArgs contains arguments for the record_conversation tool.
type RecordConversationArgs struct {
	Messages       []BatchMessage `json:"messages"`                  // Full conversation, in order (required)
	ConversationID string         `json:"conversation_id,omitempty"` // Id for the transcript file; generated if absent
}

// RecordConversationResult contains the result of recording a whole
// conversation at once.
type RecordConversationResult struct {
	ConversationID string `json:"conversation_id"`
	RecordsAdded   int    `json:"records_added"`
	TotalRecords   int    `json:"total_records"`
	MessageCount   int    `json:"message_count"`
}

// SearchMemoriesArgs contains arguments for the search_memories tool.
type SearchMemoriesArgs struct {
	Query string `json:"query"`           // Substring to match, case-insensitive (required)
	Limit int    `json:"limit,omitempty"` // Max results (default 10, max 50)
}

// GetMemoriesArgs contains arguments for the get_memories tool.
type GetMemoriesArgs struct {
	Limit int    `json:"limit,omitempty"` // Max results (default 10, max 50)
	Tag   string `json:"tag,omitempty"`   // Filter by tag when set
}

// MemoriesResult carries a list of memory records, newest first.
type MemoriesResult struct {
	Memories []types.MemoryRecord `json:"memories"`
	Total    int                  `json:"total"`
}

// AddMemoryArgs contains arguments for the add_memory tool.
type AddMemoryArgs struct {
	Content string   `json:"content"`        // Memory content (required)
	Tags    []string `json:"tags,omitempty"` // Tags; defaults to ["manual"]
}

// UnmarshalJSON accepts tags either as a JSON array or as a JSON-encoded
// string of an array; some MCP clients send the latter.
func (a *AddMemoryArgs) UnmarshalJSON(data []byte) error {
	type Alias AddMemoryArgs
	aux := &struct {
		Tags json.RawMessage `json:"tags,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if aux.Tags == nil {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(aux.Tags, &tags); err == nil {
		a.Tags = tags
		return nil
	}
	var s string
	if err := json.Unmarshal(aux.Tags, &s); err != nil {
		return nil // ignore unrecognised tag formats rather than failing
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		_ = json.Unmarshal([]byte(s), &tags)
		a.Tags = tags
	} else if s != "" {
		for _, t := range strings.Split(s, ",") {
			if t = strings.TrimSpace(t); t != "" {
				a.Tags = append(a.Tags, t)
			}
		}
	}
	return nil
}

// AddMemoryResult contains the result of adding a memory manually.
type AddMemoryResult struct {
	Memory *types.MemoryRecord `json:"memory"`
}

// DeleteMemoryArgs contains arguments for the delete_memory tool.
type DeleteMemoryArgs struct {
	ID string `json:"id"` // Memory record id (required)
}

// DeleteMemoryResult contains the result of deleting a memory.
type DeleteMemoryResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// ClearMemoriesResult contains the result of clearing a character's store.
type ClearMemoriesResult struct {
	CharacterID string `json:"character_id"`
	Cleared     bool   `json:"cleared"`
}

// StatusResult describes the active character and its counters.
type StatusResult struct {
	Active          bool   `json:"active"`
	CharacterID     string `json:"character_id,omitempty"`
	DisplayName     string `json:"display_name,omitempty"`
	MemoryCount     int    `json:"memory_count,omitempty"`
	MaxMemories     int    `json:"max_memories,omitempty"`
	ConversationID  string `json:"conversation_id,omitempty"`
	TranscriptCount int    `json:"transcript_count,omitempty"`
	HasOverlay      bool   `json:"has_overlay,omitempty"`
}

// CharacterSummary is one installed character in a list_characters result.
type CharacterSummary struct {
	CharacterID string `json:"character_id"`
	DisplayName string `json:"display_name"`
	SpecVersion string `json:"spec_version"`
	Active      bool   `json:"active"`
}

// ListCharactersResult contains the installed characters.
type ListCharactersResult struct {
	Characters []CharacterSummary `json:"characters"`
	Total      int                `json:"total"`
}

// ActivateCharacterArgs contains arguments for the activate_character tool.
type ActivateCharacterArgs struct {
	CharacterID string `json:"character_id"` // Installed character id (required)
}

// ActivateCharacterResult contains the result of activating a character.
type ActivateCharacterResult struct {
	CharacterID string `json:"character_id"`
	DisplayName string `json:"display_name"`
	MemoryCount int    `json:"memory_count"`
}

// InstallCharacterArgs contains arguments for the install_character tool.
// Exactly one of URL or Pack must be provided.
type InstallCharacterArgs struct {
	URL  string          `json:"url,omitempty"`  // Fetch the pack from this URL
	Pack json.RawMessage `json:"pack,omitempty"` // Inline pack document
}

// InstallCharacterResult contains the result of installing a character.
type InstallCharacterResult struct {
	CharacterID string `json:"character_id"`
	DisplayName string `json:"display_name"`
	SpecVersion string `json:"spec_version"`
}

// RemoveCharacterArgs contains arguments for the remove_character tool.
type RemoveCharacterArgs struct {
	CharacterID string `json:"character_id"` // Installed character id (required)
}

// RemoveCharacterResult contains the result of removing a character.
type RemoveCharacterResult struct {
	CharacterID string `json:"character_id"`
	Removed     bool   `json:"removed"`
}

// SetOverlayArgs contains arguments for the set_overlay tool.
type SetOverlayArgs struct {
	Overlay json.RawMessage `json:"overlay"` // Overlay document; null clears the overlay
}

// SetOverlayResult contains the result of applying an overlay.
type SetOverlayResult struct {
	CharacterID string `json:"character_id"`
	Applied     bool   `json:"applied"`
	Cleared     bool   `json:"cleared,omitempty"`
}

// BuildContextResult carries the rendered prompt injection.
type BuildContextResult struct {
	CharacterID string `json:"character_id"`
	Context     string `json:"context"`
}

// ExportStateResult carries a character's memory store as a JSON document.
type ExportStateResult struct {
	CharacterID string          `json:"character_id"`
	State       json.RawMessage `json:"state"`
}

// ImportStateArgs contains arguments for the import_state tool.
type ImportStateArgs struct {
	State json.RawMessage `json:"state"` // Memory state document (required)
}

// ImportStateResult contains the result of importing a memory state.
type ImportStateResult struct {
	CharacterID string `json:"character_id"`
	MemoryCount int    `json:"memory_count"`
}

// EndConversationResult contains the result of ending the conversation.
type EndConversationResult struct {
	CharacterID string `json:"character_id"`
	Ended       bool   `json:"ended"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"` // Must be "2.0"
	Method  string      `json:"method"`  // Method name
	Params  interface{} `json:"params"`  // Method parameters
	ID      interface{} `json:"id"`      // Request ID (string, number, or null)
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`          // Must be "2.0"
	Result  interface{}   `json:"result,omitempty"` // Result (if successful)
	Error   *JSONRPCError `json:"error,omitempty"`  // Error (if failed)
	ID      interface{}   `json:"id"`               // Request ID
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int         `json:"code"`           // Error code
	Message string      `json:"message"`        // Error message
	Data    interface{} `json:"data,omitempty"` // Additional error data
}

// JSON-RPC error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrCodeServerError    = -32000 // Server error
)

// ---------------------------------------------------------------------------
// Standard MCP protocol types (initialize / tools/list / tools/call)
// ---------------------------------------------------------------------------

// MCPInitializeParams holds the parameters sent by an MCP client in the
// initialize request.
type MCPInitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ClientInfo      MCPClientInfo          `json:"clientInfo"`
}

// MCPClientInfo identifies the connecting MCP client.
type MCPClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerInfo identifies this MCP server.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerCapabilities describes what this server supports.
type MCPServerCapabilities struct {
	Tools *MCPToolsCapability `json:"tools,omitempty"`
}

// MCPToolsCapability signals that the server exposes tools.
type MCPToolsCapability struct{}

// MCPInitializeResult is the response to the initialize request.
type MCPInitializeResult struct {
	ProtocolVersion string                `json:"protocolVersion"`
	Capabilities    MCPServerCapabilities `json:"capabilities"`
	ServerInfo      MCPServerInfo         `json:"serverInfo"`
}

// MCPTool describes a single tool exposed via the MCP tools/list endpoint.
type MCPTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MCPToolsListResult is the response to the tools/list request.
type MCPToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// MCPToolCallParams holds the parameters sent in a tools/call request.
type MCPToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// MCPToolCallContent is a single content block in a tool call response.
type MCPToolCallContent struct {
	Type string `json:"type"` // always "text" for now
	Text string `json:"text"`
}

// MCPToolCallResult is the response to a tools/call request.
type MCPToolCallResult struct {
	Content []MCPToolCallContent `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}
