package mcp

// buildToolsList returns the canonical list of MCP tool definitions.
func (s *Server) buildToolsList() []MCPTool {
	return []MCPTool{
		{
			Name:        "record_exchange",
			Description: "Record one user/assistant exchange for the active character. The exchange is appended to the conversation transcript and run through the fact extractor; derived memories are stored with FIFO eviction at the memory cap.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"user_text", "assistant_text"},
				"properties": map[string]interface{}{
					"user_text":       map[string]interface{}{"type": "string", "description": "What the user said (required)"},
					"assistant_text":  map[string]interface{}{"type": "string", "description": "What the character replied (required)"},
					"conversation_id": map[string]interface{}{"type": "string", "description": "Conversation to record into; a new one is started if omitted"},
				},
			},
		},
		{
			Name:        "record_conversation",
			Description: "Record a whole conversation at once for the active character. One transcript file is written, a session summary plus per-message facts are extracted, and key exchanges are preserved for longer conversations.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"messages"},
				"properties": map[string]interface{}{
					"messages": map[string]interface{}{
						"type":        "array",
						"description": "Ordered messages, alternating user and assistant",
						"items": map[string]interface{}{
							"type":     "object",
							"required": []string{"role", "content"},
							"properties": map[string]interface{}{
								"role":    map[string]interface{}{"type": "string", "description": "user or assistant"},
								"content": map[string]interface{}{"type": "string", "description": "Message text"},
							},
						},
					},
					"conversation_id": map[string]interface{}{"type": "string", "description": "Id for the transcript file; generated if omitted"},
				},
			},
		},
		{
			Name:        "search_memories",
			Description: "Search the active character's memories by case-insensitive substring match. Results are newest first.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"query"},
				"properties": map[string]interface{}{
					"query": map[string]interface{}{"type": "string", "description": "Substring to match (required)"},
					"limit": map[string]interface{}{"type": "integer", "description": "Max results (default 10, max 50)"},
				},
			},
		},
		{
			Name:        "get_memories",
			Description: "Get the active character's most recent memories, newest first. Pass a tag to filter, e.g. user_fact, preference, exchange, manual.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"limit": map[string]interface{}{"type": "integer", "description": "Max results (default 10, max 50)"},
					"tag":   map[string]interface{}{"type": "string", "description": "Only return memories carrying this tag"},
				},
			},
		},
		{
			Name:        "add_memory",
			Description: "Add a memory for the active character directly, bypassing extraction. Use for facts the user explicitly asked to remember.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"content"},
				"properties": map[string]interface{}{
					"content": map[string]interface{}{"type": "string", "description": "The memory content (required)"},
					"tags":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}, "description": "Tags; defaults to [\"manual\"]"},
				},
			},
		},
		{
			Name:        "delete_memory",
			Description: "Delete one memory record by id. Returns deleted=false when no such record exists.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"id"},
				"properties": map[string]interface{}{
					"id": map[string]interface{}{"type": "string", "description": "Memory record id (required)"},
				},
			},
		},
		{
			Name:        "clear_memories",
			Description: "Erase all of the active character's memories. This cannot be undone; consider export_state first.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "get_status",
			Description: "Report the active character, its memory count and cap, the open conversation, and transcript count.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "list_characters",
			Description: "List all locally installed characters and which one is active.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "activate_character",
			Description: "Make an installed character the active one. Its persisted memories are loaded; recording and queries then apply to it.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"character_id"},
				"properties": map[string]interface{}{
					"character_id": map[string]interface{}{"type": "string", "description": "Installed character id (required)"},
				},
			},
		},
		{
			Name:        "install_character",
			Description: "Install a character from a pack URL or an inline pack document. The pack is validated before anything is written; every validation failure is reported.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"url":  map[string]interface{}{"type": "string", "description": "URL of a .soulpack.json document"},
					"pack": map[string]interface{}{"type": "object", "description": "Inline pack document (alternative to url)"},
				},
			},
		},
		{
			Name:        "remove_character",
			Description: "Uninstall a character's definition. Its memories and transcripts are kept; reinstalling restores them.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"character_id"},
				"properties": map[string]interface{}{
					"character_id": map[string]interface{}{"type": "string", "description": "Installed character id (required)"},
				},
			},
		},
		{
			Name:        "set_overlay",
			Description: "Apply user overrides (display name, avatar, voice, theme, language) on top of the active character's definition. Pass null to clear.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"overlay"},
				"properties": map[string]interface{}{
					"overlay": map[string]interface{}{"type": "object", "description": "Overlay document with a matching characterId, or null to clear"},
				},
			},
		},
		{
			Name:        "build_context",
			Description: "Render the active character's injectable system context: system prompt, context notes, voice, appearance, and the most recent memories.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "export_state",
			Description: "Export the active character's full memory store as a JSON document for backup or transfer.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "import_state",
			Description: "Replace the active character's memory store with a previously exported document. The document's characterId must match; on mismatch nothing is overwritten.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"state"},
				"properties": map[string]interface{}{
					"state": map[string]interface{}{"type": "object", "description": "A memory state document from export_state (required)"},
				},
			},
		},
		{
			Name:        "end_conversation",
			Description: "Close the active conversation. The transcript stays on disk; the per-character transcript retention cap is enforced.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}
