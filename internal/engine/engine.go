// Package engine provides the per-character Memory Engine: the single
// authority over one character's memory store and transcript log, and the
// unit of concurrency control. Callers are expected to invoke operations
// sequentially per character; cross-character engines are independent.
package engine

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Brant123451/soulpack-reader/internal/extract"
	"github.com/Brant123451/soulpack-reader/internal/store"
	"github.com/Brant123451/soulpack-reader/pkg/types"
)

// Config holds configuration for a memory engine.
type Config struct {
	// MaxMemories caps the record count per character store (default: 200).
	MaxMemories int

	// DefaultQueryLimit applies when a query passes limit <= 0 (default: 10).
	DefaultQueryLimit int

	// MaxQueryLimit is the hard cap on any query limit (default: 50).
	MaxQueryLimit int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxMemories:       200,
		DefaultQueryLimit: 10,
		MaxQueryLimit:     50,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.MaxMemories < 1 {
		return fmt.Errorf("MaxMemories must be >= 1, got %d", c.MaxMemories)
	}
	if c.DefaultQueryLimit < 1 {
		return fmt.Errorf("DefaultQueryLimit must be >= 1, got %d", c.DefaultQueryLimit)
	}
	if c.MaxQueryLimit < c.DefaultQueryLimit {
		return fmt.Errorf("MaxQueryLimit must be >= DefaultQueryLimit, got %d", c.MaxQueryLimit)
	}
	return nil
}

// RecordResult reports the outcome of a record operation.
type RecordResult struct {
	ConversationID string `json:"conversationId"`
	RecordsAdded   int    `json:"recordsAdded"`
	TotalRecords   int    `json:"totalRecords"`
}

// Status is a snapshot of an engine's state.
type Status struct {
	CharacterID     string `json:"characterId"`
	MemoryCount     int    `json:"memoryCount"`
	MaxMemories     int    `json:"maxMemories"`
	ConversationID  string `json:"conversationId,omitempty"`
	BufferSize      int    `json:"bufferSize"`
	TranscriptCount int    `json:"transcriptCount"`
}

// Engine orchestrates one character's memory store and transcript log.
// The state file on disk is the single source of truth: it is re-loaded at
// the start of every mutating operation, so stores survive process restarts
// and external edits without an in-process cache going stale.
//
// Engine provides no internal mutual exclusion; the embedding caller
// serializes operations per character.
type Engine struct {
	characterID string
	cfg         Config

	states      *store.StateStore
	transcripts *store.TranscriptStore
	extractor   extract.Extractor

	conversationID string
	buffer         []types.TranscriptMessage
	seq            int
}

// New creates a memory engine for one character.
func New(characterID string, cfg Config, states *store.StateStore, transcripts *store.TranscriptStore, extractor extract.Extractor) (*Engine, error) {
	if characterID == "" {
		return nil, fmt.Errorf("characterID is required")
	}
	if states == nil || transcripts == nil {
		return nil, fmt.Errorf("state and transcript stores are required")
	}
	if extractor == nil {
		extractor = extract.NewRuleExtractor()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Engine{
		characterID: characterID,
		cfg:         cfg,
		states:      states,
		transcripts: transcripts,
		extractor:   extractor,
	}, nil
}

// CharacterID returns the character this engine serves.
func (e *Engine) CharacterID() string {
	return e.characterID
}

// StartConversation begins a new conversation, clearing the in-memory
// buffer. An empty id generates one. Returns the active conversation id.
func (e *Engine) StartConversation(id string) string {
	if id == "" {
		id = uuid.New().String()
	}
	e.conversationID = id
	e.buffer = nil
	return id
}

// EndConversation closes the active conversation: the buffer is cleared and
// the transcript retention cap is enforced. Already-written transcript data
// is never deleted by ending a conversation (retention may delete older
// conversations' files).
func (e *Engine) EndConversation() {
	e.conversationID = ""
	e.buffer = nil
	e.transcripts.EnforceRetention(e.characterID)
}

// ConversationID returns the active conversation id, or "" when none.
func (e *Engine) ConversationID() string {
	return e.conversationID
}

// Record processes one (user, assistant) exchange: the pair is appended to
// the conversation buffer, written through to the transcript immediately,
// and run through the fact extractor; derived records are appended to the
// store with FIFO eviction and persisted.
//
// If no conversation is active, one is implicitly started with the supplied
// or a generated id. A failed transcript write is logged and does not block
// the memory update.
func (e *Engine) Record(userText, assistantText, conversationID string) (RecordResult, error) {
	if e.conversationID == "" {
		e.StartConversation(conversationID)
	}

	now := time.Now().UTC()
	pair := []types.TranscriptMessage{
		{Role: types.RoleUser, Content: userText, Timestamp: now},
		{Role: types.RoleAssistant, Content: assistantText, Timestamp: now},
	}
	e.buffer = append(e.buffer, pair...)

	// Write-through transcript persistence: best-effort, never fatal.
	if err := e.transcripts.Append(e.characterID, e.conversationID, pair...); err != nil {
		log.Printf("transcript write failed for %s/%s: %v", e.characterID, e.conversationID, err)
	}

	candidates := e.extractor.ExtractExchange(userText, assistantText)
	return e.appendCandidates(candidates)
}

// RecordBatch processes an entire conversation submitted at once, e.g. an
// import from an external system. One full transcript file is written, a
// single session summary plus per-message facts are derived, and the
// transcript retention cap is enforced afterward.
func (e *Engine) RecordBatch(messages []types.TranscriptMessage, conversationID string) (RecordResult, error) {
	if len(messages) == 0 {
		return RecordResult{}, fmt.Errorf("messages are required")
	}
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	transcript := &types.Transcript{
		CharacterID:    e.characterID,
		ConversationID: conversationID,
		StartedAt:      messages[0].Timestamp,
		Messages:       messages,
	}
	transcript.MessageCount = len(messages)
	if n := len(messages); n > 0 {
		transcript.EndedAt = messages[n-1].Timestamp
	}
	if err := e.transcripts.WriteFull(transcript); err != nil {
		log.Printf("batch transcript write failed for %s/%s: %v", e.characterID, conversationID, err)
	}
	defer e.transcripts.EnforceRetention(e.characterID)

	candidates := e.extractor.ExtractBatch(messages)
	result, err := e.appendCandidatesAs(candidates, conversationID)
	if err != nil {
		return result, err
	}
	result.ConversationID = conversationID
	return result, nil
}

// appendCandidates stores candidates under the active conversation id.
func (e *Engine) appendCandidates(candidates []extract.FactCandidate) (RecordResult, error) {
	result, err := e.appendCandidatesAs(candidates, e.conversationID)
	if err != nil {
		return result, err
	}
	result.ConversationID = e.conversationID
	return result, nil
}

// appendCandidatesAs loads the current store, appends each candidate with
// eviction at the cap, and persists the store in one whole-file replace.
func (e *Engine) appendCandidatesAs(candidates []extract.FactCandidate, sessionID string) (RecordResult, error) {
	state := e.states.Load(e.characterID)
	for _, c := range candidates {
		state.Append(types.MemoryRecord{
			ID:        e.newRecordID(),
			Content:   c.Content,
			Timestamp: time.Now().UTC(),
			SessionID: sessionID,
			Tags:      c.Tags,
		}, e.cfg.MaxMemories)
	}
	if err := e.states.Save(state); err != nil {
		return RecordResult{}, fmt.Errorf("persist memory store: %w", err)
	}
	return RecordResult{
		RecordsAdded: len(candidates),
		TotalRecords: len(state.Memories),
	}, nil
}

// newRecordID produces a time-prefixed, sequence-suffixed id so records sort
// in insertion order and stay unique within a process.
func (e *Engine) newRecordID() string {
	e.seq++
	return fmt.Sprintf("mem_%d_%d", time.Now().UnixMilli(), e.seq)
}

// GetMemories returns the most recent records, newest first, up to limit.
func (e *Engine) GetMemories(limit int) []types.MemoryRecord {
	state := e.states.Load(e.characterID)
	return newestFirst(state.Memories, e.clampLimit(limit))
}

// SearchMemories returns records whose content contains query
// case-insensitively, newest first, up to limit.
func (e *Engine) SearchMemories(query string, limit int) []types.MemoryRecord {
	state := e.states.Load(e.characterID)
	needle := strings.ToLower(query)

	var matches []types.MemoryRecord
	for _, m := range state.Memories {
		if strings.Contains(strings.ToLower(m.Content), needle) {
			matches = append(matches, m)
		}
	}
	return newestFirst(matches, e.clampLimit(limit))
}

// GetMemoriesByTag returns records carrying tag, newest first, up to limit.
func (e *Engine) GetMemoriesByTag(tag string, limit int) []types.MemoryRecord {
	state := e.states.Load(e.characterID)

	var matches []types.MemoryRecord
	for _, m := range state.Memories {
		if m.HasTag(tag) {
			matches = append(matches, m)
		}
	}
	return newestFirst(matches, e.clampLimit(limit))
}

// AddManualMemory inserts a record directly, bypassing extraction.
func (e *Engine) AddManualMemory(content string, tags []string) (*types.MemoryRecord, error) {
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}
	if len(tags) == 0 {
		tags = []string{types.TagManual}
	}

	record := types.MemoryRecord{
		ID:        e.newRecordID(),
		Content:   content,
		Timestamp: time.Now().UTC(),
		SessionID: e.conversationID,
		Tags:      tags,
	}

	state := e.states.Load(e.characterID)
	state.Append(record, e.cfg.MaxMemories)
	if err := e.states.Save(state); err != nil {
		return nil, fmt.Errorf("persist memory store: %w", err)
	}
	return &record, nil
}

// DeleteMemory removes the record with the given id. Returns false when no
// such record exists; the store is left untouched in that case.
func (e *Engine) DeleteMemory(id string) (bool, error) {
	state := e.states.Load(e.characterID)
	for i, m := range state.Memories {
		if m.ID == id {
			state.Memories = append(state.Memories[:i], state.Memories[i+1:]...)
			state.LastUpdated = time.Now().UTC()
			if err := e.states.Save(state); err != nil {
				return false, fmt.Errorf("persist memory store: %w", err)
			}
			return true, nil
		}
	}
	return false, nil
}

// ClearMemories truncates the store to empty and persists immediately.
func (e *Engine) ClearMemories() error {
	state := types.NewMemoryState(e.characterID)
	if err := e.states.Save(state); err != nil {
		return fmt.Errorf("persist memory store: %w", err)
	}
	return nil
}

// State returns a fresh snapshot of the persisted memory store.
func (e *Engine) State() *types.MemoryState {
	return e.states.Load(e.characterID)
}

// Status reports the engine's current counters.
func (e *Engine) Status() Status {
	state := e.states.Load(e.characterID)
	return Status{
		CharacterID:     e.characterID,
		MemoryCount:     len(state.Memories),
		MaxMemories:     e.cfg.MaxMemories,
		ConversationID:  e.conversationID,
		BufferSize:      len(e.buffer),
		TranscriptCount: e.transcripts.Count(e.characterID),
	}
}

// clampLimit applies the default for non-positive limits and the hard cap.
func (e *Engine) clampLimit(limit int) int {
	if limit <= 0 {
		limit = e.cfg.DefaultQueryLimit
	}
	if limit > e.cfg.MaxQueryLimit {
		limit = e.cfg.MaxQueryLimit
	}
	return limit
}

// newestFirst reverses chronological order and bounds the result.
func newestFirst(records []types.MemoryRecord, limit int) []types.MemoryRecord {
	out := make([]types.MemoryRecord, 0, limit)
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, records[i])
	}
	return out
}
