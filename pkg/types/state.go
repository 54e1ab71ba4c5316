package types

import (
	"encoding/json"
	"time"
)

// Well-known memory record tags produced by the fact extractor.
const (
	TagUserFact       = "user_fact"
	TagPreference     = "preference"
	TagExchange       = "exchange"
	TagSessionSummary = "session_summary"
	TagKeyExchange    = "key_exchange"
	TagManual         = "manual"
)

// MemoryRecord is a single durable memory. Records are immutable after
// creation; they are only ever deleted (individually, or oldest-first when
// the store exceeds its cap).
type MemoryRecord struct {
	ID        string    `json:"id"`                  // Unique, time+sequence derived
	Content   string    `json:"content"`             // Bounded text summary
	Timestamp time.Time `json:"timestamp"`           // Creation time
	SessionID string    `json:"sessionId,omitempty"` // Conversation the record came from
	Tags      []string  `json:"tags,omitempty"`      // Unordered labels
}

// HasTag reports whether the record carries the given tag.
func (r *MemoryRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// MemoryState is the private, per-character memory store. Memories are kept
// in chronological order, oldest first. The store file on disk is the single
// source of truth; it is re-read on demand rather than cached.
type MemoryState struct {
	StateVersion string         `json:"stateVersion"`
	CharacterID  string         `json:"characterId"`
	Memories     []MemoryRecord `json:"memories"`
	LastUpdated  time.Time      `json:"lastUpdated"`
}

// NewMemoryState returns an empty state for the given character.
func NewMemoryState(characterID string) *MemoryState {
	return &MemoryState{
		StateVersion: CurrentStateVersion,
		CharacterID:  characterID,
		Memories:     []MemoryRecord{},
		LastUpdated:  time.Now().UTC(),
	}
}

// Append adds a record and evicts oldest-first down to maxMemories.
// A non-positive cap disables eviction.
func (s *MemoryState) Append(record MemoryRecord, maxMemories int) {
	s.Memories = append(s.Memories, record)
	if maxMemories > 0 && len(s.Memories) > maxMemories {
		s.Memories = s.Memories[len(s.Memories)-maxMemories:]
	}
	s.LastUpdated = time.Now().UTC()
}

// ValidateState checks a Memory State document against the format invariants.
func ValidateState(state *MemoryState) ValidationResult {
	result := validResult()
	if state == nil {
		result.addErrorf("state is nil")
		return result
	}
	checkFormatVersion(&result, "stateVersion", state.StateVersion, StateFormatMajor)
	if state.CharacterID == "" {
		result.addErrorf("characterId is required")
	}
	for i, m := range state.Memories {
		if m.ID == "" {
			result.addErrorf("memories[%d].id is required", i)
		}
		if m.Content == "" {
			result.addErrorf("memories[%d].content is required", i)
		}
	}
	return result
}

// ParseState unmarshals and validates raw Memory State JSON.
func ParseState(data []byte) (*MemoryState, ValidationResult) {
	var state MemoryState
	if err := json.Unmarshal(data, &state); err != nil {
		result := ValidationResult{}
		result.addErrorf("invalid JSON: %v", err)
		return nil, result
	}
	result := ValidateState(&state)
	if !result.OK {
		return nil, result
	}
	if state.Memories == nil {
		state.Memories = []MemoryRecord{}
	}
	return &state, result
}
