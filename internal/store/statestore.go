package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Brant123451/soulpack-reader/pkg/types"
)

// ErrCharacterMismatch is returned by Import when the imported state's
// characterId does not match the expected character.
var ErrCharacterMismatch = errors.New("state characterId does not match expected character")

// StateStore persists per-character Memory States, one
// <sanitized-id>.state.json file per character under <root>/soulpack-states.
// The file is the single source of truth: callers re-load before every
// mutation rather than caching across operations.
type StateStore struct {
	root string
}

// NewStateStore creates a StateStore rooted at the given storage directory.
func NewStateStore(root string) *StateStore {
	return &StateStore{root: root}
}

func (s *StateStore) path(characterID string) string {
	return filepath.Join(s.root, statesDir, sanitizeID(characterID)+stateSuffix)
}

// Load returns the current state for characterID. A missing, unreadable, or
// corrupt file degrades to an empty state, so Load never fails. Losing a
// stale store is preferable to failing an active conversation.
func (s *StateStore) Load(characterID string) *types.MemoryState {
	data, err := os.ReadFile(s.path(characterID))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("state for %q unreadable, starting empty: %v", characterID, err)
		}
		return types.NewMemoryState(characterID)
	}

	state, result := types.ParseState(data)
	if !result.OK {
		log.Printf("state for %q corrupt, starting empty: %s", characterID, result.Summary())
		return types.NewMemoryState(characterID)
	}
	if state.CharacterID != characterID {
		log.Printf("state file for %q carries characterId %q, starting empty", characterID, state.CharacterID)
		return types.NewMemoryState(characterID)
	}
	return state
}

// Save persists the state as a whole-file replace.
func (s *StateStore) Save(state *types.MemoryState) error {
	if state == nil || state.CharacterID == "" {
		return fmt.Errorf("state with characterId is required")
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return writeFileAtomic(s.path(state.CharacterID), data)
}

// Export returns the raw persisted JSON for characterID. A character with no
// state exports an empty state document.
func (s *StateStore) Export(characterID string) ([]byte, error) {
	state := s.Load(characterID)
	return json.MarshalIndent(state, "", "  ")
}

// Import validates raw state JSON and installs it as the state for
// expectedID. A characterId mismatch fails with ErrCharacterMismatch and
// leaves the existing state untouched.
func (s *StateStore) Import(expectedID string, data []byte) (*types.MemoryState, error) {
	state, result := types.ParseState(data)
	if !result.OK {
		return nil, fmt.Errorf("invalid state: %s", result.Summary())
	}
	if state.CharacterID != expectedID {
		return nil, fmt.Errorf("%w: got %q, expected %q",
			ErrCharacterMismatch, state.CharacterID, expectedID)
	}
	if err := s.Save(state); err != nil {
		return nil, err
	}
	return state, nil
}

// Delete removes the persisted state for characterID. Missing files are not
// an error.
func (s *StateStore) Delete(characterID string) error {
	err := os.Remove(s.path(characterID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete state for %q: %w", characterID, err)
	}
	return nil
}
