package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Brant123451/soulpack-reader/pkg/types"
)

// PackStore manages locally installed Character Definitions, one
// <sanitized-id>.soulpack.json file per character under <root>/packs.
type PackStore struct {
	root string
}

// NewPackStore creates a PackStore rooted at the given storage directory.
func NewPackStore(root string) *PackStore {
	return &PackStore{root: root}
}

func (s *PackStore) path(characterID string) string {
	return filepath.Join(s.root, packsDir, sanitizeID(characterID)+packSuffix)
}

// Save validates and persists a Character Definition. Validation failures
// are returned as an error listing every reason so install callers can
// surface them verbatim.
func (s *PackStore) Save(def *types.CharacterDefinition) error {
	if result := types.ValidatePack(def); !result.OK {
		return fmt.Errorf("invalid character definition: %s", result.Summary())
	}
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}
	return writeFileAtomic(s.path(def.CharacterID), data)
}

// Load reads and validates the definition for characterID.
// Returns (nil, nil) when the character is not installed: an expected,
// recoverable outcome, not an error.
func (s *PackStore) Load(characterID string) (*types.CharacterDefinition, error) {
	data, err := os.ReadFile(s.path(characterID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read definition for %q: %w", characterID, err)
	}
	def, result := types.ParsePack(data)
	if !result.OK {
		return nil, fmt.Errorf("definition for %q is invalid: %s", characterID, result.Summary())
	}
	return def, nil
}

// Exists reports whether a definition file is installed for characterID.
func (s *PackStore) Exists(characterID string) bool {
	_, err := os.Stat(s.path(characterID))
	return err == nil
}

// Remove deletes the definition for characterID. Returns false when no
// definition was installed.
func (s *PackStore) Remove(characterID string) (bool, error) {
	err := os.Remove(s.path(characterID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("remove definition for %q: %w", characterID, err)
	}
	return true, nil
}

// List returns the definitions of all installed characters, sorted by
// character id. Unreadable or invalid files are skipped.
func (s *PackStore) List() ([]*types.CharacterDefinition, error) {
	dir := filepath.Join(s.root, packsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list packs: %w", err)
	}

	var defs []*types.CharacterDefinition
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), packSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		def, result := types.ParsePack(data)
		if !result.OK {
			continue
		}
		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].CharacterID < defs[j].CharacterID })
	return defs, nil
}
