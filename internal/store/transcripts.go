package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Brant123451/soulpack-reader/pkg/types"
)

// TranscriptStore persists literal conversation logs, one JSON file per
// conversation under <root>/transcripts/<sanitized-character>/. Appends are
// read-merge-rewrite: the whole file is rewritten on every exchange so that
// a process restart mid-conversation never loses already-recorded messages.
type TranscriptStore struct {
	root            string
	maxPerCharacter int
}

// NewTranscriptStore creates a TranscriptStore rooted at the given storage
// directory. maxPerCharacter caps transcript files per character; older
// files (by modification time) are deleted when the cap is exceeded.
func NewTranscriptStore(root string, maxPerCharacter int) *TranscriptStore {
	return &TranscriptStore{root: root, maxPerCharacter: maxPerCharacter}
}

func (s *TranscriptStore) characterDir(characterID string) string {
	return filepath.Join(s.root, transcriptsDir, sanitizeID(characterID))
}

func (s *TranscriptStore) path(characterID, conversationID string) string {
	return filepath.Join(s.characterDir(characterID), sanitizeID(conversationID)+".json")
}

// Append adds messages to the transcript for the given conversation,
// creating it on first use. The file is rewritten in full with updated
// endedAt and messageCount.
func (s *TranscriptStore) Append(characterID, conversationID string, msgs ...types.TranscriptMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	transcript, err := s.Load(characterID, conversationID)
	if err != nil {
		// A corrupt transcript is replaced rather than blocking recording.
		log.Printf("transcript %s/%s unreadable, starting fresh: %v", characterID, conversationID, err)
		transcript = nil
	}
	if transcript == nil {
		transcript = &types.Transcript{
			CharacterID:    characterID,
			ConversationID: conversationID,
			StartedAt:      msgs[0].Timestamp,
		}
	}
	transcript.AppendMessages(msgs...)
	return s.write(transcript)
}

// WriteFull persists a complete transcript in a single write (batch mode).
func (s *TranscriptStore) WriteFull(transcript *types.Transcript) error {
	if transcript == nil || transcript.CharacterID == "" || transcript.ConversationID == "" {
		return fmt.Errorf("transcript with characterId and conversationId is required")
	}
	transcript.MessageCount = len(transcript.Messages)
	return s.write(transcript)
}

func (s *TranscriptStore) write(transcript *types.Transcript) error {
	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	return writeFileAtomic(s.path(transcript.CharacterID, transcript.ConversationID), data)
}

// Load reads the transcript for a conversation. Returns (nil, nil) when no
// transcript exists yet.
func (s *TranscriptStore) Load(characterID, conversationID string) (*types.Transcript, error) {
	data, err := os.ReadFile(s.path(characterID, conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	var transcript types.Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return &transcript, nil
}

// List returns the conversation ids (sanitized form) with transcripts for
// characterID, most recently modified first.
func (s *TranscriptStore) List(characterID string) ([]string, error) {
	files, err := s.filesByAge(characterID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(files))
	for i := len(files) - 1; i >= 0; i-- { // filesByAge is oldest-first
		ids = append(ids, strings.TrimSuffix(filepath.Base(files[i].path), ".json"))
	}
	return ids, nil
}

// Count returns the number of transcript files for characterID.
func (s *TranscriptStore) Count(characterID string) int {
	files, err := s.filesByAge(characterID)
	if err != nil {
		return 0
	}
	return len(files)
}

// EnforceRetention deletes the least-recently-modified transcript files for
// characterID until the per-character cap is satisfied. Deletion failures
// are swallowed: retention is best-effort housekeeping, never fatal.
// Returns the number of files deleted.
func (s *TranscriptStore) EnforceRetention(characterID string) int {
	if s.maxPerCharacter <= 0 {
		return 0
	}
	files, err := s.filesByAge(characterID)
	if err != nil || len(files) <= s.maxPerCharacter {
		return 0
	}

	deleted := 0
	for _, f := range files[:len(files)-s.maxPerCharacter] {
		if err := os.Remove(f.path); err != nil {
			log.Printf("transcript retention: failed to delete %s: %v", f.path, err)
			continue
		}
		deleted++
	}
	return deleted
}

type transcriptFile struct {
	path    string
	modTime time.Time
}

// filesByAge lists transcript files for a character, oldest-modified first.
func (s *TranscriptStore) filesByAge(characterID string) ([]transcriptFile, error) {
	dir := s.characterDir(characterID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list transcripts: %w", err)
	}

	var files []transcriptFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, transcriptFile{
			path:    filepath.Join(dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	return files, nil
}
