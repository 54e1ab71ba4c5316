package engine

import (
	"fmt"

	"github.com/Brant123451/soulpack-reader/internal/extract"
	"github.com/Brant123451/soulpack-reader/internal/normalize"
	"github.com/Brant123451/soulpack-reader/internal/store"
	"github.com/Brant123451/soulpack-reader/pkg/types"
)

// Session owns the process's active character: its definition, its engine,
// and an optional overlay. It replaces hidden global "current character"
// state with an explicit value the transport layer passes into every
// operation; single-active-character-per-process semantics are preserved by
// owning exactly one Session.
type Session struct {
	packs       *store.PackStore
	states      *store.StateStore
	transcripts *store.TranscriptStore
	extractor   extract.Extractor
	cfg         Config

	promptMemories int

	active    *Engine
	activeDef *types.CharacterDefinition
	overlay   *types.Overlay
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithExtractor replaces the default rule-based fact extractor.
func WithExtractor(ex extract.Extractor) SessionOption {
	return func(s *Session) { s.extractor = ex }
}

// WithPromptMemories sets how many records the prompt injection renders.
func WithPromptMemories(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.promptMemories = n
		}
	}
}

// NewSession creates a session over the given stores.
func NewSession(packs *store.PackStore, states *store.StateStore, transcripts *store.TranscriptStore, cfg Config, opts ...SessionOption) (*Session, error) {
	if packs == nil || states == nil || transcripts == nil {
		return nil, fmt.Errorf("pack, state, and transcript stores are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	s := &Session{
		packs:          packs,
		states:         states,
		transcripts:    transcripts,
		cfg:            cfg,
		promptMemories: normalize.DefaultPromptMemories,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.extractor == nil {
		s.extractor = extract.NewRuleExtractor()
	}
	return s, nil
}

// Activate makes characterID the session's active character, creating a
// fresh engine for it. Any previous engine's in-memory conversation buffer
// is discarded; everything recorded so far has already been persisted
// synchronously. Returns (nil, nil) when the character is not installed.
func (s *Session) Activate(characterID string) (*Engine, error) {
	def, err := s.packs.Load(characterID)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, nil
	}

	eng, err := New(characterID, s.cfg, s.states, s.transcripts, s.extractor)
	if err != nil {
		return nil, err
	}

	s.active = eng
	s.activeDef = def
	if s.overlay != nil && s.overlay.CharacterID != characterID {
		s.overlay = nil
	}
	return eng, nil
}

// Deactivate drops the active character, discarding its buffer.
func (s *Session) Deactivate() {
	s.active = nil
	s.activeDef = nil
	s.overlay = nil
}

// Active returns the active engine, or nil when no character is active.
func (s *Session) Active() *Engine {
	return s.active
}

// ActiveDefinition returns the active character's definition, or nil.
func (s *Session) ActiveDefinition() *types.CharacterDefinition {
	return s.activeDef
}

// SetOverlay applies user overrides for the active character. The overlay's
// characterId must match the active character.
func (s *Session) SetOverlay(overlay *types.Overlay) error {
	if overlay == nil {
		s.overlay = nil
		return nil
	}
	if result := types.ValidateOverlay(overlay); !result.OK {
		return fmt.Errorf("invalid overlay: %s", result.Summary())
	}
	if s.activeDef == nil {
		return fmt.Errorf("no active character")
	}
	if overlay.CharacterID != s.activeDef.CharacterID {
		return fmt.Errorf("overlay is for %q, active character is %q",
			overlay.CharacterID, s.activeDef.CharacterID)
	}
	s.overlay = overlay
	return nil
}

// Overlay returns the session's overlay, or nil.
func (s *Session) Overlay() *types.Overlay {
	return s.overlay
}

// Install validates and persists a Character Definition locally.
func (s *Session) Install(def *types.CharacterDefinition) error {
	return s.packs.Save(def)
}

// ListCharacters returns all locally installed definitions.
func (s *Session) ListCharacters() ([]*types.CharacterDefinition, error) {
	return s.packs.List()
}

// Remove uninstalls a character's definition. The memory store and
// transcripts are kept; reinstalling the character restores its memories.
// When the removed character is active, it is deactivated first.
func (s *Session) Remove(characterID string) (bool, error) {
	if s.activeDef != nil && s.activeDef.CharacterID == characterID {
		s.Deactivate()
	}
	return s.packs.Remove(characterID)
}

// ExportState serializes the active character's memory store.
func (s *Session) ExportState() ([]byte, error) {
	if s.activeDef == nil {
		return nil, fmt.Errorf("no active character")
	}
	return s.states.Export(s.activeDef.CharacterID)
}

// ImportState replaces the active character's memory store with the given
// document. The document's characterId must match the active character; on
// mismatch the existing store is left untouched.
func (s *Session) ImportState(data []byte) (*types.MemoryState, error) {
	if s.activeDef == nil {
		return nil, fmt.Errorf("no active character")
	}
	return s.states.Import(s.activeDef.CharacterID, data)
}

// NormalizedView merges the active definition, overlay, and a fresh store
// snapshot into a runtime view. Returns nil when no character is active.
func (s *Session) NormalizedView() *normalize.RuntimeView {
	if s.active == nil || s.activeDef == nil {
		return nil
	}
	return normalize.Normalize(s.activeDef, s.overlay, s.active.State())
}

// BuildContext renders the active character's injectable system context.
// Returns "" when no character is active.
func (s *Session) BuildContext() string {
	view := s.NormalizedView()
	if view == nil {
		return ""
	}
	return normalize.BuildPromptInjection(view, s.promptMemories)
}
