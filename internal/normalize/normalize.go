// Package normalize merges a Character Definition, an optional user Overlay,
// and a Memory Store snapshot into one immutable runtime view, and renders
// that view into the literal text injected as system context. Both steps are
// pure functions with no side effects.
package normalize

import (
	"github.com/Brant123451/soulpack-reader/pkg/types"
)

// DefaultPromptMemories bounds how many memory records the prompt injection
// renders, to avoid unbounded prompt growth.
const DefaultPromptMemories = 20

// RuntimeView is the merged, ready-to-render result of combining
// definition + overlay + store. It is recomputed on demand, never cached.
type RuntimeView struct {
	CharacterID  string
	DisplayName  string
	SystemPrompt string
	ContextNotes []string
	AvatarURL    string
	Emoji        string
	ThemeColor   string
	Expressions  map[string]string
	Voice        *types.VoiceConfig
	Language     string
	Assets       []types.Asset
	Extensions   types.Bag
	Memories     []types.MemoryRecord
}

// Normalize merges definition, overlay, and state with the fixed precedence:
//
//  1. Definition fields form the base.
//  2. A missing appearance avatar falls back to the first asset of type
//     "avatar".
//  3. The expression map starts from "avatar-expression" assets keyed by
//     label, then appearance entries overwrite on collision.
//  4. Overlay displayName / avatarUrl / voiceId / theme / language override;
//     absent overlay fields leave prior values untouched. The overlay voice
//     id is merged into a copy of the voice config, preserving other fields.
//  5. Memory records come from the store snapshot as-is, oldest first.
//
// Overlay and state may be nil. The definition is never mutated.
func Normalize(def *types.CharacterDefinition, overlay *types.Overlay, state *types.MemoryState) *RuntimeView {
	if def == nil {
		return nil
	}

	view := &RuntimeView{
		CharacterID:  def.CharacterID,
		DisplayName:  def.DisplayName,
		SystemPrompt: def.Persona.SystemPrompt,
		ContextNotes: def.Persona.ContextNotes,
		Voice:        def.Voice.Clone(),
		Assets:       def.Assets,
		Extensions:   def.Extensions,
	}
	if view.Voice != nil {
		view.Language = view.Voice.Language
	}

	if def.Appearance != nil {
		view.AvatarURL = def.Appearance.AvatarURL
		view.Emoji = def.Appearance.Emoji
		view.ThemeColor = def.Appearance.ThemeColor
	}
	if view.AvatarURL == "" {
		for _, asset := range def.Assets {
			if asset.Type == types.AssetTypeAvatar {
				view.AvatarURL = asset.URL
				break
			}
		}
	}

	view.Expressions = mergeExpressions(def)

	if overlay != nil {
		if overlay.DisplayName != "" {
			view.DisplayName = overlay.DisplayName
		}
		if overlay.AvatarURL != "" {
			view.AvatarURL = overlay.AvatarURL
		}
		if overlay.Theme != "" {
			view.ThemeColor = overlay.Theme
		}
		if overlay.Language != "" {
			view.Language = overlay.Language
		}
		if overlay.VoiceID != "" {
			if view.Voice == nil {
				view.Voice = &types.VoiceConfig{}
			}
			view.Voice.VoiceID = overlay.VoiceID
		}
	}

	if state != nil {
		view.Memories = state.Memories
	}

	return view
}

// mergeExpressions builds the expression map from labeled avatar-expression
// assets, then overlays appearance entries, which always win on collision.
func mergeExpressions(def *types.CharacterDefinition) map[string]string {
	merged := make(map[string]string)
	for _, asset := range def.Assets {
		if asset.Type == types.AssetTypeAvatarExpression && asset.Label != "" {
			merged[asset.Label] = asset.URL
		}
	}
	if def.Appearance != nil {
		for label, ref := range def.Appearance.Expressions {
			merged[label] = ref
		}
	}
	return merged
}
