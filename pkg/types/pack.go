// Package types defines the on-disk document formats shared across the
// soulpack system: the Character Definition ("pack"), the per-character
// Memory Store ("state"), the user Overlay, and conversation Transcripts.
// All three versioned formats carry their own semantic-version field and are
// validated with structured results rather than errors so that install and
// import code paths can report every failed rule.
package types

import "encoding/json"

// Recognized voice providers. The provider field is an open string; these
// are the values the renderer knows how to phrase instructions for.
const (
	VoiceProviderOpenAI     = "openai"
	VoiceProviderElevenLabs = "elevenlabs"
	VoiceProviderEdge       = "edge"
)

// Recognized asset types. The type field is an open string; unrecognized
// types are carried through untouched.
const (
	AssetTypeAvatar           = "avatar"
	AssetTypeAvatarExpression = "avatar-expression"
	AssetTypeVoice            = "voice"
	AssetTypeBackground       = "background"
	AssetTypeModel3D          = "model3d"
	AssetTypeLive2D           = "live2d"
	AssetTypeBGM              = "bgm"
	AssetTypeEmoji            = "emoji"
)

// CharacterDefinition is the immutable, distributable description of a
// character. It is created and edited externally and read-only to this
// system: loaded on selection and held in memory while the character is
// active.
type CharacterDefinition struct {
	SpecVersion string       `json:"specVersion"`          // Format version (semver)
	CharacterID string       `json:"characterId"`          // Globally unique, URL-safe identifier
	DisplayName string       `json:"displayName"`          // Human-readable name
	Persona     Persona      `json:"persona"`              // Prompt material (required)
	Voice       *VoiceConfig `json:"voice,omitempty"`      // TTS preferences
	Appearance  *Appearance  `json:"appearance,omitempty"` // Visual preferences
	Assets      []Asset      `json:"assets,omitempty"`     // Ordered asset list
	Extensions  Bag          `json:"extensions,omitempty"` // Open namespaced extension bag
}

// Persona holds the prompt-facing description of the character.
type Persona struct {
	SystemPrompt string   `json:"systemPrompt"`           // Required, injected verbatim
	Name         string   `json:"name,omitempty"`         // In-character name
	Description  string   `json:"description,omitempty"`  //
	ContextNotes []string `json:"contextNotes,omitempty"` // Appended verbatim, order preserved
}

// VoiceConfig describes TTS preferences for the character.
type VoiceConfig struct {
	Provider  string  `json:"provider,omitempty"`  // openai | elevenlabs | edge | other
	VoiceID   string  `json:"voiceId,omitempty"`   //
	ModelID   string  `json:"modelId,omitempty"`   //
	Language  string  `json:"language,omitempty"`  // BCP-47
	Speed     float64 `json:"speed,omitempty"`     // 0.5 - 2.0
	Stability float64 `json:"stability,omitempty"` // 0 - 1, provider-specific
	Extra     Bag     `json:"extra,omitempty"`     //
}

// Clone returns a copy of the voice config so that overlay merging never
// mutates the definition it started from.
func (v *VoiceConfig) Clone() *VoiceConfig {
	if v == nil {
		return nil
	}
	out := *v
	out.Extra = v.Extra.Clone()
	return &out
}

// Appearance describes visual preferences for the character.
type Appearance struct {
	AvatarURL   string            `json:"avatarUrl,omitempty"`
	Emoji       string            `json:"emoji,omitempty"`
	ThemeColor  string            `json:"themeColor,omitempty"`
	Expressions map[string]string `json:"expressions,omitempty"` // emotion label -> image reference
	Extra       Bag               `json:"extra,omitempty"`
}

// Asset is a single distributable file reference in a pack.
type Asset struct {
	Type     string `json:"type"` // Required (avatar, voice, background, ...)
	URL      string `json:"url"`  // Required
	Label    string `json:"label,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Required bool   `json:"required,omitempty"`
	Meta     Bag    `json:"meta,omitempty"`
}

// ValidatePack checks a Character Definition against the format invariants.
// A definition missing specVersion, characterId, displayName, or
// persona.systemPrompt is invalid; each missing field produces a reason
// naming it.
func ValidatePack(def *CharacterDefinition) ValidationResult {
	result := validResult()
	if def == nil {
		result.addErrorf("definition is nil")
		return result
	}

	checkFormatVersion(&result, "specVersion", def.SpecVersion, PackFormatMajor)
	if def.CharacterID == "" {
		result.addErrorf("characterId is required")
	}
	if def.DisplayName == "" {
		result.addErrorf("displayName is required")
	}
	if def.Persona.SystemPrompt == "" {
		result.addErrorf("persona.systemPrompt is required")
	}

	if def.Voice != nil {
		if s := def.Voice.Speed; s != 0 && (s < 0.5 || s > 2.0) {
			result.addErrorf("voice.speed %v is out of range [0.5, 2.0]", s)
		}
		if st := def.Voice.Stability; st < 0 || st > 1 {
			result.addErrorf("voice.stability %v is out of range [0, 1]", st)
		}
	}

	for i, asset := range def.Assets {
		if asset.Type == "" {
			result.addErrorf("assets[%d].type is required", i)
		}
		if asset.URL == "" {
			result.addErrorf("assets[%d].url is required", i)
		}
	}

	return result
}

// ParsePack unmarshals and validates raw Character Definition JSON.
// Unknown fields never cause rejection: the extension bags preserve them,
// and unrecognized top-level keys are ignored per the minor-version contract.
func ParsePack(data []byte) (*CharacterDefinition, ValidationResult) {
	var def CharacterDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		result := ValidationResult{}
		result.addErrorf("invalid JSON: %v", err)
		return nil, result
	}
	result := ValidatePack(&def)
	if !result.OK {
		return nil, result
	}
	return &def, result
}
