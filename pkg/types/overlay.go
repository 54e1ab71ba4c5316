package types

import "encoding/json"

// Overlay holds user-supplied field overrides applied on top of a Character
// Definition at normalization time. It never mutates the definition or the
// memory store. Absent fields leave the underlying value untouched.
type Overlay struct {
	OverlayVersion string `json:"overlayVersion"`
	CharacterID    string `json:"characterId"`
	DisplayName    string `json:"displayName,omitempty"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
	VoiceID        string `json:"voiceId,omitempty"`
	Theme          string `json:"theme,omitempty"`
	Language       string `json:"language,omitempty"`
	Custom         Bag    `json:"custom,omitempty"`
}

// ValidateOverlay checks an Overlay document against the format invariants.
func ValidateOverlay(overlay *Overlay) ValidationResult {
	result := validResult()
	if overlay == nil {
		result.addErrorf("overlay is nil")
		return result
	}
	checkFormatVersion(&result, "overlayVersion", overlay.OverlayVersion, OverlayFormatMajor)
	if overlay.CharacterID == "" {
		result.addErrorf("characterId is required")
	}
	return result
}

// ParseOverlay unmarshals and validates raw Overlay JSON.
func ParseOverlay(data []byte) (*Overlay, ValidationResult) {
	var overlay Overlay
	if err := json.Unmarshal(data, &overlay); err != nil {
		result := ValidationResult{}
		result.addErrorf("invalid JSON: %v", err)
		return nil, result
	}
	result := ValidateOverlay(&overlay)
	if !result.OK {
		return nil, result
	}
	return &overlay, result
}
