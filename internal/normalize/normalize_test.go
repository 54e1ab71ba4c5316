package normalize

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Brant123451/soulpack-reader/pkg/types"
)

func baseDefinition() *types.CharacterDefinition {
	return &types.CharacterDefinition{
		SpecVersion: "1.0.0",
		CharacterID: "luna",
		DisplayName: "Luna",
		Persona: types.Persona{
			SystemPrompt: "You are Luna, a thoughtful night-owl companion.",
			ContextNotes: []string{"Speaks softly", "Loves astronomy"},
		},
	}
}

// Appearance expression entries must win over asset-derived entries with the
// same label.
func TestNormalize_AppearanceExpressionsWin(t *testing.T) {
	def := baseDefinition()
	def.Appearance = &types.Appearance{
		Expressions: map[string]string{"happy": "https://cdn.example/a.png"},
	}
	def.Assets = []types.Asset{
		{Type: types.AssetTypeAvatarExpression, Label: "happy", URL: "https://cdn.example/b.png"},
		{Type: types.AssetTypeAvatarExpression, Label: "sad", URL: "https://cdn.example/sad.png"},
	}

	view := Normalize(def, nil, nil)

	if got := view.Expressions["happy"]; got != "https://cdn.example/a.png" {
		t.Errorf(`expressions["happy"] = %s, want the appearance entry A`, got)
	}
	if got := view.Expressions["sad"]; got != "https://cdn.example/sad.png" {
		t.Errorf(`expressions["sad"] = %s, want the asset entry`, got)
	}
}

// A missing appearance avatar falls back to the first asset of type avatar.
func TestNormalize_AvatarAssetFallback(t *testing.T) {
	def := baseDefinition()
	def.Assets = []types.Asset{
		{Type: types.AssetTypeBackground, URL: "https://cdn.example/bg.png"},
		{Type: types.AssetTypeAvatar, URL: "https://cdn.example/first.png"},
		{Type: types.AssetTypeAvatar, URL: "https://cdn.example/second.png"},
	}

	view := Normalize(def, nil, nil)
	if view.AvatarURL != "https://cdn.example/first.png" {
		t.Errorf("avatarUrl = %s, want the first avatar asset", view.AvatarURL)
	}

	// An explicit appearance avatar takes precedence over assets.
	def.Appearance = &types.Appearance{AvatarURL: "https://cdn.example/explicit.png"}
	view = Normalize(def, nil, nil)
	if view.AvatarURL != "https://cdn.example/explicit.png" {
		t.Errorf("avatarUrl = %s, want the appearance value", view.AvatarURL)
	}
}

func TestNormalize_OverlayOverrides(t *testing.T) {
	def := baseDefinition()
	def.Voice = &types.VoiceConfig{
		Provider: types.VoiceProviderElevenLabs,
		VoiceID:  "original-voice",
		Language: "en-US",
		Speed:    1.1,
	}

	overlay := &types.Overlay{
		OverlayVersion: "1.0.0",
		CharacterID:    "luna",
		DisplayName:    "Moonbeam",
		VoiceID:        "custom-voice",
	}

	view := Normalize(def, overlay, nil)

	if view.DisplayName != "Moonbeam" {
		t.Errorf("displayName = %s, want overlay value", view.DisplayName)
	}
	if view.Voice.VoiceID != "custom-voice" {
		t.Errorf("voiceId = %s, want overlay value", view.Voice.VoiceID)
	}
	// Other voice fields are preserved through the merge.
	if view.Voice.Provider != types.VoiceProviderElevenLabs || view.Voice.Speed != 1.1 {
		t.Errorf("voice fields lost in overlay merge: %+v", view.Voice)
	}
	// The definition itself is never mutated.
	if def.Voice.VoiceID != "original-voice" {
		t.Errorf("definition was mutated: voiceId = %s", def.Voice.VoiceID)
	}
	// Absent overlay fields leave prior values untouched.
	if view.Language != "en-US" {
		t.Errorf("language = %s, want en-US", view.Language)
	}
}

func TestBuildPromptInjection_SectionsOmittedWhenAbsent(t *testing.T) {
	view := Normalize(baseDefinition(), nil, nil)
	out := BuildPromptInjection(view, 0)

	if !strings.Contains(out, `"Luna"`) {
		t.Error("header should name the character")
	}
	if !strings.Contains(out, "You are Luna, a thoughtful night-owl companion.") {
		t.Error("system prompt should appear verbatim")
	}
	if !strings.Contains(out, "## Context Notes") {
		t.Error("context notes section missing")
	}
	if !strings.Contains(out, "- Speaks softly") {
		t.Error("context note bullet missing")
	}
	for _, absent := range []string{"## Voice Configuration", "## Appearance", "## Soul Memories"} {
		if strings.Contains(out, absent) {
			t.Errorf("section %q should be omitted when its data is absent", absent)
		}
	}
}

func TestBuildPromptInjection_VoiceAndAppearance(t *testing.T) {
	def := baseDefinition()
	def.Voice = &types.VoiceConfig{Provider: "openai", VoiceID: "nova", Language: "en-GB"}
	def.Appearance = &types.Appearance{
		AvatarURL:   "https://cdn.example/luna.png",
		Expressions: map[string]string{"happy": "h.png", "curious": "c.png"},
	}

	out := BuildPromptInjection(Normalize(def, nil, nil), 0)

	if !strings.Contains(out, "## Voice Configuration") {
		t.Fatal("voice section missing")
	}
	if !strings.Contains(out, "voice: nova") || !strings.Contains(out, "language: en-GB") {
		t.Errorf("voice details missing: %s", out)
	}
	if !strings.Contains(out, "Avatar: https://cdn.example/luna.png") {
		t.Error("avatar line missing")
	}
	if !strings.Contains(out, "curious, happy") {
		t.Errorf("expression labels should be listed sorted: %s", out)
	}
	if !strings.Contains(out, "[[curious]]") {
		t.Error("mood-signal instruction missing")
	}
}

// The memories section renders the most recent records bounded by the
// window, in chronological order (oldest of the window first).
func TestBuildPromptInjection_MemoryWindow(t *testing.T) {
	def := baseDefinition()
	state := types.NewMemoryState("luna")
	for i := 0; i < 30; i++ {
		state.Append(types.MemoryRecord{
			ID:        fmt.Sprintf("mem_%02d", i),
			Content:   fmt.Sprintf("memory number %02d", i),
			Timestamp: time.Date(2026, 1, 1+i%27, 0, 0, 0, 0, time.UTC),
		}, 0)
	}

	out := BuildPromptInjection(Normalize(def, nil, state), 20)

	if !strings.Contains(out, "## Soul Memories") {
		t.Fatal("memories section missing")
	}
	if strings.Contains(out, "memory number 09") {
		t.Error("records outside the 20-record window should not render")
	}
	if !strings.Contains(out, "memory number 10") || !strings.Contains(out, "memory number 29") {
		t.Error("window should cover the most recent 20 records")
	}
	// Oldest-of-the-window renders before the newest.
	if strings.Index(out, "memory number 10") > strings.Index(out, "memory number 29") {
		t.Error("memories should render in chronological order")
	}
}
