package engine

import (
	"strings"
	"testing"

	"github.com/Brant123451/soulpack-reader/internal/store"
	"github.com/Brant123451/soulpack-reader/pkg/types"
)

func testDefinition(id string) *types.CharacterDefinition {
	return &types.CharacterDefinition{
		SpecVersion: types.CurrentPackVersion,
		CharacterID: id,
		DisplayName: "Luna",
		Persona: types.Persona{
			SystemPrompt: "You are Luna, a thoughtful companion.",
		},
	}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	root := t.TempDir()
	s, err := NewSession(
		store.NewPackStore(root),
		store.NewStateStore(root),
		store.NewTranscriptStore(root, 50),
		DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return s
}

func TestSession_ActivateNotInstalled(t *testing.T) {
	s := newTestSession(t)

	eng, err := s.Activate("ghost")
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if eng != nil {
		t.Error("expected nil engine for an uninstalled character")
	}
	if s.Active() != nil {
		t.Error("session should have no active character")
	}
}

func TestSession_InstallActivateRemove(t *testing.T) {
	s := newTestSession(t)

	if err := s.Install(testDefinition("luna")); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	eng, err := s.Activate("luna")
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if eng == nil {
		t.Fatal("expected an engine for the installed character")
	}
	if s.ActiveDefinition().DisplayName != "Luna" {
		t.Errorf("active definition = %+v", s.ActiveDefinition())
	}

	list, err := s.ListCharacters()
	if err != nil || len(list) != 1 {
		t.Fatalf("ListCharacters = %d defs, err %v", len(list), err)
	}

	removed, err := s.Remove("luna")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if s.Active() != nil || s.ActiveDefinition() != nil {
		t.Error("removing the active character must deactivate it")
	}

	removed, err = s.Remove("luna")
	if err != nil {
		t.Fatalf("second Remove errored: %v", err)
	}
	if removed {
		t.Error("expected false for an already-removed character")
	}
}

func TestSession_MemoriesSurviveReinstall(t *testing.T) {
	s := newTestSession(t)

	if err := s.Install(testDefinition("luna")); err != nil {
		t.Fatal(err)
	}
	eng, err := s.Activate("luna")
	if err != nil || eng == nil {
		t.Fatalf("Activate = %v, %v", eng, err)
	}
	if _, err := eng.AddManualMemory("remembers the sea", nil); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Remove("luna"); err != nil {
		t.Fatal(err)
	}
	if err := s.Install(testDefinition("luna")); err != nil {
		t.Fatal(err)
	}
	eng, err = s.Activate("luna")
	if err != nil || eng == nil {
		t.Fatalf("re-Activate = %v, %v", eng, err)
	}

	if got := eng.GetMemories(10); len(got) != 1 || got[0].Content != "remembers the sea" {
		t.Errorf("memories after reinstall = %+v", got)
	}
}

func TestSession_OverlayRules(t *testing.T) {
	s := newTestSession(t)

	overlay := &types.Overlay{
		OverlayVersion: types.CurrentOverlayVersion,
		CharacterID:    "luna",
		DisplayName:    "Moonbeam",
	}

	// No active character.
	if err := s.SetOverlay(overlay); err == nil {
		t.Error("expected error applying overlay with no active character")
	}

	if err := s.Install(testDefinition("luna")); err != nil {
		t.Fatal(err)
	}
	if err := s.Install(testDefinition("atlas")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Activate("luna"); err != nil {
		t.Fatal(err)
	}

	// Character mismatch.
	wrong := &types.Overlay{
		OverlayVersion: types.CurrentOverlayVersion,
		CharacterID:    "atlas",
	}
	if err := s.SetOverlay(wrong); err == nil {
		t.Error("expected error for mismatched overlay")
	}

	if err := s.SetOverlay(overlay); err != nil {
		t.Fatalf("SetOverlay failed: %v", err)
	}
	if s.Overlay() == nil {
		t.Fatal("overlay not stored")
	}

	// Switching characters drops an overlay that no longer applies.
	if _, err := s.Activate("atlas"); err != nil {
		t.Fatal(err)
	}
	if s.Overlay() != nil {
		t.Error("overlay for a different character must be dropped on activation")
	}
}

func TestSession_BuildContext(t *testing.T) {
	s := newTestSession(t)

	if ctx := s.BuildContext(); ctx != "" {
		t.Errorf("expected empty context with no active character, got %q", ctx)
	}

	def := testDefinition("luna")
	def.Persona.ContextNotes = []string{"Speaks softly."}
	if err := s.Install(def); err != nil {
		t.Fatal(err)
	}
	eng, err := s.Activate("luna")
	if err != nil || eng == nil {
		t.Fatalf("Activate = %v, %v", eng, err)
	}
	if _, err := eng.AddManualMemory("User introduced themselves as Ming", nil); err != nil {
		t.Fatal(err)
	}

	if err := s.SetOverlay(&types.Overlay{
		OverlayVersion: types.CurrentOverlayVersion,
		CharacterID:    "luna",
		DisplayName:    "Moonbeam",
	}); err != nil {
		t.Fatal(err)
	}

	ctx := s.BuildContext()
	if !strings.Contains(ctx, `"Moonbeam"`) {
		t.Errorf("context should use the overlay display name:\n%s", ctx)
	}
	if !strings.Contains(ctx, "You are Luna, a thoughtful companion.") {
		t.Error("context should carry the system prompt verbatim")
	}
	if !strings.Contains(ctx, "Speaks softly.") {
		t.Error("context should include context notes")
	}
	if !strings.Contains(ctx, "User introduced themselves as Ming") {
		t.Error("context should include stored memories")
	}
}
