package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/Brant123451/soulpack-reader/internal/extract"
	"github.com/Brant123451/soulpack-reader/internal/store"
	"github.com/Brant123451/soulpack-reader/pkg/types"
)

// fixedExtractor returns a fixed number of candidates per exchange,
// regardless of input. Used to make eviction arithmetic deterministic.
type fixedExtractor struct {
	perExchange int
	calls       int
}

func (f *fixedExtractor) ExtractExchange(userText, assistantText string) []extract.FactCandidate {
	f.calls++
	out := make([]extract.FactCandidate, 0, f.perExchange)
	for i := 0; i < f.perExchange; i++ {
		out = append(out, extract.FactCandidate{
			Content: fmt.Sprintf("call %d candidate %d", f.calls, i),
			Tags:    []string{types.TagUserFact},
		})
	}
	return out
}

func (f *fixedExtractor) ExtractBatch(messages []types.TranscriptMessage) []extract.FactCandidate {
	return f.ExtractExchange("", "")
}

func newTestEngine(t *testing.T, cfg Config, ex extract.Extractor) *Engine {
	t.Helper()
	root := t.TempDir()
	eng, err := New("luna", cfg,
		store.NewStateStore(root),
		store.NewTranscriptStore(root, 50),
		ex)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return eng
}

func TestRecord_ChineseSelfDisclosure(t *testing.T) {
	eng := newTestEngine(t, DefaultConfig(), nil)

	result, err := eng.Record("我叫小明，我喜欢摄影", "很高兴认识你！", "")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if result.RecordsAdded < 2 {
		t.Errorf("expected at least 2 records (fact + summary), got %d", result.RecordsAdded)
	}
	if result.ConversationID == "" {
		t.Error("expected an implicitly started conversation id")
	}

	if facts := eng.GetMemoriesByTag(types.TagUserFact, 10); len(facts) == 0 {
		t.Error("expected at least one user_fact record")
	}
	if summaries := eng.GetMemoriesByTag(types.TagExchange, 10); len(summaries) != 1 {
		t.Errorf("expected exactly 1 exchange summary, got %d", len(summaries))
	}
}

// With maxMemories=3 and 2 records per exchange, five exchanges must leave
// exactly 3 records, all from the most recent inserts.
func TestRecord_FIFOEvictionAtCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMemories = 3
	ex := &fixedExtractor{perExchange: 2}
	eng := newTestEngine(t, cfg, ex)

	for i := 0; i < 5; i++ {
		if _, err := eng.Record("u", "a", "conv-1"); err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}

	state := eng.State()
	if len(state.Memories) != 3 {
		t.Fatalf("store length = %d, want exactly 3", len(state.Memories))
	}
	// The survivors are the 3 newest by insertion: call 4 candidate 1,
	// call 5 candidates 0 and 1.
	want := []string{"call 4 candidate 1", "call 5 candidate 0", "call 5 candidate 1"}
	for i, w := range want {
		if state.Memories[i].Content != w {
			t.Errorf("memories[%d] = %q, want %q", i, state.Memories[i].Content, w)
		}
	}
}

func TestSearchMemories_CaseInsensitiveAndLimited(t *testing.T) {
	eng := newTestEngine(t, DefaultConfig(), &fixedExtractor{})

	for i := 0; i < 5; i++ {
		if _, err := eng.AddManualMemory(fmt.Sprintf("User enjoys Photography session %d", i), nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := eng.AddManualMemory("User dislikes loud music", nil); err != nil {
		t.Fatal(err)
	}

	matches := eng.SearchMemories("photography", 3)
	if len(matches) != 3 {
		t.Fatalf("expected limit of 3 results, got %d", len(matches))
	}
	// Most recent matches first.
	if matches[0].Content != "User enjoys Photography session 4" {
		t.Errorf("first match = %q, want the newest", matches[0].Content)
	}
	for _, m := range matches {
		if m.Content == "User dislikes loud music" {
			t.Error("non-matching record returned")
		}
	}

	if none := eng.SearchMemories("gardening", 10); len(none) != 0 {
		t.Errorf("expected no matches, got %d", len(none))
	}
}

func TestSearchMemories_HardCap(t *testing.T) {
	cfg := DefaultConfig()
	eng := newTestEngine(t, cfg, &fixedExtractor{})

	for i := 0; i < 60; i++ {
		if _, err := eng.AddManualMemory(fmt.Sprintf("note %d", i), nil); err != nil {
			t.Fatal(err)
		}
	}

	if got := len(eng.SearchMemories("note", 500)); got != cfg.MaxQueryLimit {
		t.Errorf("expected hard cap of %d, got %d", cfg.MaxQueryLimit, got)
	}
	// Default applies when limit is unset.
	if got := len(eng.SearchMemories("note", 0)); got != cfg.DefaultQueryLimit {
		t.Errorf("expected default limit %d, got %d", cfg.DefaultQueryLimit, got)
	}
}

// Deleting a non-existent id returns false and leaves the store unchanged.
func TestDeleteMemory_NonExistent(t *testing.T) {
	eng := newTestEngine(t, DefaultConfig(), &fixedExtractor{})

	added, err := eng.AddManualMemory("keep me", []string{"pin"})
	if err != nil {
		t.Fatal(err)
	}

	before := eng.State()
	removed, err := eng.DeleteMemory("mem_does_not_exist")
	if err != nil {
		t.Fatalf("DeleteMemory failed: %v", err)
	}
	if removed {
		t.Error("expected false for non-existent id")
	}

	after := eng.State()
	if len(after.Memories) != len(before.Memories) {
		t.Errorf("record count changed: %d -> %d", len(before.Memories), len(after.Memories))
	}
	if after.Memories[0].ID != added.ID || after.Memories[0].Content != "keep me" {
		t.Errorf("store contents changed: %+v", after.Memories[0])
	}

	// And the existing record is deletable.
	removed, err = eng.DeleteMemory(added.ID)
	if err != nil || !removed {
		t.Fatalf("expected successful delete, got removed=%v err=%v", removed, err)
	}
	if len(eng.State().Memories) != 0 {
		t.Error("store should be empty after delete")
	}
}

func TestClearMemories(t *testing.T) {
	eng := newTestEngine(t, DefaultConfig(), &fixedExtractor{})
	if _, err := eng.AddManualMemory("something", nil); err != nil {
		t.Fatal(err)
	}

	if err := eng.ClearMemories(); err != nil {
		t.Fatalf("ClearMemories failed: %v", err)
	}
	if n := len(eng.State().Memories); n != 0 {
		t.Errorf("expected empty store, got %d records", n)
	}
}

func TestConversationLifecycle(t *testing.T) {
	eng := newTestEngine(t, DefaultConfig(), &fixedExtractor{perExchange: 1})

	id := eng.StartConversation("conv-morning")
	if id != "conv-morning" {
		t.Errorf("conversation id = %s", id)
	}

	if _, err := eng.Record("hello", "hi there", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Record("how are you", "well, thanks", ""); err != nil {
		t.Fatal(err)
	}

	status := eng.Status()
	if status.ConversationID != "conv-morning" {
		t.Errorf("status conversation = %s", status.ConversationID)
	}
	if status.BufferSize != 4 {
		t.Errorf("buffer size = %d, want 4", status.BufferSize)
	}
	if status.TranscriptCount != 1 {
		t.Errorf("transcript count = %d, want 1", status.TranscriptCount)
	}

	eng.EndConversation()
	status = eng.Status()
	if status.ConversationID != "" || status.BufferSize != 0 {
		t.Errorf("expected cleared conversation state, got %+v", status)
	}
	// Transcript data survives the conversation ending.
	if status.TranscriptCount != 1 {
		t.Errorf("transcript deleted on end: count = %d", status.TranscriptCount)
	}
}

func TestRecord_TranscriptWriteThrough(t *testing.T) {
	root := t.TempDir()
	transcripts := store.NewTranscriptStore(root, 50)
	eng, err := New("luna", DefaultConfig(), store.NewStateStore(root), transcripts, &fixedExtractor{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := eng.Record("first question", "first answer", "conv-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Record("second question", "second answer", ""); err != nil {
		t.Fatal(err)
	}

	// Every exchange is persisted before Record returns, incrementally.
	transcript, err := transcripts.Load("luna", "conv-1")
	if err != nil {
		t.Fatal(err)
	}
	if transcript == nil {
		t.Fatal("transcript not written")
	}
	if transcript.MessageCount != 4 {
		t.Errorf("message count = %d, want 4", transcript.MessageCount)
	}
	if transcript.Messages[0].Role != types.RoleUser || transcript.Messages[0].Content != "first question" {
		t.Errorf("messages[0] = %+v", transcript.Messages[0])
	}
	if transcript.Messages[3].Role != types.RoleAssistant || transcript.Messages[3].Content != "second answer" {
		t.Errorf("messages[3] = %+v", transcript.Messages[3])
	}
}

func TestRecordBatch(t *testing.T) {
	root := t.TempDir()
	transcripts := store.NewTranscriptStore(root, 50)
	eng, err := New("luna", DefaultConfig(), store.NewStateStore(root), transcripts, nil)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	msgs := []types.TranscriptMessage{
		{Role: types.RoleUser, Content: "我叫小明", Timestamp: now},
		{Role: types.RoleAssistant, Content: "你好，小明", Timestamp: now.Add(time.Second)},
		{Role: types.RoleUser, Content: "请记住我喜欢摄影", Timestamp: now.Add(2 * time.Second)},
		{Role: types.RoleAssistant, Content: "记住了", Timestamp: now.Add(3 * time.Second)},
	}

	result, err := eng.RecordBatch(msgs, "imported-1")
	if err != nil {
		t.Fatalf("RecordBatch failed: %v", err)
	}
	if result.RecordsAdded < 2 {
		t.Errorf("expected facts plus a summary, got %d records", result.RecordsAdded)
	}
	if result.ConversationID != "imported-1" {
		t.Errorf("conversation id = %s", result.ConversationID)
	}

	if summaries := eng.GetMemoriesByTag(types.TagSessionSummary, 10); len(summaries) != 1 {
		t.Errorf("expected exactly 1 session summary, got %d", len(summaries))
	}

	transcript, err := transcripts.Load("luna", "imported-1")
	if err != nil || transcript == nil {
		t.Fatalf("batch transcript missing: %v", err)
	}
	if transcript.MessageCount != 4 {
		t.Errorf("message count = %d, want 4", transcript.MessageCount)
	}
	if !transcript.EndedAt.Equal(now.Add(3 * time.Second)) {
		t.Errorf("endedAt = %v", transcript.EndedAt)
	}
}

func TestRecordBatch_EmptyRejected(t *testing.T) {
	eng := newTestEngine(t, DefaultConfig(), nil)
	if _, err := eng.RecordBatch(nil, ""); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestGetMemories_NewestFirst(t *testing.T) {
	eng := newTestEngine(t, DefaultConfig(), &fixedExtractor{})
	for i := 0; i < 3; i++ {
		if _, err := eng.AddManualMemory(fmt.Sprintf("note %d", i), nil); err != nil {
			t.Fatal(err)
		}
	}

	got := eng.GetMemories(2)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Content != "note 2" || got[1].Content != "note 1" {
		t.Errorf("expected newest first, got %q then %q", got[0].Content, got[1].Content)
	}
}
