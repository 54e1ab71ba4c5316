// Package extract converts raw conversation text into bounded memory record
// candidates. Extraction is deterministic and rule-based: no external calls.
// The Extractor interface keeps the rule set pluggable so engines can swap in
// different languages or strategies without touching orchestration.
package extract

import (
	"strings"

	"github.com/Brant123451/soulpack-reader/pkg/types"
)

// FactCandidate is a single extraction result: bounded content plus tags.
type FactCandidate struct {
	Content string
	Tags    []string
}

// Extractor turns conversation text into memory record candidates.
type Extractor interface {
	// ExtractExchange processes a single (user, assistant) pair. It always
	// produces exactly one exchange-summary candidate, plus zero or more
	// self-disclosed user facts.
	ExtractExchange(userText, assistantText string) []FactCandidate

	// ExtractBatch processes an entire conversation at once, producing one
	// session summary plus per-message facts, preferences, and key exchanges.
	ExtractBatch(messages []types.TranscriptMessage) []FactCandidate
}

// maxFactLen bounds every stored candidate's content.
const maxFactLen = 150

// truncate collapses newlines to spaces and bounds s to limit runes,
// appending an ellipsis marker when cut.
func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
