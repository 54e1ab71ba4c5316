package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Brant123451/soulpack-reader/pkg/types"
)

// Per-call extraction caps.
const (
	maxFactsPerCall       = 5
	maxPreferencesPerCall = 3
	maxKeyExchanges       = 2

	// keyExchangeMinMessages is the batch size below which key-exchange
	// extraction is skipped entirely.
	keyExchangeMinMessages = 6
	// keyExchangeMinLen is the minimum length for a user message to count
	// as a likely high-information turn.
	keyExchangeMinLen = 50

	// sentenceWindow bounds the look-back/look-ahead around a rule match,
	// in runes, when no sentence punctuation is found sooner.
	sentenceWindow = 60

	// snippetLen bounds the quoted user/assistant snippets in summaries.
	snippetLen = 80
)

// selfDisclosureRules is the fixed, ordered rule table for statements where
// the user reveals something durable about themselves. Chinese patterns come
// first (the primary conversation language of the original deployments),
// followed by their English counterparts.
var selfDisclosureRules = []*regexp.Regexp{
	// Self-identification
	regexp.MustCompile(`我叫|我是|我的名字`),
	regexp.MustCompile(`(?i)my name is|i am called|call me|i go by`),
	// Preferences stated as facts about oneself
	regexp.MustCompile(`我喜欢|我喜愛|我爱|我討厭|我讨厌|我最爱`),
	regexp.MustCompile(`(?i)i (really )?(like|love|enjoy|hate|prefer)`),
	// Location
	regexp.MustCompile(`我住在|我来自|我在.{1,10}(生活|长大)`),
	regexp.MustCompile(`(?i)i live in|i'?m from|i come from|i grew up in`),
	// Age / time of life
	regexp.MustCompile(`我今年|我.{0,4}岁`),
	regexp.MustCompile(`(?i)i'?m \d{1,3}( years old)?|i am \d{1,3} years old`),
	// Occupation
	regexp.MustCompile(`我的工作|我是做|我在.{1,12}(工作|上班)|我的职业`),
	regexp.MustCompile(`(?i)i work (as|at|in)|my job is|my profession is`),
}

// preferenceRules captures requests and wishes about how the assistant
// should behave. Applied in batch mode only.
var preferenceRules = []*regexp.Regexp{
	regexp.MustCompile(`请你?|麻烦你?|希望你`),
	regexp.MustCompile(`(?i)please `),
	regexp.MustCompile(`我想要?|我要|我需要|我希望`),
	regexp.MustCompile(`(?i)i (want|need|would like|'d like)`),
	regexp.MustCompile(`不要|别再?|不许`),
	regexp.MustCompile(`(?i)don'?t |stop |never `),
}

// RuleExtractor is the default deterministic Extractor built on the fixed
// pattern tables above.
type RuleExtractor struct{}

// NewRuleExtractor returns the default rule-based extractor.
func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

// ExtractExchange produces self-disclosed user facts plus exactly one
// exchange summary for a single (user, assistant) pair.
func (e *RuleExtractor) ExtractExchange(userText, assistantText string) []FactCandidate {
	out := extractByRules(userText, selfDisclosureRules, maxFactsPerCall, types.TagUserFact)

	summary := fmt.Sprintf("User said %q; assistant replied %q.",
		truncate(userText, snippetLen), truncate(assistantText, snippetLen))
	out = append(out, FactCandidate{
		Content: truncate(summary, maxFactLen+2*snippetLen),
		Tags:    []string{types.TagExchange},
	})
	return out
}

// ExtractBatch produces one session summary plus per-message facts,
// preferences, and (for long conversations) key exchanges.
func (e *RuleExtractor) ExtractBatch(messages []types.TranscriptMessage) []FactCandidate {
	var out []FactCandidate

	// Per-message self-disclosure and preference facts over user turns.
	var facts, prefs []FactCandidate
	totalChars := 0
	var userMessages []string
	for _, m := range messages {
		totalChars += utf8.RuneCountInString(m.Content)
		if m.Role != types.RoleUser {
			continue
		}
		userMessages = append(userMessages, m.Content)
		facts = append(facts, extractByRules(m.Content, selfDisclosureRules, maxFactsPerCall, types.TagUserFact)...)
		prefs = append(prefs, extractByRules(m.Content, preferenceRules, maxPreferencesPerCall, types.TagPreference)...)
	}
	out = append(out, capDedupe(facts, maxFactsPerCall)...)
	out = append(out, capDedupe(prefs, maxPreferencesPerCall)...)

	// Exactly one session summary, always.
	first, last := "", ""
	if len(userMessages) > 0 {
		first = userMessages[0]
		last = userMessages[len(userMessages)-1]
	}
	summary := fmt.Sprintf("Conversation with %d messages (~%d chars). Opened with %q; closed with %q.",
		len(messages), totalChars, truncate(first, snippetLen), truncate(last, snippetLen))
	out = append(out, FactCandidate{
		Content: truncate(summary, maxFactLen+2*snippetLen),
		Tags:    []string{types.TagSessionSummary},
	})

	// Key exchanges: the longest user turns of a substantial conversation.
	if len(messages) >= keyExchangeMinMessages {
		out = append(out, keyExchanges(userMessages)...)
	}

	return out
}

// extractByRules runs an ordered rule table over text, expands each match to
// its surrounding sentence, dedupes, and caps the result.
func extractByRules(text string, rules []*regexp.Regexp, limit int, tag string) []FactCandidate {
	var out []FactCandidate
	seen := make(map[string]bool)
	for _, rule := range rules {
		for _, loc := range rule.FindAllStringIndex(text, -1) {
			fact := truncate(boundSentence(text, loc[0], loc[1]), maxFactLen)
			if fact == "" || seen[fact] {
				continue
			}
			seen[fact] = true
			out = append(out, FactCandidate{Content: fact, Tags: []string{tag}})
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// capDedupe removes duplicate candidates (by content) and bounds the slice.
func capDedupe(candidates []FactCandidate, limit int) []FactCandidate {
	var out []FactCandidate
	seen := make(map[string]bool)
	for _, c := range candidates {
		if seen[c.Content] {
			continue
		}
		seen[c.Content] = true
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// keyExchanges picks up to maxKeyExchanges of the longest user messages over
// keyExchangeMinLen runes, as likely high-information turns.
func keyExchanges(userMessages []string) []FactCandidate {
	type scored struct {
		text string
		n    int
	}
	var candidates []scored
	for _, m := range userMessages {
		if n := utf8.RuneCountInString(m); n > keyExchangeMinLen {
			candidates = append(candidates, scored{text: m, n: n})
		}
	}
	// Selection sort is enough for the tiny candidate counts involved.
	var out []FactCandidate
	for len(candidates) > 0 && len(out) < maxKeyExchanges {
		best := 0
		for i, c := range candidates {
			if c.n > candidates[best].n {
				best = i
			}
		}
		out = append(out, FactCandidate{
			Content: truncate("Key exchange: "+candidates[best].text, maxFactLen),
			Tags:    []string{types.TagKeyExchange},
		})
		candidates = append(candidates[:best], candidates[best+1:]...)
	}
	return out
}

// sentenceBoundary reports whether r terminates a sentence.
func sentenceBoundary(r rune) bool {
	switch r {
	case '。', '！', '？', '!', '?', '.', ';', '；', '\n', '…':
		return true
	}
	return false
}

// boundSentence expands the byte range [start, end) of a rule match to the
// surrounding sentence: up to sentenceWindow runes of look-back and
// look-ahead, stopping early at sentence punctuation.
func boundSentence(text string, start, end int) string {
	b := start
	for steps := 0; b > 0 && steps < sentenceWindow; steps++ {
		r, size := utf8.DecodeLastRuneInString(text[:b])
		if sentenceBoundary(r) {
			break
		}
		b -= size
	}

	e := end
	for steps := 0; e < len(text) && steps < sentenceWindow; steps++ {
		r, size := utf8.DecodeRuneInString(text[e:])
		e += size
		if sentenceBoundary(r) {
			break
		}
	}

	return strings.TrimSpace(strings.Trim(text[b:e], "\n"))
}
