package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/Brant123451/soulpack-reader/pkg/types"
)

func hasTag(c FactCandidate, tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func countByTag(candidates []FactCandidate, tag string) int {
	n := 0
	for _, c := range candidates {
		if hasTag(c, tag) {
			n++
		}
	}
	return n
}

// A Chinese self-introduction must yield at least one user_fact mentioning
// the disclosed name or preference, plus exactly one exchange summary.
func TestExtractExchange_ChineseSelfDisclosure(t *testing.T) {
	e := NewRuleExtractor()

	out := e.ExtractExchange("我叫小明，我喜欢摄影", "很高兴认识你，小明！")

	if len(out) < 2 {
		t.Fatalf("expected at least 2 candidates (fact + summary), got %d", len(out))
	}
	if n := countByTag(out, types.TagExchange); n != 1 {
		t.Errorf("expected exactly 1 exchange summary, got %d", n)
	}

	foundFact := false
	for _, c := range out {
		if hasTag(c, types.TagUserFact) &&
			(strings.Contains(c.Content, "小明") || strings.Contains(c.Content, "摄影")) {
			foundFact = true
		}
	}
	if !foundFact {
		t.Errorf("expected a user_fact containing 小明 or 摄影, got: %+v", out)
	}
}

func TestExtractExchange_EnglishSelfDisclosure(t *testing.T) {
	e := NewRuleExtractor()

	out := e.ExtractExchange("My name is Ada. I live in Berlin and I work as a jeweler.", "Nice to meet you, Ada!")

	if n := countByTag(out, types.TagUserFact); n < 2 {
		t.Errorf("expected at least 2 user facts (name, location/occupation), got %d: %+v", n, out)
	}
}

func TestExtractExchange_NoDisclosureStillSummarizes(t *testing.T) {
	e := NewRuleExtractor()

	out := e.ExtractExchange("What's the weather like?", "Sunny all day.")

	if len(out) != 1 {
		t.Fatalf("expected only the summary, got %d candidates", len(out))
	}
	if !hasTag(out[0], types.TagExchange) {
		t.Errorf("expected exchange tag, got %v", out[0].Tags)
	}
	if !strings.Contains(out[0].Content, "weather") {
		t.Errorf("summary should quote the user text: %q", out[0].Content)
	}
}

func TestExtractExchange_FactCap(t *testing.T) {
	e := NewRuleExtractor()

	// Nine disclosure sentences; the per-call cap must hold at 5.
	user := "我叫甲。我是乙。我喜欢丙。我爱丁。我讨厌戊。我住在己。我来自庚。我今年30岁。我的工作是辛。"
	out := e.ExtractExchange(user, "好的")

	if n := countByTag(out, types.TagUserFact); n > 5 {
		t.Errorf("user_fact count %d exceeds cap of 5", n)
	}
}

func TestExtractExchange_DuplicateFactsDeduped(t *testing.T) {
	e := NewRuleExtractor()

	// "我叫" and "我是" both match the same sentence; the expanded fact is
	// identical and must appear only once.
	out := e.ExtractExchange("我叫小明", "你好")

	seen := make(map[string]int)
	for _, c := range out {
		if hasTag(c, types.TagUserFact) {
			seen[c.Content]++
		}
	}
	for content, n := range seen {
		if n > 1 {
			t.Errorf("fact %q extracted %d times", content, n)
		}
	}
}

func TestExtractExchange_LongTextTruncated(t *testing.T) {
	e := NewRuleExtractor()

	long := "I like " + strings.Repeat("very ", 80) + "long walks"
	out := e.ExtractExchange(long, "ok")

	for _, c := range out {
		runes := []rune(c.Content)
		if len(runes) > maxFactLen+2*snippetLen+1 {
			t.Errorf("candidate length %d exceeds bound: %q", len(runes), c.Content)
		}
	}

	if got := truncate(long, maxFactLen); !strings.HasSuffix(got, "…") {
		t.Errorf("truncate should end with ellipsis when cutting: %q", got)
	}
}

func TestTruncate_CollapsesNewlines(t *testing.T) {
	got := truncate("line one\nline two\n\nline three", 100)
	if strings.ContainsAny(got, "\n") {
		t.Errorf("newlines not collapsed: %q", got)
	}
	if got != "line one line two line three" {
		t.Errorf("unexpected collapse result: %q", got)
	}
}

func batchMessages(contents ...string) []types.TranscriptMessage {
	msgs := make([]types.TranscriptMessage, 0, len(contents))
	for i, c := range contents {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		msgs = append(msgs, types.TranscriptMessage{Role: role, Content: c, Timestamp: time.Now()})
	}
	return msgs
}

func TestExtractBatch_SummaryAndPreferences(t *testing.T) {
	e := NewRuleExtractor()

	out := e.ExtractBatch(batchMessages(
		"请你说话简短一点",
		"好的，我会注意的。",
		"I want more recipes with tofu",
		"Noted, tofu it is.",
	))

	if n := countByTag(out, types.TagSessionSummary); n != 1 {
		t.Fatalf("expected exactly 1 session summary, got %d", n)
	}
	if n := countByTag(out, types.TagPreference); n == 0 {
		t.Errorf("expected preference candidates, got none: %+v", out)
	}
	if n := countByTag(out, types.TagPreference); n > 3 {
		t.Errorf("preference count %d exceeds cap of 3", n)
	}
}

func TestExtractBatch_SummaryMentionsCounts(t *testing.T) {
	e := NewRuleExtractor()

	out := e.ExtractBatch(batchMessages("hello there", "hi"))

	var summary string
	for _, c := range out {
		if hasTag(c, types.TagSessionSummary) {
			summary = c.Content
		}
	}
	if !strings.Contains(summary, "2 messages") {
		t.Errorf("summary should report the message count: %q", summary)
	}
	if !strings.Contains(summary, "hello there") {
		t.Errorf("summary should quote the opening user message: %q", summary)
	}
}

func TestExtractBatch_KeyExchangeOnlyForLongConversations(t *testing.T) {
	e := NewRuleExtractor()

	longTurn := "When I was a child my grandmother taught me to develop film in her darkroom, which is why photography means so much to me."

	// Five messages: below the threshold, no key exchanges.
	short := e.ExtractBatch(batchMessages(longTurn, "ok", "fine", "ok", "fine"))
	if n := countByTag(short, types.TagKeyExchange); n != 0 {
		t.Errorf("expected no key exchanges below 6 messages, got %d", n)
	}

	// Six messages: the long user turn qualifies.
	long := e.ExtractBatch(batchMessages(longTurn, "ok", "fine", "ok", "fine", "ok"))
	if n := countByTag(long, types.TagKeyExchange); n != 1 {
		t.Errorf("expected 1 key exchange, got %d: %+v", n, long)
	}
}
