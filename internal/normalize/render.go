package normalize

import (
	"fmt"
	"sort"
	"strings"
)

// BuildPromptInjection renders a runtime view into the literal text injected
// as system context. Rendering is deterministic and section-ordered; any
// section whose underlying data is absent is omitted entirely.
// maxMemories bounds the memories section (<=0 uses DefaultPromptMemories).
func BuildPromptInjection(view *RuntimeView, maxMemories int) string {
	if view == nil {
		return ""
	}
	if maxMemories <= 0 {
		maxMemories = DefaultPromptMemories
	}

	var b strings.Builder

	fmt.Fprintf(&b, "You are embodying the character %q.\n", view.DisplayName)
	b.WriteString("\n")
	b.WriteString(view.SystemPrompt)
	b.WriteString("\n")

	if len(view.ContextNotes) > 0 {
		b.WriteString("\n## Context Notes\n")
		for _, note := range view.ContextNotes {
			fmt.Fprintf(&b, "- %s\n", note)
		}
	}

	if view.Voice != nil {
		b.WriteString("\n## Voice Configuration\n")
		fmt.Fprintf(&b, "Your replies are spoken aloud (provider: %s, voice: %s",
			orUnset(view.Voice.Provider), orUnset(view.Voice.VoiceID))
		if view.Language != "" {
			fmt.Fprintf(&b, ", language: %s", view.Language)
		}
		b.WriteString("). Keep responses short and conversational, and avoid heavy markdown formatting.\n")
	}

	if view.AvatarURL != "" || len(view.Expressions) > 0 {
		b.WriteString("\n## Appearance\n")
		if view.AvatarURL != "" {
			fmt.Fprintf(&b, "Avatar: %s\n", view.AvatarURL)
		}
		if len(view.Expressions) > 0 {
			labels := make([]string, 0, len(view.Expressions))
			for label := range view.Expressions {
				labels = append(labels, label)
			}
			sort.Strings(labels)
			fmt.Fprintf(&b, "Available expressions: %s\n", strings.Join(labels, ", "))
			b.WriteString("To signal your current mood, you may include an expression label wrapped in double square brackets, e.g. [[" + labels[0] + "]].\n")
		}
	}

	if len(view.Memories) > 0 {
		b.WriteString("\n## Soul Memories\n")
		b.WriteString("Things you remember from past conversations:\n")
		memories := view.Memories
		if len(memories) > maxMemories {
			memories = memories[len(memories)-maxMemories:]
		}
		for _, m := range memories {
			fmt.Fprintf(&b, "- [%s] %s\n", m.Timestamp.Format("2006-01-02"), m.Content)
		}
	}

	return b.String()
}

func orUnset(s string) string {
	if s == "" {
		return "default"
	}
	return s
}
