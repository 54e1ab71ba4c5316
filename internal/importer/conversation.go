// Package importer parses exported conversation logs in Markdown form and
// replays them through the batch record pipeline. The format is YAML
// frontmatter (character, conversation, started) followed by alternating
// **User:** / **Assistant:** paragraphs.
package importer

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Brant123451/soulpack-reader/pkg/types"
)

// ParsedConversation is one conversation log lifted out of a Markdown file.
type ParsedConversation struct {
	// CharacterID is the character the conversation belongs to, from the
	// frontmatter "character" field.
	CharacterID string

	// ConversationID is the frontmatter "conversation" field, or "" when
	// absent (the caller generates one).
	ConversationID string

	// StartedAt is the frontmatter "started" timestamp, or zero.
	StartedAt time.Time

	// Messages is the ordered transcript.
	Messages []types.TranscriptMessage
}

type frontmatter struct {
	Character    string `yaml:"character"`
	Conversation string `yaml:"conversation"`
	Started      string `yaml:"started"`
}

const (
	userMarker      = "**User:**"
	assistantMarker = "**Assistant:**"
)

// ParseConversation parses a Markdown conversation export.
func ParseConversation(content []byte) (*ParsedConversation, error) {
	fm, body, err := splitFrontmatter(string(content))
	if err != nil {
		return nil, err
	}
	if fm.Character == "" {
		return nil, fmt.Errorf("frontmatter is missing the character field")
	}

	parsed := &ParsedConversation{
		CharacterID:    fm.Character,
		ConversationID: fm.Conversation,
	}
	if fm.Started != "" {
		ts, err := time.Parse(time.RFC3339, fm.Started)
		if err != nil {
			return nil, fmt.Errorf("bad started timestamp %q: %w", fm.Started, err)
		}
		parsed.StartedAt = ts.UTC()
	}

	parsed.Messages = parseMessages(body, parsed.StartedAt)
	if len(parsed.Messages) == 0 {
		return nil, fmt.Errorf("no messages found in conversation body")
	}
	return parsed, nil
}

// splitFrontmatter separates the YAML block between --- delimiters from the
// Markdown body. A file without frontmatter is an error here: the character
// binding is mandatory.
func splitFrontmatter(text string) (frontmatter, string, error) {
	var fm frontmatter

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fm, "", fmt.Errorf("read conversation: %w", err)
	}

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return fm, "", fmt.Errorf("conversation file has no frontmatter")
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end < 0 {
		return fm, "", fmt.Errorf("unterminated frontmatter")
	}

	raw := strings.Join(lines[1:end], "\n")
	if err := yaml.Unmarshal([]byte(raw), &fm); err != nil {
		return fm, "", fmt.Errorf("parse frontmatter: %w", err)
	}
	return fm, strings.Join(lines[end+1:], "\n"), nil
}

// parseMessages walks the body collecting **User:** and **Assistant:**
// blocks. Text before the first marker is ignored. Each message is stamped
// one second after the previous so transcript ordering stays stable; a zero
// start time falls back to now.
func parseMessages(body string, startedAt time.Time) []types.TranscriptMessage {
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	var messages []types.TranscriptMessage
	var role string
	var buf []string

	flush := func() {
		if role == "" {
			return
		}
		content := strings.TrimSpace(strings.Join(buf, "\n"))
		if content != "" {
			messages = append(messages, types.TranscriptMessage{
				Role:      role,
				Content:   content,
				Timestamp: startedAt.Add(time.Duration(len(messages)) * time.Second),
			})
		}
		buf = nil
	}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, userMarker):
			flush()
			role = types.RoleUser
			if rest := strings.TrimSpace(strings.TrimPrefix(trimmed, userMarker)); rest != "" {
				buf = append(buf, rest)
			}
		case strings.HasPrefix(trimmed, assistantMarker):
			flush()
			role = types.RoleAssistant
			if rest := strings.TrimSpace(strings.TrimPrefix(trimmed, assistantMarker)); rest != "" {
				buf = append(buf, rest)
			}
		default:
			if role != "" {
				buf = append(buf, line)
			}
		}
	}
	flush()
	return messages
}
