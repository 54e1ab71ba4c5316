// Package store implements the on-disk persistence layer: Character
// Definitions under packs/, Memory States under soulpack-states/, and
// conversation Transcripts under transcripts/<character>/. All writes are
// whole-file replaces via a same-directory temp file and rename, so a crash
// can lose the latest update but never interleave two.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	packsDir       = "packs"
	statesDir      = "soulpack-states"
	transcriptsDir = "transcripts"

	packSuffix  = ".soulpack.json"
	stateSuffix = ".state.json"
)

// sanitizeID converts an arbitrary identifier into a safe filename component.
// Anything outside [A-Za-z0-9._-] becomes an underscore, leading dots are
// stripped so an identifier can never traverse upward, and the result is
// capped at 64 characters. Empty input sanitizes to "_".
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		out = "_"
	}
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}

// writeFileAtomic writes data to path via a temp file in the same directory
// followed by a rename. The parent directory is created if needed.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
