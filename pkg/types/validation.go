package types

import "fmt"

// ValidationResult is the structured outcome of validating a pack, state, or
// overlay document. Parse-boundary code returns it instead of an error so
// that callers (import, install, HTTP handlers) can decide how to surface
// each human-readable reason.
type ValidationResult struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

func validResult() ValidationResult {
	return ValidationResult{OK: true}
}

// addErrorf appends a formatted reason and marks the result as failed.
func (r *ValidationResult) addErrorf(format string, args ...interface{}) {
	r.OK = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Summary joins all reasons into a single line, or "ok" when valid.
func (r ValidationResult) Summary() string {
	if r.OK {
		return "ok"
	}
	out := ""
	for i, e := range r.Errors {
		if i > 0 {
			out += "; "
		}
		out += e
	}
	return out
}
