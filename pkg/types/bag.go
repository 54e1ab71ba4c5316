package types

import "encoding/json"

// Bag is an open, unknown-preserving JSON object. Fields that this package
// has no static knowledge of (pack extensions, voice extras, asset metadata)
// are kept as raw JSON so that loading and re-saving a file never drops data.
type Bag map[string]json.RawMessage

// GetString returns the value for key decoded as a string.
// The second return value reports whether the key existed and decoded cleanly.
func (b Bag) GetString(key string) (string, bool) {
	raw, ok := b[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Set stores an arbitrary value under key, encoding it as JSON.
// Values that cannot be encoded are silently ignored.
func (b Bag) Set(key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	b[key] = data
}

// Clone returns a shallow copy of the bag. A nil bag clones to nil.
func (b Bag) Clone() Bag {
	if b == nil {
		return nil
	}
	out := make(Bag, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
