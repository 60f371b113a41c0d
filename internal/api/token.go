package api

import (
	"bytes"
	"encoding/json"
)

// TokenKind tells which variant a TokenValue holds.
type TokenKind int

const (
	TokenAbsent TokenKind = iota
	TokenString
	TokenStructured
)

// TokenValue is the backend's token field, which arrives either as a plain
// string or as arbitrary JSON.
type TokenValue struct {
	Kind TokenKind
	Code string          // set for TokenString
	Raw  json.RawMessage // compact JSON, set for TokenStructured
}

// StringToken builds a TokenString value.
func StringToken(code string) TokenValue {
	return TokenValue{Kind: TokenString, Code: code}
}

func (t *TokenValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*t = TokenValue{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TokenValue{Kind: TokenString, Code: s}
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*t = TokenValue{Kind: TokenStructured, Raw: buf.Bytes()}
	}
	return nil
}

func (t TokenValue) MarshalJSON() ([]byte, error) {
	switch t.Kind {
	case TokenString:
		return json.Marshal(t.Code)
	case TokenStructured:
		return t.Raw, nil
	default:
		return []byte("null"), nil
	}
}

// Canonical is the single string form used as the redemption code:
// strings as is, anything else as its compact JSON text.
func (t TokenValue) Canonical() string {
	switch t.Kind {
	case TokenString:
		return t.Code
	case TokenStructured:
		return string(t.Raw)
	default:
		return ""
	}
}

// Empty reports whether the token carries no code.
func (t TokenValue) Empty() bool {
	return t.Canonical() == ""
}
