package storage

import (
	"bytes"
	"encoding/json"
	"strings"
)

// SizeOf returns the UTF-8 byte length of a serialized value.
// Stores use it when persisting size_bytes and the quota validator uses it
// for projections; both sides must agree.
func SizeOf(serialized string) int64 {
	return int64(len(serialized))
}

// CanonicalJSON re-encodes a JSON document so that the stored bytes and the
// measured size do not depend on how the client spelled it: whitespace is
// dropped, string escapes are decoded to raw UTF-8, numbers are written in
// their shortest float64 form and object keys are sorted.
func CanonicalJSON(value json.RawMessage) (json.RawMessage, error) {
	var decoded any
	if err := json.Unmarshal(value, &decoded); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(decoded); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// EscapeLikePrefix escapes LIKE metacharacters so prefix matches are literal.
// The result is meant for "LIKE $n ESCAPE '\'" with a trailing % appended.
func EscapeLikePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix)
}
