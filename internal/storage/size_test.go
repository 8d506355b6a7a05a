package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeOf_CountsBytesNotRunes(t *testing.T) {
	assert.Equal(t, int64(0), SizeOf(""))
	assert.Equal(t, int64(5), SizeOf("hello"))
	assert.Equal(t, int64(2), SizeOf("é"), "two-byte code point")
	assert.Equal(t, int64(3), SizeOf("日"), "three-byte code point")
	assert.Equal(t, int64(4), SizeOf("🔐"), "four-byte code point")
	assert.Equal(t, int64(7), SizeOf(`"héé"`))
}

func TestCanonicalJSON(t *testing.T) {
	got, err := CanonicalJSON(json.RawMessage("{ \"a\" : [1, 2],\n \"b\": \"x y\" }"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2],"b":"x y"}`, string(got))

	_, err = CanonicalJSON(json.RawMessage(`{not json`))
	assert.Error(t, err)
}

func TestCanonicalJSON_SizeIndependentOfClientSpelling(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unicode escape", `"\u00e9"`, `"é"`},
		{"html characters", `"<a&b>"`, `"<a&b>"`},
		{"trailing zero", `1.0`, `1`},
		{"exponent", `1e3`, `1000`},
		{"key order", `{"b":1,"a":2}`, `{"a":2,"b":1}`},
		{"nested", `{"x":[1.50, "\u0041"]}`, `{"x":[1.5,"A"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalJSON(json.RawMessage(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	escaped, err := CanonicalJSON(json.RawMessage(`"\u00e9"`))
	require.NoError(t, err)
	assert.Equal(t, int64(4), SizeOf(string(escaped)))
}

func TestEscapeLikePrefix(t *testing.T) {
	assert.Equal(t, `user\_`, EscapeLikePrefix("user_"))
	assert.Equal(t, `100\%`, EscapeLikePrefix("100%"))
	assert.Equal(t, `a\\b`, EscapeLikePrefix(`a\b`))
	assert.Equal(t, "plain", EscapeLikePrefix("plain"))
}
