// ABOUTME: Tests for the tagged session key and its canonical string form
// ABOUTME: Covers round-tripping, default vs named keys, and name validation

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_String_Default(t *testing.T) {
	assert.Equal(t, "100", DefaultKey(100).String())
	assert.Equal(t, "-42", DefaultKey(-42).String())
}

func TestKey_String_Named(t *testing.T) {
	assert.Equal(t, "100:debug", NamedKey(100, "debug").String())
}

func TestKey_Named(t *testing.T) {
	assert.False(t, DefaultKey(1).Named())
	assert.True(t, NamedKey(1, "work").Named())
}

func TestParseKey_RoundTrip(t *testing.T) {
	for _, key := range []Key{
		DefaultKey(100),
		NamedKey(100, "debug"),
		DefaultKey(-7),
		NamedKey(9223372036854775807, "x"),
	} {
		parsed, err := ParseKey(key.String())
		require.NoError(t, err)
		assert.Equal(t, key, parsed)
	}
}

func TestParseKey_BadChatID(t *testing.T) {
	_, err := ParseKey("not-a-number:debug")
	assert.Error(t, err)
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "debug", false},
		{"with dash", "my-task", false},
		{"empty", "", true},
		{"reserved default", "default", true},
		{"contains separator", "a:b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
