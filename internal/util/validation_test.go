package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("3f2504e0-4f89-11d3-9a0c-0305e82c3301"))
	assert.True(t, IsValidUUID("3F2504E0-4F89-11D3-9A0C-0305E82C3301"))
	assert.False(t, IsValidUUID(""))
	assert.False(t, IsValidUUID("not-a-uuid"))
	assert.False(t, IsValidUUID("3f2504e04f8911d39a0c0305e82c3301"))
	assert.False(t, IsValidUUID("{3f2504e0-4f89-11d3-9a0c-0305e82c3301}"))
}

func TestIsValidEnum(t *testing.T) {
	values := []string{"low", "medium"}
	assert.True(t, IsValidEnum("low", values))
	assert.True(t, IsValidEnum("", values))
	assert.False(t, IsValidEnum("urgent", values))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@b.com", NormalizeEmail("  A@B.Com \n"))
}

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"a@b.com", true},
		{"first.last+tag@example.co.uk", true},
		{"", false},
		{"no-at-sign.com", false},
		{"a@b", false},
		{"a b@c.com", false},
		{"a@@b.com", false},
		{strings.Repeat("a", 245) + "@test.com", true},
		{strings.Repeat("a", 246) + "@test.com", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidEmail(tt.email), tt.email)
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", TruncateRunes("abc", 5))
	assert.Equal(t, "ab", TruncateRunes("abc", 2))
	assert.Equal(t, "héé", TruncateRunes("héééé", 3))
	assert.Equal(t, 5, RuneLen("héééé"))
}
