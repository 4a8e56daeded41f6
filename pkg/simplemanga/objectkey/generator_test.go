package objectkey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlatGenerator(t *testing.T) {
	gen := NewFlatGenerator()
	id := "01928c5e-7b3a-7cde-8f12-345678901234"

	key := gen.Key(id)
	assert.Equal(t, "images/01928c5e-7b3a-7cde-8f12-345678901234", key)

	got, ok := gen.ID(key)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	for _, key := range []string{"other/abc", "images/", "images/a/b", ""} {
		_, ok := gen.ID(key)
		assert.False(t, ok, key)
	}
}

func TestGitLikeGenerator(t *testing.T) {
	gen := NewGitLikeGenerator()

	tests := []struct {
		name     string
		id       string
		expected string
	}{
		{
			name:     "uuid shards on random tail",
			id:       "01928c5e-7b3a-7cde-8f12-345678901234",
			expected: "images/objects/34/01928c5e-7b3a-7cde-8f12-345678901234",
		},
		{
			name:     "short id",
			id:       "a",
			expected: "images/objects/a/a",
		},
		{
			name:     "unsafe characters",
			id:       "a/b:c",
			expected: "images/objects/_c/a_b_c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, gen.Key(tt.id))
		})
	}
}

func TestGitLikeGenerator_RoundTrip(t *testing.T) {
	gen := &GitLikeGenerator{ShardLength: 3, Prefix: "manga"}
	ids := []string{
		"01928c5e-7b3a-7cde-8f12-345678901234",
		"01928c5e-7b3a-7cde-8f12-345678901235",
		"plain",
	}
	for _, id := range ids {
		key := gen.Key(id)
		assert.True(t, strings.HasPrefix(key, "manga/"), key)

		got, ok := gen.ID(key)
		assert.True(t, ok)
		assert.Equal(t, id, got)
	}

	_, ok := gen.ID("manga/abc")
	assert.False(t, ok)
	_, ok = gen.ID("images/objects/34/x")
	assert.False(t, ok)
}

func TestGitLikeGenerator_Distribution(t *testing.T) {
	gen := NewGitLikeGenerator()
	shards := make(map[string]bool)
	for _, id := range []string{
		"01928c5e-7b3a-7cde-8f12-3456789012a1",
		"01928c5e-7b3a-7cde-8f12-3456789012b2",
		"01928c5e-7b3a-7cde-8f12-3456789012c3",
	} {
		key := gen.Key(id)
		shards[Dir(key)] = true
	}
	assert.Len(t, shards, 3)
}
