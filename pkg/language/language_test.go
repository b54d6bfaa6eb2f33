package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapPrefs map[string]string

func (m mapPrefs) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapPrefs) Set(key, value string) {
	m[key] = value
}

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want Language
		ok   bool
	}{
		{"nl", NL, true},
		{"NL-be", NL, true},
		{" en ", EN, true},
		{"de_DE", DE, true},
		{"fr", Default, false},
		{"", Default, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Parse(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestResolve(t *testing.T) {
	assert.Equal(t, EN, Resolve("en", "de"), "explicit request wins")
	assert.Equal(t, DE, Resolve("", "de"), "stored preference next")
	assert.Equal(t, DE, Resolve("fr", "de"), "unsupported request ignored")
	assert.Equal(t, NL, Resolve("", ""), "default last")
}

func TestBinding(t *testing.T) {
	t.Run("uses stored preference on first load", func(t *testing.T) {
		prefs := mapPrefs{PreferenceKey: "en"}
		b := NewBinding("", prefs)
		assert.Equal(t, EN, b.Current())
	})

	t.Run("explicit choice persists", func(t *testing.T) {
		prefs := mapPrefs{}
		b := NewBinding("nl", prefs)

		got, ok := b.Choose("de")
		require.True(t, ok)
		assert.Equal(t, DE, got)
		assert.Equal(t, DE, b.Current())
		assert.Equal(t, "de", prefs[PreferenceKey])
	})

	t.Run("unsupported choice keeps binding", func(t *testing.T) {
		prefs := mapPrefs{}
		b := NewBinding("en", prefs)

		got, ok := b.Choose("xx")
		assert.False(t, ok)
		assert.Equal(t, EN, got)
		assert.Empty(t, prefs)
	})

	t.Run("nil store", func(t *testing.T) {
		b := NewBinding("de", nil)
		_, ok := b.Choose("en")
		assert.True(t, ok)
		assert.Equal(t, EN, b.Current())
	})
}
