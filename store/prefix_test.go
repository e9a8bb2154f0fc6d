package store

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixSmoke(t *testing.T) {
	var prefixlists = []struct {
		input  string
		result []string
	}{
		{"", []string{"abc", "zed"}},
		{"a", []string{"abc"}},
		{"b", nil},
		{"z", []string{"zed"}},
	}
	m := NewMemory()
	ps := NewWithPrefix(m, "z")

	add(t, ps, "abc", "text 1")
	add(t, ps, "zed", "text 2")
	add(t, m, "qwerty", "text 3")

	for _, test := range prefixlists {
		ids, err := ps.ListPrefix(test.input)
		require.NoError(t, err)
		sort.Strings(ids)
		assert.Equal(t, test.result, ids, "prefix %q", test.input)
	}

	ids, err := m.ListPrefix("")
	require.NoError(t, err)
	sort.Strings(ids)
	assert.Equal(t, []string{"qwerty", "zabc", "zzed"}, ids)

	w, err := ps.Create("dropped")
	require.NoError(t, err)
	_, ok := w.(Aborter)
	assert.True(t, ok, "prefix store keeps the memory writer's Abort")
	require.NoError(t, Abort(ps, "dropped", w))
	_, _, err = m.Open("zdropped")
	assert.ErrorIs(t, err, ErrNotExist)
}
