package store

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCommitAndAbort(t *testing.T) {
	ms := NewMemory()

	w, err := ms.Create("good")
	require.NoError(t, err)
	_, err = io.WriteString(w, "some content")
	require.NoError(t, err)
	keys, _ := ms.ListPrefix("")
	assert.Empty(t, keys, "nothing is published before Close")
	require.NoError(t, w.Close())

	rac, size, err := ms.Open("good")
	require.NoError(t, err)
	assert.Equal(t, int64(12), size)
	data, err := io.ReadAll(NewReader(rac))
	require.NoError(t, err)
	assert.Equal(t, "some content", string(data))
	require.NoError(t, rac.Close())

	_, err = ms.Create("good")
	assert.Equal(t, ErrKeyExists, err)

	w, err = ms.Create("bad")
	require.NoError(t, err)
	_, err = io.WriteString(w, "junk")
	require.NoError(t, err)
	require.NoError(t, Abort(ms, "bad", w))
	_, _, err = ms.Open("bad")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestMemoryList(t *testing.T) {
	ms := NewMemory()
	add(t, ms, "one", "1")
	add(t, ms, "two", "2")
	var n int
	for range ms.List() {
		n++
	}
	assert.Equal(t, 2, n)
}

func add(t *testing.T, s Store, key, value string) {
	w, err := s.Create(key)
	require.NoError(t, err)
	_, err = io.WriteString(w, value)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}
