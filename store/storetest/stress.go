// Package storetest provides functions for facilitating the testing of
// anything implementing the store.Store interface.
package storetest

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchangelabs/openepd/store"
)

// Conformance checks the write-once semantics every Store must provide:
// a key is invisible until its writer is closed, existing keys are refused,
// aborted writers leave nothing behind, and deletes are idempotent.
// Keys are created with the given prefix so the test may share a store.
func Conformance(t *testing.T, s store.Store, prefix string) {
	key := prefix + "conformance-1"

	w, err := s.Create(key)
	require.NoError(t, err)
	_, err = io.WriteString(w, "first value")
	require.NoError(t, err)
	_, _, err = s.Open(key)
	assert.Error(t, err, "key visible before Close")
	require.NoError(t, w.Close())

	rac, size, err := s.Open(key)
	require.NoError(t, err)
	assert.Equal(t, int64(len("first value")), size)
	data, err := io.ReadAll(store.NewReader(rac))
	require.NoError(t, err)
	assert.Equal(t, "first value", string(data))
	require.NoError(t, rac.Close())

	_, err = s.Create(key)
	assert.Equal(t, store.ErrKeyExists, err)

	keys, err := s.ListPrefix(prefix + "conformance")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{key}, keys)

	aborted := prefix + "conformance-2"
	w, err = s.Create(aborted)
	require.NoError(t, err)
	_, err = io.WriteString(w, "never committed")
	require.NoError(t, err)
	require.NoError(t, store.Abort(s, aborted, w))
	_, _, err = s.Open(aborted)
	assert.Error(t, err, "aborted key must not exist")

	require.NoError(t, s.Delete(key))
	require.NoError(t, s.Delete(key))
	_, _, err = s.Open(key)
	assert.Error(t, err)
}

// Stress will spawn goroutines to simultaneously write, read back and
// delete random blobs until totalsize bytes have been written. It is a good
// test to run with the -race flag.
func Stress(t *testing.T, s store.Store, totalsize int64) {
	if totalsize == 0 {
		totalsize = 100 * 1000 * 1000
	}
	sizes := make(chan int64)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			roundtrip(t, s, worker, sizes)
		}(i)
	}
	generatesizes(sizes, totalsize)
	close(sizes)
	wg.Wait()
}

func roundtrip(t *testing.T, s store.Store, worker int, in <-chan int64) {
	var n int
	buffer := make([]byte, 64*1024)
	for size := range in {
		n++
		key := fmt.Sprintf("stress-%d-%d", worker, n)
		rand.Read(buffer)
		h := md5.New()
		w, err := s.Create(key)
		if err != nil {
			t.Error(key, err)
			continue
		}
		if _, err = io.Copy(io.MultiWriter(h, w), &randomReader{data: buffer, n: size}); err != nil {
			t.Error(key, err)
		}
		if err = w.Close(); err != nil {
			t.Error(key, err)
			continue
		}
		goal := h.Sum(nil)

		rac, got, err := s.Open(key)
		if err != nil {
			t.Error(key, err)
			continue
		}
		h.Reset()
		m, err := io.Copy(h, store.NewReader(rac))
		rac.Close()
		if err != nil || m != size || got != size || !bytes.Equal(goal, h.Sum(nil)) {
			t.Errorf("%s: read back %d of %d bytes (stat %d), err %v", key, m, size, got, err)
		}
		if err = s.Delete(key); err != nil {
			t.Error(key, err)
		}
	}
}

// randomReader provides n bytes by repeating data.
type randomReader struct {
	n    int64
	data []byte
}

func (r *randomReader) Read(p []byte) (int, error) {
	if r.n <= 0 {
		return 0, io.EOF
	}
	total := 0
	for len(p) > 0 && r.n > 0 {
		data := r.data
		if r.n < int64(len(data)) {
			data = data[:int(r.n)]
		}
		n := copy(p, data)
		p = p[n:]
		r.n -= int64(n)
		total += n
	}
	return total, nil
}

func generatesizes(out chan<- int64, totalsize int64) {
	// We want a wide range of sizes, so generate the exponent of the size
	// uniformly at random.
	for totalsize > 0 {
		size := int64(math.Trunc(math.Exp(16 * rand.Float64())))
		out <- size
		totalsize -= size
	}
}
