package bundle

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchangelabs/openepd/store"
)

func buildVerifyBundle(t *testing.T) (*bytes.Buffer, []Asset) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	pcr, err := w.WriteObjectAsset(testPcr{Name: "verify"})
	require.NoError(t, err)
	assets := []Asset{pcr}
	for _, s := range []string{"one", "two", strings.Repeat("three", 1000)} {
		a, err := w.WriteBlobAsset(strings.NewReader(s), "text/plain", RelatedTo(pcr, RelImage))
		require.NoError(t, err)
		assets = append(assets, a)
	}
	require.NoError(t, w.Close())
	return &buf, assets
}

func TestVerify(t *testing.T) {
	buf, assets := buildVerifyBundle(t)
	r := openBuffer(t, buf, WithVerifyWorkers(2))
	nb, problems, err := r.Verify(context.Background())
	require.NoError(t, err)
	assert.Empty(t, problems)
	var total int64
	for _, a := range assets {
		total += a.Size
	}
	assert.Equal(t, total, nb)
}

func TestVerifyDetectsDamage(t *testing.T) {
	buf, assets := buildVerifyBundle(t)
	data := buf.Bytes()
	// flip a byte inside the payload of "two"
	i := bytes.Index(data, []byte("two"))
	require.True(t, i > 0)
	damaged := append([]byte(nil), data...)
	damaged[i] = 'T'

	r, err := Open(bytes.NewReader(damaged), int64(len(damaged)))
	require.NoError(t, err)
	_, problems, err := r.Verify(context.Background())
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], string(assets[2].ID))
}

func TestVerifyCancelled(t *testing.T) {
	buf, _ := buildVerifyBundle(t)
	r := openBuffer(t, buf)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := r.Verify(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStoreTarget(t *testing.T) {
	s := store.NewMemory()
	w, err := CreateInStore(s, "b1")
	require.NoError(t, err)
	_, err = w.WriteObjectAsset(testPcr{Name: "stored"})
	require.NoError(t, err)

	// not visible before Close
	_, _, err = s.Open("b1")
	assert.ErrorIs(t, err, store.ErrNotExist)
	require.NoError(t, w.Close())

	r, err := OpenStore(s, "b1")
	require.NoError(t, err)
	a, err := r.GetFirstRootAsset(AssetPcr)
	require.NoError(t, err)
	var got testPcr
	require.NoError(t, r.ReadObjectAsset(a, &got))
	assert.Equal(t, "stored", got.Name)
	require.NoError(t, r.Close())

	_, err = CreateInStore(s, "b1")
	assert.ErrorIs(t, err, ErrTargetExists)

	// a failed Close leaves nothing behind
	w, err = CreateInStore(s, "b2")
	require.NoError(t, err)
	_, err = w.WriteBlobAsset(strings.NewReader("orphan"), "text/plain")
	require.NoError(t, err)
	assert.ErrorIs(t, w.Close(), ErrValidationFailed)
	_, _, err = s.Open("b2")
	assert.ErrorIs(t, err, store.ErrNotExist)

	_, err = OpenStore(s, "b3")
	assert.ErrorIs(t, err, store.ErrNotExist)
}

func TestStoreTargetFileSystem(t *testing.T) {
	s := store.NewFileSystem(t.TempDir(), nil)
	w, err := CreateInStore(s, "bundle1")
	require.NoError(t, err)
	_, err = w.WriteObjectAsset(testPcr{Name: "fs"})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	keys, err := s.ListPrefix("bundle")
	require.NoError(t, err)
	assert.Equal(t, []string{"bundle1"}, keys)

	r, err := OpenStore(s, "bundle1")
	require.NoError(t, err)
	defer r.Close()
	nb, problems, err := r.Verify(context.Background())
	require.NoError(t, err)
	assert.Empty(t, problems)
	assert.True(t, nb > 0)
}
