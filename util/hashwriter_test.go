package util

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hashInput = "hello1 hello2 hello3 hello4 hello5abcdefghijklmnopqrstuvwxyz0123456789"

func TestHashWriter(t *testing.T) {
	goalMD5, _ := hex.DecodeString("0101fc798d94a730b0f0bf1bd2cc1959")
	goalSHA256, _ := hex.DecodeString("fef15edd82b33633582c723562d192fec2d2003df12d4aeac89df17c279a1658")

	var w bytes.Buffer
	hw := NewHashWriter(&w)
	_, err := hw.Write([]byte(hashInput))
	require.NoError(t, err)

	h, ok := hw.CheckMD5(goalMD5)
	assert.True(t, ok, "got %x", h)
	h, ok = hw.CheckSHA256(goalSHA256)
	assert.True(t, ok, "got %x", h)
	assert.Equal(t, int64(len(hashInput)), hw.Size())
	assert.Equal(t, hashInput, w.String())

	_, ok = hw.CheckMD5(nil)
	assert.True(t, ok, "empty goal always matches")
}

func TestVerifyStream(t *testing.T) {
	goalSHA256, _ := hex.DecodeString("fef15edd82b33633582c723562d192fec2d2003df12d4aeac89df17c279a1658")

	n, ok, err := VerifyStream(strings.NewReader(hashInput), nil, goalSHA256)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(len(hashInput)), n)

	_, ok, err = VerifyStream(strings.NewReader(hashInput+"x"), nil, goalSHA256)
	require.NoError(t, err)
	assert.False(t, ok)
}
