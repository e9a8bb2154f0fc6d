// Package util holds small helpers shared by the bundle engine and its tools.
package util

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"hash"
	"io"
)

// VerifyStream checksums the given io.Reader and compares the result against
// the provided md5 and sha256 checksums. It returns the number of bytes read
// and whether everything matched. Pass an empty slice to skip a checksum
// type. The reader is not closed when finished.
func VerifyStream(r io.Reader, md5, sha256 []byte) (int64, bool, error) {
	hw := NewHashWriterPlain()
	n, err := io.Copy(hw, r)
	if err != nil {
		return n, false, err
	}
	_, ok1 := hw.CheckMD5(md5)
	_, ok2 := hw.CheckSHA256(sha256)
	return n, ok1 && ok2, nil
}

// A HashWriter wraps an io.Writer and also calculates the MD5 and SHA256
// hashes and the count of the bytes written.
type HashWriter struct {
	w      io.Writer
	md5    hash.Hash
	sha256 hash.Hash
	n      int64
}

// NewHashWriter returns a HashWriter wrapping w.
func NewHashWriter(w io.Writer) *HashWriter {
	hw := &HashWriter{
		md5:    md5.New(),
		sha256: sha256.New(),
	}
	hw.w = io.MultiWriter(w, hw.md5, hw.sha256)
	return hw
}

// NewHashWriterPlain returns a HashWriter that does not wrap an output
// stream. It will just compute the checksums of the data written to it.
func NewHashWriterPlain() *HashWriter {
	return NewHashWriter(io.Discard)
}

func (hw *HashWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.n += int64(n)
	return n, err
}

// Size returns the number of bytes written so far.
func (hw *HashWriter) Size() int64 {
	return hw.n
}

// CheckMD5 returns the MD5 hash for this writer, and compares it for equality
// with the goal hash passed in. An empty goal is treated as matching.
func (hw *HashWriter) CheckMD5(goal []byte) ([]byte, bool) {
	computed := hw.md5.Sum(nil)
	return computed, len(goal) == 0 || bytes.Equal(goal, computed)
}

// CheckSHA256 returns the SHA256 hash for this writer, and compares it for
// equality with the goal hash passed in. An empty goal is treated as matching.
func (hw *HashWriter) CheckSHA256(goal []byte) ([]byte, bool) {
	computed := hw.sha256.Sum(nil)
	return computed, len(goal) == 0 || bytes.Equal(goal, computed)
}
