package bundle

import (
	"archive/zip"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cchangelabs/openepd/util"
)

// Verify rereads every asset payload and compares it against the size and
// checksums recorded in the manifest. It returns the number of bytes
// checksummed, a list of problems which is empty if everything matched, and
// an error if something other than a bad payload stopped the check. Entries
// are hashed in parallel; see WithVerifyWorkers.
//
// Verify stops starting new entries once ctx is done.
func (rd *Reader) Verify(ctx context.Context) (nb int64, problems []string, err error) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rd.opts.workers)
	for _, a := range rd.m.Assets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, problem, err := rd.verifyAsset(a)
			mu.Lock()
			nb += n
			if problem != "" {
				problems = append(problems, problem)
			}
			mu.Unlock()
			return err
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	sort.Strings(problems)
	rd.opts.logger.Info("verified bundle",
		zap.String("bundle_id", rd.m.BundleID),
		zap.Int64("bytes", nb),
		zap.Int("problems", len(problems)),
		zap.Error(err))
	return nb, problems, err
}

// verifyAsset returns a description of what is wrong with a's payload, or
// "" if it is fine.
func (rd *Reader) verifyAsset(a Asset) (int64, string, error) {
	md5, err1 := hex.DecodeString(a.MD5)
	sha, err2 := hex.DecodeString(a.SHA256)
	if err1 != nil || err2 != nil {
		return 0, fmt.Sprintf("asset %q has a malformed checksum", a.ID), nil
	}
	var n int64
	var ok bool
	err := rd.blobs.open(a.ref, a.Size, func(r io.Reader) error {
		var err error
		n, ok, err = util.VerifyStream(r, md5, sha)
		return err
	})
	switch c := errors.Cause(err); {
	case c == ErrBlobNotFound || c == ErrBlobTruncated || c == zip.ErrChecksum:
		return n, fmt.Sprintf("asset %q: %v", a.ID, err), nil
	case err != nil:
		return n, "", err
	case n != a.Size:
		return n, fmt.Sprintf("asset %q has %d bytes, expected %d", a.ID, n, a.Size), nil
	case !ok:
		return n, fmt.Sprintf("asset %q has a checksum mismatch", a.ID), nil
	}
	return n, "", nil
}
