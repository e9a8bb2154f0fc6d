package store

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// A S3 store keeps bundles in an AWS S3 bucket, or any service speaking the
// same API. Do not change Bucket or Prefix concurrently with calls using the
// structure.
type S3 struct {
	svc    *s3.S3
	Bucket string
	Prefix string
	sizes  *sizecache
	log    *zap.Logger
}

var _ Store = &S3{}

// ErrNoETag means an uploaded part came back without an ETag.
var ErrNoETag = errors.New("no ETag was returned from AWS")

// NewS3 creates a new S3 store. It will use the given bucket and will prepend
// prefix to all keys, so one bucket may be shared by several stores. The
// authorization method and credentials in the session are used for all
// accesses.
func NewS3(bucket, prefix string, awsSession *session.Session, logger *zap.Logger) *S3 {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3{
		Bucket: bucket,
		Prefix: prefix,
		svc:    s3.New(awsSession),
		sizes:  newSizeCache(),
		log:    logger.With(zap.String("bucket", bucket), zap.String("prefix", prefix)),
	}
}

// List returns a list of all the keys in this store.
func (s *S3) List() <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		keys, _ := s.ListPrefix("")
		for _, k := range keys {
			out <- k
		}
	}()
	return out
}

// ListPrefix returns the keys in this store that have the given prefix.
// The argument prefix is added to the store's Prefix.
func (s *S3) ListPrefix(prefix string) ([]string, error) {
	var result []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(s.Prefix + prefix),
	}
	err := s.svc.ListObjectsV2Pages(input,
		func(page *s3.ListObjectsV2Output, lastpage bool) bool {
			for _, item := range page.Contents {
				result = append(result, strings.TrimPrefix(*item.Key, s.Prefix))
			}
			return !lastpage
		})
	if err != nil {
		s.log.Error("s3 list", zap.String("pattern", prefix), zap.Error(err))
		raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix, "Pattern": prefix})
	}
	return result, err
}

// Open returns a ReadAtCloser for the given key. Data is paged in from S3
// with ranged GETs as the zip reader asks for it.
func (s *S3) Open(key string) (ReadAtCloser, int64, error) {
	size, err := s.sizes.Get(key, s.stat)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "s3 %s", key)
	}
	return &s3ReadAtCloser{
		svc:    s.svc,
		bucket: s.Bucket,
		key:    s.Prefix + key,
		size:   size,
	}, size, nil
}

// Create returns a writer uploading to the given key. The object only exists
// once the writer is closed; Abort drops any partial upload.
func (s *S3) Create(key string) (io.WriteCloser, error) {
	if _, err := s.sizes.Get(key, s.stat); err == nil {
		return nil, ErrKeyExists
	}
	s.sizes.Set(key, 0)
	return &s3WriteCloser{
		svc:    s.svc,
		bucket: s.Bucket,
		key:    s.Prefix + key,
		log:    s.log.With(zap.String("key", key)),
	}, nil
}

// Delete removes the given key. It is not an error to delete something that
// doesn't exist.
func (s *S3) Delete(key string) error {
	_, err := s.svc.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		s.log.Error("s3 delete", zap.String("key", key), zap.Error(err))
		raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix, "Key": key})
		return err
	}
	s.sizes.Set(key, sizeDeleted)
	return nil
}

// stat does the HEAD request for key.
func (s *S3) stat(key string) (int64, error) {
	info, err := s.svc.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		if e, ok := err.(awserr.RequestFailure); ok && e.StatusCode() == http.StatusNotFound {
			return sizeDeleted, ErrNotExist
		}
		return 0, err
	}
	return aws.Int64Value(info.ContentLength), nil
}

// s3ReadAtCloser adapts ranged GETs to io.ReaderAt. Large reads are split
// into requests of at most s3PageSize bytes. It is safe for concurrent use.
type s3ReadAtCloser struct {
	svc    *s3.S3
	bucket string
	key    string
	size   int64
}

const s3PageSize = 8 * 1024 * 1024

func (rac *s3ReadAtCloser) ReadAt(p []byte, offset int64) (int, error) {
	if offset >= rac.size {
		return 0, io.EOF
	}
	end := offset + int64(len(p))
	if end > rac.size {
		end = rac.size
	}
	var n int
	for offset+int64(n) < end {
		start := offset + int64(n)
		stop := start + s3PageSize
		if stop > end {
			stop = end
		}
		output, err := rac.svc.GetObject(&s3.GetObjectInput{
			Bucket: aws.String(rac.bucket),
			Key:    aws.String(rac.key),
			Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, stop-1)),
		})
		if err != nil {
			if e, ok := err.(awserr.RequestFailure); ok && e.StatusCode() == http.StatusRequestedRangeNotSatisfiable {
				err = io.EOF
			}
			return n, err
		}
		m, err := io.ReadFull(output.Body, p[n:n+int(stop-start)])
		output.Body.Close()
		n += m
		if err != nil {
			return n, err
		}
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (rac *s3ReadAtCloser) Close() error {
	return nil
}

// s3WriteCloser uploads to S3. Small objects are sent with one PUT on Close.
// Once the buffer passes partSize a multipart upload is started, and parts
// are sent as the buffer fills.
//
// AWS restricts part sizes to be between 5 MB and 5 GB.
type s3WriteCloser struct {
	svc      *s3.S3
	bucket   string
	key      string
	log      *zap.Logger
	buf      bytes.Buffer
	uploadID string   // empty until a multipart upload is started
	etags    []string // index i == etag for part i+1
	failed   bool
	done     bool
}

const partSize = 64 * 1024 * 1024

func (wc *s3WriteCloser) Write(p []byte) (int, error) {
	if wc.failed || wc.done {
		return 0, errors.New("s3 writer is no longer usable")
	}
	n, _ := wc.buf.Write(p)
	if wc.buf.Len() >= partSize {
		if err := wc.uploadpart(); err != nil {
			wc.failed = true
			return 0, err
		}
	}
	return n, nil
}

// Close flushes what is buffered and completes the upload. After an error
// during Write the upload is aborted instead.
func (wc *s3WriteCloser) Close() error {
	if wc.done {
		return nil
	}
	if wc.failed {
		return wc.Abort()
	}
	wc.done = true
	if wc.uploadID == "" {
		_, err := wc.svc.PutObject(&s3.PutObjectInput{
			Body:          bytes.NewReader(wc.buf.Bytes()),
			Bucket:        aws.String(wc.bucket),
			Key:           aws.String(wc.key),
			ContentLength: aws.Int64(int64(wc.buf.Len())),
		})
		if err != nil {
			wc.log.Error("s3 put", zap.Error(err))
		}
		return err
	}
	if wc.buf.Len() > 0 {
		if err := wc.uploadpart(); err != nil {
			return multierr.Append(err, wc.Abort())
		}
	}
	var completed []*s3.CompletedPart
	for i, etag := range wc.etags {
		completed = append(completed, &s3.CompletedPart{
			ETag:       aws.String(etag),
			PartNumber: aws.Int64(int64(i + 1)),
		})
	}
	_, err := wc.svc.CompleteMultipartUpload(&s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(wc.bucket),
		Key:             aws.String(wc.key),
		UploadId:        aws.String(wc.uploadID),
		MultipartUpload: &s3.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		wc.log.Error("s3 complete multipart", zap.Error(err))
	}
	return err
}

// Abort drops the buffer and any multipart upload in progress.
func (wc *s3WriteCloser) Abort() error {
	wc.done = true
	wc.buf.Reset()
	if wc.uploadID == "" {
		return nil
	}
	_, err := wc.svc.AbortMultipartUpload(&s3.AbortMultipartUploadInput{
		Bucket:   aws.String(wc.bucket),
		Key:      aws.String(wc.key),
		UploadId: aws.String(wc.uploadID),
	})
	if err != nil {
		wc.log.Warn("s3 abort multipart", zap.Error(err))
	}
	return err
}

func (wc *s3WriteCloser) uploadpart() error {
	if wc.uploadID == "" {
		result, err := wc.svc.CreateMultipartUpload(&s3.CreateMultipartUploadInput{
			Bucket: aws.String(wc.bucket),
			Key:    aws.String(wc.key),
		})
		if err != nil {
			wc.log.Error("s3 start multipart", zap.Error(err))
			raven.CaptureError(err, map[string]string{"Bucket": wc.bucket, "Key": wc.key})
			return err
		}
		wc.uploadID = aws.StringValue(result.UploadId)
	}
	output, err := wc.svc.UploadPart(&s3.UploadPartInput{
		Body:       bytes.NewReader(wc.buf.Bytes()),
		Bucket:     aws.String(wc.bucket),
		Key:        aws.String(wc.key),
		PartNumber: aws.Int64(int64(len(wc.etags) + 1)),
		UploadId:   aws.String(wc.uploadID),
	})
	if err != nil {
		wc.log.Error("s3 upload part", zap.Int("part", len(wc.etags)+1), zap.Error(err))
		return err
	}
	if output.ETag == nil {
		return ErrNoETag
	}
	wc.etags = append(wc.etags, *output.ETag)
	wc.buf.Reset()
	return nil
}
