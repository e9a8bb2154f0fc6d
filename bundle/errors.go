package bundle

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrManifestCorrupt means the manifest could not be parsed, has an
	// unsupported major version, or describes an inconsistent bundle.
	ErrManifestCorrupt = errors.New("bundle: manifest corrupt")

	// ErrDanglingReference means a relation names an asset which is not in
	// the manifest.
	ErrDanglingReference = errors.New("bundle: dangling reference")

	// ErrNotFound is returned by lookups which have no match. It never
	// signals an I/O problem.
	ErrNotFound = errors.New("bundle: not found")

	// ErrContentKind is matched by both ErrNotABlob and ErrNotAnObject.
	// ErrNotAnObject also matches ErrNotABlob.
	ErrContentKind = errors.New("bundle: wrong content kind")
	ErrNotABlob    = kindError("bundle: asset is not a blob")
	ErrNotAnObject = kindError("bundle: asset is not an object")

	ErrTypeMismatch          = errors.New("bundle: asset type mismatch")
	ErrDeserializationFailed = errors.New("bundle: deserialization failed")
	ErrNotAsset              = errors.New("bundle: object has no asset type")

	// ErrBlobNotFound and ErrBlobTruncated report storage corruption of a
	// single asset. The rest of the bundle may still be readable.
	ErrBlobNotFound  = errors.New("bundle: blob not found")
	ErrBlobTruncated = errors.New("bundle: blob truncated")

	ErrInvalidRelation  = errors.New("bundle: invalid relation")
	ErrDuplicateAsset   = errors.New("bundle: duplicate asset")
	ErrValidationFailed = errors.New("bundle: validation failed")
	ErrTargetExists     = errors.New("bundle: target exists, amending bundles is not supported")
	ErrWriterClosed     = errors.New("bundle: writer is closed")
)

type kindErr string

func kindError(s string) error { return kindErr(s) }

func (e kindErr) Error() string { return string(e) }

func (e kindErr) Is(target error) bool {
	if target == ErrContentKind {
		return true
	}
	return error(e) == ErrNotAnObject && target == ErrNotABlob
}

// ValidationError carries every invariant violation found in a set of
// assets and relations. Err is the sentinel describing where the check ran:
// ErrValidationFailed when writing, ErrManifestCorrupt or
// ErrDanglingReference when opening.
type ValidationError struct {
	Err        error
	Violations []Violation
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d violation(s)", e.Err, len(e.Violations))
	for i, v := range e.Violations {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(v.String())
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }
