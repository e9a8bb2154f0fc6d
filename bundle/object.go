package bundle

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// Object is a domain record which can be stored as an object asset. The
// bundle engine only needs the type tag; the payload itself is encoded by an
// ObjectCodec. Objects passed to Reader.ReadObjectAsset must be pointers.
type Object interface {
	AssetType() AssetType
}

// ObjectCodec turns objects into asset payloads and back. The media type is
// recorded with each object asset and selects the codec when reading.
type ObjectCodec interface {
	MediaType() string
	Marshal(obj Object) ([]byte, error)
	Unmarshal(data []byte, obj Object) error
}

const (
	MediaJSON = "application/json"
	MediaCBOR = "application/cbor"
)

var (
	// JSONObjects encodes objects as indented JSON. It is the default.
	JSONObjects ObjectCodec = jsonObjects{}

	// CBORObjects encodes objects using CBOR core deterministic encoding.
	// Unknown fields are ignored when decoding.
	CBORObjects ObjectCodec = cborObjects{}
)

func objectCodecFor(mediaType string) (ObjectCodec, error) {
	switch mediaType {
	case MediaJSON, "":
		return JSONObjects, nil
	case MediaCBOR:
		return CBORObjects, nil
	}
	return nil, errors.Wrapf(ErrDeserializationFailed, "no object codec for media type %q", mediaType)
}

type jsonObjects struct{}

func (jsonObjects) MediaType() string { return MediaJSON }

func (jsonObjects) Marshal(obj Object) ([]byte, error) {
	return json.MarshalIndent(obj, "", "  ")
}

func (jsonObjects) Unmarshal(data []byte, obj Object) error {
	return json.Unmarshal(data, obj)
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("bundle: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("bundle: CBOR decoder initialization failed: " + err.Error())
	}
}

type cborObjects struct{}

func (cborObjects) MediaType() string { return MediaCBOR }

func (cborObjects) Marshal(obj Object) ([]byte, error) {
	return cborEnc.Marshal(obj)
}

func (cborObjects) Unmarshal(data []byte, obj Object) error {
	return cborDec.Unmarshal(data, obj)
}
