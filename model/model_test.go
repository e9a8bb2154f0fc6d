package model

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchangelabs/openepd/bundle"
)

func TestAssetTypes(t *testing.T) {
	assert.Equal(t, bundle.AssetOrg, Org{}.AssetType())
	assert.Equal(t, bundle.AssetPcr, Pcr{}.AssetType())
	assert.Equal(t, bundle.AssetEpd, (&Epd{}).AssetType())
}

func TestBundleRoundTrip(t *testing.T) {
	for _, codec := range []bundle.ObjectCodec{bundle.JSONObjects, bundle.CBORObjects} {
		t.Run(codec.MediaType(), func(t *testing.T) {
			var buf bytes.Buffer
			w := bundle.NewWriter(&buf, bundle.WithObjectCodec(codec))
			pcr := &Pcr{
				ID:       "ec3pcr01",
				Name:     "Concrete",
				IssuedBy: &Org{Name: "ASTM International", Website: "https://www.astm.org"},
			}
			pa, err := w.WriteObjectAsset(pcr)
			require.NoError(t, err)
			epd := &Epd{ProductName: "Mix 4000", DeclaredUnit: "1 m3", GWP: 312.5, Pcr: pcr}
			_, err = w.WriteObjectAsset(epd, bundle.Root(false), bundle.RelatedTo(pa, "uses"))
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, err := bundle.Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
			require.NoError(t, err)
			defer r.Close()

			a, err := r.GetFirstRootAsset(bundle.AssetPcr)
			require.NoError(t, err)
			var gotPcr Pcr
			require.NoError(t, r.ReadObjectAsset(a, &gotPcr))
			assert.Equal(t, *pcr, gotPcr)

			ea, err := r.GetFirstRelativeAsset(a, "uses")
			require.NoError(t, err)
			var gotEpd Epd
			require.NoError(t, r.ReadObjectAsset(ea, &gotEpd))
			assert.Equal(t, *epd, gotEpd)

			// a pcr asset cannot be read into an epd
			err = r.ReadObjectAsset(a, &gotEpd)
			assert.ErrorIs(t, err, bundle.ErrTypeMismatch)
		})
	}
}
