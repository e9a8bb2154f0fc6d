/*
Package bundle reads and writes openEPD bundles.

A bundle is a single zip archive holding a set of assets together with a
manifest describing them. An asset is either an object, a serialized
domain record such as an EPD or a PCR, or a blob, an opaque byte stream
such as a PDF. Assets are linked by typed relations, for example a PCR and
the PDF rendering of it. Every asset which is not a root asset must be
reachable from a root asset.

Bundles are written once with a Writer and never changed afterwards:

	w, err := bundle.Create("pcr.epb")
	pcr, err := w.WriteObjectAsset(doc)
	pdf, err := w.WriteBlobAsset(f, "application/pdf", bundle.RelatedTo(pcr, bundle.RelPdf))
	err = w.Close()

The archive only appears at its destination when Close succeeds. A Reader
opens a bundle, checks its manifest, and then reads payloads on demand:

	r, err := bundle.OpenFile("pcr.epb")
	defer r.Close()
	pcr, err := r.GetFirstRootAsset(bundle.AssetPcr)
	pdf, err := r.GetFirstRelativeAsset(pcr, bundle.RelPdf)
	err = r.ReadBlobAsset(pdf, func(rd io.Reader) error { ... })

The manifest format is versioned. A CodecRegistry maps each major version
to a codec; readers accept any minor version of a known major version and
reject everything else with ErrManifestCorrupt.
*/
package bundle
