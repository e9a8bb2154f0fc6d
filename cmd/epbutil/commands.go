package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/cchangelabs/openepd/bundle"
	"github.com/cchangelabs/openepd/model"
)

func (e *env) dolist(name string) error {
	r, err := e.open(name)
	if err != nil {
		return err
	}
	defer r.Close()
	w := tabwriter.NewWriter(e.out, 5, 1, 3, ' ', 0)
	fmt.Fprintf(w, "ID\tType\tRoot\tMedia Type\tSize\tName\n")
	for a := range r.Assets() {
		root := ""
		if a.IsRoot {
			root = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", a.ID, a.Type, root, a.MediaType, a.Size, a.DisplayName)
	}
	return w.Flush()
}

// the manifest as it is printed by show
type manifestView struct {
	Format    string         `yaml:"format"`
	Version   string         `yaml:"version"`
	Created   time.Time      `yaml:"created"`
	Generator string         `yaml:"generator,omitempty"`
	Comment   string         `yaml:"comment,omitempty"`
	BundleID  string         `yaml:"bundle_id"`
	Count     int            `yaml:"count"`
	Size      int64          `yaml:"size"`
	ByType    map[string]int `yaml:"by_type"`
	Assets    []assetView    `yaml:"assets"`
}

type assetView struct {
	ID        string         `yaml:"id"`
	Type      string         `yaml:"type"`
	Root      bool           `yaml:"root,omitempty"`
	Kind      string         `yaml:"kind"`
	MediaType string         `yaml:"media_type,omitempty"`
	Name      string         `yaml:"name,omitempty"`
	Language  string         `yaml:"language,omitempty"`
	Comment   string         `yaml:"comment,omitempty"`
	Size      int64          `yaml:"size"`
	SHA256    string         `yaml:"sha256,omitempty"`
	Related   []relationView `yaml:"related,omitempty"`
}

type relationView struct {
	Type string `yaml:"type"`
	To   string `yaml:"to"`
}

func viewOf(m *bundle.Manifest) manifestView {
	v := manifestView{
		Format:    m.Format,
		Version:   m.Version.String(),
		Created:   m.Created,
		Generator: m.Generator,
		Comment:   m.Comment,
		BundleID:  m.BundleID,
		Count:     m.Stats.TotalCount,
		Size:      m.Stats.TotalSize,
		ByType:    make(map[string]int),
	}
	for t, n := range m.Stats.CountByType {
		v.ByType[string(t)] = n
	}
	related := make(map[bundle.AssetID][]relationView)
	for _, rel := range m.Relations {
		related[rel.From] = append(related[rel.From], relationView{Type: string(rel.Type), To: string(rel.To)})
	}
	for _, a := range m.Assets {
		v.Assets = append(v.Assets, assetView{
			ID:        string(a.ID),
			Type:      string(a.Type),
			Root:      a.IsRoot,
			Kind:      string(a.Kind),
			MediaType: a.MediaType,
			Name:      a.DisplayName,
			Language:  a.Language,
			Comment:   a.Comment,
			Size:      a.Size,
			SHA256:    a.SHA256,
			Related:   related[a.ID],
		})
	}
	return v
}

func (e *env) doshow(name string) error {
	r, err := e.open(name)
	if err != nil {
		return err
	}
	defer r.Close()
	v := viewOf(r.Manifest())
	if e.asYAML {
		enc := yaml.NewEncoder(e.out)
		enc.SetIndent(2)
		return multierr.Append(enc.Encode(v), enc.Close())
	}
	w := tabwriter.NewWriter(e.out, 5, 1, 3, ' ', 0)
	fmt.Fprintf(w, "Format:\t%s %s\n", v.Format, v.Version)
	fmt.Fprintf(w, "Bundle:\t%s\n", v.BundleID)
	fmt.Fprintf(w, "Created:\t%v\n", v.Created)
	fmt.Fprintf(w, "Generator:\t%s\n", v.Generator)
	fmt.Fprintf(w, "Comment:\t%s\n", v.Comment)
	fmt.Fprintf(w, "Assets:\t%d\n", v.Count)
	fmt.Fprintf(w, "Size:\t%d\n", v.Size)
	for _, a := range v.Assets {
		fmt.Fprintf(w, "---\t\n")
		fmt.Fprintf(w, "Asset:\t%s\n", a.ID)
		fmt.Fprintf(w, "Type:\t%s (%s)\n", a.Type, a.Kind)
		fmt.Fprintf(w, "Root:\t%v\n", a.Root)
		fmt.Fprintf(w, "Name:\t%s\n", a.Name)
		fmt.Fprintf(w, "SHA256:\t%s\n", a.SHA256)
		for _, rel := range a.Related {
			fmt.Fprintf(w, "%s:\t%s\n", rel.Type, rel.To)
		}
	}
	return w.Flush()
}

func (e *env) doextract(name string, id bundle.AssetID, output string) error {
	r, err := e.open(name)
	if err != nil {
		return err
	}
	defer r.Close()
	a, err := r.AssetByID(id)
	if err != nil {
		return err
	}
	if output == "" {
		return r.ReadAssetPayload(a, func(rd io.Reader) error {
			_, err := io.Copy(e.out, rd)
			return err
		})
	}
	f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	err = r.ReadAssetPayload(a, func(rd io.Reader) error {
		_, err := io.Copy(f, rd)
		return err
	})
	err = multierr.Append(err, f.Close())
	if err != nil {
		os.Remove(output)
	}
	return err
}

// errProblems is returned by verify when the bundle is damaged.
var errProblems = errors.New("bundle failed verification")

func (e *env) doverify(name string) error {
	r, err := e.open(name)
	if err != nil {
		return err
	}
	defer r.Close()
	nb, problems, err := r.Verify(context.Background())
	if err != nil {
		return err
	}
	for _, p := range problems {
		fmt.Fprintln(e.out, p)
	}
	fmt.Fprintf(e.out, "%d bytes checked, %d problem(s)\n", nb, len(problems))
	if len(problems) > 0 {
		return errProblems
	}
	return nil
}

// dopack builds a bundle holding one PCR and its attachments.
func (e *env) dopack(name, pcrFile string, attachments []string) error {
	data, err := os.ReadFile(pcrFile)
	if err != nil {
		return err
	}
	var pcr model.Pcr
	if err := json.Unmarshal(data, &pcr); err != nil {
		return errors.Wrapf(err, "reading %s", pcrFile)
	}
	w, err := e.create(name)
	if err != nil {
		return err
	}
	defer w.Abort()
	root, err := w.WriteObjectAsset(&pcr, bundle.DisplayName(pcr.Name))
	if err != nil {
		return err
	}
	for _, fname := range attachments {
		if err := packFile(w, root, fname); err != nil {
			return err
		}
	}
	return w.Close()
}

func packFile(w *bundle.Writer, root bundle.Asset, fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return err
	}
	defer f.Close()
	mediaType, rel := classify(fname)
	_, err = w.WriteBlobAsset(f, mediaType,
		bundle.DisplayName(filepath.Base(fname)),
		bundle.RelatedTo(root, rel))
	return err
}

// classify guesses the media type of a file and how it relates to the PCR
// it is packed with.
func classify(fname string) (string, bundle.RelType) {
	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(fname)))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	base, _, _ := mime.ParseMediaType(mediaType)
	switch {
	case base == "application/pdf":
		return mediaType, bundle.RelPdf
	case strings.HasSuffix(base, "/xml"):
		return mediaType, bundle.RelIlcd
	case strings.HasPrefix(base, "image/"):
		return mediaType, bundle.RelImage
	}
	return mediaType, bundle.RelType("attachment")
}
