package bundle

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// FormatName is written into every manifest.
const FormatName = "openEPD Bundle"

// Version is a manifest format version. Readers accept any minor version of
// a major version they have a codec for.
type Version struct {
	Major int
	Minor int
}

// ParseVersion parses a "major.minor" string.
func ParseVersion(s string) (Version, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return Version{}, errors.Errorf("invalid version %q", s)
	}
	major, err1 := strconv.ParseUint(parts[0], 10, 31)
	minor, err2 := strconv.ParseUint(parts[1], 10, 31)
	if err1 != nil || err2 != nil {
		return Version{}, errors.Errorf("invalid version %q", s)
	}
	return Version{Major: int(major), Minor: int(minor)}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Stats summarizes the assets of a bundle.
type Stats struct {
	TotalCount  int
	TotalSize   int64
	CountByType map[AssetType]int
}

// Manifest is the archive-wide index of a bundle. It is the only place the
// structure of a bundle is recorded.
type Manifest struct {
	Format    string
	Version   Version
	Created   time.Time
	Generator string
	Comment   string
	BundleID  string
	Stats     Stats

	// in insertion order
	Assets    []Asset
	Relations []Relation
}

// Copy returns a deep copy of m.
func (m *Manifest) Copy() *Manifest {
	c := *m
	c.Assets = append([]Asset(nil), m.Assets...)
	c.Relations = append([]Relation(nil), m.Relations...)
	if m.Stats.CountByType != nil {
		c.Stats.CountByType = make(map[AssetType]int, len(m.Stats.CountByType))
		for k, v := range m.Stats.CountByType {
			c.Stats.CountByType[k] = v
		}
	}
	return &c
}

// computeStats fills in m.Stats from m.Assets.
func (m *Manifest) computeStats() {
	s := Stats{CountByType: make(map[AssetType]int)}
	for _, a := range m.Assets {
		s.TotalCount++
		s.TotalSize += a.Size
		s.CountByType[a.Type]++
	}
	m.Stats = s
}
