package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func asset(id string, t AssetType, root bool) Asset {
	kind := KindObject
	if t == AssetBlob {
		kind = KindBlob
	}
	return Asset{ID: AssetID(id), Type: t, IsRoot: root, Kind: kind, ref: id + ".entry"}
}

func kinds(v []Violation) []ViolationKind {
	var out []ViolationKind
	for _, x := range v {
		out = append(out, x.Kind)
	}
	return out
}

func TestValidate(t *testing.T) {
	var table = []struct {
		name      string
		assets    []Asset
		relations []Relation
		policy    RootPolicy
		expected  []ViolationKind
	}{
		{name: "empty"},
		{
			name:   "single root",
			assets: []Asset{asset("pcr/1", AssetPcr, true)},
		},
		{
			name:      "root with blob",
			assets:    []Asset{asset("pcr/1", AssetPcr, true), asset("blob/1", AssetBlob, false)},
			relations: []Relation{{From: "pcr/1", To: "blob/1", Type: RelPdf}},
		},
		{
			name: "reachable through chain",
			assets: []Asset{
				asset("epd/1", AssetEpd, true),
				asset("pcr/1", AssetPcr, false),
				asset("blob/1", AssetBlob, false),
			},
			relations: []Relation{
				{From: "epd/1", To: "pcr/1", Type: "pcr"},
				{From: "pcr/1", To: "blob/1", Type: RelPdf},
			},
		},
		{
			name:     "orphans",
			assets:   []Asset{asset("pcr/1", AssetPcr, true), asset("blob/1", AssetBlob, false), asset("blob/2", AssetBlob, false)},
			expected: []ViolationKind{ViolationOrphan, ViolationOrphan},
		},
		{
			name: "cycle without root",
			assets: []Asset{
				asset("pcr/1", AssetPcr, false),
				asset("pcr/2", AssetPcr, false),
			},
			relations: []Relation{
				{From: "pcr/1", To: "pcr/2", Type: RelTranslation},
				{From: "pcr/2", To: "pcr/1", Type: RelTranslation},
			},
			expected: []ViolationKind{ViolationOrphan, ViolationOrphan},
		},
		{
			name:      "dangling both ends",
			assets:    []Asset{asset("pcr/1", AssetPcr, true)},
			relations: []Relation{{From: "x", To: "y", Type: RelPdf}},
			expected:  []ViolationKind{ViolationDanglingFrom, ViolationDanglingTo},
		},
		{
			name:     "duplicate and empty ids",
			assets:   []Asset{asset("pcr/1", AssetPcr, true), asset("pcr/1", AssetPcr, true), asset("", AssetPcr, true)},
			expected: []ViolationKind{ViolationDuplicateID, ViolationEmptyID},
		},
		{
			name:     "root policy",
			assets:   []Asset{asset("blob/1", AssetBlob, true)},
			policy:   ObjectRoots,
			expected: []ViolationKind{ViolationRootNotEligible},
		},
		{
			name: "bad storage",
			assets: []Asset{
				{ID: "a", Type: AssetPcr, IsRoot: true, Kind: "folder", ref: "a"},
				{ID: "b", Type: AssetPcr, IsRoot: true, Kind: KindObject},
				{ID: "c", Type: AssetPcr, IsRoot: true, Kind: KindObject, ref: "a"},
			},
			expected: []ViolationKind{ViolationUnknownKind, ViolationMissingRef, ViolationDuplicateRef},
		},
	}
	for _, tab := range table {
		t.Run(tab.name, func(t *testing.T) {
			v := Validate(tab.assets, tab.relations, tab.policy)
			assert.Equal(t, tab.expected, kinds(v))
		})
	}
}

func TestValidateOrphanNames(t *testing.T) {
	v := Validate([]Asset{
		asset("pcr/1", AssetPcr, true),
		asset("blob/1", AssetBlob, false),
		asset("blob/2", AssetBlob, false),
	}, nil, nil)
	if assert.Len(t, v, 2) {
		assert.Equal(t, AssetID("blob/1"), v[0].Asset)
		assert.Equal(t, AssetID("blob/2"), v[1].Asset)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	rel := Relation{From: "a", To: "b", Type: RelLogo}
	err := &ValidationError{
		Err: ErrValidationFailed,
		Violations: []Violation{
			{Kind: ViolationOrphan, Asset: "blob/1"},
			{Kind: ViolationDanglingTo, Asset: "b", Relation: &rel},
		},
	}
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t,
		`bundle: validation failed: 2 violation(s): orphaned asset: "blob/1"; dangling relation target: a -[logo]-> b`,
		err.Error())
}
