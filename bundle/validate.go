package bundle

import "fmt"

// ViolationKind names the invariant a Violation breaks.
type ViolationKind string

const (
	ViolationEmptyID         ViolationKind = "empty id"
	ViolationDuplicateID     ViolationKind = "duplicate id"
	ViolationUnknownKind     ViolationKind = "unknown content kind"
	ViolationMissingRef      ViolationKind = "missing storage ref"
	ViolationDuplicateRef    ViolationKind = "duplicate storage ref"
	ViolationDanglingFrom    ViolationKind = "dangling relation source"
	ViolationDanglingTo      ViolationKind = "dangling relation target"
	ViolationOrphan          ViolationKind = "orphaned asset"
	ViolationRootNotEligible ViolationKind = "root not eligible"
)

// Violation is one problem found by Validate.
type Violation struct {
	Kind     ViolationKind
	Asset    AssetID
	Relation *Relation // set for the dangling kinds
}

func (v Violation) String() string {
	if v.Relation != nil {
		return fmt.Sprintf("%s: %s -[%s]-> %s", v.Kind, v.Relation.From, v.Relation.Type, v.Relation.To)
	}
	return fmt.Sprintf("%s: %q", v.Kind, v.Asset)
}

// IsDangling is true for violations about relation endpoints.
func (v Violation) IsDangling() bool {
	return v.Kind == ViolationDanglingFrom || v.Kind == ViolationDanglingTo
}

// RootPolicy decides which asset types may be root assets.
type RootPolicy func(AssetType) bool

// AnyRoot allows every asset type to be a root.
func AnyRoot(AssetType) bool { return true }

// ObjectRoots allows every type except AssetBlob to be a root.
func ObjectRoots(t AssetType) bool { return t != AssetBlob }

// Validate checks assets and relations against the bundle invariants and
// returns every violation found, in asset then relation order. It returns
// nil if the set is consistent. A nil policy means AnyRoot.
//
// The checks are: ids are non-empty and unique, every asset has a known
// content kind and its own storage ref, every relation endpoint exists,
// root assets have an eligible type, and every non-root asset is reachable
// from a root asset.
func Validate(assets []Asset, relations []Relation, policy RootPolicy) []Violation {
	if policy == nil {
		policy = AnyRoot
	}
	var out []Violation
	index := make(map[AssetID]int, len(assets))
	refs := make(map[string]bool, len(assets))
	for i, a := range assets {
		if a.ID == "" {
			out = append(out, Violation{Kind: ViolationEmptyID})
			continue
		}
		if _, ok := index[a.ID]; ok {
			out = append(out, Violation{Kind: ViolationDuplicateID, Asset: a.ID})
			continue
		}
		index[a.ID] = i
		if a.Kind != KindObject && a.Kind != KindBlob {
			out = append(out, Violation{Kind: ViolationUnknownKind, Asset: a.ID})
		}
		switch {
		case a.ref == "":
			out = append(out, Violation{Kind: ViolationMissingRef, Asset: a.ID})
		case refs[a.ref]:
			out = append(out, Violation{Kind: ViolationDuplicateRef, Asset: a.ID})
		default:
			refs[a.ref] = true
		}
		if a.IsRoot && !policy(a.Type) {
			out = append(out, Violation{Kind: ViolationRootNotEligible, Asset: a.ID})
		}
	}

	edges := make(map[AssetID][]AssetID)
	for i := range relations {
		rel := relations[i]
		_, fromOK := index[rel.From]
		_, toOK := index[rel.To]
		if !fromOK {
			out = append(out, Violation{Kind: ViolationDanglingFrom, Asset: rel.From, Relation: &rel})
		}
		if !toOK {
			out = append(out, Violation{Kind: ViolationDanglingTo, Asset: rel.To, Relation: &rel})
		}
		if fromOK && toOK {
			edges[rel.From] = append(edges[rel.From], rel.To)
		}
	}

	// breadth first walk from every root
	reached := make(map[AssetID]bool, len(index))
	var queue []AssetID
	for id, i := range index {
		if assets[i].IsRoot {
			reached[id] = true
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range edges[id] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}
	for i, a := range assets {
		if a.ID == "" || index[a.ID] != i {
			continue
		}
		if !reached[a.ID] {
			out = append(out, Violation{Kind: ViolationOrphan, Asset: a.ID})
		}
	}
	return out
}
