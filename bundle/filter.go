package bundle

// An AssetFilter selects assets. A nil filter selects everything.
type AssetFilter func(Asset) bool

func (f AssetFilter) match(a Asset) bool {
	return f == nil || f(a)
}

// OfType selects assets of the given type.
func OfType(t AssetType) AssetFilter {
	return func(a Asset) bool { return a.Type == t }
}

// Named selects assets with the given display name.
func Named(name string) AssetFilter {
	return func(a Asset) bool { return a.DisplayName == name }
}

// InLanguage selects assets tagged with the given language.
func InLanguage(lang string) AssetFilter {
	return func(a Asset) bool { return a.Language == lang }
}

// AllOf selects assets matched by every filter.
func AllOf(filters ...AssetFilter) AssetFilter {
	return func(a Asset) bool {
		for _, f := range filters {
			if !f.match(a) {
				return false
			}
		}
		return true
	}
}
