// internal/domain/catalog/resolver.go
package catalog

// Availability is the outcome of resolving one candidate feature value
// against the current selection
type Availability struct {
	FeatureName string         `json:"feature"`
	Value       string         `json:"value"`
	Matches     []GroupProduct `json:"-"`
	InStock     []GroupProduct `json:"-"`
	Stock       int            `json:"stock"`
	Main        *GroupProduct  `json:"main,omitempty"`
	PriceDelta  int64          `json:"price_delta"`
	Disabled    bool           `json:"disabled"`
	Pending     bool           `json:"pending,omitempty"`
}

// Resolve decides whether value of feature is selectable given the current
// selection, and which variant would back it. A nil index means the group
// products are still loading or failed to load.
func Resolve(idx *Index, selection Bind, feature string, value FeatureValue) Availability {
	av := Availability{FeatureName: feature, Value: value.Text}

	if idx == nil {
		av.Pending = true
		av.Disabled = true
		return av
	}
	if !value.Selectable() {
		av.Disabled = true
		return av
	}

	av.Matches = idx.Match(selection.With(feature, value.Text))

	candidates := inStock(av.Matches)
	av.InStock = candidates
	if len(candidates) == 0 {
		candidates = av.Matches
	}

	// Unknown stock contributes nothing to the aggregate.
	for _, g := range candidates {
		if g.Stock != nil && *g.Stock > 0 {
			av.Stock += *g.Stock
		}
	}

	if len(candidates) > 0 {
		main := candidates[0]
		av.Main = &main
		av.PriceDelta = main.AdditionalPrice
	}

	av.Disabled = len(av.Matches) == 0 || av.Stock == 0
	return av
}

// FeatureAvailability groups the resolution of every value of a feature
type FeatureAvailability struct {
	Feature string         `json:"feature"`
	Values  []Availability `json:"values"`
}

// ResolveAll resolves every value of every feature against selection
func ResolveAll(idx *Index, features []Feature, selection Bind) []FeatureAvailability {
	out := make([]FeatureAvailability, 0, len(features))
	for _, f := range features {
		fa := FeatureAvailability{Feature: f.Name, Values: make([]Availability, 0, len(f.Values))}
		for _, v := range f.Values {
			fa.Values = append(fa.Values, Resolve(idx, selection, f.Name, v))
		}
		out = append(out, fa)
	}
	return out
}

// SelectVariant returns the variant backing the full current selection:
// the first in-stock match, else the first match.
func SelectVariant(idx *Index, selection Bind) (*GroupProduct, error) {
	if idx == nil {
		return nil, ErrVariantNotFound
	}
	matches := idx.Match(selection)
	if len(matches) == 0 {
		return nil, ErrVariantNotFound
	}
	if stocked := inStock(matches); len(stocked) > 0 {
		g := stocked[0]
		return &g, nil
	}
	g := matches[0]
	return &g, nil
}

// MissingRequired lists required features that have no value in selection
func MissingRequired(features []Feature, selection Bind) []string {
	var missing []string
	for _, f := range features {
		if !f.Required {
			continue
		}
		if selection[f.Name] == "" {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

func inStock(groups []GroupProduct) []GroupProduct {
	var out []GroupProduct
	for _, g := range groups {
		if g.InStock() {
			out = append(out, g)
		}
	}
	return out
}
