// internal/domain/catalog/index.go
package catalog

import (
	"sort"
	"strings"
)

// Bind maps a feature name to the chosen value text
type Bind map[string]string

// Clone returns an independent copy of the bind
func (b Bind) Clone() Bind {
	out := make(Bind, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// With returns a copy of the bind with feature set to value
func (b Bind) With(feature, value string) Bind {
	out := b.Clone()
	out[feature] = value
	return out
}

// Compatible reports whether every feature present in both binds has the
// same value. Features missing from either side are unconstrained.
func (b Bind) Compatible(other Bind) bool {
	for name, value := range b {
		if v, ok := other[name]; ok && v != value {
			return false
		}
	}
	return true
}

// Signature is a canonical representation used as variant identity
func (b Bind) Signature() string {
	if len(b) == 0 {
		return ""
	}
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(b[k])
	}
	return sb.String()
}

// Index answers which group products match a partial selection. It is
// read-only after construction.
type Index struct {
	groups []GroupProduct
	binds  []Bind
}

// NewIndex builds an index preserving the server ordering of groups
func NewIndex(groups []GroupProduct) *Index {
	idx := &Index{
		groups: make([]GroupProduct, len(groups)),
		binds:  make([]Bind, len(groups)),
	}
	copy(idx.groups, groups)
	for i := range idx.groups {
		idx.binds[i] = idx.groups[i].Binding()
	}
	return idx
}

// Len returns the number of indexed group products
func (idx *Index) Len() int {
	return len(idx.groups)
}

// Match returns every group product whose bind agrees with query on the
// features both mention, in index order
func (idx *Index) Match(query Bind) []GroupProduct {
	var out []GroupProduct
	for i, bind := range idx.binds {
		if query.Compatible(bind) {
			out = append(out, idx.groups[i])
		}
	}
	return out
}

// ByID returns the group product with the given id
func (idx *Index) ByID(id uint) (*GroupProduct, bool) {
	for i := range idx.groups {
		if idx.groups[i].ID == id {
			g := idx.groups[i]
			return &g, true
		}
	}
	return nil, false
}
