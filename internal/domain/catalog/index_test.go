package catalog

import (
	"testing"

	"gorm.io/datatypes"
)

func stock(n int) *int { return &n }

func group(id uint, n *int, delta int64, bind Bind) GroupProduct {
	return GroupProduct{ID: id, ProductID: 1, Stock: n, AdditionalPrice: delta, Bind: datatypes.NewJSONType(bind)}
}

func shirtGroups() []GroupProduct {
	return []GroupProduct{
		group(1, stock(3), 0, Bind{"color": "red", "size": "S"}),
		group(2, stock(0), 200, Bind{"color": "red", "size": "M"}),
		group(3, stock(5), 0, Bind{"color": "blue", "size": "S"}),
	}
}

func ids(groups []GroupProduct) []uint {
	out := make([]uint, len(groups))
	for i, g := range groups {
		out[i] = g.ID
	}
	return out
}

func equalIDs(a, b []uint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestIndexMatch(t *testing.T) {
	idx := NewIndex(shirtGroups())

	tests := []struct {
		name  string
		query Bind
		want  []uint
	}{
		{"empty query matches all in order", Bind{}, []uint{1, 2, 3}},
		{"single feature", Bind{"color": "red"}, []uint{1, 2}},
		{"full selection", Bind{"color": "blue", "size": "S"}, []uint{3}},
		{"no match", Bind{"color": "green"}, nil},
		{"unknown feature is unconstrained", Bind{"fit": "slim"}, []uint{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(idx.Match(tt.query))
			if !equalIDs(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestIndexMatch_NoGroups(t *testing.T) {
	idx := NewIndex(nil)
	if got := idx.Match(Bind{"color": "red"}); len(got) != 0 {
		t.Errorf("expected no matches, got %v", ids(got))
	}
}

func TestIndexMatch_FullSelectionAtMostOne(t *testing.T) {
	idx := NewIndex(shirtGroups())
	for _, color := range []string{"red", "blue"} {
		for _, size := range []string{"S", "M", "L"} {
			if n := len(idx.Match(Bind{"color": color, "size": size})); n > 1 {
				t.Errorf("expected at most one match for %s/%s, got %d", color, size, n)
			}
		}
	}
}

func TestBindSignature(t *testing.T) {
	a := Bind{"size": "S", "color": "red"}
	b := Bind{"color": "red", "size": "S"}
	if a.Signature() != b.Signature() {
		t.Errorf("expected equal signatures, got %q and %q", a.Signature(), b.Signature())
	}
	if a.Signature() != "color=red;size=S" {
		t.Errorf("unexpected signature %q", a.Signature())
	}
	if (Bind{}).Signature() != "" {
		t.Error("expected empty signature for empty bind")
	}
}

func TestBindWith_DoesNotMutate(t *testing.T) {
	sel := Bind{"color": "red"}
	q := sel.With("color", "blue")
	if sel["color"] != "red" {
		t.Errorf("expected original bind untouched, got %q", sel["color"])
	}
	if q["color"] != "blue" {
		t.Errorf("expected overridden value, got %q", q["color"])
	}
}
