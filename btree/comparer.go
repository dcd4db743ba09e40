package btree

import "cmp"

// Ordered constrains key types that can be stored in a Btree to the built-in
// totally ordered types.
type Ordered interface {
	cmp.Ordered
}

// ComparerFunc allows providing a comparer function separate from the key object.
// It returns -1, 0, or 1 for a < b, a == b, and a > b respectively.
type ComparerFunc[TK Ordered] func(a TK, b TK) int

// DefaultComparer returns a ComparerFunc built on cmp.Compare.
func DefaultComparer[TK Ordered]() ComparerFunc[TK] {
	return func(a TK, b TK) int {
		return cmp.Compare(a, b)
	}
}
