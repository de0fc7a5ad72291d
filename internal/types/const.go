package types

// Const mirrors the Type sum (spec.md §3, "Constants mirror the types").
// Literal bigmap and operation values have restricted construction sites:
// a BigMap constant is only ever the empty bigmap produced by the encoder
// (see internal/encode's empty-bigmap rewrite), and an Operation constant
// never appears as source-level syntax at all — it can only be produced at
// runtime by transfer/create-contract/set-delegate.
type Const struct {
	Ty    *Type
	Kind  ConstKind
	Int   int64   // CInt, CNat, CTimestamp (unix seconds), CTez (mutez)
	Str   string  // CString, CBytes (hex), CKey, CKeyHash, CSignature, CAddress
	Bool  bool    // CBool
	Elems []Const // CTuple, CList, CSet elements; COption (0 or 1); COr (1, tagged by Right)
	Keys  []Const // CMap/CBigMap keys, parallel to Elems as values
	Right bool    // COr: true selects the R injection
}

type ConstKind int

const (
	CUnit ConstKind = iota
	CBool
	CInt
	CNat
	CTez
	CString
	CBytes
	CTimestamp
	CKey
	CKeyHash
	CSignature
	CAddress
	CTuple
	COption
	COr
	CList
	CSet
	CMap
	CBigMap
)

// Unit is the sole value of the unit type.
func Unit_() Const { return Const{Ty: Unit, Kind: CUnit} }

// EmptyBigMap is the only source-visible bigmap literal (spec.md §4.2,
// §9 open question). Inside a storage initializer the encoder binds one
// such literal in a slot-0 Let and replaces the literals it reaches with
// references to that binding (internal/encode's rewriteEmptyBigMap).
func EmptyBigMap(k, v *Type) Const {
	return Const{Ty: BigMap(k, v), Kind: CBigMap}
}
