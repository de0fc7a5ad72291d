// Package types defines the canonical type algebra of L (spec.md §3).
//
// A Type is a closed sum of ground types, composite type constructors, and
// named references into the per-translation-unit registry kept by
// internal/env. Types are compared structurally; named types compare by
// name since records/variants are registered once and referenced
// thereafter.
package types

import "fmt"

// Kind discriminates the members of the Type sum.
type Kind int

const (
	// ground
	KUnit Kind = iota
	KBool
	KInt
	KNat
	KTez
	KString
	KBytes
	KTimestamp
	KKey
	KKeyHash
	KSignature
	KOperation
	KAddress

	// composite
	KTuple
	KOption
	KOr
	KList
	KSet
	KMap
	KBigMap
	KContract
	KLambda
	KClosure

	// named
	KRecord
	KVariant
)

// Type is an immutable node in the type algebra. Composite kinds populate
// Args (KClosure's environment type is Args[2]); named kinds populate
// Name only — field/ctor
// layout lives in the environment's registries (internal/env), not here,
// so that two references to the same record name are the same Type value.
type Type struct {
	Kind Kind
	Args []*Type // element/component types, per Kind (see constructors below)
	Name string  // KRecord / KVariant
}

func ground(k Kind) *Type { return &Type{Kind: k} }

var (
	Unit      = ground(KUnit)
	Bool      = ground(KBool)
	Int       = ground(KInt)
	Nat       = ground(KNat)
	Tez       = ground(KTez)
	String    = ground(KString)
	Bytes     = ground(KBytes)
	Timestamp = ground(KTimestamp)
	Key       = ground(KKey)
	KeyHash   = ground(KKeyHash)
	Signature = ground(KSignature)
	Operation = ground(KOperation)
	Address   = ground(KAddress)
)

// Tuple builds an N-ary tuple type, N>=2.
func Tuple(elems ...*Type) *Type { return &Type{Kind: KTuple, Args: elems} }

// Option builds `option T`.
func Option(t *Type) *Type { return &Type{Kind: KOption, Args: []*Type{t}} }

// Or builds `or L R`.
func Or(l, r *Type) *Type { return &Type{Kind: KOr, Args: []*Type{l, r}} }

// List builds `list T`.
func List(t *Type) *Type { return &Type{Kind: KList, Args: []*Type{t}} }

// Set builds `set T`.
func Set(t *Type) *Type { return &Type{Kind: KSet, Args: []*Type{t}} }

// Map builds `map K V`.
func Map(k, v *Type) *Type { return &Type{Kind: KMap, Args: []*Type{k, v}} }

// BigMap builds `bigmap K V`.
func BigMap(k, v *Type) *Type { return &Type{Kind: KBigMap, Args: []*Type{k, v}} }

// Contract builds `contract T`.
func Contract(t *Type) *Type { return &Type{Kind: KContract, Args: []*Type{t}} }

// Lambda builds `lambda A B`.
func Lambda(a, b *Type) *Type { return &Type{Kind: KLambda, Args: []*Type{a, b}} }

// Closure builds `closure A B Env`.
func Closure(a, b, env *Type) *Type { return &Type{Kind: KClosure, Args: []*Type{a, b, env}} }

// Record references a registered record type by name.
func Record(name string) *Type { return &Type{Kind: KRecord, Name: name} }

// Variant references a registered variant type by name.
func Variant(name string) *Type { return &Type{Kind: KVariant, Name: name} }

// Equal is structural equality; named types compare by Name only.
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KRecord, KVariant:
		return a.Name == b.Name
	}
	if len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if !Equal(a.Args[i], b.Args[i]) {
			return false
		}
	}
	return true
}

// IsInt reports whether t is the int ground type.
func IsInt(t *Type) bool { return t != nil && t.Kind == KInt }

// IsNat reports whether t is the nat ground type.
func IsNat(t *Type) bool { return t != nil && t.Kind == KNat }

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KUnit:
		return "unit"
	case KBool:
		return "bool"
	case KInt:
		return "int"
	case KNat:
		return "nat"
	case KTez:
		return "tez"
	case KString:
		return "string"
	case KBytes:
		return "bytes"
	case KTimestamp:
		return "timestamp"
	case KKey:
		return "key"
	case KKeyHash:
		return "key_hash"
	case KSignature:
		return "signature"
	case KOperation:
		return "operation"
	case KAddress:
		return "address"
	case KTuple:
		return fmt.Sprintf("(%s)", joinTypes(t.Args, " * "))
	case KOption:
		return fmt.Sprintf("option %s", t.Args[0])
	case KOr:
		return fmt.Sprintf("or (%s) (%s)", t.Args[0], t.Args[1])
	case KList:
		return fmt.Sprintf("list %s", t.Args[0])
	case KSet:
		return fmt.Sprintf("set %s", t.Args[0])
	case KMap:
		return fmt.Sprintf("map %s %s", t.Args[0], t.Args[1])
	case KBigMap:
		return fmt.Sprintf("bigmap %s %s", t.Args[0], t.Args[1])
	case KContract:
		return fmt.Sprintf("contract %s", t.Args[0])
	case KLambda:
		return fmt.Sprintf("lambda %s %s", t.Args[0], t.Args[1])
	case KClosure:
		return fmt.Sprintf("closure %s %s %s", t.Args[0], t.Args[1], t.Args[2])
	case KRecord:
		return t.Name
	case KVariant:
		return t.Name
	default:
		return "<?>"
	}
}

func joinTypes(ts []*Type, sep string) string {
	s := ""
	for i, t := range ts {
		if i > 0 {
			s += sep
		}
		s += t.String()
	}
	return s
}
