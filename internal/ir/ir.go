// Package ir is the canonical typed term (spec.md §3, "Typed term"). Every
// node carries its inferred type, source location, optional debug name,
// and the transfer-effect flag computed by internal/check. Nodes form a
// tree (no cycles) from encoding onward (spec.md §9).
package ir

import (
	"stackc/internal/diag"
	"stackc/internal/types"
)

type Tag int

const (
	Var Tag = iota
	ConstNode
	Let
	Seq
	If
	Lambda
	Closure
	Apply
	MatchOption
	MatchNat
	MatchList
	MatchVariant
	Loop
	LoopLeft
	Fold
	MapNode
	MapFold
	RecordConstruct
	Project
	SetField
	Transfer
	Failwith
	CreateContract
	ContractAt
	Unpack
)

// Node is the typed IR term. Exactly one of the tag-specific field groups
// below is populated, selected by Tag. Node is treated as immutable once
// built: passes that would change a node build a new one (see
// internal/simplify's rebuild),
// preserving physical identity for unchanged subtrees (spec.md §3
// Lifecycle, §9 "rebuild if any child changed").
type Node struct {
	Tag      Tag
	Ty       *types.Type
	At       diag.Loc
	Name     string // debug annotation, sanitized at codegen time
	Transfer bool   // true iff this node may enqueue an operation (§4.1)
	Pure     bool   // true iff safe to duplicate/elide (drives §4.3 inlining)
	UseCount int    // for Let nodes: references to the bound name in Body

	Var string // Var

	Const types.Const // ConstNode

	Bound *Node // Let
	Body  *Node // Let

	First  *Node // Seq
	Second *Node // Seq

	Cond *Node // If
	Then *Node // If
	Else *Node // If

	Param   string // Lambda
	ParamTy *types.Type
	Lam     *Node // Lambda body; also Closure's lifted lambda after encoding
	Recur   bool

	Env *Node // Closure: captured environment tuple

	Prim string  // Apply
	Args []*Node // Apply

	Scrutinee *Node // Match*

	NoneVar  string // MatchOption
	NoneBody *Node
	SomeVar  string
	SomeBody *Node

	NilBody  *Node // MatchList
	HeadVar  string
	TailVar  string
	ConsBody *Node

	PlusVar   string // MatchNat
	PlusBody  *Node
	MinusVar  string
	MinusBody *Node

	Cases []Case // MatchVariant, right-leaning Or order

	LoopBody *Node // Loop / LoopLeft: body returning (bool,acc) or `or`

	AccVar     string // Fold / Map / MapFold
	EltVar     string
	Acc        *Node
	Collection *Node
	IterBody   *Node

	RecordName string // RecordConstruct
	FieldOrder []string
	FieldVals  []*Node

	Object *Node // Project / SetField
	Field  string
	Value  *Node // SetField

	Contract    *Node // Transfer
	Amount      *Node
	TransferArg *Node

	FailMsg *Node // Failwith

	CreateStorage   *Node // CreateContract
	ContractParamTy *types.Type

	UnpackTy    *types.Type // Unpack
	UnpackBytes *Node
}

// Case is one arm of a compiled variant match, canonical Left/Right order.
type Case struct {
	Ctor string
	Var  string
	Body *Node
}

// SameShape is used by passes that want to avoid rebuilding a node whose
// children are all physically identical to the originals (spec.md §9).
func SameShape(children ...bool) bool {
	for _, c := range children {
		if !c {
			return false
		}
	}
	return true
}

// Entry is the typed form of an entry point: `(entry_name, parameter_ty,
// parameter_name, storage_name) -> body : operation list * storage`.
type Entry struct {
	Name        string
	ParamName   string
	ParamTy     *types.Type
	StorageName string
	Body        *Node
	At          diag.Loc
}

// GlobalBinding is a typed top-level `let`.
type GlobalBinding struct {
	Name  string
	Value *Node
}

// Contract is the typed form of spec.md §3's Contract record.
type Contract struct {
	Name    string
	Storage *types.Type
	Globals []GlobalBinding
	Entries []Entry
	Init    *Node
}
