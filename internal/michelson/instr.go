// Package michelson is the symbolic M instruction set (spec.md §3,
// "Symbolic M instruction") plus the codecs that convert it to and from
// the concrete external syntax tree of §6. Each Instr carries its source
// location and optional debug-name annotation; the location/name flow
// unchanged through every pass that doesn't materially change the
// instruction (spec.md §5).
package michelson

import "stackc/internal/types"

type Op int

const (
	// stack moves
	OpDup Op = iota
	OpSwap
	OpDip
	OpDipDrop
	OpDrop
	OpDig
	OpDug

	// structural
	OpPair
	OpCar
	OpCdr
	OpCdar
	OpCddr
	OpRecord
	OpLeft
	OpRight

	// control
	OpSeq
	OpIf
	OpIfNone
	OpIfLeft
	OpIfCons
	OpLoop
	OpLoopLeft
	OpIter
	OpMap
	OpLambda
	OpExec
	OpRename
	OpFailwith

	// constants
	OpPush

	// arithmetic / comparison / logic
	OpAdd
	OpSub
	OpMul
	OpEDiv
	OpAbs
	OpISNat
	OpInt
	OpNeg
	OpNot
	OpAnd
	OpOr
	OpXor
	OpCompare
	OpEq
	OpNeq
	OpLt
	OpGt
	OpLe
	OpGe

	// collections
	OpCons
	OpNil
	OpSome
	OpNone
	OpEmptySet
	OpEmptyMap
	OpEmptyBigMap
	OpSize
	OpMem
	OpGet
	OpUpdate
	OpConcat
	OpSlice

	// crypto
	OpBlake2B
	OpSha256
	OpSha512
	OpKeccak
	OpSha3
	OpCheckSignature
	OpHashKey

	// contract ops
	OpTransferTokens
	OpSelf
	OpBalance
	OpNow
	OpAmount
	OpSender
	OpSource
	OpStepsToQuota
	OpAddress
	OpContract
	OpSetDelegate
	OpImplicitAccount
	OpCreateAccount
	OpCreateContract
	OpPack
	OpUnpack

	OpUnit
)

// Instr is one symbolic M instruction.
type Instr struct {
	Op    Op
	Loc   Loc
	Name  string // sanitized debug annotation, or "" (§4.4)
	Field string // %field label for Pair/Car/Cdr/Record/Left/Right

	N  int // DUP depth, DIP depth, CDAR/CDDR depth, DIP_DROP(n,_) first operand
	N2 int // DIP_DROP(_,k) second operand: number of values to drop

	Nested  []Instr // DIP body, SEQ body, LAMBDA body
	Then    []Instr // IF/IF_NONE/IF_LEFT/IF_CONS first branch; LOOP/LOOP_LEFT/ITER/MAP body
	Else    []Instr // IF/IF_NONE/IF_LEFT/IF_CONS second branch

	Ty  *types.Type // LAMBDA param/ret and EMPTY_MAP/EMPTY_BIG_MAP key/value go in Tys; NIL/NONE/EMPTY_SET element type; LEFT/RIGHT/CONTRACT/UNPACK annotation type
	Tys []*types.Type

	Const types.Const // PUSH
}

// Loc mirrors diag.Loc without importing internal/diag, keeping this
// package free of a dependency on the error taxonomy.
type Loc struct {
	File string
	Line int
	Col  int
}

// Seq is a straight-line instruction sequence — the unit the peephole
// pass and the tail-fail finalizer both operate on (spec.md §4.5).
type Seq = []Instr
