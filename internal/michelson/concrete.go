package michelson

import (
	"strconv"

	"stackc/internal/types"
)

// Concrete is the external syntax tree of spec.md §6: every M instruction
// serializes either as a lowercase mnemonic with positional operands, or
// as a structured object `{prim: NAME, args: [...], annots: [...]}`.
// Concrete is the single representation both the textual and the
// structured emitters render from, and both decoders (text/json) parse
// into.
type Concrete struct {
	Prim   string
	Args   []Concrete
	Annots []string // "@name" / "%field", in the order spec.md §6 allows
}

// Program is the three top-level stanzas of spec.md §6.
type Program struct {
	Parameter *types.Type
	Storage   *types.Type
	Code      []Concrete
}

// ToConcrete lowers a symbolic instruction sequence to the external syntax
// tree, the Emitter half of spec.md §4.6.
func ToConcrete(seq Seq) []Concrete {
	out := make([]Concrete, 0, len(seq))
	for _, ins := range seq {
		out = append(out, instrToConcrete(ins))
	}
	return out
}

func annotsOf(ins Instr) []string {
	var a []string
	if ins.Name != "" {
		a = append(a, "@"+ins.Name)
	}
	if ins.Field != "" {
		a = append(a, "%"+ins.Field)
	}
	return a
}

func instrToConcrete(ins Instr) Concrete {
	a := annotsOf(ins)
	switch ins.Op {
	case OpDup:
		return numArg("DUP", ins.N, a)
	case OpSwap:
		return Concrete{Prim: "SWAP", Annots: a}
	case OpDip:
		body := Concrete{Prim: "SEQ", Args: ToConcrete(ins.Nested)}
		if ins.N == 1 {
			return Concrete{Prim: "DIP", Args: []Concrete{body}, Annots: a}
		}
		return Concrete{Prim: "DIP", Args: []Concrete{intLeaf(ins.N), body}, Annots: a}
	case OpDipDrop:
		return Concrete{Prim: "DIP_DROP", Args: []Concrete{intLeaf(ins.N), intLeaf(ins.N2)}, Annots: a}
	case OpDrop:
		if ins.N > 0 {
			return Concrete{Prim: "DROP", Args: []Concrete{intLeaf(ins.N)}, Annots: a}
		}
		return Concrete{Prim: "DROP", Annots: a}
	case OpDig:
		return Concrete{Prim: "DIG", Args: []Concrete{intLeaf(ins.N)}, Annots: a}
	case OpDug:
		return Concrete{Prim: "DUG", Args: []Concrete{intLeaf(ins.N)}, Annots: a}
	case OpPair:
		return Concrete{Prim: "PAIR", Annots: a}
	case OpCar:
		return Concrete{Prim: "CAR", Annots: a}
	case OpCdr:
		return Concrete{Prim: "CDR", Annots: a}
	case OpCdar:
		return numArg("CDAR", ins.N, a)
	case OpCddr:
		return numArg("CDDR", ins.N, a)
	case OpRecord:
		return Concrete{Prim: "RECORD", Annots: a}
	case OpLeft:
		return Concrete{Prim: "LEFT", Args: []Concrete{typeLeaf(ins.Ty)}, Annots: a}
	case OpRight:
		return Concrete{Prim: "RIGHT", Args: []Concrete{typeLeaf(ins.Ty)}, Annots: a}
	case OpSeq:
		return Concrete{Prim: "SEQ", Args: ToConcrete(ins.Nested)}
	case OpIf:
		return branchy("IF", ins)
	case OpIfNone:
		return branchy("IF_NONE", ins)
	case OpIfLeft:
		return branchy("IF_LEFT", ins)
	case OpIfCons:
		return branchy("IF_CONS", ins)
	case OpLoop:
		return Concrete{Prim: "LOOP", Args: []Concrete{{Prim: "SEQ", Args: ToConcrete(ins.Then)}}, Annots: a}
	case OpLoopLeft:
		return Concrete{Prim: "LOOP_LEFT", Args: []Concrete{{Prim: "SEQ", Args: ToConcrete(ins.Then)}}, Annots: a}
	case OpIter:
		return Concrete{Prim: "ITER", Args: []Concrete{{Prim: "SEQ", Args: ToConcrete(ins.Then)}}, Annots: a}
	case OpMap:
		return Concrete{Prim: "MAP", Args: []Concrete{{Prim: "SEQ", Args: ToConcrete(ins.Then)}}, Annots: a}
	case OpLambda:
		return Concrete{Prim: "LAMBDA", Args: []Concrete{typeLeaf(ins.Tys[0]), typeLeaf(ins.Tys[1]), {Prim: "SEQ", Args: ToConcrete(ins.Nested)}}, Annots: a}
	case OpExec:
		return Concrete{Prim: "EXEC", Annots: a}
	case OpRename:
		return Concrete{Prim: "RENAME", Annots: a}
	case OpFailwith:
		return Concrete{Prim: "FAILWITH", Annots: a}
	case OpPush:
		return Concrete{Prim: "PUSH", Args: []Concrete{typeLeaf(ins.Ty), constLeaf(ins.Const)}, Annots: a}
	case OpUnit:
		return Concrete{Prim: "UNIT", Annots: a}
	case OpNil:
		return Concrete{Prim: "NIL", Args: []Concrete{typeLeaf(ins.Ty)}, Annots: a}
	case OpNone:
		return Concrete{Prim: "NONE", Args: []Concrete{typeLeaf(ins.Ty)}, Annots: a}
	case OpSome:
		return Concrete{Prim: "SOME", Annots: a}
	case OpEmptySet:
		return Concrete{Prim: "EMPTY_SET", Args: []Concrete{typeLeaf(ins.Ty)}, Annots: a}
	case OpEmptyMap:
		return Concrete{Prim: "EMPTY_MAP", Args: []Concrete{typeLeaf(ins.Tys[0]), typeLeaf(ins.Tys[1])}, Annots: a}
	case OpEmptyBigMap:
		return Concrete{Prim: "EMPTY_BIG_MAP", Args: []Concrete{typeLeaf(ins.Tys[0]), typeLeaf(ins.Tys[1])}, Annots: a}
	case OpCons:
		return Concrete{Prim: "CONS", Annots: a}
	case OpConcat:
		return Concrete{Prim: "CONCAT", Annots: a}
	case OpSlice:
		return Concrete{Prim: "SLICE", Annots: a}
	case OpSize:
		return Concrete{Prim: "SIZE", Annots: a}
	case OpMem:
		return Concrete{Prim: "MEM", Annots: a}
	case OpGet:
		return Concrete{Prim: "GET", Annots: a}
	case OpUpdate:
		return Concrete{Prim: "UPDATE", Annots: a}
	case OpAdd:
		return Concrete{Prim: "ADD", Annots: a}
	case OpSub:
		return Concrete{Prim: "SUB", Annots: a}
	case OpMul:
		return Concrete{Prim: "MUL", Annots: a}
	case OpEDiv:
		return Concrete{Prim: "EDIV", Annots: a}
	case OpAbs:
		return Concrete{Prim: "ABS", Annots: a}
	case OpISNat:
		return Concrete{Prim: "ISNAT", Annots: a}
	case OpInt:
		return Concrete{Prim: "INT", Annots: a}
	case OpNeg:
		return Concrete{Prim: "NEG", Annots: a}
	case OpNot:
		return Concrete{Prim: "NOT", Annots: a}
	case OpAnd:
		return Concrete{Prim: "AND", Annots: a}
	case OpOr:
		return Concrete{Prim: "OR", Annots: a}
	case OpXor:
		return Concrete{Prim: "XOR", Annots: a}
	case OpCompare:
		return Concrete{Prim: "COMPARE", Annots: a}
	case OpEq:
		return Concrete{Prim: "EQ", Annots: a}
	case OpNeq:
		return Concrete{Prim: "NEQ", Annots: a}
	case OpLt:
		return Concrete{Prim: "LT", Annots: a}
	case OpGt:
		return Concrete{Prim: "GT", Annots: a}
	case OpLe:
		return Concrete{Prim: "LE", Annots: a}
	case OpGe:
		return Concrete{Prim: "GE", Annots: a}
	case OpBlake2B:
		return Concrete{Prim: "BLAKE2B", Annots: a}
	case OpSha256:
		return Concrete{Prim: "SHA256", Annots: a}
	case OpSha512:
		return Concrete{Prim: "SHA512", Annots: a}
	case OpKeccak:
		return Concrete{Prim: "KECCAK", Annots: a}
	case OpSha3:
		return Concrete{Prim: "SHA3", Annots: a}
	case OpCheckSignature:
		return Concrete{Prim: "CHECK_SIGNATURE", Annots: a}
	case OpHashKey:
		return Concrete{Prim: "HASH_KEY", Annots: a}
	case OpTransferTokens:
		return Concrete{Prim: "TRANSFER_TOKENS", Annots: a}
	case OpSelf:
		return Concrete{Prim: "SELF", Annots: a}
	case OpBalance:
		return Concrete{Prim: "BALANCE", Annots: a}
	case OpNow:
		return Concrete{Prim: "NOW", Annots: a}
	case OpAmount:
		return Concrete{Prim: "AMOUNT", Annots: a}
	case OpSender:
		return Concrete{Prim: "SENDER", Annots: a}
	case OpSource:
		return Concrete{Prim: "SOURCE", Annots: a}
	case OpStepsToQuota:
		return Concrete{Prim: "STEPS_TO_QUOTA", Annots: a}
	case OpAddress:
		return Concrete{Prim: "ADDRESS", Annots: a}
	case OpContract:
		return Concrete{Prim: "CONTRACT", Args: []Concrete{typeLeaf(ins.Ty)}, Annots: a}
	case OpSetDelegate:
		return Concrete{Prim: "SET_DELEGATE", Annots: a}
	case OpImplicitAccount:
		return Concrete{Prim: "IMPLICIT_ACCOUNT", Annots: a}
	case OpCreateAccount:
		return Concrete{Prim: "CREATE_ACCOUNT", Annots: a}
	case OpCreateContract:
		return Concrete{Prim: "CREATE_CONTRACT", Args: []Concrete{{Prim: "SEQ", Args: ToConcrete(ins.Nested)}}, Annots: a}
	case OpPack:
		return Concrete{Prim: "PACK", Annots: a}
	case OpUnpack:
		return Concrete{Prim: "UNPACK", Args: []Concrete{typeLeaf(ins.Ty)}, Annots: a}
	}
	return Concrete{Prim: "NOP"}
}

func branchy(prim string, ins Instr) Concrete {
	return Concrete{Prim: prim, Args: []Concrete{
		{Prim: "SEQ", Args: ToConcrete(ins.Then)},
		{Prim: "SEQ", Args: ToConcrete(ins.Else)},
	}, Annots: annotsOf(ins)}
}

func numArg(prim string, n int, a []string) Concrete {
	if n <= 1 {
		return Concrete{Prim: prim, Annots: a}
	}
	return Concrete{Prim: prim, Args: []Concrete{intLeaf(n)}, Annots: a}
}

func intLeaf(n int) Concrete { return Concrete{Prim: "int", Args: []Concrete{{Prim: strconv.Itoa(n)}}} }

func typeLeaf(t *types.Type) Concrete {
	if t == nil {
		return Concrete{Prim: "unit"}
	}
	return Concrete{Prim: t.String()}
}

// ConstConcrete renders a typed literal to the same external syntax a
// PUSH operand uses. internal/deploy's forging and the CLI's
// --data/--init-storage commands need to emit a bare Michelson value with
// no surrounding instruction, which constLeaf already produces.
func ConstConcrete(c types.Const) Concrete {
	return constLeaf(c)
}

func constLeaf(c types.Const) Concrete {
	switch c.Kind {
	case types.CInt, types.CNat, types.CTimestamp, types.CTez:
		return Concrete{Prim: strconv.Itoa(int(c.Int))}
	case types.CBool:
		if c.Bool {
			return Concrete{Prim: "True"}
		}
		return Concrete{Prim: "False"}
	case types.CString:
		return Concrete{Prim: `"` + c.Str + `"`}
	case types.CBytes:
		return Concrete{Prim: "0x" + c.Str}
	case types.CKey, types.CKeyHash, types.CSignature, types.CAddress:
		return Concrete{Prim: `"` + c.Str + `"`}
	case types.CUnit:
		return Concrete{Prim: "Unit"}
	case types.CTuple:
		return nestPairsConst(c.Elems)
	case types.COption:
		if len(c.Elems) == 0 {
			return Concrete{Prim: "None"}
		}
		return Concrete{Prim: "Some", Args: []Concrete{constLeaf(c.Elems[0])}}
	case types.COr:
		tag := "Left"
		if c.Right {
			tag = "Right"
		}
		return Concrete{Prim: tag, Args: []Concrete{constLeaf(c.Elems[0])}}
	case types.CList, types.CSet:
		args := make([]Concrete, len(c.Elems))
		for i, e := range c.Elems {
			args[i] = constLeaf(e)
		}
		return Concrete{Prim: "SEQ", Args: args}
	case types.CMap, types.CBigMap:
		args := make([]Concrete, len(c.Elems))
		for i, e := range c.Elems {
			args[i] = Concrete{Prim: "Elt", Args: []Concrete{constLeaf(c.Keys[i]), constLeaf(e)}}
		}
		return Concrete{Prim: "SEQ", Args: args}
	default:
		return Concrete{Prim: "Unit"}
	}
}

// nestPairsConst mirrors internal/encode's right-leaning pair nesting
// for record values (a single element unwraps with no Pair) so a tuple
// constant serializes in the same shape the encoder builds tuple types
// and projections against.
func nestPairsConst(elems []types.Const) Concrete {
	if len(elems) == 1 {
		return constLeaf(elems[0])
	}
	return Concrete{Prim: "Pair", Args: []Concrete{constLeaf(elems[0]), nestPairsConst(elems[1:])}}
}
