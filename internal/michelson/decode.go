package michelson

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"stackc/internal/diag"
	"stackc/internal/types"
)

func argType(c Concrete, idx int) (*types.Type, error) {
	if idx >= len(c.Args) {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "%s missing its type operand", c.Prim)
	}
	return parseType(c.Args[idx].Prim)
}

func argTypePair(c Concrete) (k, v *types.Type, err error) {
	if len(c.Args) != 2 {
		return nil, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "%s requires two type operands", c.Prim)
	}
	k, err = parseType(c.Args[0].Prim)
	if err != nil {
		return nil, nil, err
	}
	v, err = parseType(c.Args[1].Prim)
	if err != nil {
		return nil, nil, err
	}
	return k, v, nil
}

// DecodeJSON parses the "code" stanza of the structured external syntax
// of §6 into a Concrete tree (the counterpart to ParseProgram's text
// "code" stanza, used when the CLI's decompile default sees a `.json`
// input).
func DecodeJSON(data []byte) ([]Concrete, error) {
	root := gjson.ParseBytes(data)
	code := root.Get("code")
	if !code.Exists() {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{},
			"missing top-level \"code\" stanza")
	}
	return decodeArray(code)
}

// DecodeProgram parses a whole `.tz.json` document's three stanzas,
// mirroring ParseProgram's text-form counterpart. EmitJSON renders
// parameter/storage as the flattened type string parseType already
// knows how to read, so decoding them reuses that parser rather than a
// second structured-type decoder.
func DecodeProgram(data []byte) (Program, error) {
	root := gjson.ParseBytes(data)
	paramField := root.Get("parameter")
	storageField := root.Get("storage")
	if !paramField.Exists() || !storageField.Exists() {
		return Program{}, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{},
			"missing top-level \"parameter\"/\"storage\" stanza")
	}
	paramTy, err := parseType(paramField.String())
	if err != nil {
		return Program{}, err
	}
	storageTy, err := parseType(storageField.String())
	if err != nil {
		return Program{}, err
	}
	code, err := DecodeJSON(data)
	if err != nil {
		return Program{}, err
	}
	return Program{Parameter: paramTy, Storage: storageTy, Code: code}, nil
}

func decodeArray(v gjson.Result) ([]Concrete, error) {
	if !v.IsArray() {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "expected a JSON array of instructions")
	}
	var out []Concrete
	var err error
	v.ForEach(func(_, item gjson.Result) bool {
		var c Concrete
		c, err = decodeNode(item)
		if err != nil {
			return false
		}
		out = append(out, c)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeNode(v gjson.Result) (Concrete, error) {
	if v.Type == gjson.String || v.Type == gjson.Number || v.Type == gjson.True || v.Type == gjson.False {
		return Concrete{Prim: literalText(v)}, nil
	}
	prim := v.Get("prim")
	if !prim.Exists() {
		return Concrete{}, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "instruction object missing \"prim\"")
	}
	c := Concrete{Prim: prim.String()}
	if args := v.Get("args"); args.Exists() {
		sub, err := decodeArray(args)
		if err != nil {
			return Concrete{}, err
		}
		c.Args = sub
	}
	if annots := v.Get("annots"); annots.Exists() {
		annots.ForEach(func(_, a gjson.Result) bool {
			c.Annots = append(c.Annots, a.String())
			return true
		})
	}
	return c, nil
}

func literalText(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		// EmitJSON writes every literal leaf as a JSON string holding the
		// literal's own text (quotes included for string literals).
		return v.String()
	case gjson.Number:
		return strconv.FormatInt(v.Int(), 10)
	case gjson.True:
		return "True"
	case gjson.False:
		return "False"
	}
	return v.Raw
}

// FromConcrete is the Decoder half of spec.md §4.6: it recovers a
// symbolic instruction sequence from the concrete syntax tree. Only the
// shapes the Emitter itself produces are recognized; an unrecognized
// shape means the input M program does not conform to what this compiler
// could have generated, which the symbolic interpreter reports as
// UnstructuredProgram rather than silently misreading it.
func FromConcrete(seq []Concrete) ([]Instr, error) {
	out := make([]Instr, 0, len(seq))
	for _, c := range seq {
		ins, err := fromNode(c)
		if err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, nil
}

func fromNode(c Concrete) (Instr, error) {
	name, field := splitAnnots(c.Annots)
	base := Instr{Name: name, Field: field}
	switch strings.ToUpper(c.Prim) {
	case "SEQ":
		nested, err := FromConcrete(c.Args)
		if err != nil {
			return Instr{}, err
		}
		base.Op = OpSeq
		base.Nested = nested
		return base, nil
	case "DUP":
		base.Op = OpDup
		base.N = optInt(c.Args, 0, 1)
		return base, nil
	case "SWAP":
		base.Op = OpSwap
		return base, nil
	case "DIP":
		if len(c.Args) == 2 {
			n, err := asInt(c.Args[0])
			if err != nil {
				return Instr{}, err
			}
			body, err := seqArg(c.Args[1])
			if err != nil {
				return Instr{}, err
			}
			base.Op, base.N, base.Nested = OpDip, n, body
			return base, nil
		}
		body, err := seqArg(c.Args[0])
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.N, base.Nested = OpDip, 1, body
		return base, nil
	case "DIP_DROP":
		n, err := asInt(c.Args[0])
		if err != nil {
			return Instr{}, err
		}
		k, err := asInt(c.Args[1])
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.N, base.N2 = OpDipDrop, n, k
		return base, nil
	case "DROP":
		base.Op = OpDrop
		base.N = optInt(c.Args, 0, 0)
		return base, nil
	case "DIG":
		n, err := asInt(c.Args[0])
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.N = OpDig, n
		return base, nil
	case "DUG":
		n, err := asInt(c.Args[0])
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.N = OpDug, n
		return base, nil
	case "PAIR":
		base.Op = OpPair
		return base, nil
	case "CAR":
		base.Op = OpCar
		return base, nil
	case "CDR":
		base.Op = OpCdr
		return base, nil
	case "FAILWITH":
		base.Op = OpFailwith
		return base, nil
	case "IF":
		return fromBranch(base, OpIf, c)
	case "IF_NONE":
		return fromBranch(base, OpIfNone, c)
	case "IF_LEFT":
		return fromBranch(base, OpIfLeft, c)
	case "IF_CONS":
		return fromBranch(base, OpIfCons, c)
	case "ADD":
		base.Op = OpAdd
		return base, nil
	case "SUB":
		base.Op = OpSub
		return base, nil
	case "MUL":
		base.Op = OpMul
		return base, nil
	case "NIL":
		ty, err := argType(c, 0)
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.Ty = OpNil, ty
		return base, nil
	case "UNIT":
		base.Op = OpUnit
		return base, nil
	case "LOOP":
		body, err := seqArg(c.Args[0])
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.Then = OpLoop, body
		return base, nil
	case "LOOP_LEFT":
		body, err := seqArg(c.Args[0])
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.Then = OpLoopLeft, body
		return base, nil
	case "ITER":
		body, err := seqArg(c.Args[0])
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.Then = OpIter, body
		return base, nil
	case "MAP":
		body, err := seqArg(c.Args[0])
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.Then = OpMap, body
		return base, nil
	case "LAMBDA":
		if len(c.Args) != 3 {
			return Instr{}, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "LAMBDA requires param type, return type, body")
		}
		paramTy, err := parseType(c.Args[0].Prim)
		if err != nil {
			return Instr{}, err
		}
		retTy, err := parseType(c.Args[1].Prim)
		if err != nil {
			return Instr{}, err
		}
		body, err := seqArg(c.Args[2])
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.Tys, base.Nested = OpLambda, []*types.Type{paramTy, retTy}, body
		return base, nil
	case "EXEC":
		base.Op = OpExec
		return base, nil
	case "RENAME":
		base.Op = OpRename
		return base, nil
	case "PUSH":
		if len(c.Args) != 2 {
			return Instr{}, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "PUSH requires a type and a literal")
		}
		ty, err := parseType(c.Args[0].Prim)
		if err != nil {
			return Instr{}, err
		}
		val, err := parseConst(c.Args[1], ty)
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.Ty, base.Const = OpPush, ty, val
		return base, nil
	case "NONE":
		ty, err := argType(c, 0)
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.Ty = OpNone, ty
		return base, nil
	case "SOME":
		base.Op = OpSome
		return base, nil
	case "LEFT":
		ty, err := argType(c, 0)
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.Ty = OpLeft, ty
		return base, nil
	case "RIGHT":
		ty, err := argType(c, 0)
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.Ty = OpRight, ty
		return base, nil
	case "EMPTY_SET":
		ty, err := argType(c, 0)
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.Ty = OpEmptySet, ty
		return base, nil
	case "EMPTY_MAP":
		k, v, err := argTypePair(c)
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.Tys = OpEmptyMap, []*types.Type{k, v}
		return base, nil
	case "EMPTY_BIG_MAP":
		k, v, err := argTypePair(c)
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.Tys = OpEmptyBigMap, []*types.Type{k, v}
		return base, nil
	case "CONS":
		base.Op = OpCons
		return base, nil
	case "CONCAT":
		base.Op = OpConcat
		return base, nil
	case "SLICE":
		base.Op = OpSlice
		return base, nil
	case "SIZE":
		base.Op = OpSize
		return base, nil
	case "MEM":
		base.Op = OpMem
		return base, nil
	case "GET":
		base.Op = OpGet
		return base, nil
	case "UPDATE":
		base.Op = OpUpdate
		return base, nil
	case "EDIV":
		base.Op = OpEDiv
		return base, nil
	case "ABS":
		base.Op = OpAbs
		return base, nil
	case "ISNAT":
		base.Op = OpISNat
		return base, nil
	case "INT":
		base.Op = OpInt
		return base, nil
	case "NEG":
		base.Op = OpNeg
		return base, nil
	case "NOT":
		base.Op = OpNot
		return base, nil
	case "AND":
		base.Op = OpAnd
		return base, nil
	case "OR":
		base.Op = OpOr
		return base, nil
	case "XOR":
		base.Op = OpXor
		return base, nil
	case "COMPARE":
		base.Op = OpCompare
		return base, nil
	case "EQ":
		base.Op = OpEq
		return base, nil
	case "NEQ":
		base.Op = OpNeq
		return base, nil
	case "LT":
		base.Op = OpLt
		return base, nil
	case "GT":
		base.Op = OpGt
		return base, nil
	case "LE":
		base.Op = OpLe
		return base, nil
	case "GE":
		base.Op = OpGe
		return base, nil
	case "BLAKE2B":
		base.Op = OpBlake2B
		return base, nil
	case "SHA256":
		base.Op = OpSha256
		return base, nil
	case "SHA512":
		base.Op = OpSha512
		return base, nil
	case "KECCAK":
		base.Op = OpKeccak
		return base, nil
	case "SHA3":
		base.Op = OpSha3
		return base, nil
	case "CHECK_SIGNATURE":
		base.Op = OpCheckSignature
		return base, nil
	case "HASH_KEY":
		base.Op = OpHashKey
		return base, nil
	case "TRANSFER_TOKENS":
		base.Op = OpTransferTokens
		return base, nil
	case "SELF":
		base.Op = OpSelf
		return base, nil
	case "BALANCE":
		base.Op = OpBalance
		return base, nil
	case "NOW":
		base.Op = OpNow
		return base, nil
	case "AMOUNT":
		base.Op = OpAmount
		return base, nil
	case "SENDER":
		base.Op = OpSender
		return base, nil
	case "SOURCE":
		base.Op = OpSource
		return base, nil
	case "STEPS_TO_QUOTA":
		base.Op = OpStepsToQuota
		return base, nil
	case "ADDRESS":
		base.Op = OpAddress
		return base, nil
	case "CONTRACT":
		ty, err := argType(c, 0)
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.Ty = OpContract, ty
		return base, nil
	case "SET_DELEGATE":
		base.Op = OpSetDelegate
		return base, nil
	case "IMPLICIT_ACCOUNT":
		base.Op = OpImplicitAccount
		return base, nil
	case "CREATE_ACCOUNT":
		base.Op = OpCreateAccount
		return base, nil
	case "CREATE_CONTRACT":
		body, err := seqArg(c.Args[0])
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.Nested = OpCreateContract, body
		return base, nil
	case "PACK":
		base.Op = OpPack
		return base, nil
	case "UNPACK":
		ty, err := argType(c, 0)
		if err != nil {
			return Instr{}, err
		}
		base.Op, base.Ty = OpUnpack, ty
		return base, nil
	case "CDAR":
		base.Op = OpCdar
		base.N = optInt(c.Args, 0, 1)
		return base, nil
	case "CDDR":
		base.Op = OpCddr
		base.N = optInt(c.Args, 0, 1)
		return base, nil
	case "RECORD":
		base.Op = OpRecord
		return base, nil
	}
	return Instr{}, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{},
		"unrecognized or unsupported instruction shape %q during decompilation", c.Prim)
}

func fromBranch(base Instr, op Op, c Concrete) (Instr, error) {
	if len(c.Args) != 2 {
		return Instr{}, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "%s requires two branches", c.Prim)
	}
	then, err := seqArg(c.Args[0])
	if err != nil {
		return Instr{}, err
	}
	els, err := seqArg(c.Args[1])
	if err != nil {
		return Instr{}, err
	}
	base.Op, base.Then, base.Else = op, then, els
	return base, nil
}

func seqArg(c Concrete) ([]Instr, error) {
	if c.Prim == "SEQ" {
		return FromConcrete(c.Args)
	}
	return FromConcrete([]Concrete{c})
}

func asInt(c Concrete) (int, error) {
	s := c.Prim
	if c.Prim == "int" && len(c.Args) == 1 {
		s = c.Args[0].Prim
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "expected an integer operand, got %q", c.Prim)
	}
	return n, nil
}

func optInt(args []Concrete, idx, def int) int {
	if idx >= len(args) {
		return def
	}
	n, err := asInt(args[idx])
	if err != nil {
		return def
	}
	return n
}

func splitAnnots(annots []string) (name, field string) {
	for _, a := range annots {
		if strings.HasPrefix(a, "@") {
			name = a[1:]
		} else if strings.HasPrefix(a, "%") {
			field = a[1:]
		}
	}
	return
}
