package michelson

import (
	"strconv"
	"strings"

	"stackc/internal/diag"
	"stackc/internal/types"
)

// parseType is the inverse of typeLeaf: it recovers a types.Type from the
// flattened type string a PUSH/NIL/NONE/LEFT/RIGHT/CONTRACT/UNPACK/
// EMPTY_SET/EMPTY_MAP/EMPTY_BIG_MAP/LAMBDA operand carries. Concrete
// stores the whole rendered type as one Prim string (types.Type.String's
// own grammar), so this is a small recursive-descent parser over that
// grammar rather than a generic Micheline type decoder.
func parseType(s string) (*types.Type, error) {
	toks := tokenizeType(s)
	p := &typeParser{toks: toks}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "trailing tokens in type %q", s)
	}
	return t, nil
}

func tokenizeType(s string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch r {
		case '(', ')', '*':
			flush()
			toks = append(toks, string(r))
		case ' ':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

type typeParser struct {
	toks []string
	pos  int
}

func (p *typeParser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *typeParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *typeParser) parse() (*types.Type, error) {
	tok := p.next()
	switch tok {
	case "":
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "empty type")
	case "(":
		elems := []*types.Type{}
		for {
			t, err := p.parse()
			if err != nil {
				return nil, err
			}
			elems = append(elems, t)
			if p.peek() == "*" {
				p.next()
				continue
			}
			break
		}
		if p.next() != ")" {
			return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "unterminated tuple type")
		}
		if len(elems) == 1 {
			// a parenthesized single type, as in "or (int) (nat)"
			return elems[0], nil
		}
		return types.Tuple(elems...), nil
	case "unit":
		return types.Unit, nil
	case "bool":
		return types.Bool, nil
	case "int":
		return types.Int, nil
	case "nat":
		return types.Nat, nil
	case "tez":
		return types.Tez, nil
	case "string":
		return types.String, nil
	case "bytes":
		return types.Bytes, nil
	case "timestamp":
		return types.Timestamp, nil
	case "key":
		return types.Key, nil
	case "key_hash":
		return types.KeyHash, nil
	case "signature":
		return types.Signature, nil
	case "operation":
		return types.Operation, nil
	case "address":
		return types.Address, nil
	case "option":
		t, err := p.parse()
		if err != nil {
			return nil, err
		}
		return types.Option(t), nil
	case "or":
		l, err := p.parse()
		if err != nil {
			return nil, err
		}
		r, err := p.parse()
		if err != nil {
			return nil, err
		}
		return types.Or(l, r), nil
	case "list":
		t, err := p.parse()
		if err != nil {
			return nil, err
		}
		return types.List(t), nil
	case "set":
		t, err := p.parse()
		if err != nil {
			return nil, err
		}
		return types.Set(t), nil
	case "map":
		k, err := p.parse()
		if err != nil {
			return nil, err
		}
		v, err := p.parse()
		if err != nil {
			return nil, err
		}
		return types.Map(k, v), nil
	case "bigmap":
		k, err := p.parse()
		if err != nil {
			return nil, err
		}
		v, err := p.parse()
		if err != nil {
			return nil, err
		}
		return types.BigMap(k, v), nil
	case "contract":
		t, err := p.parse()
		if err != nil {
			return nil, err
		}
		return types.Contract(t), nil
	case "lambda":
		a, err := p.parse()
		if err != nil {
			return nil, err
		}
		b, err := p.parse()
		if err != nil {
			return nil, err
		}
		return types.Lambda(a, b), nil
	case "closure":
		a, err := p.parse()
		if err != nil {
			return nil, err
		}
		b, err := p.parse()
		if err != nil {
			return nil, err
		}
		e, err := p.parse()
		if err != nil {
			return nil, err
		}
		return types.Closure(a, b, e), nil
	}
	// A bare identifier not matching any ground/composite keyword is a
	// named record or variant reference (types.Type.String prints a
	// named type as its bare Name).
	return &types.Type{Kind: types.KRecord, Name: tok}, nil
}

// ParseConstValue is the exported entry point into parseConst: recovering
// a typed literal from a parsed Concrete node, for the CLI's PARAM/
// STORAGE/--data command-line arguments (each parsed to Concrete via
// ParseConst, then resolved to a types.Const against its declared type).
func ParseConstValue(c Concrete, ty *types.Type) (types.Const, error) {
	return parseConst(c, ty)
}

// parseConst is the inverse of constLeaf, recovering a literal value from
// a decoded Concrete node given the type context PUSH/the containing
// literal already established.
func parseConst(c Concrete, ty *types.Type) (types.Const, error) {
	if ty == nil {
		return types.Const{}, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "literal without a type context")
	}
	switch ty.Kind {
	case types.KUnit:
		return types.Const{Kind: types.CUnit}, nil
	case types.KBool:
		return types.Const{Kind: types.CBool, Bool: c.Prim == "True"}, nil
	case types.KInt, types.KNat, types.KTimestamp, types.KTez:
		n, err := strconv.ParseInt(c.Prim, 10, 64)
		if err != nil {
			return types.Const{}, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "expected integer literal, got %q", c.Prim)
		}
		return types.Const{Kind: kindForGround(ty), Int: n}, nil
	case types.KString:
		return types.Const{Kind: types.CString, Str: unquote(c.Prim)}, nil
	case types.KBytes:
		return types.Const{Kind: types.CBytes, Str: strings.TrimPrefix(c.Prim, "0x")}, nil
	case types.KKey, types.KKeyHash, types.KSignature, types.KAddress:
		return types.Const{Kind: kindForGround(ty), Str: unquote(c.Prim)}, nil
	case types.KTuple:
		elems, err := parseTupleConst(c, ty.Args)
		if err != nil {
			return types.Const{}, err
		}
		return types.Const{Kind: types.CTuple, Elems: elems}, nil
	case types.KOption:
		if c.Prim == "None" {
			return types.Const{Kind: types.COption}, nil
		}
		inner, err := parseConst(c.Args[0], ty.Args[0])
		if err != nil {
			return types.Const{}, err
		}
		return types.Const{Kind: types.COption, Elems: []types.Const{inner}}, nil
	case types.KOr:
		right := c.Prim == "Right"
		branchTy := ty.Args[0]
		if right {
			branchTy = ty.Args[1]
		}
		inner, err := parseConst(c.Args[0], branchTy)
		if err != nil {
			return types.Const{}, err
		}
		return types.Const{Kind: types.COr, Elems: []types.Const{inner}, Right: right}, nil
	case types.KList, types.KSet:
		elems := make([]types.Const, len(c.Args))
		for i, a := range c.Args {
			e, err := parseConst(a, ty.Args[0])
			if err != nil {
				return types.Const{}, err
			}
			elems[i] = e
		}
		kind := types.CList
		if ty.Kind == types.KSet {
			kind = types.CSet
		}
		return types.Const{Kind: kind, Elems: elems}, nil
	case types.KMap, types.KBigMap:
		keys := make([]types.Const, len(c.Args))
		vals := make([]types.Const, len(c.Args))
		for i, a := range c.Args {
			k, err := parseConst(a.Args[0], ty.Args[0])
			if err != nil {
				return types.Const{}, err
			}
			v, err := parseConst(a.Args[1], ty.Args[1])
			if err != nil {
				return types.Const{}, err
			}
			keys[i], vals[i] = k, v
		}
		kind := types.CMap
		if ty.Kind == types.KBigMap {
			kind = types.CBigMap
		}
		return types.Const{Kind: kind, Keys: keys, Elems: vals}, nil
	}
	return types.Const{}, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "unsupported literal type %s", ty)
}

func parseTupleConst(c Concrete, tys []*types.Type) ([]types.Const, error) {
	if len(tys) == 1 {
		v, err := parseConst(c, tys[0])
		if err != nil {
			return nil, err
		}
		return []types.Const{v}, nil
	}
	if c.Prim != "Pair" || len(c.Args) != 2 {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "expected a Pair literal")
	}
	head, err := parseConst(c.Args[0], tys[0])
	if err != nil {
		return nil, err
	}
	rest, err := parseTupleConst(c.Args[1], tys[1:])
	if err != nil {
		return nil, err
	}
	return append([]types.Const{head}, rest...), nil
}

func kindForGround(ty *types.Type) types.ConstKind {
	switch ty.Kind {
	case types.KInt:
		return types.CInt
	case types.KNat:
		return types.CNat
	case types.KTimestamp:
		return types.CTimestamp
	case types.KTez:
		return types.CTez
	case types.KKey:
		return types.CKey
	case types.KKeyHash:
		return types.CKeyHash
	case types.KSignature:
		return types.CSignature
	case types.KAddress:
		return types.CAddress
	}
	return types.CUnit
}

func unquote(s string) string {
	return strings.TrimSuffix(strings.TrimPrefix(s, `"`), `"`)
}
