// Package eval is a concrete stack machine for M (spec.md §6's `--run
// ENTRY PARAM STORAGE`): unlike internal/interp's symbolic decompiler,
// every cell here is an actual internal/types.Const, not an IR fragment.
// It exists purely to let the CLI execute a compiled contract against
// literal inputs without a live node; it is not the "symbolic
// interpreter" of spec.md §4.7 (that is internal/interp).
package eval

import (
	"stackc/internal/diag"
	"stackc/internal/michelson"
	"stackc/internal/types"
)

// Result is the output of running an entry point: the resulting
// operation count (we don't model real operations, only that they were
// emitted) and the new storage value.
type Result struct {
	Operations int
	Storage    types.Const
}

// Run executes a compiled Program's code against a parameter and
// storage value already paired on the stack, the calling convention
// internal/codegen.Contract compiles every entry against.
func Run(p michelson.Program, param, storage types.Const) (Result, error) {
	instrs, err := michelson.FromConcrete(p.Code)
	if err != nil {
		return Result{}, err
	}
	pair := types.Const{Kind: types.CTuple, Elems: []types.Const{param, storage}}
	stack, err := run(instrs, []types.Const{pair})
	if err != nil {
		return Result{}, err
	}
	if len(stack) != 1 || stack[0].Kind != types.CTuple || len(stack[0].Elems) != 2 {
		return Result{}, diag.New(diag.Internal, "", diag.Loc{}, "entry point did not return (operations, storage)")
	}
	ops := stack[0].Elems[0]
	return Result{Operations: len(ops.Elems), Storage: stack[0].Elems[1]}, nil
}

func run(seq []michelson.Instr, stack []types.Const) ([]types.Const, error) {
	for _, ins := range seq {
		var err error
		stack, err = step(ins, stack)
		if err != nil {
			return nil, err
		}
	}
	return stack, nil
}

func fail(ins michelson.Instr, format string, args ...interface{}) error {
	return diag.New(diag.Internal, "", diag.Loc{Line: ins.Loc.Line, Col: ins.Loc.Col, File: ins.Loc.File}, format, args...)
}

func need(ins michelson.Instr, stack []types.Const, n int) error {
	if len(stack) < n {
		return fail(ins, "%v: stack underflow, need %d have %d", ins.Op, n, len(stack))
	}
	return nil
}

func step(ins michelson.Instr, s []types.Const) ([]types.Const, error) {
	switch ins.Op {
	case michelson.OpDup:
		if err := need(ins, s, ins.N); err != nil {
			return nil, err
		}
		return append([]types.Const{s[ins.N-1]}, s...), nil
	case michelson.OpDrop:
		n := ins.N
		if n == 0 {
			n = 1
		}
		if err := need(ins, s, n); err != nil {
			return nil, err
		}
		return s[n:], nil
	case michelson.OpSwap:
		if err := need(ins, s, 2); err != nil {
			return nil, err
		}
		s[0], s[1] = s[1], s[0]
		return s, nil
	case michelson.OpDig:
		if err := need(ins, s, ins.N+1); err != nil {
			return nil, err
		}
		v := s[ins.N]
		rest := append(append([]types.Const{}, s[:ins.N]...), s[ins.N+1:]...)
		return append([]types.Const{v}, rest...), nil
	case michelson.OpDug:
		if err := need(ins, s, ins.N+1); err != nil {
			return nil, err
		}
		v := s[0]
		rest := s[1:]
		out := append(append([]types.Const{}, rest[:ins.N]...), v)
		out = append(out, rest[ins.N:]...)
		return out, nil
	case michelson.OpDip:
		if err := need(ins, s, ins.N); err != nil {
			return nil, err
		}
		top := s[:ins.N]
		under, err := run(ins.Nested, s[ins.N:])
		if err != nil {
			return nil, err
		}
		return append(append([]types.Const{}, top...), under...), nil
	case michelson.OpDipDrop:
		if err := need(ins, s, ins.N+ins.N2); err != nil {
			return nil, err
		}
		top := s[:ins.N]
		under := s[ins.N+ins.N2:]
		return append(append([]types.Const{}, top...), under...), nil
	case michelson.OpPair:
		if err := need(ins, s, 2); err != nil {
			return nil, err
		}
		v := types.Const{Kind: types.CTuple, Elems: []types.Const{s[0], s[1]}}
		return append([]types.Const{v}, s[2:]...), nil
	case michelson.OpCar:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		return append([]types.Const{s[0].Elems[0]}, s[1:]...), nil
	case michelson.OpCdr:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		return append([]types.Const{s[0].Elems[1]}, s[1:]...), nil
	case michelson.OpLeft:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		v := types.Const{Kind: types.COr, Elems: []types.Const{s[0]}, Right: false}
		return append([]types.Const{v}, s[1:]...), nil
	case michelson.OpRight:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		v := types.Const{Kind: types.COr, Elems: []types.Const{s[0]}, Right: true}
		return append([]types.Const{v}, s[1:]...), nil
	case michelson.OpIf:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		if s[0].Bool {
			return run(ins.Then, s[1:])
		}
		return run(ins.Else, s[1:])
	case michelson.OpIfNone:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		if len(s[0].Elems) == 0 {
			return run(ins.Then, s[1:])
		}
		return run(ins.Else, append([]types.Const{s[0].Elems[0]}, s[1:]...))
	case michelson.OpIfLeft:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		if !s[0].Right {
			return run(ins.Then, append([]types.Const{s[0].Elems[0]}, s[1:]...))
		}
		return run(ins.Else, append([]types.Const{s[0].Elems[0]}, s[1:]...))
	case michelson.OpIfCons:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		if len(s[0].Elems) == 0 {
			return run(ins.Else, s[1:])
		}
		// The cons branch sees the tail on top and the head beneath it.
		head, tail := s[0].Elems[0], types.Const{Kind: types.CList, Ty: s[0].Ty, Elems: s[0].Elems[1:]}
		return run(ins.Then, append([]types.Const{tail, head}, s[1:]...))
	case michelson.OpLoop:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		for s[0].Bool {
			var err error
			s, err = run(ins.Then, s[1:])
			if err != nil {
				return nil, err
			}
			if err := need(ins, s, 1); err != nil {
				return nil, err
			}
		}
		return s[1:], nil
	case michelson.OpLoopLeft:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		for !s[0].Right {
			var err error
			s, err = run(ins.Then, append([]types.Const{s[0].Elems[0]}, s[1:]...))
			if err != nil {
				return nil, err
			}
			if err := need(ins, s, 1); err != nil {
				return nil, err
			}
		}
		return append([]types.Const{s[0].Elems[0]}, s[1:]...), nil
	case michelson.OpIter:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		coll := s[0]
		s = s[1:]
		elems := coll.Elems
		if coll.Kind == types.CMap || coll.Kind == types.CBigMap {
			elems = make([]types.Const, len(coll.Keys))
			for i := range coll.Keys {
				elems[i] = types.Const{Kind: types.CTuple, Elems: []types.Const{coll.Keys[i], coll.Elems[i]}}
			}
		}
		for _, e := range elems {
			var err error
			s, err = run(ins.Then, append([]types.Const{e}, s...))
			if err != nil {
				return nil, err
			}
		}
		return s, nil
	case michelson.OpMap:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		coll := s[0]
		s = s[1:]
		out := make([]types.Const, len(coll.Elems))
		for i, e := range coll.Elems {
			res, err := run(ins.Then, append([]types.Const{e}, s...))
			if err != nil {
				return nil, err
			}
			if err := need(ins, res, 1); err != nil {
				return nil, err
			}
			out[i] = res[0]
		}
		v := types.Const{Kind: coll.Kind, Ty: coll.Ty, Elems: out, Keys: coll.Keys}
		return append([]types.Const{v}, s...), nil
	case michelson.OpPush:
		return append([]types.Const{ins.Const}, s...), nil
	case michelson.OpUnit:
		return append([]types.Const{types.Unit_()}, s...), nil
	case michelson.OpNil:
		return append([]types.Const{{Kind: types.CList, Ty: ins.Ty}}, s...), nil
	case michelson.OpEmptySet:
		return append([]types.Const{{Kind: types.CSet, Ty: ins.Ty}}, s...), nil
	case michelson.OpEmptyMap:
		return append([]types.Const{{Kind: types.CMap, Ty: ins.Ty}}, s...), nil
	case michelson.OpEmptyBigMap:
		return append([]types.Const{{Kind: types.CBigMap, Ty: ins.Ty}}, s...), nil
	case michelson.OpSome:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		v := types.Const{Kind: types.COption, Elems: []types.Const{s[0]}}
		return append([]types.Const{v}, s[1:]...), nil
	case michelson.OpNone:
		return append([]types.Const{{Kind: types.COption, Ty: ins.Ty}}, s...), nil
	case michelson.OpCons:
		if err := need(ins, s, 2); err != nil {
			return nil, err
		}
		v := types.Const{Kind: types.CList, Ty: s[1].Ty, Elems: append([]types.Const{s[0]}, s[1].Elems...)}
		return append([]types.Const{v}, s[2:]...), nil
	case michelson.OpSize:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		n := int64(len(s[0].Elems))
		if s[0].Kind == types.CString || s[0].Kind == types.CBytes {
			n = int64(len(s[0].Str))
		}
		return append([]types.Const{{Kind: types.CNat, Int: n}}, s[1:]...), nil
	case michelson.OpAdd:
		if err := need(ins, s, 2); err != nil {
			return nil, err
		}
		v := types.Const{Kind: resultIntKind(s[0], s[1]), Int: s[0].Int + s[1].Int}
		return append([]types.Const{v}, s[2:]...), nil
	case michelson.OpSub:
		if err := need(ins, s, 2); err != nil {
			return nil, err
		}
		v := types.Const{Kind: types.CInt, Int: s[0].Int - s[1].Int}
		return append([]types.Const{v}, s[2:]...), nil
	case michelson.OpMul:
		if err := need(ins, s, 2); err != nil {
			return nil, err
		}
		v := types.Const{Kind: resultIntKind(s[0], s[1]), Int: s[0].Int * s[1].Int}
		return append([]types.Const{v}, s[2:]...), nil
	case michelson.OpNeg:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		return append([]types.Const{{Kind: types.CInt, Int: -s[0].Int}}, s[1:]...), nil
	case michelson.OpAbs:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		n := s[0].Int
		if n < 0 {
			n = -n
		}
		return append([]types.Const{{Kind: types.CNat, Int: n}}, s[1:]...), nil
	case michelson.OpInt:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		return append([]types.Const{{Kind: types.CInt, Int: s[0].Int}}, s[1:]...), nil
	case michelson.OpCompare:
		if err := need(ins, s, 2); err != nil {
			return nil, err
		}
		v := types.Const{Kind: types.CInt, Int: int64(compareConst(s[0], s[1]))}
		return append([]types.Const{v}, s[2:]...), nil
	case michelson.OpEq:
		return cmpResult(ins, s, func(c int) bool { return c == 0 })
	case michelson.OpNeq:
		return cmpResult(ins, s, func(c int) bool { return c != 0 })
	case michelson.OpLt:
		return cmpResult(ins, s, func(c int) bool { return c < 0 })
	case michelson.OpGt:
		return cmpResult(ins, s, func(c int) bool { return c > 0 })
	case michelson.OpLe:
		return cmpResult(ins, s, func(c int) bool { return c <= 0 })
	case michelson.OpGe:
		return cmpResult(ins, s, func(c int) bool { return c >= 0 })
	case michelson.OpNot:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		return append([]types.Const{{Kind: types.CBool, Bool: !s[0].Bool}}, s[1:]...), nil
	case michelson.OpAnd:
		if err := need(ins, s, 2); err != nil {
			return nil, err
		}
		return append([]types.Const{{Kind: types.CBool, Bool: s[0].Bool && s[1].Bool}}, s[2:]...), nil
	case michelson.OpOr:
		if err := need(ins, s, 2); err != nil {
			return nil, err
		}
		return append([]types.Const{{Kind: types.CBool, Bool: s[0].Bool || s[1].Bool}}, s[2:]...), nil
	case michelson.OpConcat:
		if err := need(ins, s, 2); err != nil {
			return nil, err
		}
		v := types.Const{Kind: s[0].Kind, Str: s[0].Str + s[1].Str}
		return append([]types.Const{v}, s[2:]...), nil
	case michelson.OpMem:
		if err := need(ins, s, 2); err != nil {
			return nil, err
		}
		found := false
		coll := s[1]
		keys := coll.Keys
		if coll.Kind == types.CSet {
			keys = coll.Elems
		}
		for _, k := range keys {
			if compareConst(s[0], k) == 0 {
				found = true
				break
			}
		}
		return append([]types.Const{{Kind: types.CBool, Bool: found}}, s[2:]...), nil
	case michelson.OpGet:
		if err := need(ins, s, 2); err != nil {
			return nil, err
		}
		coll := s[1]
		for i, k := range coll.Keys {
			if compareConst(s[0], k) == 0 {
				v := types.Const{Kind: types.COption, Elems: []types.Const{coll.Elems[i]}}
				return append([]types.Const{v}, s[2:]...), nil
			}
		}
		return append([]types.Const{{Kind: types.COption}}, s[2:]...), nil
	case michelson.OpUpdate:
		if err := need(ins, s, 3); err != nil {
			return nil, err
		}
		key, val, coll := s[0], s[1], s[2]
		keys, elems := append([]types.Const{}, coll.Keys...), append([]types.Const{}, coll.Elems...)
		idx := -1
		for i, k := range keys {
			if compareConst(key, k) == 0 {
				idx = i
				break
			}
		}
		present := val.Kind != types.COption || len(val.Elems) == 1
		stored := val
		if val.Kind == types.COption {
			if len(val.Elems) == 1 {
				stored = val.Elems[0]
			}
		} else {
			present = val.Bool
			stored = types.Unit_()
		}
		switch {
		case idx >= 0 && present:
			elems[idx] = stored
		case idx >= 0 && !present:
			keys, elems = append(keys[:idx], keys[idx+1:]...), append(elems[:idx], elems[idx+1:]...)
		case idx < 0 && present:
			keys, elems = append(keys, key), append(elems, stored)
		}
		v := types.Const{Kind: coll.Kind, Ty: coll.Ty, Keys: keys, Elems: elems}
		return append([]types.Const{v}, s[3:]...), nil
	case michelson.OpFailwith:
		if err := need(ins, s, 1); err != nil {
			return nil, err
		}
		return nil, diag.New(diag.External, "", diag.Loc{}, "FAILWITH: %v", s[0])
	case michelson.OpRename:
		return s, nil
	case michelson.OpAmount, michelson.OpBalance:
		return append([]types.Const{{Kind: types.CTez}}, s...), nil
	case michelson.OpNow:
		return append([]types.Const{{Kind: types.CTimestamp}}, s...), nil
	case michelson.OpSender, michelson.OpSource, michelson.OpSelf, michelson.OpAddress:
		return append([]types.Const{{Kind: types.CAddress}}, s...), nil
	case michelson.OpTransferTokens:
		if err := need(ins, s, 3); err != nil {
			return nil, err
		}
		op := types.Const{Kind: types.CUnit}
		return append([]types.Const{op}, s[3:]...), nil
	default:
		return nil, fail(ins, "%v: not supported by the concrete evaluator", ins.Op)
	}
}

func cmpResult(ins michelson.Instr, s []types.Const, ok func(int) bool) ([]types.Const, error) {
	if err := need(ins, s, 1); err != nil {
		return nil, err
	}
	v := types.Const{Kind: types.CBool, Bool: ok(int(s[0].Int))}
	return append([]types.Const{v}, s[1:]...), nil
}

func resultIntKind(a, b types.Const) types.ConstKind {
	if a.Kind == types.CNat && b.Kind == types.CNat {
		return types.CNat
	}
	return types.CInt
}

// compareConst is Michelson COMPARE over the ground const kinds this
// evaluator handles: tuples lexicographically, everything else by its
// scalar field.
func compareConst(a, b types.Const) int {
	if a.Kind == types.CTuple {
		for i := range a.Elems {
			if c := compareConst(a.Elems[i], b.Elems[i]); c != 0 {
				return c
			}
		}
		return 0
	}
	if a.Kind == types.CString || a.Kind == types.CBytes || a.Kind == types.CAddress ||
		a.Kind == types.CKey || a.Kind == types.CKeyHash || a.Kind == types.CSignature {
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		default:
			return 0
		}
	}
	if a.Kind == types.CBool {
		switch {
		case !a.Bool && b.Bool:
			return -1
		case a.Bool && !b.Bool:
			return 1
		default:
			return 0
		}
	}
	switch {
	case a.Int < b.Int:
		return -1
	case a.Int > b.Int:
		return 1
	default:
		return 0
	}
}
