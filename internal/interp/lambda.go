package interp

import (
	"stackc/internal/diag"
	"stackc/internal/ir"
	"stackc/internal/michelson"
	"stackc/internal/types"
)

// stepClosureExec recognizes internal/codegen.compileExec's 5-instruction
// closure-call unwrap — DIP{1,[DUP 1;CDR]};SWAP;PAIR;DIP{1,[CAR]};EXEC —
// which only appears immediately after a closure value and its argument
// have both already been pushed (stack: [arg, closurePair, ...outer]).
// A bare-lambda EXEC has no such prelude and is handled directly in step.
func (d *Decompiler) stepClosureExec(seq []michelson.Instr, stack *[]*slot) (int, bool) {
	if len(seq) < 5 {
		return 0, false
	}
	dip1, swap, pair, dip2, exec := seq[0], seq[1], seq[2], seq[3], seq[4]
	if dip1.Op != michelson.OpDip || dip1.N != 1 || len(dip1.Nested) != 2 ||
		dip1.Nested[0].Op != michelson.OpDup || dip1.Nested[0].N != 1 || dip1.Nested[1].Op != michelson.OpCdr {
		return 0, false
	}
	if swap.Op != michelson.OpSwap || pair.Op != michelson.OpPair {
		return 0, false
	}
	if dip2.Op != michelson.OpDip || dip2.N != 1 || len(dip2.Nested) != 1 || dip2.Nested[0].Op != michelson.OpCar {
		return 0, false
	}
	if exec.Op != michelson.OpExec {
		return 0, false
	}
	s := *stack
	if len(s) < 2 {
		return 0, false
	}
	arg, closure := s[0], s[1]
	resultTy := types.Unit
	if closure.Def.Ty != nil && closure.Def.Ty.Kind == types.KClosure && len(closure.Def.Ty.Args) == 3 {
		resultTy = closure.Def.Ty.Args[1]
	}
	node := &ir.Node{Tag: ir.Apply, Prim: "exec", Args: []*ir.Node{closure.Def, arg.Def}, Ty: resultTy}
	*stack = append([]*slot{anonSlot(node)}, s[2:]...)
	return 5, true
}

// stepLambda recognizes a bare LAMBDA, and LAMBDA immediately followed by
// PAIR as internal/codegen.compileClosure's closure-construction shape
// (car the lambda, cdr the already-decompiled captured environment).
func (d *Decompiler) stepLambda(seq []michelson.Instr, stack *[]*slot) (int, error) {
	ins := seq[0]
	if len(ins.Tys) != 2 {
		return 0, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "LAMBDA missing parameter/result types")
	}
	paramTy, retTy := ins.Tys[0], ins.Tys[1]
	paramName := d.freshName("_p")
	body, err := d.run(ins.Nested, []*slot{namedSlot(paramName, paramTy)})
	if err != nil {
		return 0, err
	}
	lam := &ir.Node{Tag: ir.Lambda, Param: paramName, ParamTy: paramTy, Lam: body, Ty: types.Lambda(paramTy, retTy)}

	if len(seq) >= 2 && seq[1].Op == michelson.OpPair {
		s := *stack
		if len(s) < 1 {
			return 0, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "closure construction needs a captured environment")
		}
		envSlot := s[0]
		node := &ir.Node{Tag: ir.Closure, Lam: lam, Env: envSlot.Def, Ty: types.Closure(paramTy, retTy, envSlot.Def.Ty)}
		*stack = append([]*slot{anonSlot(node)}, s[1:]...)
		return 2, nil
	}

	*stack = append([]*slot{anonSlot(lam)}, (*stack)...)
	return 1, nil
}
