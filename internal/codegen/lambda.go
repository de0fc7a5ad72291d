package codegen

import (
	"stackc/internal/ir"
	"stackc/internal/michelson"
	"stackc/internal/types"
)

// compileLambda lowers a non-capturing lambda to LAMBDA. Its body runs
// against a stack holding only the parameter — Michelson LAMBDA bodies
// have no access to the enclosing stack — so the outer `stack` argument
// only decides the one new slot the LAMBDA value itself occupies.
func (g *Gen) compileLambda(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	bodySeq, _, err := g.compile(n.Lam, []string{n.Param})
	if err != nil {
		return nil, nil, err
	}
	instr := michelson.Instr{
		Op: michelson.OpLambda, Tys: []*types.Type{n.ParamTy, n.Lam.Ty}, Nested: bodySeq, Name: n.Name,
	}
	return michelson.Seq{instr}, push(stack, ""), nil
}

// compileClosure lowers a lambda-lifted closure (internal/encode.lambda)
// to a runtime pair of (lambda, captured env): the env tuple compiles
// against the enclosing stack same as any other value, the lifted lambda
// compiles as an ordinary LAMBDA on top of it, and PAIR joins them —
// car the lambda, cdr the environment, the shape compileExec's closure
// branch unpacks.
func (g *Gen) compileClosure(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	envSeq, env1, err := g.compile(n.Env, stack)
	if err != nil {
		return nil, nil, err
	}
	lamSeq, _, err := g.compileLambda(n.Lam, env1)
	if err != nil {
		return nil, nil, err
	}
	out := append(envSeq, lamSeq...)
	out = append(out, michelson.Instr{Op: michelson.OpPair, Name: n.Name})
	return out, push(stack, ""), nil
}
