package encode

import (
	"sort"

	"stackc/internal/check"
	"stackc/internal/ir"
	"stackc/internal/types"
)

// lambda performs closure conversion (spec.md §4.2): a lambda with no
// free variables besides its own parameter lowers straight to a
// Michelson LAMBDA; one that captures outer names is lambda-lifted into
// a Closure node pairing a captured-environment tuple with a lifted
// lambda whose single physical parameter is (env, original_arg).
//
// Recursive lambdas (Recur) are lifted the same way; a self-reference
// inside the body resolves through the ordinary outer-scope capture
// mechanism below. Mutual recursion through a captured closure that
// has not finished constructing (the classic letrec/fixpoint case) is
// not handled — every recursive lambda observed in the corpus this was
// grounded on binds directly, not through another closure's capture.
func (enc *Encoder) lambda(n *ir.Node) (*ir.Node, error) {
	body, err := enc.node(n.Lam)
	if err != nil {
		return nil, err
	}

	bound := map[string]bool{n.Param: true}
	free := map[string]bool{}
	check.FreeVars(body, bound, free)

	if len(free) == 0 {
		if body == n.Lam {
			return n, nil
		}
		cp := *n
		cp.Lam = body
		return &cp, nil
	}

	names := make([]string, 0, len(free))
	for name := range free {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic capture order (spec.md §9)

	envElems := make([]*ir.Node, len(names))
	for i, name := range names {
		ty := varTypeIn(body, name)
		envElems[i] = &ir.Node{Tag: ir.Var, Ty: ty, At: n.At, Var: name, Pure: true}
	}
	envTuple := nestPairs(envElems)

	const combined = "__closure_arg"
	combinedTy := types.Tuple(envTuple.Ty, n.ParamTy)
	combinedVar := func() *ir.Node { return &ir.Node{Tag: ir.Var, Ty: combinedTy, Var: combined, Pure: true} }

	liftedBody := &ir.Node{
		Tag: ir.Let, Ty: body.Ty, At: n.At, Name: n.Param,
		Bound:    applyPath(combinedVar(), []string{"cdr"}, n.ParamTy),
		Body:     body,
		Transfer: body.Transfer, Pure: body.Pure,
	}
	for i := len(names) - 1; i >= 0; i-- {
		path := append([]string{"car"}, fieldPath(i, len(names))...)
		liftedBody = &ir.Node{
			Tag: ir.Let, Ty: liftedBody.Ty, At: n.At, Name: names[i],
			Bound:    applyPath(combinedVar(), path, envElems[i].Ty),
			Body:     liftedBody,
			Transfer: liftedBody.Transfer, Pure: liftedBody.Pure,
		}
	}

	liftedLam := &ir.Node{
		Tag: ir.Lambda, Ty: types.Lambda(combinedTy, body.Ty), At: n.At, Name: n.Name,
		Param: combined, ParamTy: combinedTy, Lam: liftedBody, Recur: n.Recur, Pure: true,
	}

	return &ir.Node{
		Tag: ir.Closure, Ty: types.Closure(n.ParamTy, body.Ty, envTuple.Ty), At: n.At, Name: n.Name,
		Env: envTuple, Lam: liftedLam, Pure: envTuple.Pure,
	}, nil
}

// varTypeIn recovers the type of a free variable by finding one of its
// occurrences in the already-typed body; the checker records a type on
// every Var node, so the first match is authoritative.
func varTypeIn(n *ir.Node, name string) *types.Type {
	if n == nil {
		return nil
	}
	if n.Tag == ir.Var && n.Var == name {
		return n.Ty
	}
	var found *types.Type
	ir.ForEachChild(n, func(child *ir.Node) {
		if found == nil {
			found = varTypeIn(child, name)
		}
	})
	return found
}
