package codegen

import (
	"stackc/internal/diag"
	"stackc/internal/env"
	"stackc/internal/ir"
	"stackc/internal/michelson"
	"stackc/internal/types"
)

// compileMatchOption lowers to IF_NONE: the None branch runs against the
// stack as it was before the scrutinee was pushed (IF_NONE pops it), the
// Some branch runs with the unwrapped payload already on top, which is
// bound like a Let and cleaned up the same way.
func (g *Gen) compileMatchOption(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	scrutSeq, _, err := g.compile(n.Scrutinee, stack)
	if err != nil {
		return nil, nil, err
	}
	noneSeq, _, err := g.compile(n.NoneBody, stack)
	if err != nil {
		return nil, nil, err
	}
	someEnv := push(stack, n.SomeVar)
	someBody, _, err := g.compile(n.SomeBody, someEnv)
	if err != nil {
		return nil, nil, err
	}
	someSeq := append(someBody, dipDrop(1, 1))
	out := append(scrutSeq, michelson.Instr{Op: michelson.OpIfNone, Then: noneSeq, Else: someSeq, Name: n.Name})
	return out, push(stack, ""), nil
}

// compileMatchNat lowers the `int` sign check (spec.md §4.4). The
// scrutinee int is duplicated before ISNAT so a copy survives under
// the option it produces: the None (negative) branch still has the
// original int underneath and recovers its magnitude with ABS, while
// the Some (non-negative) branch carries the unwrapped nat on top of
// that same now-unused copy and drops it along with the binding.
func (g *Gen) compileMatchNat(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	scrutSeq, _, err := g.compile(n.Scrutinee, stack)
	if err != nil {
		return nil, nil, err
	}
	scrutSeq = append(scrutSeq, michelson.Instr{Op: michelson.OpDup, N: 1})
	scrutSeq = append(scrutSeq, michelson.Instr{Op: michelson.OpISNat})

	// Some(nat): stack is [nat, origInt, ...stack]; bind nat as PlusVar,
	// drop both it and the now-dead origInt copy underneath.
	plusEnv := push(push(stack, "__isnat_dup"), n.PlusVar)
	plusBody, _, err := g.compile(n.PlusBody, plusEnv)
	if err != nil {
		return nil, nil, err
	}
	plusSeq := append(plusBody, dipDrop(1, 2))

	// None: stack is [origInt, ...stack]; ABS recovers the magnitude in
	// place, giving exactly [nat, ...stack] to bind as MinusVar.
	minusEnv := push(stack, n.MinusVar)
	minusBody, _, err := g.compile(n.MinusBody, minusEnv)
	if err != nil {
		return nil, nil, err
	}
	minusSeq := append(michelson.Seq{{Op: michelson.OpAbs}}, minusBody...)
	minusSeq = append(minusSeq, dipDrop(1, 1))

	out := append(scrutSeq, michelson.Instr{Op: michelson.OpIfNone, Then: minusSeq, Else: plusSeq, Name: n.Name})
	return out, push(stack, ""), nil
}

// compileMatchList lowers to IF_CONS: the Cons branch receives head then
// tail pushed on top (in that order so HeadVar ends up at depth 1 and
// TailVar at depth 0 per Michelson's IF_CONS unwrap order), both cleaned
// up with a two-item DIP_DROP.
func (g *Gen) compileMatchList(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	scrutSeq, _, err := g.compile(n.Scrutinee, stack)
	if err != nil {
		return nil, nil, err
	}
	nilSeq, _, err := g.compile(n.NilBody, stack)
	if err != nil {
		return nil, nil, err
	}
	consEnv := push(push(stack, n.HeadVar), n.TailVar)
	consBody, _, err := g.compile(n.ConsBody, consEnv)
	if err != nil {
		return nil, nil, err
	}
	consSeq := append(consBody, dipDrop(1, 2))
	out := append(scrutSeq, michelson.Instr{Op: michelson.OpIfCons, Then: consSeq, Else: nilSeq, Name: n.Name})
	return out, push(stack, ""), nil
}

// compileMatchVariant handles both shapes MatchVariant can carry after
// encoding: the already-binary `or` produced by entry-dispatch synthesis
// (two Cases, no variant registry lookup needed), and a named variant
// scrutinee, whose Cases (possibly out of declaration order, possibly
// with a wildcard) are re-nested here against the registered constructor
// order — the canonical encoding encode.go's ctorConstruct built values
// against.
func (g *Gen) compileMatchVariant(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	scrutSeq, _, err := g.compile(n.Scrutinee, stack)
	if err != nil {
		return nil, nil, err
	}

	var branchSeq michelson.Seq
	if n.Scrutinee.Ty.Kind == types.KOr {
		branchSeq, err = g.binaryOrMatch(n.Cases, stack)
	} else {
		def, ok := g.Env.Variants[n.Scrutinee.Ty.Name]
		if !ok {
			return nil, nil, diag.Internalf("codegen", n.At, "variant %q not registered", n.Scrutinee.Ty.Name)
		}
		branchSeq, err = g.variantNest(def, 0, n.Cases, stack)
	}
	if err != nil {
		return nil, nil, err
	}
	return append(scrutSeq, branchSeq...), push(stack, ""), nil
}

func (g *Gen) binaryOrMatch(cases []ir.Case, stack []string) (michelson.Seq, error) {
	if len(cases) != 2 {
		return nil, diag.Internalf("codegen", diag.Loc{}, "binary `or` match requires exactly 2 cases, got %d", len(cases))
	}
	leftEnv := push(stack, cases[0].Var)
	leftSeq, _, err := g.compile(cases[0].Body, leftEnv)
	if err != nil {
		return nil, err
	}
	rightEnv := push(stack, cases[1].Var)
	rightSeq, _, err := g.compile(cases[1].Body, rightEnv)
	if err != nil {
		return nil, err
	}
	return michelson.Seq{{
		Op:   michelson.OpIfLeft,
		Then: append(leftSeq, dipDrop(1, 1)),
		Else: append(rightSeq, dipDrop(1, 1)),
	}}, nil
}

// variantNest peels one Left/Right level per constructor, in
// declaration order, until the last constructor (reached with no
// further wrapping, matching encode.go's variantEncodedType).
func (g *Gen) variantNest(def *env.VariantDef, idx int, cases []ir.Case, stack []string) (michelson.Seq, error) {
	name := def.Ctors[idx].Name
	if idx == len(def.Ctors)-1 {
		c, ok := resolveCase(name, cases)
		if !ok {
			return nil, diag.Internalf("codegen", diag.Loc{}, "non-exhaustive match: missing constructor %q", name)
		}
		env := push(stack, c.Var)
		body, _, err := g.compile(c.Body, env)
		if err != nil {
			return nil, err
		}
		return append(body, dipDrop(1, 1)), nil
	}

	c, ok := resolveCase(name, cases)
	if !ok {
		return nil, diag.Internalf("codegen", diag.Loc{}, "non-exhaustive match: missing constructor %q", name)
	}
	leftEnv := push(stack, c.Var)
	leftSeq, _, err := g.compile(c.Body, leftEnv)
	if err != nil {
		return nil, err
	}
	rightSeq, err := g.variantNest(def, idx+1, cases, stack)
	if err != nil {
		return nil, err
	}
	return michelson.Seq{{
		Op:   michelson.OpIfLeft,
		Then: append(leftSeq, dipDrop(1, 1)),
		Else: rightSeq,
	}}, nil
}

func resolveCase(ctor string, cases []ir.Case) (ir.Case, bool) {
	var wildcard (ir.Case)
	haveWildcard := false
	for _, c := range cases {
		if c.Ctor == ctor {
			return c, true
		}
		if c.Var == "_" {
			wildcard, haveWildcard = c, true
		}
	}
	return wildcard, haveWildcard
}
