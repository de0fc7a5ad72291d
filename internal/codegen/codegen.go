// Package codegen is the Code generator of spec.md §4.4: it lowers the
// simplified, encoded typed IR into a symbolic M instruction sequence.
// The generator tracks the compile-time stack shape as a slice of debug
// names (index 0 is the top of stack); every compile of a subterm nets
// exactly one new stack slot holding that subterm's result, which keeps
// the recursive translation compositional the same way the teacher's
// statement compiler emits bytecode one node at a time.
package codegen

import (
	"strings"

	"github.com/iancoleman/strcase"

	"stackc/internal/diag"
	"stackc/internal/env"
	"stackc/internal/ir"
	"stackc/internal/michelson"
)

// annotName sanitizes an L identifier into the charset M's `@name`
// annotations allow (spec.md §4.4): `#`, `/` and `'` become `_sharp_`,
// `_slash_` and `_prim_`, then the result is converted to snake_case. L
// source identifiers are already legal Go-style identifiers, but nothing
// stops `camelCase` or a leading underscore, and Michelson tooling
// conventionally expects snake_case annotations.
func annotName(s string) string {
	if s == "" {
		return s
	}
	s = strings.NewReplacer("#", "_sharp_", "/", "_slash_", "'", "_prim_").Replace(s)
	return strcase.ToSnake(s)
}

type Gen struct {
	Env      *env.Env
	Peephole bool
}

func New(e *env.Env, peephole bool) *Gen {
	return &Gen{Env: e, Peephole: peephole}
}

// Contract compiles every entry of the encoded contract (after encode
// has folded multi-entry contracts down to one `main` entry) into a
// Program ready for the peephole pass and the emitter.
func (g *Gen) Contract(c *ir.Contract) (michelson.Program, error) {
	if len(c.Entries) != 1 {
		return michelson.Program{}, diag.Internalf("codegen", diag.Loc{},
			"contract must have exactly one entry after encoding, got %d", len(c.Entries))
	}
	entry := c.Entries[0]

	code, err := g.entry(c, entry)
	if err != nil {
		return michelson.Program{}, err
	}
	if g.Peephole {
		code = michelson.Peephole(code, true)
	}
	code = michelson.Finalize(code)

	return michelson.Program{
		Parameter: entry.ParamTy,
		Storage:   c.Storage,
		Code:      michelson.ToConcrete(code),
	}, nil
}

// entry builds the top-level code for a contract's single (post-encode)
// entry point: Michelson hands the whole contract a single incoming
// value, Pair(parameter, storage); the prelude splits it into the two
// named bindings the body expects, and the trailer drops them once the
// body — already typed to produce exactly `operation list * storage`
// (internal/check.CheckContract) — has computed the final result, since
// the contract's code must leave the stack holding that one value alone.
func (g *Gen) entry(c *ir.Contract, e ir.Entry) (michelson.Seq, error) {
	prelude := michelson.Seq{
		{Op: michelson.OpDup, N: 1},
		{Op: michelson.OpCar, Name: annotName(e.ParamName)},
		{Op: michelson.OpDip, N: 1, Nested: michelson.Seq{{Op: michelson.OpCdr}}},
	}
	env := []string{e.ParamName, e.StorageName}

	bodySeq, _, err := g.compile(e.Body, env)
	if err != nil {
		return nil, err
	}

	out := append(prelude, bodySeq...)
	out = append(out, dipDrop(1, 2))
	return out, nil
}

func dipDrop(dip, drop int) michelson.Instr {
	return michelson.Instr{Op: michelson.OpDipDrop, N: dip, N2: drop}
}

func indexOf(stack []string, name string) (int, bool) {
	for i, s := range stack {
		if s == name {
			return i, true
		}
	}
	return 0, false
}

// compile lowers one IR node, returning the emitted sequence and the
// stack shape after it runs (always len(in)+1 — see the package doc).
func (g *Gen) compile(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	if n == nil {
		return nil, stack, diag.Internalf("codegen", diag.Loc{}, "nil node reached codegen")
	}
	switch n.Tag {
	case ir.Var:
		idx, ok := indexOf(stack, n.Var)
		if !ok {
			return nil, nil, diag.Internalf("codegen", n.At, "unbound stack position for %q", n.Var)
		}
		seq := michelson.Seq{{Op: michelson.OpDup, N: idx + 1, Name: annotName(n.Name)}}
		return seq, push(stack, n.Var), nil

	case ir.ConstNode:
		seq, err := compileConst(n.Const, n.Ty)
		if err != nil {
			return nil, nil, err
		}
		return seq, push(stack, ""), nil

	case ir.Let:
		return g.compileLet(n, stack)

	case ir.Seq:
		firstSeq, _, err := g.compile(n.First, stack)
		if err != nil {
			return nil, nil, err
		}
		firstSeq = append(firstSeq, michelson.Instr{Op: michelson.OpDrop})
		secondSeq, env2, err := g.compile(n.Second, stack)
		if err != nil {
			return nil, nil, err
		}
		return append(firstSeq, secondSeq...), env2, nil

	case ir.If:
		return g.compileIf(n, stack)

	case ir.MatchOption:
		return g.compileMatchOption(n, stack)
	case ir.MatchNat:
		return g.compileMatchNat(n, stack)
	case ir.MatchList:
		return g.compileMatchList(n, stack)
	case ir.MatchVariant:
		return g.compileMatchVariant(n, stack)

	case ir.Loop:
		return g.compileLoop(n, stack)
	case ir.LoopLeft:
		return g.compileLoopLeft(n, stack)
	case ir.Fold:
		return g.compileFold(n, stack)
	case ir.MapNode:
		return g.compileMap(n, stack)
	case ir.MapFold:
		return g.compileMapFold(n, stack)

	case ir.Apply:
		return g.compileApply(n, stack)

	case ir.Lambda:
		return g.compileLambda(n, stack)
	case ir.Closure:
		return g.compileClosure(n, stack)

	case ir.Transfer:
		return g.compileTransfer(n, stack)
	case ir.Failwith:
		return g.compileFailwith(n, stack)
	case ir.CreateContract:
		return g.compileCreateContract(n, stack)
	case ir.ContractAt:
		return g.compileContractAt(n, stack)
	case ir.Unpack:
		return g.compileUnpack(n, stack)

	case ir.RecordConstruct, ir.Project, ir.SetField:
		return nil, nil, diag.Internalf("codegen", n.At,
			"record/projection node reached codegen unencoded (tag %d)", n.Tag)
	}
	return nil, nil, diag.Internalf("codegen", n.At, "unhandled ir tag %d", n.Tag)
}

func push(stack []string, name string) []string {
	out := make([]string, 0, len(stack)+1)
	out = append(out, name)
	return append(out, stack...)
}

func (g *Gen) compileLet(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	boundSeq, env1, err := g.compile(n.Bound, stack)
	if err != nil {
		return nil, nil, err
	}
	env1[0] = n.Name
	bodySeq, env2, err := g.compile(n.Body, env1)
	if err != nil {
		return nil, nil, err
	}
	out := append(boundSeq, bodySeq...)
	out = append(out, dipDrop(1, 1))
	return out, push(stack, env2[0]), nil
}

func (g *Gen) compileIf(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	condSeq, _, err := g.compile(n.Cond, stack)
	if err != nil {
		return nil, nil, err
	}
	thenSeq, _, err := g.compile(n.Then, stack)
	if err != nil {
		return nil, nil, err
	}
	elseSeq, _, err := g.compile(n.Else, stack)
	if err != nil {
		return nil, nil, err
	}
	out := append(condSeq, michelson.Instr{Op: michelson.OpIf, Then: thenSeq, Else: elseSeq, Name: n.Name})
	return out, push(stack, ""), nil
}
