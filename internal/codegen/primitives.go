package codegen

import (
	"stackc/internal/diag"
	"stackc/internal/ir"
	"stackc/internal/michelson"
	"stackc/internal/types"
)

// compileArgsReverse compiles args[len-1] down to args[0], leaving args[0]
// topmost — the convention every Michelson binary/ternary primitive here
// wants, since PAIR/CONS/SUB/EDIV/COMPARE/CHECK_SIGNATURE/SLICE/MEM/GET/
// UPDATE all expect their first logical operand on top of the rest.
func (g *Gen) compileArgsReverse(args []*ir.Node, stack []string) (michelson.Seq, []string, error) {
	var out michelson.Seq
	env := stack
	for i := len(args) - 1; i >= 0; i-- {
		seq, _, err := g.compile(args[i], env)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, seq...)
		env = push(env, "")
	}
	return out, env, nil
}

// simple emits a reverse-compiled argument list followed by a single
// fixed instruction, the shape most primitives below reduce to.
func (g *Gen) simple(n *ir.Node, stack []string, op michelson.Op) (michelson.Seq, []string, error) {
	seq, _, err := g.compileArgsReverse(n.Args, stack)
	if err != nil {
		return nil, nil, err
	}
	return append(seq, michelson.Instr{Op: op, Name: n.Name}), push(stack, ""), nil
}

// nullary emits a zero-argument contract-observation primitive: nothing
// to compile, one instruction, one new stack slot holding the result.
func nullary(n *ir.Node, stack []string, op michelson.Op) (michelson.Seq, []string, error) {
	return michelson.Seq{{Op: op, Name: n.Name}}, push(stack, ""), nil
}

func (g *Gen) compileApply(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	switch n.Prim {
	case "+":
		return g.simple(n, stack, michelson.OpAdd)
	case "-":
		return g.simple(n, stack, michelson.OpSub)
	case "*":
		return g.simple(n, stack, michelson.OpMul)
	case "/":
		return g.simple(n, stack, michelson.OpEDiv)

	case "=", "<>", "<", ">", "<=", ">=":
		return g.compileCompare(n, stack)

	case "not":
		return g.simple(n, stack, michelson.OpNot)
	case "and":
		return g.simple(n, stack, michelson.OpAnd)
	case "or":
		return g.simple(n, stack, michelson.OpOr)
	case "xor":
		return g.simple(n, stack, michelson.OpXor)

	case "int":
		return g.simple(n, stack, michelson.OpInt)
	case "abs":
		return g.simple(n, stack, michelson.OpAbs)
	case "is_nat":
		return g.simple(n, stack, michelson.OpISNat)

	case "pair":
		return g.simple(n, stack, michelson.OpPair)
	case "car":
		return g.simple(n, stack, michelson.OpCar)
	case "cdr":
		return g.simple(n, stack, michelson.OpCdr)

	case "Left":
		return g.compileOr(n, stack, michelson.OpLeft, n.Ty.Args[1])
	case "Right":
		return g.compileOr(n, stack, michelson.OpRight, n.Ty.Args[0])
	case "Some":
		return g.simple(n, stack, michelson.OpSome)
	case "Cons":
		return g.simple(n, stack, michelson.OpCons)

	case "list.size", "set.size", "map.size":
		return g.simple(n, stack, michelson.OpSize)
	case "list.rev":
		return g.compileListRev(n, stack)

	case "concat":
		return g.simple(n, stack, michelson.OpConcat)
	case "slice":
		return g.simple(n, stack, michelson.OpSlice)

	case "blake2b":
		return g.simple(n, stack, michelson.OpBlake2B)
	case "sha256":
		return g.simple(n, stack, michelson.OpSha256)
	case "sha512":
		return g.simple(n, stack, michelson.OpSha512)
	case "keccak":
		return g.simple(n, stack, michelson.OpKeccak)
	case "sha3":
		return g.simple(n, stack, michelson.OpSha3)
	case "pack":
		return g.simple(n, stack, michelson.OpPack)
	case "check_signature":
		return g.simple(n, stack, michelson.OpCheckSignature)
	case "hash_key":
		return g.simple(n, stack, michelson.OpHashKey)

	case "coll.mem", "set.mem", "map.mem":
		return g.simple(n, stack, michelson.OpMem)
	case "map.get", "bigmap.get":
		return g.simple(n, stack, michelson.OpGet)
	case "map.update", "bigmap.update", "set.update":
		return g.simple(n, stack, michelson.OpUpdate)

	case "self":
		return nullary(n, stack, michelson.OpSelf)
	case "balance":
		return nullary(n, stack, michelson.OpBalance)
	case "amount":
		return nullary(n, stack, michelson.OpAmount)
	case "now":
		return nullary(n, stack, michelson.OpNow)
	case "sender":
		return nullary(n, stack, michelson.OpSender)
	case "source":
		return nullary(n, stack, michelson.OpSource)
	case "steps_to_quota":
		return nullary(n, stack, michelson.OpStepsToQuota)

	case "address":
		return g.simple(n, stack, michelson.OpAddress)
	case "implicit_account":
		return g.simple(n, stack, michelson.OpImplicitAccount)
	case "set_delegate":
		return g.simple(n, stack, michelson.OpSetDelegate)

	case "exec":
		return g.compileExec(n, stack)
	}
	return nil, nil, diag.Internalf("codegen", n.At, "unhandled primitive %q reached codegen", n.Prim)
}

// compileCompare lowers the relational operators to COMPARE followed by
// the opcode that turns its signed int result into a bool.
func (g *Gen) compileCompare(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	seq, _, err := g.compileArgsReverse(n.Args, stack)
	if err != nil {
		return nil, nil, err
	}
	seq = append(seq, michelson.Instr{Op: michelson.OpCompare})
	var tail michelson.Op
	switch n.Prim {
	case "=":
		tail = michelson.OpEq
	case "<>":
		tail = michelson.OpNeq
	case "<":
		tail = michelson.OpLt
	case ">":
		tail = michelson.OpGt
	case "<=":
		tail = michelson.OpLe
	case ">=":
		tail = michelson.OpGe
	}
	seq = append(seq, michelson.Instr{Op: tail, Name: n.Name})
	return seq, push(stack, ""), nil
}

// compileOr lowers `Left`/`Right`, which carry their payload as the sole
// argument and need the other branch's type as the injection annotation
// (internal/encode.ctorConstruct and variantEncodedType build n.Ty as the
// full `or` type of both branches).
func (g *Gen) compileOr(n *ir.Node, stack []string, op michelson.Op, otherTy *types.Type) (michelson.Seq, []string, error) {
	seq, _, err := g.compile(n.Args[0], stack)
	if err != nil {
		return nil, nil, err
	}
	seq = append(seq, michelson.Instr{Op: op, Ty: otherTy, Name: n.Name})
	return seq, push(stack, ""), nil
}

func (g *Gen) compileListRev(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	seq, _, err := g.compile(n.Args[0], stack)
	if err != nil {
		return nil, nil, err
	}
	seq = append(seq, reverseList(n.Ty.Args[0])...)
	return seq, push(stack, ""), nil
}

// compileExec lowers `exec(f, arg)`. Unlike every other primitive above,
// the argument order here is fixed by EXEC's own stack contract
// (arg:lambda:'S -> ret:'S), not the reverse-compile convention: the
// lambda is compiled first, the argument compiled on top of it. A
// closure (internal/encode.lambda's lifted form) is a runtime pair of
// (lambda, captured env); calling one rebuilds the combined
// (env, arg) argument EXEC expects and recovers the lambda from
// underneath before calling.
func (g *Gen) compileExec(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	fn, arg := n.Args[0], n.Args[1]

	fnSeq, env1, err := g.compile(fn, stack)
	if err != nil {
		return nil, nil, err
	}
	argSeq, _, err := g.compile(arg, env1)
	if err != nil {
		return nil, nil, err
	}
	seq := append(fnSeq, argSeq...)

	if fn.Ty.Kind == types.KLambda {
		seq = append(seq, michelson.Instr{Op: michelson.OpExec, Name: n.Name})
		return seq, push(stack, ""), nil
	}

	// stack: [arg, closurePair, ...]
	seq = append(seq,
		michelson.Instr{Op: michelson.OpDip, N: 1, Nested: michelson.Seq{
			{Op: michelson.OpDup, N: 1},
			{Op: michelson.OpCdr},
		}},
		// stack: [arg, env, closurePair, ...]
		michelson.Instr{Op: michelson.OpSwap},
		// stack: [env, arg, closurePair, ...]
		michelson.Instr{Op: michelson.OpPair},
		// stack: [combined, closurePair, ...]
		michelson.Instr{Op: michelson.OpDip, N: 1, Nested: michelson.Seq{{Op: michelson.OpCar}}},
		// stack: [combined, lambda, ...]
		michelson.Instr{Op: michelson.OpExec, Name: n.Name},
	)
	return seq, push(stack, ""), nil
}
