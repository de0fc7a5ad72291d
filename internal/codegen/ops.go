package codegen

import (
	"stackc/internal/ir"
	"stackc/internal/michelson"
	"stackc/internal/types"
)

// compileTransfer lowers `transfer` to TRANSFER_TOKENS, whose stack
// contract wants the call argument on top, then the amount, then the
// destination contract underneath both.
func (g *Gen) compileTransfer(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	contractSeq, env1, err := g.compile(n.Contract, stack)
	if err != nil {
		return nil, nil, err
	}
	amountSeq, env2, err := g.compile(n.Amount, env1)
	if err != nil {
		return nil, nil, err
	}
	argSeq, _, err := g.compile(n.TransferArg, env2)
	if err != nil {
		return nil, nil, err
	}
	out := append(contractSeq, amountSeq...)
	out = append(out, argSeq...)
	out = append(out, michelson.Instr{Op: michelson.OpTransferTokens, Name: n.Name})
	return out, push(stack, ""), nil
}

// compileFailwith lowers `failwith` to FAILWITH. Nothing after it is
// reachable, but codegen still reports the usual net +1 stack shape so
// callers compiling the surrounding term don't need a special case.
func (g *Gen) compileFailwith(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	seq, _, err := g.compile(n.FailMsg, stack)
	if err != nil {
		return nil, nil, err
	}
	seq = append(seq, michelson.Instr{Op: michelson.OpFailwith, Name: n.Name})
	return seq, push(stack, ""), nil
}

// compileCreateContract lowers `create_contract`. The IR carries only a
// storage initializer and the child's parameter type — no nested contract
// AST to compile, since L has no syntax for embedding a second contract's
// source — so the originated contract's code is a fixed, always-typeable
// no-op body (`CDR; NIL operation; PAIR`: ignore the parameter, return
// the given storage unchanged with no operations) and the delegate/
// initial balance are fixed to None/0 tez. CREATE_CONTRACT itself pushes
// operation and address as two separate slots; PAIR joins them to match
// the node's declared `operation * address` result type.
func (g *Gen) compileCreateContract(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	storageSeq, _, err := g.compile(n.CreateStorage, stack)
	if err != nil {
		return nil, nil, err
	}
	out := append(storageSeq,
		michelson.Instr{Op: michelson.OpPush, Ty: types.Tez, Const: types.Const{Kind: types.CTez, Int: 0}},
		michelson.Instr{Op: michelson.OpNone, Ty: types.KeyHash},
	)
	childCode := michelson.Seq{
		{Op: michelson.OpCdr},
		{Op: michelson.OpNil, Ty: types.Operation},
		{Op: michelson.OpPair},
	}
	out = append(out, michelson.Instr{Op: michelson.OpCreateContract, Nested: childCode, Name: n.Name})
	out = append(out, michelson.Instr{Op: michelson.OpPair})
	return out, push(stack, ""), nil
}

// compileContractAt lowers `contract_at` to CONTRACT ty.
func (g *Gen) compileContractAt(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	seq, _, err := g.compile(n.Object, stack)
	if err != nil {
		return nil, nil, err
	}
	seq = append(seq, michelson.Instr{Op: michelson.OpContract, Ty: n.ContractParamTy, Name: n.Name})
	return seq, push(stack, ""), nil
}

// compileUnpack lowers `unpack` to UNPACK ty.
func (g *Gen) compileUnpack(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	seq, _, err := g.compile(n.UnpackBytes, stack)
	if err != nil {
		return nil, nil, err
	}
	seq = append(seq, michelson.Instr{Op: michelson.OpUnpack, Ty: n.UnpackTy, Name: n.Name})
	return seq, push(stack, ""), nil
}
