package check

import (
	"stackc/internal/ast"
	"stackc/internal/diag"
	"stackc/internal/env"
	"stackc/internal/ir"
	"stackc/internal/types"
)

// infer synthesizes a type upward (bidirectional "synth" mode).
func (c *Checker) infer(e *ast.Expr) (*ir.Node, error) {
	switch e.Desc.Tag {
	case ast.EVar:
		ty, ok := c.Env.Lookup(e.Desc.Var)
		if !ok {
			if c.Mode == Decompiling {
				ty = types.Unit
			} else {
				return nil, env.UnboundVar(e.At, e.Desc.Var)
			}
		}
		return &ir.Node{Tag: ir.Var, Ty: ty, At: e.At, Name: e.Name, Var: e.Desc.Var, Pure: true}, nil

	case ast.EConst:
		return &ir.Node{Tag: ir.ConstNode, Ty: e.Desc.Const.Ty, At: e.At, Name: e.Name,
			Const: e.Desc.Const, Pure: true}, nil

	case ast.ELet:
		return c.checkLet(e, nil)

	case ast.ESeq:
		first, err := c.check(e.Desc.First, types.Unit)
		if err != nil {
			return nil, err
		}
		second, err := c.infer(e.Desc.Second)
		if err != nil {
			return nil, err
		}
		return &ir.Node{Tag: ir.Seq, Ty: second.Ty, At: e.At, Name: e.Name,
			First: first, Second: second,
			Transfer: first.Transfer || second.Transfer,
			Pure:     first.Pure && second.Pure,
		}, nil

	case ast.EIf:
		return c.checkIf(e, nil)

	case ast.ELambda:
		return c.checkLambda(e, nil)

	case ast.EApply:
		return c.inferApply(e)

	case ast.EMatchOption:
		return c.inferMatchOption(e)
	case ast.EMatchNat:
		return c.inferMatchNat(e)
	case ast.EMatchList:
		return c.inferMatchList(e)
	case ast.EMatchVariant:
		return c.checkMatchVariant(e, nil)

	case ast.ELoop:
		return c.inferLoop(e)
	case ast.ELoopLeft:
		return c.inferLoopLeft(e)
	case ast.EFold:
		return c.inferFold(e)
	case ast.EMap:
		return c.inferMap(e)
	case ast.EMapFold:
		return c.inferMapFold(e)

	case ast.ERecordConstruct:
		return c.inferRecordConstruct(e)
	case ast.EProject:
		return c.inferProject(e)
	case ast.ESetField:
		return c.inferSetField(e)

	case ast.ETransfer:
		return c.inferTransfer(e)
	case ast.EFailwith:
		return c.inferFailwith(e)
	case ast.ECreateContract:
		return c.inferCreateContract(e)
	case ast.EContractAt:
		return c.inferContractAt(e)
	case ast.EUnpack:
		return c.inferUnpack(e)
	}
	return nil, diag.Internalf("typecheck", e.At, "unhandled expression tag %d", e.Desc.Tag)
}

func (c *Checker) inferMatchOption(e *ast.Expr) (*ir.Node, error) {
	scrut, err := c.infer(e.Desc.Scrutinee)
	if err != nil {
		return nil, err
	}
	if scrut.Ty.Kind != types.KOption {
		return nil, diag.New(diag.Semantic, diag.TypeMismatch, e.At, "match%%option expects option, got %s", scrut.Ty)
	}
	none, err := c.infer(e.Desc.NoneCase)
	if err != nil {
		return nil, err
	}
	mark := c.Env.Push(e.Desc.SomeVar, scrut.Ty.Args[0])
	some, err := c.check(e.Desc.SomeCase, none.Ty)
	c.Env.PopTo(mark)
	if err != nil {
		return nil, err
	}
	return &ir.Node{Tag: ir.MatchOption, Ty: none.Ty, At: e.At, Name: e.Name,
		Scrutinee: scrut, NoneBody: none, SomeVar: e.Desc.SomeVar, SomeBody: some,
		Transfer: scrut.Transfer || none.Transfer || some.Transfer,
		Pure:     scrut.Pure && none.Pure && some.Pure,
	}, nil
}

func (c *Checker) inferMatchNat(e *ast.Expr) (*ir.Node, error) {
	scrut, err := c.check(e.Desc.Scrutinee, types.Int)
	if err != nil {
		return nil, err
	}
	mark := c.Env.Push(e.Desc.PlusVar, types.Nat)
	plus, err := c.infer(e.Desc.PlusCase)
	c.Env.PopTo(mark)
	if err != nil {
		return nil, err
	}
	mark = c.Env.Push(e.Desc.MinusVar, types.Nat)
	minus, err := c.check(e.Desc.MinusCase, plus.Ty)
	c.Env.PopTo(mark)
	if err != nil {
		return nil, err
	}
	return &ir.Node{Tag: ir.MatchNat, Ty: plus.Ty, At: e.At, Name: e.Name,
		Scrutinee: scrut, PlusVar: e.Desc.PlusVar, PlusBody: plus,
		MinusVar: e.Desc.MinusVar, MinusBody: minus,
		Transfer: scrut.Transfer || plus.Transfer || minus.Transfer,
		Pure:     scrut.Pure && plus.Pure && minus.Pure,
	}, nil
}

func (c *Checker) inferMatchList(e *ast.Expr) (*ir.Node, error) {
	scrut, err := c.infer(e.Desc.Scrutinee)
	if err != nil {
		return nil, err
	}
	if scrut.Ty.Kind != types.KList {
		return nil, diag.New(diag.Semantic, diag.TypeMismatch, e.At, "match%%list expects list, got %s", scrut.Ty)
	}
	nilCase, err := c.infer(e.Desc.NilCase)
	if err != nil {
		return nil, err
	}
	mark := c.Env.Push(e.Desc.HeadVar, scrut.Ty.Args[0])
	c.Env.Push(e.Desc.TailVar, scrut.Ty)
	cons, err := c.check(e.Desc.ConsCase, nilCase.Ty)
	c.Env.PopTo(mark)
	if err != nil {
		return nil, err
	}
	return &ir.Node{Tag: ir.MatchList, Ty: nilCase.Ty, At: e.At, Name: e.Name,
		Scrutinee: scrut, NilBody: nilCase, HeadVar: e.Desc.HeadVar, TailVar: e.Desc.TailVar, ConsBody: cons,
		Transfer: scrut.Transfer || nilCase.Transfer || cons.Transfer,
		Pure:     scrut.Pure && nilCase.Pure && cons.Pure,
	}, nil
}

func (c *Checker) checkMatchVariant(e *ast.Expr, want *types.Type) (*ir.Node, error) {
	scrut, err := c.infer(e.Desc.Scrutinee)
	if err != nil {
		return nil, err
	}
	if scrut.Ty.Kind != types.KVariant {
		return nil, diag.New(diag.Semantic, diag.TypeMismatch, e.At, "match expects a variant, got %s", scrut.Ty)
	}
	def, ok := c.Env.Variants[scrut.Ty.Name]
	if !ok {
		return nil, diag.Internalf("typecheck", e.At, "variant %q not registered", scrut.Ty.Name)
	}
	seen := map[string]bool{}
	var cases []ir.Case
	var resultTy *types.Type
	transfer, pure := scrut.Transfer, scrut.Pure
	for _, mc := range e.Desc.Cases {
		if mc.Var == "_" {
			body, err := c.check(mc.Body, want)
			if err != nil {
				return nil, err
			}
			if resultTy == nil {
				resultTy = body.Ty
			}
			transfer = transfer || body.Transfer
			pure = pure && body.Pure
			cases = append(cases, ir.Case{Ctor: "_", Var: "_", Body: body})
			continue
		}
		idx, ok := def.CtorIndex(mc.Ctor)
		if !ok {
			return nil, diag.New(diag.Semantic, diag.UnknownConstructor, e.At,
				"%s has no constructor %q", def.Name, mc.Ctor)
		}
		seen[mc.Ctor] = true
		mark := c.Env.Push(mc.Var, def.Ctors[idx].Ty)
		want2 := want
		if want2 == nil {
			want2 = resultTy
		}
		body, err := c.check(mc.Body, want2)
		c.Env.PopTo(mark)
		if err != nil {
			return nil, err
		}
		if resultTy == nil {
			resultTy = body.Ty
		}
		transfer = transfer || body.Transfer
		pure = pure && body.Pure
		cases = append(cases, ir.Case{Ctor: mc.Ctor, Var: mc.Var, Body: body})
	}
	if c.Mode != Decompiling {
		for _, ctor := range def.Ctors {
			if !seen[ctor.Name] && !hasWildcard(cases) {
				return nil, diag.New(diag.Semantic, diag.ArityMismatch, e.At,
					"match on %s is not exhaustive: missing %q", def.Name, ctor.Name)
			}
		}
	}
	return &ir.Node{Tag: ir.MatchVariant, Ty: resultTy, At: e.At, Name: e.Name,
		Scrutinee: scrut, Cases: cases, Transfer: transfer, Pure: pure,
	}, nil
}

// inferCtorConstruct handles `Ctor(arg)` applications, where Ctor names a
// registered variant constructor rather than a primitive. The constructor
// stays symbolic (ir.Apply with Prim set to the constructor name, Ty the
// named variant) through typechecking; internal/encode binarizes it into
// the canonical Left/Right tree.
func (c *Checker) inferCtorConstruct(e *ast.Expr, args []*ir.Node, owners []string) (*ir.Node, error) {
	if len(owners) > 1 {
		return nil, diag.New(diag.Semantic, diag.UnannotatedSum, e.At,
			"constructor %q is ambiguous across variants %v", e.Desc.Prim, owners)
	}
	def := c.Env.Variants[owners[0]]
	idx, _ := def.CtorIndex(e.Desc.Prim)
	want := def.Ctors[idx].Ty
	if len(args) != 1 || !types.Equal(args[0].Ty, want) {
		return nil, diag.New(diag.Semantic, diag.TypeMismatch, e.At, "constructor %s expects %s", e.Desc.Prim, want)
	}
	return &ir.Node{Tag: ir.Apply, Ty: types.Variant(def.Name), At: e.At, Name: e.Name,
		Prim: e.Desc.Prim, Args: args, Transfer: args[0].Transfer, Pure: args[0].Pure,
	}, nil
}

func hasWildcard(cases []ir.Case) bool {
	for _, c := range cases {
		if c.Var == "_" {
			return true
		}
	}
	return false
}

func (c *Checker) inferRecordConstruct(e *ast.Expr) (*ir.Node, error) {
	def, ok := c.Env.Records[e.Desc.RecordName]
	if !ok {
		return nil, diag.Internalf("typecheck", e.At, "record %q not registered", e.Desc.RecordName)
	}
	vals := make([]*ir.Node, len(def.Fields))
	order := make([]string, len(def.Fields))
	transfer, pure := false, true
	given := map[string]*ast.Expr{}
	for _, fi := range e.Desc.Fields {
		given[fi.Field] = fi.Value
	}
	for i, f := range def.Fields {
		src, ok := given[f.Name]
		if !ok {
			return nil, diag.New(diag.Semantic, diag.ArityMismatch, e.At,
				"record %s missing field %q", def.Name, f.Name)
		}
		v, err := c.check(src, f.Ty)
		if err != nil {
			return nil, err
		}
		vals[i] = v
		order[i] = f.Name
		transfer = transfer || v.Transfer
		pure = pure && v.Pure
	}
	return &ir.Node{Tag: ir.RecordConstruct, Ty: types.Record(def.Name), At: e.At, Name: e.Name,
		RecordName: def.Name, FieldOrder: order, FieldVals: vals, Transfer: transfer, Pure: pure,
	}, nil
}

func (c *Checker) inferProject(e *ast.Expr) (*ir.Node, error) {
	obj, err := c.infer(e.Desc.Object)
	if err != nil {
		return nil, err
	}
	if obj.Ty.Kind != types.KRecord {
		return nil, diag.New(diag.Semantic, diag.TypeMismatch, e.At, "projection of non-record %s", obj.Ty)
	}
	def, ok := c.Env.Records[obj.Ty.Name]
	if !ok {
		return nil, diag.Internalf("typecheck", e.At, "record %q not registered", obj.Ty.Name)
	}
	idx, ok := def.FieldIndex(e.Desc.Field)
	if !ok {
		owners := c.Env.FieldOwners(e.Desc.Field)
		if len(owners) > 1 {
			return nil, diag.New(diag.Semantic, diag.UnknownField, e.At,
				"field %q is ambiguous across records %v", e.Desc.Field, owners)
		}
		return nil, diag.New(diag.Semantic, diag.UnknownField, e.At, "record %s has no field %q", def.Name, e.Desc.Field)
	}
	return &ir.Node{Tag: ir.Project, Ty: def.Fields[idx].Ty, At: e.At, Name: e.Name,
		Object: obj, Field: e.Desc.Field, Transfer: obj.Transfer, Pure: obj.Pure,
	}, nil
}

func (c *Checker) inferSetField(e *ast.Expr) (*ir.Node, error) {
	obj, err := c.infer(e.Desc.Object)
	if err != nil {
		return nil, err
	}
	if obj.Ty.Kind != types.KRecord {
		return nil, diag.New(diag.Semantic, diag.TypeMismatch, e.At, "field update of non-record %s", obj.Ty)
	}
	def := c.Env.Records[obj.Ty.Name]
	idx, ok := def.FieldIndex(e.Desc.Field)
	if !ok {
		return nil, diag.New(diag.Semantic, diag.UnknownField, e.At, "record %s has no field %q", def.Name, e.Desc.Field)
	}
	val, err := c.check(e.Desc.Value, def.Fields[idx].Ty)
	if err != nil {
		return nil, err
	}
	return &ir.Node{Tag: ir.SetField, Ty: obj.Ty, At: e.At, Name: e.Name,
		Object: obj, Field: e.Desc.Field, Value: val,
		Transfer: obj.Transfer || val.Transfer, Pure: obj.Pure && val.Pure,
	}, nil
}

func (c *Checker) inferTransfer(e *ast.Expr) (*ir.Node, error) {
	contract, err := c.infer(e.Desc.Contract)
	if err != nil {
		return nil, err
	}
	if contract.Ty.Kind != types.KContract {
		return nil, diag.New(diag.Semantic, diag.TypeMismatch, e.At, "transfer target must be a contract, got %s", contract.Ty)
	}
	amount, err := c.check(e.Desc.Amount, types.Tez)
	if err != nil {
		return nil, err
	}
	arg, err := c.check(e.Desc.TransferArg, contract.Ty.Args[0])
	if err != nil {
		return nil, err
	}
	return &ir.Node{Tag: ir.Transfer, Ty: types.Operation, At: e.At, Name: e.Name,
		Contract: contract, Amount: amount, TransferArg: arg, Transfer: true, Pure: false,
	}, nil
}

func (c *Checker) inferFailwith(e *ast.Expr) (*ir.Node, error) {
	msg, err := c.infer(e.Desc.FailMsg)
	if err != nil {
		return nil, err
	}
	return &ir.Node{Tag: ir.Failwith, Ty: types.Unit, At: e.At, Name: e.Name,
		FailMsg: msg, Transfer: msg.Transfer, Pure: false,
	}, nil
}

func (c *Checker) inferCreateContract(e *ast.Expr) (*ir.Node, error) {
	storage, err := c.infer(e.Desc.CreateStorage)
	if err != nil {
		return nil, err
	}
	return &ir.Node{Tag: ir.CreateContract, Ty: types.Tuple(types.Operation, types.Address), At: e.At, Name: e.Name,
		CreateStorage: storage, ContractParamTy: e.Desc.ContractParamTy, Transfer: true, Pure: false,
	}, nil
}

func (c *Checker) inferContractAt(e *ast.Expr) (*ir.Node, error) {
	addr, err := c.check(e.Desc.Object, types.Address)
	if err != nil {
		return nil, err
	}
	return &ir.Node{Tag: ir.ContractAt, Ty: types.Option(types.Contract(e.Desc.ContractParamTy)), At: e.At, Name: e.Name,
		Object: addr, ContractParamTy: e.Desc.ContractParamTy, Transfer: addr.Transfer, Pure: addr.Pure,
	}, nil
}

func (c *Checker) inferUnpack(e *ast.Expr) (*ir.Node, error) {
	b, err := c.check(e.Desc.UnpackBytes, types.Bytes)
	if err != nil {
		return nil, err
	}
	return &ir.Node{Tag: ir.Unpack, Ty: types.Option(e.Desc.UnpackTy), At: e.At, Name: e.Name,
		UnpackTy: e.Desc.UnpackTy, UnpackBytes: b, Transfer: b.Transfer, Pure: b.Pure,
	}, nil
}
