package check

import (
	"stackc/internal/ast"
	"stackc/internal/diag"
	"stackc/internal/ir"
	"stackc/internal/types"
)

// inferApply synthesizes the type of a primitive application. Arithmetic
// follows the Michelson-dictated result type (spec.md §4.1): nat-nat
// subtraction widens to int, nat+nat stays nat, int*tez is rejected, etc.
func (c *Checker) inferApply(e *ast.Expr) (*ir.Node, error) {
	args := make([]*ir.Node, len(e.Desc.Args))
	transfer, pure := false, true
	for i, a := range e.Desc.Args {
		n, err := c.infer(a)
		if err != nil {
			return nil, err
		}
		args[i] = n
		transfer = transfer || n.Transfer
		pure = pure && n.Pure
	}

	if owners := c.Env.CtorOwners(e.Desc.Prim); len(owners) > 0 {
		return c.inferCtorConstruct(e, args, owners)
	}

	var resultTy *types.Type
	var err error
	switch {
	case e.Desc.Prim == "self":
		if c.selfParamTy == nil {
			return nil, diag.Internalf("typecheck", e.At, "self used outside an entry body")
		}
		resultTy = types.Contract(c.selfParamTy)
	case e.Desc.Prim == "exec":
		resultTy, err = execResultType(e.At, args)
		if err != nil {
			return nil, err
		}
	default:
		resultTy, err = primitiveResultType(e.Desc.Prim, e.At, args)
		if err != nil {
			return nil, err
		}
	}

	switch e.Desc.Prim {
	case "sender", "source":
		if c.inInitializer {
			return nil, diag.New(diag.Forbidden, diag.ForbiddenEffect, e.At,
				"%s is forbidden in the storage initializer", e.Desc.Prim)
		}
	}

	return &ir.Node{Tag: ir.Apply, Ty: resultTy, At: e.At, Name: e.Name,
		Prim: e.Desc.Prim, Args: args, Transfer: transfer, Pure: pure && isPurePrim(e.Desc.Prim),
	}, nil
}

// isPurePrim reports whether a primitive may itself enqueue an operation;
// all arithmetic/comparison/collection primitives are pure, contract
// primitives (set_delegate, create_account) are not, pure observational
// primitives (self, balance, now, amount, sender, source, address) are
// pure but not necessarily const-foldable.
func isPurePrim(prim string) bool {
	switch prim {
	case "set_delegate", "create_account":
		return false
	}
	return true
}

func primitiveResultType(prim string, at diag.Loc, args []*ir.Node) (*types.Type, error) {
	switch prim {
	case "+", "-", "*", "/":
		return arithResult(prim, at, args)
	case "=", "<>", "<", ">", "<=", ">=":
		if len(args) != 2 {
			return nil, diag.New(diag.Semantic, diag.ArityMismatch, at, "%s expects 2 arguments", prim)
		}
		if !types.Equal(args[0].Ty, args[1].Ty) {
			return nil, diag.New(diag.Semantic, diag.TypeMismatch, at, "%s: mismatched operand types %s / %s", prim, args[0].Ty, args[1].Ty)
		}
		return types.Bool, nil
	case "not":
		return boolOrNat(args)
	case "and", "or", "xor":
		return boolOrNat(args)
	case "int":
		return types.Int, nil
	case "abs":
		return types.Nat, nil
	case "is_nat":
		return types.Option(types.Nat), nil
	case "Left", "Right":
		return nil, diag.New(diag.Semantic, diag.UnannotatedSum, at, "%s requires a surrounding `or` type annotation", prim)
	case "Some":
		return types.Option(args[0].Ty), nil
	case "None":
		return nil, diag.New(diag.Semantic, diag.UnannotatedSum, at, "None requires a surrounding `option` type annotation")
	case "Nil":
		return nil, diag.New(diag.Semantic, diag.UnannotatedSum, at, "Nil requires a surrounding `list` type annotation")
	case "Cons":
		if len(args) != 2 {
			return nil, diag.New(diag.Semantic, diag.ArityMismatch, at, "Cons expects head, tail")
		}
		return args[1].Ty, nil
	case "list.size", "set.size", "map.size":
		return types.Nat, nil
	case "list.rev":
		return args[0].Ty, nil
	case "concat":
		return types.String, nil
	case "slice":
		return types.Option(types.String), nil
	case "blake2b", "sha256", "sha512", "keccak", "sha3", "pack":
		return types.Bytes, nil
	case "check_signature", "coll.mem", "set.mem", "map.mem":
		return types.Bool, nil
	case "map.get", "bigmap.get":
		if len(args) != 2 {
			return nil, diag.New(diag.Semantic, diag.ArityMismatch, at, "%s expects key, map", prim)
		}
		return types.Option(args[1].Ty.Args[1]), nil
	case "map.update", "bigmap.update":
		if len(args) != 3 {
			return nil, diag.New(diag.Semantic, diag.ArityMismatch, at, "%s expects key, value option, map", prim)
		}
		return args[2].Ty, nil
	case "set.update":
		if len(args) != 3 {
			return nil, diag.New(diag.Semantic, diag.ArityMismatch, at, "set.update expects elt, present flag, set")
		}
		return args[2].Ty, nil
	case "self":
		return nil, diag.Internalf("typecheck", at, "self requires contextual contract parameter type")
	case "balance", "amount":
		return types.Tez, nil
	case "now":
		return types.Timestamp, nil
	case "sender", "source":
		return types.Address, nil
	case "address":
		return types.Address, nil
	case "implicit_account":
		return types.Contract(types.Unit), nil
	case "set_delegate":
		return types.Operation, nil
	case "steps_to_quota":
		return types.Nat, nil
	}
	return nil, diag.Internalf("typecheck", at, "unknown primitive %q post-parse", prim)
}

// execResultType types `exec(f, arg)`, applying a lambda or closure to an
// argument. A closure's type still carries its pre-conversion param/return
// types (internal/encode folds the captured environment in only after
// typechecking), so the two cases share the same shape.
func execResultType(at diag.Loc, args []*ir.Node) (*types.Type, error) {
	if len(args) != 2 {
		return nil, diag.New(diag.Semantic, diag.ArityMismatch, at, "exec expects a function and an argument")
	}
	fn := args[0].Ty
	if fn.Kind != types.KLambda && fn.Kind != types.KClosure {
		return nil, diag.New(diag.Semantic, diag.TypeMismatch, at, "exec target must be a lambda or closure, got %s", fn)
	}
	if !types.Equal(args[1].Ty, fn.Args[0]) {
		return nil, diag.New(diag.Semantic, diag.TypeMismatch, at, "exec argument %s does not match parameter type %s", args[1].Ty, fn.Args[0])
	}
	return fn.Args[1], nil
}

func boolOrNat(args []*ir.Node) (*types.Type, error) {
	if len(args) > 0 && types.IsNat(args[0].Ty) {
		return types.Nat, nil
	}
	return types.Bool, nil
}

// arithResult implements the int/nat sub-kind lattice from spec.md §4.1.
func arithResult(op string, at diag.Loc, args []*ir.Node) (*types.Type, error) {
	if len(args) != 2 {
		return nil, diag.New(diag.Semantic, diag.ArityMismatch, at, "%s expects 2 arguments", op)
	}
	l, r := args[0].Ty, args[1].Ty
	switch {
	case l.Kind == types.KTez && r.Kind == types.KTez:
		if op == "*" {
			return nil, diag.New(diag.Semantic, diag.TypeMismatch, at, "tez * tez is not defined")
		}
		if op == "/" {
			return types.Option(types.Tuple(types.Tez, types.Tez)), nil
		}
		return types.Tez, nil
	case (l.Kind == types.KTez && types.IsNat(r)) || (types.IsNat(l) && r.Kind == types.KTez):
		if op != "*" {
			return nil, diag.New(diag.Semantic, diag.TypeMismatch, at, "tez %s nat is not defined", op)
		}
		return types.Tez, nil
	case (l.Kind == types.KTez || r.Kind == types.KTez) && (types.IsInt(l) || types.IsInt(r)):
		return nil, diag.New(diag.Semantic, diag.TypeMismatch, at, "int %s tez is rejected", op)
	case types.IsNat(l) && types.IsNat(r):
		if op == "-" {
			return types.Int, nil
		}
		if op == "/" {
			return types.Option(types.Tuple(types.Nat, types.Nat)), nil
		}
		return types.Nat, nil
	case types.IsInt(l) && types.IsInt(r):
		if op == "/" {
			return types.Option(types.Tuple(types.Int, types.Int)), nil
		}
		return types.Int, nil
	case (types.IsInt(l) && types.IsNat(r)) || (types.IsNat(l) && types.IsInt(r)):
		if op == "/" {
			return types.Option(types.Tuple(types.Int, types.Nat)), nil
		}
		return types.Int, nil
	case l.Kind == types.KString && r.Kind == types.KString && op == "+":
		return types.String, nil
	case l.Kind == types.KTimestamp && types.IsInt(r) && (op == "+" || op == "-"):
		return types.Timestamp, nil
	}
	return nil, diag.New(diag.Semantic, diag.TypeMismatch, at, "%s not defined between %s and %s", op, l, r)
}
