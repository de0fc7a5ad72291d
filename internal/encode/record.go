package encode

import (
	"stackc/internal/ir"
	"stackc/internal/types"
)

// recordConstruct rewrites field values and lowers the record into the
// right-leaning nested-pair tree of spec.md §4.2: fields in declaration
// order, pair(f0, pair(f1, pair(f2, f3))).
func (enc *Encoder) recordConstruct(n *ir.Node) (*ir.Node, error) {
	vals := make([]*ir.Node, len(n.FieldVals))
	for i, v := range n.FieldVals {
		r, err := enc.node(v)
		if err != nil {
			return nil, err
		}
		vals[i] = r
	}
	return nestPairs(vals), nil
}

func nestPairs(vals []*ir.Node) *ir.Node {
	if len(vals) == 1 {
		return vals[0]
	}
	rest := nestPairs(vals[1:])
	pairTy := types.Tuple(vals[0].Ty, rest.Ty)
	return &ir.Node{
		Tag: ir.Apply, Ty: pairTy, At: vals[0].At,
		Prim: "pair", Args: []*ir.Node{vals[0], rest},
		Transfer: vals[0].Transfer || rest.Transfer,
		Pure:     vals[0].Pure && rest.Pure,
	}
}

// fieldPath returns the chain of "car"/"cdr" projections (outermost
// first) that reaches field index idx out of fieldCount fields in the
// canonical right-leaning encoding.
func fieldPath(idx, fieldCount int) []string {
	var path []string
	for i := 0; i < fieldCount-1; i++ {
		if i == idx {
			path = append(path, "car")
			return path
		}
		path = append(path, "cdr")
	}
	return path
}

func (enc *Encoder) project(n *ir.Node) (*ir.Node, error) {
	obj, err := enc.node(n.Object)
	if err != nil {
		return nil, err
	}
	def, ok := enc.Env.Records[n.Object.Ty.Name]
	if !ok {
		return nil, internalErr("encode", n, "record %q not registered", n.Object.Ty.Name)
	}
	idx, _ := def.FieldIndex(n.Field)
	return applyPath(obj, fieldPath(idx, len(def.Fields)), n.Ty), nil
}

// applyPath chains "car"/"cdr" Apply nodes over obj; the last step gets
// finalTy (the checker's recorded result type), earlier steps get the
// type walked structurally from obj's own tuple shape.
func applyPath(obj *ir.Node, path []string, finalTy *types.Type) *ir.Node {
	cur := obj
	for i, step := range path {
		ty := finalTy
		if i != len(path)-1 {
			ty = cdrTypeAt(obj, path[:i+1])
		}
		cur = &ir.Node{Tag: ir.Apply, Ty: ty, At: cur.At, Prim: step,
			Args: []*ir.Node{cur}, Transfer: cur.Transfer, Pure: cur.Pure}
	}
	return cur
}

func cdrTypeAt(obj *ir.Node, path []string) *types.Type {
	t := obj.Ty
	for _, step := range path {
		if t == nil || t.Kind != types.KTuple || len(t.Args) != 2 {
			return t
		}
		if step == "car" {
			t = t.Args[0]
		} else {
			t = t.Args[1]
		}
	}
	return t
}

// setField lowers a non-destructive field update into a full
// reconstruction of the pair chain: project every other field unchanged,
// substitute the new value at the updated index, rebuild.
func (enc *Encoder) setField(n *ir.Node) (*ir.Node, error) {
	obj, err := enc.node(n.Object)
	if err != nil {
		return nil, err
	}
	val, err := enc.node(n.Value)
	if err != nil {
		return nil, err
	}
	def, ok := enc.Env.Records[n.Object.Ty.Name]
	if !ok {
		return nil, internalErr("encode", n, "record %q not registered", n.Object.Ty.Name)
	}
	targetIdx, _ := def.FieldIndex(n.Field)

	vals := make([]*ir.Node, len(def.Fields))
	for i, f := range def.Fields {
		if i == targetIdx {
			vals[i] = val
			continue
		}
		vals[i] = applyPath(obj, fieldPath(i, len(def.Fields)), f.Ty)
	}
	return nestPairs(vals), nil
}
