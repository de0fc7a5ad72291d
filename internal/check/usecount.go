package check

import "stackc/internal/ir"

// annotateUseCounts fills in ir.Node.UseCount for every Let node: the
// number of references to its bound name within Body (spec.md §4.1,
// consumed by internal/simplify's one-use inlining).
func annotateUseCounts(c *ir.Contract) {
	for i := range c.Globals {
		countUses(c.Globals[i].Value)
	}
	for i := range c.Entries {
		countUses(c.Entries[i].Body)
	}
	if c.Init != nil {
		countUses(c.Init)
	}
}

func countUses(n *ir.Node) {
	if n == nil {
		return
	}
	if n.Tag == ir.Let {
		n.UseCount = countRefs(n.Body, n.Name)
	}
	ir.ForEachChild(n, countUses)
}

// countRefs counts free occurrences of name in n, not descending into a
// nested binder that shadows it.
func countRefs(n *ir.Node, name string) int {
	if n == nil {
		return 0
	}
	total := 0
	switch n.Tag {
	case ir.Var:
		if n.Var == name {
			total++
		}
		return total
	case ir.Lambda:
		if n.Param == name {
			return 0
		}
		return countRefs(n.Lam, name)
	case ir.Let:
		total += countRefs(n.Bound, name)
		if n.Name == name {
			return total
		}
		return total + countRefs(n.Body, name)
	}
	ir.ForEachChild(n, func(child *ir.Node) {
		total += countRefs(child, name)
	})
	return total
}
