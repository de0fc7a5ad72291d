package michelson

import "strings"

// EmitText renders a Program as the textual external syntax of spec.md
// §6: `parameter TYPE; storage TYPE; code INSTR;`.
func EmitText(p Program) string {
	var b strings.Builder
	b.WriteString("parameter ")
	b.WriteString(p.Parameter.String())
	b.WriteString(";\nstorage ")
	b.WriteString(p.Storage.String())
	b.WriteString(";\ncode ")
	writeConcreteSeq(&b, p.Code, 0)
	b.WriteString(";\n")
	return b.String()
}

// EmitConstText renders a single literal (no surrounding instruction) for
// the --data/--init-storage artifacts and internal/deploy's forged bytes.
func EmitConstText(c Concrete) string {
	var b strings.Builder
	writeConcrete(&b, c, 0)
	return b.String()
}

func writeConcreteSeq(b *strings.Builder, seq []Concrete, indent int) {
	b.WriteString("{ ")
	for i, c := range seq {
		if i > 0 {
			b.WriteString(" ; ")
		}
		writeConcrete(b, c, indent)
	}
	b.WriteString(" }")
}

func writeConcrete(b *strings.Builder, c Concrete, indent int) {
	if c.Prim == "SEQ" {
		writeConcreteSeq(b, c.Args, indent)
		return
	}
	b.WriteString(c.Prim)
	for _, an := range c.Annots {
		b.WriteString(" ")
		b.WriteString(an)
	}
	for _, arg := range c.Args {
		b.WriteString(" ")
		if needsParens(arg) {
			b.WriteString("(")
			writeConcrete(b, arg, indent)
			b.WriteString(")")
		} else {
			writeConcrete(b, arg, indent)
		}
	}
}

func needsParens(c Concrete) bool {
	return len(c.Args) > 0 && c.Prim != "SEQ"
}
