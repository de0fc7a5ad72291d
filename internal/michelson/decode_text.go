package michelson

import (
	"strings"

	"stackc/internal/diag"
	"stackc/internal/types"
)

// ParseProgram is the inverse of EmitText: it recovers a Program from the
// three top-level stanzas of spec.md §6. Unlike L, whose grammar is
// deferred to undelivered project documentation (hence out of scope),
// M's external syntax is fully specified by §6 itself, so parsing it
// back is in scope the same way emitting it already is.
func ParseProgram(src string) (Program, error) {
	toks := tokenizeText(src)
	p := &textParser{toks: toks}

	if err := p.expectWord("parameter"); err != nil {
		return Program{}, err
	}
	paramTy, err := p.parseTypeTokens()
	if err != nil {
		return Program{}, err
	}
	if err := p.expect(";"); err != nil {
		return Program{}, err
	}
	if err := p.expectWord("storage"); err != nil {
		return Program{}, err
	}
	storageTy, err := p.parseTypeTokens()
	if err != nil {
		return Program{}, err
	}
	if err := p.expect(";"); err != nil {
		return Program{}, err
	}
	if err := p.expectWord("code"); err != nil {
		return Program{}, err
	}
	code, err := p.parseConcreteSeq()
	if err != nil {
		return Program{}, err
	}
	p.consumeOpt(";")

	return Program{Parameter: paramTy, Storage: storageTy, Code: code}, nil
}

// ParseConst parses a single bare literal (no surrounding program), the
// text counterpart of EmitConstText, used to read --data/--init-storage
// input files back.
func ParseConst(src string) (Concrete, error) {
	p := &textParser{toks: tokenizeText(src)}
	c, err := p.parseConcrete()
	if err != nil {
		return Concrete{}, err
	}
	return c, nil
}

// parseTypeTokens consumes the token run up to (but not including) the
// next top-level ";" and hands it to parseType, which has its own
// tokenizer over the flattened type grammar.
func (p *textParser) parseTypeTokens() (*types.Type, error) {
	start := p.pos
	depth := 0
	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		if t == "(" {
			depth++
		} else if t == ")" {
			depth--
		} else if t == ";" && depth == 0 {
			break
		}
		p.pos++
	}
	return parseType(strings.Join(p.toks[start:p.pos], " "))
}

func tokenizeText(s string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			flush()
			var lit strings.Builder
			lit.WriteRune(r)
			i++
			for i < len(runes) && runes[i] != '"' {
				if runes[i] == '\\' && i+1 < len(runes) {
					lit.WriteRune(runes[i])
					i++
				}
				lit.WriteRune(runes[i])
				i++
			}
			lit.WriteRune('"')
			toks = append(toks, lit.String())
		case r == '{' || r == '}' || r == '(' || r == ')' || r == ';':
			flush()
			toks = append(toks, string(r))
		case r == ' ' || r == '\n' || r == '\t' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

type textParser struct {
	toks []string
	pos  int
}

func (p *textParser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *textParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *textParser) expect(tok string) error {
	if p.peek() != tok {
		return diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "expected %q, got %q", tok, p.peek())
	}
	p.pos++
	return nil
}

func (p *textParser) expectWord(word string) error {
	return p.expect(word)
}

func (p *textParser) consumeOpt(tok string) {
	if p.peek() == tok {
		p.pos++
	}
}

// parseConcreteSeq parses a `{ c ; c ; ... }` block into its elements.
func (p *textParser) parseConcreteSeq() ([]Concrete, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	var out []Concrete
	for p.peek() != "}" && p.peek() != "" {
		c, err := p.parseConcrete()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		p.consumeOpt(";")
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	return out, nil
}

// parseConcrete parses one instruction/literal: a bare SEQ block, a
// parenthesized form, or PRIM followed by zero or more annotation/
// argument tokens until the enclosing ";" or "}"/")" terminator.
func (p *textParser) parseConcrete() (Concrete, error) {
	if p.peek() == "{" {
		args, err := p.parseConcreteSeq()
		if err != nil {
			return Concrete{}, err
		}
		return Concrete{Prim: "SEQ", Args: args}, nil
	}
	paren := false
	if p.peek() == "(" {
		paren = true
		p.pos++
	}
	if p.peek() == "" {
		return Concrete{}, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "unexpected end of input")
	}
	prim := p.next()
	c := Concrete{Prim: prim}
	for {
		t := p.peek()
		if t == "" || t == ";" || t == "}" || (paren && t == ")") {
			break
		}
		if strings.HasPrefix(t, "@") || strings.HasPrefix(t, "%") {
			c.Annots = append(c.Annots, p.next())
			continue
		}
		if t == "{" {
			args, err := p.parseConcreteSeq()
			if err != nil {
				return Concrete{}, err
			}
			c.Args = append(c.Args, Concrete{Prim: "SEQ", Args: args})
			continue
		}
		if t == "(" {
			p.pos++
			arg, err := p.parseConcrete()
			if err != nil {
				return Concrete{}, err
			}
			if err := p.expect(")"); err != nil {
				return Concrete{}, err
			}
			c.Args = append(c.Args, arg)
			continue
		}
		// bare atom argument (e.g. a numeric DUP/DIP operand, or a nested
		// prim with no parens because it has no args/annots of its own)
		c.Args = append(c.Args, Concrete{Prim: p.next()})
	}
	if paren {
		if err := p.expect(")"); err != nil {
			return Concrete{}, err
		}
	}
	return c, nil
}
