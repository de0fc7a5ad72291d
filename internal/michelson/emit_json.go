package michelson

import (
	"fmt"
	"strings"

	"github.com/tidwall/sjson"
)

// EmitJSON renders a Program as the structured external syntax of
// spec.md §6: `{prim: NAME, args: [...], annots: [...]}`, used for the
// `.tz.json` artifact when `--json` is passed. Each node is built
// bottom-up with sjson.SetRaw so a literal int/string/bytes leaf (whose
// "prim" is itself the literal, e.g. `"42"` or `"0x0011"`) nests directly
// without a spurious args/annots wrapper.
func EmitJSON(p Program, compact bool) (string, error) {
	codeJSON, err := marshalSeq(p.Code)
	if err != nil {
		return "", err
	}
	doc := "{}"
	doc, err = sjson.SetRaw(doc, "parameter", `"`+escape(p.Parameter.String())+`"`)
	if err != nil {
		return "", err
	}
	doc, err = sjson.SetRaw(doc, "storage", `"`+escape(p.Storage.String())+`"`)
	if err != nil {
		return "", err
	}
	doc, err = sjson.SetRaw(doc, "code", codeJSON)
	if err != nil {
		return "", err
	}
	if compact {
		return doc, nil
	}
	return prettyJSON(doc), nil
}

// EmitConstJSON renders a single literal's structured form, the --json
// counterpart of EmitConstText.
func EmitConstJSON(c Concrete) (string, error) {
	return marshalConcrete(c)
}

func marshalSeq(seq []Concrete) (string, error) {
	parts := make([]string, len(seq))
	for i, c := range seq {
		m, err := marshalConcrete(c)
		if err != nil {
			return "", err
		}
		parts[i] = m
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}

func marshalConcrete(c Concrete) (string, error) {
	if isLeafLiteral(c.Prim) && len(c.Args) == 0 && len(c.Annots) == 0 {
		return `"` + escape(c.Prim) + `"`, nil
	}
	doc := "{}"
	var err error
	doc, err = sjson.SetRaw(doc, "prim", `"`+escape(c.Prim)+`"`)
	if err != nil {
		return "", err
	}
	if len(c.Args) > 0 {
		argsJSON, err := marshalSeq(c.Args)
		if err != nil {
			return "", err
		}
		doc, err = sjson.SetRaw(doc, "args", argsJSON)
		if err != nil {
			return "", err
		}
	}
	if len(c.Annots) > 0 {
		annotsJSON := `["` + strings.Join(c.Annots, `","`) + `"]`
		doc, err = sjson.SetRaw(doc, "annots", annotsJSON)
		if err != nil {
			return "", err
		}
	}
	return doc, nil
}

// isLeafLiteral reports whether a Concrete node is a bare literal (an
// integer, string, bytes, or boolean constant) that should serialize as a
// JSON scalar rather than a {prim:...} object.
func isLeafLiteral(prim string) bool {
	if prim == "" {
		return false
	}
	if prim == "True" || prim == "False" || prim == "Unit" {
		return false
	}
	r := prim[0]
	return (r >= '0' && r <= '9') || r == '"' || strings.HasPrefix(prim, "0x")
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func prettyJSON(doc string) string {
	// sjson keeps compact output and no indent pass is applied: the
	// non-compact form differs from the compact one only by this trailing
	// newline.
	return fmt.Sprintf("%s\n", doc)
}
